package main

import "testing"

// busTestMmio is a scripted MMIO window for dispatch tests.
type busTestMmio struct {
	backing [16]uint8
	waits   uint32
	reads   int
	writes  int
	peeks   int
	base    uint32
}

func (m *busTestMmio) MmioReadU8(addr uint32) (uint8, uint32) {
	m.reads++
	return m.backing[(addr-m.base)&15], m.waits
}

func (m *busTestMmio) MmioWriteU8(addr uint32, data uint8) uint32 {
	m.writes++
	m.backing[(addr-m.base)&15] = data
	return m.waits
}

func (m *busTestMmio) MmioPeekU8(addr uint32) uint8 {
	m.peeks++
	return m.backing[(addr-m.base)&15]
}

// busTestIo records port accesses and answers with a fixed byte.
type busTestIo struct {
	lastPort  uint16
	lastWrite uint8
	answer    uint8
}

func (d *busTestIo) ReadU8(port uint16, _ uint32) uint8 {
	d.lastPort = port
	return d.answer
}

func (d *busTestIo) WriteU8(port uint16, data uint8, _ *SystemBus, _ uint32) {
	d.lastPort = port
	d.lastWrite = data
}

func TestBusRAMReadWrite(t *testing.T) {
	bus := NewSystemBus()
	if w := bus.WriteU8(0x1234, 0xAB, 0); w != 0 {
		t.Errorf("RAM write cost %d wait states", w)
	}
	if v, _ := bus.ReadU8(0x1234, 0); v != 0xAB {
		t.Errorf("read back %02X", v)
	}
}

func TestBusReadU16LittleEndian(t *testing.T) {
	bus := NewSystemBus()
	bus.WriteU16(0x2000, 0xBEEF, 0)
	if v, _ := bus.ReadU8(0x2000, 0); v != 0xEF {
		t.Errorf("low byte %02X", v)
	}
	if v, _ := bus.ReadU8(0x2001, 0); v != 0xBE {
		t.Errorf("high byte %02X", v)
	}
	if v, _ := bus.ReadU16(0x2000, 0); v != 0xBEEF {
		t.Errorf("word %04X", v)
	}
}

func TestBusTwentyBitWrap(t *testing.T) {
	bus := NewSystemBus()
	bus.WriteU8(0x00000, 0x11, 0)
	bus.WriteU8(0xFFFFF, 0x22, 0)
	// Address bit 20 is not decoded.
	if v, _ := bus.ReadU8(0x100000, 0); v != 0x11 {
		t.Errorf("wrapped read %02X, want 11", v)
	}
	// A word at FFFFF spans the wrap.
	if v, _ := bus.ReadU16(0xFFFFF, 0); v != 0x1122 {
		t.Errorf("spanning word %04X, want 1122", v)
	}
}

func TestBusROMWriteProtect(t *testing.T) {
	bus := NewSystemBus()
	rom := []uint8{0xDE, 0xAD, 0xBE, 0xEF}
	if err := bus.MountROM(rom, 0xFE000); err != nil {
		t.Fatal(err)
	}
	bus.WriteU8(0xFE001, 0x00, 0)
	if v, _ := bus.ReadU8(0xFE001, 0); v != 0xAD {
		t.Errorf("ROM byte overwritten: %02X", v)
	}
	// Dropping the protection makes the window writable again.
	bus.ClearROMFlags(0xFE000, 0xFE004)
	bus.WriteU8(0xFE001, 0x55, 0)
	if v, _ := bus.ReadU8(0xFE001, 0); v != 0x55 {
		t.Errorf("unprotected write lost: %02X", v)
	}
}

func TestBusMountROMBoundsCheck(t *testing.T) {
	bus := NewSystemBus()
	if err := bus.MountROM(make([]uint8, 0x2000), 0xFF000); err == nil {
		t.Error("ROM past end of address space accepted")
	}
}

func TestBusLoadProgramStaysWritable(t *testing.T) {
	bus := NewSystemBus()
	if err := bus.LoadProgram([]uint8{0x90, 0x90}, 0x7C00); err != nil {
		t.Fatal(err)
	}
	bus.WriteU8(0x7C00, 0xC3, 0)
	if v, _ := bus.ReadU8(0x7C00, 0); v != 0xC3 {
		t.Errorf("program memory protected: %02X", v)
	}
}

func TestBusMmioDispatch(t *testing.T) {
	bus := NewSystemBus()
	dev := &busTestMmio{base: 0xB8000, waits: 4}
	if err := bus.InstallMmio(dev, 0xB8000, 0xB8010); err != nil {
		t.Fatal(err)
	}

	if w := bus.WriteU8(0xB8005, 0x41, 0); w != 4 {
		t.Errorf("MMIO write cost %d wait states, want 4", w)
	}
	v, w := bus.ReadU8(0xB8005, 0)
	if v != 0x41 || w != 4 {
		t.Errorf("MMIO read = %02X/%d waits", v, w)
	}
	if dev.reads != 1 || dev.writes != 1 {
		t.Errorf("dispatch counts reads=%d writes=%d", dev.reads, dev.writes)
	}

	// Adjacent addresses stay plain RAM.
	bus.WriteU8(0xB8010, 0x7F, 0)
	if dev.writes != 1 {
		t.Error("write past window reached the device")
	}
}

func TestBusMmioOverlapRejected(t *testing.T) {
	bus := NewSystemBus()
	a := &busTestMmio{base: 0xB0000}
	b := &busTestMmio{base: 0xB0008}
	if err := bus.InstallMmio(a, 0xB0000, 0xB0010); err != nil {
		t.Fatal(err)
	}
	if err := bus.InstallMmio(b, 0xB0008, 0xB0018); err == nil {
		t.Error("overlapping MMIO window accepted")
	}
	if err := bus.InstallMmio(b, 0xB0010, 0xB0020); err != nil {
		t.Errorf("abutting window rejected: %v", err)
	}
}

func TestBusMmioBadRange(t *testing.T) {
	bus := NewSystemBus()
	dev := &busTestMmio{}
	if err := bus.InstallMmio(dev, 0xB8000, 0xB8000); err == nil {
		t.Error("empty window accepted")
	}
	if err := bus.InstallMmio(dev, 0xFFFF0, 0x100010); err == nil {
		t.Error("window past end of address space accepted")
	}
}

func TestBusPeekDoesNotDisturb(t *testing.T) {
	bus := NewSystemBus()
	bus.SetInstrumentation(true)
	dev := &busTestMmio{base: 0xB8000}
	dev.backing[3] = 0x99
	if err := bus.InstallMmio(dev, 0xB8000, 0xB8010); err != nil {
		t.Fatal(err)
	}

	if v := bus.PeekU8(0xB8003); v != 0x99 {
		t.Errorf("peek = %02X", v)
	}
	if dev.reads != 0 {
		t.Error("peek went through the read path")
	}
	if dev.peeks != 1 {
		t.Error("peek did not reach the device hook")
	}
	// Peeks are invisible to the instrumentation counters too.
	bus.PeekU8(0x4000)
	if bus.ReadCount(0x4000) != 0 {
		t.Error("peek incremented a read counter")
	}
}

func TestBusInstrumentationCounts(t *testing.T) {
	bus := NewSystemBus()
	bus.SetInstrumentation(true)
	bus.ReadU8(0x3000, 0)
	bus.ReadU8(0x3000, 0)
	bus.ReadU8(0x3001, 0)
	if c := bus.ReadCount(0x3000); c != 2 {
		t.Errorf("count = %d, want 2", c)
	}
	if c := bus.ReadCount(0x3001); c != 1 {
		t.Errorf("count = %d, want 1", c)
	}
	bus.SetInstrumentation(false)
	bus.ReadU8(0x3000, 0)
	if c := bus.ReadCount(0x3000); c != 0 {
		t.Errorf("disabled instrumentation reported %d", c)
	}
}

func TestBusIoDispatch(t *testing.T) {
	bus := NewSystemBus()
	dev := &busTestIo{answer: 0x5A}
	if err := bus.InstallIo(dev, []uint16{0x3F8, 0x3F9}); err != nil {
		t.Fatal(err)
	}

	if v := bus.IoReadU8(0x3F8, 0); v != 0x5A {
		t.Errorf("port read %02X", v)
	}
	bus.IoWriteU8(0x3F9, 0x42, 0)
	if dev.lastPort != 0x3F9 || dev.lastWrite != 0x42 {
		t.Errorf("write dispatched to %04X/%02X", dev.lastPort, dev.lastWrite)
	}
	// Unclaimed ports float high and swallow writes.
	if v := bus.IoReadU8(0x2F8, 0); v != NoIOByte {
		t.Errorf("open port read %02X", v)
	}
	bus.IoWriteU8(0x2F8, 0x01, 0)
}

func TestBusIoPortConflict(t *testing.T) {
	bus := NewSystemBus()
	a := &busTestIo{}
	b := &busTestIo{}
	if err := bus.InstallIo(a, []uint16{0x60, 0x61}); err != nil {
		t.Fatal(err)
	}
	if err := bus.InstallIo(b, []uint16{0x61}); err == nil {
		t.Error("duplicate port claim accepted")
	}
}

func TestBusQueueReaderOverMemory(t *testing.T) {
	bus := NewSystemBus()
	bus.LoadProgram([]uint8{0xEA, 0x00, 0x80, 0x00, 0x20}, 0x7C00)
	bus.Seek(0x7C00)
	if b := bus.QReadU8(QueueFirst, ReaderEu); b != 0xEA {
		t.Errorf("opcode byte %02X", b)
	}
	if seg, ofs := bus.QPeekFarPtr(); seg != 0x2000 || ofs != 0x8000 {
		t.Errorf("far pointer %04X:%04X", seg, ofs)
	}
	if bus.Tell() != 0x7C01 {
		t.Errorf("cursor at %05X", bus.Tell())
	}
}

func TestLinearAddress(t *testing.T) {
	if a := linearAddress(0xB800, 0x0010); a != 0xB8010 {
		t.Errorf("B800:0010 = %05X", a)
	}
	// FFFF:0010 wraps to the bottom of memory.
	if a := linearAddress(0xFFFF, 0x0010); a != 0x00000 {
		t.Errorf("FFFF:0010 = %05X", a)
	}
}
