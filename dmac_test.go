package main

import "testing"

// scriptedDmaDevice feeds a canned byte stream into memory-write
// transfers and records everything a memory-read transfer hands it.
type scriptedDmaDevice struct {
	supply   []uint8
	pos      int
	received []uint8
	complete int
}

func (d *scriptedDmaDevice) DmaReadU8() uint8 {
	if d.pos >= len(d.supply) {
		return 0
	}
	b := d.supply[d.pos]
	d.pos++
	return b
}

func (d *scriptedDmaDevice) DmaWriteU8(data uint8) {
	d.received = append(d.received, data)
}

func (d *scriptedDmaDevice) DmaComplete() {
	d.complete++
}

// dmaProgram writes a channel's mode, address, count and page the way
// a driver would, then unmasks it.
func dmaProgram(d *DMAC, ch uint8, mode uint8, addr uint32, count uint16) {
	d.WriteU8(0x0C, 0, nil, 0) // clear flip-flop
	d.WriteU8(0x0B, mode|ch, nil, 0)
	base := uint16(port16(ch, false))
	d.WriteU8(base, uint8(addr), nil, 0)
	d.WriteU8(base, uint8(addr>>8), nil, 0)
	d.WriteU8(base+1, uint8(count), nil, 0)
	d.WriteU8(base+1, uint8(count>>8), nil, 0)
	switch ch {
	case 1:
		d.WriteU8(0x83, uint8(addr>>16), nil, 0)
	case 2:
		d.WriteU8(0x81, uint8(addr>>16), nil, 0)
	case 3:
		d.WriteU8(0x82, uint8(addr>>16), nil, 0)
	}
	d.WriteU8(0x0A, ch, nil, 0) // unmask
}

func port16(ch uint8, count bool) uint16 {
	p := uint16(ch) * 2
	if count {
		p++
	}
	return p
}

func TestDMADeviceToMemory(t *testing.T) {
	bus := NewSystemBus()
	d := NewDMAC()
	bus.dmac = d

	dev := &scriptedDmaDevice{supply: []uint8{0xDE, 0xAD, 0xBE, 0xEF}}
	d.AttachDevice(2, dev)
	// Block mode (mode bits 10), write transfer: device -> memory.
	dmaProgram(d, 2, 0x84, 0x23000, 3) // count 3 = 4 bytes
	d.RequestService(2)

	for i := 0; i < 4; i++ {
		if !d.HoldRequest() {
			t.Fatalf("HRQ dropped after %d bytes", i)
		}
		bus.ServiceDMA()
	}
	for i, want := range dev.supply {
		if got := bus.PeekU8(0x23000 + uint32(i)); got != want {
			t.Errorf("memory[+%d] = %02X, want %02X", i, got, want)
		}
	}
	if dev.complete != 1 {
		t.Errorf("terminal count signalled %d times", dev.complete)
	}
	if d.HoldRequest() {
		t.Error("HRQ asserted past terminal count")
	}

	// TC bit for channel 2 reads back once, then clears.
	if s := d.ReadU8(0x08, 0); s&0x04 == 0 {
		t.Errorf("status %02X missing channel 2 TC", s)
	}
	if s := d.ReadU8(0x08, 0); s&0x04 != 0 {
		t.Errorf("TC bit not cleared on read: %02X", s)
	}
}

func TestDMAMemoryToDevice(t *testing.T) {
	bus := NewSystemBus()
	d := NewDMAC()
	bus.dmac = d

	payload := []uint8{0x01, 0x02, 0x03}
	if err := bus.LoadProgram(payload, 0x1500); err != nil {
		t.Fatal(err)
	}
	dev := &scriptedDmaDevice{}
	d.AttachDevice(3, dev)
	dmaProgram(d, 3, 0x88, 0x1500, 2) // block mode, read transfer
	d.RequestService(3)

	for d.HoldRequest() {
		bus.ServiceDMA()
	}
	if len(dev.received) != 3 {
		t.Fatalf("device received %d bytes, want 3", len(dev.received))
	}
	for i, want := range payload {
		if dev.received[i] != want {
			t.Errorf("byte %d = %02X, want %02X", i, dev.received[i], want)
		}
	}
}

func TestDMAPageRegisterAddressing(t *testing.T) {
	bus := NewSystemBus()
	d := NewDMAC()
	bus.dmac = d

	dev := &scriptedDmaDevice{supply: []uint8{0xA5}}
	d.AttachDevice(2, dev)
	dmaProgram(d, 2, 0x84, 0x9F00F, 0) // page 9, offset F00F
	d.RequestService(2)
	bus.ServiceDMA()

	if got := bus.PeekU8(0x9F00F); got != 0xA5 {
		t.Errorf("byte landed at the wrong address: %02X", got)
	}
	if d.ChannelAddress(2) != 0x9F010 {
		t.Errorf("channel address %05X, want 9F010", d.ChannelAddress(2))
	}
}

func TestDMAAutoInit(t *testing.T) {
	bus := NewSystemBus()
	d := NewDMAC()
	bus.dmac = d

	dev := &scriptedDmaDevice{supply: []uint8{1, 2, 1, 2}}
	d.AttachDevice(2, dev)
	dmaProgram(d, 2, 0x94, 0x40000, 1) // block + auto-init, 2 bytes
	d.RequestService(2)
	for d.HoldRequest() {
		bus.ServiceDMA()
	}

	// Auto-init reloads address and count instead of masking.
	if d.ChannelAddress(2) != 0x40000 {
		t.Errorf("address not reloaded: %05X", d.ChannelAddress(2))
	}
	if d.ChannelCount(2) != 1 {
		t.Errorf("count not reloaded: %04X", d.ChannelCount(2))
	}
	d.RequestService(2)
	if !d.HoldRequest() {
		t.Error("auto-init channel masked after terminal count")
	}
}

func TestDMAMasterClear(t *testing.T) {
	d := NewDMAC()
	dmaProgram(d, 2, 0x84, 0x1000, 10)
	d.RequestService(2)
	d.WriteU8(0x0D, 0, nil, 0)
	if d.HoldRequest() {
		t.Error("HRQ survives master clear")
	}
}

func TestDMAFlipFlopReset(t *testing.T) {
	d := NewDMAC()
	d.WriteU8(0x0C, 0, nil, 0)
	d.WriteU8(0x04, 0x34, nil, 0) // channel 2 address lsb
	// Clearing the flip-flop mid-pair restarts at the low byte.
	d.WriteU8(0x0C, 0, nil, 0)
	d.WriteU8(0x04, 0x12, nil, 0)
	d.WriteU8(0x04, 0x56, nil, 0)
	if got := d.ChannelAddress(2); got != 0x5612 {
		t.Errorf("channel address %04X, want 5612", got)
	}
}
