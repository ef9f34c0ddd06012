// bus.go - System bus: 1 MiB address space, MMIO dispatch, IO port
// dispatch and device tick fanout
//
// The bus is the only long-lived owner of every device. Devices never
// hold references to each other; cross-device signalling (PIT -> PIC,
// FDC -> DMAC) goes through the bus handle passed into each device's
// Run call.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"log"

	"github.com/pkg/errors"
)

const (
	MemorySize  = 0x100000 // 1 MiB
	AddressMask = 0xFFFFF  // 20-bit wrap

	// Open-bus values returned for unclaimed accesses.
	NoIOByte   = 0xFF
	NoMMIOByte = 0xFF
)

// Per-address tag bits. WriteProtect clear means RAM; set means ROM
// (writes silently dropped). MMIO set dispatches the access to the
// owning device instead of the backing buffer.
const (
	memFlagWriteProtect uint8 = 0x01
	memFlagMMIO         uint8 = 0x02
)

// IoDevice is implemented by every peripheral that claims IO ports.
// delta is a system-tick hint letting the device catch up to the CPU
// timestamp before servicing the access.
type IoDevice interface {
	ReadU8(port uint16, delta uint32) uint8
	WriteU8(port uint16, data uint8, bus *SystemBus, delta uint32)
}

// MmioDevice is implemented by devices owning a window of the memory
// map (video adapters). Reads report additional wait states.
type MmioDevice interface {
	MmioReadU8(addr uint32) (uint8, uint32)
	MmioWriteU8(addr uint32, data uint8) uint32
	MmioPeekU8(addr uint32) uint8
}

// ClockedDevice is a peripheral that advances with the CPU clock. The
// bus fans ticks out in registration order.
type ClockedDevice interface {
	Run(sysTicks uint32, bus *SystemBus)
}

type mmioRegion struct {
	start uint32
	end   uint32 // exclusive
	dev   MmioDevice
}

// SystemBus owns the flat memory image, the per-address tag array and
// every installed device. It also implements ByteQueue over raw memory
// so the decoder can disassemble from RAM for debugger views; in that
// mode no cycles accrue and MMIO devices are never disturbed.
type SystemBus struct {
	memory [MemorySize]uint8
	flags  [MemorySize]uint8

	mmio    []mmioRegion
	ioMap   map[uint16]IoDevice
	clocked []ClockedDevice

	// Concrete device handles for cross-device signalling and the
	// debugger. All may be nil on a partially configured machine.
	pic      *PIC
	pit      *PIT
	dmac     *DMAC
	ppi      *PPI
	keyboard *Keyboard
	fdc      *FDC
	hdc      *HDC
	cards    []VideoCard

	// Optional per-address access instrumentation.
	instrument bool
	readCounts []uint32

	// ByteQueue cursor for disassembly.
	cursor uint32

	// Incremented once per vertical retrace by video cards; the run
	// loop uses it to detect frame boundaries.
	retraces uint64
}

// NewSystemBus returns a bus with all 1 MiB tagged as RAM and no
// devices installed.
func NewSystemBus() *SystemBus {
	return &SystemBus{
		ioMap: make(map[uint16]IoDevice),
	}
}

// ----------------------------------------------------------------------------
// Installation
// ----------------------------------------------------------------------------

// InstallIo claims the given ports for a device. The first registered
// device wins a conflict; the conflict is a construction-time error.
func (bus *SystemBus) InstallIo(dev IoDevice, ports []uint16) error {
	for _, p := range ports {
		if prev, ok := bus.ioMap[p]; ok {
			log.Printf("Bus: IO port %04X conflict (%T vs %T)", p, prev, dev)
			return errors.Errorf("bus: duplicate IO port %04X", p)
		}
		bus.ioMap[p] = dev
	}
	return nil
}

// InstallMmio registers a contiguous [start, end) window for a device
// and tags the covered addresses. Windows may not overlap.
func (bus *SystemBus) InstallMmio(dev MmioDevice, start, end uint32) error {
	if start >= end || end > MemorySize {
		return errors.Errorf("bus: bad MMIO range %05X-%05X", start, end)
	}
	for _, r := range bus.mmio {
		if start < r.end && r.start < end {
			return errors.Errorf("bus: MMIO range %05X-%05X overlaps %05X-%05X",
				start, end, r.start, r.end)
		}
	}
	bus.mmio = append(bus.mmio, mmioRegion{start: start, end: end, dev: dev})
	for a := start; a < end; a++ {
		bus.flags[a] |= memFlagMMIO
	}
	return nil
}

// InstallClocked registers a device for tick fanout. Tick order is
// registration order.
func (bus *SystemBus) InstallClocked(dev ClockedDevice) {
	bus.clocked = append(bus.clocked, dev)
}

// SetInstrumentation enables or disables per-address read counters.
func (bus *SystemBus) SetInstrumentation(on bool) {
	bus.instrument = on
	if on && bus.readCounts == nil {
		bus.readCounts = make([]uint32, MemorySize)
	}
}

// MountROM copies bytes into memory at addr and write-protects them.
func (bus *SystemBus) MountROM(data []uint8, addr uint32) error {
	if addr+uint32(len(data)) > MemorySize {
		return errors.Errorf("bus: ROM of %d bytes does not fit at %05X", len(data), addr)
	}
	copy(bus.memory[addr:], data)
	for a := addr; a < addr+uint32(len(data)); a++ {
		bus.flags[a] |= memFlagWriteProtect
	}
	return nil
}

// ClearROMFlags removes write protection from a range, used when a ROM
// window is reloaded.
func (bus *SystemBus) ClearROMFlags(start, end uint32) {
	for a := start; a < end && a < MemorySize; a++ {
		bus.flags[a] &^= memFlagWriteProtect
	}
}

// LoadProgram copies bytes into RAM with no write protection.
func (bus *SystemBus) LoadProgram(data []uint8, addr uint32) error {
	if addr+uint32(len(data)) > MemorySize {
		return errors.Errorf("bus: program of %d bytes does not fit at %05X", len(data), addr)
	}
	copy(bus.memory[addr:], data)
	return nil
}

func (bus *SystemBus) mmioAt(addr uint32) MmioDevice {
	for i := range bus.mmio {
		if addr >= bus.mmio[i].start && addr < bus.mmio[i].end {
			return bus.mmio[i].dev
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Memory access
// ----------------------------------------------------------------------------

// ReadU8 reads one byte and returns it plus any wait states accrued.
func (bus *SystemBus) ReadU8(addr uint32, _ uint32) (uint8, uint32) {
	addr &= AddressMask
	if bus.instrument {
		bus.readCounts[addr]++
	}
	if bus.flags[addr]&memFlagMMIO != 0 {
		if dev := bus.mmioAt(addr); dev != nil {
			return dev.MmioReadU8(addr)
		}
		return NoMMIOByte, 0
	}
	return bus.memory[addr], 0
}

// ReadU16 reads a little-endian word as two byte accesses. The second
// byte wraps within the 20-bit space.
func (bus *SystemBus) ReadU16(addr uint32, cpuTicks uint32) (uint16, uint32) {
	lo, w1 := bus.ReadU8(addr, cpuTicks)
	hi, w2 := bus.ReadU8(addr+1, cpuTicks)
	return uint16(lo) | uint16(hi)<<8, w1 + w2
}

// ReadI8 reads a sign-extended byte.
func (bus *SystemBus) ReadI8(addr uint32, cpuTicks uint32) (int8, uint32) {
	v, w := bus.ReadU8(addr, cpuTicks)
	return int8(v), w
}

// ReadI16 reads a sign-extended word.
func (bus *SystemBus) ReadI16(addr uint32, cpuTicks uint32) (int16, uint32) {
	v, w := bus.ReadU16(addr, cpuTicks)
	return int16(v), w
}

// WriteU8 writes one byte, honoring ROM protection, and returns wait
// states accrued.
func (bus *SystemBus) WriteU8(addr uint32, data uint8, _ uint32) uint32 {
	addr &= AddressMask
	if bus.flags[addr]&memFlagMMIO != 0 {
		if dev := bus.mmioAt(addr); dev != nil {
			return dev.MmioWriteU8(addr, data)
		}
		return 0
	}
	if bus.flags[addr]&memFlagWriteProtect != 0 {
		return 0
	}
	bus.memory[addr] = data
	return 0
}

// WriteU16 writes a little-endian word as two byte accesses.
func (bus *SystemBus) WriteU16(addr uint32, data uint16, cpuTicks uint32) uint32 {
	w1 := bus.WriteU8(addr, uint8(data&0xFF), cpuTicks)
	w2 := bus.WriteU8(addr+1, uint8(data>>8), cpuTicks)
	return w1 + w2
}

// PeekU8 reads a byte without disturbing devices or counters. MMIO
// windows answer through the device's side-effect-free peek hook.
func (bus *SystemBus) PeekU8(addr uint32) uint8 {
	addr &= AddressMask
	if bus.flags[addr]&memFlagMMIO != 0 {
		if dev := bus.mmioAt(addr); dev != nil {
			return dev.MmioPeekU8(addr)
		}
		return NoMMIOByte
	}
	return bus.memory[addr]
}

// PeekU16 reads a word without side effects.
func (bus *SystemBus) PeekU16(addr uint32) uint16 {
	return uint16(bus.PeekU8(addr)) | uint16(bus.PeekU8(addr+1))<<8
}

// ReadCount returns the instrumentation counter for an address.
func (bus *SystemBus) ReadCount(addr uint32) uint32 {
	if !bus.instrument {
		return 0
	}
	return bus.readCounts[addr&AddressMask]
}

// ----------------------------------------------------------------------------
// IO port dispatch
// ----------------------------------------------------------------------------

// IoReadU8 dispatches a port read; unclaimed ports float high.
func (bus *SystemBus) IoReadU8(port uint16, delta uint32) uint8 {
	if dev, ok := bus.ioMap[port]; ok {
		return dev.ReadU8(port, delta)
	}
	return NoIOByte
}

// IoWriteU8 dispatches a port write; unclaimed ports swallow it.
func (bus *SystemBus) IoWriteU8(port uint16, data uint8, delta uint32) {
	if dev, ok := bus.ioMap[port]; ok {
		dev.WriteU8(port, data, bus, delta)
	}
}

// ----------------------------------------------------------------------------
// Device clocking
// ----------------------------------------------------------------------------

// Tick advances every clocked device by the given number of CPU
// cycles. Devices convert to their own clock domains internally.
func (bus *SystemBus) Tick(sysTicks uint32) {
	for _, dev := range bus.clocked {
		dev.Run(sysTicks, bus)
	}
}

// HoldRequested reports whether the DMA controller is asserting HRQ.
func (bus *SystemBus) HoldRequested() bool {
	return bus.dmac != nil && bus.dmac.HoldRequest()
}

// ServiceDMA acknowledges HLDA and lets the DMA controller perform the
// pending transfers. Returns the number of bus cycles stolen.
func (bus *SystemBus) ServiceDMA() uint32 {
	if bus.dmac == nil {
		return 0
	}
	return bus.dmac.ServiceHold(bus)
}

// CountRetrace is called by a video card at each vertical retrace.
func (bus *SystemBus) CountRetrace() {
	bus.retraces++
}

// Retraces returns the global vertical retrace counter.
func (bus *SystemBus) Retraces() uint64 {
	return bus.retraces
}

// ----------------------------------------------------------------------------
// Device accessors
// ----------------------------------------------------------------------------

func (bus *SystemBus) PIC() *PIC           { return bus.pic }
func (bus *SystemBus) PIT() *PIT           { return bus.pit }
func (bus *SystemBus) DMAC() *DMAC         { return bus.dmac }
func (bus *SystemBus) PPI() *PPI           { return bus.ppi }
func (bus *SystemBus) Keyboard() *Keyboard { return bus.keyboard }
func (bus *SystemBus) FDC() *FDC           { return bus.fdc }
func (bus *SystemBus) HDC() *HDC           { return bus.hdc }

// EnumerateVideoCards returns the installed video cards in install
// order.
func (bus *SystemBus) EnumerateVideoCards() []VideoCard {
	return bus.cards
}

// PrimaryVideoCard returns the first installed card, or nil.
func (bus *SystemBus) PrimaryVideoCard() VideoCard {
	if len(bus.cards) == 0 {
		return nil
	}
	return bus.cards[0]
}

// INTR mirrors the PIC's INT line for the CPU's boundary sampling.
func (bus *SystemBus) INTR() bool {
	return bus.pic != nil && bus.pic.QueryInterruptLine()
}

// AcknowledgeInterrupt performs the INTA handshake with the PIC and
// returns the vector placed on the bus.
func (bus *SystemBus) AcknowledgeInterrupt() uint8 {
	if bus.pic == nil {
		return SpuriousInterrupt
	}
	return bus.pic.Acknowledge()
}

// ----------------------------------------------------------------------------
// ByteQueue over raw memory (disassembly support)
// ----------------------------------------------------------------------------

func (bus *SystemBus) Seek(pos uint32) { bus.cursor = pos & AddressMask }
func (bus *SystemBus) Tell() uint32    { return bus.cursor }

func (bus *SystemBus) Wait(uint32)            {}
func (bus *SystemBus) WaitI(uint32, []uint16) {}
func (bus *SystemBus) WaitComment(string)     {}
func (bus *SystemBus) SetPC(uint16)           {}

func (bus *SystemBus) QReadU8(QueueType, QueueReader) uint8 {
	b := bus.PeekU8(bus.cursor)
	bus.cursor = (bus.cursor + 1) & AddressMask
	return b
}

func (bus *SystemBus) QReadI8(qt QueueType, r QueueReader) int8 {
	return int8(bus.QReadU8(qt, r))
}

func (bus *SystemBus) QReadU16(qt QueueType, r QueueReader) uint16 {
	lo := bus.QReadU8(qt, r)
	hi := bus.QReadU8(qt, r)
	return uint16(lo) | uint16(hi)<<8
}

func (bus *SystemBus) QReadI16(qt QueueType, r QueueReader) int16 {
	return int16(bus.QReadU16(qt, r))
}

func (bus *SystemBus) QPeekU8() uint8 {
	return bus.PeekU8(bus.cursor)
}

func (bus *SystemBus) QPeekI8() int8 {
	return int8(bus.PeekU8(bus.cursor))
}

func (bus *SystemBus) QPeekU16() uint16 {
	return bus.PeekU16(bus.cursor)
}

func (bus *SystemBus) QPeekI16() int16 {
	return int16(bus.PeekU16(bus.cursor))
}

func (bus *SystemBus) QPeekFarPtr() (uint16, uint16) {
	ofs := bus.PeekU16(bus.cursor)
	seg := bus.PeekU16(bus.cursor + 2)
	return seg, ofs
}

// linearAddress resolves a segment:offset pair with the 1 MiB wrap.
func linearAddress(seg, ofs uint16) uint32 {
	return (uint32(seg)<<4 + uint32(ofs)) & AddressMask
}
