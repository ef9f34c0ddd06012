// dmac.go - Intel 8237 DMA controller with XT page registers
//
// Four channels. Channel 0 performs the DRAM refresh dummy reads paced
// by PIT channel 1; channel 2 belongs to the floppy controller and
// channel 3 to the hard disk controller. Devices exchange bytes
// through the DmaDevice hooks; the CPU grants the bus between
// instruction steps via HoldRequest/ServiceHold.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "log"

// DmaDevice is the peripheral side of a DMA channel.
type DmaDevice interface {
	// DmaReadU8 supplies the next byte for a memory-write transfer.
	DmaReadU8() uint8
	// DmaWriteU8 consumes a byte from a memory-read transfer.
	DmaWriteU8(data uint8)
	// DmaComplete signals terminal count.
	DmaComplete()
}

// Transfer types from the mode register.
const (
	dmaVerify      = 0
	dmaWriteMem    = 1 // device -> memory
	dmaReadMem     = 2 // memory -> device
	dmaCyclesXfer  = 4 // bus cycles stolen per byte
	dmaChannelMask = 3
)

type dmaChannel struct {
	baseAddr  uint16
	baseCount uint16
	curAddr   uint16
	curCount  uint16

	mode     uint8 // raw mode register bits
	page     uint8
	masked   bool
	request  bool
	tc       bool // reached terminal count since last status read
	autoInit bool

	dev DmaDevice
}

func (ch *dmaChannel) transferType() uint8 { return (ch.mode >> 2) & 3 }
func (ch *dmaChannel) decrement() bool     { return ch.mode&0x20 != 0 }

type DMAC struct {
	channels [4]dmaChannel

	command  uint8
	flipFlop bool

	// Diagnostic latch at port 0x80, surfaced as the "POST code".
	diagLatch uint8

	ServicedBytes uint64
}

func NewDMAC() *DMAC {
	d := &DMAC{}
	for i := range d.channels {
		d.channels[i].masked = true
	}
	return d
}

// Ports returns the controller and page register ports.
func (d *DMAC) Ports() []uint16 {
	ports := make([]uint16, 0, 20)
	for p := uint16(0x00); p <= 0x0F; p++ {
		ports = append(ports, p)
	}
	return append(ports, 0x80, 0x81, 0x82, 0x83)
}

// AttachDevice wires a peripheral to a channel.
func (d *DMAC) AttachDevice(ch int, dev DmaDevice) {
	d.channels[ch&dmaChannelMask].dev = dev
}

// RequestService latches DREQ for a channel.
func (d *DMAC) RequestService(ch int) {
	d.channels[ch&dmaChannelMask].request = true
}

// HoldRequest reports whether any unmasked channel wants the bus.
func (d *DMAC) HoldRequest() bool {
	if d.command&0x04 != 0 { // controller disabled
		return false
	}
	for i := range d.channels {
		if d.channels[i].request && !d.channels[i].masked {
			return true
		}
	}
	return false
}

// ServiceHold runs one transfer unit for each requesting channel and
// returns the number of bus cycles stolen from the CPU.
func (d *DMAC) ServiceHold(bus *SystemBus) uint32 {
	var stolen uint32
	for i := range d.channels {
		ch := &d.channels[i]
		if !ch.request || ch.masked {
			continue
		}
		stolen += d.transferOne(uint8(i), bus)
	}
	return stolen
}

// transferOne moves a single byte (or performs a refresh dummy read)
// and advances the channel state.
func (d *DMAC) transferOne(idx uint8, bus *SystemBus) uint32 {
	ch := &d.channels[idx]
	addr := uint32(ch.page)<<16 | uint32(ch.curAddr)

	switch ch.transferType() {
	case dmaVerify:
		// Refresh: the read happens, the data goes nowhere.
		bus.ReadU8(addr, 0)
	case dmaWriteMem:
		var data uint8 = NoIOByte
		if ch.dev != nil {
			data = ch.dev.DmaReadU8()
		}
		bus.WriteU8(addr, data, 0)
	case dmaReadMem:
		data, _ := bus.ReadU8(addr, 0)
		if ch.dev != nil {
			ch.dev.DmaWriteU8(data)
		}
	default:
		log.Printf("DMA: channel %d in cascade mode, ignored", idx)
	}
	d.ServicedBytes++

	if ch.decrement() {
		ch.curAddr--
	} else {
		ch.curAddr++
	}

	if ch.curCount == 0 {
		// Terminal count.
		ch.tc = true
		ch.request = false
		if ch.autoInit {
			ch.curAddr = ch.baseAddr
			ch.curCount = ch.baseCount
		} else {
			ch.masked = true
		}
		if ch.dev != nil {
			ch.dev.DmaComplete()
		}
	} else {
		ch.curCount--
		// Single transfer mode drops DREQ after each byte; demand
		// and block modes keep going on the next grant either way.
		if ch.mode&0xC0 == 0x40 {
			ch.request = false
		}
	}
	return dmaCyclesXfer
}

// ----------------------------------------------------------------------------
// Register interface
// ----------------------------------------------------------------------------

func (d *DMAC) ReadU8(port uint16, _ uint32) uint8 {
	switch {
	case port <= 0x07:
		ch := &d.channels[(port>>1)&dmaChannelMask]
		var v uint16
		if port&1 == 0 {
			v = ch.curAddr
		} else {
			v = ch.curCount
		}
		if d.latchFlip() {
			return uint8(v >> 8)
		}
		return uint8(v)
	case port == 0x08:
		return d.status()
	case port >= 0x80 && port <= 0x83:
		return d.pageRead(port)
	}
	return NoIOByte
}

func (d *DMAC) WriteU8(port uint16, data uint8, _ *SystemBus, _ uint32) {
	switch {
	case port <= 0x07:
		ch := &d.channels[(port>>1)&dmaChannelMask]
		high := d.latchFlip()
		if port&1 == 0 {
			ch.baseAddr = mergeByte(ch.baseAddr, data, high)
			ch.curAddr = ch.baseAddr
		} else {
			ch.baseCount = mergeByte(ch.baseCount, data, high)
			ch.curCount = ch.baseCount
		}
	case port == 0x08:
		d.command = data
	case port == 0x09:
		ch := &d.channels[data&dmaChannelMask]
		ch.request = data&0x04 != 0
	case port == 0x0A:
		ch := &d.channels[data&dmaChannelMask]
		ch.masked = data&0x04 != 0
	case port == 0x0B:
		ch := &d.channels[data&dmaChannelMask]
		ch.mode = data
		ch.autoInit = data&0x10 != 0
	case port == 0x0C:
		d.flipFlop = false
	case port == 0x0D:
		d.masterClear()
	case port == 0x0E:
		for i := range d.channels {
			d.channels[i].masked = false
		}
	case port == 0x0F:
		for i := range d.channels {
			d.channels[i].masked = data&(1<<i) != 0
		}
	case port >= 0x80 && port <= 0x83:
		d.pageWrite(port, data)
	}
}

// latchFlip returns the current byte selector and toggles it.
func (d *DMAC) latchFlip() bool {
	high := d.flipFlop
	d.flipFlop = !d.flipFlop
	return high
}

func mergeByte(v uint16, data uint8, high bool) uint16 {
	if high {
		return v&0x00FF | uint16(data)<<8
	}
	return v&0xFF00 | uint16(data)
}

// status packs TC bits (cleared on read) and request bits.
func (d *DMAC) status() uint8 {
	var s uint8
	for i := range d.channels {
		if d.channels[i].tc {
			s |= 1 << i
			d.channels[i].tc = false
		}
		if d.channels[i].request {
			s |= 1 << (i + 4)
		}
	}
	return s
}

// Reset is the hardware reset line: a master clear plus cleared page
// registers.
func (d *DMAC) Reset() {
	d.masterClear()
	for i := range d.channels {
		d.channels[i].baseAddr = 0
		d.channels[i].baseCount = 0
		d.channels[i].curAddr = 0
		d.channels[i].curCount = 0
		d.channels[i].mode = 0
		d.channels[i].page = 0
		d.channels[i].autoInit = false
	}
}

func (d *DMAC) masterClear() {
	d.command = 0
	d.flipFlop = false
	for i := range d.channels {
		d.channels[i].masked = true
		d.channels[i].request = false
		d.channels[i].tc = false
	}
}

// XT page register file: port 0x80 is the POST diagnostic latch, the
// rest map to channels 2, 3 and 1. Channel 0 never leaves page 0.
func (d *DMAC) pageWrite(port uint16, data uint8) {
	switch port {
	case 0x80:
		d.diagLatch = data
		log.Printf("DMA: POST code %02X", data)
	case 0x81:
		d.channels[2].page = data & 0x0F
	case 0x82:
		d.channels[3].page = data & 0x0F
	case 0x83:
		d.channels[1].page = data & 0x0F
	}
}

func (d *DMAC) pageRead(port uint16) uint8 {
	switch port {
	case 0x80:
		return d.diagLatch
	case 0x81:
		return d.channels[2].page
	case 0x82:
		return d.channels[3].page
	case 0x83:
		return d.channels[1].page
	}
	return NoIOByte
}

// ChannelAddress returns the 20-bit address a channel points at, for
// the debugger.
func (d *DMAC) ChannelAddress(ch int) uint32 {
	c := &d.channels[ch&dmaChannelMask]
	return uint32(c.page)<<16 | uint32(c.curAddr)
}

// ChannelCount returns a channel's remaining transfer count.
func (d *DMAC) ChannelCount(ch int) uint16 {
	return d.channels[ch&dmaChannelMask].curCount
}
