// pit.go - Intel 8253 programmable interval timer
//
// Three independent 16-bit down counters clocked at 1.193 MHz, one
// quarter of the 4.77 MHz CPU clock. Channel 0 drives IRQ0, channel 1
// paces DRAM refresh through DMA channel 0, channel 2 feeds the
// speaker through the PPI gate.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "log"

const (
	pitPortCh0     = 0x40
	pitPortCh1     = 0x41
	pitPortCh2     = 0x42
	pitPortControl = 0x43

	// CPU cycles per PIT tick: 14.318 MHz / 12 vs / 3.
	pitClockDivisor = 4
)

// Access mode programmed per channel via the control word.
type pitAccess int

const (
	pitAccessLatch pitAccess = iota
	pitAccessLSB
	pitAccessMSB
	pitAccessLSBMSB
)

type pitChannel struct {
	mode   uint8
	access pitAccess
	bcd    bool

	reload uint16
	count  uint16
	armed  bool // counting element loaded and running
	gate   bool
	output bool

	// Split 16-bit access bookkeeping.
	writeHighNext bool
	readHighNext  bool
	latch         uint16
	latched       bool
}

// reloadValue treats a programmed 0 as 65536.
func (ch *pitChannel) reloadValue() uint32 {
	if ch.reload == 0 {
		return 0x10000
	}
	return uint32(ch.reload)
}

type PIT struct {
	channels [3]pitChannel

	// Fractional CPU-to-PIT clock accumulator.
	tickAccum uint32

	// Rising edges on channel outputs observed during the last Run,
	// consumed by the bus-side wiring.
	Ticks uint64
}

func NewPIT() *PIT {
	p := &PIT{}
	for i := range p.channels {
		// Gates 0 and 1 are strapped high on the mainboard; gate 2
		// comes from PPI port B bit 0.
		p.channels[i].gate = true
		p.channels[i].output = true
	}
	return p
}

// Reset returns every channel to its unprogrammed state.
func (p *PIT) Reset() {
	for i := range p.channels {
		p.channels[i] = pitChannel{gate: true, output: true}
	}
	// Gate 2 follows PPI port B, which resets low.
	p.channels[2].gate = false
	p.tickAccum = 0
}

func (p *PIT) Ports() []uint16 {
	return []uint16{pitPortCh0, pitPortCh1, pitPortCh2, pitPortControl}
}

// SetGate drives a channel's gate input. Modes 2 and 3 reload on the
// rising edge; a low gate freezes counting.
func (p *PIT) SetGate(ch int, level bool, bus *SystemBus) {
	c := &p.channels[ch]
	rising := level && !c.gate
	c.gate = level
	if !level {
		switch c.mode {
		case 2, 3:
			// Output goes high immediately when the gate drops.
			p.setOutput(ch, true, bus)
		}
		return
	}
	if rising && c.armed {
		c.count = uint16(c.reloadValue())
	}
}

// Output returns the current level of a channel's OUT pin.
func (p *PIT) Output(ch int) bool {
	return p.channels[ch].output
}

// Count returns the live counting element, for the debugger.
func (p *PIT) Count(ch int) uint16 {
	return p.channels[ch].count
}

// ----------------------------------------------------------------------------
// Register interface
// ----------------------------------------------------------------------------

func (p *PIT) ReadU8(port uint16, _ uint32) uint8 {
	if port == pitPortControl {
		return NoIOByte // control word is write-only on the 8253
	}
	ch := &p.channels[port-pitPortCh0]

	v := ch.count
	if ch.latched {
		v = ch.latch
	}
	switch ch.access {
	case pitAccessLSB:
		ch.latched = false
		return uint8(v)
	case pitAccessMSB:
		ch.latched = false
		return uint8(v >> 8)
	default: // LSB then MSB
		if ch.readHighNext {
			ch.readHighNext = false
			ch.latched = false
			return uint8(v >> 8)
		}
		ch.readHighNext = true
		return uint8(v)
	}
}

func (p *PIT) WriteU8(port uint16, data uint8, bus *SystemBus, _ uint32) {
	if port == pitPortControl {
		p.writeControl(data)
		return
	}
	idx := int(port - pitPortCh0)
	ch := &p.channels[idx]

	switch ch.access {
	case pitAccessLSB:
		ch.reload = ch.reload&0xFF00 | uint16(data)
		p.loadChannel(idx, bus)
	case pitAccessMSB:
		// MSB-only programming clears the low byte of the reload.
		ch.reload = uint16(data) << 8
		p.loadChannel(idx, bus)
	default:
		if ch.writeHighNext {
			ch.reload = ch.reload&0x00FF | uint16(data)<<8
			ch.writeHighNext = false
			p.loadChannel(idx, bus)
		} else {
			ch.reload = ch.reload&0xFF00 | uint16(data)
			ch.writeHighNext = true
			// Mode 0 drops its output as soon as the LSB arrives.
			if ch.mode == 0 {
				p.setOutput(idx, false, bus)
				ch.armed = false
			}
		}
	}
}

func (p *PIT) writeControl(data uint8) {
	sel := data >> 6
	if sel == 3 {
		// 8254 read-back command; the 8253 ignores it.
		log.Printf("PIT: read-back command on an 8253, ignored")
		return
	}
	ch := &p.channels[sel]
	access := pitAccess((data >> 4) & 3)
	if access == pitAccessLatch {
		if !ch.latched {
			ch.latch = ch.count
			ch.latched = true
		}
		return
	}

	ch.access = access
	ch.mode = (data >> 1) & 7
	if ch.mode > 5 {
		ch.mode -= 4 // modes 6 and 7 alias 2 and 3
	}
	ch.bcd = data&1 != 0
	if ch.bcd {
		log.Printf("PIT: BCD mode requested on channel %d, counting binary", sel)
	}
	ch.armed = false
	ch.writeHighNext = false
	ch.readHighNext = false
	ch.latched = false
	// Control word sets the initial output level for the mode.
	ch.output = ch.mode != 0
}

// loadChannel transfers the reload value into the counting element.
func (p *PIT) loadChannel(idx int, bus *SystemBus) {
	ch := &p.channels[idx]
	ch.count = uint16(ch.reloadValue())
	ch.armed = true
	if ch.mode == 0 {
		p.setOutput(idx, false, bus)
	}
}

// ----------------------------------------------------------------------------
// Clocking
// ----------------------------------------------------------------------------

// Run converts elapsed CPU cycles into PIT ticks.
func (p *PIT) Run(sysTicks uint32, bus *SystemBus) {
	p.tickAccum += sysTicks
	for p.tickAccum >= pitClockDivisor {
		p.tickAccum -= pitClockDivisor
		p.tickChannels(bus)
	}
}

func (p *PIT) tickChannels(bus *SystemBus) {
	p.Ticks++
	for idx := range p.channels {
		ch := &p.channels[idx]
		if !ch.armed || !ch.gate {
			continue
		}
		switch ch.mode {
		case 0: // interrupt on terminal count
			ch.count--
			if ch.count == 0 {
				p.setOutput(idx, true, bus)
				// Keeps counting through zero but output stays high.
			}
		case 1: // hardware one-shot (simplified: software trigger)
			ch.count--
			if ch.count == 0 {
				p.setOutput(idx, true, bus)
				ch.armed = false
			}
		case 2: // rate generator
			ch.count--
			switch ch.count {
			case 1:
				p.setOutput(idx, false, bus)
			case 0:
				ch.count = uint16(ch.reloadValue())
				p.setOutput(idx, true, bus)
			}
		case 3: // square wave
			// Decrements by two, toggling at each half period.
			dec := uint16(2)
			if ch.count == 1 {
				dec = 1
			}
			ch.count -= dec
			if ch.count == 0 {
				ch.count = uint16(ch.reloadValue())
				p.setOutput(idx, !ch.output, bus)
			}
		case 4, 5: // software/hardware triggered strobe
			ch.count--
			if ch.count == 0 {
				p.setOutput(idx, false, bus)
				ch.armed = false
			} else {
				p.setOutput(idx, true, bus)
			}
		}
	}
}

// setOutput drives a channel's OUT pin and wires the mainboard side
// effects: IRQ0 from channel 0 and the refresh DREQ from channel 1.
func (p *PIT) setOutput(idx int, level bool, bus *SystemBus) {
	ch := &p.channels[idx]
	if ch.output == level {
		return
	}
	ch.output = level
	if bus == nil {
		return
	}
	switch idx {
	case 0:
		if pic := bus.PIC(); pic != nil {
			if level {
				pic.RequestInterrupt(0)
			} else {
				pic.ClearInterrupt(0)
			}
		}
	case 1:
		if level {
			if dmac := bus.DMAC(); dmac != nil {
				dmac.RequestService(0)
			}
		}
	}
}
