// ppi.go - Intel 8255 programmable peripheral interface
//
// On the XT mainboard the PPI is mostly a pin-header: port A reads
// the keyboard scancode latch or the configuration DIP switches,
// port B is the control output latch (speaker, timer 2 gate, keyboard
// clock and clear), port C reads the switch banks and status lines.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "log"

const (
	ppiPortA       = 0x60
	ppiPortB       = 0x61
	ppiPortC       = 0x62
	ppiPortControl = 0x63
)

// Port B output bits.
const (
	ppiBTimer2Gate    = 0x01
	ppiBSpeakerData   = 0x02
	ppiBSwitchSelect  = 0x04 // selects which switch bank port C shows
	ppiBCassetteMotor = 0x08
	ppiBEnableRAMPar  = 0x10
	ppiBEnableIOCheck = 0x20
	ppiBKeyboardClock = 0x40
	ppiBKeyboardClear = 0x80
)

type PPI struct {
	portB   uint8
	control uint8

	// Configuration DIP switches (SW1). The default claims one
	// floppy drive, 256K banks populated and an 80-column CGA.
	switches uint8

	// scancode supplies the keyboard latch for port A reads; wired by
	// machine construction so the PPI needs no device reference.
	scancode func() uint8
}

func NewPPI() *PPI {
	return &PPI{
		control:  0x99, // A and C in, B out: the BIOS mode
		switches: 0x2D,
	}
}

func (p *PPI) Ports() []uint16 {
	return []uint16{ppiPortA, ppiPortB, ppiPortC, ppiPortControl}
}

// SetSwitches overrides the DIP switch bank, used by machine
// configuration to describe installed hardware.
func (p *PPI) SetSwitches(v uint8) {
	p.switches = v
}

// SetScancodeSource wires the keyboard latch into port A.
func (p *PPI) SetScancodeSource(f func() uint8) {
	p.scancode = f
}

// PortB returns the current output latch, for the debugger and the
// speaker wiring.
func (p *PPI) PortB() uint8 {
	return p.portB
}

// SpeakerOn reports whether both the data bit and timer 2 output
// would drive the speaker cone.
func (p *PPI) SpeakerOn(bus *SystemBus) bool {
	if p.portB&ppiBSpeakerData == 0 {
		return false
	}
	pit := bus.PIT()
	return pit != nil && pit.Output(2)
}

func (p *PPI) ReadU8(port uint16, _ uint32) uint8 {
	switch port {
	case ppiPortA:
		if p.portB&ppiBKeyboardClear != 0 {
			// Clear held high: port A shows the switches.
			return p.switches
		}
		if p.scancode != nil {
			return p.scancode()
		}
		return 0
	case ppiPortB:
		return p.portB
	case ppiPortC:
		if p.portB&ppiBSwitchSelect != 0 {
			return p.switches >> 4
		}
		return p.switches & 0x0F
	case ppiPortControl:
		return p.control
	}
	return NoIOByte
}

func (p *PPI) WriteU8(port uint16, data uint8, bus *SystemBus, _ uint32) {
	switch port {
	case ppiPortB:
		old := p.portB
		p.portB = data
		if pit := bus.PIT(); pit != nil && (old^data)&ppiBTimer2Gate != 0 {
			pit.SetGate(2, data&ppiBTimer2Gate != 0, bus)
		}
		if kb := bus.Keyboard(); kb != nil {
			if data&ppiBKeyboardClear != 0 {
				kb.ClearLatch(bus)
			}
		}
	case ppiPortControl:
		if data&0x80 != 0 {
			p.control = data
		} else {
			// Bit set/reset on port C is unused on the mainboard.
			log.Printf("PPI: port C bit set/reset %02X ignored", data)
		}
	}
}
