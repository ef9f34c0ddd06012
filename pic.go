// pic.go - Intel 8259A programmable interrupt controller
//
// Single-PIC configuration as wired on the PC/XT mainboard: eight
// edge-triggered request lines, fixed priority with IR0 highest, and
// the ICW1-ICW4 initialization sequence. The INTR line presented to
// the CPU is sampled at instruction boundaries; the INTA handshake
// happens through Acknowledge.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "log"

// SpuriousInterrupt is the vector driven during an INTA cycle nobody
// answers: the data bus floats high.
const SpuriousInterrupt uint8 = 0xFF

// PIC port assignments on the XT.
const (
	picPortCommand = 0x20
	picPortData    = 0x21
)

// Initialization sequence state.
type picInitState int

const (
	picReady picInitState = iota
	picExpectICW2
	picExpectICW3
	picExpectICW4
)

type PIC struct {
	imr uint8 // mask register, 1 = masked
	irr uint8 // request register
	isr uint8 // in-service register

	lines uint8 // current level of the IR inputs, for edge detection

	vectorBase uint8
	autoEOI    bool
	expectICW4 bool
	single     bool
	initState  picInitState

	// OCW3 read selector: false = IRR (reset default), true = ISR.
	readISR bool

	// Rising INTR is delayed by a handful of cycles to model the
	// 8259's settle time; 0 means the line is stable.
	raiseDelay uint32
	intrLine   bool

	// Counters surfaced by the debugger.
	IntsRequested uint64
	IntsServiced  uint64
}

func NewPIC() *PIC {
	p := &PIC{}
	p.reset()
	return p
}

// Ports returns the IO ports the PIC claims.
func (p *PIC) Ports() []uint16 {
	return []uint16{picPortCommand, picPortData}
}

// reset returns the controller to its pre-init state. Vector base 8 is
// what the XT BIOS programs; starting there keeps a machine without
// BIOS ROM usable.
func (p *PIC) reset() {
	p.imr = 0
	p.irr = 0
	p.isr = 0
	p.vectorBase = 8
	p.autoEOI = false
	p.readISR = false
	p.initState = picReady
	p.intrLine = false
	p.raiseDelay = 0
}

// Reset is the hardware reset line.
func (p *PIC) Reset() {
	p.reset()
	p.lines = 0
}

// ----------------------------------------------------------------------------
// IRQ line interface
// ----------------------------------------------------------------------------

// RequestInterrupt drives IR line irq high. Edge-triggered: only a
// low-to-high transition latches into the IRR.
func (p *PIC) RequestInterrupt(irq uint8) {
	bit := uint8(1) << (irq & 7)
	if p.lines&bit != 0 {
		return
	}
	p.lines |= bit
	p.irr |= bit
	p.IntsRequested++
	p.updateINTR()
}

// ClearInterrupt drives IR line irq low.
func (p *PIC) ClearInterrupt(irq uint8) {
	p.lines &^= uint8(1) << (irq & 7)
	p.updateINTR()
}

// PulseInterrupt strobes IR line irq: devices like the keyboard latch
// produce edges without a sustained level.
func (p *PIC) PulseInterrupt(irq uint8) {
	p.RequestInterrupt(irq)
	p.ClearInterrupt(irq)
}

// highestPending returns the highest-priority unmasked request not
// blocked by an in-service interrupt, or -1.
func (p *PIC) highestPending() int {
	pending := p.irr &^ p.imr
	if pending == 0 {
		return -1
	}
	for irq := 0; irq < 8; irq++ {
		bit := uint8(1) << irq
		if p.isr&bit != 0 {
			// A same-or-higher priority interrupt is in service.
			return -1
		}
		if pending&bit != 0 {
			return irq
		}
	}
	return -1
}

func (p *PIC) updateINTR() {
	want := p.highestPending() >= 0
	if want && !p.intrLine {
		// Schedule the rise; Run completes it after the settle time.
		if p.raiseDelay == 0 {
			p.raiseDelay = 2
		}
		return
	}
	if !want {
		p.intrLine = false
		p.raiseDelay = 0
	}
}

// Run advances the INTR settle timer.
func (p *PIC) Run(sysTicks uint32, _ *SystemBus) {
	if p.raiseDelay == 0 {
		return
	}
	if sysTicks >= p.raiseDelay {
		p.raiseDelay = 0
		p.intrLine = p.highestPending() >= 0
	} else {
		p.raiseDelay -= sysTicks
	}
}

// QueryInterruptLine reports the current INTR level.
func (p *PIC) QueryInterruptLine() bool {
	return p.intrLine
}

// Acknowledge performs the INTA handshake: the winning request moves
// from IRR to ISR and its vector goes on the bus. If the request
// vanished between INTR and INTA the controller answers with IR7,
// the spurious interrupt.
func (p *PIC) Acknowledge() uint8 {
	irq := p.highestPending()
	if irq < 0 {
		p.intrLine = false
		return p.vectorBase + 7
	}
	bit := uint8(1) << irq
	p.irr &^= bit
	if p.autoEOI {
		// ISR bit never sticks in auto-EOI mode.
	} else {
		p.isr |= bit
	}
	p.IntsServiced++
	p.intrLine = false
	p.updateINTR()
	return p.vectorBase + uint8(irq)
}

// ----------------------------------------------------------------------------
// Register interface
// ----------------------------------------------------------------------------

func (p *PIC) ReadU8(port uint16, _ uint32) uint8 {
	switch port {
	case picPortCommand:
		if p.readISR {
			return p.isr
		}
		return p.irr
	case picPortData:
		return p.imr
	}
	return NoIOByte
}

func (p *PIC) WriteU8(port uint16, data uint8, _ *SystemBus, _ uint32) {
	if port == picPortCommand {
		switch {
		case data&0x10 != 0:
			p.writeICW1(data)
		case data&0x08 != 0:
			p.writeOCW3(data)
		default:
			p.writeOCW2(data)
		}
		return
	}

	// Data port: continues the init sequence or programs the mask.
	switch p.initState {
	case picExpectICW2:
		p.vectorBase = data & 0xF8
		if p.single {
			if p.expectICW4 {
				p.initState = picExpectICW4
			} else {
				p.initState = picReady
			}
		} else {
			p.initState = picExpectICW3
		}
	case picExpectICW3:
		// Cascade wiring byte; the XT has no slave, value ignored.
		if p.expectICW4 {
			p.initState = picExpectICW4
		} else {
			p.initState = picReady
		}
	case picExpectICW4:
		p.autoEOI = data&0x02 != 0
		if data&0x01 == 0 {
			log.Printf("PIC: ICW4 requests MCS-80 mode, ignored")
		}
		p.initState = picReady
	default:
		// OCW1: interrupt mask.
		p.imr = data
		p.updateINTR()
	}
}

func (p *PIC) writeICW1(data uint8) {
	p.reset()
	p.single = data&0x02 != 0
	p.expectICW4 = data&0x01 != 0
	if data&0x08 != 0 {
		log.Printf("PIC: level-triggered mode requested, staying edge-triggered")
	}
	p.initState = picExpectICW2
}

func (p *PIC) writeOCW2(data uint8) {
	switch data >> 5 {
	case 1: // non-specific EOI
		p.eoiHighest()
	case 3: // specific EOI
		p.isr &^= uint8(1) << (data & 7)
	case 5: // rotate on non-specific EOI: priorities stay fixed here
		p.eoiHighest()
	default:
		log.Printf("PIC: unhandled OCW2 %02X", data)
	}
	p.updateINTR()
}

// eoiHighest clears the highest-priority in-service bit.
func (p *PIC) eoiHighest() {
	for irq := 0; irq < 8; irq++ {
		bit := uint8(1) << irq
		if p.isr&bit != 0 {
			p.isr &^= bit
			return
		}
	}
}

func (p *PIC) writeOCW3(data uint8) {
	if data&0x02 != 0 {
		p.readISR = data&0x01 != 0
	}
}

// ----------------------------------------------------------------------------
// Debugger accessors
// ----------------------------------------------------------------------------

func (p *PIC) IMR() uint8 { return p.imr }
func (p *PIC) IRR() uint8 { return p.irr }
func (p *PIC) ISR() uint8 { return p.isr }
