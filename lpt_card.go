// lpt_card.go - Parallel printer adapter (LPT1)
//
// Output-only data latch plus status and control registers. Printed
// bytes are captured into an in-memory spool the frontend can drain;
// the status register always reports an online, never-busy printer.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

const (
	lptPortData    = 0x378
	lptPortStatus  = 0x379
	lptPortControl = 0x37A
	lptIRQ         = 7
)

// Status bits (active levels as seen on the connector).
const (
	lptStatusNoError = 0x08
	lptStatusSelect  = 0x10
	lptStatusNoPaper = 0x20
	lptStatusAck     = 0x40
	lptStatusNotBusy = 0x80
)

type LptCard struct {
	data    uint8
	control uint8

	// strobeAck pulses IRQ7 one Run after a strobe when interrupts
	// are enabled in the control register.
	strobeAck bool

	spool []uint8
}

func NewLptCard() *LptCard {
	return &LptCard{}
}

func (l *LptCard) Ports() []uint16 {
	return []uint16{lptPortData, lptPortStatus, lptPortControl}
}

// Spool returns and clears the captured output bytes.
func (l *LptCard) Spool() []uint8 {
	s := l.spool
	l.spool = nil
	return s
}

func (l *LptCard) ReadU8(port uint16, _ uint32) uint8 {
	switch port {
	case lptPortData:
		return l.data
	case lptPortStatus:
		s := uint8(lptStatusNoError | lptStatusSelect | lptStatusNotBusy)
		if !l.strobeAck {
			s |= lptStatusAck // ACK is active low
		}
		return s
	case lptPortControl:
		return l.control
	}
	return NoIOByte
}

func (l *LptCard) WriteU8(port uint16, data uint8, _ *SystemBus, _ uint32) {
	switch port {
	case lptPortData:
		l.data = data
	case lptPortControl:
		strobe := data&0x01 != 0 && l.control&0x01 == 0
		l.control = data & 0x1F
		if strobe {
			l.spool = append(l.spool, l.data)
			l.strobeAck = true
		}
	}
}

// Run completes the ACK handshake begun by a strobe.
func (l *LptCard) Run(_ uint32, bus *SystemBus) {
	if !l.strobeAck {
		return
	}
	l.strobeAck = false
	if l.control&0x10 != 0 {
		if pic := bus.PIC(); pic != nil {
			pic.PulseInterrupt(lptIRQ)
		}
	}
}
