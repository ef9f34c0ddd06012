package main

import (
	"bytes"
	"testing"
)

func TestLptStrobeSpoolsData(t *testing.T) {
	bus := NewSystemBus()
	l := NewLptCard()

	for _, b := range []uint8{'O', 'K'} {
		l.WriteU8(lptPortData, b, bus, 0)
		l.WriteU8(lptPortControl, 0x01, bus, 0) // strobe high
		l.WriteU8(lptPortControl, 0x00, bus, 0) // strobe low
		l.Run(1, bus)
	}
	if got := l.Spool(); !bytes.Equal(got, []uint8{'O', 'K'}) {
		t.Errorf("spool = %q", got)
	}
	// Spool drains on read.
	if got := l.Spool(); len(got) != 0 {
		t.Errorf("second drain returned %q", got)
	}
}

func TestLptStrobeEdgeOnly(t *testing.T) {
	bus := NewSystemBus()
	l := NewLptCard()
	l.WriteU8(lptPortData, 'A', bus, 0)
	l.WriteU8(lptPortControl, 0x01, bus, 0)
	l.WriteU8(lptPortControl, 0x01, bus, 0) // held high: no second edge
	if got := l.Spool(); len(got) != 1 {
		t.Errorf("spooled %d bytes from one strobe edge", len(got))
	}
}

func TestLptAckPulse(t *testing.T) {
	bus := NewSystemBus()
	l := NewLptCard()
	l.WriteU8(lptPortData, 'B', bus, 0)
	l.WriteU8(lptPortControl, 0x01, bus, 0)

	// ACK is active low while the handshake is pending.
	if s := l.ReadU8(lptPortStatus, 0); s&lptStatusAck != 0 {
		t.Errorf("status %02X, ACK should be asserted", s)
	}
	l.Run(1, bus)
	if s := l.ReadU8(lptPortStatus, 0); s&lptStatusAck == 0 {
		t.Errorf("status %02X, ACK should have released", s)
	}
}

func TestLptInterruptEnable(t *testing.T) {
	bus := NewSystemBus()
	pic := NewPIC()
	bus.pic = pic
	l := NewLptCard()

	// IRQ enable bit plus strobe edge.
	l.WriteU8(lptPortData, 'C', bus, 0)
	l.WriteU8(lptPortControl, 0x11, bus, 0)
	l.Run(1, bus)
	if pic.IRR()&(1<<lptIRQ) == 0 {
		t.Error("IRQ7 not pulsed")
	}

	pic.Reset()
	l.WriteU8(lptPortControl, 0x00, bus, 0)
	l.WriteU8(lptPortControl, 0x01, bus, 0) // interrupts disabled
	l.Run(1, bus)
	if pic.IRR() != 0 {
		t.Error("IRQ7 pulsed with interrupts disabled")
	}
}

func TestLptDataReadback(t *testing.T) {
	l := NewLptCard()
	l.WriteU8(lptPortData, 0x5A, nil, 0)
	if v := l.ReadU8(lptPortData, 0); v != 0x5A {
		t.Errorf("data latch reads %02X", v)
	}
	if s := l.ReadU8(lptPortStatus, 0); s&lptStatusNotBusy == 0 {
		t.Errorf("status %02X reports busy", s)
	}
}
