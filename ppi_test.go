package main

import "testing"

func TestPPISwitchBanks(t *testing.T) {
	bus := NewSystemBus()
	p := NewPPI()
	p.SetSwitches(0x6D)

	// Port C shows the low nibble with PB2 clear, high with PB2 set.
	p.WriteU8(ppiPortB, 0x00, bus, 0)
	if got := p.ReadU8(ppiPortC, 0); got != 0x0D {
		t.Errorf("low bank = %02X, want 0D", got)
	}
	p.WriteU8(ppiPortB, ppiBSwitchSelect, bus, 0)
	if got := p.ReadU8(ppiPortC, 0); got != 0x06 {
		t.Errorf("high bank = %02X, want 06", got)
	}
}

func TestPPIPortARoutes(t *testing.T) {
	bus := NewSystemBus()
	p := NewPPI()
	p.SetSwitches(0x2D)
	p.SetScancodeSource(func() uint8 { return 0x1C })

	// PB7 high: port A shows the DIP switches.
	p.WriteU8(ppiPortB, ppiBKeyboardClear, bus, 0)
	if got := p.ReadU8(ppiPortA, 0); got != 0x2D {
		t.Errorf("port A with PB7 high = %02X, want switches", got)
	}
	// PB7 low: port A shows the keyboard latch.
	p.WriteU8(ppiPortB, 0x00, bus, 0)
	if got := p.ReadU8(ppiPortA, 0); got != 0x1C {
		t.Errorf("port A with PB7 low = %02X, want scancode", got)
	}
}

func TestPPITimer2Gate(t *testing.T) {
	bus := NewSystemBus()
	pit := NewPIT()
	bus.pit = pit
	pit.Reset() // gate 2 follows port B, low at reset

	p := NewPPI()
	pit.WriteU8(pitPortControl, 0xB6, bus, 0) // ch2 square wave
	pit.WriteU8(pitPortCh2, 0x04, bus, 0)
	pit.WriteU8(pitPortCh2, 0x00, bus, 0)

	pit.Run(2*pitClockDivisor, bus)
	if pit.Count(2) != 4 {
		t.Errorf("channel 2 counted with gate low: %04X", pit.Count(2))
	}

	p.WriteU8(ppiPortB, ppiBTimer2Gate, bus, 0)
	pit.Run(pitClockDivisor, bus)
	if pit.Count(2) != 2 {
		t.Errorf("channel 2 count %04X after gate high, want 2", pit.Count(2))
	}
}

func TestKeyboardLatchAndIRQ1(t *testing.T) {
	bus := NewSystemBus()
	pic := NewPIC()
	bus.pic = pic
	kb := NewKeyboard()
	bus.keyboard = kb

	p := NewPPI()
	p.SetScancodeSource(kb.Latch)
	bus.ppi = p

	kb.KeyPress(0x1E) // 'A' make
	kb.Run(1, bus)
	if pic.IRR()&0x02 == 0 {
		t.Error("IRQ1 not raised on scancode delivery")
	}
	if got := p.ReadU8(ppiPortA, 0); got != 0x1E {
		t.Errorf("port A = %02X, want 1E", got)
	}

	// The BIOS handler strobes PB7 to clear the latch.
	p.WriteU8(ppiPortB, ppiBKeyboardClear, bus, 0)
	p.WriteU8(ppiPortB, 0x00, bus, 0)
	if got := p.ReadU8(ppiPortA, 0); got != 0 {
		t.Errorf("latch not cleared: %02X", got)
	}

	// The break code waits out the delivery spacing, then follows.
	kb.KeyRelease(0x1E)
	kb.Run(1, bus)
	if got := p.ReadU8(ppiPortA, 0); got != 0 {
		t.Errorf("break code delivered inside the spacing window: %02X", got)
	}
	kb.Run(200, bus)
	if got := p.ReadU8(ppiPortA, 0); got != 0x9E {
		t.Errorf("port A = %02X, want 9E", got)
	}
}

func TestKeyboardQueueBounded(t *testing.T) {
	bus := NewSystemBus()
	kb := NewKeyboard()
	for i := 0; i < keyboardQueueDepth+10; i++ {
		kb.KeyPress(uint8(i + 1))
	}
	delivered := 0
	for i := 0; i < keyboardQueueDepth+10; i++ {
		kb.Run(200, bus)
		if kb.Latch() != 0 {
			delivered++
			kb.ClearLatch(bus)
		}
	}
	if delivered != keyboardQueueDepth {
		t.Errorf("delivered %d scancodes, want %d", delivered, keyboardQueueDepth)
	}
}
