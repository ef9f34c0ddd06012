package main

import "testing"

// picSettle runs the INTR settle timer to completion.
func picSettle(p *PIC) {
	p.Run(4, nil)
}

func TestPICInitSequence(t *testing.T) {
	p := NewPIC()
	// ICW1 single mode with ICW4, ICW2 vector base 8, ICW4 8086 mode.
	p.WriteU8(picPortCommand, 0x13, nil, 0)
	p.WriteU8(picPortData, 0x08, nil, 0)
	p.WriteU8(picPortData, 0x01, nil, 0)

	p.RequestInterrupt(0)
	picSettle(p)
	if !p.QueryInterruptLine() {
		t.Fatal("INTR low after init")
	}
	if v := p.Acknowledge(); v != 8 {
		t.Errorf("vector = %d, want 8", v)
	}
}

func TestPICVectorBase(t *testing.T) {
	p := NewPIC()
	p.WriteU8(picPortCommand, 0x13, nil, 0)
	p.WriteU8(picPortData, 0x20, nil, 0)
	p.WriteU8(picPortData, 0x01, nil, 0)

	p.RequestInterrupt(3)
	picSettle(p)
	if v := p.Acknowledge(); v != 0x23 {
		t.Errorf("vector = %02X, want 23", v)
	}
}

func TestPICPriorityOrder(t *testing.T) {
	p := NewPIC()
	p.RequestInterrupt(4)
	p.RequestInterrupt(1)
	picSettle(p)
	if v := p.Acknowledge(); v != 8+1 {
		t.Fatalf("first vector = %d, want IRQ1", v)
	}
	// IRQ4 stays blocked while IRQ1 is in service.
	picSettle(p)
	if p.QueryInterruptLine() {
		t.Error("INTR high with a higher-priority interrupt in service")
	}
	// Non-specific EOI releases it.
	p.WriteU8(picPortCommand, 0x20, nil, 0)
	picSettle(p)
	if !p.QueryInterruptLine() {
		t.Fatal("INTR low after EOI")
	}
	if v := p.Acknowledge(); v != 8+4 {
		t.Errorf("second vector = %d, want IRQ4", v)
	}
}

func TestPICMaskBlocksRequest(t *testing.T) {
	p := NewPIC()
	p.WriteU8(picPortData, 0x02, nil, 0) // mask IRQ1
	p.RequestInterrupt(1)
	picSettle(p)
	if p.QueryInterruptLine() {
		t.Error("masked request raised INTR")
	}
	// Unmasking delivers the still-latched request.
	p.WriteU8(picPortData, 0x00, nil, 0)
	picSettle(p)
	if !p.QueryInterruptLine() {
		t.Error("INTR low after unmask")
	}
}

func TestPICEdgeTriggered(t *testing.T) {
	p := NewPIC()
	p.RequestInterrupt(2)
	picSettle(p)
	p.Acknowledge()
	p.WriteU8(picPortCommand, 0x20, nil, 0) // EOI

	// The line is still high: no new edge, no new request.
	p.RequestInterrupt(2)
	picSettle(p)
	if p.QueryInterruptLine() {
		t.Error("level resampled as a new edge")
	}
	// Dropping and raising the line latches again.
	p.ClearInterrupt(2)
	p.RequestInterrupt(2)
	picSettle(p)
	if !p.QueryInterruptLine() {
		t.Error("fresh edge not latched")
	}
}

func TestPICSpuriousInterrupt(t *testing.T) {
	p := NewPIC()
	p.RequestInterrupt(5)
	picSettle(p)
	// Mask it away between INTR and INTA.
	p.WriteU8(picPortData, 0x20, nil, 0)
	if v := p.Acknowledge(); v != 8+7 {
		t.Errorf("vector = %d, want the IR7 spurious vector", v)
	}
	if p.ISR() != 0 {
		t.Errorf("ISR = %02X after spurious INTA", p.ISR())
	}
}

func TestPICSpecificEOI(t *testing.T) {
	p := NewPIC()
	p.RequestInterrupt(6)
	picSettle(p)
	p.Acknowledge()
	if p.ISR() != 0x40 {
		t.Fatalf("ISR = %02X", p.ISR())
	}
	p.WriteU8(picPortCommand, 0x60|6, nil, 0)
	if p.ISR() != 0 {
		t.Errorf("ISR = %02X after specific EOI", p.ISR())
	}
}

func TestPICAutoEOI(t *testing.T) {
	p := NewPIC()
	p.WriteU8(picPortCommand, 0x13, nil, 0)
	p.WriteU8(picPortData, 0x08, nil, 0)
	p.WriteU8(picPortData, 0x03, nil, 0) // auto-EOI

	p.RequestInterrupt(0)
	picSettle(p)
	p.Acknowledge()
	if p.ISR() != 0 {
		t.Errorf("ISR = %02X, auto-EOI should not latch", p.ISR())
	}
}

func TestPICRegisterReads(t *testing.T) {
	p := NewPIC()
	p.RequestInterrupt(3)
	if v := p.ReadU8(picPortCommand, 0); v != 0x08 {
		t.Errorf("IRR read = %02X", v)
	}
	picSettle(p)
	p.Acknowledge()
	// OCW3 selects the ISR for command-port reads.
	p.WriteU8(picPortCommand, 0x0B, nil, 0)
	if v := p.ReadU8(picPortCommand, 0); v != 0x08 {
		t.Errorf("ISR read = %02X", v)
	}
	p.WriteU8(picPortData, 0xA5, nil, 0)
	if v := p.ReadU8(picPortData, 0); v != 0xA5 {
		t.Errorf("IMR read = %02X", v)
	}
}

func TestPICUsableWithoutInit(t *testing.T) {
	// The power-on default keeps vector base 8, so machines that skip
	// BIOS init still deliver IRQ0 to INT 8.
	p := NewPIC()
	p.RequestInterrupt(0)
	picSettle(p)
	if v := p.Acknowledge(); v != 8 {
		t.Errorf("vector = %d", v)
	}
}
