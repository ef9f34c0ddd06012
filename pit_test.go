package main

import "testing"

// pitWrite programs a channel through the register interface.
func pitWrite(p *PIT, bus *SystemBus, port uint16, data uint8) {
	p.WriteU8(port, data, bus, 0)
}

func TestPITMode0TerminalCount(t *testing.T) {
	p := NewPIT()
	pitWrite(p, nil, pitPortControl, 0x30) // ch0, lsb+msb, mode 0
	pitWrite(p, nil, pitPortCh0, 10)
	if p.Output(0) {
		t.Error("output high before terminal count")
	}
	pitWrite(p, nil, pitPortCh0, 0)

	// 10 PIT ticks = 40 CPU cycles.
	p.Run(36, nil)
	if p.Output(0) {
		t.Error("output high one tick early")
	}
	p.Run(4, nil)
	if !p.Output(0) {
		t.Error("output low at terminal count")
	}
}

func TestPITMode2RateGenerator(t *testing.T) {
	bus := NewSystemBus()
	pic := NewPIC()
	bus.pic = pic

	p := NewPIT()
	pitWrite(p, bus, pitPortControl, 0x34) // ch0, lsb+msb, mode 2
	pitWrite(p, bus, pitPortCh0, 4)
	pitWrite(p, bus, pitPortCh0, 0)

	// Each period is 4 PIT ticks; the output pulses low for one tick
	// at the end of the period, raising IRQ0 on the way back up.
	p.Run(4*4*pitClockDivisor, bus)
	if got := pic.IntsRequested; got != 4 {
		t.Errorf("IRQ0 raised %d times over 4 periods, want 4", got)
	}
	if !p.Output(0) {
		t.Error("output parked low in mode 2")
	}
}

func TestPITMode3SquareWave(t *testing.T) {
	p := NewPIT()
	pitWrite(p, nil, pitPortControl, 0x36) // ch0, lsb+msb, mode 3
	pitWrite(p, nil, pitPortCh0, 8)
	pitWrite(p, nil, pitPortCh0, 0)

	if !p.Output(0) {
		t.Fatal("mode 3 output should start high")
	}
	// Half period: count 8 decrements by two, 4 ticks per edge.
	p.Run(4*pitClockDivisor, nil)
	if p.Output(0) {
		t.Error("output high after first half period")
	}
	p.Run(4*pitClockDivisor, nil)
	if !p.Output(0) {
		t.Error("output low after full period")
	}
}

func TestPITCounterLatch(t *testing.T) {
	p := NewPIT()
	pitWrite(p, nil, pitPortControl, 0x34) // ch0, lsb+msb, mode 2
	pitWrite(p, nil, pitPortCh0, 0x00)
	pitWrite(p, nil, pitPortCh0, 0x10) // reload 0x1000
	p.Run(16*pitClockDivisor, nil)

	pitWrite(p, nil, pitPortControl, 0x00) // latch ch0
	p.Run(16*pitClockDivisor, nil)

	lo := p.ReadU8(pitPortCh0, 0)
	hi := p.ReadU8(pitPortCh0, 0)
	latched := uint16(lo) | uint16(hi)<<8
	if latched != 0x1000-16 {
		t.Errorf("latched count %04X, want %04X", latched, 0x1000-16)
	}

	// The latch releases after the full read; the next read follows
	// the live counter.
	lo = p.ReadU8(pitPortCh0, 0)
	hi = p.ReadU8(pitPortCh0, 0)
	live := uint16(lo) | uint16(hi)<<8
	if live != 0x1000-32 {
		t.Errorf("live count %04X, want %04X", live, 0x1000-32)
	}
}

func TestPITGateFreezesCounting(t *testing.T) {
	p := NewPIT()
	pitWrite(p, nil, pitPortControl, 0x34) // ch0, mode 2
	pitWrite(p, nil, pitPortCh0, 0x40)
	pitWrite(p, nil, pitPortCh0, 0x00)

	p.Run(8*pitClockDivisor, nil)
	before := p.Count(0)
	p.SetGate(0, false, nil)
	p.Run(8*pitClockDivisor, nil)
	if p.Count(0) != before {
		t.Errorf("counter moved with gate low: %04X -> %04X", before, p.Count(0))
	}

	// Rising edge reloads the counting element in mode 2.
	p.SetGate(0, true, nil)
	p.Run(pitClockDivisor, nil)
	if p.Count(0) != 0x40-1 {
		t.Errorf("count %04X after gate rise, want %04X", p.Count(0), 0x40-1)
	}
}

func TestPITZeroReloadCountsFull(t *testing.T) {
	p := NewPIT()
	pitWrite(p, nil, pitPortControl, 0x30) // ch0, mode 0
	pitWrite(p, nil, pitPortCh0, 0)
	pitWrite(p, nil, pitPortCh0, 0)
	p.Run((0x10000-1)*pitClockDivisor, nil)
	if p.Output(0) {
		t.Error("output high before 65536 ticks")
	}
	p.Run(pitClockDivisor, nil)
	if !p.Output(0) {
		t.Error("output low after 65536 ticks")
	}
}

// MSB-only programming loads the low byte of the reload as zero,
// even when an earlier control word left a stale LSB behind.
func TestPITMSBOnlyClearsLowByte(t *testing.T) {
	p := NewPIT()
	pitWrite(p, nil, pitPortControl, 0x34) // ch0, lsb+msb, mode 2
	pitWrite(p, nil, pitPortCh0, 0x34)
	pitWrite(p, nil, pitPortCh0, 0x12) // reload 0x1234

	pitWrite(p, nil, pitPortControl, 0x24) // ch0, msb only, mode 2
	pitWrite(p, nil, pitPortCh0, 0x02)
	if p.channels[0].reload != 0x0200 {
		t.Errorf("reload %04X, want 0200", p.channels[0].reload)
	}
	if p.Count(0) != 0x0200 {
		t.Errorf("count %04X, want 0200", p.Count(0))
	}
}

// Channel 1 paces DRAM refresh: every terminal count fires a request
// on DMA channel 0.
func TestPITChannel1RefreshRequest(t *testing.T) {
	bus := NewSystemBus()
	dmac := NewDMAC()
	bus.dmac = dmac

	// Program DMA channel 0 the way the BIOS does: single verify
	// transfers, auto-init, full 64K count, unmasked.
	dmac.WriteU8(0x0B, 0x50, bus, 0) // mode
	dmac.WriteU8(0x01, 0xFF, bus, 0) // count lsb
	dmac.WriteU8(0x01, 0xFF, bus, 0) // count msb
	dmac.WriteU8(0x0A, 0x00, bus, 0) // unmask

	p := NewPIT()
	pitWrite(p, bus, pitPortControl, 0x54) // ch1, lsb only, mode 2
	pitWrite(p, bus, pitPortCh1, 18)       // the BIOS value: 15.1 us

	p.Run(18*pitClockDivisor, bus)
	if !dmac.HoldRequest() {
		t.Error("no HRQ after channel 1 terminal count")
	}
	if stolen := bus.ServiceDMA(); stolen != dmaCyclesXfer {
		t.Errorf("refresh stole %d cycles, want %d", stolen, dmaCyclesXfer)
	}
	if dmac.HoldRequest() {
		t.Error("HRQ still asserted after the refresh cycle")
	}
}
