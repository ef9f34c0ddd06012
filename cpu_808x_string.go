// cpu_808x_string.go - String instructions and REP prefix handling
//
// REP runs one iteration per executeNext call and rewinds IP to the
// prefix byte when more iterations remain. Interrupts are therefore
// serviced between iterations and the saved CS:IP re-enters the
// prefixed instruction, exactly as the hardware resumes.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// stringDelta returns the per-element pointer adjustment for the
// current direction flag.
func (c *CPU) stringDelta(word bool) uint16 {
	d := uint16(1)
	if word {
		d = 2
	}
	if c.getFlag(FlagDF) {
		return -d
	}
	return d
}

// srcSegment resolves the DS-overridable source segment of a string
// op. The ES destination is never overridable.
func (c *CPU) srcSegment() SegmentRegister {
	if c.i.Segment != SegmentNone {
		c.cycles(2)
		return c.i.Segment
	}
	return SegmentDS
}

func (c *CPU) opString() {
	rep := c.i.Prefixes&(PrefixRep|PrefixRepne) != 0
	if rep {
		if c.CX == 0 {
			c.repActive = false
			return
		}
	}

	m := c.i.Mnemonic
	var cmpDone bool
	switch m {
	case MnMOVSB:
		v := c.biuReadU8(c.srcSegment(), c.SI)
		c.biuWriteU8(SegmentES, c.DI, v)
		d := c.stringDelta(false)
		c.SI += d
		c.DI += d
	case MnMOVSW:
		v := c.biuReadU16(c.srcSegment(), c.SI)
		c.biuWriteU16(SegmentES, c.DI, v)
		d := c.stringDelta(true)
		c.SI += d
		c.DI += d
	case MnCMPSB:
		a := c.biuReadU8(c.srcSegment(), c.SI)
		b := c.biuReadU8(SegmentES, c.DI)
		c.sub8(a, b, false)
		d := c.stringDelta(false)
		c.SI += d
		c.DI += d
		cmpDone = true
	case MnCMPSW:
		a := c.biuReadU16(c.srcSegment(), c.SI)
		b := c.biuReadU16(SegmentES, c.DI)
		c.sub16(a, b, false)
		d := c.stringDelta(true)
		c.SI += d
		c.DI += d
		cmpDone = true
	case MnSTOSB:
		c.biuWriteU8(SegmentES, c.DI, c.AL())
		c.DI += c.stringDelta(false)
	case MnSTOSW:
		c.biuWriteU16(SegmentES, c.DI, c.AX)
		c.DI += c.stringDelta(true)
	case MnLODSB:
		c.SetAL(c.biuReadU8(c.srcSegment(), c.SI))
		c.SI += c.stringDelta(false)
	case MnLODSW:
		c.AX = c.biuReadU16(c.srcSegment(), c.SI)
		c.SI += c.stringDelta(true)
	case MnSCASB:
		v := c.biuReadU8(SegmentES, c.DI)
		c.sub8(c.AL(), v, false)
		c.DI += c.stringDelta(false)
		cmpDone = true
	case MnSCASW:
		v := c.biuReadU16(SegmentES, c.DI)
		c.sub16(c.AX, v, false)
		c.DI += c.stringDelta(true)
		cmpDone = true
	case MnINSB:
		c.biuWriteU8(SegmentES, c.DI, c.ioReadU8(c.DX))
		c.DI += c.stringDelta(false)
	case MnINSW:
		c.biuWriteU16(SegmentES, c.DI, c.ioReadU16(c.DX))
		c.DI += c.stringDelta(true)
	case MnOUTSB:
		c.ioWriteU8(c.DX, c.biuReadU8(c.srcSegment(), c.SI))
		c.SI += c.stringDelta(false)
	case MnOUTSW:
		c.ioWriteU16(c.DX, c.biuReadU16(c.srcSegment(), c.SI))
		c.SI += c.stringDelta(true)
	}

	if !rep {
		return
	}

	c.CX--
	if c.CX == 0 {
		c.repActive = false
		return
	}
	if cmpDone {
		// REPE terminates on ZF clear, REPNE on ZF set.
		z := c.getFlag(FlagZF)
		if c.i.Prefixes&PrefixRepne != 0 {
			if z {
				c.repActive = false
				return
			}
		} else if !z {
			c.repActive = false
			return
		}
	}

	// More iterations: re-enter the instruction at its prefix byte.
	c.repActive = true
	c.IP = c.i.Address
	c.biuQueueFlush()
}
