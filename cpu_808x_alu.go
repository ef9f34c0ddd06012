// cpu_808x_alu.go - Arithmetic/logic unit with full flag semantics
//
// Every arithmetic helper updates exactly the flags the hardware
// touches, including AF and the parity of the low result byte.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "math/bits"

// setPZS8 updates parity, zero and sign from an 8-bit result.
func (c *CPU) setPZS8(r uint8) {
	c.setFlag(FlagPF, bits.OnesCount8(r)%2 == 0)
	c.setFlag(FlagZF, r == 0)
	c.setFlag(FlagSF, r&0x80 != 0)
}

func (c *CPU) setPZS16(r uint16) {
	c.setFlag(FlagPF, bits.OnesCount8(uint8(r))%2 == 0)
	c.setFlag(FlagZF, r == 0)
	c.setFlag(FlagSF, r&0x8000 != 0)
}

// logicFlags8 is the shared epilogue of AND/OR/XOR/TEST: CF and OF
// clear, AF left undefined (the 808x clears it).
func (c *CPU) logicFlags8(r uint8) {
	c.setFlag(FlagCF, false)
	c.setFlag(FlagOF, false)
	c.setFlag(FlagAF, false)
	c.setPZS8(r)
}

func (c *CPU) logicFlags16(r uint16) {
	c.setFlag(FlagCF, false)
	c.setFlag(FlagOF, false)
	c.setFlag(FlagAF, false)
	c.setPZS16(r)
}

func (c *CPU) add8(a, b uint8, carry bool) uint8 {
	cin := uint16(0)
	if carry {
		cin = 1
	}
	sum := uint16(a) + uint16(b) + cin
	r := uint8(sum)
	c.setFlag(FlagCF, sum > 0xFF)
	c.setFlag(FlagAF, (a&0xF)+(b&0xF)+uint8(cin) > 0xF)
	c.setFlag(FlagOF, (a^r)&(b^r)&0x80 != 0)
	c.setPZS8(r)
	return r
}

func (c *CPU) add16(a, b uint16, carry bool) uint16 {
	cin := uint32(0)
	if carry {
		cin = 1
	}
	sum := uint32(a) + uint32(b) + cin
	r := uint16(sum)
	c.setFlag(FlagCF, sum > 0xFFFF)
	c.setFlag(FlagAF, (a&0xF)+(b&0xF)+uint16(cin) > 0xF)
	c.setFlag(FlagOF, (a^r)&(b^r)&0x8000 != 0)
	c.setPZS16(r)
	return r
}

func (c *CPU) sub8(a, b uint8, borrow bool) uint8 {
	bin := uint16(0)
	if borrow {
		bin = 1
	}
	diff := uint16(a) - uint16(b) - bin
	r := uint8(diff)
	c.setFlag(FlagCF, diff > 0xFF)
	c.setFlag(FlagAF, (a&0xF)-(b&0xF)-uint8(bin) > 0xF)
	c.setFlag(FlagOF, (a^b)&(a^r)&0x80 != 0)
	c.setPZS8(r)
	return r
}

func (c *CPU) sub16(a, b uint16, borrow bool) uint16 {
	bin := uint32(0)
	if borrow {
		bin = 1
	}
	diff := uint32(a) - uint32(b) - bin
	r := uint16(diff)
	c.setFlag(FlagCF, diff > 0xFFFF)
	c.setFlag(FlagAF, (a&0xF)-(b&0xF)-uint16(bin) > 0xF)
	c.setFlag(FlagOF, (a^b)&(a^r)&0x8000 != 0)
	c.setPZS16(r)
	return r
}

// inc/dec preserve CF.
func (c *CPU) inc8(a uint8) uint8 {
	r := a + 1
	c.setFlag(FlagAF, a&0xF == 0xF)
	c.setFlag(FlagOF, a == 0x7F)
	c.setPZS8(r)
	return r
}

func (c *CPU) dec8(a uint8) uint8 {
	r := a - 1
	c.setFlag(FlagAF, a&0xF == 0)
	c.setFlag(FlagOF, a == 0x80)
	c.setPZS8(r)
	return r
}

func (c *CPU) inc16(a uint16) uint16 {
	r := a + 1
	c.setFlag(FlagAF, a&0xF == 0xF)
	c.setFlag(FlagOF, a == 0x7FFF)
	c.setPZS16(r)
	return r
}

func (c *CPU) dec16(a uint16) uint16 {
	r := a - 1
	c.setFlag(FlagAF, a&0xF == 0)
	c.setFlag(FlagOF, a == 0x8000)
	c.setPZS16(r)
	return r
}

// alu8 dispatches the eight group-1 operations. CMP returns the
// input unchanged so callers skip the write-back.
func (c *CPU) alu8(m Mnemonic, a, b uint8) (uint8, bool) {
	switch m {
	case MnADD:
		return c.add8(a, b, false), true
	case MnOR:
		r := a | b
		c.logicFlags8(r)
		return r, true
	case MnADC:
		return c.add8(a, b, c.getFlag(FlagCF)), true
	case MnSBB:
		return c.sub8(a, b, c.getFlag(FlagCF)), true
	case MnAND:
		r := a & b
		c.logicFlags8(r)
		return r, true
	case MnSUB:
		return c.sub8(a, b, false), true
	case MnXOR:
		r := a ^ b
		c.logicFlags8(r)
		return r, true
	}
	// CMP
	c.sub8(a, b, false)
	return a, false
}

func (c *CPU) alu16(m Mnemonic, a, b uint16) (uint16, bool) {
	switch m {
	case MnADD:
		return c.add16(a, b, false), true
	case MnOR:
		r := a | b
		c.logicFlags16(r)
		return r, true
	case MnADC:
		return c.add16(a, b, c.getFlag(FlagCF)), true
	case MnSBB:
		return c.sub16(a, b, c.getFlag(FlagCF)), true
	case MnAND:
		r := a & b
		c.logicFlags16(r)
		return r, true
	case MnSUB:
		return c.sub16(a, b, false), true
	case MnXOR:
		r := a ^ b
		c.logicFlags16(r)
		return r, true
	}
	c.sub16(a, b, false)
	return a, false
}

// ----------------------------------------------------------------------------
// Shifts and rotates
// ----------------------------------------------------------------------------

// shiftRotate8 runs one group-2 operation for count iterations. The
// 808x masks nothing: CL counts above the width rotate all the way
// around. OF is only architecturally defined for count 1 but the
// hardware updates it every iteration; we match that.
func (c *CPU) shiftRotate8(m Mnemonic, v uint8, count uint8) uint8 {
	for n := uint8(0); n < count; n++ {
		switch m {
		case MnROL:
			cf := v&0x80 != 0
			v = v<<1 | b2u8(cf)
			c.setFlag(FlagCF, cf)
			c.setFlag(FlagOF, (v&0x80 != 0) != cf)
		case MnROR:
			cf := v&1 != 0
			v = v>>1 | b2u8(cf)<<7
			c.setFlag(FlagCF, cf)
			c.setFlag(FlagOF, (v>>7)&1 != (v>>6)&1)
		case MnRCL:
			cf := v&0x80 != 0
			v = v<<1 | b2u8(c.getFlag(FlagCF))
			c.setFlag(FlagCF, cf)
			c.setFlag(FlagOF, (v&0x80 != 0) != cf)
		case MnRCR:
			cf := v&1 != 0
			v = v>>1 | b2u8(c.getFlag(FlagCF))<<7
			c.setFlag(FlagCF, cf)
			c.setFlag(FlagOF, (v>>7)&1 != (v>>6)&1)
		case MnSHL:
			cf := v&0x80 != 0
			v <<= 1
			c.setFlag(FlagCF, cf)
			c.setFlag(FlagOF, (v&0x80 != 0) != cf)
			c.setFlag(FlagAF, false)
			c.setPZS8(v)
		case MnSHR:
			cf := v&1 != 0
			of := v&0x80 != 0
			v >>= 1
			c.setFlag(FlagCF, cf)
			c.setFlag(FlagOF, of)
			c.setFlag(FlagAF, false)
			c.setPZS8(v)
		case MnSAR:
			cf := v&1 != 0
			v = uint8(int8(v) >> 1)
			c.setFlag(FlagCF, cf)
			c.setFlag(FlagOF, false)
			c.setFlag(FlagAF, false)
			c.setPZS8(v)
		case MnSETMO, MnSETMOC:
			// Undocumented group-2 slot 6: result is all-ones.
			v = 0xFF
			c.logicFlags8(v)
		}
	}
	return v
}

func (c *CPU) shiftRotate16(m Mnemonic, v uint16, count uint8) uint16 {
	for n := uint8(0); n < count; n++ {
		switch m {
		case MnROL:
			cf := v&0x8000 != 0
			v = v<<1 | uint16(b2u8(cf))
			c.setFlag(FlagCF, cf)
			c.setFlag(FlagOF, (v&0x8000 != 0) != cf)
		case MnROR:
			cf := v&1 != 0
			v = v>>1 | uint16(b2u8(cf))<<15
			c.setFlag(FlagCF, cf)
			c.setFlag(FlagOF, (v>>15)&1 != (v>>14)&1)
		case MnRCL:
			cf := v&0x8000 != 0
			v = v<<1 | uint16(b2u8(c.getFlag(FlagCF)))
			c.setFlag(FlagCF, cf)
			c.setFlag(FlagOF, (v&0x8000 != 0) != cf)
		case MnRCR:
			cf := v&1 != 0
			v = v>>1 | uint16(b2u8(c.getFlag(FlagCF)))<<15
			c.setFlag(FlagCF, cf)
			c.setFlag(FlagOF, (v>>15)&1 != (v>>14)&1)
		case MnSHL:
			cf := v&0x8000 != 0
			v <<= 1
			c.setFlag(FlagCF, cf)
			c.setFlag(FlagOF, (v&0x8000 != 0) != cf)
			c.setFlag(FlagAF, false)
			c.setPZS16(v)
		case MnSHR:
			cf := v&1 != 0
			of := v&0x8000 != 0
			v >>= 1
			c.setFlag(FlagCF, cf)
			c.setFlag(FlagOF, of)
			c.setFlag(FlagAF, false)
			c.setPZS16(v)
		case MnSAR:
			cf := v&1 != 0
			v = uint16(int16(v) >> 1)
			c.setFlag(FlagCF, cf)
			c.setFlag(FlagOF, false)
			c.setFlag(FlagAF, false)
			c.setPZS16(v)
		case MnSETMO, MnSETMOC:
			v = 0xFFFF
			c.logicFlags16(v)
		}
	}
	return v
}

// ----------------------------------------------------------------------------
// Multiply / divide
// ----------------------------------------------------------------------------

func (c *CPU) mul8(v uint8) {
	r := uint16(c.AL()) * uint16(v)
	c.AX = r
	high := r&0xFF00 != 0
	c.setFlag(FlagCF, high)
	c.setFlag(FlagOF, high)
	// ZF is undefined on Intel; the NEC parts set it from the result.
	if c.Type.isNec() {
		c.setFlag(FlagZF, r == 0)
	}
	c.cycles(70)
}

func (c *CPU) mul16(v uint16) {
	r := uint32(c.AX) * uint32(v)
	c.AX = uint16(r)
	c.DX = uint16(r >> 16)
	high := c.DX != 0
	c.setFlag(FlagCF, high)
	c.setFlag(FlagOF, high)
	if c.Type.isNec() {
		c.setFlag(FlagZF, r == 0)
	}
	c.cycles(118)
}

func (c *CPU) imul8(v uint8) {
	r := int16(int8(c.AL())) * int16(int8(v))
	c.AX = uint16(r)
	over := r != int16(int8(r))
	c.setFlag(FlagCF, over)
	c.setFlag(FlagOF, over)
	c.cycles(80)
}

func (c *CPU) imul16(v uint16) {
	r := int32(int16(c.AX)) * int32(int16(v))
	c.AX = uint16(r)
	c.DX = uint16(uint32(r) >> 16)
	over := r != int32(int16(r))
	c.setFlag(FlagCF, over)
	c.setFlag(FlagOF, over)
	c.cycles(128)
}

// div8 returns false on divide error (vector 0 is the caller's job).
func (c *CPU) div8(v uint8) bool {
	if v == 0 {
		return false
	}
	q := c.AX / uint16(v)
	if q > 0xFF {
		return false
	}
	rem := c.AX % uint16(v)
	c.SetAL(uint8(q))
	c.SetAH(uint8(rem))
	c.cycles(80)
	return true
}

func (c *CPU) div16(v uint16) bool {
	if v == 0 {
		return false
	}
	n := uint32(c.DX)<<16 | uint32(c.AX)
	q := n / uint32(v)
	if q > 0xFFFF {
		return false
	}
	c.AX = uint16(q)
	c.DX = uint16(n % uint32(v))
	c.cycles(144)
	return true
}

func (c *CPU) idiv8(v uint8) bool {
	if v == 0 {
		return false
	}
	n := int16(c.AX)
	d := int16(int8(v))
	q := n / d
	if q > 127 || q < -128 {
		// The 8088 rejects -128 as a quotient; IDIV of 0x8000 by
		// 0xFF traps even though two's complement could hold it.
		return false
	}
	c.SetAL(uint8(q))
	c.SetAH(uint8(n % d))
	c.cycles(101)
	return true
}

func (c *CPU) idiv16(v uint16) bool {
	if v == 0 {
		return false
	}
	n := int32(uint32(c.DX)<<16 | uint32(c.AX))
	d := int32(int16(v))
	q := n / d
	if q > 32767 || q < -32768 {
		return false
	}
	c.AX = uint16(q)
	c.DX = uint16(n % d)
	c.cycles(165)
	return true
}

// ----------------------------------------------------------------------------
// Decimal adjust
// ----------------------------------------------------------------------------

func (c *CPU) daa() {
	al := c.AL()
	oldCF := c.getFlag(FlagCF)
	if al&0xF > 9 || c.getFlag(FlagAF) {
		r := uint16(al) + 6
		c.setFlag(FlagCF, oldCF || r > 0xFF)
		al = uint8(r)
		c.setFlag(FlagAF, true)
	} else {
		c.setFlag(FlagAF, false)
	}
	if c.AL() > 0x99 || oldCF {
		al += 0x60
		c.setFlag(FlagCF, true)
	} else {
		c.setFlag(FlagCF, false)
	}
	c.SetAL(al)
	c.setPZS8(al)
}

func (c *CPU) das() {
	al := c.AL()
	oldAL := al
	oldCF := c.getFlag(FlagCF)
	c.setFlag(FlagCF, false)
	if al&0xF > 9 || c.getFlag(FlagAF) {
		c.setFlag(FlagCF, oldCF || al < 6)
		al -= 6
		c.setFlag(FlagAF, true)
	} else {
		c.setFlag(FlagAF, false)
	}
	if oldAL > 0x99 || oldCF {
		al -= 0x60
		c.setFlag(FlagCF, true)
	}
	c.SetAL(al)
	c.setPZS8(al)
}

func (c *CPU) aaa() {
	if c.AL()&0xF > 9 || c.getFlag(FlagAF) {
		c.AX += 0x106
		c.setFlag(FlagAF, true)
		c.setFlag(FlagCF, true)
	} else {
		c.setFlag(FlagAF, false)
		c.setFlag(FlagCF, false)
	}
	c.SetAL(c.AL() & 0xF)
}

func (c *CPU) aas() {
	if c.AL()&0xF > 9 || c.getFlag(FlagAF) {
		c.AX -= 6
		c.SetAH(c.AH() - 1)
		c.setFlag(FlagAF, true)
		c.setFlag(FlagCF, true)
	} else {
		c.setFlag(FlagAF, false)
		c.setFlag(FlagCF, false)
	}
	c.SetAL(c.AL() & 0xF)
}

// aam divides AL by an arbitrary base; the immediate is almost always
// 10. Base 0 raises the divide trap like DIV.
func (c *CPU) aam(base uint8) bool {
	if base == 0 {
		return false
	}
	al := c.AL()
	c.SetAH(al / base)
	c.SetAL(al % base)
	c.setPZS8(c.AL())
	return true
}

func (c *CPU) aad(base uint8) {
	al := c.AH()*base + c.AL()
	c.SetAL(al)
	c.SetAH(0)
	c.setPZS8(al)
}

func b2u8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
