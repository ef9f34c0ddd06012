// cpu_808x_modrm.go - Effective address calculation and operand access
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// eaCycles returns the documented EA calculation cost for a memory
// operand. A segment override prefix adds 2 on top of these.
func eaCycles(o *Operand) uint32 {
	var n uint32
	switch o.Base {
	case AddrDisp16:
		return 6
	case AddrSi, AddrDi, AddrBx, AddrBp:
		n = 5
	case AddrBpDi, AddrBxSi:
		n = 7
	case AddrBpSi, AddrBxDi:
		n = 8
	}
	if o.HasDisp {
		n += 4
	}
	return n
}

// defaultSegment returns the segment an EA base addresses absent an
// override. BP-relative modes go through SS, everything else DS.
func defaultSegment(base AddressingBase) SegmentRegister {
	switch base {
	case AddrBpSi, AddrBpDi, AddrBp:
		return SegmentSS
	}
	return SegmentDS
}

// segValue resolves a segment selector, applying the instruction's
// override when seg is the operand's default.
func (c *CPU) segValue(seg SegmentRegister) uint16 {
	switch seg {
	case SegmentES:
		return c.ES
	case SegmentCS:
		return c.CS
	case SegmentSS:
		return c.SS
	case SegmentDS:
		return c.DS
	}
	return c.DS
}

// effectiveAddress computes the segment and offset of a memory
// operand and charges the EA cost.
func (c *CPU) effectiveAddress(o *Operand) (SegmentRegister, uint16) {
	var ofs uint16
	switch o.Base {
	case AddrBxSi:
		ofs = c.BX + c.SI
	case AddrBxDi:
		ofs = c.BX + c.DI
	case AddrBpSi:
		ofs = c.BP + c.SI
	case AddrBpDi:
		ofs = c.BP + c.DI
	case AddrSi:
		ofs = c.SI
	case AddrDi:
		ofs = c.DI
	case AddrDisp16:
		ofs = 0
	case AddrBx:
		ofs = c.BX
	case AddrBp:
		ofs = c.BP
	}
	ofs += uint16(o.Disp)

	seg := defaultSegment(o.Base)
	if c.i.Segment != SegmentNone {
		seg = c.i.Segment
		c.cycles(2)
	}
	c.cycles(eaCycles(o))
	return seg, ofs
}

// reg8 returns a pointer-free accessor pair for a byte register.
func (c *CPU) getReg8(r int) uint8 {
	switch r {
	case regAL:
		return c.AL()
	case regCL:
		return c.CL()
	case regDL:
		return c.DL()
	case regBL:
		return c.BL()
	case regAH:
		return c.AH()
	case regCH:
		return c.CH()
	case regDH:
		return c.DH()
	}
	return c.BH()
}

func (c *CPU) setReg8(r int, v uint8) {
	switch r {
	case regAL:
		c.SetAL(v)
	case regCL:
		c.SetCL(v)
	case regDL:
		c.SetDL(v)
	case regBL:
		c.SetBL(v)
	case regAH:
		c.SetAH(v)
	case regCH:
		c.SetCH(v)
	case regDH:
		c.SetDH(v)
	default:
		c.SetBH(v)
	}
}

func (c *CPU) getReg16(r int) uint16 {
	switch r {
	case regAX:
		return c.AX
	case regCX:
		return c.CX
	case regDX:
		return c.DX
	case regBX:
		return c.BX
	case regSP:
		return c.SP
	case regBP:
		return c.BP
	case regSI:
		return c.SI
	}
	return c.DI
}

func (c *CPU) setReg16(r int, v uint16) {
	switch r {
	case regAX:
		c.AX = v
	case regCX:
		c.CX = v
	case regDX:
		c.DX = v
	case regBX:
		c.BX = v
	case regSP:
		c.SP = v
	case regBP:
		c.BP = v
	case regSI:
		c.SI = v
	default:
		c.DI = v
	}
}

func (c *CPU) getSreg(r int) uint16 {
	switch r {
	case sregES:
		return c.ES
	case sregCS:
		return c.CS
	case sregSS:
		return c.SS
	}
	return c.DS
}

func (c *CPU) setSreg(r int, v uint16) {
	switch r {
	case sregES:
		c.ES = v
	case sregCS:
		c.CS = v
	case sregSS:
		c.SS = v
	default:
		c.DS = v
	}
	// Writing any segment register shadows interrupt recognition for
	// one instruction so that SS:SP pairs load atomically.
	c.inhibitInterrupts()
}

// readOperand8 fetches the byte value of an operand. Memory operands
// go through the BIU and charge EA time.
func (c *CPU) readOperand8(o *Operand) uint8 {
	switch o.Kind {
	case OperandReg8:
		return c.getReg8(o.Reg)
	case OperandImm8, OperandImmConst:
		return uint8(o.Imm)
	case OperandMemory8:
		seg, ofs := c.effectiveAddress(o)
		return c.biuReadU8(seg, ofs)
	case OperandOffset8:
		seg := SegmentDS
		if c.i.Segment != SegmentNone {
			seg = c.i.Segment
			c.cycles(2)
		}
		return c.biuReadU8(seg, o.Offset)
	}
	return 0
}

func (c *CPU) writeOperand8(o *Operand, v uint8) {
	switch o.Kind {
	case OperandReg8:
		c.setReg8(o.Reg, v)
	case OperandMemory8:
		seg, ofs := c.effectiveAddress(o)
		c.biuWriteU8(seg, ofs, v)
	case OperandOffset8:
		seg := SegmentDS
		if c.i.Segment != SegmentNone {
			seg = c.i.Segment
			c.cycles(2)
		}
		c.biuWriteU8(seg, o.Offset, v)
	}
}

func (c *CPU) readOperand16(o *Operand) uint16 {
	switch o.Kind {
	case OperandReg16:
		return c.getReg16(o.Reg)
	case OperandSreg:
		return c.getSreg(o.Reg)
	case OperandImm16, OperandImmS8, OperandImm8, OperandImmConst:
		return o.Imm
	case OperandMemory16:
		seg, ofs := c.effectiveAddress(o)
		return c.biuReadU16(seg, ofs)
	case OperandOffset16:
		seg := SegmentDS
		if c.i.Segment != SegmentNone {
			seg = c.i.Segment
			c.cycles(2)
		}
		return c.biuReadU16(seg, o.Offset)
	}
	return 0
}

func (c *CPU) writeOperand16(o *Operand, v uint16) {
	switch o.Kind {
	case OperandReg16:
		c.setReg16(o.Reg, v)
	case OperandSreg:
		c.setSreg(o.Reg, v)
	case OperandMemory16:
		seg, ofs := c.effectiveAddress(o)
		c.biuWriteU16(seg, ofs, v)
	case OperandOffset16:
		seg := SegmentDS
		if c.i.Segment != SegmentNone {
			seg = c.i.Segment
			c.cycles(2)
		}
		c.biuWriteU16(seg, o.Offset, v)
	}
}

// rmWriteBack rewrites an r/m destination without recharging EA time.
// Read-modify-write instructions compute the address once; the second
// bus transfer is covered by the table's memory-form cycle column.
func (c *CPU) rmWriteBack8(o *Operand, seg SegmentRegister, ofs uint16, v uint8) {
	if o.Kind == OperandReg8 {
		c.setReg8(o.Reg, v)
		return
	}
	c.biuWriteU8(seg, ofs, v)
}

func (c *CPU) rmWriteBack16(o *Operand, seg SegmentRegister, ofs uint16, v uint16) {
	if o.Kind == OperandReg16 {
		c.setReg16(o.Reg, v)
		return
	}
	c.biuWriteU16(seg, ofs, v)
}

// rmRead8 reads an r/m operand and also returns the resolved address
// for a later write-back. Register operands return SegmentNone.
func (c *CPU) rmRead8(o *Operand) (uint8, SegmentRegister, uint16) {
	if o.Kind == OperandReg8 {
		return c.getReg8(o.Reg), SegmentNone, 0
	}
	seg, ofs := c.effectiveAddress(o)
	return c.biuReadU8(seg, ofs), seg, ofs
}

func (c *CPU) rmRead16(o *Operand) (uint16, SegmentRegister, uint16) {
	if o.Kind == OperandReg16 {
		return c.getReg16(o.Reg), SegmentNone, 0
	}
	seg, ofs := c.effectiveAddress(o)
	return c.biuReadU16(seg, ofs), seg, ofs
}
