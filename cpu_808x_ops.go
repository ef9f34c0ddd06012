// cpu_808x_ops.go - Instruction execution
//
// executeNext decodes one instruction from the prefetch queue and
// dispatches on mnemonic. Base cycle costs come from the decode table;
// EA time and the 8-bit bus word penalty are charged by the modrm and
// BIU layers as the transfers happen.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

func isMemOperand(o *Operand) bool {
	return o.Kind == OperandMemory8 || o.Kind == OperandMemory16 ||
		o.Kind == OperandOffset8 || o.Kind == OperandOffset16
}

func isByteOperand(o *Operand) bool {
	switch o.Kind {
	case OperandReg8, OperandMemory8, OperandImm8, OperandOffset8:
		return true
	}
	return false
}

// executeNext runs exactly one instruction (one REP iteration counts
// as one instruction; the prefix chain rewinds IP to resume).
func (c *CPU) executeNext() {
	instStart := c.IP
	c.i = decodeInstruction(c, c.Type.isNec() && !c.emu8080)
	c.i.Address = instStart

	base := uint32(c.i.cycles)
	if c.i.cyclesMem != 0 &&
		(isMemOperand(&c.i.Operand1) || isMemOperand(&c.i.Operand2)) {
		base = uint32(c.i.cyclesMem)
	}
	c.chargeBase(base)

	op1 := &c.i.Operand1
	op2 := &c.i.Operand2

	switch c.i.Mnemonic {
	case MnADD, MnOR, MnADC, MnSBB, MnAND, MnSUB, MnXOR, MnCMP:
		if isByteOperand(op1) {
			src := c.readOperand8(op2)
			dst, seg, ofs := c.rmRead8(op1)
			r, wb := c.alu8(c.i.Mnemonic, dst, src)
			if wb {
				c.rmWriteBack8(op1, seg, ofs, r)
			}
		} else {
			src := c.readOperand16(op2)
			dst, seg, ofs := c.rmRead16(op1)
			r, wb := c.alu16(c.i.Mnemonic, dst, src)
			if wb {
				c.rmWriteBack16(op1, seg, ofs, r)
			}
		}

	case MnTEST:
		if isByteOperand(op1) {
			a := c.readOperand8(op1)
			b := c.readOperand8(op2)
			c.logicFlags8(a & b)
		} else {
			a := c.readOperand16(op1)
			b := c.readOperand16(op2)
			c.logicFlags16(a & b)
		}

	case MnMOV:
		if isByteOperand(op1) {
			c.writeOperand8(op1, c.readOperand8(op2))
		} else {
			c.writeOperand16(op1, c.readOperand16(op2))
		}

	case MnXCHG:
		if isByteOperand(op1) {
			a, seg, ofs := c.rmRead8(op2)
			b := c.getReg8(op1.Reg)
			c.rmWriteBack8(op2, seg, ofs, b)
			c.setReg8(op1.Reg, a)
		} else {
			a, seg, ofs := c.rmRead16(op2)
			b := c.getReg16(op1.Reg)
			c.rmWriteBack16(op2, seg, ofs, b)
			c.setReg16(op1.Reg, a)
		}

	case MnLEA:
		c.setReg16(op1.Reg, c.leaOffset(op2))

	case MnLES:
		seg, ofs := c.effectiveAddress(op2)
		c.setReg16(op1.Reg, c.biuReadU16(seg, ofs))
		c.ES = c.biuReadU16(seg, ofs+2)
		c.inhibitInterrupts()

	case MnLDS:
		seg, ofs := c.effectiveAddress(op2)
		c.setReg16(op1.Reg, c.biuReadU16(seg, ofs))
		c.DS = c.biuReadU16(seg, ofs+2)
		c.inhibitInterrupts()

	case MnXLAT:
		seg := SegmentDS
		if c.i.Segment != SegmentNone {
			seg = c.i.Segment
			c.cycles(2)
		}
		c.SetAL(c.biuReadU8(seg, c.BX+uint16(c.AL())))

	case MnINC, MnDEC:
		inc := c.i.Mnemonic == MnINC
		if isByteOperand(op1) {
			v, seg, ofs := c.rmRead8(op1)
			if inc {
				v = c.inc8(v)
			} else {
				v = c.dec8(v)
			}
			c.rmWriteBack8(op1, seg, ofs, v)
		} else {
			v, seg, ofs := c.rmRead16(op1)
			if inc {
				v = c.inc16(v)
			} else {
				v = c.dec16(v)
			}
			c.rmWriteBack16(op1, seg, ofs, v)
		}

	case MnNOT:
		if isByteOperand(op1) {
			v, seg, ofs := c.rmRead8(op1)
			c.rmWriteBack8(op1, seg, ofs, ^v)
		} else {
			v, seg, ofs := c.rmRead16(op1)
			c.rmWriteBack16(op1, seg, ofs, ^v)
		}

	case MnNEG:
		if isByteOperand(op1) {
			v, seg, ofs := c.rmRead8(op1)
			r := c.sub8(0, v, false)
			c.rmWriteBack8(op1, seg, ofs, r)
		} else {
			v, seg, ofs := c.rmRead16(op1)
			r := c.sub16(0, v, false)
			c.rmWriteBack16(op1, seg, ofs, r)
		}

	case MnMUL, MnIMUL, MnDIV, MnIDIV:
		c.opMulDiv(op1)

	case MnROL, MnROR, MnRCL, MnRCR, MnSHL, MnSHR, MnSAR, MnSETMO, MnSETMOC:
		c.opShift(op1, op2)

	case MnPUSH:
		if op1.Kind == OperandReg16 && op1.Reg == regSP {
			// The 808x pushes SP after the decrement.
			c.SP -= 2
			c.biuWriteU16(SegmentSS, c.SP, c.SP)
		} else {
			c.pushU16(c.readOperand16(op1))
		}

	case MnPOP:
		v := c.popU16()
		c.writeOperand16(op1, v)

	case MnPUSHF:
		c.pushU16(c.Flags)

	case MnPOPF:
		c.writeFlags(c.popU16())

	case MnSAHF:
		low := c.Flags&0xFF00 | uint16(c.AH())
		c.Flags = c.normalizeFlags(low)

	case MnLAHF:
		c.SetAH(uint8(c.Flags))

	case MnCBW:
		c.AX = uint16(int16(int8(c.AL())))

	case MnCWD:
		if c.AX&0x8000 != 0 {
			c.DX = 0xFFFF
		} else {
			c.DX = 0
		}

	case MnDAA:
		c.daa()
	case MnDAS:
		c.das()
	case MnAAA:
		c.aaa()
	case MnAAS:
		c.aas()
	case MnAAM:
		if !c.aam(uint8(op1.Imm)) {
			c.divideError(c.i.Address)
		}
	case MnAAD:
		c.aad(uint8(op1.Imm))

	case MnSALC:
		if c.getFlag(FlagCF) {
			c.SetAL(0xFF)
		} else {
			c.SetAL(0)
		}

	case MnJO:
		c.condJump(c.getFlag(FlagOF))
	case MnJNO:
		c.condJump(!c.getFlag(FlagOF))
	case MnJB:
		c.condJump(c.getFlag(FlagCF))
	case MnJNB:
		c.condJump(!c.getFlag(FlagCF))
	case MnJZ:
		c.condJump(c.getFlag(FlagZF))
	case MnJNZ:
		c.condJump(!c.getFlag(FlagZF))
	case MnJBE:
		c.condJump(c.getFlag(FlagCF) || c.getFlag(FlagZF))
	case MnJNBE:
		c.condJump(!c.getFlag(FlagCF) && !c.getFlag(FlagZF))
	case MnJS:
		c.condJump(c.getFlag(FlagSF))
	case MnJNS:
		c.condJump(!c.getFlag(FlagSF))
	case MnJP:
		c.condJump(c.getFlag(FlagPF))
	case MnJNP:
		c.condJump(!c.getFlag(FlagPF))
	case MnJL:
		c.condJump(c.getFlag(FlagSF) != c.getFlag(FlagOF))
	case MnJNL:
		c.condJump(c.getFlag(FlagSF) == c.getFlag(FlagOF))
	case MnJLE:
		c.condJump(c.getFlag(FlagZF) || c.getFlag(FlagSF) != c.getFlag(FlagOF))
	case MnJNLE:
		c.condJump(!c.getFlag(FlagZF) && c.getFlag(FlagSF) == c.getFlag(FlagOF))

	case MnJCXZ:
		c.condJump(c.CX == 0)

	case MnLOOP:
		c.CX--
		c.condJump(c.CX != 0)
	case MnLOOPE:
		c.CX--
		c.condJump(c.CX != 0 && c.getFlag(FlagZF))
	case MnLOOPNE:
		c.CX--
		c.condJump(c.CX != 0 && !c.getFlag(FlagZF))

	case MnJMP:
		if op1.Kind == OperandRel8 || op1.Kind == OperandRel16 {
			c.relJump(op1.Rel)
		} else {
			// grp5 /4: indirect near
			target, _, _ := c.rmRead16(op1)
			c.jumpNear(target)
		}

	case MnJMPF:
		if op1.Kind == OperandFarPtr {
			c.jumpFar(op1.FarSeg, op1.FarOfs)
		} else {
			seg, ofs := c.effectiveAddress(op1)
			newIP := c.biuReadU16(seg, ofs)
			newCS := c.biuReadU16(seg, ofs+2)
			c.jumpFar(newCS, newIP)
		}

	case MnCALL:
		if op1.Kind == OperandRel16 {
			c.pushU16(c.IP)
			c.relJump(op1.Rel)
		} else {
			target, _, _ := c.rmRead16(op1)
			c.pushU16(c.IP)
			c.jumpNear(target)
		}

	case MnCALLF:
		if op1.Kind == OperandFarPtr {
			c.pushU16(c.CS)
			c.pushU16(c.IP)
			c.jumpFar(op1.FarSeg, op1.FarOfs)
		} else {
			seg, ofs := c.effectiveAddress(op1)
			newIP := c.biuReadU16(seg, ofs)
			newCS := c.biuReadU16(seg, ofs+2)
			c.pushU16(c.CS)
			c.pushU16(c.IP)
			c.jumpFar(newCS, newIP)
		}

	case MnRETN:
		newIP := c.popU16()
		if op1.Kind == OperandImm16 {
			c.SP += op1.Imm
		}
		c.jumpNear(newIP)

	case MnRETF:
		newIP := c.popU16()
		newCS := c.popU16()
		if op1.Kind == OperandImm16 {
			c.SP += op1.Imm
		}
		c.jumpFar(newCS, newIP)

	case MnINT:
		c.softwareInterrupt(uint8(op1.Imm))
	case MnINT3:
		c.softwareInterrupt(vectorBreak)
	case MnINTO:
		if c.getFlag(FlagOF) {
			c.cycles(49)
			c.softwareInterrupt(vectorOverflow)
		}

	case MnIRET:
		newIP := c.popU16()
		newCS := c.popU16()
		f := c.popU16()
		c.writeFlags(f)
		if c.Type.isNec() {
			// IRET (unlike POPF) restores the mode flag, which is
			// how a CALLN handler returns to 8080 emulation.
			c.setFlag(FlagMD, f&FlagMD != 0)
			c.emu8080 = f&FlagMD == 0
		}
		c.jumpFar(newCS, newIP)

	case MnIN:
		port := c.inOutPort(op2)
		if op1.Reg == regAX && op1.Kind == OperandReg16 {
			c.AX = c.ioReadU16(port)
		} else {
			c.SetAL(c.ioReadU8(port))
		}

	case MnOUT:
		port := c.inOutPort(op1)
		if op2.Kind == OperandReg16 {
			c.ioWriteU16(port, c.AX)
		} else {
			c.ioWriteU8(port, c.AL())
		}

	case MnMOVSB, MnMOVSW, MnCMPSB, MnCMPSW, MnSTOSB, MnSTOSW,
		MnLODSB, MnLODSW, MnSCASB, MnSCASW:
		c.opString()

	case MnHLT:
		c.halted = true

	case MnWAIT, MnNOP, MnLOCK:
		// single-cycle bookkeeping only

	case MnESC:
		// No coprocessor: the operand fetch happens, the result is
		// discarded.
		if isMemOperand(op1) {
			seg, ofs := c.effectiveAddress(op1)
			c.biuReadU16(seg, ofs)
		}

	case MnCLC:
		c.setFlag(FlagCF, false)
	case MnSTC:
		c.setFlag(FlagCF, true)
	case MnCMC:
		c.setFlag(FlagCF, !c.getFlag(FlagCF))
	case MnCLD:
		c.setFlag(FlagDF, false)
	case MnSTD:
		c.setFlag(FlagDF, true)
	case MnCLI:
		c.setFlag(FlagIF, false)
	case MnSTI:
		if !c.getFlag(FlagIF) {
			c.setFlag(FlagIF, true)
			// Recognition is delayed until after the following
			// instruction so STI/RET sequences return first.
			c.intDisableDly = 1
		}

	case MnInvalid:
		c.logInvalidOpcode(c.i.Opcode)

	default:
		if !c.executeNec() {
			c.logInvalidOpcode(c.i.Opcode)
		}
	}
}

// chargeBase burns the instruction's table cost. Under a cycle trace
// each T-state carries a row tag: opcode in the high bits, T-state
// ordinal in the low nibble.
func (c *CPU) chargeBase(base uint32) {
	if c.trace == nil {
		c.cycles(base)
		return
	}
	rows := make([]uint16, base)
	for n := range rows {
		rows[n] = uint16(c.i.Opcode)<<4 | uint16(n)&0x0F
	}
	c.WaitI(base, rows)
}

// condJump takes a rel8 branch when cond holds, charging the
// taken-path cost difference from the decode table.
func (c *CPU) condJump(cond bool) {
	if !cond {
		return
	}
	if c.i.cyclesTaken > c.i.cycles {
		c.cycles(uint32(c.i.cyclesTaken - c.i.cycles))
	}
	c.relJump(c.i.Operand1.Rel)
}

// inOutPort resolves the port operand of IN/OUT: an imm8 or DX.
func (c *CPU) inOutPort(o *Operand) uint16 {
	if o.Kind == OperandReg16 {
		return c.DX
	}
	return o.Imm
}

// leaOffset computes the EA offset without touching memory. LEA
// ignores segment overrides but still pays the EA time.
func (c *CPU) leaOffset(o *Operand) uint16 {
	if !isMemOperand(o) {
		// LEA r, r is undefined; the hardware yields the last
		// computed EA. Returning the register value is close enough
		// for the debugger-visible cases.
		return c.getReg16(o.Reg)
	}
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
	case AddrBx:
		ofs = c.BX
	case AddrBp:
		ofs = c.BP
	}
	c.cycles(eaCycles(o))
	return ofs + uint16(o.Disp)
}

// opShift runs one group-2 shift/rotate. CL-count forms cost 4 extra
// cycles per iteration.
func (c *CPU) opShift(dst, cnt *Operand) {
	count := uint8(1)
	variable := cnt.Kind == OperandReg8
	if variable {
		count = c.CL()
		c.cycles(4 * uint32(count))
	}
	if isByteOperand(dst) {
		v, seg, ofs := c.rmRead8(dst)
		v = c.shiftRotate8(c.i.Mnemonic, v, count)
		if count > 0 {
			c.rmWriteBack8(dst, seg, ofs, v)
		}
	} else {
		v, seg, ofs := c.rmRead16(dst)
		v = c.shiftRotate16(c.i.Mnemonic, v, count)
		if count > 0 {
			c.rmWriteBack16(dst, seg, ofs, v)
		}
	}
}

// opMulDiv runs the group-3 multiply/divide family. Divide faults
// restart the instruction.
func (c *CPU) opMulDiv(o *Operand) {
	if isByteOperand(o) {
		v, _, _ := c.rmRead8(o)
		switch c.i.Mnemonic {
		case MnMUL:
			c.mul8(v)
		case MnIMUL:
			c.imul8(v)
		case MnDIV:
			if !c.div8(v) {
				c.divideError(c.i.Address)
			}
		case MnIDIV:
			if !c.idiv8(v) {
				c.divideError(c.i.Address)
			}
		}
		return
	}
	v, _, _ := c.rmRead16(o)
	switch c.i.Mnemonic {
	case MnMUL:
		c.mul16(v)
	case MnIMUL:
		c.imul16(v)
	case MnDIV:
		if !c.div16(v) {
			c.divideError(c.i.Address)
		}
	case MnIDIV:
		if !c.idiv16(v) {
			c.divideError(c.i.Address)
		}
	}
}

// writeFlags is the POPF/IRET path: reserved bits are forced and the
// trap flag's recognition latency is armed.
func (c *CPU) writeFlags(v uint16) {
	oldTF := c.getFlag(FlagTF)
	c.Flags = c.normalizeFlags(v)
	newTF := c.getFlag(FlagTF)
	if newTF && !oldTF {
		c.trapEnableDly = 2
	}
	if !newTF && oldTF {
		c.trapDisableDly = 1
	}
}
