// cpu_vx0.go - NEC V20/V30 extensions and 8080 emulation mode
//
// The NEC parts add the 186-class instructions in the 0x60 block,
// BRKEM, and a full 8080 emulation mode entered by clearing the MD
// flag. Emulation maps the 8080 register file onto the native one:
// A=AL BC=CX DE=DX HL=BX SP=BP, with code fetched through CS and all
// data (stack included) through DS.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// necDecodeOverlay replaces the 8088's 0x60-0x6F branch aliases and
// the C8/C9 RET aliases with the NEC instruction set.
var necDecodeOverlay = map[uint8]*decodeEntry{
	0x60: {MnPUSHA, tNone, tNone, 0, 36, 0, 0},
	0x61: {MnPOPA, tNone, tNone, 0, 51, 0, 0},
	0x62: {MnBOUND, tReg16, tMem16, gdrModRM, 33, 33, 0},
	0x68: {MnPUSH, tImm16, tNone, 0, 10, 0, 0},
	0x69: {MnIMULI, tReg16, tRm16, gdrModRM, 38, 47, 0},
	0x6A: {MnPUSH, tImmS8, tNone, 0, 10, 0, 0},
	0x6B: {MnIMULI, tReg16, tRm16, gdrModRM, 38, 47, 0},
	0x6C: {MnINSB, tNone, tNone, 0, 14, 0, 0},
	0x6D: {MnINSW, tNone, tNone, 0, 14, 0, 0},
	0x6E: {MnOUTSB, tNone, tNone, 0, 14, 0, 0},
	0x6F: {MnOUTSW, tNone, tNone, 0, 14, 0, 0},
	0xC8: {MnENTER, tImm16, tImm8, 0, 19, 0, 0},
	0xC9: {MnLEAVE, tNone, tNone, 0, 8, 0, 0},
}

// executeNec handles mnemonics that only exist on the NEC parts.
// Returns false when the mnemonic is unknown here too.
func (c *CPU) executeNec() bool {
	if !c.Type.isNec() {
		return false
	}
	op1 := &c.i.Operand1
	op2 := &c.i.Operand2

	switch c.i.Mnemonic {
	case MnPUSHA:
		sp := c.SP
		c.pushU16(c.AX)
		c.pushU16(c.CX)
		c.pushU16(c.DX)
		c.pushU16(c.BX)
		c.pushU16(sp)
		c.pushU16(c.BP)
		c.pushU16(c.SI)
		c.pushU16(c.DI)

	case MnPOPA:
		c.DI = c.popU16()
		c.SI = c.popU16()
		c.BP = c.popU16()
		c.popU16() // stacked SP is discarded
		c.BX = c.popU16()
		c.DX = c.popU16()
		c.CX = c.popU16()
		c.AX = c.popU16()

	case MnBOUND:
		idx := int16(c.getReg16(op1.Reg))
		seg, ofs := c.effectiveAddress(op2)
		lo := int16(c.biuReadU16(seg, ofs))
		hi := int16(c.biuReadU16(seg, ofs+2))
		if idx < lo || idx > hi {
			c.interrupt(vectorBound, false)
		}

	case MnIMULI:
		src, _, _ := c.rmRead16(op2)
		imm := c.i.Operand3.Imm
		r := int32(int16(src)) * int32(int16(imm))
		c.setReg16(op1.Reg, uint16(r))
		over := r != int32(int16(r))
		c.setFlag(FlagCF, over)
		c.setFlag(FlagOF, over)

	case MnINSB, MnINSW, MnOUTSB, MnOUTSW:
		c.opString()

	case MnENTER:
		frame := op1.Imm
		level := uint8(op2.Imm) & 0x1F
		c.pushU16(c.BP)
		fp := c.SP
		if level > 0 {
			for n := uint8(1); n < level; n++ {
				c.BP -= 2
				c.pushU16(c.biuReadU16(SegmentSS, c.BP))
			}
			c.pushU16(fp)
		}
		c.BP = fp
		c.SP -= frame

	case MnLEAVE:
		c.SP = c.BP
		c.BP = c.popU16()

	case MnBRKEM:
		// Interrupt through the vector, then drop into 8080
		// emulation: the handler's CS:IP becomes the 8080 PC.
		c.interrupt(uint8(op1.Imm), false)
		c.setFlag(FlagMD, false)
		c.emu8080 = true

	default:
		return false
	}
	return true
}

// ----------------------------------------------------------------------------
// 8080 emulation mode
// ----------------------------------------------------------------------------

// Register accessors under the NEC mapping.
func (c *CPU) emuHL() uint16     { return c.BX }
func (c *CPU) emuSetHL(v uint16) { c.BX = v }

// emuRead8/emuWrite8 are 8080 data accesses; everything goes through
// DS in emulation mode.
func (c *CPU) emuRead8(addr uint16) uint8 {
	return c.biuReadU8(SegmentDS, addr)
}

func (c *CPU) emuWrite8(addr uint16, v uint8) {
	c.biuWriteU8(SegmentDS, addr, v)
}

func (c *CPU) emuRead16(addr uint16) uint16 {
	return uint16(c.emuRead8(addr)) | uint16(c.emuRead8(addr+1))<<8
}

func (c *CPU) emuWrite16(addr uint16, v uint16) {
	c.emuWrite8(addr, uint8(v))
	c.emuWrite8(addr+1, uint8(v>>8))
}

// emuPush/emuPop use the 8080 SP, which lives in BP.
func (c *CPU) emuPush(v uint16) {
	c.BP -= 2
	c.emuWrite16(c.BP, v)
}

func (c *CPU) emuPop() uint16 {
	v := c.emuRead16(c.BP)
	c.BP += 2
	return v
}

// emuGetReg reads 8080 register r (0=B 1=C 2=D 3=E 4=H 5=L 6=M 7=A).
func (c *CPU) emuGetReg(r uint8) uint8 {
	switch r {
	case 0:
		return c.CH()
	case 1:
		return c.CL()
	case 2:
		return c.DH()
	case 3:
		return c.DL()
	case 4:
		return c.BH()
	case 5:
		return c.BL()
	case 6:
		return c.emuRead8(c.emuHL())
	}
	return c.AL()
}

func (c *CPU) emuSetReg(r uint8, v uint8) {
	switch r {
	case 0:
		c.SetCH(v)
	case 1:
		c.SetCL(v)
	case 2:
		c.SetDH(v)
	case 3:
		c.SetDL(v)
	case 4:
		c.SetBH(v)
	case 5:
		c.SetBL(v)
	case 6:
		c.emuWrite8(c.emuHL(), v)
	default:
		c.SetAL(v)
	}
}

// emuGetPair reads register pair rp (0=BC 1=DE 2=HL 3=SP).
func (c *CPU) emuGetPair(rp uint8) uint16 {
	switch rp {
	case 0:
		return c.CX
	case 1:
		return c.DX
	case 2:
		return c.BX
	}
	return c.BP
}

func (c *CPU) emuSetPair(rp uint8, v uint16) {
	switch rp {
	case 0:
		c.CX = v
	case 1:
		c.DX = v
	case 2:
		c.BX = v
	default:
		c.BP = v
	}
}

// emuCond evaluates 8080 condition code ccc.
func (c *CPU) emuCond(ccc uint8) bool {
	switch ccc {
	case 0:
		return !c.getFlag(FlagZF)
	case 1:
		return c.getFlag(FlagZF)
	case 2:
		return !c.getFlag(FlagCF)
	case 3:
		return c.getFlag(FlagCF)
	case 4:
		return !c.getFlag(FlagPF)
	case 5:
		return c.getFlag(FlagPF)
	case 6:
		return !c.getFlag(FlagSF)
	}
	return c.getFlag(FlagSF)
}

// emuFetch8 reads the next code byte at CS:IP through the queue.
func (c *CPU) emuFetch8() uint8 {
	return c.QReadU8(QueueSubsequent, ReaderBiu)
}

func (c *CPU) emuFetch16() uint16 {
	return c.QReadU16(QueueSubsequent, ReaderBiu)
}

// emuPSW packs the 8080 PSW byte: bit 1 reads as 1, bits 3 and 5 as 0.
func (c *CPU) emuPSW() uint8 {
	return uint8(c.Flags&(FlagSF|FlagZF|FlagAF|FlagPF|FlagCF)) | 0x02
}

func (c *CPU) emuSetPSW(v uint8) {
	keep := c.Flags &^ (FlagSF | FlagZF | FlagAF | FlagPF | FlagCF)
	c.Flags = keep | uint16(v)&(FlagSF|FlagZF|FlagAF|FlagPF|FlagCF)
}

// step8080 executes one instruction in 8080 emulation mode.
func (c *CPU) step8080() {
	c.i = Instruction{Address: c.IP}
	op := c.QReadU8(QueueFirst, ReaderBiu)

	// Column decode first: the MOV block and the ALU block cover
	// half the opcode space.
	switch {
	case op == 0x76: // HLT (would otherwise decode as MOV M,M)
		c.halted = true
		c.cycles(7)
		return
	case op >= 0x40 && op <= 0x7F: // MOV r,r
		c.emuSetReg((op>>3)&7, c.emuGetReg(op&7))
		c.cycles(5)
		return
	case op >= 0x80 && op <= 0xBF: // ALU A,r
		c.emuALU((op>>3)&7, c.emuGetReg(op&7))
		c.cycles(4)
		return
	}

	switch op & 0xC7 {
	case 0x06: // MVI r,imm
		c.emuSetReg((op>>3)&7, c.emuFetch8())
		c.cycles(7)
		return
	case 0x04: // INR r
		r := (op >> 3) & 7
		c.emuSetReg(r, c.inc8(c.emuGetReg(r)))
		c.cycles(5)
		return
	case 0x05: // DCR r
		r := (op >> 3) & 7
		c.emuSetReg(r, c.dec8(c.emuGetReg(r)))
		c.cycles(5)
		return
	case 0xC2: // Jcc a16
		addr := c.emuFetch16()
		c.cycles(10)
		if c.emuCond((op >> 3) & 7) {
			c.jumpNear(addr)
		}
		return
	case 0xC4: // Ccc a16
		addr := c.emuFetch16()
		c.cycles(11)
		if c.emuCond((op >> 3) & 7) {
			c.emuPush(c.IP)
			c.jumpNear(addr)
			c.cycles(6)
		}
		return
	case 0xC0: // Rcc
		c.cycles(5)
		if c.emuCond((op >> 3) & 7) {
			c.jumpNear(c.emuPop())
			c.cycles(6)
		}
		return
	case 0xC7: // RST n
		c.emuPush(c.IP)
		c.jumpNear(uint16(op & 0x38))
		c.cycles(11)
		return
	}

	switch op & 0xCF {
	case 0x01: // LXI rp,imm16
		c.emuSetPair((op>>4)&3, c.emuFetch16())
		c.cycles(10)
		return
	case 0x03: // INX rp
		rp := (op >> 4) & 3
		c.emuSetPair(rp, c.emuGetPair(rp)+1)
		c.cycles(5)
		return
	case 0x0B: // DCX rp
		rp := (op >> 4) & 3
		c.emuSetPair(rp, c.emuGetPair(rp)-1)
		c.cycles(5)
		return
	case 0x09: // DAD rp
		sum := uint32(c.emuHL()) + uint32(c.emuGetPair((op>>4)&3))
		c.emuSetHL(uint16(sum))
		c.setFlag(FlagCF, sum > 0xFFFF)
		c.cycles(10)
		return
	case 0xC5: // PUSH rp (11 = PSW)
		rp := (op >> 4) & 3
		if rp == 3 {
			c.emuPush(uint16(c.AL())<<8 | uint16(c.emuPSW()))
		} else {
			c.emuPush(c.emuGetPair(rp))
		}
		c.cycles(11)
		return
	case 0xC1: // POP rp
		rp := (op >> 4) & 3
		v := c.emuPop()
		if rp == 3 {
			c.SetAL(uint8(v >> 8))
			c.emuSetPSW(uint8(v))
		} else {
			c.emuSetPair(rp, v)
		}
		c.cycles(10)
		return
	}

	switch op {
	case 0x00:
		c.cycles(4)
	case 0x02: // STAX B
		c.emuWrite8(c.CX, c.AL())
		c.cycles(7)
	case 0x12: // STAX D
		c.emuWrite8(c.DX, c.AL())
		c.cycles(7)
	case 0x0A: // LDAX B
		c.SetAL(c.emuRead8(c.CX))
		c.cycles(7)
	case 0x1A: // LDAX D
		c.SetAL(c.emuRead8(c.DX))
		c.cycles(7)
	case 0x22: // SHLD a16
		c.emuWrite16(c.emuFetch16(), c.emuHL())
		c.cycles(16)
	case 0x2A: // LHLD a16
		c.emuSetHL(c.emuRead16(c.emuFetch16()))
		c.cycles(16)
	case 0x32: // STA a16
		c.emuWrite8(c.emuFetch16(), c.AL())
		c.cycles(13)
	case 0x3A: // LDA a16
		c.SetAL(c.emuRead8(c.emuFetch16()))
		c.cycles(13)
	case 0x07: // RLC
		a := c.AL()
		c.setFlag(FlagCF, a&0x80 != 0)
		c.SetAL(a<<1 | a>>7)
		c.cycles(4)
	case 0x0F: // RRC
		a := c.AL()
		c.setFlag(FlagCF, a&1 != 0)
		c.SetAL(a>>1 | a<<7)
		c.cycles(4)
	case 0x17: // RAL
		a := c.AL()
		c.SetAL(a<<1 | b2u8(c.getFlag(FlagCF)))
		c.setFlag(FlagCF, a&0x80 != 0)
		c.cycles(4)
	case 0x1F: // RAR
		a := c.AL()
		c.SetAL(a>>1 | b2u8(c.getFlag(FlagCF))<<7)
		c.setFlag(FlagCF, a&1 != 0)
		c.cycles(4)
	case 0x27: // DAA
		c.daa()
		c.cycles(4)
	case 0x2F: // CMA
		c.SetAL(^c.AL())
		c.cycles(4)
	case 0x37: // STC
		c.setFlag(FlagCF, true)
		c.cycles(4)
	case 0x3F: // CMC
		c.setFlag(FlagCF, !c.getFlag(FlagCF))
		c.cycles(4)
	case 0xC3: // JMP a16
		c.jumpNear(c.emuFetch16())
		c.cycles(10)
	case 0xC9: // RET
		c.jumpNear(c.emuPop())
		c.cycles(10)
	case 0xCD: // CALL a16
		addr := c.emuFetch16()
		c.emuPush(c.IP)
		c.jumpNear(addr)
		c.cycles(17)
	case 0xC6: // ADI
		c.emuALU(0, c.emuFetch8())
		c.cycles(7)
	case 0xCE: // ACI
		c.emuALU(1, c.emuFetch8())
		c.cycles(7)
	case 0xD6: // SUI
		c.emuALU(2, c.emuFetch8())
		c.cycles(7)
	case 0xDE: // SBI
		c.emuALU(3, c.emuFetch8())
		c.cycles(7)
	case 0xE6: // ANI
		c.emuALU(4, c.emuFetch8())
		c.cycles(7)
	case 0xEE: // XRI
		c.emuALU(5, c.emuFetch8())
		c.cycles(7)
	case 0xF6: // ORI
		c.emuALU(6, c.emuFetch8())
		c.cycles(7)
	case 0xFE: // CPI
		c.emuALU(7, c.emuFetch8())
		c.cycles(7)
	case 0xD3: // OUT port
		c.ioWriteU8(uint16(c.emuFetch8()), c.AL())
		c.cycles(10)
	case 0xDB: // IN port
		c.SetAL(c.ioReadU8(uint16(c.emuFetch8())))
		c.cycles(10)
	case 0xE3: // XTHL
		v := c.emuRead16(c.BP)
		c.emuWrite16(c.BP, c.emuHL())
		c.emuSetHL(v)
		c.cycles(18)
	case 0xE9: // PCHL
		c.jumpNear(c.emuHL())
		c.cycles(5)
	case 0xEB: // XCHG
		c.DX, c.BX = c.BX, c.DX
		c.cycles(4)
	case 0xF3: // DI
		c.setFlag(FlagIF, false)
		c.cycles(4)
	case 0xFB: // EI
		if !c.getFlag(FlagIF) {
			c.setFlag(FlagIF, true)
			c.intDisableDly = 1
		}
		c.cycles(4)
	case 0xF9: // SPHL
		c.BP = c.emuHL()
		c.cycles(5)
	case 0xED:
		// NEC escape: ED ED = CALLN imm8, ED FD = RETEM.
		sub := c.emuFetch8()
		switch sub {
		case 0xED:
			vector := c.emuFetch8()
			c.emuCALLN(vector)
		case 0xFD:
			c.emuRETEM()
		default:
			c.logInvalidOpcode(sub)
		}
	default:
		// The remaining undefined 8080 slots alias NOP.
		c.cycles(4)
	}
}

// emuALU applies 8080 ALU operation n to A.
func (c *CPU) emuALU(n uint8, v uint8) {
	switch n {
	case 0:
		c.SetAL(c.add8(c.AL(), v, false))
	case 1:
		c.SetAL(c.add8(c.AL(), v, c.getFlag(FlagCF)))
	case 2:
		c.SetAL(c.sub8(c.AL(), v, false))
	case 3:
		c.SetAL(c.sub8(c.AL(), v, c.getFlag(FlagCF)))
	case 4:
		r := c.AL() & v
		c.logicFlags8(r)
		c.SetAL(r)
	case 5:
		r := c.AL() ^ v
		c.logicFlags8(r)
		c.SetAL(r)
	case 6:
		r := c.AL() | v
		c.logicFlags8(r)
		c.SetAL(r)
	default:
		c.sub8(c.AL(), v, false)
	}
}

// emuCALLN enters a native-mode interrupt handler from emulation.
// The pushed FLAGS image has MD clear, so the handler's IRET drops
// back into 8080 mode.
func (c *CPU) emuCALLN(vector uint8) {
	c.interrupt(vector, false)
	c.setFlag(FlagMD, true)
	c.emu8080 = false
}

// emuRETEM leaves emulation mode permanently: IRET-style frame pop
// back to the native code that issued BRKEM.
func (c *CPU) emuRETEM() {
	newIP := c.popU16()
	newCS := c.popU16()
	c.Flags = c.normalizeFlags(c.popU16())
	c.setFlag(FlagMD, true)
	c.emu8080 = false
	c.jumpFar(newCS, newIP)
}
