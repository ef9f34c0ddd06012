// disasm_808x.go - 808x disassembler for the debug monitor
//
// Reuses the live decode tables over the bus's flat-memory ByteQueue,
// so the listing always agrees with what the CPU would execute.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"strings"
)

var reg8Names = [8]string{"al", "cl", "dl", "bl", "ah", "ch", "dh", "bh"}
var reg16Names = [8]string{"ax", "cx", "dx", "bx", "sp", "bp", "si", "di"}
var sregNames = [4]string{"es", "cs", "ss", "ds"}
var eaBaseNames = map[AddressingBase]string{
	AddrBxSi: "bx+si", AddrBxDi: "bx+di", AddrBpSi: "bp+si",
	AddrBpDi: "bp+di", AddrSi: "si", AddrDi: "di", AddrBx: "bx",
	AddrBp: "bp",
}

// Disassemble decodes one instruction at seg:ofs and returns its
// textual form plus the byte length. Decode is side-effect free: the
// bus cursor is the only state touched.
func Disassemble(bus *SystemBus, seg, ofs uint16, t CpuType) (string, int) {
	bus.Seek(linearAddress(seg, ofs))
	inst := decodeInstruction(bus, t.isNec())
	inst.Address = ofs
	return formatInstruction(&inst), int(inst.Size)
}

// DisassembleRange produces count consecutive lines starting at
// seg:ofs, each prefixed with its address and raw bytes.
func DisassembleRange(bus *SystemBus, seg, ofs uint16, count int, t CpuType) []string {
	lines := make([]string, 0, count)
	for n := 0; n < count; n++ {
		text, size := Disassemble(bus, seg, ofs, t)
		raw := make([]string, 0, size)
		for i := 0; i < size; i++ {
			raw = append(raw, fmt.Sprintf("%02X",
				bus.PeekU8(linearAddress(seg, ofs+uint16(i)))))
		}
		lines = append(lines, fmt.Sprintf("%04X:%04X  %-14s  %s",
			seg, ofs, strings.Join(raw, " "), text))
		ofs += uint16(size)
	}
	return lines
}

func formatInstruction(inst *Instruction) string {
	var sb strings.Builder
	if inst.Prefixes&PrefixLock != 0 {
		sb.WriteString("lock ")
	}
	if inst.Prefixes&PrefixRepne != 0 {
		sb.WriteString("repne ")
	} else if inst.Prefixes&PrefixRep != 0 {
		sb.WriteString("rep ")
	}
	sb.WriteString(inst.Mnemonic.String())

	ops := make([]string, 0, 3)
	for _, o := range []*Operand{&inst.Operand1, &inst.Operand2, &inst.Operand3} {
		if o.Kind == OperandNone {
			continue
		}
		ops = append(ops, formatOperand(inst, o))
	}
	if len(ops) > 0 {
		sb.WriteString(" ")
		sb.WriteString(strings.Join(ops, ", "))
	}
	return sb.String()
}

func formatOperand(inst *Instruction, o *Operand) string {
	switch o.Kind {
	case OperandReg8:
		return reg8Names[o.Reg&7]
	case OperandReg16:
		return reg16Names[o.Reg&7]
	case OperandSreg:
		return sregNames[o.Reg&3]
	case OperandImm8, OperandImmConst:
		return fmt.Sprintf("%02Xh", o.Imm&0xFF)
	case OperandImm16, OperandImmS8:
		return fmt.Sprintf("%04Xh", o.Imm)
	case OperandRel8, OperandRel16:
		// Target relative to the end of the instruction.
		target := inst.Address + uint16(inst.Size) + uint16(o.Rel)
		return fmt.Sprintf("%04Xh", target)
	case OperandOffset8, OperandOffset16:
		return fmt.Sprintf("%s[%04Xh]", segPrefix(inst), o.Offset)
	case OperandMemory8:
		return "byte " + formatEA(inst, o)
	case OperandMemory16:
		return "word " + formatEA(inst, o)
	case OperandFarPtr:
		return fmt.Sprintf("%04X:%04X", o.FarSeg, o.FarOfs)
	}
	return "?"
}

func formatEA(inst *Instruction, o *Operand) string {
	if o.Base == AddrDisp16 {
		return fmt.Sprintf("%s[%04Xh]", segPrefix(inst), uint16(o.Disp))
	}
	base := eaBaseNames[o.Base]
	if !o.HasDisp || o.Disp == 0 {
		return fmt.Sprintf("%s[%s]", segPrefix(inst), base)
	}
	if o.Disp < 0 {
		return fmt.Sprintf("%s[%s-%02Xh]", segPrefix(inst), base, -o.Disp)
	}
	return fmt.Sprintf("%s[%s+%02Xh]", segPrefix(inst), base, o.Disp)
}

func segPrefix(inst *Instruction) string {
	if inst.Segment == SegmentNone {
		return ""
	}
	return inst.Segment.String() + ":"
}
