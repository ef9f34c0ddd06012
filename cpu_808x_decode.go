// cpu_808x_decode.go - Table-driven 808x instruction decoder
//
// The decoder is pure: given a ByteQueue it produces an Instruction
// and touches no other machine state. During execution the queue is
// the CPU's prefetch FIFO; during disassembly it is bus memory.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// SegmentRegister names a segment register or the absence of an
// override.
type SegmentRegister int

const (
	SegmentNone SegmentRegister = iota
	SegmentES
	SegmentCS
	SegmentSS
	SegmentDS
)

func (s SegmentRegister) String() string {
	switch s {
	case SegmentES:
		return "es"
	case SegmentCS:
		return "cs"
	case SegmentSS:
		return "ss"
	case SegmentDS:
		return "ds"
	}
	return "??"
}

// Prefix bits recorded on the decoded instruction.
const (
	PrefixES uint32 = 1 << iota
	PrefixCS
	PrefixSS
	PrefixDS
	PrefixLock
	PrefixRep
	PrefixRepne
)

// Mnemonic identifies the operation selected by decode.
type Mnemonic int

const (
	MnInvalid Mnemonic = iota
	MnAAA
	MnAAD
	MnAAM
	MnAAS
	MnADC
	MnADD
	MnAND
	MnCALL
	MnCALLF
	MnCBW
	MnCLC
	MnCLD
	MnCLI
	MnCMC
	MnCMP
	MnCMPSB
	MnCMPSW
	MnCWD
	MnDAA
	MnDAS
	MnDEC
	MnDIV
	MnESC
	MnHLT
	MnIDIV
	MnIMUL
	MnIN
	MnINC
	MnINT
	MnINT3
	MnINTO
	MnIRET
	MnJB
	MnJBE
	MnJCXZ
	MnJL
	MnJLE
	MnJMP
	MnJMPF
	MnJNB
	MnJNBE
	MnJNL
	MnJNLE
	MnJNO
	MnJNP
	MnJNS
	MnJNZ
	MnJO
	MnJP
	MnJS
	MnJZ
	MnLAHF
	MnLDS
	MnLEA
	MnLES
	MnLOCK
	MnLODSB
	MnLODSW
	MnLOOP
	MnLOOPE
	MnLOOPNE
	MnMOV
	MnMOVSB
	MnMOVSW
	MnMUL
	MnNEG
	MnNOP
	MnNOT
	MnOR
	MnOUT
	MnPOP
	MnPOPF
	MnPUSH
	MnPUSHF
	MnRCL
	MnRCR
	MnRETF
	MnRETN
	MnROL
	MnROR
	MnSAHF
	MnSALC
	MnSAR
	MnSBB
	MnSCASB
	MnSCASW
	MnSETMO
	MnSETMOC
	MnSHL
	MnSHR
	MnSTC
	MnSTD
	MnSTI
	MnSTOSB
	MnSTOSW
	MnSUB
	MnTEST
	MnWAIT
	MnXCHG
	MnXLAT
	MnXOR
	// NEC V20/V30 extensions
	MnPUSHA
	MnPOPA
	MnBOUND
	MnINSB
	MnINSW
	MnOUTSB
	MnOUTSW
	MnENTER
	MnLEAVE
	MnBRKEM
	MnRETEM
	MnCALLN
	MnIMULI // three-operand immediate multiply
)

var mnemonicNames = map[Mnemonic]string{
	MnInvalid: "(invalid)", MnAAA: "aaa", MnAAD: "aad", MnAAM: "aam",
	MnAAS: "aas", MnADC: "adc", MnADD: "add", MnAND: "and",
	MnCALL: "call", MnCALLF: "callf", MnCBW: "cbw", MnCLC: "clc",
	MnCLD: "cld", MnCLI: "cli", MnCMC: "cmc", MnCMP: "cmp",
	MnCMPSB: "cmpsb", MnCMPSW: "cmpsw", MnCWD: "cwd", MnDAA: "daa",
	MnDAS: "das", MnDEC: "dec", MnDIV: "div", MnESC: "esc",
	MnHLT: "hlt", MnIDIV: "idiv", MnIMUL: "imul", MnIN: "in",
	MnINC: "inc", MnINT: "int", MnINT3: "int3", MnINTO: "into",
	MnIRET: "iret", MnJB: "jb", MnJBE: "jbe", MnJCXZ: "jcxz",
	MnJL: "jl", MnJLE: "jle", MnJMP: "jmp", MnJMPF: "jmpf",
	MnJNB: "jnb", MnJNBE: "jnbe", MnJNL: "jnl", MnJNLE: "jnle",
	MnJNO: "jno", MnJNP: "jnp", MnJNS: "jns", MnJNZ: "jnz",
	MnJO: "jo", MnJP: "jp", MnJS: "js", MnJZ: "jz",
	MnLAHF: "lahf", MnLDS: "lds", MnLEA: "lea", MnLES: "les",
	MnLOCK: "lock", MnLODSB: "lodsb", MnLODSW: "lodsw", MnLOOP: "loop",
	MnLOOPE: "loope", MnLOOPNE: "loopne", MnMOV: "mov", MnMOVSB: "movsb",
	MnMOVSW: "movsw", MnMUL: "mul", MnNEG: "neg", MnNOP: "nop",
	MnNOT: "not", MnOR: "or", MnOUT: "out", MnPOP: "pop",
	MnPOPF: "popf", MnPUSH: "push", MnPUSHF: "pushf", MnRCL: "rcl",
	MnRCR: "rcr", MnRETF: "retf", MnRETN: "retn", MnROL: "rol",
	MnROR: "ror", MnSAHF: "sahf", MnSALC: "salc", MnSAR: "sar",
	MnSBB: "sbb", MnSCASB: "scasb", MnSCASW: "scasw", MnSETMO: "setmo",
	MnSETMOC: "setmoc", MnSHL: "shl", MnSHR: "shr", MnSTC: "stc",
	MnSTD: "std", MnSTI: "sti", MnSTOSB: "stosb", MnSTOSW: "stosw",
	MnSUB: "sub", MnTEST: "test", MnWAIT: "wait", MnXCHG: "xchg",
	MnXLAT: "xlat", MnXOR: "xor",
	MnPUSHA: "pusha", MnPOPA: "popa", MnBOUND: "bound",
	MnINSB: "insb", MnINSW: "insw", MnOUTSB: "outsb", MnOUTSW: "outsw",
	MnENTER: "enter", MnLEAVE: "leave",
	MnBRKEM: "brkem", MnRETEM: "retem", MnCALLN: "calln",
	MnIMULI: "imul",
}

func (m Mnemonic) String() string {
	if s, ok := mnemonicNames[m]; ok {
		return s
	}
	return "(unknown)"
}

// OperandKind tags a decoded operand.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandReg8
	OperandReg16
	OperandSreg
	OperandImm8
	OperandImm16
	OperandImmS8 // sign-extended imm8 used as 16-bit
	OperandRel8
	OperandRel16
	OperandOffset8  // moffs8
	OperandOffset16 // moffs16
	OperandMemory8  // r/m memory form, byte
	OperandMemory16 // r/m memory form, word
	OperandFarPtr
	OperandImmConst // implicit constant (shift-by-1, INT3)
)

// AddressingBase selects the EA register combination of a memory
// operand.
type AddressingBase int

const (
	AddrBxSi AddressingBase = iota
	AddrBxDi
	AddrBpSi
	AddrBpDi
	AddrSi
	AddrDi
	AddrDisp16
	AddrBx
	AddrBp
)

// Operand is a decoded operand descriptor.
type Operand struct {
	Kind    OperandKind
	Reg     int // register number for Reg8/Reg16/Sreg
	Imm     uint16
	Rel     int16
	Offset  uint16
	Base    AddressingBase
	Disp    int16
	FarSeg  uint16
	FarOfs  uint16
	HasDisp bool
}

// Instruction is the decoded form of a byte stream.
type Instruction struct {
	Opcode   uint8
	Prefixes uint32
	Mnemonic Mnemonic
	Segment  SegmentRegister // resolved override, SegmentNone if absent
	Operand1 Operand
	Operand2 Operand
	Operand3 Operand // third operand of the NEC IMUL imm forms
	Size     uint8
	Address  uint16 // IP at the first byte

	hasModRM bool
	mod      uint8
	reg      uint8
	rm       uint8
	// Base cycle cost columns from the decode table.
	cycles      uint8
	cyclesMem   uint8
	cyclesTaken uint8
}

// Operand template codes for the decode table.
type opTemplate uint8

const (
	tNone opTemplate = iota
	tRm8             // r/m8 (register or memory per mod)
	tRm16
	tReg8  // modrm reg field as r8
	tReg16 // modrm reg field as r16
	tSreg  // modrm reg field as segment register
	tImm8
	tImm16
	tImmS8
	tRel8
	tRel16
	tOfs8
	tOfs16
	tFarPtr
	tAL
	tAX
	tCL
	tDX
	tOpReg8  // register from opcode low bits
	tOpReg16 // register from opcode low bits
	tSregOp  // segment register from opcode bits 3-4
	tOne     // implicit constant 1
	tMem16   // m16 only (LEA/LES/LDS)
)

// Group-decode flags.
type gdrFlags uint8

const (
	gdrModRM gdrFlags = 1 << iota
	gdrGroup          // mnemonic comes from modrm reg field
)

type decodeEntry struct {
	mnemonic Mnemonic
	op1, op2 opTemplate
	flags    gdrFlags
	// Documented 8086 base cycle columns. The 8088's extra word
	// transfer penalty is charged by the BIU helpers.
	cycles      uint8
	cyclesMem   uint8 // memory-operand form, before EA cost (0 = same)
	cyclesTaken uint8 // taken-branch cost (0 = n/a)
}

// Group tables: mnemonic selected by the modrm reg field.
var grp1Table = [8]Mnemonic{MnADD, MnOR, MnADC, MnSBB, MnAND, MnSUB, MnXOR, MnCMP}
var grp2Table = [8]Mnemonic{MnROL, MnROR, MnRCL, MnRCR, MnSHL, MnSHR, MnSETMO, MnSAR}
var grp3Table = [8]Mnemonic{MnTEST, MnTEST, MnNOT, MnNEG, MnMUL, MnIMUL, MnDIV, MnIDIV}
var grp4Table = [8]Mnemonic{MnINC, MnDEC, MnInvalid, MnInvalid, MnInvalid, MnInvalid, MnInvalid, MnInvalid}
var grp5Table = [8]Mnemonic{MnINC, MnDEC, MnCALL, MnCALLF, MnJMP, MnJMPF, MnPUSH, MnPUSH}

// decodeTable is the 256-entry primary opcode table for the 8088.
// Undefined opcodes carry their documented aliasing behavior; the
// handful with no behavior at all decode as MnInvalid.
var decodeTable = [256]decodeEntry{
	0x00: {MnADD, tRm8, tReg8, gdrModRM, 3, 16, 0},
	0x01: {MnADD, tRm16, tReg16, gdrModRM, 3, 16, 0},
	0x02: {MnADD, tReg8, tRm8, gdrModRM, 3, 9, 0},
	0x03: {MnADD, tReg16, tRm16, gdrModRM, 3, 9, 0},
	0x04: {MnADD, tAL, tImm8, 0, 4, 0, 0},
	0x05: {MnADD, tAX, tImm16, 0, 4, 0, 0},
	0x06: {MnPUSH, tSregOp, tNone, 0, 10, 0, 0},
	0x07: {MnPOP, tSregOp, tNone, 0, 8, 0, 0},
	0x08: {MnOR, tRm8, tReg8, gdrModRM, 3, 16, 0},
	0x09: {MnOR, tRm16, tReg16, gdrModRM, 3, 16, 0},
	0x0A: {MnOR, tReg8, tRm8, gdrModRM, 3, 9, 0},
	0x0B: {MnOR, tReg16, tRm16, gdrModRM, 3, 9, 0},
	0x0C: {MnOR, tAL, tImm8, 0, 4, 0, 0},
	0x0D: {MnOR, tAX, tImm16, 0, 4, 0, 0},
	0x0E: {MnPUSH, tSregOp, tNone, 0, 10, 0, 0},
	0x0F: {MnPOP, tSregOp, tNone, 0, 8, 0, 0}, // POP CS: 8088 alias
	0x10: {MnADC, tRm8, tReg8, gdrModRM, 3, 16, 0},
	0x11: {MnADC, tRm16, tReg16, gdrModRM, 3, 16, 0},
	0x12: {MnADC, tReg8, tRm8, gdrModRM, 3, 9, 0},
	0x13: {MnADC, tReg16, tRm16, gdrModRM, 3, 9, 0},
	0x14: {MnADC, tAL, tImm8, 0, 4, 0, 0},
	0x15: {MnADC, tAX, tImm16, 0, 4, 0, 0},
	0x16: {MnPUSH, tSregOp, tNone, 0, 10, 0, 0},
	0x17: {MnPOP, tSregOp, tNone, 0, 8, 0, 0},
	0x18: {MnSBB, tRm8, tReg8, gdrModRM, 3, 16, 0},
	0x19: {MnSBB, tRm16, tReg16, gdrModRM, 3, 16, 0},
	0x1A: {MnSBB, tReg8, tRm8, gdrModRM, 3, 9, 0},
	0x1B: {MnSBB, tReg16, tRm16, gdrModRM, 3, 9, 0},
	0x1C: {MnSBB, tAL, tImm8, 0, 4, 0, 0},
	0x1D: {MnSBB, tAX, tImm16, 0, 4, 0, 0},
	0x1E: {MnPUSH, tSregOp, tNone, 0, 10, 0, 0},
	0x1F: {MnPOP, tSregOp, tNone, 0, 8, 0, 0},
	0x20: {MnAND, tRm8, tReg8, gdrModRM, 3, 16, 0},
	0x21: {MnAND, tRm16, tReg16, gdrModRM, 3, 16, 0},
	0x22: {MnAND, tReg8, tRm8, gdrModRM, 3, 9, 0},
	0x23: {MnAND, tReg16, tRm16, gdrModRM, 3, 9, 0},
	0x24: {MnAND, tAL, tImm8, 0, 4, 0, 0},
	0x25: {MnAND, tAX, tImm16, 0, 4, 0, 0},
	// 0x26 ES prefix
	0x27: {MnDAA, tNone, tNone, 0, 4, 0, 0},
	0x28: {MnSUB, tRm8, tReg8, gdrModRM, 3, 16, 0},
	0x29: {MnSUB, tRm16, tReg16, gdrModRM, 3, 16, 0},
	0x2A: {MnSUB, tReg8, tRm8, gdrModRM, 3, 9, 0},
	0x2B: {MnSUB, tReg16, tRm16, gdrModRM, 3, 9, 0},
	0x2C: {MnSUB, tAL, tImm8, 0, 4, 0, 0},
	0x2D: {MnSUB, tAX, tImm16, 0, 4, 0, 0},
	// 0x2E CS prefix
	0x2F: {MnDAS, tNone, tNone, 0, 4, 0, 0},
	0x30: {MnXOR, tRm8, tReg8, gdrModRM, 3, 16, 0},
	0x31: {MnXOR, tRm16, tReg16, gdrModRM, 3, 16, 0},
	0x32: {MnXOR, tReg8, tRm8, gdrModRM, 3, 9, 0},
	0x33: {MnXOR, tReg16, tRm16, gdrModRM, 3, 9, 0},
	0x34: {MnXOR, tAL, tImm8, 0, 4, 0, 0},
	0x35: {MnXOR, tAX, tImm16, 0, 4, 0, 0},
	// 0x36 SS prefix
	0x37: {MnAAA, tNone, tNone, 0, 8, 0, 0},
	0x38: {MnCMP, tRm8, tReg8, gdrModRM, 3, 9, 0},
	0x39: {MnCMP, tRm16, tReg16, gdrModRM, 3, 9, 0},
	0x3A: {MnCMP, tReg8, tRm8, gdrModRM, 3, 9, 0},
	0x3B: {MnCMP, tReg16, tRm16, gdrModRM, 3, 9, 0},
	0x3C: {MnCMP, tAL, tImm8, 0, 4, 0, 0},
	0x3D: {MnCMP, tAX, tImm16, 0, 4, 0, 0},
	// 0x3E DS prefix
	0x3F: {MnAAS, tNone, tNone, 0, 8, 0, 0},
	0x40: {MnINC, tOpReg16, tNone, 0, 3, 0, 0},
	0x41: {MnINC, tOpReg16, tNone, 0, 3, 0, 0},
	0x42: {MnINC, tOpReg16, tNone, 0, 3, 0, 0},
	0x43: {MnINC, tOpReg16, tNone, 0, 3, 0, 0},
	0x44: {MnINC, tOpReg16, tNone, 0, 3, 0, 0},
	0x45: {MnINC, tOpReg16, tNone, 0, 3, 0, 0},
	0x46: {MnINC, tOpReg16, tNone, 0, 3, 0, 0},
	0x47: {MnINC, tOpReg16, tNone, 0, 3, 0, 0},
	0x48: {MnDEC, tOpReg16, tNone, 0, 3, 0, 0},
	0x49: {MnDEC, tOpReg16, tNone, 0, 3, 0, 0},
	0x4A: {MnDEC, tOpReg16, tNone, 0, 3, 0, 0},
	0x4B: {MnDEC, tOpReg16, tNone, 0, 3, 0, 0},
	0x4C: {MnDEC, tOpReg16, tNone, 0, 3, 0, 0},
	0x4D: {MnDEC, tOpReg16, tNone, 0, 3, 0, 0},
	0x4E: {MnDEC, tOpReg16, tNone, 0, 3, 0, 0},
	0x4F: {MnDEC, tOpReg16, tNone, 0, 3, 0, 0},
	0x50: {MnPUSH, tOpReg16, tNone, 0, 11, 0, 0},
	0x51: {MnPUSH, tOpReg16, tNone, 0, 11, 0, 0},
	0x52: {MnPUSH, tOpReg16, tNone, 0, 11, 0, 0},
	0x53: {MnPUSH, tOpReg16, tNone, 0, 11, 0, 0},
	0x54: {MnPUSH, tOpReg16, tNone, 0, 11, 0, 0},
	0x55: {MnPUSH, tOpReg16, tNone, 0, 11, 0, 0},
	0x56: {MnPUSH, tOpReg16, tNone, 0, 11, 0, 0},
	0x57: {MnPUSH, tOpReg16, tNone, 0, 11, 0, 0},
	0x58: {MnPOP, tOpReg16, tNone, 0, 8, 0, 0},
	0x59: {MnPOP, tOpReg16, tNone, 0, 8, 0, 0},
	0x5A: {MnPOP, tOpReg16, tNone, 0, 8, 0, 0},
	0x5B: {MnPOP, tOpReg16, tNone, 0, 8, 0, 0},
	0x5C: {MnPOP, tOpReg16, tNone, 0, 8, 0, 0},
	0x5D: {MnPOP, tOpReg16, tNone, 0, 8, 0, 0},
	0x5E: {MnPOP, tOpReg16, tNone, 0, 8, 0, 0},
	0x5F: {MnPOP, tOpReg16, tNone, 0, 8, 0, 0},
	// 0x60-0x6F alias to 0x70-0x7F on the 8088; the NEC parts decode
	// their 186-class instructions here (handled by the V20 overlay).
	0x60: {MnJO, tRel8, tNone, 0, 4, 0, 16},
	0x61: {MnJNO, tRel8, tNone, 0, 4, 0, 16},
	0x62: {MnJB, tRel8, tNone, 0, 4, 0, 16},
	0x63: {MnJNB, tRel8, tNone, 0, 4, 0, 16},
	0x64: {MnJZ, tRel8, tNone, 0, 4, 0, 16},
	0x65: {MnJNZ, tRel8, tNone, 0, 4, 0, 16},
	0x66: {MnJBE, tRel8, tNone, 0, 4, 0, 16},
	0x67: {MnJNBE, tRel8, tNone, 0, 4, 0, 16},
	0x68: {MnJS, tRel8, tNone, 0, 4, 0, 16},
	0x69: {MnJNS, tRel8, tNone, 0, 4, 0, 16},
	0x6A: {MnJP, tRel8, tNone, 0, 4, 0, 16},
	0x6B: {MnJNP, tRel8, tNone, 0, 4, 0, 16},
	0x6C: {MnJL, tRel8, tNone, 0, 4, 0, 16},
	0x6D: {MnJNL, tRel8, tNone, 0, 4, 0, 16},
	0x6E: {MnJLE, tRel8, tNone, 0, 4, 0, 16},
	0x6F: {MnJNLE, tRel8, tNone, 0, 4, 0, 16},
	0x70: {MnJO, tRel8, tNone, 0, 4, 0, 16},
	0x71: {MnJNO, tRel8, tNone, 0, 4, 0, 16},
	0x72: {MnJB, tRel8, tNone, 0, 4, 0, 16},
	0x73: {MnJNB, tRel8, tNone, 0, 4, 0, 16},
	0x74: {MnJZ, tRel8, tNone, 0, 4, 0, 16},
	0x75: {MnJNZ, tRel8, tNone, 0, 4, 0, 16},
	0x76: {MnJBE, tRel8, tNone, 0, 4, 0, 16},
	0x77: {MnJNBE, tRel8, tNone, 0, 4, 0, 16},
	0x78: {MnJS, tRel8, tNone, 0, 4, 0, 16},
	0x79: {MnJNS, tRel8, tNone, 0, 4, 0, 16},
	0x7A: {MnJP, tRel8, tNone, 0, 4, 0, 16},
	0x7B: {MnJNP, tRel8, tNone, 0, 4, 0, 16},
	0x7C: {MnJL, tRel8, tNone, 0, 4, 0, 16},
	0x7D: {MnJNL, tRel8, tNone, 0, 4, 0, 16},
	0x7E: {MnJLE, tRel8, tNone, 0, 4, 0, 16},
	0x7F: {MnJNLE, tRel8, tNone, 0, 4, 0, 16},
	0x80: {MnInvalid, tRm8, tImm8, gdrModRM | gdrGroup, 4, 17, 0},
	0x81: {MnInvalid, tRm16, tImm16, gdrModRM | gdrGroup, 4, 17, 0},
	0x82: {MnInvalid, tRm8, tImm8, gdrModRM | gdrGroup, 4, 17, 0},
	0x83: {MnInvalid, tRm16, tImmS8, gdrModRM | gdrGroup, 4, 17, 0},
	0x84: {MnTEST, tRm8, tReg8, gdrModRM, 3, 9, 0},
	0x85: {MnTEST, tRm16, tReg16, gdrModRM, 3, 9, 0},
	0x86: {MnXCHG, tReg8, tRm8, gdrModRM, 4, 17, 0},
	0x87: {MnXCHG, tReg16, tRm16, gdrModRM, 4, 17, 0},
	0x88: {MnMOV, tRm8, tReg8, gdrModRM, 2, 9, 0},
	0x89: {MnMOV, tRm16, tReg16, gdrModRM, 2, 9, 0},
	0x8A: {MnMOV, tReg8, tRm8, gdrModRM, 2, 8, 0},
	0x8B: {MnMOV, tReg16, tRm16, gdrModRM, 2, 8, 0},
	0x8C: {MnMOV, tRm16, tSreg, gdrModRM, 2, 9, 0},
	0x8D: {MnLEA, tReg16, tMem16, gdrModRM, 2, 2, 0},
	0x8E: {MnMOV, tSreg, tRm16, gdrModRM, 2, 8, 0},
	0x8F: {MnPOP, tRm16, tNone, gdrModRM, 8, 17, 0},
	0x90: {MnNOP, tNone, tNone, 0, 3, 0, 0},
	0x91: {MnXCHG, tAX, tOpReg16, 0, 3, 0, 0},
	0x92: {MnXCHG, tAX, tOpReg16, 0, 3, 0, 0},
	0x93: {MnXCHG, tAX, tOpReg16, 0, 3, 0, 0},
	0x94: {MnXCHG, tAX, tOpReg16, 0, 3, 0, 0},
	0x95: {MnXCHG, tAX, tOpReg16, 0, 3, 0, 0},
	0x96: {MnXCHG, tAX, tOpReg16, 0, 3, 0, 0},
	0x97: {MnXCHG, tAX, tOpReg16, 0, 3, 0, 0},
	0x98: {MnCBW, tNone, tNone, 0, 2, 0, 0},
	0x99: {MnCWD, tNone, tNone, 0, 5, 0, 0},
	0x9A: {MnCALLF, tFarPtr, tNone, 0, 28, 0, 0},
	0x9B: {MnWAIT, tNone, tNone, 0, 4, 0, 0},
	0x9C: {MnPUSHF, tNone, tNone, 0, 10, 0, 0},
	0x9D: {MnPOPF, tNone, tNone, 0, 8, 0, 0},
	0x9E: {MnSAHF, tNone, tNone, 0, 4, 0, 0},
	0x9F: {MnLAHF, tNone, tNone, 0, 4, 0, 0},
	0xA0: {MnMOV, tAL, tOfs8, 0, 10, 0, 0},
	0xA1: {MnMOV, tAX, tOfs16, 0, 10, 0, 0},
	0xA2: {MnMOV, tOfs8, tAL, 0, 10, 0, 0},
	0xA3: {MnMOV, tOfs16, tAX, 0, 10, 0, 0},
	0xA4: {MnMOVSB, tNone, tNone, 0, 18, 0, 0},
	0xA5: {MnMOVSW, tNone, tNone, 0, 18, 0, 0},
	0xA6: {MnCMPSB, tNone, tNone, 0, 22, 0, 0},
	0xA7: {MnCMPSW, tNone, tNone, 0, 22, 0, 0},
	0xA8: {MnTEST, tAL, tImm8, 0, 4, 0, 0},
	0xA9: {MnTEST, tAX, tImm16, 0, 4, 0, 0},
	0xAA: {MnSTOSB, tNone, tNone, 0, 11, 0, 0},
	0xAB: {MnSTOSW, tNone, tNone, 0, 11, 0, 0},
	0xAC: {MnLODSB, tNone, tNone, 0, 12, 0, 0},
	0xAD: {MnLODSW, tNone, tNone, 0, 12, 0, 0},
	0xAE: {MnSCASB, tNone, tNone, 0, 15, 0, 0},
	0xAF: {MnSCASW, tNone, tNone, 0, 15, 0, 0},
	0xB0: {MnMOV, tOpReg8, tImm8, 0, 4, 0, 0},
	0xB1: {MnMOV, tOpReg8, tImm8, 0, 4, 0, 0},
	0xB2: {MnMOV, tOpReg8, tImm8, 0, 4, 0, 0},
	0xB3: {MnMOV, tOpReg8, tImm8, 0, 4, 0, 0},
	0xB4: {MnMOV, tOpReg8, tImm8, 0, 4, 0, 0},
	0xB5: {MnMOV, tOpReg8, tImm8, 0, 4, 0, 0},
	0xB6: {MnMOV, tOpReg8, tImm8, 0, 4, 0, 0},
	0xB7: {MnMOV, tOpReg8, tImm8, 0, 4, 0, 0},
	0xB8: {MnMOV, tOpReg16, tImm16, 0, 4, 0, 0},
	0xB9: {MnMOV, tOpReg16, tImm16, 0, 4, 0, 0},
	0xBA: {MnMOV, tOpReg16, tImm16, 0, 4, 0, 0},
	0xBB: {MnMOV, tOpReg16, tImm16, 0, 4, 0, 0},
	0xBC: {MnMOV, tOpReg16, tImm16, 0, 4, 0, 0},
	0xBD: {MnMOV, tOpReg16, tImm16, 0, 4, 0, 0},
	0xBE: {MnMOV, tOpReg16, tImm16, 0, 4, 0, 0},
	0xBF: {MnMOV, tOpReg16, tImm16, 0, 4, 0, 0},
	0xC0: {MnRETN, tImm16, tNone, 0, 20, 0, 0}, // alias of C2
	0xC1: {MnRETN, tNone, tNone, 0, 16, 0, 0},  // alias of C3
	0xC2: {MnRETN, tImm16, tNone, 0, 20, 0, 0},
	0xC3: {MnRETN, tNone, tNone, 0, 16, 0, 0},
	0xC4: {MnLES, tReg16, tMem16, gdrModRM, 16, 16, 0},
	0xC5: {MnLDS, tReg16, tMem16, gdrModRM, 16, 16, 0},
	0xC6: {MnMOV, tRm8, tImm8, gdrModRM, 4, 10, 0},
	0xC7: {MnMOV, tRm16, tImm16, gdrModRM, 4, 10, 0},
	0xC8: {MnRETF, tImm16, tNone, 0, 25, 0, 0}, // alias of CA
	0xC9: {MnRETF, tNone, tNone, 0, 26, 0, 0},  // alias of CB
	0xCA: {MnRETF, tImm16, tNone, 0, 25, 0, 0},
	0xCB: {MnRETF, tNone, tNone, 0, 26, 0, 0},
	0xCC: {MnINT3, tNone, tNone, 0, 1, 0, 0},
	0xCD: {MnINT, tImm8, tNone, 0, 0, 0, 0},
	0xCE: {MnINTO, tNone, tNone, 0, 4, 0, 0},
	0xCF: {MnIRET, tNone, tNone, 0, 32, 0, 0},
	0xD0: {MnInvalid, tRm8, tOne, gdrModRM | gdrGroup, 2, 15, 0},
	0xD1: {MnInvalid, tRm16, tOne, gdrModRM | gdrGroup, 2, 15, 0},
	0xD2: {MnInvalid, tRm8, tCL, gdrModRM | gdrGroup, 8, 20, 0},
	0xD3: {MnInvalid, tRm16, tCL, gdrModRM | gdrGroup, 8, 20, 0},
	0xD4: {MnAAM, tImm8, tNone, 0, 83, 0, 0},
	0xD5: {MnAAD, tImm8, tNone, 0, 60, 0, 0},
	0xD6: {MnSALC, tNone, tNone, 0, 4, 0, 0},
	0xD7: {MnXLAT, tNone, tNone, 0, 11, 0, 0},
	0xD8: {MnESC, tRm16, tNone, gdrModRM, 2, 8, 0},
	0xD9: {MnESC, tRm16, tNone, gdrModRM, 2, 8, 0},
	0xDA: {MnESC, tRm16, tNone, gdrModRM, 2, 8, 0},
	0xDB: {MnESC, tRm16, tNone, gdrModRM, 2, 8, 0},
	0xDC: {MnESC, tRm16, tNone, gdrModRM, 2, 8, 0},
	0xDD: {MnESC, tRm16, tNone, gdrModRM, 2, 8, 0},
	0xDE: {MnESC, tRm16, tNone, gdrModRM, 2, 8, 0},
	0xDF: {MnESC, tRm16, tNone, gdrModRM, 2, 8, 0},
	0xE0: {MnLOOPNE, tRel8, tNone, 0, 5, 0, 19},
	0xE1: {MnLOOPE, tRel8, tNone, 0, 6, 0, 18},
	0xE2: {MnLOOP, tRel8, tNone, 0, 5, 0, 17},
	0xE3: {MnJCXZ, tRel8, tNone, 0, 6, 0, 18},
	0xE4: {MnIN, tAL, tImm8, 0, 10, 0, 0},
	0xE5: {MnIN, tAX, tImm8, 0, 10, 0, 0},
	0xE6: {MnOUT, tImm8, tAL, 0, 10, 0, 0},
	0xE7: {MnOUT, tImm8, tAX, 0, 10, 0, 0},
	0xE8: {MnCALL, tRel16, tNone, 0, 19, 0, 0},
	0xE9: {MnJMP, tRel16, tNone, 0, 15, 0, 0},
	0xEA: {MnJMPF, tFarPtr, tNone, 0, 15, 0, 0},
	0xEB: {MnJMP, tRel8, tNone, 0, 15, 0, 0},
	0xEC: {MnIN, tAL, tDX, 0, 8, 0, 0},
	0xED: {MnIN, tAX, tDX, 0, 8, 0, 0},
	0xEE: {MnOUT, tDX, tAL, 0, 8, 0, 0},
	0xEF: {MnOUT, tDX, tAX, 0, 8, 0, 0},
	// 0xF0 LOCK prefix, 0xF1 LOCK alias
	0xF2: {MnInvalid, tNone, tNone, 0, 0, 0, 0}, // REPNE prefix
	0xF3: {MnInvalid, tNone, tNone, 0, 0, 0, 0}, // REP prefix
	0xF4: {MnHLT, tNone, tNone, 0, 2, 0, 0},
	0xF5: {MnCMC, tNone, tNone, 0, 2, 0, 0},
	0xF6: {MnInvalid, tRm8, tNone, gdrModRM | gdrGroup, 3, 5, 0},
	0xF7: {MnInvalid, tRm16, tNone, gdrModRM | gdrGroup, 3, 5, 0},
	0xF8: {MnCLC, tNone, tNone, 0, 2, 0, 0},
	0xF9: {MnSTC, tNone, tNone, 0, 2, 0, 0},
	0xFA: {MnCLI, tNone, tNone, 0, 2, 0, 0},
	0xFB: {MnSTI, tNone, tNone, 0, 2, 0, 0},
	0xFC: {MnCLD, tNone, tNone, 0, 2, 0, 0},
	0xFD: {MnSTD, tNone, tNone, 0, 2, 0, 0},
	0xFE: {MnInvalid, tRm8, tNone, gdrModRM | gdrGroup, 3, 15, 0},
	0xFF: {MnInvalid, tRm16, tNone, gdrModRM | gdrGroup, 3, 15, 0},
}

// isPrefixByte reports whether op is a prefix on the 808x.
func isPrefixByte(op uint8) bool {
	switch op {
	case 0x26, 0x2E, 0x36, 0x3E, 0xF0, 0xF1, 0xF2, 0xF3:
		return true
	}
	return false
}

// decodeInstruction reads one complete instruction from the queue.
// necMode selects the V20/V30 instruction overlay for the 0x60 block
// and the 0F page.
func decodeInstruction(q ByteQueue, necMode bool) Instruction {
	var inst Instruction
	size := 0

	// Prefix chain. Hardware imposes no limit; neither do we, but
	// the segment override and REP state are last-writer-wins.
	op := q.QReadU8(QueueFirst, ReaderBiu)
	size++
	for isPrefixByte(op) {
		switch op {
		case 0x26:
			inst.Prefixes |= PrefixES
			inst.Segment = SegmentES
		case 0x2E:
			inst.Prefixes |= PrefixCS
			inst.Segment = SegmentCS
		case 0x36:
			inst.Prefixes |= PrefixSS
			inst.Segment = SegmentSS
		case 0x3E:
			inst.Prefixes |= PrefixDS
			inst.Segment = SegmentDS
		case 0xF0, 0xF1:
			inst.Prefixes |= PrefixLock
		case 0xF2:
			inst.Prefixes |= PrefixRepne
		case 0xF3:
			inst.Prefixes |= PrefixRep
		}
		op = q.QReadU8(QueueSubsequent, ReaderBiu)
		size++
	}

	inst.Opcode = op
	entry := &decodeTable[op]
	if necMode {
		if op == 0x0F {
			// Two-byte page: only BRKEM is implemented here.
			sub := q.QReadU8(QueueSubsequent, ReaderBiu)
			size++
			if sub == 0xFF {
				inst.Mnemonic = MnBRKEM
				inst.Operand1.Kind = OperandImm8
				inst.Operand1.Imm = uint16(q.QReadU8(QueueSubsequent, ReaderBiu))
				size++
			} else {
				inst.Mnemonic = MnInvalid
			}
			inst.Size = uint8(size)
			return inst
		}
		if e, ok := necDecodeOverlay[op]; ok {
			entry = e
		}
	}
	inst.Mnemonic = entry.mnemonic
	inst.cycles = entry.cycles
	inst.cyclesMem = entry.cyclesMem
	inst.cyclesTaken = entry.cyclesTaken

	if entry.flags&gdrModRM != 0 {
		m := q.QReadU8(QueueSubsequent, ReaderBiu)
		size++
		inst.hasModRM = true
		inst.mod = m >> 6
		inst.reg = (m >> 3) & 7
		inst.rm = m & 7

		if entry.flags&gdrGroup != 0 {
			inst.Mnemonic = resolveGroup(op, inst.reg)
		}

		// Displacement bytes.
		switch {
		case inst.mod == 0 && inst.rm == 6:
			inst.Operand1.Disp = int16(q.QReadU16(QueueSubsequent, ReaderBiu))
			inst.Operand1.HasDisp = true
			size += 2
		case inst.mod == 1:
			inst.Operand1.Disp = int16(q.QReadI8(QueueSubsequent, ReaderBiu))
			inst.Operand1.HasDisp = true
			size++
		case inst.mod == 2:
			inst.Operand1.Disp = int16(q.QReadU16(QueueSubsequent, ReaderBiu))
			inst.Operand1.HasDisp = true
			size += 2
		}
	}

	// TEST via grp3 reads an immediate; the other grp3 ops do not.
	op1 := entry.op1
	op2 := entry.op2
	if (op == 0xF6 || op == 0xF7) && inst.reg <= 1 {
		if op == 0xF6 {
			op2 = tImm8
		} else {
			op2 = tImm16
		}
	}

	size += fillOperand(&inst.Operand1, op1, q, &inst)
	size += fillOperand(&inst.Operand2, op2, q, &inst)

	// IMUL r16, r/m16, imm carries its immediate after the r/m bytes.
	if inst.Mnemonic == MnIMULI {
		t := tImm16
		if op == 0x6B {
			t = tImmS8
		}
		size += fillOperand(&inst.Operand3, t, q, &inst)
	}
	inst.Size = uint8(size)
	return inst
}

// resolveGroup maps a group opcode's modrm reg field to its mnemonic.
func resolveGroup(op, reg uint8) Mnemonic {
	switch op {
	case 0x80, 0x81, 0x82, 0x83:
		return grp1Table[reg]
	case 0xD0, 0xD1:
		return grp2Table[reg]
	case 0xD2, 0xD3:
		m := grp2Table[reg]
		if m == MnSETMO {
			return MnSETMOC
		}
		return m
	case 0xF6, 0xF7:
		return grp3Table[reg]
	case 0xFE:
		return grp4Table[reg]
	case 0xFF:
		return grp5Table[reg]
	}
	return MnInvalid
}

// fillOperand materializes one operand from its template, reading any
// immediate bytes it requires. Returns the byte count consumed.
func fillOperand(o *Operand, t opTemplate, q ByteQueue, inst *Instruction) int {
	switch t {
	case tNone:
		o.Kind = OperandNone
	case tRm8, tRm16, tMem16:
		word := t != tRm8
		if inst.mod == 3 && t != tMem16 {
			if word {
				o.Kind = OperandReg16
			} else {
				o.Kind = OperandReg8
			}
			o.Reg = int(inst.rm)
		} else {
			if word {
				o.Kind = OperandMemory16
			} else {
				o.Kind = OperandMemory8
			}
			o.Base = addressingBase(inst.mod, inst.rm)
			o.Disp = inst.Operand1.Disp
			o.HasDisp = inst.Operand1.HasDisp
		}
	case tReg8:
		o.Kind = OperandReg8
		o.Reg = int(inst.reg)
	case tReg16:
		o.Kind = OperandReg16
		o.Reg = int(inst.reg)
	case tSreg:
		o.Kind = OperandSreg
		o.Reg = int(inst.reg & 3)
	case tImm8:
		o.Kind = OperandImm8
		o.Imm = uint16(q.QReadU8(QueueSubsequent, ReaderBiu))
		return 1
	case tImm16:
		o.Kind = OperandImm16
		o.Imm = q.QReadU16(QueueSubsequent, ReaderBiu)
		return 2
	case tImmS8:
		o.Kind = OperandImmS8
		o.Imm = uint16(int16(q.QReadI8(QueueSubsequent, ReaderBiu)))
		return 1
	case tRel8:
		o.Kind = OperandRel8
		o.Rel = int16(q.QReadI8(QueueSubsequent, ReaderBiu))
		return 1
	case tRel16:
		o.Kind = OperandRel16
		o.Rel = q.QReadI16(QueueSubsequent, ReaderBiu)
		return 2
	case tOfs8:
		o.Kind = OperandOffset8
		o.Offset = q.QReadU16(QueueSubsequent, ReaderBiu)
		return 2
	case tOfs16:
		o.Kind = OperandOffset16
		o.Offset = q.QReadU16(QueueSubsequent, ReaderBiu)
		return 2
	case tFarPtr:
		o.Kind = OperandFarPtr
		o.FarOfs = q.QReadU16(QueueSubsequent, ReaderBiu)
		o.FarSeg = q.QReadU16(QueueSubsequent, ReaderBiu)
		return 4
	case tAL:
		o.Kind = OperandReg8
		o.Reg = regAL
	case tCL:
		o.Kind = OperandReg8
		o.Reg = regCL
	case tAX:
		o.Kind = OperandReg16
		o.Reg = regAX
	case tDX:
		o.Kind = OperandReg16
		o.Reg = regDX
	case tOpReg8:
		o.Kind = OperandReg8
		o.Reg = int(inst.Opcode & 7)
	case tOpReg16:
		o.Kind = OperandReg16
		o.Reg = int(inst.Opcode & 7)
	case tSregOp:
		o.Kind = OperandSreg
		o.Reg = int((inst.Opcode >> 3) & 3)
	case tOne:
		o.Kind = OperandImmConst
		o.Imm = 1
	}
	return 0
}

// addressingBase maps mod/rm to the EA register combination.
func addressingBase(mod, rm uint8) AddressingBase {
	if mod == 0 && rm == 6 {
		return AddrDisp16
	}
	switch rm {
	case 0:
		return AddrBxSi
	case 1:
		return AddrBxDi
	case 2:
		return AddrBpSi
	case 3:
		return AddrBpDi
	case 4:
		return AddrSi
	case 5:
		return AddrDi
	case 6:
		return AddrBp
	}
	return AddrBx
}

// Register numbering used by Operand.Reg (matches instruction
// encoding order).
const (
	regAL = 0
	regCL = 1
	regDL = 2
	regBL = 3
	regAH = 4
	regCH = 5
	regDH = 6
	regBH = 7

	regAX = 0
	regCX = 1
	regDX = 2
	regBX = 3
	regSP = 4
	regBP = 5
	regSI = 6
	regDI = 7

	sregES = 0
	sregCS = 1
	sregSS = 2
	sregDS = 3
)
