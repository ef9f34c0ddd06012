// a0.go - XT NMI mask register at port A0
//
// A single write-only bit: NMI sources (parity error, 8087) only reach
// the CPU while bit 7 is set. The XT BIOS enables it late in POST.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

const a0Port = 0xA0

type A0Register struct {
	nmiEnabled bool
}

func NewA0Register() *A0Register {
	return &A0Register{}
}

func (a *A0Register) Ports() []uint16 {
	return []uint16{a0Port}
}

// NMIEnabled gates NMI delivery in the machine's run loop.
func (a *A0Register) NMIEnabled() bool {
	return a.nmiEnabled
}

func (a *A0Register) ReadU8(_ uint16, _ uint32) uint8 {
	return NoIOByte // write-only on the XT
}

func (a *A0Register) WriteU8(_ uint16, data uint8, _ *SystemBus, _ uint32) {
	a.nmiEnabled = data&0x80 != 0
}
