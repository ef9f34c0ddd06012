// video_planar.go - planar VRAM core shared by the EGA and VGA
//
// Four 64 KB bit planes plus the sequencer and graphics controller
// register files that steer CPU access to them: map mask, set/reset,
// rotate/ALU, bit mask, the two read modes, and the chained address
// decodes (odd/even for text, chain-4 for mode 13h).
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

type planarVRAM struct {
	planes  [4][egaPlaneSize]uint8
	latches [4]uint8

	seqIndex uint8
	seqRegs  [8]uint8
	gfxIndex uint8
	gfxRegs  [9]uint8
}

func (pv *planarVRAM) resetPlanar() {
	pv.seqRegs[egaSeqMapMask] = 0x0F
	pv.gfxRegs[egaGfxBitMask] = 0xFF
}

// chain4 reports mode 13h addressing: the low two CPU address bits
// select the plane.
func (pv *planarVRAM) chain4() bool {
	return pv.seqRegs[egaSeqMemMode]&0x08 != 0
}

// oddEven reports text-mode chaining: even addresses hit plane 0
// (characters), odd addresses plane 1 (attributes).
func (pv *planarVRAM) oddEven() bool {
	return pv.gfxRegs[egaGfxMisc]&0x02 != 0
}

func (pv *planarVRAM) memRead(ofs uint32) uint8 {
	switch {
	case pv.chain4():
		return pv.planes[ofs&3][ofs>>2]
	case pv.oddEven():
		return pv.planes[ofs&1][ofs>>1]
	}
	for p := 0; p < 4; p++ {
		pv.latches[p] = pv.planes[p][ofs]
	}
	if pv.gfxRegs[egaGfxMode]&0x08 != 0 {
		// Read mode 1: colour compare across don't-care planes.
		result := uint8(0xFF)
		compare := pv.gfxRegs[egaGfxColorCompare]
		care := pv.gfxRegs[egaGfxColorDontCare]
		for p := uint8(0); p < 4; p++ {
			if care&(1<<p) == 0 {
				continue
			}
			want := uint8(0)
			if compare&(1<<p) != 0 {
				want = 0xFF
			}
			result &^= pv.latches[p] ^ want
		}
		return result
	}
	return pv.latches[pv.gfxRegs[egaGfxReadMap]&0x03]
}

func (pv *planarVRAM) memWrite(ofs uint32, data uint8) {
	switch {
	case pv.chain4():
		pv.planes[ofs&3][ofs>>2] = data
		return
	case pv.oddEven():
		pv.planes[ofs&1][ofs>>1] = data
		return
	}
	mapMask := pv.seqRegs[egaSeqMapMask] & 0x0F
	bitMask := pv.gfxRegs[egaGfxBitMask]
	mode := pv.gfxRegs[egaGfxMode] & 0x03

	for p := uint8(0); p < 4; p++ {
		if mapMask&(1<<p) == 0 {
			continue
		}
		var v uint8
		switch mode {
		case 1:
			// Write mode 1: replay latches, masks do not apply.
			pv.planes[p][ofs] = pv.latches[p]
			continue
		case 2:
			// Write mode 2: CPU byte is a colour, expanded per plane.
			v = 0
			if data&(1<<p) != 0 {
				v = 0xFF
			}
		default:
			v = rotateRight(data, pv.gfxRegs[egaGfxRotate]&0x07)
			if pv.gfxRegs[egaGfxEnableSetReset]&(1<<p) != 0 {
				v = 0
				if pv.gfxRegs[egaGfxSetReset]&(1<<p) != 0 {
					v = 0xFF
				}
			}
		}
		v = pv.aluOp(v, pv.latches[p])
		pv.planes[p][ofs] = v&bitMask | pv.latches[p]&^bitMask
	}
}

// memPeek is the side-effect-free view: no latch fill, no read modes.
func (pv *planarVRAM) memPeek(ofs uint32) uint8 {
	switch {
	case pv.chain4():
		return pv.planes[ofs&3][ofs>>2]
	case pv.oddEven():
		return pv.planes[ofs&1][ofs>>1]
	}
	return pv.planes[pv.gfxRegs[egaGfxReadMap]&0x03][ofs]
}

func (pv *planarVRAM) aluOp(v, latch uint8) uint8 {
	switch pv.gfxRegs[egaGfxRotate] >> 3 & 0x03 {
	case 1:
		return v & latch
	case 2:
		return v | latch
	case 3:
		return v ^ latch
	}
	return v
}

func rotateRight(v, count uint8) uint8 {
	count &= 7
	return v>>count | v<<(8-count)
}

// planeCell reads the character/attribute pair of one text cell.
func (pv *planarVRAM) planeCell(cell uint32) (ch, attr uint8) {
	cell &= egaPlaneSize - 1
	return pv.planes[0][cell], pv.planes[1][cell]
}
