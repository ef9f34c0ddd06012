// video_vga.go - VGA with chain-4, planar and alphanumeric decode
//
// The planar core carries the four bit planes plus the sequencer and
// graphics controller; this file adds the VGA pieces on top: the DAC
// at 3C6-3C9 with 6-bit components and an auto-incrementing index
// that wraps mod 256, the attribute controller, and a 640x400 field
// renderer. Power-on state is mode 13h: sequencer chain-4 gives
// software a flat 64 KB byte-per-pixel window at A0000, and the
// 320x200 image is doubled into the field.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

const (
	vgaVramBase = 0xA0000
	vgaVramEnd  = 0xB0000

	vgaFieldW = 640
	vgaFieldH = 400

	// Mode 13h source geometry before doubling.
	vgaModeW = 320
	vgaModeH = 200

	// 70 Hz field rate against the 4.77 MHz CPU clock.
	vgaCyclesPerFrame = 68182
	vgaVSyncCycles    = 2000
)

type VGACard struct {
	planarVRAM

	crtc *CRTC6845
	font *FontROM

	attrIndex uint8
	attrRegs  [32]uint8
	attrFlip  bool
	miscOut   uint8

	// DAC state: 256 entries of three 6-bit components.
	dac        [256][3]uint8
	dacIndex   uint8
	dacPhase   uint8
	dacReading bool
	dacMask    uint8

	cycleAcc uint32
	inVSync  bool
	frames   uint64

	extents DisplayExtents
	buffers [2][]uint8
	front   int
}

func NewVGACard() *VGACard {
	v := &VGACard{
		crtc: NewCRTC6845(),
		font: builtinFont16(),
	}
	v.extents = DisplayExtents{
		FieldW:    vgaFieldW,
		FieldH:    vgaFieldH,
		VisibleW:  vgaFieldW,
		VisibleH:  vgaFieldH,
		RowStride: vgaFieldW * 4,
	}
	size := v.extents.FieldH * v.extents.RowStride
	v.buffers[0] = make([]uint8, size)
	v.buffers[1] = make([]uint8, size)
	v.Reset()
	return v
}

func (v *VGACard) DisplayType() VideoType { return VideoVGA }

func (v *VGACard) Reset() {
	v.resetPlanar()
	// Mode 13h out of reset: chain-4 addressing, graphics decode.
	v.seqRegs[egaSeqMemMode] = 0x08
	v.gfxRegs[egaGfxMisc] = 0x01
	for i := 0; i < 16; i++ {
		v.attrRegs[i] = uint8(i)
	}
	v.attrFlip = false
	v.dacMask = 0xFF
	v.dacIndex = 0
	v.dacPhase = 0
	v.cycleAcc = 0
	v.defaultPalette()
}

// defaultPalette loads the power-on DAC contents: the sixteen RGBI
// colours, a sixteen step grey ramp, then hue ramps at three values
// and three saturations.
func (v *VGACard) defaultPalette() {
	for i := 0; i < 16; i++ {
		c := cgaPalette[i]
		v.dac[i] = [3]uint8{
			uint8(c>>24) >> 2,
			uint8(c>>16) >> 2,
			uint8(c>>8) >> 2,
		}
	}
	grays := [16]uint8{0, 5, 8, 11, 14, 17, 20, 24, 28, 32, 36, 40, 45, 50, 56, 63}
	for i := 0; i < 16; i++ {
		v.dac[16+i] = [3]uint8{grays[i], grays[i], grays[i]}
	}
	idx := 32
	values := [3]uint8{63, 28, 16}
	saturations := [3]uint8{0, 2, 3}
	for _, val := range values {
		for _, sat := range saturations {
			low := uint8(uint32(val) * uint32(sat) / 4)
			for h := 0; h < 24; h++ {
				if idx > 255 {
					return
				}
				v.dac[idx] = hueEntry(h, val, low)
				idx++
			}
		}
	}
}

// hueEntry walks the 24-step hue circle between low and val.
func hueEntry(h int, val, low uint8) [3]uint8 {
	ramp := func(pos int) uint8 {
		pos = (pos%24 + 24) % 24
		span := int(val) - int(low)
		switch {
		case pos < 4:
			return uint8(int(low) + span*pos/4)
		case pos < 12:
			return val
		case pos < 16:
			return uint8(int(low) + span*(16-pos)/4)
		}
		return low
	}
	return [3]uint8{ramp(h), ramp(h + 16), ramp(h + 8)}
}

func (v *VGACard) IoPorts() []uint16 {
	return []uint16{0x3C0, 0x3C1, 0x3C2, 0x3C4, 0x3C5, 0x3C6, 0x3C7, 0x3C8,
		0x3C9, 0x3CC, 0x3CE, 0x3CF, 0x3D4, 0x3D5, 0x3DA}
}

func (v *VGACard) MmioRange() (uint32, uint32) {
	return vgaVramBase, vgaVramEnd
}

func (v *VGACard) ReadU8(port uint16, delta uint32) uint8 {
	switch port {
	case 0x3C1:
		return v.attrRegs[v.attrIndex&0x1F]
	case 0x3C5:
		return v.seqRegs[v.seqIndex&0x07]
	case 0x3C6:
		return v.dacMask
	case 0x3C7:
		// DAC state: 11b after a read index write, 00b after a
		// write index write.
		if v.dacReading {
			return 0x03
		}
		return 0x00
	case 0x3C8:
		return v.dacIndex
	case 0x3C9:
		d := v.dac[v.dacIndex][v.dacPhase] & 0x3F
		v.advanceDAC()
		return d
	case 0x3CC:
		return v.miscOut
	case 0x3CF:
		return v.gfxRegs[v.gfxIndex%uint8(len(v.gfxRegs))]
	case 0x3D5:
		return v.crtc.ReadRegister()
	case 0x3DA:
		v.attrFlip = false
		s := uint8(0xF0)
		if v.inVSync {
			s |= 0x09
		}
		return s
	}
	return NoIOByte
}

func (v *VGACard) WriteU8(port uint16, data uint8, bus *SystemBus, delta uint32) {
	switch port {
	case 0x3C0:
		if !v.attrFlip {
			v.attrIndex = data & 0x3F
		} else {
			v.attrRegs[v.attrIndex&0x1F] = data
		}
		v.attrFlip = !v.attrFlip
	case 0x3C2:
		v.miscOut = data
	case 0x3C4:
		v.seqIndex = data
	case 0x3C5:
		v.seqRegs[v.seqIndex&0x07] = data
	case 0x3C6:
		v.dacMask = data
	case 0x3C7:
		v.dacIndex = data
		v.dacPhase = 0
		v.dacReading = true
	case 0x3C8:
		v.dacIndex = data
		v.dacPhase = 0
		v.dacReading = false
	case 0x3C9:
		v.dac[v.dacIndex][v.dacPhase] = data & 0x3F
		v.advanceDAC()
	case 0x3CE:
		v.gfxIndex = data
	case 0x3CF:
		v.gfxRegs[v.gfxIndex%uint8(len(v.gfxRegs))] = data
	case 0x3D4:
		v.crtc.SelectRegister(data)
	case 0x3D5:
		v.crtc.WriteRegister(data)
	}
}

// advanceDAC steps the component phase; after blue the index
// increments and wraps mod 256 by uint8 arithmetic.
func (v *VGACard) advanceDAC() {
	v.dacPhase++
	if v.dacPhase == 3 {
		v.dacPhase = 0
		v.dacIndex++
	}
}

func (v *VGACard) MmioReadU8(addr uint32) (uint8, uint32) {
	return v.memRead((addr - vgaVramBase) & (egaPlaneSize - 1)), 0
}

func (v *VGACard) MmioWriteU8(addr uint32, data uint8) uint32 {
	v.memWrite((addr-vgaVramBase)&(egaPlaneSize-1), data)
	return 0
}

func (v *VGACard) MmioPeekU8(addr uint32) uint8 {
	return v.memPeek((addr - vgaVramBase) & (egaPlaneSize - 1))
}

func (v *VGACard) Run(sysTicks uint32, bus *SystemBus) {
	v.cycleAcc += sysTicks
	v.inVSync = v.cycleAcc >= vgaCyclesPerFrame-vgaVSyncCycles
	if v.cycleAcc < vgaCyclesPerFrame {
		return
	}
	v.cycleAcc -= vgaCyclesPerFrame
	v.renderFrame()
	v.frames++
	v.crtc.TickFrame()
	v.front ^= 1
	if bus != nil {
		bus.CountRetrace()
	}
}

// dacRGBA expands 6-bit DAC components through the pel mask to RGBA.
func (v *VGACard) dacRGBA(idx uint8) uint32 {
	e := v.dac[idx&v.dacMask]
	return uint32(e[0])<<2<<24 | uint32(e[1])<<2<<16 | uint32(e[2])<<2<<8 | 0xFF
}

func (v *VGACard) renderFrame() {
	switch {
	case v.chain4():
		v.renderChain4()
	case v.gfxRegs[egaGfxMisc]&0x01 != 0:
		v.renderPlanar()
	default:
		v.renderText()
	}
}

// renderChain4 paints mode 13h: one byte per pixel across the chained
// planes, each source pixel doubled into a 2x2 block of the field.
func (v *VGACard) renderChain4() {
	back := v.buffers[v.front^1]
	start := uint32(v.crtc.StartAddress()) * 4
	for y := uint32(0); y < vgaModeH; y++ {
		for x := uint32(0); x < vgaModeW; x++ {
			lin := (start + y*vgaModeW + x) & (egaPlaneSize - 1)
			rgba := v.dacRGBA(v.planes[lin&3][lin>>2])
			putRGBA(back, &v.extents, x*2, y*2, rgba)
			putRGBA(back, &v.extents, x*2+1, y*2, rgba)
			putRGBA(back, &v.extents, x*2, y*2+1, rgba)
			putRGBA(back, &v.extents, x*2+1, y*2+1, rgba)
		}
	}
}

// renderPlanar paints 16 colour planar graphics at 640 wide, scan
// doubling 200-line modes into the 400-line field.
func (v *VGACard) renderPlanar() {
	back := v.buffers[v.front^1]
	lines := v.crtc.Rows() * v.crtc.CharHeight()
	if lines == 0 || lines > vgaFieldH {
		lines = vgaFieldH
	}
	double := uint32(1)
	if lines*2 <= vgaFieldH {
		double = 2
	}
	start := uint32(v.crtc.StartAddress())
	for y := uint32(0); y < vgaFieldH; y++ {
		src := y / double
		if src >= lines {
			for x := uint32(0); x < vgaFieldW; x++ {
				putRGBA(back, &v.extents, x, y, 0x000000FF)
			}
			continue
		}
		row := start + src*80
		for x := uint32(0); x < vgaFieldW; x++ {
			ofs := (row + x/8) & (egaPlaneSize - 1)
			bit := uint8(0x80 >> (x % 8))
			idx := uint8(0)
			for p := uint8(0); p < 4; p++ {
				if v.planes[p][ofs]&bit != 0 {
					idx |= 1 << p
				}
			}
			putRGBA(back, &v.extents, x, y, v.dacRGBA(v.attrRegs[idx&0x0F]))
		}
	}
}

// renderText paints 80x25 alphanumeric cells with the 16-line glyph
// set: characters from plane 0, attributes from plane 1.
func (v *VGACard) renderText() {
	back := v.buffers[v.front^1]
	cols := uint32(v.crtc.Columns())
	if cols == 0 || cols > 80 {
		cols = 80
	}
	rows := uint32(v.crtc.Rows())
	if rows == 0 || rows > 25 {
		rows = 25
	}
	cellH := uint32(v.crtc.CharHeight())
	if cellH < 2 || cellH > 16 {
		cellH = 16
	}
	start := uint32(v.crtc.StartAddress())
	cursor := uint32(v.crtc.CursorAddress())
	curStart, curEnd, curEnabled := v.crtc.CursorShape()
	curOn := curEnabled && v.crtc.CursorVisible()

	for y := uint32(0); y < vgaFieldH; y++ {
		row := y / cellH
		scan := y % cellH
		for x := uint32(0); x < vgaFieldW; x++ {
			col := x / 8
			if row >= rows || col >= cols {
				putRGBA(back, &v.extents, x, y, 0x000000FF)
				continue
			}
			cell := start + row*cols + col
			ch, attr := v.planeCell(cell)
			bits := v.font.Row(ch, scan)
			on := bits&(0x80>>(x%8)) != 0
			if curOn && cell == cursor &&
				scan >= uint32(curStart&0x1F) && scan <= uint32(curEnd&0x1F) {
				on = true
			}
			pal := attr & 0x0F
			if !on {
				pal = attr >> 4 & 0x0F
			}
			putRGBA(back, &v.extents, x, y, v.dacRGBA(v.attrRegs[pal]&0x3F))
		}
	}
}

func (v *VGACard) DisplayBuffer(sel BufferSelect) []uint8 {
	if sel == BufferFront {
		return v.buffers[v.front]
	}
	return v.buffers[v.front^1]
}

func (v *VGACard) DisplayExtents() *DisplayExtents { return &v.extents }

func (v *VGACard) Beam() (uint32, uint32) {
	return 0, v.cycleAcc * vgaFieldH / vgaCyclesPerFrame
}

func (v *VGACard) InVSync() bool { return v.inVSync }

func (v *VGACard) Frames() uint64 { return v.frames }
