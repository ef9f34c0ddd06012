// video_ega.go - Enhanced Graphics Adapter, planar 16 colour subset
//
// The four bit planes, sequencer and graphics controller live in the
// shared planar core; this file adds the EGA's attribute controller,
// palette expansion and the frame renderer for both the planar
// graphics modes and alphanumeric text. Rendering happens a frame at
// a time: the EGA is not dot-clock locked to the CPU the way the CGA
// is, so the card accumulates cycles and paints a field at each frame
// boundary.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

const (
	egaVramBase  = 0xA0000
	egaVramEnd   = 0xB0000
	egaPlaneSize = 0x10000

	egaFieldW = 640
	egaFieldH = 350

	// 60 Hz field against the 4.77 MHz CPU clock.
	egaCyclesPerFrame = 79545
	egaVSyncCycles    = 4000

	// Sequencer registers.
	egaSeqMapMask = 0x02
	egaSeqMemMode = 0x04

	// Graphics controller registers.
	egaGfxSetReset       = 0x00
	egaGfxEnableSetReset = 0x01
	egaGfxColorCompare   = 0x02
	egaGfxRotate         = 0x03
	egaGfxReadMap        = 0x04
	egaGfxMode           = 0x05
	egaGfxMisc           = 0x06
	egaGfxColorDontCare  = 0x07
	egaGfxBitMask        = 0x08
)

type EGACard struct {
	planarVRAM

	crtc *CRTC6845
	font *FontROM

	attrIndex uint8
	attrRegs  [32]uint8
	attrFlip  bool
	miscOut   uint8

	cycleAcc uint32
	inVSync  bool
	frames   uint64

	extents DisplayExtents
	buffers [2][]uint8
	front   int
}

func NewEGACard() *EGACard {
	e := &EGACard{
		crtc: NewCRTC6845(),
		font: builtinFont14(),
	}
	e.extents = DisplayExtents{
		FieldW:    egaFieldW,
		FieldH:    egaFieldH,
		VisibleW:  egaFieldW,
		VisibleH:  egaFieldH,
		RowStride: egaFieldW * 4,
	}
	size := e.extents.FieldH * e.extents.RowStride
	e.buffers[0] = make([]uint8, size)
	e.buffers[1] = make([]uint8, size)
	e.Reset()
	return e
}

func (e *EGACard) DisplayType() VideoType { return VideoEGA }

func (e *EGACard) Reset() {
	e.resetPlanar()
	// Power-on state is a planar graphics mode at A0000.
	e.gfxRegs[egaGfxMisc] = 0x05
	for i := 0; i < 16; i++ {
		e.attrRegs[i] = uint8(i)
	}
	e.attrFlip = false
	e.cycleAcc = 0
}

func (e *EGACard) IoPorts() []uint16 {
	return []uint16{0x3C0, 0x3C1, 0x3C2, 0x3C4, 0x3C5, 0x3CC, 0x3CE, 0x3CF,
		0x3D4, 0x3D5, 0x3DA}
}

func (e *EGACard) MmioRange() (uint32, uint32) {
	return egaVramBase, egaVramEnd
}

func (e *EGACard) ReadU8(port uint16, delta uint32) uint8 {
	switch port {
	case 0x3C1:
		return e.attrRegs[e.attrIndex&0x1F]
	case 0x3C5:
		return e.seqRegs[e.seqIndex&0x07]
	case 0x3CC:
		return e.miscOut
	case 0x3CF:
		return e.gfxRegs[e.gfxIndex%uint8(len(e.gfxRegs))]
	case 0x3D5:
		return e.crtc.ReadRegister()
	case 0x3DA:
		// Reading the status register resets the attribute
		// controller's index/data flip-flop.
		e.attrFlip = false
		s := uint8(0xF0)
		if e.inVSync {
			s |= 0x09
		}
		return s
	}
	return NoIOByte
}

func (e *EGACard) WriteU8(port uint16, data uint8, bus *SystemBus, delta uint32) {
	switch port {
	case 0x3C0:
		if !e.attrFlip {
			e.attrIndex = data & 0x3F
		} else {
			e.attrRegs[e.attrIndex&0x1F] = data
		}
		e.attrFlip = !e.attrFlip
	case 0x3C2:
		e.miscOut = data
	case 0x3C4:
		e.seqIndex = data
	case 0x3C5:
		e.seqRegs[e.seqIndex&0x07] = data
	case 0x3CE:
		e.gfxIndex = data
	case 0x3CF:
		e.gfxRegs[e.gfxIndex%uint8(len(e.gfxRegs))] = data
	case 0x3D4:
		e.crtc.SelectRegister(data)
	case 0x3D5:
		e.crtc.WriteRegister(data)
	}
}

func (e *EGACard) MmioReadU8(addr uint32) (uint8, uint32) {
	return e.memRead((addr - egaVramBase) & (egaPlaneSize - 1)), 0
}

func (e *EGACard) MmioWriteU8(addr uint32, data uint8) uint32 {
	e.memWrite((addr-egaVramBase)&(egaPlaneSize-1), data)
	return 0
}

func (e *EGACard) MmioPeekU8(addr uint32) uint8 {
	return e.memPeek((addr - egaVramBase) & (egaPlaneSize - 1))
}

func (e *EGACard) Run(sysTicks uint32, bus *SystemBus) {
	e.cycleAcc += sysTicks
	e.inVSync = e.cycleAcc >= egaCyclesPerFrame-egaVSyncCycles
	if e.cycleAcc < egaCyclesPerFrame {
		return
	}
	e.cycleAcc -= egaCyclesPerFrame
	e.renderFrame()
	e.frames++
	e.crtc.TickFrame()
	e.front ^= 1
	if bus != nil {
		bus.CountRetrace()
	}
}

// renderFrame paints the back buffer. Graphics controller misc bit 0
// selects between alphanumeric and graphics decode, the same bit BIOS
// mode sets program.
func (e *EGACard) renderFrame() {
	if e.gfxRegs[egaGfxMisc]&0x01 == 0 {
		e.renderText()
		return
	}
	e.renderPlanar()
}

// renderPlanar paints planar graphics. Geometry comes from the CRTC:
// visible rows times character height, falling back to the full
// 350-line field when the registers are unprogrammed.
func (e *EGACard) renderPlanar() {
	back := e.buffers[e.front^1]
	lines := e.crtc.Rows() * e.crtc.CharHeight()
	if lines == 0 || lines > egaFieldH {
		lines = egaFieldH
	}
	start := uint32(e.crtc.StartAddress())
	for y := uint32(0); y < egaFieldH; y++ {
		if y >= lines {
			for x := uint32(0); x < egaFieldW; x++ {
				putRGBA(back, &e.extents, x, y, 0x000000FF)
			}
			continue
		}
		row := start + y*80
		for x := uint32(0); x < egaFieldW; x++ {
			ofs := (row + x/8) & (egaPlaneSize - 1)
			bit := uint8(0x80 >> (x % 8))
			idx := uint8(0)
			for p := uint8(0); p < 4; p++ {
				if e.planes[p][ofs]&bit != 0 {
					idx |= 1 << p
				}
			}
			putRGBA(back, &e.extents, x, y, egaColor(e.attrRegs[idx&0x0F]))
		}
	}
}

// renderText paints alphanumeric cells: characters from plane 0,
// attributes from plane 1, glyph rows from the character generator.
func (e *EGACard) renderText() {
	back := e.buffers[e.front^1]
	cols := uint32(e.crtc.Columns())
	if cols == 0 || cols > 80 {
		cols = 80
	}
	rows := uint32(e.crtc.Rows())
	if rows == 0 || rows > 25 {
		rows = 25
	}
	cellH := uint32(e.crtc.CharHeight())
	if cellH < 2 || cellH > 16 {
		cellH = 14
	}
	start := uint32(e.crtc.StartAddress())
	cursor := uint32(e.crtc.CursorAddress())
	curStart, curEnd, curEnabled := e.crtc.CursorShape()
	curOn := curEnabled && e.crtc.CursorVisible()

	for y := uint32(0); y < egaFieldH; y++ {
		row := y / cellH
		scan := y % cellH
		for x := uint32(0); x < egaFieldW; x++ {
			col := x / 8
			if row >= rows || col >= cols {
				putRGBA(back, &e.extents, x, y, 0x000000FF)
				continue
			}
			cell := start + row*cols + col
			ch, attr := e.planeCell(cell)
			bits := e.font.Row(ch, scan)
			on := bits&(0x80>>(x%8)) != 0
			if curOn && cell == cursor &&
				scan >= uint32(curStart&0x1F) && scan <= uint32(curEnd&0x1F) {
				on = true
			}
			pal := attr & 0x0F
			if !on {
				pal = attr >> 4 & 0x0F
			}
			putRGBA(back, &e.extents, x, y, egaColor(e.attrRegs[pal]))
		}
	}
}

// egaColor expands a 6-bit palette register (rgbRGB) to RGBA.
func egaColor(pal uint8) uint32 {
	channel := func(primary, secondary uint8) uint32 {
		v := uint32(0)
		if pal&primary != 0 {
			v += 0xAA
		}
		if pal&secondary != 0 {
			v += 0x55
		}
		return v
	}
	r := channel(0x04, 0x20)
	g := channel(0x02, 0x10)
	b := channel(0x01, 0x08)
	return r<<24 | g<<16 | b<<8 | 0xFF
}

func (e *EGACard) DisplayBuffer(sel BufferSelect) []uint8 {
	if sel == BufferFront {
		return e.buffers[e.front]
	}
	return e.buffers[e.front^1]
}

func (e *EGACard) DisplayExtents() *DisplayExtents { return &e.extents }

func (e *EGACard) Beam() (uint32, uint32) {
	y := e.cycleAcc * egaFieldH / egaCyclesPerFrame
	return 0, y
}

func (e *EGACard) InVSync() bool { return e.inVSync }

func (e *EGACard) Frames() uint64 { return e.frames }
