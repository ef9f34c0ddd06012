// video_mda.go - IBM Monochrome Display Adapter
//
// 80x25 text only, 9x14 character cell, 4 KB of display RAM at B0000
// mirrored through B7FFF. The 6845 drives an 18.432 kHz line rate; we
// advance one scanline per fixed CPU cycle quantum and render text a
// scanline at a time so the status register's retrace bits behave the
// way BIOS polling loops expect.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

const (
	mdaVramBase = 0xB0000
	mdaVramEnd  = 0xB8000
	mdaVramSize = 0x1000

	// Mode control register bits (port 3B8).
	mdaModeHiRes  = 0x01
	mdaModeVideo  = 0x08
	mdaModeBlink  = 0x20

	// 16.257 MHz dot clock, 882 dots per line: 18.4 kHz lines against
	// the 4.77 MHz CPU clock is one line per ~259 CPU cycles.
	mdaCyclesPerLine = 259
	mdaLinesPerField = 370
	mdaVisibleLines  = 350

	mdaCellW = 9
	mdaCellH = 14
)

// Monochrome phosphor levels.
const (
	mdaColorOff    = 0x000000FF
	mdaColorNormal = 0x00C000FF
	mdaColorBright = 0x00FF00FF
)

type MDACard struct {
	crtc *CRTC6845
	font *FontROM

	vram [mdaVramSize]uint8
	mode uint8

	// Raster state.
	cycleAcc uint32
	line     uint32
	frames   uint64

	extents DisplayExtents
	buffers [2][]uint8
	front   int
}

func NewMDACard() *MDACard {
	m := &MDACard{
		crtc: NewCRTC6845(),
		font: builtinFont14(),
	}
	m.extents = DisplayExtents{
		FieldW:    80 * mdaCellW,
		FieldH:    mdaVisibleLines,
		VisibleW:  80 * mdaCellW,
		VisibleH:  mdaVisibleLines,
		RowStride: 80 * mdaCellW * 4,
	}
	size := m.extents.FieldH * m.extents.RowStride
	m.buffers[0] = make([]uint8, size)
	m.buffers[1] = make([]uint8, size)
	m.Reset()
	return m
}

// SetFont replaces the character generator, for machines with a real
// ROM dump.
func (m *MDACard) SetFont(f *FontROM) {
	if f != nil && f.Height == mdaCellH {
		m.font = f
	}
}

func (m *MDACard) DisplayType() VideoType { return VideoMDA }

func (m *MDACard) Reset() {
	m.mode = mdaModeHiRes
	m.cycleAcc = 0
	m.line = 0
}

func (m *MDACard) IoPorts() []uint16 {
	// Index/data pairs mirror across 3B0-3B7.
	return []uint16{0x3B0, 0x3B1, 0x3B2, 0x3B3, 0x3B4, 0x3B5, 0x3B6, 0x3B7, 0x3B8, 0x3BA}
}

func (m *MDACard) MmioRange() (uint32, uint32) {
	return mdaVramBase, mdaVramEnd
}

func (m *MDACard) ReadU8(port uint16, delta uint32) uint8 {
	switch {
	case port >= 0x3B0 && port <= 0x3B7 && port&1 == 1:
		return m.crtc.ReadRegister()
	case port == 0x3BA:
		return m.status()
	}
	return NoIOByte
}

func (m *MDACard) WriteU8(port uint16, data uint8, bus *SystemBus, delta uint32) {
	switch {
	case port >= 0x3B0 && port <= 0x3B7 && port&1 == 0:
		m.crtc.SelectRegister(data)
	case port >= 0x3B0 && port <= 0x3B7 && port&1 == 1:
		m.crtc.WriteRegister(data)
	case port == 0x3B8:
		m.mode = data
	}
}

// status builds the 3BA read: bit 0 horizontal retrace, bit 3 video
// dot. The horizontal bit toggles within the line so tight BIOS
// polling loops observe both states.
func (m *MDACard) status() uint8 {
	s := uint8(0xF0)
	if m.cycleAcc >= mdaCyclesPerLine*3/4 {
		s |= 0x01
	}
	if m.line < mdaVisibleLines && m.mode&mdaModeVideo != 0 && m.cycleAcc&1 == 0 {
		s |= 0x08
	}
	return s
}

func (m *MDACard) MmioReadU8(addr uint32) (uint8, uint32) {
	return m.vram[(addr-mdaVramBase)&(mdaVramSize-1)], 0
}

func (m *MDACard) MmioWriteU8(addr uint32, data uint8) uint32 {
	m.vram[(addr-mdaVramBase)&(mdaVramSize-1)] = data
	return 0
}

func (m *MDACard) MmioPeekU8(addr uint32) uint8 {
	return m.vram[(addr-mdaVramBase)&(mdaVramSize-1)]
}

func (m *MDACard) Run(sysTicks uint32, bus *SystemBus) {
	m.cycleAcc += sysTicks
	for m.cycleAcc >= mdaCyclesPerLine {
		m.cycleAcc -= mdaCyclesPerLine
		if m.line < mdaVisibleLines {
			m.renderLine(m.line)
		}
		m.line++
		if m.line >= mdaLinesPerField {
			m.line = 0
			m.frames++
			m.crtc.TickFrame()
			m.front ^= 1
			if bus != nil {
				bus.CountRetrace()
			}
		}
	}
}

// renderLine draws one scanline of the text field into the back
// buffer.
func (m *MDACard) renderLine(y uint32) {
	back := m.buffers[m.front^1]
	if m.mode&mdaModeVideo == 0 {
		for x := uint32(0); x < m.extents.FieldW; x++ {
			putRGBA(back, &m.extents, x, y, mdaColorOff)
		}
		return
	}

	row := y / mdaCellH
	scan := y % mdaCellH
	start := uint32(m.crtc.StartAddress())
	cursorAddr := uint32(m.crtc.CursorAddress())
	curStart, curEnd, curEnabled := m.crtc.CursorShape()
	cursorOn := curEnabled && m.crtc.CursorVisible()

	for col := uint32(0); col < 80; col++ {
		cell := (start + row*80 + col) & (mdaVramSize/2 - 1)
		ch := m.vram[cell*2]
		attr := m.vram[cell*2+1]

		fg, bg := m.attrColors(attr)
		bits := m.font.Row(ch, scan)
		underline := attr&0x07 == 0x01 && scan == mdaCellH-2

		if cursorOn && cell == cursorAddr&(mdaVramSize/2-1) &&
			uint8(scan) >= curStart && uint8(scan) <= curEnd {
			bits = 0xFF
		}
		if attr&0x80 != 0 && m.mode&mdaModeBlink != 0 && !m.crtc.CharBlinkOn() {
			bits = 0
			underline = false
		}

		for dot := uint32(0); dot < mdaCellW; dot++ {
			on := underline
			if dot < 8 {
				on = on || bits&(0x80>>dot) != 0
			} else if ch >= 0xC0 && ch <= 0xDF {
				// Line-draw glyphs extend column 8 into the 9th dot.
				on = on || bits&1 != 0
			}
			c := bg
			if on {
				c = fg
			}
			putRGBA(back, &m.extents, col*mdaCellW+dot, y, c)
		}
	}
}

// attrColors maps an MDA attribute to phosphor levels: 70h reverses,
// 00/08/80/88 blank, bit 3 intensifies.
func (m *MDACard) attrColors(attr uint8) (fg, bg uint32) {
	switch attr & 0x77 {
	case 0x00:
		return mdaColorOff, mdaColorOff
	case 0x70:
		fg, bg = mdaColorOff, mdaColorNormal
		if attr&0x08 != 0 {
			bg = mdaColorBright
		}
		return fg, bg
	}
	fg, bg = mdaColorNormal, mdaColorOff
	if attr&0x08 != 0 {
		fg = mdaColorBright
	}
	return fg, bg
}

func (m *MDACard) DisplayBuffer(sel BufferSelect) []uint8 {
	if sel == BufferFront {
		return m.buffers[m.front]
	}
	return m.buffers[m.front^1]
}

func (m *MDACard) DisplayExtents() *DisplayExtents { return &m.extents }

func (m *MDACard) Beam() (uint32, uint32) {
	x := m.cycleAcc * m.extents.FieldW / mdaCyclesPerLine
	return x, m.line
}

func (m *MDACard) InVSync() bool {
	return m.line >= mdaVisibleLines
}

func (m *MDACard) Frames() uint64 { return m.frames }
