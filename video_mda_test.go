package main

import "testing"

func newMDATestCard() *MDACard {
	m := NewMDACard()
	m.WriteU8(0x3B8, mdaModeHiRes|mdaModeVideo, nil, 0)
	return m
}

func mdaPixel(m *MDACard, sel BufferSelect, x, y uint32) uint32 {
	buf := m.DisplayBuffer(sel)
	o := y*m.extents.RowStride + x*4
	return uint32(buf[o])<<24 | uint32(buf[o+1])<<16 |
		uint32(buf[o+2])<<8 | uint32(buf[o+3])
}

func TestMDAFieldTiming(t *testing.T) {
	bus := NewSystemBus()
	m := newMDATestCard()
	m.Run(mdaCyclesPerLine*mdaLinesPerField, bus)
	if m.Frames() != 1 || bus.Retraces() != 1 {
		t.Errorf("frames=%d retraces=%d after one field", m.Frames(), bus.Retraces())
	}
	if m.InVSync() {
		t.Error("still in vsync after field wrap")
	}

	// Retrace spans the lines past the visible area.
	m.Run(mdaCyclesPerLine*mdaVisibleLines, nil)
	if !m.InVSync() {
		t.Error("not in vsync past the last visible line")
	}
}

func TestMDAStatusToggles(t *testing.T) {
	m := newMDATestCard()
	// Early in the line: horizontal retrace bit clear.
	if s := m.ReadU8(0x3BA, 0); s&0x01 != 0 {
		t.Errorf("status %02X at line start", s)
	}
	// Past three quarters of the line the bit sets.
	m.Run(mdaCyclesPerLine*3/4, nil)
	if s := m.ReadU8(0x3BA, 0); s&0x01 == 0 {
		t.Errorf("status %02X late in the line", s)
	}
}

func TestMDATextAttributes(t *testing.T) {
	m := newMDATestCard()
	// Four cells: normal, bright, reverse, blanked.
	cells := []struct {
		ch   uint8
		attr uint8
	}{
		{0xDB, 0x07}, // full block, normal
		{0xDB, 0x0F}, // full block, intense
		{' ', 0x70},  // reverse video space
		{0xDB, 0x00}, // blanked
	}
	for i, c := range cells {
		m.MmioWriteU8(mdaVramBase+uint32(i*2), c.ch)
		m.MmioWriteU8(mdaVramBase+uint32(i*2)+1, c.attr)
	}
	m.renderLine(0)
	back := BufferBack

	if got := mdaPixel(m, back, 0, 0); got != mdaColorNormal {
		t.Errorf("normal cell = %08X", got)
	}
	if got := mdaPixel(m, back, mdaCellW, 0); got != mdaColorBright {
		t.Errorf("bright cell = %08X", got)
	}
	if got := mdaPixel(m, back, 2*mdaCellW, 0); got != mdaColorNormal {
		t.Errorf("reverse cell background = %08X", got)
	}
	if got := mdaPixel(m, back, 3*mdaCellW, 0); got != mdaColorOff {
		t.Errorf("blanked cell = %08X", got)
	}
}

func TestMDAUnderlineRow(t *testing.T) {
	m := newMDATestCard()
	m.MmioWriteU8(mdaVramBase, ' ')
	m.MmioWriteU8(mdaVramBase+1, 0x01) // underline attribute

	m.renderLine(mdaCellH - 2)
	if got := mdaPixel(m, BufferBack, 0, mdaCellH-2); got != mdaColorNormal {
		t.Errorf("underline pixel = %08X", got)
	}
	m.renderLine(0)
	if got := mdaPixel(m, BufferBack, 0, 0); got != mdaColorOff {
		t.Errorf("top row pixel = %08X, want background", got)
	}
}

func TestMDANinthColumnLineDraw(t *testing.T) {
	m := newMDATestCard()
	// 0xC4 is a horizontal line glyph: column 8 repeats column 7.
	m.MmioWriteU8(mdaVramBase, 0xC4)
	m.MmioWriteU8(mdaVramBase+1, 0x07)
	m.MmioWriteU8(mdaVramBase+2, 'X')
	m.MmioWriteU8(mdaVramBase+3, 0x07)

	var scan uint32
	for scan = 0; scan < mdaCellH; scan++ {
		if m.font.Row(0xC4, scan)&1 != 0 {
			break
		}
	}
	if scan == mdaCellH {
		t.Skip("line glyph has no column-7 dot in this font")
	}
	m.renderLine(scan)
	if got := mdaPixel(m, BufferBack, 8, scan); got != mdaColorNormal {
		t.Errorf("ninth column = %08X, want extended", got)
	}

	// Ordinary glyphs leave the ninth column at background.
	var xscan uint32
	for xscan = 0; xscan < mdaCellH; xscan++ {
		if m.font.Row('X', xscan)&1 == 0 && m.font.Row('X', xscan) != 0 {
			break
		}
	}
	if xscan < mdaCellH {
		m.renderLine(xscan)
		if got := mdaPixel(m, BufferBack, mdaCellW+8, xscan); got != mdaColorOff {
			t.Errorf("ninth column of 'X' = %08X, want background", got)
		}
	}
}

func TestMDAVramMirror(t *testing.T) {
	bus := NewSystemBus()
	m := NewMDACard()
	start, end := m.MmioRange()
	if err := bus.InstallMmio(m, start, end); err != nil {
		t.Fatal(err)
	}
	bus.WriteU8(0xB0000, 0x41, 0)
	// 4 KB window mirrored through B7FFF.
	if v, _ := bus.ReadU8(0xB1000, 0); v != 0x41 {
		t.Errorf("mirror read = %02X", v)
	}
}

func TestMDACrtcReadback(t *testing.T) {
	m := NewMDACard()
	m.WriteU8(0x3B4, crtcCursorLo, nil, 0)
	m.WriteU8(0x3B5, 0x50, nil, 0)
	if v := m.ReadU8(0x3B5, 0); v != 0x50 {
		t.Errorf("cursor register reads %02X", v)
	}
	// Timing registers float on readback.
	m.WriteU8(0x3B4, crtcHTotal, nil, 0)
	m.WriteU8(0x3B5, 97, nil, 0)
	if v := m.ReadU8(0x3B5, 0); v != NoIOByte {
		t.Errorf("write-only register reads %02X", v)
	}
}
