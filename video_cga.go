// video_cga.go - IBM Color Graphics Adapter
//
// The CGA dot clock is exactly three times the CPU clock, so the card
// advances three dots per CPU cycle across a 912x262 field and renders
// every dot it sweeps. That makes frame output a pure function of the
// cycle count: the same program always produces the same field buffer
// and the same retrace count.
//
// 16 KB of display RAM at B8000, mirrored through BFFFF. Text 40/80
// column, 320x200 four colour and 640x200 two colour graphics.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

const (
	cgaVramBase = 0xB8000
	cgaVramEnd  = 0xC0000
	cgaVramSize = 0x4000

	// Mode control register bits (port 3D8).
	cgaMode80Col   = 0x01
	cgaModeGfx     = 0x02
	cgaModeBW      = 0x04
	cgaModeVideo   = 0x08
	cgaModeHiResGfx = 0x10
	cgaModeBlink   = 0x20

	// 14.318 MHz dot clock over a 4.77 MHz CPU clock.
	cgaDotsPerCycle = 3
	cgaFieldW       = 912
	cgaFieldH       = 262

	cgaVisibleW = 640
	cgaVisibleH = 200
	cgaLeftEdge = 96
	cgaTopEdge  = 24

	// Vertical retrace region of the field.
	cgaVSyncStart = cgaTopEdge + cgaVisibleH + 16

	cgaCellH = 8

	// Bus wait states charged for CPU access to display RAM.
	cgaWaitStates = 4
)

// cgaPalette is the full 16-colour RGBI set, RGBA packed.
var cgaPalette = [16]uint32{
	0x000000FF, 0x0000AAFF, 0x00AA00FF, 0x00AAAAFF,
	0xAA0000FF, 0xAA00AAFF, 0xAA5500FF, 0xAAAAAAFF,
	0x555555FF, 0x5555FFFF, 0x55FF55FF, 0x55FFFFFF,
	0xFF5555FF, 0xFF55FFFF, 0xFFFF55FF, 0xFFFFFFFF,
}

type CGACard struct {
	crtc *CRTC6845
	font *FontROM

	vram  [cgaVramSize]uint8
	mode  uint8
	color uint8

	// Beam position in dots.
	dot   uint32
	line  uint32
	frames uint64

	extents DisplayExtents
	buffers [2][]uint8
	front   int

	composite bool
}

func NewCGACard() *CGACard {
	c := &CGACard{
		crtc: NewCRTC6845(),
		font: builtinFont8(),
	}
	c.extents = DisplayExtents{
		FieldW:     cgaFieldW,
		FieldH:     cgaFieldH,
		VisibleW:   cgaVisibleW,
		VisibleH:   cgaVisibleH,
		VisibleX:   cgaLeftEdge,
		VisibleY:   cgaTopEdge,
		RowStride:  cgaFieldW * 4,
		DoubleScan: true,
	}
	size := c.extents.FieldH * c.extents.RowStride
	c.buffers[0] = make([]uint8, size)
	c.buffers[1] = make([]uint8, size)
	c.Reset()
	return c
}

// SetFont replaces the character generator with a ROM dump.
func (c *CGACard) SetFont(f *FontROM) {
	if f != nil && f.Height == cgaCellH {
		c.font = f
	}
}

// SetComposite selects composite monitor output, post-processed at
// frame swap.
func (c *CGACard) SetComposite(on bool) {
	c.composite = on
}

func (c *CGACard) DisplayType() VideoType { return VideoCGA }

func (c *CGACard) Reset() {
	c.mode = 0
	c.color = 0
	c.dot = 0
	c.line = 0
}

func (c *CGACard) IoPorts() []uint16 {
	return []uint16{0x3D0, 0x3D1, 0x3D2, 0x3D3, 0x3D4, 0x3D5, 0x3D6, 0x3D7, 0x3D8, 0x3D9, 0x3DA}
}

func (c *CGACard) MmioRange() (uint32, uint32) {
	return cgaVramBase, cgaVramEnd
}

func (c *CGACard) ReadU8(port uint16, delta uint32) uint8 {
	switch {
	case port >= 0x3D0 && port <= 0x3D7 && port&1 == 1:
		return c.crtc.ReadRegister()
	case port == 0x3DA:
		return c.status()
	}
	return NoIOByte
}

func (c *CGACard) WriteU8(port uint16, data uint8, bus *SystemBus, delta uint32) {
	switch {
	case port >= 0x3D0 && port <= 0x3D7 && port&1 == 0:
		c.crtc.SelectRegister(data)
	case port >= 0x3D0 && port <= 0x3D7 && port&1 == 1:
		c.crtc.WriteRegister(data)
	case port == 0x3D8:
		c.mode = data
	case port == 0x3D9:
		c.color = data
	}
}

// status builds the 3DA read: bit 0 set whenever the beam is outside
// the active display, bit 3 set during vertical retrace.
func (c *CGACard) status() uint8 {
	s := uint8(0xF0)
	inActiveH := c.dot >= cgaLeftEdge && c.dot < cgaLeftEdge+cgaVisibleW
	inActiveV := c.line >= cgaTopEdge && c.line < cgaTopEdge+cgaVisibleH
	if !inActiveH || !inActiveV {
		s |= 0x01
	}
	if c.InVSync() {
		s |= 0x09
	}
	return s
}

func (c *CGACard) MmioReadU8(addr uint32) (uint8, uint32) {
	return c.vram[(addr-cgaVramBase)&(cgaVramSize-1)], cgaWaitStates
}

func (c *CGACard) MmioWriteU8(addr uint32, data uint8) uint32 {
	c.vram[(addr-cgaVramBase)&(cgaVramSize-1)] = data
	return cgaWaitStates
}

func (c *CGACard) MmioPeekU8(addr uint32) uint8 {
	return c.vram[(addr-cgaVramBase)&(cgaVramSize-1)]
}

func (c *CGACard) Run(sysTicks uint32, bus *SystemBus) {
	back := c.buffers[c.front^1]
	for t := uint32(0); t < sysTicks; t++ {
		for d := 0; d < cgaDotsPerCycle; d++ {
			putRGBA(back, &c.extents, c.dot, c.line, c.dotColor(c.dot, c.line))
			c.dot++
			if c.dot >= cgaFieldW {
				c.dot = 0
				c.line++
				if c.line >= cgaFieldH {
					c.line = 0
					c.frames++
					c.crtc.TickFrame()
					c.front ^= 1
					back = c.buffers[c.front^1]
					if c.composite {
						compositeProcess(c.buffers[c.front], &c.extents)
					}
					if bus != nil {
						bus.CountRetrace()
					}
				}
			}
		}
	}
}

// dotColor computes the colour of one field dot from VRAM and the
// register state at that instant.
func (c *CGACard) dotColor(x, y uint32) uint32 {
	if c.mode&cgaModeVideo == 0 {
		return cgaPalette[0]
	}
	border := cgaPalette[c.color&0x0F]
	if x < cgaLeftEdge || x >= cgaLeftEdge+cgaVisibleW ||
		y < cgaTopEdge || y >= cgaTopEdge+cgaVisibleH {
		if c.line >= cgaVSyncStart {
			return cgaPalette[0]
		}
		return border
	}
	px := x - cgaLeftEdge
	py := y - cgaTopEdge

	if c.mode&cgaModeGfx == 0 {
		return c.textDot(px, py)
	}
	if c.mode&cgaModeHiResGfx != 0 {
		return c.hiResDot(px, py)
	}
	return c.medResDot(px, py)
}

func (c *CGACard) textDot(px, py uint32) uint32 {
	cols := uint32(40)
	scale := uint32(2)
	if c.mode&cgaMode80Col != 0 {
		cols = 80
		scale = 1
	}
	col := px / (8 * scale)
	dot := (px / scale) % 8
	row := py / cgaCellH
	scan := py % cgaCellH

	start := uint32(c.crtc.StartAddress())
	cell := (start + row*cols + col) & (cgaVramSize/2 - 1)
	ch := c.vram[cell*2]
	attr := c.vram[cell*2+1]

	fg := cgaPalette[attr&0x0F]
	bg := cgaPalette[(attr>>4)&0x07]
	blinkOff := false
	if c.mode&cgaModeBlink != 0 {
		if attr&0x80 != 0 && !c.crtc.CharBlinkOn() {
			blinkOff = true
		}
	} else {
		bg = cgaPalette[attr>>4]
	}

	bits := c.font.Row(ch, scan)
	if blinkOff {
		bits = 0
	}
	if cur, curEnd, enabled := c.crtc.CursorShape(); enabled && c.crtc.CursorVisible() {
		if cell == uint32(c.crtc.CursorAddress())&(cgaVramSize/2-1) &&
			uint8(scan) >= cur && uint8(scan) <= curEnd {
			bits = 0xFF
		}
	}
	if bits&(0x80>>dot) != 0 {
		return fg
	}
	return bg
}

// medResDot is 320x200 four colour: two bits per pixel, even/odd
// scanline banks 8 KB apart.
func (c *CGACard) medResDot(px, py uint32) uint32 {
	gx := px / 2
	offset := (py>>1)*80 + (py&1)*0x2000 + gx/4
	shift := 6 - (gx%4)*2
	idx := (c.vram[offset&(cgaVramSize-1)] >> shift) & 0x03
	if idx == 0 {
		return cgaPalette[c.color&0x0F]
	}
	return cgaPalette[c.paletteEntry(idx)]
}

// paletteEntry maps a 2-bit pixel through the colour select register:
// bit 5 picks cyan/magenta/white vs green/red/brown, bit 4 intensity.
// The b/w mode bit substitutes the cyan/red/white set.
func (c *CGACard) paletteEntry(idx uint8) uint8 {
	intensity := (c.color & 0x10) >> 1
	if c.mode&cgaModeBW != 0 {
		return [4]uint8{0, 3, 4, 7}[idx] | intensity
	}
	if c.color&0x20 != 0 {
		return [4]uint8{0, 3, 5, 7}[idx] | intensity
	}
	return [4]uint8{0, 2, 4, 6}[idx] | intensity
}

// hiResDot is 640x200 two colour; foreground from the colour select
// register, background always black.
func (c *CGACard) hiResDot(px, py uint32) uint32 {
	offset := (py>>1)*80 + (py&1)*0x2000 + px/8
	if c.vram[offset&(cgaVramSize-1)]&(0x80>>(px%8)) != 0 {
		return cgaPalette[c.color&0x0F]
	}
	return cgaPalette[0]
}

func (c *CGACard) DisplayBuffer(sel BufferSelect) []uint8 {
	if sel == BufferFront {
		return c.buffers[c.front]
	}
	return c.buffers[c.front^1]
}

func (c *CGACard) DisplayExtents() *DisplayExtents { return &c.extents }

func (c *CGACard) Beam() (uint32, uint32) { return c.dot, c.line }

func (c *CGACard) InVSync() bool {
	return c.line >= cgaVSyncStart
}

func (c *CGACard) Frames() uint64 { return c.frames }
