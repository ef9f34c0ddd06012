// crtc_mc6845.go - Motorola 6845 CRT controller
//
// Shared by the MDA and CGA adapters: an index register plus eighteen
// data registers controlling frame timing, display start address and
// the hardware cursor. The owning card reads the register file to
// derive its scan geometry.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// Register indices.
const (
	crtcHTotal      = 0x00
	crtcHDisplayed  = 0x01
	crtcHSyncPos    = 0x02
	crtcSyncWidth   = 0x03
	crtcVTotal      = 0x04
	crtcVTotalAdj   = 0x05
	crtcVDisplayed  = 0x06
	crtcVSyncPos    = 0x07
	crtcInterlace   = 0x08
	crtcMaxScanline = 0x09
	crtcCursorStart = 0x0A
	crtcCursorEnd   = 0x0B
	crtcStartHi     = 0x0C
	crtcStartLo     = 0x0D
	crtcCursorHi    = 0x0E
	crtcCursorLo    = 0x0F
	crtcLightPenHi  = 0x10
	crtcLightPenLo  = 0x11

	crtcRegisterCount = 18
)

type CRTC6845 struct {
	index uint8
	regs  [crtcRegisterCount]uint8

	// Frame counter driving cursor and character blink.
	blinkFrames uint32
}

// writeMasks zero the bits each register does not implement.
var crtcWriteMasks = [crtcRegisterCount]uint8{
	0xFF, 0xFF, 0xFF, 0xFF, 0x7F, 0x1F, 0x7F, 0x7F, 0xFF,
	0x1F, 0x7F, 0x1F, 0x3F, 0xFF, 0x3F, 0xFF, 0x3F, 0xFF,
}

func NewCRTC6845() *CRTC6845 {
	return &CRTC6845{}
}

// SelectRegister latches the register index (even register port).
func (c *CRTC6845) SelectRegister(idx uint8) {
	c.index = idx & 0x1F
}

// WriteRegister stores through the masked data port.
func (c *CRTC6845) WriteRegister(data uint8) {
	if c.index >= crtcRegisterCount {
		return
	}
	c.regs[c.index] = data & crtcWriteMasks[c.index]
}

// ReadRegister: only the cursor and light pen registers read back on
// a real 6845; the rest float.
func (c *CRTC6845) ReadRegister() uint8 {
	switch c.index {
	case crtcCursorHi, crtcCursorLo, crtcLightPenHi, crtcLightPenLo:
		return c.regs[c.index]
	}
	return NoIOByte
}

// Register is the debugger's unmasked view.
func (c *CRTC6845) Register(idx int) uint8 {
	if idx < 0 || idx >= crtcRegisterCount {
		return 0
	}
	return c.regs[idx]
}

// StartAddress returns the display origin in character cells.
func (c *CRTC6845) StartAddress() uint16 {
	return uint16(c.regs[crtcStartHi])<<8 | uint16(c.regs[crtcStartLo])
}

// CursorAddress returns the cursor cell address.
func (c *CRTC6845) CursorAddress() uint16 {
	return uint16(c.regs[crtcCursorHi])<<8 | uint16(c.regs[crtcCursorLo])
}

// CursorShape returns start/end scanlines and whether the cursor is
// enabled at all (start bits 5-6 = 01 disables it).
func (c *CRTC6845) CursorShape() (start, end uint8, enabled bool) {
	start = c.regs[crtcCursorStart] & 0x1F
	end = c.regs[crtcCursorEnd] & 0x1F
	enabled = c.regs[crtcCursorStart]&0x60 != 0x20
	return
}

// CharHeight returns scanlines per character row.
func (c *CRTC6845) CharHeight() uint32 {
	return uint32(c.regs[crtcMaxScanline]&0x1F) + 1
}

// Columns and Rows return the programmed visible text dimensions.
func (c *CRTC6845) Columns() uint32 {
	return uint32(c.regs[crtcHDisplayed])
}

func (c *CRTC6845) Rows() uint32 {
	return uint32(c.regs[crtcVDisplayed])
}

// TickFrame advances the blink counter once per field.
func (c *CRTC6845) TickFrame() {
	c.blinkFrames++
}

// CursorVisible implements the 6845 blink modes: cursor start bits
// 5-6 select steady, off, fast or slow blink.
func (c *CRTC6845) CursorVisible() bool {
	switch c.regs[crtcCursorStart] & 0x60 {
	case 0x00:
		return true
	case 0x20:
		return false
	case 0x40:
		return c.blinkFrames&0x08 != 0
	}
	return c.blinkFrames&0x10 != 0
}

// CharBlinkOn is the attribute-blink phase, half the cursor rate.
func (c *CRTC6845) CharBlinkOn() bool {
	return c.blinkFrames&0x10 != 0
}
