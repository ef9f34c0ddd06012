// videocard.go - Common video card interface and display geometry
//
// Every adapter renders into a pair of RGBA field buffers sized to its
// full scan field, overscan included. The card draws into the back
// buffer and swaps at vertical retrace, so the front buffer is always
// a complete, tear-free frame.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// VideoType identifies an adapter family.
type VideoType int

const (
	VideoMDA VideoType = iota
	VideoCGA
	VideoEGA
	VideoVGA
)

func (t VideoType) String() string {
	switch t {
	case VideoMDA:
		return "MDA"
	case VideoCGA:
		return "CGA"
	case VideoEGA:
		return "EGA"
	case VideoVGA:
		return "VGA"
	}
	return "unknown"
}

// BufferSelect picks which field buffer a caller wants.
type BufferSelect int

const (
	BufferFront BufferSelect = iota
	BufferBack
)

// DisplayExtents describes the geometry of a card's field buffer.
type DisplayExtents struct {
	// Full scan field, the buffer's pixel dimensions.
	FieldW, FieldH uint32
	// Visible region and its offset inside the field.
	VisibleW, VisibleH uint32
	VisibleX, VisibleY uint32
	// Bytes per row in the RGBA buffer.
	RowStride uint32
	// Aspect hint for square-pixel displays.
	DoubleScan bool
}

// VideoCard is the bus-facing surface of every display adapter. Cards
// additionally implement IoDevice, MmioDevice and ClockedDevice; the
// machine wires those at install time.
type VideoCard interface {
	IoDevice
	MmioDevice
	ClockedDevice

	DisplayType() VideoType
	Reset()

	// IoPorts lists the register ports the card claims.
	IoPorts() []uint16
	// MmioRange is the card's [start, end) memory window.
	MmioRange() (uint32, uint32)

	// DisplayBuffer returns the selected RGBA field buffer.
	DisplayBuffer(sel BufferSelect) []uint8
	DisplayExtents() *DisplayExtents

	// Beam returns the current raster position in field coordinates.
	Beam() (uint32, uint32)
	// InVSync reports whether the card is in vertical retrace.
	InVSync() bool
	// Frames returns the number of completed fields since reset.
	Frames() uint64
}

// putRGBA writes one pixel into a field buffer.
func putRGBA(buf []uint8, ext *DisplayExtents, x, y uint32, rgba uint32) {
	if x >= ext.FieldW || y >= ext.FieldH {
		return
	}
	o := y*ext.RowStride + x*4
	buf[o+0] = uint8(rgba >> 24)
	buf[o+1] = uint8(rgba >> 16)
	buf[o+2] = uint8(rgba >> 8)
	buf[o+3] = uint8(rgba)
}
