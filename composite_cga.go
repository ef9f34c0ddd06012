// composite_cga.go - CGA composite artifact colour
//
// On a composite monitor the 640x200 dot pattern beats against the
// NTSC colour subcarrier: each group of four hi-res dots lands inside
// one colour cycle and reads as a single hue. Games exploited it for
// an effective 160x200 sixteen colour mode. This post-processes a
// completed front buffer rather than modelling the subcarrier per dot,
// which keeps the RGB path untouched.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// artifactPalette maps a 4-dot luma pattern to the hue it produces.
// Derived from the usual old-style CGA artifact tables.
var artifactPalette = [16]uint32{
	0x000000FF, // 0000 black
	0x007100FF, // 0001 dark green
	0x003FFFFF, // 0010 blue
	0x00ABFFFF, // 0011 light blue
	0xC10065FF, // 0100 red-magenta
	0x737373FF, // 0101 grey
	0xE639FFFF, // 0110 magenta
	0x8CA8FFFF, // 0111 pale blue
	0x554600FF, // 1000 brown
	0x00D400FF, // 1001 green
	0x737373FF, // 1010 grey
	0x60FFC9FF, // 1011 aqua
	0xFF4600FF, // 1100 orange
	0xBAFF00FF, // 1101 yellow-green
	0xFFA4EBFF, // 1110 pink
	0xFFFFFFFF, // 1111 white
}

// compositeProcess rewrites the visible region of a completed field
// buffer in place, four dots at a time.
func compositeProcess(buf []uint8, ext *DisplayExtents) {
	for y := ext.VisibleY; y < ext.VisibleY+ext.VisibleH; y++ {
		rowBase := y * ext.RowStride
		for x := ext.VisibleX; x+3 < ext.VisibleX+ext.VisibleW; x += 4 {
			pattern := uint8(0)
			for d := uint32(0); d < 4; d++ {
				if dotLit(buf, rowBase+(x+d)*4) {
					pattern |= 0x08 >> d
				}
			}
			c := artifactPalette[pattern]
			for d := uint32(0); d < 4; d++ {
				o := rowBase + (x+d)*4
				buf[o+0] = uint8(c >> 24)
				buf[o+1] = uint8(c >> 16)
				buf[o+2] = uint8(c >> 8)
				buf[o+3] = uint8(c)
			}
		}
	}
}

// dotLit treats a pixel as luma-on if any channel carries real energy.
func dotLit(buf []uint8, o uint32) bool {
	return buf[o+0] > 0x40 || buf[o+1] > 0x40 || buf[o+2] > 0x40
}
