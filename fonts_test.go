package main

import "testing"

func TestBuiltinFont8Glyphs(t *testing.T) {
	f := builtinFont8()
	if f.Height != 8 {
		t.Fatalf("height = %d", f.Height)
	}
	for row := uint32(0); row < 8; row++ {
		if f.Row(0xDB, row) != 0xFF {
			t.Errorf("full block row %d = %02X", row, f.Row(0xDB, row))
		}
		if f.Row(' ', row) != 0 {
			t.Errorf("space row %d = %02X", row, f.Row(' ', row))
		}
	}
	// Half blocks split at row 4.
	if f.Row(0xDC, 3) != 0 || f.Row(0xDC, 4) != 0xFF {
		t.Error("lower half block wrong")
	}
	if f.Row(0xDF, 3) != 0xFF || f.Row(0xDF, 4) != 0 {
		t.Error("upper half block wrong")
	}
	// 'A' comes from the hand-drawn ASCII table.
	if f.Row('A', 1) != 0x3C {
		t.Errorf("'A' row 1 = %02X", f.Row('A', 1))
	}
}

func TestBuiltinFont14TakesMiddleRows(t *testing.T) {
	f := builtinFont14()
	if f.Height != 14 {
		t.Fatalf("height = %d", f.Height)
	}
	for g := 0; g < 256; g += 85 {
		for row := uint32(0); row < 14; row++ {
			if f.Row(uint8(g), row) != romFont8x16[g*16+int(row)+1] {
				t.Errorf("glyph %02X row %d does not match the ROM table", g, row)
			}
		}
	}
}

func TestFontRowOutOfRange(t *testing.T) {
	f := builtinFont8()
	if f.Row('A', 8) != 0 {
		t.Error("row past glyph height should be blank")
	}
}

func TestLoadFontROM(t *testing.T) {
	data := make([]uint8, 256*14)
	for i := range data {
		data[i] = uint8(i)
	}
	f := LoadFontROM(data, 14)
	if f.Height != 14 {
		t.Fatalf("height = %d", f.Height)
	}
	if f.Row(1, 0) != data[14] {
		t.Errorf("glyph 1 row 0 = %02X, want %02X", f.Row(1, 0), data[14])
	}
	if f.Row(255, 13) != data[255*14+13] {
		t.Error("last glyph row wrong")
	}
}

func TestLoadFontROMShortData(t *testing.T) {
	f := LoadFontROM(make([]uint8, 100), 14)
	// Truncated dumps produce an empty font rather than a panic.
	for g := 0; g < 256; g++ {
		for row := uint32(0); row < 14; row++ {
			if f.Row(uint8(g), row) != 0 {
				t.Fatalf("glyph %02X row %d nonzero from short dump", g, row)
			}
		}
	}
	if f := LoadFontROM(make([]uint8, 256*17), 17); f.Row(0, 0) != 0 {
		t.Error("over-tall font should load empty")
	}
}
