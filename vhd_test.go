package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestVHDGeometryDerivation(t *testing.T) {
	cases := []struct {
		sectors uint64
		c       uint16
		h, s    uint8
	}{
		{20 * 1024 * 1024 / 512, 602, 4, 17}, // 20 MB: small-disk path
		{1474560 / 512, 42, 4, 17},           // floppy-sized oddball
	}
	for _, tc := range cases {
		c, h, s := vhdGeometryForSize(tc.sectors)
		if c != tc.c || h != tc.h || s != tc.s {
			t.Errorf("geometry(%d) = %d/%d/%d, want %d/%d/%d",
				tc.sectors, c, h, s, tc.c, tc.h, tc.s)
		}
	}
}

func TestVHDFooterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.vhd")
	v, err := CreateVHD(path, 306, 4, 17)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Close(); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	wantSize := int64(306)*4*17*vhdSectorSize + vhdFooterSize
	if info.Size() != wantSize {
		t.Errorf("image size %d, want %d", info.Size(), wantSize)
	}

	v, err = OpenVHD(path)
	if err != nil {
		t.Fatal(err)
	}
	defer v.Close()
	if v.Cylinders != 306 || v.Heads != 4 || v.SectorsPerTrack != 17 {
		t.Errorf("geometry %d/%d/%d survived as %d/%d/%d",
			306, 4, 17, v.Cylinders, v.Heads, v.SectorsPerTrack)
	}
	if v.TotalSectors() != 306*4*17 {
		t.Errorf("total sectors %d", v.TotalSectors())
	}
}

func TestVHDFooterChecksumValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.vhd")
	v, err := CreateVHD(path, 10, 2, 17)
	if err != nil {
		t.Fatal(err)
	}
	v.Close()

	// Corrupt one byte inside the footer.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	raw[len(raw)-100] ^= 0xFF
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenVHD(path); err == nil {
		t.Error("corrupted footer accepted")
	}
}

func TestVHDSectorPersistence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.vhd")
	v, err := CreateVHD(path, 10, 2, 17)
	if err != nil {
		t.Fatal(err)
	}

	sector := make([]uint8, vhdSectorSize)
	for i := range sector {
		sector[i] = uint8(i * 7)
	}
	if err := v.WriteSector(3, 1, 5, sector); err != nil {
		t.Fatal(err)
	}
	v.Close()

	v, err = OpenVHD(path)
	if err != nil {
		t.Fatal(err)
	}
	defer v.Close()
	back, err := v.ReadSector(3, 1, 5)
	if err != nil {
		t.Fatal(err)
	}
	for i := range sector {
		if back[i] != sector[i] {
			t.Fatalf("byte %d = %02X, want %02X", i, back[i], sector[i])
		}
	}
}

func TestVHDRejectsOutOfRangeCHS(t *testing.T) {
	dir := t.TempDir()
	v, err := CreateVHD(filepath.Join(dir, "disk.vhd"), 10, 2, 17)
	if err != nil {
		t.Fatal(err)
	}
	defer v.Close()

	bad := [][3]int{{10, 0, 1}, {0, 2, 1}, {0, 0, 0}, {0, 0, 18}}
	for _, chs := range bad {
		if _, err := v.ReadSector(uint16(chs[0]), uint8(chs[1]), uint8(chs[2])); err == nil {
			t.Errorf("CHS %v accepted", chs)
		}
	}
}

func TestFloppyGeometryBySize(t *testing.T) {
	cases := []struct {
		size int
		geom FloppyGeometry
	}{
		{368640, FloppyGeometry{40, 2, 9}},
		{737280, FloppyGeometry{80, 2, 9}},
		{1228800, FloppyGeometry{80, 2, 15}},
		{1474560, FloppyGeometry{80, 2, 18}},
	}
	for _, tc := range cases {
		d, err := NewFloppyDisk(make([]uint8, tc.size))
		if err != nil {
			t.Errorf("size %d: %v", tc.size, err)
			continue
		}
		if d.Geometry() != tc.geom {
			t.Errorf("size %d geometry %+v, want %+v", tc.size, d.Geometry(), tc.geom)
		}
	}
	if _, err := NewFloppyDisk(make([]uint8, 12345)); err == nil {
		t.Error("nonstandard image size accepted")
	}
}

func TestFloppyWriteProtect(t *testing.T) {
	d, err := NewFloppyDisk(make([]uint8, 368640))
	if err != nil {
		t.Fatal(err)
	}
	sector := make([]uint8, floppySectorSize)
	sector[0] = 0x55
	d.SetWriteProtect(true)
	if err := d.WriteSector(0, 0, 1, sector); err == nil {
		t.Error("write accepted on a protected disk")
	}
	d.SetWriteProtect(false)
	if err := d.WriteSector(0, 0, 1, sector); err != nil {
		t.Fatal(err)
	}
	if got := d.ReadSector(0, 0, 1); got[0] != 0x55 {
		t.Errorf("read back %02X", got[0])
	}
}

func TestFloppyFlushRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boot.img")
	if err := os.WriteFile(path, make([]uint8, 368640), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := LoadFloppyImage(path)
	if err != nil {
		t.Fatal(err)
	}
	sector := make([]uint8, floppySectorSize)
	sector[510], sector[511] = 0x55, 0xAA
	if err := d.WriteSector(0, 0, 1, sector); err != nil {
		t.Fatal(err)
	}
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}

	back, err := LoadFloppyImage(path)
	if err != nil {
		t.Fatal(err)
	}
	if s := back.ReadSector(0, 0, 1); s[510] != 0x55 || s[511] != 0xAA {
		t.Error("boot signature did not survive the flush")
	}
}
