// floppy_disk.go - Raw-sector floppy images
//
// Standard PC formats are recognized by image size alone; sectors are
// always 512 bytes. The image lives in memory and is flushed back to
// its file on unmount.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"os"

	"github.com/pkg/errors"
)

const floppySectorSize = 512

// FloppyGeometry describes one standard format.
type FloppyGeometry struct {
	Cylinders uint8
	Heads     uint8
	Sectors   uint8 // per track, 1-based sector IDs
}

var floppyFormats = map[int]FloppyGeometry{
	163840:  {40, 1, 8},  // 160K
	184320:  {40, 1, 9},  // 180K
	327680:  {40, 2, 8},  // 320K
	368640:  {40, 2, 9},  // 360K
	737280:  {80, 2, 9},  // 720K
	1228800: {80, 2, 15}, // 1.2M
	1474560: {80, 2, 18}, // 1.44M
}

type FloppyDisk struct {
	path string
	geom FloppyGeometry
	data []uint8

	writeProtect bool
	dirty        bool
}

// LoadFloppyImage reads a raw image file and derives its geometry.
func LoadFloppyImage(path string) (*FloppyDisk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "floppy: read image")
	}
	d, err := NewFloppyDisk(data)
	if err != nil {
		return nil, errors.Wrapf(err, "floppy: %s", path)
	}
	d.path = path
	return d, nil
}

// NewFloppyDisk wraps an in-memory image.
func NewFloppyDisk(data []uint8) (*FloppyDisk, error) {
	geom, ok := floppyFormats[len(data)]
	if !ok {
		return nil, errors.Errorf("unrecognized image size %d", len(data))
	}
	return &FloppyDisk{geom: geom, data: data}, nil
}

func (d *FloppyDisk) Geometry() FloppyGeometry {
	return d.geom
}

// SetWriteProtect sets the write-protect tab.
func (d *FloppyDisk) SetWriteProtect(on bool) {
	d.writeProtect = on
}

func (d *FloppyDisk) WriteProtected() bool {
	return d.writeProtect
}

// sectorOffset maps CHS (sector 1-based) to a byte offset, or -1.
func (d *FloppyDisk) sectorOffset(c, h, s uint8) int {
	if c >= d.geom.Cylinders || h >= d.geom.Heads || s < 1 || s > d.geom.Sectors {
		return -1
	}
	lba := (int(c)*int(d.geom.Heads)+int(h))*int(d.geom.Sectors) + int(s) - 1
	return lba * floppySectorSize
}

// ReadSector returns the 512 bytes at CHS, or nil if out of range.
func (d *FloppyDisk) ReadSector(c, h, s uint8) []uint8 {
	ofs := d.sectorOffset(c, h, s)
	if ofs < 0 {
		return nil
	}
	return d.data[ofs : ofs+floppySectorSize]
}

// WriteSector stores 512 bytes at CHS.
func (d *FloppyDisk) WriteSector(c, h, s uint8, data []uint8) error {
	if d.writeProtect {
		return errors.New("floppy: disk is write protected")
	}
	ofs := d.sectorOffset(c, h, s)
	if ofs < 0 {
		return errors.Errorf("floppy: no sector at %d/%d/%d", c, h, s)
	}
	copy(d.data[ofs:ofs+floppySectorSize], data)
	d.dirty = true
	return nil
}

// Flush writes the image back to its backing file if modified.
func (d *FloppyDisk) Flush() error {
	if !d.dirty || d.path == "" {
		return nil
	}
	if err := os.WriteFile(d.path, d.data, 0o644); err != nil {
		return errors.Wrap(err, "floppy: flush image")
	}
	d.dirty = false
	return nil
}
