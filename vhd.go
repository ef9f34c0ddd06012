// vhd.go - Fixed-size VHD disk images
//
// Only the fixed variant is supported: raw sector data followed by a
// single 512-byte big-endian footer. The footer survives round trips
// bit-exactly so images stay interchangeable with other tools.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"time"

	"github.com/pkg/errors"
)

const (
	vhdSectorSize = 512
	vhdFooterSize = 512

	vhdTypeFixed = 2

	// Seconds between the Unix and VHD epochs (2000-01-01 UTC).
	vhdEpochOffset = 946684800
)

var vhdCookie = [8]uint8{'c', 'o', 'n', 'e', 'c', 't', 'i', 'x'}

// VHDFooter mirrors the on-disk footer layout. All multi-byte fields
// are big-endian.
type VHDFooter struct {
	Cookie             [8]uint8
	Features           uint32
	FileFormatVersion  uint32
	DataOffset         uint64
	Timestamp          uint32
	CreatorApplication [4]uint8
	CreatorVersion     uint32
	CreatorHostOS      [4]uint8
	OriginalSize       uint64
	CurrentSize        uint64
	Cylinders          uint16
	Heads              uint8
	SectorsPerTrack    uint8
	DiskType           uint32
	Checksum           uint32
	UniqueID           [16]uint8
	SavedState         uint8
	Reserved           [427]uint8
}

// vhdGeometryForSize implements the standard CHS derivation from a
// total sector count.
func vhdGeometryForSize(totalSectors uint64) (uint16, uint8, uint8) {
	if totalSectors > 65535*16*255 {
		totalSectors = 65535 * 16 * 255
	}
	var spt, heads uint64
	var cylTimesHeads uint64
	if totalSectors >= 65535*16*63 {
		spt = 255
		heads = 16
		cylTimesHeads = totalSectors / spt
	} else {
		spt = 17
		cylTimesHeads = totalSectors / spt
		heads = (cylTimesHeads + 1023) / 1024
		if heads < 4 {
			heads = 4
		}
		if cylTimesHeads >= heads*1024 || heads > 16 {
			spt = 31
			heads = 16
			cylTimesHeads = totalSectors / spt
		}
		if cylTimesHeads >= heads*1024 {
			spt = 63
			heads = 16
			cylTimesHeads = totalSectors / spt
		}
	}
	return uint16(cylTimesHeads / heads), uint8(heads), uint8(spt)
}

// computeChecksum is the ones-complement byte sum with the checksum
// field zeroed.
func (f *VHDFooter) computeChecksum() uint32 {
	saved := f.Checksum
	f.Checksum = 0
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, f)
	f.Checksum = saved
	var sum uint32
	for _, b := range buf.Bytes() {
		sum += uint32(b)
	}
	return ^sum
}

func (f *VHDFooter) serialize() []uint8 {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, f)
	return buf.Bytes()
}

func parseVHDFooter(raw []uint8) (*VHDFooter, error) {
	if len(raw) != vhdFooterSize {
		return nil, errors.Errorf("vhd: footer is %d bytes", len(raw))
	}
	var f VHDFooter
	if err := binary.Read(bytes.NewReader(raw), binary.BigEndian, &f); err != nil {
		return nil, errors.Wrap(err, "vhd: parse footer")
	}
	if f.Cookie != vhdCookie {
		return nil, errors.New("vhd: bad cookie")
	}
	if f.DiskType != vhdTypeFixed {
		return nil, errors.Errorf("vhd: disk type %d not supported (fixed only)", f.DiskType)
	}
	if f.computeChecksum() != f.Checksum {
		return nil, errors.New("vhd: footer checksum mismatch")
	}
	return &f, nil
}

// VHD is an open fixed-VHD image with write-through sector access.
type VHD struct {
	file   *os.File
	footer *VHDFooter

	Cylinders       uint16
	Heads           uint8
	SectorsPerTrack uint8
}

// OpenVHD opens an existing fixed VHD for read/write.
func OpenVHD(path string) (*VHD, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrap(err, "vhd: open")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "vhd: stat")
	}
	if info.Size() < vhdFooterSize {
		file.Close()
		return nil, errors.New("vhd: file too small for a footer")
	}
	raw := make([]uint8, vhdFooterSize)
	if _, err := file.ReadAt(raw, info.Size()-vhdFooterSize); err != nil {
		file.Close()
		return nil, errors.Wrap(err, "vhd: read footer")
	}
	footer, err := parseVHDFooter(raw)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &VHD{
		file:            file,
		footer:          footer,
		Cylinders:       footer.Cylinders,
		Heads:           footer.Heads,
		SectorsPerTrack: footer.SectorsPerTrack,
	}, nil
}

// CreateVHD builds a zero-filled fixed VHD with the given geometry.
func CreateVHD(path string, cylinders uint16, heads, spt uint8) (*VHD, error) {
	size := uint64(cylinders) * uint64(heads) * uint64(spt) * vhdSectorSize
	footer := &VHDFooter{
		Cookie:             vhdCookie,
		Features:           0x00000002, // reserved bit, always set
		FileFormatVersion:  0x00010000,
		DataOffset:         0xFFFFFFFFFFFFFFFF, // fixed disks have none
		Timestamp:          uint32(time.Now().Unix() - vhdEpochOffset),
		CreatorApplication: [4]uint8{'x', 't', 'g', 'o'},
		CreatorVersion:     0x00010000,
		CreatorHostOS:      [4]uint8{'W', 'i', '2', 'k'},
		OriginalSize:       size,
		CurrentSize:        size,
		Cylinders:          cylinders,
		Heads:              heads,
		SectorsPerTrack:    spt,
		DiskType:           vhdTypeFixed,
	}
	copy(footer.UniqueID[:], []uint8{
		0x78, 0x74, 0x67, 0x6F, uint8(cylinders >> 8), uint8(cylinders),
		heads, spt, 0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x00, 0x00, 0x01,
	})
	footer.Checksum = footer.computeChecksum()

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "vhd: create")
	}
	if err := file.Truncate(int64(size)); err != nil {
		file.Close()
		return nil, errors.Wrap(err, "vhd: allocate data")
	}
	if _, err := file.WriteAt(footer.serialize(), int64(size)); err != nil {
		file.Close()
		return nil, errors.Wrap(err, "vhd: write footer")
	}
	return &VHD{
		file:            file,
		footer:          footer,
		Cylinders:       cylinders,
		Heads:           heads,
		SectorsPerTrack: spt,
	}, nil
}

// CreateVHDOfSize derives a standard geometry for a byte size.
func CreateVHDOfSize(path string, sizeBytes uint64) (*VHD, error) {
	c, h, s := vhdGeometryForSize(sizeBytes / vhdSectorSize)
	return CreateVHD(path, c, h, s)
}

// TotalSectors returns the addressable sector count.
func (v *VHD) TotalSectors() uint32 {
	return uint32(v.Cylinders) * uint32(v.Heads) * uint32(v.SectorsPerTrack)
}

// lba maps CHS (sector 1-based) onto a linear block address.
func (v *VHD) lba(c uint16, h, s uint8) (int64, error) {
	if c >= v.Cylinders || h >= v.Heads || s < 1 || s > v.SectorsPerTrack {
		return 0, errors.Errorf("vhd: no sector at %d/%d/%d", c, h, s)
	}
	return (int64(c)*int64(v.Heads)+int64(h))*int64(v.SectorsPerTrack) +
		int64(s) - 1, nil
}

// ReadSector reads 512 bytes at CHS.
func (v *VHD) ReadSector(c uint16, h, s uint8) ([]uint8, error) {
	lba, err := v.lba(c, h, s)
	if err != nil {
		return nil, err
	}
	buf := make([]uint8, vhdSectorSize)
	if _, err := v.file.ReadAt(buf, lba*vhdSectorSize); err != nil {
		return nil, errors.Wrap(err, "vhd: read sector")
	}
	return buf, nil
}

// WriteSector writes 512 bytes at CHS, write-through.
func (v *VHD) WriteSector(c uint16, h, s uint8, data []uint8) error {
	lba, err := v.lba(c, h, s)
	if err != nil {
		return err
	}
	if len(data) != vhdSectorSize {
		return errors.Errorf("vhd: sector write of %d bytes", len(data))
	}
	if _, err := v.file.WriteAt(data, lba*vhdSectorSize); err != nil {
		return errors.Wrap(err, "vhd: write sector")
	}
	return nil
}

// Close releases the backing file.
func (v *VHD) Close() error {
	return v.file.Close()
}
