// rom.go - ROM image loading
//
// BIOS and option ROM images load from plain binary dumps. The system
// BIOS mounts so its top byte lands at FFFFF, which puts the entry
// point under the FFFF:0000 reset vector. Option ROMs carry the 55 AA
// signature and an 8-bit checksum over their advertised length.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"log"
	"os"

	"github.com/pkg/errors"
)

// LoadROMImage reads a raw binary dump.
func LoadROMImage(path string) ([]uint8, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "rom: read image")
	}
	if len(data) == 0 {
		return nil, errors.Errorf("rom: %s is empty", path)
	}
	return data, nil
}

// MountBIOS loads a system BIOS so it ends at the top of the address
// space.
func (m *Machine) MountBIOS(path string) error {
	data, err := LoadROMImage(path)
	if err != nil {
		return err
	}
	if len(data) > 0x10000 {
		return errors.Errorf("rom: BIOS of %d bytes exceeds the F segment", len(data))
	}
	addr := uint32(MemorySize) - uint32(len(data))
	log.Printf("ROM: BIOS %s, %d KB at %05X", path, len(data)/1024, addr)
	return m.bus.MountROM(data, addr)
}

// MountOptionROM validates and mounts an option ROM (video BIOS, disk
// controller BIOS) at its card's address.
func (m *Machine) MountOptionROM(path string, addr uint32) error {
	data, err := LoadROMImage(path)
	if err != nil {
		return err
	}
	if len(data) < 3 || data[0] != 0x55 || data[1] != 0xAA {
		return errors.Errorf("rom: %s has no option ROM signature", path)
	}
	declared := int(data[2]) * 512
	if declared > len(data) {
		return errors.Errorf("rom: %s declares %d bytes but holds %d",
			path, declared, len(data))
	}
	var sum uint8
	for _, b := range data[:declared] {
		sum += b
	}
	if sum != 0 {
		log.Printf("ROM: %s checksum residue %02X, mounting anyway", path, sum)
	}
	log.Printf("ROM: option ROM %s, %d KB at %05X", path, declared/1024, addr)
	return m.bus.MountROM(data, addr)
}
