// machine.go - System assembly and run control
//
// A Machine is one complete XT class system: CPU, bus, the motherboard
// chipset and whatever expansion cards the configuration asks for. The
// run loop executes in frame sized quanta, using the primary video
// card's retrace counter as the frame boundary.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"log"

	"github.com/pkg/errors"
)

// Base CPU clock, 14.31818 MHz / 3.
const BaseClockHz = 4772727

// MachineConfig selects the hardware fit of a Machine.
type MachineConfig struct {
	Cpu       CpuType
	RamKB     uint32
	Video     VideoType
	Composite bool

	FloppyDrives int
	HardDrives   int

	// Clock multiplier; 1.0 is a stock 4.77 MHz board.
	SpeedFactor float64

	// Optional host serial device bridged onto COM1.
	SerialBridge string

	// Optional character generator ROM dumps.
	FontROM8  []uint8
	FontROM14 []uint8
}

// DefaultConfig is a 640 KB CGA machine with one floppy drive.
func DefaultConfig() MachineConfig {
	return MachineConfig{
		Cpu:          CpuIntel8088,
		RamKB:        640,
		Video:        VideoCGA,
		FloppyDrives: 1,
		SpeedFactor:  1.0,
	}
}

type Machine struct {
	Cfg MachineConfig

	cpu *CPU
	bus *SystemBus
	ec  *ExecutionControl

	pic    *PIC
	pit    *PIT
	dmac   *DMAC
	ppi    *PPI
	kb     *Keyboard
	a0     *A0Register
	serial *SerialCard
	lpt    *LptCard
	game   *GamePort
	fdc    *FDC
	hdc    *HDC
	video  VideoCard

	hardDisks []*VHD

	cyclesPerFrame uint64
}

// NewMachine builds and wires a Machine. Construction failures are
// configuration errors (port conflicts, bad MMIO windows) and fatal.
func NewMachine(cfg MachineConfig) (*Machine, error) {
	if cfg.SpeedFactor <= 0 {
		cfg.SpeedFactor = 1.0
	}
	if cfg.RamKB == 0 || cfg.RamKB > 640 {
		cfg.RamKB = 640
	}

	m := &Machine{
		Cfg: cfg,
		bus: NewSystemBus(),
		ec:  NewExecutionControl(),
	}

	m.pic = NewPIC()
	m.pit = NewPIT()
	m.dmac = NewDMAC()
	m.ppi = NewPPI()
	m.kb = NewKeyboard()
	m.a0 = NewA0Register()
	m.serial = NewSerialCard()
	m.lpt = NewLptCard()
	m.game = NewGamePort()
	m.fdc = NewFDC()
	m.hdc = NewHDC()

	// Bus device handles for cross-device signalling.
	m.bus.pic = m.pic
	m.bus.pit = m.pit
	m.bus.dmac = m.dmac
	m.bus.ppi = m.ppi
	m.bus.keyboard = m.kb
	m.bus.fdc = m.fdc
	m.bus.hdc = m.hdc

	type ported interface {
		IoDevice
		Ports() []uint16
	}
	for _, dev := range []ported{
		m.pic, m.pit, m.dmac, m.ppi, m.a0,
		m.serial, m.lpt, m.game, m.fdc, m.hdc,
	} {
		if err := m.bus.InstallIo(dev, dev.Ports()); err != nil {
			return nil, err
		}
	}
	for _, dev := range []ClockedDevice{
		m.pit, m.pic, m.kb, m.serial, m.lpt, m.game, m.fdc, m.hdc,
	} {
		m.bus.InstallClocked(dev)
	}

	// The keyboard latch feeds PPI port A; the PPI cannot reach the
	// bus at read time so the link is a closure.
	m.ppi.SetScancodeSource(m.kb.Latch)
	m.ppi.SetSwitches(buildSwitches(cfg))

	if err := m.installVideo(cfg); err != nil {
		return nil, err
	}

	if cfg.SerialBridge != "" {
		if err := m.serial.BridgeHost(0, cfg.SerialBridge); err != nil {
			log.Printf("Machine: serial bridge: %v", err)
		}
	}

	m.cyclesPerFrame = uint64(float64(BaseClockHz) * cfg.SpeedFactor / 60)

	m.cpu = NewCPU(cfg.Cpu, m.bus)
	log.Printf("Machine: %s, %d KB, %s video, %d floppy, %d fixed disk",
		cfg.Cpu, cfg.RamKB, cfg.Video, cfg.FloppyDrives, cfg.HardDrives)
	return m, nil
}

func (m *Machine) installVideo(cfg MachineConfig) error {
	switch cfg.Video {
	case VideoMDA:
		card := NewMDACard()
		if len(cfg.FontROM14) > 0 {
			card.SetFont(LoadFontROM(cfg.FontROM14, 14))
		}
		m.video = card
	case VideoCGA:
		card := NewCGACard()
		if len(cfg.FontROM8) > 0 {
			card.SetFont(LoadFontROM(cfg.FontROM8, 8))
		}
		card.SetComposite(cfg.Composite)
		m.video = card
	case VideoEGA:
		m.video = NewEGACard()
	case VideoVGA:
		m.video = NewVGACard()
	default:
		return errors.Errorf("machine: unknown video type %d", cfg.Video)
	}

	if err := m.bus.InstallIo(m.video, m.video.IoPorts()); err != nil {
		return err
	}
	start, end := m.video.MmioRange()
	if err := m.bus.InstallMmio(m.video, start, end); err != nil {
		return err
	}
	m.bus.InstallClocked(m.video)
	m.bus.cards = append(m.bus.cards, m.video)
	return nil
}

// buildSwitches encodes the motherboard DIP bank: floppy count,
// video mode and installed memory.
func buildSwitches(cfg MachineConfig) uint8 {
	var sw uint8

	if cfg.FloppyDrives > 0 {
		sw |= 0x01 // IPL from floppy
	}
	sw |= 0x0C // four memory banks populated

	switch cfg.Video {
	case VideoMDA:
		sw |= 0x30
	case VideoCGA:
		sw |= 0x20 // 80 column
	default:
		// EGA and VGA carry their own BIOS; switches read "none".
	}

	if n := cfg.FloppyDrives; n > 0 {
		sw |= uint8(n-1) << 6
	}
	return sw
}

// ----------------------------------------------------------------------------
// Accessors
// ----------------------------------------------------------------------------

func (m *Machine) CPU() *CPU                 { return m.cpu }
func (m *Machine) Bus() *SystemBus           { return m.bus }
func (m *Machine) Exec() *ExecutionControl   { return m.ec }
func (m *Machine) PrimaryVideo() VideoCard   { return m.video }
func (m *Machine) Serial() *SerialCard       { return m.serial }
func (m *Machine) Printer() *LptCard         { return m.lpt }
func (m *Machine) GameControl() *GamePort    { return m.game }

func (m *Machine) Cycles() uint64       { return m.cpu.Cycles }
func (m *Machine) Instructions() uint64 { return m.cpu.Instructions }
func (m *Machine) Frames() uint64       { return m.bus.Retraces() }

// CpuFactor returns the clock multiplier; 1.0 is a stock board.
func (m *Machine) CpuFactor() float64 { return m.Cfg.SpeedFactor }

// CpuMhz returns the effective CPU clock in MHz.
func (m *Machine) CpuMhz() float64 {
	return float64(BaseClockHz) * m.Cfg.SpeedFactor / 1e6
}

// ----------------------------------------------------------------------------
// Reset and ROM
// ----------------------------------------------------------------------------

// Reset performs a hardware reset: every chip back to power-on state,
// RAM and ROM contents preserved.
func (m *Machine) Reset() {
	m.cpu.Reset()
	m.pic.Reset()
	m.pit.Reset()
	m.dmac.Reset()
	m.fdc.Reset()
	m.hdc.Reset()
	if m.video != nil {
		m.video.Reset()
	}
	log.Printf("Machine: reset, %s at CS:IP %04X:%04X", m.Cfg.Cpu, m.cpu.CS, m.cpu.IP)
}

// MountROM write-protects a ROM image at the given physical address.
func (m *Machine) MountROM(data []uint8, addr uint32) error {
	return m.bus.MountROM(data, addr)
}

// LoadProgram copies raw bytes into RAM at seg:ofs and vectors the CPU
// there. Meant for test harnesses and the monitor's L command, not a
// substitute for a BIOS boot.
func (m *Machine) LoadProgram(data []uint8, seg, ofs uint16) error {
	addr := linearAddress(seg, ofs)
	if err := m.bus.LoadProgram(data, addr); err != nil {
		return err
	}
	m.cpu.SetCSIP(seg, ofs)
	return nil
}

// ----------------------------------------------------------------------------
// Execution
// ----------------------------------------------------------------------------

// Step executes a single instruction.
func (m *Machine) Step() (uint64, StepResult) {
	return m.cpu.Step()
}

// RunFrame executes one video frame's worth of cycles, stopping early
// on a breakpoint.
func (m *Machine) RunFrame() uint64 {
	return m.cpu.Run(m.cyclesPerFrame, m.ec)
}

// RunCycles executes at least n cycles.
func (m *Machine) RunCycles(n uint64) uint64 {
	return m.cpu.Run(n, m.ec)
}

// ----------------------------------------------------------------------------
// Input
// ----------------------------------------------------------------------------

// KeyPress queues a make scancode.
func (m *Machine) KeyPress(scancode uint8) {
	m.kb.KeyPress(scancode)
}

// KeyRelease queues the matching break scancode.
func (m *Machine) KeyRelease(scancode uint8) {
	m.kb.KeyRelease(scancode)
}

// ----------------------------------------------------------------------------
// Storage
// ----------------------------------------------------------------------------

// MountFloppy inserts a disk image into drive 0 or 1.
func (m *Machine) MountFloppy(drive int, path string) error {
	disk, err := LoadFloppyImage(path)
	if err != nil {
		return err
	}
	m.fdc.MountDisk(drive, disk)
	log.Printf("Machine: floppy %d: %s", drive, path)
	return nil
}

// UnmountFloppy ejects a drive, flushing pending writes.
func (m *Machine) UnmountFloppy(drive int) error {
	return m.fdc.UnmountDisk(drive)
}

// AttachHardDisk opens a VHD image on a fixed disk drive.
func (m *Machine) AttachHardDisk(drive int, path string) error {
	v, err := OpenVHD(path)
	if err != nil {
		return err
	}
	m.hdc.AttachVHD(drive, v)
	m.hardDisks = append(m.hardDisks, v)
	log.Printf("Machine: fixed disk %d: %s (%d sectors)", drive, path, v.TotalSectors())
	return nil
}

// Close flushes and releases every attached disk image.
func (m *Machine) Close() error {
	var first error
	for _, v := range m.hardDisks {
		if err := v.Close(); err != nil && first == nil {
			first = err
		}
	}
	m.hardDisks = nil
	for drive := 0; drive < 2; drive++ {
		if err := m.fdc.UnmountDisk(drive); err != nil && first == nil {
			first = err
		}
	}
	return first
}
