// fdc.go - NEC uPD765 floppy disk controller
//
// Command/execution/result phase state machine for the command subset
// the XT BIOS and DOS exercise. Sector data moves over DMA channel 2;
// completion raises IRQ6. The controller also owns the digital output
// register with its reset and motor bits.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "log"

const (
	fdcPortDOR    = 0x3F2
	fdcPortMSR    = 0x3F4
	fdcPortData   = 0x3F5
	fdcIRQ        = 6
	fdcDmaChannel = 2
	fdcDrives     = 4
)

// MSR bits.
const (
	fdcMSRBusy      = 0x10
	fdcMSRNonDMA    = 0x20
	fdcMSRDirection = 0x40 // set: controller -> CPU
	fdcMSRReady     = 0x80
)

// Status register 0 fields.
const (
	fdcST0NormalTermination   = 0x00
	fdcST0AbnormalTermination = 0x40
	fdcST0InvalidCommand      = 0x80
	fdcST0SeekEnd             = 0x20
)

// Command opcodes (low 5 bits of the first command byte).
const (
	fdcCmdReadTrack      = 0x02
	fdcCmdSpecify        = 0x03
	fdcCmdSenseDrive     = 0x04
	fdcCmdWriteData      = 0x05
	fdcCmdReadData       = 0x06
	fdcCmdRecalibrate    = 0x07
	fdcCmdSenseInterrupt = 0x08
	fdcCmdReadID         = 0x0A
	fdcCmdFormatTrack    = 0x0D
	fdcCmdSeek           = 0x0F
)

// commandLengths maps opcode to total command-phase byte count.
var commandLengths = map[uint8]int{
	fdcCmdReadTrack:      9,
	fdcCmdSpecify:        3,
	fdcCmdSenseDrive:     2,
	fdcCmdWriteData:      9,
	fdcCmdReadData:       9,
	fdcCmdRecalibrate:    2,
	fdcCmdSenseInterrupt: 1,
	fdcCmdReadID:         2,
	fdcCmdFormatTrack:    6,
	fdcCmdSeek:           3,
}

type fdcPhase int

const (
	fdcPhaseCommand fdcPhase = iota
	fdcPhaseExecute
	fdcPhaseResult
)

type fdcDrive struct {
	disk     *FloppyDisk
	cylinder uint8
	motorOn  bool
}

type FDC struct {
	drives [fdcDrives]fdcDrive

	dor uint8

	phase   fdcPhase
	command []uint8
	cmdLen  int
	result  []uint8

	// Interrupt bookkeeping for Sense Interrupt Status.
	intPending bool
	st0        uint8

	// Specify's ND bit: execution-phase data moves through the data
	// port instead of DMA channel 2.
	nonDMA bool

	// Execution-phase transfer state (DMA).
	xferDrive  int
	xferCyl    uint8
	xferHead   uint8
	xferSector uint8
	xferEOT    uint8
	xferBuf    []uint8
	xferPos    int
	xferWrite  bool

	// Operation latency countdown before the completion interrupt.
	opDelay uint32
}

func NewFDC() *FDC {
	return &FDC{}
}

func (f *FDC) Ports() []uint16 {
	return []uint16{fdcPortDOR, fdcPortMSR, fdcPortData}
}

// MountDisk inserts a disk into a drive.
func (f *FDC) MountDisk(drive int, disk *FloppyDisk) {
	f.drives[drive&3].disk = disk
}

// UnmountDisk removes and flushes the disk in a drive.
func (f *FDC) UnmountDisk(drive int) error {
	d := &f.drives[drive&3]
	if d.disk == nil {
		return nil
	}
	err := d.disk.Flush()
	d.disk = nil
	return err
}

// Disk returns the mounted disk, or nil.
func (f *FDC) Disk(drive int) *FloppyDisk {
	return f.drives[drive&3].disk
}

func (f *FDC) selectedDrive() int {
	return int(f.dor & 3)
}

// ----------------------------------------------------------------------------
// Register interface
// ----------------------------------------------------------------------------

func (f *FDC) ReadU8(port uint16, _ uint32) uint8 {
	switch port {
	case fdcPortMSR:
		msr := uint8(fdcMSRReady)
		switch f.phase {
		case fdcPhaseResult:
			msr |= fdcMSRDirection | fdcMSRBusy
		case fdcPhaseExecute:
			msr |= fdcMSRBusy
			if f.nonDMA {
				msr |= fdcMSRNonDMA
				if !f.xferWrite {
					msr |= fdcMSRDirection
				}
			}
		}
		return msr
	case fdcPortData:
		if f.phase == fdcPhaseExecute && f.nonDMA && !f.xferWrite {
			return f.pioReadU8()
		}
		if f.phase != fdcPhaseResult || len(f.result) == 0 {
			return NoIOByte
		}
		b := f.result[0]
		f.result = f.result[1:]
		if len(f.result) == 0 {
			f.phase = fdcPhaseCommand
		}
		return b
	case fdcPortDOR:
		return f.dor
	}
	return NoIOByte
}

func (f *FDC) WriteU8(port uint16, data uint8, bus *SystemBus, _ uint32) {
	switch port {
	case fdcPortDOR:
		wasReset := f.dor&0x04 == 0
		f.dor = data
		for i := range f.drives {
			f.drives[i].motorOn = data&(0x10<<i) != 0
		}
		if wasReset && data&0x04 != 0 {
			// Leaving reset raises the ready interrupt the BIOS polls
			// for with Sense Interrupt Status.
			f.reset()
			f.raiseInterrupt(bus, fdcST0InvalidCommand|0xC0)
		}
	case fdcPortData:
		f.writeData(data, bus)
	}
}

// Reset is the hardware reset line; mounted disks stay in their
// drives.
func (f *FDC) Reset() {
	f.reset()
	f.dor = 0
	f.intPending = false
	f.nonDMA = false
	for i := range f.drives {
		f.drives[i].cylinder = 0
	}
}

func (f *FDC) reset() {
	f.phase = fdcPhaseCommand
	f.command = f.command[:0]
	f.result = f.result[:0]
	f.xferBuf = nil
	f.opDelay = 0
}

func (f *FDC) writeData(data uint8, bus *SystemBus) {
	if f.phase == fdcPhaseExecute && f.nonDMA && f.xferWrite {
		f.DmaWriteU8(data)
		if f.xferBuf == nil {
			f.finishTransfer(bus, fdcST0NormalTermination,
				f.xferDrive, f.xferHead, f.xferSector)
		}
		return
	}
	if f.phase != fdcPhaseCommand {
		return
	}
	if len(f.command) == 0 {
		op := data & 0x1F
		n, ok := commandLengths[op]
		if !ok {
			log.Printf("FDC: invalid command %02X", data)
			f.result = []uint8{fdcST0InvalidCommand}
			f.phase = fdcPhaseResult
			return
		}
		f.cmdLen = n
	}
	f.command = append(f.command, data)
	if len(f.command) == f.cmdLen {
		f.execute(bus)
		f.command = f.command[:0]
	}
}

// ----------------------------------------------------------------------------
// Command execution
// ----------------------------------------------------------------------------

func (f *FDC) execute(bus *SystemBus) {
	op := f.command[0] & 0x1F
	switch op {
	case fdcCmdSpecify:
		// SRT/HUT/HLT are timing bytes; only the ND bit matters.
		f.nonDMA = f.command[2]&0x01 != 0

	case fdcCmdRecalibrate:
		drv := int(f.command[1] & 3)
		f.drives[drv].cylinder = 0
		f.scheduleSeekDone(drv)

	case fdcCmdSeek:
		drv := int(f.command[1] & 3)
		f.drives[drv].cylinder = f.command[2]
		f.scheduleSeekDone(drv)

	case fdcCmdSenseInterrupt:
		if !f.intPending {
			f.result = []uint8{fdcST0InvalidCommand}
			f.phase = fdcPhaseResult
			return
		}
		f.intPending = false
		drv := f.selectedDrive()
		f.result = []uint8{f.st0, f.drives[drv].cylinder}
		f.phase = fdcPhaseResult

	case fdcCmdSenseDrive:
		drv := int(f.command[1] & 3)
		st3 := uint8(drv) | 0x20 // ready
		if d := f.drives[drv].disk; d != nil {
			if f.drives[drv].cylinder == 0 {
				st3 |= 0x10 // track 0
			}
			if d.Geometry().Heads == 2 {
				st3 |= 0x08 // two-sided
			}
			if d.WriteProtected() {
				st3 |= 0x40
			}
		}
		f.result = []uint8{st3}
		f.phase = fdcPhaseResult

	case fdcCmdReadID:
		drv := int(f.command[1] & 3)
		head := (f.command[1] >> 2) & 1
		d := f.drives[drv].disk
		if d == nil {
			f.finishTransfer(nil, fdcST0AbnormalTermination, drv, head, 1)
			return
		}
		f.st0 = uint8(drv) | head<<2
		f.result = []uint8{f.st0, 0, 0,
			f.drives[drv].cylinder, head, 1, 2}
		f.phase = fdcPhaseResult
		f.intPending = true

	case fdcCmdReadData, fdcCmdReadTrack:
		f.beginTransfer(bus, false)

	case fdcCmdWriteData:
		f.beginTransfer(bus, true)

	case fdcCmdFormatTrack:
		// N/SC/GPL/D follow; sectors are rewritten with the filler.
		drv := f.selectedDrive()
		head := (f.command[1] >> 2) & 1
		d := f.drives[drv].disk
		if d != nil && !d.WriteProtected() {
			filler := f.command[5]
			sector := make([]uint8, floppySectorSize)
			for i := range sector {
				sector[i] = filler
			}
			geom := d.Geometry()
			for s := uint8(1); s <= geom.Sectors; s++ {
				d.WriteSector(f.drives[drv].cylinder, head, s, sector)
			}
		}
		f.finishTransfer(bus, fdcST0NormalTermination, drv, head, 1)
	}
}

// scheduleSeekDone arms the step-time delay; the interrupt arrives
// from Run.
func (f *FDC) scheduleSeekDone(drv int) {
	f.st0 = fdcST0SeekEnd | uint8(drv)
	f.opDelay = 2000
}

// beginTransfer parses the 9-byte read/write command and stages the
// first sector for DMA.
func (f *FDC) beginTransfer(bus *SystemBus, write bool) {
	drv := int(f.command[1] & 3)
	head := (f.command[1] >> 2) & 1
	cyl := f.command[2]
	sector := f.command[4]
	eot := f.command[6]

	d := f.drives[drv].disk
	if d == nil || (write && d.WriteProtected()) {
		f.finishTransfer(bus, fdcST0AbnormalTermination, drv, head, sector)
		return
	}

	f.xferDrive = drv
	f.xferCyl = cyl
	f.xferHead = head
	f.xferSector = sector
	f.xferEOT = eot
	f.xferWrite = write
	f.xferPos = 0
	f.phase = fdcPhaseExecute

	if write {
		f.xferBuf = make([]uint8, floppySectorSize)
	} else {
		f.xferBuf = d.ReadSector(cyl, head, sector)
		if f.xferBuf == nil {
			f.finishTransfer(bus, fdcST0AbnormalTermination, drv, head, sector)
			return
		}
	}
	if f.nonDMA {
		// The CPU drains or feeds the data port directly; MSR
		// signals direction and non-DMA mode.
		return
	}
	if dmac := bus.DMAC(); dmac != nil {
		dmac.AttachDevice(fdcDmaChannel, f)
		dmac.RequestService(fdcDmaChannel)
	}
}

// pioReadU8 hands the CPU the next execution-phase byte in non-DMA
// mode. The completion interrupt is deferred to Run once the last
// sector drains.
func (f *FDC) pioReadU8() uint8 {
	b := f.DmaReadU8()
	if f.xferBuf == nil {
		f.opDelay = 1
	}
	return b
}

// finishTransfer enters the result phase with the standard 7-byte
// status block and raises IRQ6.
func (f *FDC) finishTransfer(bus *SystemBus, st0Bits uint8, drv int, head, sector uint8) {
	f.st0 = st0Bits | uint8(drv) | head<<2
	st1 := uint8(0)
	if st0Bits == fdcST0AbnormalTermination {
		st1 = 0x04 // no data
	}
	f.result = []uint8{f.st0, st1, 0,
		f.drives[drv].cylinder, head, sector, 2}
	f.phase = fdcPhaseResult
	f.xferBuf = nil
	if bus != nil {
		f.raiseInterrupt(bus, f.st0)
	}
}

func (f *FDC) raiseInterrupt(bus *SystemBus, st0 uint8) {
	f.st0 = st0
	f.intPending = true
	if pic := bus.PIC(); pic != nil {
		pic.PulseInterrupt(fdcIRQ)
	}
}

// nextSector advances multi-sector transfers across the track and,
// for reads past EOT, terminates.
func (f *FDC) nextSector() bool {
	if f.xferSector >= f.xferEOT {
		return false
	}
	f.xferSector++
	f.xferPos = 0
	d := f.drives[f.xferDrive].disk
	if f.xferWrite {
		f.xferBuf = make([]uint8, floppySectorSize)
		return true
	}
	f.xferBuf = d.ReadSector(f.xferCyl, f.xferHead, f.xferSector)
	return f.xferBuf != nil
}

// ----------------------------------------------------------------------------
// DmaDevice
// ----------------------------------------------------------------------------

func (f *FDC) DmaReadU8() uint8 {
	if f.xferBuf == nil || f.xferPos >= len(f.xferBuf) {
		return NoIOByte
	}
	b := f.xferBuf[f.xferPos]
	f.xferPos++
	if f.xferPos == floppySectorSize {
		if !f.nextSector() {
			f.xferBuf = nil
		}
	}
	return b
}

func (f *FDC) DmaWriteU8(data uint8) {
	if f.xferBuf == nil || f.xferPos >= len(f.xferBuf) {
		return
	}
	f.xferBuf[f.xferPos] = data
	f.xferPos++
	if f.xferPos == floppySectorSize {
		d := f.drives[f.xferDrive].disk
		if err := d.WriteSector(f.xferCyl, f.xferHead, f.xferSector, f.xferBuf); err != nil {
			log.Printf("FDC: %v", err)
		}
		if !f.nextSector() {
			f.xferBuf = nil
		}
	}
}

// DmaComplete fires at terminal count; the completion interrupt is
// deferred to Run so the CPU finishes the current step first.
func (f *FDC) DmaComplete() {
	f.opDelay = 200
}

// Run delivers deferred completion interrupts.
func (f *FDC) Run(sysTicks uint32, bus *SystemBus) {
	if f.opDelay == 0 {
		return
	}
	if sysTicks < f.opDelay {
		f.opDelay -= sysTicks
		return
	}
	f.opDelay = 0
	if f.phase == fdcPhaseExecute {
		f.finishTransfer(bus, fdcST0NormalTermination,
			f.xferDrive, f.xferHead, f.xferSector)
		return
	}
	// Seek/recalibrate completion: no result phase, interrupt only.
	f.intPending = true
	if pic := bus.PIC(); pic != nil {
		pic.PulseInterrupt(fdcIRQ)
	}
}
