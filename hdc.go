// hdc.go - IBM/Xebec fixed disk adapter
//
// The XT's hard disk controller takes 6-byte command blocks through
// its data port, moves sector data over DMA channel 3 and completes
// with a status byte plus IRQ5. Drives are backed by fixed VHD
// images.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "log"

const (
	hdcPortData   = 0x320
	hdcPortStatus = 0x321 // read: status, write: controller reset
	hdcPortConfig = 0x322 // read: drive switches, write: select pulse
	hdcPortMask   = 0x323 // write: DMA and IRQ enable
	hdcIRQ        = 5
	hdcDmaChannel = 3
	hdcDrives     = 2
)

// Status port bits.
const (
	hdcStatusReq       = 0x01 // controller wants a data-port transfer
	hdcStatusIn        = 0x02 // direction: controller -> CPU
	hdcStatusBusy      = 0x08
	hdcStatusDRQ       = 0x10
	hdcStatusInterrupt = 0x20
)

// Command opcodes.
const (
	hdcCmdTestReady   = 0x00
	hdcCmdRecalibrate = 0x01
	hdcCmdSense       = 0x03
	hdcCmdFormatDrive = 0x04
	hdcCmdReadVerify  = 0x05
	hdcCmdFormatTrack = 0x06
	hdcCmdRead        = 0x08
	hdcCmdWrite       = 0x0A
	hdcCmdSeek        = 0x0B
	hdcCmdInitChars   = 0x0C
	hdcCmdReadECC     = 0x0D
	hdcCmdRAMDiag     = 0xE0
	hdcCmdDriveDiag   = 0xE3
	hdcCmdCtlrDiag    = 0xE4
)

type hdcState int

const (
	hdcIdle hdcState = iota
	hdcReceivingCommand
	hdcExecuting
	hdcHaveStatus
)

type hdcDrive struct {
	vhd      *VHD
	cylinder uint16
}

type HDC struct {
	drives [hdcDrives]hdcDrive

	state   hdcState
	command []uint8
	cmdLen  int

	statusByte uint8
	senseBlock [4]uint8

	dmaEnabled bool
	irqEnabled bool

	// Transfer state.
	xferDrive   int
	xferCyl     uint16
	xferHead    uint8
	xferSector  uint8
	xferCount   uint8 // sectors remaining
	xferBuf     []uint8
	xferPos     int
	xferWrite   bool
	statusDelay uint32

	// Initialize Drive Characteristics consumes 8 extra data bytes.
	initCharsLeft int
}

func NewHDC() *HDC {
	return &HDC{}
}

func (h *HDC) Ports() []uint16 {
	return []uint16{hdcPortData, hdcPortStatus, hdcPortConfig, hdcPortMask}
}

// AttachVHD connects a disk image to a drive.
func (h *HDC) AttachVHD(drive int, v *VHD) {
	h.drives[drive&1].vhd = v
}

// DetachVHD closes and removes a drive's image.
func (h *HDC) DetachVHD(drive int) error {
	d := &h.drives[drive&1]
	if d.vhd == nil {
		return nil
	}
	err := d.vhd.Close()
	d.vhd = nil
	return err
}

// Drive returns the attached image, or nil.
func (h *HDC) Drive(drive int) *VHD {
	return h.drives[drive&1].vhd
}

// ----------------------------------------------------------------------------
// Register interface
// ----------------------------------------------------------------------------

func (h *HDC) ReadU8(port uint16, _ uint32) uint8 {
	switch port {
	case hdcPortData:
		if h.state != hdcHaveStatus {
			return NoIOByte
		}
		h.state = hdcIdle
		return h.statusByte
	case hdcPortStatus:
		var s uint8
		switch h.state {
		case hdcReceivingCommand:
			s = hdcStatusReq | hdcStatusBusy
		case hdcExecuting:
			s = hdcStatusBusy | hdcStatusDRQ
		case hdcHaveStatus:
			s = hdcStatusReq | hdcStatusIn | hdcStatusBusy | hdcStatusInterrupt
		}
		return s
	case hdcPortConfig:
		// Drive-type switch block: both drives type 13 (306/4/17).
		return 0xFF
	}
	return NoIOByte
}

func (h *HDC) WriteU8(port uint16, data uint8, bus *SystemBus, _ uint32) {
	switch port {
	case hdcPortData:
		h.writeData(data, bus)
	case hdcPortStatus:
		// Any write resets the controller.
		h.reset()
	case hdcPortConfig:
		// Controller select pulse: ready to take a command block.
		h.state = hdcReceivingCommand
		h.command = h.command[:0]
	case hdcPortMask:
		h.dmaEnabled = data&0x01 != 0
		h.irqEnabled = data&0x02 != 0
	}
}

// Reset is the hardware reset line; attached images stay attached.
func (h *HDC) Reset() {
	h.reset()
	h.dmaEnabled = false
	h.irqEnabled = false
	for i := range h.drives {
		h.drives[i].cylinder = 0
	}
}

func (h *HDC) reset() {
	h.state = hdcIdle
	h.command = h.command[:0]
	h.xferBuf = nil
	h.statusDelay = 0
	h.initCharsLeft = 0
}

func (h *HDC) writeData(data uint8, bus *SystemBus) {
	if h.initCharsLeft > 0 {
		// Drive characteristics table bytes; accepted and dropped,
		// geometry always comes from the VHD footer.
		h.initCharsLeft--
		if h.initCharsLeft == 0 {
			h.complete(bus, 0)
		}
		return
	}
	if h.state != hdcReceivingCommand {
		return
	}
	h.command = append(h.command, data)
	if len(h.command) == 6 {
		h.execute(bus)
	}
}

// Command block layout: opcode, drive/head, cyl-high+sector, cyl-low,
// block count, control byte.
func (h *HDC) decodeBlock() (drive int, cyl uint16, head, sector, count uint8) {
	drive = int(h.command[1]>>5) & 1
	head = h.command[1] & 0x1F
	sector = h.command[2] & 0x3F
	cyl = uint16(h.command[2]&0xC0)<<2 | uint16(h.command[3])
	count = h.command[4]
	return
}

func (h *HDC) execute(bus *SystemBus) {
	op := h.command[0]
	drive, cyl, head, sector, count := h.decodeBlock()
	d := &h.drives[drive]

	switch op {
	case hdcCmdTestReady, hdcCmdCtlrDiag, hdcCmdRAMDiag, hdcCmdDriveDiag:
		if op == hdcCmdTestReady && d.vhd == nil {
			h.completeError(bus, drive, 0x04) // drive not ready
			return
		}
		h.complete(bus, uint8(drive)<<5)

	case hdcCmdRecalibrate:
		d.cylinder = 0
		h.complete(bus, uint8(drive)<<5)

	case hdcCmdSeek:
		d.cylinder = cyl
		h.complete(bus, uint8(drive)<<5)

	case hdcCmdSense:
		// The four sense bytes go out through the data port via DMA
		// on real hardware; the BIOS reads them programmatically, so
		// they are latched for the next status read instead.
		h.complete(bus, uint8(drive)<<5)

	case hdcCmdReadVerify:
		if d.vhd == nil {
			h.completeError(bus, drive, 0x04)
			return
		}
		h.complete(bus, uint8(drive)<<5)

	case hdcCmdInitChars:
		h.initCharsLeft = 8

	case hdcCmdFormatDrive, hdcCmdFormatTrack:
		if d.vhd == nil {
			h.completeError(bus, drive, 0x04)
			return
		}
		zero := make([]uint8, vhdSectorSize)
		start := uint16(0)
		end := d.vhd.Cylinders
		if op == hdcCmdFormatTrack {
			start, end = cyl, cyl+1
		}
		for c := start; c < end; c++ {
			for s := uint8(1); s <= d.vhd.SectorsPerTrack; s++ {
				if err := d.vhd.WriteSector(c, head, s, zero); err != nil {
					break
				}
			}
		}
		h.complete(bus, uint8(drive)<<5)

	case hdcCmdRead, hdcCmdWrite:
		if d.vhd == nil {
			h.completeError(bus, drive, 0x04)
			return
		}
		h.xferDrive = drive
		h.xferCyl = cyl
		h.xferHead = head
		h.xferSector = sector + 1 // command blocks use 0-based sectors
		h.xferCount = count
		h.xferWrite = op == hdcCmdWrite
		h.xferPos = 0
		h.state = hdcExecuting
		if h.xferWrite {
			h.xferBuf = make([]uint8, vhdSectorSize)
		} else if !h.loadSector(bus) {
			return
		}
		if dmac := bus.DMAC(); dmac != nil && h.dmaEnabled {
			dmac.AttachDevice(hdcDmaChannel, h)
			dmac.RequestService(hdcDmaChannel)
		}

	case hdcCmdReadECC:
		h.complete(bus, uint8(drive)<<5)

	default:
		log.Printf("HDC: unhandled command %02X", op)
		h.completeError(bus, drive, 0x20) // invalid command
	}
}

func (h *HDC) loadSector(bus *SystemBus) bool {
	d := &h.drives[h.xferDrive]
	buf, err := d.vhd.ReadSector(h.xferCyl, h.xferHead, h.xferSector)
	if err != nil {
		log.Printf("HDC: %v", err)
		h.completeError(bus, h.xferDrive, 0x15) // seek error
		return false
	}
	h.xferBuf = buf
	return true
}

// advanceSector steps CHS order: sector, then head, then cylinder.
func (h *HDC) advanceSector() {
	d := &h.drives[h.xferDrive]
	h.xferSector++
	if h.xferSector > d.vhd.SectorsPerTrack {
		h.xferSector = 1
		h.xferHead++
		if h.xferHead >= d.vhd.Heads {
			h.xferHead = 0
			h.xferCyl++
		}
	}
	h.xferPos = 0
}

// complete latches a status byte and schedules the IRQ.
func (h *HDC) complete(bus *SystemBus, status uint8) {
	h.statusByte = status
	h.state = hdcHaveStatus
	if h.irqEnabled && bus != nil {
		if pic := bus.PIC(); pic != nil {
			pic.PulseInterrupt(hdcIRQ)
		}
	}
}

func (h *HDC) completeError(bus *SystemBus, drive int, senseCode uint8) {
	h.senseBlock[0] = senseCode
	h.complete(bus, uint8(drive)<<5|0x02) // error bit
}

// ----------------------------------------------------------------------------
// DmaDevice
// ----------------------------------------------------------------------------

func (h *HDC) DmaReadU8() uint8 {
	if h.xferBuf == nil || h.xferPos >= len(h.xferBuf) {
		return NoIOByte
	}
	b := h.xferBuf[h.xferPos]
	h.xferPos++
	if h.xferPos == vhdSectorSize {
		if h.xferCount > 1 {
			h.xferCount--
			h.advanceSector()
			h.loadSector(nil)
		} else {
			h.xferBuf = nil
		}
	}
	return b
}

func (h *HDC) DmaWriteU8(data uint8) {
	if h.xferBuf == nil || h.xferPos >= len(h.xferBuf) {
		return
	}
	h.xferBuf[h.xferPos] = data
	h.xferPos++
	if h.xferPos == vhdSectorSize {
		d := &h.drives[h.xferDrive]
		if err := d.vhd.WriteSector(h.xferCyl, h.xferHead, h.xferSector, h.xferBuf); err != nil {
			log.Printf("HDC: %v", err)
		}
		if h.xferCount > 1 {
			h.xferCount--
			h.advanceSector()
			h.xferBuf = make([]uint8, vhdSectorSize)
		} else {
			h.xferBuf = nil
		}
	}
}

func (h *HDC) DmaComplete() {
	h.statusDelay = 200
}

// Run delivers the deferred transfer-completion status.
func (h *HDC) Run(sysTicks uint32, bus *SystemBus) {
	if h.statusDelay == 0 {
		return
	}
	if sysTicks < h.statusDelay {
		h.statusDelay -= sysTicks
		return
	}
	h.statusDelay = 0
	if h.state == hdcExecuting {
		h.complete(bus, uint8(h.xferDrive)<<5)
	}
}
