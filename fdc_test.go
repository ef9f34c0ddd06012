package main

import "testing"

type fdcRig struct {
	bus  *SystemBus
	pic  *PIC
	dmac *DMAC
	fdc  *FDC
	disk *FloppyDisk
}

func newFDCRig(t *testing.T) *fdcRig {
	t.Helper()
	bus := NewSystemBus()
	r := &fdcRig{
		bus:  bus,
		pic:  NewPIC(),
		dmac: NewDMAC(),
		fdc:  NewFDC(),
	}
	bus.pic = r.pic
	bus.dmac = r.dmac
	bus.fdc = r.fdc

	img := make([]uint8, 368640)
	for i := range img {
		img[i] = uint8(i) ^ uint8(i>>8)
	}
	disk, err := NewFloppyDisk(img)
	if err != nil {
		t.Fatal(err)
	}
	r.disk = disk
	r.fdc.MountDisk(0, disk)

	// DOR: leave reset, enable DMA, motor A on, drive 0.
	r.fdc.WriteU8(fdcPortDOR, 0x1C, bus, 0)
	// Drain the reset-complete interrupt the BIOS would sense.
	r.fdc.WriteU8(fdcPortData, fdcCmdSenseInterrupt, bus, 0)
	for len(r.fdc.result) > 0 {
		r.fdc.ReadU8(fdcPortData, 0)
	}
	r.pic.Reset()
	return r
}

func (r *fdcRig) command(bytes ...uint8) {
	for _, b := range bytes {
		r.fdc.WriteU8(fdcPortData, b, r.bus, 0)
	}
}

func (r *fdcRig) results() []uint8 {
	var out []uint8
	for r.fdc.ReadU8(fdcPortMSR, 0)&fdcMSRDirection != 0 {
		out = append(out, r.fdc.ReadU8(fdcPortData, 0))
	}
	return out
}

func (r *fdcRig) runDMA() {
	for r.dmac.HoldRequest() {
		r.bus.ServiceDMA()
	}
	r.fdc.Run(1000, r.bus)
}

func TestFDCReadSectorsOverDMA(t *testing.T) {
	r := newFDCRig(t)

	// Two sectors into RAM at 02000.
	dmaProgram(r.dmac, fdcDmaChannel, 0x84, 0x02000, 2*floppySectorSize-1)
	r.command(0x46, 0x00, 0, 0, 1, 2, 2, 0x1B, 0xFF) // read, CHS 0/0/1, EOT 2
	r.runDMA()

	want := r.disk.ReadSector(0, 0, 1)
	for i, b := range want {
		if got := r.bus.PeekU8(0x02000 + uint32(i)); got != b {
			t.Fatalf("sector 1 byte %d = %02X, want %02X", i, got, b)
		}
	}
	want = r.disk.ReadSector(0, 0, 2)
	for i, b := range want {
		if got := r.bus.PeekU8(0x02200 + uint32(i)); got != b {
			t.Fatalf("sector 2 byte %d = %02X, want %02X", i, got, b)
		}
	}

	if r.pic.IRR()&(1<<fdcIRQ) == 0 {
		t.Error("IRQ6 not raised on completion")
	}
	res := r.results()
	if len(res) != 7 {
		t.Fatalf("result phase returned %d bytes", len(res))
	}
	if res[0]&0xC0 != fdcST0NormalTermination {
		t.Errorf("ST0 = %02X, want normal termination", res[0])
	}
}

func TestFDCWriteSectorOverDMA(t *testing.T) {
	r := newFDCRig(t)

	payload := make([]uint8, floppySectorSize)
	for i := range payload {
		payload[i] = uint8(255 - i)
	}
	if err := r.bus.LoadProgram(payload, 0x03000); err != nil {
		t.Fatal(err)
	}
	dmaProgram(r.dmac, fdcDmaChannel, 0x88, 0x03000, floppySectorSize-1)
	r.command(0x45, 0x00, 5, 0, 3, 2, 3, 0x1B, 0xFF) // write CHS 5/0/3
	r.runDMA()

	got := r.disk.ReadSector(5, 0, 3)
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("disk byte %d = %02X, want %02X", i, got[i], payload[i])
		}
	}
	res := r.results()
	if res[0]&0xC0 != fdcST0NormalTermination {
		t.Errorf("ST0 = %02X", res[0])
	}
}

func TestFDCWriteProtectedAbnormalTermination(t *testing.T) {
	r := newFDCRig(t)
	r.disk.SetWriteProtect(true)
	dmaProgram(r.dmac, fdcDmaChannel, 0x88, 0x03000, floppySectorSize-1)
	r.command(0x45, 0x00, 0, 0, 1, 2, 1, 0x1B, 0xFF)

	res := r.results()
	if len(res) != 7 || res[0]&0xC0 != fdcST0AbnormalTermination {
		t.Errorf("result %v, want abnormal termination", res)
	}
}

func TestFDCSeekAndSenseInterrupt(t *testing.T) {
	r := newFDCRig(t)
	r.command(fdcCmdSeek, 0x00, 12)
	r.fdc.Run(5000, r.bus) // step time elapses

	if r.pic.IRR()&(1<<fdcIRQ) == 0 {
		t.Error("no IRQ6 after seek completion")
	}
	r.command(fdcCmdSenseInterrupt)
	res := r.results()
	if len(res) != 2 {
		t.Fatalf("sense interrupt returned %d bytes", len(res))
	}
	if res[0] != fdcST0SeekEnd {
		t.Errorf("ST0 = %02X, want seek end", res[0])
	}
	if res[1] != 12 {
		t.Errorf("PCN = %d, want 12", res[1])
	}
}

func TestFDCSenseDriveStatus(t *testing.T) {
	r := newFDCRig(t)
	r.disk.SetWriteProtect(true)
	r.command(fdcCmdSenseDrive, 0x00)
	res := r.results()
	if len(res) != 1 {
		t.Fatalf("sense drive returned %d bytes", len(res))
	}
	// Ready, track 0, two-sided, write protected.
	if res[0] != 0x20|0x10|0x08|0x40 {
		t.Errorf("ST3 = %02X", res[0])
	}
}

func TestFDCMissingDiskAborts(t *testing.T) {
	r := newFDCRig(t)
	r.fdc.MountDisk(1, nil)
	r.command(0x46, 0x01, 0, 0, 1, 2, 1, 0x1B, 0xFF) // drive 1: empty
	res := r.results()
	if len(res) != 7 || res[0]&0xC0 != fdcST0AbnormalTermination {
		t.Errorf("result %v, want abnormal termination", res)
	}
}

func TestFDCInvalidCommand(t *testing.T) {
	r := newFDCRig(t)
	r.command(0x1F)
	res := r.results()
	if len(res) != 1 || res[0] != fdcST0InvalidCommand {
		t.Errorf("result %v, want invalid-command ST0", res)
	}
}

func TestFDCReadSectorPIO(t *testing.T) {
	r := newFDCRig(t)

	// Specify with ND set: execution data bypasses the DMAC.
	r.command(fdcCmdSpecify, 0xDF, 0x03)
	r.command(0x46, 0x00, 0, 0, 1, 2, 1, 0x1B, 0xFF) // read, CHS 0/0/1, EOT 1

	msr := r.fdc.ReadU8(fdcPortMSR, 0)
	if msr&fdcMSRNonDMA == 0 {
		t.Fatalf("MSR = %02X, non-DMA bit clear during transfer", msr)
	}
	if msr&fdcMSRDirection == 0 {
		t.Fatalf("MSR = %02X, direction bit clear on a read", msr)
	}
	if r.dmac.HoldRequest() {
		t.Error("DMA service requested in non-DMA mode")
	}

	want := r.disk.ReadSector(0, 0, 1)
	for i := range want {
		if got := r.fdc.ReadU8(fdcPortData, 0); got != want[i] {
			t.Fatalf("byte %d = %02X, want %02X", i, got, want[i])
		}
	}

	r.fdc.Run(1000, r.bus)
	if r.pic.IRR()&(1<<fdcIRQ) == 0 {
		t.Error("IRQ6 not raised on completion")
	}
	res := r.results()
	if len(res) != 7 {
		t.Fatalf("result phase returned %d bytes", len(res))
	}
	if res[0]&0xC0 != fdcST0NormalTermination {
		t.Errorf("ST0 = %02X, want normal termination", res[0])
	}
}

func TestFDCWriteSectorPIO(t *testing.T) {
	r := newFDCRig(t)

	r.command(fdcCmdSpecify, 0xDF, 0x03)
	r.command(0x45, 0x00, 3, 0, 2, 2, 2, 0x1B, 0xFF) // write, CHS 3/0/2, EOT 2

	msr := r.fdc.ReadU8(fdcPortMSR, 0)
	if msr&fdcMSRNonDMA == 0 || msr&fdcMSRDirection != 0 {
		t.Fatalf("MSR = %02X during non-DMA write", msr)
	}

	payload := make([]uint8, floppySectorSize)
	for i := range payload {
		payload[i] = uint8(i) ^ 0x5A
	}
	for _, b := range payload {
		r.fdc.WriteU8(fdcPortData, b, r.bus, 0)
	}

	got := r.disk.ReadSector(3, 0, 2)
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("disk byte %d = %02X, want %02X", i, got[i], payload[i])
		}
	}
	if r.pic.IRR()&(1<<fdcIRQ) == 0 {
		t.Error("IRQ6 not raised on completion")
	}
	res := r.results()
	if len(res) != 7 {
		t.Fatalf("result phase returned %d bytes", len(res))
	}
	if res[0]&0xC0 != fdcST0NormalTermination {
		t.Errorf("ST0 = %02X, want normal termination", res[0])
	}
}
