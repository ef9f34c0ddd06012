package main

import "testing"

func TestA0NmiMask(t *testing.T) {
	a := NewA0Register()
	if a.NMIEnabled() {
		t.Error("NMI enabled at power-on")
	}
	a.WriteU8(a0Port, 0x80, nil, 0)
	if !a.NMIEnabled() {
		t.Error("bit 7 write did not enable NMI")
	}
	a.WriteU8(a0Port, 0x00, nil, 0)
	if a.NMIEnabled() {
		t.Error("clearing bit 7 did not mask NMI")
	}
	// Write-only on the XT.
	if v := a.ReadU8(a0Port, 0); v != NoIOByte {
		t.Errorf("read = %02X, want open bus", v)
	}
}
