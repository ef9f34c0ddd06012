package main

import "testing"

type rig808x struct {
	bus *SystemBus
	cpu *CPU
}

func newRig808x(t CpuType) *rig808x {
	bus := NewSystemBus()
	return &rig808x{bus: bus, cpu: NewCPU(t, bus)}
}

// boot loads code at 0000:0100 with the stack at 0000:FF00 and vectors
// execution to the first byte.
func (r *rig808x) boot(code ...uint8) {
	if err := r.bus.LoadProgram(code, 0x100); err != nil {
		panic(err)
	}
	r.cpu.SS = 0
	r.cpu.SP = 0xFF00
	r.cpu.SetCSIP(0x0000, 0x0100)
}

// setVector installs an IVT entry.
func (r *rig808x) setVector(vector uint8, seg, ofs uint16) {
	base := uint32(vector) * 4
	r.bus.WriteU16(base, ofs, 0)
	r.bus.WriteU16(base+2, seg, 0)
}

func (r *rig808x) step() StepResult {
	_, res := r.cpu.Step()
	return res
}

func requireEqualU16(t *testing.T, name string, got, want uint16) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %04X, want %04X", name, got, want)
	}
}

func requireEqualU8(t *testing.T, name string, got, want uint8) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %02X, want %02X", name, got, want)
	}
}

func requireFlag(t *testing.T, cpu *CPU, flag uint16, name string, want bool) {
	t.Helper()
	if cpu.getFlag(flag) != want {
		t.Errorf("flag %s = %v, want %v", name, !want, want)
	}
}
