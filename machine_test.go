package main

import "testing"

func newTestMachine(t *testing.T, cfg MachineConfig) *Machine {
	t.Helper()
	m, err := NewMachine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestMachineDefaultWiring(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())

	bus := m.Bus()
	if bus.PIC() == nil || bus.PIT() == nil || bus.DMAC() == nil ||
		bus.PPI() == nil || bus.Keyboard() == nil ||
		bus.FDC() == nil || bus.HDC() == nil {
		t.Fatal("chipset handle missing from the bus")
	}
	if m.PrimaryVideo() == nil || m.PrimaryVideo().DisplayType() != VideoCGA {
		t.Error("default machine should carry a CGA")
	}
	if bus.PrimaryVideoCard() != m.PrimaryVideo() {
		t.Error("bus and machine disagree on the primary card")
	}

	// Every chipset port answers something at construction.
	for _, port := range []uint16{0x20, 0x40, 0x60, 0x3D4} {
		bus.IoReadU8(port, 0)
	}
}

func TestMachineVideoSelection(t *testing.T) {
	for _, tc := range []struct {
		video VideoType
	}{
		{VideoMDA}, {VideoEGA}, {VideoVGA},
	} {
		cfg := DefaultConfig()
		cfg.Video = tc.video
		m := newTestMachine(t, cfg)
		if got := m.PrimaryVideo().DisplayType(); got != tc.video {
			t.Errorf("video = %v, want %v", got, tc.video)
		}
	}
}

func TestMachineLoadProgramAndStep(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())
	// mov ax, 1234h; hlt
	if err := m.LoadProgram([]uint8{0xB8, 0x34, 0x12, 0xF4}, 0x0100, 0x0000); err != nil {
		t.Fatal(err)
	}
	if m.CPU().CS != 0x0100 || m.CPU().IP != 0 {
		t.Fatalf("CS:IP = %04X:%04X after load", m.CPU().CS, m.CPU().IP)
	}

	if _, res := m.Step(); res != StepOk {
		t.Fatalf("first step = %v", res)
	}
	if m.CPU().AX != 0x1234 {
		t.Errorf("AX = %04X", m.CPU().AX)
	}
	if _, res := m.Step(); res != StepHaltEntered {
		t.Errorf("second step should enter halt")
	}
}

func TestMachineRunFrameProducesRetrace(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())
	// Spin in place.
	if err := m.LoadProgram([]uint8{0xEB, 0xFE}, 0x0100, 0x0000); err != nil {
		t.Fatal(err)
	}

	before := m.Cycles()
	m.RunFrame()
	m.RunFrame()
	if m.Cycles() == before {
		t.Fatal("no cycles executed")
	}
	// Two 60 Hz quanta cover at least one full CGA field.
	if m.Frames() == 0 {
		t.Error("no vertical retrace during two frame quanta")
	}
	if m.Instructions() == 0 {
		t.Error("instruction counter never moved")
	}
}

func TestMachineBreakpointStopsRun(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())
	// inc ax; jmp back
	if err := m.LoadProgram([]uint8{0x40, 0xEB, 0xFD}, 0x0100, 0x0000); err != nil {
		t.Fatal(err)
	}
	m.CPU().SetBreakpoints([]Breakpoint{
		{Kind: BpExecute, Segment: 0x0100, Offset: 0x0001},
	})

	m.Exec().SetState(ExecRunning)
	m.RunFrame()
	if m.Exec().State() != ExecBreakpointHit {
		t.Fatalf("exec state = %v, want breakpoint hit", m.Exec().State())
	}
	if m.CPU().IP != 0x0001 {
		t.Errorf("IP = %04X at stop", m.CPU().IP)
	}
}

func TestMachineKeyboardPathToPIC(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())
	if err := m.LoadProgram([]uint8{0xEB, 0xFE}, 0x0100, 0x0000); err != nil {
		t.Fatal(err)
	}

	m.KeyPress(0x1E) // 'A' make code
	m.RunCycles(500)

	if m.Bus().PIC().IRR()&0x02 == 0 {
		t.Error("IRQ1 not latched after key press")
	}
	if m.Bus().Keyboard().Latch() != 0x1E {
		t.Errorf("scancode latch = %02X", m.Bus().Keyboard().Latch())
	}
	// PPI port A reads the latch while PB7 is low.
	if v := m.Bus().IoReadU8(0x60, 0); v != 0x1E {
		t.Errorf("port 60 = %02X", v)
	}
}

func TestMachineResetRestoresPowerOnState(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())
	if err := m.LoadProgram([]uint8{0x40, 0xF4}, 0x0100, 0x0000); err != nil {
		t.Fatal(err)
	}
	m.Step()
	m.Step()

	m.Reset()
	if m.CPU().CS != 0xFFFF || m.CPU().IP != 0 {
		t.Errorf("CS:IP = %04X:%04X after reset", m.CPU().CS, m.CPU().IP)
	}
	if m.CPU().Halted() {
		t.Error("still halted after reset")
	}
}

func TestMachineConfigClamping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RamKB = 4096
	cfg.SpeedFactor = -1
	m := newTestMachine(t, cfg)
	if m.Cfg.RamKB != 640 {
		t.Errorf("RamKB = %d, want clamped to 640", m.Cfg.RamKB)
	}
	if m.Cfg.SpeedFactor != 1.0 {
		t.Errorf("SpeedFactor = %v", m.Cfg.SpeedFactor)
	}
}

func TestBuildSwitches(t *testing.T) {
	cfg := DefaultConfig() // one floppy, CGA
	if sw := buildSwitches(cfg); sw != 0x2D {
		t.Errorf("switches = %02X, want 2D", sw)
	}
	cfg.Video = VideoMDA
	cfg.FloppyDrives = 2
	if sw := buildSwitches(cfg); sw != 0x7D {
		t.Errorf("switches = %02X, want 7D", sw)
	}
	cfg.Video = VideoVGA
	cfg.FloppyDrives = 0
	if sw := buildSwitches(cfg); sw != 0x0C {
		t.Errorf("switches = %02X, want 0C", sw)
	}
}

func TestMachineClockMetadata(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())
	if got := m.CpuFactor(); got != 1.0 {
		t.Errorf("factor = %v on a stock board", got)
	}
	if got := m.CpuMhz(); got < 4.77 || got > 4.78 {
		t.Errorf("clock = %v MHz, want 4.77", got)
	}

	cfg := DefaultConfig()
	cfg.SpeedFactor = 2.0
	turbo := newTestMachine(t, cfg)
	if got := turbo.CpuFactor(); got != 2.0 {
		t.Errorf("turbo factor = %v", got)
	}
	if got := turbo.CpuMhz(); got < 9.54 || got > 9.55 {
		t.Errorf("turbo clock = %v MHz", got)
	}
}
