package main

import "testing"

func TestResetState(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	cpu := r.cpu

	cpu.AX, cpu.BX, cpu.CX, cpu.DX = 0x1111, 0x2222, 0x3333, 0x4444
	cpu.SP, cpu.BP, cpu.SI, cpu.DI = 0x5555, 0x6666, 0x7777, 0x8888
	cpu.DS, cpu.ES, cpu.SS = 0x9999, 0xAAAA, 0xBBBB
	cpu.Flags = 0xFFFF
	cpu.halted = true

	cpu.Reset()

	requireEqualU16(t, "CS", cpu.CS, 0xFFFF)
	requireEqualU16(t, "IP", cpu.IP, 0x0000)
	requireEqualU16(t, "PC", cpu.PC, 0x0000)
	requireEqualU16(t, "AX", cpu.AX, 0)
	requireEqualU16(t, "SP", cpu.SP, 0)
	requireEqualU16(t, "DS", cpu.DS, 0)
	requireEqualU16(t, "SS", cpu.SS, 0)
	requireEqualU16(t, "Flags", cpu.Flags, flagsFixedOn8088)
	if cpu.Halted() {
		t.Error("halted after reset")
	}
	if cpu.Queue().Len() != 0 {
		t.Errorf("queue holds %d bytes after reset", cpu.Queue().Len())
	}
}

func TestResetStateNec(t *testing.T) {
	r := newRig808x(CpuNecV30)
	requireFlag(t, r.cpu, FlagMD, "MD", true)
}

func TestQueueDepthPerModel(t *testing.T) {
	cases := []struct {
		cpuType CpuType
		depth   int
	}{
		{CpuIntel8088, 4},
		{CpuIntel8086, 6},
		{CpuNecV20, 4},
		{CpuNecV30, 6},
	}
	for _, tc := range cases {
		r := newRig808x(tc.cpuType)
		if got := r.cpu.Queue().Size(); got != tc.depth {
			t.Errorf("%v queue depth = %d, want %d", tc.cpuType, got, tc.depth)
		}
	}
}

func TestMovImmediateRegister(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	r.boot(0xB8, 0x34, 0x12) // mov ax, 1234h
	r.step()
	requireEqualU16(t, "AX", r.cpu.AX, 0x1234)
	requireEqualU16(t, "IP", r.cpu.IP, 0x0103)
}

func TestAddOverflowFlags(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	r.boot(
		0xB8, 0xFF, 0x7F, // mov ax, 7FFFh
		0x05, 0x01, 0x00, // add ax, 1
	)
	r.step()
	r.step()
	requireEqualU16(t, "AX", r.cpu.AX, 0x8000)
	requireFlag(t, r.cpu, FlagOF, "OF", true)
	requireFlag(t, r.cpu, FlagSF, "SF", true)
	requireFlag(t, r.cpu, FlagZF, "ZF", false)
	requireFlag(t, r.cpu, FlagCF, "CF", false)
	requireFlag(t, r.cpu, FlagAF, "AF", true)
}

func TestPushPopRoundTrip(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	r.boot(
		0xB8, 0x34, 0x12, // mov ax, 1234h
		0x50, // push ax
		0x5B, // pop bx
	)
	r.step()
	r.step()
	requireEqualU16(t, "SP after push", r.cpu.SP, 0xFEFE)
	requireEqualU16(t, "stacked word", r.bus.PeekU16(0xFEFE), 0x1234)
	r.step()
	requireEqualU16(t, "BX", r.cpu.BX, 0x1234)
	requireEqualU16(t, "SP after pop", r.cpu.SP, 0xFF00)
}

// POPF cannot clear the reserved FLAGS bits; bits 1 and 12-15 read
// back as 1 regardless of what was popped.
func TestPopfReservedBits(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	r.boot(
		0x31, 0xC0, // xor ax, ax
		0x50, // push ax
		0x9D, // popf
		0x9C, // pushf
		0x5B, // pop bx
	)
	for i := 0; i < 5; i++ {
		r.step()
	}
	requireEqualU16(t, "flags image", r.cpu.BX, flagsFixedOn8088)
}

// A direct far jump costs the documented 15 cycles: operands come out
// of the prefetch stream and the queue flush itself is free.
func TestFarJumpTiming(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	r.boot(0xEA, 0x00, 0x80, 0x00, 0x20) // jmp 2000:8000
	cycles, res := r.cpu.Step()
	if res != StepOk {
		t.Fatalf("step result %v", res)
	}
	if cycles != 15 {
		t.Errorf("far jump took %d cycles, want 15", cycles)
	}
	requireEqualU16(t, "CS", r.cpu.CS, 0x2000)
	requireEqualU16(t, "IP", r.cpu.IP, 0x8000)
	if r.cpu.Queue().Len() != 0 {
		t.Errorf("queue not flushed: %d bytes", r.cpu.Queue().Len())
	}
	requireEqualU16(t, "PC realigned", r.cpu.PC, 0x8000)
}

func TestInt3RoundTrip(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	r.setVector(3, 0x0000, 0x0200)
	r.bus.WriteU8(0x200, 0xCF, 0) // iret
	r.boot(0xCC, 0x90)            // int3; nop

	r.step()
	requireEqualU16(t, "handler CS", r.cpu.CS, 0x0000)
	requireEqualU16(t, "handler IP", r.cpu.IP, 0x0200)
	requireEqualU16(t, "SP in handler", r.cpu.SP, 0xFEFA)
	requireEqualU16(t, "return IP on stack", r.bus.PeekU16(0xFEFA), 0x0101)
	requireFlag(t, r.cpu, FlagIF, "IF", false)

	r.step() // iret
	requireEqualU16(t, "resumed IP", r.cpu.IP, 0x0101)
	requireEqualU16(t, "SP restored", r.cpu.SP, 0xFF00)
	requireEqualU16(t, "flags restored", r.cpu.Flags, flagsFixedOn8088)
}

// Setting TF through POPF does not trap the next instruction; the
// single-step interrupt first fires after the instruction that
// follows it.
func TestTrapDelayAfterPopf(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	r.setVector(1, 0x0000, 0x0300)
	r.boot(
		0xB8, 0x02, 0xF1, // mov ax, F102h (TF set)
		0x50, // push ax
		0x9D, // popf
		0x90, // nop
		0x90, // nop
	)
	r.step() // mov
	r.step() // push
	r.step() // popf arms TF
	requireEqualU16(t, "IP after popf", r.cpu.IP, 0x0105)
	r.step() // first nop runs untrapped
	requireEqualU16(t, "IP after shadowed nop", r.cpu.IP, 0x0106)
	r.step() // second nop traps
	requireEqualU16(t, "trap CS", r.cpu.CS, 0x0000)
	requireEqualU16(t, "trap IP", r.cpu.IP, 0x0300)
	requireEqualU16(t, "pushed IP", r.bus.PeekU16(linearAddress(r.cpu.SS, r.cpu.SP)), 0x0107)
	requireFlag(t, r.cpu, FlagTF, "TF", false)
}

// STI opens the interrupt window only after the following instruction
// completes, so STI/RET sequences return before the IRQ is taken.
func TestStiRecognitionDelay(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	pic := NewPIC()
	r.bus.pic = pic
	r.bus.InstallClocked(pic)
	r.setVector(8, 0x0000, 0x0400)
	r.boot(
		0xFB, // sti
		0x90, // nop
		0x90, // nop
	)
	pic.RequestInterrupt(0)

	r.step() // sti: IF set, recognition deferred
	requireEqualU16(t, "IP after sti", r.cpu.IP, 0x0101)
	r.step() // nop completes, then the IRQ is acknowledged
	requireEqualU16(t, "handler CS", r.cpu.CS, 0x0000)
	requireEqualU16(t, "handler IP", r.cpu.IP, 0x0400)
	requireEqualU16(t, "pushed IP", r.bus.PeekU16(linearAddress(r.cpu.SS, r.cpu.SP)), 0x0102)
	requireEqualU8(t, "ISR", pic.ISR(), 0x01)
}

// A segment register load shadows the next instruction from all
// interrupts, NMI included, so SS:SP pairs load atomically.
func TestSegmentLoadInterruptShadow(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	r.setVector(2, 0x0000, 0x0500)
	r.boot(
		0x8E, 0xD0, // mov ss, ax
		0xBC, 0x00, 0xFF, // mov sp, FF00h
		0x90, // nop
	)
	r.cpu.SetNMI(true)

	r.step() // mov ss shadows
	requireEqualU16(t, "IP after mov ss", r.cpu.IP, 0x0102)
	r.step() // mov sp completes, then NMI fires
	requireEqualU16(t, "NMI CS", r.cpu.CS, 0x0000)
	requireEqualU16(t, "NMI IP", r.cpu.IP, 0x0500)
	requireEqualU16(t, "pushed IP", r.bus.PeekU16(linearAddress(r.cpu.SS, r.cpu.SP)), 0x0105)
}

func TestHaltAndNmiWake(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	r.setVector(2, 0x0000, 0x0500)
	r.boot(0xF4, 0x90) // hlt; nop

	if res := r.step(); res != StepHaltEntered {
		t.Fatalf("step result %v, want StepHaltEntered", res)
	}
	if !r.cpu.Halted() {
		t.Fatal("not halted")
	}

	cycles, res := r.cpu.Step()
	if res != StepOk || cycles != 1 {
		t.Errorf("parked step: %d cycles result %v, want 1 StepOk", cycles, res)
	}
	if !r.cpu.Halted() {
		t.Error("halt lifted with no interrupt pending")
	}

	r.cpu.SetNMI(true)
	r.step()
	if r.cpu.Halted() {
		t.Error("still halted after NMI")
	}
	requireEqualU16(t, "NMI IP", r.cpu.IP, 0x0500)
}

// HLT with an enabled interrupt already pending falls straight
// through into the handler; the CPU never stays parked with the
// request latched behind the ISR.
func TestHltServicesPendingInterrupt(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	pic := NewPIC()
	r.bus.pic = pic
	r.bus.InstallClocked(pic)
	r.setVector(9, 0x0000, 0x0400)
	r.bus.WriteU8(0x400, 0xCF, 0) // iret
	r.boot(
		0xFB, // sti
		0xF4, // hlt
		0x90, // nop
	)
	pic.RequestInterrupt(1)

	r.step() // sti
	r.step() // hlt acknowledges at its own boundary
	if r.cpu.Halted() {
		t.Fatal("parked with the IRQ pending")
	}
	requireEqualU16(t, "handler IP", r.cpu.IP, 0x0400)
	requireEqualU16(t, "pushed IP",
		r.bus.PeekU16(linearAddress(r.cpu.SS, r.cpu.SP)), 0x0102)
	requireEqualU8(t, "ISR", pic.ISR(), 0x02)

	r.step() // iret resumes past hlt
	requireEqualU16(t, "resumed IP", r.cpu.IP, 0x0102)
}

// Waking a parked CPU services the interrupt before anything else
// runs: the return address points just past HLT and the following
// instruction only executes after the handler returns.
func TestHltWakeServicesInterruptFirst(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	pic := NewPIC()
	r.bus.pic = pic
	r.bus.InstallClocked(pic)
	r.setVector(9, 0x0000, 0x0400)
	r.bus.WriteU8(0x400, 0xCF, 0) // iret
	r.boot(
		0xFB,             // sti
		0xF4,             // hlt
		0xBB, 0xEF, 0xBE, // mov bx, BEEFh
	)

	r.step() // sti
	if res := r.step(); res != StepHaltEntered {
		t.Fatalf("step result %v, want StepHaltEntered", res)
	}
	r.step() // idle while parked

	pic.RequestInterrupt(1)
	woke := false
	for i := 0; i < 8 && !woke; i++ {
		r.step()
		woke = !r.cpu.Halted()
	}
	if !woke {
		t.Fatal("never woke from halt")
	}
	requireEqualU16(t, "handler IP", r.cpu.IP, 0x0400)
	requireEqualU16(t, "pushed IP",
		r.bus.PeekU16(linearAddress(r.cpu.SS, r.cpu.SP)), 0x0102)
	if r.cpu.BX == 0xBEEF {
		t.Error("instruction after hlt ran before the handler")
	}

	r.step() // iret
	r.step() // mov bx now runs
	requireEqualU16(t, "BX after resume", r.cpu.BX, 0xBEEF)
}

// Divide faults push the address of the faulting instruction, not the
// one after it, matching hardware restart semantics.
func TestDivideErrorRestartSemantics(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	r.setVector(0, 0x0000, 0x0600)
	r.boot(
		0xB9, 0x00, 0x00, // mov cx, 0
		0xF6, 0xF1, // div cl
	)
	r.step()
	r.step()
	requireEqualU16(t, "fault CS", r.cpu.CS, 0x0000)
	requireEqualU16(t, "fault IP", r.cpu.IP, 0x0600)
	requireEqualU16(t, "pushed IP", r.bus.PeekU16(linearAddress(r.cpu.SS, r.cpu.SP)), 0x0103)
}

func TestQueueNeverOverfills(t *testing.T) {
	r := newRig808x(CpuIntel8086)
	code := make([]uint8, 64)
	for i := range code {
		code[i] = 0x90
	}
	r.boot(code...)
	for i := 0; i < 32; i++ {
		r.step()
		if n := r.cpu.Queue().Len(); n > r.cpu.Queue().Size() {
			t.Fatalf("queue holds %d bytes, depth %d", n, r.cpu.Queue().Size())
		}
	}
	requireEqualU16(t, "IP", r.cpu.IP, 0x0120)
}

func TestExecBreakpoint(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	r.boot(0x90, 0x90, 0x90)
	r.cpu.SetBreakpoints([]Breakpoint{
		{Kind: BpExecute, Segment: 0x0000, Offset: 0x0101},
	})
	if res := r.step(); res != StepOk {
		t.Fatalf("first step result %v", res)
	}
	cycles, res := r.cpu.Step()
	if res != StepBreakpointHit || cycles != 0 {
		t.Errorf("breakpoint step: %d cycles result %v", cycles, res)
	}
	requireEqualU16(t, "IP pinned", r.cpu.IP, 0x0101)
}

func TestConditionalBreakpoint(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	r.boot(
		0x40, // inc ax
		0xE9, 0xFC, 0xFF, // jmp -4 (back to inc)
	)
	cond, err := ParseCondition("AX >= 3")
	if err != nil {
		t.Fatal(err)
	}
	r.cpu.SetBreakpoints([]Breakpoint{
		{Kind: BpExecute, Segment: 0x0000, Offset: 0x0100, Condition: cond},
	})
	ec := NewExecutionControl()
	ec.SetState(ExecRunning)
	r.cpu.Run(100000, ec)
	if ec.State() != ExecBreakpointHit {
		t.Fatalf("exec state %v, want breakpoint hit", ec.State())
	}
	requireEqualU16(t, "AX at break", r.cpu.AX, 3)
}

func TestRunStopsAtTargetCycles(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	code := make([]uint8, 256)
	for i := range code {
		code[i] = 0x90
	}
	r.boot(code...)
	elapsed := r.cpu.Run(100, nil)
	if elapsed < 100 {
		t.Errorf("ran %d cycles, want at least 100", elapsed)
	}
	if elapsed > 200 {
		t.Errorf("overshot wildly: %d cycles", elapsed)
	}
}

func TestAddressWraparound(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	// FFFF:0010 wraps to linear 00000 on a 20-bit bus.
	r.bus.WriteU8(0x00000, 0x5A, 0)
	r.boot(0xA0, 0x10, 0x00) // mov al, [0010]
	r.cpu.DS = 0xFFFF
	r.step()
	requireEqualU8(t, "AL", r.cpu.AL(), 0x5A)
}

func TestCycleTraceRecordsBusAndQueue(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	r.cpu.EnableTrace(64)
	code := make([]uint8, 16)
	for i := range code {
		code[i] = 0x90
	}
	r.boot(code...)

	// Idle the clock so the prefetcher runs on its own.
	r.cpu.cycles(16)
	snap := r.cpu.Trace().Snapshot()
	if len(snap) == 0 {
		t.Fatal("empty trace")
	}
	// The boot-time flush shows on the first recorded T-state.
	if snap[0].QueueOp != QueueFlushed {
		t.Errorf("first queue op = %v, want flush", snap[0].QueueOp)
	}
	sawFetch := false
	for _, cs := range snap {
		if cs.Status == BusCode && cs.DataBus == 0x90 {
			sawFetch = true
		}
	}
	if !sawFetch {
		t.Error("no code fetch with its data byte recorded")
	}

	// Executing an instruction tags T-states with the issuing row and
	// reports the first-byte queue read.
	r.step()
	sawFirst, sawRow := false, false
	for _, cs := range r.cpu.Trace().Snapshot() {
		if cs.QueueOp == QueueFirst {
			sawFirst = true
		}
		if cs.McAddr == uint16(0x90)<<4 {
			sawRow = true
		}
	}
	if !sawFirst {
		t.Error("first-byte queue status never recorded")
	}
	if !sawRow {
		t.Error("no T-state tagged with the instruction row")
	}
}

func TestNecImulImmediate(t *testing.T) {
	r := newRig808x(CpuNecV20)
	r.boot(
		0xBB, 0x05, 0x00, // mov bx, 5
		0x6B, 0xC3, 0x10, // imul ax, bx, 10h
		0x69, 0xC8, 0x00, 0x10, // imul cx, ax, 1000h
	)
	r.step()
	r.step()
	requireEqualU16(t, "AX", r.cpu.AX, 0x0050)
	requireEqualU16(t, "IP", r.cpu.IP, 0x0106)
	requireFlag(t, r.cpu, FlagCF, "CF", false)

	r.step()
	// 0x50 * 0x1000 = 0x50000: truncated, overflow flagged.
	requireEqualU16(t, "CX", r.cpu.CX, 0x0000)
	requireEqualU16(t, "IP", r.cpu.IP, 0x010A)
	requireFlag(t, r.cpu, FlagCF, "CF", true)
	requireFlag(t, r.cpu, FlagOF, "OF", true)
}

func TestNecImulImmediateSignExtends(t *testing.T) {
	r := newRig808x(CpuNecV20)
	r.boot(
		0xB8, 0x03, 0x00, // mov ax, 3
		0x6B, 0xD0, 0xFE, // imul dx, ax, -2
	)
	r.step()
	r.step()
	requireEqualU16(t, "DX", r.cpu.DX, 0xFFFA)
	requireFlag(t, r.cpu, FlagCF, "CF", false)
}
