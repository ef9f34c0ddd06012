// cpu_808x.go - Intel 8088/8086 and NEC V20/V30 CPU core
//
// The CPU is the authoritative clock source for the whole machine:
// every elapsed T-state goes through cycle(), which advances the BIU
// prefetcher and fans out one tick to the bus. Peripherals therefore
// advance in lockstep with instruction execution.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"log"
	"sync/atomic"
)

// CpuType selects the CPU model. It controls the prefetch queue size,
// the FLAGS reserved-bit pattern and the availability of the NEC
// extended instruction set.
type CpuType int

const (
	CpuIntel8088 CpuType = iota
	CpuIntel8086
	CpuNecV20
	CpuNecV30
)

func (t CpuType) String() string {
	switch t {
	case CpuIntel8088:
		return "Intel 8088"
	case CpuIntel8086:
		return "Intel 8086"
	case CpuNecV20:
		return "NEC V20"
	case CpuNecV30:
		return "NEC V30"
	}
	return "unknown"
}

// queueSize returns the prefetch queue depth for the CPU model.
func (t CpuType) queueSize() int {
	if t == CpuIntel8086 || t == CpuNecV30 {
		return 6
	}
	return 4
}

// isNec reports whether the model implements the NEC extensions.
// wideBus reports a 16-bit data bus: code fetches move words.
func (t CpuType) wideBus() bool {
	return t == CpuIntel8086 || t == CpuNecV30
}

func (t CpuType) isNec() bool {
	return t == CpuNecV20 || t == CpuNecV30
}

// FLAGS bit positions.
const (
	FlagCF uint16 = 1 << 0
	FlagPF uint16 = 1 << 2
	FlagAF uint16 = 1 << 4
	FlagZF uint16 = 1 << 6
	FlagSF uint16 = 1 << 7
	FlagTF uint16 = 1 << 8
	FlagIF uint16 = 1 << 9
	FlagDF uint16 = 1 << 10
	FlagOF uint16 = 1 << 11
	FlagMD uint16 = 1 << 15 // NEC only: native (1) vs 8080 emulation (0)
)

// Reserved FLAGS bits. On the 808x bits 1 and 12-15 always read as 1
// and bits 3 and 5 as 0; POPF and IRET force this pattern. On the NEC
// parts bit 15 is the mode flag, leaving bits 12-14 fixed high.
const (
	flagsDefined8088 uint16 = 0x0FD5
	flagsFixedOn8088 uint16 = 0xF002
	flagsFixedOnNec  uint16 = 0x7002
)

// Interrupt vectors raised internally.
const (
	vectorDivide    = 0
	vectorTrap      = 1
	vectorNMI       = 2
	vectorBreak     = 3
	vectorOverflow  = 4
	vectorBound     = 5 // NEC BOUND/CHKIND
	vectorUndefined = 6 // NEC undefined opcode trap
)

// ExecState is the run-control state shared with the frontend.
type ExecState int32

const (
	ExecRunning ExecState = iota
	ExecPaused
	ExecBreakpointHit
	ExecHalted
)

// ExecutionControl is the frontend's asynchronous run/pause handle.
// The CPU polls it at step boundaries only.
type ExecutionControl struct {
	state atomic.Int32
}

func NewExecutionControl() *ExecutionControl {
	return &ExecutionControl{}
}

func (ec *ExecutionControl) State() ExecState {
	return ExecState(ec.state.Load())
}

func (ec *ExecutionControl) SetState(s ExecState) {
	ec.state.Store(int32(s))
}

// StepResult signals an event raised by a single step.
type StepResult int

const (
	StepOk StepResult = iota
	StepBreakpointHit
	StepHaltEntered
	StepInvalidOpcode
)

// BreakpointKind discriminates Breakpoint variants.
type BreakpointKind int

const (
	BpStepOver BreakpointKind = iota
	BpExecute                 // CS:IP match
	BpExecuteFlat
	BpMemAccess // seg:ofs match
	BpMemAccessFlat
	BpInterrupt
	BpIoAccess
	BpStopwatchStart
	BpStopwatchStop
)

// Breakpoint is one installed breakpoint.
type Breakpoint struct {
	Kind      BreakpointKind
	Segment   uint16
	Offset    uint16
	Flat      uint32
	Vector    uint8
	Port      uint16
	Condition *BreakpointCondition
	HitCount  uint64
}

// CPU is the execution engine. Registers are exported for the
// debugger; everything else is internal state.
type CPU struct {
	Type CpuType

	// Register file
	AX, BX, CX, DX uint16
	SP, BP, SI, DI uint16
	CS, DS, ES, SS uint16
	IP             uint16
	Flags          uint16

	// PC is the BIU's next-fetch pointer, distinct from IP which
	// points at the next unread instruction byte.
	PC uint16

	bus   *SystemBus
	queue *InstructionQueue

	Cycles       uint64
	Instructions uint64

	halted         bool
	nmiLine        bool
	nmiLatch       bool
	inhibitCount   int // interrupt window inhibit after sreg writes
	trapEnableDly  int
	trapDisableDly int
	intDisableDly  int // STI takes effect after the next instruction

	fetchSuspended bool
	fetchTick      uint32
	fetchDelay     bool // queue logic holds the next fetch off the bus
	preloadNext    bool // first byte after a flush goes to the preload slot
	queueOp        QueueType // queue status pin value for the next trace record

	// Decode state for the instruction in flight.
	i Instruction

	// REP state preserved across interrupted string instructions.
	repActive bool

	// Segment override pending for the current instruction.
	segOverride SegmentRegister

	breakpoints   []Breakpoint
	bpHit         bool
	stepOverArm   bool
	stepOverAddr  uint32
	watchRunning  bool
	watchCycles   uint64
	watchStart    uint64
	invalidOpcode bool

	// NEC 8080 emulation mode.
	emu8080 bool

	trace *CycleTrace
}

// NewCPU wires a CPU of the given type to a bus and resets it.
func NewCPU(t CpuType, bus *SystemBus) *CPU {
	c := &CPU{
		Type:  t,
		bus:   bus,
		queue: NewInstructionQueue(t.queueSize()),
	}
	c.Reset()
	return c
}

// Bus returns the attached system bus.
func (c *CPU) Bus() *SystemBus {
	return c.bus
}

// Queue exposes the prefetch queue for tests and the debugger.
func (c *CPU) Queue() *InstructionQueue {
	return c.queue
}

// Reset places the CPU in its power-on state: CS:IP = FFFF:0000 so the
// first fetch hits the reset vector at the top of the address space.
func (c *CPU) Reset() {
	c.AX, c.BX, c.CX, c.DX = 0, 0, 0, 0
	c.SP, c.BP, c.SI, c.DI = 0, 0, 0, 0
	c.DS, c.ES, c.SS = 0, 0, 0
	c.CS = 0xFFFF
	c.IP = 0
	c.PC = 0
	c.Flags = c.reservedFlags()

	c.queue.SetSize(c.Type.queueSize())
	c.biuQueueFlush()
	c.halted = false
	c.nmiLine = false
	c.nmiLatch = false
	c.inhibitCount = 0
	c.trapEnableDly = 0
	c.trapDisableDly = 0
	c.intDisableDly = 0
	c.fetchSuspended = false
	c.fetchTick = 0
	c.segOverride = SegmentNone
	c.repActive = false
	c.emu8080 = false
	c.invalidOpcode = false
}

// SetCSIP vectors execution to seg:ofs, flushing the prefetch queue.
func (c *CPU) SetCSIP(seg, ofs uint16) {
	c.CS = seg
	c.IP = ofs
	c.biuQueueFlush()
}

// reservedFlags returns the fixed FLAGS pattern for the CPU model. The
// NEC parts power up in native mode with MD set.
func (c *CPU) reservedFlags() uint16 {
	if c.Type.isNec() {
		return flagsFixedOnNec | FlagMD
	}
	return flagsFixedOn8088
}

// normalizeFlags forces the reserved bits to the model pattern. MD is
// preserved on NEC parts since POPF cannot change it.
func (c *CPU) normalizeFlags(v uint16) uint16 {
	if c.Type.isNec() {
		md := c.Flags & FlagMD
		return (v & flagsDefined8088) | flagsFixedOnNec | md
	}
	return (v & flagsDefined8088) | flagsFixedOn8088
}

// ----------------------------------------------------------------------------
// Register half accessors
// ----------------------------------------------------------------------------

func (c *CPU) AL() uint8      { return uint8(c.AX) }
func (c *CPU) AH() uint8      { return uint8(c.AX >> 8) }
func (c *CPU) BL() uint8      { return uint8(c.BX) }
func (c *CPU) BH() uint8      { return uint8(c.BX >> 8) }
func (c *CPU) CL() uint8      { return uint8(c.CX) }
func (c *CPU) CH() uint8      { return uint8(c.CX >> 8) }
func (c *CPU) DL() uint8      { return uint8(c.DX) }
func (c *CPU) DH() uint8      { return uint8(c.DX >> 8) }
func (c *CPU) SetAL(v uint8)  { c.AX = c.AX&0xFF00 | uint16(v) }
func (c *CPU) SetAH(v uint8)  { c.AX = c.AX&0x00FF | uint16(v)<<8 }
func (c *CPU) SetBL(v uint8)  { c.BX = c.BX&0xFF00 | uint16(v) }
func (c *CPU) SetBH(v uint8)  { c.BX = c.BX&0x00FF | uint16(v)<<8 }
func (c *CPU) SetCL(v uint8)  { c.CX = c.CX&0xFF00 | uint16(v) }
func (c *CPU) SetCH(v uint8)  { c.CX = c.CX&0x00FF | uint16(v)<<8 }
func (c *CPU) SetDL(v uint8)  { c.DX = c.DX&0xFF00 | uint16(v) }
func (c *CPU) SetDH(v uint8)  { c.DX = c.DX&0x00FF | uint16(v)<<8 }

func (c *CPU) getFlag(f uint16) bool {
	return c.Flags&f != 0
}

func (c *CPU) setFlag(f uint16, on bool) {
	if on {
		c.Flags |= f
	} else {
		c.Flags &^= f
	}
}

// ----------------------------------------------------------------------------
// Interrupt lines
// ----------------------------------------------------------------------------

// SetNMI drives the NMI pin. The interrupt is latched on the rising
// edge and serviced at the next instruction boundary.
func (c *CPU) SetNMI(state bool) {
	if state && !c.nmiLine {
		c.nmiLatch = true
	}
	c.nmiLine = state
}

// Halted reports whether the CPU is parked in HLT.
func (c *CPU) Halted() bool {
	return c.halted
}

// ----------------------------------------------------------------------------
// Breakpoints
// ----------------------------------------------------------------------------

// SetBreakpoints replaces the installed breakpoint list.
func (c *CPU) SetBreakpoints(bps []Breakpoint) {
	c.breakpoints = bps
}

// ClearBreakpoints removes all breakpoints.
func (c *CPU) ClearBreakpoints() {
	c.breakpoints = nil
}

// StopwatchCycles returns cycles measured between the last stopwatch
// start/stop breakpoint pair.
func (c *CPU) StopwatchCycles() uint64 {
	return c.watchCycles
}

func (c *CPU) checkExecBreakpoints() bool {
	flat := linearAddress(c.CS, c.IP)
	hit := false
	for i := range c.breakpoints {
		bp := &c.breakpoints[i]
		switch bp.Kind {
		case BpExecute:
			if bp.Segment == c.CS && bp.Offset == c.IP {
				hit = c.conditionMet(bp)
			}
		case BpExecuteFlat:
			if bp.Flat == flat {
				hit = c.conditionMet(bp)
			}
		case BpStopwatchStart:
			if bp.Flat == flat && !c.watchRunning {
				c.watchRunning = true
				c.watchStart = c.Cycles
			}
		case BpStopwatchStop:
			if bp.Flat == flat && c.watchRunning {
				c.watchRunning = false
				c.watchCycles = c.Cycles - c.watchStart
			}
		}
	}
	if c.stepOverArm && flat == c.stepOverAddr {
		c.stepOverArm = false
		hit = true
	}
	return hit
}

func (c *CPU) conditionMet(bp *Breakpoint) bool {
	bp.HitCount++
	if bp.Condition == nil {
		return true
	}
	return evaluateCondition(bp.Condition, c, bp.HitCount)
}

func (c *CPU) checkMemBreakpoint(addr uint32) {
	for i := range c.breakpoints {
		bp := &c.breakpoints[i]
		switch bp.Kind {
		case BpMemAccess:
			if linearAddress(bp.Segment, bp.Offset) == addr && c.conditionMet(bp) {
				c.bpHit = true
			}
		case BpMemAccessFlat:
			if bp.Flat == addr && c.conditionMet(bp) {
				c.bpHit = true
			}
		}
	}
}

func (c *CPU) checkIoBreakpoint(port uint16) {
	for i := range c.breakpoints {
		bp := &c.breakpoints[i]
		if bp.Kind == BpIoAccess && bp.Port == port && c.conditionMet(bp) {
			c.bpHit = true
		}
	}
}

func (c *CPU) checkIntBreakpoint(vector uint8) {
	for i := range c.breakpoints {
		bp := &c.breakpoints[i]
		if bp.Kind == BpInterrupt && bp.Vector == vector && c.conditionMet(bp) {
			c.bpHit = true
		}
	}
}

// ----------------------------------------------------------------------------
// Step / Run
// ----------------------------------------------------------------------------

// Step executes one full instruction (prefix chain included) plus any
// pending interrupt acknowledge, and returns the elapsed cycle count
// and an optional event.
func (c *CPU) Step() (uint64, StepResult) {
	start := c.Cycles
	result := StepOk
	c.bpHit = false

	if c.halted {
		// HLT parks the CPU consuming idle cycles; peripherals
		// keep running underneath.
		c.cycle()
		if !c.wakeFromHalt() {
			c.serviceDMA()
			return c.Cycles - start, StepOk
		}
		// Wake goes straight to the acknowledge: the pushed
		// return address points just past HLT.
		c.interruptWindow(false, c.getFlag(FlagIF) && c.intDisableDly == 0)
		c.serviceDMA()
		if c.bpHit {
			result = StepBreakpointHit
		}
		return c.Cycles - start, result
	}

	if c.checkExecBreakpoints() {
		return 0, StepBreakpointHit
	}

	if c.emu8080 {
		c.step8080()
	} else {
		c.executeNext()
	}
	c.Instructions++

	if c.invalidOpcode {
		c.invalidOpcode = false
		result = StepInvalidOpcode
	}

	// Post-instruction bookkeeping: interrupt inhibit and the trap
	// flag's one-instruction latency.
	trapPending := false
	if c.getFlag(FlagTF) {
		if c.trapEnableDly > 0 {
			c.trapEnableDly--
		} else {
			trapPending = true
		}
	} else if c.trapDisableDly > 0 {
		// TF was just cleared; one more trap still fires.
		c.trapDisableDly--
		trapPending = true
	}

	inhibited := c.inhibitCount > 0
	if inhibited {
		c.inhibitCount--
	}

	intEnabled := c.getFlag(FlagIF) && c.intDisableDly == 0
	if c.intDisableDly > 0 {
		c.intDisableDly--
	}

	if !inhibited {
		c.interruptWindow(trapPending, intEnabled)
	}

	c.serviceDMA()

	if c.halted && result == StepOk {
		result = StepHaltEntered
	}
	if c.bpHit {
		result = StepBreakpointHit
	}
	return c.Cycles - start, result
}

// Run repeats Step until at least targetCycles have elapsed or the
// execution control transitions out of Running.
func (c *CPU) Run(targetCycles uint64, ec *ExecutionControl) uint64 {
	var elapsed uint64
	for elapsed < targetCycles {
		if ec != nil && ec.State() != ExecRunning {
			break
		}
		n, res := c.Step()
		elapsed += n
		if res == StepBreakpointHit && ec != nil {
			ec.SetState(ExecBreakpointHit)
			break
		}
		if n == 0 && res == StepBreakpointHit {
			break
		}
	}
	return elapsed
}

// wakeFromHalt reports whether a pending interrupt should lift HLT.
// interruptWindow services at most one pending interrupt, highest
// priority first: trap, NMI, INTR.
func (c *CPU) interruptWindow(trapPending, intEnabled bool) {
	switch {
	case trapPending:
		c.interrupt(vectorTrap, false)
	case c.nmiLatch:
		c.nmiLatch = false
		c.interrupt(vectorNMI, false)
	case intEnabled && c.bus.INTR():
		vector := c.bus.AcknowledgeInterrupt()
		c.cycles(cyclesINTA)
		c.checkIntBreakpoint(vector)
		c.interrupt(vector, false)
	}
}

func (c *CPU) wakeFromHalt() bool {
	if c.nmiLatch {
		return true
	}
	return c.getFlag(FlagIF) && c.bus.INTR()
}

// serviceDMA grants HLDA if the DMAC is asserting HRQ and burns the
// stolen bus cycles.
func (c *CPU) serviceDMA() {
	if c.bus.HoldRequested() {
		stolen := c.bus.ServiceDMA()
		for i := uint32(0); i < stolen; i++ {
			c.cycle()
		}
	}
}

// interrupt pushes FLAGS, CS and IP, clears IF and TF and loads the
// handler address from the IVT. restart leaves IP pointing at the
// faulting instruction (divide error semantics).
func (c *CPU) interrupt(vector uint8, _ bool) {
	c.halted = false
	c.pushU16(c.Flags)
	c.setFlag(FlagIF, false)
	c.setFlag(FlagTF, false)
	c.trapEnableDly = 0
	c.trapDisableDly = 0
	c.pushU16(c.CS)
	c.pushU16(c.IP)

	ivt := uint32(vector) * 4
	newIP, _ := c.bus.ReadU16(ivt, 0)
	newCS, _ := c.bus.ReadU16(ivt+2, 0)
	c.jumpFar(newCS, newIP)
	c.cycles(cyclesInterrupt)
}

// softwareInterrupt is the INT n / INT3 / INTO path. It shares the
// hardware frame layout.
func (c *CPU) softwareInterrupt(vector uint8) {
	c.checkIntBreakpoint(vector)
	c.interrupt(vector, false)
}

// divideError raises vector 0 with restart semantics: the pushed IP is
// the start of the faulting instruction, matching 808x behavior.
func (c *CPU) divideError(instStartIP uint16) {
	c.IP = instStartIP
	c.interrupt(vectorDivide, true)
}

// jumpFar loads CS:IP and flushes the prefetch queue.
func (c *CPU) jumpFar(seg, ofs uint16) {
	c.CS = seg
	c.IP = ofs
	c.biuQueueFlush()
}

// jumpNear loads IP and flushes the prefetch queue.
func (c *CPU) jumpNear(ofs uint16) {
	c.IP = ofs
	c.biuQueueFlush()
}

// relJump performs the RELJMP microcode subroutine: a relative branch
// with queue flush.
func (c *CPU) relJump(rel int16) {
	c.jumpNear(uint16(int32(c.IP) + int32(rel)))
}

// inhibitInterrupts opens the one-instruction interrupt shadow that
// follows any segment register write.
func (c *CPU) inhibitInterrupts() {
	c.inhibitCount = 1
}

// DumpRegisters returns a debugger-formatted register dump.
func (c *CPU) DumpRegisters() string {
	return fmt.Sprintf(
		"AX=%04X BX=%04X CX=%04X DX=%04X SP=%04X BP=%04X SI=%04X DI=%04X\n"+
			"DS=%04X ES=%04X SS=%04X CS=%04X IP=%04X FL=%04X [%s]",
		c.AX, c.BX, c.CX, c.DX, c.SP, c.BP, c.SI, c.DI,
		c.DS, c.ES, c.SS, c.CS, c.IP, c.Flags, c.flagString())
}

func (c *CPU) flagString() string {
	names := []struct {
		f uint16
		s string
	}{
		{FlagOF, "O"}, {FlagDF, "D"}, {FlagIF, "I"}, {FlagTF, "T"},
		{FlagSF, "S"}, {FlagZF, "Z"}, {FlagAF, "A"}, {FlagPF, "P"}, {FlagCF, "C"},
	}
	s := ""
	for _, n := range names {
		if c.Flags&n.f != 0 {
			s += n.s
		} else {
			s += "-"
		}
	}
	return s
}

func (c *CPU) logInvalidOpcode(op uint8) {
	log.Printf("CPU: invalid opcode %02X at %04X:%04X", op, c.CS, c.i.Address)
	c.invalidOpcode = true
	if c.Type.isNec() {
		// The NEC parts raise a real undefined-opcode trap.
		c.interrupt(vectorUndefined, false)
	}
}
