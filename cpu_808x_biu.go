// cpu_808x_biu.go - Bus Interface Unit: T-state clocking, prefetch
// scheduling and EU-visible bus transfer helpers
//
// Instruction timings are charged from the decode table and the
// execution helpers; the prefetcher runs structurally underneath so
// the queue contents, status pins and flush behavior stay faithful.
// Wait states reported by the bus extend the charged time.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// BusStatus is the S0-S2 bus status code of the current transaction.
type BusStatus int

const (
	BusInta BusStatus = iota
	BusIoRead
	BusIoWrite
	BusHalt
	BusCode
	BusMemRead
	BusMemWrite
	BusPassive
)

func (s BusStatus) String() string {
	switch s {
	case BusInta:
		return "INTA"
	case BusIoRead:
		return "IOR"
	case BusIoWrite:
		return "IOW"
	case BusHalt:
		return "HALT"
	case BusCode:
		return "CODE"
	case BusMemRead:
		return "MEMR"
	case BusMemWrite:
		return "MEMW"
	}
	return "PASV"
}

// TCycle is the phase of the current bus transaction.
type TCycle int

const (
	TCycleTi TCycle = iota
	TCycle1
	TCycle2
	TCycle3
	TCycle4
	TCycleTw
)

// CycleState is one T-state snapshot, the shape used by cycle traces.
type CycleState struct {
	AddressBus uint32
	DataBus    uint8
	Status     BusStatus
	T          TCycle
	QueueOp    QueueType
	QueueLen   int
	McAddr     uint16
	Cycle      uint64
}

// CycleTrace is a bounded ring of per-cycle snapshots for the
// debugger.
type CycleTrace struct {
	entries []CycleState
	next    int
	full    bool
}

// NewCycleTrace returns a trace ring of the given depth.
func NewCycleTrace(depth int) *CycleTrace {
	return &CycleTrace{entries: make([]CycleState, depth)}
}

func (tr *CycleTrace) record(cs CycleState) {
	tr.entries[tr.next] = cs
	tr.next++
	if tr.next == len(tr.entries) {
		tr.next = 0
		tr.full = true
	}
}

// Snapshot returns the trace contents, oldest first.
func (tr *CycleTrace) Snapshot() []CycleState {
	if !tr.full {
		return append([]CycleState(nil), tr.entries[:tr.next]...)
	}
	out := make([]CycleState, 0, len(tr.entries))
	out = append(out, tr.entries[tr.next:]...)
	out = append(out, tr.entries[:tr.next]...)
	return out
}

// EnableTrace attaches a cycle trace ring to the CPU.
func (c *CPU) EnableTrace(depth int) {
	c.trace = NewCycleTrace(depth)
}

// Trace returns the attached trace ring, or nil.
func (c *CPU) Trace() *CycleTrace {
	return c.trace
}

// Timing constants shared by the interrupt paths (documented 808x
// microcode costs).
const (
	cyclesInterrupt = 51 // vector read, frame push, far transfer
	cyclesINTA      = 10 // two INTA bus cycles plus idle states
	fetchCost       = 4  // bus cycles per prefetched byte
)

// cycle advances exactly one T-state: the cycle counter, the
// prefetcher, the trace and every clocked device.
func (c *CPU) cycle() {
	c.Cycles++

	// Prefetcher: one code fetch completes every fetchCost cycles
	// while there is queue room and fetching is not suspended. The
	// preload byte counts against fullness. Wide-bus models fetch an
	// aligned word per bus cycle.
	status := BusPassive
	var data uint8
	c.fetchTick++
	if c.fetchTick >= fetchCost {
		c.fetchTick = 0
		switch {
		case c.fetchDelay:
			// Queue logic holds the bus off for one cycle after an
			// access that left three or more bytes queued.
			c.fetchDelay = false
			c.fetchTick = fetchCost - 1
		case !c.fetchSuspended && c.queue.LenP() < c.queue.Size():
			status = BusCode
			if c.Type.wideBus() && c.PC&1 == 0 &&
				c.queue.Size()-c.queue.LenP() >= 2 {
				lo, _ := c.bus.ReadU8(linearAddress(c.CS, c.PC), 0)
				hi, _ := c.bus.ReadU8(linearAddress(c.CS, c.PC+1), 0)
				c.queue.Push16(uint16(lo) | uint16(hi)<<8)
				c.PC += 2
				data = lo
			} else {
				b, _ := c.bus.ReadU8(linearAddress(c.CS, c.PC), 0)
				c.queue.Push8(b)
				c.PC++
				data = b
			}
			if c.queue.Delay() == QueueDelayWrite {
				c.fetchDelay = true
			}
			if c.preloadNext {
				// First byte to arrive after a flush sits in the
				// preload slot, already past the queue proper.
				c.preloadNext = false
				c.queue.SetPreload()
			}
		}
	}

	if c.trace != nil {
		c.trace.record(CycleState{
			AddressBus: linearAddress(c.CS, c.PC),
			DataBus:    data,
			Status:     status,
			T:          TCycle1,
			QueueOp:    c.queueOp,
			QueueLen:   c.queue.Len(),
			Cycle:      c.Cycles,
		})
	}
	c.queueOp = QueueIdle

	c.bus.Tick(1)
}

// cycles burns n T-states.
func (c *CPU) cycles(n uint32) {
	for i := uint32(0); i < n; i++ {
		c.cycle()
	}
}

// cycleI burns one T-state tagged with the microcode row that issued
// it.
func (c *CPU) cycleI(mcAddr uint16) {
	c.cycle()
	if c.trace != nil && len(c.trace.entries) > 0 {
		idx := c.trace.next - 1
		if idx < 0 {
			idx = len(c.trace.entries) - 1
		}
		c.trace.entries[idx].McAddr = mcAddr
	}
}

// biuSuspendFetch stops the prefetcher (used around far transfers).
func (c *CPU) biuSuspendFetch() {
	c.fetchSuspended = true
}

// biuResumeFetch restarts the prefetcher.
func (c *CPU) biuResumeFetch() {
	c.fetchSuspended = false
}

// biuQueueFlush discards all prefetched bytes and realigns the fetch
// pointer with IP. Every branch, far transfer and interrupt ends here.
func (c *CPU) biuQueueFlush() {
	c.queue.Flush()
	c.PC = c.IP
	c.fetchTick = 0
	c.fetchDelay = false
	c.preloadNext = true
	c.queueOp = QueueFlushed
}

// ----------------------------------------------------------------------------
// EU bus transfers
// ----------------------------------------------------------------------------

// biuReadU8 performs a memory read on the EU's behalf. Base access
// time is part of the instruction's charged cost; device wait states
// extend it here.
func (c *CPU) biuReadU8(seg SegmentRegister, ofs uint16) uint8 {
	addr := linearAddress(c.segValue(seg), ofs)
	c.checkMemBreakpoint(addr)
	v, waits := c.bus.ReadU8(addr, 0)
	c.cycles(waits)
	return v
}

// biuReadU16 reads a word as two byte transfers. On the 8088 the
// second transfer costs four extra cycles.
func (c *CPU) biuReadU16(seg SegmentRegister, ofs uint16) uint16 {
	lo := c.biuReadU8(seg, ofs)
	hi := c.biuReadU8(seg, ofs+1)
	if c.Type == CpuIntel8088 || c.Type == CpuNecV20 {
		c.cycles(4)
	}
	return uint16(lo) | uint16(hi)<<8
}

func (c *CPU) biuWriteU8(seg SegmentRegister, ofs uint16, v uint8) {
	addr := linearAddress(c.segValue(seg), ofs)
	c.checkMemBreakpoint(addr)
	waits := c.bus.WriteU8(addr, v, 0)
	c.cycles(waits)
}

func (c *CPU) biuWriteU16(seg SegmentRegister, ofs uint16, v uint16) {
	c.biuWriteU8(seg, ofs, uint8(v&0xFF))
	c.biuWriteU8(seg, ofs+1, uint8(v>>8))
	if c.Type == CpuIntel8088 || c.Type == CpuNecV20 {
		c.cycles(4)
	}
}

// ioReadU8 performs an IO port read with breakpoint accounting.
func (c *CPU) ioReadU8(port uint16) uint8 {
	c.checkIoBreakpoint(port)
	return c.bus.IoReadU8(port, 0)
}

func (c *CPU) ioWriteU8(port uint16, v uint8) {
	c.checkIoBreakpoint(port)
	c.bus.IoWriteU8(port, v, 0)
}

func (c *CPU) ioReadU16(port uint16) uint16 {
	lo := c.ioReadU8(port)
	hi := c.ioReadU8(port + 1)
	return uint16(lo) | uint16(hi)<<8
}

func (c *CPU) ioWriteU16(port uint16, v uint16) {
	c.ioWriteU8(port, uint8(v&0xFF))
	c.ioWriteU8(port+1, uint8(v>>8))
}

// pushU16 pushes a word onto the stack.
func (c *CPU) pushU16(v uint16) {
	c.SP -= 2
	c.biuWriteU16(SegmentSS, c.SP, v)
}

// popU16 pops a word from the stack.
func (c *CPU) popU16() uint16 {
	v := c.biuReadU16(SegmentSS, c.SP)
	c.SP += 2
	return v
}

// ----------------------------------------------------------------------------
// ByteQueue implementation backed by the prefetch queue
// ----------------------------------------------------------------------------

// Seek and Tell only have meaning for the bus-backed implementation.
func (c *CPU) Seek(uint32) {}

func (c *CPU) Tell() uint32 {
	return linearAddress(c.CS, c.IP)
}

func (c *CPU) Wait(cycles uint32) { c.cycles(cycles) }

// WaitI burns cycles tagging each with its microcode row.
func (c *CPU) WaitI(cycles uint32, mcAddrs []uint16) {
	for i := uint32(0); i < cycles; i++ {
		if int(i) < len(mcAddrs) {
			c.cycleI(mcAddrs[i])
		} else {
			c.cycle()
		}
	}
}

func (c *CPU) WaitComment(string) {}

// SetPC realigns the fetch pointer; used by the validator harness.
func (c *CPU) SetPC(pc uint16) {
	c.PC = pc
}

// QReadU8 consumes one instruction byte: the preload slot first, then
// the queue, then (if the queue is starved) a direct code fetch. IP
// always advances. The queue status (first/subsequent) shows up on
// the next trace record, the way QS0/QS1 lag the consumption.
func (c *CPU) QReadU8(qt QueueType, _ QueueReader) uint8 {
	c.queueOp = qt
	var b uint8
	if p := c.queue.GetPreload(); p >= 0 {
		b = uint8(p)
	} else if c.queue.Len() > 0 {
		b = c.queue.Pop()
		if c.queue.Delay() == QueueDelayRead {
			c.fetchDelay = true
		}
	} else {
		// Starved queue: the byte comes straight off the bus. The
		// fetch time is part of the charged instruction cost.
		b, _ = c.bus.ReadU8(linearAddress(c.CS, c.PC), 0)
		c.PC++
	}
	c.IP++
	return b
}

func (c *CPU) QReadI8(qt QueueType, r QueueReader) int8 {
	return int8(c.QReadU8(qt, r))
}

func (c *CPU) QReadU16(qt QueueType, r QueueReader) uint16 {
	lo := c.QReadU8(qt, r)
	hi := c.QReadU8(QueueSubsequent, r)
	return uint16(lo) | uint16(hi)<<8
}

func (c *CPU) QReadI16(qt QueueType, r QueueReader) int16 {
	return int16(c.QReadU16(qt, r))
}

// QPeek helpers look ahead without consuming; they fall through to
// memory beyond the queued bytes.
func (c *CPU) qPeekAt(n int) uint8 {
	var buf [queueMax]uint8
	have := 0
	if c.queue.HasPreload() {
		// Preload byte is logically index 0.
		// Peek does not consume it.
		have = 1
	}
	qn := c.queue.ToSlice(buf[:])
	if n < have {
		return uint8(c.queue.PeekPreload())
	}
	idx := n - have
	if idx < qn {
		return buf[idx]
	}
	ahead := uint16(idx - qn)
	return c.bus.PeekU8(linearAddress(c.CS, c.PC+ahead))
}

func (c *CPU) QPeekU8() uint8 {
	return c.qPeekAt(0)
}

func (c *CPU) QPeekI8() int8 {
	return int8(c.qPeekAt(0))
}

func (c *CPU) QPeekU16() uint16 {
	return uint16(c.qPeekAt(0)) | uint16(c.qPeekAt(1))<<8
}

func (c *CPU) QPeekI16() int16 {
	return int16(c.QPeekU16())
}

func (c *CPU) QPeekFarPtr() (uint16, uint16) {
	ofs := uint16(c.qPeekAt(0)) | uint16(c.qPeekAt(1))<<8
	seg := uint16(c.qPeekAt(2)) | uint16(c.qPeekAt(3))<<8
	return seg, ofs
}
