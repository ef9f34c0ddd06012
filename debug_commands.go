// debug_commands.go - Monitor command parsing and execution
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"strconv"
	"strings"
)

// MonitorCommand is one parsed input line.
type MonitorCommand struct {
	Name string
	Args []string
}

func ParseCommand(input string) MonitorCommand {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return MonitorCommand{}
	}
	return MonitorCommand{
		Name: strings.ToLower(parts[0]),
		Args: parts[1:],
	}
}

// ParseAddress parses a monitor number in various formats:
// $hex, 0xhex, bare hex, #decimal
func ParseAddress(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.HasPrefix(s, "#") {
		v, err := strconv.ParseUint(s[1:], 10, 64)
		return v, err == nil
	}
	if strings.HasPrefix(s, "$") {
		v, err := strconv.ParseUint(s[1:], 16, 64)
		return v, err == nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		return v, err == nil
	}
	v, err := strconv.ParseUint(s, 16, 64)
	return v, err == nil
}

// ParseSegOfs parses "seg:ofs" where either half may be a register
// name, or a bare flat address. Returns the pair and its flat form.
func ParseSegOfs(s string, cpu *CPU) (seg, ofs uint16, flat uint32, ok bool) {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		sv, sok := parseHalf(s[:idx], cpu)
		ov, ook := parseHalf(s[idx+1:], cpu)
		if !sok || !ook {
			return 0, 0, 0, false
		}
		return sv, ov, linearAddress(sv, ov), true
	}
	v, vok := ParseAddress(s)
	if !vok || v >= MemorySize {
		return 0, 0, 0, false
	}
	// Synthesize a paragraph-aligned pair for display.
	return uint16(v >> 4), uint16(v & 0xF), uint32(v), true
}

func parseHalf(s string, cpu *CPU) (uint16, bool) {
	if cpu != nil {
		if v, ok := registerValue(cpu, strings.ToUpper(strings.TrimSpace(s))); ok {
			return uint16(v), true
		}
	}
	v, ok := ParseAddress(s)
	return uint16(v), ok
}

// ----------------------------------------------------------------------------
// Command execution
// ----------------------------------------------------------------------------

// execute runs one command line. Returns false when the monitor
// should exit.
func (mon *Monitor) execute(line string) bool {
	cmd := ParseCommand(line)
	switch cmd.Name {
	case "":
		// Empty line repeats the last dump or disassembly.
		if mon.lastCmd == "d" {
			mon.cmdDisasm(nil)
		} else if mon.lastCmd == "m" {
			mon.cmdDump(nil)
		}
		return true
	case "q", "quit", "exit":
		return false
	case "?", "help":
		mon.cmdHelp()
	case "r", "reg":
		mon.cmdRegisters(cmd.Args)
	case "d", "u":
		mon.cmdDisasm(cmd.Args)
		mon.lastCmd = "d"
	case "m", "dump":
		mon.cmdDump(cmd.Args)
		mon.lastCmd = "m"
	case "e", "edit":
		mon.cmdEdit(cmd.Args)
	case "t", "step":
		mon.cmdStep(cmd.Args)
	case "g", "go":
		mon.cmdGo(cmd.Args)
	case "frame":
		mon.cmdFrame(cmd.Args)
	case "bp":
		mon.cmdBreakpoint(cmd.Args)
	case "bl":
		mon.cmdListBreakpoints()
	case "bc":
		mon.cmdClearBreakpoint(cmd.Args)
	case "in":
		mon.cmdIoRead(cmd.Args)
	case "out":
		mon.cmdIoWrite(cmd.Args)
	case "int":
		mon.cmdInterrupt(cmd.Args)
	case "nmi":
		mon.cpu().SetNMI(true)
		mon.cpu().SetNMI(false)
		mon.printf("NMI pulsed\n")
	case "reset":
		mon.machine.Reset()
		mon.cmdRegisters(nil)
	case "video":
		mon.cmdVideo()
	case "stat":
		mon.cmdStat()
	case "key":
		mon.cmdKey(cmd.Args)
	case "script":
		mon.cmdScript(cmd.Args)
	default:
		mon.printf("unknown command %q, ? for help\n", cmd.Name)
	}
	return true
}

func (mon *Monitor) cmdHelp() {
	mon.printf("%s", `r [reg val]        registers, or set one
d [seg:ofs] [n]    disassemble
m [seg:ofs] [n]    dump memory
e seg:ofs b..      edit memory bytes
t [n]              trace n instructions
g [seg:ofs]        run until breakpoint
frame [n]          run n video frames
bp seg:ofs [cond]  set execute breakpoint (cond: AX==$5, [addr]!=0, hitcount>3)
bl / bc n          list / clear breakpoints
in port            read IO port
out port val       write IO port
int n              raise IRQ line n
nmi                pulse NMI
key code           queue a scancode (make+break)
video              video card state
stat               cycle and frame counters
script file        run a Lua script
reset              hardware reset
q                  quit
`)
}

func (mon *Monitor) cmdRegisters(args []string) {
	c := mon.cpu()
	if len(args) == 2 {
		v, ok := ParseAddress(args[1])
		if !ok || !setRegisterValue(c, strings.ToUpper(args[0]), uint16(v)) {
			mon.printf("bad register or value\n")
			return
		}
	}
	mon.printf("AX=%04X BX=%04X CX=%04X DX=%04X SP=%04X BP=%04X SI=%04X DI=%04X\n",
		c.AX, c.BX, c.CX, c.DX, c.SP, c.BP, c.SI, c.DI)
	mon.printf("DS=%04X ES=%04X SS=%04X CS=%04X IP=%04X   %s\n",
		c.DS, c.ES, c.SS, c.CS, c.IP, flagString(c.Flags))
	text, _ := Disassemble(c.Bus(), c.CS, c.IP, c.Type)
	mon.printf("%04X:%04X  %s\n", c.CS, c.IP, text)
}

func setRegisterValue(c *CPU, name string, v uint16) bool {
	switch name {
	case "AX":
		c.AX = v
	case "BX":
		c.BX = v
	case "CX":
		c.CX = v
	case "DX":
		c.DX = v
	case "SP":
		c.SP = v
	case "BP":
		c.BP = v
	case "SI":
		c.SI = v
	case "DI":
		c.DI = v
	case "DS":
		c.DS = v
	case "ES":
		c.ES = v
	case "SS":
		c.SS = v
	case "CS":
		c.CS = v
		c.SetCSIP(v, c.IP)
	case "IP":
		c.SetCSIP(c.CS, v)
	case "FLAGS":
		c.Flags = v
	default:
		return false
	}
	return true
}

// flagString renders FLAGS in the two-letter DEBUG.COM style.
func flagString(f uint16) string {
	pick := func(bit uint16, set, clear string) string {
		if f&bit != 0 {
			return set
		}
		return clear
	}
	return pick(FlagOF, "OV", "NV") + " " + pick(FlagDF, "DN", "UP") + " " +
		pick(FlagIF, "EI", "DI") + " " + pick(FlagSF, "NG", "PL") + " " +
		pick(FlagZF, "ZR", "NZ") + " " + pick(FlagAF, "AC", "NA") + " " +
		pick(FlagPF, "PE", "PO") + " " + pick(FlagCF, "CY", "NC")
}

func (mon *Monitor) cmdDisasm(args []string) {
	c := mon.cpu()
	seg, ofs := mon.disasmSeg, mon.disasmOfs
	count := 16
	if len(args) >= 1 {
		var ok bool
		seg, ofs, _, ok = ParseSegOfs(args[0], c)
		if !ok {
			mon.printf("bad address\n")
			return
		}
	}
	if len(args) >= 2 {
		if n, ok := ParseAddress(args[1]); ok && n > 0 {
			count = int(n)
		}
	}
	lines := DisassembleRange(c.Bus(), seg, ofs, count, c.Type)
	total := uint16(0)
	for _, l := range lines {
		mon.printf("%s\n", l)
	}
	// Advance the cursor past what was shown.
	for i := 0; i < count; i++ {
		_, size := Disassemble(c.Bus(), seg, ofs+total, c.Type)
		total += uint16(size)
	}
	mon.disasmSeg, mon.disasmOfs = seg, ofs+total
}

func (mon *Monitor) cmdDump(args []string) {
	c := mon.cpu()
	addr := mon.dumpAddr
	count := uint32(128)
	if len(args) >= 1 {
		_, _, flat, ok := ParseSegOfs(args[0], c)
		if !ok {
			mon.printf("bad address\n")
			return
		}
		addr = flat
	}
	if len(args) >= 2 {
		if n, ok := ParseAddress(args[1]); ok && n > 0 {
			count = uint32(n)
		}
	}
	bus := c.Bus()
	for base := addr &^ 0xF; base < addr+count; base += 16 {
		var hexpart, ascii strings.Builder
		for i := uint32(0); i < 16; i++ {
			a := base + i
			if a < addr || a >= addr+count {
				hexpart.WriteString("   ")
				ascii.WriteByte(' ')
				continue
			}
			b := bus.PeekU8(a & AddressMask)
			fmt.Fprintf(&hexpart, "%02X ", b)
			if b >= 0x20 && b < 0x7F {
				ascii.WriteByte(b)
			} else {
				ascii.WriteByte('.')
			}
		}
		mon.printf("%05X  %s %s\n", base&AddressMask, hexpart.String(), ascii.String())
	}
	mon.dumpAddr = addr + count
}

func (mon *Monitor) cmdEdit(args []string) {
	if len(args) < 2 {
		mon.printf("usage: e seg:ofs byte [byte ...]\n")
		return
	}
	_, _, flat, ok := ParseSegOfs(args[0], mon.cpu())
	if !ok {
		mon.printf("bad address\n")
		return
	}
	bus := mon.machine.Bus()
	for i, arg := range args[1:] {
		v, vok := ParseAddress(arg)
		if !vok || v > 0xFF {
			mon.printf("bad byte %q\n", arg)
			return
		}
		bus.WriteU8((flat+uint32(i))&AddressMask, uint8(v), 0)
	}
	mon.printf("%d byte(s) written at %05X\n", len(args)-1, flat)
}

func (mon *Monitor) cmdStep(args []string) {
	n := 1
	if len(args) >= 1 {
		if v, ok := ParseAddress(args[0]); ok && v > 0 {
			n = int(v)
		}
	}
	for i := 0; i < n; i++ {
		cyc, res := mon.machine.Step()
		if res == StepBreakpointHit {
			mon.printf("breakpoint\n")
			break
		}
		if i == n-1 || n <= 8 {
			mon.printf("(%d cycles)\n", cyc)
		}
	}
	mon.cmdRegisters(nil)
}

func (mon *Monitor) cmdGo(args []string) {
	c := mon.cpu()
	if len(args) >= 1 {
		seg, ofs, _, ok := ParseSegOfs(args[0], c)
		if !ok {
			mon.printf("bad address\n")
			return
		}
		c.SetCSIP(seg, ofs)
	}
	disarm := mon.watchForKey()
	defer disarm()
	mon.machine.Exec().SetState(ExecRunning)
	// Run in frame quanta so a keypress is noticed between frames.
	for mon.machine.Exec().State() == ExecRunning {
		mon.machine.RunFrame()
		if mon.interrupted() {
			mon.printf("stopped\n")
			break
		}
	}
	if mon.machine.Exec().State() == ExecBreakpointHit {
		mon.printf("breakpoint hit\n")
	}
	mon.cmdRegisters(nil)
}

func (mon *Monitor) cmdFrame(args []string) {
	n := 1
	if len(args) >= 1 {
		if v, ok := ParseAddress(args[0]); ok && v > 0 {
			n = int(v)
		}
	}
	mon.machine.Exec().SetState(ExecRunning)
	start := mon.machine.Frames()
	for i := 0; i < n && mon.machine.Exec().State() == ExecRunning; i++ {
		mon.machine.RunFrame()
	}
	mon.printf("%d frame(s), cycle %d\n", mon.machine.Frames()-start, mon.machine.Cycles())
}

func (mon *Monitor) cmdBreakpoint(args []string) {
	if len(args) < 1 {
		mon.printf("usage: bp seg:ofs [condition]\n")
		return
	}
	seg, ofs, _, ok := ParseSegOfs(args[0], mon.cpu())
	if !ok {
		mon.printf("bad address\n")
		return
	}
	bp := Breakpoint{Kind: BpExecute, Segment: seg, Offset: ofs}
	if len(args) >= 2 {
		cond, err := ParseCondition(strings.Join(args[1:], ""))
		if err != nil {
			mon.printf("condition: %v\n", err)
			return
		}
		bp.Condition = cond
	}
	mon.breakpoints = append(mon.breakpoints, bp)
	mon.cpu().SetBreakpoints(mon.breakpoints)
	mon.printf("breakpoint %d at %04X:%04X\n", len(mon.breakpoints)-1, seg, ofs)
}

func (mon *Monitor) cmdListBreakpoints() {
	if len(mon.breakpoints) == 0 {
		mon.printf("no breakpoints\n")
		return
	}
	for i, bp := range mon.breakpoints {
		cond := FormatCondition(bp.Condition)
		if cond != "" {
			cond = "  if " + cond
		}
		mon.printf("%2d  %04X:%04X  hits %d%s\n", i, bp.Segment, bp.Offset, bp.HitCount, cond)
	}
}

func (mon *Monitor) cmdClearBreakpoint(args []string) {
	if len(args) < 1 {
		mon.breakpoints = nil
		mon.cpu().ClearBreakpoints()
		mon.printf("all breakpoints cleared\n")
		return
	}
	idx, ok := ParseAddress(args[0])
	if !ok || int(idx) >= len(mon.breakpoints) {
		mon.printf("no breakpoint %s\n", args[0])
		return
	}
	mon.breakpoints = append(mon.breakpoints[:idx], mon.breakpoints[idx+1:]...)
	mon.cpu().SetBreakpoints(mon.breakpoints)
}

func (mon *Monitor) cmdIoRead(args []string) {
	if len(args) < 1 {
		mon.printf("usage: in port\n")
		return
	}
	port, ok := ParseAddress(args[0])
	if !ok {
		mon.printf("bad port\n")
		return
	}
	v := mon.machine.Bus().IoReadU8(uint16(port), 0)
	mon.printf("port %04X = %02X\n", uint16(port), v)
}

func (mon *Monitor) cmdIoWrite(args []string) {
	if len(args) < 2 {
		mon.printf("usage: out port val\n")
		return
	}
	port, ok1 := ParseAddress(args[0])
	val, ok2 := ParseAddress(args[1])
	if !ok1 || !ok2 || val > 0xFF {
		mon.printf("bad port or value\n")
		return
	}
	mon.machine.Bus().IoWriteU8(uint16(port), uint8(val), 0)
}

func (mon *Monitor) cmdInterrupt(args []string) {
	if len(args) < 1 {
		mon.printf("usage: int irq\n")
		return
	}
	irq, ok := ParseAddress(args[0])
	if !ok || irq > 7 {
		mon.printf("bad IRQ line\n")
		return
	}
	if pic := mon.machine.Bus().PIC(); pic != nil {
		pic.RequestInterrupt(uint8(irq))
	}
}

func (mon *Monitor) cmdVideo() {
	card := mon.machine.PrimaryVideo()
	if card == nil {
		mon.printf("no video card\n")
		return
	}
	x, y := card.Beam()
	ext := card.DisplayExtents()
	mon.printf("%s  field %dx%d  beam %d,%d  vsync %v  frames %d\n",
		card.DisplayType(), ext.FieldW, ext.FieldH, x, y, card.InVSync(), card.Frames())
}

func (mon *Monitor) cmdStat() {
	m := mon.machine
	mon.printf("cycles %d  instructions %d  frames %d\n",
		m.Cycles(), m.Instructions(), m.Frames())
	if pic := m.Bus().PIC(); pic != nil {
		mon.printf("PIC irr %02X isr %02X imr %02X  requested %d serviced %d\n",
			pic.IRR(), pic.ISR(), pic.IMR(), pic.IntsRequested, pic.IntsServiced)
	}
	if dmac := m.Bus().DMAC(); dmac != nil {
		mon.printf("DMA serviced bytes %d\n", dmac.ServicedBytes)
	}
}

func (mon *Monitor) cmdKey(args []string) {
	if len(args) < 1 {
		mon.printf("usage: key scancode\n")
		return
	}
	code, ok := ParseAddress(args[0])
	if !ok || code > 0x7F {
		mon.printf("bad scancode\n")
		return
	}
	mon.machine.KeyPress(uint8(code))
	mon.machine.KeyRelease(uint8(code))
}
