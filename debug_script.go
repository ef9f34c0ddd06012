// debug_script.go - Lua scripting for the monitor
//
// Scripts get a `machine` table for driving the emulator: register
// access, memory peek/poke, stepping, frames, port IO and key input.
// Meant for regression scripts and bring-up automation, e.g.
//
//	machine.poke(0x7C00, 0xEB)
//	machine.setreg("CS", 0)
//	machine.setreg("IP", 0x7C00)
//	machine.step(100)
//	print(machine.reg("AX"))
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

func (mon *Monitor) cmdScript(args []string) {
	if len(args) < 1 {
		mon.printf("usage: script file.lua\n")
		return
	}
	if err := RunScript(mon.machine, args[0], mon); err != nil {
		mon.printf("script: %v\n", err)
	}
}

// scriptOutput receives script print output; the monitor implements
// it, and a nil sink falls back to the process log.
type scriptOutput interface {
	printf(format string, args ...interface{})
}

// RunScript executes a Lua file against a machine.
func RunScript(m *Machine, path string, out scriptOutput) error {
	L := lua.NewState()
	defer L.Close()
	L.SetGlobal("machine", machineTable(L, m))
	if out != nil {
		L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
			var parts []string
			for i := 1; i <= L.GetTop(); i++ {
				parts = append(parts, L.ToStringMeta(L.Get(i)).String())
			}
			out.printf("%s\n", strings.Join(parts, "\t"))
			return 0
		}))
	}
	return L.DoFile(path)
}

func machineTable(L *lua.LState, m *Machine) *lua.LTable {
	t := L.NewTable()
	reg := func(name string, fn lua.LGFunction) {
		L.SetField(t, name, L.NewFunction(fn))
	}

	reg("reg", func(L *lua.LState) int {
		v, ok := registerValue(m.CPU(), strings.ToUpper(L.CheckString(1)))
		if !ok {
			L.ArgError(1, "unknown register")
		}
		L.Push(lua.LNumber(v))
		return 1
	})

	reg("setreg", func(L *lua.LState) int {
		name := strings.ToUpper(L.CheckString(1))
		if !setRegisterValue(m.CPU(), name, uint16(L.CheckInt(2))) {
			L.ArgError(1, "unknown register")
		}
		return 0
	})

	reg("peek", func(L *lua.LState) int {
		addr := uint32(L.CheckInt(1)) & AddressMask
		L.Push(lua.LNumber(m.Bus().PeekU8(addr)))
		return 1
	})

	reg("poke", func(L *lua.LState) int {
		addr := uint32(L.CheckInt(1)) & AddressMask
		m.Bus().WriteU8(addr, uint8(L.CheckInt(2)), 0)
		return 0
	})

	reg("step", func(L *lua.LState) int {
		n := L.OptInt(1, 1)
		var cycles uint64
		for i := 0; i < n; i++ {
			c, res := m.Step()
			cycles += c
			if res == StepBreakpointHit {
				break
			}
		}
		L.Push(lua.LNumber(cycles))
		return 1
	})

	reg("frame", func(L *lua.LState) int {
		n := L.OptInt(1, 1)
		m.Exec().SetState(ExecRunning)
		for i := 0; i < n && m.Exec().State() == ExecRunning; i++ {
			m.RunFrame()
		}
		return 0
	})

	reg("iord", func(L *lua.LState) int {
		L.Push(lua.LNumber(m.Bus().IoReadU8(uint16(L.CheckInt(1)), 0)))
		return 1
	})

	reg("iowr", func(L *lua.LState) int {
		m.Bus().IoWriteU8(uint16(L.CheckInt(1)), uint8(L.CheckInt(2)), 0)
		return 0
	})

	reg("key", func(L *lua.LState) int {
		code := uint8(L.CheckInt(1))
		m.KeyPress(code)
		m.KeyRelease(code)
		return 0
	})

	reg("cycles", func(L *lua.LState) int {
		L.Push(lua.LNumber(m.Cycles()))
		return 1
	})

	reg("frames", func(L *lua.LState) int {
		L.Push(lua.LNumber(m.Frames()))
		return 1
	})

	reg("reset", func(L *lua.LState) int {
		m.Reset()
		return 0
	})

	return t
}
