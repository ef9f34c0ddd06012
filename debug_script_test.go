package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type scriptSink struct {
	lines []string
}

func (s *scriptSink) printf(format string, args ...interface{}) {
	s.lines = append(s.lines, strings.TrimSuffix(fmt.Sprintf(format, args...), "\n"))
}

func runScript(t *testing.T, m *Machine, body string) *scriptSink {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.lua")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	sink := &scriptSink{}
	if err := RunScript(m, path, sink); err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	return sink
}

func TestScriptPokeStepAndRead(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())
	// mov ax, 1234h; hlt assembled by hand at 0100:0000.
	sink := runScript(t, m, `
		machine.poke(0x1000, 0xB8)
		machine.poke(0x1001, 0x34)
		machine.poke(0x1002, 0x12)
		machine.poke(0x1003, 0xF4)
		machine.setreg("CS", 0x0100)
		machine.setreg("IP", 0)
		machine.step(2)
		print(machine.reg("AX"))
		print(machine.peek(0x1000))
	`)
	want := []string{"4660", "184"} // 0x1234, 0xB8
	if len(sink.lines) != 2 || sink.lines[0] != want[0] || sink.lines[1] != want[1] {
		t.Errorf("script output = %q, want %q", sink.lines, want)
	}
	if m.CPU().AX != 0x1234 {
		t.Errorf("AX = %04X after script", m.CPU().AX)
	}
}

func TestScriptPortIOAndReset(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())
	sink := runScript(t, m, `
		print(machine.iord(0x260))
		machine.setreg("AX", 0xBEEF)
		machine.reset()
		print(machine.reg("CS"))
		print(machine.reg("AX"))
	`)
	// Open bus on an unclaimed port, then the power-on CS.
	want := []string{"255", "65535", "0"}
	for i, w := range want {
		if i >= len(sink.lines) || sink.lines[i] != w {
			t.Fatalf("script output = %q, want %q", sink.lines, want)
		}
	}
}

func TestScriptFrames(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())
	runScript(t, m, `machine.frame(2)`)
	if m.Frames() == 0 {
		t.Error("no retrace after two scripted frames")
	}
	if m.Cycles() == 0 {
		t.Error("no cycles consumed")
	}
}

func TestScriptUnknownRegisterErrors(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())
	path := filepath.Join(t.TempDir(), "bad.lua")
	if err := os.WriteFile(path, []byte(`machine.reg("XX")`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := RunScript(m, path, nil); err == nil {
		t.Error("expected an error for an unknown register")
	}
}

func TestScriptMissingFileErrors(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())
	if err := RunScript(m, filepath.Join(t.TempDir(), "nope.lua"), nil); err == nil {
		t.Error("expected an error for a missing script")
	}
}
