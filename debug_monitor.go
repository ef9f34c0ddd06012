// debug_monitor.go - Interactive machine monitor
//
// A DEBUG.COM flavoured monitor on the controlling terminal. The
// terminal goes raw for line editing and history via x/term; while a
// program runs under 'g', any keypress drops back to the prompt.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/term"
)

// Monitor drives one Machine from a terminal.
type Monitor struct {
	machine *Machine
	term    *term.Terminal
	stdin   *pushbackReader

	breakpoints []Breakpoint

	// Cursors advanced by repeated d / m commands.
	dumpAddr  uint32
	disasmSeg uint16
	disasmOfs uint16
	lastCmd   string

	stopFlag atomic.Bool
}

// pushbackReader lets the run-interrupt watcher hand back a byte it
// read but did not consume.
type pushbackReader struct {
	inner   io.Reader
	mu      sync.Mutex
	pending []byte
}

func (r *pushbackReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		n := copy(p, r.pending)
		r.pending = r.pending[n:]
		r.mu.Unlock()
		return n, nil
	}
	r.mu.Unlock()
	return r.inner.Read(p)
}

func (r *pushbackReader) pushBack(b []byte) {
	r.mu.Lock()
	r.pending = append(r.pending, b...)
	r.mu.Unlock()
}

func NewMonitor(m *Machine) *Monitor {
	mon := &Monitor{
		machine:   m,
		stdin:     &pushbackReader{inner: os.Stdin},
		disasmSeg: m.CPU().CS,
		disasmOfs: m.CPU().IP,
	}
	return mon
}

func (mon *Monitor) cpu() *CPU { return mon.machine.CPU() }

func (mon *Monitor) printf(format string, args ...interface{}) {
	if mon.term != nil {
		fmt.Fprintf(mon.term, format, args...)
		return
	}
	fmt.Printf(format, args...)
}

// Run takes over the terminal until the user quits.
func (mon *Monitor) Run() error {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return err
		}
		defer func() {
			if err := term.Restore(fd, oldState); err != nil {
				log.Printf("Monitor: restore terminal: %v", err)
			}
		}()
	}

	screen := struct {
		io.Reader
		io.Writer
	}{mon.stdin, os.Stdout}
	mon.term = term.NewTerminal(screen, "-")

	mon.printf("%s monitor, %d KB, ? for help\n", mon.machine.Cfg.Cpu, mon.machine.Cfg.RamKB)
	mon.cmdRegisters(nil)

	for {
		line, err := mon.term.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if !mon.execute(line) {
			return nil
		}
	}
}

// watchForKey arms a reader that pauses execution on any keypress.
// The returned func disarms it; a byte read after disarm is pushed
// back for the prompt.
func (mon *Monitor) watchForKey() func() {
	mon.stopFlag.Store(false)
	done := make(chan struct{})
	go func() {
		b := make([]byte, 1)
		n, err := mon.stdin.Read(b)
		select {
		case <-done:
			if err == nil && n > 0 {
				mon.stdin.pushBack(b[:n])
			}
		default:
			mon.stopFlag.Store(true)
			mon.machine.Exec().SetState(ExecPaused)
		}
	}()
	return func() { close(done) }
}

func (mon *Monitor) interrupted() bool {
	return mon.stopFlag.Load()
}
