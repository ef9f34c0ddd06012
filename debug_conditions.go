// debug_conditions.go - Breakpoint condition parser and evaluator
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"strings"
)

type ConditionSource int

const (
	CondSourceRegister ConditionSource = iota
	CondSourceMemory
	CondSourceHitCount
)

type ConditionOp int

const (
	CondOpEqual ConditionOp = iota
	CondOpNotEqual
	CondOpLess
	CondOpGreater
	CondOpLessEqual
	CondOpGreaterEqual
)

// BreakpointCondition gates a breakpoint on a register, a memory byte
// or the breakpoint's own hit count.
type BreakpointCondition struct {
	Source  ConditionSource
	RegName string
	MemAddr uint64
	Op      ConditionOp
	Value   uint64
}

// ParseCondition parses a condition string.
// Formats:
//
//	AX==$FF        - register AX, op ==, value 0xFF
//	[$B8000]==$42  - memory at flat 0xB8000, op ==, value 0x42
//	hitcount>10    - hit count, op >, value 10
func ParseCondition(text string) (*BreakpointCondition, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty condition")
	}

	var op ConditionOp
	var opStr string
	var opIdx int
	for _, candidate := range []string{"==", "!=", "<=", ">=", "<", ">"} {
		idx := strings.Index(text, candidate)
		if idx >= 0 {
			opStr = candidate
			opIdx = idx
			break
		}
	}
	if opStr == "" {
		return nil, fmt.Errorf("no operator found (use ==, !=, <, >, <=, >=)")
	}

	switch opStr {
	case "==":
		op = CondOpEqual
	case "!=":
		op = CondOpNotEqual
	case "<":
		op = CondOpLess
	case ">":
		op = CondOpGreater
	case "<=":
		op = CondOpLessEqual
	case ">=":
		op = CondOpGreaterEqual
	}

	lhs := strings.TrimSpace(text[:opIdx])
	rhs := strings.TrimSpace(text[opIdx+len(opStr):])

	value, ok := ParseAddress(rhs)
	if !ok {
		return nil, fmt.Errorf("invalid value: %s", rhs)
	}

	// Memory dereference: [$B8000]
	if strings.HasPrefix(lhs, "[") && strings.HasSuffix(lhs, "]") {
		addrStr := lhs[1 : len(lhs)-1]
		addr, ok := ParseAddress(addrStr)
		if !ok {
			return nil, fmt.Errorf("invalid memory address: %s", addrStr)
		}
		return &BreakpointCondition{
			Source:  CondSourceMemory,
			MemAddr: addr,
			Op:      op,
			Value:   value,
		}, nil
	}

	if strings.EqualFold(lhs, "hitcount") {
		return &BreakpointCondition{
			Source: CondSourceHitCount,
			Op:     op,
			Value:  value,
		}, nil
	}

	reg := strings.ToUpper(lhs)
	if !validConditionRegister(reg) {
		return nil, fmt.Errorf("unknown register: %s", lhs)
	}
	return &BreakpointCondition{
		Source:  CondSourceRegister,
		RegName: reg,
		Op:      op,
		Value:   value,
	}, nil
}

var conditionRegisters = []string{
	"AX", "BX", "CX", "DX", "SP", "BP", "SI", "DI",
	"CS", "DS", "ES", "SS", "IP", "FLAGS",
	"AL", "AH", "BL", "BH", "CL", "CH", "DL", "DH",
}

func validConditionRegister(name string) bool {
	for _, r := range conditionRegisters {
		if r == name {
			return true
		}
	}
	return false
}

// evaluateCondition checks whether a breakpoint condition is
// satisfied. Returns true if cond is nil (unconditional).
func evaluateCondition(cond *BreakpointCondition, cpu *CPU, hitCount uint64) bool {
	if cond == nil {
		return true
	}

	var actual uint64
	switch cond.Source {
	case CondSourceRegister:
		v, ok := registerValue(cpu, cond.RegName)
		if !ok {
			return false
		}
		actual = v
	case CondSourceMemory:
		actual = uint64(cpu.Bus().PeekU8(uint32(cond.MemAddr) & (MemorySize - 1)))
	case CondSourceHitCount:
		actual = hitCount
	}

	return compareValues(actual, cond.Op, cond.Value)
}

func registerValue(cpu *CPU, name string) (uint64, bool) {
	switch name {
	case "AX":
		return uint64(cpu.AX), true
	case "BX":
		return uint64(cpu.BX), true
	case "CX":
		return uint64(cpu.CX), true
	case "DX":
		return uint64(cpu.DX), true
	case "SP":
		return uint64(cpu.SP), true
	case "BP":
		return uint64(cpu.BP), true
	case "SI":
		return uint64(cpu.SI), true
	case "DI":
		return uint64(cpu.DI), true
	case "CS":
		return uint64(cpu.CS), true
	case "DS":
		return uint64(cpu.DS), true
	case "ES":
		return uint64(cpu.ES), true
	case "SS":
		return uint64(cpu.SS), true
	case "IP":
		return uint64(cpu.IP), true
	case "FLAGS":
		return uint64(cpu.Flags), true
	case "AL":
		return uint64(cpu.AL()), true
	case "AH":
		return uint64(cpu.AH()), true
	case "BL":
		return uint64(cpu.BL()), true
	case "BH":
		return uint64(cpu.BH()), true
	case "CL":
		return uint64(cpu.CL()), true
	case "CH":
		return uint64(cpu.CH()), true
	case "DL":
		return uint64(cpu.DL()), true
	case "DH":
		return uint64(cpu.DH()), true
	}
	return 0, false
}

func compareValues(actual uint64, op ConditionOp, expected uint64) bool {
	switch op {
	case CondOpEqual:
		return actual == expected
	case CondOpNotEqual:
		return actual != expected
	case CondOpLess:
		return actual < expected
	case CondOpGreater:
		return actual > expected
	case CondOpLessEqual:
		return actual <= expected
	case CondOpGreaterEqual:
		return actual >= expected
	}
	return false
}

// FormatCondition returns the monitor's display form of a condition.
func FormatCondition(cond *BreakpointCondition) string {
	if cond == nil {
		return ""
	}

	var lhs string
	switch cond.Source {
	case CondSourceRegister:
		lhs = cond.RegName
	case CondSourceMemory:
		lhs = fmt.Sprintf("[$%X]", cond.MemAddr)
	case CondSourceHitCount:
		lhs = "hitcount"
	}

	var opStr string
	switch cond.Op {
	case CondOpEqual:
		opStr = "=="
	case CondOpNotEqual:
		opStr = "!="
	case CondOpLess:
		opStr = "<"
	case CondOpGreater:
		opStr = ">"
	case CondOpLessEqual:
		opStr = "<="
	case CondOpGreaterEqual:
		opStr = ">="
	}

	return fmt.Sprintf("%s%s$%X", lhs, opStr, cond.Value)
}
