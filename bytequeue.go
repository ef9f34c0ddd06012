// bytequeue.go - Byte stream abstraction shared by the instruction decoder
//
// The decoder pulls opcode, mod-r/m, displacement and immediate bytes
// through a ByteQueue. During live execution that queue is the CPU's
// prefetch FIFO, so every read has a cycle cost; during disassembly it
// is the bus's flat memory, so reads are free and side-effect free.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// QueueType labels a queue read as the first byte of an instruction or
// a subsequent byte. The distinction drives the QS0/QS1 queue status
// pins on a real 8088 and shows up in cycle traces.
type QueueType int

const (
	QueueIdle QueueType = iota
	QueueFirst
	QueueSubsequent
	QueueFlushed
)

// QueueReader identifies which CPU unit is consuming a byte.
type QueueReader int

const (
	ReaderBiu QueueReader = iota
	ReaderEu
)

// ByteQueue is the read cursor the decoder operates on. The CPU's
// prefetch queue implements it with real bus timing; SystemBus
// implements it over raw memory for debugger views.
type ByteQueue interface {
	Seek(pos uint32)
	Tell() uint32

	Wait(cycles uint32)
	WaitI(cycles uint32, mcAddrs []uint16)
	WaitComment(comment string)
	SetPC(pc uint16)

	QReadU8(qt QueueType, reader QueueReader) uint8
	QReadI8(qt QueueType, reader QueueReader) int8
	QReadU16(qt QueueType, reader QueueReader) uint16
	QReadI16(qt QueueType, reader QueueReader) int16

	QPeekU8() uint8
	QPeekI8() int8
	QPeekU16() uint16
	QPeekI16() int16
	QPeekFarPtr() (uint16, uint16)
}
