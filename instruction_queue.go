// instruction_queue.go - BIU prefetch FIFO for the 808x CPU core
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "fmt"

// queueMax is the largest queue any supported CPU has (6 bytes on the
// 8086/V30; the 8088/V20 use 4).
const queueMax = 6

// QueueDelay models the one-cycle bus access delay the queue logic
// imposes when the queue holds three (or more) bytes immediately after
// a push or pop.
type QueueDelay int

const (
	QueueDelayNone QueueDelay = iota
	QueueDelayRead
	QueueDelayWrite
)

// InstructionQueue is the processor prefetch queue: a fixed-capacity
// ring of bytes plus a single preload slot. The preload slot models
// the "first byte already fetched" state that exists right after a
// queue flush, and is always consumed before the main ring.
type InstructionQueue struct {
	size    int
	len     int
	back    int
	front   int
	q       [queueMax]uint8
	preload int // -1 when empty, else 0x00-0xFF
	delay   QueueDelay
}

// NewInstructionQueue returns a queue of the given capacity (4 for the
// 8088/V20, 6 for the 8086/V30).
func NewInstructionQueue(size int) *InstructionQueue {
	if size > queueMax {
		panic(fmt.Sprintf("InstructionQueue: size %d exceeds max %d", size, queueMax))
	}
	return &InstructionQueue{size: size, preload: -1}
}

// SetSize changes the queue capacity. Only valid between instructions
// when the queue is flushed.
func (iq *InstructionQueue) SetSize(size int) {
	if size > queueMax {
		panic(fmt.Sprintf("InstructionQueue: size %d exceeds max %d", size, queueMax))
	}
	iq.size = size
}

func (iq *InstructionQueue) Len() int {
	return iq.len
}

// LenP returns the queue length including the preload byte. Fullness
// tests that guard prefetch scheduling must use this, or the BIU will
// fetch into a slot the preload byte still logically occupies.
func (iq *InstructionQueue) LenP() int {
	l := iq.len
	if iq.preload >= 0 {
		l++
	}
	return l
}

func (iq *InstructionQueue) Size() int {
	return iq.size
}

func (iq *InstructionQueue) IsFull() bool {
	return iq.len == iq.size
}

func (iq *InstructionQueue) HasPreload() bool {
	return iq.preload >= 0
}

// SetPreload moves one byte from the ring into the preload slot.
// Calling it on an empty queue is a programming error.
func (iq *InstructionQueue) SetPreload() {
	if iq.len == 0 {
		panic("InstructionQueue: preload from empty queue")
	}
	iq.preload = int(iq.Pop())
}

// PeekPreload returns the preload byte without consuming it, or -1.
func (iq *InstructionQueue) PeekPreload() int {
	return iq.preload
}

// GetPreload consumes and returns the preload byte, or -1 if none.
func (iq *InstructionQueue) GetPreload() int {
	p := iq.preload
	iq.preload = -1
	return p
}

// Push8 appends a byte. Pushing into a full queue is a programming
// error: the BIU must never schedule a fetch without room.
func (iq *InstructionQueue) Push8(b uint8) {
	if iq.len >= iq.size {
		panic("InstructionQueue: overrun")
	}
	iq.q[iq.front] = b
	iq.front = (iq.front + 1) % iq.size
	iq.len++

	if iq.len == 3 {
		iq.delay = QueueDelayWrite
	} else {
		iq.delay = QueueDelayNone
	}
}

// Push16 appends a word, low byte first.
func (iq *InstructionQueue) Push16(w uint16) {
	iq.Push8(uint8(w & 0xFF))
	iq.Push8(uint8(w >> 8))
}

// Pop removes and returns the oldest byte.
func (iq *InstructionQueue) Pop() uint8 {
	if iq.len == 0 {
		panic("InstructionQueue: underrun")
	}
	b := iq.q[iq.back]
	iq.back = (iq.back + 1) % iq.size
	iq.len--

	if iq.len >= 3 {
		iq.delay = QueueDelayRead
	} else {
		iq.delay = QueueDelayNone
	}
	return b
}

// Delay returns the bus delay flag resulting from the last queue
// operation.
func (iq *InstructionQueue) Delay() QueueDelay {
	return iq.delay
}

// Flush empties the queue, drops any preload byte and clears the delay
// flags. Called on every branch, far transfer and interrupt.
func (iq *InstructionQueue) Flush() {
	iq.len = 0
	iq.back = 0
	iq.front = 0
	iq.preload = -1
	iq.delay = QueueDelayNone
}

// ToSlice copies the queue contents in pop order into dst and returns
// the number of bytes written.
func (iq *InstructionQueue) ToSlice(dst []uint8) int {
	n := iq.len
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = iq.q[(iq.back+i)%iq.size]
	}
	return n
}

// String renders the queue contents as a hex string, oldest first.
func (iq *InstructionQueue) String() string {
	s := ""
	for i := 0; i < iq.len; i++ {
		s += fmt.Sprintf("%02X", iq.q[(iq.back+i)%iq.size])
	}
	return s
}
