// keyboard.go - XT keyboard scancode latch
//
// The XT keyboard serializes set-1 scancodes into a latch read through
// PPI port A; each loaded byte raises IRQ1 and the BIOS handler clears
// the latch by strobing PB7. Scancodes arriving while the latch is
// full queue up host-side.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

const keyboardQueueDepth = 32

type Keyboard struct {
	latch   uint8
	full    bool
	pending []uint8

	// Delivery is deferred a few cycles so back-to-back KeyPress
	// calls from the frontend don't collapse into one interrupt.
	sendDelay uint32
}

func NewKeyboard() *Keyboard {
	return &Keyboard{}
}

// Latch returns the current scancode without clearing it.
func (k *Keyboard) Latch() uint8 {
	return k.latch
}

// KeyPress queues the make code for a key.
func (k *Keyboard) KeyPress(scancode uint8) {
	k.enqueue(scancode)
}

// KeyRelease queues the break code (make code with bit 7 set).
func (k *Keyboard) KeyRelease(scancode uint8) {
	k.enqueue(scancode | 0x80)
}

func (k *Keyboard) enqueue(code uint8) {
	if len(k.pending) >= keyboardQueueDepth {
		return // host typed faster than the guest drains; drop
	}
	k.pending = append(k.pending, code)
}

// ClearLatch is the PB7 strobe: the latch empties and the next queued
// scancode becomes eligible for delivery.
func (k *Keyboard) ClearLatch(bus *SystemBus) {
	k.full = false
	k.latch = 0
	if pic := bus.PIC(); pic != nil {
		pic.ClearInterrupt(1)
	}
}

// Run moves queued scancodes into the latch and raises IRQ1.
func (k *Keyboard) Run(sysTicks uint32, bus *SystemBus) {
	if k.sendDelay > 0 {
		if sysTicks >= k.sendDelay {
			k.sendDelay = 0
		} else {
			k.sendDelay -= sysTicks
			return
		}
	}
	if k.full || len(k.pending) == 0 {
		return
	}
	k.latch = k.pending[0]
	k.pending = k.pending[1:]
	k.full = true
	k.sendDelay = 100 // minimum spacing between deliveries
	if pic := bus.PIC(); pic != nil {
		pic.RequestInterrupt(1)
	}
}
