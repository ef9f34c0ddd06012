// serial_card.go - 8250 UART serial card (COM1/COM2)
//
// Two-port asynchronous adapter. Each port models the 8250 register
// file with a small receive FIFO (the hardware has none; the FIFO
// absorbs host-side burstiness). A port can be bridged to a real host
// serial device, in which case a reader goroutine feeds the RX queue.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"io"
	"log"

	"github.com/jacobsa/go-serial/serial"
)

const (
	com1Base = 0x3F8
	com2Base = 0x2F8
	com1IRQ  = 4
	com2IRQ  = 3

	// Register offsets from the port base.
	uartRegData    = 0 // RBR read / THR write (DLL with DLAB)
	uartRegIER     = 1 // (DLM with DLAB)
	uartRegIIR     = 2
	uartRegLCR     = 3
	uartRegMCR     = 4
	uartRegLSR     = 5
	uartRegMSR     = 6
	uartRegScratch = 7
)

// LSR bits.
const (
	uartLSRDataReady = 0x01
	uartLSRTHREmpty  = 0x20
	uartLSRTSREmpty  = 0x40
)

// IER bits.
const (
	uartIERRxData  = 0x01
	uartIERTxEmpty = 0x02
)

type uartPort struct {
	base uint16
	irq  uint8

	ier     uint8
	lcr     uint8
	mcr     uint8
	scratch uint8
	divisor uint16

	rx        []uint8
	rxIn      chan uint8
	txPending bool // THR written, interrupt on next Run

	bridge io.ReadWriteCloser
}

func (u *uartPort) dlab() bool {
	return u.lcr&0x80 != 0
}

type SerialCard struct {
	ports [2]uartPort
}

func NewSerialCard() *SerialCard {
	c := &SerialCard{}
	c.ports[0] = uartPort{base: com1Base, irq: com1IRQ, rxIn: make(chan uint8, 256)}
	c.ports[1] = uartPort{base: com2Base, irq: com2IRQ, rxIn: make(chan uint8, 256)}
	return c
}

func (c *SerialCard) Ports() []uint16 {
	ports := make([]uint16, 0, 16)
	for _, u := range c.ports {
		for r := uint16(0); r < 8; r++ {
			ports = append(ports, u.base+r)
		}
	}
	return ports
}

// BridgeHost opens a host serial device and splices it onto the given
// COM port. The guest's divisor latch does not reprogram the host
// side; the bridge runs at the options' fixed rate.
func (c *SerialCard) BridgeHost(port int, device string) error {
	opts := serial.OpenOptions{
		PortName:        device,
		BaudRate:        9600,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	}
	f, err := serial.Open(opts)
	if err != nil {
		return err
	}
	u := &c.ports[port&1]
	u.bridge = f
	go func() {
		buf := make([]uint8, 64)
		for {
			n, err := f.Read(buf)
			if err != nil {
				log.Printf("COM%d: host bridge closed: %v", port+1, err)
				return
			}
			for _, b := range buf[:n] {
				u.rxIn <- b
			}
		}
	}()
	log.Printf("COM%d: bridged to %s", port+1, device)
	return nil
}

// InjectRx feeds a byte into a port's receive path, used by tests and
// by front-ends without a host bridge.
func (c *SerialCard) InjectRx(port int, data uint8) {
	c.ports[port&1].rxIn <- data
}

func (c *SerialCard) portFor(ioPort uint16) (*uartPort, uint16) {
	for i := range c.ports {
		u := &c.ports[i]
		if ioPort >= u.base && ioPort < u.base+8 {
			return u, ioPort - u.base
		}
	}
	return nil, 0
}

func (c *SerialCard) ReadU8(port uint16, _ uint32) uint8 {
	u, reg := c.portFor(port)
	if u == nil {
		return NoIOByte
	}
	switch reg {
	case uartRegData:
		if u.dlab() {
			return uint8(u.divisor)
		}
		if len(u.rx) == 0 {
			return 0
		}
		b := u.rx[0]
		u.rx = u.rx[1:]
		return b
	case uartRegIER:
		if u.dlab() {
			return uint8(u.divisor >> 8)
		}
		return u.ier
	case uartRegIIR:
		switch {
		case u.ier&uartIERRxData != 0 && len(u.rx) > 0:
			return 0x04 // received data available
		case u.ier&uartIERTxEmpty != 0 && u.txPending:
			u.txPending = false
			return 0x02 // THR empty
		}
		return 0x01 // no interrupt pending
	case uartRegLCR:
		return u.lcr
	case uartRegMCR:
		return u.mcr
	case uartRegLSR:
		lsr := uint8(uartLSRTHREmpty | uartLSRTSREmpty)
		if len(u.rx) > 0 {
			lsr |= uartLSRDataReady
		}
		return lsr
	case uartRegMSR:
		// CTS/DSR follow RTS/DTR as if a loopback plug were fitted.
		var msr uint8
		if u.mcr&0x02 != 0 {
			msr |= 0x10
		}
		if u.mcr&0x01 != 0 {
			msr |= 0x20
		}
		return msr
	case uartRegScratch:
		return u.scratch
	}
	return NoIOByte
}

func (c *SerialCard) WriteU8(port uint16, data uint8, bus *SystemBus, _ uint32) {
	u, reg := c.portFor(port)
	if u == nil {
		return
	}
	switch reg {
	case uartRegData:
		if u.dlab() {
			u.divisor = u.divisor&0xFF00 | uint16(data)
			return
		}
		if u.bridge != nil {
			if _, err := u.bridge.Write([]uint8{data}); err != nil {
				log.Printf("COM: host write failed: %v", err)
			}
		}
		u.txPending = true
	case uartRegIER:
		if u.dlab() {
			u.divisor = u.divisor&0x00FF | uint16(data)<<8
			return
		}
		u.ier = data & 0x0F
	case uartRegLCR:
		u.lcr = data
	case uartRegMCR:
		u.mcr = data & 0x1F
	case uartRegScratch:
		u.scratch = data
	}
}

// Run drains host-side bytes into the register-visible FIFO and raises
// the port interrupts.
func (c *SerialCard) Run(_ uint32, bus *SystemBus) {
	pic := bus.PIC()
	for i := range c.ports {
		u := &c.ports[i]
		for {
			select {
			case b := <-u.rxIn:
				u.rx = append(u.rx, b)
				continue
			default:
			}
			break
		}
		if pic == nil || u.mcr&0x08 == 0 { // OUT2 gates the IRQ line
			continue
		}
		if u.ier&uartIERRxData != 0 && len(u.rx) > 0 {
			pic.PulseInterrupt(u.irq)
		}
		if u.ier&uartIERTxEmpty != 0 && u.txPending {
			pic.PulseInterrupt(u.irq)
		}
	}
}
