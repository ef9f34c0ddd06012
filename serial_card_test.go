package main

import "testing"

func serialRig() (*SystemBus, *SerialCard, *PIC) {
	bus := NewSystemBus()
	pic := NewPIC()
	bus.pic = pic
	return bus, NewSerialCard(), pic
}

func TestSerialDivisorLatch(t *testing.T) {
	_, s, _ := serialRig()
	// DLAB set, program divisor 96 (1200 baud).
	s.WriteU8(com1Base+uartRegLCR, 0x83, nil, 0)
	s.WriteU8(com1Base+uartRegData, 96, nil, 0)
	s.WriteU8(com1Base+uartRegIER, 0, nil, 0)
	if s.ports[0].divisor != 96 {
		t.Errorf("divisor = %d", s.ports[0].divisor)
	}
	if v := s.ReadU8(com1Base+uartRegData, 0); v != 96 {
		t.Errorf("DLL reads %d", v)
	}
	// DLAB clear: the same offsets address data and IER again.
	s.WriteU8(com1Base+uartRegLCR, 0x03, nil, 0)
	s.WriteU8(com1Base+uartRegIER, uartIERRxData, nil, 0)
	if s.ports[0].divisor != 96 {
		t.Error("IER write disturbed the divisor")
	}
	if s.ports[0].ier != uartIERRxData {
		t.Errorf("IER = %02X", s.ports[0].ier)
	}
}

func TestSerialReceivePath(t *testing.T) {
	bus, s, pic := serialRig()
	s.WriteU8(com1Base+uartRegIER, uartIERRxData, bus, 0)
	s.WriteU8(com1Base+uartRegMCR, 0x08, bus, 0) // OUT2 enables the IRQ

	s.InjectRx(0, 'h')
	s.InjectRx(0, 'i')
	s.Run(1, bus)

	if lsr := s.ReadU8(com1Base+uartRegLSR, 0); lsr&uartLSRDataReady == 0 {
		t.Fatalf("LSR = %02X, no data ready", lsr)
	}
	if pic.IRR()&(1<<com1IRQ) == 0 {
		t.Error("IRQ4 not raised for received data")
	}
	if iir := s.ReadU8(com1Base+uartRegIIR, 0); iir != 0x04 {
		t.Errorf("IIR = %02X, want receive interrupt", iir)
	}
	if b := s.ReadU8(com1Base+uartRegData, 0); b != 'h' {
		t.Errorf("first byte = %c", b)
	}
	if b := s.ReadU8(com1Base+uartRegData, 0); b != 'i' {
		t.Errorf("second byte = %c", b)
	}
	if lsr := s.ReadU8(com1Base+uartRegLSR, 0); lsr&uartLSRDataReady != 0 {
		t.Error("data-ready still set with the FIFO drained")
	}
}

func TestSerialTransmitInterrupt(t *testing.T) {
	bus, s, pic := serialRig()
	s.WriteU8(com2Base+uartRegIER, uartIERTxEmpty, bus, 0)
	s.WriteU8(com2Base+uartRegMCR, 0x08, bus, 0)

	s.WriteU8(com2Base+uartRegData, 'x', bus, 0)
	s.Run(1, bus)
	if pic.IRR()&(1<<com2IRQ) == 0 {
		t.Error("IRQ3 not raised after transmit")
	}
	// Reading the IIR acknowledges the THR-empty condition.
	if iir := s.ReadU8(com2Base+uartRegIIR, 0); iir != 0x02 {
		t.Errorf("IIR = %02X", iir)
	}
	if iir := s.ReadU8(com2Base+uartRegIIR, 0); iir != 0x01 {
		t.Errorf("IIR = %02X after acknowledge, want none pending", iir)
	}
}

func TestSerialOut2GatesInterrupts(t *testing.T) {
	bus, s, pic := serialRig()
	s.WriteU8(com1Base+uartRegIER, uartIERRxData, bus, 0)
	s.InjectRx(0, 0x55)
	s.Run(1, bus)
	if pic.IRR() != 0 {
		t.Error("interrupt raised with OUT2 low")
	}
}

func TestSerialModemLoopback(t *testing.T) {
	_, s, _ := serialRig()
	s.WriteU8(com1Base+uartRegMCR, 0x03, nil, 0) // DTR+RTS
	msr := s.ReadU8(com1Base+uartRegMSR, 0)
	if msr&0x30 != 0x30 {
		t.Errorf("MSR = %02X, want CTS and DSR following", msr)
	}
}

func TestSerialScratchRegister(t *testing.T) {
	_, s, _ := serialRig()
	s.WriteU8(com1Base+uartRegScratch, 0xA5, nil, 0)
	if v := s.ReadU8(com1Base+uartRegScratch, 0); v != 0xA5 {
		t.Errorf("scratch = %02X", v)
	}
}

func TestSerialPortList(t *testing.T) {
	s := NewSerialCard()
	ports := s.Ports()
	if len(ports) != 16 {
		t.Fatalf("claimed %d ports", len(ports))
	}
	if ports[0] != com1Base || ports[8] != com2Base {
		t.Errorf("port layout %04X/%04X", ports[0], ports[8])
	}
}
