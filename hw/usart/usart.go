// Package usart drives the asynchronous serial transceiver.
package usart

import (
	"fmt"
	"strconv"

	"avrhal/emu/log"
	"avrhal/hw/bits"
	"avrhal/hw/hwdefs"
	"avrhal/hw/isr"
)

type Mode uint8

const (
	Read Mode = iota
	Write
	ReadWrite
	Disable
)

func (m Mode) String() string {
	switch m {
	case Read:
		return "read"
	case Write:
		return "write"
	case ReadWrite:
		return "read-write"
	case Disable:
		return "disable"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

type StopBits uint8

const (
	Stop1 StopBits = iota
	Stop2
)

type Parity uint8

const (
	ParityDisable Parity = iota
	ParityEven
	ParityOdd
)

// BaudRate is a baud rate divided by 100.
type BaudRate uint16

const (
	Baud2400   BaudRate = 24
	Baud4800   BaudRate = 48
	Baud9600   BaudRate = 96
	Baud19200  BaudRate = 192
	Baud38400  BaudRate = 384
	Baud57600  BaudRate = 576
	Baud115200 BaudRate = 1152
)

func (b BaudRate) Baud() uint32 { return uint32(b) * 100 }

// ComputeBaudRate returns the UBRR value for the given baud rate, in normal
// speed mode.
func ComputeBaudRate(cpuHz uint32, baud BaudRate) uint16 {
	return uint16((cpuHz/100)/(16*uint32(baud)) - 1)
}

func computeDoubleSpeed(cpuHz uint32, baud BaudRate) uint16 {
	return uint16((cpuHz/100)/(8*uint32(baud)) - 1)
}

// Registers is the register file of a USART.
type Registers struct {
	UCSRA, UCSRB, UCSRC, UDR bits.Register[uint8]
	UBRR                     bits.Register[uint16]
}

// Vectors are the interrupt vectors of a USART.
type Vectors struct {
	RX, UDRE, TX hwdefs.Vector
}

type Handler = isr.Handler[USART]

// USART is an asynchronous serial port, always used with 8-bit frames.
type USART struct {
	regs  Registers
	ctrl  *isr.Controller
	cpuHz uint32
	baud  BaudRate

	readReady  isr.Line[USART]
	writeReady isr.Line[USART]
	dataSent   isr.Line[USART]
}

func New(ctrl *isr.Controller, regs Registers, vecs Vectors, cpuHz uint32) *USART {
	u := &USART{regs: regs, ctrl: ctrl, cpuHz: cpuHz}
	u.readReady = isr.NewLine(u, regs.UCSRB, bits.Bit7)
	u.dataSent = isr.NewLine(u, regs.UCSRB, bits.Bit6)
	u.writeReady = isr.NewLine(u, regs.UCSRB, bits.Bit5)
	ctrl.Attach(vecs.RX, u.readReady.Dispatch)
	ctrl.Attach(vecs.UDRE, u.writeReady.Dispatch)
	ctrl.Attach(vecs.TX, u.dataSent.Dispatch)
	return u
}

// Init configures the USART as an asynchronous 8-bit port and enables it.
func (u *USART) Init(mode Mode, baud BaudRate, stop StopBits, parity Parity) {
	bits.Add(u.regs.UCSRC, bits.Not(bits.Bit6), bits.Not(bits.Bit7))
	u.SetMode(mode)
	u.SetStopBits(stop)
	u.SetParity(parity)
	bits.Add(u.regs.UCSRC, bits.Bit1, bits.Bit2)
	bits.Add(u.regs.UCSRB, bits.Not(bits.Bit2))
	bits.Add(u.regs.UCSRA, bits.Not(bits.Bit1))
	u.SetBaudRate(baud)
}

// SetMode enables the receiver, the transmitter or both.
func (u *USART) SetMode(mode Mode) {
	switch mode {
	case Read:
		bits.Add(u.regs.UCSRB, bits.Not(bits.Bit3), bits.Bit4)
	case Write:
		bits.Add(u.regs.UCSRB, bits.Bit3, bits.Not(bits.Bit4))
	case ReadWrite:
		bits.Add(u.regs.UCSRB, bits.Bit3, bits.Bit4)
	case Disable:
		u.Disable()
	default:
		log.ModUSART.WarnZ("invalid mode").Stringer("mode", mode).End()
	}
}

// Disable turns off both the receiver and the transmitter.
func (u *USART) Disable() {
	bits.Add(u.regs.UCSRB, bits.Not(bits.Bit3), bits.Not(bits.Bit4))
}

func (u *USART) SetStopBits(stop StopBits) {
	switch stop {
	case Stop1:
		bits.Add(u.regs.UCSRC, bits.Not(bits.Bit3))
	case Stop2:
		bits.Add(u.regs.UCSRC, bits.Bit3)
	default:
		log.ModUSART.WarnZ("invalid stop bits").Uint("stop", uint(stop)).End()
	}
}

func (u *USART) SetParity(parity Parity) {
	switch parity {
	case ParityDisable:
		bits.Add(u.regs.UCSRC, bits.Not(bits.Bit4), bits.Not(bits.Bit5))
	case ParityEven:
		bits.Add(u.regs.UCSRC, bits.Not(bits.Bit4), bits.Bit5)
	case ParityOdd:
		bits.Add(u.regs.UCSRC, bits.Bit4, bits.Bit5)
	default:
		log.ModUSART.WarnZ("invalid parity").Uint("parity", uint(parity)).End()
	}
}

// SetBaudRate programs the baud rate generator for the current speed mode.
func (u *USART) SetBaudRate(baud BaudRate) {
	if baud == 0 {
		log.ModUSART.WarnZ("invalid baud rate").End()
		return
	}
	u.baud = baud
	ubrr := ComputeBaudRate(u.cpuHz, baud)
	if bits.Get(u.regs.UCSRA, bits.Bit1) {
		ubrr = computeDoubleSpeed(u.cpuHz, baud)
	}
	u.regs.UBRR.Store(ubrr)
	log.ModUSART.DebugZ("baud rate").Uint("baud", uint(baud.Baud())).Uint("ubrr", uint(ubrr)).End()
}

// SetDoubleSpeed halves the baud rate divider, and reprograms the baud rate
// previously set.
func (u *USART) SetDoubleSpeed(on bool) {
	bits.Set(u.regs.UCSRA, bits.Bit1, on)
	if u.baud != 0 {
		u.SetBaudRate(u.baud)
	}
}

// Read returns the oldest received byte.
func (u *USART) Read() byte {
	return u.regs.UDR.Load()
}

// Write queues b for transmission. A stale data sent flag is cleared first,
// so that IsDataSent reports the completion of this byte.
func (u *USART) Write(b byte) {
	u.ClearDataSent()
	u.regs.UDR.Store(b)
}

// ClearDataSent clears the transmit complete flag.
func (u *USART) ClearDataSent() {
	bits.Add(u.regs.UCSRA, bits.Bit6)
}

// IsReadReady reports unread data in the receive buffer.
func (u *USART) IsReadReady() bool { return bits.Get(u.regs.UCSRA, bits.Bit7) }

// IsDataSent reports that all written data has been shifted out.
func (u *USART) IsDataSent() bool { return bits.Get(u.regs.UCSRA, bits.Bit6) }

// IsWriteReady reports that the data register can take a new byte.
func (u *USART) IsWriteReady() bool { return bits.Get(u.regs.UCSRA, bits.Bit5) }

// IsFrameError reports a missing stop bit on the next received byte.
func (u *USART) IsFrameError() bool { return bits.Get(u.regs.UCSRA, bits.Bit4) }

// IsOverRunError reports received data lost because the buffer was full.
func (u *USART) IsOverRunError() bool { return bits.Get(u.regs.UCSRA, bits.Bit3) }

// IsParityError reports a parity check failure on the next received byte.
func (u *USART) IsParityError() bool { return bits.Get(u.regs.UCSRA, bits.Bit2) }

func (u *USART) IsError() bool {
	return u.IsFrameError() || u.IsOverRunError() || u.IsParityError()
}

// OnReadReady installs the handler called when a byte is received. A nil
// handler disables the interrupt.
func (u *USART) OnReadReady(h Handler) { u.readReady.Install(h) }

// OnDataSent installs the handler called when transmission completes.
func (u *USART) OnDataSent(h Handler) { u.dataSent.Install(h) }

// OnWriteReady installs the handler called while the data register is empty.
func (u *USART) OnWriteReady(h Handler) { u.writeReady.Install(h) }

func (u *USART) txEnabled() bool {
	if bits.Get(u.regs.UCSRB, bits.Bit3) {
		return true
	}
	log.ModUSART.WarnZ("print with transmitter disabled").End()
	return false
}

func (u *USART) printByte(c byte) {
	for !u.IsWriteReady() {
	}
	u.Write(c)
	for !u.IsDataSent() {
	}
}

// PrintByte sends c and waits until it has been shifted out. Interrupts are
// disabled meanwhile.
func (u *USART) PrintByte(c byte) {
	if !u.txEnabled() {
		return
	}
	u.ctrl.Atomic(func() { u.printByte(c) })
}

// Print sends s, waiting for each byte to be shifted out.
func (u *USART) Print(s string) {
	if !u.txEnabled() {
		return
	}
	u.ctrl.Atomic(func() {
		for i := range len(s) {
			u.printByte(s[i])
		}
	})
}

// PrintInt sends the decimal representation of v.
func (u *USART) PrintInt(v int) {
	u.Print(strconv.Itoa(v))
}
