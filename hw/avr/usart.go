package avr

import (
	"avrhal/emu/log"
	"avrhal/hw/hwdefs"
	"avrhal/hw/hwio"
)

// UCSRnA bits.
const (
	RXC  = 7
	TXC  = 6
	UDRE = 5
	FE   = 4
	DOR  = 3
	UPE  = 2
	U2X  = 1
	MPCM = 0
)

// UCSRnB bits.
const (
	RXCIE = 7
	TXCIE = 6
	UDRIE = 5
	RXEN  = 4
	TXEN  = 3
	UCSZ2 = 2
)

// UCSRnC bits.
const (
	UMSEL1 = 7
	UMSEL0 = 6
	UPM1   = 5
	UPM0   = 4
	USBS   = 3
	UCSZ1  = 2
	UCSZ0  = 1
)

const rxFIFOSize = 2

// Frame is a character on the receive line.
type Frame struct {
	Data        uint8
	FrameError  bool
	ParityError bool
	overrun     bool
}

// USART is the asynchronous serial transceiver.
//
// The transmitter has the data register (UDRn) in front of a shift register:
// UDRE is set as soon as the data register is free, TXC once the shift
// register is empty with nothing left to send. The receiver keeps up to two
// characters; a character arriving on a full buffer is lost and the overrun
// error is reported on the last buffered one.
type USART struct {
	UCSRA hwio.Reg8  `hwio:"offset=0x0,reset=0x20,rwmask=0x43,rcb,wcb"`
	UCSRB hwio.Reg8  `hwio:"offset=0x1,rwmask=0xFD,wcb"`
	UCSRC hwio.Reg8  `hwio:"offset=0x2,reset=0x06"`
	UBRR  hwio.Reg16 `hwio:"offset=0x4,rwmask=0x0FFF"`
	UDR   hwio.Reg8  `hwio:"offset=0x6,rcb,pcb,wcb"`

	clk *Clock

	// Transmit is called with each character once it has been shifted out.
	Transmit func(b uint8)

	txBusy  bool
	txShift uint8
	txLeft  uint64
	udrFull bool
	udrData uint8

	line   []Frame
	rxLeft uint64
	rxFIFO []Frame
}

func NewUSART(clk *Clock) *USART {
	u := &USART{clk: clk}
	hwio.MustInitRegs(u)
	return u
}

// FrameBits returns the number of bits in a frame, start and stop bits
// included.
func (u *USART) FrameBits() int {
	c := u.UCSRC.Value
	data := 5 + int(hwio.Field(c, UCSZ0, 2))
	if hwio.GetBit(u.UCSRB.Value, UCSZ2) {
		data = 9
	}
	n := 1 + data + 1
	if hwio.GetBit(c, UPM1) {
		n++
	}
	if hwio.GetBit(c, USBS) {
		n++
	}
	return n
}

// BitCycles returns the duration of one bit, in clock cycles.
func (u *USART) BitCycles() uint64 {
	div := uint64(16)
	if hwio.GetBit(u.UCSRA.Value, U2X) {
		div = 8
	}
	return div * (uint64(u.UBRR.Value&0x0FFF) + 1)
}

// Baud returns the current baud rate.
func (u *USART) Baud() uint32 {
	return u.clk.Hz / uint32(u.BitCycles())
}

func (u *USART) frameCycles() uint64 {
	return uint64(u.FrameBits()) * u.BitCycles()
}

func (u *USART) ReadUCSRA(_ uint8) uint8 {
	u.clk.Poll()
	return u.UCSRA.Value
}

func (u *USART) WriteUCSRA(old, val uint8) {
	u.UCSRA.Value = clearW1C(old, val, 1<<TXC)
}

func (u *USART) WriteUCSRB(old, val uint8) {
	if hwio.GetBit(old, RXEN) && !hwio.GetBit(val, RXEN) {
		// Disabling the receiver flushes its buffer.
		u.rxFIFO = u.rxFIFO[:0]
		u.updateRxFlags()
	}
	log.ModSim.DebugZ("usart control").Hex8("ucsrb", val).End()
}

func (u *USART) WriteUDR(_, val uint8) {
	if !hwio.GetBit(u.UCSRB.Value, TXEN) {
		log.ModSim.DebugZ("usart write with transmitter off").Hex8("val", val).End()
		return
	}
	if !hwio.GetBit(u.UCSRA.Value, UDRE) {
		log.ModSim.WarnZ("usart write while data register is full, dropped").Hex8("val", val).End()
		return
	}
	if !u.txBusy {
		u.startTx(val)
		return
	}
	u.udrData = val
	u.udrFull = true
	hwio.ClearBit(&u.UCSRA.Value, UDRE)
}

func (u *USART) startTx(val uint8) {
	u.txShift = val
	u.txBusy = true
	u.txLeft = u.frameCycles()
}

// ReadUDR pops the oldest received character.
func (u *USART) ReadUDR(_ uint8) uint8 {
	if len(u.rxFIFO) == 0 {
		return u.UDR.Value
	}
	f := u.rxFIFO[0]
	u.rxFIFO = u.rxFIFO[1:]
	u.UDR.Value = f.Data
	u.updateRxFlags()
	return f.Data
}

func (u *USART) PeekUDR(_ uint8) uint8 {
	if len(u.rxFIFO) == 0 {
		return u.UDR.Value
	}
	return u.rxFIFO[0].Data
}

// Receive queues characters on the receive line.
func (u *USART) Receive(data ...uint8) {
	for _, b := range data {
		u.line = append(u.line, Frame{Data: b})
	}
}

// ReceiveFrame queues a character, possibly with line errors.
func (u *USART) ReceiveFrame(f Frame) {
	f.overrun = false
	u.line = append(u.line, f)
}

func (u *USART) updateRxFlags() {
	a := &u.UCSRA.Value
	if len(u.rxFIFO) == 0 {
		hwio.ClearBits(a, 1<<RXC|1<<FE|1<<DOR|1<<UPE)
		return
	}
	f := u.rxFIFO[0]
	hwio.SetBit(a, RXC)
	hwio.PutBit(a, FE, f.FrameError)
	hwio.PutBit(a, DOR, f.overrun)
	hwio.PutBit(a, UPE, f.ParityError)
}

func (u *USART) Step(cycles uint64) {
	u.stepTx(cycles)
	u.stepRx(cycles)
}

func (u *USART) stepTx(cycles uint64) {
	for u.txBusy && cycles > 0 {
		if cycles < u.txLeft {
			u.txLeft -= cycles
			return
		}
		cycles -= u.txLeft
		if u.Transmit != nil {
			u.Transmit(u.txShift)
		}
		log.ModSim.DebugZ("usart tx").Hex8("data", u.txShift).End()

		if u.udrFull {
			u.udrFull = false
			u.startTx(u.udrData)
			hwio.SetBit(&u.UCSRA.Value, UDRE)
			continue
		}
		u.txBusy = false
		hwio.SetBit(&u.UCSRA.Value, TXC)
	}
}

func (u *USART) stepRx(cycles uint64) {
	if !hwio.GetBit(u.UCSRB.Value, RXEN) {
		u.line = u.line[:0]
		u.rxLeft = 0
		return
	}
	for len(u.line) > 0 && cycles > 0 {
		if u.rxLeft == 0 {
			u.rxLeft = u.frameCycles()
		}
		if cycles < u.rxLeft {
			u.rxLeft -= cycles
			return
		}
		cycles -= u.rxLeft
		u.rxLeft = 0

		f := u.line[0]
		u.line = u.line[1:]
		if len(u.rxFIFO) == rxFIFOSize {
			u.rxFIFO[rxFIFOSize-1].overrun = true
			log.ModSim.DebugZ("usart overrun").Hex8("lost", f.Data).End()
		} else {
			u.rxFIFO = append(u.rxFIFO, f)
		}
		u.updateRxFlags()
	}
}

// Sources returns the interrupt sources of the USART.
func (u *USART) Sources() []VectorSource {
	return []VectorSource{
		{hwdefs.USARTRX, &flagSource{flag: &u.UCSRA, fbit: RXC, mask: &u.UCSRB, mbit: RXCIE, level: true}},
		{hwdefs.USARTUDRE, &flagSource{flag: &u.UCSRA, fbit: UDRE, mask: &u.UCSRB, mbit: UDRIE, level: true}},
		{hwdefs.USARTTX, &flagSource{flag: &u.UCSRA, fbit: TXC, mask: &u.UCSRB, mbit: TXCIE}},
	}
}

// Pending reports whether characters are still being sent.
func (u *USART) Pending() bool { return u.txBusy || u.udrFull }

func (u *USART) Reset() {
	hwio.ResetRegs(u)
	u.txBusy, u.udrFull = false, false
	u.line, u.rxFIFO = nil, nil
	u.rxLeft = 0
}
