// Package spi drives the synchronous serial peripheral interface.
package spi

import (
	"avrhal/emu/log"
	"avrhal/hw/bits"
	"avrhal/hw/gpio"
	"avrhal/hw/hwdefs"
	"avrhal/hw/isr"
)

type Mode uint8

const (
	Master Mode = iota
	Slave
	Disable
)

type BitOrder uint8

const (
	MSBFirst BitOrder = iota
	LSBFirst
)

type ClockIdle uint8

const (
	ClockLow ClockIdle = iota
	ClockHigh
)

// ClockEdge is the SCK edge on which data is sampled.
type ClockEdge uint8

const (
	ClockLeading ClockEdge = iota
	ClockTrailing
)

type ClockDivider uint8

const (
	ClockDiv2 ClockDivider = iota
	ClockDiv4
	ClockDiv8
	ClockDiv16
	ClockDiv32
	ClockDiv64
	ClockDiv128
)

// Divider returns the value of the divider.
func (d ClockDivider) Divider() int { return 2 << d }

// Registers is the register file of an SPI.
type Registers struct {
	SPCR, SPSR, SPDR bits.Register[uint8]
}

// Pins are the pins used by the bus. Their direction depends on the mode.
type Pins struct {
	SCK, MISO, MOSI, SS *gpio.Pin
}

type Handler = isr.Handler[SPI]

type SPI struct {
	regs Registers
	pins Pins

	transferComplete isr.Line[SPI]
}

func New(ctrl *isr.Controller, regs Registers, pins Pins, vec hwdefs.Vector) *SPI {
	s := &SPI{regs: regs, pins: pins}
	s.transferComplete = isr.NewLine(s, regs.SPCR, bits.Bit7)
	ctrl.Attach(vec, s.transferComplete.Dispatch)
	return s
}

// SetMode configures the bus pins and enables the SPI as master or slave,
// or disables it.
func (s *SPI) SetMode(mode Mode) {
	switch mode {
	case Master:
		s.pins.SCK.SetMode(gpio.Output)
		s.pins.MISO.SetMode(gpio.Input)
		s.pins.MOSI.SetMode(gpio.Output)
		s.pins.SS.SetMode(gpio.Output)
		bits.Add(s.regs.SPCR, bits.Bit6, bits.Bit4)
	case Slave:
		s.pins.SCK.SetMode(gpio.Input)
		s.pins.MISO.SetMode(gpio.Output)
		s.pins.MOSI.SetMode(gpio.Input)
		s.pins.SS.SetMode(gpio.Input)
		bits.Add(s.regs.SPCR, bits.Bit6, bits.Not(bits.Bit4))
	case Disable:
		bits.Add(s.regs.SPCR, bits.Not(bits.Bit6))
	default:
		log.ModSPI.WarnZ("invalid mode").Uint("mode", uint(mode)).End()
	}
}

func (s *SPI) SetBitOrder(order BitOrder) {
	switch order {
	case MSBFirst:
		bits.Add(s.regs.SPCR, bits.Not(bits.Bit5))
	case LSBFirst:
		bits.Add(s.regs.SPCR, bits.Bit5)
	default:
		log.ModSPI.WarnZ("invalid bit order").Uint("order", uint(order)).End()
	}
}

func (s *SPI) SetClockIdle(idle ClockIdle) {
	switch idle {
	case ClockLow:
		bits.Add(s.regs.SPCR, bits.Not(bits.Bit3))
	case ClockHigh:
		bits.Add(s.regs.SPCR, bits.Bit3)
	default:
		log.ModSPI.WarnZ("invalid clock idle level").Uint("idle", uint(idle)).End()
	}
}

// SetClockEdge selects the sampling edge (clock phase).
func (s *SPI) SetClockEdge(edge ClockEdge) {
	switch edge {
	case ClockLeading:
		bits.Add(s.regs.SPCR, bits.Not(bits.Bit2))
	case ClockTrailing:
		bits.Add(s.regs.SPCR, bits.Bit2)
	default:
		log.ModSPI.WarnZ("invalid clock edge").Uint("edge", uint(edge)).End()
	}
}

// SetClockDivider sets the SCK frequency relative to the CPU clock.
func (s *SPI) SetClockDivider(div ClockDivider) {
	var spr [2]bits.Selector
	var double bool
	switch div {
	case ClockDiv2:
		spr, double = [2]bits.Selector{bits.Not(bits.Bit1), bits.Not(bits.Bit0)}, true
	case ClockDiv4:
		spr, double = [2]bits.Selector{bits.Not(bits.Bit1), bits.Not(bits.Bit0)}, false
	case ClockDiv8:
		spr, double = [2]bits.Selector{bits.Not(bits.Bit1), bits.Bit0}, true
	case ClockDiv16:
		spr, double = [2]bits.Selector{bits.Not(bits.Bit1), bits.Bit0}, false
	case ClockDiv32:
		spr, double = [2]bits.Selector{bits.Bit1, bits.Not(bits.Bit0)}, true
	case ClockDiv64:
		spr, double = [2]bits.Selector{bits.Bit1, bits.Not(bits.Bit0)}, false
	case ClockDiv128:
		spr, double = [2]bits.Selector{bits.Bit1, bits.Bit0}, false
	default:
		log.ModSPI.WarnZ("invalid clock divider").Uint("div", uint(div)).End()
		return
	}
	bits.Add(s.regs.SPCR, spr[:]...)
	bits.Set(s.regs.SPSR, bits.Bit0, double)
}

// Read returns the last byte received.
func (s *SPI) Read() byte { return s.regs.SPDR.Load() }

// Write starts a transfer when master, or preloads the byte sent to the
// master when slave.
func (s *SPI) Write(b byte) { s.regs.SPDR.Store(b) }

// Transfer sends b and waits for the byte clocked in meanwhile. Only valid
// in master mode, with no transfer complete handler installed: taking the
// interrupt clears the flag Transfer waits for.
func (s *SPI) Transfer(b byte) byte {
	if !bits.Get(s.regs.SPCR, bits.Bit6) || !bits.Get(s.regs.SPCR, bits.Bit4) {
		log.ModSPI.WarnZ("transfer while not master").End()
		return 0xFF
	}
	s.Write(b)
	for !s.IsTransferComplete() {
	}
	return s.Read()
}

func (s *SPI) IsTransferComplete() bool { return bits.Get(s.regs.SPSR, bits.Bit7) }

// IsCollision reports a write to the data register during a transfer.
func (s *SPI) IsCollision() bool { return bits.Get(s.regs.SPSR, bits.Bit6) }

// OnTransferComplete installs the handler called at the end of each
// transfer. A nil handler disables the interrupt.
func (s *SPI) OnTransferComplete(h Handler) { s.transferComplete.Install(h) }
