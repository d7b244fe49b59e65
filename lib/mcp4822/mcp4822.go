// Package mcp4822 drives an MCP4822 dual 12-bit DAC on the SPI bus. Writes
// are sent in the background by the transfer-complete interrupt; the chip
// select line frames each 16-bit command and a separate latch pin moves
// the received values to the outputs.
package mcp4822

import (
	"avrhal/emu/log"
	"avrhal/hw/chip"
	"avrhal/hw/gpio"
	"avrhal/hw/isr"
	"avrhal/hw/spi"
	"avrhal/mcu"
)

type Channel uint8

const (
	ChannelA Channel = iota
	ChannelB
)

// Command word bits.
const (
	cmdChannelB = 1 << 15
	cmdGain1x   = 1 << 13
	cmdActive   = 1 << 12
	valueMask   = 0x0FFF
)

// MaxValue is the largest code of the 12-bit converters.
const MaxValue = valueMask

// Command returns the command word loading value in the input register of
// ch, with a 2x gain and the output enabled.
func Command(ch Channel, value uint16) uint16 {
	w := uint16(cmdActive) | value&valueMask
	if ch == ChannelB {
		w |= cmdChannelB
	}
	return w
}

type DAC struct {
	spi   *spi.SPI
	irq   *isr.Controller
	ss    *gpio.Pin
	latch *gpio.Pin

	frames [4]byte
	n      int
	state  int
}

// New returns the driver of a DAC selected by the SS pin, whose latch input
// is wired to latch. latch must not be one of the SPI pins.
func New(m *mcu.MCU, latch *gpio.Pin) *DAC {
	return &DAC{
		spi:   m.SPI,
		irq:   m.IRQ,
		ss:    m.PortPin(chip.PinSS),
		latch: latch,
	}
}

// Init configures the SPI as a mode 3 master at the fastest clock and
// deselects the DAC.
func (d *DAC) Init() {
	d.irq.Atomic(func() {
		d.spi.SetMode(spi.Master)
		d.spi.SetBitOrder(spi.MSBFirst)
		d.spi.SetClockIdle(spi.ClockHigh)
		d.spi.SetClockEdge(spi.ClockTrailing)
		d.spi.SetClockDivider(spi.ClockDiv2)
		d.spi.OnTransferComplete(nil)
	})

	d.ss.Write(true)
	d.latch.SetMode(gpio.Output)
	d.latch.Write(true)
}

// Busy reports whether a write is still being sent.
func (d *DAC) Busy() bool { return d.state < d.n }

func (d *DAC) pulseLatch() {
	d.latch.Write(false)
	d.latch.Write(true)
}

func (d *DAC) start(cmds ...uint16) {
	if d.Busy() {
		log.ModSPI.WarnZ("dac write while busy").Int("sent", d.state).Int("frames", d.n).End()
	}
	// The values sent by the previous write reach the outputs now.
	d.pulseLatch()
	d.spi.OnTransferComplete(nil)

	d.n, d.state = 0, 0
	for _, c := range cmds {
		d.frames[d.n] = byte(c >> 8)
		d.frames[d.n+1] = byte(c)
		d.n += 2
	}
	d.spi.OnTransferComplete(d.next)
	d.ss.Write(false)
	d.spi.Write(d.frames[0])
}

func (d *DAC) next(s *spi.SPI) {
	d.state++
	switch {
	case d.state == d.n:
		d.ss.Write(true)
		s.OnTransferComplete(nil)
	case d.state%2 == 0:
		d.ss.Write(true)
		d.ss.Write(false)
		s.Write(d.frames[d.state])
	default:
		s.Write(d.frames[d.state])
	}
}

// WriteChannel starts sending a 12-bit value to one channel. It shows on
// the output at the next write, which pulses the latch first, or after
// Latch.
func (d *DAC) WriteChannel(ch Channel, value uint16) {
	switch ch {
	case ChannelA, ChannelB:
	default:
		log.ModSPI.WarnZ("invalid dac channel").Uint("ch", uint(ch)).End()
		return
	}
	d.start(Command(ch, value))
}

// WriteBoth starts sending a value to each channel.
func (d *DAC) WriteBoth(a, b uint16) {
	d.start(Command(ChannelA, a), Command(ChannelB, b))
}

// Latch moves the values received by the DAC to its outputs.
func (d *DAC) Latch() { d.pulseLatch() }
