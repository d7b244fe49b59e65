package mcp4822

import (
	"avrhal/emu/log"
	"avrhal/hw/gpio"
	"avrhal/mcu"
)

// VRef is the internal reference of the MCP4822, in volts.
const VRef = 2.048

type register struct {
	code   uint16
	gain2x bool
	active bool
}

// Model simulates an MCP4822 wired to the SPI bus of an MCU, to observe
// what a program sends it.
type Model struct {
	selected bool
	frame    []byte
	input    [2]register
	output   [2]register

	// Commands lists every command word received.
	Commands []uint16
}

// Attach connects a DAC model to the SPI bus of m, with its chip select on
// ss and its latch input on latch.
func Attach(m *mcu.MCU, ss, latch *gpio.Pin) *Model {
	d := &Model{}
	m.Chip.SPI.Connect(d)
	m.OnPinChange(ss, func(level bool) { d.Select(!level) })
	m.OnPinChange(latch, func(level bool) {
		if !level {
			d.Latch()
		}
	})
	return d
}

// Exchange receives a byte from the bus. The MCP4822 has no data output.
func (d *Model) Exchange(out uint8) uint8 {
	if d.selected {
		d.frame = append(d.frame, out)
	}
	return 0xFF
}

// Select asserts or releases chip select. A command is taken when chip
// select rises after exactly 16 bits.
func (d *Model) Select(on bool) {
	if on == d.selected {
		return
	}
	d.selected = on
	if on {
		d.frame = d.frame[:0]
		return
	}
	if len(d.frame) != 2 {
		log.ModSim.WarnZ("dac frame ignored").Int("bytes", len(d.frame)).End()
		return
	}
	w := uint16(d.frame[0])<<8 | uint16(d.frame[1])
	d.Commands = append(d.Commands, w)
	ch := 0
	if w&cmdChannelB != 0 {
		ch = 1
	}
	d.input[ch] = register{
		code:   w & valueMask,
		gain2x: w&cmdGain1x == 0,
		active: w&cmdActive != 0,
	}
}

// Latch copies the input registers to the outputs.
func (d *Model) Latch() { d.output = d.input }

// Code returns the value driving the output of ch.
func (d *Model) Code(ch Channel) uint16 { return d.output[ch].code }

// Volts returns the output voltage of ch, 0 when the channel is shut down.
func (d *Model) Volts(ch Channel) float64 {
	r := d.output[ch]
	if !r.active {
		return 0
	}
	v := VRef * float64(r.code) / 4096
	if r.gain2x {
		v *= 2
	}
	return v
}
