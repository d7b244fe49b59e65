// Package gpio drives digital I/O pins.
package gpio

import (
	"fmt"

	"avrhal/emu/log"
	"avrhal/hw/bits"
)

type Mode uint8

const (
	Input Mode = iota
	Output
	InputPullUp
)

func (m Mode) String() string {
	switch m {
	case Input:
		return "input"
	case Output:
		return "output"
	case InputPullUp:
		return "input-pullup"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// ParseMode returns the mode named s.
func ParseMode(s string) (Mode, error) {
	for m := Input; m <= InputPullUp; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("invalid pin mode %q", s)
}

// Port is the register file of an I/O port. Writing ones to In toggles the
// matching bits of Out when HasToggle is set.
type Port struct {
	Name         string
	In, Dir, Out bits.Register[uint8]
	HasToggle    bool
}

// Pin is one pin of a port.
type Pin struct {
	name string
	port *Port
	bit  bits.Bit
}

func New(name string, port *Port, bit bits.Bit) *Pin {
	return &Pin{name: name, port: port, bit: bit}
}

func (p *Pin) Name() string   { return p.name }
func (p *Pin) Bit() bits.Bit  { return p.bit }
func (p *Pin) Port() *Port    { return p.port }
func (p *Pin) String() string { return fmt.Sprintf("%s(%s.%d)", p.name, p.port.Name, p.bit) }

// SetMode configures the pin direction. Unlike a bare DDR write, Input also
// clears the PORT bit, so a pin switched from InputPullUp (or from a high
// output) floats. Drivers that turn a pin into an input, such as the SPI
// master with MISO, drop its pull-up as well.
func (p *Pin) SetMode(m Mode) {
	switch m {
	case Input:
		bits.Add(p.port.Dir, bits.Not(p.bit))
		bits.Add(p.port.Out, bits.Not(p.bit))
	case Output:
		bits.Add(p.port.Dir, p.bit)
	case InputPullUp:
		bits.Add(p.port.Dir, bits.Not(p.bit))
		bits.Add(p.port.Out, p.bit)
	default:
		log.ModGPIO.WarnZ("invalid pin mode").String("pin", p.name).Stringer("mode", m).End()
		return
	}
	log.ModGPIO.DebugZ("mode").String("pin", p.name).Stringer("mode", m).End()
}

// Mode returns the current configuration of the pin.
func (p *Pin) Mode() Mode {
	switch {
	case bits.Get(p.port.Dir, p.bit):
		return Output
	case bits.Get(p.port.Out, p.bit):
		return InputPullUp
	}
	return Input
}

// Write sets the output level. On an input, it toggles the pull-up.
func (p *Pin) Write(v bool) {
	bits.Set(p.port.Out, p.bit, v)
}

// Read samples the level of the pin.
func (p *Pin) Read() bool {
	return bits.Get(p.port.In, p.bit)
}

// ReadOutput returns the level last written to the pin.
func (p *Pin) ReadOutput() bool {
	return bits.Get(p.port.Out, p.bit)
}

// Toggle inverts the output level. With a toggle register this is a single
// write, which can't race with interrupt handlers updating other pins.
func (p *Pin) Toggle() {
	if p.port.HasToggle {
		bits.Assign(p.port.In, p.bit)
		return
	}
	bits.Toggle(p.port.Out, p.bit)
}
