package avr

import (
	"avrhal/emu/log"
	"avrhal/hw/chip"
	"avrhal/hw/hwio"
)

// Port is an 8-bit I/O port.
//
// Pins configured as inputs read the level driven from outside the chip, or
// high when floating with the pull-up on (PORTx bit set); floating pins
// without pull-up read low. Writing ones to PINx toggles the PORTx bits.
type Port struct {
	ID chip.Port

	PIN  hwio.Reg8 `hwio:"offset=0x0,rcb,pcb,wcb"`
	DDR  hwio.Reg8 `hwio:"offset=0x1,wcb"`
	PORT hwio.Reg8 `hwio:"offset=0x2,wcb"`

	clk *Clock

	ext, driven     uint8 // external levels, and which pins are driven
	alt, altLevel   uint8 // outputs taken over by a peripheral
	levels          uint8 // last computed pin levels
	changeListeners []func(bit uint8, level bool)
}

func NewPort(id chip.Port, clk *Clock) *Port {
	p := &Port{ID: id, clk: clk}
	hwio.MustInitRegs(p)
	p.PIN.Name = "PIN" + string(rune(id))
	p.DDR.Name = "DDR" + string(rune(id))
	p.PORT.Name = "PORT" + string(rune(id))
	return p
}

// Levels returns the logic level of the 8 pins.
func (p *Port) Levels() uint8 {
	dir := p.DDR.Value
	out := p.PORT.Value&^p.alt | p.altLevel&p.alt
	in := p.ext&p.driven | p.PORT.Value&^p.driven
	return out&dir | in&^dir
}

// Level returns the level of one pin.
func (p *Port) Level(bit uint8) bool { return hwio.GetBit(p.Levels(), uint(bit)) }

// IsOutput reports whether the pin is configured as an output.
func (p *Port) IsOutput(bit uint8) bool { return hwio.GetBit(p.DDR.Value, uint(bit)) }

// ReadPIN samples the pins. Polling an input costs cycles.
func (p *Port) ReadPIN(_ uint8) uint8 {
	p.clk.Poll()
	p.PIN.Value = p.Levels()
	return p.PIN.Value
}

func (p *Port) PeekPIN(_ uint8) uint8 { return p.Levels() }

func (p *Port) WritePIN(_, val uint8) {
	p.PORT.Value ^= val
	log.ModSim.DebugZ("pin toggle").
		Stringer("port", p.ID).
		Hex8("mask", val).
		Hex8("out", p.PORT.Value).
		End()
	p.update()
}

func (p *Port) WriteDDR(_, _ uint8)  { p.update() }
func (p *Port) WritePORT(_, _ uint8) { p.update() }

// Drive forces the external level of a pin, as a button or a wire would.
func (p *Port) Drive(bit uint8, level bool) {
	hwio.SetBit(&p.driven, uint(bit))
	hwio.PutBit(&p.ext, uint(bit), level)
	p.update()
}

// Release stops driving a pin from outside.
func (p *Port) Release(bit uint8) {
	hwio.ClearBit(&p.driven, uint(bit))
	p.update()
}

// SetAlt hands the output of a pin over to a peripheral, which then drives
// it at level whenever the pin is an output.
func (p *Port) SetAlt(bit uint8, level bool) {
	hwio.SetBit(&p.alt, uint(bit))
	hwio.PutBit(&p.altLevel, uint(bit), level)
	p.update()
}

// ReleaseAlt gives the pin output back to PORTx.
func (p *Port) ReleaseAlt(bit uint8) {
	hwio.ClearBit(&p.alt, uint(bit))
	p.update()
}

// OnChange registers fn to be called on every pin level change.
func (p *Port) OnChange(fn func(bit uint8, level bool)) {
	p.changeListeners = append(p.changeListeners, fn)
}

func (p *Port) update() {
	lv := p.Levels()
	changed := lv ^ p.levels
	p.levels = lv
	p.PIN.Value = lv
	if changed == 0 {
		return
	}
	for bit := range uint8(8) {
		if !hwio.GetBit(changed, uint(bit)) {
			continue
		}
		level := hwio.GetBit(lv, uint(bit))
		for _, fn := range p.changeListeners {
			fn(bit, level)
		}
	}
}

// Reset puts the registers back to zero. External drives are kept.
func (p *Port) Reset() {
	hwio.ResetRegs(p)
	p.alt, p.altLevel = 0, 0
	p.update()
}
