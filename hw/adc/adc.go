// Package adc drives the analog to digital converter.
package adc

import (
	"fmt"

	"avrhal/emu/log"
	"avrhal/hw/bits"
	"avrhal/hw/hwdefs"
	"avrhal/hw/isr"
)

type Input uint8

const (
	PinAdc0 Input = iota
	PinAdc1
	PinAdc2
	PinAdc3
	PinAdc4
	PinAdc5
	Temperature
	Internal
	Ground
)

func (in Input) String() string {
	switch {
	case in <= PinAdc5:
		return fmt.Sprintf("adc%d", uint8(in))
	case in == Temperature:
		return "temperature"
	case in == Internal:
		return "internal"
	case in == Ground:
		return "ground"
	}
	return fmt.Sprintf("Input(%d)", uint8(in))
}

// mux returns the MUX3:0 value selecting in.
func (in Input) mux() (uint8, bool) {
	switch {
	case in <= PinAdc5:
		return uint8(in), true
	case in == Temperature:
		return 0b1000, true
	case in == Internal:
		return 0b1110, true
	case in == Ground:
		return 0b1111, true
	}
	return 0, false
}

type Reference uint8

const (
	ReferenceSupply Reference = iota
	ReferenceExternal
	ReferenceInternal
)

func (r Reference) String() string {
	switch r {
	case ReferenceSupply:
		return "supply"
	case ReferenceExternal:
		return "external"
	case ReferenceInternal:
		return "internal"
	}
	return fmt.Sprintf("Reference(%d)", uint8(r))
}

// Registers is the register file of the ADC.
type Registers struct {
	ADMUX, ADCSRA, ADCSRB, DIDR0 bits.Register[uint8]
	ADC                          bits.Register[uint16]
}

type Handler = isr.Handler[ADC]

type ADC struct {
	regs Registers

	conversionComplete isr.Line[ADC]
}

func New(ctrl *isr.Controller, regs Registers, vec hwdefs.Vector) *ADC {
	a := &ADC{regs: regs}
	a.conversionComplete = isr.NewLine(a, regs.ADCSRA, bits.Bit3)
	ctrl.Attach(vec, a.conversionComplete.Dispatch)
	return a
}

// SetInput selects the converted input.
func (a *ADC) SetInput(in Input) {
	mux, ok := in.mux()
	if !ok {
		log.ModADC.WarnZ("invalid input").Stringer("input", in).End()
		return
	}
	bits.Add(a.regs.ADMUX,
		bits.Is(bits.Bit3, mux&8 != 0),
		bits.Is(bits.Bit2, mux&4 != 0),
		bits.Is(bits.Bit1, mux&2 != 0),
		bits.Is(bits.Bit0, mux&1 != 0))
}

// SetReference selects the voltage reference.
func (a *ADC) SetReference(ref Reference) {
	switch ref {
	case ReferenceExternal:
		bits.Add(a.regs.ADMUX, bits.Not(bits.Bit7), bits.Not(bits.Bit6))
	case ReferenceSupply:
		bits.Add(a.regs.ADMUX, bits.Not(bits.Bit7), bits.Bit6)
	case ReferenceInternal:
		bits.Add(a.regs.ADMUX, bits.Bit7, bits.Bit6)
	default:
		log.ModADC.WarnZ("invalid reference").Uint("ref", uint(ref)).End()
	}
}

// Enable powers the ADC on with right adjusted results and a prescaler of
// 128.
func (a *ADC) Enable() {
	bits.Add(a.regs.ADMUX, bits.Not(bits.Bit5))
	bits.Add(a.regs.ADCSRA, bits.Bit7, bits.Bit2, bits.Bit1, bits.Bit0)
}

func (a *ADC) Disable() {
	bits.Add(a.regs.ADCSRA, bits.Not(bits.Bit7))
}

func (a *ADC) StartConversion() {
	bits.Add(a.regs.ADCSRA, bits.Bit6)
}

func (a *ADC) IsConverting() bool {
	return bits.Get(a.regs.ADCSRA, bits.Bit6)
}

// ReadValue returns the last conversion result.
func (a *ADC) ReadValue() uint16 {
	return a.regs.ADC.Load()
}

// SetDigitalInput enables or disables the digital input buffer of an analog
// pin. Disabling it reduces power consumption when the pin is only used as
// an analog input.
func (a *ADC) SetDigitalInput(in Input, enabled bool) {
	if in > PinAdc5 {
		log.ModADC.WarnZ("no digital input").Stringer("input", in).End()
		return
	}
	bits.Set(a.regs.DIDR0, bits.Bit(in), !enabled)
}

// OnConversionComplete installs the handler called at the end of each
// conversion. A nil handler disables the interrupt.
func (a *ADC) OnConversionComplete(h Handler) { a.conversionComplete.Install(h) }
