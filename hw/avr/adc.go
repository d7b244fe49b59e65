package avr

import (
	"math"

	"avrhal/emu/log"
	"avrhal/hw/chip"
	"avrhal/hw/hwdefs"
	"avrhal/hw/hwio"
)

// ADCSRA bits.
const (
	ADEN  = 7
	ADSC  = 6
	ADATE = 5
	ADIF  = 4
	ADIE  = 3
)

// ADMUX bits.
const (
	REFS1 = 7
	REFS0 = 6
	ADLAR = 5
)

// Special ADC inputs (MUX3:0).
const (
	MuxTemperature = 0x8
	MuxBandgap     = 0xE
	MuxGround      = 0xF
)

const (
	conversionCycles      = 13
	firstConversionCycles = 25
)

// ADC is the 10-bit successive approximation converter.
type ADC struct {
	ADC    hwio.Reg16 `hwio:"offset=0x0,readonly"`
	ADCSRA hwio.Reg8  `hwio:"offset=0x2,rcb,wcb"`
	ADCSRB hwio.Reg8  `hwio:"offset=0x3,rwmask=0x47"`
	ADMUX  hwio.Reg8  `hwio:"offset=0x4,rwmask=0xEF"`
	DIDR0  hwio.Reg8  `hwio:"offset=0x6,rwmask=0x3F"`

	clk *Clock

	// Supply (AVCC) and external reference (AREF) voltages.
	AVCC, AREF float64
	// Die temperature in °C.
	Temperature float64

	inputs     [8]float64
	converting bool
	first      bool
	left       uint64
}

func NewADC(clk *Clock) *ADC {
	a := &ADC{clk: clk, AVCC: 5, AREF: 5, Temperature: 25}
	hwio.MustInitRegs(a)
	return a
}

// SetVoltage sets the voltage applied on an analog input.
func (a *ADC) SetVoltage(ch int, volts float64) {
	a.inputs[ch&7] = volts
}

func (a *ADC) Voltage(ch int) float64 { return a.inputs[ch&7] }

// Prescaler returns the ADC clock divider.
func (a *ADC) Prescaler() uint64 {
	ps := hwio.Field(a.ADCSRA.Value, 0, 3)
	if ps == 0 {
		return 2
	}
	return 1 << ps
}

func (a *ADC) ReadADCSRA(_ uint8) uint8 {
	a.clk.Poll()
	return a.ADCSRA.Value
}

func (a *ADC) WriteADCSRA(old, val uint8) {
	v := clearW1C(old, val, 1<<ADIF)

	switch {
	case !hwio.GetBit(v, ADEN):
		a.converting = false
		hwio.ClearBit(&v, ADSC)
	case !hwio.GetBit(old, ADEN):
		a.first = true
	}

	if a.converting {
		// ADSC reads as one until the conversion completes.
		hwio.SetBit(&v, ADSC)
	} else if hwio.GetBit(v, ADSC) {
		n := uint64(conversionCycles)
		if a.first {
			n = firstConversionCycles
			a.first = false
		}
		a.converting = true
		a.left = n * a.Prescaler()
		log.ModSim.DebugZ("adc start").Hex8("admux", a.ADMUX.Value).Uint("cycles", uint(a.left)).End()
	}
	a.ADCSRA.Value = v
}

// input returns the voltage selected by the multiplexer.
func (a *ADC) input() float64 {
	switch mux := hwio.Field(a.ADMUX.Value, 0, 4); {
	case mux < 8:
		return a.inputs[mux]
	case mux == MuxTemperature:
		return chip.TempSensorVolts + (a.Temperature-25)*chip.TempSensorVPerDeg
	case mux == MuxBandgap:
		return chip.BandgapVolts
	default:
		return 0
	}
}

func (a *ADC) reference() float64 {
	switch hwio.Field(a.ADMUX.Value, REFS0, 2) {
	case 0:
		return a.AREF
	case 3:
		return chip.BandgapVolts
	default:
		return a.AVCC
	}
}

// Sample converts the selected input with the selected reference.
func (a *ADC) Sample() uint16 {
	ref := a.reference()
	if ref <= 0 {
		return 0
	}
	v := math.Floor(a.input() * 1024 / ref)
	return uint16(min(max(v, 0), 1023))
}

func (a *ADC) Step(cycles uint64) {
	if !a.converting {
		return
	}
	if cycles < a.left {
		a.left -= cycles
		return
	}
	a.converting = false
	res := a.Sample()
	if hwio.GetBit(a.ADMUX.Value, ADLAR) {
		res <<= 6
	}
	a.ADC.Value = res
	hwio.ClearBit(&a.ADCSRA.Value, ADSC)
	hwio.SetBit(&a.ADCSRA.Value, ADIF)
	log.ModSim.DebugZ("adc done").Hex16("value", res).End()
}

func (a *ADC) Sources() []VectorSource {
	return []VectorSource{
		{hwdefs.ADC, &flagSource{flag: &a.ADCSRA, fbit: ADIF, mask: &a.ADCSRA, mbit: ADIE}},
	}
}

func (a *ADC) Reset() {
	hwio.ResetRegs(a)
	a.converting, a.first = false, false
}
