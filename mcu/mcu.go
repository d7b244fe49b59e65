// Package mcu assembles an ATmega328P: the silicon model and the drivers of
// its peripherals, with the pin names of the board it sits on.
package mcu

import (
	"fmt"
	"time"

	"avrhal/emu/log"
	"avrhal/hw/adc"
	"avrhal/hw/avr"
	"avrhal/hw/bits"
	"avrhal/hw/chip"
	"avrhal/hw/gpio"
	"avrhal/hw/hwdefs"
	"avrhal/hw/isr"
	"avrhal/hw/spi"
	"avrhal/hw/timer"
	"avrhal/hw/usart"
)

// MCU owns one instance of each peripheral driver.
type MCU struct {
	Board *chip.Board
	Chip  *avr.Chip
	IRQ   *isr.Controller

	USART0 *usart.USART
	SPI    *spi.SPI
	Timer0 *timer.Timer8
	Timer1 *timer.Timer16
	ADC    *adc.ADC

	ports map[chip.Port]*gpio.Port
	pins  map[chip.PortPin]*gpio.Pin
}

// New returns the MCU of the named built-in board, clocked at hz, or at the
// board frequency if hz is 0.
func New(board string, hz uint32) (*MCU, error) {
	b, err := chip.LoadBoard(board)
	if err != nil {
		return nil, err
	}
	return NewWithBoard(b, hz), nil
}

func NewWithBoard(b *chip.Board, hz uint32) *MCU {
	if hz == 0 {
		hz = b.Frequency
	}
	c := avr.New(hz)
	m := &MCU{
		Board: b,
		Chip:  c,
		IRQ:   c.IRQ,
		ports: make(map[chip.Port]*gpio.Port),
		pins:  make(map[chip.PortPin]*gpio.Pin),
	}

	for _, p := range c.Ports {
		m.ports[p.ID] = &gpio.Port{
			Name:      p.ID.String(),
			In:        &p.PIN,
			Dir:       &p.DDR,
			Out:       &p.PORT,
			HasToggle: true,
		}
	}

	u := c.USART
	m.USART0 = usart.New(c.IRQ, usart.Registers{
		UCSRA: &u.UCSRA,
		UCSRB: &u.UCSRB,
		UCSRC: &u.UCSRC,
		UDR:   &u.UDR,
		UBRR:  &u.UBRR,
	}, usart.Vectors{
		RX:   hwdefs.USARTRX,
		UDRE: hwdefs.USARTUDRE,
		TX:   hwdefs.USARTTX,
	}, hz)

	s := c.SPI
	m.SPI = spi.New(c.IRQ, spi.Registers{
		SPCR: &s.SPCR,
		SPSR: &s.SPSR,
		SPDR: &s.SPDR,
	}, spi.Pins{
		SCK:  m.PortPin(chip.PinSCK),
		MISO: m.PortPin(chip.PinMISO),
		MOSI: m.PortPin(chip.PinMOSI),
		SS:   m.PortPin(chip.PinSS),
	}, hwdefs.SPISTC)

	t0 := c.Timer0
	m.Timer0 = timer.New("timer0", c.IRQ, timer.Registers[uint8]{
		TCCRA: &t0.TCCRA,
		TCCRB: &t0.TCCRB,
		TCNT:  &t0.TCNT,
		OCRA:  &t0.OCRA,
		OCRB:  &t0.OCRB,
		TIMSK: &t0.TIMSK,
		TIFR:  &t0.TIFR,
	}, timer.Vectors{
		CompA: hwdefs.Timer0CompA,
		CompB: hwdefs.Timer0CompB,
		Ovf:   hwdefs.Timer0Ovf,
	})

	t1 := c.Timer1
	m.Timer1 = timer.New("timer1", c.IRQ, timer.Registers[uint16]{
		TCCRA: &t1.TCCRA,
		TCCRB: &t1.TCCRB,
		TCNT:  &t1.TCNT,
		OCRA:  &t1.OCRA,
		OCRB:  &t1.OCRB,
		ICR:   &t1.ICR,
		TIMSK: &t1.TIMSK,
		TIFR:  &t1.TIFR,
	}, timer.Vectors{
		CompA: hwdefs.Timer1CompA,
		CompB: hwdefs.Timer1CompB,
		Ovf:   hwdefs.Timer1Ovf,
	})

	a := c.ADC
	m.ADC = adc.New(c.IRQ, adc.Registers{
		ADMUX:  &a.ADMUX,
		ADCSRA: &a.ADCSRA,
		ADCSRB: &a.ADCSRB,
		DIDR0:  &a.DIDR0,
		ADC:    &a.ADC,
	}, hwdefs.ADC)

	log.ModEmu.InfoZ("mcu ready").String("board", b.Name).Uint("hz", uint(hz)).End()
	return m
}

// PortPin returns the driver of a chip pin.
func (m *MCU) PortPin(pp chip.PortPin) *gpio.Pin {
	if p, ok := m.pins[pp]; ok {
		return p
	}
	name := pp.String()
	for _, pd := range m.Board.Pins {
		if pd.PortPin() == pp {
			name = pd.Name
			break
		}
	}
	p := gpio.New(name, m.ports[pp.Port], bits.Bit(pp.Bit))
	m.pins[pp] = p
	return p
}

// Pin returns the driver of the board pin called name (name, alias or
// package pin number).
func (m *MCU) Pin(name string) (*gpio.Pin, error) {
	pd, err := m.Board.Lookup(name)
	if err != nil {
		return nil, err
	}
	return m.PortPin(pd.PortPin()), nil
}

// MustPin is like Pin but panics if the pin does not exist.
func (m *MCU) MustPin(name string) *gpio.Pin {
	p, err := m.Pin(name)
	if err != nil {
		panic(err)
	}
	return p
}

// Port returns the silicon model of the port a pin belongs to, to drive the
// pin from outside.
func (m *MCU) Port(p *gpio.Pin) *avr.Port {
	for id, gp := range m.ports {
		if gp == p.Port() {
			return m.Chip.Port(id)
		}
	}
	panic(fmt.Sprintf("pin %s does not belong to this mcu", p))
}

// Drive sets the level applied on a pin from outside the chip.
func (m *MCU) Drive(p *gpio.Pin, level bool) {
	m.Port(p).Drive(uint8(p.Bit()), level)
}

// Release stops driving a pin from outside.
func (m *MCU) Release(p *gpio.Pin) {
	m.Port(p).Release(uint8(p.Bit()))
}

// Level returns the electrical level of a pin.
func (m *MCU) Level(p *gpio.Pin) bool {
	return m.Port(p).Level(uint8(p.Bit()))
}

// OnPinChange registers fn to be called when the level of p changes.
func (m *MCU) OnPinChange(p *gpio.Pin, fn func(level bool)) {
	bit := uint8(p.Bit())
	m.Port(p).OnChange(func(b uint8, level bool) {
		if b == bit {
			fn(level)
		}
	})
}

func (m *MCU) Hz() uint32 { return m.Chip.Clock.Hz }

// Idle burns the cycles of one iteration of a busy loop that touches no
// register.
func (m *MCU) Idle() { m.Chip.Clock.Poll() }

// Step runs the chip for the given number of cycles.
func (m *MCU) Step(cycles uint64) { m.Chip.Clock.Advance(cycles) }

// Sleep runs the chip for d.
func (m *MCU) Sleep(d time.Duration) { m.Chip.Clock.Sleep(d) }

func (m *MCU) Elapsed() time.Duration { return m.Chip.Clock.Elapsed() }

// Reset puts the chip back in its reset state. Installed handlers are kept
// but their interrupts are disabled.
func (m *MCU) Reset() {
	m.Chip.Reset()
	log.ModEmu.InfoZ("reset").End()
}
