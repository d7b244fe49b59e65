package avr

import (
	"avrhal/emu/log"
	"avrhal/hw/chip"
	"avrhal/hw/hwio"
	"avrhal/hw/isr"
)

// Chip is the ATmega328P silicon: its data space, clock, interrupt
// controller and peripherals.
type Chip struct {
	SRAM hwio.Mem  `hwio:"bank=0,offset=0x0,size=0x800"`
	SREG hwio.Reg8 `hwio:"bank=1,offset=0x0"`

	Bus   *hwio.Table
	Clock *Clock
	IRQ   *isr.Controller

	Ports  [3]*Port
	USART  *USART
	SPI    *SPI
	Timer0 *Timer8
	Timer1 *Timer16
	ADC    *ADC
}

// New builds the chip clocked at hz, with all registers mapped.
func New(hz uint32) *Chip {
	c := &Chip{}
	hwio.MustInitRegs(c)

	c.Bus = hwio.NewTable("data", chip.DataSize)
	c.Clock = NewClock(hz)
	c.IRQ = isr.NewController(&c.SREG)
	c.Clock.SetServicer(c.IRQ)

	c.Bus.MapBank(chip.SRAMBase, c, 0)
	c.Bus.MapBank(chip.SREG, c, 1)

	for i, id := range chip.Ports {
		p := NewPort(id, c.Clock)
		c.Bus.MapBank(id.Base(), p, 0)
		c.Ports[i] = p
	}

	c.USART = NewUSART(c.Clock)
	c.Bus.MapBank(chip.UCSR0A, c.USART, 0)

	c.SPI = NewSPI(c.Clock)
	c.Bus.MapBank(chip.SPCR, c.SPI, 0)

	c.Timer0 = NewTimer8("timer0", c.Clock, c.outputPin(chip.PinOC0A), c.outputPin(chip.PinOC0B))
	c.Bus.MapBank(chip.TCCR0A, c.Timer0, 0)
	c.Bus.MapBank(chip.TIFR0, c.Timer0, 1)
	c.Bus.MapBank(chip.TIMSK0, c.Timer0, 2)

	c.Timer1 = NewTimer16("timer1", c.Clock, c.outputPin(chip.PinOC1A), c.outputPin(chip.PinOC1B))
	c.Bus.MapBank(chip.TCCR1A, c.Timer1, 0)
	c.Bus.MapBank(chip.TIFR1, c.Timer1, 1)
	c.Bus.MapBank(chip.TIMSK1, c.Timer1, 2)

	c.ADC = NewADC(c.Clock)
	c.Bus.MapBank(chip.ADCL, c.ADC, 0)

	c.Port(chip.PinT0.Port).OnChange(func(bit uint8, level bool) {
		if bit == chip.PinT0.Bit {
			c.Timer0.Edge(level)
		}
	})
	c.Port(chip.PinT1.Port).OnChange(func(bit uint8, level bool) {
		if bit == chip.PinT1.Bit {
			c.Timer1.Edge(level)
		}
	})

	c.Clock.Attach(c.USART)
	c.Clock.Attach(c.SPI)
	c.Clock.Attach(c.Timer0)
	c.Clock.Attach(c.Timer1)
	c.Clock.Attach(c.ADC)

	var srcs []VectorSource
	srcs = append(srcs, c.Timer1.Sources()...)
	srcs = append(srcs, c.Timer0.Sources()...)
	srcs = append(srcs, c.SPI.Sources()...)
	srcs = append(srcs, c.USART.Sources()...)
	srcs = append(srcs, c.ADC.Sources()...)
	for _, vs := range srcs {
		c.IRQ.AttachSource(vs.Vector, vs.Source)
	}

	log.ModSim.InfoZ("chip ready").Uint("hz", uint(hz)).End()
	return c
}

func (c *Chip) outputPin(pp chip.PortPin) OutputPin {
	return OutputPin{Port: c.Port(pp.Port), Bit: pp.Bit}
}

// Port returns the port with the given letter, or nil.
func (c *Chip) Port(id chip.Port) *Port {
	if i := id.Index(); i >= 0 {
		return c.Ports[i]
	}
	return nil
}

// Reset puts every register back to its reset value and stops the clock
// count. Memory contents and external pin drives are kept.
func (c *Chip) Reset() {
	c.IRQ.Reset()
	c.SREG.Value = 0
	for _, p := range c.Ports {
		p.Reset()
	}
	c.USART.Reset()
	c.SPI.Reset()
	c.Timer0.Reset()
	c.Timer1.Reset()
	c.ADC.Reset()
	c.Clock.Reset()
}
