// Package avr models the ATmega328P peripherals behind the memory-mapped
// registers: ports, USART, SPI, timers and ADC, all advanced by a shared
// cycle clock.
//
// Status registers (the ones firmware polls) advance the clock when read, so
// busy-wait loops make progress, and pending interrupts are serviced right
// after every clock advance, the way the core takes interrupts between
// instructions.
package avr

import "time"

// Stepper is a device advanced by the clock.
type Stepper interface {
	Step(cycles uint64)
}

// Servicer runs pending interrupt vectors.
type Servicer interface {
	Service()
}

const (
	// DefaultPollCycles is the cost of one status register poll
	// (load, test, branch).
	DefaultPollCycles = 4

	// quantum bounds the number of cycles devices are stepped at once, so that
	// interrupts are serviced between periodic events.
	quantum = 32
)

// Clock is the system clock.
type Clock struct {
	Hz         uint32
	PollCycles uint64

	cycles uint64
	devs   []Stepper
	irq    Servicer
}

func NewClock(hz uint32) *Clock {
	return &Clock{Hz: hz, PollCycles: DefaultPollCycles}
}

// Attach adds a device stepped on each clock advance.
func (c *Clock) Attach(d Stepper) { c.devs = append(c.devs, d) }

// SetServicer sets what runs pending interrupts after each advance.
func (c *Clock) SetServicer(s Servicer) { c.irq = s }

// Cycles returns the number of cycles elapsed since reset.
func (c *Clock) Cycles() uint64 { return c.cycles }

// Advance runs the clock for n cycles.
func (c *Clock) Advance(n uint64) {
	for n > 0 {
		step := min(n, quantum)
		n -= step
		c.cycles += step
		for _, d := range c.devs {
			d.Step(step)
		}
		if c.irq != nil {
			c.irq.Service()
		}
	}
}

// Poll advances the clock by the cost of one status register poll.
func (c *Clock) Poll() { c.Advance(c.PollCycles) }

// Sleep advances the clock by d.
func (c *Clock) Sleep(d time.Duration) {
	c.Advance(c.CyclesIn(d))
}

// CyclesIn returns the number of cycles in d, 0 if d is negative.
func (c *Clock) CyclesIn(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	hz := uint64(c.Hz)
	return uint64(d/time.Second)*hz + uint64(d%time.Second)*hz/uint64(time.Second)
}

// Elapsed returns the time elapsed since reset.
func (c *Clock) Elapsed() time.Duration {
	hz := uint64(c.Hz)
	return time.Duration(c.cycles/hz)*time.Second + time.Duration(c.cycles%hz*uint64(time.Second)/hz)
}

func (c *Clock) Reset() { c.cycles = 0 }
