// Package chrono measures time between two points of a program with
// Timer0, counting counter overflows in an interrupt handler.
package chrono

import (
	"time"

	"avrhal/hw/isr"
	"avrhal/hw/timer"
	"avrhal/mcu"
)

type Chrono struct {
	t     *timer.Timer8
	irq   *isr.Controller
	hz    uint32
	clock timer.Clock

	cycles    uint16
	overflows uint16
}

func New(m *mcu.MCU) *Chrono {
	return &Chrono{t: m.Timer0, irq: m.IRQ, hz: m.Hz()}
}

func (c *Chrono) reset() {
	c.t.ClearMatchA()
	c.t.ClearMatchB()
	c.t.ClearOverflow()
	c.t.WriteCounter(0)
}

// Start takes over Timer0 and starts counting at the rate of clock.
// Overflows are only counted while interrupts are enabled, which is up to
// the caller.
func (c *Chrono) Start(clock timer.Clock) {
	c.irq.Atomic(func() {
		c.t.SetClock(timer.ClockStop)
		c.t.SetCounterMode(timer.WaveNormalTopNormal)
		c.t.SetPinModeA(timer.PinDisable)
		c.t.SetPinModeB(timer.PinDisable)
		c.reset()
		c.t.OnOverflow(func(*timer.Timer8) { c.overflows++ })
		c.cycles, c.overflows = 0, 0
		c.clock = clock
	})
	c.t.SetClock(clock)
}

// Stop stops the timer and records the counter.
func (c *Chrono) Stop() {
	defer c.irq.Suspend()()
	c.t.SetClock(timer.ClockStop)
	c.cycles = uint16(c.t.ReadCounter())
	c.reset()
	c.t.OnOverflow(nil)
}

// Cycles returns the counter value read by Stop, in timer ticks.
func (c *Chrono) Cycles() uint16 { return c.cycles }

// Overflows returns the number of times the counter wrapped between Start
// and Stop.
func (c *Chrono) Overflows() uint16 { return c.overflows }

// Ticks returns the measured time in timer ticks.
func (c *Chrono) Ticks() uint64 {
	return uint64(c.overflows)<<8 + uint64(c.cycles)
}

// Elapsed converts the measured time to a duration. It is 0 when the timer
// ran from an external clock.
func (c *Chrono) Elapsed() time.Duration {
	ticks := c.Ticks() * uint64(c.clock.Divider())
	hz := uint64(c.hz)
	return time.Duration(ticks/hz)*time.Second + time.Duration(ticks%hz*uint64(time.Second)/hz)
}
