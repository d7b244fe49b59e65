// Package isr implements interrupt dispatch: per-peripheral handler lines,
// and the controller owning the vector table and the global interrupt flag.
package isr

import (
	"avrhal/emu/log"
	"avrhal/hw/bits"
	"avrhal/hw/hwdefs"
)

// GlobalEnable is the I bit of the status register.
const GlobalEnable = bits.Bit7

// Source is the hardware side of a vector: it reports whether the interrupt
// condition is present and enabled, and clears whatever the chip clears
// when the vector is taken.
type Source interface {
	Pending() bool
	Acknowledge()
}

type vector struct {
	src   Source
	entry func()
	count uint64
}

// Controller holds the vector table and drives the global interrupt flag of
// the status register.
type Controller struct {
	sreg    bits.Register[uint8]
	vectors [hwdefs.NumVectors]vector
}

// NewController returns a controller whose global flag is bit 7 of sreg.
func NewController(sreg bits.Register[uint8]) *Controller {
	return &Controller{sreg: sreg}
}

// Attach sets the entry point of vector v.
func (c *Controller) Attach(v hwdefs.Vector, entry func()) {
	c.vectors[v].entry = entry
}

// AttachSource sets the hardware source of vector v.
func (c *Controller) AttachSource(v hwdefs.Vector, src Source) {
	c.vectors[v].src = src
}

// Enabled reports the global interrupt flag.
func (c *Controller) Enabled() bool {
	return bits.Get(c.sreg, GlobalEnable)
}

// Enable sets the global interrupt flag and services pending interrupts.
func (c *Controller) Enable() {
	bits.Add(c.sreg, GlobalEnable)
	c.Service()
}

// Disable clears the global interrupt flag.
func (c *Controller) Disable() {
	bits.Add(c.sreg, bits.Not(GlobalEnable))
}

// SetState restores a state previously returned by Enabled.
func (c *Controller) SetState(enabled bool) {
	if enabled {
		c.Enable()
	} else {
		c.Disable()
	}
}

// Suspend disables interrupts and returns a function restoring the state
// they had before the call.
func (c *Controller) Suspend() (restore func()) {
	prev := c.Enabled()
	c.Disable()
	return func() { c.SetState(prev) }
}

// Atomic runs fn with interrupts disabled. The previous state is restored
// when fn returns or panics.
func (c *Controller) Atomic(fn func()) {
	restore := c.Suspend()
	defer restore()
	fn()
}

func (c *Controller) pending() (hwdefs.Vector, bool) {
	for v := range c.vectors {
		if src := c.vectors[v].src; src != nil && src.Pending() {
			return hwdefs.Vector(v), true
		}
	}
	return 0, false
}

// Service runs, in priority order, the entries of all pending vectors while
// the global flag is set. The flag is cleared during each entry and set back
// afterwards, so entries do not nest unless they re-enable interrupts.
func (c *Controller) Service() {
	for c.Enabled() {
		v, ok := c.pending()
		if !ok {
			return
		}
		vec := &c.vectors[v]
		vec.src.Acknowledge()
		vec.count++

		if vec.entry == nil {
			// The chip would jump to the bad interrupt handler and reset,
			// leave interrupts off instead of spinning on the vector.
			log.ModISR.ErrorZ("no entry for pending vector, interrupts disabled").
				Stringer("vector", v).
				End()
			c.Disable()
			return
		}

		log.ModISR.DebugZ("dispatch").Stringer("vector", v).End()
		c.Disable()
		vec.entry()
		bits.Add(c.sreg, GlobalEnable)
	}
}

// Stats returns how many times each vector has been taken.
func (c *Controller) Stats() map[hwdefs.Vector]uint64 {
	stats := make(map[hwdefs.Vector]uint64)
	for v := range c.vectors {
		if n := c.vectors[v].count; n != 0 {
			stats[hwdefs.Vector(v)] = n
		}
	}
	return stats
}

// Reset clears the global flag and the dispatch counters. Attachments are kept.
func (c *Controller) Reset() {
	c.Disable()
	for v := range c.vectors {
		c.vectors[v].count = 0
	}
}
