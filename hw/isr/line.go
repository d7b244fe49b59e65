package isr

import "avrhal/hw/bits"

// Handler is a callback invoked in interrupt context with the peripheral
// instance that raised the interrupt.
type Handler[P any] func(p *P)

// Slot holds an optional handler. The zero value is the disabled state.
type Slot[P any] struct {
	installed bool
	h         Handler[P]
}

// Set installs h. A nil h disables the slot.
func (s *Slot[P]) Set(h Handler[P]) {
	s.h = h
	s.installed = h != nil
}

func (s *Slot[P]) Clear() { *s = Slot[P]{} }

func (s *Slot[P]) Installed() bool { return s.installed }

// Call runs the handler if one is installed and reports whether it did.
func (s *Slot[P]) Call(p *P) bool {
	if !s.installed {
		return false
	}
	s.h(p)
	return true
}

// Line ties a handler slot to the interrupt enable bit gating it and to the
// peripheral instance passed to the handler.
type Line[P any] struct {
	slot   Slot[P]
	enable bits.Register[uint8]
	bit    bits.Bit
	owner  *P
}

// NewLine returns a line with no handler, enabled by bit of enable.
func NewLine[P any](owner *P, enable bits.Register[uint8], bit bits.Bit) Line[P] {
	return Line[P]{enable: enable, bit: bit, owner: owner}
}

// Install stores h then sets the enable bit, so the interrupt can never fire
// with an empty slot. A nil h uninstalls.
func (l *Line[P]) Install(h Handler[P]) {
	if h == nil {
		l.Uninstall()
		return
	}
	l.slot.Set(h)
	bits.Add(l.enable, l.bit)
}

// Uninstall clears the enable bit then empties the slot.
func (l *Line[P]) Uninstall() {
	bits.Add(l.enable, bits.Not(l.bit))
	l.slot.Clear()
}

// Installed reports whether a handler is present.
func (l *Line[P]) Installed() bool { return l.slot.Installed() }

// Dispatch is the vector entry point: it calls the handler with the owning
// instance, or does nothing when no handler is installed. Status flags are
// left to the handler.
func (l *Line[P]) Dispatch() {
	l.slot.Call(l.owner)
}
