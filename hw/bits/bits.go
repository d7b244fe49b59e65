// Package bits computes register masks from lists of bit selectors and
// applies them to memory-mapped registers.
//
// A selector names a bit position and the value it must take: a Bit asserts
// the position to 1, an InvBit (built with Not) asserts it to 0. Positions
// absent from a selector list are left untouched by Add:
//
//	bits.Add(reg, bits.Bit6, bits.Not(bits.Bit4)) // set bit 6, clear bit 4
package bits

import "fmt"

// Word is the storage of an 8 or 16-bit register.
type Word interface {
	~uint8 | ~uint16
}

// Bit is a bit position, asserted to 1 when used as a Selector.
type Bit uint8

const (
	Bit0 Bit = iota
	Bit1
	Bit2
	Bit3
	Bit4
	Bit5
	Bit6
	Bit7
	Bit8
	Bit9
	Bit10
	Bit11
	Bit12
	Bit13
	Bit14
	Bit15
)

// InvBit is a bit position asserted to 0.
type InvBit uint8

// Not returns the selector clearing b.
func Not(b Bit) InvBit { return InvBit(b) }

// Selector is a bit position tagged with the value it asserts.
type Selector interface {
	Position() Bit
	Asserted() bool
}

func (b Bit) Position() Bit  { return b }
func (b Bit) Asserted() bool { return true }
func (b Bit) String() string { return fmt.Sprintf("Bit%d", uint8(b)) }

func (b InvBit) Position() Bit  { return Bit(b) }
func (b InvBit) Asserted() bool { return false }
func (b InvBit) String() string { return fmt.Sprintf("~Bit%d", uint8(b)) }

// Is returns the selector asserting b to v.
func Is(b Bit, v bool) Selector {
	if v {
		return b
	}
	return Not(b)
}

// ConflictError reports a position asserted both to 1 and to 0 in the same
// selector list.
type ConflictError struct {
	Pos Bit
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("bits: %s asserted both true and false", e.Pos)
}

// WidthError reports a position that does not exist in the register.
type WidthError struct {
	Pos   Bit
	Width int
}

func (e *WidthError) Error() string {
	return fmt.Sprintf("bits: %s out of range for a %d-bit register", e.Pos, e.Width)
}

func width[T Word]() int {
	if uint16(^T(0)) > 0xff {
		return 16
	}
	return 8
}

// Masks folds sels into the mask of positions asserted to 1 and the mask of
// positions asserted to 0. Both are 0 for an empty list. A position repeated
// with the same polarity is accepted.
//
// It panics with a *ConflictError if a position is asserted both ways, and
// with a *WidthError if a position doesn't fit in T.
func Masks[T Word](sels ...Selector) (set, clear T) {
	w := width[T]()
	for _, s := range sels {
		pos := s.Position()
		if int(pos) >= w {
			panic(&WidthError{Pos: pos, Width: w})
		}
		m := T(1) << pos
		if s.Asserted() {
			set |= m
		} else {
			clear |= m
		}
	}
	if both := set & clear; both != 0 {
		for pos := Bit0; int(pos) < w; pos++ {
			if both&(T(1)<<pos) != 0 {
				panic(&ConflictError{Pos: pos})
			}
		}
	}
	return set, clear
}

// Value returns the OR of the positions asserted to 1.
func Value[T Word](sels ...Selector) T {
	set, _ := Masks[T](sels...)
	return set
}

// ValueInv returns the OR of the positions asserted to 0.
func ValueInv[T Word](sels ...Selector) T {
	_, clear := Masks[T](sels...)
	return clear
}
