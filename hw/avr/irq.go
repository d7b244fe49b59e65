package avr

import (
	"avrhal/hw/hwdefs"
	"avrhal/hw/hwio"
	"avrhal/hw/isr"
)

// flagSource is an interrupt raised by a status flag gated by an enable
// bit. Edge interrupts have their flag cleared by the chip when the vector
// is taken, level interrupts stay pending until the condition goes away.
type flagSource struct {
	flag  *hwio.Reg8
	fbit  uint
	mask  *hwio.Reg8
	mbit  uint
	level bool
}

func (s *flagSource) Pending() bool {
	return hwio.GetBit(s.flag.Value, s.fbit) && hwio.GetBit(s.mask.Value, s.mbit)
}

func (s *flagSource) Acknowledge() {
	if !s.level {
		hwio.ClearBit(&s.flag.Value, s.fbit)
	}
}

// VectorSource binds an interrupt source to its vector.
type VectorSource struct {
	Vector hwdefs.Vector
	Source isr.Source
}

// clearW1C implements write-one-to-clear flags: flag bits written as 1 are
// cleared, the others keep their old value.
func clearW1C(old, val, flags uint8) uint8 {
	return val&^flags | old&flags&^val
}
