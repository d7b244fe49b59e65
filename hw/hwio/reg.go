package hwio

import (
	"fmt"

	"avrhal/emu/log"
)

type RWFlags uint8

const (
	ReadWriteFlag RWFlags = 0
	ReadOnlyFlag  RWFlags = (1 << iota)
	WriteOnlyFlag
)

// noCopy makes go vet report copies of the structs embedding it. Registers
// are owned by exactly one device and must only be shared by pointer.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Reg8 is an 8-bit memory-mapped register.
//
// Bits set in RoMask are not affected by writes. ReadCb, PeekCb and WriteCb
// implement the side effects hardware attaches to register accesses; they
// are run for every access, none is ever skipped or cached.
type Reg8 struct {
	_ noCopy

	Name   string
	Value  uint8
	RoMask uint8

	Flags   RWFlags
	ReadCb  func(val uint8) uint8
	PeekCb  func(val uint8) uint8
	WriteCb func(old uint8, val uint8)
}

func (reg *Reg8) String() string {
	s := fmt.Sprintf("%s{%02x", reg.Name, reg.Value)
	if reg.ReadCb != nil {
		s += ",r!"
	}
	if reg.PeekCb != nil {
		s += ",p!"
	}
	if reg.WriteCb != nil {
		s += ",w!"
	}
	return s + "}"
}

func (reg *Reg8) write(val uint8) {
	old := reg.Value
	reg.Value = (reg.Value & reg.RoMask) | (val &^ reg.RoMask)
	if reg.WriteCb != nil {
		reg.WriteCb(old, reg.Value)
	}
}

func (reg *Reg8) Write8(addr uint16, val uint8) {
	if reg.Flags&ReadOnlyFlag != 0 {
		log.ModHwIo.ErrorZ("invalid Write8 to readonly reg").
			String("name", reg.Name).
			Hex16("addr", addr).
			End()
		return
	}
	reg.write(val)
}

func (reg *Reg8) Read8(addr uint16, peek bool) uint8 {
	if peek {
		if reg.PeekCb != nil {
			return reg.PeekCb(reg.Value)
		}
		return reg.Value
	}
	if reg.Flags&WriteOnlyFlag != 0 {
		log.ModHwIo.ErrorZ("invalid Read8 from writeonly reg").
			String("name", reg.Name).
			Hex16("addr", addr).
			End()
		return 0
	}
	if reg.ReadCb != nil {
		return reg.ReadCb(reg.Value)
	}
	return reg.Value
}

// Load performs a hardware read of the register.
func (reg *Reg8) Load() uint8 { return reg.Read8(0, false) }

// Store performs a hardware write of the register.
func (reg *Reg8) Store(val uint8) { reg.Write8(0, val) }

// Reg16 is a 16-bit register occupying two consecutive addresses, low byte
// first. Byte accesses through the bus go through the shared TEMP latch the
// way the AVR does: reading the low byte latches the high byte, writing the
// high byte is buffered until the low byte is written.
type Reg16 struct {
	_ noCopy

	Name   string
	Value  uint16
	RoMask uint16

	Flags   RWFlags
	ReadCb  func(val uint16) uint16
	PeekCb  func(val uint16) uint16
	WriteCb func(old uint16, val uint16)

	temp uint8
}

func (reg *Reg16) String() string {
	s := fmt.Sprintf("%s{%04x", reg.Name, reg.Value)
	if reg.ReadCb != nil {
		s += ",r!"
	}
	if reg.PeekCb != nil {
		s += ",p!"
	}
	if reg.WriteCb != nil {
		s += ",w!"
	}
	return s + "}"
}

func (reg *Reg16) Write16(addr uint16, val uint16) {
	if reg.Flags&ReadOnlyFlag != 0 {
		log.ModHwIo.ErrorZ("invalid Write16 to readonly reg").
			String("name", reg.Name).
			Hex16("addr", addr).
			End()
		return
	}
	old := reg.Value
	reg.Value = (reg.Value & reg.RoMask) | (val &^ reg.RoMask)
	if reg.WriteCb != nil {
		reg.WriteCb(old, reg.Value)
	}
}

func (reg *Reg16) Read16(addr uint16, peek bool) uint16 {
	if peek {
		if reg.PeekCb != nil {
			return reg.PeekCb(reg.Value)
		}
		return reg.Value
	}
	if reg.Flags&WriteOnlyFlag != 0 {
		log.ModHwIo.ErrorZ("invalid Read16 from writeonly reg").
			String("name", reg.Name).
			Hex16("addr", addr).
			End()
		return 0
	}
	if reg.ReadCb != nil {
		return reg.ReadCb(reg.Value)
	}
	return reg.Value
}

// Load performs a hardware read of the register.
func (reg *Reg16) Load() uint16 { return reg.Read16(0, false) }

// Store performs a hardware write of the register.
func (reg *Reg16) Store(val uint16) { reg.Write16(0, val) }

// reg16lo and reg16hi expose each half of a Reg16 on the 8-bit bus.
type reg16lo struct{ reg *Reg16 }
type reg16hi struct{ reg *Reg16 }

func (r reg16lo) Read8(addr uint16, peek bool) uint8 {
	v := r.reg.Read16(addr, peek)
	if !peek {
		r.reg.temp = uint8(v >> 8)
	}
	return uint8(v)
}

func (r reg16lo) Write8(addr uint16, val uint8) {
	r.reg.Write16(addr, uint16(r.reg.temp)<<8|uint16(val))
}

func (r reg16hi) Read8(addr uint16, peek bool) uint8 {
	if peek {
		return uint8(r.reg.Read16(addr, true) >> 8)
	}
	return r.reg.temp
}

func (r reg16hi) Write8(addr uint16, val uint8) {
	r.reg.temp = val
}
