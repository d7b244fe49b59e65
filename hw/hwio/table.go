package hwio

import (
	"fmt"

	"avrhal/emu/log"
)

// log unmapped accesses (useful for debugging, firmware rarely touches
// reserved addresses on purpose)
const logUnmapped = true

type BankIO8 interface {
	// Read8 reads a byte from the given address. If peek is true, the read
	// shouldn't have any side effects (debugging/tracing).
	Read8(addr uint16, peek bool) uint8
	Write8(addr uint16, val uint8)
}

func Write16(b BankIO8, addr uint16, val uint16) {
	lo := uint8(val & 0xff)
	hi := uint8(val >> 8)
	// high byte first, the low byte write commits the TEMP latch.
	b.Write8(addr+1, hi)
	b.Write8(addr, lo)
}

func Read16(b BankIO8, addr uint16) uint16 {
	lo := b.Read8(addr, false)
	hi := b.Read8(addr+1, false)
	return uint16(hi)<<8 | uint16(lo)
}

// Table is a data-space bus: every address is backed by at most one device.
// Mapping an address twice panics, so two devices can never alias the same
// register.
type Table struct {
	Name string
	Size int

	table8 []BankIO8
	mapped addrSet
}

func NewTable(name string, size int) *Table {
	t := &Table{Name: name, Size: size, mapped: newAddrSet(size)}
	t.Reset()
	return t
}

func (t *Table) Reset() {
	t.table8 = make([]BankIO8, t.Size)
	t.mapped.Reset()
}

// Map a register bank (that is, a structure containing mulitple Reg8/Reg16/Mem
// fields). For this function to work, registers must have a struct tag "hwio",
// containing the following fields:
//
//	offset=0x12     Byte-offset within the register bank at which this
//	                register is mapped. There is no default value: if this
//	                option is missing, the register is assumed not to be
//	                part of the bank, and is ignored by this call.
//
//	bank=NN         Ordinal bank number (if not specified, default to zero).
//	                This option allows for a structure to expose multiple
//	                banks, as regs can be grouped by bank by specified the
//	                bank number.
func (t *Table) MapBank(addr uint16, bank any, bankNum int) {
	regs, err := bankGetRegs(bank, bankNum)
	if err != nil {
		panic(err)
	}

	for _, reg := range regs {
		switch r := reg.regPtr.(type) {
		case *Mem:
			t.MapMem(addr+reg.offset, r)
		case *Reg8:
			t.MapReg8(addr+reg.offset, r)
		case *Reg16:
			t.MapReg16(addr+reg.offset, r)
		default:
			panic(fmt.Errorf("invalid reg type: %T", r))
		}
	}
}

func (t *Table) UnmapBank(addr uint16, bank any, bankNum int) {
	regs, err := bankGetRegs(bank, bankNum)
	if err != nil {
		panic(err)
	}

	for _, reg := range regs {
		switch r := reg.regPtr.(type) {
		case *Mem:
			t.Unmap(addr+reg.offset, addr+reg.offset+uint16(r.VSize)-1)
		case *Reg8:
			t.Unmap(addr+reg.offset, addr+reg.offset)
		case *Reg16:
			t.Unmap(addr+reg.offset, addr+reg.offset+1)
		default:
			panic(fmt.Errorf("invalid reg type: %T", r))
		}
	}
}

func (t *Table) mapBus8(addr, size uint16, io BankIO8) {
	end := int(addr) + int(size)
	if end > t.Size {
		panic(fmt.Errorf("%s: mapping [%04x-%04x] out of bus range", t.Name, addr, end-1))
	}
	for a := int(addr); a < end; a++ {
		if t.mapped.Test(uint(a)) {
			panic(fmt.Errorf("%s: address %04x already mapped", t.Name, a))
		}
	}
	t.mapped.SetRange(uint(addr), uint(end))
	for a := int(addr); a < end; a++ {
		t.table8[a] = io
	}
}

func (t *Table) MapReg8(addr uint16, io *Reg8) {
	log.ModHwIo.DebugZ("mapping reg8").
		Hex16("addr", addr).
		String("reg", io.Name).
		String("bus", t.Name).
		End()

	t.mapBus8(addr, 1, io)
}

func (t *Table) MapReg16(addr uint16, io *Reg16) {
	log.ModHwIo.DebugZ("mapping reg16").
		Hex16("addr", addr).
		String("reg", io.Name).
		String("bus", t.Name).
		End()

	t.mapBus8(addr, 1, reg16lo{io})
	t.mapBus8(addr+1, 1, reg16hi{io})
}

func (t *Table) MapMem(addr uint16, mem *Mem) {
	log.ModHwIo.DebugZ("mapping mem").
		Hex16("addr", addr).
		Hex16("size", uint16(mem.VSize)).
		String("area", mem.Name).
		String("bus", t.Name).
		End()

	t.mapBus8(addr, uint16(mem.VSize), newMem(mem, addr))
}

func (t *Table) Unmap(begin, end uint16) {
	if int(end) >= t.Size {
		end = uint16(t.Size - 1)
	}
	for a := int(begin); a <= int(end); a++ {
		t.table8[a] = nil
	}
	t.mapped.ClearRange(uint(begin), uint(end)+1)
}

// Mapped reports whether addr is backed by a device.
func (t *Table) Mapped(addr uint16) bool {
	return int(addr) < t.Size && t.mapped.Test(uint(addr))
}

// Read8 searches in the table for the device mapped at the given address and
// forward the read to it. Accesses to unmapped addresses are logged as errors
// if peek is false.
func (t *Table) Read8(addr uint16, peek bool) uint8 {
	var io BankIO8
	if int(addr) < t.Size {
		io = t.table8[addr]
	}
	if io == nil {
		if logUnmapped && !peek {
			log.ModHwIo.ErrorZ("unmapped Read8").
				String("name", t.Name).
				Hex16("addr", addr).
				End()
		}
		return 0
	}
	return io.Read8(addr, peek)
}

// Peek8 is a convenience function.
func (t *Table) Peek8(addr uint16) uint8 {
	return t.Read8(addr, true)
}

func (t *Table) Write8(addr uint16, val uint8) {
	var io BankIO8
	if int(addr) < t.Size {
		io = t.table8[addr]
	}
	if io == nil {
		if logUnmapped {
			log.ModHwIo.ErrorZ("unmapped Write8").
				String("name", t.Name).
				Hex16("addr", addr).
				Hex8("val", val).
				End()
		}
		return
	}
	io.Write8(addr, val)
}
