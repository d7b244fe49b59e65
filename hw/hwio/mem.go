package hwio

import "avrhal/emu/log"

type MemFlags int

const (
	MemFlagReadWrite MemFlags = 0
	MemFlag8ReadOnly MemFlags = (1 << iota) // read-only accesses
	MemFlagNoROLog                          // skip logging attempts to write when configured to readonly
)

// Linear memory area that can be mapped into a Table. If VSize is bigger than
// the buffer, the buffer is mirrored; its length must then be a power of 2.
type Mem struct {
	Name    string              // name of the memory area (for debugging)
	Data    []byte              // actual memory buffer
	VSize   int                 // virtual size of the memory (can be bigger than physical size)
	Flags   MemFlags            // flags determining how the memory can be accessed
	WriteCb func(uint16, uint8) // optional write callback (if set, the callback is called instead of writing)
}

// mem is the BankIO8 view of a Mem mapped at base.
type mem struct {
	m    *Mem
	base uint16
	mask uint16
}

func newMem(m *Mem, base uint16) *mem {
	if len(m.Data)&(len(m.Data)-1) != 0 {
		panic("memory buffer size is not pow2")
	}
	return &mem{m: m, base: base, mask: uint16(len(m.Data) - 1)}
}

func (m *mem) Read8(addr uint16, _ bool) uint8 {
	return m.m.Data[(addr-m.base)&m.mask]
}

func (m *mem) Write8(addr uint16, val uint8) {
	if m.m.WriteCb != nil {
		m.m.WriteCb(addr, val)
		return
	}

	switch m.m.Flags {
	case MemFlagReadWrite:
		m.m.Data[(addr-m.base)&m.mask] = val
	case MemFlag8ReadOnly:
		log.ModHwIo.ErrorZ("Write8 to readonly memory").
			String("name", m.m.Name).
			Hex8("val", val).
			Hex16("addr", addr).
			End()
	case MemFlagNoROLog:
		return
	}
}
