package hwio

import "fmt"

// MaxAddrs is the size of the largest bus a Table can decode: AVR data
// pointers are 16 bits wide.
const MaxAddrs = 0x10000

// addrSet records one flag per bus address. Table uses it to track which
// addresses are already mapped.
type addrSet struct {
	words []uint64
	size  uint
}

func newAddrSet(size int) addrSet {
	if size < 0 || size > MaxAddrs {
		panic(fmt.Sprintf("address set size %#x exceeds addressing space", size))
	}
	return addrSet{words: make([]uint64, (size+63)/64), size: uint(size)}
}

func (s *addrSet) Test(addr uint) bool {
	return addr < s.size && s.words[addr/64]&(1<<(addr%64)) != 0
}

// SetRange marks every address in [start, end).
func (s *addrSet) SetRange(start, end uint) {
	s.each(start, end, func(w *uint64, m uint64) { *w |= m })
}

// ClearRange unmarks every address in [start, end).
func (s *addrSet) ClearRange(start, end uint) {
	s.each(start, end, func(w *uint64, m uint64) { *w &^= m })
}

func (s *addrSet) Reset() {
	clear(s.words)
}

// each calls fn once per word overlapping [start, end), with the mask of the
// addresses of that word falling inside the range.
func (s *addrSet) each(start, end uint, fn func(w *uint64, mask uint64)) {
	if start >= end || end > s.size {
		panic(fmt.Sprintf("invalid address range [%#x, %#x)", start, end))
	}
	for start < end {
		bit := start % 64
		n := min(64-bit, end-start)
		mask := ^uint64(0) >> (64 - n) << bit
		fn(&s.words[start/64], mask)
		start += n
	}
}
