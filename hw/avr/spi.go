package avr

import (
	mbits "math/bits"

	"avrhal/emu/log"
	"avrhal/hw/hwdefs"
	"avrhal/hw/hwio"
)

// SPCR bits.
const (
	SPIE = 7
	SPE  = 6
	DORD = 5
	MSTR = 4
	CPOL = 3
	CPHA = 2
	SPR1 = 1
	SPR0 = 0
)

// SPSR bits.
const (
	SPIF  = 7
	WCOL  = 6
	SPI2X = 0
)

// Peer is a device on the other end of the SPI bus. Exchange receives the
// byte shifted out of the chip and returns the byte shifted in, both most
// significant bit first on the wire.
type Peer interface {
	Exchange(out uint8) (in uint8)
}

// PeerFunc adapts a function to the Peer interface.
type PeerFunc func(out uint8) uint8

func (f PeerFunc) Exchange(out uint8) uint8 { return f(out) }

// SPI is the serial peripheral interface.
//
// SPIF and WCOL are cleared by reading SPSR with SPIF set, then accessing
// SPDR. In master mode, a write to SPDR starts a transfer lasting 8 SCK
// periods; writing during a transfer sets WCOL and is ignored.
type SPI struct {
	SPCR hwio.Reg8 `hwio:"offset=0x0"`
	SPSR hwio.Reg8 `hwio:"offset=0x1,rwmask=0x01,rcb"`
	SPDR hwio.Reg8 `hwio:"offset=0x2,rcb,pcb,wcb"`

	clk  *Clock
	peer Peer

	busy     bool
	left     uint64
	shift    uint8
	rx       uint8
	spifSeen bool
}

func NewSPI(clk *Clock) *SPI {
	s := &SPI{clk: clk}
	hwio.MustInitRegs(s)
	return s
}

// Connect attaches the device on the other end of the bus.
func (s *SPI) Connect(p Peer) { s.peer = p }

// Divider returns the SCK clock divider.
func (s *SPI) Divider() uint64 {
	div := [4]uint64{4, 16, 64, 128}[hwio.Field(s.SPCR.Value, SPR0, 2)]
	if hwio.GetBit(s.SPSR.Value, SPI2X) {
		div /= 2
	}
	return div
}

func (s *SPI) enabled() bool { return hwio.GetBit(s.SPCR.Value, SPE) }
func (s *SPI) master() bool  { return hwio.GetBit(s.SPCR.Value, MSTR) }

func (s *SPI) ReadSPSR(_ uint8) uint8 {
	s.clk.Poll()
	s.spifSeen = hwio.GetBit(s.SPSR.Value, SPIF)
	return s.SPSR.Value
}

// dataAccess completes the flag clearing sequence.
func (s *SPI) dataAccess() {
	if s.spifSeen {
		hwio.ClearBits(&s.SPSR.Value, 1<<SPIF|1<<WCOL)
		s.spifSeen = false
	}
}

func (s *SPI) ReadSPDR(_ uint8) uint8 {
	s.dataAccess()
	return s.rx
}

func (s *SPI) PeekSPDR(_ uint8) uint8 { return s.rx }

func (s *SPI) WriteSPDR(_, val uint8) {
	s.SPDR.Value = s.rx
	s.dataAccess()
	if !s.enabled() {
		return
	}
	if s.busy {
		hwio.SetBit(&s.SPSR.Value, WCOL)
		log.ModSim.DebugZ("spi write collision").Hex8("val", val).End()
		return
	}
	s.shift = val
	if s.master() {
		s.busy = true
		s.left = 8 * s.Divider()
	}
}

func (s *SPI) swap(out uint8) uint8 {
	lsb := hwio.GetBit(s.SPCR.Value, DORD)
	if lsb {
		out = mbits.Reverse8(out)
	}
	in := uint8(0xFF)
	if s.peer != nil {
		in = s.peer.Exchange(out)
	}
	if lsb {
		in = mbits.Reverse8(in)
	}
	return in
}

func (s *SPI) complete(in uint8) {
	s.rx = in
	s.SPDR.Value = in
	hwio.SetBit(&s.SPSR.Value, SPIF)
	log.ModSim.DebugZ("spi transfer").Hex8("out", s.shift).Hex8("in", in).End()
}

func (s *SPI) Step(cycles uint64) {
	if !s.busy {
		return
	}
	if cycles < s.left {
		s.left -= cycles
		return
	}
	s.busy = false
	s.complete(s.swap(s.shift))
}

// SlaveExchange clocks a byte in from an external master while the chip is
// a slave, and returns the byte the chip shifted out.
func (s *SPI) SlaveExchange(in uint8) uint8 {
	if !s.enabled() || s.master() {
		return 0xFF
	}
	out := s.shift
	if hwio.GetBit(s.SPCR.Value, DORD) {
		in, out = mbits.Reverse8(in), mbits.Reverse8(out)
	}
	s.complete(in)
	return out
}

func (s *SPI) Sources() []VectorSource {
	return []VectorSource{
		{hwdefs.SPISTC, &flagSource{flag: &s.SPSR, fbit: SPIF, mask: &s.SPCR, mbit: SPIE}},
	}
}

func (s *SPI) Reset() {
	hwio.ResetRegs(s)
	s.busy, s.spifSeen = false, false
	s.rx, s.shift = 0, 0
}
