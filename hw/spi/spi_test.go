package spi

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"avrhal/hw/bits"
	"avrhal/hw/gpio"
	"avrhal/hw/hwdefs"
	"avrhal/hw/isr"
)

type reg struct {
	v      uint8
	writes []uint8
}

func (r *reg) Load() uint8 { return r.v }
func (r *reg) Store(v uint8) {
	r.v = v
	r.writes = append(r.writes, v)
}

type fixture struct {
	sreg, spcr, spsr, spdr reg
	pin, ddr, port         reg
	spi                    *SPI
}

func newFixture() *fixture {
	f := &fixture{}
	port := &gpio.Port{Name: "PORTB", In: &f.pin, Dir: &f.ddr, Out: &f.port}
	ctrl := isr.NewController(&f.sreg)
	f.spi = New(ctrl, Registers{SPCR: &f.spcr, SPSR: &f.spsr, SPDR: &f.spdr}, Pins{
		SS:   gpio.New("SS", port, bits.Bit2),
		MOSI: gpio.New("MOSI", port, bits.Bit3),
		MISO: gpio.New("MISO", port, bits.Bit4),
		SCK:  gpio.New("SCK", port, bits.Bit5),
	}, hwdefs.SPISTC)
	return f
}

func TestSetMode(t *testing.T) {
	f := newFixture()
	f.port.v = 0x10 // pull-up on MISO

	f.spi.SetMode(Master)
	if f.ddr.v != 0x2C || f.spcr.v != 0x50 || f.port.v != 0x00 {
		t.Errorf("master: DDR=%02x SPCR=%02x PORT=%02x", f.ddr.v, f.spcr.v, f.port.v)
	}
	f.spi.SetMode(Slave)
	if f.ddr.v != 0x10 || f.spcr.v != 0x40 {
		t.Errorf("slave: DDR=%02x SPCR=%02x", f.ddr.v, f.spcr.v)
	}
	f.spi.SetMode(Disable)
	if f.spcr.v != 0x00 || f.ddr.v != 0x10 {
		t.Errorf("disable: DDR=%02x SPCR=%02x", f.ddr.v, f.spcr.v)
	}
}

func TestFrameFormat(t *testing.T) {
	f := newFixture()
	f.spcr.v = 0x50

	f.spi.SetBitOrder(LSBFirst)
	f.spi.SetClockIdle(ClockHigh)
	f.spi.SetClockEdge(ClockTrailing)
	if f.spcr.v != 0x7C {
		t.Errorf("SPCR = %02x, want 7C", f.spcr.v)
	}
	f.spi.SetBitOrder(MSBFirst)
	f.spi.SetClockIdle(ClockLow)
	f.spi.SetClockEdge(ClockLeading)
	if f.spcr.v != 0x50 {
		t.Errorf("SPCR = %02x, want 50", f.spcr.v)
	}
}

func TestSetClockDivider(t *testing.T) {
	type regs struct{ SPCR, SPSR uint8 }
	tests := []struct {
		div  ClockDivider
		want regs
	}{
		{ClockDiv2, regs{0x50, 0x01}},
		{ClockDiv4, regs{0x50, 0x00}},
		{ClockDiv8, regs{0x51, 0x01}},
		{ClockDiv16, regs{0x51, 0x00}},
		{ClockDiv32, regs{0x52, 0x01}},
		{ClockDiv64, regs{0x52, 0x00}},
		{ClockDiv128, regs{0x53, 0x00}},
	}
	for _, tt := range tests {
		f := newFixture()
		f.spcr.v, f.spsr.v = 0x53, 0x01
		f.spi.SetClockDivider(tt.div)
		if diff := cmp.Diff(tt.want, regs{f.spcr.v, f.spsr.v}); diff != "" {
			t.Errorf("divider %d: mismatch (-want +got):\n%s", tt.div.Divider(), diff)
		}
	}

	f := newFixture()
	f.spi.SetClockDivider(ClockDivider(7))
	if len(f.spcr.writes)+len(f.spsr.writes) != 0 {
		t.Errorf("invalid divider wrote registers")
	}
}

func TestTransferRequiresMaster(t *testing.T) {
	f := newFixture()
	f.spi.SetMode(Slave)
	if got := f.spi.Transfer(0x42); got != 0xFF {
		t.Errorf("Transfer() = %02x as slave, want FF", got)
	}
	if len(f.spdr.writes) != 0 {
		t.Errorf("Transfer wrote SPDR as slave")
	}

	f.spi.SetMode(Master)
	f.spsr.v = 0x80 // the fake SPDR reads back the byte sent
	if got := f.spi.Transfer(0x42); got != 0x42 {
		t.Errorf("Transfer() = %02x, want 42", got)
	}
	if diff := cmp.Diff([]uint8{0x42}, f.spdr.writes); diff != "" {
		t.Errorf("SPDR writes mismatch (-want +got):\n%s", diff)
	}
}

func TestOnTransferComplete(t *testing.T) {
	f := newFixture()
	calls := 0
	f.spi.OnTransferComplete(func(*SPI) { calls++ })
	if f.spcr.v != 0x80 {
		t.Errorf("SPCR = %02x, want SPIE set", f.spcr.v)
	}
	f.spi.transferComplete.Dispatch()
	f.spi.OnTransferComplete(nil)
	f.spi.transferComplete.Dispatch()
	if calls != 1 || f.spcr.v != 0 {
		t.Errorf("calls=%d SPCR=%02x", calls, f.spcr.v)
	}
}
