package hwio_test

import (
	"strings"
	"testing"

	"avrhal/hw/hwio"
)

type testBank struct {
	t   testing.TB
	Bus *hwio.Table

	// $0100-$01FF, mirrored up to $03FF
	SRAM hwio.Mem `hwio:"bank=0,offset=0x0,size=0x100,vsize=0x300"`

	// $0020
	Reg0 hwio.Reg8 `hwio:"bank=1,offset=0x0,reset=0x77"`
	// $0021
	Reg1 hwio.Reg8 `hwio:"bank=1,offset=0x1,rwmask=0x0F,rcb,reset=0x99"`
	// $0022
	Reg2 hwio.Reg8 `hwio:"bank=1,offset=0x2,readonly,pcb=PeekReg2"`
	// $0024-$0025
	Wide hwio.Reg16 `hwio:"bank=1,offset=0x4,wcb,reset=0x1234"`

	lastWide uint16
}

// $0021
func (b *testBank) ReadREG1(val uint8) uint8 { return b.Reg1.Value + 1 }

// $0022
func (b *testBank) PeekReg2(val uint8) uint8 { return 0x12 }

// $0024
func (b *testBank) WriteWIDE(old, val uint16) { b.lastWide = old }

func newTestBank(tb testing.TB) *testBank {
	b := &testBank{t: tb}
	hwio.MustInitRegs(b)

	b.Bus = hwio.NewTable("data", 0x400)
	b.Bus.MapBank(0x0100, b, 0)
	b.Bus.MapBank(0x0020, b, 1)
	return b
}

func (b *testBank) wantRead8(addr uint16, want uint8) {
	b.t.Helper()

	if got := b.Bus.Read8(addr, false); got != want {
		b.t.Errorf("Read8(%04X) = %02X, want %02X", addr, got, want)
	}
}

func (b *testBank) wantPeek8(addr uint16, want uint8) {
	b.t.Helper()

	if got := b.Bus.Peek8(addr); got != want {
		b.t.Errorf("Peek8(%04X) = %02X, want %02X", addr, got, want)
	}
}

func TestTableMem(t *testing.T) {
	b := newTestBank(t)

	b.wantRead8(0x100, 0)
	b.Bus.Write8(0x100, 0x12)
	b.wantRead8(0x100, 0x12)
	b.wantRead8(0x200, 0x12) // mirror
	b.wantRead8(0x300, 0x12)
}

func TestTableRegs(t *testing.T) {
	b := newTestBank(t)

	b.wantRead8(0x20, 0x77)

	// Reg1: only the low nibble is writable
	b.wantRead8(0x21, 0x9a)
	b.Bus.Write8(0x21, 0xff)
	b.wantPeek8(0x21, 0x9f)
	b.wantRead8(0x21, 0xa0)

	// Reg2
	b.wantRead8(0x22, 0x00)
	b.wantPeek8(0x22, 0x12)
	b.Bus.Write8(0x22, 0x9b)
	b.wantRead8(0x22, 0x00)
}

func TestTableReg16(t *testing.T) {
	b := newTestBank(t)

	if got := hwio.Read16(b.Bus, 0x24); got != 0x1234 {
		t.Errorf("Read16 = %04x, want 1234", got)
	}
	hwio.Write16(b.Bus, 0x24, 0xBEEF)
	if b.Wide.Value != 0xBEEF {
		t.Errorf("Wide = %04x, want beef", b.Wide.Value)
	}
	if b.lastWide != 0x1234 {
		t.Errorf("write callback saw old=%04x, want 1234", b.lastWide)
	}
}

func TestTableUnmapped(t *testing.T) {
	b := newTestBank(t)
	b.wantPeek8(0x30, 0)
	b.wantPeek8(0x3FF+1, 0) // beyond the bus
}

func TestTableDoubleMapping(t *testing.T) {
	b := newTestBank(t)

	defer func() {
		msg := recover()
		if msg == nil {
			t.Fatal("mapping a register over another one should panic")
		}
		if !strings.Contains(msg.(error).Error(), "already mapped") {
			t.Errorf("unexpected panic: %v", msg)
		}
	}()

	var r hwio.Reg8
	b.Bus.MapReg8(0x21, &r)
}

func TestUnmapBank(t *testing.T) {
	b := newTestBank(t)

	b.Bus.UnmapBank(0x0020, b, 1)
	for _, addr := range []uint16{0x20, 0x21, 0x22, 0x24, 0x25} {
		if b.Bus.Mapped(addr) {
			t.Errorf("%04X still mapped", addr)
		}
	}

	// Can be mapped again afterwards.
	b.Bus.MapBank(0x0020, b, 1)
	b.wantRead8(0x20, 0x77)
}

func TestResetRegs(t *testing.T) {
	b := newTestBank(t)
	b.Bus.Write8(0x20, 0x01)
	b.Bus.Write8(0x100, 0x01)

	hwio.ResetRegs(b)
	b.wantRead8(0x20, 0x77)
	b.wantRead8(0x100, 0x00)
}

func TestMustInitRegsMissingCallback(t *testing.T) {
	type bad struct {
		R hwio.Reg8 `hwio:"offset=0,rcb"`
	}
	defer func() {
		if recover() == nil {
			t.Fatal("missing callback should panic")
		}
	}()
	hwio.MustInitRegs(&bad{})
}
