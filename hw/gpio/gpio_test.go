package gpio

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"avrhal/hw/bits"
)

type reg struct {
	v      uint8
	writes []uint8
	store  func(v uint8)
}

func (r *reg) Load() uint8 { return r.v }
func (r *reg) Store(v uint8) {
	r.writes = append(r.writes, v)
	if r.store != nil {
		r.store(v)
		return
	}
	r.v = v
}

// fakePort behaves like an AVR port with nothing connected to its pins.
type fakePort struct {
	pin, ddr, port reg
}

func newFakePort(toggle bool) (*fakePort, *Port) {
	fp := &fakePort{}
	fp.pin.store = func(v uint8) { fp.port.v ^= v }
	return fp, &Port{Name: "PORTX", In: &fp.pin, Dir: &fp.ddr, Out: &fp.port, HasToggle: toggle}
}

func TestSetMode(t *testing.T) {
	fp, port := newFakePort(true)
	fp.ddr.v, fp.port.v = 0x81, 0x81
	p := New("P3", port, bits.Bit3)

	p.SetMode(Output)
	if fp.ddr.v != 0x89 || p.Mode() != Output {
		t.Errorf("Output: DDR=%02x mode=%s", fp.ddr.v, p.Mode())
	}
	p.SetMode(InputPullUp)
	if fp.ddr.v != 0x81 || fp.port.v != 0x89 || p.Mode() != InputPullUp {
		t.Errorf("InputPullUp: DDR=%02x PORT=%02x mode=%s", fp.ddr.v, fp.port.v, p.Mode())
	}
	p.SetMode(Input)
	if fp.ddr.v != 0x81 || fp.port.v != 0x81 || p.Mode() != Input {
		t.Errorf("Input: DDR=%02x PORT=%02x mode=%s", fp.ddr.v, fp.port.v, p.Mode())
	}

	// Unknown modes leave the registers alone.
	fp.ddr.writes, fp.port.writes = nil, nil
	p.SetMode(Mode(7))
	if len(fp.ddr.writes)+len(fp.port.writes) != 0 {
		t.Errorf("invalid mode wrote registers")
	}
}

func TestWriteReadOutput(t *testing.T) {
	fp, port := newFakePort(true)
	p := New("P5", port, bits.Bit5)
	p.SetMode(Output)

	var got []bool
	for _, v := range []bool{true, false, true} {
		p.Write(v)
		got = append(got, p.ReadOutput())
	}
	if diff := cmp.Diff([]bool{true, false, true}, got); diff != "" {
		t.Errorf("ReadOutput mismatch (-want +got):\n%s", diff)
	}
	if fp.port.v != 0x20 {
		t.Errorf("PORT = %02x, want 20", fp.port.v)
	}
}

func TestToggle(t *testing.T) {
	t.Run("toggle register", func(t *testing.T) {
		fp, port := newFakePort(true)
		fp.port.v = 0x01
		p := New("P1", port, bits.Bit1)
		p.Toggle()
		p.Toggle()
		p.Toggle()
		if diff := cmp.Diff([]uint8{0x02, 0x02, 0x02}, fp.pin.writes); diff != "" {
			t.Errorf("PIN writes mismatch (-want +got):\n%s", diff)
		}
		if len(fp.port.writes) != 0 {
			t.Errorf("toggle wrote PORT: %v", fp.port.writes)
		}
		if fp.port.v != 0x03 {
			t.Errorf("PORT = %02x, want 03", fp.port.v)
		}
	})
	t.Run("read-modify-write", func(t *testing.T) {
		fp, port := newFakePort(false)
		fp.port.v = 0x01
		p := New("P1", port, bits.Bit1)
		p.Toggle()
		if fp.port.v != 0x03 || len(fp.pin.writes) != 0 {
			t.Errorf("PORT = %02x, PIN writes %v", fp.port.v, fp.pin.writes)
		}
	})
}

func TestRead(t *testing.T) {
	fp, port := newFakePort(true)
	p := New("P7", port, bits.Bit7)
	fp.pin.v = 0x80
	if !p.Read() {
		t.Errorf("Read() = false with PIN7 high")
	}
	fp.pin.v = 0x7F
	if p.Read() {
		t.Errorf("Read() = true with PIN7 low")
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{Input, Output, InputPullUp} {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMode(%s) = %s, %v", m, got, err)
		}
	}
	if _, err := ParseMode("analog"); err == nil {
		t.Errorf("ParseMode(analog) succeeded")
	}
}
