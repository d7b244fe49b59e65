package usart

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"avrhal/hw/bits"
	"avrhal/hw/hwdefs"
	"avrhal/hw/isr"
)

type cell[T bits.Word] struct {
	v      T
	writes []T
}

func (c *cell[T]) Load() T { return c.v }
func (c *cell[T]) Store(v T) {
	c.v = v
	c.writes = append(c.writes, v)
}

type fixture struct {
	sreg, ucsra, ucsrb, ucsrc, udr cell[uint8]
	ubrr                           cell[uint16]
	u                              *USART
}

func newFixture(hz uint32) *fixture {
	f := &fixture{}
	f.u = New(isr.NewController(&f.sreg), Registers{
		UCSRA: &f.ucsra,
		UCSRB: &f.ucsrb,
		UCSRC: &f.ucsrc,
		UDR:   &f.udr,
		UBRR:  &f.ubrr,
	}, Vectors{RX: hwdefs.USARTRX, UDRE: hwdefs.USARTUDRE, TX: hwdefs.USARTTX}, hz)
	return f
}

func TestComputeBaudRate(t *testing.T) {
	tests := []struct {
		hz   uint32
		baud BaudRate
		want uint16
	}{
		{16_000_000, Baud9600, 103},
		{16_000_000, Baud115200, 7},
		{16_000_000, Baud2400, 415},
		{8_000_000, Baud9600, 51},
	}
	for _, tt := range tests {
		if got := ComputeBaudRate(tt.hz, tt.baud); got != tt.want {
			t.Errorf("ComputeBaudRate(%d, %d) = %d, want %d", tt.hz, tt.baud.Baud(), got, tt.want)
		}
	}
}

type frame struct{ A, B, C uint8 }

func TestInit(t *testing.T) {
	tests := []struct {
		mode   Mode
		stop   StopBits
		parity Parity
		want   frame
	}{
		{Write, Stop1, ParityDisable, frame{0x00, 0x08, 0x06}},
		{Read, Stop2, ParityEven, frame{0x00, 0x10, 0x2E}},
		{ReadWrite, Stop1, ParityOdd, frame{0x00, 0x18, 0x36}},
	}
	for _, tt := range tests {
		f := newFixture(16_000_000)
		f.ucsra.v, f.ucsrb.v, f.ucsrc.v = 0x02, 0x04, 0xC0
		f.u.Init(tt.mode, Baud9600, tt.stop, tt.parity)
		if diff := cmp.Diff(tt.want, frame{f.ucsra.v, f.ucsrb.v, f.ucsrc.v}); diff != "" {
			t.Errorf("%s: control mismatch (-want +got):\n%s", tt.mode, diff)
		}
		if f.ubrr.v != 103 {
			t.Errorf("%s: UBRR = %d, want 103", tt.mode, f.ubrr.v)
		}
	}
}

func TestDoubleSpeed(t *testing.T) {
	f := newFixture(16_000_000)
	f.u.SetBaudRate(Baud9600)
	f.u.SetDoubleSpeed(true)
	if f.ucsra.v != 0x02 || f.ubrr.v != 207 {
		t.Errorf("double speed: UCSRA=%02x UBRR=%d", f.ucsra.v, f.ubrr.v)
	}
	f.u.SetDoubleSpeed(false)
	if diff := cmp.Diff([]uint16{103, 207, 103}, f.ubrr.writes); diff != "" {
		t.Errorf("UBRR writes mismatch (-want +got):\n%s", diff)
	}

	f.u.SetBaudRate(0)
	if len(f.ubrr.writes) != 3 {
		t.Errorf("zero baud rate wrote UBRR")
	}
}

func TestModes(t *testing.T) {
	f := newFixture(16_000_000)
	f.ucsrb.v = 0xE0
	f.u.SetMode(ReadWrite)
	if f.ucsrb.v != 0xF8 {
		t.Errorf("UCSRB = %02x, want F8", f.ucsrb.v)
	}
	f.u.SetMode(Disable)
	if f.ucsrb.v != 0xE0 {
		t.Errorf("UCSRB = %02x once disabled, want E0", f.ucsrb.v)
	}
	f.u.SetMode(Mode(9))
	if len(f.ucsrb.writes) != 2 {
		t.Errorf("invalid mode wrote UCSRB")
	}
}

func TestWriteClearsDataSent(t *testing.T) {
	f := newFixture(16_000_000)
	f.ucsra.v = 0x20
	f.u.Write('x')
	if diff := cmp.Diff([]uint8{0x60}, f.ucsra.writes); diff != "" {
		t.Errorf("UCSRA writes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint8{'x'}, f.udr.writes); diff != "" {
		t.Errorf("UDR writes mismatch (-want +got):\n%s", diff)
	}
}

func TestPrintWithTransmitterOff(t *testing.T) {
	f := newFixture(16_000_000)
	f.ucsra.v = 0x60
	f.u.Print("hi")
	f.u.PrintByte('!')
	if len(f.udr.writes) != 0 {
		t.Errorf("printed %q with the transmitter off", f.udr.writes)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(16_000_000)
	f.ucsra.v = 0x98 // RXC, FE, DOR
	got := []bool{f.u.IsReadReady(), f.u.IsWriteReady(), f.u.IsFrameError(), f.u.IsOverRunError(), f.u.IsParityError(), f.u.IsError()}
	want := []bool{true, false, true, true, false, true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
}

func TestHandlers(t *testing.T) {
	f := newFixture(16_000_000)
	f.u.OnReadReady(func(*USART) {})
	f.u.OnDataSent(func(*USART) {})
	f.u.OnWriteReady(func(*USART) {})
	if f.ucsrb.v != 0xE0 {
		t.Errorf("UCSRB = %02x with all handlers, want E0", f.ucsrb.v)
	}
	f.u.OnWriteReady(nil)
	if f.ucsrb.v != 0xC0 {
		t.Errorf("UCSRB = %02x without write ready handler, want C0", f.ucsrb.v)
	}
}
