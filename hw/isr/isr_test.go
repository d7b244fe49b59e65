package isr

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"avrhal/hw/bits"
	"avrhal/hw/hwdefs"
)

type cell struct{ v uint8 }

func (c *cell) Load() uint8   { return c.v }
func (c *cell) Store(v uint8) { c.v = v }

// flagSource is an edge source: a raised flag is cleared when acknowledged.
type flagSource struct {
	enable *cell
	bit    bits.Bit
	flag   bool
	acks   int
}

func (s *flagSource) Pending() bool { return s.flag && bits.Get(s.enable, s.bit) }
func (s *flagSource) Acknowledge()  { s.flag = false; s.acks++ }

type device struct {
	name string
	mask cell
	src  flagSource
	line Line[device]
}

func newDevice(c *Controller, v hwdefs.Vector, name string) *device {
	d := &device{name: name}
	d.src = flagSource{enable: &d.mask, bit: bits.Bit1}
	d.line = NewLine(d, &d.mask, bits.Bit1)
	c.AttachSource(v, &d.src)
	c.Attach(v, d.line.Dispatch)
	return d
}

func TestHandlerLifecycle(t *testing.T) {
	var sreg cell
	c := NewController(&sreg)
	d := newDevice(c, hwdefs.Timer0Ovf, "t0")
	c.Enable()

	var got []string
	d.line.Install(func(d *device) { got = append(got, d.name) })
	if d.mask.v != 0x02 {
		t.Fatalf("enable register = %02x after Install, want 02", d.mask.v)
	}

	for range 3 {
		d.src.flag = true
		c.Service()
	}
	if diff := cmp.Diff([]string{"t0", "t0", "t0"}, got); diff != "" {
		t.Errorf("handler calls mismatch (-want +got):\n%s", diff)
	}

	d.line.Uninstall()
	if d.mask.v != 0 || d.line.Installed() {
		t.Fatalf("line still enabled after Uninstall")
	}
	d.src.flag = true
	c.Service()
	if len(got) != 3 {
		t.Errorf("handler called after Uninstall")
	}

	// Installing nil is uninstalling.
	d.line.Install(func(*device) {})
	d.line.Install(nil)
	if d.mask.v != 0 || d.line.Installed() {
		t.Errorf("Install(nil) did not uninstall")
	}

	if diff := cmp.Diff(map[hwdefs.Vector]uint64{hwdefs.Timer0Ovf: 3}, c.Stats()); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchWithoutHandler(t *testing.T) {
	var l Line[device]
	l.Dispatch() // must not panic
	var s Slot[device]
	if s.Installed() || s.Call(nil) {
		t.Errorf("zero slot is not disabled")
	}
}

func TestPriorityAndNoNesting(t *testing.T) {
	var sreg cell
	c := NewController(&sreg)
	low := newDevice(c, hwdefs.ADC, "adc")
	high := newDevice(c, hwdefs.Timer1CompA, "t1")

	var order []string
	var nested []bool
	h := func(d *device) {
		order = append(order, d.name)
		nested = append(nested, c.Enabled())
		c.Service() // no effect while in interrupt context
	}
	low.line.Install(h)
	high.line.Install(h)

	low.src.flag = true
	high.src.flag = true
	c.Enable()

	if diff := cmp.Diff([]string{"t1", "adc"}, order); diff != "" {
		t.Errorf("dispatch order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]bool{false, false}, nested); diff != "" {
		t.Errorf("global flag inside handlers mismatch (-want +got):\n%s", diff)
	}
	if !c.Enabled() {
		t.Errorf("global flag not restored after dispatch")
	}
}

func TestPendingServedOnEnable(t *testing.T) {
	var sreg cell
	c := NewController(&sreg)
	d := newDevice(c, hwdefs.USARTRX, "rx")
	calls := 0
	d.line.Install(func(*device) { calls++ })

	d.src.flag = true
	c.Service()
	if calls != 0 {
		t.Fatalf("handler ran with interrupts disabled")
	}
	c.Enable()
	if calls != 1 || d.src.acks != 1 {
		t.Errorf("calls=%d acks=%d after Enable, want 1 1", calls, d.src.acks)
	}
}

func TestAtomicNesting(t *testing.T) {
	var sreg cell
	c := NewController(&sreg)
	d := newDevice(c, hwdefs.Timer0CompA, "t0")
	calls := 0
	d.line.Install(func(*device) { calls++ })
	c.Enable()

	var states []bool
	c.Atomic(func() {
		states = append(states, c.Enabled())
		d.src.flag = true
		c.Service()
		c.Atomic(func() {
			states = append(states, c.Enabled())
		})
		states = append(states, c.Enabled())
	})
	states = append(states, c.Enabled())

	if diff := cmp.Diff([]bool{false, false, false, true}, states); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
	if calls != 1 {
		t.Errorf("pending interrupt not served when leaving the region (calls=%d)", calls)
	}

	// A region entered with interrupts off leaves them off.
	c.Disable()
	c.Atomic(func() {})
	if c.Enabled() {
		t.Errorf("Atomic enabled interrupts that were off")
	}
}

func TestAtomicRestoresOnPanic(t *testing.T) {
	var sreg cell
	c := NewController(&sreg)
	c.Enable()

	func() {
		defer func() { recover() }()
		c.Atomic(func() { panic("boom") })
	}()
	if !c.Enabled() {
		t.Errorf("global flag not restored after panic")
	}
}

func TestSuspend(t *testing.T) {
	sreg := cell{v: 0x80 | 0x03}
	c := NewController(&sreg)
	restore := c.Suspend()
	if sreg.v != 0x03 {
		t.Errorf("SREG = %02x inside region, want 03", sreg.v)
	}
	restore()
	if sreg.v != 0x83 {
		t.Errorf("SREG = %02x after restore, want 83", sreg.v)
	}
}

func TestUnhandledVector(t *testing.T) {
	var sreg cell
	c := NewController(&sreg)
	src := &flagSource{enable: &cell{v: 0xff}, bit: bits.Bit0, flag: true}
	c.AttachSource(hwdefs.Int0, src)
	c.Enable()
	if c.Enabled() {
		t.Errorf("interrupts left on after an unhandled vector")
	}
	if src.acks != 1 {
		t.Errorf("acks = %d, want 1", src.acks)
	}
}
