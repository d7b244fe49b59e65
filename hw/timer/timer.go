// Package timer drives the timer/counters: Timer8 for Timer0, Timer16 for
// Timer1.
package timer

import (
	"fmt"

	"avrhal/emu/log"
	"avrhal/hw/bits"
	"avrhal/hw/hwdefs"
	"avrhal/hw/isr"
)

// CounterMode combines a waveform and the counter top.
type CounterMode uint8

const (
	WaveNormalTopNormal CounterMode = iota
	WaveNormalTopCompareA
	WavePwmTopNormal
	WavePwmTopCompareA
)

func (m CounterMode) String() string {
	switch m {
	case WaveNormalTopNormal:
		return "normal"
	case WaveNormalTopCompareA:
		return "ctc"
	case WavePwmTopNormal:
		return "pwm"
	case WavePwmTopCompareA:
		return "pwm-ocra"
	}
	return fmt.Sprintf("CounterMode(%d)", uint8(m))
}

// PinMode is the action on the output compare pin. PinToggle, PinSet and
// PinClear apply in normal waveform modes, PinPwm and PinPwmInv in PWM
// modes.
type PinMode uint8

const (
	PinDisable PinMode = iota
	PinToggle
	PinSet
	PinClear
	PinPwm
	PinPwmInv
)

type Clock uint8

const (
	ClockStop Clock = iota
	ClockDiv1
	ClockDiv8
	ClockDiv64
	ClockDiv256
	ClockDiv1024
	ClockExternalFalling
	ClockExternalRising
)

// Divider returns the prescaler value of a clock, 0 for stopped or
// external clocks.
func (c Clock) Divider() int {
	switch c {
	case ClockDiv1:
		return 1
	case ClockDiv8:
		return 8
	case ClockDiv64:
		return 64
	case ClockDiv256:
		return 256
	case ClockDiv1024:
		return 1024
	}
	return 0
}

// Registers is the register file of a timer. ICR is only set on 16-bit
// timers.
type Registers[T bits.Word] struct {
	TCCRA, TCCRB     bits.Register[uint8]
	TCNT, OCRA, OCRB bits.Register[T]
	ICR              bits.Register[T]
	TIMSK, TIFR      bits.Register[uint8]
}

// Vectors are the interrupt vectors of a timer.
type Vectors struct {
	CompA, CompB, Ovf hwdefs.Vector
}

// Timer is a timer/counter with a T-wide counter.
type Timer[T bits.Word] struct {
	name string
	regs Registers[T]
	ctrl *isr.Controller

	matchA   isr.Line[Timer[T]]
	matchB   isr.Line[Timer[T]]
	overflow isr.Line[Timer[T]]
}

type (
	Timer8  = Timer[uint8]
	Timer16 = Timer[uint16]
)

func New[T bits.Word](name string, ctrl *isr.Controller, regs Registers[T], vecs Vectors) *Timer[T] {
	t := &Timer[T]{name: name, regs: regs, ctrl: ctrl}
	t.matchA = isr.NewLine(t, regs.TIMSK, bits.Bit1)
	t.matchB = isr.NewLine(t, regs.TIMSK, bits.Bit2)
	t.overflow = isr.NewLine(t, regs.TIMSK, bits.Bit0)
	ctrl.Attach(vecs.CompA, t.matchA.Dispatch)
	ctrl.Attach(vecs.CompB, t.matchB.Dispatch)
	ctrl.Attach(vecs.Ovf, t.overflow.Dispatch)
	return t
}

func (t *Timer[T]) Name() string { return t.name }

func (t *Timer[T]) wide() bool { return t.regs.ICR != nil }

// SetCounterMode selects the waveform generation mode. On 16-bit timers,
// the PWM mode with a normal top counts up to 0xFFFF through ICR.
func (t *Timer[T]) SetCounterMode(mode CounterMode) {
	a, b := t.regs.TCCRA, t.regs.TCCRB
	if t.wide() {
		switch mode {
		case WaveNormalTopNormal:
			bits.Add(b, bits.Not(bits.Bit4), bits.Not(bits.Bit3))
			bits.Add(a, bits.Not(bits.Bit1), bits.Not(bits.Bit0))
		case WaveNormalTopCompareA:
			bits.Add(b, bits.Not(bits.Bit4), bits.Bit3)
			bits.Add(a, bits.Not(bits.Bit1), bits.Not(bits.Bit0))
		case WavePwmTopNormal:
			t.regs.ICR.Store(^T(0))
			bits.Add(b, bits.Bit4, bits.Bit3)
			bits.Add(a, bits.Bit1, bits.Not(bits.Bit0))
		case WavePwmTopCompareA:
			bits.Add(b, bits.Bit4, bits.Bit3)
			bits.Add(a, bits.Bit1, bits.Bit0)
		default:
			t.invalid("counter mode", uint(mode))
			return
		}
	} else {
		switch mode {
		case WaveNormalTopNormal:
			bits.Add(b, bits.Not(bits.Bit3))
			bits.Add(a, bits.Not(bits.Bit1), bits.Not(bits.Bit0))
		case WaveNormalTopCompareA:
			bits.Add(b, bits.Not(bits.Bit3))
			bits.Add(a, bits.Bit1, bits.Not(bits.Bit0))
		case WavePwmTopNormal:
			bits.Add(b, bits.Not(bits.Bit3))
			bits.Add(a, bits.Bit1, bits.Bit0)
		case WavePwmTopCompareA:
			bits.Add(b, bits.Bit3)
			bits.Add(a, bits.Bit1, bits.Bit0)
		default:
			t.invalid("counter mode", uint(mode))
			return
		}
	}
	log.ModTimer.DebugZ("counter mode").String("timer", t.name).Stringer("mode", mode).End()
}

func (t *Timer[T]) invalid(what string, v uint) {
	log.ModTimer.WarnZ("invalid "+what).String("timer", t.name).Uint("value", v).End()
}

// pinSelectors returns the COMx1:0 selectors of a pin mode, hi and lo being
// the positions of COMx1 and COMx0.
func pinSelectors(mode PinMode, hi, lo bits.Bit) ([]bits.Selector, bool) {
	switch mode {
	case PinDisable:
		return []bits.Selector{bits.Not(hi), bits.Not(lo)}, true
	case PinToggle:
		return []bits.Selector{bits.Not(hi), lo}, true
	case PinSet, PinPwmInv:
		return []bits.Selector{hi, lo}, true
	case PinClear, PinPwm:
		return []bits.Selector{hi, bits.Not(lo)}, true
	}
	return nil, false
}

// SetPinModeA sets the action of compare match A on its output pin.
func (t *Timer[T]) SetPinModeA(mode PinMode) {
	sels, ok := pinSelectors(mode, bits.Bit7, bits.Bit6)
	if !ok {
		t.invalid("pin mode", uint(mode))
		return
	}
	bits.Add(t.regs.TCCRA, sels...)
}

// SetPinModeB sets the action of compare match B on its output pin.
func (t *Timer[T]) SetPinModeB(mode PinMode) {
	sels, ok := pinSelectors(mode, bits.Bit5, bits.Bit4)
	if !ok {
		t.invalid("pin mode", uint(mode))
		return
	}
	bits.Add(t.regs.TCCRA, sels...)
}

// SetClock selects the counter clock source, stopping the counter with
// ClockStop.
func (t *Timer[T]) SetClock(clock Clock) {
	if clock > ClockExternalRising {
		t.invalid("clock", uint(clock))
		return
	}
	bits.Add(t.regs.TCCRB,
		bits.Is(bits.Bit2, clock&4 != 0),
		bits.Is(bits.Bit1, clock&2 != 0),
		bits.Is(bits.Bit0, clock&1 != 0))
	log.ModTimer.DebugZ("clock").String("timer", t.name).Int("div", clock.Divider()).End()
}

// ReadCounter returns the counter value. Reading a 16-bit counter goes
// through a shared latch, so it is done with interrupts disabled.
func (t *Timer[T]) ReadCounter() T {
	if !t.wide() {
		return t.regs.TCNT.Load()
	}
	var v T
	t.ctrl.Atomic(func() { v = t.regs.TCNT.Load() })
	return v
}

func (t *Timer[T]) WriteCounter(v T) {
	if !t.wide() {
		t.regs.TCNT.Store(v)
		return
	}
	t.ctrl.Atomic(func() { t.regs.TCNT.Store(v) })
}

func (t *Timer[T]) ReadCompareA() T   { return t.regs.OCRA.Load() }
func (t *Timer[T]) WriteCompareA(v T) { t.regs.OCRA.Store(v) }
func (t *Timer[T]) ReadCompareB() T   { return t.regs.OCRB.Load() }
func (t *Timer[T]) WriteCompareB(v T) { t.regs.OCRB.Store(v) }

func (t *Timer[T]) IsMatchA() bool   { return bits.Get(t.regs.TIFR, bits.Bit1) }
func (t *Timer[T]) IsMatchB() bool   { return bits.Get(t.regs.TIFR, bits.Bit2) }
func (t *Timer[T]) IsOverflow() bool { return bits.Get(t.regs.TIFR, bits.Bit0) }

// Flags are cleared by writing a one to them alone, other flags written as
// zero are left untouched.

func (t *Timer[T]) ClearMatchA()   { bits.Assign(t.regs.TIFR, bits.Bit1) }
func (t *Timer[T]) ClearMatchB()   { bits.Assign(t.regs.TIFR, bits.Bit2) }
func (t *Timer[T]) ClearOverflow() { bits.Assign(t.regs.TIFR, bits.Bit0) }

// OnMatchA installs the handler for compare match A. A nil handler disables
// the interrupt.
func (t *Timer[T]) OnMatchA(h isr.Handler[Timer[T]]) { t.matchA.Install(h) }

// OnMatchB installs the handler for compare match B.
func (t *Timer[T]) OnMatchB(h isr.Handler[Timer[T]]) { t.matchB.Install(h) }

// OnOverflow installs the handler for counter overflows.
func (t *Timer[T]) OnOverflow(h isr.Handler[Timer[T]]) { t.overflow.Install(h) }
