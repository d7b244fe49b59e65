package script

import (
	"fmt"
	"strings"
	"time"

	"go.starlark.net/starlark"

	"avrhal/emu/log"
	"avrhal/hw/adc"
	"avrhal/hw/chip"
	"avrhal/hw/gpio"
	"avrhal/hw/timer"
	"avrhal/hw/usart"
	"avrhal/lib/mcp4822"
)

type builtinFunc func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

func (r *Runner) builtins() starlark.StringDict {
	fns := map[string]builtinFunc{
		"pin_mode":    r.pinMode,
		"pin_write":   r.pinWrite,
		"pin_read":    r.pinRead,
		"pin_toggle":  r.pinToggle,
		"pin_drive":   r.pinDrive,
		"pin_release": r.pinRelease,
		"pin_level":   r.pinLevel,

		"delay_ms": r.delay(time.Millisecond),
		"delay_us": r.delay(time.Microsecond),
		"millis":   r.millis,
		"cycles":   r.cycles,

		"serial_begin":   r.serialBegin,
		"serial_print":   r.serialPrint(""),
		"serial_println": r.serialPrint("\r\n"),
		"serial_flush":   r.serialFlush,

		"adc_read":   r.adcRead,
		"analog_set": r.analogSet,
		"pwm_write":  r.pwmWrite,

		"chrono_start": r.chronoStart,
		"chrono_stop":  r.chronoStop,

		"dac_init":  r.dacInit,
		"dac_write": r.dacWrite,
		"dac_latch": r.dacLatch,
	}

	env := starlark.StringDict{
		"HIGH":         starlark.True,
		"LOW":          starlark.False,
		"INPUT":        starlark.String(gpio.Input.String()),
		"OUTPUT":       starlark.String(gpio.Output.String()),
		"INPUT_PULLUP": starlark.String(gpio.InputPullUp.String()),
	}
	for name, fn := range fns {
		env[name] = starlark.NewBuiltin(name, fn)
	}
	return env
}

func (r *Runner) pin(b *starlark.Builtin, name string) (*gpio.Pin, error) {
	p, err := r.m.Pin(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return p, nil
}

func (r *Runner) pinMode(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, mode string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pin", &name, "mode", &mode); err != nil {
		return nil, err
	}
	p, err := r.pin(b, name)
	if err != nil {
		return nil, err
	}
	m, err := gpio.ParseMode(mode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	p.SetMode(m)
	return starlark.None, nil
}

func (r *Runner) pinWrite(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var level starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pin", &name, "level", &level); err != nil {
		return nil, err
	}
	p, err := r.pin(b, name)
	if err != nil {
		return nil, err
	}
	p.Write(bool(level.Truth()))
	return starlark.None, nil
}

func (r *Runner) pinRead(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pin", &name); err != nil {
		return nil, err
	}
	p, err := r.pin(b, name)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(p.Read()), nil
}

func (r *Runner) pinToggle(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pin", &name); err != nil {
		return nil, err
	}
	p, err := r.pin(b, name)
	if err != nil {
		return nil, err
	}
	p.Toggle()
	return starlark.None, nil
}

// pinDrive applies a level on a pin from outside the chip.
func (r *Runner) pinDrive(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var level starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pin", &name, "level", &level); err != nil {
		return nil, err
	}
	p, err := r.pin(b, name)
	if err != nil {
		return nil, err
	}
	r.m.Drive(p, bool(level.Truth()))
	return starlark.None, nil
}

func (r *Runner) pinRelease(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pin", &name); err != nil {
		return nil, err
	}
	p, err := r.pin(b, name)
	if err != nil {
		return nil, err
	}
	r.m.Release(p)
	return starlark.None, nil
}

// pinLevel returns the electrical level of a pin without spending cycles.
func (r *Runner) pinLevel(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pin", &name); err != nil {
		return nil, err
	}
	p, err := r.pin(b, name)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(r.m.Level(p)), nil
}

func (r *Runner) delay(unit time.Duration) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var n int
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n", &n); err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("%s: negative delay %d", b.Name(), n)
		}
		d := time.Duration(n) * unit
		r.m.Sleep(d)
		if !r.opts.Realtime {
			return starlark.None, r.ctx.Err()
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return starlark.None, nil
		case <-r.ctx.Done():
			return nil, r.ctx.Err()
		}
	}
}

func (r *Runner) millis(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.MakeInt64(r.m.Elapsed().Milliseconds()), nil
}

func (r *Runner) cycles(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.MakeUint64(r.m.Chip.Clock.Cycles()), nil
}

var baudRates = []usart.BaudRate{
	usart.Baud2400, usart.Baud4800, usart.Baud9600, usart.Baud19200,
	usart.Baud38400, usart.Baud57600, usart.Baud115200,
}

// ParseBaudRate returns the supported baud rate equal to baud.
func ParseBaudRate(baud int) (usart.BaudRate, error) {
	for _, br := range baudRates {
		if int(br.Baud()) == baud {
			return br, nil
		}
	}
	return 0, fmt.Errorf("%w %d", ErrBaudRate, baud)
}

func (r *Runner) serialBegin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	baud := 9600
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "baud?", &baud); err != nil {
		return nil, err
	}
	br, err := ParseBaudRate(baud)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	r.printer.Init(br)
	r.serial = true
	log.ModScript.DebugZ("serial started").Int("baud", baud).End()
	return starlark.None, nil
}

// text renders values the way print does.
func text(args starlark.Tuple) string {
	var sb strings.Builder
	for i, v := range args {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if s, ok := starlark.AsString(v); ok {
			sb.WriteString(s)
		} else {
			sb.WriteString(v.String())
		}
	}
	return sb.String()
}

func (r *Runner) serialPrint(end string) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
		}
		if !r.serial {
			return nil, fmt.Errorf("%s: %w", b.Name(), ErrSerialClosed)
		}
		r.printer.WriteString(text(args) + end)
		return starlark.None, r.ctx.Err()
	}
}

func (r *Runner) serialFlush(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	if r.serial {
		r.printer.Flush()
	}
	return starlark.None, nil
}

// channel resolves an analog input given as a pin name, a channel number
// or the name of an internal input.
func (r *Runner) channel(b *starlark.Builtin, v starlark.Value) (adc.Input, error) {
	switch v := v.(type) {
	case starlark.Int:
		n, ok := v.Int64()
		if !ok || n < 0 || n > int64(adc.PinAdc5) {
			return 0, fmt.Errorf("%s: %w: channel %s", b.Name(), ErrNotAnalog, v)
		}
		return adc.Input(n), nil
	case starlark.String:
		name := string(v)
		for in := adc.Temperature; in <= adc.Ground; in++ {
			if in.String() == name {
				return in, nil
			}
		}
		pd, err := r.m.Board.Lookup(name)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", b.Name(), err)
		}
		ch, ok := pd.Channel()
		if !ok || ch > int(adc.PinAdc5) {
			return 0, fmt.Errorf("%s: %w: %s", b.Name(), ErrNotAnalog, pd.Name)
		}
		return adc.Input(ch), nil
	}
	return 0, fmt.Errorf("%s: got %s, want int or string", b.Name(), v.Type())
}

func (r *Runner) adcRead(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var input starlark.Value
	ref := adc.ReferenceSupply.String()
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "input", &input, "ref?", &ref); err != nil {
		return nil, err
	}
	in, err := r.channel(b, input)
	if err != nil {
		return nil, err
	}
	reference, ok := parseReference(ref)
	if !ok {
		return nil, fmt.Errorf("%s: invalid reference %q", b.Name(), ref)
	}

	a := r.m.ADC
	a.SetInput(in)
	a.SetReference(reference)
	a.Enable()
	a.StartConversion()
	for a.IsConverting() {
	}
	return starlark.MakeInt(int(a.ReadValue())), nil
}

func parseReference(s string) (adc.Reference, bool) {
	for ref := adc.ReferenceSupply; ref <= adc.ReferenceInternal; ref++ {
		if ref.String() == s {
			return ref, true
		}
	}
	return 0, false
}

// analogSet applies a voltage on an analog input from outside the chip.
func (r *Runner) analogSet(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var input starlark.Value
	var volts starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "input", &input, "volts", &volts); err != nil {
		return nil, err
	}
	in, err := r.channel(b, input)
	if err != nil {
		return nil, err
	}
	if in > adc.PinAdc5 {
		return nil, fmt.Errorf("%s: %w: %s", b.Name(), ErrNotAnalog, in)
	}
	v, ok := starlark.AsFloat(volts)
	if !ok {
		return nil, fmt.Errorf("%s: got %s for volts, want float", b.Name(), volts.Type())
	}
	r.m.Chip.ADC.SetVoltage(int(in), v)
	return starlark.None, nil
}

// pwmWrite drives one of the Timer0 compare outputs in fast PWM mode.
func (r *Runner) pwmWrite(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var duty int
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pin", &name, "duty", &duty); err != nil {
		return nil, err
	}
	pd, err := r.m.Board.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	if duty < 0 || duty > 0xFF {
		return nil, fmt.Errorf("%s: duty %d out of range", b.Name(), duty)
	}

	t := r.m.Timer0
	switch pd.PortPin() {
	case chip.PinOC0A:
		t.SetPinModeA(timer.PinPwm)
		t.WriteCompareA(uint8(duty))
	case chip.PinOC0B:
		t.SetPinModeB(timer.PinPwm)
		t.WriteCompareB(uint8(duty))
	default:
		return nil, fmt.Errorf("%s: %w: %s", b.Name(), ErrNoPWM, pd.Name)
	}
	r.m.PortPin(pd.PortPin()).SetMode(gpio.Output)
	t.SetCounterMode(timer.WavePwmTopNormal)
	t.SetClock(timer.ClockDiv64)
	return starlark.None, nil
}

func (r *Runner) chronoStart(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	r.chrono.Start(timer.ClockDiv8)
	return starlark.None, nil
}

// chronoStop returns the time since chrono_start in microseconds.
func (r *Runner) chronoStop(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	r.chrono.Stop()
	return starlark.Float(float64(r.chrono.Elapsed()) / float64(time.Microsecond)), nil
}

func (r *Runner) dacInit(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "latch", &name); err != nil {
		return nil, err
	}
	p, err := r.pin(b, name)
	if err != nil {
		return nil, err
	}
	r.dac = mcp4822.New(r.m, p)
	r.dac.Init()
	return starlark.None, nil
}

// dacWrite waits for the previous write, then sends a to channel A, and b
// to channel B if given.
func (r *Runner) dacWrite(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var va int
	var vb starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "a", &va, "b?", &vb); err != nil {
		return nil, err
	}
	if r.dac == nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), ErrNoDAC)
	}
	if va < 0 || va > mcp4822.MaxValue {
		return nil, fmt.Errorf("%s: a %d out of range", b.Name(), va)
	}
	n := -1
	if vb != starlark.None {
		var err error
		if n, err = starlark.AsInt32(vb); err != nil {
			return nil, fmt.Errorf("%s: b: %w", b.Name(), err)
		}
		if n < 0 || n > mcp4822.MaxValue {
			return nil, fmt.Errorf("%s: b %d out of range", b.Name(), n)
		}
	}
	for r.dac.Busy() {
		r.m.Idle()
	}
	if n < 0 {
		r.dac.WriteChannel(mcp4822.ChannelA, uint16(va))
	} else {
		r.dac.WriteBoth(uint16(va), uint16(n))
	}
	return starlark.None, nil
}

func (r *Runner) dacLatch(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	if r.dac == nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), ErrNoDAC)
	}
	for r.dac.Busy() {
		r.m.Idle()
	}
	r.dac.Latch()
	return starlark.None, nil
}
