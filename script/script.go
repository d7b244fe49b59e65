// Package script runs Starlark programs against an emulated MCU. A program
// is run once; if it then defines setup and loop functions they are called
// Arduino style.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"avrhal/emu/log"
	"avrhal/hw/chip"
	"avrhal/lib/chrono"
	"avrhal/lib/mcp4822"
	"avrhal/lib/printer"
	"avrhal/mcu"
)

var (
	ErrUnknownPin   = chip.ErrUnknownPin
	ErrNotAnalog    = errors.New("pin has no analog input")
	ErrNoPWM        = errors.New("pin has no pwm output")
	ErrBaudRate     = errors.New("unsupported baud rate")
	ErrSerialClosed = errors.New("serial not started")
	ErrNoDAC        = errors.New("dac not initialized")
)

type Options struct {
	// Stdout receives the output of print(). Defaults to os.Stdout.
	Stdout io.Writer
	// Realtime makes delays also wait on the host clock.
	Realtime bool
	// Loops bounds the number of loop() calls, 0 runs until cancelled.
	Loops int
	// MaxSteps bounds the number of Starlark steps, 0 means no limit.
	MaxSteps uint64
}

type Runner struct {
	m    *mcu.MCU
	opts Options
	ctx  context.Context

	printer *printer.Printer
	serial  bool
	chrono  *chrono.Chrono
	dac     *mcp4822.DAC
}

func New(m *mcu.MCU, opts Options) *Runner {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	return &Runner{
		m:       m,
		opts:    opts,
		ctx:     context.Background(),
		printer: printer.New(m),
		chrono:  chrono.New(m),
	}
}

var fileOptions = syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// Exec runs the program in src (a string, []byte or io.Reader, or the file
// called filename if nil) until it returns or ctx is done.
func (r *Runner) Exec(ctx context.Context, filename string, src any) (starlark.StringDict, error) {
	r.ctx = ctx
	defer func() { r.ctx = context.Background() }()

	thread := &starlark.Thread{
		Name: filename,
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(r.opts.Stdout, msg)
		},
	}
	if r.opts.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(r.opts.MaxSteps)
	}
	stop := context.AfterFunc(ctx, func() { thread.Cancel(context.Cause(ctx).Error()) })
	defer stop()

	log.ModScript.InfoZ("exec").String("file", filename).End()
	// Programs start the way the Arduino core hands over to setup: with
	// interrupts enabled.
	r.m.IRQ.Enable()
	globals, err := starlark.ExecFileOptions(&fileOptions, thread, filename, src, r.builtins())
	if err == nil {
		err = r.runLoop(thread, globals)
	}
	if r.serial {
		r.printer.Flush()
	}
	if ctx.Err() != nil {
		return globals, context.Cause(ctx)
	}
	if err != nil {
		log.ModScript.ErrorZ("script failed").String("file", filename).Error("err", err).End()
		return globals, err
	}
	return globals, nil
}

func (r *Runner) runLoop(thread *starlark.Thread, globals starlark.StringDict) error {
	if setup, ok := globals["setup"].(starlark.Callable); ok {
		if _, err := starlark.Call(thread, setup, nil, nil); err != nil {
			return err
		}
	}
	loop, ok := globals["loop"].(starlark.Callable)
	if !ok {
		return nil
	}
	for i := 0; r.opts.Loops == 0 || i < r.opts.Loops; i++ {
		if _, err := starlark.Call(thread, loop, nil, nil); err != nil {
			return err
		}
		if err := r.ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
