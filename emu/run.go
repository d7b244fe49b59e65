package emu

import (
	"context"
	"embed"
	"fmt"
	"io"
	"os"
	"path"

	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"

	"avrhal/emu/log"
	"avrhal/mcu"
	"avrhal/script"
)

//go:embed scripts/*.star
var scriptFS embed.FS

// BuiltinScript returns the source of a script shipped with the emulator.
func BuiltinScript(name string) ([]byte, error) {
	return scriptFS.ReadFile(path.Join("scripts", name+".star"))
}

// Program is a script to run on an MCU.
type Program struct {
	Name string
	// Source of the script, read from the file called Name if nil.
	Source  []byte
	Options script.Options
}

// Run executes prog on m until it returns or ctx is done. Bytes sent by
// USART0 are forwarded to sink by a separate goroutine, so a slow sink never
// stalls the MCU for long.
func Run(ctx context.Context, m *mcu.MCU, prog Program, sink io.Writer) error {
	defer log.AddContext(cycleContext{m})()

	g, ctx := errgroup.WithContext(ctx)
	out := make(chan byte, 256)

	m.Chip.USART.Transmit = func(b uint8) {
		select {
		case out <- b:
		case <-ctx.Done():
		}
	}
	defer func() { m.Chip.USART.Transmit = nil }()

	g.Go(func() error {
		defer close(out)
		var src any
		if prog.Source != nil {
			src = prog.Source
		}
		_, err := script.New(m, prog.Options).Exec(ctx, prog.Name, src)
		return err
	})
	g.Go(func() error {
		var buf [1]byte
		for b := range out {
			buf[0] = b
			if _, err := sink.Write(buf[:]); err != nil {
				return fmt.Errorf("serial sink: %w", err)
			}
		}
		return nil
	})

	err := g.Wait()
	log.ModEmu.InfoZ("run done").
		String("script", prog.Name).
		Duration("elapsed", m.Elapsed()).
		Uint("cycles", uint(m.Chip.Clock.Cycles())).
		End()
	return err
}

// cycleContext stamps log entries with the emulated cycle count.
type cycleContext struct{ m *mcu.MCU }

func (c cycleContext) AddLogContext(z *log.EntryZ) {
	z.Uint("cycle", uint(c.m.Chip.Clock.Cycles()))
}

// OpenSerial returns the sink selected by cfg: a host serial port, or
// stdout when no port is configured.
func OpenSerial(cfg SerialConfig) (io.WriteCloser, error) {
	if cfg.Port == "" {
		return nopCloser{os.Stdout}, nil
	}
	p, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}
	log.ModEmu.InfoZ("serial port open").String("port", cfg.Port).Int("baud", cfg.Baud).End()
	return p, nil
}

// SerialPorts lists the serial ports of the host.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// TracePins writes a line to w each time the level of one of the named pins
// changes.
func TracePins(w io.Writer, m *mcu.MCU, names ...string) error {
	for _, name := range names {
		p, err := m.Pin(name)
		if err != nil {
			return err
		}
		m.OnPinChange(p, func(level bool) {
			lv := "low"
			if level {
				lv = "high"
			}
			fmt.Fprintf(w, "%12s %s %s\n", m.Elapsed(), p.Name(), lv)
		})
	}
	return nil
}
