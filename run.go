package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"avrhal/emu"
	"avrhal/hw/chip"
	"avrhal/mcu"
	"avrhal/script"
)

// apply overrides cfg with the flags set on the command line.
func (f MCUFlags) apply(cfg emu.Config) emu.Config {
	if f.Board != "" {
		cfg.MCU.Board = f.Board
	}
	if f.Frequency != 0 {
		cfg.MCU.Frequency = f.Frequency
	}
	if f.Port != "" {
		cfg.Serial.Port = f.Port
	}
	return cfg
}

// setup builds the MCU and opens the serial sink.
func (f MCUFlags) setup(cfg emu.Config) (*mcu.MCU, io.WriteCloser, error) {
	cfg = f.apply(cfg)
	m, err := cfg.NewMCU()
	if err != nil {
		return nil, nil, err
	}
	if err := emu.TracePins(os.Stderr, m, f.Trace...); err != nil {
		return nil, nil, err
	}
	sink, err := emu.OpenSerial(cfg.Serial)
	if err != nil {
		return nil, nil, err
	}
	return m, sink, nil
}

// run runs prog, treating an interrupt from the user as a normal end.
func run(ctx context.Context, m *mcu.MCU, prog emu.Program, sink io.Writer) error {
	err := emu.Run(ctx, m, prog, sink)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runMain(ctx context.Context, args Run, cfg emu.Config) error {
	m, sink, err := args.setup(cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	prog := emu.Program{
		Name: args.Script,
		Options: script.Options{
			Loops:    args.Loops,
			Realtime: args.Realtime,
		},
	}
	if err := run(ctx, m, prog, sink); err != nil {
		return err
	}
	if args.Dump != nil {
		defer args.Dump.Close()
		return emu.Dump(args.Dump, m)
	}
	return nil
}

func blinkMain(ctx context.Context, args Blink, cfg emu.Config) error {
	src, err := emu.BuiltinScript("blink")
	if err != nil {
		return err
	}
	if len(args.Trace) == 0 {
		args.Trace = []string{"Led"}
	}
	m, sink, err := args.setup(cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	return run(ctx, m, emu.Program{
		Name:    "blink.star",
		Source:  src,
		Options: script.Options{Loops: args.Loops, Realtime: args.Realtime},
	}, sink)
}

func dumpMain(ctx context.Context, args Dump, cfg emu.Config) error {
	m, sink, err := args.setup(cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	prog := emu.Program{Name: args.Script, Options: script.Options{Loops: args.Loops}}
	if err := run(ctx, m, prog, sink); err != nil {
		return err
	}
	return emu.Dump(os.Stdout, m)
}

func boardsMain(args Boards) error {
	if args.Name == "" {
		for _, name := range chip.Boards() {
			b, err := chip.LoadBoard(name)
			if err != nil {
				return err
			}
			fmt.Printf("%-16s %s (%d Hz)\n", b.Name, b.Description, b.Frequency)
		}
		return nil
	}

	b, err := chip.LoadBoard(args.Name)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PIN\tPORT\tPACKAGE\tADC\tALIASES")
	for _, pd := range b.Pins {
		number, analog := "-", "-"
		if pd.Number != 0 {
			number = fmt.Sprint(pd.Number)
		}
		if ch, ok := pd.Channel(); ok {
			analog = fmt.Sprint(ch)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", pd.Name, pd.PortPin(), number, analog,
			strings.Join(b.AliasesOf(pd.Name), ","))
	}
	return tw.Flush()
}

func portsMain() error {
	ports, err := emu.SerialPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}
