package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"avrhal/emu/log"
)

type mode byte

const (
	runMode     mode = iota // Run a script
	blinkMode               // Run the built-in blink script
	boardsMode              // List boards or show a pin table
	dumpMode                // Run a script and dump the MCU state
	portsMode               // List host serial ports
	versionMode             // Show avrhal version
)

type (
	CLI struct {
		Run     Run     `cmd:"" help:"Run a Starlark script on the emulated MCU. (default command)" default:"withargs"`
		Blink   Blink   `cmd:"" help:"Blink the board LED."`
		Boards  Boards  `cmd:"" help:"List built-in boards, or the pins of one board."`
		Dump    Dump    `cmd:"" help:"Run a script then dump the MCU state as JSON."`
		Ports   Ports   `cmd:"" help:"List host serial ports."`
		Version Version `cmd:"" help:"Show avrhal version."`

		Log    logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`
		Config string     `help:"${config_help}" type:"path" placeholder:"FILE"`

		mode mode
	}

	// MCUFlags override the configuration file.
	MCUFlags struct {
		Board     string   `help:"Board pin table." placeholder:"NAME"`
		Frequency uint32   `help:"CPU clock in Hz." placeholder:"HZ"`
		Port      string   `help:"${port_help}" placeholder:"DEVICE"`
		Trace     []string `help:"Print level changes of these pins." placeholder:"PIN,..."`
	}

	Run struct {
		Script   string `arg:"" name:"script.star" help:"Starlark script." type:"existingfile"`
		MCUFlags `embed:""`

		Loops    int      `help:"Number of loop() calls, 0 for no limit." default:"0"`
		Realtime bool     `help:"Make delays also wait on the host clock."`
		Dump     *outfile `help:"Dump the MCU state as JSON when the script returns." placeholder:"FILE|stdout|stderr"`
	}

	Blink struct {
		MCUFlags `embed:""`
		Loops    int  `help:"Number of toggles." default:"10"`
		Realtime bool `help:"Blink at the real pace." default:"true" negatable:""`
	}

	Boards struct {
		Name string `arg:"" optional:"" help:"Show the pins of this board."`
	}

	Dump struct {
		Script   string `arg:"" name:"script.star" help:"Starlark script." type:"existingfile"`
		MCUFlags `embed:""`
		Loops    int `help:"Number of loop() calls." default:"1"`
	}

	Ports   struct{}
	Version struct{}
)

var vars = kong.Vars{
	"log_help":    "Enable logging for specified modules.",
	"config_help": "Configuration file, defaults to avrhal/config.toml in the user config directory.",
	"port_help":   "Forward the serial output to this host serial port instead of stdout.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("avrhal"),
		kong.Description("ATmega328P emulator scripted in Starlark."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	switch ctx.Command() {
	case "blink":
		cfg.mode = blinkMode
	case "boards", "boards <name>":
		cfg.mode = boardsMode
	case "dump <script.star>":
		cfg.mode = dumpMode
	case "ports":
		cfg.mode = portsMode
	case "version":
		cfg.mode = versionMode
	default:
		cfg.mode = runMode
	}
	return cfg
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	loggingHelp := `
Log modules:
  The --log flag accepts a comma-separated list of modules.

  Valid log modules are:
%s

  As a special case, the following values are accepted:
    - no                     Disable all logging.
    - all                    Enable all logs.
`
	var strs []string
	for _, m := range log.ModuleNames() {
		strs = append(strs, "    - "+m)
	}

	fmt.Fprintf(os.Stderr, loggingHelp, strings.Join(strs, "\n"))
	return nil
}

type logModMask log.ModuleMask

// Decode decodes a comma-separated list of module names into a module mask.
//
// Implements kong.MapperValue interface.
func (lm logModMask) Decode(ctx *kong.DecodeContext) error {
	nolog := false
	allLogs := false

	tok := ctx.Scan.Pop()
	for _, v := range strings.Split(tok.Value.(string), ",") {
		switch v {
		case "all":
			allLogs = true
		case "no":
			nolog = true
		default:
			mod, ok := log.ModuleByName(v)
			if !ok {
				return fmt.Errorf("unknown log module %s", v)
			}
			lm |= logModMask(mod.Mask())
		}
	}

	if nolog {
		if allLogs {
			return fmt.Errorf("cannot use 'all' and 'no' together")
		}
		if lm != 0 {
			return fmt.Errorf("cannot combine 'no' with other log modules")
		}
		log.Disable()
		return nil
	}

	if allLogs {
		lm = logModMask(log.ModuleMaskAll)
	}

	log.EnableDebugModules(log.ModuleMask(lm))
	return nil
}

type outfile struct {
	w     io.Writer
	name  string
	close func() error
}

// Decode decodes FILE|stdout|stderr into an io.WriteCloser
// that writes to that file.
//
// Implements kong.MapperValue interface.
func (f *outfile) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	f.name = tok.Value.(string)
	f.close = func() error { return nil }

	switch f.name {
	case "stdout":
		f.w = os.Stdout
	case "stderr":
		f.w = os.Stderr
	default:
		fd, err := os.Create(f.name)
		if err != nil {
			return err
		}
		f.w = fd
		f.close = fd.Close
	}
	return nil
}

func (f *outfile) String() string              { return f.name }
func (f *outfile) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *outfile) Close() error                { return f.close() }

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fatalf(format+".\n"+err.Error(), args...)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
