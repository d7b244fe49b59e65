package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"

	"avrhal/emu"
)

func main() {
	args := parseArgs(os.Args[1:])
	cfg, err := emu.LoadConfig(args.Config)
	checkf(err, "failed to load configuration")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch args.mode {
	case runMode:
		err = runMain(ctx, args.Run, cfg)
	case blinkMode:
		err = blinkMain(ctx, args.Blink, cfg)
	case boardsMode:
		err = boardsMain(args.Boards)
	case dumpMode:
		err = dumpMain(ctx, args.Dump, cfg)
	case portsMode:
		err = portsMain()
	case versionMode:
		printVersion()
	}
	checkf(err, "command failed")
}

func printVersion() {
	version := "(devel)"
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		version = bi.Main.Version
	}
	fmt.Println("avrhal", version)
}
