// Package main is the entry point for the fray board simulator.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/tidwall/pretty"

	"github.com/solenoidlabs/fray/internal/board"
	"github.com/solenoidlabs/fray/internal/bus"
	"github.com/solenoidlabs/fray/internal/config"
	"github.com/solenoidlabs/fray/internal/device/button"
	"github.com/solenoidlabs/fray/internal/device/display"
	"github.com/solenoidlabs/fray/internal/nvram"
	"github.com/solenoidlabs/fray/internal/script"
	"github.com/solenoidlabs/fray/internal/sim"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

type cliOptions struct {
	configPath string
	script     string
	headless   bool
	logLevel   string
	nvramPath  string
	dumpNVRAM  bool
}

// apply lays the command line over the loaded configuration. Flags win
// over file and environment.
func (o cliOptions) apply(cfg *config.Config) {
	if o.script != "" {
		cfg.Script.Path = o.script
	}
	if o.nvramPath != "" {
		cfg.NVRAM.Path = o.nvramPath
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.headless {
		cfg.Sim.Headless = true
	}
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	opts.apply(cfg)

	if opts.dumpNVRAM {
		return dumpNVRAM(cfg.NVRAM.Path)
	}

	if cfg.Sim.Headless {
		return runHeadless(cfg)
	}
	return runTerminal(cfg)
}

// runHeadless runs the board with serial on stdout and no display.
func runHeadless(cfg *config.Config) int {
	if cfg.Script.Path == "" {
		fmt.Fprintln(os.Stderr, "Error: headless mode needs a script to run")
		return 1
	}

	log := board.NewLogger(board.LoggerConfig{
		Level:  board.ParseLogLevel(cfg.Logging.Level),
		Output: os.Stderr,
		Prefix: "fray",
	})
	b, err := newBoard(cfg, log, nil, os.Stdout, os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer b.Close()

	eng := script.New(b)
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopOnSignal(func() {
		b.Shutdown()
		cancel()
	})

	err = b.Run(ctx, eng.Program(cfg.Script.Path))
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if code := b.Display().FaultCode(); code != 0 {
		fmt.Fprintf(os.Stderr, "Error: board fault %d\n", code)
		return 1
	}
	return 0
}

// runTerminal runs the board behind the tcell front end. Runtime logs
// share the serial pane so the screen stays intact.
func runTerminal(cfg *config.Config) int {
	ui, err := sim.New(sim.Options{RefreshMS: cfg.Sim.RefreshMS})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	log := board.NewLogger(board.LoggerConfig{
		Level:  board.ParseLogLevel(cfg.Logging.Level),
		Output: ui.Console(),
		Prefix: "fray",
	})
	b, err := newBoard(cfg, log, ui, ui.Console(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer b.Close()

	prog := demoProgram
	if cfg.Script.Path != "" {
		eng := script.New(b)
		defer eng.Close()
		prog = eng.Program(cfg.Script.Path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopOnSignal(cancel)

	boardErr := make(chan error, 1)
	go func() {
		boardErr <- b.Run(context.Background(), prog)
	}()

	uiErr := ui.Run(ctx, b)

	b.Shutdown()
	err = <-boardErr

	if uiErr != nil && !errors.Is(uiErr, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", uiErr)
		return 1
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// newBoard builds a board from the configuration and applies the
// display and serial settings that live outside board.Options.
func newBoard(cfg *config.Config, log *board.Logger, r display.Renderer, w io.Writer, rd io.Reader) (*board.Board, error) {
	b, err := board.New(board.Options{
		TickPeriod:   uint64(cfg.Board.TickPeriodMS),
		MaxFibers:    cfg.Fiber.MaxFibers,
		StackWords:   cfg.Fiber.StackWords,
		RealTime:     cfg.Fiber.RealTime,
		NVRAMPath:    cfg.NVRAM.Path,
		DeviceID:     cfg.Board.DeviceID,
		FlashCode:    cfg.Board.FlashCode,
		PairingMode:  cfg.Board.PairingMode,
		Renderer:     r,
		SerialWriter: w,
		SerialReader: rd,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}

	d := b.Display()
	if err := d.SetBrightness(cfg.Display.Brightness); err != nil {
		_ = b.Close()
		return nil, err
	}
	if err := d.RotateTo(rotationFor(cfg.Display.Rotation)); err != nil {
		_ = b.Close()
		return nil, err
	}
	if cfg.Display.Greyscale {
		d.SetDisplayMode(display.ModeGreyscale)
	}
	if err := b.Serial().SetBaud(cfg.Serial.Baud); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func rotationFor(deg int) display.Rotation {
	switch deg {
	case 90:
		return display.Rotation90
	case 180:
		return display.Rotation180
	case 270:
		return display.Rotation270
	}
	return display.Rotation0
}

// demoProgram is the out-of-box program used when no script is given.
// It scrolls a greeting, then echoes button presses on the display.
func demoProgram(b *board.Board) {
	b.Serial().WriteString("fray demo: press a or b, q quits\r\n")
	d := b.Display()
	d.ScrollString("FRAY", display.DefaultScrollSpeed)

	b.Bus().ListenFunc(board.IDButtonA, button.EventClick, func(bus.Event) {
		d.PrintChar('A')
	})
	b.Bus().ListenFunc(board.IDButtonB, button.EventClick, func(bus.Event) {
		d.PrintChar('B')
	})

	for {
		b.Scheduler().Sleep(60000)
	}
}

// dumpNVRAM prints the persistent store as indented JSON.
func dumpNVRAM(path string) int {
	if path == "" {
		fmt.Fprintln(os.Stderr, "Error: no nvram path configured")
		return 1
	}
	st, err := nvram.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer st.Close()

	records, err := st.Dump()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	raw, err := json.Marshal(records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	os.Stdout.Write(pretty.Pretty(raw))
	return 0
}

// stopOnSignal runs stop on the first SIGINT or SIGTERM.
func stopOnSignal(stop func()) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		stop()
	}()
}

func parseFlags() cliOptions {
	var opts cliOptions
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.script, "script", "", "Lua program to run")
	flag.StringVar(&opts.script, "s", "", "Lua program to run (shorthand)")
	flag.BoolVar(&opts.headless, "headless", false, "Run without the terminal UI")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.nvramPath, "nvram", "", "Persistent store file")
	flag.BoolVar(&opts.dumpNVRAM, "dump-nvram", false, "Print the persistent store as JSON and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Fray - embedded board simulator\n\n")
		fmt.Fprintf(os.Stderr, "Usage: fray [options] [script.lua]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  fray                         Run the built-in demo\n")
		fmt.Fprintf(os.Stderr, "  fray blink.lua               Run a script in the terminal UI\n")
		fmt.Fprintf(os.Stderr, "  fray -headless blink.lua     Run a script with serial on stdout\n")
		fmt.Fprintf(os.Stderr, "  fray -dump-nvram -nvram f.db Print the persistent store\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("Fray %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	switch opts.logLevel {
	case "", "debug", "info", "warn", "error":
		// Valid
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.logLevel)
		os.Exit(1)
	}

	// A bare argument is the script to run.
	if opts.script == "" && flag.NArg() > 0 {
		opts.script = flag.Arg(0)
	}

	return opts
}
