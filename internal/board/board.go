// Package board assembles the device runtime: the cooperative fiber
// scheduler, the event bus, the peripheral set, the system ticker that
// strobes them, the pairing service, and persistent storage. A Board is
// the single object user programs receive, in the way the source
// hardware exposes one device object to application code.
package board

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/solenoidlabs/fray/internal/bus"
	"github.com/solenoidlabs/fray/internal/device/button"
	"github.com/solenoidlabs/fray/internal/device/display"
	"github.com/solenoidlabs/fray/internal/device/pin"
	"github.com/solenoidlabs/fray/internal/device/serial"
	"github.com/solenoidlabs/fray/internal/device/thermo"
	"github.com/solenoidlabs/fray/internal/fiber"
	"github.com/solenoidlabs/fray/internal/nvram"
	"github.com/solenoidlabs/fray/internal/pairing"
)

// BootDelayMS is how long the main fiber sleeps before user code runs,
// giving spawned services time to settle.
const BootDelayMS = 100

// Board is the central coordinator for the runtime. It owns component
// construction, wiring, and the run loop.
type Board struct {
	logger *Logger

	// Core infrastructure
	sched *fiber.Scheduler
	bus   *bus.Bus
	store *nvram.Store

	// Peripherals
	display *display.Display
	buttonA *button.Button
	buttonB *button.Button
	io      *pin.IO
	serial  *serial.Serial
	thermo  *thermo.Thermometer

	// Services
	ticker  *Ticker
	pairing *pairing.Service

	// State
	running atomic.Bool

	// Options
	opts Options
}

// Options configures the board.
type Options struct {
	// TickPeriod is the system tick period in milliseconds.
	// Zero means DefaultTickPeriod.
	TickPeriod uint64

	// MaxFibers bounds the live fiber pool. Zero means the scheduler
	// default.
	MaxFibers int

	// StackWords is the default context stack capacity per fiber.
	// Zero means the scheduler default.
	StackWords int

	// RealTime paces the virtual millisecond clock against the wall
	// clock instead of jumping it.
	RealTime bool

	// NVRAMPath is the persistent store file. Empty disables
	// persistence.
	NVRAMPath string

	// DeviceID seeds the pairing identity. Zero means the pairing
	// default.
	DeviceID uint32

	// FlashCode is the passcode pairing releases. Zero means the
	// pairing default.
	FlashCode uint32

	// PairingMode runs the interactive pairing session at boot.
	PairingMode bool

	// Renderer receives display frames. Nil leaves the display dark.
	Renderer display.Renderer

	// SerialWriter receives console output. Nil discards it.
	SerialWriter io.Writer

	// SerialReader feeds console input. Nil means no input.
	SerialReader io.Reader

	// Logger overrides the runtime logger.
	Logger *Logger
}

// New creates a Board with the given options.
func New(opts Options) (*Board, error) {
	b := &Board{opts: opts}

	if opts.Logger != nil {
		b.logger = opts.Logger
	} else {
		b.logger = GetLogger()
	}

	if err := b.bootstrap(); err != nil {
		return nil, err
	}

	return b, nil
}

// bootstrap initializes all components in dependency order.
func (b *Board) bootstrap() error {
	// 1. Scheduler - the cooperative fiber runtime.
	schedOpts := []fiber.Option{
		fiber.WithPanicHandler(b.onFiberPanic),
	}
	if b.opts.MaxFibers > 0 {
		schedOpts = append(schedOpts, fiber.WithMaxFibers(b.opts.MaxFibers))
	}
	if b.opts.StackWords > 0 {
		schedOpts = append(schedOpts, fiber.WithDefaultStackWords(b.opts.StackWords))
	}
	if b.opts.RealTime {
		schedOpts = append(schedOpts, fiber.WithRealTime())
	}
	b.sched = fiber.NewScheduler(schedOpts...)

	// 2. Event bus - one listener fiber per match, scheduler wakes.
	b.bus = bus.NewBus(fiberSpawner{sched: b.sched}, bus.WithWaker(b.sched))

	// 3. NVRAM, when a path is configured.
	if b.opts.NVRAMPath != "" {
		store, err := nvram.Open(b.opts.NVRAMPath)
		if err != nil {
			return &InitError{Component: "nvram", Err: err}
		}
		b.store = store
	}

	// 4. Peripherals.
	var displayOpts []display.Option
	if b.opts.Renderer != nil {
		displayOpts = append(displayOpts, display.WithRenderer(b.opts.Renderer))
	}
	b.display = display.New(IDDisplay, b.bus, b.sched, displayOpts...)
	b.buttonA = button.New(IDButtonA, b.bus, b.sched)
	b.buttonB = button.New(IDButtonB, b.bus, b.sched)
	b.io = pin.NewIO(IDFirstPin, b.bus, b.sched)

	var serialOpts []serial.Option
	if b.opts.SerialWriter != nil {
		serialOpts = append(serialOpts, serial.WithWriter(b.opts.SerialWriter))
	}
	if b.opts.SerialReader != nil {
		serialOpts = append(serialOpts, serial.WithReader(b.opts.SerialReader))
	}
	b.serial = serial.New(serialOpts...)

	b.thermo = thermo.New(IDThermometer, b.bus, b.sched)

	// 5. System ticker and the component registry.
	b.ticker = NewTicker(b.sched, b.opts.TickPeriod)
	b.ticker.AddSystem(b.display)
	b.ticker.AddSystem(b.buttonA)
	b.ticker.AddSystem(b.buttonB)
	b.ticker.AddIdle(b.thermo)

	// 6. Pairing service and its listeners.
	pairingOpts := []pairing.Option{
		pairing.WithPairButton(IDButtonA),
	}
	if b.opts.DeviceID != 0 {
		pairingOpts = append(pairingOpts, pairing.WithDeviceID(b.opts.DeviceID))
	}
	if b.opts.FlashCode != 0 {
		pairingOpts = append(pairingOpts, pairing.WithFlashCode(b.opts.FlashCode))
	}
	if b.store != nil {
		pairingOpts = append(pairingOpts, pairing.WithStore(b.store))
	}
	b.pairing = pairing.New(IDPairing, b.bus, b.sched, b.display, pairingOpts...)
	b.pairing.Install()

	return nil
}

// Run starts the runtime: the system ticker, the pairing session when
// configured, and the user program on the main fiber. Blocks until a
// fiber calls Halt, Panic fires, or ctx is cancelled.
func (b *Board) Run(ctx context.Context, program func(*Board)) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer b.running.Store(false)

	if err := b.ticker.Start(); err != nil {
		return &InitError{Component: "ticker", Err: err}
	}

	if b.opts.PairingMode {
		if _, err := b.sched.SpawnFunc(b.pairing.Pair, fiber.WithName("pairing")); err != nil {
			return &InitError{Component: "pairing", Err: err}
		}
	}

	if program != nil {
		_, err := b.sched.SpawnFunc(func() {
			b.sched.Sleep(BootDelayMS)
			program(b)
		}, fiber.WithName("main"))
		if err != nil {
			return &InitError{Component: "program", Err: err}
		}
	}

	b.logger.Info("board up: name=%s tick=%dms", b.pairing.Name(), b.ticker.Period())

	err := b.sched.Run(ctx)
	b.ticker.Stop()
	return err
}

// Shutdown asks a running board to stop from outside the scheduler. The
// halt enters through the stimulus queue, so it lands between fiber
// slices.
func (b *Board) Shutdown() {
	b.ticker.Stop()
	_ = b.sched.PostStimulus(b.sched.Halt)
}

// Close releases the board's persistent resources. Call after Run has
// returned.
func (b *Board) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}

// Panic paints the fault face for code on the display and halts the
// runtime. Baton-domain: call from a fiber or before Run.
func (b *Board) Panic(code int) {
	b.logger.Error("panic: code=%d", code)
	b.display.Error(code)
	b.sched.Halt()
}

// onFiberPanic maps a dead fiber onto the fault path. Stack slice
// overflow and every other fiber death land here; the board shows the
// memory fault face and stops.
func (b *Board) onFiberPanic(f *fiber.Fiber, v any, _ []byte) {
	name := "stimulus"
	if f != nil {
		name = f.Name()
	}
	b.logger.WithComponent("fiber").Error("fiber %s died: %v", name, v)
	b.display.Error(PanicOutOfMemory)
	b.sched.Halt()
}

// Emit sends an event on the bus with the current tick as timestamp.
// Baton-domain; external goroutines post stimuli instead.
func (b *Board) Emit(source, value int) {
	b.bus.Send(bus.NewEvent(source, value, b.sched.Ticks()), nil)
}

// PressButton posts a button level change from an external goroutine,
// entering the runtime through the stimulus queue only.
func (b *Board) PressButton(id int, down bool) error {
	btn := b.buttonByID(id)
	if btn == nil {
		return ErrUnknownSource
	}
	return b.sched.PostStimulus(func() { btn.SetPressed(down) })
}

func (b *Board) buttonByID(id int) *button.Button {
	switch id {
	case IDButtonA:
		return b.buttonA
	case IDButtonB:
		return b.buttonB
	default:
		return nil
	}
}

// IsRunning returns true if the runtime loop is executing.
func (b *Board) IsRunning() bool {
	return b.running.Load()
}

// Name returns the board's friendly name.
func (b *Board) Name() string {
	return b.pairing.Name()
}

// Scheduler returns the fiber scheduler.
func (b *Board) Scheduler() *fiber.Scheduler {
	return b.sched
}

// Bus returns the event bus.
func (b *Board) Bus() *bus.Bus {
	return b.bus
}

// Display returns the LED matrix.
func (b *Board) Display() *display.Display {
	return b.display
}

// ButtonA returns the left button.
func (b *Board) ButtonA() *button.Button {
	return b.buttonA
}

// ButtonB returns the right button.
func (b *Board) ButtonB() *button.Button {
	return b.buttonB
}

// IO returns the pin bank.
func (b *Board) IO() *pin.IO {
	return b.io
}

// Serial returns the console.
func (b *Board) Serial() *serial.Serial {
	return b.serial
}

// Thermometer returns the temperature sensor.
func (b *Board) Thermometer() *thermo.Thermometer {
	return b.thermo
}

// Ticker returns the system ticker.
func (b *Board) Ticker() *Ticker {
	return b.ticker
}

// Pairing returns the pairing service.
func (b *Board) Pairing() *pairing.Service {
	return b.pairing
}

// NVRAM returns the persistent store (may be nil).
func (b *Board) NVRAM() *nvram.Store {
	return b.store
}

// Logger returns the board's logger.
func (b *Board) Logger() *Logger {
	return b.logger
}

// Stats is a point-in-time snapshot of runtime counters.
type Stats struct {
	Fiber      fiber.Stats
	Bus        bus.Stats
	TickRounds uint64
}

// Stats returns a snapshot of runtime counters.
func (b *Board) Stats() Stats {
	return Stats{
		Fiber:      b.sched.Stats(),
		Bus:        b.bus.Stats(),
		TickRounds: b.ticker.Rounds(),
	}
}
