// Package sim is the terminal front end for a simulated board.
//
// It draws the LED matrix, a status line, and the serial console with
// tcell, and feeds keystrokes back to the runtime as button presses and
// pin level changes. The front end never touches runtime state
// directly: everything it injects enters through the stimulus queue,
// and everything it shows arrives either through RenderFrame or through
// a sampling stimulus, so the scheduler goroutine and the UI goroutine
// share nothing but this package's mutex.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/solenoidlabs/fray/internal/board"
	"github.com/solenoidlabs/fray/internal/device/button"
	"github.com/solenoidlabs/fray/internal/device/display"
	"github.com/solenoidlabs/fray/internal/fiber"
)

const (
	// DefaultRefreshMS is the repaint period in milliseconds.
	DefaultRefreshMS = 33

	// DefaultSerialLines is the serial console scrollback depth.
	DefaultSerialLines = 200

	// tapHold is how long a lowercase button key holds the button,
	// comfortably past the debounce window and well under the long
	// click threshold.
	tapHold = 200 * time.Millisecond

	// longHold is how long an uppercase button key holds the button,
	// past the hold threshold so Hold and LongClick both fire.
	longHold = (button.HoldTime + 300) * time.Millisecond
)

// simPins is how many pins get a toggle key, P0 through P2.
const simPins = 3

// status is a snapshot of baton-domain board state, taken by a sampling
// stimulus and read by the draw loop.
type status struct {
	name    string
	ticks   uint64
	tempC   int
	fault   int
	fibers  int
	buttonA bool
	buttonB bool
}

// Options configures a UI.
type Options struct {
	// Screen overrides the terminal screen, usually with a tcell
	// simulation screen in tests. Nil opens the real terminal.
	Screen tcell.Screen

	// RefreshMS is the repaint period. Zero means DefaultRefreshMS.
	RefreshMS int

	// SerialLines is the serial scrollback depth. Zero means
	// DefaultSerialLines.
	SerialLines int
}

// UI owns the terminal screen and the goroutines around it. Create it
// before the board so the board can take it as its frame renderer and
// its Console as the serial sink, then hand the board to Run.
type UI struct {
	screen  tcell.Screen
	cons    *Console
	refresh time.Duration

	brd *board.Board

	quit     chan struct{}
	quitOnce sync.Once
	redraw   chan struct{}

	// pinLevels tracks the toggle state of the pin keys. Only the
	// input goroutine touches it.
	pinLevels [simPins]bool

	mu         sync.Mutex
	frame      *display.Image
	brightness uint8
	st         status
	halted     bool
}

// New creates a UI. With no Options.Screen it opens the real terminal,
// which fails when the process has no TTY.
func New(opts Options) (*UI, error) {
	scr := opts.Screen
	if scr == nil {
		var err error
		scr, err = tcell.NewScreen()
		if err != nil {
			return nil, fmt.Errorf("opening terminal: %w", err)
		}
	}
	refresh := opts.RefreshMS
	if refresh <= 0 {
		refresh = DefaultRefreshMS
	}
	depth := opts.SerialLines
	if depth <= 0 {
		depth = DefaultSerialLines
	}
	return &UI{
		screen:  scr,
		cons:    NewConsole(depth),
		refresh: time.Duration(refresh) * time.Millisecond,
		quit:    make(chan struct{}),
		redraw:  make(chan struct{}, 1),
	}, nil
}

// Console returns the serial sink to wire in as the board's serial
// writer.
func (u *UI) Console() *Console {
	return u.cons
}

// RenderFrame stores the latest visible frame for the draw loop. The
// display calls it in the baton domain with a frame it will not touch
// again.
func (u *UI) RenderFrame(frame *display.Image, brightness uint8) {
	u.mu.Lock()
	u.frame = frame
	u.brightness = brightness
	u.mu.Unlock()
}

// Run drives the screen until the quit key or ctx ends it. The board
// keeps running either way; the caller decides whether closing the UI
// shuts it down.
func (u *UI) Run(ctx context.Context, b *board.Board) error {
	u.brd = b
	if err := u.screen.Init(); err != nil {
		return fmt.Errorf("terminal init: %w", err)
	}
	defer u.screen.Fini()
	u.screen.HideCursor()

	go u.pollInput()

	ticker := time.NewTicker(u.refresh)
	defer ticker.Stop()

	u.sample()
	u.draw()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-u.quit:
			return nil
		case <-u.redraw:
			u.screen.Sync()
			u.draw()
		case <-ticker.C:
			u.sample()
			u.draw()
		}
	}
}

// pollInput translates terminal events into runtime stimuli. It exits
// when Fini makes PollEvent return nil.
func (u *UI) pollInput() {
	for {
		ev := u.screen.PollEvent()
		if ev == nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			switch ev.Key() {
			case tcell.KeyCtrlC, tcell.KeyEscape:
				u.requestQuit()
			case tcell.KeyRune:
				u.handleRune(ev.Rune())
			}
		case *tcell.EventResize:
			select {
			case u.redraw <- struct{}{}:
			default:
			}
		}
	}
}

func (u *UI) handleRune(r rune) {
	if u.brd == nil {
		return
	}
	switch r {
	case 'q':
		u.requestQuit()
	case 'a':
		u.tap(board.IDButtonA, tapHold)
	case 'b':
		u.tap(board.IDButtonB, tapHold)
	case 'A':
		u.tap(board.IDButtonA, longHold)
	case 'B':
		u.tap(board.IDButtonB, longHold)
	case 't':
		u.nudgeTemperature(1)
	case 'T':
		u.nudgeTemperature(-1)
	case '0', '1', '2':
		u.togglePin(int(r - '0'))
	}
}

func (u *UI) requestQuit() {
	u.quitOnce.Do(func() { close(u.quit) })
}

// tap presses a button and releases it after hold. The release timer
// outliving the board is fine; a press on a stopped board is dropped.
func (u *UI) tap(id int, hold time.Duration) {
	if err := u.brd.PressButton(id, true); err != nil {
		return
	}
	time.AfterFunc(hold, func() {
		_ = u.brd.PressButton(id, false)
	})
}

// nudgeTemperature moves the simulated die temperature by delta whole
// degrees. The thermometer picks the new reading up at its next sample.
func (u *UI) nudgeTemperature(delta int) {
	_ = u.brd.Scheduler().PostStimulus(func() {
		th := u.brd.Thermometer()
		th.SetRawValue((th.Temperature() + delta) * 4)
	})
}

// togglePin flips the external level on pin Pn between low and high.
func (u *UI) togglePin(n int) {
	if n < 0 || n >= simPins {
		return
	}
	u.pinLevels[n] = !u.pinLevels[n]
	level := 0
	if u.pinLevels[n] {
		level = 1
	}
	name := fmt.Sprintf("P%d", n)
	_ = u.brd.Scheduler().PostStimulus(func() {
		if p := u.brd.IO().Find(name); p != nil {
			p.SetInput(level)
		}
	})
}

// sample posts a stimulus that snapshots baton-domain state for the
// status line. Once the scheduler has stopped the last snapshot stays
// on screen and the status line reports the halt.
func (u *UI) sample() {
	u.mu.Lock()
	halted := u.halted
	u.mu.Unlock()
	if halted {
		return
	}
	err := u.brd.Scheduler().PostStimulus(func() {
		st := status{
			name:    u.brd.Name(),
			ticks:   u.brd.Scheduler().Ticks(),
			tempC:   u.brd.Thermometer().Temperature(),
			fault:   u.brd.Display().FaultCode(),
			fibers:  u.brd.Scheduler().ActiveFibers(),
			buttonA: u.brd.ButtonA().IsPressed(),
			buttonB: u.brd.ButtonB().IsPressed(),
		}
		u.mu.Lock()
		u.st = st
		u.mu.Unlock()
	})
	if errors.Is(err, fiber.ErrStopped) {
		u.mu.Lock()
		u.halted = true
		u.mu.Unlock()
	}
}
