// Package button models a debounced push button.
//
// The board's system ticker samples the raw pin level through a
// PinReader and integrates it with a sigma counter, so contact bounce
// never produces spurious transitions. Each clean transition fires
// events on the bus: Down and Up immediately, Click or LongClick on
// release depending on how long the button was held, and Hold once
// while a press is still in progress. Front ends without a real pin
// feed the built-in reader with SetPressed.
package button

import (
	"github.com/solenoidlabs/fray/internal/bus"
	"github.com/solenoidlabs/fray/internal/fiber"
)

// Events fired on the button's source.
const (
	EventDown      = 1
	EventUp        = 2
	EventClick     = 3
	EventLongClick = 4
	EventHold      = 5
)

// Debounce and gesture timing.
const (
	// SamplePeriod is the pin sampling interval in milliseconds.
	SamplePeriod = 6

	// LongClickTime is the held duration, in ms, past which a release
	// reports LongClick instead of Click.
	LongClickTime = 1000

	// HoldTime is the held duration, in ms, at which Hold fires.
	HoldTime = 1500

	sigmaMin      = 0
	sigmaMax      = 12
	sigmaPressed  = 8
	sigmaReleased = 2
)

// PinReader reports the raw pin level behind a button.
type PinReader interface {
	IsHigh() bool
}

// latch is the built-in reader for front ends without a real pin.
type latch struct {
	high bool
}

func (l *latch) IsHigh() bool { return l.high }

// Button integrates a raw pin level into debounced gesture events.
// All methods are baton-domain calls; front ends on other goroutines
// must post SetPressed through the scheduler.
type Button struct {
	id     int
	bus    *bus.Bus
	sched  *fiber.Scheduler
	cache  bus.DispatchCache
	now    func() uint64
	reader PinReader
	latch  latch

	sigma         int
	pressed       bool
	holdTriggered bool
	downStart     uint64
}

// Option configures a Button.
type Option func(*Button)

// WithClock overrides the time source, in milliseconds since boot.
func WithClock(now func() uint64) Option {
	return func(b *Button) {
		if now != nil {
			b.now = now
		}
	}
}

// WithReader samples the raw level from r instead of the built-in
// SetPressed latch.
func WithReader(r PinReader) Option {
	return func(b *Button) {
		if r != nil {
			b.reader = r
		}
	}
}

// New creates a button emitting events with the given source id.
func New(id int, eb *bus.Bus, sched *fiber.Scheduler, opts ...Option) *Button {
	b := &Button{
		id:    id,
		bus:   eb,
		sched: sched,
	}
	b.now = sched.Ticks
	b.reader = &b.latch
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ID returns the button's bus source id.
func (b *Button) ID() int { return b.id }

// SystemTick samples the pin from the board's system ticker.
func (b *Button) SystemTick(elapsedMS uint64) {
	b.Poll()
}

// SetPressed sets the raw pin level on the built-in reader. The
// debounced state follows after enough consistent samples. It has no
// effect when a custom PinReader is attached.
func (b *Button) SetPressed(pressed bool) {
	b.latch.high = pressed
}

// IsPressed reports the debounced button state.
func (b *Button) IsPressed() bool {
	return b.pressed
}

// Poll takes one debounce sample. The system ticker calls it every
// SamplePeriod; tests drive it directly.
func (b *Button) Poll() {
	if b.reader.IsHigh() {
		if b.sigma < sigmaMax {
			b.sigma++
		}
	} else {
		if b.sigma > sigmaMin {
			b.sigma--
		}
	}

	if b.sigma > sigmaPressed && !b.pressed {
		b.pressed = true
		b.holdTriggered = false
		b.downStart = b.now()
		b.sendEvent(EventDown)
	}

	if b.sigma < sigmaReleased && b.pressed {
		held := b.now() - b.downStart
		b.pressed = false
		b.sendEvent(EventUp)
		if held >= LongClickTime {
			b.sendEvent(EventLongClick)
		} else {
			b.sendEvent(EventClick)
		}
	}

	if b.pressed && !b.holdTriggered && b.now()-b.downStart >= HoldTime {
		b.holdTriggered = true
		b.sendEvent(EventHold)
	}
}

func (b *Button) sendEvent(code int) {
	b.bus.Send(bus.NewEvent(b.id, code, b.now()), &b.cache)
}
