package fiber

import (
	"fmt"

	"github.com/solenoidlabs/fray/internal/mcu"
)

// Runnable is the body of a fiber.
type Runnable interface {
	Run()
}

// RunnableFunc adapts a plain function to the Runnable interface.
type RunnableFunc func()

// Run calls fn.
func (fn RunnableFunc) Run() { fn() }

// State describes where a fiber sits in its lifecycle.
type State uint8

const (
	// StateNew means the fiber has been spawned but never scheduled.
	StateNew State = iota

	// StateReady means the fiber sits on the run queue.
	StateReady

	// StateRunning means the fiber holds the baton.
	StateRunning

	// StateSleeping means the fiber is parked until a clock deadline.
	StateSleeping

	// StateWaiting means the fiber is parked until a matching event.
	StateWaiting

	// StateDone means the fiber body returned or panicked.
	StateDone
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateWaiting:
		return "waiting"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Fiber is one schedulable unit: a goroutine plus the machine context it
// resumes with. Fields are baton-domain state; only the scheduler and
// the fiber itself touch them.
type Fiber struct {
	id    uint32
	name  string
	state State
	ctx   *mcu.Context

	// resume carries the baton from scheduler to fiber.
	resume chan struct{}

	// wakeAt is the sleep deadline in ticks, meaningful in StateSleeping.
	wakeAt uint64

	// waitSource and waitValue are the match pattern, meaningful in
	// StateWaiting. Zero matches any.
	waitSource int
	waitValue  int
}

// ID returns the fiber's scheduler-unique identifier.
func (f *Fiber) ID() uint32 { return f.id }

// Name returns the optional name given at spawn time, or "" for none.
func (f *Fiber) Name() string { return f.name }

// State returns the fiber's lifecycle state.
func (f *Fiber) State() State { return f.state }

// Context returns the fiber's saved machine context. After a panic the
// context holds the machine state captured at the fault, which is what
// a crash recorder wants to persist.
func (f *Fiber) Context() *mcu.Context { return f.ctx }

// label formats the fiber for diagnostics.
func (f *Fiber) label() string {
	if f.name != "" {
		return fmt.Sprintf("fiber %d (%s)", f.id, f.name)
	}
	return fmt.Sprintf("fiber %d", f.id)
}

// SpawnOption configures a single fiber at spawn time.
type SpawnOption func(*Fiber)

// WithName labels the fiber for logs and crash records.
func WithName(name string) SpawnOption {
	return func(f *Fiber) {
		f.name = name
	}
}

// WithStackWords overrides the scheduler's default context capacity for
// this fiber.
func WithStackWords(words int) SpawnOption {
	return func(f *Fiber) {
		if words > 0 {
			f.ctx = mcu.NewContext(words)
		}
	}
}
