package board

import (
	"sync/atomic"

	"github.com/solenoidlabs/fray/internal/fiber"
)

// DefaultTickPeriod is the system tick period in milliseconds.
const DefaultTickPeriod = 6

// SystemTicker is implemented by components strobed on every system
// tick: the display's animation clock, button debounce sampling.
type SystemTicker interface {
	SystemTick(elapsedMS uint64)
}

// IdleTicker is implemented by components polled after the strobed set
// each round, for work that tolerates jitter: lazy sensor refresh.
type IdleTicker interface {
	IdleTick()
}

// Ticker drives the board's periodic components from a single fiber.
// Every round it sleeps one period, reports the elapsed milliseconds to
// each system component in registration order, then polls each idle
// component.
//
// Registration calls follow the runtime's scheduling contract: before
// the scheduler starts, or from a fiber. The loop reads the registries
// between rounds only.
type Ticker struct {
	sched  *fiber.Scheduler
	period uint64
	system []SystemTicker
	idle   []IdleTicker

	running atomic.Bool
	rounds  atomic.Uint64
}

// NewTicker creates a ticker with the given period. A zero period means
// DefaultTickPeriod.
func NewTicker(sched *fiber.Scheduler, periodMS uint64) *Ticker {
	if periodMS == 0 {
		periodMS = DefaultTickPeriod
	}
	return &Ticker{sched: sched, period: periodMS}
}

// AddSystem registers a component strobed every round.
func (t *Ticker) AddSystem(c SystemTicker) {
	t.system = append(t.system, c)
}

// AddIdle registers a component polled every round after the strobed
// set.
func (t *Ticker) AddIdle(c IdleTicker) {
	t.idle = append(t.idle, c)
}

// RemoveSystem unregisters a strobed component.
func (t *Ticker) RemoveSystem(c SystemTicker) {
	for i, have := range t.system {
		if have == c {
			t.system = append(t.system[:i], t.system[i+1:]...)
			return
		}
	}
}

// RemoveIdle unregisters a polled component.
func (t *Ticker) RemoveIdle(c IdleTicker) {
	for i, have := range t.idle {
		if have == c {
			t.idle = append(t.idle[:i], t.idle[i+1:]...)
			return
		}
	}
}

// SetPeriod changes the tick period, taking effect next round. Call
// before Start or from a fiber. A zero period means DefaultTickPeriod.
func (t *Ticker) SetPeriod(periodMS uint64) {
	if periodMS == 0 {
		periodMS = DefaultTickPeriod
	}
	t.period = periodMS
}

// Period returns the tick period in milliseconds.
func (t *Ticker) Period() uint64 {
	return t.period
}

// Rounds returns the number of completed tick rounds.
func (t *Ticker) Rounds() uint64 {
	return t.rounds.Load()
}

// Start spawns the tick fiber.
func (t *Ticker) Start() error {
	if !t.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	_, err := t.sched.SpawnFunc(t.loop, fiber.WithName("system-ticker"))
	if err != nil {
		t.running.Store(false)
		return err
	}
	return nil
}

// Stop ends the tick fiber after its current round.
func (t *Ticker) Stop() {
	t.running.Store(false)
}

func (t *Ticker) loop() {
	last := t.sched.Ticks()
	for t.running.Load() {
		t.sched.Sleep(t.period)
		now := t.sched.Ticks()
		elapsed := now - last
		last = now

		for _, c := range t.system {
			c.SystemTick(elapsed)
		}
		for _, c := range t.idle {
			c.IdleTick()
		}
		t.rounds.Add(1)
	}
}
