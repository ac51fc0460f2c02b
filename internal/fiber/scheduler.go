package fiber

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"sort"
	"sync/atomic"
	"time"

	"github.com/solenoidlabs/fray/internal/mcu"
)

const (
	// DefaultMaxFibers bounds the number of live fibers.
	DefaultMaxFibers = 64

	// DefaultStimulusDepth is the capacity of the stimulus queue.
	DefaultStimulusDepth = 32

	// MatchAny is the wildcard for WaitForEvent patterns. A zero source
	// or value matches every event.
	MatchAny = 0
)

// PanicHandler is called on the scheduler goroutine when a fiber body
// panics. f is nil when the panic came from a posted stimulus.
type PanicHandler func(f *Fiber, panicValue any, stack []byte)

// defaultPanicHandler writes the fault to stderr.
func defaultPanicHandler(f *Fiber, panicValue any, stack []byte) {
	who := "stimulus"
	if f != nil {
		who = f.label()
	}
	fmt.Fprintf(os.Stderr, "fray: %s panicked: %v\n%s", who, panicValue, stack)
}

// yieldKind says why a fiber handed the baton back.
type yieldKind uint8

const (
	yieldReady yieldKind = iota
	yieldSleep
	yieldWait
	yieldDone
	yieldPanic
)

// yieldMsg travels from the yielding fiber to the scheduler loop.
type yieldMsg struct {
	kind       yieldKind
	wakeAt     uint64
	source     int
	value      int
	panicValue any
	stack      []byte
}

// Scheduler multiplexes fibers over one modeled machine. See the package
// documentation for the baton rule that makes its unlocked state safe.
type Scheduler struct {
	machine       *mcu.Machine
	maxFibers     int
	stackWords    int
	stimulusDepth int
	realTime      bool
	panicHandler  PanicHandler

	// idle is the scheduler's own machine context; prev tracks which
	// context the machine currently holds so switches stay lazy.
	idle *mcu.Context
	prev *mcu.Context

	current *Fiber
	runq    []*Fiber
	sleepq  []*Fiber // ascending wakeAt
	waiters []*Fiber
	fibers  map[uint32]*Fiber
	nextID  uint32
	halted  bool

	yield   chan yieldMsg
	stimuli chan func()
	stop    chan struct{}

	ticks   atomic.Uint64
	running atomic.Bool
	stopped atomic.Bool

	spawned        atomic.Uint64
	completed      atomic.Uint64
	panicked       atomic.Uint64
	switches       atomic.Uint64
	wakes          atomic.Uint64
	stimuliRun     atomic.Uint64
	stimuliDropped atomic.Uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMachine supplies the modeled machine. Defaults to mcu.NewMachine().
func WithMachine(m *mcu.Machine) Option {
	return func(s *Scheduler) {
		if m != nil {
			s.machine = m
		}
	}
}

// WithMaxFibers bounds the live fiber count.
func WithMaxFibers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxFibers = n
		}
	}
}

// WithDefaultStackWords sets the context capacity given to fibers that
// do not override it at spawn time. Defaults to the machine's full
// stack region.
func WithDefaultStackWords(words int) Option {
	return func(s *Scheduler) {
		if words > 0 {
			s.stackWords = words
		}
	}
}

// WithStimulusDepth sets the stimulus queue capacity.
func WithStimulusDepth(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.stimulusDepth = n
		}
	}
}

// WithPanicHandler sets the handler invoked when a fiber panics.
func WithPanicHandler(h PanicHandler) Option {
	return func(s *Scheduler) {
		if h != nil {
			s.panicHandler = h
		}
	}
}

// WithRealTime paces the virtual clock against the wall clock instead of
// jumping straight to the next deadline.
func WithRealTime() Option {
	return func(s *Scheduler) {
		s.realTime = true
	}
}

// NewScheduler creates a scheduler with the given options.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		maxFibers:     DefaultMaxFibers,
		stimulusDepth: DefaultStimulusDepth,
		panicHandler:  defaultPanicHandler,
		fibers:        make(map[uint32]*Fiber),
		yield:         make(chan yieldMsg, 1),
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.machine == nil {
		s.machine = mcu.NewMachine()
	}
	regionWords := int((s.machine.StackTop() - s.machine.StackBase()) / mcu.WordSize)
	if s.stackWords == 0 {
		s.stackWords = regionWords
	}
	s.stimuli = make(chan func(), s.stimulusDepth)
	s.idle = mcu.NewContext(regionWords)
	s.idle.Reset(s.machine.StackTop(), 0)
	s.prev = s.idle
	return s
}

// Spawn creates a fiber for r and places it on the run queue. It is a
// baton-domain call. The fiber body runs once the scheduler loop picks
// it up.
func (s *Scheduler) Spawn(r Runnable, opts ...SpawnOption) (*Fiber, error) {
	if r == nil {
		return nil, fmt.Errorf("spawn: nil runnable")
	}
	if s.stopped.Load() {
		return nil, ErrStopped
	}
	if len(s.fibers) >= s.maxFibers {
		return nil, fmt.Errorf("%w: %d active", ErrPoolExhausted, len(s.fibers))
	}

	s.nextID++
	f := &Fiber{
		id:     s.nextID,
		state:  StateNew,
		resume: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.ctx == nil {
		f.ctx = mcu.NewContext(s.stackWords)
	}
	f.ctx.Reset(s.machine.StackTop(), 0)

	s.fibers[f.id] = f
	s.spawned.Add(1)
	go s.trampoline(f, r)
	s.ready(f)
	return f, nil
}

// SpawnFunc is Spawn for a bare function.
func (s *Scheduler) SpawnFunc(fn func(), opts ...SpawnOption) (*Fiber, error) {
	if fn == nil {
		return nil, fmt.Errorf("spawn: nil function")
	}
	return s.Spawn(RunnableFunc(fn), opts...)
}

// trampoline hosts a fiber body on its own goroutine. It parks until the
// first resume, runs the body, and reports how it ended. During shutdown
// the scheduler is no longer reading yields, so reporting is skipped.
func (s *Scheduler) trampoline(f *Fiber, r Runnable) {
	defer func() {
		if v := recover(); v != nil {
			if s.isStopping() {
				return
			}
			s.yield <- yieldMsg{kind: yieldPanic, panicValue: v, stack: debug.Stack()}
			return
		}
		if s.isStopping() {
			return
		}
		s.yield <- yieldMsg{kind: yieldDone}
	}()
	s.park(f)
	r.Run()
}

// park blocks the fiber goroutine until the scheduler resumes it or
// shuts down. On shutdown the goroutine unwinds via Goexit so deferred
// cleanup in fiber bodies still runs.
func (s *Scheduler) park(f *Fiber) {
	select {
	case <-f.resume:
	case <-s.stop:
		runtime.Goexit()
	}
}

func (s *Scheduler) isStopping() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// Yield hands the baton back and requeues the current fiber.
func (s *Scheduler) Yield() {
	f := s.mustCurrent()
	s.yield <- yieldMsg{kind: yieldReady}
	s.park(f)
}

// Sleep parks the current fiber for ms virtual milliseconds. Sleep(0)
// is a plain yield.
func (s *Scheduler) Sleep(ms uint64) {
	if ms == 0 {
		s.Yield()
		return
	}
	f := s.mustCurrent()
	s.yield <- yieldMsg{kind: yieldSleep, wakeAt: s.ticks.Load() + ms}
	s.park(f)
}

// WaitForEvent parks the current fiber until a WakeEvent matching the
// pattern arrives. MatchAny in either position widens the pattern.
func (s *Scheduler) WaitForEvent(source, value int) {
	f := s.mustCurrent()
	s.yield <- yieldMsg{kind: yieldWait, source: source, value: value}
	s.park(f)
}

func (s *Scheduler) mustCurrent() *Fiber {
	f := s.current
	if f == nil {
		panic(ErrNotFiber)
	}
	return f
}

// WakeEvent moves every waiter whose pattern matches (source, value) to
// the run queue. The bus calls this once per delivered event; it is a
// baton-domain call.
func (s *Scheduler) WakeEvent(source, value int) {
	kept := s.waiters[:0]
	for _, f := range s.waiters {
		if (f.waitSource == MatchAny || f.waitSource == source) &&
			(f.waitValue == MatchAny || f.waitValue == value) {
			s.ready(f)
			s.wakes.Add(1)
		} else {
			kept = append(kept, f)
		}
	}
	for i := len(kept); i < len(s.waiters); i++ {
		s.waiters[i] = nil
	}
	s.waiters = kept
}

// PostStimulus queues fn to run on the scheduler goroutine. It is the
// only scheduler entry point safe from arbitrary goroutines; device
// front ends use it to inject input. fn runs with the baton and may
// spawn fibers, send events, and halt the scheduler.
func (s *Scheduler) PostStimulus(fn func()) error {
	if fn == nil {
		return nil
	}
	if s.stopped.Load() {
		return ErrStopped
	}
	select {
	case s.stimuli <- fn:
		return nil
	default:
		s.stimuliDropped.Add(1)
		return ErrStimulusOverflow
	}
}

// Halt makes the scheduler loop return after the current iteration. It
// is a baton-domain call; external goroutines post it as a stimulus.
func (s *Scheduler) Halt() {
	s.halted = true
}

// Run executes the scheduler loop until ctx is cancelled or a fiber
// calls Halt. Schedulers are one-shot; Run never succeeds twice.
func (s *Scheduler) Run(ctx context.Context) error {
	return s.loop(ctx, false)
}

// RunUntilIdle is Run but also returns, with nil, at the first moment no
// fiber is runnable or sleeping and no stimulus is pending. Waiting
// fibers do not count as work: with no stimuli left nothing can wake
// them. This is the deterministic mode tests want.
func (s *Scheduler) RunUntilIdle(ctx context.Context) error {
	return s.loop(ctx, true)
}

func (s *Scheduler) loop(ctx context.Context, exitOnIdle bool) error {
	if s.stopped.Load() {
		return ErrStopped
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.shutdown()

	for {
		s.drainStimuli()

		if s.halted {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if f := s.popRun(); f != nil {
			s.dispatch(f)
			continue
		}

		if len(s.sleepq) > 0 {
			if err := s.advanceClock(ctx); err != nil {
				return err
			}
			continue
		}

		if exitOnIdle && len(s.stimuli) == 0 {
			return nil
		}

		select {
		case fn := <-s.stimuli:
			s.runStimulus(fn)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// dispatch resumes f: load its context onto the machine, hand over the
// baton, and wait for it back.
func (s *Scheduler) dispatch(f *Fiber) {
	f.state = StateRunning
	s.current = f
	s.switchTo(f.ctx)
	f.resume <- struct{}{}
	msg := <-s.yield
	s.current = nil
	s.settle(f, msg)
}

// settle files the fiber according to why it yielded.
func (s *Scheduler) settle(f *Fiber, msg yieldMsg) {
	switch msg.kind {
	case yieldReady:
		s.ready(f)
	case yieldSleep:
		s.parkSleep(f, msg.wakeAt)
	case yieldWait:
		f.state = StateWaiting
		f.waitSource, f.waitValue = msg.source, msg.value
		s.waiters = append(s.waiters, f)
	case yieldDone:
		s.retire(f)
		s.completed.Add(1)
	case yieldPanic:
		// Switching away saves the fault-time machine state into the
		// fiber's context, so crash handlers can read it from there.
		s.retire(f)
		s.panicked.Add(1)
		if s.panicHandler != nil {
			s.panicHandler(f, msg.panicValue, msg.stack)
		}
	}
}

// switchTo loads c onto the machine, saving the outgoing context first.
// Loading the context the machine already holds is a no-op, so a fiber
// resumed back-to-back pays for no switch.
func (s *Scheduler) switchTo(c *mcu.Context) {
	if s.prev == c {
		return
	}
	s.machine.Switch(s.prev, c)
	s.prev = c
	s.switches.Add(1)
}

// SnapshotCurrent captures the machine state of the running fiber into
// target without suspending it. Baton-domain call; crash recorders use
// it to persist the context they are about to report.
func (s *Scheduler) SnapshotCurrent(target *mcu.Context) {
	s.machine.Snapshot(target)
}

func (s *Scheduler) retire(f *Fiber) {
	f.state = StateDone
	delete(s.fibers, f.id)
	s.switchTo(s.idle)
}

func (s *Scheduler) ready(f *Fiber) {
	f.state = StateReady
	s.runq = append(s.runq, f)
}

func (s *Scheduler) popRun() *Fiber {
	if len(s.runq) == 0 {
		return nil
	}
	f := s.runq[0]
	s.runq[0] = nil
	s.runq = s.runq[1:]
	return f
}

// parkSleep inserts f into the sleep queue, keeping it sorted by
// deadline with FIFO order among equal deadlines.
func (s *Scheduler) parkSleep(f *Fiber, wakeAt uint64) {
	f.state = StateSleeping
	f.wakeAt = wakeAt
	i := sort.Search(len(s.sleepq), func(i int) bool {
		return s.sleepq[i].wakeAt > wakeAt
	})
	s.sleepq = append(s.sleepq, nil)
	copy(s.sleepq[i+1:], s.sleepq[i:])
	s.sleepq[i] = f
}

// advanceClock moves virtual time toward the earliest sleeper deadline
// and wakes every fiber that comes due.
func (s *Scheduler) advanceClock(ctx context.Context) error {
	wake := s.sleepq[0].wakeAt
	now := s.ticks.Load()
	if wake <= now {
		s.wakeSleepers(now)
		return nil
	}

	if !s.realTime {
		s.ticks.Store(wake)
		s.wakeSleepers(wake)
		return nil
	}

	// Pace against the wall clock, but let stimuli preempt the wait and
	// credit the time that did pass.
	timer := time.NewTimer(time.Duration(wake-now) * time.Millisecond)
	start := time.Now()
	select {
	case <-timer.C:
		s.ticks.Store(wake)
	case fn := <-s.stimuli:
		timer.Stop()
		elapsed := uint64(time.Since(start).Milliseconds())
		if now+elapsed > wake {
			elapsed = wake - now
		}
		s.ticks.Store(now + elapsed)
		s.runStimulus(fn)
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	}
	s.wakeSleepers(s.ticks.Load())
	return nil
}

func (s *Scheduler) wakeSleepers(now uint64) {
	for len(s.sleepq) > 0 && s.sleepq[0].wakeAt <= now {
		f := s.sleepq[0]
		s.sleepq[0] = nil
		s.sleepq = s.sleepq[1:]
		s.ready(f)
	}
}

func (s *Scheduler) drainStimuli() {
	for {
		select {
		case fn := <-s.stimuli:
			s.runStimulus(fn)
		default:
			return
		}
	}
}

// runStimulus executes a posted callback with panic containment, since a
// bad stimulus must not take down the loop.
func (s *Scheduler) runStimulus(fn func()) {
	s.stimuliRun.Add(1)
	defer func() {
		if v := recover(); v != nil {
			s.panicked.Add(1)
			if s.panicHandler != nil {
				s.panicHandler(nil, v, debug.Stack())
			}
		}
	}()
	fn()
}

// shutdown releases every parked fiber goroutine and marks the
// scheduler unusable.
func (s *Scheduler) shutdown() {
	s.stopped.Store(true)
	s.running.Store(false)
	close(s.stop)
}

// Ticks returns the virtual clock in milliseconds since boot. Safe from
// any goroutine.
func (s *Scheduler) Ticks() uint64 {
	return s.ticks.Load()
}

// Current returns the fiber holding the baton, or nil from the
// scheduler's own context. Baton-domain call.
func (s *Scheduler) Current() *Fiber {
	return s.current
}

// Machine returns the modeled machine. Baton-domain call; only the
// running fiber should mutate machine state between switches.
func (s *Scheduler) Machine() *mcu.Machine {
	return s.machine
}

// ActiveFibers returns the number of live fibers. Baton-domain call.
func (s *Scheduler) ActiveFibers() int {
	return len(s.fibers)
}

// Stats is a point-in-time snapshot of scheduler counters.
type Stats struct {
	// Spawned counts fibers ever created.
	Spawned uint64

	// Completed counts fiber bodies that returned normally.
	Completed uint64

	// Panicked counts fiber bodies and stimuli that panicked.
	Panicked uint64

	// ContextSwitches counts machine context switches performed.
	ContextSwitches uint64

	// Wakes counts fibers released by WakeEvent.
	Wakes uint64

	// StimuliRun counts posted callbacks executed.
	StimuliRun uint64

	// StimuliDropped counts posted callbacks rejected by a full queue.
	StimuliDropped uint64

	// ActiveFibers is the live fiber count at snapshot time.
	ActiveFibers int

	// Ticks is the virtual clock at snapshot time.
	Ticks uint64
}

// Stats returns scheduler counters. The counter fields are safe from
// any goroutine; ActiveFibers is exact only in the baton domain or
// after Run has returned.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Spawned:         s.spawned.Load(),
		Completed:       s.completed.Load(),
		Panicked:        s.panicked.Load(),
		ContextSwitches: s.switches.Load(),
		Wakes:           s.wakes.Load(),
		StimuliRun:      s.stimuliRun.Load(),
		StimuliDropped:  s.stimuliDropped.Load(),
		ActiveFibers:    len(s.fibers),
		Ticks:           s.ticks.Load(),
	}
}
