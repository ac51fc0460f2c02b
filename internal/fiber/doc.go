// Package fiber implements the cooperative scheduler that multiplexes
// board activity over a single modeled processor.
//
// Every unit of work is a Fiber: a goroutine paired with a saved machine
// context (see the mcu package). At most one goroutine in the whole
// process is ever running board code. The scheduler passes an execution
// baton between itself and the current fiber, and a fiber keeps the
// baton until it yields, sleeps, waits, or returns:
//
//	scheduler ──resume──▶ fiber A ──yield──▶ scheduler ──resume──▶ fiber B
//
// On every transfer of the baton the scheduler drives the context switch
// engine, saving the outgoing context and restoring the incoming one, so
// the register file and active stack slice round-trip exactly as they
// would on hardware. The scheduler goroutine is the only caller of the
// mcu switch primitives.
//
// # Baton domain
//
// State owned by the scheduler (run queue, sleep queue, waiter list,
// fiber registry) is mutated without locks. That is safe because only
// the baton holder touches it: either the scheduler loop itself, or the
// one fiber it has resumed. Code running on any other goroutine must not
// call scheduler methods directly; it hands work in through PostStimulus,
// which is the one concurrency-safe entry point.
//
// # Time
//
// The scheduler owns a virtual millisecond clock, read with Ticks. When
// no fiber is runnable the clock jumps straight to the earliest sleeper
// deadline, which makes scheduling deterministic under test. With the
// real-time option the scheduler instead paces those jumps against the
// wall clock, which is what an interactive board front end wants.
//
// # Blocking primitives
//
// Sleep parks the current fiber until the clock reaches a deadline.
// WaitForEvent parks it until a matching WakeEvent arrives, typically
// delivered by an event bus configured with the scheduler as its waker.
// Both must be called from a running fiber; calling them anywhere else
// is a programming error and panics with ErrNotFiber.
package fiber
