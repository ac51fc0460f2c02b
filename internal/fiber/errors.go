package fiber

import "errors"

// Sentinel errors for the fiber package.
var (
	// ErrPoolExhausted is returned by Spawn when the active fiber count
	// has reached the configured maximum.
	ErrPoolExhausted = errors.New("fiber pool exhausted")

	// ErrStimulusOverflow is returned by PostStimulus when the stimulus
	// queue is full and the callback was dropped.
	ErrStimulusOverflow = errors.New("stimulus queue full")

	// ErrAlreadyRunning is returned when Run is called on a scheduler
	// whose loop is already executing.
	ErrAlreadyRunning = errors.New("scheduler is already running")

	// ErrStopped is returned when Run is called on a scheduler that has
	// already shut down. Schedulers are one-shot.
	ErrStopped = errors.New("scheduler has stopped")

	// ErrNotFiber is the panic sentinel for blocking calls made outside
	// a running fiber, where the scheduler has nothing to park.
	ErrNotFiber = errors.New("blocking call outside a running fiber")
)
