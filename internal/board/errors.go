package board

import "errors"

// Panic codes shown on the display when the runtime dies.
const (
	// PanicOutOfMemory reports fiber pool or stack slice exhaustion.
	PanicOutOfMemory = 20

	// PanicI2CLockup reports a wedged peripheral bus.
	PanicI2CLockup = 10

	// PanicScriptError reports an uncaught error in the user program.
	PanicScriptError = 40
)

var (
	// ErrAlreadyRunning indicates Run was called on a running board.
	ErrAlreadyRunning = errors.New("board: already running")

	// ErrNotRunning indicates an operation that needs a live runtime.
	ErrNotRunning = errors.New("board: not running")

	// ErrUnknownSource indicates a source ID no peripheral owns.
	ErrUnknownSource = errors.New("board: unknown source id")
)

// InitError represents a bring-up failure of one component.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}
