package pin

import "errors"

var (
	// ErrNotCapable reports an operation the pin's hardware cannot
	// perform, like analog output on a digital-only pin.
	ErrNotCapable = errors.New("pin: operation not supported by this pin")

	// ErrInvalidValue reports a value outside the operation's range.
	ErrInvalidValue = errors.New("pin: value out of range")
)
