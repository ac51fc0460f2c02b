package script

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when the engine is used after Close.
var ErrClosed = errors.New("script: engine closed")

// ScriptError wraps a failure raised by user script code with the chunk
// that raised it.
type ScriptError struct {
	// Chunk is the script path, or "inline" for DoString code.
	Chunk string

	// Err is the underlying interpreter error.
	Err error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %s: %v", e.Chunk, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}
