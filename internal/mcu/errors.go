package mcu

import "errors"

// Fatal contract violations. These are never returned: the machine layer
// has no recoverable failure modes, so violations panic with one of these
// sentinels wrapped in a descriptive error.
var (
	// ErrSliceOverflow reports a live stack slice deeper than the target
	// Context's buffer capacity at suspend time.
	ErrSliceOverflow = errors.New("active stack slice exceeds context capacity")

	// ErrBadStackPointer reports a stack pointer outside the shared region
	// or above the fixed top-of-stack boundary.
	ErrBadStackPointer = errors.New("stack pointer outside stack region")

	// ErrUnalignedAddress reports a stack address that is not word aligned.
	ErrUnalignedAddress = errors.New("stack address not word aligned")

	// ErrStackOverflow reports a push below the base of the shared region.
	ErrStackOverflow = errors.New("stack region overflow")

	// ErrStackUnderflow reports a pop at or above the top-of-stack boundary.
	ErrStackUnderflow = errors.New("stack region underflow")
)
