package display

import "errors"

// Sentinel errors for the display package.
var (
	// ErrInvalidImage is returned when parsing a malformed image string.
	ErrInvalidImage = errors.New("invalid image data")

	// ErrInvalidRotation is returned for rotations outside the four
	// axis-aligned positions.
	ErrInvalidRotation = errors.New("invalid rotation")

	// ErrInvalidBrightness is returned for brightness values outside
	// 0..255.
	ErrInvalidBrightness = errors.New("invalid brightness")
)
