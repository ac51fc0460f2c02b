// Package display drives the LED matrix.
//
// The display keeps a back buffer twice the visible width so scroll
// animations can paste the next character off screen and shift it into
// view one pixel at a time:
//
//	visible          staging
//	┌─────────┐ ┌─────────┐
//	│ H E L L │ │ O . . . │   ShiftLeft(1) per step
//	└─────────┘ └─────────┘
//	 0       4   5       9
//
// The board's system ticker advances the animation clock every few
// milliseconds through SystemTick; when the accumulated time crosses
// the animation delay the state machine runs one update (shift a
// column, paste a character, move an image) and the frame is pushed to
// the Renderer if anything changed.
//
// Each animation fires a completion event on the bus when it ends.
// The blocking entry points (PrintString, ScrollString, ScrollImage,
// AnimateImage) start the asynchronous animation and park the calling
// fiber until that event arrives. Starting a new animation cancels the
// current one and fires its completion event, so a blocked caller is
// never stranded.
//
// Images are byte-per-pixel greyscale. The default display mode
// quantises to black and white at render time; rotation is also applied
// at render time, leaving the buffer in logical orientation.
package display
