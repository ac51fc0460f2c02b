package display

import (
	"github.com/solenoidlabs/fray/internal/bus"
	"github.com/solenoidlabs/fray/internal/fiber"
)

// Display geometry and timing defaults.
const (
	DefaultWidth  = 5
	DefaultHeight = 5

	// RefreshPeriod is the animation clock granularity in milliseconds.
	RefreshPeriod = 6

	// DefaultScrollSpeed is the delay between scroll steps in ms.
	DefaultScrollSpeed = 120

	// DefaultPrintSpeed is the delay between printed characters in ms.
	DefaultPrintSpeed = 1200

	// DefaultScrollStride is the default pixels-per-step for image
	// scrolling. Positive strides move right to left, like text.
	DefaultScrollStride = 1

	// MaxBrightness is the top of the brightness range.
	MaxBrightness = 255

	// DefaultBrightness is the power-on brightness.
	DefaultBrightness = 128

	// Spacing is the blank column count between scrolled characters.
	Spacing = 1
)

// Event codes sent on the display's source when an animation finishes.
const (
	EventScrollTextComplete   = 1
	EventPrintTextComplete    = 2
	EventScrollImageComplete  = 3
	EventAnimateImageComplete = 4
)

// Rotation selects one of the four axis-aligned display orientations.
type Rotation uint8

const (
	Rotation0 Rotation = iota
	Rotation90
	Rotation180
	Rotation270
)

// Mode selects how pixel values map to LED output.
type Mode uint8

const (
	// ModeBlackAndWhite treats any lit pixel as full brightness.
	ModeBlackAndWhite Mode = iota

	// ModeGreyscale preserves per-pixel brightness.
	ModeGreyscale
)

type animationMode uint8

const (
	animNone animationMode = iota
	animScrollText
	animPrintText
	animScrollImage
	animAnimateImage
)

// panicFace is the fault glyph, one row mask per display row.
var panicFace = [5]byte{0x1B, 0x1B, 0x00, 0x0E, 0x11}

// Renderer receives the visible frame whenever it changes. The display
// calls it in the baton domain; implementations that cross goroutines
// must do their own marshalling.
type Renderer interface {
	RenderFrame(frame *Image, brightness uint8)
}

// Display drives the LED matrix: a double-width back buffer, the
// animation state machine, and completion events on the bus.
//
// The back buffer is twice the visible width so scroll animations can
// paste the next character off screen and shift it into view. All
// methods are baton-domain calls; the blocking variants must run on a
// fiber.
type Display struct {
	id    int
	bus   *bus.Bus
	sched *fiber.Scheduler
	cache bus.DispatchCache

	image      *Image
	font       Font
	width      int
	height     int
	brightness uint8
	rotation   Rotation
	mode       Mode
	enabled    bool
	dirty      bool
	faultCode  int

	renderer Renderer

	animationMode  animationMode
	animationDelay uint64
	animationTick  uint64

	scrollingText     string
	scrollingChar     int
	scrollingPosition int

	printingText string
	printingChar int

	scrollingImage         *Image
	scrollingImagePosition int
	scrollingImageStride   int
	scrollingImageRendered bool
}

// Option configures a Display.
type Option func(*Display)

// WithSize overrides the visible matrix dimensions.
func WithSize(width, height int) Option {
	return func(d *Display) {
		if width > 0 && height > 0 {
			d.width = width
			d.height = height
		}
	}
}

// WithRenderer sets the frame sink, usually a simulator front end.
func WithRenderer(r Renderer) Option {
	return func(d *Display) {
		d.renderer = r
	}
}

// New creates a display emitting events with the given source id.
func New(id int, b *bus.Bus, sched *fiber.Scheduler, opts ...Option) *Display {
	d := &Display{
		id:         id,
		bus:        b,
		sched:      sched,
		width:      DefaultWidth,
		height:     DefaultHeight,
		brightness: DefaultBrightness,
		enabled:    true,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.image = NewImage(d.width*2, d.height)
	return d
}

// SystemTick advances the display from the board's system ticker.
func (d *Display) SystemTick(elapsedMS uint64) {
	d.Step(elapsedMS)
}

// Step advances the animation clock by ms milliseconds and pushes the
// frame to the renderer if it changed.
func (d *Display) Step(ms uint64) {
	if d.animationMode != animNone {
		d.animationTick += ms
		if d.animationTick >= d.animationDelay {
			d.animationTick = 0
			switch d.animationMode {
			case animScrollText:
				d.updateScrollText()
			case animPrintText:
				d.updatePrintText()
			case animScrollImage:
				d.updateScrollImage()
			case animAnimateImage:
				d.updateAnimateImage()
			}
		}
	}
	d.render()
}

func (d *Display) render() {
	if d.renderer == nil || !d.dirty || !d.enabled {
		return
	}
	d.renderer.RenderFrame(d.Frame(), d.brightness)
	d.dirty = false
}

// sendEvent broadcasts an animation event through the display's own
// dispatch cache.
func (d *Display) sendEvent(code int) {
	d.bus.Send(bus.NewEvent(d.id, code, d.sched.Ticks()), &d.cache)
}

// completeAnimation ends the running animation and fires its completion
// event. Cancelling an animation completes it early, so fibers blocked
// on the completion event are always released.
func (d *Display) completeAnimation() {
	mode := d.animationMode
	d.animationMode = animNone
	switch mode {
	case animScrollText:
		d.sendEvent(EventScrollTextComplete)
	case animPrintText:
		d.sendEvent(EventPrintTextComplete)
	case animScrollImage:
		d.sendEvent(EventScrollImageComplete)
	case animAnimateImage:
		d.sendEvent(EventAnimateImageComplete)
	}
}

// StopAnimation cancels any running animation, firing its completion
// event.
func (d *Display) StopAnimation() {
	d.completeAnimation()
}

// resetAnimation cancels the current animation, clears the buffer, and
// arms the animation clock so the first frame lands on the next step.
func (d *Display) resetAnimation(delay uint64) {
	d.completeAnimation()
	d.image.Clear()
	d.dirty = true
	d.animationDelay = delay
	d.animationTick = delay - 1
}

func sanitizeDelay(delay uint64) uint64 {
	if delay == 0 {
		return DefaultScrollSpeed
	}
	return delay
}

// PrintChar pastes a single character at the display origin.
func (d *Display) PrintChar(c byte) {
	d.image.PrintGlyph(d.Font(), c, 0, 0)
	d.dirty = true
}

// PrintStringAsync shows s one character at a time with the given delay
// per character, returning immediately.
func (d *Display) PrintStringAsync(s string, delayMS uint64) {
	d.resetAnimation(sanitizeDelay(delayMS))
	d.printingChar = 0
	d.printingText = s
	d.animationMode = animPrintText
}

// PrintString shows s one character at a time and blocks the calling
// fiber until the animation completes.
func (d *Display) PrintString(s string, delayMS uint64) {
	d.PrintStringAsync(s, delayMS)
	d.sched.WaitForEvent(d.id, EventPrintTextComplete)
}

// ScrollStringAsync scrolls s across the display right to left,
// returning immediately.
func (d *Display) ScrollStringAsync(s string, delayMS uint64) {
	d.resetAnimation(sanitizeDelay(delayMS))
	d.scrollingPosition = d.width - 1
	d.scrollingChar = 0
	d.scrollingText = s
	d.animationMode = animScrollText
}

// ScrollString scrolls s across the display and blocks the calling
// fiber until the animation completes.
func (d *Display) ScrollString(s string, delayMS uint64) {
	d.ScrollStringAsync(s, delayMS)
	d.sched.WaitForEvent(d.id, EventScrollTextComplete)
}

// ScrollImageAsync scrolls img across the display, stride pixels per
// step, returning immediately. Positive strides move right to left,
// matching text scrolling.
func (d *Display) ScrollImageAsync(img *Image, delayMS uint64, stride int) {
	if stride == 0 {
		stride = DefaultScrollStride
	}
	stride = -stride

	d.resetAnimation(sanitizeDelay(delayMS))
	if stride < 0 {
		d.scrollingImagePosition = d.width
	} else {
		d.scrollingImagePosition = -img.Width()
	}
	d.scrollingImageStride = stride
	d.scrollingImage = img.Clone()
	d.scrollingImageRendered = false
	d.animationMode = animScrollImage
}

// ScrollImage scrolls img across the display and blocks the calling
// fiber until it has moved fully off screen.
func (d *Display) ScrollImage(img *Image, delayMS uint64, stride int) {
	d.ScrollImageAsync(img, delayMS, stride)
	d.sched.WaitForEvent(d.id, EventScrollImageComplete)
}

// AnimateImageAsync steps img across the display like a film strip,
// stopping on the last frame instead of scrolling off screen.
func (d *Display) AnimateImageAsync(img *Image, delayMS uint64, stride int) {
	if stride == 0 {
		stride = DefaultScrollStride
	}
	stride = -stride

	d.resetAnimation(sanitizeDelay(delayMS))
	if stride < 0 {
		d.scrollingImagePosition = 0
	} else {
		d.scrollingImagePosition = d.width - img.Width()
	}
	d.scrollingImageStride = stride
	d.scrollingImage = img.Clone()
	d.scrollingImageRendered = false
	d.animationMode = animAnimateImage
}

// AnimateImage steps img across the display and blocks the calling
// fiber until the last frame is showing.
func (d *Display) AnimateImage(img *Image, delayMS uint64, stride int) {
	d.AnimateImageAsync(img, delayMS, stride)
	d.sched.WaitForEvent(d.id, EventAnimateImageComplete)
}

// updateScrollText shifts the buffer one pixel left and pastes the next
// character once the current one is fully on screen.
func (d *Display) updateScrollText() {
	d.image.ShiftLeft(1)
	d.scrollingPosition++
	d.dirty = true

	if d.scrollingPosition == d.width+Spacing {
		d.scrollingPosition = 0

		c := byte(' ')
		if d.scrollingChar < len(d.scrollingText) {
			c = d.scrollingText[d.scrollingChar]
		}
		d.image.PrintGlyph(d.Font(), c, d.width, 0)

		if d.scrollingChar > len(d.scrollingText) {
			d.completeAnimationAs(EventScrollTextComplete)
			return
		}
		d.scrollingChar++
	}
}

// updatePrintText pastes the next character in the string. A trailing
// blank frame shows before completion, like the scroll tail.
func (d *Display) updatePrintText() {
	c := byte(' ')
	if d.printingChar < len(d.printingText) {
		c = d.printingText[d.printingChar]
	}
	d.image.PrintGlyph(d.Font(), c, 0, 0)
	d.dirty = true

	if d.printingChar > len(d.printingText) {
		d.completeAnimationAs(EventPrintTextComplete)
		return
	}
	d.printingChar++
}

// updateScrollImage repaints the scrolled image at its current offset,
// completing once a paste lands no lit pixels on screen.
func (d *Display) updateScrollImage() {
	d.image.Clear()
	d.dirty = true

	if d.image.Paste(d.scrollingImage, d.scrollingImagePosition, 0, false) == 0 && d.scrollingImageRendered {
		d.completeAnimationAs(EventScrollImageComplete)
		return
	}

	d.scrollingImagePosition += d.scrollingImageStride
	d.scrollingImageRendered = true
}

// updateAnimateImage advances the film strip, holding the last frame on
// screen at completion.
func (d *Display) updateAnimateImage() {
	if d.scrollingImageRendered &&
		d.scrollingImagePosition <= -d.scrollingImage.Width()+d.width+d.scrollingImageStride {
		d.completeAnimationAs(EventAnimateImageComplete)
		return
	}

	d.image.Clear()
	d.image.Paste(d.scrollingImage, d.scrollingImagePosition, 0, false)
	d.dirty = true
	d.scrollingImageRendered = true
	d.scrollingImagePosition += d.scrollingImageStride
}

// completeAnimationAs ends the animation with a specific event code,
// used by update methods that have already decided the outcome.
func (d *Display) completeAnimationAs(code int) {
	d.animationMode = animNone
	d.sendEvent(code)
}

// Clear blanks the display buffer.
func (d *Display) Clear() {
	d.image.Clear()
	d.dirty = true
}

// Error paints the fault face and freezes animation. The code is kept
// for crash reporting; halting the board is the caller's job.
func (d *Display) Error(code int) {
	if code < 0 {
		code = 0
	}
	d.faultCode = code
	d.animationMode = animNone
	d.image.Clear()
	for y, mask := range panicFace {
		for x := 0; x < GlyphWidth; x++ {
			if mask&(0x10>>x) != 0 {
				d.image.SetPixel(x, y, 255)
			}
		}
	}
	d.dirty = true
	d.render()
}

// FaultCode returns the code passed to the last Error call, or zero.
func (d *Display) FaultCode() int { return d.faultCode }

// SetFont replaces the glyph font for future prints. The zero Font
// restores the default.
func (d *Display) SetFont(f Font) {
	d.font = f
}

// Font returns the effective glyph font.
func (d *Display) Font() Font {
	if d.font.glyphs == nil {
		return defaultFont
	}
	return d.font
}

// SetBrightness sets the global brightness in the range 0..255.
func (d *Display) SetBrightness(b int) error {
	if b < 0 || b > MaxBrightness {
		return ErrInvalidBrightness
	}
	d.brightness = uint8(b)
	d.dirty = true
	return nil
}

// Brightness returns the global brightness.
func (d *Display) Brightness() int { return int(d.brightness) }

// RotateTo rotates the rendered output to one of the four axis-aligned
// positions. The back buffer is untouched; rotation applies at render
// time.
func (d *Display) RotateTo(r Rotation) error {
	switch r {
	case Rotation0, Rotation90, Rotation180, Rotation270:
		d.rotation = r
		d.dirty = true
		return nil
	default:
		return ErrInvalidRotation
	}
}

// CurrentRotation returns the render rotation.
func (d *Display) CurrentRotation() Rotation { return d.rotation }

// SetDisplayMode switches between black-and-white and greyscale
// rendering.
func (d *Display) SetDisplayMode(m Mode) {
	d.mode = m
	d.dirty = true
}

// DisplayMode returns the rendering mode.
func (d *Display) DisplayMode() Mode { return d.mode }

// Enable resumes rendering after Disable.
func (d *Display) Enable() {
	d.enabled = true
	d.dirty = true
}

// Disable stops frames reaching the renderer; the buffer and animations
// keep running.
func (d *Display) Disable() {
	d.enabled = false
}

// Enabled reports whether rendering is active.
func (d *Display) Enabled() bool { return d.enabled }

// Image exposes the mutable back buffer for direct pixel work. Mark
// the display dirty with Touch after drawing on it.
func (d *Display) Image() *Image { return d.image }

// Touch marks the frame changed so the next step re-renders.
func (d *Display) Touch() { d.dirty = true }

// Width returns the visible width.
func (d *Display) Width() int { return d.width }

// Height returns the visible height.
func (d *Display) Height() int { return d.height }

// Frame returns the visible portion of the buffer with rotation and
// display mode applied.
func (d *Display) Frame() *Image {
	out := NewImage(d.width, d.height)
	for y := 0; y < d.height; y++ {
		for x := 0; x < d.width; x++ {
			sx, sy := x, y
			switch d.rotation {
			case Rotation90:
				sx, sy = d.width-1-y, x
			case Rotation180:
				sx, sy = d.width-1-x, d.height-1-y
			case Rotation270:
				sx, sy = y, d.height-1-x
			}
			v := d.image.Pixel(sx, sy)
			if d.mode == ModeBlackAndWhite && v != 0 {
				v = 255
			}
			out.SetPixel(x, y, v)
		}
	}
	return out
}
