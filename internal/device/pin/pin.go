// Package pin models the edge-connector I/O pins.
//
// Every pin carries a capability mask fixed by the board layout: all
// pins drive digital levels, the pad pins add analog, and the three
// large pads add touch sensing. Operations check the mask and switch
// the pin into the mode they need, mirroring how the hardware
// reconfigures a pin on first use. Front ends inject input levels with
// SetInput and SetTouched; board code reads them back through the
// capability-checked accessors.
package pin

import (
	"github.com/solenoidlabs/fray/internal/bus"
	"github.com/solenoidlabs/fray/internal/fiber"
)

// Capability is the set of electrical roles a pin supports.
type Capability uint8

const (
	CapDigital Capability = 1 << iota
	CapAnalog
	CapTouch
)

// Composite capabilities, as wired on the edge connector.
const (
	CapAD  = CapDigital | CapAnalog
	CapAll = CapDigital | CapAnalog | CapTouch
)

// Has reports whether c includes want.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// Events fired on a pin's source when edge events are enabled.
const (
	EventRise = 2
	EventFall = 3
)

// Output and servo ranges.
const (
	// MaxAnalog is the top of the analog input and output range.
	MaxAnalog = 1023

	// MaxServoValue is the servo angle range in degrees.
	MaxServoValue = 180

	// DefaultServoRange is the servo pulse swing in microseconds.
	DefaultServoRange = 2000

	// DefaultServoCenter is the servo midpoint pulse in microseconds.
	DefaultServoCenter = 1500

	// DefaultAnalogPeriodUs is the PWM period for analog output.
	DefaultAnalogPeriodUs = 20000
)

type mode uint8

const (
	modeUnused mode = iota
	modeDigitalIn
	modeDigitalOut
	modeAnalogIn
	modeAnalogOut
	modeTouchIn
)

// Pin is one edge-connector pin. All methods are baton-domain calls;
// front ends on other goroutines must post input changes through the
// scheduler.
type Pin struct {
	id    int
	name  string
	caps  Capability
	bus   *bus.Bus
	sched *fiber.Scheduler
	cache bus.DispatchCache

	mode          mode
	output        int
	pulseUs       int
	analogPeriod  int
	input         int
	touched       bool
	eventsEnabled bool
}

// New creates a pin with the given bus source id, label, and hardware
// capabilities.
func New(id int, name string, caps Capability, eb *bus.Bus, sched *fiber.Scheduler) *Pin {
	return &Pin{
		id:           id,
		name:         name,
		caps:         caps,
		bus:          eb,
		sched:        sched,
		analogPeriod: DefaultAnalogPeriodUs,
	}
}

// ID returns the pin's bus source id.
func (p *Pin) ID() int { return p.id }

// Name returns the edge-connector label, like "P0".
func (p *Pin) Name() string { return p.name }

// Capabilities returns the pin's capability mask.
func (p *Pin) Capabilities() Capability { return p.caps }

// SetDigitalValue drives the pin high or low. The value must be 0 or 1.
func (p *Pin) SetDigitalValue(value int) error {
	if !p.caps.Has(CapDigital) {
		return ErrNotCapable
	}
	if value < 0 || value > 1 {
		return ErrInvalidValue
	}
	p.mode = modeDigitalOut
	p.output = value
	return nil
}

// DigitalValue reconfigures the pin as a digital input and reads it,
// returning 0 or 1.
func (p *Pin) DigitalValue() (int, error) {
	if !p.caps.Has(CapDigital) {
		return 0, ErrNotCapable
	}
	p.mode = modeDigitalIn
	if p.input != 0 {
		return 1, nil
	}
	return 0, nil
}

// SetAnalogValue drives a PWM level in the range 0..1023.
func (p *Pin) SetAnalogValue(value int) error {
	if !p.caps.Has(CapAnalog) {
		return ErrNotCapable
	}
	if value < 0 || value > MaxAnalog {
		return ErrInvalidValue
	}
	p.mode = modeAnalogOut
	p.output = value
	return nil
}

// AnalogValue reconfigures the pin as an analog input and reads it,
// returning 0..1023.
func (p *Pin) AnalogValue() (int, error) {
	if !p.caps.Has(CapAnalog) {
		return 0, ErrNotCapable
	}
	p.mode = modeAnalogIn
	return p.input, nil
}

// SetServoValue positions a servo at the given angle in degrees.
// Angles past MaxServoValue are clipped to it.
func (p *Pin) SetServoValue(value int) error {
	if value < 0 {
		return ErrInvalidValue
	}
	if value > MaxServoValue {
		value = MaxServoValue
	}
	lower := DefaultServoCenter - DefaultServoRange/2
	return p.SetServoPulseUs(lower + DefaultServoRange*value/MaxServoValue)
}

// SetServoPulseUs drives a servo pulse of the given width in
// microseconds.
func (p *Pin) SetServoPulseUs(us int) error {
	if !p.caps.Has(CapAnalog) {
		return ErrNotCapable
	}
	if us <= 0 {
		return ErrInvalidValue
	}
	p.mode = modeAnalogOut
	p.pulseUs = us
	return nil
}

// SetAnalogPeriodUs sets the PWM period. The pin must already be in
// analog output mode.
func (p *Pin) SetAnalogPeriodUs(us int) error {
	if p.mode != modeAnalogOut {
		return ErrNotCapable
	}
	if us <= 0 {
		return ErrInvalidValue
	}
	p.analogPeriod = us
	return nil
}

// AnalogPeriodUs returns the PWM period.
func (p *Pin) AnalogPeriodUs() int { return p.analogPeriod }

// IsTouched reconfigures the pin as a touch sensor and reads it.
func (p *Pin) IsTouched() (bool, error) {
	if !p.caps.Has(CapTouch) {
		return false, ErrNotCapable
	}
	p.mode = modeTouchIn
	return p.touched, nil
}

// Output returns the last driven digital or analog level. Simulator
// front ends read it to draw attached hardware.
func (p *Pin) Output() int { return p.output }

// PulseWidthUs returns the last driven servo pulse width.
func (p *Pin) PulseWidthUs() int { return p.pulseUs }

// IsInput reports whether the pin is configured as an input.
func (p *Pin) IsInput() bool {
	return p.mode == modeDigitalIn || p.mode == modeAnalogIn || p.mode == modeTouchIn
}

// IsOutput reports whether the pin is configured as an output.
func (p *Pin) IsOutput() bool {
	return p.mode == modeDigitalOut || p.mode == modeAnalogOut
}

// IsAnalog reports whether the pin is in an analog mode.
func (p *Pin) IsAnalog() bool {
	return p.mode == modeAnalogIn || p.mode == modeAnalogOut
}

// EnableEvents switches the pin to digital input and fires Rise and
// Fall events on level changes.
func (p *Pin) EnableEvents() error {
	if !p.caps.Has(CapDigital) {
		return ErrNotCapable
	}
	p.mode = modeDigitalIn
	p.eventsEnabled = true
	return nil
}

// DisableEvents stops edge events.
func (p *Pin) DisableEvents() {
	p.eventsEnabled = false
}

// SetInput injects the external level seen by the pin, clamped to
// 0..1023. Digital reads treat any nonzero level as high.
func (p *Pin) SetInput(level int) {
	if level < 0 {
		level = 0
	}
	if level > MaxAnalog {
		level = MaxAnalog
	}
	wasHigh := p.input != 0
	p.input = level
	high := level != 0

	if p.eventsEnabled && wasHigh != high {
		if high {
			p.sendEvent(EventRise)
		} else {
			p.sendEvent(EventFall)
		}
	}
}

// SetTouched injects the touch sensor state.
func (p *Pin) SetTouched(touched bool) {
	p.touched = touched
}

func (p *Pin) sendEvent(code int) {
	p.bus.Send(bus.NewEvent(p.id, code, p.sched.Ticks()), &p.cache)
}
