// Package thermo models the die temperature sensor.
//
// Readings are taken lazily: the sensor samples when board code asks
// for the temperature and the last sample has gone stale, and the
// board's idle tick keeps the reading fresh in between. Each new
// sample fires an update event on the bus.
package thermo

import (
	"github.com/solenoidlabs/fray/internal/bus"
	"github.com/solenoidlabs/fray/internal/fiber"
)

// EventUpdate fires on the thermometer's source after each new sample.
const EventUpdate = 1

// DefaultSamplePeriod is the time between samples in milliseconds.
const DefaultSamplePeriod = 1000

// Thermometer converts raw sensor readings, in quarter degrees, to
// whole degrees celsius. All methods are baton-domain calls.
type Thermometer struct {
	id    int
	bus   *bus.Bus
	sched *fiber.Scheduler
	cache bus.DispatchCache
	now   func() uint64

	raw          int
	temperature  int
	samplePeriod uint64
	sampleTime   uint64
}

// Option configures a Thermometer.
type Option func(*Thermometer)

// WithClock overrides the time source, in milliseconds since boot.
func WithClock(now func() uint64) Option {
	return func(t *Thermometer) {
		if now != nil {
			t.now = now
		}
	}
}

// New creates a thermometer emitting events with the given source id.
func New(id int, eb *bus.Bus, sched *fiber.Scheduler, opts ...Option) *Thermometer {
	t := &Thermometer{
		id:           id,
		bus:          eb,
		sched:        sched,
		samplePeriod: DefaultSamplePeriod,
	}
	t.now = sched.Ticks
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IdleTick samples from the board's idle loop if a reading is due.
func (t *Thermometer) IdleTick() {
	t.Poll()
}

// Temperature returns the temperature in whole degrees celsius,
// sampling first if the last reading is stale.
func (t *Thermometer) Temperature() int {
	if t.sampleNeeded() {
		t.update()
	}
	return t.temperature
}

// SetPeriod sets the time between samples. Zero restores the default.
func (t *Thermometer) SetPeriod(ms uint64) {
	if ms == 0 {
		ms = DefaultSamplePeriod
	}
	t.samplePeriod = ms
}

// Period returns the time between samples in milliseconds.
func (t *Thermometer) Period() uint64 {
	return t.samplePeriod
}

// SetRawValue injects the sensor reading in quarter degrees celsius.
// The reading takes effect at the next sample.
func (t *Thermometer) SetRawValue(quarterDegrees int) {
	t.raw = quarterDegrees
}

// Poll samples if a reading is due. The idle tick calls it
// periodically; tests drive it directly.
func (t *Thermometer) Poll() {
	if t.sampleNeeded() {
		t.update()
	}
}

func (t *Thermometer) sampleNeeded() bool {
	return t.now() >= t.sampleTime
}

func (t *Thermometer) update() {
	t.temperature = t.raw / 4
	t.sampleTime = t.now() + t.samplePeriod
	t.bus.Send(bus.NewEvent(t.id, EventUpdate, t.now()), &t.cache)
}
