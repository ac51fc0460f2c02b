package pin

import (
	"github.com/solenoidlabs/fray/internal/bus"
	"github.com/solenoidlabs/fray/internal/fiber"
)

// IO is the full set of edge-connector pins with the board's
// capability map: the three large pads support digital, analog, and
// touch, three more pads add analog, and the rest are digital only.
type IO struct {
	P0  *Pin
	P1  *Pin
	P2  *Pin
	P3  *Pin
	P4  *Pin
	P5  *Pin
	P6  *Pin
	P7  *Pin
	P8  *Pin
	P9  *Pin
	P10 *Pin
	P11 *Pin
	P12 *Pin
	P13 *Pin
	P14 *Pin
	P15 *Pin
	P16 *Pin
	P19 *Pin
	P20 *Pin

	pins []*Pin
}

// NewIO creates the pin set with bus source ids assigned upward from
// firstID in pin order.
func NewIO(firstID int, eb *bus.Bus, sched *fiber.Scheduler) *IO {
	b := &IO{}
	id := firstID
	add := func(name string, caps Capability) *Pin {
		p := New(id, name, caps, eb, sched)
		id++
		b.pins = append(b.pins, p)
		return p
	}

	b.P0 = add("P0", CapAll)
	b.P1 = add("P1", CapAll)
	b.P2 = add("P2", CapAll)
	b.P3 = add("P3", CapAD)
	b.P4 = add("P4", CapAD)
	b.P5 = add("P5", CapDigital)
	b.P6 = add("P6", CapDigital)
	b.P7 = add("P7", CapDigital)
	b.P8 = add("P8", CapDigital)
	b.P9 = add("P9", CapDigital)
	b.P10 = add("P10", CapAD)
	b.P11 = add("P11", CapDigital)
	b.P12 = add("P12", CapDigital)
	b.P13 = add("P13", CapDigital)
	b.P14 = add("P14", CapDigital)
	b.P15 = add("P15", CapDigital)
	b.P16 = add("P16", CapDigital)
	b.P19 = add("P19", CapDigital)
	b.P20 = add("P20", CapDigital)

	return b
}

// Pins returns every pin in id order.
func (b *IO) Pins() []*Pin { return b.pins }

// Find returns the pin with the given label, or nil.
func (b *IO) Find(name string) *Pin {
	for _, p := range b.pins {
		if p.name == name {
			return p
		}
	}
	return nil
}
