package bus

import "reflect"

// Handler receives events for a listener. Implementations carry whatever
// state their callback needs; the bus never inspects them beyond identity.
type Handler interface {
	OnEvent(Event)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(Event)

// OnEvent implements Handler.
func (f HandlerFunc) OnEvent(e Event) { f(e) }

// Listener is one registered (source, value, handler) triple. Listeners
// are owned exclusively by the bus and are never removed once inserted.
type Listener struct {
	source  int
	value   int
	handler Handler
	next    *Listener
}

// Source returns the listener's source filter (AnySource for wildcard).
func (l *Listener) Source() int { return l.source }

// Value returns the listener's value filter (AnyValue for wildcard).
func (l *Listener) Value() int { return l.value }

// matches reports whether the listener's value filter accepts v.
func (l *Listener) matches(v int) bool {
	return l.value == AnyValue || l.value == v
}

// sameHandler reports whether two handlers are the same registration
// identity. Func-backed handlers (HandlerFunc, bound methods) compare by
// code pointer, mirroring function-pointer identity on the original
// hardware; everything else compares by interface equality when its
// dynamic type allows it.
func sameHandler(a, b Handler) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() == reflect.Func || vb.Kind() == reflect.Func {
		return va.Kind() == vb.Kind() && va.Pointer() == vb.Pointer()
	}
	if va.Type() != vb.Type() || !va.Type().Comparable() {
		return false
	}
	return a == b
}
