package bus

import "sync/atomic"

// Spawner is the scheduler capability the bus consumes: run fn on an
// independently suspendable fiber, eventually. Implementations must never
// call back into the bus from inside their own switch path.
type Spawner interface {
	Spawn(fn func()) error
}

// Waker is an optional scheduler capability: unblock fibers waiting for a
// matching event. Wired by the board so blocking helpers built on the
// scheduler see every event the bus carries.
type Waker interface {
	WakeEvent(source, value int)
}

// Stats is a point-in-time snapshot of bus counters.
type Stats struct {
	// EventsSent is the number of Send calls.
	EventsSent uint64

	// FibersSpawned is the number of listener fibers successfully handed
	// to the scheduler.
	FibersSpawned uint64

	// SpawnsDropped is the number of matches dropped because the fiber
	// pool was exhausted.
	SpawnsDropped uint64

	// Listeners is the registry size.
	Listeners int

	// Version is the current registry version.
	Version uint64
}

// Bus is the owned listener registry and dispatch engine. See the package
// documentation for the threading contract; the zero value is not usable,
// construct with NewBus.
type Bus struct {
	head    *Listener
	version uint64

	spawner Spawner
	waker   Waker

	eventsSent    atomic.Uint64
	fibersSpawned atomic.Uint64
	spawnsDropped atomic.Uint64
	listeners     atomic.Int64
}

// Option configures a Bus.
type Option func(*Bus)

// WithWaker attaches a scheduler wake hook, called once per Send after
// spawn requests are issued.
func WithWaker(w Waker) Option {
	return func(b *Bus) { b.waker = w }
}

// NewBus creates a bus dispatching through the given spawner.
func NewBus(spawner Spawner, opts ...Option) *Bus {
	if spawner == nil {
		panic("bus: nil spawner")
	}
	b := &Bus{spawner: spawner}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Listen registers handler for events matching (source, value), with
// AnySource/AnyValue widening the match. Registration is idempotent: an
// identical triple, or an existing registration of the same handler that
// already subsumes this one, leaves the registry untouched. A nil handler
// is ignored.
//
// On a successful insert the registry version increments exactly once,
// invalidating every outstanding DispatchCache.
func (b *Bus) Listen(source, value int, handler Handler) {
	if handler == nil {
		return
	}

	// The sorted prefix with l.source <= source holds every entry that
	// could subsume or duplicate the new registration.
	for l := b.head; l != nil && l.source <= source; l = l.next {
		if (l.source == source || l.source == AnySource) &&
			(l.value == value || l.value == AnyValue) &&
			sameHandler(l.handler, handler) {
			return
		}
	}

	nl := &Listener{source: source, value: value, handler: handler}

	// Insert before the first node strictly greater in (source, value)
	// order; equal keys keep registration order.
	var prev *Listener
	l := b.head
	for l != nil && (l.source < source || (l.source == source && l.value <= value)) {
		prev = l
		l = l.next
	}
	nl.next = l
	if prev == nil {
		b.head = nl
	} else {
		prev.next = nl
	}

	b.version++
	b.listeners.Add(1)
}

// ListenFunc registers a plain function callback.
func (b *Bus) ListenFunc(source, value int, fn func(Event)) {
	if fn == nil {
		return
	}
	b.Listen(source, value, HandlerFunc(fn))
}

// Send dispatches e to every matching listener, spawning one fiber per
// match in registry order, and returns once the spawn requests are issued.
// It never blocks on listener execution and never queues the event.
//
// A non-nil cache accelerates the scan when its version is current; a
// stale cache triggers a full rescan and is refreshed before return.
func (b *Bus) Send(e Event, cache *DispatchCache) {
	b.eventsSent.Add(1)

	// Step 1: locate the start of the sublist for this source.
	var start *Listener
	if cache != nil && cache.valid(b.version) {
		start = cache.node
	} else {
		for l := b.head; l != nil; l = l.next {
			if l.source == e.Source {
				start = l
				break
			}
		}
	}

	// Step 2: the source-specific sublist, in (source, value) order.
	for l := start; l != nil && l.source == e.Source; l = l.next {
		if l.matches(e.Value) {
			b.spawn(l, e)
		}
	}

	// Step 3: the any-source prefix at the head, same value test.
	for l := b.head; l != nil && l.source == AnySource; l = l.next {
		if l.matches(e.Value) {
			b.spawn(l, e)
		}
	}

	// Step 4: refresh the cache only when it was stale.
	if cache != nil && cache.version != b.version {
		cache.node = start
		cache.version = b.version
	}

	if b.waker != nil {
		b.waker.WakeEvent(e.Source, e.Value)
	}
}

// Version returns the current registry version: the count of successful
// insertions since the bus was created.
func (b *Bus) Version() uint64 { return b.version }

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	return Stats{
		EventsSent:    b.eventsSent.Load(),
		FibersSpawned: b.fibersSpawned.Load(),
		SpawnsDropped: b.spawnsDropped.Load(),
		Listeners:     int(b.listeners.Load()),
		Version:       b.version,
	}
}

func (b *Bus) spawn(l *Listener, e Event) {
	handler := l.handler
	if err := b.spawner.Spawn(func() { handler.OnEvent(e) }); err != nil {
		b.spawnsDropped.Add(1)
		return
	}
	b.fibersSpawned.Add(1)
}
