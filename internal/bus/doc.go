// Package bus implements the board's event bus: an ordered listener
// registry keyed by (source, value) and a fire-and-forget dispatch engine
// that runs every matching callback on its own scheduled fiber.
//
// # Registry
//
// Listeners live in a singly-linked list kept sorted by source ascending,
// then value ascending. The sentinels AnySource and AnyValue (both zero)
// widen matching and, being zero, sort to the head of the list:
//
//	head ─► (ANY,7) ─► (ANY,9) ─► (1,2) ─► (5,ANY) ─► (5,7) ─► nil
//	         └─ any-source prefix ─┘└──── source-sorted body ────┘
//
// The registry only grows. Each successful insertion increments a
// monotonic version counter; callers that dispatch repeatedly to the same
// source hold a DispatchCache, valid exactly while its captured version
// matches the bus's.
//
// # Dispatch
//
// Send walks the registry in four steps: locate the sublist for the
// event's source (from the cache when fresh, by head scan when not); spawn
// a fiber for each listener in that sublist whose value filter matches the
// event's value or is AnyValue; walk the any-source prefix from the head
// applying the same value test; and finally refresh the cache if it was
// stale. Spawn requests are issued in registry order, but the spawned
// fiber bodies are independently scheduled; their execution order is the
// scheduler's business.
//
// Send returns once the spawn requests are issued. It never waits for a
// callback, never queues an event, and a send with no matching listeners
// costs only the scan. When the fiber pool is exhausted a spawn is dropped
// and counted in Stats; nothing blocks.
//
// # Registration
//
// Listen is idempotent: an identical (source, value, handler) triple, or
// an existing registration of the same handler that already subsumes the
// new one through AnySource/AnyValue, is a silent no-op. Handlers backed
// by funcs are identified by code pointer; other handler types by
// interface equality.
//
// # Contract
//
// The bus is single-threaded, like everything in the cooperative
// runtime: Listen and Send must only be called from fiber context (or
// before the scheduler starts), never from two interleaved contexts.
// Registry mutation never yields, so a listener list observed by Send is
// always complete and ordered. There is no error taxonomy at this layer:
// Listen always succeeds for a non-nil handler and Send always completes
// its scan; zero matches is a normal outcome, not a failure.
//
// Source zero is reserved for AnySource; producers must use nonzero
// source identifiers.
package bus
