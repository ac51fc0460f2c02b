package bus

// DispatchCache is a caller-held hint that accelerates repeated sends to
// the same source: the listener node where the last scan for that source
// began, and the registry version at capture. The zero value is an empty
// cache.
//
// A cache is valid exactly while its captured version equals the bus's
// current version; any listener insertion invalidates every outstanding
// cache, and the next Send through a stale cache rescans and refreshes it.
//
// One cache serves one (producer, source) stream. Handing the same cache
// to sends with differing sources, or to a different bus instance, is a
// programming error the bus does not detect.
type DispatchCache struct {
	node    *Listener
	version uint64
}

// Version returns the registry version captured by the last refresh, or
// zero for an empty cache.
func (c *DispatchCache) Version() uint64 { return c.version }

// Listener returns the cached scan-start node, or nil for an empty cache.
func (c *DispatchCache) Listener() *Listener { return c.node }

// valid reports whether the cache may be used against the given registry
// version.
func (c *DispatchCache) valid(version uint64) bool {
	return c.node != nil && c.version == version
}
