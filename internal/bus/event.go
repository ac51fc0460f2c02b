package bus

// Matching sentinels. Both are zero so wildcard listeners sort to the head
// of the registry, where the any-source dispatch pass expects them.
const (
	// AnySource matches events from every source.
	AnySource = 0

	// AnyValue matches every value from a source.
	AnyValue = 0
)

// Event is a single occurrence on the bus: something identified by Source
// happened, qualified by Value, at Timestamp board ticks. Events are
// transient; the bus hands them to listeners during one Send and retains
// nothing.
type Event struct {
	// Source identifies the producing component. Zero is reserved.
	Source int

	// Value qualifies the occurrence within the source's namespace
	// (which button gesture, which animation completed).
	Value int

	// Timestamp is the board tick count at construction, in milliseconds
	// since boot.
	Timestamp uint64

	// Payload optionally carries producer-defined context. The bus never
	// inspects it.
	Payload any
}

// NewEvent constructs an event for the given source and value at the given
// board tick.
func NewEvent(source, value int, ticks uint64) Event {
	return Event{Source: source, Value: value, Timestamp: ticks}
}
