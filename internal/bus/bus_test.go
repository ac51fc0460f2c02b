package bus

import (
	"errors"
	"fmt"
	"testing"
)

// recordingSpawner captures spawn requests in submission order and, when
// immediate, runs each callback as it is issued.
type recordingSpawner struct {
	immediate bool
	fail      bool
	spawned   []func()
}

func (s *recordingSpawner) Spawn(fn func()) error {
	if s.fail {
		return errors.New("fiber pool exhausted")
	}
	s.spawned = append(s.spawned, fn)
	if s.immediate {
		fn()
	}
	return nil
}

// runAll executes deferred spawns, emptying the queue.
func (s *recordingSpawner) runAll() {
	for _, fn := range s.spawned {
		fn()
	}
	s.spawned = s.spawned[:0]
}

// tagHandler appends its tag to a shared journal when invoked. Pointer
// identity makes each instance a distinct registration.
type tagHandler struct {
	tag     string
	journal *[]string
}

func (h *tagHandler) OnEvent(e Event) {
	*h.journal = append(*h.journal, fmt.Sprintf("%s{%d,%d}", h.tag, e.Source, e.Value))
}

// countingHandler tallies invocations. Pointer identity distinguishes
// instances during registration.
type countingHandler struct {
	calls int
}

func (h *countingHandler) OnEvent(Event) { h.calls++ }

// registryKeys walks the registry head to tail.
func registryKeys(b *Bus) [][2]int {
	var keys [][2]int
	for l := b.head; l != nil; l = l.next {
		keys = append(keys, [2]int{l.source, l.value})
	}
	return keys
}

func sameKeys(a, b [][2]int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBus_Listen_SortedInsertion(t *testing.T) {
	inserts := [][2]int{{9, 4}, {5, 7}, {5, 2}, {1, 1}, {9, 1}, {5, 9}}
	want := [][2]int{{1, 1}, {5, 2}, {5, 7}, {5, 9}, {9, 1}, {9, 4}}

	// Every insertion order converges on the same sorted sequence.
	permutations := [][]int{
		{0, 1, 2, 3, 4, 5},
		{5, 4, 3, 2, 1, 0},
		{3, 0, 5, 1, 4, 2},
		{2, 5, 0, 4, 1, 3},
	}

	for _, perm := range permutations {
		b := NewBus(&recordingSpawner{})
		var journal []string
		for _, i := range perm {
			b.Listen(inserts[i][0], inserts[i][1], &tagHandler{tag: "h", journal: &journal})
		}
		if got := registryKeys(b); !sameKeys(got, want) {
			t.Errorf("order %v: registry = %v, want %v", perm, got, want)
		}
		if b.Version() != uint64(len(inserts)) {
			t.Errorf("order %v: Version() = %d, want %d", perm, b.Version(), len(inserts))
		}
	}
}

func TestBus_Listen_WildcardsSortToHead(t *testing.T) {
	b := NewBus(&recordingSpawner{})
	var journal []string

	b.Listen(5, 7, &tagHandler{tag: "a", journal: &journal})
	b.Listen(AnySource, 7, &tagHandler{tag: "b", journal: &journal})
	b.Listen(AnySource, AnyValue, &tagHandler{tag: "c", journal: &journal})
	b.Listen(5, AnyValue, &tagHandler{tag: "d", journal: &journal})

	want := [][2]int{{AnySource, AnyValue}, {AnySource, 7}, {5, AnyValue}, {5, 7}}
	if got := registryKeys(b); !sameKeys(got, want) {
		t.Errorf("registry = %v, want %v", got, want)
	}
}

func TestBus_Listen_Idempotent(t *testing.T) {
	b := NewBus(&recordingSpawner{})
	var journal []string
	h := &tagHandler{tag: "a", journal: &journal}

	b.Listen(5, 7, h)
	b.Listen(5, 7, h)

	if got := len(registryKeys(b)); got != 1 {
		t.Errorf("registry size = %d, want 1", got)
	}
	if b.Version() != 1 {
		t.Errorf("Version() = %d, want 1 (duplicate must not bump)", b.Version())
	}
}

func TestBus_Listen_Subsumption(t *testing.T) {
	tests := []struct {
		name     string
		first    [2]int
		second   [2]int
		inserted bool // whether the second registration lands
	}{
		{"any-any subsumes exact", [2]int{AnySource, AnyValue}, [2]int{5, 7}, false},
		{"any-value subsumes exact", [2]int{5, AnyValue}, [2]int{5, 7}, false},
		{"any-source subsumes exact", [2]int{AnySource, 7}, [2]int{5, 7}, false},
		{"exact does not subsume broad", [2]int{5, 7}, [2]int{AnySource, 7}, true},
		{"exact does not subsume wide value", [2]int{5, 7}, [2]int{5, AnyValue}, true},
		{"sibling value is distinct", [2]int{5, 7}, [2]int{5, 9}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBus(&recordingSpawner{})
			var journal []string
			h := &tagHandler{tag: "a", journal: &journal}

			b.Listen(tt.first[0], tt.first[1], h)
			b.Listen(tt.second[0], tt.second[1], h)

			wantLen, wantVersion := 1, uint64(1)
			if tt.inserted {
				wantLen, wantVersion = 2, 2
			}
			if got := len(registryKeys(b)); got != wantLen {
				t.Errorf("registry size = %d, want %d", got, wantLen)
			}
			if b.Version() != wantVersion {
				t.Errorf("Version() = %d, want %d", b.Version(), wantVersion)
			}
		})
	}
}

func TestBus_Listen_DifferentHandlersNotDeduped(t *testing.T) {
	b := NewBus(&recordingSpawner{})
	var journal []string

	b.Listen(5, 7, &tagHandler{tag: "a", journal: &journal})
	b.Listen(5, 7, &tagHandler{tag: "b", journal: &journal})

	if got := len(registryKeys(b)); got != 2 {
		t.Errorf("registry size = %d, want 2 (distinct handlers share a key)", got)
	}
}

func TestBus_Listen_NilHandler(t *testing.T) {
	b := NewBus(&recordingSpawner{})

	b.Listen(5, 7, nil)
	b.ListenFunc(5, 7, nil)

	if got := len(registryKeys(b)); got != 0 {
		t.Errorf("registry size = %d, want 0", got)
	}
	if b.Version() != 0 {
		t.Errorf("Version() = %d, want 0", b.Version())
	}
}

func TestBus_ListenFunc_SameFuncDeduped(t *testing.T) {
	b := NewBus(&recordingSpawner{})
	count := 0
	fn := func(Event) { count++ }

	b.ListenFunc(5, 7, fn)
	b.ListenFunc(5, 7, fn)

	if got := len(registryKeys(b)); got != 1 {
		t.Errorf("registry size = %d, want 1 (same func registered twice)", got)
	}
}

// setupMatchers registers the canonical three listeners:
// A=(5,7) exact, B=(5,AnyValue), C=(AnySource,7).
func setupMatchers(t *testing.T) (*Bus, *recordingSpawner, *[]string) {
	t.Helper()
	sp := &recordingSpawner{immediate: true}
	b := NewBus(sp)
	journal := &[]string{}
	b.Listen(5, 7, &tagHandler{tag: "A", journal: journal})
	b.Listen(5, AnyValue, &tagHandler{tag: "B", journal: journal})
	b.Listen(AnySource, 7, &tagHandler{tag: "C", journal: journal})
	return b, sp, journal
}

func TestBus_Send_MatchingMatrix(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  []string
	}{
		// Source sublist first in (source, value) order, then any-source.
		{"exact source and value", NewEvent(5, 7, 0), []string{"B{5,7}", "A{5,7}", "C{5,7}"}},
		{"source only", NewEvent(5, 9, 0), []string{"B{5,9}"}},
		{"value only via any-source", NewEvent(9, 7, 0), []string{"C{9,7}"}},
		{"no match at all", NewEvent(9, 9, 0), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, journal := setupMatchers(t)
			b.Send(tt.event, nil)

			got := *journal
			if len(got) != len(tt.want) {
				t.Fatalf("spawned %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("spawn %d = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBus_Send_FireAndForget(t *testing.T) {
	// Spawn requests are issued but bodies do not run until the scheduler
	// gets around to them.
	sp := &recordingSpawner{}
	b := NewBus(sp)
	journal := &[]string{}
	b.Listen(5, AnyValue, &tagHandler{tag: "B", journal: journal})

	b.Send(NewEvent(5, 1, 0), nil)

	if len(*journal) != 0 {
		t.Fatalf("callback ran during Send; journal = %v", *journal)
	}
	if len(sp.spawned) != 1 {
		t.Fatalf("spawn requests = %d, want 1", len(sp.spawned))
	}

	sp.runAll()
	if len(*journal) != 1 {
		t.Errorf("journal after scheduling = %v, want one entry", *journal)
	}
}

func TestBus_Send_CacheLifecycle(t *testing.T) {
	b, _, _ := setupMatchers(t)
	var cache DispatchCache

	// First send through an empty cache: rescan, then refresh.
	b.Send(NewEvent(5, 7, 0), &cache)

	if cache.Version() != b.Version() {
		t.Fatalf("cache version = %d, want %d after refresh", cache.Version(), b.Version())
	}
	start := cache.Listener()
	if start == nil || start.Source() != 5 {
		t.Fatalf("cache start = %+v, want first source-5 listener", start)
	}

	// A fresh cache is reused, not rewritten.
	b.Send(NewEvent(5, 7, 0), &cache)
	if cache.Listener() != start {
		t.Error("valid cache was rewritten")
	}

	// Registry growth invalidates; the next send rescans and refreshes.
	versionBefore := b.Version()
	b.ListenFunc(3, 3, func(Event) {})
	if b.Version() != versionBefore+1 {
		t.Fatalf("Version() = %d, want %d", b.Version(), versionBefore+1)
	}
	if cache.valid(b.Version()) {
		t.Error("cache still valid after registry growth")
	}

	b.Send(NewEvent(5, 7, 0), &cache)
	if cache.Version() != b.Version() {
		t.Errorf("cache version = %d, want %d after rescan", cache.Version(), b.Version())
	}
	if cache.Listener() == nil || cache.Listener().Source() != 5 {
		t.Errorf("cache start = %+v, want first source-5 listener", cache.Listener())
	}
}

func TestBus_Send_CachedAndUncachedAgree(t *testing.T) {
	uncachedBus, _, uncachedJournal := setupMatchers(t)
	cachedBus, _, cachedJournal := setupMatchers(t)

	var cache DispatchCache
	for i := 0; i < 5; i++ {
		uncachedBus.Send(NewEvent(5, 7, uint64(i)), nil)
		cachedBus.Send(NewEvent(5, 7, uint64(i)), &cache)
	}

	if len(*uncachedJournal) != len(*cachedJournal) {
		t.Fatalf("cached dispatch count %d != uncached %d", len(*cachedJournal), len(*uncachedJournal))
	}
	for i := range *uncachedJournal {
		if (*uncachedJournal)[i] != (*cachedJournal)[i] {
			t.Errorf("dispatch %d: cached %s, uncached %s", i, (*cachedJournal)[i], (*uncachedJournal)[i])
		}
	}
}

func TestBus_Send_AlternatingScenario(t *testing.T) {
	// Three listeners, one hundred events alternating sources 5 and 9
	// with value 7, one cache per source stream.
	sp := &recordingSpawner{immediate: true}
	b := NewBus(sp)

	a := &countingHandler{}
	bh := &countingHandler{}
	c := &countingHandler{}
	b.Listen(5, 7, a)
	b.Listen(5, AnyValue, bh)
	b.Listen(AnySource, 7, c)

	var cache5, cache9 DispatchCache
	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			b.Send(NewEvent(5, 7, uint64(i)), &cache5)
		} else {
			b.Send(NewEvent(9, 7, uint64(i)), &cache9)
		}
	}

	if a.calls != 50 {
		t.Errorf("exact listener ran %d times, want 50", a.calls)
	}
	if bh.calls != 50 {
		t.Errorf("any-value listener ran %d times, want 50", bh.calls)
	}
	if c.calls != 100 {
		t.Errorf("any-source listener ran %d times, want 100", c.calls)
	}

	stats := b.Stats()
	if stats.EventsSent != 100 {
		t.Errorf("Stats().EventsSent = %d, want 100", stats.EventsSent)
	}
	if stats.FibersSpawned != 200 {
		t.Errorf("Stats().FibersSpawned = %d, want 200", stats.FibersSpawned)
	}
	if stats.SpawnsDropped != 0 {
		t.Errorf("Stats().SpawnsDropped = %d, want 0", stats.SpawnsDropped)
	}
}

func TestBus_Send_PoolExhaustedDrops(t *testing.T) {
	sp := &recordingSpawner{fail: true}
	b := NewBus(sp)
	b.ListenFunc(5, AnyValue, func(Event) {})

	b.Send(NewEvent(5, 1, 0), nil)

	stats := b.Stats()
	if stats.SpawnsDropped != 1 {
		t.Errorf("Stats().SpawnsDropped = %d, want 1", stats.SpawnsDropped)
	}
	if stats.FibersSpawned != 0 {
		t.Errorf("Stats().FibersSpawned = %d, want 0", stats.FibersSpawned)
	}
}

type recordingWaker struct {
	wakes [][2]int
}

func (w *recordingWaker) WakeEvent(source, value int) {
	w.wakes = append(w.wakes, [2]int{source, value})
}

func TestBus_Send_WakesWaiters(t *testing.T) {
	waker := &recordingWaker{}
	b := NewBus(&recordingSpawner{}, WithWaker(waker))

	b.Send(NewEvent(5, 7, 0), nil)
	b.Send(NewEvent(9, 1, 0), nil)

	want := [][2]int{{5, 7}, {9, 1}}
	if len(waker.wakes) != len(want) {
		t.Fatalf("wakes = %v, want %v", waker.wakes, want)
	}
	for i := range want {
		if waker.wakes[i] != want[i] {
			t.Errorf("wake %d = %v, want %v", i, waker.wakes[i], want[i])
		}
	}
}

func TestBus_Stats_Listeners(t *testing.T) {
	b := NewBus(&recordingSpawner{})
	var journal []string

	for i := 1; i <= 4; i++ {
		b.Listen(i, i, &tagHandler{tag: "h", journal: &journal})
	}

	if got := b.Stats().Listeners; got != 4 {
		t.Errorf("Stats().Listeners = %d, want 4", got)
	}
	if got := b.Stats().Version; got != 4 {
		t.Errorf("Stats().Version = %d, want 4", got)
	}
}
