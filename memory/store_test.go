package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeClock is a settable clock for WithClock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStore_EvictsLowestRetention(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore(2, WithClock(clock.Now), WithLogger(zaptest.NewLogger(t)))

	require.True(t, s.Store(Entry{ID: "A", Content: "a", Importance: 0.1}))
	require.True(t, s.Store(Entry{ID: "B", Content: "b", Importance: 0.9}))
	require.True(t, s.Store(Entry{ID: "C", Content: "c", Importance: 0.5}))

	assert.Equal(t, 2, s.Size())

	_, ok := s.Retrieve("A")
	assert.False(t, ok, "lowest retention entry is evicted")
	_, ok = s.Retrieve("B")
	assert.True(t, ok)
	_, ok = s.Retrieve("C")
	assert.True(t, ok)
}

func TestMemoryStore_EvictsDownToNinetyPercent(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore(20, WithClock(clock.Now))

	for i := 0; i < 20; i++ {
		s.Store(Entry{ID: fmt.Sprintf("e%02d", i), Importance: float64(i) / 20})
	}
	require.Equal(t, 20, s.Size())

	s.Store(Entry{ID: "new", Importance: 0.5})

	// 20 -> 18 survivors, plus the new entry
	assert.Equal(t, 19, s.Size())
	_, ok := s.Retrieve("e00")
	assert.False(t, ok)
	_, ok = s.Retrieve("e01")
	assert.False(t, ok)
	_, ok = s.Retrieve("e02")
	assert.True(t, ok)
}

func TestMemoryStore_OverwriteDoesNotEvict(t *testing.T) {
	s := NewMemoryStore(2)
	s.Store(Entry{ID: "A", Content: "first"})
	s.Store(Entry{ID: "B", Content: "other"})
	s.Store(Entry{ID: "A", Content: "second"})

	assert.Equal(t, 2, s.Size())
	e, ok := s.Retrieve("A")
	require.True(t, ok)
	assert.Equal(t, "second", e.Content)
	_, ok = s.Retrieve("B")
	assert.True(t, ok)
}

func TestMemoryStore_CapacityIsNeverExceeded(t *testing.T) {
	s := NewMemoryStore(7)
	for i := 0; i < 100; i++ {
		s.Store(Entry{ID: fmt.Sprintf("e%d", i), Importance: float64(i%10) / 10})
		assert.LessOrEqual(t, s.Size(), s.Capacity())
	}
}

func TestMemoryStore_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultStoreCapacity, NewMemoryStore(0).Capacity())
	assert.Equal(t, DefaultStoreCapacity, NewMemoryStore(-5).Capacity())
}

func TestMemoryStore_StoreStampsTimes(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore(10, WithClock(clock.Now))

	s.Store(Entry{ID: "A", Timestamp: time.Unix(0, 0)})
	e, ok := s.Retrieve("A")
	require.True(t, ok)
	assert.Equal(t, clock.Now(), e.Timestamp)
	assert.Equal(t, clock.Now(), e.LastAccessed)
}

func TestMemoryStore_RetrieveCountsAccess(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore(10, WithClock(clock.Now))
	s.Store(Entry{ID: "A", Content: "x"})

	first, ok := s.Retrieve("A")
	require.True(t, ok)
	assert.Equal(t, int64(1), first.AccessCount)

	clock.Advance(time.Minute)
	second, ok := s.Retrieve("A")
	require.True(t, ok)
	assert.Equal(t, int64(2), second.AccessCount)
	assert.Equal(t, clock.Now(), second.LastAccessed)

	_, ok = s.Retrieve("missing")
	assert.False(t, ok)
}

func TestMemoryStore_AccessTimesKeepClockLocation(t *testing.T) {
	zone := time.FixedZone("UTC+3", 3*60*60)
	now := time.Date(2024, 6, 1, 15, 0, 0, 0, zone)
	s := NewMemoryStore(10, WithClock(func() time.Time { return now }))
	s.Store(Entry{ID: "A", Content: "x"})

	e, ok := s.Retrieve("A")
	require.True(t, ok)
	assert.True(t, e.Timestamp == e.LastAccessed)
	assert.Equal(t, zone, e.LastAccessed.Location())

	found := s.Search(Query{Content: "x"}, 0)
	require.Len(t, found, 1)
	assert.Equal(t, zone, found[0].LastAccessed.Location())

	sem := NewSemanticMemory(10, WithClock(func() time.Time { return now }))
	node, ok := sem.GetNode(sem.CreateNode("cat", nil))
	require.True(t, ok)
	assert.True(t, node.Created == node.LastAccessed)
}

func TestMemoryStore_RetrieveReturnsCopy(t *testing.T) {
	s := NewMemoryStore(10)
	s.Store(Entry{ID: "A", Tags: []string{"x"}, Metadata: map[string]string{"k": "v"}})

	e, _ := s.Retrieve("A")
	e.Tags[0] = "mutated"
	e.Metadata["k"] = "mutated"

	again, _ := s.Retrieve("A")
	assert.Equal(t, []string{"x"}, again.Tags)
	assert.Equal(t, "v", again.Metadata["k"])
}

func TestMemoryStore_SearchOrdersByRelevance(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore(10, WithClock(clock.Now))

	s.Store(Entry{ID: "low", Content: "payment sent", Importance: 0.1})
	s.Store(Entry{ID: "high", Content: "payment failed", Importance: 0.9})
	s.Store(Entry{ID: "mid", Content: "payment pending", Importance: 0.5})
	s.Store(Entry{ID: "other", Content: "weather", Importance: 1.0})

	results := s.Search(Query{Content: "payment"}, 0)
	require.Len(t, results, 3)
	assert.Equal(t, "high", results[0].ID)
	assert.Equal(t, "mid", results[1].ID)
	assert.Equal(t, "low", results[2].ID)

	limited := s.Search(Query{Content: "payment"}, 1)
	require.Len(t, limited, 1)
	assert.Equal(t, "high", limited[0].ID)
}

func TestMemoryStore_SearchCountsAccessOnReturnedEntries(t *testing.T) {
	s := NewMemoryStore(10)
	s.Store(Entry{ID: "A", Content: "x", Importance: 0.9})
	s.Store(Entry{ID: "B", Content: "x", Importance: 0.1})

	results := s.Search(Query{Content: "x"}, 1)
	require.Len(t, results, 1)
	assert.Equal(t, int64(0), results[0].AccessCount, "snapshot is taken before the access is counted")

	a, _ := s.Retrieve("A")
	b, _ := s.Retrieve("B")
	assert.Equal(t, int64(2), a.AccessCount)
	assert.Equal(t, int64(1), b.AccessCount, "entries cut by the limit are not counted")
}

func TestMemoryStore_SearchByTags(t *testing.T) {
	s := NewMemoryStore(10)
	s.Store(Entry{ID: "A", Tags: []string{"red"}})
	s.Store(Entry{ID: "B", Tags: []string{"blue"}})
	s.Store(Entry{ID: "C", Tags: []string{"green"}})

	results := s.Search(Query{Tags: []string{"red", "blue"}}, 0)
	ids := make([]string, len(results))
	for i, e := range results {
		ids[i] = e.ID
	}
	assert.ElementsMatch(t, []string{"A", "B"}, ids)
}

func TestMemoryStore_SearchByTimeRange(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore(10, WithClock(clock.Now))

	s.Store(Entry{ID: "old"})
	clock.Advance(2 * time.Hour)
	start := clock.Now()
	s.Store(Entry{ID: "mid"})
	clock.Advance(2 * time.Hour)
	end := clock.Now()
	s.Store(Entry{ID: "new"})
	clock.Advance(time.Hour)
	s.Store(Entry{ID: "newest"})

	results := s.Search(Query{Start: &start, End: &end}, 0)
	ids := make([]string, len(results))
	for i, e := range results {
		ids[i] = e.ID
	}
	assert.ElementsMatch(t, []string{"mid", "new"}, ids, "bounds are inclusive")
}

func TestMemoryStore_SearchNoMatches(t *testing.T) {
	s := NewMemoryStore(10)
	s.Store(Entry{ID: "A", Content: "x"})
	assert.Empty(t, s.Search(Query{Content: "nothing"}, 10))
}

func TestMemoryStore_Update(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore(10, WithClock(clock.Now))
	s.Store(Entry{ID: "A", Content: "old", Tags: []string{"t"}, Metadata: map[string]string{"k": "v"}})

	clock.Advance(time.Hour)
	content := "new"
	require.True(t, s.Update("A", EntryUpdate{Content: &content}))

	e, _ := s.Retrieve("A")
	assert.Equal(t, "new", e.Content)
	assert.Equal(t, []string{"t"}, e.Tags, "nil fields are left untouched")
	assert.Equal(t, "v", e.Metadata["k"])
	assert.Equal(t, clock.Now(), e.LastModified)

	require.True(t, s.Update("A", EntryUpdate{Tags: []string{}}))
	e, _ = s.Retrieve("A")
	assert.Empty(t, e.Tags)

	assert.False(t, s.Update("missing", EntryUpdate{Content: &content}))
}

func TestMemoryStore_RemoveAndClear(t *testing.T) {
	s := NewMemoryStore(10)
	s.Store(Entry{ID: "A"})
	s.Store(Entry{ID: "B"})

	assert.True(t, s.Remove("A"))
	assert.False(t, s.Remove("A"))
	assert.Equal(t, 1, s.Size())

	s.Clear()
	assert.Equal(t, 0, s.Size())
	_, ok := s.Retrieve("B")
	assert.False(t, ok)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore(50)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("w%d-%d", w, i%60)
				s.Store(Entry{ID: id, Content: "payload", Importance: float64(i%10) / 10})
				s.Retrieve(id)
				s.Search(Query{Content: "pay"}, 5)
				if i%7 == 0 {
					s.Remove(id)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, s.Size(), 50)
}

func TestMemoryStore_ConcurrentRetrieveCountsEveryAccess(t *testing.T) {
	s := NewMemoryStore(10)
	s.Store(Entry{ID: "A"})

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Retrieve("A")
			}
		}()
	}
	wg.Wait()

	e, _ := s.Retrieve("A")
	assert.Equal(t, int64(1001), e.AccessCount)
}
