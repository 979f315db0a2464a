package memory

import (
	"sync"

	"go.uber.org/zap"
)

// DefaultStoreCapacity is used when a MemoryStore is created with a
// non-positive capacity.
const DefaultStoreCapacity = 1000

type entryRecord struct {
	entry Entry // AccessCount and LastAccessed live in stats
	stats accessStats
}

func (r *entryRecord) signals() signals {
	count, last := r.stats.load()
	return signals{
		created:      r.entry.Timestamp,
		lastAccessed: last,
		accessCount:  count,
		importance:   r.entry.Importance,
	}
}

func (r *entryRecord) snapshot() Entry {
	e := r.entry.clone()
	e.AccessCount, e.LastAccessed = r.stats.load()
	return e
}

// MemoryStore is a capacity-bounded key->Entry index with relevance-ranked
// search and retention-scored batch eviction.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]*entryRecord
	capacity int
	opts     options
}

var _ EntryStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store holding at most capacity entries.
func NewMemoryStore(capacity int, opts ...Option) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultStoreCapacity
	}
	return &MemoryStore{
		entries:  make(map[string]*entryRecord),
		capacity: capacity,
		opts:     newOptions(opts),
	}
}

// Store inserts or overwrites e by id.
func (s *MemoryStore) Store(e Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[e.ID]; !exists && len(s.entries) >= s.capacity {
		s.evictLocked()
	}

	now := s.opts.now()
	rec := &entryRecord{entry: e.clone()}
	rec.entry.Timestamp = now
	rec.entry.LastAccessed = now
	rec.stats.reset(e.AccessCount, now)
	s.entries[e.ID] = rec
	return true
}

// Retrieve counts an access and returns a copy of the entry.
func (s *MemoryStore) Retrieve(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.entries[id]
	if !ok {
		return Entry{}, false
	}
	rec.stats.touch(s.opts.now())
	return rec.snapshot(), true
}

// Search returns entries matching q, most relevant first.
func (s *MemoryStore) Search(q Query, limit int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.opts.now()
	matches := make([]scored[*entryRecord], 0)
	for id, rec := range s.entries {
		if !q.matches(&rec.entry) {
			continue
		}
		matches = append(matches, scored[*entryRecord]{
			key:   id,
			item:  rec,
			score: entryRelevance(rec.signals(), now),
		})
	}
	sortScored(matches, true)

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]Entry, len(matches))
	for i, m := range matches {
		results[i] = m.item.snapshot()
	}
	for _, m := range matches {
		m.item.stats.touch(now)
	}

	s.opts.telemetry.recordSearch("store", len(results))
	return results
}

// Update applies the non-nil fields of u.
func (s *MemoryStore) Update(id string, u EntryUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.entries[id]
	if !ok {
		return false
	}
	if u.Content != nil {
		rec.entry.Content = *u.Content
	}
	if u.Tags != nil {
		rec.entry.Tags = append([]string{}, u.Tags...)
	}
	if u.Metadata != nil {
		rec.entry.Metadata = cloneMap(u.Metadata)
	}
	rec.entry.LastModified = s.opts.now()
	return true
}

// Remove deletes an entry. It reports whether the entry existed.
func (s *MemoryStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	return true
}

// Clear removes every entry.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entryRecord)
}

// Size returns the number of stored entries.
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Contains reports whether id is stored. It does not count an access.
func (s *MemoryStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// Capacity returns the configured maximum number of entries.
func (s *MemoryStore) Capacity() int {
	return s.capacity
}

// evictLocked drops the lowest-retention entries. Caller holds the write lock.
func (s *MemoryStore) evictLocked() {
	now := s.opts.now()
	ranked := make([]scored[struct{}], 0, len(s.entries))
	for id, rec := range s.entries {
		ranked = append(ranked, scored[struct{}]{key: id, score: entryRetention(rec.signals(), now)})
	}
	sortScored(ranked, false)

	n := evictionCount(len(ranked), s.capacity)
	for _, r := range ranked[:n] {
		delete(s.entries, r.key)
	}

	s.opts.logger.Debug("evicted entries",
		zap.Int("evicted", n),
		zap.Int("remaining", len(s.entries)),
		zap.Int("capacity", s.capacity))
	s.opts.telemetry.recordEviction("store", n)
}
