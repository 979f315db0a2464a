package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults used when EpisodicMemory is created with non-positive limits.
const (
	DefaultMaxEpisodes          = 100
	DefaultMaxEntriesPerEpisode = 50
)

type episodeRecord struct {
	id         string
	created    time.Time
	entries    []Entry
	context    map[string]string
	importance float64
	stats      accessStats
}

func (r *episodeRecord) signals() signals {
	count, last := r.stats.load()
	return signals{
		created:      r.created,
		lastAccessed: last,
		accessCount:  count,
		importance:   r.importance,
	}
}

func (r *episodeRecord) matches(q EpisodeQuery) bool {
	if !inRange(r.created, q.Start, q.End) {
		return false
	}
	if !containsAll(r.context, q.Context) {
		return false
	}
	if q.Content == "" {
		return true
	}
	for i := range r.entries {
		if strings.Contains(r.entries[i].Content, q.Content) {
			return true
		}
	}
	return false
}

// EpisodicMemory groups entries into bounded, time-ordered episodes.
// Entries added to an episode are owned by it and are independent of any
// MemoryStore copy.
type EpisodicMemory struct {
	mu         sync.RWMutex
	episodes   map[string]*episodeRecord
	capacity   int
	perEpisode int
	ids        sequence
	opts       options
}

// NewEpisodicMemory creates an episodic memory holding at most maxEpisodes
// episodes of at most maxEntries entries each.
func NewEpisodicMemory(maxEpisodes, maxEntries int, opts ...Option) *EpisodicMemory {
	if maxEpisodes <= 0 {
		maxEpisodes = DefaultMaxEpisodes
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntriesPerEpisode
	}
	return &EpisodicMemory{
		episodes:   make(map[string]*episodeRecord),
		capacity:   maxEpisodes,
		perEpisode: maxEntries,
		ids:        sequence{prefix: "ep_"},
		opts:       newOptions(opts),
	}
}

// CreateEpisode starts a new episode with the given context and returns its id.
func (m *EpisodicMemory) CreateEpisode(context map[string]string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.episodes) >= m.capacity {
		m.evictLocked()
	}

	now := m.opts.now()
	rec := &episodeRecord{
		id:      m.ids.next(),
		created: now,
		context: cloneMap(context),
	}
	rec.stats.reset(0, now)
	m.episodes[rec.id] = rec
	return rec.id
}

// AddMemory appends e to an episode. It returns false if the episode is unknown.
func (m *EpisodicMemory) AddMemory(episodeID string, e Entry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.episodes[episodeID]
	if !ok {
		return false
	}
	if len(rec.entries) >= m.perEpisode {
		m.pruneLocked(rec)
	}
	rec.entries = append(rec.entries, e.clone())
	rec.importance = meanImportance(rec.entries)
	return true
}

// RecallEpisode counts an access and returns the episode entries in
// insertion order.
func (m *EpisodicMemory) RecallEpisode(episodeID string) ([]Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.episodes[episodeID]
	if !ok {
		return nil, false
	}
	rec.stats.touch(m.opts.now())
	return cloneEntries(rec.entries), true
}

// Contains reports whether an episode exists.
func (m *EpisodicMemory) Contains(episodeID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.episodes[episodeID]
	return ok
}

// Episode returns a snapshot of an episode without counting an access.
func (m *EpisodicMemory) Episode(episodeID string) (Episode, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.episodes[episodeID]
	if !ok {
		return Episode{}, false
	}
	count, last := rec.stats.load()
	return Episode{
		ID:           rec.id,
		Timestamp:    rec.created,
		Entries:      cloneEntries(rec.entries),
		Context:      cloneMap(rec.context),
		Importance:   rec.importance,
		AccessCount:  count,
		LastAccessed: last,
	}, true
}

// Search returns matching episodes, most relevant first.
func (m *EpisodicMemory) Search(q EpisodeQuery, limit int) []EpisodeMatch {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.opts.now()
	matches := make([]scored[*episodeRecord], 0)
	for id, rec := range m.episodes {
		if !rec.matches(q) {
			continue
		}
		matches = append(matches, scored[*episodeRecord]{
			key:   id,
			item:  rec,
			score: episodeRelevance(rec.signals(), now),
		})
	}
	sortScored(matches, true)

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]EpisodeMatch, len(matches))
	for i, match := range matches {
		results[i] = EpisodeMatch{
			EpisodeID: match.key,
			Context:   cloneMap(match.item.context),
			Entries:   cloneEntries(match.item.entries),
		}
	}

	m.opts.telemetry.recordSearch("episodic", len(results))
	return results
}

// RemoveEpisode deletes an episode and its entries.
func (m *EpisodicMemory) RemoveEpisode(episodeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.episodes[episodeID]; !ok {
		return false
	}
	delete(m.episodes, episodeID)
	return true
}

// Size returns the number of episodes.
func (m *EpisodicMemory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.episodes)
}

// evictLocked drops the lowest-retention episodes. Caller holds the write lock.
func (m *EpisodicMemory) evictLocked() {
	now := m.opts.now()
	ranked := make([]scored[struct{}], 0, len(m.episodes))
	for id, rec := range m.episodes {
		ranked = append(ranked, scored[struct{}]{key: id, score: episodeRetention(rec.signals(), now)})
	}
	sortScored(ranked, false)

	n := evictionCount(len(ranked), m.capacity)
	for _, r := range ranked[:n] {
		delete(m.episodes, r.key)
	}

	m.opts.logger.Debug("evicted episodes",
		zap.Int("evicted", n),
		zap.Int("remaining", len(m.episodes)),
		zap.Int("capacity", m.capacity))
	m.opts.telemetry.recordEviction("episodic", n)
}

// pruneLocked drops the least important entries of one episode, keeping the
// survivors in their original order. Caller holds the write lock.
func (m *EpisodicMemory) pruneLocked(rec *episodeRecord) {
	type indexed struct {
		idx   int
		score float64
	}
	ranked := make([]indexed, len(rec.entries))
	for i, e := range rec.entries {
		ranked[i] = indexed{idx: i, score: memoryImportance(e)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score < ranked[j].score
	})

	n := evictionCount(len(rec.entries), m.perEpisode)
	drop := make(map[int]struct{}, n)
	for _, r := range ranked[:n] {
		drop[r.idx] = struct{}{}
	}

	kept := make([]Entry, 0, len(rec.entries)-n)
	for i, e := range rec.entries {
		if _, ok := drop[i]; !ok {
			kept = append(kept, e)
		}
	}
	rec.entries = kept

	m.opts.logger.Debug("pruned episode entries",
		zap.String("episode", rec.id),
		zap.Int("pruned", n),
		zap.Int("remaining", len(kept)))
}
