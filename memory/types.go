package memory

import (
	"strings"
	"sync/atomic"
	"time"
)

// Entry is a single remembered item.
type Entry struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Tags     []string          `json:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	// Embedding is produced by an Embedder and stored opaquely.
	Embedding []float32 `json:"embedding,omitempty"`

	Timestamp    time.Time `json:"timestamp"`
	LastAccessed time.Time `json:"last_accessed"`
	LastModified time.Time `json:"last_modified,omitempty"`
	AccessCount  int64     `json:"access_count"`
	Importance   float64   `json:"importance"`
}

// HasTag reports whether the entry carries tag.
func (e Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (e Entry) clone() Entry {
	out := e
	if e.Tags != nil {
		out.Tags = append([]string(nil), e.Tags...)
	}
	out.Metadata = cloneMap(e.Metadata)
	if e.Embedding != nil {
		out.Embedding = append([]float32(nil), e.Embedding...)
	}
	return out
}

// EntryUpdate is a partial update. Nil fields are left untouched; a non-nil
// field (even an empty one) replaces the stored value.
type EntryUpdate struct {
	Content  *string
	Tags     []string
	Metadata map[string]string
}

// Query filters MemoryStore.Search.
type Query struct {
	// Content must be a substring of the entry content. Empty matches all.
	Content string
	// Tags matches entries carrying at least one of the tags.
	Tags []string
	// Start and End bound the entry timestamp, inclusive.
	Start *time.Time
	End   *time.Time
}

func (q Query) matches(e *Entry) bool {
	if q.Content != "" && !strings.Contains(e.Content, q.Content) {
		return false
	}
	if len(q.Tags) > 0 {
		found := false
		for _, tag := range q.Tags {
			if e.HasTag(tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return inRange(e.Timestamp, q.Start, q.End)
}

// Episode is a snapshot of an episode.
type Episode struct {
	ID           string            `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	Entries      []Entry           `json:"entries"`
	Context      map[string]string `json:"context,omitempty"`
	Importance   float64           `json:"importance"`
	AccessCount  int64             `json:"access_count"`
	LastAccessed time.Time         `json:"last_accessed"`
}

// EpisodeQuery filters EpisodicMemory.Search.
type EpisodeQuery struct {
	// Content must be a substring of at least one entry. Empty matches all.
	Content string
	// Context pairs must all be present with equal values.
	Context map[string]string
	Start   *time.Time
	End     *time.Time
}

// EpisodeMatch is one EpisodicMemory.Search result.
type EpisodeMatch struct {
	EpisodeID string            `json:"episode_id"`
	Context   map[string]string `json:"context,omitempty"`
	Entries   []Entry           `json:"entries"`
}

// Relationship is a directed, weighted edge to another node.
type Relationship struct {
	Target   string  `json:"target"`
	Strength float64 `json:"strength"`
}

// Node is a snapshot of a concept in SemanticMemory.
type Node struct {
	ID            string            `json:"id"`
	Concept       string            `json:"concept"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	Relationships []Relationship    `json:"relationships,omitempty"`
	Importance    float64           `json:"importance"`
	AccessCount   int64             `json:"access_count"`
	Created       time.Time         `json:"created"`
	LastAccessed  time.Time         `json:"last_accessed"`
}

// NodeQuery filters SemanticMemory.Search.
type NodeQuery struct {
	// Concept must equal the node concept. Empty matches all.
	Concept    string
	Attributes map[string]string
}

// accessStats holds the access bookkeeping of a record. It is written by
// readers holding only the read lock, hence the atomics.
type accessStats struct {
	count        atomic.Int64
	lastAccessed atomic.Pointer[time.Time]
}

func (a *accessStats) reset(count int64, at time.Time) {
	a.count.Store(count)
	a.lastAccessed.Store(&at)
}

func (a *accessStats) touch(at time.Time) {
	a.count.Add(1)
	a.lastAccessed.Store(&at)
}

func (a *accessStats) load() (int64, time.Time) {
	var last time.Time
	if p := a.lastAccessed.Load(); p != nil {
		last = *p
	}
	return a.count.Load(), last
}

func inRange(t time.Time, start, end *time.Time) bool {
	if start != nil && t.Before(*start) {
		return false
	}
	if end != nil && t.After(*end) {
		return false
	}
	return true
}

func containsAll(have, want map[string]string) bool {
	for k, v := range want {
		if got, ok := have[k]; !ok || got != v {
			return false
		}
	}
	return true
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.clone()
	}
	return out
}
