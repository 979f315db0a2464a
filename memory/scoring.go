package memory

import (
	"math"
	"sort"
	"time"
)

// evictionRatio is the occupancy a tier is brought back to once eviction
// triggers.
const evictionRatio = 0.9

// signals are the inputs shared by every relevance and retention formula.
type signals struct {
	created      time.Time
	lastAccessed time.Time
	accessCount  int64
	importance   float64
	links        int
}

// wholeHours is the number of complete hours between t and now, floored at 0.
func wholeHours(now, t time.Time) float64 {
	d := now.Sub(t)
	if d <= 0 {
		return 0
	}
	return float64(d / time.Hour)
}

// damp maps an age in hours to (0,1], newer being closer to 1.
func damp(hours float64) float64 {
	return 1.0 / (1.0 + math.Log1p(hours))
}

func frequency(n int64) float64 {
	if n < 0 {
		n = 0
	}
	return math.Log1p(float64(n))
}

func connectivity(links int) float64 {
	return math.Log1p(float64(links))
}

func entryRelevance(s signals, now time.Time) float64 {
	return 0.4*damp(wholeHours(now, s.created)) +
		0.3*frequency(s.accessCount) +
		0.3*s.importance
}

func entryRetention(s signals, now time.Time) float64 {
	return 0.2*damp(wholeHours(now, s.created)) +
		0.3*damp(wholeHours(now, s.lastAccessed)) +
		0.2*frequency(s.accessCount) +
		0.3*s.importance
}

func episodeRelevance(s signals, now time.Time) float64 {
	return 0.3*damp(wholeHours(now, s.created)) +
		0.3*frequency(s.accessCount) +
		0.4*s.importance
}

// episodeRetention has the same shape as entryRetention, over the episode's
// own timestamps and derived importance.
func episodeRetention(s signals, now time.Time) float64 {
	return entryRetention(s, now)
}

func nodeRelevance(s signals, now time.Time) float64 {
	return 0.2*damp(wholeHours(now, s.created)) +
		0.2*frequency(s.accessCount) +
		0.4*s.importance +
		0.2*connectivity(s.links)
}

func nodeRetention(s signals, now time.Time) float64 {
	return 0.15*damp(wholeHours(now, s.created)) +
		0.25*damp(wholeHours(now, s.lastAccessed)) +
		0.2*frequency(s.accessCount) +
		0.25*s.importance +
		0.15*connectivity(s.links)
}

// memoryImportance weights an entry inside an episode by how often it has
// been used.
func memoryImportance(e Entry) float64 {
	return e.Importance * (1.0 + frequency(e.AccessCount))
}

func meanImportance(entries []Entry) float64 {
	if len(entries) == 0 {
		return 0
	}
	var total float64
	for _, e := range entries {
		total += memoryImportance(e)
	}
	return total / float64(len(entries))
}

// evictionCount returns how many of size records to drop so that at most
// floor(0.9*capacity) remain. At least one record is always dropped so the
// pending insert fits.
func evictionCount(size, capacity int) int {
	target := int(math.Floor(float64(capacity) * evictionRatio))
	n := size - target
	if n < 1 {
		n = 1
	}
	if n > size {
		n = size
	}
	return n
}

// scored pairs a record key with its score.
type scored[T any] struct {
	key   string
	item  T
	score float64
}

// sortScored orders by score, descending or ascending. Equal scores fall
// back to key order so that rankings are deterministic.
func sortScored[T any](items []scored[T], descending bool) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			if descending {
				return items[i].score > items[j].score
			}
			return items[i].score < items[j].score
		}
		return items[i].key < items[j].key
	})
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
