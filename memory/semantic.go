package memory

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSemanticCapacity is used when SemanticMemory is created with a
// non-positive capacity.
const DefaultSemanticCapacity = 10000

type nodeRecord struct {
	id            string
	concept       string
	attributes    map[string]string
	relationships []Relationship
	importance    float64
	created       time.Time
	stats         accessStats
}

func (r *nodeRecord) signals() signals {
	count, last := r.stats.load()
	return signals{
		created:      r.created,
		lastAccessed: last,
		accessCount:  count,
		importance:   r.importance,
		links:        len(r.relationships),
	}
}

func (r *nodeRecord) snapshot() Node {
	count, last := r.stats.load()
	var rels []Relationship
	if len(r.relationships) > 0 {
		rels = append([]Relationship(nil), r.relationships...)
	}
	return Node{
		ID:            r.id,
		Concept:       r.concept,
		Attributes:    cloneMap(r.attributes),
		Relationships: rels,
		Importance:    r.importance,
		AccessCount:   count,
		Created:       r.created,
		LastAccessed:  last,
	}
}

func (r *nodeRecord) edge(target string) int {
	for i, rel := range r.relationships {
		if rel.Target == target {
			return i
		}
	}
	return -1
}

// SemanticMemory is a capacity-bounded directed graph of concepts.
//
// Edges are weak references by id: removing a node leaves edges that point at
// it in place. Traversals skip such dangling edges and PruneDanglingEdges
// removes them explicitly.
type SemanticMemory struct {
	mu       sync.RWMutex
	nodes    map[string]*nodeRecord
	capacity int
	ids      sequence
	opts     options
}

// NewSemanticMemory creates a graph holding at most capacity nodes.
func NewSemanticMemory(capacity int, opts ...Option) *SemanticMemory {
	if capacity <= 0 {
		capacity = DefaultSemanticCapacity
	}
	return &SemanticMemory{
		nodes:    make(map[string]*nodeRecord),
		capacity: capacity,
		ids:      sequence{prefix: "sem_"},
		opts:     newOptions(opts),
	}
}

// CreateNode adds a concept node and returns its id. Concepts need not be unique.
func (m *SemanticMemory) CreateNode(concept string, attributes map[string]string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.nodes) >= m.capacity {
		m.evictLocked()
	}

	now := m.opts.now()
	rec := &nodeRecord{
		id:         m.ids.next(),
		concept:    concept,
		attributes: cloneMap(attributes),
		created:    now,
	}
	rec.stats.reset(0, now)
	m.nodes[rec.id] = rec
	return rec.id
}

// AddRelationship sets the weight of the edge from -> to, creating it if
// needed. strength is clamped to [0,1]. It returns false if either node is
// unknown.
func (m *SemanticMemory) AddRelationship(from, to string, strength float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.nodes[from]
	if !ok {
		return false
	}
	if _, ok := m.nodes[to]; !ok {
		return false
	}

	strength = clamp01(strength)
	if i := src.edge(to); i >= 0 {
		src.relationships[i].Strength = strength
		return true
	}
	src.relationships = append(src.relationships, Relationship{Target: to, Strength: strength})
	return true
}

// Strength returns the weight of the edge from -> to.
func (m *SemanticMemory) Strength(from, to string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src, ok := m.nodes[from]
	if !ok {
		return 0, false
	}
	i := src.edge(to)
	if i < 0 {
		return 0, false
	}
	return src.relationships[i].Strength, true
}

// GetNode counts an access and returns a snapshot of the node.
func (m *SemanticMemory) GetNode(id string) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.nodes[id]
	if !ok {
		return Node{}, false
	}
	rec.stats.touch(m.opts.now())
	return rec.snapshot(), true
}

// Node returns a snapshot of the node without counting an access.
func (m *SemanticMemory) Node(id string) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.nodes[id]
	if !ok {
		return Node{}, false
	}
	return rec.snapshot(), true
}

// Search returns matching nodes, most relevant first, and counts an access on
// each returned node.
func (m *SemanticMemory) Search(q NodeQuery, limit int) []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.opts.now()
	matches := make([]scored[*nodeRecord], 0)
	for id, rec := range m.nodes {
		if q.Concept != "" && rec.concept != q.Concept {
			continue
		}
		if !containsAll(rec.attributes, q.Attributes) {
			continue
		}
		matches = append(matches, scored[*nodeRecord]{
			key:   id,
			item:  rec,
			score: nodeRelevance(rec.signals(), now),
		})
	}
	sortScored(matches, true)

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]Node, len(matches))
	for i, match := range matches {
		results[i] = match.item.snapshot()
	}
	for _, match := range matches {
		match.item.stats.touch(now)
	}

	m.opts.telemetry.recordSearch("semantic", len(results))
	return results
}

// GetRelatedNodes returns the targets of id's outgoing edges with weight at
// least minStrength, strongest first. Unknown ids and dangling edges yield
// nothing.
func (m *SemanticMemory) GetRelatedNodes(id string, minStrength float64, limit int) []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src, ok := m.nodes[id]
	if !ok {
		return nil
	}

	type related struct {
		node     Node
		strength float64
	}
	var found []related
	for _, rel := range src.relationships {
		if rel.Strength < minStrength {
			continue
		}
		target, ok := m.nodes[rel.Target]
		if !ok {
			continue
		}
		found = append(found, related{node: target.snapshot(), strength: rel.Strength})
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].strength > found[j].strength
	})

	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}

	results := make([]Node, len(found))
	for i, r := range found {
		results[i] = r.node
	}
	return results
}

// UpdateNodeImportance sets a node's importance, clamped to [0,1]. Unknown
// ids are ignored.
func (m *SemanticMemory) UpdateNodeImportance(id string, importance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.nodes[id]; ok {
		rec.importance = clamp01(importance)
	}
}

// RemoveNode deletes a node. Edges pointing at it are left dangling.
func (m *SemanticMemory) RemoveNode(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[id]; !ok {
		return false
	}
	delete(m.nodes, id)
	return true
}

// PruneDanglingEdges removes every edge whose target no longer exists and
// returns how many were removed.
func (m *SemanticMemory) PruneDanglingEdges() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, rec := range m.nodes {
		kept := rec.relationships[:0]
		for _, rel := range rec.relationships {
			if _, ok := m.nodes[rel.Target]; ok {
				kept = append(kept, rel)
				continue
			}
			removed++
		}
		rec.relationships = kept
	}

	if removed > 0 {
		m.opts.logger.Debug("pruned dangling edges", zap.Int("removed", removed))
	}
	return removed
}

// Size returns the number of nodes.
func (m *SemanticMemory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// evictLocked drops the lowest-retention nodes. Caller holds the write lock.
// Edges into evicted nodes are not touched.
func (m *SemanticMemory) evictLocked() {
	now := m.opts.now()
	ranked := make([]scored[struct{}], 0, len(m.nodes))
	for id, rec := range m.nodes {
		ranked = append(ranked, scored[struct{}]{key: id, score: nodeRetention(rec.signals(), now)})
	}
	sortScored(ranked, false)

	n := evictionCount(len(ranked), m.capacity)
	for _, r := range ranked[:n] {
		delete(m.nodes, r.key)
	}

	m.opts.logger.Debug("evicted nodes",
		zap.Int("evicted", n),
		zap.Int("remaining", len(m.nodes)),
		zap.Int("capacity", m.capacity))
	m.opts.telemetry.recordEviction("semantic", n)
}
