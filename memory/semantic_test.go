package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeIDs(nodes []Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

func TestSemanticMemory_RelatedNodes(t *testing.T) {
	m := NewSemanticMemory(10)
	cat := m.CreateNode("cat", nil)
	animal := m.CreateNode("animal", nil)

	require.True(t, m.AddRelationship(cat, animal, 0.8))

	related := m.GetRelatedNodes(cat, 0.5, 10)
	require.Len(t, related, 1)
	assert.Equal(t, animal, related[0].ID)
	assert.Equal(t, "animal", related[0].Concept)

	assert.Empty(t, m.GetRelatedNodes(cat, 0.9, 10))
	assert.Empty(t, m.GetRelatedNodes(animal, 0, 10), "edges are directed")
	assert.Empty(t, m.GetRelatedNodes("missing", 0, 10))
}

func TestSemanticMemory_IDs(t *testing.T) {
	m := NewSemanticMemory(10)
	assert.Equal(t, "sem_1", m.CreateNode("a", nil))
	assert.Equal(t, "sem_2", m.CreateNode("a", nil), "concepts need not be unique")
}

func TestSemanticMemory_AddRelationshipIsIdempotent(t *testing.T) {
	m := NewSemanticMemory(10)
	a := m.CreateNode("a", nil)
	b := m.CreateNode("b", nil)

	require.True(t, m.AddRelationship(a, b, 0.3))
	require.True(t, m.AddRelationship(a, b, 0.7))

	node, ok := m.Node(a)
	require.True(t, ok)
	require.Len(t, node.Relationships, 1)
	assert.Equal(t, Relationship{Target: b, Strength: 0.7}, node.Relationships[0])
}

func TestSemanticMemory_AddRelationshipUnknownNodes(t *testing.T) {
	m := NewSemanticMemory(10)
	a := m.CreateNode("a", nil)

	assert.False(t, m.AddRelationship(a, "missing", 0.5))
	assert.False(t, m.AddRelationship("missing", a, 0.5))
}

func TestSemanticMemory_StrengthIsClamped(t *testing.T) {
	m := NewSemanticMemory(10)
	a := m.CreateNode("a", nil)
	b := m.CreateNode("b", nil)
	c := m.CreateNode("c", nil)

	m.AddRelationship(a, b, 1.7)
	m.AddRelationship(a, c, -0.2)

	s, ok := m.Strength(a, b)
	require.True(t, ok)
	assert.Equal(t, 1.0, s)
	s, ok = m.Strength(a, c)
	require.True(t, ok)
	assert.Equal(t, 0.0, s)

	_, ok = m.Strength(b, a)
	assert.False(t, ok)
}

func TestSemanticMemory_RelatedNodesOrderAndLimit(t *testing.T) {
	m := NewSemanticMemory(10)
	src := m.CreateNode("src", nil)
	weak := m.CreateNode("weak", nil)
	strong := m.CreateNode("strong", nil)
	mid := m.CreateNode("mid", nil)

	m.AddRelationship(src, weak, 0.2)
	m.AddRelationship(src, strong, 0.9)
	m.AddRelationship(src, mid, 0.5)

	assert.Equal(t, []string{strong, mid, weak}, nodeIDs(m.GetRelatedNodes(src, 0, 0)))
	assert.Equal(t, []string{strong, mid}, nodeIDs(m.GetRelatedNodes(src, 0, 2)))
	assert.Equal(t, []string{strong, mid}, nodeIDs(m.GetRelatedNodes(src, 0.5, 10)), "threshold is inclusive")
}

func TestSemanticMemory_DanglingEdges(t *testing.T) {
	m := NewSemanticMemory(10)
	a := m.CreateNode("a", nil)
	b := m.CreateNode("b", nil)
	c := m.CreateNode("c", nil)
	m.AddRelationship(a, b, 0.9)
	m.AddRelationship(a, c, 0.6)

	require.True(t, m.RemoveNode(b))
	assert.False(t, m.RemoveNode(b))

	assert.Equal(t, []string{c}, nodeIDs(m.GetRelatedNodes(a, 0, 10)), "dangling edges are skipped")

	node, _ := m.Node(a)
	assert.Len(t, node.Relationships, 2, "edges are weak references")

	assert.Equal(t, 1, m.PruneDanglingEdges())
	node, _ = m.Node(a)
	assert.Equal(t, []Relationship{{Target: c, Strength: 0.6}}, node.Relationships)
	assert.Equal(t, 0, m.PruneDanglingEdges())
}

func TestSemanticMemory_GetNodeCountsAccess(t *testing.T) {
	m := NewSemanticMemory(10)
	id := m.CreateNode("a", map[string]string{"k": "v"})

	n, ok := m.GetNode(id)
	require.True(t, ok)
	assert.Equal(t, int64(1), n.AccessCount)
	assert.Equal(t, "v", n.Attributes["k"])

	n, _ = m.Node(id)
	assert.Equal(t, int64(1), n.AccessCount)

	_, ok = m.GetNode("missing")
	assert.False(t, ok)
}

func TestSemanticMemory_UpdateNodeImportance(t *testing.T) {
	m := NewSemanticMemory(10)
	id := m.CreateNode("a", nil)

	m.UpdateNodeImportance(id, 0.7)
	n, _ := m.Node(id)
	assert.Equal(t, 0.7, n.Importance)

	m.UpdateNodeImportance(id, 3)
	n, _ = m.Node(id)
	assert.Equal(t, 1.0, n.Importance)

	// unknown ids are ignored
	m.UpdateNodeImportance("missing", 0.5)
}

func TestSemanticMemory_Search(t *testing.T) {
	m := NewSemanticMemory(10)
	low := m.CreateNode("action", map[string]string{"name": "get_balance"})
	high := m.CreateNode("action", map[string]string{"name": "send_money"})
	m.CreateNode("person", map[string]string{"name": "alice"})
	m.UpdateNodeImportance(low, 0.1)
	m.UpdateNodeImportance(high, 0.9)

	results := m.Search(NodeQuery{Concept: "action"}, 0)
	assert.Equal(t, []string{high, low}, nodeIDs(results))

	results = m.Search(NodeQuery{Attributes: map[string]string{"name": "alice"}}, 0)
	require.Len(t, results, 1)
	assert.Equal(t, "person", results[0].Concept)

	n, _ := m.Node(high)
	assert.Equal(t, int64(1), n.AccessCount, "search counts an access on results")
}

func TestSemanticMemory_EvictionKeepsImportantNodes(t *testing.T) {
	m := NewSemanticMemory(2)
	weak := m.CreateNode("weak", nil)
	strong := m.CreateNode("strong", nil)
	m.UpdateNodeImportance(weak, 0.1)
	m.UpdateNodeImportance(strong, 0.9)
	m.AddRelationship(strong, weak, 0.5)

	third := m.CreateNode("third", nil)

	assert.Equal(t, 2, m.Size())
	_, ok := m.Node(weak)
	assert.False(t, ok)
	_, ok = m.Node(third)
	assert.True(t, ok)
	assert.Empty(t, m.GetRelatedNodes(strong, 0, 10))
}

func TestSemanticMemory_Concurrent(t *testing.T) {
	m := NewSemanticMemory(30)
	hub := m.CreateNode("hub", nil)
	m.UpdateNodeImportance(hub, 1)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := m.CreateNode(fmt.Sprintf("c%d", w), nil)
				m.AddRelationship(hub, id, float64(i%10)/10)
				m.GetRelatedNodes(hub, 0.3, 5)
				m.GetNode(id)
				m.Search(NodeQuery{Concept: "hub"}, 1)
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, m.Size(), 30)
	m.PruneDanglingEdges()
}
