package chromem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gloom-ai/gloom-go/memory"
	"github.com/gloom-ai/gloom-go/memory/embedder/mock"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New(WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func embedded(t *testing.T, e *mock.Embedder, id, content string) memory.Entry {
	t.Helper()
	vec, err := e.Embed(context.Background(), content)
	require.NoError(t, err)
	return memory.Entry{ID: id, Content: content, Embedding: vec}
}

func TestIndex_AddAndQuery(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	emb := mock.New(64)

	require.NoError(t, idx.Add(ctx, "user1", embedded(t, emb, "a", "check savings balance")))
	require.NoError(t, idx.Add(ctx, "user1", embedded(t, emb, "b", "weather forecast tomorrow")))
	assert.Equal(t, 2, idx.Size("user1"))

	query, _ := emb.Embed(ctx, "savings balance")
	hits, err := idx.Query(ctx, "user1", query, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2, "limit is clamped to collection size")
	assert.Equal(t, "a", hits[0].ID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestIndex_OwnersAreIsolated(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	emb := mock.New(64)

	require.NoError(t, idx.Add(ctx, "user1", embedded(t, emb, "a", "private note")))

	query, _ := emb.Embed(ctx, "private note")
	hits, err := idx.Query(ctx, "user2", query, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_Remove(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	emb := mock.New(64)

	require.NoError(t, idx.Add(ctx, "user1", embedded(t, emb, "a", "first")))
	require.NoError(t, idx.Add(ctx, "user1", embedded(t, emb, "b", "second")))

	require.NoError(t, idx.Remove(ctx, "user1", "a"))
	assert.Equal(t, 1, idx.Size("user1"))

	query, _ := emb.Embed(ctx, "first")
	hits, err := idx.Query(ctx, "user1", query, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)

	// Unknown owner is a no-op.
	assert.NoError(t, idx.Remove(ctx, "nobody", "a"))
}

func TestIndex_AddRequiresEmbedding(t *testing.T) {
	idx := newTestIndex(t)
	err := idx.Add(context.Background(), "user1", memory.Entry{ID: "a", Content: "no vector"})
	assert.Error(t, err)
}
