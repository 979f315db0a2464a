// Package chromem implements memory.SimilarityIndex on chromem-go, a pure
// Go embedded vector database.
package chromem

import (
	"context"
	"fmt"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/gloom-ai/gloom-go/memory"
)

// Index mirrors entry embeddings into one chromem collection per owner.
type Index struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
	logger      *zap.Logger
}

var _ memory.SimilarityIndex = (*Index)(nil)

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Index) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New creates an in-memory index.
func New(opts ...Option) (*Index, error) {
	idx := &Index{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// collection returns the collection of an owner, creating it on first use.
func (i *Index) collection(ownerID string) (*chromem.Collection, error) {
	i.mu.RLock()
	col, exists := i.collections[ownerID]
	i.mu.RUnlock()
	if exists {
		return col, nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := i.collections[ownerID]; exists {
		return col, nil
	}

	name := "owner_" + ownerID
	if ownerID == "" {
		name = "global"
	}

	// No embedding func: vectors always arrive precomputed.
	col, err := i.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}
	i.collections[ownerID] = col
	return col, nil
}

// Add indexes e under ownerID. Re-adding an id replaces it.
func (i *Index) Add(ctx context.Context, ownerID string, e memory.Entry) error {
	if len(e.Embedding) == 0 {
		return fmt.Errorf("entry %s has no embedding", e.ID)
	}
	col, err := i.collection(ownerID)
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        e.ID,
		Content:   e.Content,
		Embedding: e.Embedding,
		Metadata: map[string]string{
			"owner_id": ownerID,
			"tags":     strings.Join(e.Tags, ","),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	i.logger.Debug("indexed entry", zap.String("id", e.ID), zap.String("owner", ownerID))
	return nil
}

// Query returns up to limit entries closest to embedding.
func (i *Index) Query(ctx context.Context, ownerID string, embedding []float32, limit int) ([]memory.Hit, error) {
	col, err := i.collection(ownerID)
	if err != nil {
		return nil, err
	}

	// chromem-go requires nResults <= collection size, and the size can
	// shrink between Count and the query.
	var results []chromem.Result
	for attempt := 0; attempt < 3; attempt++ {
		n := limit
		if count := col.Count(); n <= 0 || n > count {
			n = count
		}
		if n == 0 {
			return nil, nil
		}

		results, err = col.QueryEmbedding(ctx, embedding, n, nil, nil)
		if err == nil {
			break
		}
		if !isInsufficientDocsError(err) {
			return nil, fmt.Errorf("chromem query: %w", err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	hits := make([]memory.Hit, len(results))
	for j, r := range results {
		hits[j] = memory.Hit{ID: r.ID, Similarity: float64(r.Similarity)}
	}

	i.logger.Debug("similarity query",
		zap.String("owner", ownerID),
		zap.Int("limit", limit),
		zap.Int("hits", len(hits)))
	return hits, nil
}

// Remove drops an entry. Unknown ids are not an error.
func (i *Index) Remove(ctx context.Context, ownerID string, id string) error {
	i.mu.RLock()
	col, exists := i.collections[ownerID]
	i.mu.RUnlock()
	if !exists {
		return nil
	}

	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Size returns the number of entries indexed for an owner.
func (i *Index) Size(ownerID string) int {
	i.mu.RLock()
	col, exists := i.collections[ownerID]
	i.mu.RUnlock()
	if !exists {
		return 0
	}
	return col.Count()
}

// Close releases resources. chromem-go keeps everything in memory.
func (i *Index) Close() error {
	return nil
}

func isInsufficientDocsError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
