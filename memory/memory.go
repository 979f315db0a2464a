package memory

import (
	"context"

	"github.com/gloom-ai/gloom-go/core"
)

// EntryStore is the capability set of a flat, capacity-bounded entry store.
// MemoryStore is the base implementation; CategorizedStore decorates any
// EntryStore with extra indexes.
type EntryStore interface {
	// Store inserts or overwrites an entry, evicting first when a new id
	// would exceed capacity. It stamps Timestamp and LastAccessed.
	Store(e Entry) bool

	// Retrieve returns a copy of the entry and counts the access.
	Retrieve(id string) (Entry, bool)

	// Search returns matching entries ranked by relevance. limit <= 0 means
	// unlimited. Every returned entry counts one access.
	Search(q Query, limit int) []Entry

	// Update applies the non-nil fields of u and stamps LastModified.
	Update(id string, u EntryUpdate) bool

	Remove(id string) bool
	Clear()
	Size() int

	// Contains reports whether id is stored, without counting an access.
	Contains(id string) bool
}

// Manager orchestrates memory for an agent.
//
// The agent decides WHEN to use memory (retrieve before a turn, record after
// it). The Manager decides HOW: which tiers to write, how to score, how to
// format what comes back.
type Manager interface {
	// Retrieve finds memories relevant to the user's message and returns
	// them formatted for prompt injection. An empty string means nothing
	// relevant was found.
	Retrieve(ctx context.Context, ownerID string, message string) (string, error)

	// Record stores a completed interaction.
	Record(ctx context.Context, ownerID string, interaction *Interaction) error
}

// Interaction is one completed agent turn.
type Interaction struct {
	SessionID string
	Traces    []*core.Trace

	// UserMessage and Response capture exchanges that involve no tool call.
	UserMessage string
	Response    string
}

// Embedder converts text to embedding vectors. The memory tiers never call
// it; vectors arrive on entries already computed.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// SimilarityIndex mirrors entry embeddings into a vector database so that
// entries can be found by similarity. Similarity is computed by the index,
// never by the memory tiers.
type SimilarityIndex interface {
	// Add indexes an entry under its owner. The entry must carry an embedding.
	Add(ctx context.Context, ownerID string, e Entry) error

	// Query returns up to limit entry ids ordered by similarity, highest first.
	Query(ctx context.Context, ownerID string, embedding []float32, limit int) ([]Hit, error)

	// Remove drops an entry from the index.
	Remove(ctx context.Context, ownerID string, id string) error

	Close() error
}

// Hit is one SimilarityIndex result.
type Hit struct {
	ID         string
	Similarity float64
}

// FormatContext controls how recalled entries are rendered for a prompt.
type FormatContext struct {
	OwnerID   string
	Query     string
	MaxLength int // max characters for one entry
}
