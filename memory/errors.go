package memory

import "errors"

// Errors returned by the layers around the tiers. The tiers themselves
// report not-found as a false result.
var (
	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("memory: invalid config")

	// ErrEmbedding is returned when the Embedder fails.
	ErrEmbedding = errors.New("memory: embedding failed")

	// ErrIndex is returned when the SimilarityIndex fails.
	ErrIndex = errors.New("memory: similarity index failed")

	// ErrDisabled is returned by operations that need an enabled Manager.
	ErrDisabled = errors.New("memory: disabled")
)
