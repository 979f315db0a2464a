// Package memory provides an in-process associative memory engine for agents.
//
// The engine keeps experience in three independent tiers:
//   - MemoryStore: flat key->entry recall with content, tag and time queries
//   - EpisodicMemory: time-ordered episodes of entries sharing a context
//   - SemanticMemory: a directed, weighted graph of concept nodes
//
// Every tier is a capacity-bounded index guarded by one reader-writer lock.
// When an insert would exceed capacity the tier evicts synchronously: each
// record gets a retention score (age, access recency, access frequency,
// importance and, for concepts, connectivity) and the lowest-scoring records
// are dropped until occupancy is back at 90% of capacity. Searches rank
// matches by a relevance score built from the same signals.
//
// Tiers never return errors. Unknown ids produce a false/zero result, capacity
// is maintained by eviction and out-of-range weights are clamped.
//
// Access bookkeeping (access count and last access time) is updated on reads
// while only the read lock is held; it lives in per-record atomics so that
// concurrent readers never race.
//
// Around the tiers:
//   - TieredManager: records agent traces into all three tiers and formats
//     recalled memories for prompt injection
//   - CategorizedStore: an EntryStore decorator with category and priority indexes
//   - Embedder / SimilarityIndex: boundaries to vector producers and vector
//     databases (see the embedder and index subpackages)
package memory
