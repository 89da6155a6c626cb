// Package embeddings provides the embedding provider contract (C3) and
// its resilience wrappers: an LRU+TTL cache keyed by content hash, a
// circuit breaker, and retry with backoff.
package embeddings

import "context"

// Provider turns text into dense vectors. Implementations must be pure
// with respect to network I/O — no retained mutable state beyond a
// connection pool.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	// EmbedBatch preserves input order: result[i] corresponds to texts[i].
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
	Dimensions() int
	ModelName() string
}
