// Package storage defines the pluggable persistence contracts the
// retrieval core reads and writes through — vector search, unit/chunk
// metadata, and the dependency graph — plus a reference in-memory
// implementation of each.
package storage

import (
	"context"

	"codecortex/pkg/codeunit"
)

// ScoredPoint is one vector search hit.
type ScoredPoint struct {
	ID       string
	Score    float64
	Metadata map[string]interface{}
}

// VectorStore stores and searches dense vectors keyed by identifier.
// Implementations must be safe for concurrent reads; callers serialize
// writes themselves.
type VectorStore interface {
	// Store upserts a vector and its metadata under id. vector's length
	// must equal Dimensions(); a mismatch returns
	// errors.NewDimensionMismatchError.
	Store(ctx context.Context, id string, vector []float32, metadata map[string]interface{}) error
	// Search returns at most limit points ordered by descending cosine
	// similarity. filters is an equality match applied to metadata.
	Search(ctx context.Context, queryVector []float32, limit int, filters map[string]interface{}) ([]ScoredPoint, error)
	Delete(ctx context.Context, id string) error
	DeleteByFilter(ctx context.Context, filters map[string]interface{}) error
	Count(ctx context.Context) (int, error)
	Dimensions() int
}

// MetadataStore indexes Units by identifier, type, and a best-effort
// text search over identifier and source.
type MetadataStore interface {
	Upsert(ctx context.Context, unit *codeunit.Unit) error
	FindByIdentifier(ctx context.Context, identifier string) (*codeunit.Unit, error)
	FindByType(ctx context.Context, t codeunit.Type) ([]*codeunit.Unit, error)
	// Search ranks by substring match position (earlier match wins),
	// ties broken by identifier ascending.
	Search(ctx context.Context, query string, limit int) ([]*codeunit.Unit, error)
	Delete(ctx context.Context, identifier string) error
	Count(ctx context.Context) (int, error)
}

// GraphStore answers dependency-graph queries over indexed units.
type GraphStore interface {
	DependenciesOf(ctx context.Context, identifier string) ([]string, error)
	DependentsOf(ctx context.Context, identifier string) ([]string, error)
	// AffectedBy returns the transitive closure of dependents of identifier.
	AffectedBy(ctx context.Context, identifier string) ([]string, error)
	ByType(ctx context.Context, t codeunit.Type) ([]*codeunit.Unit, error)
	PageRank(ctx context.Context) (map[string]float64, error)
	// Rebuild replaces the graph's adjacency with the edges declared by
	// units; the indexer calls it once at the end of each run.
	Rebuild(ctx context.Context, units []*codeunit.Unit) error
}
