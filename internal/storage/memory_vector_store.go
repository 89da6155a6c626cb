package storage

import (
	"context"
	"math"
	"sort"
	"sync"

	cerrors "codecortex/internal/errors"
)

// MemoryVectorStore is the reference in-memory VectorStore: a
// brute-force cosine scan guarded by a RWMutex, safe for concurrent
// reads.
type MemoryVectorStore struct {
	mu         sync.RWMutex
	dimensions int
	vectors    map[string][]float32
	metadata   map[string]map[string]interface{}
}

// NewMemoryVectorStore builds an empty store that accepts vectors of
// exactly dimensions length.
func NewMemoryVectorStore(dimensions int) *MemoryVectorStore {
	return &MemoryVectorStore{
		dimensions: dimensions,
		vectors:    make(map[string][]float32),
		metadata:   make(map[string]map[string]interface{}),
	}
}

func (s *MemoryVectorStore) Dimensions() int {
	return s.dimensions
}

func (s *MemoryVectorStore) Store(_ context.Context, id string, vector []float32, metadata map[string]interface{}) error {
	if len(vector) != s.dimensions {
		return cerrors.NewDimensionMismatchError(len(vector), s.dimensions)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]float32, len(vector))
	copy(stored, vector)
	s.vectors[id] = stored
	s.metadata[id] = metadata
	return nil
}

func (s *MemoryVectorStore) Search(_ context.Context, queryVector []float32, limit int, filters map[string]interface{}) ([]ScoredPoint, error) {
	if len(queryVector) != s.dimensions {
		return nil, cerrors.NewDimensionMismatchError(len(queryVector), s.dimensions)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]ScoredPoint, 0, len(s.vectors))
	for id, vec := range s.vectors {
		if !matchesFilters(s.metadata[id], filters) {
			continue
		}
		matches = append(matches, ScoredPoint{
			ID:       id,
			Score:    cosineSimilarity(queryVector, vec),
			Metadata: s.metadata[id],
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *MemoryVectorStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vectors, id)
	delete(s.metadata, id)
	return nil
}

func (s *MemoryVectorStore) DeleteByFilter(_ context.Context, filters map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, meta := range s.metadata {
		if matchesFilters(meta, filters) {
			delete(s.vectors, id)
			delete(s.metadata, id)
		}
	}
	return nil
}

func (s *MemoryVectorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

func matchesFilters(metadata map[string]interface{}, filters map[string]interface{}) bool {
	for k, want := range filters {
		got, ok := metadata[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
