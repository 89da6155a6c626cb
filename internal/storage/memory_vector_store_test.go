package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryVectorStore_DimensionMismatch(t *testing.T) {
	s := NewMemoryVectorStore(3)
	err := s.Store(context.Background(), "a", []float32{1, 2}, nil)
	require.Error(t, err)
}

func TestMemoryVectorStore_SearchOrdersByScoreDescending(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVectorStore(2)
	require.NoError(t, s.Store(ctx, "aligned", []float32{1, 0}, nil))
	require.NoError(t, s.Store(ctx, "orthogonal", []float32{0, 1}, nil))
	require.NoError(t, s.Store(ctx, "opposite", []float32{-1, 0}, nil))

	results, err := s.Search(ctx, []float32{1, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "aligned", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "opposite", results[2].ID)
}

func TestMemoryVectorStore_SearchAppliesFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVectorStore(1)
	require.NoError(t, s.Store(ctx, "a", []float32{1}, map[string]interface{}{"lang": "ruby"}))
	require.NoError(t, s.Store(ctx, "b", []float32{1}, map[string]interface{}{"lang": "go"}))

	results, err := s.Search(ctx, []float32{1}, 10, map[string]interface{}{"lang": "go"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestMemoryVectorStore_DeleteAndCount(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVectorStore(1)
	require.NoError(t, s.Store(ctx, "a", []float32{1}, nil))
	require.NoError(t, s.Store(ctx, "b", []float32{1}, nil))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.Delete(ctx, "a"))
	count, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryVectorStore_DeleteByFilter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVectorStore(1)
	require.NoError(t, s.Store(ctx, "a", []float32{1}, map[string]interface{}{"repo": "x"}))
	require.NoError(t, s.Store(ctx, "b", []float32{1}, map[string]interface{}{"repo": "y"}))

	require.NoError(t, s.DeleteByFilter(ctx, map[string]interface{}{"repo": "x"}))
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
