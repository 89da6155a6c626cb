package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProvider_Deterministic(t *testing.T) {
	p := NewMockProvider(8)
	ctx := context.Background()

	a, err := p.Embed(ctx, "class User < ApplicationRecord")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "class User < ApplicationRecord")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 8)
}

func TestMockProvider_RejectsEmptyText(t *testing.T) {
	p := NewMockProvider(8)
	_, err := p.Embed(context.Background(), "")
	assert.Error(t, err)
}

func TestMockProvider_EmbedBatch_PreservesOrder(t *testing.T) {
	p := NewMockProvider(4)
	ctx := context.Background()

	texts := []string{"alpha", "beta", "gamma"}
	batch, err := p.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := p.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}
