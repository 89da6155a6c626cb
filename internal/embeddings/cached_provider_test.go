package embeddings

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider wraps a Provider and counts calls to the inner
// EmbedBatch/Embed, so tests can assert on cache hit behavior.
type countingProvider struct {
	Provider
	calls int64
}

func (p *countingProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	atomic.AddInt64(&p.calls, 1)
	return p.Provider.Embed(ctx, text)
}

func (p *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	atomic.AddInt64(&p.calls, 1)
	return p.Provider.EmbedBatch(ctx, texts)
}

func TestCachedProvider_Embed_HitsCacheOnSecondCall(t *testing.T) {
	inner := &countingProvider{Provider: NewMockProvider(4)}
	cached := NewCachedProvider(inner, 16, time.Hour)

	ctx := context.Background()
	a, err := cached.Embed(ctx, "func Foo() {}")
	require.NoError(t, err)
	b, err := cached.Embed(ctx, "func Foo() {}")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.EqualValues(t, 1, inner.calls)
}

func TestCachedProvider_EmbedBatch_OnlyCallsInnerForMisses(t *testing.T) {
	inner := &countingProvider{Provider: NewMockProvider(4)}
	cached := NewCachedProvider(inner, 16, time.Hour)

	ctx := context.Background()
	_, err := cached.Embed(ctx, "seen")
	require.NoError(t, err)

	results, err := cached.EmbedBatch(ctx, []string{"seen", "new"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.EqualValues(t, 2, inner.calls) // one Embed + one EmbedBatch([new])
}

type flakyEmbedder struct {
	Provider
	failuresLeft int
}

func (p *flakyEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if p.failuresLeft > 0 {
		p.failuresLeft--
		return nil, fmt.Errorf("transient failure")
	}
	return p.Provider.Embed(ctx, text)
}

func TestRetryableProvider_RetriesTransientFailures(t *testing.T) {
	inner := &flakyEmbedder{Provider: NewMockProvider(4), failuresLeft: 2}
	retryable := NewRetryableProvider(inner, nil)

	vector, err := retryable.Embed(context.Background(), "flaky text")
	require.NoError(t, err)
	assert.Len(t, vector, 4)
}
