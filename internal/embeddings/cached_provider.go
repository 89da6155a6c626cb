package embeddings

import (
	"context"
	"time"
)

// CachedProvider wraps a Provider with an LRU+TTL cache keyed by
// content hash, so identical content reuses embeddings across runs
// (spec's "Lifecycle" invariant).
type CachedProvider struct {
	inner Provider
	cache *EmbeddingCache
}

// NewCachedProvider wraps inner with a cache of the given size and TTL.
func NewCachedProvider(inner Provider, cacheSize int, cacheTTL time.Duration) *CachedProvider {
	return &CachedProvider{inner: inner, cache: NewEmbeddingCache(cacheSize, cacheTTL)}
}

func (p *CachedProvider) Dimensions() int   { return p.inner.Dimensions() }
func (p *CachedProvider) ModelName() string { return p.inner.ModelName() }

func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if cached, found := p.cache.Get(text); found {
		return cached, nil
	}
	vector, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	p.cache.Set(text, vector)
	return vector, nil
}

func (p *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	results := make([][]float64, len(texts))
	var missTexts []string
	var missIndices []int
	for i, text := range texts {
		if cached, found := p.cache.Get(text); found {
			results[i] = cached
			continue
		}
		missTexts = append(missTexts, text)
		missIndices = append(missIndices, i)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	fresh, err := p.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for i, vector := range fresh {
		idx := missIndices[i]
		results[idx] = vector
		p.cache.Set(missTexts[i], vector)
	}
	return results, nil
}
