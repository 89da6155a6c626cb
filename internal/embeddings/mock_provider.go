package embeddings

import (
	"context"
	"fmt"
)

// MockProvider is a deterministic Provider for tests: it derives a
// vector from the byte values of the text so identical input always
// produces identical output without a network call.
type MockProvider struct {
	dims  int
	model string
}

// NewMockProvider builds a MockProvider producing vectors of dims
// dimensions.
func NewMockProvider(dims int) *MockProvider {
	return &MockProvider{dims: dims, model: "mock-embedding"}
}

func (p *MockProvider) Dimensions() int   { return p.dims }
func (p *MockProvider) ModelName() string { return p.model }

func (p *MockProvider) Embed(_ context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("embeddings: text cannot be empty")
	}
	return deterministicVector(text, p.dims), nil
}

func (p *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embeddings: text at index %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func deterministicVector(text string, dims int) []float64 {
	vector := make([]float64, dims)
	for i := range vector {
		b := text[i%len(text)]
		vector[i] = float64(int(b)+i) / 255.0
	}
	return vector
}
