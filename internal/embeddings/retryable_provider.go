package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codecortex/internal/circuitbreaker"
	"codecortex/internal/retry"
)

// RetryableProvider wraps inner with an outer circuit breaker around an
// inner retrier (spec §4.2: "RetryableProvider ... with ... an outer
// breaker"). When the breaker is open it fails fast with CircuitOpen
// before the retrier's operation ever runs, so an open circuit costs one
// rejected call rather than MaxAttempts retried ones.
type RetryableProvider struct {
	inner   Provider
	breaker *circuitbreaker.CircuitBreaker
	retrier *retry.Retrier
}

// NewRetryableProvider wraps inner in retry.DefaultConfig() composed
// with a circuit breaker using breakerConfig (nil selects a default
// tuned for embedding calls).
func NewRetryableProvider(inner Provider, breakerConfig *circuitbreaker.Config) *RetryableProvider {
	if breakerConfig == nil {
		breakerConfig = &circuitbreaker.Config{
			FailureThreshold:      5,
			SuccessThreshold:      2,
			Timeout:               30 * time.Second,
			MaxConcurrentRequests: 8,
		}
	}
	retryConfig := retry.DefaultConfig()
	retryConfig.RetryIf = notCircuitOpen
	return &RetryableProvider{
		inner:   inner,
		breaker: circuitbreaker.New(breakerConfig),
		retrier: retry.New(retryConfig),
	}
}

// notCircuitOpen wraps retry.DefaultRetryIf so a circuit-open error
// never burns a retry attempt even if it reaches the retrier directly
// (e.g. a breaker shared with a caller that doesn't sit outermost).
func notCircuitOpen(err error) bool {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return false
	}
	return retry.DefaultRetryIf(err)
}

func (p *RetryableProvider) Dimensions() int   { return p.inner.Dimensions() }
func (p *RetryableProvider) ModelName() string { return p.inner.ModelName() }

func (p *RetryableProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	var vector []float64
	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		result := p.retrier.Do(ctx, func(ctx context.Context) error {
			var callErr error
			vector, callErr = p.inner.Embed(ctx, text)
			return callErr
		})
		return result.Err
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: embed failed: %w", err)
	}
	return vector, nil
}

func (p *RetryableProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	var vectors [][]float64
	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		result := p.retrier.Do(ctx, func(ctx context.Context) error {
			var callErr error
			vectors, callErr = p.inner.EmbedBatch(ctx, texts)
			return callErr
		})
		return result.Err
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: embed_batch failed: %w", err)
	}
	return vectors, nil
}
