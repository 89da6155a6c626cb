package embeddings

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"codecortex/internal/circuitbreaker"
)

// flakyProvider fails its first failUntil calls then succeeds.
type flakyProvider struct {
	calls     int32
	failUntil int32
	dims      int
}

func (p *flakyProvider) Dimensions() int   { return p.dims }
func (p *flakyProvider) ModelName() string { return "flaky" }

func (p *flakyProvider) Embed(_ context.Context, text string) ([]float64, error) {
	n := atomic.AddInt32(&p.calls, 1)
	if n <= p.failUntil {
		return nil, errors.New("provider unavailable")
	}
	return deterministicVector(text, p.dims), nil
}

func (p *flakyProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func scenario4Breaker() *circuitbreaker.Config {
	return &circuitbreaker.Config{
		FailureThreshold:      3,
		SuccessThreshold:      1,
		Timeout:               100 * time.Millisecond,
		MaxConcurrentRequests: 1,
	}
}

func TestRetryableProvider_RetriesTransientFailureWithinAttemptBudget(t *testing.T) {
	inner := &flakyProvider{failUntil: 2, dims: 4}
	p := NewRetryableProvider(inner, scenario4Breaker())

	vec, err := p.Embed(context.Background(), "order total")
	if err != nil {
		t.Fatalf("expected eventual success, got: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("expected 4-dim vector, got %d", len(vec))
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 calls (2 failures + 1 success), got %d", inner.calls)
	}
}

func TestRetryableProvider_CircuitOpenIsNotRetried(t *testing.T) {
	inner := &flakyProvider{failUntil: 1000, dims: 4}
	p := NewRetryableProvider(inner, scenario4Breaker())

	ctx := context.Background()
	// Each Embed exhausts its own 3 retry attempts against the always-failing
	// provider, so it only takes one Embed call per breaker failure count.
	for i := 0; i < 3; i++ {
		if _, err := p.Embed(ctx, "a"); err == nil {
			t.Fatalf("expected failure on call %d", i)
		}
	}

	callsBeforeOpen := atomic.LoadInt32(&inner.calls)

	_, err := p.Embed(ctx, "a")
	if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen once the breaker trips, got: %v", err)
	}

	// The open breaker must reject before the retrier's operation runs at
	// all — no extra calls reach inner for the CircuitOpen-returning call.
	if got := atomic.LoadInt32(&inner.calls); got != callsBeforeOpen {
		t.Fatalf("expected no provider calls while circuit is open, calls went from %d to %d", callsBeforeOpen, got)
	}
}

func TestRetryableProvider_RecoversAfterResetTimeout(t *testing.T) {
	// 9 failing calls covers 3 Embed invocations worth of retry attempts
	// (MaxAttempts=3 each) before the breaker trips; the 10th call, made
	// by the half-open trial after reset_timeout, succeeds.
	inner := &flakyProvider{failUntil: 9, dims: 4}
	p := NewRetryableProvider(inner, scenario4Breaker())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = p.Embed(ctx, "a")
	}
	if _, err := p.Embed(ctx, "a"); !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Fatalf("expected breaker to be open, got: %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	if _, err := p.Embed(ctx, "a"); err != nil {
		t.Fatalf("expected trial call after reset_timeout to succeed, got: %v", err)
	}
}
