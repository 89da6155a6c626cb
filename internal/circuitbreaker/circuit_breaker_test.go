package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var errProviderDown = errors.New("embedding provider unavailable")

// scenario4Config mirrors spec §8 scenario 4: threshold=3, reset_timeout=100ms.
func scenario4Config() *Config {
	return &Config{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          100 * time.Millisecond,
	}
}

func TestCircuitBreaker_TripsAfterThresholdFailures(t *testing.T) {
	cb := New(scenario4Config())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := cb.Execute(ctx, func(context.Context) error { return errProviderDown })
		if !errors.Is(err, errProviderDown) {
			t.Fatalf("call %d: expected provider error, got %v", i+1, err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("expected breaker open after 3 consecutive failures, got %v", cb.GetState())
	}

	// The fourth call is rejected without reaching the provider.
	var reached bool
	err := cb.Execute(ctx, func(context.Context) error { reached = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected CircuitOpen on the fourth call, got %v", err)
	}
	if reached {
		t.Fatal("provider function should not run while the circuit is open")
	}
}

func TestCircuitBreaker_AdmitsTrialCallAfterResetTimeout(t *testing.T) {
	cb := New(scenario4Config())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func(context.Context) error { return errProviderDown })
	}
	if cb.GetState() != StateOpen {
		t.Fatal("expected breaker to be open")
	}

	time.Sleep(120 * time.Millisecond)

	err := cb.Execute(ctx, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("expected the post-reset_timeout trial call to succeed, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("expected breaker closed after trial success, got %v", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New(scenario4Config())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func(context.Context) error { return errProviderDown })
	}
	time.Sleep(120 * time.Millisecond)

	err := cb.Execute(ctx, func(context.Context) error { return errProviderDown })
	if !errors.Is(err, errProviderDown) {
		t.Fatalf("expected the trial call's own error surfaced, got %v", err)
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("expected breaker to reopen on half-open failure, got %v", cb.GetState())
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := New(scenario4Config())
	ctx := context.Background()

	_ = cb.Execute(ctx, func(context.Context) error { return errProviderDown })
	_ = cb.Execute(ctx, func(context.Context) error { return errProviderDown })
	_ = cb.Execute(ctx, func(context.Context) error { return nil }) // resets the streak

	_ = cb.Execute(ctx, func(context.Context) error { return errProviderDown })
	_ = cb.Execute(ctx, func(context.Context) error { return errProviderDown })

	if cb.GetState() != StateClosed {
		t.Fatalf("two failures after a reset should not trip threshold=3, got %v", cb.GetState())
	}
}

func TestCircuitBreaker_Fallback(t *testing.T) {
	cb := New(&Config{FailureThreshold: 1, Timeout: time.Second})
	ctx := context.Background()

	_ = cb.Execute(ctx, func(context.Context) error { return errProviderDown })
	if cb.GetState() != StateOpen {
		t.Fatalf("expected breaker open, got %v", cb.GetState())
	}

	var fallbackSawCircuitOpen bool
	err := cb.ExecuteWithFallback(ctx,
		func(context.Context) error {
			t.Fatal("primary function must not run while the circuit is open")
			return nil
		},
		func(_ context.Context, originalErr error) error {
			fallbackSawCircuitOpen = errors.Is(originalErr, ErrCircuitOpen)
			return nil
		},
	)
	if err != nil {
		t.Fatalf("expected fallback to absorb the error, got %v", err)
	}
	if !fallbackSawCircuitOpen {
		t.Fatal("expected fallback to observe ErrCircuitOpen")
	}
}

func TestCircuitBreaker_MaxConcurrentRequestsInHalfOpen(t *testing.T) {
	cb := New(&Config{
		FailureThreshold:      3,
		SuccessThreshold:      3,
		Timeout:               50 * time.Millisecond,
		MaxConcurrentRequests: 2,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func(context.Context) error { return errProviderDown })
	}
	time.Sleep(80 * time.Millisecond)

	var wg sync.WaitGroup
	var successes, rejections int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := cb.Execute(ctx, func(context.Context) error {
				time.Sleep(20 * time.Millisecond)
				return nil
			})
			switch {
			case err == nil:
				atomic.AddInt32(&successes, 1)
			case errors.Is(err, ErrTooManyConcurrentRequests):
				atomic.AddInt32(&rejections, 1)
			}
		}()
	}
	wg.Wait()

	if successes+rejections != 5 {
		t.Fatalf("expected all 5 calls accounted for, got %d successes + %d rejections", successes, rejections)
	}
	if rejections == 0 {
		t.Fatal("expected MaxConcurrentRequests=2 to reject some of the 5 concurrent half-open calls")
	}
}

func TestCircuitBreaker_StatsTrackFailureRate(t *testing.T) {
	cb := New(&Config{FailureThreshold: 10})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func(context.Context) error { return nil })
	}
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func(context.Context) error { return errProviderDown })
	}

	stats := cb.GetStats()
	if stats.TotalRequests != 5 || stats.TotalSuccesses != 3 || stats.TotalFailures != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.FailureRate != 0.4 {
		t.Fatalf("expected failure rate 0.4, got %f", stats.FailureRate)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := New(&Config{FailureThreshold: 1})
	ctx := context.Background()

	_ = cb.Execute(ctx, func(context.Context) error { return errProviderDown })
	if cb.GetState() != StateOpen {
		t.Fatal("expected breaker open")
	}

	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Fatal("expected breaker closed after Reset")
	}
	if err := cb.Execute(ctx, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("expected a clean call to succeed after Reset, got %v", err)
	}
}
