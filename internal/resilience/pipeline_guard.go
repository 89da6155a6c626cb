package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// cooldownKeyPrefix namespaces PipelineGuard keys in the shared Redis
// keyspace, the way the teacher's ratelimit package prefixes its
// sliding-window keys.
const cooldownKeyPrefix = "codecortex:pipeline-guard:"

// PipelineGuard rate-limits a named operation (e.g. "index_all",
// "rebuild_graph") to at most once per cooldown, backed by Redis when
// available so the limit is shared across processes, and falling back
// to an in-memory map otherwise.
type PipelineGuard struct {
	redis *redis.Client

	mu       sync.Mutex
	lastRun  map[string]time.Time
	cooldown map[string]time.Duration
}

// NewPipelineGuard builds a guard. client may be nil, in which case
// every operation is tracked in-memory only.
func NewPipelineGuard(client *redis.Client) *PipelineGuard {
	return &PipelineGuard{
		redis:    client,
		lastRun:  make(map[string]time.Time),
		cooldown: make(map[string]time.Duration),
	}
}

// SetCooldown configures the minimum interval between runs of op.
func (g *PipelineGuard) SetCooldown(op string, cooldown time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cooldown[op] = cooldown
}

// Allow reports whether op may run now, given its configured cooldown.
// It does not itself record a run; call RecordRun after op succeeds.
func (g *PipelineGuard) Allow(ctx context.Context, op string) (bool, error) {
	cooldown := g.cooldownFor(op)
	if cooldown <= 0 {
		return true, nil
	}

	last, err := g.lastRunAt(ctx, op)
	if err != nil {
		return false, err
	}
	if last.IsZero() {
		return true, nil
	}
	return time.Since(last) >= cooldown, nil
}

// RecordRun marks op as having just run, starting its cooldown.
func (g *PipelineGuard) RecordRun(ctx context.Context, op string) error {
	now := time.Now()

	if g.redis != nil {
		key := cooldownKeyPrefix + op
		cooldown := g.cooldownFor(op)
		if cooldown <= 0 {
			cooldown = time.Hour
		}
		if err := g.redis.Set(ctx, key, now.Format(time.RFC3339Nano), cooldown).Err(); err != nil {
			return fmt.Errorf("resilience: record pipeline guard run for %q: %w", op, err)
		}
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastRun[op] = now
	return nil
}

func (g *PipelineGuard) cooldownFor(op string) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cooldown[op]
}

func (g *PipelineGuard) lastRunAt(ctx context.Context, op string) (time.Time, error) {
	if g.redis != nil {
		key := cooldownKeyPrefix + op
		val, err := g.redis.Get(ctx, key).Result()
		if err == redis.Nil {
			return time.Time{}, nil
		}
		if err != nil {
			return time.Time{}, fmt.Errorf("resilience: read pipeline guard state for %q: %w", op, err)
		}
		t, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return time.Time{}, fmt.Errorf("resilience: parse pipeline guard state for %q: %w", op, err)
		}
		return t, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRun[op], nil
}
