package resilience

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// StaleLockTimeout is how long a lock may sit unreleased before a new
// holder is permitted to reclaim it.
const StaleLockTimeout = time.Hour

// lockPayload is what a holder writes into the lock file.
type lockPayload struct {
	PID        int       `json:"pid"`
	Name       string    `json:"name"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// PipelineLock is a file-based mutual-exclusion lock for long-running
// operations (indexing, migration) that must not run concurrently
// against the same corpus. Acquisition uses O_EXCL so only one process
// wins the create; a lock older than StaleLockTimeout may be reclaimed
// by a later caller.
type PipelineLock struct {
	path string
	name string
}

// NewPipelineLock builds a lock backed by the file at path.
func NewPipelineLock(path, name string) *PipelineLock {
	return &PipelineLock{path: path, name: name}
}

// Acquire creates the lock file, reclaiming a stale one if present.
// It returns an error if a live holder already owns the lock.
func (l *PipelineLock) Acquire() error {
	if err := l.tryCreate(); err == nil {
		return nil
	} else if !os.IsExist(err) {
		return fmt.Errorf("resilience: acquire lock %s: %w", l.path, err)
	}

	stale, err := l.isStale()
	if err != nil {
		return fmt.Errorf("resilience: inspect lock %s: %w", l.path, err)
	}
	if !stale {
		return fmt.Errorf("resilience: lock %s is held by %s", l.path, l.holderInfo())
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("resilience: remove stale lock %s: %w", l.path, err)
	}
	if err := l.tryCreate(); err != nil {
		return fmt.Errorf("resilience: acquire lock %s after reclaim: %w", l.path, err)
	}
	return nil
}

// Release removes the lock file. It is safe to call even if the lock
// was never acquired.
func (l *PipelineLock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("resilience: release lock %s: %w", l.path, err)
	}
	return nil
}

// WithLock runs fn while holding the lock, releasing it on every exit
// path including a panic in fn.
func (l *PipelineLock) WithLock(fn func() error) (err error) {
	if err := l.Acquire(); err != nil {
		return err
	}
	defer func() {
		if releaseErr := l.Release(); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}()
	return fn()
}

func (l *PipelineLock) tryCreate() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	payload := lockPayload{PID: os.Getpid(), Name: l.name, AcquiredAt: time.Now()}
	return json.NewEncoder(f).Encode(payload)
}

func (l *PipelineLock) isStale() (bool, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}

	var payload lockPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		// An unparseable lock file is treated as stale: a crashed
		// holder may have been killed mid-write.
		return true, nil
	}
	return time.Since(payload.AcquiredAt) > StaleLockTimeout, nil
}

// holderInfo returns a human-readable description of the current
// holder, for diagnostics. Empty when the lock is free.
func (l *PipelineLock) holderInfo() string {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return ""
	}
	var payload lockPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return payload.Name + " pid=" + strconv.Itoa(payload.PID)
}
