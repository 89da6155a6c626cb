package indexer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Checkpoint tracks which chunk content hashes have already been
// embedded and stored, so a later index_incremental run (or a resumed
// index_all after a crash) never re-embeds unchanged content.
type Checkpoint struct {
	ProcessedHashes map[string]struct{} `json:"-"`
	Total           int                 `json:"total"`
	LastBatchAt     time.Time           `json:"last_batch_at"`

	// UnitSourceHashes records the source_hash last indexed per unit
	// identifier, so index_incremental can skip units whose source
	// hasn't changed.
	UnitSourceHashes map[string]string `json:"unit_source_hashes"`
}

// checkpointFile is the on-disk JSON shape; ProcessedHashes is stored as
// a sorted slice for deterministic, diffable output.
type checkpointFile struct {
	ProcessedHashes  []string          `json:"processed_hashes"`
	Total            int               `json:"total"`
	LastBatchAt      time.Time         `json:"last_batch_at"`
	UnitSourceHashes map[string]string `json:"unit_source_hashes"`
}

// NewCheckpoint returns an empty checkpoint.
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		ProcessedHashes:  make(map[string]struct{}),
		UnitSourceHashes: make(map[string]string),
	}
}

// LoadCheckpoint reads a checkpoint from path. A missing file returns a
// fresh empty checkpoint, not an error — there is simply nothing to
// resume from yet.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewCheckpoint(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var cf checkpointFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}

	cp := &Checkpoint{
		ProcessedHashes:  make(map[string]struct{}, len(cf.ProcessedHashes)),
		Total:            cf.Total,
		LastBatchAt:      cf.LastBatchAt,
		UnitSourceHashes: cf.UnitSourceHashes,
	}
	if cp.UnitSourceHashes == nil {
		cp.UnitSourceHashes = make(map[string]string)
	}
	for _, h := range cf.ProcessedHashes {
		cp.ProcessedHashes[h] = struct{}{}
	}
	return cp, nil
}

// Has reports whether contentHash has already been embedded and stored.
func (c *Checkpoint) Has(contentHash string) bool {
	_, ok := c.ProcessedHashes[contentHash]
	return ok
}

// Mark records contentHash as processed.
func (c *Checkpoint) Mark(contentHash string) {
	c.ProcessedHashes[contentHash] = struct{}{}
	c.Total = len(c.ProcessedHashes)
}

// MarkUnit records the source_hash last indexed for a unit identifier,
// the value index_incremental compares against to decide whether a
// unit needs reprocessing.
func (c *Checkpoint) MarkUnit(identifier, sourceHash string) {
	c.UnitSourceHashes[identifier] = sourceHash
}

// UnitChanged reports whether identifier's sourceHash differs from (or
// is absent from) the last checkpointed value.
func (c *Checkpoint) UnitChanged(identifier, sourceHash string) bool {
	prev, ok := c.UnitSourceHashes[identifier]
	return !ok || prev != sourceHash
}

// CheckpointStore guards concurrent Save calls and performs the
// write-temp-then-rename atomic write.
type CheckpointStore struct {
	mu   sync.Mutex
	path string
}

// NewCheckpointStore builds a store writing checkpoints to path.
func NewCheckpointStore(path string) *CheckpointStore {
	return &CheckpointStore{path: path}
}

// Load reads the current checkpoint from disk.
func (s *CheckpointStore) Load() (*Checkpoint, error) {
	return LoadCheckpoint(s.path)
}

// Save atomically persists cp: write to a temp file in the same
// directory, then os.Rename over the destination, so a crash mid-write
// never leaves a corrupt checkpoint behind.
func (s *CheckpointStore) Save(cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hashes := make([]string, 0, len(cp.ProcessedHashes))
	for h := range cp.ProcessedHashes {
		hashes = append(hashes, h)
	}

	cf := checkpointFile{
		ProcessedHashes:  hashes,
		Total:            len(hashes),
		LastBatchAt:      time.Now(),
		UnitSourceHashes: cp.UnitSourceHashes,
	}

	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err := os.Rename(tempFile, s.path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	cp.Total = len(hashes)
	cp.LastBatchAt = cf.LastBatchAt
	return nil
}
