package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"codecortex/pkg/codeunit"
)

// MemoryMetadataStore is the reference in-memory MetadataStore.
type MemoryMetadataStore struct {
	mu    sync.RWMutex
	units map[string]*codeunit.Unit
}

func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{units: make(map[string]*codeunit.Unit)}
}

func (s *MemoryMetadataStore) Upsert(_ context.Context, unit *codeunit.Unit) error {
	if unit.Identifier == "" {
		return fmt.Errorf("unit identifier is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[unit.Identifier] = unit
	return nil
}

func (s *MemoryMetadataStore) FindByIdentifier(_ context.Context, identifier string) (*codeunit.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[identifier]
	if !ok {
		return nil, fmt.Errorf("unit not found: %s", identifier)
	}
	return u, nil
}

func (s *MemoryMetadataStore) FindByType(_ context.Context, t codeunit.Type) ([]*codeunit.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*codeunit.Unit
	for _, u := range s.units {
		if u.Type == t {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out, nil
}

type searchHit struct {
	unit *codeunit.Unit
	pos  int
}

// Search ranks by the earliest substring match position across
// identifier and source code, ties broken by identifier ascending.
func (s *MemoryMetadataStore) Search(_ context.Context, query string, limit int) ([]*codeunit.Unit, error) {
	needle := strings.ToLower(query)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []searchHit
	for _, u := range s.units {
		pos := bestMatchPosition(needle, u.Identifier, u.SourceCode)
		if pos < 0 {
			continue
		}
		hits = append(hits, searchHit{unit: u, pos: pos})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].pos != hits[j].pos {
			return hits[i].pos < hits[j].pos
		}
		return hits[i].unit.Identifier < hits[j].unit.Identifier
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]*codeunit.Unit, len(hits))
	for i, h := range hits {
		out[i] = h.unit
	}
	return out, nil
}

func bestMatchPosition(needle, identifier, source string) int {
	idPos := strings.Index(strings.ToLower(identifier), needle)
	srcPos := strings.Index(strings.ToLower(source), needle)
	switch {
	case idPos < 0 && srcPos < 0:
		return -1
	case idPos < 0:
		return srcPos
	case srcPos < 0:
		return idPos
	case idPos < srcPos:
		return idPos
	default:
		return srcPos
	}
}

func (s *MemoryMetadataStore) Delete(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.units, identifier)
	return nil
}

func (s *MemoryMetadataStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.units), nil
}
