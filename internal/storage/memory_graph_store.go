package storage

import (
	"context"
	"sync"

	"codecortex/pkg/codeunit"
)

// MemoryGraphStore is the reference in-memory GraphStore. It wraps a
// codeunit.DependencyGraph rebuilt wholesale at the end of each
// indexer run.
type MemoryGraphStore struct {
	mu    sync.RWMutex
	graph *codeunit.DependencyGraph
}

func NewMemoryGraphStore() *MemoryGraphStore {
	return &MemoryGraphStore{graph: codeunit.NewDependencyGraph(nil)}
}

func (s *MemoryGraphStore) Rebuild(_ context.Context, units []*codeunit.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = codeunit.NewDependencyGraph(units)
	return nil
}

func (s *MemoryGraphStore) DependenciesOf(_ context.Context, identifier string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Dependencies(identifier), nil
}

func (s *MemoryGraphStore) DependentsOf(_ context.Context, identifier string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Dependents(identifier), nil
}

func (s *MemoryGraphStore) AffectedBy(_ context.Context, identifier string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reverseClosure(identifier), nil
}

// reverseClosure walks Dependents edges breadth-first, the mirror of
// codeunit.DependencyGraph.TransitiveClosure which only walks forward
// edges.
func (s *MemoryGraphStore) reverseClosure(identifier string) []string {
	visited := map[string]bool{identifier: true}
	queue := []string{identifier}
	var closure []string

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range s.graph.Dependents(id) {
			if visited[next] {
				continue
			}
			visited[next] = true
			closure = append(closure, next)
			queue = append(queue, next)
		}
	}
	return closure
}

func (s *MemoryGraphStore) ByType(_ context.Context, t codeunit.Type) ([]*codeunit.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.UnitsOfType(t), nil
}

func (s *MemoryGraphStore) PageRank(_ context.Context) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Importance(), nil
}
