package codeunit

import "sort"

const (
	pageRankDamping     = 0.85
	pageRankIterations  = 50
)

// DependencyGraph indexes a set of Units by their declared Dependency
// edges, forward and reverse, and derives transitive closure and
// importance scores from that adjacency. Edges may dangle — a Target
// that does not resolve to a known Unit is kept in the adjacency but
// contributes no node of its own.
type DependencyGraph struct {
	units   map[string]*Unit
	forward map[string][]string
	reverse map[string][]string
}

// NewDependencyGraph builds a graph from units, indexing every
// declared Dependency as a forward edge and its mirror as a reverse
// edge.
func NewDependencyGraph(units []*Unit) *DependencyGraph {
	g := &DependencyGraph{
		units:   make(map[string]*Unit, len(units)),
		forward: make(map[string][]string),
		reverse: make(map[string][]string),
	}
	for _, u := range units {
		g.units[u.Identifier] = u
	}
	for _, u := range units {
		for _, dep := range u.Dependencies {
			g.forward[u.Identifier] = append(g.forward[u.Identifier], dep.Target)
			g.reverse[dep.Target] = append(g.reverse[dep.Target], u.Identifier)
		}
	}
	return g
}

// Unit looks up a node by identifier.
func (g *DependencyGraph) Unit(identifier string) (*Unit, bool) {
	u, ok := g.units[identifier]
	return u, ok
}

// UnitsOfType returns every known unit carrying the given type tag,
// sorted by identifier for deterministic output.
func (g *DependencyGraph) UnitsOfType(t Type) []*Unit {
	var out []*Unit
	for _, u := range g.units {
		if u.Type == t {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

// Dependents returns the identifiers that declare a direct edge to
// identifier.
func (g *DependencyGraph) Dependents(identifier string) []string {
	return append([]string(nil), g.reverse[identifier]...)
}

// Dependencies returns the identifiers identifier directly depends on.
func (g *DependencyGraph) Dependencies(identifier string) []string {
	return append([]string(nil), g.forward[identifier]...)
}

// TransitiveClosure performs a breadth-first walk of forward edges from
// identifier up to maxDepth hops (maxDepth <= 0 means unbounded),
// returning the reachable identifiers in discovery order. A visited
// set guards against cycles, so cyclic graphs terminate.
func (g *DependencyGraph) TransitiveClosure(identifier string, maxDepth int) []string {
	type frontierNode struct {
		id    string
		depth int
	}

	visited := map[string]bool{identifier: true}
	queue := []frontierNode{{identifier, 0}}
	var closure []string

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if maxDepth > 0 && node.depth >= maxDepth {
			continue
		}
		for _, next := range g.forward[node.id] {
			if visited[next] {
				continue
			}
			visited[next] = true
			closure = append(closure, next)
			queue = append(queue, frontierNode{next, node.depth + 1})
		}
	}
	return closure
}

// Importance computes a PageRank-style score for every known unit:
// fixed 50 iterations, damping 0.85, uniform teleport over all nodes.
// A unit with no outgoing edges spreads its score evenly over all
// nodes each iteration. Dangling targets (edges to identifiers with no Unit) are excluded
// from the node set but still counted as out-degree, so their weight
// is not redistributed — it is simply lost, matching a plain power
// iteration over the subgraph of known units.
func (g *DependencyGraph) Importance() map[string]float64 {
	n := len(g.units)
	if n == 0 {
		return map[string]float64{}
	}

	ids := make([]string, 0, n)
	for id := range g.units {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	scores := make(map[string]float64, n)
	for _, id := range ids {
		scores[id] = 1.0 / float64(n)
	}

	outDegree := make(map[string]int, n)
	for _, id := range ids {
		outDegree[id] = len(g.forward[id])
	}

	teleport := (1 - pageRankDamping) / float64(n)

	for iter := 0; iter < pageRankIterations; iter++ {
		sink := 0.0
		for _, id := range ids {
			if outDegree[id] == 0 {
				sink += scores[id]
			}
		}
		base := teleport + pageRankDamping*sink/float64(n)
		next := make(map[string]float64, n)
		for _, id := range ids {
			next[id] = base
		}
		for _, id := range ids {
			out := outDegree[id]
			if out == 0 {
				continue
			}
			share := pageRankDamping * scores[id] / float64(out)
			for _, target := range g.forward[id] {
				if _, known := g.units[target]; !known {
					continue
				}
				next[target] += share
			}
		}
		scores = next
	}
	return scores
}
