// Package search selects and executes the retrieval strategy for a
// classified query, the way the teacher's retrieve.Handler dispatches
// to a SearchStore behind a single Search entry point.
package search

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"codecortex/internal/embeddings"
	"codecortex/internal/storage"
	"codecortex/pkg/retrieval"
)

// Strategy names a search strategy.
type Strategy string

const (
	StrategyVector  Strategy = "vector"
	StrategyKeyword Strategy = "keyword"
	StrategyGraph   Strategy = "graph"
	StrategyDirect  Strategy = "direct"
	StrategyHybrid  Strategy = "hybrid"
)

// sourcePriority ranks Candidate.Source for de-duplication tie-breaks:
// vector > graph > keyword (spec's Open Question (b), made normative).
var sourcePriority = map[retrieval.Source]int{
	retrieval.SourceVector:  3,
	retrieval.SourceDirect:  3,
	retrieval.SourceGraph:   2,
	retrieval.SourceKeyword: 1,
}

// DefaultLimit is the candidate count requested when the caller does
// not specify one.
const DefaultLimit = 20

// graphHops is how many hops the graph strategy expands from seed
// identifiers.
const graphHops = 2

// componentError tags an error with the store it originated from, so a
// caller further up the stack (the Retriever's degradation logic) can
// decide which fallback tier applies without string-matching messages.
type componentError struct {
	component string
	err       error
}

func (e *componentError) Error() string { return e.component + ": " + e.err.Error() }
func (e *componentError) Unwrap() error { return e.err }

func wrapComponent(component string, err error) error {
	if err == nil {
		return nil
	}
	return &componentError{component: component, err: err}
}

// ComponentOf reports the originating store name ("vector", "metadata",
// "graph") an Execute/KeywordAndGraph/GraphOnly/DirectOnly error came
// from, if it was tagged as one.
func ComponentOf(err error) (string, bool) {
	ce, ok := err.(*componentError)
	if !ok {
		return "", false
	}
	return ce.component, true
}

// Executor runs the search strategies against the pluggable stores.
type Executor struct {
	embedder embeddings.Provider
	vectors  storage.VectorStore
	metadata storage.MetadataStore
	graph    storage.GraphStore
}

// New builds an Executor from its collaborators.
func New(embedder embeddings.Provider, vectors storage.VectorStore, metadata storage.MetadataStore, graph storage.GraphStore) *Executor {
	return &Executor{embedder: embedder, vectors: vectors, metadata: metadata, graph: graph}
}

// SelectStrategy applies spec's strategy selection table, first match
// wins: {intent=trace}->hybrid; {scope=specific and target_type!=none}->direct;
// {target_type!=none}->hybrid; {framework_context}->keyword; default vector.
func SelectStrategy(c retrieval.Classification) Strategy {
	switch {
	case c.Intent == retrieval.IntentTrace:
		return StrategyHybrid
	case c.Scope == retrieval.ScopeSpecific && c.TargetType != retrieval.NoTargetType:
		return StrategyDirect
	case c.TargetType != retrieval.NoTargetType:
		return StrategyHybrid
	case c.FrameworkContext:
		return StrategyKeyword
	default:
		return StrategyVector
	}
}

// Execute runs the strategy selected for classification and returns
// its de-duplicated candidate list.
func (e *Executor) Execute(ctx context.Context, classification retrieval.Classification, limit int) (*retrieval.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	strategy := SelectStrategy(classification)

	var candidates []retrieval.Candidate
	var err error

	switch strategy {
	case StrategyVector:
		candidates, err = e.vectorSearch(ctx, classification, limit)
	case StrategyKeyword:
		candidates, err = e.keywordSearch(ctx, classification, limit)
	case StrategyGraph:
		candidates, err = e.graphSearch(ctx, classification, limit)
	case StrategyDirect:
		candidates, err = e.directSearch(ctx, classification, limit)
	case StrategyHybrid:
		candidates, err = e.hybridSearch(ctx, classification, limit)
	}
	if err != nil {
		return nil, err
	}

	return &retrieval.SearchResult{
		Candidates: dedupe(candidates),
		Strategy:   string(strategy),
		Query:      classification.Query,
	}, nil
}

func (e *Executor) vectorSearch(ctx context.Context, classification retrieval.Classification, limit int) ([]retrieval.Candidate, error) {
	queryVector, err := e.embedder.Embed(ctx, classification.Query)
	if err != nil {
		return nil, wrapComponent("vector", err)
	}
	vec32 := make([]float32, len(queryVector))
	for i, v := range queryVector {
		vec32[i] = float32(v)
	}

	filters := map[string]interface{}{}
	if classification.TargetType != retrieval.NoTargetType {
		filters["type"] = classification.TargetType
	}

	hits, err := e.vectors.Search(ctx, vec32, 2*limit, filters)
	if err != nil {
		return nil, wrapComponent("vector", err)
	}

	candidates := make([]retrieval.Candidate, 0, len(hits))
	for _, hit := range hits {
		candidates = append(candidates, retrieval.Candidate{
			Identifier: parentOf(hit.ID, hit.Metadata),
			Score:      hit.Score,
			Source:     retrieval.SourceVector,
			Metadata:   hit.Metadata,
		})
	}
	return candidates, nil
}

// parentOf recovers the owning unit identifier from a vector hit: its
// metadata carries "parent" (set by the indexer), falling back to the
// point ID itself for hits stored without that convention.
func parentOf(id string, metadata map[string]interface{}) string {
	if metadata != nil {
		if parent, ok := metadata["parent"].(string); ok && parent != "" {
			return parent
		}
	}
	return id
}

func (e *Executor) keywordSearch(ctx context.Context, classification retrieval.Classification, limit int) ([]retrieval.Candidate, error) {
	scores := make(map[string]float64)
	meta := make(map[string]map[string]interface{})

	for _, kw := range classification.Keywords {
		units, err := e.metadata.Search(ctx, kw, limit)
		if err != nil {
			return nil, wrapComponent("metadata", err)
		}
		for rank, u := range units {
			scores[u.Identifier] += 1.0 / float64(rank+1)
			meta[u.Identifier] = map[string]interface{}{"type": string(u.Type), "file_path": u.FilePath}
		}
	}

	candidates := make([]retrieval.Candidate, 0, len(scores))
	for id, score := range scores {
		candidates = append(candidates, retrieval.Candidate{
			Identifier: id,
			Score:      score,
			Source:     retrieval.SourceKeyword,
			Metadata:   meta[id],
		})
	}
	return candidates, nil
}

func (e *Executor) graphSearch(ctx context.Context, classification retrieval.Classification, limit int) ([]retrieval.Candidate, error) {
	seeds, err := e.seedIdentifiers(ctx, classification)
	if err != nil {
		return nil, err
	}
	return e.graphExpand(ctx, seeds, limit, true)
}

// GraphOnly expands the dependency graph from classification.Keywords
// used directly as literal seed identifiers, skipping seedIdentifiers'
// metadata.Search lookup and per-candidate metadata enrichment
// entirely. It is the Retriever's degradation-tier-2 fallback, used
// when the metadata store itself is unavailable.
func (e *Executor) GraphOnly(ctx context.Context, classification retrieval.Classification, limit int) ([]retrieval.Candidate, error) {
	return e.graphExpand(ctx, classification.Keywords, limit, false)
}

// graphExpand runs the shared two-hop BFS from seeds. When enrich is
// true, each resulting candidate's type/file_path/updated_at are
// looked up from the metadata store; when false, no metadata call is
// made and candidates carry score/source only.
func (e *Executor) graphExpand(ctx context.Context, seeds []string, limit int, enrich bool) ([]retrieval.Candidate, error) {
	distances := make(map[string]int)
	frontier := seeds
	for _, s := range seeds {
		distances[s] = 0
	}

	for hop := 1; hop <= graphHops; hop++ {
		var next []string
		for _, id := range frontier {
			deps, err := e.graph.DependenciesOf(ctx, id)
			if err != nil {
				return nil, wrapComponent("graph", err)
			}
			dependents, err := e.graph.DependentsOf(ctx, id)
			if err != nil {
				return nil, wrapComponent("graph", err)
			}
			for _, n := range append(deps, dependents...) {
				if _, seen := distances[n]; seen {
					continue
				}
				distances[n] = hop
				next = append(next, n)
			}
		}
		frontier = next
	}

	candidates := make([]retrieval.Candidate, 0, len(distances))
	for id, dist := range distances {
		if dist == 0 {
			continue
		}
		candidate := retrieval.Candidate{
			Identifier: id,
			Score:      1.0 / float64(1+dist),
			Source:     retrieval.SourceGraph,
		}
		if enrich {
			if u, err := e.metadata.FindByIdentifier(ctx, id); err == nil && u != nil {
				meta := map[string]interface{}{"type": string(u.Type), "file_path": u.FilePath}
				if updatedAt, ok := u.Metadata["updated_at"]; ok {
					meta["updated_at"] = updatedAt
				}
				candidate.Metadata = meta
			}
		}
		candidates = append(candidates, candidate)
	}
	if len(candidates) > limit {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// seedIdentifiers finds identifiers whose name literally matches one of
// classification's keywords, the seeds the graph strategy expands from.
func (e *Executor) seedIdentifiers(ctx context.Context, classification retrieval.Classification) ([]string, error) {
	seen := map[string]struct{}{}
	var seeds []string

	for _, kw := range classification.Keywords {
		units, err := e.metadata.Search(ctx, kw, DefaultLimit)
		if err != nil {
			return nil, wrapComponent("metadata", err)
		}
		for _, u := range units {
			if !strings.Contains(strings.ToLower(u.Identifier), kw) {
				continue
			}
			if _, ok := seen[u.Identifier]; ok {
				continue
			}
			seen[u.Identifier] = struct{}{}
			seeds = append(seeds, u.Identifier)
		}
	}
	return seeds, nil
}

// directSearch looks up known identifiers case-insensitively and
// namespace-tolerantly: a keyword matches if it equals an identifier's
// final namespace segment, ignoring case.
func (e *Executor) directSearch(ctx context.Context, classification retrieval.Classification, limit int) ([]retrieval.Candidate, error) {
	var candidates []retrieval.Candidate
	seen := map[string]struct{}{}

	tryIdentifier := func(token string) error {
		if u, err := e.metadata.FindByIdentifier(ctx, token); err == nil && u != nil {
			if _, ok := seen[u.Identifier]; !ok {
				seen[u.Identifier] = struct{}{}
				candidates = append(candidates, retrieval.Candidate{
					Identifier: u.Identifier,
					Score:      1.0,
					Source:     retrieval.SourceDirect,
					Metadata:   map[string]interface{}{"type": string(u.Type)},
				})
			}
			return nil
		}

		units, err := e.metadata.Search(ctx, token, limit)
		if err != nil {
			return wrapComponent("metadata", err)
		}
		for _, u := range units {
			if !namespaceTolerantMatch(u.Identifier, token) {
				continue
			}
			if _, ok := seen[u.Identifier]; ok {
				continue
			}
			seen[u.Identifier] = struct{}{}
			candidates = append(candidates, retrieval.Candidate{
				Identifier: u.Identifier,
				Score:      1.0,
				Source:     retrieval.SourceDirect,
				Metadata:   map[string]interface{}{"type": string(u.Type)},
			})
		}
		return nil
	}

	for _, kw := range classification.Keywords {
		if err := tryIdentifier(kw); err != nil {
			return nil, err
		}
	}
	return candidates, nil
}

// identifierSeparators splits an identifier like
// "app/models/order.rb:Order" or "Billing::Order" into namespace
// segments, so a bare class/service name can match regardless of the
// file path or module nesting it's qualified with.
func identifierSeparators(r rune) bool {
	switch r {
	case '/', ':', '.':
		return true
	}
	return false
}

// namespaceTolerantMatch reports whether identifier's final namespace
// segment equals token, case-insensitively.
func namespaceTolerantMatch(identifier, token string) bool {
	lowered := strings.ToLower(identifier)
	token = strings.ToLower(token)
	if lowered == token {
		return true
	}
	segments := strings.FieldsFunc(lowered, identifierSeparators)
	if len(segments) == 0 {
		return false
	}
	return segments[len(segments)-1] == token
}

// KeywordAndGraph runs the keyword and graph strategies concurrently
// and merges their de-duplicated candidates. It is the Retriever's
// degradation-tier-1 fallback, used when the vector store or embedding
// provider is unavailable.
func (e *Executor) KeywordAndGraph(ctx context.Context, classification retrieval.Classification, limit int) ([]retrieval.Candidate, error) {
	var keywordCandidates, graphCandidates []retrieval.Candidate

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		keywordCandidates, err = e.keywordSearch(gctx, classification, limit)
		return err
	})
	g.Go(func() error {
		var err error
		graphCandidates, err = e.graphSearch(gctx, classification, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([]retrieval.Candidate, 0, len(keywordCandidates)+len(graphCandidates))
	all = append(all, graphCandidates...)
	all = append(all, keywordCandidates...)
	return dedupe(all), nil
}

// DirectOnly runs the direct identifier lookup strategy alone. It is
// the Retriever's degradation-tier-3 fallback, used when the graph
// store is unavailable but metadata lookups still work.
func (e *Executor) DirectOnly(ctx context.Context, classification retrieval.Classification, limit int) ([]retrieval.Candidate, error) {
	candidates, err := e.directSearch(ctx, classification, limit)
	if err != nil {
		return nil, err
	}
	return dedupe(candidates), nil
}

func (e *Executor) hybridSearch(ctx context.Context, classification retrieval.Classification, limit int) ([]retrieval.Candidate, error) {
	var vectorCandidates, keywordCandidates, graphCandidates []retrieval.Candidate

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vectorCandidates, err = e.vectorSearch(gctx, classification, limit)
		return err
	})
	g.Go(func() error {
		var err error
		keywordCandidates, err = e.keywordSearch(gctx, classification, limit)
		return err
	})
	g.Go(func() error {
		var err error
		graphCandidates, err = e.graphSearch(gctx, classification, limit)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([]retrieval.Candidate, 0, len(vectorCandidates)+len(keywordCandidates)+len(graphCandidates))
	all = append(all, vectorCandidates...)
	all = append(all, graphCandidates...)
	all = append(all, keywordCandidates...)
	return all, nil
}

// dedupe keeps the highest-scored occurrence of each identifier,
// breaking score ties by source priority (vector > graph > keyword).
func dedupe(candidates []retrieval.Candidate) []retrieval.Candidate {
	best := make(map[string]retrieval.Candidate, len(candidates))

	for _, c := range candidates {
		existing, ok := best[c.Identifier]
		if !ok {
			best[c.Identifier] = c
			continue
		}
		if c.Score > existing.Score {
			best[c.Identifier] = c
			continue
		}
		if c.Score == existing.Score && sourcePriority[c.Source] > sourcePriority[existing.Source] {
			best[c.Identifier] = c
		}
	}

	out := make([]retrieval.Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Identifier < out[j].Identifier
	})
	return out
}
