// Package retriever orchestrates the classifier, search executor,
// ranker, assembler, and formatting adapters into the single public
// retrieve operation, the way the teacher's retrieve.Handler sits atop
// its own store/ranker/formatter collaborators. It never raises a
// pipeline failure to its caller: store and embedding failures degrade
// the result through a sequence of fallback tiers instead.
package retriever

import (
	"context"
	"strconv"
	"strings"
	"time"

	"codecortex/internal/assembler"
	"codecortex/internal/classifier"
	"codecortex/internal/formatting"
	"codecortex/internal/logging"
	"codecortex/internal/ranker"
	"codecortex/internal/search"
	"codecortex/internal/storage"
	"codecortex/pkg/codeunit"
	"codecortex/pkg/retrieval"
)

// DefaultBudget is the token budget applied when the caller requests 0.
const DefaultBudget = 8000

// structuralTypes lists the unit types counted into the structural
// overview, in the order they are reported.
var structuralTypes = []codeunit.Type{
	codeunit.TypeModel,
	codeunit.TypeController,
	codeunit.TypeService,
	codeunit.TypeJob,
	codeunit.TypeMailer,
}

// Retriever is the Retriever component (C12).
type Retriever struct {
	executor  *search.Executor
	ranker    *ranker.Ranker
	assembler *assembler.Assembler
	graph     storage.GraphStore
	metadata  storage.MetadataStore
	formatter formatting.Name
	logger    logging.Logger
}

// New builds a Retriever. formatterName may be empty, which selects
// the spec's default of no formatting (raw assembled context).
func New(executor *search.Executor, rk *ranker.Ranker, asm *assembler.Assembler, graph storage.GraphStore, metadata storage.MetadataStore, formatterName formatting.Name, logger logging.Logger) *Retriever {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Retriever{
		executor:  executor,
		ranker:    rk,
		assembler: asm,
		graph:     graph,
		metadata:  metadata,
		formatter: formatterName,
		logger:    logger,
	}
}

// Retrieve runs the classify -> search -> rank -> assemble -> format
// pipeline for query using the Retriever's configured default
// formatter. budget <= 0 selects DefaultBudget. The result is always
// well-formed: a store or embedding failure degrades through tiers 1-4
// rather than propagating an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, budget int) *retrieval.RetrievalResult {
	return r.retrieve(ctx, query, budget, r.formatter)
}

// RetrieveWithFormatter runs the same pipeline as Retrieve but applies
// formatterName instead of the Retriever's configured default, for
// callers (e.g. the MCP tool surface) that accept a per-call formatter
// tag per spec §6's retrieval operation input.
func (r *Retriever) RetrieveWithFormatter(ctx context.Context, query string, budget int, formatterName formatting.Name) *retrieval.RetrievalResult {
	return r.retrieve(ctx, query, budget, formatterName)
}

func (r *Retriever) retrieve(ctx context.Context, query string, budget int, formatterName formatting.Name) *retrieval.RetrievalResult {
	t0 := time.Now()
	if budget <= 0 {
		budget = DefaultBudget
	}

	classification := classifier.Classify(query)
	candidates, strategy, tier, searchErr := r.search(ctx, classification)

	importance := r.importance(ctx)
	limit := search.DefaultLimit
	ranked := r.ranker.Rank(candidates, classification, importance, limit)

	overview := r.structuralOverview(ctx)

	assembled, err := r.assembler.Assemble(ctx, ranked, classification, overview, budget)
	if err != nil {
		assembled = &retrieval.AssembledContext{Budget: budget}
		if tier < 4 {
			tier = 4
		}
	}

	formatted := assembled.Context
	if formatterName != "" && formatterName != formatting.NameNone {
		if out, ferr := formatting.Format(formatterName, *assembled); ferr == nil {
			formatted = out
		} else {
			r.logger.WarnContext(ctx, "formatting adapter failed, returning raw context", "formatter", string(formatterName), "error", ferr.Error())
		}
	}

	trace := retrieval.RetrievalTrace{
		Classification:  classification,
		Strategy:        strategy,
		CandidateCount:  len(candidates),
		RankedCount:     len(ranked),
		TokensUsed:      assembled.TokensUsed,
		ElapsedMS:       time.Since(t0).Milliseconds(),
		DegradationTier: tier,
	}

	result := &retrieval.RetrievalResult{
		Classification: classification,
		Context:        formatted,
		TokensUsed:     assembled.TokensUsed,
		Budget:         budget,
		Sources:        assembled.Sources,
		Trace:          trace,
	}
	if tier == 4 {
		meta := map[string]interface{}{"reason": "all search strategies failed"}
		if searchErr != nil {
			meta["last_error"] = searchErr.Error()
		}
		result.ErrorMetadata = meta
	}
	return result
}

// search runs the degradation cascade: tier0 (full pipeline, strategy
// chosen by the classifier) falling back to tier1 (keyword + graph),
// tier2 (graph only, no metadata calls), tier3 (direct identifier
// lookups on metadata only), and finally tier4 (empty). The spec keys
// each tier to the single component that failed; components here are
// architecturally entangled (metadata backs both keyword search and
// graph's seed lookup), so a sequential fallback cascade is used
// instead of single-component attribution — see DESIGN.md.
func (r *Retriever) search(ctx context.Context, classification retrieval.Classification) ([]retrieval.Candidate, string, int, error) {
	limit := search.DefaultLimit

	result, err := r.executor.Execute(ctx, classification, limit)
	if err == nil {
		return result.Candidates, result.Strategy, 0, nil
	}
	r.logger.WarnContext(ctx, "tier0 full pipeline failed, degrading", "error", err.Error())
	lastErr := err

	candidates, err := r.executor.KeywordAndGraph(ctx, classification, limit)
	if err == nil {
		return candidates, "keyword_and_graph", 1, nil
	}
	r.logger.WarnContext(ctx, "tier1 keyword+graph failed, degrading", "error", err.Error())
	lastErr = err

	candidates, err = r.executor.GraphOnly(ctx, classification, limit)
	if err == nil {
		return candidates, "graph_only", 2, nil
	}
	r.logger.WarnContext(ctx, "tier2 graph-only failed, degrading", "error", err.Error())
	lastErr = err

	candidates, err = r.executor.DirectOnly(ctx, classification, limit)
	if err == nil {
		return candidates, "direct_only", 3, nil
	}
	r.logger.WarnContext(ctx, "tier3 direct-only failed, degrading to empty context", "error", err.Error())
	lastErr = err

	return nil, "none", 4, lastErr
}

// importance calls the graph store's PageRank for the ranker's
// importance feature. Failure yields an empty map rather than
// propagating: importance is an enrichment, not a required input.
func (r *Retriever) importance(ctx context.Context) map[string]float64 {
	if r.graph == nil {
		return nil
	}
	scores, err := r.graph.PageRank(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "page rank unavailable, ranking without importance", "error", err.Error())
		return nil
	}
	return scores
}

// structuralOverview builds the Assembler's structural section from
// metadata type counts, tolerant of store failure (an empty overview
// is a degraded but well-formed input, not an error).
func (r *Retriever) structuralOverview(ctx context.Context) string {
	if r.metadata == nil {
		return ""
	}
	var parts []string
	for _, t := range structuralTypes {
		units, err := r.metadata.FindByType(ctx, t)
		if err != nil || len(units) == 0 {
			continue
		}
		parts = append(parts, pluralize(len(units), string(t)))
	}
	return strings.Join(parts, ", ")
}

func pluralize(count int, noun string) string {
	word := noun
	if count != 1 {
		word = noun + "s"
	}
	return strconv.Itoa(count) + " " + word
}
