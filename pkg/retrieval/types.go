// Package retrieval defines the data shapes that flow between the
// classifier, search executor, ranker, assembler, and formatting
// adapters — the pipeline-internal counterparts to the extractor-facing
// shapes in pkg/codeunit.
package retrieval

// Intent is the classifier's best guess at what the caller wants to do
// with the answer.
type Intent string

const (
	IntentUnderstand Intent = "understand"
	IntentImplement  Intent = "implement"
	IntentDebug      Intent = "debug"
	IntentTrace      Intent = "trace"
	IntentFind       Intent = "find"
	IntentOther      Intent = "other"
)

// Scope describes how narrowly the query names its target.
type Scope string

const (
	ScopeBroad   Scope = "broad"
	ScopeFocused Scope = "focused"
	ScopeSpecific Scope = "specific"
)

// NoTargetType is target_type's value when the query names no
// particular unit.Type.
const NoTargetType = "none"

// Classification is the Query Classifier's (C7) output.
type Classification struct {
	Intent          Intent   `json:"intent"`
	Scope           Scope    `json:"scope"`
	TargetType      string   `json:"target_type"`
	FrameworkContext bool    `json:"framework_context"`
	Keywords        []string `json:"keywords"`
	Query           string   `json:"query"`
}

// Source tags which strategy produced a Candidate.
type Source string

const (
	SourceVector  Source = "vector"
	SourceKeyword Source = "keyword"
	SourceGraph   Source = "graph"
	SourceDirect  Source = "direct"
)

// Candidate is one retrieval hit, before ranking.
type Candidate struct {
	Identifier string                 `json:"identifier"`
	Score      float64                `json:"score"`
	Source     Source                 `json:"source"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// SearchResult is the Search Executor's (C8) output.
type SearchResult struct {
	Candidates []Candidate `json:"candidates"`
	Strategy   string      `json:"strategy"`
	Query      string      `json:"query"`
}

// SourceAttribution describes one unit folded into an AssembledContext.
type SourceAttribution struct {
	Identifier string  `json:"identifier"`
	Type       string  `json:"type"`
	Score      float64 `json:"score"`
	FilePath   string  `json:"file_path,omitempty"`
	Truncated  bool    `json:"truncated,omitempty"`
	Included   bool    `json:"included"`
}

// AssembledContext is the Context Assembler's (C10) output, before
// model-specific formatting.
type AssembledContext struct {
	Context    string              `json:"context"`
	TokensUsed int                 `json:"tokens_used"`
	Budget     int                 `json:"budget"`
	Sources    []SourceAttribution `json:"sources"`
	Sections   []string            `json:"sections"`
}

// RetrievalTrace records one end-to-end retrieve() call for
// observability and the degradation-tier audit trail.
type RetrievalTrace struct {
	Classification  Classification `json:"classification"`
	Strategy        string         `json:"strategy"`
	CandidateCount  int            `json:"candidate_count"`
	RankedCount     int            `json:"ranked_count"`
	TokensUsed      int            `json:"tokens_used"`
	ElapsedMS       int64          `json:"elapsed_ms"`
	DegradationTier int            `json:"degradation_tier"`
}

// RetrievalResult is the Retriever's (C12) public operation output.
// It is always well-formed, even at degradation tier 4 — the Retriever
// never raises a pipeline failure to its caller.
type RetrievalResult struct {
	Classification Classification         `json:"classification"`
	Context        string                 `json:"context"`
	TokensUsed     int                    `json:"tokens_used"`
	Budget         int                    `json:"budget"`
	Sources        []SourceAttribution    `json:"sources"`
	Trace          RetrievalTrace         `json:"trace"`
	ErrorMetadata  map[string]interface{} `json:"error_metadata,omitempty"`
}
