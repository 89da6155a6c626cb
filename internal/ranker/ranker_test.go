package ranker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecortex/pkg/retrieval"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRank_EmptyInput(t *testing.T) {
	r := New()
	out := r.Rank(nil, retrieval.Classification{}, nil, 10)
	assert.Nil(t, out)
}

func TestRank_SingleSourceSkipsRRF(t *testing.T) {
	r := New()
	candidates := []retrieval.Candidate{
		{Identifier: "a", Score: 0.9, Source: retrieval.SourceVector},
		{Identifier: "b", Score: 0.1, Source: retrieval.SourceVector},
	}
	out := r.Rank(candidates, retrieval.Classification{TargetType: retrieval.NoTargetType}, nil, 10)
	require.Len(t, out, 2)
	// base feature score dominates: weights are all positive, higher
	// base score should still win out ordering.
	assert.Equal(t, "a", out[0].Identifier)
}

func TestRank_MultiSourceAppliesRRF(t *testing.T) {
	r := New()
	candidates := []retrieval.Candidate{
		{Identifier: "a", Score: 0.5, Source: retrieval.SourceVector},
		{Identifier: "b", Score: 0.4, Source: retrieval.SourceKeyword},
		{Identifier: "c", Score: 0.3, Source: retrieval.SourceGraph},
	}
	out := r.Rank(candidates, retrieval.Classification{TargetType: retrieval.NoTargetType}, nil, 10)
	require.Len(t, out, 3)
	// Each group has exactly one member, so rrf(c) = 1/(60+1) for all
	// three: post-RRF base scores tie, so ordering falls back to the
	// other features, which are equal here (no keywords or importance,
	// default recency 0.5), and stays stable on input order.
	assert.Equal(t, "a", out[0].Identifier)
}

func TestRank_KeywordFeatureBoostsMatchingIdentifier(t *testing.T) {
	r := New()
	candidates := []retrieval.Candidate{
		{Identifier: "order_service", Score: 0.5, Source: retrieval.SourceVector},
		{Identifier: "unrelated_widget", Score: 0.5, Source: retrieval.SourceVector},
	}
	classification := retrieval.Classification{Keywords: []string{"order"}, TargetType: retrieval.NoTargetType}
	out := r.Rank(candidates, classification, nil, 10)
	require.Len(t, out, 2)
	assert.Equal(t, "order_service", out[0].Identifier)
}

func TestRank_TypeMatchBoostsCandidate(t *testing.T) {
	r := New()
	candidates := []retrieval.Candidate{
		{Identifier: "a", Score: 0.5, Source: retrieval.SourceVector, Metadata: map[string]interface{}{"type": "model"}},
		{Identifier: "b", Score: 0.5, Source: retrieval.SourceVector, Metadata: map[string]interface{}{"type": "controller"}},
	}
	classification := retrieval.Classification{TargetType: "model"}
	out := r.Rank(candidates, classification, nil, 10)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Identifier)
}

func TestRank_ImportanceBoostsCandidate(t *testing.T) {
	r := New()
	candidates := []retrieval.Candidate{
		{Identifier: "a", Score: 0.5, Source: retrieval.SourceVector},
		{Identifier: "b", Score: 0.5, Source: retrieval.SourceVector},
	}
	importance := map[string]float64{"a": 1.0}
	out := r.Rank(candidates, retrieval.Classification{TargetType: retrieval.NoTargetType}, importance, 10)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Identifier)
}

func TestRank_RecencyPrefersRecentlyUpdated(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	r := NewWithClock(fixedClock(now))
	recent := now.Add(-1 * 24 * time.Hour).Format(time.RFC3339)
	stale := now.Add(-365 * 24 * time.Hour).Format(time.RFC3339)

	candidates := []retrieval.Candidate{
		{Identifier: "a", Score: 0.5, Source: retrieval.SourceVector, Metadata: map[string]interface{}{"updated_at": stale}},
		{Identifier: "b", Score: 0.5, Source: retrieval.SourceVector, Metadata: map[string]interface{}{"updated_at": recent}},
	}
	out := r.Rank(candidates, retrieval.Classification{TargetType: retrieval.NoTargetType}, nil, 10)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].Identifier)
}

func TestRank_MissingUpdatedAtUsesDefaultRecency(t *testing.T) {
	r := New()
	score := r.recencyScore(retrieval.Candidate{})
	assert.Equal(t, defaultRecency, score)
}

func TestRank_DiversityPenaltyDemotesRepeatedType(t *testing.T) {
	r := New()
	candidates := []retrieval.Candidate{
		{Identifier: "a", Score: 0.90, Source: retrieval.SourceVector, Metadata: map[string]interface{}{"type": "model"}},
		{Identifier: "b", Score: 0.89, Source: retrieval.SourceVector, Metadata: map[string]interface{}{"type": "model"}},
		{Identifier: "c", Score: 0.70, Source: retrieval.SourceVector, Metadata: map[string]interface{}{"type": "model"}},
		{Identifier: "d", Score: 0.65, Source: retrieval.SourceVector, Metadata: map[string]interface{}{"type": "controller"}},
	}
	out := r.Rank(candidates, retrieval.Classification{TargetType: retrieval.NoTargetType}, nil, 10)
	require.Len(t, out, 4)
	// "c" is the third "model" seen (k=2), penalized by (1-0.2)=0.8,
	// which drops it below "d"'s un-penalized controller score even
	// though c outscored d before the penalty.
	names := []string{out[0].Identifier, out[1].Identifier, out[2].Identifier, out[3].Identifier}
	assert.Equal(t, []string{"a", "b", "d", "c"}, names)
}

func TestRank_RespectsLimit(t *testing.T) {
	r := New()
	candidates := []retrieval.Candidate{
		{Identifier: "a", Score: 0.9, Source: retrieval.SourceVector},
		{Identifier: "b", Score: 0.8, Source: retrieval.SourceVector},
		{Identifier: "c", Score: 0.7, Source: retrieval.SourceVector},
	}
	out := r.Rank(candidates, retrieval.Classification{TargetType: retrieval.NoTargetType}, nil, 2)
	assert.Len(t, out, 2)
}

func TestKeywordFraction_BoundedAndCaseInsensitive(t *testing.T) {
	c := retrieval.Candidate{Identifier: "OrderService", Metadata: map[string]interface{}{"file_path": "app/services/order_service.rb"}}
	fraction := keywordFraction(c, []string{"order", "service", "nonexistent"})
	assert.InDelta(t, 2.0/3.0, fraction, 0.0001)
}

func TestCountDistinctSources(t *testing.T) {
	candidates := []retrieval.Candidate{
		{Source: retrieval.SourceVector},
		{Source: retrieval.SourceVector},
		{Source: retrieval.SourceKeyword},
	}
	assert.Equal(t, 2, countDistinctSources(candidates))
}
