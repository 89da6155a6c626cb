// Package ranker fuses and scores candidates from the Search Executor,
// the way the teacher's internal/tasks/suggester.go folds several
// signals (recency, size, author) into one ranked suggestion list.
package ranker

import (
	"math"
	"sort"
	"strings"
	"time"

	"codecortex/pkg/retrieval"
)

// rrfK is k in rrf(c) = sum_s 1/(k + r_s), spec.md §4.7 Stage 1.
const rrfK = 60.0

// diversityStep is the per-repeat multiplier step in Stage 3:
// score *= (1 - diversityStep*k) on the k-th repeat of a type.
const diversityStep = 0.1

// recencyHalfLifeDays is the divisor in exp(-age_days/30).
const recencyHalfLifeDays = 30.0

// defaultRecency is used when a candidate carries no updated_at.
const defaultRecency = 0.5

// Weights holds Stage 2's feature weights; they sum to 1.0 in spec.md.
type Weights struct {
	Base       float64
	Keyword    float64
	Recency    float64
	Importance float64
	TypeMatch  float64
}

// DefaultWeights matches spec.md §4.7: base 0.40, keyword 0.25,
// recency 0.10, importance 0.15, type_match 0.10.
var DefaultWeights = Weights{Base: 0.40, Keyword: 0.25, Recency: 0.10, Importance: 0.15, TypeMatch: 0.10}

// Ranker runs the three-stage fusion/scoring/diversity pipeline.
type Ranker struct {
	weights Weights
	now     func() time.Time
}

// New builds a Ranker with DefaultWeights. now defaults to time.Now and
// is only overridden by tests that need a fixed clock.
func New() *Ranker {
	return &Ranker{weights: DefaultWeights, now: time.Now}
}

// NewWithClock builds a Ranker with an injected clock, for deterministic
// recency tests.
func NewWithClock(now func() time.Time) *Ranker {
	return &Ranker{weights: DefaultWeights, now: now}
}

// Rank applies RRF (when candidates span at least two sources), the
// weighted feature score, and the diversity penalty, returning the top
// limit candidates with their final scores.
func (r *Ranker) Rank(candidates []retrieval.Candidate, classification retrieval.Classification, importance map[string]float64, limit int) []retrieval.Candidate {
	if len(candidates) == 0 {
		return nil
	}

	ranked := make([]retrieval.Candidate, len(candidates))
	copy(ranked, candidates)

	if countDistinctSources(ranked) >= 2 {
		r.applyRRF(ranked)
	}

	for i := range ranked {
		ranked[i].Score = r.featureScore(ranked[i], classification, importance)
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	applyDiversityPenalty(ranked)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func countDistinctSources(candidates []retrieval.Candidate) int {
	seen := map[retrieval.Source]struct{}{}
	for _, c := range candidates {
		seen[c.Source] = struct{}{}
	}
	return len(seen)
}

// applyRRF replaces each candidate's score with its reciprocal-rank-fusion
// value, ranking within its own source group since the executor has
// already de-duplicated candidates down to one occurrence per identifier.
func (r *Ranker) applyRRF(candidates []retrieval.Candidate) {
	groups := make(map[retrieval.Source][]int)
	for i, c := range candidates {
		groups[c.Source] = append(groups[c.Source], i)
	}
	for _, idxs := range groups {
		sort.SliceStable(idxs, func(a, b int) bool { return candidates[idxs[a]].Score > candidates[idxs[b]].Score })
		for rank, idx := range idxs {
			candidates[idx].Score = 1.0 / (rrfK + float64(rank+1))
		}
	}
}

// featureScore computes Stage 2's weighted sum for one candidate.
func (r *Ranker) featureScore(c retrieval.Candidate, classification retrieval.Classification, importance map[string]float64) float64 {
	w := r.weights
	base := c.Score
	keyword := keywordFraction(c, classification.Keywords)
	recency := r.recencyScore(c)
	imp := importance[c.Identifier]
	typeMatch := 0.0
	if classification.TargetType != retrieval.NoTargetType && metaString(c.Metadata, "type") == classification.TargetType {
		typeMatch = 1.0
	}

	return w.Base*base + w.Keyword*keyword + w.Recency*recency + w.Importance*imp + w.TypeMatch*typeMatch
}

// keywordFraction is the fraction of classification.Keywords that occur
// as a case-insensitive substring of the candidate's identifier or
// metadata name fields, bounded in [0,1].
func keywordFraction(c retrieval.Candidate, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}

	haystack := strings.ToLower(c.Identifier)
	if fp := metaString(c.Metadata, "file_path"); fp != "" {
		haystack += " " + strings.ToLower(fp)
	}
	if t := metaString(c.Metadata, "type"); t != "" {
		haystack += " " + strings.ToLower(t)
	}

	matched := 0
	for _, kw := range keywords {
		if strings.Contains(haystack, strings.ToLower(kw)) {
			matched++
		}
	}

	fraction := float64(matched) / float64(len(keywords))
	if fraction > 1.0 {
		fraction = 1.0
	}
	return fraction
}

// recencyScore is exp(-age_days/30) when metadata.updated_at parses as a
// time, else the default 0.5.
func (r *Ranker) recencyScore(c retrieval.Candidate) float64 {
	updatedAt, ok := parseUpdatedAt(c.Metadata)
	if !ok {
		return defaultRecency
	}
	ageDays := r.now().Sub(updatedAt).Hours() / 24.0
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-ageDays / recencyHalfLifeDays)
}

func parseUpdatedAt(metadata map[string]interface{}) (time.Time, bool) {
	if metadata == nil {
		return time.Time{}, false
	}
	raw, ok := metadata["updated_at"]
	if !ok {
		return time.Time{}, false
	}
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func metaString(metadata map[string]interface{}, key string) string {
	if metadata == nil {
		return ""
	}
	v, ok := metadata[key].(string)
	if !ok {
		return ""
	}
	return v
}

// applyDiversityPenalty walks the sorted list tracking how many times
// each type has already appeared; on the k-th repeat of a type it
// multiplies that candidate's score by (1 - diversityStep*k).
func applyDiversityPenalty(candidates []retrieval.Candidate) {
	seen := make(map[string]int)
	for i := range candidates {
		t := metaString(candidates[i].Metadata, "type")
		if t == "" {
			continue
		}
		k := seen[t]
		if k > 0 {
			penalty := 1.0 - diversityStep*float64(k)
			if penalty < 0 {
				penalty = 0
			}
			candidates[i].Score *= penalty
		}
		seen[t] = k + 1
	}
}
