package resilience

import (
	"sort"
	"strings"
)

// LowScoreThreshold is the rating score below which a query is
// counted as evidence of a retrieval gap.
const LowScoreThreshold = 0.4

// MinGapCount is the minimum number of occurrences a keyword or
// identifier must reach before GapDetector reports it.
const MinGapCount = 2

// KeywordGap is a keyword that recurs across low-scoring queries.
type KeywordGap struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// IdentifierGap is a unit identifier reported missing by name.
type IdentifierGap struct {
	Identifier string `json:"identifier"`
	Count      int    `json:"count"`
}

// GapReport is GapDetector's output.
type GapReport struct {
	Keywords    []KeywordGap    `json:"keywords"`
	Identifiers []IdentifierGap `json:"identifiers"`
}

// GapDetector aggregates a FeedbackStore's entries into recurring
// retrieval gaps: keywords that keep showing up in low-scoring
// queries, and identifiers the caller has explicitly reported missing.
type GapDetector struct {
	feedback *FeedbackStore
}

// NewGapDetector builds a detector reading from feedback.
func NewGapDetector(feedback *FeedbackStore) *GapDetector {
	return &GapDetector{feedback: feedback}
}

// Detect scans the feedback log and returns keywords and identifiers
// that recur at least MinGapCount times.
func (d *GapDetector) Detect() (*GapReport, error) {
	keywordCounts := make(map[string]int)
	identifierCounts := make(map[string]int)

	err := d.feedback.Stream(func(entry FeedbackEntry) error {
		switch entry.Type {
		case FeedbackRating:
			if entry.Score != nil && *entry.Score < LowScoreThreshold {
				for _, kw := range tokenize(entry.Query) {
					keywordCounts[kw]++
				}
			}
		case FeedbackGap:
			if entry.MissingUnit != "" {
				identifierCounts[entry.MissingUnit]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &GapReport{}
	for kw, count := range keywordCounts {
		if count >= MinGapCount {
			report.Keywords = append(report.Keywords, KeywordGap{Keyword: kw, Count: count})
		}
	}
	for id, count := range identifierCounts {
		if count >= MinGapCount {
			report.Identifiers = append(report.Identifiers, IdentifierGap{Identifier: id, Count: count})
		}
	}

	sort.Slice(report.Keywords, func(i, j int) bool {
		if report.Keywords[i].Count != report.Keywords[j].Count {
			return report.Keywords[i].Count > report.Keywords[j].Count
		}
		return report.Keywords[i].Keyword < report.Keywords[j].Keyword
	})
	sort.Slice(report.Identifiers, func(i, j int) bool {
		if report.Identifiers[i].Count != report.Identifiers[j].Count {
			return report.Identifiers[i].Count > report.Identifiers[j].Count
		}
		return report.Identifiers[i].Identifier < report.Identifiers[j].Identifier
	})
	return report, nil
}

func tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '_')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 3 {
			out = append(out, f)
		}
	}
	return out
}
