// Package assembler folds ranked candidates into one token-budgeted
// context string, the way the teacher's retrieve handler folds insight
// records into a bounded response payload.
package assembler

import (
	"context"
	"fmt"
	"strings"

	"codecortex/internal/storage"
	"codecortex/pkg/codeunit"
	"codecortex/pkg/retrieval"
)

// Budget fractions from spec.md §4.8.
const (
	structuralFraction = 0.10
	primaryFraction    = 0.70
	frameworkFraction  = 0.20
)

// truncationFloor is the minimum remaining room, in tokens, a candidate
// must have to be truncated-and-included rather than skipped.
const truncationFloor = 64

const truncationMarker = "…"

// frameworkSource is the metadata.source value that routes a candidate
// into the framework pool instead of the primary one.
const frameworkSource = "framework"

// Assembler resolves each ranked candidate's full Unit and assembles
// the structural/primary/framework sections within budget.
type Assembler struct {
	metadata storage.MetadataStore
}

// New builds an Assembler from its metadata store collaborator.
func New(metadata storage.MetadataStore) *Assembler {
	return &Assembler{metadata: metadata}
}

// Assemble emits the structural overview, then the primary and
// framework sections in ranked order, respecting the 10/70/20 budget
// split, and returns the finished AssembledContext.
func (a *Assembler) Assemble(ctx context.Context, ranked []retrieval.Candidate, classification retrieval.Classification, structuralOverview string, budget int) (*retrieval.AssembledContext, error) {
	structuralBudget := int(float64(budget) * structuralFraction)
	frameworkBudget := int(float64(budget) * frameworkFraction)
	primaryBudget := budget - structuralBudget - frameworkBudget

	var primaryPool, frameworkPool []retrieval.Candidate
	for _, c := range ranked {
		if metaString(c.Metadata, "source") == frameworkSource {
			frameworkPool = append(frameworkPool, c)
		} else {
			primaryPool = append(primaryPool, c)
		}
	}

	var b strings.Builder
	var sections []string
	var sources []retrieval.SourceAttribution

	structuralText := truncateMiddle(structuralOverview, structuralBudget)
	if structuralText != "" {
		b.WriteString(structuralText)
		sections = append(sections, "structural")
	}

	primaryText, primarySources, err := a.fillSection(ctx, primaryPool, primaryBudget)
	if err != nil {
		return nil, err
	}
	if primaryText != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(primaryText)
		sections = append(sections, "primary")
	}
	sources = append(sources, primarySources...)

	frameworkText, frameworkSources, err := a.fillSection(ctx, frameworkPool, frameworkBudget)
	if err != nil {
		return nil, err
	}
	if frameworkText != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(frameworkText)
		sections = append(sections, "framework")
	}
	sources = append(sources, frameworkSources...)

	text := b.String()
	return &retrieval.AssembledContext{
		Context:    text,
		TokensUsed: codeunit.EstimateTokens(text),
		Budget:     budget,
		Sources:    sources,
		Sections:   sections,
	}, nil
}

// fillSection walks pool in order, appending formatted candidates that
// fit within budget tokens and truncating or skipping the ones that
// don't. It returns the section's text and the SourceAttribution for
// every candidate it looked at, included or not.
func (a *Assembler) fillSection(ctx context.Context, pool []retrieval.Candidate, budget int) (string, []retrieval.SourceAttribution, error) {
	if budget <= 0 {
		return "", nil, nil
	}

	var b strings.Builder
	var sources []retrieval.SourceAttribution
	used := 0

	for _, c := range pool {
		unit, err := a.metadata.FindByIdentifier(ctx, c.Identifier)
		if err != nil {
			return "", nil, err
		}
		if unit == nil {
			continue
		}

		remaining := budget - used
		formatted, truncated, ok := formatCandidate(unit, remaining)
		if !ok {
			sources = append(sources, retrieval.SourceAttribution{
				Identifier: c.Identifier,
				Type:       string(unit.Type),
				Score:      c.Score,
				FilePath:   unit.FilePath,
				Included:   false,
			})
			continue
		}

		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(formatted)
		used += codeunit.EstimateTokens(formatted)

		sources = append(sources, retrieval.SourceAttribution{
			Identifier: c.Identifier,
			Type:       string(unit.Type),
			Score:      c.Score,
			FilePath:   unit.FilePath,
			Truncated:  truncated,
			Included:   true,
		})
	}

	return b.String(), sources, nil
}

// formatCandidate renders one candidate as
// "## <identifier> (<type>)\nFile: <file_path>\n\n<source_code>",
// truncating source_code to fit remaining tokens when the whole
// rendering doesn't fit. ok is false when remaining is below the
// truncation floor, or too small to fit even the header.
func formatCandidate(unit *codeunit.Unit, remaining int) (text string, truncated bool, ok bool) {
	header := fmt.Sprintf("## %s (%s)\nFile: %s\n\n", unit.Identifier, unit.Type, unit.FilePath)
	full := header + unit.SourceCode
	fullTokens := codeunit.EstimateTokens(full)

	if fullTokens <= remaining {
		return full, false, true
	}
	if remaining < truncationFloor {
		return "", false, false
	}

	headerTokens := codeunit.EstimateTokens(header)
	bodyBudget := remaining - headerTokens
	if bodyBudget <= 0 {
		return "", false, false
	}

	truncatedSource := truncateMiddle(unit.SourceCode, bodyBudget)
	return header + truncatedSource, true, true
}

// truncateMiddle keeps text's head and tail, joined by a "…" marker,
// so the result estimates to at most budget tokens. Text that already
// fits is returned unchanged.
func truncateMiddle(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if codeunit.EstimateTokens(text) <= budget {
		return text
	}

	charBudget := int(float64(budget) * 3.5)
	room := charBudget - len(truncationMarker)
	if room <= 0 {
		return truncationMarker
	}

	head := room / 2
	tail := room - head
	if head+tail >= len(text) {
		return text
	}
	return text[:head] + truncationMarker + text[len(text)-tail:]
}

func metaString(metadata map[string]interface{}, key string) string {
	if metadata == nil {
		return ""
	}
	v, _ := metadata[key].(string)
	return v
}
