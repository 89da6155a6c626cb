package chunking

import (
	"regexp"
	"strings"

	"codecortex/pkg/codeunit"
)

// canonicalModelOrder is the order non-empty model sections are
// emitted in, regardless of the order they first appear in source.
var canonicalModelOrder = []codeunit.ChunkType{
	codeunit.ChunkSummary,
	codeunit.ChunkAssociations,
	codeunit.ChunkValidations,
	codeunit.ChunkCallbacks,
	codeunit.ChunkScopes,
	codeunit.ChunkMethods,
}

var (
	modelDefPattern        = regexp.MustCompile(`^\s*def\s+`)
	modelAssociationsPattern = regexp.MustCompile(`^\s*(belongs_to|has_one|has_many|has_and_belongs_to_many)\b`)
	modelValidationsPattern  = regexp.MustCompile(`^\s*validates?(_\w+)?\b`)
	modelCallbacksPattern    = regexp.MustCompile(`^\s*(before|after|around)_(save|create|update|destroy|validation|commit|rollback|initialize)\b`)
	modelScopesPattern       = regexp.MustCompile(`^\s*scope\s+:`)

	blockOpenerPattern = regexp.MustCompile(`\b(do)(\s*\|[^|]*\|)?\s*$`)
	blockEndPattern    = regexp.MustCompile(`^\s*end\b`)
)

// modelStrategy classifies each source line into one of
// {summary, associations, validations, callbacks, scopes, methods} and
// emits the non-empty sections in canonical order. Unclassified
// leading lines fall into summary; once a section is active,
// unclassified lines stick with it. Method bodies run from a "def" line
// to its matching "end", tracking nested "do"/"def" openers.
func modelStrategy(unit *codeunit.Unit) []*codeunit.Chunk {
	lines := strings.Split(unit.SourceCode, "\n")
	sections := make(map[codeunit.ChunkType][]string, len(canonicalModelOrder))
	current := codeunit.ChunkSummary
	depth := 0

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if depth > 0 {
			sections[codeunit.ChunkMethods] = append(sections[codeunit.ChunkMethods], line)
			depth += blockDelta(trimmed)
			continue
		}

		switch {
		case modelDefPattern.MatchString(line):
			current = codeunit.ChunkMethods
			sections[current] = append(sections[current], line)
			depth = 1
		case modelAssociationsPattern.MatchString(line):
			current = codeunit.ChunkAssociations
			sections[current] = append(sections[current], line)
		case modelValidationsPattern.MatchString(line):
			current = codeunit.ChunkValidations
			sections[current] = append(sections[current], line)
		case modelCallbacksPattern.MatchString(line):
			current = codeunit.ChunkCallbacks
			sections[current] = append(sections[current], line)
		case modelScopesPattern.MatchString(line):
			current = codeunit.ChunkScopes
			sections[current] = append(sections[current], line)
		default:
			sections[current] = append(sections[current], line)
		}
	}

	var chunks []*codeunit.Chunk
	for _, chunkType := range canonicalModelOrder {
		lines, ok := sections[chunkType]
		if !ok {
			continue
		}
		content := strings.Join(lines, "\n")
		if chunk := codeunit.NewChunk(unit.Identifier, unit.Type, chunkType, content, nil); chunk != nil {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// blockDelta reports the net nesting change a line contributes once
// already inside a method body: +1 per "do"/"def" opener, -1 for a
// standalone "end".
func blockDelta(trimmed string) int {
	delta := 0
	if blockOpenerPattern.MatchString(trimmed) || modelDefPattern.MatchString(trimmed) {
		delta++
	}
	if blockEndPattern.MatchString(trimmed) {
		delta--
	}
	return delta
}
