package chunking

import (
	"regexp"
	"strings"

	"codecortex/pkg/codeunit"
)

var (
	controllerDefPattern     = regexp.MustCompile(`^\s*def\s+([A-Za-z_]\w*[?!]?)`)
	controllerAccessModifier = regexp.MustCompile(`^\s*(private|protected)\s*$`)
)

// controllerStrategy collects the preamble (class line, filters,
// comments) into a summary chunk, then emits one action_<name> chunk
// per public action, skipping anything after a private/protected
// marker.
func controllerStrategy(unit *codeunit.Unit) []*codeunit.Chunk {
	lines := strings.Split(unit.SourceCode, "\n")

	var summaryLines []string
	var chunks []*codeunit.Chunk

	var actionName string
	var actionLines []string
	depth := 0
	stopped := false

	flushAction := func() {
		content := strings.Join(actionLines, "\n")
		if chunk := codeunit.NewChunk(unit.Identifier, unit.Type, codeunit.ActionChunkType(actionName), content, nil); chunk != nil {
			chunks = append(chunks, chunk)
		}
		actionName = ""
		actionLines = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if stopped {
			continue
		}
		if controllerAccessModifier.MatchString(line) {
			stopped = true
			continue
		}

		if depth > 0 {
			actionLines = append(actionLines, line)
			depth += blockDelta(trimmed)
			if depth == 0 {
				flushAction()
			}
			continue
		}

		if match := controllerDefPattern.FindStringSubmatch(line); match != nil {
			actionName = match[1]
			actionLines = []string{line}
			depth = 1
			continue
		}

		summaryLines = append(summaryLines, line)
	}

	var result []*codeunit.Chunk
	if chunk := codeunit.NewChunk(unit.Identifier, unit.Type, codeunit.ChunkSummary, strings.Join(summaryLines, "\n"), nil); chunk != nil {
		result = append(result, chunk)
	}
	result = append(result, chunks...)
	return result
}
