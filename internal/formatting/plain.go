package formatting

import (
	"fmt"
	"strings"

	"codecortex/pkg/retrieval"
)

// Plain renders assembled as the context text, a "---" separator, and
// one "[Source: <id> (<type>) score=<s>]" line per source.
func Plain(assembled retrieval.AssembledContext) string {
	var b strings.Builder
	b.WriteString(assembled.Context)
	b.WriteString("\n---\n")
	for _, s := range assembled.Sources {
		fmt.Fprintf(&b, "[Source: %s (%s) score=%.3f]\n", s.Identifier, s.Type, s.Score)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
