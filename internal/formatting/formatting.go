// Package formatting renders an AssembledContext for a target model,
// the way the teacher's internal/documents package renders a PRD entity
// for different consumers. Every adapter is a pure function of its
// input; none touches a store or clock.
package formatting

import (
	"fmt"

	"codecortex/pkg/retrieval"
)

// Name identifies a formatting adapter.
type Name string

const (
	NameNone     Name = "none"
	NameXML      Name = "xml"
	NameMarkdown Name = "markdown"
	NamePlain    Name = "plain"
	NameHuman    Name = "human"
)

// Adapter renders an AssembledContext as a string for one target model.
type Adapter func(assembled retrieval.AssembledContext) string

// adapters maps each Name to its Adapter. NameNone is handled by Format
// directly since it needs no rendering at all.
var adapters = map[Name]Adapter{
	NameXML:      XML,
	NameMarkdown: Markdown,
	NamePlain:    Plain,
	NameHuman:    Human,
}

// Format dispatches to the adapter named by name. NameNone (and the
// empty Name, the Retriever's default) returns assembled.Context
// unformatted.
func Format(name Name, assembled retrieval.AssembledContext) (string, error) {
	if name == NameNone || name == "" {
		return assembled.Context, nil
	}
	adapter, ok := adapters[name]
	if !ok {
		return "", fmt.Errorf("formatting: unknown adapter %q", name)
	}
	return adapter(assembled), nil
}
