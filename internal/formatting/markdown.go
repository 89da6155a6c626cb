package formatting

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"codecortex/pkg/retrieval"
)

// candidateHeaderPattern recognizes the assembler's per-candidate block
// header, "## <identifier> (<type>)\nFile: <file_path>\n\n", so Markdown
// can re-wrap the source code that follows in a fenced block.
var candidateHeaderPattern = regexp.MustCompile(`(?m)^## (.+) \((.+)\)\nFile: (.*)\n\n`)

// Markdown renders assembled with "## <id>" headers, fenced code
// blocks around each candidate's source, and a trailing bulleted
// source list.
func Markdown(assembled retrieval.AssembledContext) string {
	var b strings.Builder
	b.WriteString("# Codebase Context\n\n")

	writeMarkdownBody(&b, assembled.Context)

	b.WriteString("\n## Sources\n\n")
	for _, s := range assembled.Sources {
		b.WriteString(sourceBullet(s))
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeMarkdownBody(b *strings.Builder, context string) {
	matches := candidateHeaderPattern.FindAllStringSubmatchIndex(context, -1)
	if len(matches) == 0 {
		b.WriteString(strings.TrimSpace(context))
		b.WriteString("\n\n")
		return
	}

	if matches[0][0] > 0 {
		b.WriteString(strings.TrimSpace(context[:matches[0][0]]))
		b.WriteString("\n\n")
	}

	for i, m := range matches {
		identifier := context[m[2]:m[3]]
		typ := context[m[4]:m[5]]
		filePath := context[m[6]:m[7]]
		bodyStart := m[1]
		bodyEnd := len(context)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}
		body := strings.TrimRight(context[bodyStart:bodyEnd], "\n")

		fmt.Fprintf(b, "## %s (%s)\n\nFile: `%s`\n\n```\n%s\n```\n\n", identifier, typ, filePath, body)
	}
}

func sourceBullet(s retrieval.SourceAttribution) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- `%s` (%s) score=%.3f", s.Identifier, s.Type, s.Score)
	if s.FilePath != "" {
		fmt.Fprintf(&b, " file=%s", s.FilePath)
	}
	if s.Truncated {
		b.WriteString(" truncated")
	}
	if !s.Included {
		b.WriteString(" [omitted]")
	}
	b.WriteString("\n")
	return b.String()
}

// CountHeadings parses markdown with goldmark and counts level-2
// headings, the same AST-walk technique the teacher's
// Processor.ProcessMarkdownToSections uses to split a document into
// sections. Used by tests to confirm Markdown's output structure
// round-trips through a real markdown parser instead of just looking
// plausible as a string.
func CountHeadings(markdown string) int {
	md := goldmark.New()
	reader := text.NewReader([]byte(markdown))
	doc := md.Parser().Parse(reader)

	count := 0
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if heading, ok := n.(*ast.Heading); ok && heading.Level == 2 {
				count++
			}
		}
		return ast.WalkContinue, nil
	})
	return count
}
