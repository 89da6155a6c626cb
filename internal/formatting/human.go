package formatting

import (
	"fmt"
	"strings"

	"codecortex/pkg/retrieval"
)

// frameWidth is the box-drawing frame's interior width for the header.
const frameWidth = 60

// Human renders assembled with a box-drawing header frame and an
// aligned source table below the raw context text.
func Human(assembled retrieval.AssembledContext) string {
	var b strings.Builder

	b.WriteString(boxTop(frameWidth))
	b.WriteString(boxLine("Codebase Context", frameWidth))
	b.WriteString(boxLine(fmt.Sprintf("tokens=%d budget=%d", assembled.TokensUsed, assembled.Budget), frameWidth))
	b.WriteString(boxBottom(frameWidth))
	b.WriteString("\n")

	b.WriteString(assembled.Context)
	b.WriteString("\n\n")

	b.WriteString(sourceTable(assembled.Sources))
	return b.String()
}

func boxTop(width int) string {
	return "┌" + strings.Repeat("─", width-2) + "┐\n"
}

func boxBottom(width int) string {
	return "└" + strings.Repeat("─", width-2) + "┘\n"
}

func boxLine(text string, width int) string {
	inner := width - 4
	if len(text) >= inner {
		return "│ " + text + " │\n"
	}
	return "│ " + text + strings.Repeat(" ", inner-len(text)) + " │\n"
}

// sourceTable renders sources as a column-aligned text table, widths
// computed from the widest value in each column.
func sourceTable(sources []retrieval.SourceAttribution) string {
	if len(sources) == 0 {
		return "(no sources)\n"
	}

	headers := []string{"Identifier", "Type", "Score", "File", "Truncated"}
	rows := make([][]string, 0, len(sources))
	for _, s := range sources {
		truncated := "no"
		if s.Truncated {
			truncated = "yes"
		}
		if !s.Included {
			truncated = "omitted"
		}
		rows = append(rows, []string{s.Identifier, s.Type, fmt.Sprintf("%.3f", s.Score), s.FilePath, truncated})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	writeRow(&b, headers, widths)
	writeSeparator(&b, widths)
	for _, row := range rows {
		writeRow(&b, row, widths)
	}
	return b.String()
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	for i, cell := range cells {
		fmt.Fprintf(b, "%-*s", widths[i], cell)
		if i < len(cells)-1 {
			b.WriteString(" │ ")
		}
	}
	b.WriteString("\n")
}

func writeSeparator(b *strings.Builder, widths []int) {
	for i, w := range widths {
		b.WriteString(strings.Repeat("─", w))
		if i < len(widths)-1 {
			b.WriteString("─┼─")
		}
	}
	b.WriteString("\n")
}
