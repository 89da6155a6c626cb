package formatting

import (
	"bytes"
	"encoding/xml"
	"strconv"

	"codecortex/pkg/retrieval"
)

// XML renders assembled as:
//
//	<codebase-context>
//	  <meta tokens="…" budget="…"/>
//	  <content>…</content>
//	  <sources>
//	    <source identifier="…" type="…" score="…" file="…" truncated="…"/>
//	  </sources>
//	</codebase-context>
//
// Every attribute value is escaped with xml.EscapeText.
func XML(assembled retrieval.AssembledContext) string {
	var b bytes.Buffer
	b.WriteString("<codebase-context>")

	b.WriteString("<meta ")
	writeAttr(&b, "tokens", strconv.Itoa(assembled.TokensUsed))
	b.WriteByte(' ')
	writeAttr(&b, "budget", strconv.Itoa(assembled.Budget))
	b.WriteString("/>")

	b.WriteString("<content>")
	_ = xml.EscapeText(&b, []byte(assembled.Context))
	b.WriteString("</content>")

	b.WriteString("<sources>")
	for _, s := range assembled.Sources {
		b.WriteString("<source ")
		writeAttr(&b, "identifier", s.Identifier)
		b.WriteByte(' ')
		writeAttr(&b, "type", s.Type)
		b.WriteByte(' ')
		writeAttr(&b, "score", strconv.FormatFloat(s.Score, 'f', -1, 64))
		if s.FilePath != "" {
			b.WriteByte(' ')
			writeAttr(&b, "file", s.FilePath)
		}
		if s.Truncated {
			b.WriteByte(' ')
			writeAttr(&b, "truncated", "true")
		}
		b.WriteByte(' ')
		writeAttr(&b, "included", strconv.FormatBool(s.Included))
		b.WriteString("/>")
	}
	b.WriteString("</sources>")

	b.WriteString("</codebase-context>")
	return b.String()
}

func writeAttr(b *bytes.Buffer, name, value string) {
	b.WriteString(name)
	b.WriteString(`="`)
	_ = xml.EscapeText(b, []byte(value))
	b.WriteString(`"`)
}
