package formatting

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecortex/pkg/retrieval"
)

func sampleContext() retrieval.AssembledContext {
	return retrieval.AssembledContext{
		Context: "3 models, 2 services\n\n" +
			"## order_service (service)\nFile: app/services/order_service.rb\n\n" +
			"class OrderService\n  def call; end\nend\n\n" +
			"## refund_policy (service)\nFile: app/services/refund_policy.rb\n\n" +
			"class RefundPolicy; end",
		TokensUsed: 42,
		Budget:     1000,
		Sections:   []string{"structural", "primary"},
		Sources: []retrieval.SourceAttribution{
			{Identifier: "order_service", Type: "service", Score: 0.91, FilePath: "app/services/order_service.rb", Included: true},
			{Identifier: "refund_policy", Type: "service", Score: 0.5, FilePath: "app/services/refund_policy.rb", Truncated: true, Included: true},
			{Identifier: "ghost_unit", Type: "service", Score: 0.1, Included: false},
		},
	}
}

func TestFormat_NoneReturnsRawContext(t *testing.T) {
	assembled := sampleContext()
	out, err := Format(NameNone, assembled)
	require.NoError(t, err)
	assert.Equal(t, assembled.Context, out)

	out, err = Format("", assembled)
	require.NoError(t, err)
	assert.Equal(t, assembled.Context, out)
}

func TestFormat_UnknownAdapterErrors(t *testing.T) {
	_, err := Format(Name("bogus"), sampleContext())
	assert.Error(t, err)
}

func TestXML_EscapesAttributeValues(t *testing.T) {
	assembled := sampleContext()
	assembled.Sources[0].Identifier = `a"b<c>`
	out := XML(assembled)
	assert.Contains(t, out, "<codebase-context>")
	assert.Contains(t, out, "<meta tokens=\"42\" budget=\"1000\"/>")
	assert.NotContains(t, out, `a"b<c>`)
	assert.Contains(t, out, "&#34;")
	assert.Contains(t, out, "</codebase-context>")
}

func TestXML_MarksIncludedAndTruncated(t *testing.T) {
	out := XML(sampleContext())
	assert.Contains(t, out, `identifier="refund_policy"`)
	assert.Contains(t, out, `truncated="true"`)
	assert.Contains(t, out, `included="false"`)
}

func TestMarkdown_WrapsSourceInFencedBlock(t *testing.T) {
	out := Markdown(sampleContext())
	assert.Contains(t, out, "## order_service (service)")
	assert.Contains(t, out, "File: `app/services/order_service.rb`")
	assert.Contains(t, out, "```\nclass OrderService")
	assert.Contains(t, out, "## Sources")
	assert.Contains(t, out, "- `order_service` (service) score=0.910")
}

func TestMarkdown_RoundTripsThroughGoldmark(t *testing.T) {
	out := Markdown(sampleContext())
	// Two candidate headings plus the trailing "## Sources" heading.
	assert.Equal(t, 3, CountHeadings(out))
}

func TestPlain_EmitsSeparatorAndSourceLines(t *testing.T) {
	out := Plain(sampleContext())
	assert.True(t, strings.Contains(out, "\n---\n"))
	assert.Contains(t, out, "[Source: order_service (service) score=0.910]")
}

func TestHuman_EmitsBoxFrameAndTable(t *testing.T) {
	out := Human(sampleContext())
	assert.Contains(t, out, "┌")
	assert.Contains(t, out, "└")
	assert.Contains(t, out, "Identifier")
	assert.Contains(t, out, "order_service")
}

func TestHuman_NoSourcesRendersPlaceholder(t *testing.T) {
	assembled := sampleContext()
	assembled.Sources = nil
	out := Human(assembled)
	assert.Contains(t, out, "(no sources)")
}
