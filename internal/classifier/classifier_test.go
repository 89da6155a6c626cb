package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"codecortex/pkg/retrieval"
)

func TestClassify_Intent(t *testing.T) {
	cases := []struct {
		query string
		want  retrieval.Intent
	}{
		{"how does OrderService process a refund", retrieval.IntentUnderstand},
		{"where is the refund validation defined", retrieval.IntentFind},
		{"trace the flow of a checkout request", retrieval.IntentTrace},
		{"implement a new notification job", retrieval.IntentImplement},
		{"fix the crash in PaymentController", retrieval.IntentDebug},
		{"tell me about widgets", retrieval.IntentOther},
	}

	for _, tc := range cases {
		got := Classify(tc.query)
		assert.Equal(t, tc.want, got.Intent, "query: %s", tc.query)
	}
}

func TestClassify_ScopeSpecificForIdentifiers(t *testing.T) {
	got := Classify("how does OrderService work")
	assert.Equal(t, retrieval.ScopeSpecific, got.Scope)

	got = Classify("explain the refund_policy logic")
	assert.Equal(t, retrieval.ScopeSpecific, got.Scope)
}

func TestClassify_ScopeBroadForEnumerativePhrasing(t *testing.T) {
	got := Classify("list all the controllers in this app")
	assert.Equal(t, retrieval.ScopeBroad, got.Scope)
}

func TestClassify_ScopeFocusedByDefault(t *testing.T) {
	got := Classify("what happens during checkout")
	assert.Equal(t, retrieval.ScopeFocused, got.Scope)
}

func TestClassify_TargetType(t *testing.T) {
	got := Classify("where is the user model defined")
	assert.Equal(t, "model", got.TargetType)

	got = Classify("what does the application do")
	assert.Equal(t, retrieval.NoTargetType, got.TargetType)
}

func TestClassify_FrameworkContext(t *testing.T) {
	got := Classify("how does the before_save callback work on this model")
	assert.True(t, got.FrameworkContext)

	got = Classify("what is the capital of France")
	assert.False(t, got.FrameworkContext)
}

func TestClassify_KeywordsDropStopWordsAndShortTokens(t *testing.T) {
	got := Classify("how does the OrderService validate a refund")
	assert.NotContains(t, got.Keywords, "the")
	assert.NotContains(t, got.Keywords, "how")
	assert.NotContains(t, got.Keywords, "a")
	assert.Contains(t, got.Keywords, "orderservice")
	assert.Contains(t, got.Keywords, "validate")
	assert.Contains(t, got.Keywords, "refund")
}

func TestClassify_KeywordsDeduplicatePreservingOrder(t *testing.T) {
	got := Classify("refund refund policy refund")
	assert.Equal(t, []string{"refund", "policy"}, got.Keywords)
}

func TestClassify_OnlyStopWordsYieldsEmptyKeywords(t *testing.T) {
	got := Classify("is the a an")
	assert.Empty(t, got.Keywords)
}
