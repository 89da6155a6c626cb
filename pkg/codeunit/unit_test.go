package codeunit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{"empty", "", 0},
		{"short", "abc", 1},
		{"seven chars", "1234567", 2},
		{"exact multiple", "12345678901234", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EstimateTokens(tt.text))
		})
	}
}

func TestSourceHashOf_Deterministic(t *testing.T) {
	a := SourceHashOf("class Foo\nend\n")
	b := SourceHashOf("class Foo\nend\n")
	assert.Equal(t, a, b)

	c := SourceHashOf("class Bar\nend\n")
	assert.NotEqual(t, a, c)
}

func TestNewUnit_ComputesDerivedFields(t *testing.T) {
	u := NewUnit("app/models/user.rb:User", TypeModel, "", "app/models/user.rb", "class User\nend\n", nil, nil)
	require.NotNil(t, u)
	assert.Equal(t, SourceHashOf(u.SourceCode), u.SourceHash)
	assert.Equal(t, EstimateTokens(u.SourceCode), u.EstimatedTokens)
}

func TestUnit_Refresh_RecomputesAfterMutation(t *testing.T) {
	u := NewUnit("id", TypeService, "", "", "short", nil, nil)
	u.SourceCode = "a much longer source body than before"
	u.Refresh()
	assert.Equal(t, SourceHashOf(u.SourceCode), u.SourceHash)
	assert.Equal(t, EstimateTokens(u.SourceCode), u.EstimatedTokens)
}
