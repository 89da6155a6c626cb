package resilience

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	coreerrors "codecortex/internal/errors"
)

func TestErrorEscalator_MatchesStandardErrorCode(t *testing.T) {
	e := NewErrorEscalator()
	verdict := e.Escalate(coreerrors.NewFatalError("checkpoint magic mismatch", nil))

	assert.Equal(t, SeverityCritical, verdict.Severity)
	assert.Equal(t, "corruption", verdict.Category)
}

func TestErrorEscalator_MatchesMessagePattern(t *testing.T) {
	e := NewErrorEscalator()
	verdict := e.Escalate(errors.New("dial tcp: connection refused"))

	assert.Equal(t, SeverityMedium, verdict.Severity)
	assert.Equal(t, "network", verdict.Category)
}

func TestErrorEscalator_UnknownForUnmatchedError(t *testing.T) {
	e := NewErrorEscalator()
	verdict := e.Escalate(errors.New("something entirely novel happened"))

	assert.Equal(t, SeverityUnknown, verdict.Severity)
}

func TestErrorEscalator_NilErrorIsUnknown(t *testing.T) {
	e := NewErrorEscalator()
	verdict := e.Escalate(nil)

	assert.Equal(t, SeverityUnknown, verdict.Severity)
}

func TestErrorEscalator_TransientCheckedBeforePermanent(t *testing.T) {
	e := NewErrorEscalator()
	verdict := e.Escalate(coreerrors.NewTransientError("embedding request timed out", nil))

	assert.Equal(t, SeverityLow, verdict.Severity)
	assert.Equal(t, "transient", verdict.Category)
}
