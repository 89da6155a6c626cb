package resilience

import (
	"errors"
	"regexp"

	coreerrors "codecortex/internal/errors"
)

// Severity is how urgently an escalated error needs attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
	SeverityUnknown  Severity = "unknown"
)

// Escalation is ErrorEscalator's verdict on one error.
type Escalation struct {
	Severity    Severity `json:"severity"`
	Category    string   `json:"category"`
	Remediation string   `json:"remediation"`
}

var unknownEscalation = Escalation{Severity: SeverityUnknown, Category: "unknown", Remediation: "investigate manually"}

// escalationRule matches either a coreerrors.ErrorCode or, failing
// that, a message pattern against a plain error.
type escalationRule struct {
	code    coreerrors.ErrorCode
	pattern *regexp.Regexp
	verdict Escalation
}

// transientTable covers errors expected to self-resolve; remediation
// is "retry" rather than operator action.
var transientTable = []escalationRule{
	{code: coreerrors.ErrorCodeTransient, verdict: Escalation{SeverityLow, "transient", "retry with backoff"}},
	{code: coreerrors.ErrorCodeCircuitOpen, verdict: Escalation{SeverityMedium, "circuit_open", "wait for breaker to half-open, check downstream health"}},
	{pattern: regexp.MustCompile(`(?i)timeout|deadline exceeded`), verdict: Escalation{SeverityLow, "timeout", "retry with backoff"}},
	{pattern: regexp.MustCompile(`(?i)connection reset|connection refused|broken pipe`), verdict: Escalation{SeverityMedium, "network", "check store connectivity"}},
	{pattern: regexp.MustCompile(`(?i)rate limit|too many requests`), verdict: Escalation{SeverityLow, "rate_limited", "back off and retry"}},
}

// permanentTable covers errors that will not resolve without
// operator or developer intervention.
var permanentTable = []escalationRule{
	{code: coreerrors.ErrorCodeInput, verdict: Escalation{SeverityLow, "input", "fix the caller's request"}},
	{code: coreerrors.ErrorCodeDimensionMismatch, verdict: Escalation{SeverityHigh, "config", "reindex with a consistent embedding model"}},
	{code: coreerrors.ErrorCodePermanent, verdict: Escalation{SeverityHigh, "data", "inspect and skip the offending unit"}},
	{code: coreerrors.ErrorCodeFatal, verdict: Escalation{SeverityCritical, "corruption", "restore from the last good checkpoint"}},
	{pattern: regexp.MustCompile(`(?i)no such file|not found`), verdict: Escalation{SeverityHigh, "missing_resource", "verify the extraction output directory"}},
	{pattern: regexp.MustCompile(`(?i)permission denied`), verdict: Escalation{SeverityHigh, "permissions", "check file and store credentials"}},
}

// ErrorEscalator classifies an error's severity, category, and
// recommended remediation by matching it against two ordered tables:
// transient errors are checked first, then permanent ones. An
// unmatched error returns SeverityUnknown.
type ErrorEscalator struct{}

// NewErrorEscalator builds an escalator. It holds no state.
func NewErrorEscalator() *ErrorEscalator {
	return &ErrorEscalator{}
}

// Escalate classifies err.
func (e *ErrorEscalator) Escalate(err error) Escalation {
	if err == nil {
		return unknownEscalation
	}

	var standard *coreerrors.StandardError
	var code coreerrors.ErrorCode
	if errors.As(err, &standard) {
		code = standard.ErrorInfo.Code
	}

	if v, ok := match(transientTable, code, err.Error()); ok {
		return v
	}
	if v, ok := match(permanentTable, code, err.Error()); ok {
		return v
	}
	return unknownEscalation
}

func match(table []escalationRule, code coreerrors.ErrorCode, message string) (Escalation, bool) {
	for _, rule := range table {
		if rule.code != "" && rule.code == code {
			return rule.verdict, true
		}
		if rule.pattern != nil && rule.pattern.MatchString(message) {
			return rule.verdict, true
		}
	}
	return Escalation{}, false
}
