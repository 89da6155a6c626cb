// Package errors provides the standardized error taxonomy shared by the
// retrieval core and its MCP/HTTP surfaces.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fredcamaral/gomcp-sdk/protocol"
)

// ErrorCode is one of the six kinds named in the error handling design.
type ErrorCode string

const (
	// ErrorCodeInput covers malformed queries and invalid options.
	// Surfaced to the caller.
	ErrorCodeInput ErrorCode = "INPUT_ERROR"
	// ErrorCodeDimensionMismatch: vector length != store dimensions
	// during indexing. The unit is skipped and logged; indexing continues.
	ErrorCodeDimensionMismatch ErrorCode = "DIMENSION_MISMATCH"
	// ErrorCodeTransient: timeouts, rate limits, network resets. Retried
	// by RetryableProvider; may trip the circuit breaker.
	ErrorCodeTransient ErrorCode = "TRANSIENT"
	// ErrorCodeCircuitOpen: breaker refused a call. Never surfaces to the
	// caller of retrieve(); triggers a degradation tier instead.
	ErrorCodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"
	// ErrorCodePermanent: parse errors, missing required metadata, config
	// errors. Unit/batch skipped; indexing continues; retrieval degrades.
	ErrorCodePermanent ErrorCode = "PERMANENT"
	// ErrorCodeFatal: unrecoverable invariant violation. Raised to the
	// caller of index_all; retrieve still returns a tier-4 result.
	ErrorCodeFatal ErrorCode = "FATAL"
)

// StandardError is the unified error envelope across MCP and HTTP.
type StandardError struct {
	ErrorInfo ErrorDetails `json:"error"`
}

// Error implements the error interface.
func (e *StandardError) Error() string {
	return e.ErrorInfo.Message
}

// ErrorDetails carries the code, message, and optional structured detail.
type ErrorDetails struct {
	Code     ErrorCode   `json:"code"`
	Message  string      `json:"message"`
	Details  interface{} `json:"details,omitempty"`
	TraceID  string      `json:"trace_id,omitempty"`
}

// NewStandardError builds a StandardError of the given kind.
func NewStandardError(code ErrorCode, message string, details interface{}) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// NewInputError wraps a caller-facing input validation failure.
func NewInputError(message string, details interface{}) *StandardError {
	return NewStandardError(ErrorCodeInput, message, details)
}

// NewDimensionMismatchError reports a vector/store dimension mismatch.
func NewDimensionMismatchError(gotDim, wantDim int) *StandardError {
	return NewStandardError(ErrorCodeDimensionMismatch,
		fmt.Sprintf("vector has %d dimensions, store expects %d", gotDim, wantDim),
		map[string]int{"got": gotDim, "want": wantDim})
}

// NewTransientError wraps a retryable failure.
func NewTransientError(message string, cause error) *StandardError {
	details := map[string]interface{}{}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	return NewStandardError(ErrorCodeTransient, message, details)
}

// ErrCircuitOpen is returned when a breaker refuses a call.
var ErrCircuitOpen = NewStandardError(ErrorCodeCircuitOpen, "circuit breaker is open", nil)

// NewPermanentError wraps a non-retryable failure (parse/config/missing data).
func NewPermanentError(message string, cause error) *StandardError {
	details := map[string]interface{}{}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	return NewStandardError(ErrorCodePermanent, message, details)
}

// NewFatalError wraps an unrecoverable invariant violation.
func NewFatalError(message string, cause error) *StandardError {
	details := map[string]interface{}{}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	return NewStandardError(ErrorCodeFatal, message, details)
}

// WithTraceID attaches a trace ID for debugging.
func (e *StandardError) WithTraceID(traceID string) *StandardError {
	e.ErrorInfo.TraceID = traceID
	return e
}

// ToJSONRPCError converts StandardError to a JSON-RPC error response for
// the MCP transport.
func (e *StandardError) ToJSONRPCError(id interface{}) *protocol.JSONRPCResponse {
	var rpcCode int
	switch e.ErrorInfo.Code {
	case ErrorCodeInput, ErrorCodeDimensionMismatch:
		rpcCode = -32602 // invalid params
	case ErrorCodeCircuitOpen, ErrorCodeTransient:
		rpcCode = -32001 // server error (custom range)
	case ErrorCodeFatal, ErrorCodePermanent:
		rpcCode = -32603 // internal error
	default:
		rpcCode = -32603
	}

	return &protocol.JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &protocol.JSONRPCError{
			Code:    rpcCode,
			Message: e.ErrorInfo.Message,
			Data:    e,
		},
	}
}

// ToHTTPStatus maps a StandardError to an HTTP status code.
func (e *StandardError) ToHTTPStatus() int {
	switch e.ErrorInfo.Code {
	case ErrorCodeInput, ErrorCodeDimensionMismatch:
		return http.StatusBadRequest
	case ErrorCodeCircuitOpen, ErrorCodeTransient:
		return http.StatusServiceUnavailable
	case ErrorCodeFatal, ErrorCodePermanent:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON serializes the error to JSON bytes.
func (e *StandardError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WriteHTTPError writes a StandardError as an HTTP JSON response.
func (e *StandardError) WriteHTTPError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if e.ErrorInfo.TraceID != "" {
		w.Header().Set("X-Trace-ID", e.ErrorInfo.TraceID)
	}
	w.WriteHeader(e.ToHTTPStatus())
	body, _ := e.ToJSON()
	_, _ = w.Write(body)
}

// IsRetryable reports whether the error kind should be retried by
// RetryableProvider (§4.2): transient errors are retried, CircuitOpen is
// not, and neither are input/permanent/fatal failures.
func IsRetryable(err error) bool {
	se, ok := err.(*StandardError)
	if !ok {
		return true // unknown errors default to retryable, matching retry.DefaultRetryIf
	}
	return se.ErrorInfo.Code == ErrorCodeTransient
}

// Severity grades how urgent an error is. resilience.ErrorEscalator
// reports its own resilience.Severity type, not this one.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// timestamp returns the current UTC time in RFC 3339 form.
func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
