package llms

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

// DefaultErrorStatus is used when the provider status is unknown
const DefaultErrorStatus = http.StatusBadGateway

// CallError is returned by Model.GenerateContent
type CallError struct {
	StatusCode int        `json:"status_code"`
	Message    string     `json:"error"`
	Details    string     `json:"details,omitempty"`
	TraceStep  *TraceStep `json:"trace_step,omitempty"`
}

func (e *CallError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// NewCallError returns CallError with status defaulted to 502
func NewCallError(status int, message string, cause error, trace *TraceStep) *CallError {
	if status < 400 {
		status = DefaultErrorStatus
	}
	e := &CallError{
		StatusCode: status,
		Message:    message,
		TraceStep:  trace,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	if trace != nil && trace.Response == nil {
		trace.WithResponse(status, map[string]any{"error": e.Details})
	}
	return e
}

// AsCallError returns CallError from err.
// Errors that are not CallError are wrapped with status 502.
func AsCallError(err error) *CallError {
	if err == nil {
		return nil
	}
	var ce *CallError
	if errors.As(err, &ce) {
		return ce
	}
	return &CallError{
		StatusCode: DefaultErrorStatus,
		Message:    "LLM call failed.",
		Details:    err.Error(),
	}
}
