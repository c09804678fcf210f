package apperrors

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrEmptyQuestion = errors.New("question is required")

	// Pipeline taxonomy. Everything except ErrIntrospection and
	// ErrFallbackExhausted is absorbed by the pipeline and turned into a
	// fallback attempt.
	ErrIntrospection       = errors.New("schema introspection failed")
	ErrModelUnavailable    = errors.New("language model unavailable")
	ErrNoQueryGenerated    = errors.New("no query generated")
	ErrUnsafeQueryRejected = errors.New("unsafe query rejected")
	ErrExecution           = errors.New("query execution failed")
	ErrFallbackExhausted   = errors.New("fallback exhausted")
)

// Messages returned to callers. Raw database or model error text never
// leaves the process; it is kept in the execution record only.
const (
	MessageRephrase     = "Unable to answer this question. Please rephrase it and try again."
	MessageUnavailable  = "The database schema is currently unavailable. Please try again later."
	MessageEmptyRequest = "question is required"
	MessageCanceled     = "request canceled"
)

// PublicMessage maps a pipeline error to the caller-safe message.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyQuestion):
		return MessageEmptyRequest
	case errors.Is(err, ErrIntrospection):
		return MessageUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return MessageCanceled
	default:
		return MessageRephrase
	}
}

// Reason returns the short snake_case name of a taxonomy error, used for
// metrics labels and the fallback reason in execution records.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrIntrospection):
		return "introspection_error"
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, ErrNoQueryGenerated):
		return "no_query_generated"
	case errors.Is(err, ErrUnsafeQueryRejected):
		return "unsafe_query_rejected"
	case errors.Is(err, ErrExecution):
		return "execution_error"
	case errors.Is(err, ErrFallbackExhausted):
		return "fallback_exhausted"
	default:
		return "unknown"
	}
}
