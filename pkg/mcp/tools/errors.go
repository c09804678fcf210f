package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// Errors are returned as successful tool results with IsError set so the
// calling model sees them instead of a protocol failure.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// askErrorResult maps a terminal pipeline error to a tool error. The message
// is the caller-safe text; driver and model errors never reach the client.
func askErrorResult(err error) *mcp.CallToolResult {
	code := "internal_error"
	switch {
	case errors.Is(err, apperrors.ErrEmptyQuestion):
		code = "invalid_parameters"
	case errors.Is(err, apperrors.ErrIntrospection):
		code = "schema_unavailable"
	case errors.Is(err, apperrors.ErrFallbackExhausted):
		code = "unanswerable"
	}
	return NewErrorResult(code, apperrors.PublicMessage(err))
}
