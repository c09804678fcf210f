package models

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionRecord is the audit entry written once per answered request.
// The pipeline fills it in as the request progresses and hands it to the
// audit sink exactly once; it must not be modified afterwards.
type ExecutionRecord struct {
	ID              uuid.UUID `json:"id"`
	Question        string    `json:"question"`
	EscapedQuestion string    `json:"escaped_question"`
	GeneratedSQL    string    `json:"generated_sql"`
	CleanedSQL      string    `json:"cleaned_sql"`
	FinalSQL        string    `json:"final_sql"`
	ResultCount     int       `json:"result_count"`
	FallbackUsed    bool      `json:"fallback_used"`
	FallbackRule    string    `json:"fallback_rule,omitempty"`
	FallbackReason  string    `json:"fallback_reason,omitempty"`
	Success         bool      `json:"success"`
	Error           *string   `json:"error,omitempty"`
	FailureStage    string    `json:"failure_stage,omitempty"`
	SchemaSource    string    `json:"schema_source,omitempty"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewExecutionRecord starts a record at request start.
func NewExecutionRecord(question, escapedQuestion string) *ExecutionRecord {
	return &ExecutionRecord{
		ID:              uuid.New(),
		Question:        question,
		EscapedQuestion: escapedQuestion,
		CreatedAt:       time.Now().UTC(),
	}
}

// SetError stores the error text and the stage that produced it.
func (r *ExecutionRecord) SetError(stage, message string) {
	r.FailureStage = stage
	r.Error = &message
}
