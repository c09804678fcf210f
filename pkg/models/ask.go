package models

import "encoding/json"

// ConversationTurn is one prior exchange passed in as prompt context.
// Only the question and the row count are kept; result rows never are.
type ConversationTurn struct {
	Question    string `json:"question"`
	ResultCount *int   `json:"result_count,omitempty"`
}

// AskRequest is the inbound request to the query pipeline.
type AskRequest struct {
	Question               string             `json:"question"`
	ConversationHistory    []ConversationTurn `json:"conversation_history,omitempty"`
	UseSchemaIntrospection bool               `json:"use_schema_introspection"`
}

// AskResponse is returned to callers. A response with Error set is a failure
// and serializes as {error, question} only.
type AskResponse struct {
	Question     string
	Query        string
	Result       []map[string]any
	FallbackUsed bool
	Error        string
}

type askSuccessJSON struct {
	Question     string           `json:"question"`
	Query        string           `json:"query"`
	Result       []map[string]any `json:"result"`
	FallbackUsed bool             `json:"fallbackUsed"`
}

type askFailureJSON struct {
	Error    string `json:"error"`
	Question string `json:"question"`
}

// MarshalJSON emits the success or failure shape.
func (r AskResponse) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(askFailureJSON{Error: r.Error, Question: r.Question})
	}
	rows := r.Result
	if rows == nil {
		rows = []map[string]any{}
	}
	return json.Marshal(askSuccessJSON{
		Question:     r.Question,
		Query:        r.Query,
		Result:       rows,
		FallbackUsed: r.FallbackUsed,
	})
}
