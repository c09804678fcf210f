package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
)

type fakePipeline struct {
	resp *models.AskResponse
	err  error
	got  models.AskRequest
}

func (f *fakePipeline) Ask(_ context.Context, req models.AskRequest) (*models.AskResponse, error) {
	f.got = req
	return f.resp, f.err
}

type toolCallResponse struct {
	Result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func callAskTool(t *testing.T, pipeline *fakePipeline, arguments string) toolCallResponse {
	t.Helper()
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterAskTool(s, &AskToolDeps{Pipeline: pipeline, Logger: zap.NewNop()})

	request := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"ask_database","arguments":` + arguments + `}}`
	result := s.HandleMessage(context.Background(), []byte(request))

	resultBytes, err := json.Marshal(result)
	require.NoError(t, err)

	var response toolCallResponse
	require.NoError(t, json.Unmarshal(resultBytes, &response))
	return response
}

func TestAskTool_Success(t *testing.T) {
	pipeline := &fakePipeline{resp: &models.AskResponse{
		Question:     "how many employees",
		Query:        "SELECT COUNT(*) AS EmployeeCount FROM tenderEmployee WHERE (IsDeleted = 0 OR IsDeleted IS NULL)",
		Result:       []map[string]any{{"EmployeeCount": 42}},
		FallbackUsed: true,
	}}

	response := callAskTool(t, pipeline, `{"question":"how many employees"}`)

	require.Nil(t, response.Error)
	assert.False(t, response.Result.IsError)
	require.Len(t, response.Result.Content, 1)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(response.Result.Content[0].Text), &payload))
	assert.Equal(t, "how many employees", payload["question"])
	assert.Equal(t, true, payload["fallback_used"])
	assert.Equal(t, float64(1), payload["row_count"])
	assert.Contains(t, payload["query"], "tenderEmployee")

	assert.Equal(t, "how many employees", pipeline.got.Question)
	assert.True(t, pipeline.got.UseSchemaIntrospection)
}

func TestAskTool_IntrospectionFlag(t *testing.T) {
	pipeline := &fakePipeline{resp: &models.AskResponse{Question: "q"}}

	callAskTool(t, pipeline, `{"question":"q","use_schema_introspection":false}`)
	assert.False(t, pipeline.got.UseSchemaIntrospection)
}

func TestAskTool_MissingQuestion(t *testing.T) {
	pipeline := &fakePipeline{}

	response := callAskTool(t, pipeline, `{}`)

	assert.True(t, response.Result.IsError)
	require.Len(t, response.Result.Content, 1)
	assert.Contains(t, response.Result.Content[0].Text, "invalid_parameters")
	assert.Empty(t, pipeline.got.Question, "pipeline must not be called")
}

func TestAskTool_PipelineErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantMsg  string
	}{
		{name: "empty", err: apperrors.ErrEmptyQuestion, wantCode: "invalid_parameters", wantMsg: apperrors.MessageEmptyRequest},
		{name: "introspection", err: errors.Join(apperrors.ErrIntrospection, errors.New("login failed")), wantCode: "schema_unavailable", wantMsg: apperrors.MessageUnavailable},
		{name: "exhausted", err: errors.Join(apperrors.ErrFallbackExhausted, errors.New("Invalid object name 'x'")), wantCode: "unanswerable", wantMsg: apperrors.MessageRephrase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response := callAskTool(t, &fakePipeline{err: tt.err}, `{"question":"q"}`)

			require.Nil(t, response.Error)
			assert.True(t, response.Result.IsError)

			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal([]byte(response.Result.Content[0].Text), &errResp))
			assert.True(t, errResp.Error)
			assert.Equal(t, tt.wantCode, errResp.Code)
			assert.Equal(t, tt.wantMsg, errResp.Message)
			assert.NotContains(t, errResp.Message, "login failed")
		})
	}
}
