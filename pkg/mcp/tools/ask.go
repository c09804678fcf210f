package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/services"
)

// AskToolName is the MCP name of the natural-language query tool.
const AskToolName = "ask_database"

// AskToolDeps contains dependencies for the ask_database tool.
type AskToolDeps struct {
	Pipeline services.QueryPipeline
	Logger   *zap.Logger
}

// askResult is the tool payload on success. It mirrors the HTTP response.
type askResult struct {
	Question     string           `json:"question"`
	Query        string           `json:"query"`
	Result       []map[string]any `json:"result"`
	RowCount     int              `json:"row_count"`
	FallbackUsed bool             `json:"fallback_used"`
}

// RegisterAskTool adds the ask_database tool to the MCP server.
func RegisterAskTool(s *server.MCPServer, deps *AskToolDeps) {
	tool := mcp.NewTool(
		AskToolName,
		mcp.WithDescription(
			"Answer a business question about tenders and employees in plain language. "+
				"The question is translated to a read-only SQL Server query, checked for safety and executed. "+
				"Deleted records are always excluded. Returns the query that ran and its rows. "+
				"Example: ask_database(question='What was the largest approved tender in 2024?')",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question in natural language"),
		),
		mcp.WithBoolean(
			"use_schema_introspection",
			mcp.Description("Describe the live database schema to the model (default true). Set false to use the built-in schema."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return NewErrorResult("invalid_parameters", "question is required"), nil
		}

		resp, err := deps.Pipeline.Ask(ctx, models.AskRequest{
			Question:               question,
			UseSchemaIntrospection: req.GetBool("use_schema_introspection", true),
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			deps.Logger.Debug("ask_database failed", zap.String("reason", apperrors.Reason(err)))
			return askErrorResult(err), nil
		}

		rows := resp.Result
		if rows == nil {
			rows = []map[string]any{}
		}
		payload, err := json.Marshal(askResult{
			Question:     resp.Question,
			Query:        resp.Query,
			Result:       rows,
			RowCount:     len(rows),
			FallbackUsed: resp.FallbackUsed,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal ask result: %w", err)
		}
		return mcp.NewToolResultText(string(payload)), nil
	})
}
