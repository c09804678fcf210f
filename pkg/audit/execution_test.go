package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
)

func TestExecutionLogger_Success(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	sink := NewExecutionLogger(logger)

	rec := models.NewExecutionRecord("What's the biggest tender?", "What''s the biggest tender?")
	rec.GeneratedSQL = "```sql\nSELECT TOP 1 ProjectName FROM tenderTender ORDER BY Value DESC\n```"
	rec.CleanedSQL = "SELECT TOP 1 ProjectName FROM tenderTender ORDER BY Value DESC"
	rec.FinalSQL = "SELECT TOP 1 ProjectName FROM tenderTender WHERE (IsDeleted = 0 OR IsDeleted IS NULL) ORDER BY Value DESC"
	rec.ResultCount = 1
	rec.Success = true
	rec.ExecutionTimeMs = 42
	rec.SchemaSource = models.SchemaSourceLive

	require.NoError(t, sink.Save(context.Background(), rec))

	logs := recorded.All()
	require.Len(t, logs, 1)
	entry := logs[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	assert.Equal(t, "execution_audit", entry.LoggerName)

	fields := entry.ContextMap()
	assert.Equal(t, rec.ID.String(), fields["request_id"])
	assert.Equal(t, "What''s the biggest tender?", fields["question"])
	assert.Equal(t, int64(1), fields["result_count"])
	assert.Equal(t, false, fields["fallback_used"])
	assert.Equal(t, true, fields["success"])
	assert.Equal(t, int64(42), fields["execution_time_ms"])
	assert.NotContains(t, fields, "error")
	assert.NotContains(t, fields, "fallback_rule")
}

func TestExecutionLogger_Failure(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	sink := NewExecutionLogger(logger)

	rec := models.NewExecutionRecord("largest tender", "largest tender")
	rec.FallbackUsed = true
	rec.FallbackRule = "largest_tender"
	rec.FallbackReason = "execution_error"
	rec.SetError("fallback_execution", "connection reset")

	require.NoError(t, sink.Save(context.Background(), rec))

	logs := recorded.All()
	require.Len(t, logs, 1)
	entry := logs[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, "largest_tender", fields["fallback_rule"])
	assert.Equal(t, "execution_error", fields["fallback_reason"])
	assert.Equal(t, "connection reset", fields["error"])
	assert.Equal(t, "fallback_execution", fields["failure_stage"])
}
