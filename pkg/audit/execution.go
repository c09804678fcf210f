package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/logging"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
)

// ExecutionLogger writes execution records to the structured log. It is the
// always-on audit sink; a durable store may be added alongside it.
type ExecutionLogger struct {
	logger *zap.Logger
}

// NewExecutionLogger creates an ExecutionLogger under the "execution_audit"
// namespace.
func NewExecutionLogger(logger *zap.Logger) *ExecutionLogger {
	return &ExecutionLogger{logger: logger.Named("execution_audit")}
}

// Save logs the record at INFO for successes and WARN for failures. It never
// fails.
func (l *ExecutionLogger) Save(_ context.Context, rec *models.ExecutionRecord) error {
	fields := []zap.Field{
		zap.String("request_id", rec.ID.String()),
		zap.String("question", logging.TruncateString(rec.EscapedQuestion, 200)),
		zap.String("generated_sql", logging.SanitizeQuery(rec.GeneratedSQL)),
		zap.String("cleaned_sql", logging.SanitizeQuery(rec.CleanedSQL)),
		zap.String("final_sql", logging.SanitizeQuery(rec.FinalSQL)),
		zap.Int("result_count", rec.ResultCount),
		zap.Bool("fallback_used", rec.FallbackUsed),
		zap.Bool("success", rec.Success),
		zap.Int64("execution_time_ms", rec.ExecutionTimeMs),
		zap.String("schema_source", rec.SchemaSource),
	}
	if rec.FallbackUsed {
		fields = append(fields,
			zap.String("fallback_rule", rec.FallbackRule),
			zap.String("fallback_reason", rec.FallbackReason),
		)
	}
	if rec.Error != nil {
		fields = append(fields,
			zap.String("error", *rec.Error),
			zap.String("failure_stage", rec.FailureStage),
		)
	}

	if rec.Success {
		l.logger.Info("Query executed", fields...)
	} else {
		l.logger.Warn("Query failed", fields...)
	}
	return nil
}
