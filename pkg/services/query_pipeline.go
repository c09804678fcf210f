package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/audit"
	"github.com/ekaya-inc/ekaya-askdb/pkg/fallback"
	"github.com/ekaya-inc/ekaya-askdb/pkg/llm"
	"github.com/ekaya-inc/ekaya-askdb/pkg/logging"
	"github.com/ekaya-inc/ekaya-askdb/pkg/metrics"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/prompts"
	"github.com/ekaya-inc/ekaya-askdb/pkg/sql"
)

// Failure stages recorded on execution records.
const (
	StageIntrospection     = "introspection"
	StageModel             = "model"
	StageNormalize         = "normalize"
	StageValidate          = "validate"
	StageSoftDelete        = "soft_delete"
	StageSyntax            = "syntax"
	StageExecution         = "execution"
	StageFallbackExecution = "fallback_execution"
)

// QueryPipeline answers natural-language questions with a read-only query
// against the target database.
type QueryPipeline interface {
	// Ask runs one question through the pipeline. The returned response is
	// nil only when the request was canceled or the question is empty.
	// Terminal failures return both a failure response and an error
	// wrapping apperrors.ErrIntrospection or apperrors.ErrFallbackExhausted.
	Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error)
}

// QueryPipelineDeps are the collaborators of a QueryPipeline. Metrics and
// Security may be nil.
type QueryPipelineDeps struct {
	Introspector SchemaIntrospector
	Completer    llm.Completer
	Executor     datasource.QueryExecutor
	Fallback     *fallback.Selector
	Audit        ExecutionAuditService
	Security     *audit.SecurityAuditor
	Metrics      *metrics.PipelineMetrics
}

// QueryPipelineConfig configures a QueryPipeline.
type QueryPipelineConfig struct {
	// DegradeToStatic answers with the static schema when live
	// introspection fails instead of failing the request.
	DegradeToStatic bool
}

type queryPipeline struct {
	deps   QueryPipelineDeps
	cfg    QueryPipelineConfig
	now    func() time.Time
	logger *zap.Logger
}

// NewQueryPipeline creates a QueryPipeline.
func NewQueryPipeline(deps QueryPipelineDeps, cfg QueryPipelineConfig, logger *zap.Logger) QueryPipeline {
	return &queryPipeline{
		deps:   deps,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.Named("query-pipeline"),
	}
}

var _ QueryPipeline = (*queryPipeline)(nil)

// request is the per-request state. Nothing in it is shared.
type request struct {
	question string
	started  time.Time
	record   *models.ExecutionRecord
}

func (p *queryPipeline) Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, apperrors.ErrEmptyQuestion
	}

	r := &request{
		question: question,
		started:  p.now(),
		record:   models.NewExecutionRecord(question, prompts.EscapeQuestion(question)),
	}
	p.screenQuestion(ctx, r)

	snapshot, err := p.snapshot(ctx, req.UseSchemaIntrospection)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		p.recordError(r, StageIntrospection, err)
		return p.fail(ctx, r, err)
	}
	r.record.SchemaSource = snapshot.Source

	prompt := prompts.BuildNLToSQLPrompt(r.record.EscapedQuestion, snapshot, req.ConversationHistory)

	candidate, reason := p.generate(ctx, r, prompt)
	if ctxErr := ctx.Err(); ctxErr != nil && candidate == nil {
		return nil, ctxErr
	}

	if candidate != nil {
		r.record.FinalSQL = candidate.Text()
		result, err := p.execute(ctx, candidate.Text())
		if err == nil {
			return p.succeed(ctx, r, result), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		reason = fmt.Errorf("%w: %w", apperrors.ErrExecution, err)
		p.recordError(r, StageExecution, err)
		p.logger.Warn("Generated query failed, using fallback",
			zap.String("request_id", r.record.ID.String()),
			zap.String("sql", logging.SanitizeQuery(candidate.Text())),
			zap.String("error", logging.SanitizeError(err)))
	}

	return p.runFallback(ctx, r, reason)
}

// screenQuestion logs a security event when the question looks like a SQL
// injection attempt. The question never reaches SQL, so it is not refused.
func (p *queryPipeline) screenQuestion(ctx context.Context, r *request) {
	hit := sql.CheckTextForInjection(r.question)
	if hit == nil || p.deps.Security == nil {
		return
	}
	p.deps.Security.LogInjectionAttempt(ctx, r.record.ID, audit.SQLInjectionDetails{
		Question:    r.question,
		Fingerprint: hit.Fingerprint,
	})
}

func (p *queryPipeline) snapshot(ctx context.Context, useIntrospection bool) (*models.SchemaSnapshot, error) {
	if !useIntrospection {
		return p.deps.Introspector.Static(), nil
	}

	snapshot, err := p.deps.Introspector.Snapshot(ctx)
	if err == nil {
		p.deps.Metrics.SetSnapshotAge(p.now().Sub(snapshot.IntrospectedAt))
		return snapshot, nil
	}
	if ctx.Err() != nil || !p.cfg.DegradeToStatic {
		return nil, err
	}

	p.logger.Warn("Schema introspection failed, using static schema",
		zap.String("error", logging.SanitizeError(err)))
	return p.deps.Introspector.Static(), nil
}

// generate asks the model for a query and takes it through normalization,
// validation, soft-delete injection and the syntax guard. It returns the
// final candidate, or nil and the error that sends the request to fallback.
func (p *queryPipeline) generate(ctx context.Context, r *request, prompt string) (*models.QueryCandidate, error) {
	modelStarted := p.now()
	raw, err := p.deps.Completer.Complete(ctx, prompt)
	p.deps.Metrics.ObserveModelLatency(p.now().Sub(modelStarted))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.recordError(r, StageModel, err)
		p.logger.Warn("Language model call failed",
			zap.String("request_id", r.record.ID.String()),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("%w: %w", apperrors.ErrModelUnavailable, err)
	}
	r.record.GeneratedSQL = raw

	normalized := sql.Normalize(raw)
	r.record.CleanedSQL = normalized
	if normalized == "" {
		p.recordError(r, StageNormalize, apperrors.ErrNoQueryGenerated)
		return nil, apperrors.ErrNoQueryGenerated
	}
	candidate := models.NewQueryCandidate(raw, normalized)

	if err := sql.Validate(normalized); err != nil {
		return nil, p.reject(ctx, r, StageValidate, normalized, err)
	}
	if err := candidate.Advance(models.StageValidated, normalized); err != nil {
		return nil, err
	}

	filtered := sql.InjectSoftDeleteFilter(normalized)
	if !sql.HasSoftDeleteFilter(filtered) {
		return nil, p.reject(ctx, r, StageSoftDelete, normalized, sql.ErrSoftDeleteNotApplied)
	}
	if err := candidate.Advance(models.StagePolicyApplied, filtered); err != nil {
		return nil, err
	}

	if err := sql.GuardSyntax(filtered); err != nil {
		return nil, p.reject(ctx, r, StageSyntax, filtered, err)
	}
	if err := candidate.Advance(models.StageSyntaxChecked, filtered); err != nil {
		return nil, err
	}
	if err := candidate.Advance(models.StageFinal, filtered); err != nil {
		return nil, err
	}
	return candidate, nil
}

func (p *queryPipeline) reject(ctx context.Context, r *request, stage, text string, err error) error {
	rule := sql.RuleName(err)
	p.recordError(r, stage, err)
	p.deps.Metrics.ObserveUnsafeQuery(rule)
	if p.deps.Security != nil {
		p.deps.Security.LogUnsafeQuery(ctx, r.record.ID, audit.UnsafeQueryDetails{
			Rule: rule,
			SQL:  logging.SanitizeQuery(text),
		})
	}
	return fmt.Errorf("%w: %w", apperrors.ErrUnsafeQueryRejected, err)
}

func (p *queryPipeline) execute(ctx context.Context, query string) (*datasource.QueryExecutionResult, error) {
	started := p.now()
	result, err := p.deps.Executor.Query(ctx, query)
	p.deps.Metrics.ObserveQueryLatency(p.now().Sub(started))
	return result, err
}

// runFallback executes the fallback query for the question. It runs at
// most once per request; its failure is terminal.
func (p *queryPipeline) runFallback(ctx context.Context, r *request, reason error) (*models.AskResponse, error) {
	selection := p.deps.Fallback.Select(r.question)

	r.record.FallbackUsed = true
	r.record.FallbackRule = selection.Rule
	r.record.FallbackReason = apperrors.Reason(reason)
	r.record.FinalSQL = selection.Query
	p.deps.Metrics.ObserveFallback(r.record.FallbackReason)

	p.logger.Info("Using fallback query",
		zap.String("request_id", r.record.ID.String()),
		zap.String("rule", selection.Rule),
		zap.String("reason", r.record.FallbackReason))

	result, err := p.execute(ctx, selection.Query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		p.recordError(r, StageFallbackExecution, err)
		p.logger.Error("Fallback query failed",
			zap.String("request_id", r.record.ID.String()),
			zap.String("rule", selection.Rule),
			zap.String("error", logging.SanitizeError(err)))
		return p.fail(ctx, r, fmt.Errorf("%w: %w", apperrors.ErrFallbackExhausted, err))
	}
	return p.succeed(ctx, r, result), nil
}

// recordError keeps every error of the request on the record, recovered
// ones included. The stage of the latest error wins.
func (p *queryPipeline) recordError(r *request, stage string, err error) {
	msg := stage + ": " + logging.SanitizeError(err)
	if r.record.Error != nil {
		msg = *r.record.Error + "; " + msg
	}
	r.record.SetError(stage, msg)
}

func (p *queryPipeline) succeed(ctx context.Context, r *request, result *datasource.QueryExecutionResult) *models.AskResponse {
	r.record.Success = true
	r.record.ResultCount = result.RowCount

	outcome := metrics.OutcomeSuccess
	if r.record.FallbackUsed {
		outcome = metrics.OutcomeFallbackSuccess
	}
	p.finish(ctx, r, outcome)

	return &models.AskResponse{
		Question:     r.question,
		Query:        r.record.FinalSQL,
		Result:       result.Rows,
		FallbackUsed: r.record.FallbackUsed,
	}
}

func (p *queryPipeline) fail(ctx context.Context, r *request, err error) (*models.AskResponse, error) {
	r.record.Success = false
	p.finish(ctx, r, metrics.OutcomeFailed)

	return &models.AskResponse{
		Question: r.question,
		Error:    apperrors.PublicMessage(err),
	}, err
}

// finish writes the request's single execution record.
func (p *queryPipeline) finish(ctx context.Context, r *request, outcome string) {
	r.record.ExecutionTimeMs = p.now().Sub(r.started).Milliseconds()
	p.deps.Metrics.ObserveRequest(outcome)

	if err := p.deps.Audit.Record(ctx, r.record); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Execution record was not persisted",
			zap.String("request_id", r.record.ID.String()),
			zap.Error(err))
	}

	p.logger.Info("Question answered",
		zap.String("request_id", r.record.ID.String()),
		zap.String("outcome", outcome),
		zap.Bool("fallback_used", r.record.FallbackUsed),
		zap.Int("result_count", r.record.ResultCount),
		zap.Int64("execution_time_ms", r.record.ExecutionTimeMs))
}
