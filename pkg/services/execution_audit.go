package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/logging"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/repositories"
	"github.com/ekaya-inc/ekaya-askdb/pkg/retry"
)

// DefaultAuditWriteTimeout bounds one durable audit write including retries.
const DefaultAuditWriteTimeout = 10 * time.Second

// ErrAuditStoreDisabled is returned by reads when no durable store is configured.
var ErrAuditStoreDisabled = errors.New("execution record store is not configured")

// ExecutionSink receives finished execution records.
type ExecutionSink interface {
	Save(ctx context.Context, rec *models.ExecutionRecord) error
}

// ExecutionAuditService persists execution records.
type ExecutionAuditService interface {
	// Record writes rec to every sink. The write is detached from ctx
	// cancellation so a client disconnecting after the answer was computed
	// cannot lose the record.
	Record(ctx context.Context, rec *models.ExecutionRecord) error

	// Recent returns the newest durable records, or ErrAuditStoreDisabled.
	Recent(ctx context.Context, limit int) ([]*models.ExecutionRecord, error)
}

type executionAuditService struct {
	log      ExecutionSink
	repo     repositories.ExecutionRecordRepository // nil when no durable store
	retryCfg *retry.Config
	timeout  time.Duration
	logger   *zap.Logger
}

// NewExecutionAuditService creates an ExecutionAuditService. log is the
// always-on structured log sink; repo may be nil.
func NewExecutionAuditService(log ExecutionSink, repo repositories.ExecutionRecordRepository, logger *zap.Logger) ExecutionAuditService {
	return &executionAuditService{
		log:      log,
		repo:     repo,
		retryCfg: retry.DefaultConfig(),
		timeout:  DefaultAuditWriteTimeout,
		logger:   logger.Named("execution-audit"),
	}
}

var _ ExecutionAuditService = (*executionAuditService)(nil)

func (s *executionAuditService) Record(ctx context.Context, rec *models.ExecutionRecord) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.log.Save(ctx, rec); err != nil {
		s.logger.Error("Failed to log execution record",
			zap.String("request_id", rec.ID.String()),
			zap.Error(err))
	}

	if s.repo == nil {
		return nil
	}

	err := retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		return s.repo.Create(ctx, rec)
	})
	if err != nil {
		s.logger.Error("Failed to persist execution record",
			zap.String("request_id", rec.ID.String()),
			zap.String("error", logging.SanitizeError(err)))
		return fmt.Errorf("persist execution record: %w", err)
	}
	return nil
}

func (s *executionAuditService) Recent(ctx context.Context, limit int) ([]*models.ExecutionRecord, error) {
	if s.repo == nil {
		return nil, ErrAuditStoreDisabled
	}
	return s.repo.ListRecent(ctx, limit)
}
