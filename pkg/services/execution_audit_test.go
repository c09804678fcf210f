package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/retry"
)

type fakeRecordRepo struct {
	mu       sync.Mutex
	created  []*models.ExecutionRecord
	errs     []error // returned by Create in call order
	calls    int
	ctxErrs  []error
	recent   []*models.ExecutionRecord
	lastSize int
}

func (r *fakeRecordRepo) Create(ctx context.Context, rec *models.ExecutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		if err != nil {
			return err
		}
	}
	r.created = append(r.created, rec)
	return nil
}

func (r *fakeRecordRepo) GetByID(context.Context, uuid.UUID) (*models.ExecutionRecord, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeRecordRepo) ListRecent(_ context.Context, limit int) ([]*models.ExecutionRecord, error) {
	r.lastSize = limit
	return r.recent, nil
}

func newTestAuditService(sink ExecutionSink, repo *fakeRecordRepo) *executionAuditService {
	var svc ExecutionAuditService
	if repo == nil {
		svc = NewExecutionAuditService(sink, nil, zap.NewNop())
	} else {
		svc = NewExecutionAuditService(sink, repo, zap.NewNop())
	}
	s := svc.(*executionAuditService)
	s.retryCfg = &retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, MaxSameErrorType: 5}
	return s
}

func TestExecutionAuditService_LogOnly(t *testing.T) {
	sink := &recordingSink{}
	s := newTestAuditService(sink, nil)

	rec := models.NewExecutionRecord("q", "q")
	require.NoError(t, s.Record(context.Background(), rec))
	assert.Equal(t, []*models.ExecutionRecord{rec}, sink.Records())

	_, err := s.Recent(context.Background(), 10)
	assert.ErrorIs(t, err, ErrAuditStoreDisabled)
}

func TestExecutionAuditService_WritesBothSinks(t *testing.T) {
	sink := &recordingSink{}
	repo := &fakeRecordRepo{}
	s := newTestAuditService(sink, repo)

	rec := models.NewExecutionRecord("q", "q")
	require.NoError(t, s.Record(context.Background(), rec))

	assert.Len(t, sink.Records(), 1)
	require.Len(t, repo.created, 1)
	assert.Same(t, rec, repo.created[0])
}

func TestExecutionAuditService_SurvivesCanceledCaller(t *testing.T) {
	repo := &fakeRecordRepo{}
	s := newTestAuditService(&recordingSink{}, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Record(ctx, models.NewExecutionRecord("q", "q")))
	require.Len(t, repo.created, 1)
	assert.NoError(t, repo.ctxErrs[0], "the write runs on a context detached from the caller")
}

func TestExecutionAuditService_RetriesTransientErrors(t *testing.T) {
	repo := &fakeRecordRepo{errs: []error{&pgconn.PgError{Code: "40001"}, nil}}
	s := newTestAuditService(&recordingSink{}, repo)

	require.NoError(t, s.Record(context.Background(), models.NewExecutionRecord("q", "q")))
	assert.Equal(t, 2, repo.calls)
	assert.Len(t, repo.created, 1)
}

func TestExecutionAuditService_PermanentErrorIsReturned(t *testing.T) {
	repo := &fakeRecordRepo{errs: []error{&pgconn.PgError{Code: "23502", Message: "null value"}}}
	sink := &recordingSink{}
	s := newTestAuditService(sink, repo)

	err := s.Record(context.Background(), models.NewExecutionRecord("q", "q"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist execution record")
	assert.Equal(t, 1, repo.calls)
	assert.Len(t, sink.Records(), 1, "the log sink is written even when the store fails")
}

func TestExecutionAuditService_Recent(t *testing.T) {
	rec := models.NewExecutionRecord("q", "q")
	repo := &fakeRecordRepo{recent: []*models.ExecutionRecord{rec}}
	s := newTestAuditService(&recordingSink{}, repo)

	got, err := s.Recent(context.Background(), 25)
	require.NoError(t, err)
	assert.Equal(t, []*models.ExecutionRecord{rec}, got)
	assert.Equal(t, 25, repo.lastSize)
}
