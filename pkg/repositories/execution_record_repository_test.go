//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/testhelpers"
)

func setupExecutionRecordTest(t *testing.T) (ExecutionRecordRepository, *testhelpers.AuditDB) {
	t.Helper()
	auditDB := testhelpers.GetAuditDB(t)
	return NewExecutionRecordRepository(auditDB.DB), auditDB
}

func cleanupExecutionRecords(t *testing.T, auditDB *testhelpers.AuditDB, ids ...uuid.UUID) {
	t.Helper()
	for _, id := range ids {
		_, err := auditDB.DB.Pool.Exec(context.Background(), "DELETE FROM askdb_execution_records WHERE id = $1", id)
		require.NoError(t, err)
	}
}

func TestExecutionRecordRepository_CreateAndGet(t *testing.T) {
	repo, auditDB := setupExecutionRecordTest(t)
	ctx := context.Background()

	rec := models.NewExecutionRecord("What's the biggest tender?", "What''s the biggest tender?")
	rec.GeneratedSQL = "SELECT TOP 1 ProjectName FROM tenderTender ORDER BY Value DESC"
	rec.CleanedSQL = rec.GeneratedSQL
	rec.FinalSQL = "SELECT TOP 1 ProjectName FROM tenderTender WHERE (IsDeleted = 0 OR IsDeleted IS NULL) ORDER BY Value DESC"
	rec.ResultCount = 1
	rec.Success = true
	rec.SchemaSource = models.SchemaSourceLive
	rec.ExecutionTimeMs = 120
	defer cleanupExecutionRecords(t, auditDB, rec.ID)

	require.NoError(t, repo.Create(ctx, rec))

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Question, got.Question)
	assert.Equal(t, rec.EscapedQuestion, got.EscapedQuestion)
	assert.Equal(t, rec.FinalSQL, got.FinalSQL)
	assert.Equal(t, 1, got.ResultCount)
	assert.True(t, got.Success)
	assert.False(t, got.FallbackUsed)
	assert.Nil(t, got.Error)
	assert.Equal(t, "", got.FallbackRule)
	assert.Equal(t, models.SchemaSourceLive, got.SchemaSource)
	assert.WithinDuration(t, rec.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestExecutionRecordRepository_CreateIsIdempotent(t *testing.T) {
	repo, auditDB := setupExecutionRecordTest(t)
	ctx := context.Background()

	rec := models.NewExecutionRecord("largest tender", "largest tender")
	rec.FallbackUsed = true
	rec.FallbackRule = "largest_tender"
	rec.FallbackReason = "execution_error"
	rec.SetError("fallback_execution", "connection reset")
	defer cleanupExecutionRecords(t, auditDB, rec.ID)

	require.NoError(t, repo.Create(ctx, rec))
	require.NoError(t, repo.Create(ctx, rec))

	var count int
	err := auditDB.DB.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM askdb_execution_records WHERE id = $1", rec.ID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Error)
	assert.Equal(t, "connection reset", *got.Error)
	assert.Equal(t, "fallback_execution", got.FailureStage)
	assert.Equal(t, "execution_error", got.FallbackReason)
}

func TestExecutionRecordRepository_GetByID_NotFound(t *testing.T) {
	repo, _ := setupExecutionRecordTest(t)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestExecutionRecordRepository_ListRecent(t *testing.T) {
	repo, auditDB := setupExecutionRecordTest(t)
	ctx := context.Background()

	older := models.NewExecutionRecord("older", "older")
	older.CreatedAt = time.Now().UTC().Add(time.Hour)
	newer := models.NewExecutionRecord("newer", "newer")
	newer.CreatedAt = older.CreatedAt.Add(time.Minute)
	defer cleanupExecutionRecords(t, auditDB, older.ID, newer.ID)

	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	records, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, newer.ID, records[0].ID)
	assert.Equal(t, older.ID, records[1].ID)
}
