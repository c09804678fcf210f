package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/database"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
)

// MaxListLimit bounds ListRecent.
const MaxListLimit = 500

// ExecutionRecordRepository provides data access for execution records.
// Records are append-only: there is no update or delete.
type ExecutionRecordRepository interface {
	// Create inserts a record. Inserting the same ID twice is a no-op so a
	// retried write cannot produce a duplicate.
	Create(ctx context.Context, rec *models.ExecutionRecord) error

	// GetByID returns a record or apperrors.ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*models.ExecutionRecord, error)

	// ListRecent returns the newest records first.
	ListRecent(ctx context.Context, limit int) ([]*models.ExecutionRecord, error)
}

type executionRecordRepository struct {
	db *database.DB
}

// NewExecutionRecordRepository creates a new ExecutionRecordRepository.
func NewExecutionRecordRepository(db *database.DB) ExecutionRecordRepository {
	return &executionRecordRepository{db: db}
}

var _ ExecutionRecordRepository = (*executionRecordRepository)(nil)

const executionRecordColumns = `id, question, escaped_question, generated_sql, cleaned_sql, final_sql,
		result_count, fallback_used, fallback_rule, fallback_reason, success, error,
		failure_stage, schema_source, execution_time_ms, created_at`

func (r *executionRecordRepository) Create(ctx context.Context, rec *models.ExecutionRecord) error {
	query := `
		INSERT INTO askdb_execution_records (` + executionRecordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.Pool.Exec(ctx, query,
		rec.ID,
		rec.Question,
		rec.EscapedQuestion,
		rec.GeneratedSQL,
		rec.CleanedSQL,
		rec.FinalSQL,
		rec.ResultCount,
		rec.FallbackUsed,
		nullIfEmpty(rec.FallbackRule),
		nullIfEmpty(rec.FallbackReason),
		rec.Success,
		rec.Error,
		nullIfEmpty(rec.FailureStage),
		nullIfEmpty(rec.SchemaSource),
		rec.ExecutionTimeMs,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create execution record: %w", err)
	}
	return nil
}

func (r *executionRecordRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ExecutionRecord, error) {
	query := `SELECT ` + executionRecordColumns + ` FROM askdb_execution_records WHERE id = $1`

	rec, err := scanExecutionRecord(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution record: %w", err)
	}
	return rec, nil
}

func (r *executionRecordRepository) ListRecent(ctx context.Context, limit int) ([]*models.ExecutionRecord, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `SELECT ` + executionRecordColumns + `
		FROM askdb_execution_records
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution records: %w", err)
	}
	defer rows.Close()

	var records []*models.ExecutionRecord
	for rows.Next() {
		rec, err := scanExecutionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution records: %w", err)
	}
	return records, nil
}

func scanExecutionRecord(row pgx.Row) (*models.ExecutionRecord, error) {
	var rec models.ExecutionRecord
	var fallbackRule, fallbackReason, failureStage, schemaSource *string

	err := row.Scan(
		&rec.ID,
		&rec.Question,
		&rec.EscapedQuestion,
		&rec.GeneratedSQL,
		&rec.CleanedSQL,
		&rec.FinalSQL,
		&rec.ResultCount,
		&rec.FallbackUsed,
		&fallbackRule,
		&fallbackReason,
		&rec.Success,
		&rec.Error,
		&failureStage,
		&schemaSource,
		&rec.ExecutionTimeMs,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.FallbackRule = deref(fallbackRule)
	rec.FallbackReason = deref(fallbackReason)
	rec.FailureStage = deref(failureStage)
	rec.SchemaSource = deref(schemaSource)
	return &rec, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
