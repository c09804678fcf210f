package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource"
)

// DefaultMaxRows caps result sets when no limit is configured.
const DefaultMaxRows = 1000

// QueryExecutor runs generated statements against SQL Server.
type QueryExecutor struct {
	db      *sql.DB
	maxRows int
	timeout time.Duration
	logger  *zap.Logger
}

// NewQueryExecutor creates a query executor on the adapter's pool. Results
// are capped at maxRows (DefaultMaxRows when non-positive) and each query
// runs under timeout when it is positive.
func NewQueryExecutor(adapter *Adapter, maxRows int, timeout time.Duration, logger *zap.Logger) *QueryExecutor {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryExecutor{
		db:      adapter.DB(),
		maxRows: maxRows,
		timeout: timeout,
		logger:  logger.Named("mssql_query"),
	}
}

// Query runs sqlQuery as-is and returns at most maxRows rows. The statement
// is never rewritten; reading stops once the cap is reached.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string) (*datasource.QueryExecutionResult, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()

	rows, err := e.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columnNames, dbTypes, resultRows, truncated, err := scanRows(rows, e.maxRows)
	if err != nil {
		return nil, err
	}

	columns := make([]datasource.ColumnInfo, len(columnNames))
	for i, name := range columnNames {
		columns[i] = datasource.ColumnInfo{
			Name: name,
			Type: mapSQLServerType(dbTypes[i]),
		}
	}

	if truncated {
		e.logger.Warn("Query result truncated",
			zap.Int("max_rows", e.maxRows),
			zap.Duration("elapsed", time.Since(start)))
	}

	return &datasource.QueryExecutionResult{
		Columns:   columns,
		Rows:      resultRows,
		RowCount:  len(resultRows),
		Truncated: truncated,
	}, nil
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
