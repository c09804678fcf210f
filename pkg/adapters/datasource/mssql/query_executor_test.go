package mssql

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestExecutor(t *testing.T, maxRows int) (*QueryExecutor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewQueryExecutor(NewAdapterWithDB(validSQLConfig(), db, nil), maxRows, time.Second, zap.NewNop()), mock
}

func tenderRows() *sqlmock.Rows {
	return sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("ProjectName").OfType("NVARCHAR", ""),
		sqlmock.NewColumn("Value").OfType("DECIMAL", []byte{}),
	)
}

func TestQueryExecutor_Query(t *testing.T) {
	exec, mock := newTestExecutor(t, 10)
	query := "SELECT TOP 1 ProjectName, Value FROM tenderTender WHERE (IsDeleted = 0 OR IsDeleted IS NULL) ORDER BY Value DESC"

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WillReturnRows(tenderRows().AddRow([]byte("Bridge"), []byte("125000.50")))

	result, err := exec.Query(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, 1, result.RowCount)
	assert.False(t, result.Truncated)
	require.Len(t, result.Columns, 2)
	assert.Equal(t, "VARCHAR", result.Columns[0].Type)
	assert.Equal(t, "NUMERIC", result.Columns[1].Type)
	assert.Equal(t, "Bridge", result.Rows[0]["ProjectName"])
	assert.Equal(t, 125000.5, result.Rows[0]["Value"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryExecutor_Query_CapsRows(t *testing.T) {
	exec, mock := newTestExecutor(t, 2)

	rows := tenderRows()
	for i := 0; i < 5; i++ {
		rows.AddRow([]byte("p"), []byte("1"))
	}
	mock.ExpectQuery("SELECT ProjectName").WillReturnRows(rows)

	result, err := exec.Query(context.Background(), "SELECT ProjectName, Value FROM tenderTender")
	require.NoError(t, err)

	assert.Equal(t, 2, result.RowCount)
	assert.Len(t, result.Rows, 2)
	assert.True(t, result.Truncated)
}

func TestQueryExecutor_Query_EmptyResultIsNotNil(t *testing.T) {
	exec, mock := newTestExecutor(t, 0)
	assert.Equal(t, DefaultMaxRows, exec.maxRows)

	mock.ExpectQuery("SELECT").WillReturnRows(tenderRows())

	result, err := exec.Query(context.Background(), "SELECT ProjectName, Value FROM tenderTender")
	require.NoError(t, err)
	assert.NotNil(t, result.Rows)
	assert.Equal(t, 0, result.RowCount)
}

func TestQueryExecutor_Query_Error(t *testing.T) {
	exec, mock := newTestExecutor(t, 10)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("Invalid column name 'Budget'"))

	_, err := exec.Query(context.Background(), "SELECT Budget FROM tenderTender")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid column name")
}
