package mssql

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDiscoverer(t *testing.T) (*SchemaDiscoverer, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewSchemaDiscoverer(NewAdapterWithDB(validSQLConfig(), db, nil), zap.NewNop()), mock
}

func TestSchemaDiscoverer_DiscoverTables(t *testing.T) {
	d, mock := newTestDiscoverer(t)

	mock.ExpectQuery(regexp.QuoteMeta(discoverTablesQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name", "row_count"}).
			AddRow("dbo", "tenderEmployee", int64(12)).
			AddRow("dbo", "tenderTender", int64(340)))

	tables, err := d.DiscoverTables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "tenderEmployee", tables[0].TableName)
	assert.Equal(t, int64(340), tables[1].RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaDiscoverer_DiscoverTables_Error(t *testing.T) {
	d, mock := newTestDiscoverer(t)

	mock.ExpectQuery(regexp.QuoteMeta(discoverTablesQuery)).WillReturnError(errors.New("login failed"))

	_, err := d.DiscoverTables(context.Background())
	assert.ErrorContains(t, err, "query tables")
}

func TestSchemaDiscoverer_DiscoverColumns(t *testing.T) {
	d, mock := newTestDiscoverer(t)

	cols := []string{"column_name", "data_type", "max_length", "precision", "scale", "is_nullable", "ordinal_position", "is_primary_key"}
	mock.ExpectQuery(regexp.QuoteMeta(discoverColumnsQuery)).
		WithArgs(sql.Named("schema", "dbo"), sql.Named("table", "tenderTender")).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("Id", "int", 4, 10, 0, 0, 1, 1).
			AddRow("ProjectName", "nvarchar", 510, 0, 0, 1, 2, 0).
			AddRow("Value", "decimal", 9, 18, 2, 1, 3, 0))

	columns, err := d.DiscoverColumns(context.Background(), "dbo", "tenderTender")
	require.NoError(t, err)
	require.Len(t, columns, 3)

	assert.Equal(t, "Id", columns[0].ColumnName)
	assert.Equal(t, "INTEGER", columns[0].DataType)
	assert.True(t, columns[0].IsPrimaryKey)
	assert.False(t, columns[0].IsNullable)
	assert.Equal(t, "VARCHAR(255)", columns[1].DataType)
	assert.Equal(t, "NUMERIC(18,2)", columns[2].DataType)
	assert.Equal(t, 3, columns[2].OrdinalPosition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaDiscoverer_SampleRows(t *testing.T) {
	d, mock := newTestDiscoverer(t)

	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("Id").OfType("INT", int64(0)),
		sqlmock.NewColumn("ProjectName").OfType("NVARCHAR", ""),
	).AddRow(int64(1), []byte("Bridge")).AddRow(int64(2), []byte("Road"))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT TOP (5) * FROM [dbo].[tenderTender]")).WillReturnRows(rows)

	samples, err := d.SampleRows(context.Background(), "dbo", "tenderTender", 50)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "Bridge", samples[0]["ProjectName"])
	assert.Equal(t, int64(2), samples[1]["Id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaDiscoverer_SampleRows_ZeroLimitSkipsQuery(t *testing.T) {
	d, mock := newTestDiscoverer(t)

	samples, err := d.SampleRows(context.Background(), "dbo", "tenderTender", 0)
	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.NoError(t, mock.ExpectationsWereMet())
}
