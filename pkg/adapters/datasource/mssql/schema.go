package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource"
)

// MaxSampleRows caps SampleRows regardless of the requested limit.
const MaxSampleRows = 5

// SchemaDiscoverer implements datasource.SchemaDiscoverer for SQL Server.
type SchemaDiscoverer struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSchemaDiscoverer creates a schema discoverer on the adapter's pool.
func NewSchemaDiscoverer(adapter *Adapter, logger *zap.Logger) *SchemaDiscoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaDiscoverer{
		db:     adapter.DB(),
		logger: logger.Named("mssql_schema"),
	}
}

const discoverTablesQuery = `
	SET NOCOUNT ON;
	SELECT
	    SCHEMA_NAME(t.schema_id) AS table_schema,
	    t.name AS table_name,
	    SUM(p.rows) AS row_count
	FROM sys.tables t
	INNER JOIN sys.partitions p ON t.object_id = p.object_id
	WHERE p.index_id IN (0, 1)
	  AND t.is_ms_shipped = 0
	GROUP BY t.schema_id, t.name
	ORDER BY table_schema, table_name
	`

// DiscoverTables returns all user base tables (sys.tables, excluding
// Microsoft-shipped objects) ordered by schema and name.
func (s *SchemaDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	rows, err := s.db.QueryContext(ctx, discoverTablesQuery)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableMetadata
	for rows.Next() {
		var table datasource.TableMetadata
		if err := rows.Scan(&table.SchemaName, &table.TableName, &table.RowCount); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, table)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}

	s.logger.Debug("Discovered tables", zap.Int("count", len(tables)))
	return tables, nil
}

const discoverColumnsQuery = `
	SET NOCOUNT ON;
	SELECT
	    c.name AS column_name,
	    tp.name AS data_type,
	    c.max_length,
	    c.precision,
	    c.scale,
	    CASE WHEN c.is_nullable = 1 THEN 1 ELSE 0 END AS is_nullable,
	    c.column_id AS ordinal_position,
	    CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END AS is_primary_key
	FROM sys.columns c
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	LEFT JOIN (
	    SELECT ic.object_id, ic.column_id
	    FROM sys.index_columns ic
	    INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	    WHERE i.is_primary_key = 1
	) pk ON c.object_id = pk.object_id AND c.column_id = pk.column_id
	WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
	ORDER BY c.column_id
	`

// DiscoverColumns returns columns for a table in ordinal order.
func (s *SchemaDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	rows, err := s.db.QueryContext(ctx, discoverColumnsQuery,
		sql.Named("schema", schemaName),
		sql.Named("table", tableName),
	)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var (
			col                         datasource.ColumnMetadata
			maxLength, precision, scale int
			isNullable, isPrimary       int
		)

		err := rows.Scan(
			&col.ColumnName,
			&col.DataType,
			&maxLength,
			&precision,
			&scale,
			&isNullable,
			&col.OrdinalPosition,
			&isPrimary,
		)
		if err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}

		col.IsNullable = isNullable == 1
		col.IsPrimaryKey = isPrimary == 1
		col.DataType = formatLogicalType(col.DataType, maxLength, precision, scale)

		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}

	return columns, nil
}

// SampleRows returns up to limit rows (at most MaxSampleRows) from a table.
// A non-positive limit returns no rows without querying.
func (s *SchemaDiscoverer) SampleRows(ctx context.Context, schemaName, tableName string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		return nil, nil
	}
	if limit > MaxSampleRows {
		limit = MaxSampleRows
	}

	query := fmt.Sprintf("SELECT TOP (%d) * FROM %s", limit, buildFullyQualifiedName(schemaName, tableName))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sample rows: %w", err)
	}
	defer rows.Close()

	_, _, result, _, err := scanRows(rows, limit)
	if err != nil {
		return nil, fmt.Errorf("sample rows: %w", err)
	}
	return result, nil
}

// Ensure SchemaDiscoverer implements datasource.SchemaDiscoverer at compile time.
var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
