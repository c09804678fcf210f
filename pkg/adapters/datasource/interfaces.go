// Package datasource defines the read-only view of the target database used
// to ground and execute generated queries.
package datasource

import "context"

// ConnectionTester tests database connectivity.
type ConnectionTester interface {
	// TestConnection verifies the database is reachable with valid credentials.
	TestConnection(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}

// SchemaDiscoverer reads catalog metadata and sample data. It only ever
// issues SELECT statements.
type SchemaDiscoverer interface {
	// DiscoverTables returns all user base tables ordered by schema and name.
	DiscoverTables(ctx context.Context) ([]TableMetadata, error)

	// DiscoverColumns returns the columns of a table in ordinal order.
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)

	// SampleRows returns up to limit rows from a table.
	SampleRows(ctx context.Context, schemaName, tableName string, limit int) ([]map[string]any, error)
}

// QueryExecutor runs a single read-only statement.
type QueryExecutor interface {
	// Query runs sqlQuery and returns at most the executor's row cap.
	Query(ctx context.Context, sqlQuery string) (*QueryExecutionResult, error)
}

// TableMetadata describes a discovered table.
type TableMetadata struct {
	SchemaName string `json:"schema_name"`
	TableName  string `json:"table_name"`
	RowCount   int64  `json:"row_count"`
}

// ColumnMetadata describes a discovered column. DataType is the logical type
// including length, precision and scale where applicable.
type ColumnMetadata struct {
	ColumnName      string `json:"column_name"`
	DataType        string `json:"data_type"`
	IsNullable      bool   `json:"is_nullable"`
	IsPrimaryKey    bool   `json:"is_primary_key"`
	OrdinalPosition int    `json:"ordinal_position"`
}

// ColumnInfo describes a result column.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryExecutionResult holds the rows returned by a query. Truncated is set
// when the row cap cut the result short.
type QueryExecutionResult struct {
	Columns   []ColumnInfo     `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated"`
}
