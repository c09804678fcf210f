package mssql

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
)

// quoteName quotes an identifier the way QUOTENAME() does: square brackets,
// with ] escaped as ]].
func quoteName(identifier string) string {
	escaped := strings.ReplaceAll(identifier, "]", "]]")
	return fmt.Sprintf("[%s]", escaped)
}

// buildFullyQualifiedName builds a fully qualified table name: [schema].[table]
func buildFullyQualifiedName(schema, table string) string {
	return fmt.Sprintf("%s.%s", quoteName(schema), quoteName(table))
}

// mapSQLServerType maps SQL Server type names to standard type names.
func mapSQLServerType(sqlServerType string) string {
	sqlServerType = strings.ToUpper(sqlServerType)

	switch sqlServerType {
	case "INT":
		return "INTEGER"
	case "DECIMAL", "NUMERIC":
		return "NUMERIC"
	case "MONEY", "SMALLMONEY":
		return "MONEY"
	case "FLOAT":
		return "DOUBLE PRECISION"
	case "CHAR", "NCHAR":
		return "CHAR"
	case "VARCHAR", "NVARCHAR":
		return "VARCHAR"
	case "TEXT", "NTEXT":
		return "TEXT"
	case "BINARY", "VARBINARY":
		return "BYTEA"
	case "IMAGE":
		return "BLOB"
	case "DATETIME", "DATETIME2", "SMALLDATETIME":
		return "TIMESTAMP"
	case "DATETIMEOFFSET":
		return "TIMESTAMP WITH TIME ZONE"
	case "BIT":
		return "BOOLEAN"
	case "UNIQUEIDENTIFIER":
		return "UUID"
	default:
		return sqlServerType
	}
}

// formatLogicalType renders a column type with its length, precision or
// scale, e.g. NUMERIC(18,2), VARCHAR(255) or VARCHAR(MAX). maxLength is the
// catalog byte length; it is halved for the N-prefixed Unicode types.
func formatLogicalType(sqlServerType string, maxLength, precision, scale int) string {
	upper := strings.ToUpper(sqlServerType)
	logical := mapSQLServerType(upper)

	switch upper {
	case "DECIMAL", "NUMERIC":
		return fmt.Sprintf("%s(%d,%d)", logical, precision, scale)
	case "CHAR", "VARCHAR", "NCHAR", "NVARCHAR", "BINARY", "VARBINARY":
		if maxLength == -1 {
			return logical + "(MAX)"
		}
		length := maxLength
		if upper == "NCHAR" || upper == "NVARCHAR" {
			length /= 2
		}
		return fmt.Sprintf("%s(%d)", logical, length)
	case "DATETIME2", "DATETIMEOFFSET", "TIME":
		if scale != 7 {
			return fmt.Sprintf("%s(%d)", logical, scale)
		}
	}
	return logical
}

// isStringType returns true if the type is a string type in SQL Server.
func isStringType(sqlType string) bool {
	switch strings.ToUpper(sqlType) {
	case "CHAR", "NCHAR", "VARCHAR", "NVARCHAR", "TEXT", "NTEXT", "XML":
		return true
	}
	return false
}

// isExactNumericType reports types the driver returns as []byte digits.
func isExactNumericType(sqlType string) bool {
	switch strings.ToUpper(sqlType) {
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		return true
	}
	return false
}

// normalizeValue converts driver values into JSON-friendly Go values.
// Strings and decimals arrive as []byte; uniqueidentifiers arrive in SQL
// Server's mixed-endian byte order.
func normalizeValue(val any, dbType string) any {
	b, ok := val.([]byte)
	if !ok {
		return val
	}

	switch {
	case strings.EqualFold(dbType, "UNIQUEIDENTIFIER"):
		var id mssql.UniqueIdentifier
		if err := id.Scan(b); err == nil {
			return id.String()
		}
	case isExactNumericType(dbType):
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f
		}
		return string(b)
	case isStringType(dbType):
		return string(b)
	}
	return b
}

// scanRows reads up to maxRows rows into maps keyed by column name. A
// non-positive maxRows reads everything. truncated reports whether more rows
// were available.
func scanRows(rows *sql.Rows, maxRows int) (columns []string, dbTypes []string, result []map[string]any, truncated bool, err error) {
	columns, err = rows.Columns()
	if err != nil {
		return nil, nil, nil, false, fmt.Errorf("failed to get columns: %w", err)
	}

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, nil, false, fmt.Errorf("failed to get column types: %w", err)
	}
	dbTypes = make([]string, len(columnTypes))
	for i, ct := range columnTypes {
		dbTypes[i] = ct.DatabaseTypeName()
	}

	result = make([]map[string]any, 0)
	for rows.Next() {
		if maxRows > 0 && len(result) >= maxRows {
			truncated = true
			break
		}

		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, nil, nil, false, fmt.Errorf("failed to scan row: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col] = normalizeValue(values[i], dbTypes[i])
		}
		result = append(result, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, nil, false, fmt.Errorf("error iterating rows: %w", err)
	}

	return columns, dbTypes, result, truncated, nil
}
