package models

import (
	"strings"
	"time"
)

// Snapshot sources.
const (
	SchemaSourceLive   = "live"
	SchemaSourceStatic = "static"
)

// DefaultSchemaName is the SQL Server default schema; tables in it are
// rendered without a schema prefix.
const DefaultSchemaName = "dbo"

// SchemaSnapshot is the point-in-time view of the target database used to
// ground a single translation.
type SchemaSnapshot struct {
	Tables         []TableDescriptor `json:"tables"`
	IntrospectedAt time.Time         `json:"introspected_at"`
	Source         string            `json:"source"`
}

// UsableTables returns the tables that introspected cleanly and have columns,
// in discovery order.
func (s *SchemaSnapshot) UsableTables() []TableDescriptor {
	if s == nil {
		return nil
	}
	tables := make([]TableDescriptor, 0, len(s.Tables))
	for _, t := range s.Tables {
		if t.Usable() {
			tables = append(tables, t)
		}
	}
	return tables
}

// Table looks up a table by unqualified or qualified name, case-insensitively.
func (s *SchemaSnapshot) Table(name string) (TableDescriptor, bool) {
	if s == nil {
		return TableDescriptor{}, false
	}
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) || strings.EqualFold(t.QualifiedName(), name) {
			return t, true
		}
	}
	return TableDescriptor{}, false
}

// TableDescriptor describes one base table. When Error is set the table
// failed to introspect and contributes nothing to the prompt.
type TableDescriptor struct {
	Schema     string             `json:"schema"`
	Name       string             `json:"name"`
	Columns    []ColumnDescriptor `json:"columns"`
	SampleRows []map[string]any   `json:"sample_rows,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// QualifiedName returns schema.name, or just name for the default schema.
func (t TableDescriptor) QualifiedName() string {
	if t.Schema == "" || strings.EqualFold(t.Schema, DefaultSchemaName) {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// Usable reports whether the table can be rendered into a prompt.
func (t TableDescriptor) Usable() bool {
	return t.Error == "" && len(t.Columns) > 0
}

// ColumnNames returns the column names in ordinal order.
func (t TableDescriptor) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnDescriptor describes a column. LogicalType carries precision, scale
// or length where the type has them, e.g. NUMERIC(18,2) or VARCHAR(255).
type ColumnDescriptor struct {
	Name        string `json:"name"`
	LogicalType string `json:"logical_type"`
	Nullable    bool   `json:"nullable"`
}
