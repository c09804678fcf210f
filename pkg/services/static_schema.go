package services

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
)

// DefaultStaticSnapshot describes the tender database without touching it.
// It is used when live introspection is disabled or unavailable.
func DefaultStaticSnapshot() *models.SchemaSnapshot {
	return &models.SchemaSnapshot{
		Source: models.SchemaSourceStatic,
		Tables: []models.TableDescriptor{
			{
				Schema: models.DefaultSchemaName,
				Name:   "tenderTender",
				Columns: []models.ColumnDescriptor{
					{Name: "Id", LogicalType: "INTEGER"},
					{Name: "ProjectName", LogicalType: "VARCHAR(255)", Nullable: true},
					{Name: "TenderNumber", LogicalType: "VARCHAR(50)", Nullable: true},
					{Name: "Client", LogicalType: "VARCHAR(255)", Nullable: true},
					{Name: "Value", LogicalType: "NUMERIC(18,2)", Nullable: true},
					{Name: "Status", LogicalType: "VARCHAR(50)", Nullable: true},
					{Name: "SubmissionDate", LogicalType: "TIMESTAMP", Nullable: true},
					{Name: "AwardDate", LogicalType: "TIMESTAMP", Nullable: true},
					{Name: "CreatedDate", LogicalType: "TIMESTAMP", Nullable: true},
					{Name: "IsDeleted", LogicalType: "BOOLEAN", Nullable: true},
				},
			},
			{
				Schema: models.DefaultSchemaName,
				Name:   "tenderEmployee",
				Columns: []models.ColumnDescriptor{
					{Name: "Id", LogicalType: "INTEGER"},
					{Name: "FullName", LogicalType: "VARCHAR(255)", Nullable: true},
					{Name: "Email", LogicalType: "VARCHAR(255)", Nullable: true},
					{Name: "Department", LogicalType: "VARCHAR(100)", Nullable: true},
					{Name: "Position", LogicalType: "VARCHAR(100)", Nullable: true},
					{Name: "CreatedDate", LogicalType: "TIMESTAMP", Nullable: true},
					{Name: "IsDeleted", LogicalType: "BOOLEAN", Nullable: true},
				},
			},
		},
	}
}

// staticSchemaFile is the YAML layout of a static schema:
//
//	tables:
//	  - schema: dbo
//	    name: tenderTender
//	    columns:
//	      - name: Id
//	        type: INTEGER
//	      - name: Value
//	        type: NUMERIC(18,2)
//	        nullable: true
type staticSchemaFile struct {
	Tables []struct {
		Schema  string `yaml:"schema"`
		Name    string `yaml:"name"`
		Columns []struct {
			Name     string `yaml:"name"`
			Type     string `yaml:"type"`
			Nullable bool   `yaml:"nullable"`
		} `yaml:"columns"`
	} `yaml:"tables"`
}

// LoadStaticSnapshot reads a static schema description from a YAML file.
func LoadStaticSnapshot(path string) (*models.SchemaSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read static schema: %w", err)
	}
	return ParseStaticSnapshot(data)
}

// ParseStaticSnapshot parses a static schema description. Every table needs a
// name and at least one column, and table names must be unique.
func ParseStaticSnapshot(data []byte) (*models.SchemaSnapshot, error) {
	var file staticSchemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse static schema: %w", err)
	}
	if len(file.Tables) == 0 {
		return nil, fmt.Errorf("static schema has no tables")
	}

	snapshot := &models.SchemaSnapshot{
		Source: models.SchemaSourceStatic,
		Tables: make([]models.TableDescriptor, 0, len(file.Tables)),
	}
	seen := make(map[string]bool, len(file.Tables))

	for i, t := range file.Tables {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, fmt.Errorf("static schema table %d has no name", i)
		}
		schema := strings.TrimSpace(t.Schema)
		if schema == "" {
			schema = models.DefaultSchemaName
		}

		desc := models.TableDescriptor{Schema: schema, Name: name}
		key := strings.ToLower(desc.QualifiedName())
		if seen[key] {
			return nil, fmt.Errorf("static schema table %q is listed twice", desc.QualifiedName())
		}
		seen[key] = true

		for _, c := range t.Columns {
			if strings.TrimSpace(c.Name) == "" {
				return nil, fmt.Errorf("static schema table %q has a column with no name", name)
			}
			desc.Columns = append(desc.Columns, models.ColumnDescriptor{
				Name:        strings.TrimSpace(c.Name),
				LogicalType: strings.ToUpper(strings.TrimSpace(c.Type)),
				Nullable:    c.Nullable,
			})
		}
		if len(desc.Columns) == 0 {
			return nil, fmt.Errorf("static schema table %q has no columns", name)
		}
		snapshot.Tables = append(snapshot.Tables, desc)
	}

	return snapshot, nil
}
