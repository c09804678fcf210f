package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/services"
)

// SchemaResponse describes the snapshot the pipeline prompts with.
type SchemaResponse struct {
	Source         string          `json:"source"`
	IntrospectedAt *time.Time      `json:"introspected_at,omitempty"`
	Tables         []TableResponse `json:"tables"`
	TotalTables    int             `json:"total_tables"`
}

// TableResponse represents a table with its columns. Sample rows are not
// exposed over the API.
type TableResponse struct {
	SchemaName  string           `json:"schema_name"`
	TableName   string           `json:"table_name"`
	Columns     []ColumnResponse `json:"columns"`
	SampleCount int              `json:"sample_count"`
	Error       string           `json:"error,omitempty"`
}

// ColumnResponse represents a column within a table.
type ColumnResponse struct {
	ColumnName string `json:"column_name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
}

// SchemaHandler exposes the current schema snapshot.
type SchemaHandler struct {
	introspector services.SchemaIntrospector
	logger       *zap.Logger
}

// NewSchemaHandler creates a new SchemaHandler.
func NewSchemaHandler(introspector services.SchemaIntrospector, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{introspector: introspector, logger: logger}
}

// RegisterRoutes registers the schema handler's routes on the given mux.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/schema", h.GetSchema)
}

// GetSchema handles GET /api/schema
// ?source=static returns the static snapshot without touching the database.
func (h *SchemaHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	var snapshot *models.SchemaSnapshot
	switch r.URL.Query().Get("source") {
	case "", models.SchemaSourceLive:
		var err error
		snapshot, err = h.introspector.Snapshot(r.Context())
		if err != nil {
			h.logger.Error("Failed to introspect schema", zap.Error(err))
			status, code := http.StatusInternalServerError, "internal_error"
			if errors.Is(err, apperrors.ErrIntrospection) {
				status, code = http.StatusServiceUnavailable, "introspection_error"
			}
			if err := ErrorResponse(w, status, code, apperrors.MessageUnavailable); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
	case models.SchemaSourceStatic:
		snapshot = h.introspector.Static()
	default:
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_source", "source must be live or static"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, toSchemaResponse(snapshot)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func toSchemaResponse(snapshot *models.SchemaSnapshot) SchemaResponse {
	resp := SchemaResponse{
		Source:      snapshot.Source,
		Tables:      make([]TableResponse, 0, len(snapshot.Tables)),
		TotalTables: len(snapshot.Tables),
	}
	if !snapshot.IntrospectedAt.IsZero() {
		at := snapshot.IntrospectedAt
		resp.IntrospectedAt = &at
	}

	for _, t := range snapshot.Tables {
		table := TableResponse{
			SchemaName:  t.Schema,
			TableName:   t.Name,
			Columns:     make([]ColumnResponse, 0, len(t.Columns)),
			SampleCount: len(t.SampleRows),
			Error:       t.Error,
		}
		for _, c := range t.Columns {
			table.Columns = append(table.Columns, ColumnResponse{
				ColumnName: c.Name,
				DataType:   c.LogicalType,
				IsNullable: c.Nullable,
			})
		}
		resp.Tables = append(resp.Tables, table)
	}
	return resp
}
