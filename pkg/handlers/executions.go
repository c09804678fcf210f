package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/repositories"
	"github.com/ekaya-inc/ekaya-askdb/pkg/services"
)

const defaultExecutionsLimit = 50

// ExecutionsResponse lists recent execution records.
type ExecutionsResponse struct {
	Executions []*models.ExecutionRecord `json:"executions"`
	Count      int                       `json:"count"`
}

// ExecutionsHandler exposes the durable execution audit trail.
type ExecutionsHandler struct {
	audit  services.ExecutionAuditService
	logger *zap.Logger
}

// NewExecutionsHandler creates a new ExecutionsHandler.
func NewExecutionsHandler(audit services.ExecutionAuditService, logger *zap.Logger) *ExecutionsHandler {
	return &ExecutionsHandler{audit: audit, logger: logger}
}

// RegisterRoutes registers the executions handler's routes on the given mux.
func (h *ExecutionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/executions", h.List)
}

// List handles GET /api/executions?limit=N
func (h *ExecutionsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultExecutionsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > repositories.MaxListLimit {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_limit",
				"limit must be between 1 and "+strconv.Itoa(repositories.MaxListLimit)); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		limit = n
	}

	records, err := h.audit.Recent(r.Context(), limit)
	if err != nil {
		if errors.Is(err, services.ErrAuditStoreDisabled) {
			if err := ErrorResponse(w, http.StatusNotFound, "audit_store_disabled", "Execution records are not persisted"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to list execution records", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list execution records"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if records == nil {
		records = []*models.ExecutionRecord{}
	}
	if err := WriteJSON(w, http.StatusOK, ExecutionsResponse{Executions: records, Count: len(records)}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
