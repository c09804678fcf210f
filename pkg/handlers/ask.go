package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/services"
)

// maxAskBodyBytes bounds the request body of POST /api/ask.
const maxAskBodyBytes = 64 << 10

// AskRequest is the wire form of an ask request. use_schema_introspection
// defaults to true when omitted.
type AskRequest struct {
	Question               string                    `json:"question"`
	ConversationHistory    []models.ConversationTurn `json:"conversation_history,omitempty"`
	UseSchemaIntrospection *bool                     `json:"use_schema_introspection,omitempty"`
}

// ToModel converts the wire request into a pipeline request.
func (r AskRequest) ToModel() models.AskRequest {
	useIntrospection := true
	if r.UseSchemaIntrospection != nil {
		useIntrospection = *r.UseSchemaIntrospection
	}
	return models.AskRequest{
		Question:               r.Question,
		ConversationHistory:    r.ConversationHistory,
		UseSchemaIntrospection: useIntrospection,
	}
}

// AskHandler answers natural-language questions over HTTP.
type AskHandler struct {
	pipeline services.QueryPipeline
	timeout  time.Duration
	logger   *zap.Logger
}

// NewAskHandler creates a new AskHandler. timeout bounds one request; 0
// leaves it to the caller's context.
func NewAskHandler(pipeline services.QueryPipeline, timeout time.Duration, logger *zap.Logger) *AskHandler {
	return &AskHandler{
		pipeline: pipeline,
		timeout:  timeout,
		logger:   logger,
	}
}

// RegisterRoutes registers the ask handler's routes on the given mux.
func (h *AskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ask", h.Ask)
}

// Ask handles POST /api/ask
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := decodeJSONBody(w, r, maxAskBodyBytes, &req); err != nil {
		h.logger.Debug("Rejected ask request body", zap.Error(err))
		writeErrorLogged(w, h.logger, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp, err := h.pipeline.Ask(ctx, req.ToModel())
	if err != nil {
		h.writeAskError(w, req.Question, resp, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *AskHandler) writeAskError(w http.ResponseWriter, question string, resp *models.AskResponse, err error) {
	if resp == nil {
		resp = &models.AskResponse{Question: question, Error: apperrors.PublicMessage(err)}
	}

	var status int
	switch {
	case errors.Is(err, apperrors.ErrEmptyQuestion):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrIntrospection):
		status = http.StatusServiceUnavailable
	case errors.Is(err, apperrors.ErrFallbackExhausted):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// The client is gone; nobody reads the response.
		h.logger.Debug("Ask request canceled by client")
		return
	default:
		h.logger.Error("Unexpected ask failure", zap.Error(err))
		status = http.StatusInternalServerError
	}

	if err := WriteJSON(w, status, resp); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
