package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"linguaporta/internal/service"
)

// HealthHandler reports whether the store's partitions are reachable.
type HealthHandler struct {
	answers *service.AnswerService
	logger  *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(answers *service.AnswerService, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{answers: answers, logger: logger}
}

// HandleHealth answers 200 when both partitions exist and 503 otherwise.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.answers.CheckPartitions(r.Context()); err != nil {
		respondWithError(w, h.logger, http.StatusServiceUnavailable, errorMessage(err), "health check failed", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Status: statusSuccess, Message: "ok"})
}
