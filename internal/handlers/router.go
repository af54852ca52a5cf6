package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"linguaporta/internal/service"
)

// NewRouter registers the envelope, health and metrics endpoints.
// metricsHandler may be nil.
func NewRouter(answers *service.AnswerService, metricsHandler http.Handler, logger *zap.Logger, maxBodyBytes int64) *http.ServeMux {
	answerHandler := NewAnswerHandler(answers, logger, maxBodyBytes)
	healthHandler := NewHealthHandler(answers, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /{$}", answerHandler.HandleEnvelope)
	mux.HandleFunc("POST /exec", answerHandler.HandleEnvelope)
	mux.HandleFunc("GET /health", healthHandler.HandleHealth)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	return mux
}
