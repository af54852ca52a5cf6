package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// messageResponse answers set requests and every error.
type messageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// contentResponse answers get requests.
type contentResponse struct {
	Status  string          `json:"status"`
	Content [][]interface{} `json:"content"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondWithError(w http.ResponseWriter, logger *zap.Logger, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		logger.Error(logMsg, zap.Error(err))
	}

	writeJSON(w, status, messageResponse{Status: statusError, Message: userMsg})
}
