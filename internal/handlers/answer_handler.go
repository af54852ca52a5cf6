package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"linguaporta/internal/models"
	"linguaporta/internal/service"
)

const (
	msgInvalidRequestType = "Invalid request_type"
	msgInvalidGet         = "Invalid or missing question_number array or question_type"
	msgInvalidSet         = "Invalid or missing content array"
	msgInvalidLayout      = "Invalid layout"
)

// Layouts for get results.
const (
	layoutCompact   = "compact"
	layoutExtension = "extension"
)

// envelopeRequest is the union of get and set requests.
type envelopeRequest struct {
	RequestType    string          `json:"request_type"`
	QuestionNumber json.RawMessage `json:"question_number"`
	QuestionType   json.RawMessage `json:"question_type"`
	Layout         string          `json:"layout"`
	Content        json.RawMessage `json:"content"`
}

// setItem is one element of a set request's content array.
type setItem struct {
	QuestionNumber int     `json:"question_number"`
	QuestionType   string  `json:"question_type"`
	Answer1        *string `json:"question_answer_1"`
	Answer2        *string `json:"question_answer_2"`
}

// AnswerHandler serves the get/set envelope endpoint.
type AnswerHandler struct {
	answers      *service.AnswerService
	logger       *zap.Logger
	maxBodyBytes int64
}

// NewAnswerHandler creates a new answer handler
func NewAnswerHandler(answers *service.AnswerService, logger *zap.Logger, maxBodyBytes int64) *AnswerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnswerHandler{answers: answers, logger: logger, maxBodyBytes: maxBodyBytes}
}

// HandleEnvelope dispatches on request_type. Every outcome, including
// failures, is reported as a JSON envelope with HTTP 200.
func (h *AnswerHandler) HandleEnvelope(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(zap.String("request_id", RequestIDFromContext(r.Context())))

	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	var req envelopeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, logger, http.StatusOK, errorMessage(err), "failed to decode envelope", err)
		return
	}

	switch req.RequestType {
	case "get":
		h.handleGet(w, r, logger, &req)
	case "set":
		h.handleSet(w, r, logger, &req)
	default:
		logger.Warn("invalid request_type", zap.String("request_type", req.RequestType))
		writeJSON(w, http.StatusOK, messageResponse{Status: statusError, Message: msgInvalidRequestType})
	}
}

func (h *AnswerHandler) handleGet(w http.ResponseWriter, r *http.Request, logger *zap.Logger, req *envelopeRequest) {
	lookups, ok := parseLookups(req.QuestionNumber, req.QuestionType)
	if !ok {
		writeJSON(w, http.StatusOK, messageResponse{Status: statusError, Message: msgInvalidGet})
		return
	}

	layout := req.Layout
	if layout == "" {
		layout = layoutCompact
	}
	if layout != layoutCompact && layout != layoutExtension {
		writeJSON(w, http.StatusOK, messageResponse{Status: statusError, Message: msgInvalidLayout})
		return
	}

	records, err := h.answers.Get(r.Context(), lookups)
	if err != nil {
		respondWithError(w, logger, http.StatusOK, errorMessage(err), "get failed", err)
		return
	}

	content := make([][]interface{}, 0, len(records))
	for _, rec := range records {
		content = append(content, formatRecord(rec, layout))
	}

	logger.Info("get handled",
		zap.Int("requested", len(lookups)),
		zap.Int("found", len(records)))
	writeJSON(w, http.StatusOK, contentResponse{Status: statusSuccess, Content: content})
}

func (h *AnswerHandler) handleSet(w http.ResponseWriter, r *http.Request, logger *zap.Logger, req *envelopeRequest) {
	var raw []json.RawMessage
	if len(req.Content) == 0 || json.Unmarshal(req.Content, &raw) != nil || raw == nil {
		writeJSON(w, http.StatusOK, messageResponse{Status: statusError, Message: msgInvalidSet})
		return
	}

	items := make([]models.AnswerSubmission, 0, len(raw))
	malformed := 0
	for i, elem := range raw {
		var item setItem
		if err := json.Unmarshal(elem, &item); err != nil {
			logger.Warn("skipping malformed set item", zap.Int("index", i), zap.Error(err))
			malformed++
			continue
		}
		items = append(items, models.AnswerSubmission{
			QuestionNumber: item.QuestionNumber,
			QuestionType:   item.QuestionType,
			Answer1:        item.Answer1,
			Answer2:        item.Answer2,
		})
	}

	result, err := h.answers.Set(r.Context(), items)
	if err != nil {
		respondWithError(w, logger, http.StatusOK, errorMessage(err), "set failed", err)
		return
	}

	logger.Info("set handled",
		zap.Int("written", result.Written()),
		zap.Int("skipped", result.Skipped()),
		zap.Int("failed", result.Failed()+malformed))
	writeJSON(w, http.StatusOK, messageResponse{
		Status:  statusSuccess,
		Message: fmt.Sprintf("%d questions updated.", result.Written()),
	})
}

// parseLookups pairs question numbers with a shared type or a parallel type array.
func parseLookups(numbersRaw, typesRaw json.RawMessage) ([]models.Lookup, bool) {
	var numbers []*int
	if len(numbersRaw) == 0 || json.Unmarshal(numbersRaw, &numbers) != nil || numbers == nil {
		return nil, false
	}
	for _, n := range numbers {
		if n == nil {
			return nil, false
		}
	}
	if len(typesRaw) == 0 {
		return nil, false
	}

	types := make([]string, len(numbers))
	var shared string
	if err := json.Unmarshal(typesRaw, &shared); err == nil {
		if shared == "" {
			return nil, false
		}
		for i := range types {
			types[i] = shared
		}
	} else {
		var perItem []string
		if err := json.Unmarshal(typesRaw, &perItem); err != nil || len(perItem) != len(numbers) {
			return nil, false
		}
		types = perItem
	}

	lookups := make([]models.Lookup, len(numbers))
	for i, n := range numbers {
		lookups[i] = models.Lookup{QuestionNumber: *n, QuestionType: types[i]}
	}
	return lookups, true
}

// formatRecord renders a hit as [num,a1,a2] or as the extension's six slots.
func formatRecord(rec models.AnswerRecord, layout string) []interface{} {
	a1, a2 := nullable(rec.Answer1), nullable(rec.Answer2)
	if layout != layoutExtension {
		return []interface{}{rec.QuestionNumber, a1, a2}
	}
	if rec.QuestionType == models.QuestionTypeFillBlank {
		return []interface{}{rec.QuestionNumber, nil, nil, a1, nil, nil}
	}
	return []interface{}{rec.QuestionNumber, a1, a2, nil, nil, nil}
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// errorMessage maps a batch error to the message the extension shows.
func errorMessage(err error) string {
	var pnf *service.PartitionNotFoundError
	if errors.As(err, &pnf) {
		return pnf.Error()
	}
	return "An error occurred: " + err.Error()
}
