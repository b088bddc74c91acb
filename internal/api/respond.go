package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spigell/interviewer/internal/interview"

	"go.uber.org/zap"
)

const (
	codeInvalidInput  = "invalid_input"
	codeNotFound      = "not_found"
	codeInvalidState  = "invalid_state"
	codeOutOfSequence = "out_of_sequence"
	codeUnavailable   = "unavailable"
	codeInternal      = "internal"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// JSON writes v as a JSON response.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "internal", "message": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, errorResponse{Error: code, Message: message})
}

// fail maps a processor error to its status code.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, codeInternal
	switch {
	case errors.Is(err, interview.ErrInvalidInput):
		status, code = http.StatusBadRequest, codeInvalidInput
	case errors.Is(err, interview.ErrNotFound):
		status, code = http.StatusNotFound, codeNotFound
	case errors.Is(err, interview.ErrInvalidState):
		status, code = http.StatusConflict, codeInvalidState
	case errors.Is(err, interview.ErrOutOfSequence):
		status, code = http.StatusConflict, codeOutOfSequence
	case errors.Is(err, interview.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, codeUnavailable
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	Error(w, status, code, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
