package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/domain"
	"github.com/shineinfo/crm-backend/internal/service"
)

// Envelope is the response body shared by every JSON endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, Envelope{Success: true, Data: data, Message: message})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: status < 400, Message: message})
}

// writeError maps err to a status. notFound names the missing resource;
// fallback is the message for unexpected failures, which never expose detail.
func writeError(w http.ResponseWriter, log *zap.Logger, err error, notFound, fallback string) {
	var verr *domain.ValidationError
	var dup *domain.DuplicateError
	switch {
	case errors.As(err, &verr):
		writeMessage(w, http.StatusBadRequest, verr.Message)
	case errors.As(err, &dup):
		writeMessage(w, http.StatusBadRequest, dup.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, "Invalid input")
	case errors.Is(err, domain.ErrNotFound):
		writeMessage(w, http.StatusNotFound, notFound)
	case errors.Is(err, domain.ErrConflict):
		writeMessage(w, http.StatusConflict, "Record was modified by another request, please retry")
	case errors.Is(err, domain.ErrRunInProgress):
		writeMessage(w, http.StatusConflict, "Reminder run already in progress")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, service.ErrAuthDisabled):
		writeMessage(w, http.StatusServiceUnavailable, "Authentication is not configured")
	default:
		log.Error("request failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, fallback)
	}
}
