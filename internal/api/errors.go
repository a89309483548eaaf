package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dokzlo13/dimmerd/internal/controller"
	"github.com/dokzlo13/dimmerd/internal/settings"
	"github.com/dokzlo13/dimmerd/internal/transition"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeUnavailable = "unavailable"
	ErrCodeHardware    = "hardware_error"
	ErrCodeInternal    = "internal_error"
	ErrCodeValidation  = "validation_error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // connection may already be gone
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeControllerError maps controller failures onto HTTP statuses.
func writeControllerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, controller.ErrUnknownAxis):
		writeNotFound(w, err.Error())
	case errors.Is(err, controller.ErrUnavailable), errors.Is(err, transition.ErrValueUnavailable):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	case errors.Is(err, controller.ErrHardwareWrite):
		writeError(w, http.StatusBadGateway, ErrCodeHardware, err.Error())
	case errors.Is(err, settings.ErrInvalidCap):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
