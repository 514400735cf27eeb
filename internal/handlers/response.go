package handlers

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"frpanel/internal/frpconf"
	"frpanel/internal/service"
)

// APIError is the error payload of every failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, e APIError) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: e})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, APIError{Code: "BAD_REQUEST", Message: message})
}

// writeErrorFromErr maps domain errors onto HTTP statuses.
func writeErrorFromErr(w http.ResponseWriter, err error) {
	status, e := apiErrorFor(err)
	writeError(w, status, e)
}

func apiErrorFor(err error) (int, APIError) {
	var (
		ve *frpconf.ValidationError
		se *frpconf.StorageError
		pe *service.SpawnError
	)
	switch {
	case errors.Is(err, frpconf.ErrProxyIndex):
		return http.StatusBadRequest, APIError{Code: "INVALID_INDEX", Message: err.Error(), Field: "index"}
	case errors.As(err, &ve):
		return http.StatusBadRequest, APIError{Code: "VALIDATION_ERROR", Message: err.Error(), Field: ve.Field}
	case errors.As(err, &se) && errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound, APIError{Code: "DOCUMENT_NOT_FOUND", Message: "file does not exist: " + se.Path}
	case errors.As(err, &se):
		return http.StatusInternalServerError, APIError{Code: "STORAGE_ERROR", Message: err.Error()}
	case errors.Is(err, service.ErrExecutableNotFound), errors.Is(err, service.ErrConfigNotFound):
		return http.StatusNotFound, APIError{Code: "NOT_FOUND", Message: err.Error()}
	case errors.As(err, &pe):
		return http.StatusInternalServerError, APIError{Code: "SPAWN_ERROR", Message: err.Error()}
	default:
		return http.StatusInternalServerError, APIError{Code: "INTERNAL_ERROR", Message: err.Error()}
	}
}
