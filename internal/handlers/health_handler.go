package handlers

import (
	"net/http"
	"time"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Reason    string `json:"reason,omitempty"`
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// ReadyCheck reports ready once the managed document exists.
func ReadyCheck(documentExists func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !documentExists() {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:    "unavailable",
				Timestamp: time.Now().Format(time.RFC3339),
				Reason:    "configuration document not found",
			})
			return
		}
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:    "ready",
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}
