package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/rexmccreary15-dotcom/trexai/internal/service"
	"github.com/rexmccreary15-dotcom/trexai/pkg/logger"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeServiceError maps a service error to its HTTP status, falling back
// to a logged 500 for anything untyped.
func writeServiceError(log *logger.Logger, w http.ResponseWriter, err error, fallback string) {
	var se *service.StatusError
	if errors.As(err, &se) {
		writeError(w, se.Status, se.Message)
		return
	}
	log.Error(fallback, zap.Error(err))
	writeError(w, http.StatusInternalServerError, fallback)
}
