package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kestrelhq/portal/internal/domain"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

const genericFailure = "Something went wrong. Please try again."

const syncGuidance = "Cron sync is not available in the hosted deployment. Run the sync from a machine with access to the bots' job file."

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeServiceError maps domain errors to status codes. Anything unrecognized is a 500
// with a generic message; the cause is logged, never returned.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var validation *domain.ValidationError
	var notFound *domain.NotFoundError

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: validation.Error(), Fields: validation.Fields})
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrSyncUnavailable):
		writeError(w, http.StatusConflict, syncGuidance)
	default:
		log.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, genericFailure)
	}
}

// decodeJSON reads a JSON body into v, answering 400 itself on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, log *slog.Logger, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Warn("failed to decode request", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
