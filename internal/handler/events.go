package handler

import (
	"log/slog"
	"net/http"

	"github.com/kestrelhq/portal/internal/service"
)

// EmailEventsHandler receives the mail provider's event webhook
type EmailEventsHandler struct {
	employees *service.EmployeeService
	logger    *slog.Logger
}

func NewEmailEventsHandler(employees *service.EmployeeService, logger *slog.Logger) *EmailEventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailEventsHandler{employees: employees, logger: logger}
}

// ServeHTTP handles POST /api/sendgrid/events
func (h *EmailEventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var events []service.EmailEvent
	if !decodeJSON(w, r, h.logger, &events) {
		return
	}

	recorded, err := h.employees.RecordEmailEvents(r.Context(), events)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Debug("email events processed", slog.Int("events", len(events)), slog.Int("opens", recorded))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "recorded": recorded})
}
