package handler

import (
	"log/slog"
	"net/http"

	"github.com/kestrelhq/portal/internal/service"
)

// CronHandler serves the cron monitor
type CronHandler struct {
	crons  *service.CronService
	logger *slog.Logger
}

func NewCronHandler(crons *service.CronService, logger *slog.Logger) *CronHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CronHandler{crons: crons, logger: logger}
}

// List handles GET /api/hq/crons
func (h *CronHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.crons.Groups(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

// Sync handles POST /api/hq/crons/sync
func (h *CronHandler) Sync(w http.ResponseWriter, r *http.Request) {
	n, err := h.crons.Sync(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "synced": n})
}
