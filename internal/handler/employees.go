package handler

import (
	"log/slog"
	"net/http"

	"github.com/kestrelhq/portal/internal/service"
)

// EmployeeHandler serves the hq employee roster
type EmployeeHandler struct {
	employees *service.EmployeeService
	logger    *slog.Logger
}

func NewEmployeeHandler(employees *service.EmployeeService, logger *slog.Logger) *EmployeeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmployeeHandler{employees: employees, logger: logger}
}

// List handles GET /api/hq/employees
func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("includeArchived") == "true"
	roster, err := h.employees.Roster(r.Context(), includeArchived)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

// Get handles GET /api/hq/employees/{id}
func (h *EmployeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.employees.Detail(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type archiveRequest struct {
	Reason string `json:"reason"`
}

// Archive handles POST /api/hq/employees/{id}/archive
func (h *EmployeeHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, h.logger, &req) {
		return
	}
	employee, err := h.employees.Archive(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, employee)
}

// ArchiveMany handles POST /api/hq/employees/archive
func (h *EmployeeHandler) ArchiveMany(w http.ResponseWriter, r *http.Request) {
	var req service.ArchiveInput
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	n, err := h.employees.ArchiveMany(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "archived": n})
}

// Restore handles POST /api/hq/employees/{id}/restore
func (h *EmployeeHandler) Restore(w http.ResponseWriter, r *http.Request) {
	employee, err := h.employees.Restore(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, employee)
}
