package handler

import (
	"log/slog"
	"net/http"

	"github.com/kestrelhq/portal/internal/service"
)

// TaskHandler serves the hq kanban board
type TaskHandler struct {
	tasks  *service.TaskService
	logger *slog.Logger
}

func NewTaskHandler(tasks *service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{tasks: tasks, logger: logger}
}

// List handles GET /api/hq/tasks
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.Board(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// Create handles POST /api/hq/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.TaskInput
	if !decodeJSON(w, r, h.logger, &in) {
		return
	}
	task, err := h.tasks.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// Update handles PATCH /api/hq/tasks/{id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in service.TaskInput
	if !decodeJSON(w, r, h.logger, &in) {
		return
	}
	task, err := h.tasks.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Delete handles DELETE /api/hq/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Move handles POST /api/hq/tasks/{id}/move and returns the reconciled board
func (h *TaskHandler) Move(w http.ResponseWriter, r *http.Request) {
	var in service.MoveInput
	if !decodeJSON(w, r, h.logger, &in) {
		return
	}
	tasks, err := h.tasks.Move(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// AddBlocker handles POST /api/hq/tasks/{id}/blockers
func (h *TaskHandler) AddBlocker(w http.ResponseWriter, r *http.Request) {
	var in service.BlockerInput
	if !decodeJSON(w, r, h.logger, &in) {
		return
	}
	task, err := h.tasks.AddBlocker(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

type resolveRequest struct {
	ResolvedBy string `json:"resolvedBy"`
}

// ResolveBlocker handles POST /api/hq/tasks/{id}/blockers/{blockerId}/resolve
func (h *TaskHandler) ResolveBlocker(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, h.logger, &req) {
		return
	}
	task, err := h.tasks.ResolveBlocker(r.Context(), r.PathValue("id"), r.PathValue("blockerId"), req.ResolvedBy)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
