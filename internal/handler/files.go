package handler

import (
	"log/slog"
	"net/http"

	"github.com/kestrelhq/portal/internal/service"
)

// FilesHandler turns long-lived file links into fresh presigned redirects
type FilesHandler struct {
	links  *service.FileLinks
	logger *slog.Logger
}

func NewFilesHandler(links *service.FileLinks, logger *slog.Logger) *FilesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilesHandler{links: links, logger: logger}
}

// ServeHTTP handles GET /files/{token}
func (h *FilesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	url, err := h.links.Resolve(r.Context(), r.PathValue("token"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, url, http.StatusFound)
}
