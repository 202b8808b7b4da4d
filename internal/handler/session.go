package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/kestrelhq/portal/internal/security/audit"
	"github.com/kestrelhq/portal/internal/security/middleware"
	"github.com/kestrelhq/portal/internal/security/ratelimit"
	"github.com/kestrelhq/portal/internal/service"
)

const (
	loginAttempts = 10
	loginWindow   = 15 * time.Minute
)

// SessionHandler handles area login, logout and session checks
type SessionHandler struct {
	sessions *service.SessionService
	limiter  *ratelimit.Limiter
	audit    *audit.Logger
	secure   bool
	logger   *slog.Logger
}

// NewSessionHandler creates a session handler. secure marks cookies Secure.
func NewSessionHandler(sessions *service.SessionService, limiter *ratelimit.Limiter, auditLog *audit.Logger, secure bool, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{sessions: sessions, limiter: limiter, audit: auditLog, secure: secure, logger: logger}
}

// LoginRequest carries the area password
type LoginRequest struct {
	Password string `json:"password"`
}

func (h *SessionHandler) cookie(area, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.CookieName(area),
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Login returns the handler for POST /api/{area}/login
func (h *SessionHandler) Login(area string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := middleware.ClientIP(r)
		if h.limiter != nil && !h.limiter.AllowStrict("login:"+area+":"+ip, loginAttempts, loginWindow) {
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		var req LoginRequest
		if !decodeJSON(w, r, h.logger, &req) {
			return
		}

		session, err := h.sessions.Login(area, req.Password)
		if err != nil {
			h.audit.LogLogin(r.Context(), area, ip, "failed")
			writeServiceError(w, r, h.logger, err)
			return
		}

		h.audit.LogLogin(r.Context(), area, ip, "success")
		http.SetCookie(w, h.cookie(area, session.Token, int(h.sessions.MaxAge().Seconds())))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "area": area, "expiresAt": session.ExpiresAt})
	}
}

// Logout returns the handler for POST /api/{area}/logout
func (h *SessionHandler) Logout(area string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, h.cookie(area, "", -1))
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// Session returns the handler for GET /api/{area}/session
func (h *SessionHandler) Session(area string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authenticated := false
		if c, err := r.Cookie(middleware.CookieName(area)); err == nil {
			authenticated = h.sessions.Verify(area, c.Value)
		}
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": authenticated, "area": area})
	}
}
