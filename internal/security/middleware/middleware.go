package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kestrelhq/portal/internal/security/audit"
	"github.com/kestrelhq/portal/internal/security/auth"
	"github.com/kestrelhq/portal/internal/security/ratelimit"
)

type requestIDKey struct{}
type areaKey struct{}

// SharedSecretHeader lets automation reach the hq API without a cookie
const SharedSecretHeader = "X-HQ-Secret"

// CookieName is the session cookie for an area
func CookieName(area string) string {
	return "portal_" + area + "_session"
}

// AreaGate admits requests carrying a valid session cookie for area, or the shared secret
// header when secret is non-empty
func AreaGate(tm *auth.TokenManager, area, secret string, auditLog *audit.Logger, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret != "" {
				if h := r.Header.Get(SharedSecretHeader); h != "" {
					if subtle.ConstantTimeCompare([]byte(h), []byte(secret)) == 1 {
						ctx := context.WithValue(r.Context(), areaKey{}, area)
						next.ServeHTTP(w, r.WithContext(ctx))
						return
					}
					auditLog.LogDenied(r.Context(), area, ClientIP(r), "bad shared secret")
					writeUnauthorized(w)
					return
				}
			}

			cookie, err := r.Cookie(CookieName(area))
			if err != nil {
				writeUnauthorized(w)
				return
			}
			if _, err := tm.ValidateSession(cookie.Value, area); err != nil {
				log.Debug("rejected session", slog.String("area", area), slog.String("error", err.Error()))
				auditLog.LogDenied(r.Context(), area, ClientIP(r), "invalid session")
				writeUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), areaKey{}, area)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}

// RateLimitMiddleware limits requests per client IP
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if !limiter.Allow(ip) {
				log.Warn("rate limit exceeded", slog.String("ip", ip), slog.String("path", r.URL.Path))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware records every admin mutation
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
				auditLog.LogAction(r.Context(), AreaFromContext(r.Context()), ClientIP(r),
					strings.ToLower(r.Method), r.URL.Path, r.PathValue("id"), "initiated", "")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AreaFromContext returns the authenticated area, or ""
func AreaFromContext(ctx context.Context) string {
	if a, ok := ctx.Value(areaKey{}).(string); ok {
		return a
	}
	return ""
}

// ClientIP is the first X-Forwarded-For entry, else X-Real-Ip, else "unknown"
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-Ip")); real != "" {
		return real
	}
	return "unknown"
}

// WithRequestID attaches a request ID to the context and response headers and logs completion
func WithRequestID(next http.Handler, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

// RequestIDFromContext returns the request ID set by WithRequestID
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}

// CORS honors the configured origins
func CORS(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if originAllowed(allowed, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			} else if len(allowed) > 0 {
				w.Header().Set("Access-Control-Allow-Origin", allowed[0])
			}
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, "+SharedSecretHeader)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
