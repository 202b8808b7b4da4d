package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kestrelhq/portal/internal/security/audit"
	"github.com/kestrelhq/portal/internal/security/auth"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		name   string
		header map[string]string
		want   string
	}{
		{"forwarded", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-Ip": "198.51.100.4"}, "198.51.100.4"},
		{"both", map[string]string{"X-Forwarded-For": "203.0.113.9", "X-Real-Ip": "198.51.100.4"}, "203.0.113.9"},
		{"none", nil, "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.header {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tc.want {
				t.Fatalf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAreaGate(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", "portal")
	gate := AreaGate(tm, "hq", "automation-secret", audit.NewLogger(nil, nil), nil)

	var seenArea string
	h := gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenArea = AreaFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	hqToken, err := tm.IssueSession("hq", time.Hour)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	sideToken, err := tm.IssueSession("side", time.Hour)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	cases := []struct {
		name  string
		setup func(r *http.Request)
		want  int
	}{
		{"no credentials", func(r *http.Request) {}, http.StatusUnauthorized},
		{"hq cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName("hq"), Value: hqToken}) }, http.StatusOK},
		{"side cookie under hq name", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName("hq"), Value: sideToken}) }, http.StatusUnauthorized},
		{"shared secret", func(r *http.Request) { r.Header.Set(SharedSecretHeader, "automation-secret") }, http.StatusOK},
		{"wrong secret", func(r *http.Request) { r.Header.Set(SharedSecretHeader, "nope") }, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seenArea = ""
			r := httptest.NewRequest(http.MethodGet, "/api/hq/tasks", nil)
			tc.setup(r)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
			if tc.want == http.StatusOK && seenArea != "hq" {
				t.Fatalf("area in context = %q", seenArea)
			}
		})
	}
}

func TestRequestIDPropagates(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}), nil)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "abc123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if seen != "abc123" || w.Header().Get("X-Request-ID") != "abc123" {
		t.Fatalf("request id not propagated: ctx=%q header=%q", seen, w.Header().Get("X-Request-ID"))
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://portal.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("preflight should not reach the handler")
	}))
	r := httptest.NewRequest(http.MethodOptions, "/api/submit", nil)
	r.Header.Set("Origin", "https://portal.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "https://portal.example" {
		t.Fatalf("allow origin = %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}
