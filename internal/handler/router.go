package handler

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrelhq/portal/internal/observability/metrics"
	"github.com/kestrelhq/portal/internal/security/audit"
	"github.com/kestrelhq/portal/internal/security/auth"
	"github.com/kestrelhq/portal/internal/security/middleware"
	"github.com/kestrelhq/portal/internal/security/ratelimit"
	"github.com/kestrelhq/portal/internal/service"
)

// Deps is everything the HTTP surface needs
type Deps struct {
	Logger *slog.Logger

	Tokens   *auth.TokenManager
	Sessions *service.SessionService
	Limiter  *ratelimit.Limiter
	Audit    *audit.Logger

	Registry    *service.RegistryService
	Submissions *service.SubmissionService
	Surveys     *service.SurveyService
	Employees   *service.EmployeeService
	Tasks       *service.TaskService
	Crons       *service.CronService
	Links       *service.FileLinks
	Board       *BoardHub

	HealthChecks map[string]HealthCheck

	HQSharedSecret string
	SecureCookies  bool
}

// MaxJSONBody caps JSON request bodies, base64 signatures included
const MaxJSONBody = 1 << 20

type decorator func(http.Handler) http.Handler

func chain(h http.Handler, ds ...decorator) http.Handler {
	for i := len(ds) - 1; i >= 0; i-- {
		h = ds[i](h)
	}
	return h
}

// NewRouter registers every route. The returned handler records request metrics by route pattern.
func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	onboarding := NewOnboardingHandler(d.Registry, d.Submissions, d.Surveys, log)
	sessions := NewSessionHandler(d.Sessions, d.Limiter, d.Audit, d.SecureCookies, log)
	employees := NewEmployeeHandler(d.Employees, log)
	tasks := NewTaskHandler(d.Tasks, log)
	crons := NewCronHandler(d.Crons, log)
	health := NewHealthHandler(d.HealthChecks, log)

	public := middleware.RateLimitMiddleware(d.Limiter, log)
	requireJSON := middleware.RequireJSON(log)
	maxBody := middleware.MaxBody(MaxJSONBody)
	jsonBody := func(next http.Handler) http.Handler { return maxBody(requireJSON(next)) }
	hq := []decorator{
		middleware.AreaGate(d.Tokens, service.AreaHQ, d.HQSharedSecret, d.Audit, log),
		middleware.AuditMiddleware(d.Audit),
	}
	hqJSON := append(append([]decorator{}, hq...), jsonBody)

	mux := http.NewServeMux()

	// Public onboarding wizard
	mux.Handle("GET /api/onboarding/{slug}", chain(http.HandlerFunc(onboarding.Plan), public))
	mux.Handle("POST /api/onboarding/{slug}/submit", chain(http.HandlerFunc(onboarding.Submit), public, jsonBody))
	mux.Handle("POST /api/onboarding/{slug}/upload", chain(http.HandlerFunc(onboarding.Upload), public))
	mux.Handle("POST /api/onboarding/{slug}/survey", chain(http.HandlerFunc(onboarding.Survey), public, jsonBody))
	mux.Handle("GET /files/{token}", chain(NewFilesHandler(d.Links, log), public))
	mux.Handle("POST /api/sendgrid/events", chain(NewEmailEventsHandler(d.Employees, log), jsonBody))

	// Area sessions
	for _, area := range []string{service.AreaHQ, service.AreaSide} {
		mux.Handle("POST /api/"+area+"/login", chain(sessions.Login(area), jsonBody))
		mux.Handle("POST /api/"+area+"/logout", sessions.Logout(area))
		mux.Handle("GET /api/"+area+"/session", sessions.Session(area))
	}

	// HQ employees
	mux.Handle("GET /api/hq/employees", chain(http.HandlerFunc(employees.List), hq...))
	mux.Handle("POST /api/hq/employees/archive", chain(http.HandlerFunc(employees.ArchiveMany), hqJSON...))
	mux.Handle("GET /api/hq/employees/{id}", chain(http.HandlerFunc(employees.Get), hq...))
	mux.Handle("POST /api/hq/employees/{id}/archive", chain(http.HandlerFunc(employees.Archive), hqJSON...))
	mux.Handle("POST /api/hq/employees/{id}/restore", chain(http.HandlerFunc(employees.Restore), hq...))

	// HQ task board
	mux.Handle("GET /api/hq/tasks", chain(http.HandlerFunc(tasks.List), hq...))
	mux.Handle("POST /api/hq/tasks", chain(http.HandlerFunc(tasks.Create), hqJSON...))
	mux.Handle("PATCH /api/hq/tasks/{id}", chain(http.HandlerFunc(tasks.Update), hqJSON...))
	mux.Handle("DELETE /api/hq/tasks/{id}", chain(http.HandlerFunc(tasks.Delete), hq...))
	mux.Handle("POST /api/hq/tasks/{id}/move", chain(http.HandlerFunc(tasks.Move), hqJSON...))
	mux.Handle("POST /api/hq/tasks/{id}/blockers", chain(http.HandlerFunc(tasks.AddBlocker), hqJSON...))
	mux.Handle("POST /api/hq/tasks/{id}/blockers/{blockerId}/resolve", chain(http.HandlerFunc(tasks.ResolveBlocker), hqJSON...))
	if d.Board != nil {
		mux.Handle("GET /ws/hq/tasks", chain(d.Board, hq...))
	}

	// HQ crons
	mux.Handle("GET /api/hq/crons", chain(http.HandlerFunc(crons.List), hq...))
	mux.Handle("POST /api/hq/crons/sync", chain(http.HandlerFunc(crons.Sync), hq...))

	// Operations
	mux.HandleFunc("GET /healthz", health.Health)
	mux.HandleFunc("GET /readyz", health.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	return metrics.HTTPMetricsMiddleware(mux)
}
