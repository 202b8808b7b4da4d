package audit

import (
	"context"
	"log/slog"
	"time"
)

// RequestIDFunc extracts a request id from a context
type RequestIDFunc func(ctx context.Context) string

type Logger struct {
	logger    *slog.Logger
	requestID RequestIDFunc
	now       func() time.Time
}

func NewLogger(logger *slog.Logger, requestID RequestIDFunc) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if requestID == nil {
		requestID = func(context.Context) string { return "" }
	}
	return &Logger{logger: logger.With(slog.String("log", "audit")), requestID: requestID, now: time.Now}
}

func (al *Logger) LogAction(ctx context.Context, area, ip, action, resource, resourceID, status, details string) {
	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("area", area),
		slog.String("ip", ip),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", al.requestID(ctx)),
		slog.Time("timestamp", al.now()),
	)
}

func (al *Logger) LogLogin(ctx context.Context, area, ip, status string) {
	al.LogAction(ctx, area, ip, "login", "session", "", status, "")
}

func (al *Logger) LogDenied(ctx context.Context, area, ip, reason string) {
	al.LogAction(ctx, area, ip, "access_denied", "api", "", "denied", reason)
}
