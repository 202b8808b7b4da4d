package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the JSON slog logger used across the service
func NewLogger(level string) *slog.Logger {
	return New(os.Stdout, level)
}

// New writes JSON records at or above level to w
func New(w io.Writer, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(handler).With(slog.String("service", "portal"))
}

// ParseLevel maps a config string to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
