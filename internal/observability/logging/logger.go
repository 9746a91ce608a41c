package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewJSONLogger builds the process-wide structured logger. Every line
// carries the service name so scanner and backfill runs can be told
// apart in shared log streams. An unrecognized level falls back to
// info and is reported once at startup rather than silently swallowed.
func NewJSONLogger(service, level string) *slog.Logger {
	parsed, known := parseLevel(level)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parsed,
	})
	logger := slog.New(handler).With("service", service)
	if !known {
		logger.Warn("unrecognized_log_level", "value", level, "using", parsed.String())
	}
	return logger
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, true
	case "debug":
		return slog.LevelDebug, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
