// Package logging provides the service-wide structured logger: JSON records
// on stderr with a free-form Fields map per call site.
package logging

import (
	"context"
	"log/slog"
	"os"
)

// Fields carries structured attributes for a single log record.
type Fields map[string]any

// Logger wraps slog with the Fields-map call convention used across the
// service.
type Logger struct {
	base *slog.Logger
}

// New returns a Logger tagged with the component name.
func New(component string) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelFromEnv(),
	})
	return &Logger{
		base: slog.New(handler).With(slog.String("component", component)),
	}
}

func levelFromEnv() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) log(level slog.Level, msg string, fields Fields) {
	attrs := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	l.base.Log(context.Background(), level, msg, attrs...)
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, fields Fields) { l.log(slog.LevelDebug, msg, fields) }

// Info logs at info level.
func (l *Logger) Info(msg string, fields Fields) { l.log(slog.LevelInfo, msg, fields) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, fields Fields) { l.log(slog.LevelWarn, msg, fields) }

// Error logs at error level.
func (l *Logger) Error(msg string, fields Fields) { l.log(slog.LevelError, msg, fields) }

// Fatal logs at error level and exits.
func (l *Logger) Fatal(msg string, fields Fields) {
	l.log(slog.LevelError, msg, fields)
	os.Exit(1)
}
