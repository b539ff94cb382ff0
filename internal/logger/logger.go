// Package logger provides structured logging for lyrics-relay.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the global logger instance
var Logger *slog.Logger

// Init initializes a JSON logger on stdout with trace context support
func Init(level string) *slog.Logger {
	return InitWithWriter(os.Stdout, level)
}

// InitWithWriter initializes the global logger writing to w at the given level.
func InitWithWriter(w io.Writer, level string) *slog.Logger {
	lvl := parseLevel(level)

	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})
	// Wrap with TraceContextHandler to include trace_id/span_id in stdout logs
	handler := NewTraceContextHandler(jsonHandler)

	Logger = slog.New(handler).With("service", "lyrics-relay")
	slog.SetDefault(Logger)

	Logger.Info("Logger initialized", "level", lvl.String())

	return Logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
