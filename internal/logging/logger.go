package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps LOG_LEVEL values to slog levels. Unknown values are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// NewJSONHandler returns the stdout handler used by the server.
func NewJSONHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// Setup installs the JSON stdout logger as the slog default and returns its
// handler so it can later be combined with the database sink.
func Setup() slog.Handler {
	handler := NewJSONHandler(os.Stdout, ParseLevel(os.Getenv("LOG_LEVEL")))
	slog.SetDefault(slog.New(handler))
	return handler
}
