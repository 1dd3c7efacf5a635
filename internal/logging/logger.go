package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates a structured logger writing human readable lines to stderr.
// app: application name (e.g., "preload")
// level: one of "debug", "info", "warn", "error" (default: "info")
func New(app string, level string) zerolog.Logger {
	return newWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}, app, level)
}

func newWithWriter(w io.Writer, app string, level string) zerolog.Logger {
	// Add default fields: app and pid
	return zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Str("app", app).
		Int("pid", os.Getpid()).
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "info":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}
