// Package log provides structured logging for go-follow.
// It wraps a process-wide slog logger whose level can change at runtime.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// EnvFormat selects the output format: "json" or "text" (default).
const EnvFormat = "FOLLOW_LOG_FORMAT"

var (
	level  = new(slog.LevelVar)
	logger atomic.Pointer[slog.Logger]
	once   sync.Once
)

// Init sets the log level. It may be called more than once, for example
// after the config file has been read. Unknown levels mean info.
func Init(lvl string) {
	L()
	level.Set(ParseLevel(lvl))
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
func ParseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
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

// Level returns the active level.
func Level() slog.Level {
	return level.Level()
}

// SetOutput replaces the destination of the global logger. Tests use it to
// capture output.
func SetOutput(w io.Writer, json bool) {
	L()
	l := slog.New(newHandler(w, json))
	logger.Store(l)
	slog.SetDefault(l)
}

// L returns the global logger instance.
func L() *slog.Logger {
	once.Do(func() {
		json := strings.EqualFold(os.Getenv(EnvFormat), "json")
		l := slog.New(newHandler(os.Stdout, json))
		logger.Store(l)
		slog.SetDefault(l)
	})
	return logger.Load()
}

func newHandler(w io.Writer, json bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
