
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Logger struct {
	internal *slog.Logger
	level    *slog.LevelVar
}

// New returns an info-level logger writing text to stderr.
func New() *Logger { return NewWithLevel("info", os.Stderr) }

// NewWithLevel parses level (debug, info, warn, error; anything else is info).
func NewWithLevel(level string, w io.Writer) *Logger {
	lvl := new(slog.LevelVar)
	lvl.Set(ParseLevel(level))
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	return &Logger{internal: slog.New(handler), level: lvl}
}

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

// Slog exposes the underlying structured logger.
func (l *Logger) Slog() *slog.Logger { return l.internal }

func (l *Logger) With(args ...any) *Logger {
	return &Logger{internal: l.internal.With(args...), level: l.level}
}

func (l *Logger) Info(msg string, args ...any)  { l.internal.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.internal.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.internal.Error(msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.internal.Debug(msg, args...) }

func (l *Logger) Infof(format string, args ...any) {
	l.internal.Info(fmt.Sprintf(format, args...))
}
func (l *Logger) Errorf(format string, args ...any) {
	l.internal.Error(fmt.Sprintf(format, args...))
}
