// Package logger is the logging facade shared by the library packages and
// the bandmask CLI. Library code accepts a Logger and never reaches for a
// process-wide default.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the logging interface used across bandmask.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithGroup(name string) Logger
}

// Output formats accepted by ForFormat.
const (
	FormatPretty = "pretty"
	FormatText   = "text"
	FormatJSON   = "json"
)

type slogLogger struct {
	logger *slog.Logger
}

// New wraps an slog handler.
func New(handler slog.Handler) Logger {
	return &slogLogger{logger: slog.New(handler)}
}

// Nop discards everything.
func Nop() Logger {
	return New(slog.DiscardHandler)
}

// Default writes info and above as text to stderr.
func Default() Logger {
	return Text(os.Stderr, slog.LevelInfo)
}

// Text writes logfmt-style records.
func Text(w io.Writer, level slog.Level) Logger {
	return New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// JSON writes one JSON object per record, with source locations.
func JSON(w io.Writer, level slog.Level) Logger {
	return New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	}))
}

// Pretty writes aligned, optionally colored records for terminals.
func Pretty(w io.Writer, level slog.Level, color bool) Logger {
	return New(NewPrettyHandler(w, &PrettyOptions{Level: level, Color: color}))
}

// ForFormat returns the logger for one of FormatPretty, FormatText or
// FormatJSON. color only affects the pretty format.
func ForFormat(w io.Writer, format string, level slog.Level, color bool) (Logger, error) {
	switch strings.ToLower(format) {
	case FormatPretty, "":
		return Pretty(w, level, color), nil
	case FormatText:
		return Text(w, level), nil
	case FormatJSON:
		return JSON(w, level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want pretty, text or json)", format)
	}
}

type loggerKey struct{}

// WithContext stores log in ctx.
func WithContext(ctx context.Context, log Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, log)
}

// FromContext returns the logger stored by WithContext, or Default.
func FromContext(ctx context.Context) Logger {
	if log, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return log
	}
	return Default()
}

func (l *slogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...)}
}

func (l *slogLogger) WithGroup(name string) Logger {
	return &slogLogger{logger: l.logger.WithGroup(name)}
}

// ParseLevel converts debug, info, warn/warning or error (any case) to a
// slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
