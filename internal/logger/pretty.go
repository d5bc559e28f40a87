package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
)

// PrettyOptions configures a PrettyHandler.
type PrettyOptions struct {
	Level slog.Leveler
	// Color enables ANSI escapes. Leave it off when the writer is not a
	// terminal.
	Color bool
}

// PrettyHandler is an slog.Handler producing one aligned line per record:
//
//	15:04:05 INFO  message key=value
type PrettyHandler struct {
	opts   PrettyOptions
	mu     *sync.Mutex
	w      io.Writer
	prefix string
	attrs  []slog.Attr
}

// NewPrettyHandler creates a PrettyHandler writing to w.
func NewPrettyHandler(w io.Writer, opts *PrettyOptions) *PrettyHandler {
	h := &PrettyHandler{w: w, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle formats and writes a log record.
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)

	buf = h.paint(buf, ansiGray)
	buf = r.Time.AppendFormat(buf, time.TimeOnly)
	buf = h.paint(buf, ansiReset)
	buf = append(buf, ' ')

	buf = h.paint(buf, levelColor(r.Level))
	buf = h.paint(buf, ansiBold)
	buf = append(buf, fmt.Sprintf("%-5s", r.Level.String())...)
	buf = h.paint(buf, ansiReset)
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	if len(h.attrs) > 0 || r.NumAttrs() > 0 {
		buf = h.paint(buf, ansiCyan)
		for _, a := range h.attrs {
			buf = append(buf, ' ')
			buf = appendAttr(buf, a, "")
		}
		r.Attrs(func(a slog.Attr) bool {
			buf = append(buf, ' ')
			buf = appendAttr(buf, a, h.prefix)
			return true
		})
		buf = h.paint(buf, ansiReset)
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

// WithAttrs returns a handler that appends attrs to every record. The
// attributes are qualified with the groups opened so far.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + "." + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	return c
}

// WithGroup returns a handler that qualifies later attributes with name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	if c.prefix == "" {
		c.prefix = name
	} else {
		c.prefix += "." + name
	}
	return c
}

func (h *PrettyHandler) clone() *PrettyHandler {
	return &PrettyHandler{
		opts:   h.opts,
		mu:     h.mu,
		w:      h.w,
		prefix: h.prefix,
		attrs:  append([]slog.Attr(nil), h.attrs...),
	}
}

func (h *PrettyHandler) paint(buf []byte, code string) []byte {
	if !h.opts.Color {
		return buf
	}
	return append(buf, code...)
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed
	case level >= slog.LevelWarn:
		return ansiYellow
	case level >= slog.LevelInfo:
		return ansiBlue
	default:
		return ansiGray
	}
}

func appendAttr(buf []byte, a slog.Attr, prefix string) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		for i, ga := range group {
			if i > 0 {
				buf = append(buf, ' ')
			}
			buf = appendAttr(buf, ga, key)
		}
		return buf
	}

	buf = append(buf, key...)
	buf = append(buf, '=')
	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if needsQuoting(s) {
			buf = fmt.Appendf(buf, "%q", s)
		} else {
			buf = append(buf, s...)
		}
	case slog.KindTime:
		buf = a.Value.Time().AppendFormat(buf, time.RFC3339)
	default:
		buf = append(buf, a.Value.String()...)
	}
	return buf
}

func needsQuoting(s string) bool {
	return strings.ContainsAny(s, " \t\n\"=")
}
