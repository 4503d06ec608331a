package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// ANSI color codes.
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"

	padding = "  " // left padding to align with TUI header
)

// Block attributes are rendered as indented blocks below the log line
// instead of inline key=value pairs. RPC payloads and alert bodies are
// often multi-line JSON.
var blockKeys = map[string]bool{
	"payload": true,
	"content": true,
}

// Secret attributes are never written out.
var secretKeys = map[string]bool{
	"token":            true,
	"participantToken": true,
}

// Options configures a Handler.
type Options struct {
	Level slog.Leveler
	Color bool
}

// Handler is a compact, optionally colored slog handler.
type Handler struct {
	w      io.Writer
	mu     *sync.Mutex
	level  slog.Leveler
	color  bool
	attrs  []slog.Attr
	prefix string
}

// NewHandler creates a new log handler.
func NewHandler(w io.Writer, opts *Options) *Handler {
	if opts == nil {
		opts = &Options{}
	}
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	return &Handler{
		w:     w,
		mu:    &sync.Mutex{},
		level: level,
		color: opts.Color,
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	// Timestamp: short for terminal, full for file.
	var ts string
	if h.color {
		ts = r.Time.Format("15:04:05")
	} else {
		ts = r.Time.Format("2006-01-02 15:04:05.000")
	}

	lvl := levelLabel(r.Level)

	var inline strings.Builder
	var blocks []string
	add := func(key string, v slog.Value) {
		base := key[strings.LastIndex(key, ".")+1:]
		switch {
		case blockKeys[base]:
			blocks = append(blocks, v.String())
		case secretKeys[base]:
			inline.WriteString(h.fmtAttr(key, "[redacted]"))
		default:
			inline.WriteString(h.fmtAttr(key, v.String()))
		}
	}
	// Preset attrs carry their group prefix already.
	for _, a := range h.attrs {
		add(a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		add(h.prefix+a.Key, a.Value)
		return true
	})

	var sb strings.Builder
	if h.color {
		fmt.Fprintf(&sb, "%s%s%s%s %s %s%s\n",
			padding,
			ansiGray, ts, ansiReset,
			colorLevel(r.Level, lvl),
			r.Message, inline.String())
	} else {
		fmt.Fprintf(&sb, "%s %s %s%s\n", ts, lvl, r.Message, inline.String())
	}

	for _, text := range blocks {
		for _, line := range strings.Split(text, "\n") {
			if h.color {
				fmt.Fprintf(&sb, "%s  %s│%s %s\n", padding, ansiGray, ansiReset, line)
			} else {
				fmt.Fprintf(&sb, "  | %s\n", line)
			}
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	combined := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	combined = append(combined, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		combined = append(combined, a)
	}
	clone := *h
	clone.attrs = combined
	return &clone
}

// WithGroup qualifies subsequent attribute keys with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func (h *Handler) fmtAttr(key, value string) string {
	if h.color {
		return fmt.Sprintf(" %s%s%s=%s", ansiGray, key, ansiReset, value)
	}
	return fmt.Sprintf(" %s=%s", key, value)
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERR"
	case level >= slog.LevelWarn:
		return "WRN"
	case level >= slog.LevelInfo:
		return "INF"
	default:
		return "DBG"
	}
}

func colorLevel(level slog.Level, label string) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed + label + ansiReset
	case level >= slog.LevelWarn:
		return ansiYellow + label + ansiReset
	case level >= slog.LevelInfo:
		return ansiCyan + label + ansiReset
	default:
		return ansiGray + label + ansiReset
	}
}
