package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures the rotated log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ParseLevel maps a config level name to a slog level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// Terminal installs a colored handler on stderr as the default logger.
func Terminal(level slog.Leveler) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, &Options{Level: level, Color: true})))
}

// ToFile installs a plain handler writing to a rotated file as the default
// logger. It is used while the TUI owns the terminal. The returned closer
// flushes and closes the file.
func ToFile(opts FileOptions, level slog.Leveler) (io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		slog.SetDefault(slog.New(NewHandler(io.Discard, nil)))
		return io.NopCloser(nil), fmt.Errorf("create log dir: %w", err)
	}

	w := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	slog.SetDefault(slog.New(NewHandler(w, &Options{Level: level})))
	return w, nil
}
