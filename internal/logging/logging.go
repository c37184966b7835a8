// Package logging builds structured loggers for injection into kzdb's
// components. There is deliberately no package-level logger: every
// component takes a *slog.Logger at construction time so tests can inject
// a buffer-backed handler instead of reaching into global state.
package logging

import (
	"io"
	"log/slog"
	"os"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config controls how New builds a handler.
type Config struct {
	Level  Level
	Format string // "json" or "text"
	Output io.Writer
}

// New builds a ready-to-use *slog.Logger from cfg. A zero Config yields a
// sensible default (info level, text format, stderr).
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var level slog.Level
	switch cfg.Level {
	case LevelDebug:
		level = slog.LevelDebug
	case LevelWarn:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

// Or returns l if non-nil, otherwise slog.Default(). Components call this
// at construction so a nil *slog.Logger in opts never panics.
func Or(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
