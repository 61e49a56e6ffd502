// Package slogger provides structured logging for pngopt using Go's slog
// with charmbracelet/log as the handler.
package slogger

import (
	"context"
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type contextKey string

const loggerKey contextKey = "logger"

// Config holds logger configuration.
type Config struct {
	// Verbosity controls log level:
	// 0 (default) -> Error only
	// 1 (-v)      -> Info level
	// 2+ (-vv)    -> Debug level
	Verbosity int

	// JSON switches to machine-readable output, one object per line.
	JSON bool

	// Output is the writer for log output. Defaults to os.Stderr.
	Output io.Writer
}

// Level maps a verbosity count to a charm log level.
func Level(verbosity int) charmlog.Level {
	switch {
	case verbosity >= 2:
		return charmlog.DebugLevel
	case verbosity == 1:
		return charmlog.InfoLevel
	default:
		return charmlog.ErrorLevel
	}
}

// New creates a new slog.Logger with charmbracelet/log as the handler.
func New(cfg Config) *slog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	opts := charmlog.Options{
		Level:  Level(cfg.Verbosity),
		Prefix: "pngopt",
		// Timestamps only help when correlating debug output across runs.
		ReportTimestamp: cfg.Verbosity >= 2,
	}
	if cfg.JSON {
		opts.Formatter = charmlog.JSONFormatter
		opts.ReportTimestamp = true
	}

	return slog.New(charmlog.NewWithOptions(output, opts))
}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context.
// Returns a discarding logger if none is set (never returns nil).
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.New(slog.DiscardHandler)
}

// L is a convenience alias for FromContext.
func L(ctx context.Context) *slog.Logger {
	return FromContext(ctx)
}
