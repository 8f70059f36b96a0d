package pagegrid

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with pagegrid-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithManager adds a manager name field (e.g. "rows", "cells").
func (l *Logger) WithManager(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("manager", name),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogCreated logs the construction of a manager.
func (l *Logger) LogCreated(ctx context.Context, kind string, extent string, cfg Config) {
	l.DebugContext(ctx, "page manager created",
		"kind", kind,
		"extent", extent,
		"page_size", cfg.PageSize,
		"max_pages", cfg.MaxPages,
		"ttl", cfg.TTL,
	)
}

// LogLoadRange logs a blocking multi-page load. The count field is the
// number of pages the range spans.
func (l *Logger) LogLoadRange(ctx context.Context, rng string, pages int, err error) {
	lg := l.WithCount(pages)
	if err != nil {
		lg.WarnContext(ctx, "range load failed",
			"range", rng,
			"error", err,
		)
	} else {
		lg.DebugContext(ctx, "range load completed",
			"range", rng,
		)
	}
}

// LogInvalidate logs an explicit cache invalidation.
func (l *Logger) LogInvalidate(ctx context.Context, dropped int) {
	l.InfoContext(ctx, "page cache invalidated",
		"dropped", dropped,
	)
}
