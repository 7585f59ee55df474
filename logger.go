package gisdb

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with gisdb-specific helpers and consistent
// field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, a text handler on stderr at info level is used.
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

// NewJSONLogger creates a Logger writing JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger writing human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// WithPath adds a path field.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// WithSchema adds a schema field.
func (l *Logger) WithSchema(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("schema", id),
	}
}

// LogBuild logs the outcome of a build.
func (l *Logger) LogBuild(ctx context.Context, dest string, items int, size int64, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"dest", dest,
			"items", items,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "build completed",
		"dest", dest,
		"items", items,
		"bytes", size,
		"duration", d,
	)
}

// LogOpen logs the outcome of opening a database.
func (l *Logger) LogOpen(ctx context.Context, source string, items, strs int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"source", source,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "database opened",
		"source", source,
		"items", items,
		"strings", strs,
	)
}

// LogDuplicate logs an item replaced under DuplicateReplace.
func (l *Logger) LogDuplicate(ctx context.Context, name string) {
	l.WarnContext(ctx, "duplicate item name, replacing earlier item",
		"name", name,
	)
}

// LogCorruption logs a structural error found while querying.
func (l *Logger) LogCorruption(ctx context.Context, op string, err error) {
	l.ErrorContext(ctx, "database corruption detected",
		"op", op,
		"error", err,
	)
}
