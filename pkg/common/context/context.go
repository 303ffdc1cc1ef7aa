// Package context carries per-job values through context.Context: the
// job's logger and its debug name.
package context

import (
	"context"
	"log/slog"
)

// key is an unexported type to prevent collisions with context keys from other packages.
type key int

const (
	loggerKey key = iota
	jobNameKey
)

// WithLogger returns a new context with the provided logger embedded.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Logger extracts the slog.Logger from a context. If no logger is
// found, it returns slog.Default().
func Logger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// WithJobName returns a new context recording the running job's debug name.
func WithJobName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, jobNameKey, name)
}

// JobName returns the debug name of the job running under ctx, or "" when
// ctx does not belong to a job.
func JobName(ctx context.Context) string {
	name, _ := ctx.Value(jobNameKey).(string)
	return name
}
