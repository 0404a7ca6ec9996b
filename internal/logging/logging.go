// Package logging carries a request-scoped *slog.Logger through the
// scheduler's context chain, so handlers and services can log with the
// request id and method attributes the HTTP middleware attached.
package logging

import (
	"context"
	"log/slog"
)

// loggerKey is the private context key for the request logger.
type loggerKey struct{}

// ContextWithLogger returns a derived context carrying the logger. A nil
// context or logger leaves the chain untouched.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger attached to the context, or nil when none
// was attached. Callers fall back to their own base logger on nil.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(loggerKey{}).(*slog.Logger)
	return logger
}
