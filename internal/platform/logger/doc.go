// Package logger configures the process-wide slog logger and provides
// helpers for carrying request-scoped loggers through context.Context.
package logger
