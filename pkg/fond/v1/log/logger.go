// Package log defines the logging interface shared by the solver, the search
// core and the CLI.
package log

import (
	"context"
	"log/slog"
)

// Logger is the logging surface every fondsolve component writes through.
// Implementations wrap slog; the search core only ever calls the formatted
// helpers, while the driver uses the structured methods.
type Logger interface {
	// Debugf logs a fmt.Sprintf-formatted message at DEBUG.
	Debugf(format string, args ...interface{})
	// Infof logs a fmt.Sprintf-formatted message at INFO.
	Infof(format string, args ...interface{})
	// Warnf logs a fmt.Sprintf-formatted message at WARN.
	Warnf(format string, args ...interface{})
	// Errorf logs at ERROR. When the last argument is an error, implementations
	// should attach it as a structured attribute.
	Errorf(format string, args ...interface{})

	// Log writes a structured record with key-value attributes.
	Log(level slog.Level, msg string, args ...interface{})
	// LogCtx is Log with a context, so trace and span ids can be attached.
	LogCtx(ctx context.Context, level slog.Level, msg string, args ...interface{})

	// With returns a Logger that adds the given attributes to every record.
	With(args ...interface{}) Logger
	// IsEnabled reports whether records at level would be written.
	IsEnabled(level slog.Level) bool
}
