package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.opentelemetry.io/otel/trace"

	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"
	fondlog "github.com/gxo-labs/fondsolve/pkg/fond/v1/log"
)

// Default log level if not specified or invalid.
const defaultLevel = slog.LevelInfo

// parseLogLevel converts common log level strings (case-insensitive) to slog.Level values.
func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return defaultLevel
	}
}

// ResolveFormat turns the "auto" format into "text" when out is a terminal and
// "json" otherwise. Other formats are returned unchanged.
func ResolveFormat(format string, out io.Writer) string {
	if strings.ToLower(format) != "auto" {
		return format
	}
	if f, ok := out.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return "text"
	}
	return "json"
}

// defaultLogger implements fondlog.Logger on top of slog.
type defaultLogger struct {
	// Embedded so Log, LogAttrs and Enabled are reachable directly.
	*slog.Logger
}

// Compile-time check that defaultLogger satisfies fondlog.Logger.
var _ fondlog.Logger = (*defaultLogger)(nil)

// NewLogger creates a Logger with the given level, output format ("text",
// "json" or "auto") and writer (defaults to os.Stderr).
func NewLogger(levelStr string, formatStr string, writer io.Writer) fondlog.Logger {
	level := parseLogLevel(levelStr)
	if writer == nil {
		writer = os.Stderr
	}

	// Level filter plus the uppercase level renderer.
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelAttribute,
	}

	// "auto" is resolved against the writer before a handler is chosen.
	var baseHandler slog.Handler
	switch strings.ToLower(ResolveFormat(formatStr, writer)) {
	case "json":
		baseHandler = slog.NewJSONHandler(writer, opts)
	default:
		baseHandler = slog.NewTextHandler(writer, opts)
	}

	// Every record passes through OtelHandler so solve spans show up in logs.
	return &defaultLogger{
		Logger: slog.New(NewOtelHandler(baseHandler)),
	}
}

// Uppercase rendering of the slog levels used by the solver.
var levelStringMap = map[slog.Level]string{
	slog.LevelDebug: "DEBUG",
	slog.LevelInfo:  "INFO",
	slog.LevelWarn:  "WARN",
	slog.LevelError: "ERROR",
}

// replaceLevelAttribute renders the level attribute as an uppercase string.
func replaceLevelAttribute(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level, ok := a.Value.Any().(slog.Level)
		if !ok {
			return a
		}
		levelStr, exists := levelStringMap[level]
		if !exists {
			// Custom levels keep slog's own form, e.g. "INFO+2".
			levelStr = level.String()
		}
		a.Value = slog.StringValue(levelStr)
	}
	return a
}

// NewDefaultLogger provides a text logger writing to Stderr.
func NewDefaultLogger(levelStr string) fondlog.Logger {
	return NewLogger(levelStr, "text", os.Stderr)
}

// NewDiscardLogger returns a Logger that drops everything. Used by tests and
// by library callers that do not care about solver chatter.
func NewDiscardLogger() fondlog.Logger {
	return NewLogger("error", "text", io.Discard)
}

// Debugf logs a formatted message at DEBUG. Formatting is skipped when the
// level is disabled, which keeps per-node search tracing cheap.
func (l *defaultLogger) Debugf(format string, args ...interface{}) {
	if l.Logger.Enabled(context.Background(), slog.LevelDebug) {
		l.Logger.Log(context.Background(), slog.LevelDebug, fmt.Sprintf(format, args...))
	}
}

// Infof logs a formatted message at INFO.
func (l *defaultLogger) Infof(format string, args ...interface{}) {
	if l.Logger.Enabled(context.Background(), slog.LevelInfo) {
		l.Logger.Log(context.Background(), slog.LevelInfo, fmt.Sprintf(format, args...))
	}
}

// Warnf logs a formatted message at WARN.
func (l *defaultLogger) Warnf(format string, args ...interface{}) {
	if l.Logger.Enabled(context.Background(), slog.LevelWarn) {
		l.Logger.Log(context.Background(), slog.LevelWarn, fmt.Sprintf(format, args...))
	}
}

// Errorf logs at ERROR. If the last argument is a contract violation or an
// exhausted budget, its fields are attached as structured attributes.
func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	if l.Logger.Enabled(context.Background(), slog.LevelError) {
		msg := fmt.Sprintf(format, args...)
		// The original args go along so the helper can inspect the trailing error.
		l.logHelper(context.Background(), slog.LevelError, msg, args...)
	}
}

// logHelper attaches structured attributes for the solver's typed errors.
// Any other error is logged under the plain "error" key.
func (l *defaultLogger) logHelper(ctx context.Context, level slog.Level, msg string, args ...interface{}) {
	if len(args) == 0 {
		l.Logger.Log(ctx, level, msg)
		return
	}
	// Only a trailing error argument is considered.
	err, ok := args[len(args)-1].(error)
	if !ok {
		l.Logger.Log(ctx, level, msg)
		return
	}

	var attrs []any
	var cv *fonderrors.ContractViolationError
	var re *fonderrors.ResourceExhaustedError
	switch {
	case errors.As(err, &cv):
		attrs = append(attrs, slog.String("error_type", "ContractViolationError"), slog.String("component", cv.Component))
		if cv.Subject != "" {
			attrs = append(attrs, slog.String("subject", cv.Subject))
		}
		attrs = append(attrs, slog.String("error", cv.Reason))
	case errors.As(err, &re):
		attrs = append(attrs,
			slog.String("error_type", "ResourceExhaustedError"),
			slog.String("resource", re.Resource),
			slog.Uint64("limit", re.Limit),
			slog.Uint64("observed", re.Observed),
		)
	default:
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.Logger.Log(ctx, level, msg, attrs...)
}

// Log logs msg at level with explicit key-value pairs.
func (l *defaultLogger) Log(level slog.Level, msg string, args ...interface{}) {
	l.Logger.Log(context.Background(), level, msg, args...)
}

// LogCtx logs with ctx so the OtelHandler can attach trace and span ids.
func (l *defaultLogger) LogCtx(ctx context.Context, level slog.Level, msg string, args ...interface{}) {
	l.Logger.Log(ctx, level, msg, args...)
}

// With returns a child Logger carrying the given attributes, e.g. the
// problem name and run id of a solve.
func (l *defaultLogger) With(args ...interface{}) fondlog.Logger {
	return &defaultLogger{Logger: l.Logger.With(args...)}
}

// IsEnabled reports whether records at level would be emitted.
func (l *defaultLogger) IsEnabled(level slog.Level) bool {
	return l.Logger.Enabled(context.Background(), level)
}

// --- OtelHandler for Trace/Span ID Injection ---

// OtelHandler is a slog.Handler middleware that injects trace_id and span_id
// attributes when the logging context carries a valid span.
type OtelHandler struct {
	// next is the wrapped handler that does the actual formatting.
	next slog.Handler
}

// NewOtelHandler creates a new OtelHandler wrapping the provided handler.
func NewOtelHandler(next slog.Handler) *OtelHandler {
	return &OtelHandler{next: next}
}

// Enabled forwards the check to the wrapped handler.
func (h *OtelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle adds trace_id and span_id when ctx carries a valid span, then
// passes the record on.
func (h *OtelHandler) Handle(ctx context.Context, record slog.Record) error {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		record.AddAttrs(
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return h.next.Handle(ctx, record)
}

// WithAttrs keeps the wrapper in place around the derived handler.
func (h *OtelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewOtelHandler(h.next.WithAttrs(attrs))
}

// WithGroup keeps the wrapper in place around the derived handler.
func (h *OtelHandler) WithGroup(name string) slog.Handler {
	return NewOtelHandler(h.next.WithGroup(name))
}
