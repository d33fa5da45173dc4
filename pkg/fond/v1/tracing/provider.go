package tracing

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// TracerProvider is the tracing surface the solver depends on. It lets library
// users plug fondsolve spans into their own OpenTelemetry pipeline.
type TracerProvider interface {
	// GetTracer returns a named Tracer, mirroring trace.TracerProvider.
	GetTracer(name string, opts ...trace.TracerOption) trace.Tracer

	// Shutdown flushes buffered spans. ctx should carry a deadline. NoOp
	// implementations return nil.
	Shutdown(ctx context.Context) error
}
