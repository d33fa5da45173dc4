package tracing

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	codes "go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"
)

// RecordErrorWithContext records err on span and marks the span as failed.
// Contract violations additionally carry the offending component so traces
// can be filtered by collaborator. Does nothing if err is nil or the span is
// not recording.
func RecordErrorWithContext(span oteltrace.Span, err error) {
	if err == nil || span == nil || !span.IsRecording() {
		return
	}
	var attrs []attribute.KeyValue
	var cv *fonderrors.ContractViolationError
	if errors.As(err, &cv) {
		attrs = append(attrs,
			attribute.String("fond.contract.component", cv.Component),
			attribute.String("fond.contract.subject", cv.Subject),
		)
	}
	span.RecordError(err, oteltrace.WithStackTrace(true), oteltrace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}
