package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// QueryMeta describes one read for telemetry purposes.
type QueryMeta struct {
	Endpoint string // endpoint name (required)
	Identity string // canonical identity (optional)
}

// SpanName returns the deterministic span name for this query.
func (m QueryMeta) SpanName() string {
	return "query.fetch." + m.Endpoint
}

// StartQuerySpan starts a span for a read with the query metadata attached.
func StartQuerySpan(ctx context.Context, tracer trace.Tracer, meta QueryMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("query.endpoint", meta.Endpoint),
	}
	if meta.Identity != "" {
		attrs = append(attrs, attribute.String("query.identity", meta.Identity))
	}
	return tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan ends the span, recording the error status if present.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
