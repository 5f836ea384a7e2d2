package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "taskforge"

// StartResolveSpan starts a span for resolving a host to its tenant.
func StartResolveSpan(ctx context.Context, host string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tenant.resolve",
		trace.WithAttributes(attribute.String("tenant.host", host)),
	)
}

// StartTaskSpan starts a span for a task operation. taskID is 0 for list
// and create.
func StartTaskSpan(ctx context.Context, op string, tenantID, taskID int64) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("task.op", op),
		attribute.Int64("tenant.id", tenantID),
	}
	if taskID != 0 {
		attrs = append(attrs, attribute.Int64("task.id", taskID))
	}
	return otel.Tracer(tracerName).Start(ctx, "task."+op, trace.WithAttributes(attrs...))
}
