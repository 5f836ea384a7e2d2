package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "taskforge"

// Resolution outcomes recorded on taskforge.tenant.resolutions.
const (
	OutcomeCacheHit = "cache_hit"
	OutcomeLookup   = "lookup"
	OutcomeUnknown  = "unknown"
	OutcomeError    = "error"
)

// Metrics holds all TaskForge metric instruments.
type Metrics struct {
	Resolutions     metric.Int64Counter
	ResolveDuration metric.Float64Histogram
	TaskOps         metric.Int64Counter
	OwnershipDenied metric.Int64Counter
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Resolutions, err = meter.Int64Counter("taskforge.tenant.resolutions",
		metric.WithDescription("Tenant resolutions by outcome"))
	if err != nil {
		return nil, err
	}

	m.ResolveDuration, err = meter.Float64Histogram("taskforge.tenant.resolve.duration_seconds",
		metric.WithDescription("Time to resolve a host to its tenant"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.TaskOps, err = meter.Int64Counter("taskforge.tasks.operations",
		metric.WithDescription("Successful task operations by kind"))
	if err != nil {
		return nil, err
	}

	m.OwnershipDenied, err = meter.Int64Counter("taskforge.tasks.ownership_denied",
		metric.WithDescription("Task accesses refused because the task belongs to another tenant"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordResolution counts one resolution and its duration. m may be nil.
func (m *Metrics) RecordResolution(ctx context.Context, outcome string, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.Resolutions.Add(ctx, 1, attrs)
	m.ResolveDuration.Record(ctx, seconds, attrs)
}

// RecordTaskOp counts one successful task operation. m may be nil.
func (m *Metrics) RecordTaskOp(ctx context.Context, op string, tenantID int64) {
	if m == nil {
		return
	}
	m.TaskOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.Int64("tenant_id", tenantID),
	))
}

// RecordOwnershipDenied counts one refused cross-tenant access. m may be nil.
func (m *Metrics) RecordOwnershipDenied(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.OwnershipDenied.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
