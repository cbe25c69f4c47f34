package core

import (
	"context"
	"time"
)

// Clock supplies the current time to the service.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock. A nil ClockFunc reads the wall clock.
type ClockFunc func() time.Time

// Now returns the current time in UTC.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

// Logger is the structured logging surface used by the service. Arguments are
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AuditStatus is the outcome recorded for an audited operation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one mutating service call.
type AuditEntry struct {
	Operation string
	Entity    EntityType
	Action    Action
	EntityID  string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries for mutating operations.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// MetricsRecorder observes operation outcomes and latency.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// TraceSpan is ended once with the operation error, if any.
type TraceSpan interface {
	End(err error)
}

// Tracer starts a span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopTracer struct{}

type noopSpan struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

func (noopSpan) End(error) {}

// operationMeta maps audited operations onto the entity and action they touch.
var operationMeta = map[string]struct {
	entity EntityType
	action Action
}{
	"create_product":         {EntityProduct, ActionCreate},
	"update_product":         {EntityProduct, ActionUpdate},
	"delete_product":         {EntityProduct, ActionDelete},
	"create_batch":           {EntityBatch, ActionCreate},
	"update_batch":           {EntityBatch, ActionUpdate},
	"record_inspection":      {EntityInspection, ActionCreate},
	"record_sensor_reading":  {EntitySensorReading, ActionCreate},
	"record_lab_test":        {EntityLabTest, ActionCreate},
	"record_packaging_test":  {EntityPackagingTest, ActionCreate},
	"raise_alert":            {EntityAlert, ActionCreate},
	"resolve_alert":          {EntityAlert, ActionUpdate},
	"generate_report":        {EntityQualityReport, ActionCreate},
	"create_shipment_trace":  {EntityShipmentTrace, ActionCreate},
	"advance_shipment_trace": {EntityShipmentTrace, ActionUpdate},
}
