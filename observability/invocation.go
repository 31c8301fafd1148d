package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Invocation holds the span and metric state of one tracked tool run.
type Invocation struct {
	Tool      string
	ID        string
	StartTime time.Time

	span    trace.Span
	metrics *Metrics
}

// invocationContextKey is the context key for Invocation.
type invocationContextKey struct{}

// StartInvocation opens a process.execute span and bumps the running count.
// If metrics is nil, metric recording is silently skipped.
func StartInvocation(ctx context.Context, tool, id string, metrics *Metrics, attrs ...attribute.KeyValue) (context.Context, *Invocation) {
	ctx, span := StartSpan(ctx, SpanProcessExecute, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String(AttrTool, tool),
		attribute.String(AttrInvocationID, id),
	)
	span.SetAttributes(attrs...)

	inv := &Invocation{
		Tool:      tool,
		ID:        id,
		StartTime: time.Now(),
		span:      span,
		metrics:   metrics,
	}
	if metrics != nil {
		metrics.RecordInvocationStart(ctx, tool)
	}
	return context.WithValue(ctx, invocationContextKey{}, inv), inv
}

// InvocationFromContext retrieves the Invocation from context, or nil.
func InvocationFromContext(ctx context.Context) *Invocation {
	if inv, ok := ctx.Value(invocationContextKey{}).(*Invocation); ok {
		return inv
	}
	return nil
}

// SetAttributes adds attributes to the invocation span.
func (inv *Invocation) SetAttributes(attrs ...attribute.KeyValue) {
	inv.span.SetAttributes(attrs...)
}

// RecordOutput records captured stream sizes.
func (inv *Invocation) RecordOutput(ctx context.Context, stdout, stderr int) {
	if inv.metrics == nil {
		return
	}
	inv.metrics.RecordOutput(ctx, inv.Tool, "stdout", stdout)
	inv.metrics.RecordOutput(ctx, inv.Tool, "stderr", stderr)
}

// End closes the span and records the invocation outcome.
func (inv *Invocation) End(ctx context.Context, outcome string, err error) {
	duration := time.Since(inv.StartTime)

	if err != nil {
		inv.span.RecordError(err)
		inv.span.SetStatus(codes.Error, outcome)
	}
	inv.span.SetAttributes(
		attribute.String(AttrOutcome, outcome),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	inv.span.End()

	if inv.metrics != nil {
		inv.metrics.RecordInvocationEnd(ctx, inv.Tool, outcome, duration)
	}
}

// Duration returns the elapsed time since the invocation started.
func (inv *Invocation) Duration() time.Duration {
	return time.Since(inv.StartTime)
}
