package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/kalikit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metric names.
const (
	MetricInvocations        = "kalikit.invocations"
	MetricInvocationDuration = "kalikit.invocation.duration"
	MetricInvocationsActive  = "kalikit.invocations.active"
	MetricOutputBytes        = "kalikit.output.bytes"
	MetricActions            = "kalikit.actions"
	MetricActionDuration     = "kalikit.action.duration"
	MetricRequests           = "kalikit.http.requests"
	MetricRequestDuration    = "kalikit.http.request.duration"
)

// Metrics holds the instruments for tool invocations and HTTP requests.
type Metrics struct {
	invocationTotal    metric.Int64Counter
	invocationDuration metric.Float64Histogram
	invocationActive   metric.Int64UpDownCounter
	outputBytes        metric.Int64Counter
	actionTotal        metric.Int64Counter
	actionDuration     metric.Float64Histogram
	requestTotal       metric.Int64Counter
	requestDuration    metric.Float64Histogram
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	invocationTotal, err := meter.Int64Counter(MetricInvocations,
		metric.WithDescription("Tool invocations by tool and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricInvocations, err)
	}

	invocationDuration, err := meter.Float64Histogram(MetricInvocationDuration,
		metric.WithDescription("Wall-clock duration of tool invocations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricInvocationDuration, err)
	}

	invocationActive, err := meter.Int64UpDownCounter(MetricInvocationsActive,
		metric.WithDescription("Tool processes currently running"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s gauge: %w", MetricInvocationsActive, err)
	}

	outputBytes, err := meter.Int64Counter(MetricOutputBytes,
		metric.WithDescription("Bytes captured from tool output streams"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricOutputBytes, err)
	}

	actionTotal, err := meter.Int64Counter(MetricActions,
		metric.WithDescription("Catalog action calls by action and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricActions, err)
	}

	actionDuration, err := meter.Float64Histogram(MetricActionDuration,
		metric.WithDescription("Duration of catalog action calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricActionDuration, err)
	}

	requestTotal, err := meter.Int64Counter(MetricRequests,
		metric.WithDescription("HTTP requests by route and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRequests, err)
	}

	requestDuration, err := meter.Float64Histogram(MetricRequestDuration,
		metric.WithDescription("Duration of HTTP requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricRequestDuration, err)
	}

	return &Metrics{
		invocationTotal:    invocationTotal,
		invocationDuration: invocationDuration,
		invocationActive:   invocationActive,
		outputBytes:        outputBytes,
		actionTotal:        actionTotal,
		actionDuration:     actionDuration,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
	}, nil
}

// RecordInvocationStart increments the running invocation count.
func (m *Metrics) RecordInvocationStart(ctx context.Context, tool string) {
	m.invocationActive.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
}

// RecordInvocationEnd decrements running invocations and records the outcome.
func (m *Metrics) RecordInvocationEnd(ctx context.Context, tool, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("outcome", outcome),
	)
	m.invocationActive.Add(ctx, -1, metric.WithAttributes(attribute.String("tool", tool)))
	m.invocationTotal.Add(ctx, 1, attrs)
	m.invocationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOutput records bytes captured from one output stream.
func (m *Metrics) RecordOutput(ctx context.Context, tool, stream string, n int) {
	if n <= 0 {
		return
	}
	m.outputBytes.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("stream", stream),
	))
}

// RecordAction records one catalog action call.
func (m *Metrics) RecordAction(ctx context.Context, action, status string, duration time.Duration) {
	m.actionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("status", status),
	))
	m.actionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("action", action),
	))
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
	))
}
