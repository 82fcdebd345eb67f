// Package observe provides application-wide observability primitives for
// vibecoding: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all vibecoding metrics.
const meterName = "github.com/MrWong99/vibecoding"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ── Latency histograms ──

	// FormatDuration tracks rule-based formatting latency.
	FormatDuration metric.Float64Histogram

	// RewriteDuration tracks LLM rewrite latency, successful or not.
	RewriteDuration metric.Float64Histogram

	// ── Counters ──

	// Cleanups counts finished cleanups. Attributes: method ("rules", "llm"),
	// status ("ok", "error").
	Cleanups metric.Int64Counter

	// RewriteFallbacks counts rewrites that were discarded in favour of rule
	// formatting. Attribute: reason.
	RewriteFallbacks metric.Int64Counter

	// ProviderRequests counts LLM backend calls. Attributes: provider, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts LLM backend errors. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// ── Gauges ──

	// StreamActive tracks the number of open WebSocket streams.
	StreamActive metric.Int64UpDownCounter

	// ── HTTP middleware ──

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, path, status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Rule
// formatting lands in the first buckets, LLM round-trips in the last ones.
var latencyBuckets = []float64{
	0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FormatDuration, err = m.Float64Histogram("vibecoding.format.duration",
		metric.WithDescription("Latency of rule-based transcript formatting."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RewriteDuration, err = m.Float64Histogram("vibecoding.rewrite.duration",
		metric.WithDescription("Latency of LLM transcript rewrites."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Cleanups, err = m.Int64Counter("vibecoding.cleanups",
		metric.WithDescription("Total transcript cleanups by method and status."),
	); err != nil {
		return nil, err
	}
	if met.RewriteFallbacks, err = m.Int64Counter("vibecoding.rewrite.fallbacks",
		metric.WithDescription("Total LLM rewrites replaced by rule formatting, by reason."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("vibecoding.provider.requests",
		metric.WithDescription("Total LLM provider requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("vibecoding.provider.errors",
		metric.WithDescription("Total LLM provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	if met.StreamActive, err = m.Int64UpDownCounter("vibecoding.stream.active",
		metric.WithDescription("Number of open WebSocket transcript streams."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("vibecoding.http.request.duration",
		metric.WithDescription("HTTP request latency by method, path and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordFormat records the latency of one rule-based formatting pass.
func (m *Metrics) RecordFormat(ctx context.Context, d time.Duration) {
	m.FormatDuration.Record(ctx, d.Seconds())
}

// RecordRewrite records the latency of one LLM rewrite attempt.
func (m *Metrics) RecordRewrite(ctx context.Context, d time.Duration, status string) {
	m.RewriteDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordCleanup increments the cleanup counter.
func (m *Metrics) RecordCleanup(ctx context.Context, method, status string) {
	m.Cleanups.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("status", status),
		),
	)
}

// RecordFallback increments the rewrite fallback counter.
func (m *Metrics) RecordFallback(ctx context.Context, reason string) {
	m.RewriteFallbacks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordProviderRequest increments the provider request counter.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError increments the provider error counter.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
