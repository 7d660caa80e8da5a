// Package observe provides application-wide observability primitives for
// hearscribe: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all hearscribe metrics.
const meterName = "github.com/MrWong99/hearscribe"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// GatewayDuration tracks generative-AI call latency. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", "complete"|"stream")
	GatewayDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// Runs counts finished activities. Use with attributes:
	//   attribute.String("activity", ...), attribute.String("status", ...)
	Runs metric.Int64Counter

	// VideosTranscribed counts videos whose stream completed.
	VideosTranscribed metric.Int64Counter

	// StreamFragments counts text fragments appended to the transcript.
	StreamFragments metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveRuns tracks activities currently holding the processing guard.
	ActiveRuns metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	meter metric.Meter
}

// gatewayBuckets defines histogram bucket boundaries (in seconds) for model
// calls, which range from a second for short text up to many minutes for
// long hearing videos.
var gatewayBuckets = []float64{
	0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1200,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	// Histograms.
	if met.GatewayDuration, err = m.Float64Histogram("hearscribe.gateway.duration",
		metric.WithDescription("Latency of generative-AI gateway calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(gatewayBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("hearscribe.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.Runs, err = m.Int64Counter("hearscribe.runs",
		metric.WithDescription("Total finished activities by activity and status."),
	); err != nil {
		return nil, err
	}
	if met.VideosTranscribed, err = m.Int64Counter("hearscribe.videos.transcribed",
		metric.WithDescription("Total videos transcribed to completion."),
	); err != nil {
		return nil, err
	}
	if met.StreamFragments, err = m.Int64Counter("hearscribe.stream.fragments",
		metric.WithDescription("Total streamed text fragments appended to the transcript."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("hearscribe.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRuns, err = m.Int64UpDownCounter("hearscribe.active_runs",
		metric.WithDescription("Number of activities currently running."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("hearscribe.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// ObserveStoredBlobs reports count as the hearscribe.blobs.stored gauge on
// every collection. The returned function stops the reporting.
func (met *Metrics) ObserveStoredBlobs(count func(context.Context) (int, error)) (unregister func() error, err error) {
	g, err := met.meter.Int64ObservableGauge("hearscribe.blobs.stored",
		metric.WithDescription("Number of uploaded files held in the blob store."),
	)
	if err != nil {
		return nil, err
	}
	reg, err := met.meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		n, err := count(ctx)
		if err != nil {
			return err
		}
		o.ObserveInt64(g, int64(n))
		return nil
	}, g)
	if err != nil {
		return nil, err
	}
	return reg.Unregister, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request counter increment with the
// standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordRun records a finished activity.
func (m *Metrics) RecordRun(ctx context.Context, activity, status string) {
	m.Runs.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("activity", activity),
			attribute.String("status", status),
		),
	)
}
