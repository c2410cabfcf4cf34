// Package observe provides application-wide observability primitives for
// mptmeter: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
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

// meterName is the instrumentation scope name used for all mptmeter metrics.
const meterName = "github.com/MrWong99/mptmeter"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Histograms ---

	// AnalysisDuration tracks wall-clock processing time of one analysis.
	AnalysisDuration metric.Float64Histogram

	// PhonationDuration tracks the measured maximum phonation time. Only
	// valid (non-INVALID) results are recorded.
	PhonationDuration metric.Float64Histogram

	// --- Counters ---

	// Analyses counts completed analyses. Use with attributes:
	//   attribute.String("urgency", ...), attribute.String("vad_mode", ...)
	Analyses metric.Int64Counter

	// --- Error counters ---

	// AnalysisErrors counts failed or invalid analyses. Use with attribute:
	//   attribute.String("kind", ...)
	AnalysisErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live streaming analysis sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// analysis processing time.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// phonationBuckets follow the clinical bands so each band lands in its own
// bucket range.
var phonationBuckets = []float64{
	2, 4, 6, 8, 10, 12, 15, 20, 25, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AnalysisDuration, err = m.Float64Histogram("mptmeter.analysis.duration",
		metric.WithDescription("Processing latency of one MPT analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PhonationDuration, err = m.Float64Histogram("mptmeter.phonation.duration",
		metric.WithDescription("Measured maximum phonation time of valid analyses."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(phonationBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Analyses, err = m.Int64Counter("mptmeter.analyses",
		metric.WithDescription("Total completed analyses by urgency and VAD mode."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.AnalysisErrors, err = m.Int64Counter("mptmeter.analysis.errors",
		metric.WithDescription("Total failed or invalid analyses by kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("mptmeter.active_sessions",
		metric.WithDescription("Number of live streaming analysis sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("mptmeter.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
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

// RecordAnalysis records one completed analysis: the counter increment with
// its urgency and VAD mode, the processing latency, and, when valid is true,
// the measured phonation time.
func (m *Metrics) RecordAnalysis(ctx context.Context, urgency, vadMode string, elapsedSec, phonationSec float64, valid bool) {
	m.Analyses.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("urgency", urgency),
			attribute.String("vad_mode", vadMode),
		),
	)
	m.AnalysisDuration.Record(ctx, elapsedSec)
	if valid {
		m.PhonationDuration.Record(ctx, phonationSec)
	}
}

// RecordAnalysisError is a convenience method that records an analysis error
// counter increment.
func (m *Metrics) RecordAnalysisError(ctx context.Context, kind string) {
	m.AnalysisErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}
