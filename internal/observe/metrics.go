// Package observe provides application-wide observability primitives for the
// sauti gateway: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all sauti metrics.
const meterName = "github.com/sautilabs/sauti"

// Metrics holds all OpenTelemetry metric instruments for the gateway.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// InferenceDuration tracks engine transcription latency (the engine call
	// only, excluding normalization and validation). Use with attributes:
	//   attribute.String("model", ...), attribute.String("engine", ...)
	InferenceDuration metric.Float64Histogram

	// SynthesisDuration tracks text-to-speech synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// NormalizeDuration tracks audio decode + resample latency.
	NormalizeDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// TranscribeRequests counts transcription requests. Use with attributes:
	//   attribute.String("model", ...), attribute.String("status", ...)
	TranscribeRequests metric.Int64Counter

	// SynthesisRequests counts synthesis requests. Use with attribute:
	//   attribute.String("status", ...) ("synthesized", "duplicate_message", "exists", "error")
	SynthesisRequests metric.Int64Counter

	// EngineErrors counts backend-internal failures. Use with attributes:
	//   attribute.String("model", ...), attribute.String("engine", ...)
	EngineErrors metric.Int64Counter

	// ScorerSwaps counts scorer transitions. Use with attribute:
	//   attribute.String("model", ...)
	ScorerSwaps metric.Int64Counter

	// --- Gauges ---

	// LoadedModels tracks the number of models in the registry.
	LoadedModels metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for batch speech-inference latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.InferenceDuration, err = m.Float64Histogram("sauti.inference.duration",
		metric.WithDescription("Latency of engine transcription, inference only."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("sauti.synthesis.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.NormalizeDuration, err = m.Float64Histogram("sauti.normalize.duration",
		metric.WithDescription("Latency of audio decoding and resampling."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("sauti.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.TranscribeRequests, err = m.Int64Counter("sauti.transcribe.requests",
		metric.WithDescription("Total transcription requests by model and status."),
	); err != nil {
		return nil, err
	}
	if met.SynthesisRequests, err = m.Int64Counter("sauti.synthesis.requests",
		metric.WithDescription("Total synthesis requests by status."),
	); err != nil {
		return nil, err
	}
	if met.EngineErrors, err = m.Int64Counter("sauti.engine.errors",
		metric.WithDescription("Total backend-internal failures by model and engine."),
	); err != nil {
		return nil, err
	}
	if met.ScorerSwaps, err = m.Int64Counter("sauti.scorer.swaps",
		metric.WithDescription("Total scorer transitions by model."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.LoadedModels, err = m.Int64UpDownCounter("sauti.loaded_models",
		metric.WithDescription("Number of models currently in the registry."),
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
			panic("observe: create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}
