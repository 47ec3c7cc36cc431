// Package observe provides application-wide observability primitives for
// Medscribe: OpenTelemetry metrics plus a Prometheus exporter bridge so the
// pipeline can be scraped via the standard /metrics endpoint.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Medscribe metrics.
const meterName = "github.com/refua-labs/medscribe"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency per chunk.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks LLM inference latency.
	LLMDuration metric.Float64Histogram

	// MergeDuration tracks chunk-boundary merge latency.
	MergeDuration metric.Float64Histogram

	// PostprocessDuration tracks transcript post-processing latency.
	PostprocessDuration metric.Float64Histogram

	// SummaryDuration tracks medical-summary generation latency, validation
	// and fix passes included.
	SummaryDuration metric.Float64Histogram

	// --- Counters ---

	// LLMRequests counts LLM API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("task", ...), attribute.String("status", ...)
	LLMRequests metric.Int64Counter

	// LLMErrors counts LLM errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("task", ...)
	LLMErrors metric.Int64Counter

	// LinesDeduplicated counts transcript lines removed by deduplication.
	LinesDeduplicated metric.Int64Counter

	// RewriteFallbacks counts LLM rewrites discarded in favour of the
	// original text by the over-compression guard.
	RewriteFallbacks metric.Int64Counter

	// MedicationWarnings counts medication audit warnings. Use with
	// attribute: attribute.String("kind", ...) — "dosage", "duplicate",
	// "unrecognized".
	MedicationWarnings metric.Int64Counter

	// SummaryValidations counts summary validation outcomes. Use with
	// attribute: attribute.String("passed", "true"|"false").
	SummaryValidations metric.Int64Counter

	// --- Gauges ---

	// ActiveRuns tracks the number of pipeline runs currently in flight.
	ActiveRuns metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Chunked
// transcription and multi-pass summary generation run far longer than a
// typical request/response, so the buckets extend into minutes.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("medscribe.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription per chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("medscribe.llm.duration",
		metric.WithDescription("Latency of LLM inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MergeDuration, err = m.Float64Histogram("medscribe.merge.duration",
		metric.WithDescription("Latency of chunk-boundary merging."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PostprocessDuration, err = m.Float64Histogram("medscribe.postprocess.duration",
		metric.WithDescription("Latency of transcript post-processing."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SummaryDuration, err = m.Float64Histogram("medscribe.summary.duration",
		metric.WithDescription("Latency of medical summary generation and validation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.LLMRequests, err = m.Int64Counter("medscribe.llm.requests",
		metric.WithDescription("Total LLM API requests by provider, task, and status."),
	); err != nil {
		return nil, err
	}
	if met.LLMErrors, err = m.Int64Counter("medscribe.llm.errors",
		metric.WithDescription("Total LLM errors by provider and task."),
	); err != nil {
		return nil, err
	}
	if met.LinesDeduplicated, err = m.Int64Counter("medscribe.postprocess.lines_deduplicated",
		metric.WithDescription("Transcript lines removed by deduplication."),
	); err != nil {
		return nil, err
	}
	if met.RewriteFallbacks, err = m.Int64Counter("medscribe.postprocess.rewrite_fallbacks",
		metric.WithDescription("LLM rewrites discarded by the over-compression guard."),
	); err != nil {
		return nil, err
	}
	if met.MedicationWarnings, err = m.Int64Counter("medscribe.medication.warnings",
		metric.WithDescription("Medication audit warnings by kind."),
	); err != nil {
		return nil, err
	}
	if met.SummaryValidations, err = m.Int64Counter("medscribe.summary.validations",
		metric.WithDescription("Summary validation outcomes by pass/fail."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRuns, err = m.Int64UpDownCounter("medscribe.active_runs",
		metric.WithDescription("Number of pipeline runs currently in flight."),
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

// RecordLLMRequest is a convenience method that records an LLM request
// counter increment with the standard attribute set.
func (m *Metrics) RecordLLMRequest(ctx context.Context, provider, task, status string) {
	m.LLMRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("task", task),
			attribute.String("status", status),
		),
	)
}

// RecordLLMError is a convenience method that records an LLM error counter
// increment.
func (m *Metrics) RecordLLMError(ctx context.Context, provider, task string) {
	m.LLMErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("task", task),
		),
	)
}

// RecordMedicationWarning records one medication audit warning of the given
// kind ("dosage", "duplicate", "unrecognized").
func (m *Metrics) RecordMedicationWarning(ctx context.Context, kind string) {
	m.MedicationWarnings.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordSummaryValidation records a summary validation outcome.
func (m *Metrics) RecordSummaryValidation(ctx context.Context, passed bool) {
	m.SummaryValidations.Add(ctx, 1,
		metric.WithAttributes(attribute.String("passed", strconv.FormatBool(passed))),
	)
}
