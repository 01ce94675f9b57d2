// Package observe provides application-wide observability primitives for
// appgrab: OpenTelemetry metrics, tracing, structured logging helpers, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the status server's /metrics endpoint. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for
// convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all appgrab metrics.
const meterName = "github.com/appgrab/appgrab"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Pipeline counters ---

	// FramesCaptured counts sample frames delivered by the capture session.
	// Use with attribute: attribute.String("session_id", ...)
	FramesCaptured metric.Int64Counter

	// FramesDropped counts sample frames evicted by the queue's drop-oldest
	// overflow policy.
	FramesDropped metric.Int64Counter

	// BytesWritten counts payload bytes appended to the output container.
	BytesWritten metric.Int64Counter

	// CaptureErrors counts mid-stream capture session errors.
	CaptureErrors metric.Int64Counter

	// --- Gauges (UpDownCounters) ---

	// QueueDepth tracks the number of buffers currently queued between the
	// capture callback and the writer.
	QueueDepth metric.Int64UpDownCounter

	// --- Latency histograms ---

	// WriteDuration tracks the latency of a single payload append.
	WriteDuration metric.Float64Histogram

	// SessionDuration tracks wall-clock capture session length.
	SessionDuration metric.Float64Histogram

	// HTTPRequestDuration tracks status server request latency by method
	// and path.
	HTTPRequestDuration metric.Float64Histogram
}

// writeBuckets defines histogram bucket boundaries (in seconds) for disk
// append latency: a healthy write lands well under one buffer interval
// (20 ms); the upper buckets expose writer stalls that force queue drops.
var writeBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02, 0.05, 0.1, 0.25, 0.5, 1}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.FramesCaptured, err = m.Int64Counter("appgrab.capture.frames",
		metric.WithDescription("Total sample frames delivered by the capture session."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("appgrab.queue.dropped_frames",
		metric.WithDescription("Total sample frames evicted by the queue overflow policy."),
	); err != nil {
		return nil, err
	}
	if met.BytesWritten, err = m.Int64Counter("appgrab.writer.bytes",
		metric.WithDescription("Total payload bytes appended to the output container."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.CaptureErrors, err = m.Int64Counter("appgrab.capture.errors",
		metric.WithDescription("Total mid-stream capture session errors."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.QueueDepth, err = m.Int64UpDownCounter("appgrab.queue.depth",
		metric.WithDescription("Buffers currently queued between capture and writer."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.WriteDuration, err = m.Float64Histogram("appgrab.writer.write_duration",
		metric.WithDescription("Latency of a single payload append."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(writeBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("appgrab.session.duration",
		metric.WithDescription("Wall-clock capture session length."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("appgrab.http.request.duration",
		metric.WithDescription("Status server request latency by method and path."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
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
