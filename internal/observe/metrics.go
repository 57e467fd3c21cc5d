// Package observe provides application-wide observability primitives for
// livescribe: OpenTelemetry metrics, tracing, trace-aware logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported to
// Prometheus by [InitProvider]; [MetricsHandler] serves them on /metrics. A
// package-level default [Metrics] instance ([DefaultMetrics]) is provided for
// convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all livescribe metrics.
const meterName = "github.com/MrWong99/livescribe"

// Drop reasons recorded on [Metrics.FramesDropped].
const (
	DropTransport = "transport" // Send refused: connection not open or queue full.
	DropStopped   = "stopped"   // frame arrived after the session ended.
	DropNotOpen   = "not_open"  // captured while the connection was still opening.
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Audio pipeline ---

	// FramesCaptured counts frames read from the capture device.
	FramesCaptured metric.Int64Counter

	// FramesSent counts frames accepted by the transport.
	FramesSent metric.Int64Counter

	// FramesDropped counts frames that never reached the transport. Use with
	// attribute.String("reason", ...).
	FramesDropped metric.Int64Counter

	// --- Transcript ---

	// TranscriptEvents counts inbound events. Use with
	// attribute.String("kind", "partial"|"final").
	TranscriptEvents metric.Int64Counter

	// Corrections counts vocabulary substitutions applied to finals.
	Corrections metric.Int64Counter

	// --- Session lifecycle ---

	// ConnectDuration tracks how long the backend connect took.
	ConnectDuration metric.Float64Histogram

	// CaptureStartDuration tracks how long the capture device took to deliver
	// its first frame (including any permission prompt).
	CaptureStartDuration metric.Float64Histogram

	// SessionDuration tracks the length of finished recording sessions.
	SessionDuration metric.Float64Histogram

	// SessionErrors counts sessions that ended in the errored state. Use with
	// attribute.String("kind", ...).
	SessionErrors metric.Int64Counter

	// ActiveSessions is 1 while a session is recording.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks status server request time by "route"
	// (mux pattern) and "status_class".
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries (seconds) for connect and device
// start-up latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// sessionBuckets are histogram boundaries (seconds) for session lengths.
var sessionBuckets = []float64{
	5, 15, 30, 60, 300, 900, 1800, 3600, 7200,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.FramesCaptured, err = m.Int64Counter("livescribe.audio.frames_captured",
		metric.WithDescription("Audio frames read from the capture device."),
	); err != nil {
		return nil, err
	}
	if met.FramesSent, err = m.Int64Counter("livescribe.stream.frames_sent",
		metric.WithDescription("Audio frames accepted by the streaming transport."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("livescribe.stream.frames_dropped",
		metric.WithDescription("Audio frames dropped before reaching the backend, by reason."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptEvents, err = m.Int64Counter("livescribe.transcript.events",
		metric.WithDescription("Transcript events received from the backend, by kind."),
	); err != nil {
		return nil, err
	}
	if met.Corrections, err = m.Int64Counter("livescribe.transcript.corrections",
		metric.WithDescription("Vocabulary corrections applied to final segments."),
	); err != nil {
		return nil, err
	}
	if met.SessionErrors, err = m.Int64Counter("livescribe.session.errors",
		metric.WithDescription("Recording sessions that ended in error, by kind."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.ConnectDuration, err = m.Float64Histogram("livescribe.stream.connect.duration",
		metric.WithDescription("Latency of establishing the backend connection."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CaptureStartDuration, err = m.Float64Histogram("livescribe.audio.start.duration",
		metric.WithDescription("Latency until the capture device delivered its first frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("livescribe.session.duration",
		metric.WithDescription("Length of finished recording sessions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sessionBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("livescribe.active_sessions",
		metric.WithDescription("Number of sessions currently recording."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("livescribe.http.request.duration",
		metric.WithDescription("Status server request latency by route and status class."),
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

// RecordFrameDropped increments FramesDropped for reason.
func (m *Metrics) RecordFrameDropped(ctx context.Context, reason string) {
	m.FramesDropped.Add(ctx, 1, metric.WithAttributes(Attr("reason", reason)))
}

// RecordTranscriptEvent increments TranscriptEvents for kind.
func (m *Metrics) RecordTranscriptEvent(ctx context.Context, kind string) {
	m.TranscriptEvents.Add(ctx, 1, metric.WithAttributes(Attr("kind", kind)))
}

// RecordSessionError increments SessionErrors for kind.
func (m *Metrics) RecordSessionError(ctx context.Context, kind string) {
	m.SessionErrors.Add(ctx, 1, metric.WithAttributes(Attr("kind", kind)))
}
