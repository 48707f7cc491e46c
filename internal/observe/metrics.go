// Package observe provides observability primitives for the interview host:
// OpenTelemetry metrics, tracing, trace-aware logging and HTTP middleware.
//
// Metrics are recorded through the OpenTelemetry Metrics API and bridged to
// Prometheus by [InitProvider] so they can be scraped on /metrics. A
// package-level [DefaultMetrics] is provided for convenience; tests should use
// [NewMetrics] with their own [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all metrics.
const meterName = "github.com/cruso003/JobGenie-sub001"

// Metrics holds all metric instruments. Safe for concurrent use.
type Metrics struct {
	// --- Media ---

	// ChunksSent counts media chunks accepted by the transport. Use with
	// attribute.String("kind", "audio"|"image").
	ChunksSent metric.Int64Counter

	// ChunksDropped counts chunks the transport refused because it was not
	// connected. Same attributes as ChunksSent.
	ChunksDropped metric.Int64Counter

	// FramesGated counts microphone frames held back while the model spoke.
	FramesGated metric.Int64Counter

	// FrameEncodeDuration tracks camera frame JPEG encoding time.
	FrameEncodeDuration metric.Float64Histogram

	// --- Sessions ---

	// ActiveSessions tracks interviews between ready and teardown.
	ActiveSessions metric.Int64UpDownCounter

	// SessionDuration tracks interview length from ready to teardown.
	SessionDuration metric.Float64Histogram

	// SessionErrors counts failed sessions. Use with
	// attribute.String("kind", ...).
	SessionErrors metric.Int64Counter

	// TransportReadyDuration tracks the time from Connect to ready.
	TransportReadyDuration metric.Float64Histogram

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attribute.String("method", ...), attribute.String("path", ...).
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds for handshake and
// encode latencies.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// sessionBuckets are histogram boundaries in seconds for interview length.
var sessionBuckets = []float64{
	30, 60, 120, 300, 600, 900, 1800, 3600,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.ChunksSent, err = m.Int64Counter("jobgenie.chunks.sent",
		metric.WithDescription("Media chunks sent to the live service by kind."),
	); err != nil {
		return nil, err
	}
	if met.ChunksDropped, err = m.Int64Counter("jobgenie.chunks.dropped",
		metric.WithDescription("Media chunks dropped because the transport was not connected."),
	); err != nil {
		return nil, err
	}
	if met.FramesGated, err = m.Int64Counter("jobgenie.frames.gated",
		metric.WithDescription("Microphone frames held back while the model was speaking."),
	); err != nil {
		return nil, err
	}
	if met.SessionErrors, err = m.Int64Counter("jobgenie.session.errors",
		metric.WithDescription("Failed interview sessions by error kind."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.FrameEncodeDuration, err = m.Float64Histogram("jobgenie.frame.encode.duration",
		metric.WithDescription("Latency of camera frame JPEG encoding."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TransportReadyDuration, err = m.Float64Histogram("jobgenie.transport.ready.duration",
		metric.WithDescription("Time from connect until the live service acknowledged setup."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("jobgenie.session.duration",
		metric.WithDescription("Interview length from ready to teardown."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sessionBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.ActiveSessions, err = m.Int64UpDownCounter("jobgenie.active_sessions",
		metric.WithDescription("Number of streaming interviews."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("jobgenie.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
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

// DefaultMetrics returns the package-level [Metrics], created on first call
// from [otel.GetMeterProvider]. Panics if instrument creation fails.
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

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordChunk counts one chunk of kind as sent or dropped.
func (m *Metrics) RecordChunk(ctx context.Context, kind string, sent bool) {
	c := m.ChunksSent
	if !sent {
		c = m.ChunksDropped
	}
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordSessionError counts a failed session of the given error kind.
func (m *Metrics) RecordSessionError(ctx context.Context, kind string) {
	m.SessionErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}
