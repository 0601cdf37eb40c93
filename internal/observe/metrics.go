// Package observe provides application-wide observability primitives for
// Anima: OpenTelemetry metrics with a Prometheus exporter bridge so
// operators can scrape the standard /metrics endpoint.
//
// A package-level default is intentionally absent — the server owns one
// [Metrics] instance and hands it to each session's orchestrator. Tests
// use [NewMetrics] with a private MeterProvider to avoid cross-test
// pollution.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Anima metrics.
const meterName = "github.com/loiter74/Anima-LLM-Vtuber-sub001"

// latencyBuckets defines histogram bucket boundaries (in seconds) sized
// for conversational pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 120,
}

// Metrics holds all OpenTelemetry metric instruments for the server.
// All fields are safe for concurrent use.
type Metrics struct {
	// TurnDuration tracks end-to-end turn latency (input to closing event).
	TurnDuration metric.Float64Histogram

	// ASRDuration tracks speech-to-text transcription latency.
	ASRDuration metric.Float64Histogram

	// TTSDuration tracks per-sentence synthesis latency.
	TTSDuration metric.Float64Histogram

	// Turns counts started turns.
	Turns metric.Int64Counter

	// Interrupts counts client barge-ins.
	Interrupts metric.Int64Counter

	// ProviderErrors counts provider failures. Attribute: kind.
	ProviderErrors metric.Int64Counter

	// ActiveSessions tracks the number of connected sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// NewMetrics creates a fully initialised [Metrics] using the given
// MeterProvider. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TurnDuration, err = m.Float64Histogram("anima.turn.duration",
		metric.WithDescription("End-to-end latency of one conversation turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ASRDuration, err = m.Float64Histogram("anima.asr.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("anima.tts.duration",
		metric.WithDescription("Latency of per-sentence speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Turns, err = m.Int64Counter("anima.turns",
		metric.WithDescription("Number of conversation turns started."),
	); err != nil {
		return nil, err
	}
	if met.Interrupts, err = m.Int64Counter("anima.interrupts",
		metric.WithDescription("Number of client barge-ins."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("anima.provider.errors",
		metric.WithDescription("Number of provider failures by error kind."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("anima.sessions.active",
		metric.WithDescription("Number of connected client sessions."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// AddTurn records a started turn.
func (m *Metrics) AddTurn(ctx context.Context) {
	m.Turns.Add(ctx, 1)
}

// AddInterrupt records a barge-in.
func (m *Metrics) AddInterrupt(ctx context.Context) {
	m.Interrupts.Add(ctx, 1)
}

// AddProviderError records a provider failure of the given error kind.
func (m *Metrics) AddProviderError(ctx context.Context, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordTurnDuration records one turn's end-to-end latency in seconds.
func (m *Metrics) RecordTurnDuration(ctx context.Context, seconds float64) {
	m.TurnDuration.Record(ctx, seconds)
}

// SessionOpened adjusts the active-session gauge up.
func (m *Metrics) SessionOpened(ctx context.Context) {
	m.ActiveSessions.Add(ctx, 1)
}

// SessionClosed adjusts the active-session gauge down.
func (m *Metrics) SessionClosed(ctx context.Context) {
	m.ActiveSessions.Add(ctx, -1)
}
