// Package observe provides application-wide observability primitives for
// Zinnia: OpenTelemetry metrics, tracing, structured logging helpers, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [Setup] wires
// a Prometheus exporter so they can be scraped from the /metrics endpoint. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Zinnia metrics.
const meterName = "github.com/MrWong99/zinnia"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use. The underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Capture ---

	// WakeDetections counts wake-word detections.
	WakeDetections metric.Int64Counter

	// FramesDropped counts capture batches discarded while a command runs.
	FramesDropped metric.Int64Counter

	// RecognizerErrors counts recognizer and detector failures. Use with
	// attribute:
	//   attribute.String("stage", "wakeword"|"recognizer")
	RecognizerErrors metric.Int64Counter

	// Utterances counts finalized utterances handed to dispatch.
	Utterances metric.Int64Counter

	// CaptureState tracks the active capture state. Exactly one state carries
	// the value 1 at any time. Use with attribute:
	//   attribute.String("state", ...)
	CaptureState metric.Int64UpDownCounter

	// --- Dispatch ---

	// DispatchTurns counts dispatched utterances. Use with attributes:
	//   attribute.String("handler", ...), attribute.String("result", ...)
	DispatchTurns metric.Int64Counter

	// RetryPrompts counts utterances that matched no handler.
	RetryPrompts metric.Int64Counter

	// DispatchDuration tracks how long a handler effect takes.
	DispatchDuration metric.Float64Histogram

	// PendingTimers tracks timers and alarms waiting to fire.
	PendingTimers metric.Int64UpDownCounter

	// --- Speech output ---

	// SpeechRequests counts requests taken off the speech queue.
	SpeechRequests metric.Int64Counter

	// SpeechErrors counts dropped speech requests. Use with attribute:
	//   attribute.String("stage", "synthesize"|"play")
	SpeechErrors metric.Int64Counter

	// SynthesisDuration tracks text-to-speech synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// PlaybackDuration tracks how long playback of one request takes.
	PlaybackDuration metric.Float64Histogram

	// --- Provider fallback ---

	// ProviderFailures counts failed calls per provider slot. Use with
	// attributes:
	//   attribute.String("slot", "stt"|"tts"|"llm"),
	//   attribute.String("provider", ...),
	//   attribute.String("reason", "error"|"circuit_open")
	ProviderFailures metric.Int64Counter

	// Failovers counts calls served by a fallback instead of the primary.
	// Use with attributes:
	//   attribute.String("slot", ...), attribute.String("provider", ...)
	Failovers metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Use with
	// attributes:
	//   attribute.String("breaker", ...),
	//   attribute.String("to", "closed"|"open"|"half_open")
	BreakerTransitions metric.Int64Counter

	// --- Status server ---

	// HTTPRequestDuration tracks status endpoint latency. Use with attributes:
	//   attribute.String("route", "/healthz"|"/readyz"|"/metrics"|"other"),
	//   attribute.Int("status", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// synthesis and handler latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// playbackBuckets covers spoken responses from a short acknowledgement up to a
// long weather report.
var playbackBuckets = []float64{
	0.25, 0.5, 1, 2, 4, 8, 15, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Capture.
	if met.WakeDetections, err = m.Int64Counter("zinnia.wakeword.detections",
		metric.WithDescription("Total wake-word detections."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("zinnia.capture.frames.dropped",
		metric.WithDescription("Capture batches dropped while a command was running."),
	); err != nil {
		return nil, err
	}
	if met.RecognizerErrors, err = m.Int64Counter("zinnia.recognizer.errors",
		metric.WithDescription("Wake-word and recognizer failures by stage."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("zinnia.utterances",
		metric.WithDescription("Total finalized utterances."),
	); err != nil {
		return nil, err
	}
	if met.CaptureState, err = m.Int64UpDownCounter("zinnia.capture.state",
		metric.WithDescription("Active capture state (1 for the current state)."),
	); err != nil {
		return nil, err
	}

	// Dispatch.
	if met.DispatchTurns, err = m.Int64Counter("zinnia.dispatch.turns",
		metric.WithDescription("Dispatched utterances by handler and result."),
	); err != nil {
		return nil, err
	}
	if met.RetryPrompts, err = m.Int64Counter("zinnia.dispatch.retry_prompts",
		metric.WithDescription("Utterances that matched no command."),
	); err != nil {
		return nil, err
	}
	if met.DispatchDuration, err = m.Float64Histogram("zinnia.dispatch.duration",
		metric.WithDescription("Latency of command effects."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PendingTimers, err = m.Int64UpDownCounter("zinnia.commands.pending_timers",
		metric.WithDescription("Timers and alarms waiting to fire."),
	); err != nil {
		return nil, err
	}

	// Speech output.
	if met.SpeechRequests, err = m.Int64Counter("zinnia.speech.requests",
		metric.WithDescription("Speech requests taken off the queue."),
	); err != nil {
		return nil, err
	}
	if met.SpeechErrors, err = m.Int64Counter("zinnia.speech.errors",
		metric.WithDescription("Dropped speech requests by failing stage."),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("zinnia.speech.synthesis.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlaybackDuration, err = m.Float64Histogram("zinnia.speech.playback.duration",
		metric.WithDescription("Duration of audio playback per request."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(playbackBuckets...),
	); err != nil {
		return nil, err
	}

	// Provider fallback.
	if met.ProviderFailures, err = m.Int64Counter("zinnia.provider.failures",
		metric.WithDescription("Failed provider calls by slot, provider and reason."),
	); err != nil {
		return nil, err
	}
	if met.Failovers, err = m.Int64Counter("zinnia.provider.failovers",
		metric.WithDescription("Calls served by a fallback provider."),
	); err != nil {
		return nil, err
	}

	if met.BreakerTransitions, err = m.Int64Counter("zinnia.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by breaker and target state."),
	); err != nil {
		return nil, err
	}

	// Status server.
	if met.HTTPRequestDuration, err = m.Float64Histogram("zinnia.http.request.duration",
		metric.WithDescription("Status endpoint latency by route and status code."),
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

// RecordDispatch records one dispatched turn with the standard attribute set.
// An empty handler name means no command matched.
func (m *Metrics) RecordDispatch(ctx context.Context, handler, result string, d time.Duration) {
	if handler == "" {
		m.RetryPrompts.Add(ctx, 1)
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("handler", handler),
		attribute.String("result", result),
	)
	m.DispatchTurns.Add(ctx, 1, attrs)
	m.DispatchDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("handler", handler)))
}

// RecordStateChange moves the capture state gauge from one state to another.
func (m *Metrics) RecordStateChange(ctx context.Context, from, to string) {
	if from == to {
		return
	}
	if from != "" {
		m.CaptureState.Add(ctx, -1, metric.WithAttributes(attribute.String("state", from)))
	}
	m.CaptureState.Add(ctx, 1, metric.WithAttributes(attribute.String("state", to)))
}

// RecordSpeechError records a dropped speech request for the given stage.
func (m *Metrics) RecordSpeechError(ctx context.Context, stage string) {
	m.SpeechErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordRecognizerError records a wake-word or recognizer failure.
func (m *Metrics) RecordRecognizerError(ctx context.Context, stage string) {
	m.RecognizerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordProviderFailure records a failed call on one provider of a slot.
func (m *Metrics) RecordProviderFailure(ctx context.Context, slot, provider, reason string) {
	m.ProviderFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("slot", slot),
		attribute.String("provider", provider),
		attribute.String("reason", reason),
	))
}

// RecordFailover records a call that a fallback provider served.
func (m *Metrics) RecordFailover(ctx context.Context, slot, provider string) {
	m.Failovers.Add(ctx, 1, metric.WithAttributes(
		attribute.String("slot", slot),
		attribute.String("provider", provider),
	))
}

// RecordBreakerTransition records a circuit breaker entering state to.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, to string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker", breaker),
		attribute.String("to", to),
	))
}
