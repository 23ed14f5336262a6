package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/zinnia"

// Span names. A spoken command produces one SpanTurn trace with a
// SpanDispatch child; speech output runs on the consumer goroutine and gets
// one SpanSpeak trace per request.
const (
	SpanTurn         = "turn"
	SpanDispatch     = "dispatch"
	SpanSpeak        = "speech.speak"
	SpanStatusPrefix = "status "
)

// Span attribute keys.
const (
	AttrUtterance = attribute.Key("zinnia.utterance")
	AttrHandler   = attribute.Key("zinnia.handler")
	AttrResult    = attribute.Key("zinnia.result")
	AttrFocused   = attribute.Key("zinnia.focused")
	AttrText      = attribute.Key("zinnia.speech.text")
)

// Tracer returns the Zinnia tracer from the global [trace.TracerProvider].
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span named name. The caller must end it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StartTurn starts the root span of one wake-word turn. Every turn is its own
// trace, so log lines written through [Logger] during dispatch share a
// trace_id that identifies the spoken command.
func StartTurn(ctx context.Context, utterance string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanTurn,
		trace.WithNewRoot(),
		trace.WithAttributes(AttrUtterance.String(utterance)),
	)
}

// RecordDispatchResult annotates the span in ctx with the handler that took
// the utterance. An empty handler means no command matched.
func RecordDispatchResult(ctx context.Context, handler, result string, focused bool) {
	span := trace.SpanFromContext(ctx)
	if handler == "" {
		span.AddEvent("no command matched")
		return
	}
	span.SetAttributes(
		AttrHandler.String(handler),
		AttrResult.String(result),
		AttrFocused.Bool(focused),
	)
}

// CorrelationID returns the trace ID in ctx, or "" without an active span.
// The status endpoint echoes it in the X-Correlation-ID header.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with trace_id and span_id attached when
// ctx carries a span.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
