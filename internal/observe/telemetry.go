package observe

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// ServiceName is reported as service.name on every metric and span.
const ServiceName = "zinnia"

// TelemetryConfig describes the running assistant to the telemetry backends.
type TelemetryConfig struct {
	// Version is reported as service.version.
	Version string

	// AssistantName is reported as zinnia.assistant.name.
	AssistantName string

	// Providers maps a provider slot ("wakeword", "stt", "tts", ...) to the
	// configured implementation. Each entry becomes a zinnia.provider.<slot>
	// resource attribute, so scraped series show which engines were active.
	Providers map[string]string

	// Registerer receives the Prometheus collectors served on /metrics.
	// Defaults to [prometheus.DefaultRegisterer].
	Registerer prometheus.Registerer

	// TraceExporter receives finished spans. When nil spans are recorded for
	// log correlation only.
	TraceExporter sdktrace.SpanExporter
}

// Telemetry owns the OTel SDK providers and the [Metrics] built on them.
type Telemetry struct {
	Metrics *Metrics

	shutdown []func(context.Context) error
}

// Setup builds the meter and tracer providers, registers them as the global
// OTel providers and creates the assistant's instruments. Metrics are
// exported through a Prometheus collector; the status endpoint serves them.
func Setup(ctx context.Context, cfg TelemetryConfig) (*Telemetry, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL, resourceAttrs(cfg)...,
	))
	if err != nil {
		return nil, fmt.Errorf("observe: build resource: %w", err)
	}

	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	exp, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(exp))
	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	m, err := NewMetrics(mp)
	if err != nil {
		_ = mp.Shutdown(ctx)
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("observe: create instruments: %w", err)
	}

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)
	return &Telemetry{
		Metrics:  m,
		shutdown: []func(context.Context) error{tp.Shutdown, mp.Shutdown},
	}, nil
}

// Shutdown flushes spans and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdown {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}

func resourceAttrs(cfg TelemetryConfig) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(cfg.Version),
	}
	if cfg.AssistantName != "" {
		attrs = append(attrs, attribute.String("zinnia.assistant.name", cfg.AssistantName))
	}
	for _, slot := range slices.Sorted(maps.Keys(cfg.Providers)) {
		if name := cfg.Providers[slot]; name != "" {
			attrs = append(attrs, attribute.String("zinnia.provider."+slot, name))
		}
	}
	return attrs
}
