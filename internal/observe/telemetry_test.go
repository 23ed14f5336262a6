package observe

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel"
)

func TestResourceAttrs(t *testing.T) {
	attrs := resourceAttrs(TelemetryConfig{
		Version:       "1.2.3",
		AssistantName: "Zinnia",
		Providers: map[string]string{
			"tts":      "piper",
			"wakeword": "microwakeword",
			"llm":      "",
			"stt":      "whisper-native",
		},
	})

	var got []string
	for _, kv := range attrs {
		got = append(got, string(kv.Key)+"="+kv.Value.Emit())
	}
	want := []string{
		"service.name=zinnia",
		"service.version=1.2.3",
		"zinnia.assistant.name=Zinnia",
		"zinnia.provider.stt=whisper-native",
		"zinnia.provider.tts=piper",
		"zinnia.provider.wakeword=microwakeword",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("attrs =\n  %v\nwant\n  %v", got, want)
	}
}

func TestSetup_ExportsToRegistry(t *testing.T) {
	origMP, origTP := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(origMP)
		otel.SetTracerProvider(origTP)
	})

	reg := prometheus.NewRegistry()
	tel, err := Setup(context.Background(), TelemetryConfig{
		Version:       "test",
		AssistantName: "Zinnia",
		Providers:     map[string]string{"wakeword": "porcupine"},
		Registerer:    reg,
	})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})

	ctx, span := StartTurn(context.Background(), "test")
	if CorrelationID(ctx) == "" {
		t.Error("global tracer provider not installed")
	}
	span.End()

	tel.Metrics.WakeDetections.Add(context.Background(), 2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var detections, target *dto.MetricFamily
	for _, f := range families {
		switch {
		case strings.HasPrefix(f.GetName(), "zinnia_wakeword_detections"):
			detections = f
		case f.GetName() == "target_info":
			target = f
		}
	}
	if detections == nil {
		t.Fatal("wake detections not exported")
	}
	if v := detections.GetMetric()[0].GetCounter().GetValue(); v != 2 {
		t.Errorf("wake detections = %v, want 2", v)
	}
	if target == nil {
		t.Fatal("target_info not exported")
	}
	labels := map[string]string{}
	for _, l := range target.GetMetric()[0].GetLabel() {
		labels[l.GetName()] = l.GetValue()
	}
	if labels["zinnia_provider_wakeword"] != "porcupine" {
		t.Errorf("target_info labels = %v, want zinnia_provider_wakeword=porcupine", labels)
	}
}
