package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/zinnia/pkg/audio"
	"github.com/MrWong99/zinnia/pkg/provider/llm"
	llmmock "github.com/MrWong99/zinnia/pkg/provider/llm/mock"
	"github.com/MrWong99/zinnia/pkg/provider/stt"
	sttmock "github.com/MrWong99/zinnia/pkg/provider/stt/mock"
	ttsmock "github.com/MrWong99/zinnia/pkg/provider/tts/mock"
)

var testFallbackCfg = FallbackConfig{CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3}}

func TestTTSFallback_PrimarySuccess(t *testing.T) {
	primary := &ttsmock.Provider{Rate: 22050}
	secondary := &ttsmock.Provider{Rate: 22050}

	fb := NewTTSFallback(primary, "primary", testFallbackCfg)
	fb.AddFallback("secondary", secondary)

	pcm, err := fb.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(pcm) != "hello" {
		t.Errorf("pcm = %q, want primary output", pcm)
	}
	if n := len(secondary.Texts()); n != 0 {
		t.Errorf("secondary called %d times, want 0", n)
	}
	if fb.SampleRate() != 22050 {
		t.Errorf("SampleRate = %d, want 22050", fb.SampleRate())
	}
}

func TestTTSFallback_FailoverResamplesToPrimaryRate(t *testing.T) {
	primary := &ttsmock.Provider{Rate: 16000, SynthesizeErr: errors.New("piper missing")}
	samples := make([]int16, 800) // 100 ms at 8 kHz
	secondary := &ttsmock.Provider{Rate: 8000, Audio: audio.Int16ToBytes(nil, samples)}

	fb := NewTTSFallback(primary, "primary", testFallbackCfg)
	fb.AddFallback("secondary", secondary)

	pcm, err := fb.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := audio.Duration(pcm, fb.SampleRate()); got.Milliseconds() != 100 {
		t.Errorf("resampled duration = %v, want 100ms", got)
	}
}

func TestTTSFallback_AllFail(t *testing.T) {
	fb := NewTTSFallback(&ttsmock.Provider{SynthesizeErr: errors.New("a")}, "a", testFallbackCfg)
	fb.AddFallback("b", &ttsmock.Provider{SynthesizeErr: errors.New("b")})

	if _, err := fb.Synthesize(context.Background(), "hello"); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestSTTFallback_StartStream(t *testing.T) {
	tests := []struct {
		name          string
		primaryErr    error
		wantSecondary int
	}{
		{name: "primary healthy", wantSecondary: 0},
		{name: "primary down", primaryErr: errors.New("dial failed"), wantSecondary: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			primary := &sttmock.Provider{StartStreamErr: tc.primaryErr}
			secondary := &sttmock.Provider{}

			fb := NewSTTFallback(primary, "primary", testFallbackCfg)
			fb.AddFallback("secondary", secondary)

			sess, err := fb.StartStream(context.Background(), stt.StreamConfig{SampleRate: 16000})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer sess.Close()
			if n := secondary.StartCount(); n != tc.wantSecondary {
				t.Errorf("secondary started %d times, want %d", n, tc.wantSecondary)
			}
		})
	}
}

func TestLLMFallback_Complete(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("rate limited")}
	secondary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Paris."}}

	fb := NewLLMFallback(primary, "primary", testFallbackCfg)
	fb.AddFallback("secondary", secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "capital of france"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "Paris." {
		t.Errorf("Content = %q, want Paris.", resp.Content)
	}
	if len(primary.Calls()) != 1 {
		t.Errorf("primary called %d times, want 1", len(primary.Calls()))
	}
}

func TestProviderFallbacks_RecordFailoverBySlot(t *testing.T) {
	m, reader := recordingMetrics(t)
	cfg := FallbackConfig{Metrics: m, CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3}}
	ctx := context.Background()

	ttsFB := NewTTSFallback(&ttsmock.Provider{SynthesizeErr: errors.New("piper missing")}, "piper", cfg)
	ttsFB.AddFallback("coqui", &ttsmock.Provider{})
	if _, err := ttsFB.Synthesize(ctx, "hello"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	sttFB := NewSTTFallback(&sttmock.Provider{StartStreamErr: errors.New("no model")}, "whisper-native", cfg)
	sttFB.AddFallback("deepgram", &sttmock.Provider{})
	sess, err := sttFB.StartStream(ctx, stt.StreamConfig{SampleRate: 16000})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer sess.Close()

	llmFB := NewLLMFallback(&llmmock.Provider{CompleteErr: errors.New("rate limited")}, "openai", cfg)
	llmFB.AddFallback("ollama", &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}})
	if _, err := llmFB.Complete(ctx, llm.CompletionRequest{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	assertCounts(t, "failovers", counts(t, reader, "zinnia.provider.failovers"), map[string]int64{
		"provider=coqui,slot=tts":    1,
		"provider=deepgram,slot=stt": 1,
		"provider=ollama,slot=llm":   1,
	})
	assertCounts(t, "failures", counts(t, reader, "zinnia.provider.failures"), map[string]int64{
		"provider=piper,reason=error,slot=tts":          1,
		"provider=whisper-native,reason=error,slot=stt": 1,
		"provider=openai,reason=error,slot=llm":         1,
	})
}
