package whisper

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/MrWong99/zinnia/pkg/provider/stt"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider transcribes in-process with the whisper.cpp CGO bindings.
// The model is loaded once and shared by all sessions. whisper.cpp only
// accepts 16 kHz input, so sessions must be opened at that rate.
type NativeProvider struct {
	model     whisperlib.Model
	language  string
	silenceMs int
	maxMs     int

	// mu serialises inference; one utterance at a time keeps CPU use
	// predictable on desktop machines.
	mu sync.Mutex
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the default recognition language. Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativeSilenceThresholdMs sets how much trailing silence ends an
// utterance.
func WithNativeSilenceThresholdMs(ms int) NativeOption {
	return func(p *NativeProvider) { p.silenceMs = ms }
}

// WithNativeMaxBufferDurationMs caps the length of a single utterance.
func WithNativeMaxBufferDurationMs(ms int) NativeOption {
	return func(p *NativeProvider) { p.maxMs = ms }
}

// NewNative loads the ggml model at modelPath. Call Close to release it.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	p := &NativeProvider{
		model:     model,
		language:  defaultLanguage,
		silenceMs: defaultSilenceThresholdMs,
		maxMs:     defaultMaxBufferDurationMs,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// StartStream opens a session. cfg.SampleRate must be 0 or 16000.
func (p *NativeProvider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: start stream: %w", err)
	}
	if cfg.SampleRate != 0 && cfg.SampleRate != whisperlib.SampleRate {
		return nil, fmt.Errorf("whisper: native model needs %d Hz audio, got %d", whisperlib.SampleRate, cfg.SampleRate)
	}
	lang := cmp.Or(cfg.Language, p.language)
	prompt := strings.Join(cfg.Keywords, ", ")
	infer := func(_ context.Context, samples []int16) (string, error) {
		return p.infer(samples, lang, prompt)
	}
	return startSession(ctx, newSegmenter(whisperlib.SampleRate, p.silenceMs, p.maxMs), infer), nil
}

// infer runs the model on one utterance using a fresh context. Contexts are
// not safe for concurrent use; the model is.
func (p *NativeProvider) infer(samples []int16, lang, prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: unsupported language, using model default", "language", lang, "err", err)
	}
	if prompt != "" {
		wctx.SetInitialPrompt(prompt)
	}

	if err := wctx.Process(int16ToFloat32(samples), nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// int16ToFloat32 scales samples to [-1, 1) as whisper.cpp expects.
func int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, v := range samples {
		out[i] = float32(v) / 32768.0
	}
	return out
}
