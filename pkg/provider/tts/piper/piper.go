// Package piper synthesises speech by running the Piper TTS binary
// (https://github.com/rhasspy/piper) once per request. Text is written to
// piper's stdin and raw 16-bit mono PCM is read from its stdout.
package piper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/zinnia/pkg/provider/tts"
)

const (
	defaultBinary     = "piper"
	defaultSampleRate = 22050

	// waitDelay bounds how long Synthesize waits for output pipes after
	// piper is killed.
	waitDelay = time.Second
)

var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for [New].
type Option func(*Provider)

// WithBinary sets the piper executable. Defaults to "piper" on PATH.
func WithBinary(path string) Option {
	return func(p *Provider) {
		if path != "" {
			p.binary = path
		}
	}
}

// WithSpeaker selects a speaker of a multi-speaker model. Negative values
// leave the choice to piper.
func WithSpeaker(id int) Option {
	return func(p *Provider) { p.speaker = id }
}

// WithSampleRate overrides the rate read from the model's JSON config.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.rate = rate }
}

// WithExtraArgs appends arguments to every piper invocation, for example
// "--length_scale", "1.2".
func WithExtraArgs(args ...string) Option {
	return func(p *Provider) { p.extra = append(p.extra, args...) }
}

// Provider implements tts.Provider by running piper as a subprocess.
// It is safe for concurrent use; each call runs its own process.
type Provider struct {
	binary  string
	model   string
	speaker int
	rate    int
	extra   []string
}

// New returns a Provider for the .onnx voice model at model. The sample rate
// is taken from the model's companion "<model>.json" file when present.
func New(model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, errors.New("piper: model must not be empty")
	}
	p := &Provider{binary: defaultBinary, model: model, speaker: -1}
	for _, o := range opts {
		o(p)
	}
	if p.rate <= 0 {
		rate, err := modelSampleRate(model + ".json")
		switch {
		case err == nil:
			p.rate = rate
		case errors.Is(err, os.ErrNotExist):
			p.rate = defaultSampleRate
		default:
			return nil, fmt.Errorf("piper: read model config: %w", err)
		}
	}
	return p, nil
}

// SampleRate implements tts.Provider.
func (p *Provider) SampleRate() int { return p.rate }

// Synthesize implements tts.Provider. The piper process is killed when ctx
// is cancelled.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	cmd := exec.CommandContext(ctx, p.binary, p.args()...)
	cmd.Stdin = strings.NewReader(strings.ReplaceAll(text, "\n", " ") + "\n")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("piper: %w", ctx.Err())
		}
		return nil, fmt.Errorf("piper: run %s: %w: %s", p.binary, err, bytes.TrimSpace(stderr.Bytes()))
	}
	pcm := stdout.Bytes()
	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}
	return pcm, nil
}

func (p *Provider) args() []string {
	args := []string{"--model", p.model, "--output-raw"}
	if p.speaker >= 0 {
		args = append(args, "--speaker", strconv.Itoa(p.speaker))
	}
	return append(args, p.extra...)
}

// modelConfig is the part of piper's voice config that matters here.
type modelConfig struct {
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
}

func modelSampleRate(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var cfg modelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Audio.SampleRate <= 0 {
		return defaultSampleRate, nil
	}
	return cfg.Audio.SampleRate, nil
}
