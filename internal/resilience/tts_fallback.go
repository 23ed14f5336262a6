package resilience

import (
	"context"

	"github.com/MrWong99/zinnia/pkg/audio"
	"github.com/MrWong99/zinnia/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// synthesizers. Audio from a fallback is resampled to the primary's rate so
// the player always sees one format.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
	rate  int
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, withSlot(cfg, "tts")),
		rate:  primary.SampleRate(),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize renders text with the first healthy provider.
func (f *TTSFallback) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]byte, error) {
		pcm, err := p.Synthesize(ctx, text)
		if err != nil {
			return nil, err
		}
		return audio.ResampleMono16(pcm, p.SampleRate(), f.rate), nil
	})
}

// SampleRate returns the primary provider's sample rate.
func (f *TTSFallback) SampleRate() int { return f.rate }
