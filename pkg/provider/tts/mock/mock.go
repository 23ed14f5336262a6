// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to return controlled audio and to verify which texts reached
// the synthesis backend.
//
// Example:
//
//	p := &mock.Provider{Audio: []byte{0, 1, 2, 3}, Rate: 22050}
//	pcm, _ := p.Synthesize(ctx, "hello")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/zinnia/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the text passed to Synthesize.
	Text string
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Audio is returned by every successful Synthesize call. When nil, the
	// text bytes are returned so callers can tell requests apart.
	Audio []byte

	// Rate is returned by SampleRate. Defaults to 22050 when zero.
	Rate int

	// SynthesizeErr, if non-nil, is returned as the error from Synthesize.
	SynthesizeErr error

	// FailTexts lists texts for which Synthesize returns SynthesizeErr. When
	// empty, SynthesizeErr applies to every call.
	FailTexts []string

	// Block, if non-nil, is received from before Synthesize returns.
	Block chan struct{}

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize records the call and returns the configured response.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text})
	block := p.Block
	err := p.failure(text)
	audio := p.Audio
	p.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	if audio == nil {
		return []byte(text), nil
	}
	out := make([]byte, len(audio))
	copy(out, audio)
	return out, nil
}

// failure returns the error configured for text. Caller must hold p.mu.
func (p *Provider) failure(text string) error {
	if p.SynthesizeErr == nil {
		return nil
	}
	if len(p.FailTexts) == 0 {
		return p.SynthesizeErr
	}
	for _, t := range p.FailTexts {
		if t == text {
			return p.SynthesizeErr
		}
	}
	return nil
}

// SampleRate returns Rate, or 22050 when Rate is zero.
func (p *Provider) SampleRate() int {
	if p.Rate == 0 {
		return 22050
	}
	return p.Rate
}

// Texts returns the text of every Synthesize call in order. Thread-safe.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.SynthesizeCalls))
	for i, c := range p.SynthesizeCalls {
		out[i] = c.Text
	}
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
