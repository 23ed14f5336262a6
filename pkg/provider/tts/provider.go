// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis engine (e.g., a local Piper binary or
// a Coqui TTS server) behind a single blocking call: text in, raw audio out.
// The speech consumer calls it once per spoken request and hands the result
// to an audio player, so no streaming interface is needed.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text to raw signed 16-bit little-endian mono PCM at
	// SampleRate Hz. It blocks until synthesis completes.
	//
	// Returns an error if the engine cannot be started or reached, if it exits
	// abnormally, or if ctx is cancelled.
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// SampleRate returns the sample rate of the PCM produced by Synthesize.
	SampleRate() int
}
