// Package audio defines the interfaces and helpers for local sound devices.
//
// The two primary abstractions are:
//
//   - [Source]: delivers microphone samples to a callback at the device's
//     real-time cadence.
//   - [Player]: plays a buffer of PCM audio to completion.
//
// Implementations live in device-specific packages (audio/portaudio,
// audio/aplay). The interfaces are intentionally narrow so the capture state
// machine and the speech consumer can be tested without hardware.
package audio

import "context"

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Source captures audio from an input device.
type Source interface {
	// Start begins capture. fn is called from the device's capture goroutine
	// with each buffer of signed 16-bit mono samples. fn must not block and
	// must not retain samples after it returns.
	Start(fn func(samples []int16)) error

	// Stop halts capture. No further calls to fn are made after Stop returns.
	Stop() error

	// Close releases the device. Calling Close more than once is safe.
	Close() error
}

// Player plays audio through an output device.
type Player interface {
	// Play writes signed 16-bit little-endian mono PCM at sampleRate Hz to the
	// device and blocks until playback completes or ctx is cancelled.
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}
