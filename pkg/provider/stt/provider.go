// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription engine (a local whisper.cpp model or
// server, or a cloud service such as Deepgram) behind a streaming session:
// the caller pushes mono 16-bit samples as they arrive from the microphone and
// reads committed transcripts from Finals.
//
// SendAudio never blocks. It is called from the real-time capture path, so a
// session whose input queue is full rejects the chunk with [ErrBackpressure]
// instead of stalling the audio device.
package stt

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSessionClosed is returned by SendAudio after Close.
	ErrSessionClosed = errors.New("stt: session closed")

	// ErrBackpressure is returned by SendAudio when the session cannot accept
	// more audio without blocking. The chunk is dropped.
	ErrBackpressure = errors.New("stt: session input queue full")
)

// Transcript is a committed recognition result.
type Transcript struct {
	// Text is the recognised speech.
	Text string

	// Confidence is in [0, 1]. Zero when the engine does not report it.
	Confidence float64

	// Duration is the length of the audio the transcript covers, when known.
	Duration time.Duration
}

// StreamConfig describes the audio format and recognition hints for a session.
type StreamConfig struct {
	// SampleRate in Hz of the samples passed to SendAudio. Audio is always mono.
	SampleRate int

	// Language is a BCP-47 tag ("en", "de-DE"). Empty uses the provider default.
	Language string

	// Keywords are vocabulary hints such as command names. Providers that
	// cannot use them ignore them.
	Keywords []string
}

// Session is one open streaming transcription session.
type Session interface {
	// SendAudio queues mono samples for recognition. It never blocks; see
	// [ErrBackpressure] and [ErrSessionClosed]. The session does not retain
	// samples after SendAudio returns.
	SendAudio(samples []int16) error

	// Finals emits committed transcripts. The channel is closed when the
	// session ends, either by Close or by a fatal engine error.
	Finals() <-chan Transcript

	// Close flushes pending audio, closes Finals and releases resources.
	// Calling Close more than once is safe and returns nil.
	Close() error
}

// Provider opens streaming sessions. Implementations must be safe for
// concurrent use.
type Provider interface {
	// StartStream opens a session ready to accept audio. The caller must
	// Close it.
	StartStream(ctx context.Context, cfg StreamConfig) (Session, error)
}
