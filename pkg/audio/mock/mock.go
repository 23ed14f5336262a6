// Package mock provides in-memory mock implementations of the [audio.Source]
// and [audio.Player] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	src := &mock.Source{}
//	_ = src.Start(tap.OnSamples)
//	src.Emit(make([]int16, 512)) // drives the callback synchronously
//
//	player := &mock.Player{}
//	_ = player.Play(ctx, pcm, 22050)
//	player.PlayCalls[0].PCM
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/zinnia/pkg/audio"
)

// ─── Source ───────────────────────────────────────────────────────────────────

// Source is a mock implementation of [audio.Source]. Tests push samples into
// the registered callback with [Source.Emit].
type Source struct {
	mu sync.Mutex

	// StartError is returned by [Source.Start].
	StartError error

	// StopError is returned by [Source.Stop].
	StopError error

	// CloseError is returned by [Source.Close].
	CloseError error

	// CallCountStart records how many times Start was called.
	CallCountStart int

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	fn      func([]int16)
	running bool
}

// Start records the call and stores fn for [Source.Emit].
func (s *Source) Start(fn func([]int16)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountStart++
	if s.StartError != nil {
		return s.StartError
	}
	if fn == nil {
		return errors.New("mock: nil capture callback")
	}
	s.fn = fn
	s.running = true
	return nil
}

// Stop records the call and stops delivering samples.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountStop++
	s.running = false
	return s.StopError
}

// Close records the call.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	s.running = false
	return s.CloseError
}

// Emit calls the registered callback with samples, as the device would. It
// reports false if the source is not running.
func (s *Source) Emit(samples []int16) bool {
	s.mu.Lock()
	fn, running := s.fn, s.running
	s.mu.Unlock()
	if !running {
		return false
	}
	fn(samples)
	return true
}

// Running reports whether Start succeeded and Stop/Close has not been called.
func (s *Source) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ─── Player ───────────────────────────────────────────────────────────────────

// PlayCall records a single invocation of [Player.Play].
type PlayCall struct {
	// PCM is a copy of the audio passed to Play.
	PCM []byte
	// SampleRate is the sample rate passed to Play.
	SampleRate int
}

// Player is a mock implementation of [audio.Player].
type Player struct {
	mu sync.Mutex

	// PlayError is returned by [Player.Play].
	PlayError error

	// OnPlay, if non-nil, is called synchronously from Play before it
	// returns. Use it to observe ordering or to block playback.
	OnPlay func(pcm []byte)

	// PlayCalls records every call to Play in order.
	PlayCalls []PlayCall
}

// Play records the call and returns PlayError.
func (p *Player) Play(_ context.Context, pcm []byte, sampleRate int) error {
	cp := make([]byte, len(pcm))
	copy(cp, pcm)

	p.mu.Lock()
	p.PlayCalls = append(p.PlayCalls, PlayCall{PCM: cp, SampleRate: sampleRate})
	onPlay := p.OnPlay
	err := p.PlayError
	p.mu.Unlock()

	if onPlay != nil {
		onPlay(cp)
	}
	return err
}

// Played returns the PCM of every Play call as strings, which is convenient
// with the tts mock that echoes the requested text.
func (p *Player) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.PlayCalls))
	for i, c := range p.PlayCalls {
		out[i] = string(c.PCM)
	}
	return out
}

// Compile-time interface assertions.
var (
	_ audio.Source = (*Source)(nil)
	_ audio.Player = (*Player)(nil)
)
