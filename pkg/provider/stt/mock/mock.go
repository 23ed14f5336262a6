// Package mock provides test doubles for the stt package interfaces.
//
// Session lets a test push transcripts with [Session.Emit] and inspect the
// audio that reached the engine. Provider hands out sessions and records the
// StreamConfig it was asked for.
//
//	sess := mock.NewSession()
//	p := &mock.Provider{Session: sess}
//	s, _ := p.StartStream(ctx, stt.StreamConfig{SampleRate: 16000})
//	sess.Emit("what time is it")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/zinnia/pkg/provider/stt"
)

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is returned by StartStream. When nil a fresh Session is created
	// per call; see Sessions.
	Session *Session

	// StartStreamErr, if non-nil, is returned by StartStream.
	StartStreamErr error

	// Configs records the StreamConfig of every StartStream call.
	Configs []stt.StreamConfig

	// Sessions records every session handed out.
	Sessions []*Session
}

// StartStream records the call and returns a session.
func (p *Provider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Configs = append(p.Configs, cfg)
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	s := p.Session
	if s == nil {
		s = NewSession()
	}
	p.Sessions = append(p.Sessions, s)
	return s, nil
}

// StartCount returns the number of StartStream calls. Thread-safe.
func (p *Provider) StartCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Configs)
}

// Last returns the most recent session handed out, or nil. Thread-safe.
func (p *Provider) Last() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Sessions) == 0 {
		return nil
	}
	return p.Sessions[len(p.Sessions)-1]
}

var _ stt.Provider = (*Provider)(nil)

// Session is a mock implementation of stt.Session.
type Session struct {
	mu sync.Mutex

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	finals  chan stt.Transcript
	samples int
	calls   int
	closes  int
	closed  bool
}

// NewSession returns a session whose Finals channel buffers up to 16
// transcripts.
func NewSession() *Session {
	return &Session{finals: make(chan stt.Transcript, 16)}
}

// SendAudio records the call and returns SendAudioErr, or
// stt.ErrSessionClosed after Close.
func (s *Session) SendAudio(samples []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stt.ErrSessionClosed
	}
	s.calls++
	if s.SendAudioErr != nil {
		return s.SendAudioErr
	}
	s.samples += len(samples)
	return nil
}

// Finals returns the transcript channel.
func (s *Session) Finals() <-chan stt.Transcript { return s.finals }

// Emit delivers a final transcript. It reports false if the session is
// closed or the channel is full.
func (s *Session) Emit(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.finals <- stt.Transcript{Text: text}:
		return true
	default:
		return false
	}
}

// Fail ends the session as a crashed engine would: Finals is closed while
// the session is still open from the caller's point of view.
func (s *Session) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.finals)
	}
}

// Close records the call and closes Finals once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	if !s.closed {
		s.closed = true
		close(s.finals)
	}
	return s.CloseErr
}

// SamplesReceived returns the total number of samples accepted.
func (s *Session) SamplesReceived() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}

// SendCount returns the number of SendAudio calls, including failed ones.
func (s *Session) SendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// CloseCount returns the number of Close calls.
func (s *Session) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

var _ stt.Session = (*Session)(nil)
