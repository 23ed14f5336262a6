// Package recognizer turns a push-style sample stream into utterance
// outcomes for the capture state machine.
//
// A [Recognizer] is driven from the real-time capture callback: Accept and
// Reset must return promptly and never wait on the network or an inference
// engine. [Stream] adapts any [stt.Provider] to that contract.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/zinnia/pkg/provider/stt"
)

// Kind classifies the result of one Accept call.
type Kind int

const (
	// InProgress means no utterance has been finalized yet.
	InProgress Kind = iota
	// Finalized means Text holds a complete utterance.
	Finalized
	// Failed means recognition broke down; Err says why.
	Failed
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case InProgress:
		return "in_progress"
	case Finalized:
		return "finalized"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of feeding one batch of samples.
type Outcome struct {
	Kind Kind
	Text string
	Err  error
}

// Recognizer consumes mono samples and reports finalized utterances.
// Implementations are used from a single goroutine.
type Recognizer interface {
	// Accept feeds samples and reports what, if anything, was recognised.
	Accept(samples []int16) Outcome

	// Reset discards any partially recognised speech so the next Accept
	// starts a new utterance.
	Reset()
}

// ErrSessionEnded is reported when the underlying STT session stops
// delivering transcripts on its own.
var ErrSessionEnded = errors.New("recognizer: stt session ended")

const (
	defaultMaxPending = 16000 * 3 // three seconds at 16 kHz
	defaultRetryDelay = time.Second
)

// Stream adapts an [stt.Provider] to [Recognizer]. It keeps one STT session
// open and replaces it on Reset or failure. Sessions are opened and closed in
// the background; samples that arrive while a replacement is opening are held
// (up to a limit) and sent once it is ready.
//
// A Stream is owned by the capture callback and is not safe for concurrent
// use, with the exception of Close, which must only be called once the
// callback has stopped.
type Stream struct {
	ctx      context.Context
	provider stt.Provider
	cfg      stt.StreamConfig

	maxPending int
	retryDelay time.Duration

	sess       stt.Session
	opening    chan openResult
	pending    []int16
	lastFailed time.Time
}

type openResult struct {
	sess stt.Session
	err  error
}

// StreamOption is a functional option for [NewStream].
type StreamOption func(*Stream)

// WithMaxPending caps how many samples are held while a session opens.
func WithMaxPending(n int) StreamOption {
	return func(s *Stream) { s.maxPending = n }
}

// WithRetryDelay sets the minimum delay between failed session opens.
func WithRetryDelay(d time.Duration) StreamOption {
	return func(s *Stream) { s.retryDelay = d }
}

var _ Recognizer = (*Stream)(nil)

// NewStream opens the first session synchronously so that a misconfigured
// provider fails at startup.
func NewStream(ctx context.Context, p stt.Provider, cfg stt.StreamConfig, opts ...StreamOption) (*Stream, error) {
	s := &Stream{
		ctx:        ctx,
		provider:   p,
		cfg:        cfg,
		maxPending: defaultMaxPending,
		retryDelay: defaultRetryDelay,
	}
	for _, o := range opts {
		o(s)
	}
	sess, err := p.StartStream(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("recognizer: start stream: %w", err)
	}
	s.sess = sess
	return s, nil
}

// Accept forwards samples to the current session and reports a transcript
// if one is ready.
func (s *Stream) Accept(samples []int16) Outcome {
	if s.sess == nil {
		if out, ready := s.awaitSession(); !ready {
			s.hold(samples)
			return out
		}
	}

	select {
	case t, ok := <-s.sess.Finals():
		if !ok {
			s.replace()
			return Outcome{Kind: Failed, Err: ErrSessionEnded}
		}
		return Outcome{Kind: Finalized, Text: t.Text}
	default:
	}

	if len(s.pending) > 0 {
		samples = append(s.pending, samples...)
		s.pending = s.pending[:0]
	}
	switch err := s.sess.SendAudio(samples); {
	case err == nil:
	case errors.Is(err, stt.ErrBackpressure):
		slog.Debug("recognizer: stt busy, dropping audio", "samples", len(samples))
	default:
		s.replace()
		return Outcome{Kind: Failed, Err: fmt.Errorf("recognizer: send audio: %w", err)}
	}
	return Outcome{Kind: InProgress}
}

// Reset drops the current session and starts opening a fresh one.
func (s *Stream) Reset() {
	s.pending = s.pending[:0]
	if s.sess == nil && s.opening != nil {
		return
	}
	s.replace()
}

// Close closes the current session and any session still being opened.
func (s *Stream) Close() error {
	var err error
	if s.sess != nil {
		err = s.sess.Close()
		s.sess = nil
	}
	if ch := s.opening; ch != nil {
		s.opening = nil
		go func() {
			if r := <-ch; r.sess != nil {
				_ = r.sess.Close()
			}
		}()
	}
	return err
}

// replace detaches the current session, closes it in the background and
// starts opening its successor.
func (s *Stream) replace() {
	if old := s.sess; old != nil {
		s.sess = nil
		go func() {
			if err := old.Close(); err != nil {
				slog.Warn("recognizer: close stt session", "err", err)
			}
		}()
	}
	s.open()
}

func (s *Stream) open() {
	ch := make(chan openResult, 1)
	s.opening = ch
	go func() {
		sess, err := s.provider.StartStream(s.ctx, s.cfg)
		ch <- openResult{sess: sess, err: err}
	}()
}

// awaitSession checks, without blocking, whether a replacement session is
// ready.
func (s *Stream) awaitSession() (Outcome, bool) {
	if s.opening == nil {
		if time.Since(s.lastFailed) < s.retryDelay {
			return Outcome{Kind: InProgress}, false
		}
		s.open()
	}
	select {
	case r := <-s.opening:
		s.opening = nil
		if r.err != nil {
			s.lastFailed = time.Now()
			return Outcome{Kind: Failed, Err: fmt.Errorf("recognizer: reopen stream: %w", r.err)}, false
		}
		s.sess = r.sess
		return Outcome{}, true
	default:
		return Outcome{Kind: InProgress}, false
	}
}

// hold keeps the newest samples while no session is available.
func (s *Stream) hold(samples []int16) {
	s.pending = append(s.pending, samples...)
	if over := len(s.pending) - s.maxPending; over > 0 {
		s.pending = append(s.pending[:0], s.pending[over:]...)
	}
}
