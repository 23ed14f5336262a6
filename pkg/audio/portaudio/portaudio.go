// Package portaudio implements [audio.Source] and [audio.Player] on the
// default PortAudio devices.
//
// PortAudio is initialised on first use and terminated when the last open
// source or player is closed.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/zinnia/pkg/audio"
	pa "github.com/gordonklaus/portaudio"
)

var (
	libMu   sync.Mutex
	libRefs int
)

func acquire() error {
	libMu.Lock()
	defer libMu.Unlock()
	if libRefs == 0 {
		if err := pa.Initialize(); err != nil {
			return fmt.Errorf("portaudio: initialize: %w", err)
		}
	}
	libRefs++
	return nil
}

func release() {
	libMu.Lock()
	defer libMu.Unlock()
	libRefs--
	if libRefs == 0 {
		_ = pa.Terminate()
	}
}

var _ audio.Source = (*Source)(nil)

// Source captures mono 16-bit audio from the default input device.
type Source struct {
	format audio.Format
	frames int

	mu      sync.Mutex
	stream  *pa.Stream
	running bool
	closed  bool
}

// NewSource returns a Source delivering framesPerBuffer samples per callback
// at sampleRate Hz. The device is opened by Start.
func NewSource(sampleRate, framesPerBuffer int) (*Source, error) {
	if sampleRate <= 0 || framesPerBuffer <= 0 {
		return nil, fmt.Errorf("portaudio: invalid source format rate=%d frames=%d", sampleRate, framesPerBuffer)
	}
	return &Source{
		format: audio.Format{SampleRate: sampleRate, Channels: 1},
		frames: framesPerBuffer,
	}, nil
}

// Format returns the capture format.
func (s *Source) Format() audio.Format { return s.format }

// Start implements audio.Source. fn runs on PortAudio's callback thread.
func (s *Source) Start(fn func(samples []int16)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("portaudio: source closed")
	}
	if s.running {
		return errors.New("portaudio: source already started")
	}
	if s.stream == nil {
		if err := acquire(); err != nil {
			return err
		}
		stream, err := pa.OpenDefaultStream(1, 0, float64(s.format.SampleRate), s.frames, func(in []int16) {
			fn(in)
		})
		if err != nil {
			release()
			return fmt.Errorf("portaudio: open input stream: %w", err)
		}
		s.stream = stream
	}
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("portaudio: start input stream: %w", err)
	}
	s.running = true
	return nil
}

// Stop implements audio.Source.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	if err := s.stream.Stop(); err != nil {
		return fmt.Errorf("portaudio: stop input stream: %w", err)
	}
	return nil
}

// Close implements audio.Source.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.stream == nil {
		return nil
	}
	defer release()
	if s.running {
		s.running = false
		_ = s.stream.Stop()
	}
	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("portaudio: close input stream: %w", err)
	}
	return nil
}

var _ audio.Player = (*Player)(nil)

// Player plays mono 16-bit PCM on the default output device. A new blocking
// stream is opened per Play call because the sample rate can differ between
// calls.
type Player struct {
	frames int
}

// NewPlayer returns a Player writing framesPerBuffer samples per device write.
func NewPlayer(framesPerBuffer int) *Player {
	if framesPerBuffer <= 0 {
		framesPerBuffer = 1024
	}
	return &Player{frames: framesPerBuffer}
}

// Play implements audio.Player. Cancellation is checked between buffers.
func (p *Player) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("portaudio: invalid sample rate %d", sampleRate)
	}
	samples := audio.BytesToInt16(pcm)
	if len(samples) == 0 {
		return nil
	}
	if err := acquire(); err != nil {
		return err
	}
	defer release()

	buf := make([]int16, p.frames)
	stream, err := pa.OpenDefaultStream(0, 1, float64(sampleRate), len(buf), buf)
	if err != nil {
		return fmt.Errorf("portaudio: open output stream: %w", err)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return fmt.Errorf("portaudio: start output stream: %w", err)
	}

	for rest := samples; len(rest) > 0; {
		if err := ctx.Err(); err != nil {
			_ = stream.Abort()
			return fmt.Errorf("portaudio: %w", err)
		}
		rest = fillFrame(buf, rest)
		if err := stream.Write(); err != nil {
			_ = stream.Abort()
			return fmt.Errorf("portaudio: write: %w", err)
		}
	}
	if err := stream.Stop(); err != nil {
		return fmt.Errorf("portaudio: stop output stream: %w", err)
	}
	return nil
}

// fillFrame copies the head of samples into buf, zero-padding a short final
// frame, and returns the samples not yet copied.
func fillFrame(buf, samples []int16) []int16 {
	n := copy(buf, samples)
	clear(buf[n:])
	return samples[n:]
}
