// Package microwakeword provides a wake-word detector backed by the
// microWakeWord streaming models bundled with pmdroid/microwakeword.
package microwakeword

import (
	"errors"
	"fmt"
	"io"

	"github.com/MrWong99/zinnia/pkg/audio"
	"github.com/MrWong99/zinnia/pkg/provider/wakeword"
	mww "github.com/pmdroid/microwakeword"
)

const (
	// frameLength is the 10 ms step the streaming models consume.
	frameLength = 160
	sampleRate  = 16000

	defaultModel = "okay_nabu"
)

var _ wakeword.Detector = (*Detector)(nil)

// streamer is the part of the model API the detector uses.
type streamer interface {
	ProcessStreaming(pcm []byte) (bool, error)
}

// Detector runs one built-in microWakeWord model.
type Detector struct {
	model streamer
	name  string
	buf   []byte
}

// New loads the built-in model with the given name ("okay_nabu",
// "hey_jarvis", ...). An empty name selects okay_nabu.
func New(name string) (*Detector, error) {
	if name == "" {
		name = defaultModel
	}
	model, err := mww.FromBuiltin(name, mww.DefaultRefractory)
	if err != nil {
		return nil, fmt.Errorf("microwakeword: load %q: %w", name, err)
	}
	return newDetector(model, name), nil
}

func newDetector(model streamer, name string) *Detector {
	return &Detector{model: model, name: name, buf: make([]byte, 0, frameLength*2)}
}

// Process feeds one 10 ms frame to the model.
func (d *Detector) Process(frame []int16) (*wakeword.Detection, error) {
	if len(frame) != frameLength {
		return nil, fmt.Errorf("microwakeword: frame has %d samples, want %d", len(frame), frameLength)
	}
	d.buf = audio.Int16ToBytes(d.buf[:0], frame)
	hit, err := d.model.ProcessStreaming(d.buf)
	if err != nil {
		return nil, fmt.Errorf("microwakeword: process: %w", err)
	}
	if !hit {
		return nil, nil
	}
	return &wakeword.Detection{Keyword: d.name}, nil
}

// FrameLength returns 160 samples.
func (d *Detector) FrameLength() int { return frameLength }

// SampleRate returns 16000.
func (d *Detector) SampleRate() int { return sampleRate }

// Close releases the model if it holds native resources.
func (d *Detector) Close() error {
	if c, ok := d.model.(io.Closer); ok {
		if err := c.Close(); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("microwakeword: close: %w", err)
		}
	}
	return nil
}
