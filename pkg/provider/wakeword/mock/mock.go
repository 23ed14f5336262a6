// Package mock provides a scripted [wakeword.Detector] for tests.
package mock

import (
	"sync"

	"github.com/MrWong99/zinnia/pkg/provider/wakeword"
)

// Detector fires on chosen frames. Frames are numbered from 1 in the order
// Process sees them.
type Detector struct {
	mu sync.Mutex

	// Frame is the frame length reported. Defaults to 512.
	Frame int

	// Rate is the sample rate reported. Defaults to 16000.
	Rate int

	// Keyword is the name reported on detection. Defaults to "zinnia".
	Keyword string

	// FireOn lists frame numbers on which a detection is reported.
	FireOn []int

	// FireWhen, if set, is consulted for every frame in addition to FireOn.
	FireWhen func(frame []int16) bool

	// ErrOn maps frame numbers to errors returned for them.
	ErrOn map[int]error

	frames int
	closed int
	seen   []int16
}

// Process records the frame and reports a scripted detection.
func (d *Detector) Process(frame []int16) (*wakeword.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames++
	d.seen = append(d.seen, frame...)
	if err := d.ErrOn[d.frames]; err != nil {
		return nil, err
	}
	fire := d.FireWhen != nil && d.FireWhen(frame)
	for _, n := range d.FireOn {
		if n == d.frames {
			fire = true
		}
	}
	if !fire {
		return nil, nil
	}
	kw := d.Keyword
	if kw == "" {
		kw = "zinnia"
	}
	return &wakeword.Detection{Keyword: kw}, nil
}

// FrameLength returns Frame, or 512.
func (d *Detector) FrameLength() int {
	if d.Frame == 0 {
		return 512
	}
	return d.Frame
}

// SampleRate returns Rate, or 16000.
func (d *Detector) SampleRate() int {
	if d.Rate == 0 {
		return 16000
	}
	return d.Rate
}

// Close records the call.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

// Frames returns how many frames Process received.
func (d *Detector) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

// Samples returns every sample Process received, in order.
func (d *Detector) Samples() []int16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int16(nil), d.seen...)
}

// Closed returns how many times Close was called.
func (d *Detector) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

var _ wakeword.Detector = (*Detector)(nil)
