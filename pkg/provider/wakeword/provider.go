// Package wakeword defines the Detector interface for wake-word engines.
//
// A detector consumes fixed-size frames of mono 16-bit audio at its own
// sample rate and reports when one of its keywords was spoken. Process runs
// on the real-time capture path and must complete in time proportional to
// the frame length.
package wakeword

// Detection describes a recognised keyword.
type Detection struct {
	// Keyword is the name of the keyword that fired.
	Keyword string

	// Index is the keyword's position in the detector's keyword list.
	Index int
}

// Detector is the abstraction over any wake-word engine.
type Detector interface {
	// Process analyses exactly FrameLength samples. It returns a non-nil
	// Detection when a keyword ends in this frame, and nil otherwise.
	Process(frame []int16) (*Detection, error)

	// FrameLength is the number of samples Process expects.
	FrameLength() int

	// SampleRate is the sample rate in Hz the engine expects.
	SampleRate() int

	// Close releases engine resources.
	Close() error
}
