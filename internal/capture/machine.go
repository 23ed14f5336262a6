// Package capture gates live microphone audio between wake-word detection
// and speech recognition.
//
// [Machine] is the pure state machine: it consumes sample batches and
// returns [Effects] as data. [Tap] wraps a Machine for the real-time audio
// callback and carries out those effects without blocking.
package capture

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/zinnia/internal/chunkbuf"
	"github.com/MrWong99/zinnia/internal/observe"
	"github.com/MrWong99/zinnia/internal/recognizer"
	"github.com/MrWong99/zinnia/pkg/provider/wakeword"
)

// State is the capture state.
type State int

const (
	// Waiting feeds frames to the wake-word detector.
	Waiting State = iota
	// Listening feeds samples to the recognizer.
	Listening
	// CommandRunning drops samples until the dispatched turn ends.
	CommandRunning
)

// String returns the metric label for s.
func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Listening:
		return "listening"
	case CommandRunning:
		return "command_running"
	}
	return "unknown"
}

// Effects are the side effects requested by one OnFrame call.
type Effects struct {
	// Acknowledge is set when the wake word was just detected.
	Acknowledge bool

	// Keyword is the detected wake word, when Acknowledge is set.
	Keyword string

	// Finalized is set when Utterance holds a complete command.
	Finalized bool

	// Utterance is the recognised command text.
	Utterance string

	// TimedOut is set when Listening ended without an utterance and the
	// machine fell back to Waiting.
	TimedOut bool
}

// Machine is the capture state machine. It is owned by one goroutine.
type Machine struct {
	state    State
	buf      *chunkbuf.Buffer[int16]
	detector wakeword.Detector
	rec      recognizer.Recognizer
	metrics  *observe.Metrics

	listenTimeout time.Duration
	listenSince   time.Time
	now           func() time.Time
}

// Option is a functional option for [NewMachine].
type Option func(*Machine)

// WithMetrics sets the metrics recorder. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(mc *Machine) { mc.metrics = m }
}

// WithListenTimeout returns the machine to Waiting when Listening produces
// no utterance for d. Zero disables the timeout.
func WithListenTimeout(d time.Duration) Option {
	return func(mc *Machine) { mc.listenTimeout = d }
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(mc *Machine) { mc.now = now }
}

// NewMachine returns a Machine in the Waiting state whose frame buffer
// matches the detector's frame length.
func NewMachine(det wakeword.Detector, rec recognizer.Recognizer, opts ...Option) *Machine {
	m := &Machine{
		state:    Waiting,
		buf:      chunkbuf.New[int16](det.FrameLength()),
		detector: det,
		rec:      rec,
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	m.metrics.RecordStateChange(context.Background(), "", Waiting.String())
	return m
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// OnFrame consumes one batch of captured samples.
func (m *Machine) OnFrame(samples []int16) Effects {
	switch m.state {
	case Waiting:
		return m.waiting(samples)
	case Listening:
		return m.listening(samples)
	default:
		m.metrics.FramesDropped.Add(context.Background(), 1)
		return Effects{}
	}
}

// EndTurn closes the dispatched turn. With focus held the next utterance is
// awaited straight away; otherwise the machine goes back to waiting for the
// wake word. EndTurn outside CommandRunning is ignored.
func (m *Machine) EndTurn(focusHeld bool) {
	if m.state != CommandRunning {
		slog.Debug("capture: EndTurn ignored", "state", m.state.String())
		return
	}
	if focusHeld {
		m.setState(Listening)
		return
	}
	m.buf.Reset()
	m.setState(Waiting)
}

func (m *Machine) waiting(samples []int16) Effects {
	ctx := context.Background()
	m.buf.Push(samples)
	for {
		frame, ok := m.buf.Pop()
		if !ok {
			return Effects{}
		}
		det, err := m.detector.Process(frame)
		if err != nil {
			slog.Warn("capture: wake-word detector failed", "err", err)
			m.metrics.RecordRecognizerError(ctx, "wakeword")
			continue
		}
		if det == nil {
			continue
		}
		m.metrics.WakeDetections.Add(ctx, 1)
		// Audio before and around the wake word is not part of the command.
		m.buf.Reset()
		m.rec.Reset()
		m.setState(Listening)
		return Effects{Acknowledge: true, Keyword: det.Keyword}
	}
}

func (m *Machine) listening(samples []int16) Effects {
	ctx := context.Background()
	out := m.rec.Accept(samples)
	switch out.Kind {
	case recognizer.Finalized:
		text := strings.TrimSpace(out.Text)
		if text == "" {
			return m.checkTimeout()
		}
		m.rec.Reset()
		m.metrics.Utterances.Add(ctx, 1)
		m.setState(CommandRunning)
		return Effects{Finalized: true, Utterance: text}
	case recognizer.Failed:
		slog.Warn("capture: recognizer failed", "err", out.Err)
		m.metrics.RecordRecognizerError(ctx, "recognizer")
	}
	return m.checkTimeout()
}

func (m *Machine) checkTimeout() Effects {
	if m.listenTimeout <= 0 || m.now().Sub(m.listenSince) < m.listenTimeout {
		return Effects{}
	}
	slog.Debug("capture: listening timed out", "after", m.listenTimeout)
	m.rec.Reset()
	m.buf.Reset()
	m.setState(Waiting)
	return Effects{TimedOut: true}
}

func (m *Machine) setState(s State) {
	if s == m.state {
		return
	}
	m.metrics.RecordStateChange(context.Background(), m.state.String(), s.String())
	slog.Debug("capture: state change", "from", m.state.String(), "to", s.String())
	m.state = s
	if s == Listening {
		m.listenSince = m.now()
	}
}
