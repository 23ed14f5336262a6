package capture

import (
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"
)

const (
	utteranceQueueLen = 4
	turnQueueLen      = 4
)

// Announcer speaks short texts without blocking. *speech.Sender satisfies it.
type Announcer interface {
	Say(text string)
}

// Tap drives a [Machine] from the audio callback. OnSamples never blocks:
// utterances leave through a buffered channel, turn results come back
// through another, and the wake acknowledgement goes to an [Announcer].
type Tap struct {
	m       *Machine
	ack     Announcer
	ackText string

	utterances chan string
	timeouts   chan struct{}
	turns      chan bool

	state     atomic.Int32
	lastFrame atomic.Int64 // unix nanos of the last callback
}

// NewTap wraps m. ackText is spoken on every wake-word detection; empty
// text disables the acknowledgement.
func NewTap(m *Machine, ack Announcer, ackText string) *Tap {
	t := &Tap{
		m:          m,
		ack:        ack,
		ackText:    ackText,
		utterances: make(chan string, utteranceQueueLen),
		timeouts:   make(chan struct{}, 1),
		turns:      make(chan bool, turnQueueLen),
	}
	t.state.Store(int32(m.State()))
	return t
}

// OnSamples is the capture callback.
func (t *Tap) OnSamples(samples []int16) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("capture: panic in audio callback", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	t.lastFrame.Store(time.Now().UnixNano())

	t.drainTurns()
	eff := t.m.OnFrame(samples)
	t.state.Store(int32(t.m.State()))

	if eff.Acknowledge {
		slog.Info("wake word detected", "keyword", eff.Keyword)
		if t.ackText != "" {
			t.ack.Say(t.ackText)
		}
	}
	if eff.Finalized {
		select {
		case t.utterances <- eff.Utterance:
		default:
			slog.Warn("capture: utterance queue full, dropping", "utterance", eff.Utterance)
			t.m.EndTurn(false)
			t.state.Store(int32(t.m.State()))
			t.abandon()
		}
	}
	if eff.TimedOut {
		t.abandon()
	}
}

// abandon reports a turn that ended back in Waiting without dispatch.
func (t *Tap) abandon() {
	select {
	case t.timeouts <- struct{}{}:
	default:
	}
}

// Utterances delivers finalized commands. Every utterance must be answered
// with exactly one EndTurn.
func (t *Tap) Utterances() <-chan string { return t.utterances }

// Timeouts signals that capture fell back to Waiting without a dispatched
// command: the listen timeout expired or the utterance was dropped. The
// receiver should release any dispatch focus.
func (t *Tap) Timeouts() <-chan struct{} { return t.timeouts }

// EndTurn posts the result of a dispatched turn back to the machine. It is
// applied at the start of the next callback.
func (t *Tap) EndTurn(focusHeld bool) {
	select {
	case t.turns <- focusHeld:
	default:
		slog.Warn("capture: turn queue full, dropping turn result")
	}
}

// State returns the state as of the last callback.
func (t *Tap) State() State { return State(t.state.Load()) }

// LastFrame returns when the callback last ran, or the zero time.
func (t *Tap) LastFrame() time.Time {
	n := t.lastFrame.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (t *Tap) drainTurns() {
	for {
		select {
		case held := <-t.turns:
			t.m.EndTurn(held)
		default:
			return
		}
	}
}
