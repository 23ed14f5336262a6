package capture_test

import (
	"errors"
	"slices"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/zinnia/internal/capture"
	"github.com/MrWong99/zinnia/internal/observe"
	recmock "github.com/MrWong99/zinnia/internal/recognizer/mock"
	wwmock "github.com/MrWong99/zinnia/pkg/provider/wakeword/mock"
)

const frameLen = 4

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newMachine(t *testing.T, det *wwmock.Detector, rec *recmock.Recognizer, opts ...capture.Option) *capture.Machine {
	t.Helper()
	if det.Frame == 0 {
		det.Frame = frameLen
	}
	opts = append([]capture.Option{capture.WithMetrics(testMetrics(t))}, opts...)
	return capture.NewMachine(det, rec, opts...)
}

func frame() []int16 { return make([]int16, frameLen) }

func TestState_String(t *testing.T) {
	t.Parallel()
	tests := map[capture.State]string{
		capture.Waiting:        "waiting",
		capture.Listening:      "listening",
		capture.CommandRunning: "command_running",
		capture.State(9):       "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestMachine_WaitingFramesNeverReachRecognizer(t *testing.T) {
	t.Parallel()
	det := &wwmock.Detector{}
	rec := &recmock.Recognizer{}
	m := newMachine(t, det, rec)

	for range 50 {
		if eff := m.OnFrame(frame()); eff != (capture.Effects{}) {
			t.Fatalf("unexpected effects %+v", eff)
		}
	}
	if m.State() != capture.Waiting {
		t.Errorf("state = %v, want waiting", m.State())
	}
	if rec.Calls() != 0 {
		t.Errorf("recognizer saw %d calls while waiting", rec.Calls())
	}
	if det.Frames() != 50 {
		t.Errorf("detector saw %d frames, want 50", det.Frames())
	}
}

func TestMachine_SplitsBatchesIntoDetectorFrames(t *testing.T) {
	t.Parallel()
	det := &wwmock.Detector{}
	m := newMachine(t, det, &recmock.Recognizer{})

	// 3 + 3 + 2 samples make two frames of four.
	m.OnFrame([]int16{1, 2, 3})
	m.OnFrame([]int16{4, 5, 6})
	m.OnFrame([]int16{7, 8})

	want := []int16{1, 2, 3, 4, 5, 6, 7, 8}
	got := det.Samples()
	if len(got) != len(want) {
		t.Fatalf("detector samples = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("detector samples = %v, want %v", got, want)
		}
	}
}

func TestMachine_FullTurn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		focusHeld bool
		want      capture.State
	}{
		{name: "turn without focus returns to waiting", focusHeld: false, want: capture.Waiting},
		{name: "turn with focus keeps listening", focusHeld: true, want: capture.Listening},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			det := &wwmock.Detector{FireOn: []int{3}, Keyword: "zinnia"}
			rec := &recmock.Recognizer{}
			m := newMachine(t, det, rec)

			acks := 0
			var states []capture.State
			step := func() capture.Effects {
				eff := m.OnFrame(frame())
				if eff.Acknowledge {
					acks++
				}
				if n := len(states); n == 0 || states[n-1] != m.State() {
					states = append(states, m.State())
				}
				return eff
			}

			for range 3 {
				step()
			}
			if m.State() != capture.Listening {
				t.Fatalf("state after detection = %v, want listening", m.State())
			}
			if rec.Resets() != 1 {
				t.Errorf("recognizer resets on detection = %d, want 1", rec.Resets())
			}

			step() // in progress
			rec.Finalize("what's the weather")
			eff := step()
			if !eff.Finalized || eff.Utterance != "what's the weather" {
				t.Fatalf("effects = %+v, want finalized utterance", eff)
			}
			if m.State() != capture.CommandRunning {
				t.Fatalf("state after final = %v, want command_running", m.State())
			}

			// Samples are dropped while the command runs.
			calls := rec.Calls()
			for range 5 {
				step()
			}
			if rec.Calls() != calls {
				t.Errorf("recognizer fed while command running")
			}

			m.EndTurn(tc.focusHeld)
			if m.State() != tc.want {
				t.Errorf("state after EndTurn(%v) = %v, want %v", tc.focusHeld, m.State(), tc.want)
			}
			if acks != 1 {
				t.Errorf("acknowledgements = %d, want 1", acks)
			}
			want := []capture.State{capture.Waiting, capture.Listening, capture.CommandRunning}
			if !slices.Equal(states, want) {
				t.Errorf("state sequence = %v, want %v", states, want)
			}
		})
	}
}

func TestMachine_EmptyFinalKeepsListening(t *testing.T) {
	t.Parallel()
	det := &wwmock.Detector{FireOn: []int{1}}
	rec := &recmock.Recognizer{}
	m := newMachine(t, det, rec)

	m.OnFrame(frame())
	rec.Finalize("   ")
	if eff := m.OnFrame(frame()); eff.Finalized {
		t.Fatalf("empty final produced an utterance: %+v", eff)
	}
	if m.State() != capture.Listening {
		t.Errorf("state = %v, want listening", m.State())
	}
}

func TestMachine_FailuresLeaveStateUnchanged(t *testing.T) {
	t.Parallel()

	det := &wwmock.Detector{FireOn: []int{3}, ErrOn: map[int]error{1: errors.New("engine hiccup")}}
	rec := &recmock.Recognizer{}
	m := newMachine(t, det, rec)

	m.OnFrame(frame())
	if m.State() != capture.Waiting {
		t.Fatalf("detector error changed state to %v", m.State())
	}
	m.OnFrame(frame())
	m.OnFrame(frame())
	if m.State() != capture.Listening {
		t.Fatalf("detection after an error failed, state = %v", m.State())
	}

	rec.Fail(errors.New("socket closed"))
	if eff := m.OnFrame(frame()); eff != (capture.Effects{}) {
		t.Errorf("recognizer failure produced effects %+v", eff)
	}
	if m.State() != capture.Listening {
		t.Errorf("recognizer failure changed state to %v", m.State())
	}
}

func TestMachine_WakeFrameNotForwarded(t *testing.T) {
	t.Parallel()
	fired := false
	det := &wwmock.Detector{FireWhen: func([]int16) bool {
		if fired {
			return false
		}
		fired = true
		return true
	}}
	rec := &recmock.Recognizer{}
	m := newMachine(t, det, rec)

	m.OnFrame(frame())
	m.EndTurn(false) // ignored: not running a command
	if m.State() != capture.Listening {
		t.Fatalf("state = %v, want listening", m.State())
	}
	if rec.Samples() != 0 {
		t.Errorf("recognizer got %d samples from the wake-word batch", rec.Samples())
	}
	m.OnFrame([]int16{1, 2})
	if rec.Samples() != 2 {
		t.Errorf("recognizer samples = %d, want 2", rec.Samples())
	}
}

func TestMachine_ListenTimeout(t *testing.T) {
	t.Parallel()
	now := time.Unix(1000, 0)
	det := &wwmock.Detector{FireOn: []int{1}}
	rec := &recmock.Recognizer{}
	m := newMachine(t, det, rec,
		capture.WithListenTimeout(5*time.Second),
		capture.WithClock(func() time.Time { return now }),
	)

	m.OnFrame(frame())
	now = now.Add(4 * time.Second)
	if eff := m.OnFrame(frame()); eff.TimedOut {
		t.Fatal("timed out early")
	}
	now = now.Add(2 * time.Second)
	eff := m.OnFrame(frame())
	if !eff.TimedOut {
		t.Fatal("expected timeout after 6s of silence")
	}
	if m.State() != capture.Waiting {
		t.Errorf("state after timeout = %v, want waiting", m.State())
	}
}

func TestMachine_ListenTimeoutRestartsOnFocusedTurn(t *testing.T) {
	t.Parallel()
	now := time.Unix(1000, 0)
	det := &wwmock.Detector{FireOn: []int{1}}
	rec := &recmock.Recognizer{}
	m := newMachine(t, det, rec,
		capture.WithListenTimeout(5*time.Second),
		capture.WithClock(func() time.Time { return now }),
	)

	m.OnFrame(frame())
	now = now.Add(4 * time.Second)
	rec.Finalize("help")
	m.OnFrame(frame())
	now = now.Add(10 * time.Second) // the command itself may take long
	m.EndTurn(true)

	now = now.Add(4 * time.Second)
	if eff := m.OnFrame(frame()); eff.TimedOut {
		t.Fatal("timeout measured from the previous listening period")
	}
}
