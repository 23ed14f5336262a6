package commands

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/zinnia/internal/dispatch/mock"
)

type fakeAnnouncer struct {
	mock.Speaker
	mu     sync.Mutex
	closed int
}

func (a *fakeAnnouncer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed++
}

func (a *fakeAnnouncer) closeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// fakeClock records scheduled callbacks instead of running them.
type fakeClock struct {
	now time.Time

	mu    sync.Mutex
	after []time.Duration
	funcs []func()
	stops int
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Schedule(d time.Duration, f func()) func() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.after = append(c.after, d)
	c.funcs = append(c.funcs, f)
	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.stops++
		return true
	}
}

func (c *fakeClock) fire(i int) {
	c.mu.Lock()
	f := c.funcs[i]
	c.mu.Unlock()
	f()
}

func newTestTimer(t *testing.T) (*Timer, *fakeAnnouncer, *fakeClock) {
	t.Helper()
	ann := &fakeAnnouncer{}
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.Local)}
	tm := NewTimer(ann, WithTimerMetrics(testMetrics(t)), WithTimerClock(clock.Now, clock.Schedule))
	return tm, ann, clock
}

func TestTimer_SetAndFire(t *testing.T) {
	t.Parallel()

	tm, ann, clock := newTestTimer(t)
	out := &mock.Speaker{}

	tm.Effect(context.Background(), "set a timer for 2 minutes", out)
	if out.Last() != "Timer set." {
		t.Fatalf("said %q, want Timer set.", out.Last())
	}
	if len(clock.after) != 1 || clock.after[0] != 2*time.Minute {
		t.Fatalf("scheduled %v, want [2m]", clock.after)
	}
	if tm.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", tm.Pending())
	}

	clock.fire(0)
	if ann.Last() != "Your timer has run out." {
		t.Errorf("announced %q, want timer message", ann.Last())
	}
	if len(out.Said()) != 1 {
		t.Error("notification went to the turn speaker instead of the announcer")
	}
	if tm.Pending() != 0 {
		t.Errorf("Pending after fire = %d, want 0", tm.Pending())
	}

	clock.fire(0)
	if n := len(ann.Said()); n != 1 {
		t.Errorf("fired timer announced %d times, want 1", n)
	}
}

func TestTimer_Alarm(t *testing.T) {
	t.Parallel()

	tm, ann, clock := newTestTimer(t)
	out := &mock.Speaker{}

	tm.Effect(context.Background(), "set an alarm for 7:30 pm", out)
	if out.Last() != "Alarm set for 7:30 PM." {
		t.Fatalf("said %q, want Alarm set for 7:30 PM.", out.Last())
	}
	if len(clock.after) != 1 || clock.after[0] != 10*time.Hour+30*time.Minute {
		t.Fatalf("scheduled %v, want [10h30m]", clock.after)
	}
	clock.fire(0)
	if ann.Last() != "Your alarm is going off." {
		t.Errorf("announced %q, want alarm message", ann.Last())
	}
}

func TestTimer_Unparseable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want string
	}{
		{"set a timer", "I couldn't understand how long the timer should be."},
		{"set an alarm for later", "I couldn't understand what time the alarm should be set for."},
	}
	for _, tc := range tests {
		tm, _, clock := newTestTimer(t)
		out := &mock.Speaker{}
		tm.Effect(context.Background(), tc.text, out)
		if out.Last() != tc.want {
			t.Errorf("%q: said %q, want %q", tc.text, out.Last(), tc.want)
		}
		if len(clock.after) != 0 {
			t.Errorf("%q: scheduled %v, want nothing", tc.text, clock.after)
		}
	}
}

func TestTimer_CloseCancelsPending(t *testing.T) {
	t.Parallel()

	tm, ann, clock := newTestTimer(t)
	out := &mock.Speaker{}
	tm.Effect(context.Background(), "timer for 5 seconds", out)
	tm.Effect(context.Background(), "timer for 10 seconds", out)

	tm.Close()
	tm.Close()

	if clock.stops != 2 {
		t.Errorf("stopped %d timers, want 2", clock.stops)
	}
	if ann.closeCount() != 1 {
		t.Errorf("announcer closed %d times, want 1", ann.closeCount())
	}
	clock.fire(0)
	if len(ann.Said()) != 0 {
		t.Error("cancelled timer still announced")
	}

	tm.Effect(context.Background(), "timer for 5 seconds", out)
	if out.Last() != "I can't set timers right now." {
		t.Errorf("after Close said %q", out.Last())
	}
}

func TestTimer_RealClock(t *testing.T) {
	t.Parallel()

	ann := &fakeAnnouncer{}
	tm := NewTimer(ann, WithTimerMetrics(testMetrics(t)))
	defer tm.Close()

	if !tm.add(context.Background(), 5*time.Millisecond, "done") {
		t.Fatal("add failed")
	}
	deadline := time.Now().Add(2 * time.Second)
	for ann.Last() == "" && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if ann.Last() != "done" {
		t.Errorf("announced %q, want done", ann.Last())
	}
}
