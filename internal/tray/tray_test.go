package tray

import (
	"context"
	"testing"
	"time"
)

func TestHeadless_NeverEmits(t *testing.T) {
	t.Parallel()

	h := NewHeadless()
	select {
	case ev := <-h.Events():
		t.Fatalf("headless tray emitted %v", ev)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestEvent_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ev   Event
		want string
	}{
		{CloseRequested, "close_requested"},
		{Event(0), "unknown"},
	}
	for _, tc := range tests {
		if got := tc.ev.String(); got != tc.want {
			t.Errorf("Event(%d).String() = %q, want %q", tc.ev, got, tc.want)
		}
	}
}

func TestForward(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	clicked := make(chan struct{})
	events := make(chan Event, 1)
	done := make(chan struct{})
	go func() {
		forward(ctx, clicked, events)
		close(done)
	}()

	clicked <- struct{}{}
	select {
	case ev := <-events:
		if ev != CloseRequested {
			t.Errorf("got %v, want CloseRequested", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("click was not forwarded")
	}

	// Two clicks with nobody reading: the second is dropped, not blocked on.
	clicked <- struct{}{}
	clicked <- struct{}{}
	if n := len(events); n != 1 {
		t.Errorf("pending events = %d, want 1", n)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forward did not stop on cancel")
	}
}

func TestNewSystray_Defaults(t *testing.T) {
	t.Parallel()

	s := NewSystray("Zinnia")
	if s.tooltip != "Zinnia" {
		t.Errorf("tooltip = %q, want title", s.tooltip)
	}
	s = NewSystray("Zinnia", WithTooltip("listening"), WithIcon([]byte{1}))
	if s.tooltip != "listening" || len(s.icon) != 1 {
		t.Errorf("options not applied: %+v", s)
	}
}
