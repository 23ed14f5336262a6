// Package tray exposes the system tray icon as a stream of events.
//
// The orchestrator only ever reads [Tray.Events]; it does not care whether an
// icon exists. [Systray] shows a menu with a Quit item. [Headless] has no icon
// and never emits, which suits servers and tests.
package tray

// Event is something the user did in the tray.
type Event int

const (
	// CloseRequested asks the assistant to shut down.
	CloseRequested Event = iota + 1
)

// String returns a log-friendly name for e.
func (e Event) String() string {
	switch e {
	case CloseRequested:
		return "close_requested"
	}
	return "unknown"
}

// Tray delivers tray events. The channel is never closed.
type Tray interface {
	Events() <-chan Event
}

// Headless is a [Tray] without an icon.
type Headless struct {
	events chan Event
}

var _ Tray = (*Headless)(nil)

// NewHeadless returns a tray that never emits.
func NewHeadless() *Headless {
	return &Headless{events: make(chan Event)}
}

// Events returns a channel that never receives.
func (h *Headless) Events() <-chan Event { return h.events }
