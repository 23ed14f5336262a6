package tray

import (
	"context"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"
)

// Systray is a [Tray] backed by the desktop's notification area.
//
// The platform toolkit must own the main goroutine on some systems, so
// [Systray.Run] blocks the caller until [Systray.Quit]. Start the assistant in
// another goroutine before calling Run.
type Systray struct {
	title   string
	tooltip string
	icon    []byte

	events chan Event

	once sync.Once
}

var _ Tray = (*Systray)(nil)

// SystrayOption is a functional option for [NewSystray].
type SystrayOption func(*Systray)

// WithIcon sets the icon image (PNG on Linux and macOS, ICO on Windows).
func WithIcon(icon []byte) SystrayOption {
	return func(s *Systray) { s.icon = icon }
}

// WithTooltip sets the hover text. Defaults to the title.
func WithTooltip(text string) SystrayOption {
	return func(s *Systray) { s.tooltip = text }
}

// NewSystray returns a tray icon titled title. Nothing is shown until Run.
func NewSystray(title string, opts ...SystrayOption) *Systray {
	s := &Systray{
		title:  title,
		events: make(chan Event, 1),
	}
	for _, o := range opts {
		o(s)
	}
	if s.tooltip == "" {
		s.tooltip = title
	}
	return s
}

// Events returns the tray's event channel.
func (s *Systray) Events() <-chan Event { return s.events }

// Run shows the icon and blocks until Quit is called.
func (s *Systray) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	systray.Run(func() { s.onReady(ctx) }, cancel)
}

// Quit removes the icon and makes Run return. Safe to call more than once.
func (s *Systray) Quit() {
	s.once.Do(systray.Quit)
}

func (s *Systray) onReady(ctx context.Context) {
	if len(s.icon) > 0 {
		systray.SetIcon(s.icon)
	}
	systray.SetTitle(s.title)
	systray.SetTooltip(s.tooltip)
	quit := systray.AddMenuItem("Quit", "Quit "+s.title)
	slog.Debug("tray: icon ready", "title", s.title)
	go forward(ctx, quit.ClickedCh, s.events)
}

// forward turns menu clicks into CloseRequested events until ctx is done.
// A click while an event is still pending is dropped.
func forward(ctx context.Context, clicked <-chan struct{}, events chan<- Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-clicked:
			select {
			case events <- CloseRequested:
			default:
			}
		}
	}
}
