// Package app wires the Zinnia subsystems into a running assistant.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run starts capture and executes the orchestrator loop, and
// Shutdown tears everything down in order.
//
// Three goroutines matter at run time. The capture callback (owned by the
// audio device) drives the [capture.Tap]. The speech consumer synthesises and
// plays queued text one request at a time. The orchestrator loop in Run
// receives finalized utterances and tray events and calls the dispatch engine
// synchronously. They communicate only through channels and the speech queue.
//
// For testing, inject doubles via functional options (WithRecognizer,
// WithTray, WithMetrics, etc.).
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/zinnia/internal/capture"
	"github.com/MrWong99/zinnia/internal/commands"
	"github.com/MrWong99/zinnia/internal/config"
	"github.com/MrWong99/zinnia/internal/dispatch"
	"github.com/MrWong99/zinnia/internal/health"
	"github.com/MrWong99/zinnia/internal/observe"
	"github.com/MrWong99/zinnia/internal/recognizer"
	"github.com/MrWong99/zinnia/internal/speech"
	"github.com/MrWong99/zinnia/internal/tray"
	"github.com/MrWong99/zinnia/pkg/audio"
	"github.com/MrWong99/zinnia/pkg/provider/llm"
	"github.com/MrWong99/zinnia/pkg/provider/stt"
	"github.com/MrWong99/zinnia/pkg/provider/tts"
	"github.com/MrWong99/zinnia/pkg/provider/wakeword"
)

const (
	// captureMaxAge is how long the capture callback may stay silent before
	// /readyz reports the input device as gone.
	captureMaxAge = 2 * time.Second

	serverShutdownTimeout = 5 * time.Second
)

// Providers holds one interface value per provider slot. Populated by main.go
// via the config registry. LLM may be nil; every other slot is required.
type Providers struct {
	WakeWord wakeword.Detector
	STT      stt.Provider
	TTS      tts.Provider
	Player   audio.Player
	Source   audio.Source
	LLM      llm.Provider
}

// Close releases the providers that hold devices or engine handles: the
// capture source and the wake-word detector. Nil slots are skipped.
func (p *Providers) Close() error {
	var errs []error
	if p.Source != nil {
		if err := p.Source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close audio source: %w", err))
		}
	}
	if p.WakeWord != nil {
		if err := p.WakeWord.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close wakeword detector: %w", err))
		}
	}
	return errors.Join(errs...)
}

// App owns all subsystem lifetimes and orchestrates the voice pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics
	tray      tray.Tray
	client    *http.Client

	rec      recognizer.Recognizer
	tap      *capture.Tap
	engine   *dispatch.Engine
	commands *commands.Set

	// speaker answers utterances; ack is the capture callback's own handle.
	speaker  *speech.Sender
	ack      *speech.Sender
	consumer *speech.Consumer

	health *health.Handler
	server *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	running  atomic.Bool
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRecognizer injects a recognizer instead of streaming to Providers.STT.
func WithRecognizer(r recognizer.Recognizer) Option {
	return func(a *App) { a.rec = r }
}

// WithTray sets the tray whose events the orchestrator watches. Defaults to
// [tray.NewHeadless].
func WithTray(t tray.Tray) Option {
	return func(a *App) { a.tray = t }
}

// WithMetrics sets the metrics recorder. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithHTTPClient sets the client used by the internet commands.
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) { a.client = c }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Nothing listens or
// speaks until Run. The App takes ownership of providers once New succeeds;
// on error they are still the caller's to close.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.tray == nil {
		a.tray = tray.NewHeadless()
	}
	if err := a.checkProviders(); err != nil {
		return nil, err
	}

	// ── 1. Speech output ─────────────────────────────────────────────────
	queue, speaker := speech.NewQueue()
	a.speaker = speaker
	a.ack = speaker.Clone()
	a.consumer = speech.NewConsumer(queue, providers.TTS, providers.Player, speech.WithMetrics(a.metrics))

	// ── 2. Commands + dispatch ───────────────────────────────────────────
	var model llm.Provider
	if cfg.Commands.Ask.Enabled {
		model = providers.LLM
	}
	a.commands = commands.Build(commands.Options{
		WeatherLocation: cfg.Commands.Weather.DefaultLocation,
		WeatherURL:      cfg.Commands.Weather.URL,
		JokeURL:         cfg.Commands.Joke.URL,
		HTTPClient:      a.client,
		Announcer:       speaker.Clone(),
		LLM:             model,
		SystemPrompt:    cfg.Commands.Ask.SystemPrompt,
		Metrics:         a.metrics,
	})
	a.engine = dispatch.New(a.commands.Handlers(),
		dispatch.WithRetryPrompt(cfg.Assistant.RetryPrompt),
		dispatch.WithMetrics(a.metrics),
	)

	// ── 3. Recognizer ────────────────────────────────────────────────────
	if a.rec == nil {
		stream, err := recognizer.NewStream(ctx, providers.STT, stt.StreamConfig{
			SampleRate: providers.WakeWord.SampleRate(),
			Keywords:   commandNames(a.commands.Handlers()),
		})
		if err != nil {
			a.commands.Close()
			a.releaseSpeech()
			return nil, fmt.Errorf("app: init recognizer: %w", err)
		}
		a.rec = stream
		a.closers = append(a.closers, stream.Close)
	}

	// ── 4. Capture ───────────────────────────────────────────────────────
	machine := capture.NewMachine(providers.WakeWord, a.rec,
		capture.WithMetrics(a.metrics),
		capture.WithListenTimeout(cfg.Assistant.ListenTimeout),
	)
	a.tap = capture.NewTap(machine, a.ack, cfg.Assistant.Acknowledgement)
	a.closers = append(a.closers, providers.Close)

	// ── 5. Health + metrics endpoint ─────────────────────────────────────
	a.health = health.New(
		health.FreshnessChecker("capture", a.tap.LastFrame, captureMaxAge),
		health.AliveChecker("speech", a.consumer.Alive),
	)
	if addr := cfg.Server.ListenAddr; addr != "" {
		mux := http.NewServeMux()
		a.health.Register(mux)
		a.server = &http.Server{
			Addr:              addr,
			Handler:           observe.Middleware(a.metrics)(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return a, nil
}

func (a *App) checkProviders() error {
	p := a.providers
	if p == nil {
		return errors.New("app: providers are required")
	}
	var errs []error
	if p.WakeWord == nil {
		errs = append(errs, errors.New("wake-word detector"))
	}
	if p.STT == nil && a.rec == nil {
		errs = append(errs, errors.New("stt provider"))
	}
	if p.TTS == nil {
		errs = append(errs, errors.New("tts provider"))
	}
	if p.Player == nil {
		errs = append(errs, errors.New("audio player"))
	}
	if p.Source == nil {
		errs = append(errs, errors.New("audio source"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("app: missing providers: %w", err)
	}
	if a.cfg.Commands.Ask.Enabled && p.LLM == nil {
		slog.Warn("ask command enabled but no llm provider was created; ask is disabled")
	}
	return nil
}

// commandNames returns the handler names as STT vocabulary hints.
func commandNames(handlers []dispatch.Handler) []string {
	names := make([]string, len(handlers))
	for i, h := range handlers {
		names[i] = h.Name()
	}
	return names
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the speech consumer, the capture device and the status server,
// then runs the orchestrator loop until ctx is cancelled or the tray asks to
// close. It returns ctx.Err() on cancellation and nil on a tray close. Run
// must be called at most once; call Shutdown afterwards either way.
func (a *App) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return errors.New("app: already running")
	}

	go a.consumer.Run(ctx)

	if err := a.providers.Source.Start(a.tap.OnSamples); err != nil {
		return fmt.Errorf("app: start capture: %w", err)
	}

	runCtx, quit := context.WithCancel(ctx)
	defer quit()
	g, gctx := errgroup.WithContext(runCtx)

	if a.server != nil {
		ln, err := net.Listen("tcp", a.server.Addr)
		if err != nil {
			return fmt.Errorf("app: listen %s: %w", a.server.Addr, err)
		}
		slog.Info("status server listening", "addr", ln.Addr().String())
		g.Go(func() error { return a.serve(gctx, ln) })
	}
	g.Go(func() error {
		a.loop(gctx, quit)
		return nil
	})

	slog.Info("assistant running",
		"name", a.cfg.Assistant.Name,
		"commands", len(a.engine.Handlers()),
	)
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// serve runs the status server until ctx is done.
func (a *App) serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Serve(ln) }()

	select {
	case err := <-errCh:
		return fmt.Errorf("app: status server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("status server shutdown error", "err", err)
	}
	return nil
}

// loop is the orchestrator. It owns the dispatch engine.
func (a *App) loop(ctx context.Context, quit context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.tray.Events():
			if ev == tray.CloseRequested {
				slog.Info("close requested from tray")
				quit()
				return
			}
		case text := <-a.tap.Utterances():
			a.handle(ctx, text)
		case <-a.tap.Timeouts():
			slog.Debug("turn abandoned, releasing focus")
			a.engine.ClearFocus()
		}
	}
}

// handle dispatches one utterance and reports the turn result to capture.
// A panicking command is logged and loses focus; the loop keeps running.
func (a *App) handle(ctx context.Context, text string) {
	ctx, span := observe.StartTurn(ctx, text)
	defer span.End()

	focusHeld := false
	defer func() {
		if r := recover(); r != nil {
			slog.Error("command panicked", "utterance", text, "panic", r, "stack", string(debug.Stack()))
			a.engine.ClearFocus()
			focusHeld = false
		}
		a.tap.EndTurn(focusHeld)
	}()

	observe.Logger(ctx).Info("heard", "utterance", text)
	out := a.engine.Dispatch(ctx, text, a.speaker)
	focusHeld = out.FocusHeld
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops capture, cancels pending timers, lets the speech consumer
// finish what is already queued and releases the devices. It respects the
// context deadline: if ctx expires while speech is draining, the remaining
// closers still run and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.running.Load() {
			if err := a.providers.Source.Stop(); err != nil {
				slog.Warn("capture stop error", "err", err)
			}
		}

		a.commands.Close()
		a.releaseSpeech()

		if a.running.Load() {
			select {
			case <-a.consumer.Done():
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded while speaking")
				shutdownErr = ctx.Err()
			}
		}

		for i, closer := range a.closers {
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// releaseSpeech closes the app's own speech senders.
func (a *App) releaseSpeech() {
	a.ack.Close()
	a.speaker.Close()
}
