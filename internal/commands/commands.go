// Package commands implements the voice commands Zinnia understands.
//
// Every command is a [dispatch.Handler]. [Build] assembles the configured set
// in priority order: Help, Test, Dice, Weather, Joke, Timer and, when an LLM
// is configured, the catch-all Ask. Commands speak through the
// [dispatch.Speaker] passed to each effect and never return errors; failures
// are reported to the user as speech.
package commands

import (
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/zinnia/internal/dispatch"
	"github.com/MrWong99/zinnia/internal/observe"
	"github.com/MrWong99/zinnia/pkg/provider/llm"
)

// tryLater is appended to every spoken internet failure.
const tryLater = " Please try again later."

// defaultHTTPTimeout bounds every web request a command makes.
const defaultHTTPTimeout = 10 * time.Second

// Options configure the command set built by [Build].
type Options struct {
	// WeatherLocation is used when the user names no place.
	WeatherLocation string

	// WeatherURL overrides the wttr.in base URL.
	WeatherURL string

	// JokeURL overrides the icanhazdadjoke.com URL.
	JokeURL string

	// HTTPClient is shared by the internet commands. Defaults to a client
	// with a 10 second timeout.
	HTTPClient *http.Client

	// Announcer speaks timer and alarm notifications after the turn that set
	// them has ended. The timer command closes it on [Set.Close].
	Announcer Announcer

	// LLM enables the Ask command when non-nil.
	LLM llm.Provider

	// SystemPrompt is sent with every Ask request.
	SystemPrompt string

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Set is a built command list.
type Set struct {
	handlers []dispatch.Handler
	timer    *Timer
}

// Build returns the command set in priority order. Help comes first and
// describes every other command. Ask, when enabled, is last because it
// accepts any utterance. Each internet command has its own circuit breaker.
func Build(opts Options) *Set {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}

	timer := NewTimer(opts.Announcer, WithTimerMetrics(opts.Metrics))
	rest := []dispatch.Handler{
		Test{},
		Dice{},
		NewWeather(opts.WeatherLocation, opts.HTTPClient, WithWeatherURL(opts.WeatherURL)),
		NewJoke(opts.HTTPClient, WithJokeURL(opts.JokeURL)),
		timer,
	}
	if opts.LLM != nil {
		rest = append(rest, NewAsk(opts.LLM, WithSystemPrompt(opts.SystemPrompt)))
	}
	handlers := append([]dispatch.Handler{NewHelp(rest)}, rest...)
	return &Set{handlers: handlers, timer: timer}
}

// Handlers returns the commands in priority order.
func (s *Set) Handlers() []dispatch.Handler { return s.handlers }

// Close cancels pending timers and alarms.
func (s *Set) Close() { s.timer.Close() }

// containsAny reports whether text contains any of the substrings.
func containsAny(text string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}
