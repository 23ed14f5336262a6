// Package resilience keeps flaky collaborators from stalling the assistant.
//
// Each internet command (joke, weather, ask) sends its requests through its
// own [CircuitBreaker], so a dead web service is answered with "try again
// later" straight away instead of a timeout on every turn. [FallbackGroup]
// binds a pipeline slot (speech recognition, synthesis or the language model)
// to a primary provider and its backups, each behind a breaker, and fails
// over when the primary errors.
//
// Breaker transitions and failovers are logged and recorded through
// [observe.Metrics]. All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/zinnia/internal/observe"
)

// ErrCircuitOpen is returned without calling the wrapped function while a
// breaker is open or its half-open trial budget is spent.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is a breaker's operating mode.
type State int

const (
	// StateClosed forwards every call and counts consecutive failures.
	StateClosed State = iota

	// StateOpen rejects calls until the reset timeout has passed.
	StateOpen

	// StateHalfOpen admits a limited number of trial calls. One failed trial
	// re-opens the breaker; enough successful ones close it.
	StateHalfOpen
)

// String returns the state's log and metric label.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero fields take defaults.
type CircuitBreakerConfig struct {
	// Name labels logs and metrics, e.g. "weather" or "tts/piper".
	Name string

	// MaxFailures is how many consecutive failures open the breaker.
	// Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is both the number of trial calls admitted while half-open and
	// the number of successful trials that close the breaker. Default: 3.
	HalfOpenMax int

	// Metrics records state transitions. Default: [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Now replaces time.Now. Used by tests.
	Now func() time.Time
}

// CircuitBreaker is a three-state (closed, open, half-open) breaker.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu       sync.Mutex
	state    State
	failures int       // consecutive failures while closed
	openedAt time.Time // when the breaker last opened
	trials   int       // trial calls admitted while half-open
	trialOK  int       // successful trials while half-open
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// Name returns the breaker's label.
func (cb *CircuitBreaker) Name() string { return cb.cfg.Name }

// Execute calls fn unless the breaker rejects the call with
// [ErrCircuitOpen]. fn's error is returned unchanged and counts as a failure.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	trial, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.settle(trial, err == nil)
	return err
}

// Call is [CircuitBreaker.Execute] for functions returning a value. On any
// error the zero value is returned.
func Call[R any](cb *CircuitBreaker, fn func() (R, error)) (R, error) {
	var result R
	err := cb.Execute(func() error {
		r, err := fn()
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}

// State returns the breaker's state. An open breaker whose reset timeout has
// passed reports [StateHalfOpen]; the transition itself happens on the next
// call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.cooledDown() {
		return StateHalfOpen
	}
	return cb.state
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.moveTo(StateClosed)
	slog.Info("circuit breaker reset", "breaker", cb.cfg.Name)
}

// admit decides whether a call may run and whether it is a half-open trial.
func (cb *CircuitBreaker) admit() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if !cb.cooledDown() {
			return false, ErrCircuitOpen
		}
		cb.moveTo(StateHalfOpen)
	}
	if cb.state != StateHalfOpen {
		return false, nil
	}
	if cb.trials >= cb.cfg.HalfOpenMax {
		return false, ErrCircuitOpen
	}
	cb.trials++
	return true, nil
}

// settle accounts for a finished call.
func (cb *CircuitBreaker) settle(trial, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case trial && cb.state != StateHalfOpen:
		// Reset while the trial was in flight.
	case trial && !ok:
		cb.open()
	case trial:
		cb.trialOK++
		if cb.trialOK >= cb.cfg.HalfOpenMax {
			cb.moveTo(StateClosed)
		}
	case ok:
		cb.failures = 0
	case cb.state == StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures {
			cb.open()
		}
	}
}

func (cb *CircuitBreaker) open() {
	cb.openedAt = cb.cfg.Now()
	cb.moveTo(StateOpen)
}

func (cb *CircuitBreaker) cooledDown() bool {
	return cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout
}

// moveTo switches state, clears the counters of the new state and reports
// the transition. Must be called with cb.mu held.
func (cb *CircuitBreaker) moveTo(to State) {
	from := cb.state
	cb.state = to
	cb.trials, cb.trialOK = 0, 0
	if to == StateClosed {
		cb.failures = 0
	}
	if from == to {
		return
	}

	cb.cfg.Metrics.RecordBreakerTransition(context.Background(), cb.cfg.Name, to.String())
	level := slog.LevelInfo
	if to == StateOpen {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "circuit breaker state change",
		"breaker", cb.cfg.Name,
		"from", from.String(),
		"to", to.String(),
		"consecutive_failures", cb.failures,
	)
}
