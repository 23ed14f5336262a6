package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/zinnia/internal/observe"
)

// ErrAllFailed is returned when every provider in a [FallbackGroup] failed or
// had an open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// Slot names the pipeline stage the group serves ("stt", "tts", "llm").
	// It labels logs and the failover metrics.
	Slot string

	// Metrics records failures and failovers. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// CircuitBreaker is the template for each provider's breaker. Its Name
	// is replaced by "<slot>/<provider>".
	CircuitBreaker CircuitBreakerConfig
}

func withSlot(cfg FallbackConfig, slot string) FallbackConfig {
	if cfg.Slot == "" {
		cfg.Slot = slot
	}
	return cfg
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds the provider configured for one slot plus its backups.
// Calls go to the first entry whose breaker admits them; an entry that fails
// hands the call to the next one.
//
// Entries must be added before the group is shared. Execution is safe for
// concurrent use.
type FallbackGroup[T any] struct {
	slot    string
	metrics *observe.Metrics
	cbCfg   CircuitBreakerConfig
	entries []fallbackEntry[T]
}

// NewFallbackGroup returns a group with primary as its preferred provider.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{
		slot:    cfg.Slot,
		metrics: cfg.Metrics,
		cbCfg:   cfg.CircuitBreaker,
	}
	if fg.metrics == nil {
		fg.metrics = observe.DefaultMetrics()
	}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a backup provider. Backups are tried in the order they
// were added.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	cb := fg.cbCfg
	cb.Name = name
	if cb.Metrics == nil {
		cb.Metrics = fg.metrics
	}
	if fg.slot != "" {
		cb.Name = fg.slot + "/" + name
	}
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(cb),
	})
}

// Execute calls fn with each provider in turn until one succeeds. A success
// on any provider but the first is counted as a failover. When every
// provider fails, the error wraps [ErrAllFailed] and the last failure.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	ctx := context.Background()
	var lastErr error
	for i := range fg.entries {
		entry := &fg.entries[i]
		err := entry.breaker.Execute(func() error { return fn(entry.value) })
		if err == nil {
			if i > 0 {
				fg.metrics.RecordFailover(ctx, fg.slot, entry.name)
				slog.Info("provider fallback served request", "slot", fg.slot, "provider", entry.name)
			}
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			fg.metrics.RecordProviderFailure(ctx, fg.slot, entry.name, "circuit_open")
			slog.Debug("skipping provider, circuit open", "slot", fg.slot, "provider", entry.name)
			continue
		}
		fg.metrics.RecordProviderFailure(ctx, fg.slot, entry.name, "error")
		slog.Warn("provider failed", "slot", fg.slot, "provider", entry.name, "err", err)
	}
	if fg.slot == "" {
		return fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
	}
	return fmt.Errorf("%s: %w: %w", fg.slot, ErrAllFailed, lastErr)
}

// ExecuteWithResult is [FallbackGroup.Execute] for calls that return a value.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var result R
	err := fg.Execute(func(p T) error {
		r, err := fn(p)
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
