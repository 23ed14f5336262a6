// Package dispatch routes finalized utterances to command handlers.
//
// An [Engine] holds an ordered list of [Handler] values. Order is priority:
// the first handler whose [Handler.Recognize] predicate accepts the utterance
// runs its effect. A handler may keep the conversation by returning
// [Continue]; the engine then remembers which handler owns the next turn
// (its focus) and routes the following utterance straight to it, whatever
// its content. The engine never knows why a handler wants the next turn.
//
// The engine is owned by a single goroutine (the orchestrator) and is not
// safe for concurrent use.
package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/MrWong99/zinnia/internal/observe"
)

// DefaultRetryPrompt is spoken when an utterance matches no handler.
const DefaultRetryPrompt = "I'm not sure what you're asking for. Please try again."

// Result is returned by a handler effect to say whether it wants the next
// turn.
type Result int

const (
	// Done ends the turn. The handler releases focus if it held it.
	Done Result = iota

	// Continue keeps focus on the handler for the next utterance.
	Continue
)

// String returns the lower-case name of r.
func (r Result) String() string {
	switch r {
	case Done:
		return "done"
	case Continue:
		return "continue"
	}
	return "unknown"
}

// Speaker accepts text to be spoken. Implementations must not block.
type Speaker interface {
	Say(text string)
}

// Handler is a single voice command.
type Handler interface {
	// Name is the spoken name of the command, used by help.
	Name() string

	// Description is a one-sentence summary of the command.
	Description() string

	// Help explains how to invoke the command.
	Help() string

	// UsesInternet reports whether the effect needs network access.
	UsesInternet() bool

	// Recognize reports whether text (normalised by [Normalize]) is meant for
	// this command.
	Recognize(text string) bool

	// Effect handles text and speaks any response through out. Failures are
	// reported to the user through out, never returned.
	Effect(ctx context.Context, text string, out Speaker) Result
}

// FocusReleaser is implemented by handlers that keep conversation state
// between turns. ReleaseFocus is called when the engine drops their focus
// without a final turn, so the next conversation starts from the beginning.
type FocusReleaser interface {
	ReleaseFocus()
}

// Outcome describes one dispatched turn.
type Outcome struct {
	// Handler is the name of the handler that ran, or empty when nothing
	// matched and the retry prompt was spoken.
	Handler string

	// Result is the value returned by the handler effect.
	Result Result

	// Focused is true when the utterance bypassed predicate matching because
	// a handler already held focus.
	Focused bool

	// FocusHeld is true when a handler owns the next turn.
	FocusHeld bool
}

// Engine dispatches utterances to an ordered list of handlers.
type Engine struct {
	handlers    []Handler
	focus       int // index into handlers, or -1
	retryPrompt string
	metrics     *observe.Metrics
}

// Option is a functional option for [New].
type Option func(*Engine)

// WithRetryPrompt overrides [DefaultRetryPrompt].
func WithRetryPrompt(prompt string) Option {
	return func(e *Engine) {
		if prompt != "" {
			e.retryPrompt = prompt
		}
	}
}

// WithMetrics sets the metrics recorder. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New returns an Engine dispatching to handlers in the given order.
// Catch-all handlers belong at the end of the list. A help handler that
// describes the others belongs at the front.
func New(handlers []Handler, opts ...Option) *Engine {
	e := &Engine{
		handlers:    handlers,
		focus:       -1,
		retryPrompt: DefaultRetryPrompt,
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// Handlers returns the registered handlers in priority order.
func (e *Engine) Handlers() []Handler { return e.handlers }

// Focus returns the handler holding focus, if any.
func (e *Engine) Focus() (Handler, bool) {
	if e.focus < 0 {
		return nil, false
	}
	return e.handlers[e.focus], true
}

// ClearFocus drops any focus so the next utterance is matched afresh. The
// orchestrator calls it when the user stops answering a follow-up question.
func (e *Engine) ClearFocus() {
	if e.focus < 0 {
		return
	}
	h := e.handlers[e.focus]
	e.focus = -1
	slog.Debug("dispatch: focus cleared", "handler", h.Name())
	if r, ok := h.(FocusReleaser); ok {
		r.ReleaseFocus()
	}
}

// Dispatch routes one utterance. Exactly one handler effect runs, or the
// retry prompt is spoken when no handler matches and none holds focus.
func (e *Engine) Dispatch(ctx context.Context, utterance string, out Speaker) Outcome {
	ctx, span := observe.StartSpan(ctx, observe.SpanDispatch)
	defer span.End()
	log := observe.Logger(ctx)

	text := Normalize(utterance)

	idx, focused := e.focus, e.focus >= 0
	if !focused {
		idx = e.match(text)
	}
	if idx < 0 {
		log.Info("no command matched", "utterance", text)
		out.Say(e.retryPrompt)
		e.metrics.RecordDispatch(ctx, "", "", 0)
		observe.RecordDispatchResult(ctx, "", "", false)
		return Outcome{}
	}

	h := e.handlers[idx]
	start := time.Now()
	res := h.Effect(ctx, text, out)
	e.metrics.RecordDispatch(ctx, h.Name(), res.String(), time.Since(start))
	observe.RecordDispatchResult(ctx, h.Name(), res.String(), focused)

	if res == Continue {
		e.focus = idx
	} else {
		e.focus = -1
	}
	log.Debug("dispatched utterance",
		"handler", h.Name(),
		"result", res.String(),
		"focused", focused,
	)
	return Outcome{
		Handler:   h.Name(),
		Result:    res,
		Focused:   focused,
		FocusHeld: e.focus >= 0,
	}
}

// match returns the index of the first handler recognising text, or -1.
func (e *Engine) match(text string) int {
	for i, h := range e.handlers {
		if h.Recognize(text) {
			return i
		}
	}
	return -1
}

// Normalize lower-cases text, replaces punctuation other than apostrophes and
// colons with spaces and collapses runs of whitespace, so "Roll 2 D 6." and
// "roll 2 d 6" dispatch the same way.
func Normalize(text string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r == '\'' || r == ':':
			return r
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			return ' '
		}
		return unicode.ToLower(r)
	}, text)
	return strings.Join(strings.Fields(mapped), " ")
}
