// Package mock provides test doubles for the dispatch package interfaces.
//
// Use Handler to script command behaviour and inspect which utterances
// reached it. Use Speaker to capture everything a handler or the engine said.
//
// Example:
//
//	h := &mock.Handler{NameValue: "Test", Keyword: "test", Results: []dispatch.Result{dispatch.Done}}
//	out := &mock.Speaker{}
//	eng := dispatch.New([]dispatch.Handler{h})
//	eng.Dispatch(ctx, "this is a test", out)
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/MrWong99/zinnia/internal/dispatch"
)

// Handler is a mock implementation of dispatch.Handler.
type Handler struct {
	mu sync.Mutex

	// NameValue is returned by Name.
	NameValue string

	// DescriptionValue is returned by Description.
	DescriptionValue string

	// HelpValue is returned by Help.
	HelpValue string

	// Internet is returned by UsesInternet.
	Internet bool

	// Keyword makes Recognize return true when text contains it. An empty
	// keyword never matches unless MatchAll is set.
	Keyword string

	// MatchAll makes Recognize accept every utterance.
	MatchAll bool

	// Reply, if non-empty, is spoken on every Effect call.
	Reply string

	// Results are returned by successive Effect calls. Once exhausted, Effect
	// returns dispatch.Done.
	Results []dispatch.Result

	// EffectCalls records the text passed to every Effect call.
	EffectCalls []string

	// RecognizeCalls records the text passed to every Recognize call.
	RecognizeCalls []string

	// Releases counts ReleaseFocus calls.
	Releases int
}

// Name implements dispatch.Handler.
func (h *Handler) Name() string { return h.NameValue }

// Description implements dispatch.Handler.
func (h *Handler) Description() string { return h.DescriptionValue }

// Help implements dispatch.Handler.
func (h *Handler) Help() string { return h.HelpValue }

// ReleaseFocus implements dispatch.FocusReleaser.
func (h *Handler) ReleaseFocus() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Releases++
}

// UsesInternet implements dispatch.Handler.
func (h *Handler) UsesInternet() bool { return h.Internet }

// Recognize records the call and matches against Keyword.
func (h *Handler) Recognize(text string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.RecognizeCalls = append(h.RecognizeCalls, text)
	if h.MatchAll {
		return true
	}
	return h.Keyword != "" && strings.Contains(text, h.Keyword)
}

// Effect records the call, speaks Reply and returns the next scripted result.
func (h *Handler) Effect(_ context.Context, text string, out dispatch.Speaker) dispatch.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.EffectCalls)
	h.EffectCalls = append(h.EffectCalls, text)
	if h.Reply != "" {
		out.Say(h.Reply)
	}
	if n < len(h.Results) {
		return h.Results[n]
	}
	return dispatch.Done
}

// EffectCount returns the number of Effect calls. Thread-safe.
func (h *Handler) EffectCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.EffectCalls)
}

// Ensure Handler implements dispatch.Handler at compile time.
var _ dispatch.Handler = (*Handler)(nil)

// Speaker is a mock implementation of dispatch.Speaker that records every
// spoken text. It is safe for concurrent use.
type Speaker struct {
	mu   sync.Mutex
	said []string
}

// Say records text.
func (s *Speaker) Say(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.said = append(s.said, text)
}

// Said returns a copy of everything spoken so far.
func (s *Speaker) Said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.said))
	copy(out, s.said)
	return out
}

// Last returns the most recently spoken text, or "" if nothing was said.
func (s *Speaker) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.said) == 0 {
		return ""
	}
	return s.said[len(s.said)-1]
}

// Reset forgets everything spoken so far.
func (s *Speaker) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.said = nil
}

// Ensure Speaker implements dispatch.Speaker at compile time.
var _ dispatch.Speaker = (*Speaker)(nil)
