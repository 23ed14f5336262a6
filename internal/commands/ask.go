package commands

import (
	"context"
	"strings"
	"unicode"

	"github.com/MrWong99/zinnia/internal/dispatch"
	"github.com/MrWong99/zinnia/internal/observe"
	"github.com/MrWong99/zinnia/internal/resilience"
	"github.com/MrWong99/zinnia/pkg/provider/llm"
)

const (
	// DefaultSystemPrompt keeps answers short enough to be spoken.
	DefaultSystemPrompt = "You are Zinnia, a voice assistant. Answer in at most three short sentences of plain text without lists, markup or emoji."

	askMaxTokens    = 200
	askMaxSentences = 3
)

// Ask answers anything the other commands did not claim by asking a
// language model. It must be registered last.
type Ask struct {
	model   llm.Provider
	prompt  string
	breaker *resilience.CircuitBreaker
}

var _ dispatch.Handler = (*Ask)(nil)

// AskOption is a functional option for [NewAsk].
type AskOption func(*Ask)

// WithSystemPrompt overrides [DefaultSystemPrompt]. Empty keeps the default.
func WithSystemPrompt(p string) AskOption {
	return func(a *Ask) {
		if p != "" {
			a.prompt = p
		}
	}
}

// NewAsk returns an Ask command backed by model.
func NewAsk(model llm.Provider, opts ...AskOption) *Ask {
	a := &Ask{model: model, prompt: DefaultSystemPrompt, breaker: newBreaker("ask")}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (*Ask) Name() string { return "Ask" }

func (*Ask) Description() string {
	return "This command answers general questions using a language model."
}

func (*Ask) Help() string {
	return "Ask any question that no other command handles and a language model will answer it."
}

func (*Ask) UsesInternet() bool { return true }

func (*Ask) Recognize(text string) bool { return strings.TrimSpace(text) != "" }

func (a *Ask) Effect(ctx context.Context, text string, out dispatch.Speaker) dispatch.Result {
	resp, err := resilience.Call(a.breaker, func() (*llm.CompletionResponse, error) {
		return a.model.Complete(ctx, llm.CompletionRequest{
			SystemPrompt: a.prompt,
			Messages:     []llm.Message{{Role: llm.RoleUser, Content: text}},
			MaxTokens:    askMaxTokens,
		})
	})
	if err != nil {
		observe.Logger(ctx).Warn("ask failed", "err", err)
		out.Say("I couldn't reach the language model." + tryLater)
		return dispatch.Done
	}

	answer := ""
	if resp != nil {
		answer = firstSentences(resp.Content, askMaxSentences)
	}
	if answer == "" {
		out.Say("I don't have an answer for that.")
		return dispatch.Done
	}
	observe.Logger(ctx).Debug("ask answered", "tokens", resp.Usage.TotalTokens)
	out.Say(answer)
	return dispatch.Done
}

// firstSentences returns up to n sentences of text with markup characters
// and line breaks flattened.
func firstSentences(text string, n int) string {
	text = strings.Map(func(r rune) rune {
		switch r {
		case '*', '#', '`', '_':
			return -1
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, text)
	text = strings.Join(strings.Fields(text), " ")

	count := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(text) && text[i+1] != ' ' {
			continue // "3.5", "e.g."
		}
		count++
		if count == n {
			return text[:i+1]
		}
	}
	return text
}
