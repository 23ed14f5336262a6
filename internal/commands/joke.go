package commands

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/MrWong99/zinnia/internal/dispatch"
	"github.com/MrWong99/zinnia/internal/observe"
	"github.com/MrWong99/zinnia/internal/resilience"
)

const defaultJokeURL = "https://icanhazdadjoke.com"

// Joke tells a dad joke from icanhazdadjoke.com.
type Joke struct {
	url     string
	client  *http.Client
	breaker *resilience.CircuitBreaker
}

var _ dispatch.Handler = (*Joke)(nil)

// JokeOption is a functional option for [NewJoke].
type JokeOption func(*Joke)

// WithJokeURL overrides the joke service URL. Empty keeps the default.
func WithJokeURL(u string) JokeOption {
	return func(j *Joke) {
		if u != "" {
			j.url = u
		}
	}
}

// NewJoke returns a Joke command.
func NewJoke(client *http.Client, opts ...JokeOption) *Joke {
	j := &Joke{url: defaultJokeURL, client: client, breaker: newBreaker("joke")}
	for _, o := range opts {
		o(j)
	}
	return j
}

func (*Joke) Name() string { return "Joke" }

func (*Joke) Description() string { return "This command will tell you a joke." }

func (*Joke) Help() string { return "Ask for a joke and you will receive one." }

func (*Joke) UsesInternet() bool { return true }

func (*Joke) Recognize(text string) bool { return strings.Contains(text, "joke") }

func (j *Joke) Effect(ctx context.Context, _ string, out dispatch.Speaker) dispatch.Result {
	joke, err := resilience.Call(j.breaker, func() (string, error) {
		body, err := fetch(ctx, j.client, j.url, "text/plain")
		if err != nil {
			return "", err
		}
		text := strings.TrimSpace(string(body))
		if text == "" {
			return "", fmt.Errorf("%w: empty joke", errResponse)
		}
		return text, nil
	})
	if err != nil {
		observe.Logger(ctx).Warn("joke lookup failed", "err", err)
		out.Say(failureMessage("joke", err))
		return dispatch.Done
	}
	out.Say(joke)
	return dispatch.Done
}
