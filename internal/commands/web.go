package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrWong99/zinnia/internal/resilience"
)

// maxBodyBytes caps web responses read by commands.
const maxBodyBytes = 1 << 20

var (
	errConnect  = errors.New("connect")
	errStatus   = errors.New("status")
	errResponse = errors.New("response")
)

// newBreaker returns the breaker used by one internet command.
func newBreaker(name string) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         name,
		MaxFailures:  3,
		ResetTimeout: time.Minute,
		HalfOpenMax:  1,
	})
}

// fetch performs a GET and returns the body. Errors wrap errConnect,
// errStatus or errResponse so callers can pick what to say.
func fetch(ctx context.Context, client *http.Client, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConnect, err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("User-Agent", "zinnia (https://github.com/MrWong99/zinnia)")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConnect, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", errStatus, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errResponse, err)
	}
	return body, nil
}

// failureMessage turns a fetch error into speech about service.
func failureMessage(service string, err error) string {
	var msg string
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		msg = fmt.Sprintf("The %s service isn't responding right now.", service)
	case errors.Is(err, errStatus):
		msg = fmt.Sprintf("I didn't get a response from the %s service.", service)
	case errors.Is(err, errResponse):
		msg = fmt.Sprintf("I had a problem understanding the %s service.", service)
	default:
		msg = fmt.Sprintf("I had a problem connecting to the %s service.", service)
	}
	return msg + tryLater
}
