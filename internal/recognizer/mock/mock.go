// Package mock provides a scripted [recognizer.Recognizer] for tests.
package mock

import (
	"sync"

	"github.com/MrWong99/zinnia/internal/recognizer"
)

// Recognizer returns queued outcomes, one per Accept call, and InProgress
// once the queue is empty.
type Recognizer struct {
	mu       sync.Mutex
	queue    []recognizer.Outcome
	accepted int
	calls    int
	resets   int
}

// Push queues outcomes for upcoming Accept calls.
func (r *Recognizer) Push(outs ...recognizer.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, outs...)
}

// Finalize queues a Finalized outcome with text.
func (r *Recognizer) Finalize(text string) {
	r.Push(recognizer.Outcome{Kind: recognizer.Finalized, Text: text})
}

// Fail queues a Failed outcome with err.
func (r *Recognizer) Fail(err error) {
	r.Push(recognizer.Outcome{Kind: recognizer.Failed, Err: err})
}

// Accept records the samples and pops the next queued outcome.
func (r *Recognizer) Accept(samples []int16) recognizer.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.accepted += len(samples)
	if len(r.queue) == 0 {
		return recognizer.Outcome{Kind: recognizer.InProgress}
	}
	out := r.queue[0]
	r.queue = r.queue[1:]
	return out
}

// Reset records the call. Queued outcomes are kept.
func (r *Recognizer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets++
}

// Calls returns the number of Accept calls.
func (r *Recognizer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Samples returns the total number of samples passed to Accept.
func (r *Recognizer) Samples() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accepted
}

// Resets returns the number of Reset calls.
func (r *Recognizer) Resets() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resets
}

var _ recognizer.Recognizer = (*Recognizer)(nil)
