// Package speech serialises spoken output.
//
// Any number of producers hold a [Sender] and call [Sender.Say]; exactly one
// [Consumer] drains the shared [Queue] in send order, synthesising and
// playing each request to completion before taking the next, so spoken
// output never overlaps. Say never blocks, which makes a Sender safe to use
// from the real-time capture callback.
//
// The queue closes once every Sender has been closed. The consumer then
// finishes the requests already queued and exits.
package speech

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned when sending on a closed queue or sender.
var ErrClosed = errors.New("speech: queue closed")

// Request is one piece of text to speak.
type Request struct {
	// Text is the text to synthesise.
	Text string

	// Enqueued is when the request was sent.
	Enqueued time.Time
}

// Queue is an unbounded FIFO of [Request] values with reference-counted
// producers.
type Queue struct {
	mu      sync.Mutex
	items   []Request
	senders int
	closed  bool

	notify chan struct{} // signalled on push and on close
}

// NewQueue returns an empty queue and its first producer handle.
func NewQueue() (*Queue, *Sender) {
	q := &Queue{
		senders: 1,
		notify:  make(chan struct{}, 1),
	}
	return q, &Sender{q: q}
}

// Len returns the number of requests waiting to be consumed.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether every producer has been closed.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Next blocks until a request is available and returns it. It returns false
// once the queue is closed and empty.
func (q *Queue) Next() (Request, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			req := q.items[0]
			q.items[0] = Request{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return req, true
		}
		if q.closed {
			q.mu.Unlock()
			return Request{}, false
		}
		q.mu.Unlock()
		<-q.notify
	}
}

func (q *Queue) push(text string) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, Request{Text: text, Enqueued: time.Now()})
	q.mu.Unlock()
	q.signal()
	return nil
}

// retain registers another producer. It fails once the queue has closed.
func (q *Queue) retain() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.senders++
	return true
}

// release drops a producer and closes the queue when none remain.
func (q *Queue) release() {
	q.mu.Lock()
	q.senders--
	if q.senders > 0 {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Sender is a producer handle on a [Queue]. A Sender must be closed exactly
// once when its owner is done speaking; further closes are no-ops.
// A Sender is safe for concurrent use.
type Sender struct {
	q      *Queue
	once   sync.Once
	closed atomic.Bool
}

// Say enqueues text for speaking and returns immediately. Empty text is
// ignored. Text sent after Close is dropped with a warning.
func (s *Sender) Say(text string) {
	if err := s.Send(text); err != nil {
		slog.Warn("speech: dropping request", "text", text, "err", err)
	}
}

// Send is like Say but reports [ErrClosed] instead of logging it.
func (s *Sender) Send(text string) error {
	if text == "" {
		return nil
	}
	if s.closed.Load() {
		return ErrClosed
	}
	return s.q.push(text)
}

// Clone returns a new producer handle on the same queue. The queue stays open
// until the clone is closed too. Cloning a closed sender returns a closed
// sender.
func (s *Sender) Clone() *Sender {
	c := &Sender{q: s.q}
	if s.closed.Load() || !s.q.retain() {
		c.closed.Store(true)
		c.once.Do(func() {})
	}
	return c
}

// Close releases this producer handle.
func (s *Sender) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.q.release()
	})
}
