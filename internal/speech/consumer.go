package speech

import (
	"context"
	"time"

	"github.com/MrWong99/zinnia/internal/observe"
	"github.com/MrWong99/zinnia/pkg/audio"
	"github.com/MrWong99/zinnia/pkg/provider/tts"
	"go.opentelemetry.io/otel/trace"
)

// Consumer drains a [Queue], synthesising and playing one request at a time.
type Consumer struct {
	queue   *Queue
	synth   tts.Provider
	player  audio.Player
	metrics *observe.Metrics

	done chan struct{}
}

// ConsumerOption is a functional option for [NewConsumer].
type ConsumerOption func(*Consumer)

// WithMetrics sets the metrics recorder. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) ConsumerOption {
	return func(c *Consumer) { c.metrics = m }
}

// NewConsumer returns a Consumer for q. Call [Consumer.Run] to start it.
func NewConsumer(q *Queue, synth tts.Provider, player audio.Player, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		queue:  q,
		synth:  synth,
		player: player,
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Run drains the queue until it is closed and empty. Requests are never
// cancelled once dequeued: ctx supplies values (trace, logger) but its
// cancellation is ignored. Run must be called at most once.
func (c *Consumer) Run(ctx context.Context) {
	defer close(c.done)
	ctx = context.WithoutCancel(ctx)

	for {
		req, ok := c.queue.Next()
		if !ok {
			observe.Logger(ctx).Debug("speech queue closed, consumer exiting")
			return
		}
		c.speak(ctx, req)
	}
}

// Done returns a channel that is closed when Run returns.
func (c *Consumer) Done() <-chan struct{} { return c.done }

// Wait blocks until Run returns.
func (c *Consumer) Wait() { <-c.done }

// Alive reports whether the consumer has not yet exited.
func (c *Consumer) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// speak synthesises and plays one request. Failures are logged and the
// request is dropped.
func (c *Consumer) speak(ctx context.Context, req Request) {
	ctx, span := observe.StartSpan(ctx, observe.SpanSpeak,
		trace.WithNewRoot(),
		trace.WithAttributes(observe.AttrText.String(req.Text)),
	)
	defer span.End()
	log := observe.Logger(ctx)

	c.metrics.SpeechRequests.Add(ctx, 1)

	start := time.Now()
	pcm, err := c.synth.Synthesize(ctx, req.Text)
	if err != nil {
		log.Error("speech: synthesis failed", "text", req.Text, "err", err)
		c.metrics.RecordSpeechError(ctx, "synthesize")
		return
	}
	c.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	if len(pcm) == 0 {
		log.Warn("speech: synthesis produced no audio", "text", req.Text)
		return
	}

	start = time.Now()
	if err := c.player.Play(ctx, pcm, c.synth.SampleRate()); err != nil {
		log.Error("speech: playback failed", "text", req.Text, "err", err)
		c.metrics.RecordSpeechError(ctx, "play")
		return
	}
	c.metrics.PlaybackDuration.Record(ctx, time.Since(start).Seconds())

	log.Debug("spoke",
		"text", req.Text,
		"queued_for", start.Sub(req.Enqueued),
		"audio", audio.Duration(pcm, c.synth.SampleRate()),
	)
}
