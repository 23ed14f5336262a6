// Package deepgram provides an STT provider backed by the Deepgram streaming
// WebSocket API.
//
// Deepgram finalises speech in segments. A session joins the final segments
// of one spoken utterance and emits them as a single transcript once Deepgram
// reports the end of speech (speech_final or an UtteranceEnd event).
package deepgram

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/zinnia/pkg/audio"
	"github.com/MrWong99/zinnia/pkg/provider/stt"
	"github.com/coder/websocket"
)

const (
	deepgramEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 16000

	defaultEndpointingMs  = 300
	defaultUtteranceEndMs = 1000

	// closeGrace is how long Close waits for Deepgram to flush after
	// CloseStream before cutting the connection.
	closeGrace = 5 * time.Second
)

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model (e.g. "nova-3", "nova-2").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the default language.
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// WithEndpoint overrides the WebSocket URL. Used by tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// Provider implements stt.Provider on top of Deepgram live transcription.
type Provider struct {
	apiKey   string
	model    string
	language string
	endpoint string
}

// New returns a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		endpoint: deepgramEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream dials Deepgram and returns a live session.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.Session, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	// The connection outlives the dial context; Close ends it.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{
		conn:     conn,
		finals:   make(chan stt.Transcript, 16),
		audio:    make(chan []byte, 512),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
		cancel:   cancel,
	}
	s.writers.Add(1)
	go s.readLoop(loopCtx)
	go s.writeLoop(loopCtx)
	return s, nil
}

// buildURL constructs the streaming endpoint URL for cfg.
func (p *Provider) buildURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	sr := cfg.SampleRate
	if sr <= 0 {
		sr = defaultSampleRate
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", cmp.Or(cfg.Language, p.language))
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sr))
	q.Set("channels", "1")
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	// utterance_end_ms requires interim results.
	q.Set("interim_results", "true")
	q.Set("endpointing", strconv.Itoa(defaultEndpointingMs))
	q.Set("utterance_end_ms", strconv.Itoa(defaultUtteranceEndMs))

	// Nova-3 takes key terms; older models take boosted keywords.
	param := "keywords"
	if strings.HasPrefix(p.model, "nova-3") {
		param = "keyterm"
	}
	for _, kw := range cfg.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			q.Add(param, kw)
		}
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----

type message struct {
	Type        string  `json:"type"`
	IsFinal     bool    `json:"is_final"`
	SpeechFinal bool    `json:"speech_final"`
	Duration    float64 `json:"duration"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// session is a live Deepgram stream.
type session struct {
	conn   *websocket.Conn
	finals chan stt.Transcript
	audio  chan []byte

	closed   atomic.Bool
	done     chan struct{}
	readDone chan struct{}
	cancel   context.CancelFunc
	once     sync.Once
	writers  sync.WaitGroup
}

// SendAudio encodes samples and queues them for the write loop.
func (s *session) SendAudio(samples []int16) error {
	if s.closed.Load() {
		return stt.ErrSessionClosed
	}
	select {
	case s.audio <- audio.Int16ToBytes(make([]byte, 0, len(samples)*2), samples):
		return nil
	default:
		return stt.ErrBackpressure
	}
}

func (s *session) Finals() <-chan stt.Transcript { return s.finals }

// Close asks Deepgram to flush, waits for the loops and closes the socket.
func (s *session) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.done)
		s.writers.Wait()
		select {
		case <-s.readDone:
		case <-time.After(closeGrace):
			s.cancel()
			<-s.readDone
		}
		s.cancel()
		_ = s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

func (s *session) writeLoop(ctx context.Context) {
	defer s.writers.Done()
	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				slog.Warn("deepgram: write failed", "err", err)
				return
			}
		case <-s.done:
			for {
				select {
				case chunk := <-s.audio:
					_ = s.conn.Write(ctx, websocket.MessageBinary, chunk)
				default:
					_ = s.conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
					return
				}
			}
		}
	}
}

// readLoop assembles final segments into utterances.
func (s *session) readLoop(ctx context.Context) {
	defer close(s.readDone)
	defer close(s.finals)

	var acc utterance
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if t, ok := acc.take(); ok {
				s.emit(t)
			}
			return
		}
		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if t, ok := acc.add(msg); ok {
			s.emit(t)
		}
	}
}

func (s *session) emit(t stt.Transcript) {
	select {
	case s.finals <- t:
	default:
		slog.Warn("deepgram: finals channel full, dropping transcript", "text", t.Text)
	}
}

// utterance accumulates final segments until an end-of-speech signal.
type utterance struct {
	parts      []string
	confidence float64
	seconds    float64
}

// add folds msg into the utterance and reports a completed transcript.
func (u *utterance) add(msg message) (stt.Transcript, bool) {
	switch msg.Type {
	case "UtteranceEnd":
		return u.take()
	case "Results":
	default:
		return stt.Transcript{}, false
	}
	if !msg.IsFinal || len(msg.Channel.Alternatives) == 0 {
		return stt.Transcript{}, false
	}
	alt := msg.Channel.Alternatives[0]
	if text := strings.TrimSpace(alt.Transcript); text != "" {
		u.parts = append(u.parts, text)
		u.confidence += alt.Confidence
		u.seconds += msg.Duration
	}
	if msg.SpeechFinal {
		return u.take()
	}
	return stt.Transcript{}, false
}

// take returns the accumulated transcript and resets u.
func (u *utterance) take() (stt.Transcript, bool) {
	if len(u.parts) == 0 {
		return stt.Transcript{}, false
	}
	t := stt.Transcript{
		Text:       strings.Join(u.parts, " "),
		Confidence: u.confidence / float64(len(u.parts)),
		Duration:   secondsToDuration(u.seconds),
	}
	*u = utterance{}
	return t, true
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
