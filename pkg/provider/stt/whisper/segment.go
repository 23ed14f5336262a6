package whisper

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/zinnia/pkg/provider/stt"
)

const (
	// defaultRMSThreshold is the RMS level (16-bit PCM units) below which a
	// chunk counts as silence.
	defaultRMSThreshold = 300.0

	defaultLanguage            = "en"
	defaultSampleRate          = 16000
	defaultSilenceThresholdMs  = 700
	defaultMaxBufferDurationMs = 15_000

	// audioQueueLen bounds how many chunks may wait while an inference runs.
	audioQueueLen = 512
)

// segmenter splits a continuous sample stream into utterances using an
// energy gate: speech starts an utterance, and enough trailing silence or
// an over-long buffer ends it. Leading silence is discarded.
type segmenter struct {
	sampleRate   int
	threshold    float64
	silenceLimit int // samples of trailing silence that end an utterance
	maxSamples   int

	buf       []int16
	hadSpeech bool
	silent    int
}

func newSegmenter(sampleRate, silenceMs, maxMs int) segmenter {
	return segmenter{
		sampleRate:   sampleRate,
		threshold:    defaultRMSThreshold,
		silenceLimit: sampleRate * silenceMs / 1000,
		maxSamples:   sampleRate * maxMs / 1000,
	}
}

// push adds a chunk and returns a completed utterance, or nil.
func (s *segmenter) push(chunk []int16) []int16 {
	if rms(chunk) < s.threshold {
		if !s.hadSpeech {
			return nil
		}
		s.buf = append(s.buf, chunk...)
		s.silent += len(chunk)
		if s.silent >= s.silenceLimit {
			return s.flush()
		}
		return nil
	}
	s.hadSpeech = true
	s.silent = 0
	s.buf = append(s.buf, chunk...)
	if s.maxSamples > 0 && len(s.buf) >= s.maxSamples {
		return s.flush()
	}
	return nil
}

// flush returns any buffered speech and resets the segmenter.
func (s *segmenter) flush() []int16 {
	out := s.buf
	had := s.hadSpeech
	s.buf = nil
	s.hadSpeech = false
	s.silent = 0
	if !had || len(out) == 0 {
		return nil
	}
	return out
}

func rms(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		f := float64(v)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// inferFunc transcribes one utterance.
type inferFunc func(ctx context.Context, samples []int16) (string, error)

// streamSession adapts a batch inferFunc to [stt.Session]. All segmenter
// state is confined to the loop goroutine.
type streamSession struct {
	seg        segmenter
	infer      inferFunc
	sampleRate int

	audio  chan []int16
	finals chan stt.Transcript

	closed atomic.Bool
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

var _ stt.Session = (*streamSession)(nil)

func startSession(ctx context.Context, seg segmenter, infer inferFunc) *streamSession {
	s := &streamSession{
		seg:        seg,
		infer:      infer,
		sampleRate: seg.sampleRate,
		audio:      make(chan []int16, audioQueueLen),
		finals:     make(chan stt.Transcript, 16),
		done:       make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop(ctx)
	return s
}

// SendAudio copies samples onto the input queue without blocking.
func (s *streamSession) SendAudio(samples []int16) error {
	if s.closed.Load() {
		return stt.ErrSessionClosed
	}
	cp := make([]int16, len(samples))
	copy(cp, samples)
	select {
	case s.audio <- cp:
		return nil
	default:
		return stt.ErrBackpressure
	}
}

func (s *streamSession) Finals() <-chan stt.Transcript { return s.finals }

// Close transcribes any buffered speech, then closes Finals.
func (s *streamSession) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *streamSession) loop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.finals)

	for {
		select {
		case <-ctx.Done():
			s.finish()
			return
		case <-s.done:
			s.finish()
			return
		case chunk := <-s.audio:
			if utt := s.seg.push(chunk); utt != nil {
				s.emit(ctx, utt)
			}
		}
	}
}

// finish drains queued audio and transcribes what is left, independent of
// the session context which may already be cancelled.
func (s *streamSession) finish() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
drain:
	for {
		select {
		case chunk := <-s.audio:
			if utt := s.seg.push(chunk); utt != nil {
				s.emit(ctx, utt)
			}
		default:
			break drain
		}
	}
	if utt := s.seg.flush(); utt != nil {
		s.emit(ctx, utt)
	}
}

func (s *streamSession) emit(ctx context.Context, utt []int16) {
	text, err := s.infer(ctx, utt)
	if err != nil {
		slog.Warn("whisper: inference failed", "err", err)
		return
	}
	text = cleanText(text)
	if text == "" {
		return
	}
	t := stt.Transcript{
		Text:     text,
		Duration: time.Duration(len(utt)) * time.Second / time.Duration(s.sampleRate),
	}
	select {
	case s.finals <- t:
	default:
		slog.Warn("whisper: finals channel full, dropping transcript", "text", text)
	}
}

// cleanText trims whitespace and drops whisper's non-speech annotations such
// as "[BLANK_AUDIO]" or "(wind blowing)".
func cleanText(text string) string {
	var b strings.Builder
	depth := 0
	for _, r := range text {
		switch r {
		case '[', '(':
			depth++
			continue
		case ']', ')':
			if depth > 0 {
				depth--
				continue
			}
		}
		if depth == 0 {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
