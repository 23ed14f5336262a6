package whisper_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/zinnia/pkg/provider/stt"
	"github.com/MrWong99/zinnia/pkg/provider/stt/whisper"
)

// ---- helpers ----------------------------------------------------------------

type formCapture struct {
	mu     sync.Mutex
	fields map[string]string
}

func (c *formCapture) get(k string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fields[k]
}

// newMockServer answers POST /inference with responseText and counts calls.
func newMockServer(t *testing.T, responseText string, calls *atomic.Int32, form *formCapture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		if form != nil {
			form.mu.Lock()
			form.fields = map[string]string{}
			for k, v := range r.MultipartForm.Value {
				form.fields[k] = v[0]
			}
			form.mu.Unlock()
		}
		if calls != nil {
			calls.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": responseText})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// speech returns a 440 Hz tone with an RMS far above the silence gate.
func speech(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(10_000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return out
}

func silence(n int) []int16 { return make([]int16, n) }

func start(t *testing.T, p stt.Provider, cfg stt.StreamConfig) stt.Session {
	t.Helper()
	s, err := p.StartStream(context.Background(), cfg)
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func send(t *testing.T, s stt.Session, samples []int16) {
	t.Helper()
	if err := s.SendAudio(samples); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}
}

func waitFinal(t *testing.T, s stt.Session) stt.Transcript {
	t.Helper()
	select {
	case tr, ok := <-s.Finals():
		if !ok {
			t.Fatal("Finals closed before a transcript arrived")
		}
		return tr
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for final transcript")
	}
	return stt.Transcript{}
}

// ---- construction -----------------------------------------------------------

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	t.Parallel()
	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty server URL")
	}
}

func TestNewNative_EmptyPath_ReturnsError(t *testing.T) {
	t.Parallel()
	if _, err := whisper.NewNative(""); err == nil {
		t.Fatal("expected error for empty model path")
	}
}

func TestStartStream_CancelledContext_ReturnsError(t *testing.T) {
	t.Parallel()
	p, _ := whisper.New("http://localhost:1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.StartStream(ctx, stt.StreamConfig{}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

// ---- streaming --------------------------------------------------------------

func TestSilenceAloneDoesNotTriggerInference(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := newMockServer(t, "should not appear", &calls, nil)

	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(50))
	s := start(t, p, stt.StreamConfig{SampleRate: 16000})
	for range 10 {
		send(t, s, silence(1600))
	}
	_ = s.Close()

	for range s.Finals() {
		t.Error("unexpected transcript from silence")
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("server called %d times, want 0", n)
	}
}

func TestSpeechFollowedBySilenceEmitsFinal(t *testing.T) {
	t.Parallel()
	form := &formCapture{}
	srv := newMockServer(t, " what's the weather [BLANK_AUDIO]", nil, form)

	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(100), whisper.WithLanguage("de"))
	s := start(t, p, stt.StreamConfig{
		SampleRate: 16000,
		Keywords:   []string{"weather", "timer"},
	})

	send(t, s, speech(1600))
	send(t, s, silence(1600))

	tr := waitFinal(t, s)
	if tr.Text != "what's the weather" {
		t.Errorf("Text = %q, want %q", tr.Text, "what's the weather")
	}
	if tr.Duration != 200*time.Millisecond {
		t.Errorf("Duration = %v, want 200ms", tr.Duration)
	}
	if got := form.get("language"); got != "de" {
		t.Errorf("language field = %q, want de", got)
	}
	if got := form.get("prompt"); got != "weather, timer" {
		t.Errorf("prompt field = %q, want %q", got, "weather, timer")
	}
}

func TestLanguageFromConfigWins(t *testing.T) {
	t.Parallel()
	form := &formCapture{}
	srv := newMockServer(t, "hallo", nil, form)

	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(100), whisper.WithLanguage("de"))
	s := start(t, p, stt.StreamConfig{SampleRate: 16000, Language: "fr"})
	send(t, s, speech(1600))
	send(t, s, silence(1600))
	waitFinal(t, s)

	if got := form.get("language"); got != "fr" {
		t.Errorf("language field = %q, want fr", got)
	}
}

func TestMaxBufferExceededForcesFlush(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := newMockServer(t, "long speech", &calls, nil)

	p, _ := whisper.New(srv.URL,
		whisper.WithSilenceThresholdMs(10_000),
		whisper.WithMaxBufferDurationMs(200),
	)
	s := start(t, p, stt.StreamConfig{SampleRate: 16000})
	for range 3 {
		send(t, s, speech(1600))
	}

	if tr := waitFinal(t, s); tr.Text != "long speech" {
		t.Errorf("Text = %q, want %q", tr.Text, "long speech")
	}
}

func TestClose_FlushesRemainingSpeech(t *testing.T) {
	t.Parallel()
	srv := newMockServer(t, "last words", nil, nil)

	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(10_000))
	s := start(t, p, stt.StreamConfig{SampleRate: 16000})
	send(t, s, speech(1600))

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	var got []string
	for tr := range s.Finals() {
		got = append(got, tr.Text)
	}
	if len(got) != 1 || got[0] != "last words" {
		t.Errorf("transcripts after Close = %v, want [last words]", got)
	}
}

func TestServerError_ProducesNoTranscript(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(100))
	s := start(t, p, stt.StreamConfig{SampleRate: 16000})
	send(t, s, speech(1600))
	send(t, s, silence(1600))
	_ = s.Close()

	for tr := range s.Finals() {
		t.Errorf("unexpected transcript %q", tr.Text)
	}
}

func TestSendAudio_AfterClose(t *testing.T) {
	t.Parallel()
	p, _ := whisper.New("http://localhost:1")
	s := start(t, p, stt.StreamConfig{})
	_ = s.Close()
	_ = s.Close()

	if err := s.SendAudio(speech(160)); !errors.Is(err, stt.ErrSessionClosed) {
		t.Errorf("SendAudio after Close = %v, want ErrSessionClosed", err)
	}
}

func TestConcurrentSendAudio_DoesNotRace(t *testing.T) {
	t.Parallel()
	srv := newMockServer(t, "ok", nil, nil)
	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(50))
	s := start(t, p, stt.StreamConfig{SampleRate: 16000})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				err := s.SendAudio(speech(160))
				if err != nil && !errors.Is(err, stt.ErrBackpressure) {
					t.Errorf("SendAudio: %v", err)
				}
			}
		}()
	}
	wg.Wait()
}
