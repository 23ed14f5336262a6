package commands

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/zinnia/internal/dispatch/mock"
	"github.com/MrWong99/zinnia/internal/observe"
	"go.opentelemetry.io/otel/metric/noop"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

const wttrBody = `{
  "current_condition": [{
    "temp_F": "54",
    "FeelsLikeF": "50",
    "weatherDesc": [{"value": "Partly cloudy"}]
  }],
  "nearest_area": [{"areaName": [{"value": "Cleveland"}]}]
}`

func TestWeather_Effect(t *testing.T) {
	t.Parallel()

	var gotPath, gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.EscapedPath())
		gotQuery.Store(r.URL.RawQuery)
		fmt.Fprint(w, wttrBody)
	}))
	defer srv.Close()

	tests := []struct {
		name     string
		text     string
		location string
		wantPath string
		want     string
	}{
		{
			name:     "named place",
			text:     "what's the weather in new york",
			wantPath: "/new+york",
			want:     "The weather in new york is partly cloudy. It is 54 degrees and feels like 50 degrees.",
		},
		{
			name:     "configured default",
			text:     "how is the weather",
			location: "Berlin",
			wantPath: "/Berlin",
			want:     "The weather in Berlin is partly cloudy. It is 54 degrees and feels like 50 degrees.",
		},
		{
			name:     "nearest area",
			text:     "weather",
			wantPath: "/",
			want:     "The weather in Cleveland is partly cloudy. It is 54 degrees and feels like 50 degrees.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := NewWeather(tc.location, srv.Client(), WithWeatherURL(srv.URL))
			out := &mock.Speaker{}
			w.Effect(context.Background(), tc.text, out)

			if got := gotPath.Load(); got != tc.wantPath {
				t.Errorf("path = %v, want %q", got, tc.wantPath)
			}
			if got := gotQuery.Load(); got != "format=j1" {
				t.Errorf("query = %v, want format=j1", got)
			}
			if out.Last() != tc.want {
				t.Errorf("said %q, want %q", out.Last(), tc.want)
			}
		})
	}
}

func TestWeather_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			want:    "I didn't get a response from the weather service. Please try again later.",
		},
		{
			name:    "garbage body",
			handler: func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, "<html>") },
			want:    "I had a problem understanding the weather service. Please try again later.",
		},
		{
			name:    "no conditions",
			handler: func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, `{"current_condition": []}`) },
			want:    "I had a problem understanding the weather service. Please try again later.",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			w := NewWeather("Cleveland", srv.Client(), WithWeatherURL(srv.URL))
			out := &mock.Speaker{}
			w.Effect(context.Background(), "weather", out)
			if out.Last() != tc.want {
				t.Errorf("said %q, want %q", out.Last(), tc.want)
			}
		})
	}
}

func TestWeather_ConnectionRefusedThenBreakerOpens(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	w := NewWeather("Cleveland", &http.Client{}, WithWeatherURL(url))
	out := &mock.Speaker{}
	for range 3 {
		w.Effect(context.Background(), "weather", out)
	}
	if want := "I had a problem connecting to the weather service. Please try again later."; out.Last() != want {
		t.Errorf("said %q, want %q", out.Last(), want)
	}

	w.Effect(context.Background(), "weather", out)
	if !strings.Contains(out.Last(), "isn't responding right now") {
		t.Errorf("after repeated failures said %q, want the breaker message", out.Last())
	}
}

func TestPlaceIn(t *testing.T) {
	t.Parallel()

	for text, want := range map[string]string{
		"weather in paris":                "paris",
		"weather in san francisco please": "san francisco please",
		"weather in rome in the morning":  "rome",
		"weather today":                   "",
	} {
		if got := placeIn(text); got != want {
			t.Errorf("placeIn(%q) = %q, want %q", text, got, want)
		}
	}
}

func TestJoke_Effect(t *testing.T) {
	t.Parallel()

	var accept atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept.Store(r.Header.Get("Accept"))
		fmt.Fprintln(w, "I'm reading a book about anti-gravity. It's impossible to put down.")
	}))
	defer srv.Close()

	j := NewJoke(srv.Client(), WithJokeURL(srv.URL))
	out := &mock.Speaker{}
	j.Effect(context.Background(), "tell me a joke", out)

	if got := accept.Load(); got != "text/plain" {
		t.Errorf("Accept = %v, want text/plain", got)
	}
	if want := "I'm reading a book about anti-gravity. It's impossible to put down."; out.Last() != want {
		t.Errorf("said %q, want %q", out.Last(), want)
	}
}

func TestJoke_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name:    "bad status",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
			want:    "I didn't get a response from the joke service. Please try again later.",
		},
		{
			name:    "empty joke",
			handler: func(w http.ResponseWriter, _ *http.Request) {},
			want:    "I had a problem understanding the joke service. Please try again later.",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			j := NewJoke(srv.Client(), WithJokeURL(srv.URL))
			out := &mock.Speaker{}
			j.Effect(context.Background(), "joke", out)
			if out.Last() != tc.want {
				t.Errorf("said %q, want %q", out.Last(), tc.want)
			}
		})
	}
}
