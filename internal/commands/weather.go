package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrWong99/zinnia/internal/dispatch"
	"github.com/MrWong99/zinnia/internal/observe"
	"github.com/MrWong99/zinnia/internal/resilience"
)

const defaultWeatherURL = "https://wttr.in"

// Weather reads the current conditions from wttr.in.
type Weather struct {
	location string
	baseURL  string
	client   *http.Client
	breaker  *resilience.CircuitBreaker
}

var _ dispatch.Handler = (*Weather)(nil)

// WeatherOption is a functional option for [NewWeather].
type WeatherOption func(*Weather)

// WithWeatherURL overrides the wttr.in base URL. Empty keeps the default.
func WithWeatherURL(u string) WeatherOption {
	return func(w *Weather) {
		if u != "" {
			w.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// NewWeather returns a Weather command. location is used when the user
// names no place; empty lets wttr.in guess from the caller's address.
func NewWeather(location string, client *http.Client, opts ...WeatherOption) *Weather {
	w := &Weather{
		location: location,
		baseURL:  defaultWeatherURL,
		client:   client,
		breaker:  newBreaker("weather"),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (*Weather) Name() string { return "Weather" }

func (*Weather) Description() string {
	return "This command can give you weather information about a given location."
}

func (*Weather) Help() string {
	return `Mention the weather and a location to receive weather data about that location. Make sure to precede the location with the word "in".`
}

func (*Weather) UsesInternet() bool { return true }

func (*Weather) Recognize(text string) bool { return strings.Contains(text, "weather") }

// wttrReport is the part of wttr.in's j1 format that is spoken.
type wttrReport struct {
	CurrentCondition []struct {
		TempF       string `json:"temp_F"`
		FeelsLikeF  string `json:"FeelsLikeF"`
		WeatherDesc []struct {
			Value string `json:"value"`
		} `json:"weatherDesc"`
	} `json:"current_condition"`
	NearestArea []struct {
		AreaName []struct {
			Value string `json:"value"`
		} `json:"areaName"`
	} `json:"nearest_area"`
}

func (w *Weather) Effect(ctx context.Context, text string, out dispatch.Speaker) dispatch.Result {
	place := placeIn(text)
	if place == "" {
		place = w.location
	}

	report, err := resilience.Call(w.breaker, func() (wttrReport, error) {
		return w.fetch(ctx, place)
	})
	if err != nil {
		observe.Logger(ctx).Warn("weather lookup failed", "place", place, "err", err)
		out.Say(failureMessage("weather", err))
		return dispatch.Done
	}

	cur := report.CurrentCondition[0]
	if place == "" && len(report.NearestArea) > 0 && len(report.NearestArea[0].AreaName) > 0 {
		place = report.NearestArea[0].AreaName[0].Value
	}
	desc := "unknown"
	if len(cur.WeatherDesc) > 0 {
		desc = strings.ToLower(strings.TrimSpace(cur.WeatherDesc[0].Value))
	}
	out.Say(fmt.Sprintf("The weather in %s is %s. It is %s degrees and feels like %s degrees.",
		place, desc, cur.TempF, cur.FeelsLikeF))
	return dispatch.Done
}

func (w *Weather) fetch(ctx context.Context, place string) (wttrReport, error) {
	words := strings.Fields(place)
	for i, word := range words {
		words[i] = url.PathEscape(word)
	}
	body, err := fetch(ctx, w.client, w.baseURL+"/"+strings.Join(words, "+")+"?format=j1", "application/json")
	if err != nil {
		return wttrReport{}, err
	}
	var report wttrReport
	if err := json.Unmarshal(body, &report); err != nil {
		return wttrReport{}, fmt.Errorf("%w: %w", errResponse, err)
	}
	if len(report.CurrentCondition) == 0 {
		return wttrReport{}, fmt.Errorf("%w: no current conditions", errResponse)
	}
	return report, nil
}

// placeIn returns the words after the first "in", up to a following "in".
func placeIn(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		if w != "in" {
			continue
		}
		rest := words[i+1:]
		for j, r := range rest {
			if r == "in" {
				rest = rest[:j]
				break
			}
		}
		return strings.Join(rest, " ")
	}
	return ""
}
