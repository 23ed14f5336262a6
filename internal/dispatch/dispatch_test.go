package dispatch_test

import (
	"context"
	"slices"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/zinnia/internal/dispatch"
	"github.com/MrWong99/zinnia/internal/dispatch/mock"
	"github.com/MrWong99/zinnia/internal/observe"
)

// newEngine builds an Engine with no-op metrics.
func newEngine(t *testing.T, handlers []dispatch.Handler, opts ...dispatch.Option) *dispatch.Engine {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return dispatch.New(handlers, append([]dispatch.Option{dispatch.WithMetrics(m)}, opts...)...)
}

// standardHandlers returns Help, Test and Weather mocks registered in that
// order.
func standardHandlers() (help, test, weather *mock.Handler) {
	help = &mock.Handler{NameValue: "Help", Keyword: "help"}
	test = &mock.Handler{NameValue: "Test Command", Keyword: "test command", Reply: "Test Command recognized."}
	weather = &mock.Handler{NameValue: "Weather", Keyword: "weather", Internet: true}
	return help, test, weather
}

func TestDispatch_MatchingHandlerRunsAlone(t *testing.T) {
	t.Parallel()

	help, test, weather := standardHandlers()
	eng := newEngine(t, []dispatch.Handler{help, test, weather})
	out := &mock.Speaker{}

	got := eng.Dispatch(context.Background(), "Please run the Test Command.", out)

	if got.Handler != "Test Command" || got.Result != dispatch.Done {
		t.Errorf("outcome = %+v, want Test Command/Done", got)
	}
	if test.EffectCount() != 1 {
		t.Errorf("test effect calls = %d, want 1", test.EffectCount())
	}
	if help.EffectCount() != 0 || weather.EffectCount() != 0 {
		t.Errorf("other handlers ran: help=%d weather=%d", help.EffectCount(), weather.EffectCount())
	}
	if _, ok := eng.Focus(); ok {
		t.Error("focus set after a Done result")
	}
	if got.FocusHeld {
		t.Error("Outcome.FocusHeld = true after a Done result")
	}
	if want := []string{"please run the test command"}; !slices.Equal(test.EffectCalls, want) {
		t.Errorf("effect text = %q, want %q", test.EffectCalls, want)
	}
}

func TestDispatch_ContinueRoutesNextUtteranceToSameHandler(t *testing.T) {
	t.Parallel()

	help, test, weather := standardHandlers()
	help.Results = []dispatch.Result{dispatch.Continue, dispatch.Done}
	eng := newEngine(t, []dispatch.Handler{help, test, weather})
	out := &mock.Speaker{}
	ctx := context.Background()

	first := eng.Dispatch(ctx, "help", out)
	if first.Result != dispatch.Continue || !first.FocusHeld {
		t.Fatalf("first outcome = %+v, want Continue with focus", first)
	}
	if h, ok := eng.Focus(); !ok || h.Name() != "Help" {
		t.Fatalf("Focus() = %v, %v; want Help", h, ok)
	}

	// Matches Weather's predicate, but Help owns the turn.
	second := eng.Dispatch(ctx, "weather", out)
	if second.Handler != "Help" || !second.Focused {
		t.Errorf("second outcome = %+v, want focused Help", second)
	}
	if weather.EffectCount() != 0 {
		t.Errorf("weather ran while help held focus")
	}
	if len(weather.RecognizeCalls) != 0 {
		t.Errorf("predicates consulted while focus was held: %q", weather.RecognizeCalls)
	}
	if _, ok := eng.Focus(); ok {
		t.Error("focus still held after the focused handler returned Done")
	}

	// Focus released: predicates apply again.
	third := eng.Dispatch(ctx, "weather", out)
	if third.Handler != "Weather" || third.Focused {
		t.Errorf("third outcome = %+v, want unfocused Weather", third)
	}
}

func TestDispatch_ContinueKeepsFocusAcrossTurns(t *testing.T) {
	t.Parallel()

	chatty := &mock.Handler{
		NameValue: "Chatty",
		Keyword:   "chat",
		Results:   []dispatch.Result{dispatch.Continue, dispatch.Continue, dispatch.Continue, dispatch.Done},
	}
	eng := newEngine(t, []dispatch.Handler{chatty})
	out := &mock.Speaker{}
	ctx := context.Background()

	for i, text := range []string{"chat", "anything", "", "bye"} {
		got := eng.Dispatch(ctx, text, out)
		if got.Handler != "Chatty" {
			t.Fatalf("turn %d routed to %q, want Chatty", i, got.Handler)
		}
	}
	if chatty.EffectCount() != 4 {
		t.Errorf("effect calls = %d, want 4", chatty.EffectCount())
	}
	if len(out.Said()) != 0 {
		t.Errorf("retry prompt spoken during focused turns: %q", out.Said())
	}
}

func TestDispatch_ClearFocusRematchesNextUtterance(t *testing.T) {
	t.Parallel()

	help, test, _ := standardHandlers()
	help.Results = []dispatch.Result{dispatch.Continue}
	eng := newEngine(t, []dispatch.Handler{help, test})
	out := &mock.Speaker{}
	ctx := context.Background()

	if got := eng.Dispatch(ctx, "help", out); !got.FocusHeld {
		t.Fatal("help should hold focus after Continue")
	}
	eng.ClearFocus()
	if _, ok := eng.Focus(); ok {
		t.Fatal("focus still set after ClearFocus")
	}
	if help.Releases != 1 {
		t.Errorf("help released %d times, want 1", help.Releases)
	}
	eng.ClearFocus()
	if help.Releases != 1 {
		t.Error("ClearFocus without focus must not release again")
	}
	if got := eng.Dispatch(ctx, "test command", out); got.Handler != "Test Command" || got.Focused {
		t.Errorf("outcome after ClearFocus = %+v, want unfocused Test Command", got)
	}
}

func TestDispatch_NoMatchSpeaksRetryPromptOnce(t *testing.T) {
	t.Parallel()

	help, test, weather := standardHandlers()
	eng := newEngine(t, []dispatch.Handler{help, test, weather})
	out := &mock.Speaker{}

	got := eng.Dispatch(context.Background(), "open the pod bay doors", out)

	if got.Handler != "" || got.FocusHeld {
		t.Errorf("outcome = %+v, want empty", got)
	}
	if want := []string{dispatch.DefaultRetryPrompt}; !slices.Equal(out.Said(), want) {
		t.Errorf("said = %q, want %q", out.Said(), want)
	}
	if _, ok := eng.Focus(); ok {
		t.Error("focus set after no match")
	}
	for _, h := range []*mock.Handler{help, test, weather} {
		if h.EffectCount() != 0 {
			t.Errorf("%s effect ran on no match", h.Name())
		}
	}
}

func TestDispatch_FirstRegisteredHandlerWins(t *testing.T) {
	t.Parallel()

	specific := &mock.Handler{NameValue: "Dice", Keyword: "roll"}
	catchAll := &mock.Handler{NameValue: "Ask", MatchAll: true}
	eng := newEngine(t, []dispatch.Handler{specific, catchAll})
	out := &mock.Speaker{}
	ctx := context.Background()

	if got := eng.Dispatch(ctx, "roll a die", out); got.Handler != "Dice" {
		t.Errorf("handler = %q, want Dice", got.Handler)
	}
	if got := eng.Dispatch(ctx, "what is the capital of peru", out); got.Handler != "Ask" {
		t.Errorf("handler = %q, want Ask", got.Handler)
	}
	if len(out.Said()) != 0 {
		t.Errorf("retry prompt spoken with a catch-all registered: %q", out.Said())
	}
}

func TestDispatch_CustomRetryPrompt(t *testing.T) {
	t.Parallel()

	eng := newEngine(t, nil, dispatch.WithRetryPrompt("Say that again?"))
	out := &mock.Speaker{}
	eng.Dispatch(context.Background(), "hello", out)

	if out.Last() != "Say that again?" {
		t.Errorf("said %q, want custom prompt", out.Last())
	}
}

func TestResult_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		r    dispatch.Result
		want string
	}{
		{dispatch.Done, "done"},
		{dispatch.Continue, "continue"},
		{dispatch.Result(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("Result(%d).String() = %q, want %q", int(tt.r), got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Roll 2 D 6.", "roll 2 d 6"},
		{"  What's   the WEATHER in Paris?  ", "what's the weather in paris"},
		{"Set an alarm for 7:30, please!", "set an alarm for 7:30 please"},
		{"", ""},
		{"...", ""},
		{"tell me a joke", "tell me a joke"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := dispatch.Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
