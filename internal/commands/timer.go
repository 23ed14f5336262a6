package commands

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/zinnia/internal/dispatch"
	"github.com/MrWong99/zinnia/internal/observe"
)

// Announcer speaks after a turn has ended. *speech.Sender satisfies it.
type Announcer interface {
	Say(text string)
	Close()
}

// Timer sets countdown timers ("set a timer for five minutes") and alarms
// at a wall-clock time ("set an alarm for 7:30 am"). Notifications are
// spoken through the Timer's own [Announcer].
type Timer struct {
	ann      Announcer
	metrics  *observe.Metrics
	now      func() time.Time
	schedule func(d time.Duration, f func()) (stop func() bool)

	mu      sync.Mutex
	pending map[uint64]func() bool
	nextID  uint64
	closed  bool
}

var _ dispatch.Handler = (*Timer)(nil)

// TimerOption is a functional option for [NewTimer].
type TimerOption func(*Timer)

// WithTimerMetrics sets the metrics recorder. Defaults to [observe.DefaultMetrics].
func WithTimerMetrics(m *observe.Metrics) TimerOption {
	return func(t *Timer) { t.metrics = m }
}

// WithTimerClock replaces time.Now and time.AfterFunc. Used by tests.
func WithTimerClock(now func() time.Time, schedule func(time.Duration, func()) func() bool) TimerOption {
	return func(t *Timer) {
		t.now = now
		t.schedule = schedule
	}
}

// NewTimer returns a Timer that announces through ann.
func NewTimer(ann Announcer, opts ...TimerOption) *Timer {
	t := &Timer{
		ann: ann,
		now: time.Now,
		schedule: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		pending: make(map[uint64]func() bool),
	}
	for _, o := range opts {
		o(t)
	}
	if t.metrics == nil {
		t.metrics = observe.DefaultMetrics()
	}
	return t
}

func (*Timer) Name() string { return "Timer and Alarm" }

func (*Timer) Description() string {
	return "This command allows you to set an alarm for a specific time or after a duration."
}

func (*Timer) Help() string {
	return `Use "Alarm" for a set time or "Timer" for a set duration.`
}

func (*Timer) UsesInternet() bool { return false }

func (*Timer) Recognize(text string) bool { return containsAny(text, "timer", "alarm") }

func (t *Timer) Effect(ctx context.Context, text string, out dispatch.Speaker) dispatch.Result {
	if strings.Contains(text, "timer") {
		d := parseDuration(text)
		if d <= 0 {
			out.Say("I couldn't understand how long the timer should be.")
			return dispatch.Done
		}
		if !t.add(ctx, d, "Your timer has run out.") {
			out.Say("I can't set timers right now.")
			return dispatch.Done
		}
		observe.Logger(ctx).Info("timer set", "duration", d)
		out.Say("Timer set.")
		return dispatch.Done
	}

	now := t.now()
	at, ok := parseAlarm(text, now)
	if !ok {
		out.Say("I couldn't understand what time the alarm should be set for.")
		return dispatch.Done
	}
	if !t.add(ctx, at.Sub(now), "Your alarm is going off.") {
		out.Say("I can't set alarms right now.")
		return dispatch.Done
	}
	observe.Logger(ctx).Info("alarm set", "at", at)
	out.Say("Alarm set for " + at.Format("3:04 PM") + ".")
	return dispatch.Done
}

// Pending returns the number of timers and alarms that have not fired.
func (t *Timer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Close cancels everything pending and closes the announcer. It is safe to
// call more than once.
func (t *Timer) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	stops := t.pending
	t.pending = nil
	t.mu.Unlock()

	cancelled := 0
	for _, stop := range stops {
		if stop() {
			cancelled++
		}
	}
	if len(stops) > 0 {
		t.metrics.PendingTimers.Add(context.Background(), -int64(len(stops)))
		observe.Logger(context.Background()).Info("timers cancelled", "count", cancelled)
	}
	if t.ann != nil {
		t.ann.Close()
	}
}

func (t *Timer) add(ctx context.Context, d time.Duration, msg string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	id := t.nextID
	t.nextID++
	t.pending[id] = t.schedule(d, func() { t.fire(id, msg) })
	t.metrics.PendingTimers.Add(ctx, 1)
	return true
}

func (t *Timer) fire(id uint64, msg string) {
	t.mu.Lock()
	if _, ok := t.pending[id]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.pending, id)
	t.mu.Unlock()

	t.metrics.PendingTimers.Add(context.Background(), -1)
	if t.ann != nil {
		t.ann.Say(msg)
	}
}

var durationUnits = map[string]time.Duration{
	"hour": time.Hour, "hours": time.Hour,
	"minute": time.Minute, "minutes": time.Minute, "min": time.Minute, "mins": time.Minute,
	"second": time.Second, "seconds": time.Second, "sec": time.Second, "secs": time.Second,
}

// parseDuration sums every "<number> <unit>" pair in text, so "one hour and
// twenty five minutes" is 85 minutes.
func parseDuration(text string) time.Duration {
	words := strings.Fields(text)
	var total time.Duration
	for i, w := range words {
		unit, ok := durationUnits[w]
		if !ok {
			continue
		}
		if n, ok := numberBefore(words, i); ok {
			total += time.Duration(n) * unit
		}
	}
	return total
}

// parseAlarm reads the time after "alarm" and returns its next occurrence
// after now. Accepted forms: "7", "7 30", "seven thirty pm", "7:05 a m",
// "six oh five".
func parseAlarm(text string, now time.Time) (time.Time, bool) {
	_, rest, _ := strings.Cut(text, "alarm")
	words := strings.Fields(rest)

	var (
		nums     []string
		meridiem string
	)
	for i := 0; i < len(words); i++ {
		w := words[i]
		switch {
		case strings.Contains(w, ":") || isNumberWord(w):
			nums = append(nums, w)
		case len(nums) > 0 && (w == "oh" || w == "o"):
			nums = append(nums, w)
		case len(nums) > 0 && (w == "am" || w == "pm"):
			meridiem = w
		case len(nums) > 0 && (w == "a" || w == "p") && i+1 < len(words) && words[i+1] == "m":
			meridiem = w + "m"
			i++
		}
	}
	hour, minute, ok := clockNumbers(nums)
	if !ok {
		return time.Time{}, false
	}

	switch meridiem {
	case "am", "pm":
		if hour < 1 || hour > 12 {
			return time.Time{}, false
		}
		hour %= 12
		if meridiem == "pm" {
			hour += 12
		}
	default:
		if hour > 23 {
			return time.Time{}, false
		}
	}
	if minute > 59 {
		return time.Time{}, false
	}

	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at, true
}

// clockNumbers splits spoken clock words into hour and minute.
func clockNumbers(nums []string) (hour, minute int, ok bool) {
	if len(nums) == 0 {
		return 0, 0, false
	}
	if h, m, found := strings.Cut(nums[0], ":"); found {
		hour, err1 := strconv.Atoi(h)
		minute, err2 := strconv.Atoi(m)
		return hour, minute, err1 == nil && err2 == nil && hour >= 0 && minute >= 0
	}
	hour, ok = parseNumber(nums[:1])
	if !ok {
		return 0, 0, false
	}
	rest := nums[1:]
	if len(rest) == 0 {
		// "730" as a single token.
		if len(nums[0]) >= 3 && hour >= 100 {
			return hour / 100, hour % 100, true
		}
		return hour, 0, true
	}
	if rest[0] == "oh" || rest[0] == "o" {
		rest = rest[1:]
	}
	minute, ok = parseNumber(rest)
	return hour, minute, ok
}
