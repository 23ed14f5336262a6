package phonetic

import "testing"

var commandNames = []string{"Help Command", "Test Command", "Dice Command", "Weather", "Joke", "Alarm"}

func TestMatcher_Match(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		phrase string
		want   string
		wantOK bool
	}{
		{name: "exact", phrase: "joke", want: "Joke", wantOK: true},
		{name: "case insensitive", phrase: "WEATHER", want: "Weather", wantOK: true},
		{name: "filler words ignored", phrase: "the weather command please", want: "Weather", wantOK: true},
		{name: "homophone", phrase: "whether", want: "Weather", wantOK: true},
		{name: "misheard dice", phrase: "dies", want: "Dice Command", wantOK: true},
		{name: "multi word name by its keyword", phrase: "test", want: "Test Command", wantOK: true},
		{name: "unrelated", phrase: "banana", wantOK: false},
		{name: "only filler", phrase: "the command", wantOK: false},
		{name: "empty", phrase: "", wantOK: false},
	}

	m := New()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, score, ok := m.Match(tc.phrase, commandNames)
			if ok != tc.wantOK {
				t.Fatalf("Match(%q) ok = %v, want %v (got %q, score %.2f)", tc.phrase, ok, tc.wantOK, got, score)
			}
			if got != tc.want {
				t.Errorf("Match(%q) = %q, want %q", tc.phrase, got, tc.want)
			}
			if !ok && score != 0 {
				t.Errorf("Match(%q) score = %f on a miss, want 0", tc.phrase, score)
			}
		})
	}
}

func TestMatcher_NoNames(t *testing.T) {
	t.Parallel()
	if _, _, ok := New().Match("weather", nil); ok {
		t.Fatal("Match against no names should fail")
	}
}

func TestMatcher_PhoneticThreshold(t *testing.T) {
	t.Parallel()
	m := New(WithPhoneticThreshold(0.99), WithFuzzyThreshold(0.99))
	if got, _, ok := m.Match("whether", commandNames); ok {
		t.Errorf("Match with strict thresholds = %q, want no match", got)
	}
}

func TestWithIgnoredWords(t *testing.T) {
	t.Parallel()
	m := New(WithIgnoredWords("joke"))
	if got, _, ok := m.Match("joke", commandNames); ok {
		t.Errorf("ignored word matched %q", got)
	}
	if m.phoneticThreshold != defaultPhoneticThreshold || m.fuzzyThreshold != defaultFuzzyThreshold {
		t.Error("thresholds changed by WithIgnoredWords")
	}
}
