package commands

import (
	"testing"

	llmmock "github.com/MrWong99/zinnia/pkg/provider/llm/mock"
)

func handlerNames(s *Set) []string {
	var names []string
	for _, h := range s.Handlers() {
		names = append(names, h.Name())
	}
	return names
}

func TestBuild_Order(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "without llm",
			want: []string{"Help Command", "Test Command", "Dice Command", "Weather", "Joke", "Timer and Alarm"},
		},
		{
			name: "with llm",
			opts: Options{LLM: &llmmock.Provider{}},
			want: []string{"Help Command", "Test Command", "Dice Command", "Weather", "Joke", "Timer and Alarm", "Ask"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tc.opts.Metrics = testMetrics(t)
			s := Build(tc.opts)
			defer s.Close()

			got := handlerNames(s)
			if len(got) != len(tc.want) {
				t.Fatalf("handlers = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("handler %d = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestBuild_CloseClosesAnnouncer(t *testing.T) {
	t.Parallel()

	ann := &fakeAnnouncer{}
	s := Build(Options{Announcer: ann, Metrics: testMetrics(t)})
	s.Close()
	if ann.closeCount() != 1 {
		t.Errorf("announcer closed %d times, want 1", ann.closeCount())
	}
}
