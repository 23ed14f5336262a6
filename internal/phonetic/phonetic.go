// Package phonetic picks the command name a listener most likely meant from
// a transcribed phrase, so "whether" finds Weather and "dies" finds Dice.
//
// Matching runs in two stages. Double Metaphone codes are computed for every
// word of the phrase and of each candidate name; a candidate sharing a code
// is a phonetic candidate and is ranked by Jaro-Winkler similarity, provided
// the score reaches the phonetic threshold. When no phonetic candidate
// qualifies, plain Jaro-Winkler similarity is tried against every name with
// a stricter fuzzy threshold.
//
// Filler words ("the", "command", "please", ...) are removed from both sides
// before matching.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// DefaultIgnoredWords are stripped from phrases and names before matching.
var DefaultIgnoredWords = []string{"a", "an", "the", "command", "for", "with", "on", "please", "help", "me", "about"}

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score a phonetic
// candidate needs. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score used when no
// phonetic candidate qualifies. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// WithIgnoredWords replaces [DefaultIgnoredWords].
func WithIgnoredWords(words ...string) Option {
	return func(m *Matcher) { m.ignored = toSet(words) }
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	ignored           map[string]struct{}
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		ignored:           toSet(DefaultIgnoredWords),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the entry of names that phrase most likely refers to.
// ok is false, and name empty, when nothing scores above the thresholds.
func (m *Matcher) Match(phrase string, names []string) (name string, score float64, ok bool) {
	words := m.tokens(phrase)
	if len(words) == 0 || len(names) == 0 {
		return "", 0, false
	}
	codes := codesFor(words)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, candidate := range names {
		cwords := m.tokens(candidate)
		if len(cwords) == 0 {
			continue
		}
		s := similarity(words, cwords)
		if overlaps(codes, codesFor(cwords)) {
			if s >= m.phoneticThreshold && (!bestPhonetic || s > bestScore) {
				best, bestScore, bestPhonetic = candidate, s, true
			}
			continue
		}
		if !bestPhonetic && s >= m.fuzzyThreshold && s > bestScore {
			best, bestScore = candidate, s
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, bestScore, true
}

// tokens lower-cases text and drops ignored words.
func (m *Matcher) tokens(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		if _, skip := m.ignored[f]; !skip {
			out = append(out, f)
		}
	}
	return out
}

func codesFor(words []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(words)*2)
	for _, w := range words {
		p, s := matchr.DoubleMetaphone(w)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// similarity is the highest Jaro-Winkler similarity of the joined phrases,
// the phrases with spaces removed, and any single pair of words.
func similarity(a, b []string) float64 {
	score := matchr.JaroWinkler(strings.Join(a, " "), strings.Join(b, " "), false)
	if len(a) > 1 || len(b) > 1 {
		if s := matchr.JaroWinkler(strings.Join(a, ""), strings.Join(b, ""), false); s > score {
			score = s
		}
	}
	for _, x := range a {
		for _, y := range b {
			if s := matchr.JaroWinkler(x, y, false); s > score {
				score = s
			}
		}
	}
	return score
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}
