package commands

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/MrWong99/zinnia/internal/dispatch"
)

const (
	maxDice  = 100
	minSides = 2
	maxSides = 1000

	diceUsage = `Make sure to say "Roll" followed by a type and number of dice in the number D number format.`
)

// Dice rolls dice spoken as "roll <count> d <sides>": "roll 2 d 6",
// "roll two d twenty", "roll a d20". A missing count means one die.
type Dice struct {
	// Intn returns a value in [0, n). Defaults to math/rand/v2.IntN.
	Intn func(n int) int
}

var _ dispatch.Handler = Dice{}

func (Dice) Name() string { return "Dice Command" }

func (Dice) Description() string { return "This command rolls dice." }

func (Dice) Help() string {
	return `Say "Roll" followed by a type and number of dice in the number D number format.`
}

func (Dice) UsesInternet() bool { return false }

func (Dice) Recognize(text string) bool { return containsAny(text, "roll ", "role ") }

func (d Dice) Effect(_ context.Context, text string, out dispatch.Speaker) dispatch.Result {
	count, sides, msg := parseDice(text)
	if msg != "" {
		out.Say(msg)
		return dispatch.Done
	}
	intn := d.Intn
	if intn == nil {
		intn = rand.IntN
	}
	rolls := make([]int, count)
	for i := range rolls {
		rolls[i] = intn(sides) + 1
	}
	out.Say("I rolled: " + speakList(rolls) + ".")
	return dispatch.Done
}

// parseDice returns the die count and size, or the message to speak when
// the utterance cannot be read.
func parseDice(text string) (count, sides int, msg string) {
	_, rest, ok := strings.Cut(text, "roll ")
	if !ok {
		_, rest, _ = strings.Cut(text, "role ")
	}
	left, right, ok := splitDice(strings.Fields(rest))
	if !ok {
		return 0, 0, diceUsage
	}

	count = 1
	if len(left) > 0 {
		if count, ok = parseNumber(left); !ok {
			return 0, 0, "I couldn't make out the first number. Please try again."
		}
	}
	if sides, ok = parseNumber(right); !ok {
		return 0, 0, "I couldn't make out the second number. Please try again."
	}
	if count < 1 || count > maxDice || sides < minSides || sides > maxSides {
		return 0, 0, fmt.Sprintf("I can only roll between 1 and %d dice with %d to %d sides.", maxDice, minSides, maxSides)
	}
	return count, sides, ""
}

// splitDice finds the "d" separating count and sides. It may stand alone
// ("2 d 6") or be glued to digits ("2d6", "d20").
func splitDice(words []string) (left, right []string, ok bool) {
	for i, w := range words {
		if w == "d" {
			return words[:i], words[i+1:], true
		}
		pre, post, found := strings.Cut(w, "d")
		if !found || post == "" || !allDigits(post) || (pre != "" && !allDigits(pre)) {
			continue
		}
		left = append(left, words[:i]...)
		if pre != "" {
			left = append(left, pre)
		}
		right = append([]string{post}, words[i+1:]...)
		return left, right, true
	}
	return nil, nil, false
}

func allDigits(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil && !strings.HasPrefix(s, "-") && !strings.HasPrefix(s, "+")
}

// speakList joins numbers the way they are said: "4", "4 and 2",
// "4, 2, and 6".
func speakList(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
}
