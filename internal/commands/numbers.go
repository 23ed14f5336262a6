package commands

import "strconv"

var (
	unitWords = map[string]int{
		"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
		"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
		"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
		"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
		"nineteen": 19,
	}
	tensWords = map[string]int{
		"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
		"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
	}
)

// isNumberWord reports whether w can be part of a spoken number. "and" and
// the articles are excluded; they are only meaningful inside a phrase.
func isNumberWord(w string) bool {
	if _, err := strconv.Atoi(w); err == nil {
		return true
	}
	if _, ok := unitWords[w]; ok {
		return true
	}
	if _, ok := tensWords[w]; ok {
		return true
	}
	return w == "hundred" || w == "thousand"
}

// parseNumber reads a number written as digits or English words:
// "12", "twelve", "a hundred and five", "two thousand twenty".
// A lone "a" or "an" reads as 1. Any other word fails the parse.
func parseNumber(words []string) (int, bool) {
	if len(words) == 0 {
		return 0, false
	}
	if len(words) == 1 && (words[0] == "a" || words[0] == "an") {
		return 1, true
	}

	var total, current int
	seen := false
	for i, w := range words {
		if n, err := strconv.Atoi(w); err == nil {
			if n < 0 {
				return 0, false
			}
			current += n
			seen = true
			continue
		}
		if v, ok := unitWords[w]; ok {
			current += v
			seen = true
			continue
		}
		if v, ok := tensWords[w]; ok {
			current += v
			seen = true
			continue
		}
		switch w {
		case "a", "an":
			// Only "a hundred" and "a thousand".
			if i != 0 || (words[1] != "hundred" && words[1] != "thousand") {
				return 0, false
			}
		case "and":
			if !seen {
				return 0, false
			}
		case "hundred":
			current = max(current, 1) * 100
			seen = true
		case "thousand":
			total += max(current, 1) * 1000
			current = 0
			seen = true
		default:
			return 0, false
		}
	}
	if !seen {
		return 0, false
	}
	return total + current, true
}

// numberBefore parses the run of number words that ends just before
// words[end]. A leading "a" or "an" is included, so "a minute" reads as 1.
func numberBefore(words []string, end int) (int, bool) {
	start := end
	for start > 0 && isNumberWord(words[start-1]) {
		start--
	}
	if start > 0 && (words[start-1] == "a" || words[start-1] == "an") {
		if n, ok := parseNumber(words[start-1 : end]); ok {
			return n, true
		}
	}
	return parseNumber(words[start:end])
}
