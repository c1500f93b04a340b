package prompt

import (
	"unicode"
	"unicode/utf8"
)

// Metrics holds locally computed prompt statistics. These never require a
// network call and are returned even when AI analysis fails.
type Metrics struct {
	Characters   int      `json:"characters"` // runes, not bytes
	Words        int      `json:"words"`      // whitespace-separated tokens
	Lines        int      `json:"lines"`      // newline-separated lines, minimum 1
	SpecialChars []string `json:"special_chars"`
}

// Measure computes metrics for a prompt
func Measure(text string) Metrics {
	return Metrics{
		Characters:   utf8.RuneCountInString(text),
		Words:        countWords(text),
		Lines:        countLines(text),
		SpecialChars: specialChars(text),
	}
}

func countWords(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
		} else if !inWord {
			inWord = true
			count++
		}
	}
	return count
}

func countLines(text string) int {
	lines := 1
	for _, r := range text {
		if r == '\n' {
			lines++
		}
	}
	return lines
}

// specialChars returns the distinct non-alphanumeric, non-whitespace
// characters in first-appearance order.
func specialChars(text string) []string {
	seen := make(map[rune]bool)
	var out []string
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			continue
		}
		if !seen[r] {
			seen[r] = true
			out = append(out, string(r))
		}
	}
	return out
}
