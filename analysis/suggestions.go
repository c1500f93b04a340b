package analysis

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/teranos/promptforge/ai/provider"
)

const (
	suggestionTemperature = 0.3
	suggestionMaxTokens   = 300

	// Leading list markers stripped from model output. Bullets,
	// enumerators 1-9 with Latin or full-width closers, and padding.
	suggestionMarkers = "•-*123456789.） "

	// Parsed lines at or under this many runes are treated as noise.
	minSuggestionRunes = 5

	maxSuggestions = 5
)

const suggestionSystemPrompt = `You are a senior prompt engineering expert. Generate 3-5 specific, actionable optimization suggestions for the given prompt.

Requirements:
1. Target the specific prompt content, not generic advice
2. Keep each suggestion short and direct
3. Cover different aspects: structure, clarity, context, output format
4. Make every suggestion something the user can apply immediately
5. Return only the list, one suggestion per line, with no other commentary`

// staticSuggestions backstop the AI-generated set. Order matters: a
// failed call returns the first three, a thin parse appends from the
// front until the list holds five.
var staticSuggestions = []string{
	"Consider adding more specific context information",
	"Clearly define the expected output format",
	"Add examples to improve understanding",
	"Strengthen instruction clarity and actionability",
	"Improve prompt structure for readability",
}

func staticSuggestionFallback() []string {
	return append([]string(nil), staticSuggestions[:3]...)
}

// generateSuggestions asks the model for improvement suggestions and
// parses them permissively. Any failure falls back to the static set so
// the report always carries suggestions.
func (a *Analyzer) generateSuggestions(ctx context.Context, client provider.AIClient, model, promptText, analysisContext string) []string {
	userMessage := "Generate specific optimization suggestions for this prompt:\n\n" + promptText
	if analysisContext != "" {
		userMessage += "\n\nAnalysis context:\n" + analysisContext
	}

	content, err := a.chat(ctx, client, suggestionSystemPrompt, userMessage, model,
		suggestionTemperature, suggestionMaxTokens)
	if err != nil {
		a.logger.Warnw("Suggestion generation failed, using static set",
			"model", model,
			"error", err)
		return staticSuggestionFallback()
	}

	return padSuggestions(parseSuggestions(content))
}

// parseSuggestions extracts list entries from free-form model output:
// one suggestion per line, leading list markers stripped, short
// fragments dropped.
func parseSuggestions(text string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, suggestionMarkers)
		if utf8.RuneCountInString(line) > minSuggestionRunes {
			out = append(out, line)
		}
	}
	return out
}

// padSuggestions tops up a thin parse from the static set and caps the
// result. Fewer than three parsed entries means the model ignored the
// list format, so the static entries fill the list out to five.
func padSuggestions(parsed []string) []string {
	if len(parsed) < 3 {
		parsed = append(parsed, staticSuggestions[:maxSuggestions-len(parsed)]...)
	}
	if len(parsed) > maxSuggestions {
		parsed = parsed[:maxSuggestions]
	}
	return parsed
}
