// Package provider routes model names to AI provider adapters and builds
// configured clients behind a single interface.
package provider

import (
	"strings"

	"github.com/teranos/promptforge/errors"
)

// Provider identifies an upstream AI provider family
type Provider string

const (
	// ProviderOpenAI covers OpenAI and anything speaking the
	// chat-completions dialect
	ProviderOpenAI Provider = "openai"

	// ProviderAnthropic covers the Anthropic Messages API
	ProviderAnthropic Provider = "anthropic"
)

// String returns the provider identifier
func (p Provider) String() string {
	return string(p)
}

// Valid reports whether p names a known provider
func (p Provider) Valid() bool {
	return p == ProviderOpenAI || p == ProviderAnthropic
}

// Model-family markers, matched by substring containment against the
// lowercased model name. Anthropic markers are checked first, so a name
// matching both families routes to Anthropic.
var (
	anthropicMarkers = []string{"claude", "sonnet", "haiku", "opus"}
	openaiMarkers    = []string{"gpt", "o1", "o3", "davinci", "curie", "babbage", "ada"}
)

// Route picks the provider for a model name. The model identifier itself is
// never rewritten: routing only chooses which upstream to call. Names that
// match no family marker fall back to the given default, and to Anthropic
// when the default is itself unusable.
func Route(model string, fallback Provider) Provider {
	name := strings.ToLower(model)

	for _, marker := range anthropicMarkers {
		if strings.Contains(name, marker) {
			return ProviderAnthropic
		}
	}
	for _, marker := range openaiMarkers {
		if strings.Contains(name, marker) {
			return ProviderOpenAI
		}
	}

	if fallback.Valid() {
		return fallback
	}
	return ProviderAnthropic
}

// ParseProvider resolves a user-supplied provider name, accepting a few
// common aliases.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai", "oai", "gpt":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	default:
		return "", errors.NewValidationError("unknown AI provider %q (supported: openai, anthropic)", s)
	}
}
