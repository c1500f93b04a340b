package library

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teranos/promptforge/errors"
)

// Document is a prompt file split into frontmatter metadata and body.
type Document struct {
	Meta Metadata
	Body string
}

// Metadata holds configuration from YAML frontmatter.
type Metadata struct {
	// Title identifies the prompt; imports fall back to the filename
	// stem when it is empty.
	Title string `yaml:"title"`

	// Description explains what the prompt does
	Description string `yaml:"description"`

	// Category groups prompts in the library
	Category string `yaml:"category,omitempty"`

	// Tags label the prompt for search
	Tags []string `yaml:"tags,omitempty"`

	// Model names a preferred model for this prompt
	Model string `yaml:"model,omitempty"`

	// Temperature overrides the execution default (0.0-2.0)
	Temperature *float64 `yaml:"temperature,omitempty"`

	// MaxTokens overrides the execution default (1-4000)
	MaxTokens *int `yaml:"max_tokens,omitempty"`
}

// ParseFrontmatter extracts YAML frontmatter and body from a prompt file.
// Expected format:
//
//	---
//	title: "Code Reviewer"
//	category: "Development"
//	tags: [review, code]
//	---
//	Prompt body with {placeholders}
//
// Content that does not open with a frontmatter fence is returned
// unchanged as the body.
func ParseFrontmatter(content string) (*Document, error) {
	if !strings.HasPrefix(content, "---") {
		return &Document{Body: content}, nil
	}

	parts := strings.SplitN(content, "---", 3)
	if len(parts) < 3 {
		return &Document{Body: content}, nil
	}

	frontmatterYAML := strings.TrimSpace(parts[1])
	body := strings.TrimSpace(parts[2])

	var meta Metadata
	if frontmatterYAML != "" {
		if err := yaml.Unmarshal([]byte(frontmatterYAML), &meta); err != nil {
			return nil, errors.Wrap(err, "parsing frontmatter YAML")
		}
	}

	if err := validateMetadata(&meta); err != nil {
		return nil, errors.Wrap(err, "invalid frontmatter")
	}

	return &Document{Meta: meta, Body: body}, nil
}

// validateMetadata rejects out-of-range execution overrides so a bad
// prompt file fails at import rather than at execution time.
func validateMetadata(m *Metadata) error {
	if m.Temperature != nil {
		if *m.Temperature < 0.0 || *m.Temperature > 2.0 {
			return errors.NewValidationError("temperature must be between 0.0 and 2.0, got %.2f", *m.Temperature)
		}
	}
	if m.MaxTokens != nil {
		if *m.MaxTokens < 1 || *m.MaxTokens > 4000 {
			return errors.NewValidationError("max_tokens must be between 1 and 4000, got %d", *m.MaxTokens)
		}
	}
	return nil
}
