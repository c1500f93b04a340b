package library

import (
	"strings"
	"testing"

	"github.com/teranos/promptforge/errors"
)

func TestParseFrontmatter_FullMetadata(t *testing.T) {
	content := `---
title: "Code Reviewer"
description: "Structured code review"
category: "Development"
tags: [review, code]
model: "claude-3-sonnet-20240229"
temperature: 0.3
max_tokens: 2000
---
Review the following {language} code:

{code}`

	doc, err := ParseFrontmatter(content)
	if err != nil {
		t.Fatalf("ParseFrontmatter failed: %v", err)
	}

	if doc.Meta.Title != "Code Reviewer" {
		t.Errorf("expected title 'Code Reviewer', got %q", doc.Meta.Title)
	}
	if doc.Meta.Description != "Structured code review" {
		t.Errorf("expected description preserved, got %q", doc.Meta.Description)
	}
	if doc.Meta.Category != "Development" {
		t.Errorf("expected category 'Development', got %q", doc.Meta.Category)
	}
	if len(doc.Meta.Tags) != 2 || doc.Meta.Tags[0] != "review" {
		t.Errorf("expected tags [review code], got %v", doc.Meta.Tags)
	}
	if doc.Meta.Model != "claude-3-sonnet-20240229" {
		t.Errorf("expected model preserved, got %q", doc.Meta.Model)
	}
	if doc.Meta.Temperature == nil || *doc.Meta.Temperature != 0.3 {
		t.Errorf("expected temperature 0.3, got %v", doc.Meta.Temperature)
	}
	if doc.Meta.MaxTokens == nil || *doc.Meta.MaxTokens != 2000 {
		t.Errorf("expected max_tokens 2000, got %v", doc.Meta.MaxTokens)
	}
	if !strings.HasPrefix(doc.Body, "Review the following {language} code:") {
		t.Errorf("expected body to start after frontmatter, got %q", doc.Body)
	}
}

func TestParseFrontmatter_NoFrontmatter(t *testing.T) {
	content := "Just a plain prompt about {topic} with no metadata."

	doc, err := ParseFrontmatter(content)
	if err != nil {
		t.Fatalf("ParseFrontmatter failed: %v", err)
	}

	if doc.Body != content {
		t.Errorf("expected body unchanged, got %q", doc.Body)
	}
	if doc.Meta.Title != "" || doc.Meta.Temperature != nil {
		t.Errorf("expected zero metadata, got %+v", doc.Meta)
	}
}

func TestParseFrontmatter_RulerInBodyIsNotFrontmatter(t *testing.T) {
	content := "Section one\n---\nSection two\n---\nSection three"

	doc, err := ParseFrontmatter(content)
	if err != nil {
		t.Fatalf("ParseFrontmatter failed: %v", err)
	}

	if doc.Body != content {
		t.Errorf("expected horizontal rules left in body, got %q", doc.Body)
	}
}

func TestParseFrontmatter_EmptyFrontmatter(t *testing.T) {
	content := "---\n---\nThe whole prompt body."

	doc, err := ParseFrontmatter(content)
	if err != nil {
		t.Fatalf("ParseFrontmatter failed: %v", err)
	}

	if doc.Body != "The whole prompt body." {
		t.Errorf("expected body after empty frontmatter, got %q", doc.Body)
	}
	if doc.Meta.Title != "" {
		t.Errorf("expected empty metadata, got %+v", doc.Meta)
	}
}

func TestParseFrontmatter_InvalidYAML(t *testing.T) {
	content := "---\ntitle: [unclosed\n---\nbody"

	_, err := ParseFrontmatter(content)
	if err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestParseFrontmatter_RangeValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		valid   bool
	}{
		{
			name:    "temperature too high",
			content: "---\ntemperature: 2.5\n---\nbody",
			valid:   false,
		},
		{
			name:    "temperature negative",
			content: "---\ntemperature: -0.1\n---\nbody",
			valid:   false,
		},
		{
			name:    "temperature at upper bound",
			content: "---\ntemperature: 2.0\n---\nbody",
			valid:   true,
		},
		{
			name:    "max_tokens zero",
			content: "---\nmax_tokens: 0\n---\nbody",
			valid:   false,
		},
		{
			name:    "max_tokens over cap",
			content: "---\nmax_tokens: 5000\n---\nbody",
			valid:   false,
		},
		{
			name:    "max_tokens at cap",
			content: "---\nmax_tokens: 4000\n---\nbody",
			valid:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrontmatter(tt.content)
			if tt.valid && err != nil {
				t.Errorf("expected valid frontmatter, got error: %v", err)
			}
			if !tt.valid {
				if err == nil {
					t.Fatal("expected range error, got nil")
				}
				if !errors.IsValidationError(err) {
					t.Errorf("expected validation error, got: %v", err)
				}
			}
		})
	}
}
