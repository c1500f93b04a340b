// Package prompt provides placeholder substitution and local metrics for
// prompt text. Templates reference variables using {key} syntax, where key
// is an identifier ([a-zA-Z_][a-zA-Z0-9_]*). Substitution happens in a
// single pass over the template: substituted values are never re-scanned,
// so a value containing {other} stays literal. Placeholders with no
// matching variable are left untouched.
package prompt

import (
	"regexp"
	"strings"

	"github.com/teranos/promptforge/errors"
)

// Template represents a parsed prompt template with {key} placeholders
type Template struct {
	raw      string
	segments []segment
}

// segment represents either a literal string or a placeholder
type segment struct {
	literal bool
	content string // for literal: the text; for placeholder: the key
}

// placeholderPattern matches {key} where key is an identifier
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Parse creates a Template from a raw template string
func Parse(raw string) (*Template, error) {
	if raw == "" {
		return nil, errors.New("empty template")
	}

	t := &Template{raw: raw}

	// Find all placeholder positions
	matches := placeholderPattern.FindAllStringSubmatchIndex(raw, -1)

	if len(matches) == 0 {
		// No placeholders - entire string is literal
		t.segments = []segment{{literal: true, content: raw}}
		return t, nil
	}

	var segments []segment
	lastEnd := 0

	for _, match := range matches {
		// match[0]:match[1] is the full match {key}
		// match[2]:match[3] is the captured group (key)
		start, end := match[0], match[1]
		keyStart, keyEnd := match[2], match[3]

		// Add literal segment before this placeholder
		if start > lastEnd {
			segments = append(segments, segment{
				literal: true,
				content: raw[lastEnd:start],
			})
		}

		segments = append(segments, segment{
			literal: false,
			content: raw[keyStart:keyEnd],
		})

		lastEnd = end
	}

	// Add trailing literal if any
	if lastEnd < len(raw) {
		segments = append(segments, segment{
			literal: true,
			content: raw[lastEnd:],
		})
	}

	t.segments = segments
	return t, nil
}

// Execute substitutes variables into the template. Placeholders without a
// matching variable are emitted verbatim, braces included.
func (t *Template) Execute(vars map[string]string) string {
	var result strings.Builder
	result.Grow(len(t.raw) * 2) // Pre-allocate with some slack

	for _, seg := range t.segments {
		if seg.literal {
			result.WriteString(seg.content)
			continue
		}

		if value, ok := vars[seg.content]; ok {
			result.WriteString(value)
		} else {
			result.WriteString("{" + seg.content + "}")
		}
	}

	return result.String()
}

// Placeholders returns the unique placeholder keys in first-appearance order
func (t *Template) Placeholders() []string {
	var keys []string
	seen := make(map[string]bool)
	for _, seg := range t.segments {
		if !seg.literal && !seen[seg.content] {
			seen[seg.content] = true
			keys = append(keys, seg.content)
		}
	}
	return keys
}

// Raw returns the original template string
func (t *Template) Raw() string {
	return t.raw
}

// Render substitutes variables into a template string in a single pass.
// An empty template renders to the empty string.
func Render(template string, vars map[string]string) string {
	t, err := Parse(template)
	if err != nil {
		return template
	}
	return t.Execute(vars)
}

// Placeholders returns the unique placeholder keys of a template string
// in first-appearance order, without requiring a parsed Template.
func Placeholders(template string) []string {
	t, err := Parse(template)
	if err != nil {
		return nil
	}
	return t.Placeholders()
}

// Validate reports which template placeholders have no matching variable,
// in first-appearance order. Missing placeholders are not an error, they
// render verbatim; callers use the list to warn before executing.
func Validate(template string, vars map[string]string) ([]string, error) {
	t, err := Parse(template)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, key := range t.Placeholders() {
		if _, ok := vars[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing, nil
}
