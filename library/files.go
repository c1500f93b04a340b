package library

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/teranos/promptforge/errors"
)

// ImportFile loads a markdown prompt file into the library. The
// frontmatter title keys the upsert: an existing prompt with the same
// title is updated in place, anything else is inserted. Files without a
// title use the filename stem.
func (s *Store) ImportFile(ctx context.Context, path string) (*SavedPrompt, error) {
	if !strings.EqualFold(filepath.Ext(path), ".md") {
		return nil, errors.NewValidationError("prompt files must be markdown, got %q", filepath.Base(path))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading prompt file")
	}

	doc, err := ParseFrontmatter(string(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", filepath.Base(path))
	}
	if doc.Body == "" {
		return nil, errors.NewValidationError("prompt file %s has no content", filepath.Base(path))
	}

	title := doc.Meta.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	candidate := &SavedPrompt{
		Title:       title,
		Content:     doc.Body,
		Description: doc.Meta.Description,
		Category:    doc.Meta.Category,
		Tags:        doc.Meta.Tags,
	}

	existing, err := s.FindByTitle(ctx, title)
	if errors.IsNotFoundError(err) {
		return s.Save(ctx, candidate)
	}
	if err != nil {
		return nil, err
	}

	return s.update(ctx, existing.ID, candidate)
}

// ImportDir imports every markdown file directly inside dir, returning
// how many were stored. Individual file failures are logged and skipped
// so one bad file does not block the rest.
func (s *Store) ImportDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errors.Wrap(err, "reading prompt directory")
	}

	imported := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".md") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		p, err := s.ImportFile(ctx, path)
		if err != nil {
			s.logger.Warnw("Prompt import failed",
				"file", entry.Name(),
				"error", err)
			continue
		}

		s.logger.Infow("Prompt imported",
			"file", entry.Name(),
			"id", p.ID,
			"title", p.Title)
		imported++
	}

	return imported, nil
}
