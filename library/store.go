// Package library persists saved prompts in SQLite and imports prompt
// files with YAML frontmatter from a watched directory.
package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/promptforge/errors"
)

const (
	// DefaultCategory is assigned when a prompt is saved without one.
	DefaultCategory = "General"

	// DefaultSearchLimit applies when a search query has no limit.
	DefaultSearchLimit = 20

	// MaxSearchLimit caps the number of rows a single search returns.
	MaxSearchLimit = 100

	// DefaultListLimit applies when List is called with limit <= 0.
	DefaultListLimit = 100
)

// SavedPrompt is a prompt stored in the library.
type SavedPrompt struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Content     string    `json:"content" db:"content"`
	Description string    `json:"description" db:"description"`
	Category    string    `json:"category" db:"category"`
	Tags        []string  `json:"tags" db:"tags"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
	UsageCount  int       `json:"usage_count" db:"usage_count"`
}

// Query filters a library search. Text matches title, content and
// description with substring semantics; Category must match exactly;
// Tags match when the stored prompt shares at least one tag.
type Query struct {
	Text     string
	Category string
	Tags     []string
	Limit    int
}

// Store handles saved prompt persistence.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewStore creates a prompt store backed by db.
func NewStore(db *sql.DB, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{db: db, logger: logger}
}

const promptColumns = `id, title, content, description, category, tags, created_at, updated_at, usage_count`

// Save inserts a prompt and returns the stored row, re-read from the
// database so timestamps and defaults reflect what was actually written.
func (s *Store) Save(ctx context.Context, p *SavedPrompt) (*SavedPrompt, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, errors.NewValidationError("prompt title is required")
	}
	if strings.TrimSpace(p.Content) == "" {
		return nil, errors.NewValidationError("prompt content is required")
	}

	category := p.Category
	if category == "" {
		category = DefaultCategory
	}

	tagsJSON, err := encodeTags(p.Tags)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_prompts (title, content, description, category, tags)
		VALUES (?, ?, ?, ?, ?)`,
		p.Title, p.Content, p.Description, category, tagsJSON)
	if err != nil {
		return nil, errors.NewStorageError(err, "saving prompt")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.NewStorageError(err, "reading saved prompt id")
	}

	s.logger.Debugw("Prompt saved",
		"id", id,
		"title", p.Title,
		"category", category)

	return s.Get(ctx, id)
}

// Get returns the prompt with the given id, or a not-found error.
func (s *Store) Get(ctx context.Context, id int64) (*SavedPrompt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+promptColumns+` FROM saved_prompts WHERE id = ?`, id)

	p, err := scanPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("prompt %d not found", id)
	}
	if err != nil {
		return nil, errors.NewStorageError(err, "fetching prompt")
	}
	return p, nil
}

// FindByTitle returns the most recently updated prompt with the given
// title, or a not-found error. Titles are not unique; imports use this
// to decide between insert and update.
func (s *Store) FindByTitle(ctx context.Context, title string) (*SavedPrompt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+promptColumns+` FROM saved_prompts WHERE title = ?
		 ORDER BY updated_at DESC, id DESC LIMIT 1`, title)

	p, err := scanPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("prompt titled %q not found", title)
	}
	if err != nil {
		return nil, errors.NewStorageError(err, "fetching prompt by title")
	}
	return p, nil
}

// Search returns prompts matching the query, most recently updated
// first. The tag filter is applied after the SQL page is fetched, so a
// tagged search may return fewer rows than the limit even when more
// matches exist.
func (s *Store) Search(ctx context.Context, q Query) ([]*SavedPrompt, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	var conditions []string
	var args []interface{}

	if q.Text != "" {
		conditions = append(conditions, "(title LIKE ? OR content LIKE ? OR description LIKE ?)")
		pattern := "%" + q.Text + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if q.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, q.Category)
	}

	where := "1=1"
	if len(conditions) > 0 {
		where = strings.Join(conditions, " AND ")
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+promptColumns+`
		FROM saved_prompts
		WHERE `+where+`
		ORDER BY updated_at DESC, id DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, errors.NewStorageError(err, "searching prompts")
	}
	defer rows.Close()

	var results []*SavedPrompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			s.logger.Debugw("Skipping malformed prompt row", "error", err)
			continue
		}
		if len(q.Tags) > 0 && !anyTagMatch(q.Tags, p.Tags) {
			continue
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError(err, "searching prompts")
	}

	return results, nil
}

// List returns prompts ordered by most recent update.
func (s *Store) List(ctx context.Context, limit int) ([]*SavedPrompt, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+promptColumns+`
		FROM saved_prompts
		ORDER BY updated_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.NewStorageError(err, "listing prompts")
	}
	defer rows.Close()

	var results []*SavedPrompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			s.logger.Debugw("Skipping malformed prompt row", "error", err)
			continue
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError(err, "listing prompts")
	}

	return results, nil
}

// Delete removes the prompt with the given id. Returns false when no
// such prompt existed.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_prompts WHERE id = ?`, id)
	if err != nil {
		return false, errors.NewStorageError(err, "deleting prompt")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewStorageError(err, "deleting prompt")
	}

	if affected > 0 {
		s.logger.Debugw("Prompt deleted", "id", id)
	}
	return affected > 0, nil
}

// IncrementUsage bumps the usage counter for a prompt. The updated_at
// timestamp is left alone so usage does not reorder search results.
func (s *Store) IncrementUsage(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE saved_prompts SET usage_count = usage_count + 1 WHERE id = ?`, id)
	if err != nil {
		return errors.NewStorageError(err, "incrementing prompt usage")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.NewStorageError(err, "incrementing prompt usage")
	}
	if affected == 0 {
		return errors.NewNotFoundError("prompt %d not found", id)
	}
	return nil
}

// Categories returns the distinct categories in use, sorted.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM saved_prompts ORDER BY category`)
	if err != nil {
		return nil, errors.NewStorageError(err, "listing categories")
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, errors.NewStorageError(err, "listing categories")
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError(err, "listing categories")
	}

	return categories, nil
}

// update overwrites an existing prompt's content and metadata, bumping
// updated_at. Used by the file importer's upsert path.
func (s *Store) update(ctx context.Context, id int64, p *SavedPrompt) (*SavedPrompt, error) {
	category := p.Category
	if category == "" {
		category = DefaultCategory
	}

	tagsJSON, err := encodeTags(p.Tags)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE saved_prompts
		SET content = ?, description = ?, category = ?, tags = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		p.Content, p.Description, category, tagsJSON, id)
	if err != nil {
		return nil, errors.NewStorageError(err, "updating prompt")
	}

	s.logger.Debugw("Prompt updated", "id", id, "title", p.Title)

	return s.Get(ctx, id)
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPrompt(row scanner) (*SavedPrompt, error) {
	var p SavedPrompt
	var tagsJSON string

	err := row.Scan(&p.ID, &p.Title, &p.Content, &p.Description, &p.Category,
		&tagsJSON, &p.CreatedAt, &p.UpdatedAt, &p.UsageCount)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tagsJSON), &p.Tags); err != nil {
		return nil, errors.Wrap(err, "parsing prompt tags")
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}

	return &p, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", errors.Wrap(err, "encoding prompt tags")
	}
	return string(b), nil
}

// anyTagMatch reports whether any wanted tag appears in the prompt's
// tags. Matching is exact and case-sensitive.
func anyTagMatch(want, have []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}
