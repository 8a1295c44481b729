package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Hit is one ranked retrieval result with its citation metadata.
type Hit struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	Score        float64 // cosine distance, lower is closer
}

// SearchResults is the outcome of one Search call. An empty Hits slice is
// a normal outcome, not an error. UnmatchedCourse is set when a course
// filter could not be resolved against the catalog, so callers can name
// the filter in their "nothing found" message.
type SearchResults struct {
	Hits            []Hit
	UnmatchedCourse string
}

// SearchOption configures search behavior using the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	course string
	lesson *int
	limit  int
}

// WithCourse restricts results to the course whose title fuzzy-matches name.
func WithCourse(name string) SearchOption {
	return func(c *searchConfig) {
		c.course = name
	}
}

// WithLesson restricts results to chunks of the given lesson number.
func WithLesson(n int) SearchOption {
	return func(c *searchConfig) {
		c.lesson = &n
	}
}

// WithLimit caps the number of results. Values outside (0, MaxLimit]
// fall back to the defaults.
func WithLimit(k int) SearchOption {
	return func(c *searchConfig) {
		c.limit = k
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{limit: DefaultLimit}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.limit <= 0 {
		cfg.limit = DefaultLimit
	}
	if cfg.limit > MaxLimit {
		cfg.limit = MaxLimit
	}
	return cfg
}

// Search embeds the query and returns the closest chunks, filters applied
// inside the SQL query so ranking never crosses the filter boundary.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) (SearchResults, error) {
	query = truncateQuery(query)
	if query == "" {
		return SearchResults{}, nil
	}
	cfg := buildSearchConfig(opts)

	// Resolve the course filter against the catalog first. A filter that
	// matches nothing is reported, not silently ignored.
	var courseTitle string
	if cfg.course != "" {
		resolved, err := s.ResolveCourseName(ctx, cfg.course)
		if err != nil {
			return SearchResults{}, err
		}
		if resolved == "" {
			return SearchResults{UnmatchedCourse: cfg.course}, nil
		}
		courseTitle = resolved
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, query)
	if err != nil {
		return SearchResults{}, fmt.Errorf("embedding query: %w", err)
	}

	sql := `SELECT content, course_title, lesson_number, embedding <=> $1 AS score
		FROM course_chunks`
	args := []any{vec}
	var where []string

	if courseTitle != "" {
		args = append(args, courseTitle)
		where = append(where, fmt.Sprintf("course_title = $%d", len(args)))
	}
	if cfg.lesson != nil {
		args = append(args, *cfg.lesson)
		where = append(where, fmt.Sprintf("lesson_number = $%d", len(args)))
	}
	for i, w := range where {
		if i == 0 {
			sql += " WHERE " + w
		} else {
			sql += " AND " + w
		}
	}
	args = append(args, cfg.limit)
	sql += fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return SearchResults{}, backendErr("searching chunks", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Content, &h.CourseTitle, &h.LessonNumber, &h.Score); err != nil {
			return SearchResults{}, backendErr("scanning chunk row", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return SearchResults{}, backendErr("reading chunk rows", err)
	}

	return SearchResults{Hits: hits}, nil
}

// ResolveCourseName maps a possibly partial or misspelled course name to
// an exact catalog title. Case-insensitive substring match wins first;
// otherwise the nearest title embedding is taken, so "MCP intro" can still
// land on "Introduction to MCP Servers". Returns "" when the catalog has
// no plausible match.
func (s *Store) ResolveCourseName(ctx context.Context, name string) (string, error) {
	name = truncateQuery(name)
	if name == "" {
		return "", nil
	}

	var title string
	err := s.pool.QueryRow(ctx,
		`SELECT title FROM courses WHERE title ILIKE '%' || $1 || '%' ORDER BY title LIMIT 1`,
		name,
	).Scan(&title)
	switch {
	case err == nil:
		return title, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return "", backendErr("resolving course name", err)
	}

	// Semantic fallback over title embeddings.
	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, name)
	if err != nil {
		return "", fmt.Errorf("embedding course name: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`SELECT title FROM courses
		 WHERE title_embedding IS NOT NULL
		 ORDER BY title_embedding <=> $1
		 LIMIT 1`,
		vec,
	).Scan(&title)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return "", nil
	case err != nil:
		return "", backendErr("resolving course name by embedding", err)
	}
	return title, nil
}
