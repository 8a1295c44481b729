package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/coursechat/coursechat/internal/course"
)

// AddCourse upserts a course's catalog entry. The title embedding indexes
// the title itself for fuzzy course-name resolution.
func (s *Store) AddCourse(ctx context.Context, c *course.Course) error {
	if c == nil || c.Title == "" {
		return fmt.Errorf("course title is required")
	}

	lessons, err := json.Marshal(c.Lessons)
	if err != nil {
		return fmt.Errorf("marshaling lessons: %w", err)
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, c.Title)
	if err != nil {
		return fmt.Errorf("embedding course title: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO courses (title, link, instructor, lessons, title_embedding)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (title) DO UPDATE
		 SET link = EXCLUDED.link,
		     instructor = EXCLUDED.instructor,
		     lessons = EXCLUDED.lessons,
		     title_embedding = EXCLUDED.title_embedding`,
		c.Title, c.Link, c.Instructor, lessons, vec,
	)
	if err != nil {
		return backendErr("upserting course", err)
	}

	s.logger.Debug("course upserted", "title", c.Title, "lessons", len(c.Lessons))
	return nil
}

// AddChunks embeds and upserts content chunks keyed by
// (course_title, chunk_index). The inserts run in one transaction so a
// partially indexed course never becomes visible to retrieval.
func (s *Store) AddChunks(ctx context.Context, chunks []course.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	// Embed outside the transaction, no DB connection held during the
	// slow external calls.
	vecs := make([]any, len(chunks))
	for i, ch := range chunks {
		embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
		vec, err := s.embed(embedCtx, ch.Content)
		cancel()
		if err != nil {
			return fmt.Errorf("embedding chunk %d of %q: %w", ch.Index, ch.CourseTitle, err)
		}
		vecs[i] = vec
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return backendErr("beginning transaction", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	for i, ch := range chunks {
		_, err := tx.Exec(ctx,
			`INSERT INTO course_chunks (course_title, chunk_index, lesson_number, content, embedding)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (course_title, chunk_index) DO UPDATE
			 SET lesson_number = EXCLUDED.lesson_number,
			     content = EXCLUDED.content,
			     embedding = EXCLUDED.embedding`,
			ch.CourseTitle, ch.Index, ch.LessonNumber, ch.Content, vecs[i],
		)
		if err != nil {
			return backendErr("upserting chunk", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return backendErr("committing chunks", err)
	}

	s.logger.Debug("chunks stored", "count", len(chunks), "course", chunks[0].CourseTitle)
	return nil
}

// ExistingCourseTitles returns the set of catalog titles, used by
// ingestion to skip already-indexed documents.
func (s *Store) ExistingCourseTitles(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT title FROM courses`)
	if err != nil {
		return nil, backendErr("listing course titles", err)
	}
	defer rows.Close()

	titles := make(map[string]bool)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, backendErr("scanning course title", err)
		}
		titles[t] = true
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr("reading course titles", err)
	}
	return titles, nil
}

// CourseCount returns the number of courses in the catalog.
func (s *Store) CourseCount(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM courses`).Scan(&n); err != nil {
		return 0, backendErr("counting courses", err)
	}
	return n, nil
}

// CourseLink returns the course-level link, "" when the course is unknown
// or has none.
func (s *Store) CourseLink(ctx context.Context, title string) (string, error) {
	var link string
	err := s.pool.QueryRow(ctx, `SELECT link FROM courses WHERE title = $1`, title).Scan(&link)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return "", nil
	case err != nil:
		return "", backendErr("fetching course link", err)
	}
	return link, nil
}

// LessonLink returns the lesson-level link, "" when unknown.
func (s *Store) LessonLink(ctx context.Context, title string, lesson int) (string, error) {
	c, err := s.courseByTitle(ctx, title)
	if err != nil || c == nil {
		return "", err
	}
	for _, l := range c.Lessons {
		if l.Number == lesson {
			return l.Link, nil
		}
	}
	return "", nil
}

// CourseOutline returns the full catalog entry for a course title, nil
// when the course is unknown.
func (s *Store) CourseOutline(ctx context.Context, title string) (*course.Course, error) {
	return s.courseByTitle(ctx, title)
}

func (s *Store) courseByTitle(ctx context.Context, title string) (*course.Course, error) {
	var (
		c       course.Course
		lessons []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT title, link, instructor, lessons FROM courses WHERE title = $1`,
		title,
	).Scan(&c.Title, &c.Link, &c.Instructor, &lessons)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, backendErr("fetching course", err)
	}
	if err := json.Unmarshal(lessons, &c.Lessons); err != nil {
		return nil, fmt.Errorf("unmarshaling lessons for %q: %w", title, err)
	}
	return &c, nil
}

// CoursesMetadata returns every catalog entry ordered by title.
func (s *Store) CoursesMetadata(ctx context.Context) ([]course.Course, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT title, link, instructor, lessons FROM courses ORDER BY title`)
	if err != nil {
		return nil, backendErr("listing courses", err)
	}
	defer rows.Close()

	var courses []course.Course
	for rows.Next() {
		var (
			c       course.Course
			lessons []byte
		)
		if err := rows.Scan(&c.Title, &c.Link, &c.Instructor, &lessons); err != nil {
			return nil, backendErr("scanning course row", err)
		}
		if err := json.Unmarshal(lessons, &c.Lessons); err != nil {
			return nil, fmt.Errorf("unmarshaling lessons for %q: %w", c.Title, err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr("reading course rows", err)
	}
	return courses, nil
}

// DeleteCourse removes a course and, via cascade, its chunks.
func (s *Store) DeleteCourse(ctx context.Context, title string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM courses WHERE title = $1`, title)
	if err != nil {
		return backendErr("deleting course", err)
	}
	return nil
}

// ClearCourses empties the catalog and all chunks, used by full reindexing.
func (s *Store) ClearCourses(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM courses`); err != nil {
		return backendErr("clearing courses", err)
	}
	return nil
}
