// Package rag orchestrates document ingestion, retrieval-augmented
// generation and session history behind a single entry point.
package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coursechat/coursechat/internal/course"
	"github.com/coursechat/coursechat/internal/generator"
	"github.com/coursechat/coursechat/internal/log"
	"github.com/coursechat/coursechat/internal/session"
	"github.com/coursechat/coursechat/internal/tools"
)

// Generator produces an answer for a query given prior conversation turns.
type Generator interface {
	Generate(ctx context.Context, query string, history []session.Turn) (*generator.Response, error)
}

// Catalog is the course storage surface the orchestrator ingests into
// and reports analytics from.
type Catalog interface {
	AddCourse(ctx context.Context, c *course.Course) error
	AddChunks(ctx context.Context, chunks []course.Chunk) error
	ExistingCourseTitles(ctx context.Context) (map[string]bool, error)
	CourseCount(ctx context.Context) (int, error)
	CoursesMetadata(ctx context.Context) ([]course.Course, error)
	ClearCourses(ctx context.Context) error
}

// Answer is the outcome of one query turn.
type Answer struct {
	Text      string
	Sources   []tools.Source
	SessionID string
}

// Analytics summarizes the indexed corpus.
type Analytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// System wires the catalog, tool manager, generator and session store.
type System struct {
	catalog  Catalog
	manager  *tools.Manager
	gen      Generator
	sessions *session.Store
	chunker  course.Chunker
	logger   log.Logger
}

// New creates a System. The chunker controls how ingested documents are
// split before embedding.
func New(catalog Catalog, manager *tools.Manager, gen Generator, sessions *session.Store, chunker course.Chunker, logger log.Logger) (*System, error) {
	if catalog == nil {
		return nil, errors.New("rag: catalog is nil")
	}
	if manager == nil {
		return nil, errors.New("rag: tool manager is nil")
	}
	if gen == nil {
		return nil, errors.New("rag: generator is nil")
	}
	if sessions == nil {
		return nil, errors.New("rag: session store is nil")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &System{
		catalog:  catalog,
		manager:  manager,
		gen:      gen,
		sessions: sessions,
		chunker:  chunker,
		logger:   logger,
	}, nil
}

// Answer runs one query turn. An empty sessionID starts a new session;
// the id actually used is returned so the caller can continue the
// conversation. Generation failures propagate unchanged and leave the
// session history untouched.
func (s *System) Answer(ctx context.Context, query, sessionID string) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("rag: query is empty")
	}
	if sessionID == "" {
		sessionID = s.sessions.Create()
	}

	history := s.sessions.History(sessionID)
	resp, err := s.gen.Generate(ctx, query, history)
	// The manager slot accumulates sources during dispatch; clear it
	// once per query whatever the outcome.
	s.manager.Reset()
	if err != nil {
		return nil, err
	}

	s.sessions.AddExchange(sessionID, query, resp.Answer)
	s.logger.Info("answered query",
		"session_id", sessionID,
		"used_tool", resp.UsedTool,
		"sources", len(resp.Sources))

	return &Answer{Text: resp.Answer, Sources: resp.Sources, SessionID: sessionID}, nil
}

// AddCourseDocument parses, chunks and indexes a single course file.
// It returns the parsed course and the number of chunks stored.
func (s *System) AddCourseDocument(ctx context.Context, path string) (*course.Course, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open course document: %w", err)
	}
	defer f.Close()

	crs, sections, err := course.ParseDocument(f, filepath.Base(path))
	if err != nil {
		return nil, 0, fmt.Errorf("parse %s: %w", path, err)
	}

	chunks := s.chunker.ChunkCourse(crs, sections)
	if err := s.catalog.AddCourse(ctx, crs); err != nil {
		return nil, 0, err
	}
	if err := s.catalog.AddChunks(ctx, chunks); err != nil {
		return nil, 0, err
	}

	s.logger.Info("indexed course document",
		"course", crs.Title,
		"lessons", len(crs.Lessons),
		"chunks", len(chunks))
	return crs, len(chunks), nil
}

// AddCourseFolder indexes every .txt file in dir, skipping courses whose
// title is already in the catalog. When clearFirst is set the catalog is
// emptied before indexing. It returns the number of courses added and
// the total chunks stored; a file that fails to parse or store is logged
// and skipped.
func (s *System) AddCourseFolder(ctx context.Context, dir string, clearFirst bool) (int, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read course folder: %w", err)
	}

	if clearFirst {
		if err := s.catalog.ClearCourses(ctx); err != nil {
			return 0, 0, err
		}
		s.logger.Info("cleared existing course data", "dir", dir)
	}

	existing, err := s.catalog.ExistingCourseTitles(ctx)
	if err != nil {
		return 0, 0, err
	}

	var coursesAdded, chunksAdded int
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".txt") {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		crs, n, err := s.addIfNew(ctx, path, existing)
		if err != nil {
			s.logger.Warn("skipping course document", "path", path, "error", err)
			continue
		}
		if crs == nil {
			continue // already indexed
		}
		existing[crs.Title] = true
		coursesAdded++
		chunksAdded += n
	}
	return coursesAdded, chunksAdded, nil
}

// addIfNew indexes path unless its course title is already present.
// A nil course with nil error means the course was skipped.
func (s *System) addIfNew(ctx context.Context, path string, existing map[string]bool) (*course.Course, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	crs, sections, err := course.ParseDocument(f, filepath.Base(path))
	if err != nil {
		return nil, 0, err
	}
	if existing[crs.Title] {
		s.logger.Debug("course already indexed", "course", crs.Title)
		return nil, 0, nil
	}

	chunks := s.chunker.ChunkCourse(crs, sections)
	if err := s.catalog.AddCourse(ctx, crs); err != nil {
		return nil, 0, err
	}
	if err := s.catalog.AddChunks(ctx, chunks); err != nil {
		return nil, 0, err
	}
	return crs, len(chunks), nil
}

// Analytics reports the indexed course count and sorted titles.
func (s *System) Analytics(ctx context.Context) (*Analytics, error) {
	count, err := s.catalog.CourseCount(ctx)
	if err != nil {
		return nil, err
	}
	courses, err := s.catalog.CoursesMetadata(ctx)
	if err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(courses))
	for _, c := range courses {
		titles = append(titles, c.Title)
	}
	sort.Strings(titles)

	return &Analytics{TotalCourses: count, CourseTitles: titles}, nil
}

// ClearSession drops the conversation history for id.
func (s *System) ClearSession(id string) {
	s.sessions.Clear(id)
}
