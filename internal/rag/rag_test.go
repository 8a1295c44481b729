package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/coursechat/coursechat/internal/course"
	"github.com/coursechat/coursechat/internal/generator"
	"github.com/coursechat/coursechat/internal/log"
	"github.com/coursechat/coursechat/internal/session"
	"github.com/coursechat/coursechat/internal/tools"
)

type fakeCatalog struct {
	courses   map[string]*course.Course
	chunks    []course.Chunk
	addErr    error
	failTitle string
	cleared   bool
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{courses: make(map[string]*course.Course)}
}

func (c *fakeCatalog) AddCourse(_ context.Context, crs *course.Course) error {
	if c.addErr != nil {
		return c.addErr
	}
	if c.failTitle != "" && crs.Title == c.failTitle {
		return errors.New("storage rejected course")
	}
	c.courses[crs.Title] = crs
	return nil
}

func (c *fakeCatalog) AddChunks(_ context.Context, chunks []course.Chunk) error {
	if c.addErr != nil {
		return c.addErr
	}
	c.chunks = append(c.chunks, chunks...)
	return nil
}

func (c *fakeCatalog) ExistingCourseTitles(_ context.Context) (map[string]bool, error) {
	titles := make(map[string]bool, len(c.courses))
	for title := range c.courses {
		titles[title] = true
	}
	return titles, nil
}

func (c *fakeCatalog) CourseCount(_ context.Context) (int, error) {
	return len(c.courses), nil
}

func (c *fakeCatalog) CoursesMetadata(_ context.Context) ([]course.Course, error) {
	out := make([]course.Course, 0, len(c.courses))
	for _, crs := range c.courses {
		out = append(out, *crs)
	}
	return out, nil
}

func (c *fakeCatalog) ClearCourses(_ context.Context) error {
	c.courses = make(map[string]*course.Course)
	c.chunks = nil
	c.cleared = true
	return nil
}

type fakeGenerator struct {
	resp       *generator.Response
	err        error
	gotQuery   string
	gotHistory []session.Turn
}

func (g *fakeGenerator) Generate(_ context.Context, query string, history []session.Turn) (*generator.Response, error) {
	g.gotQuery = query
	g.gotHistory = history
	if g.err != nil {
		return nil, g.err
	}
	return g.resp, nil
}

func newTestSystem(t *testing.T, catalog *fakeCatalog, gen *fakeGenerator) (*System, *session.Store, *tools.Manager) {
	t.Helper()
	sessions := session.NewStore(4)
	manager := tools.NewManager()
	sys, err := New(catalog, manager, gen, sessions, course.Chunker{Size: 800, Overlap: 100}, log.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return sys, sessions, manager
}

const courseDoc = `Course Title: Test Course
Course Link: https://example.com/course
Course Instructor: Jane Smith

Lesson 1: Introduction
Welcome to the course. This lesson covers the basics. We start slow.

Lesson 2: Advanced Topics
Now things get harder. Pay close attention here.
`

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestAnswerCreatesSession(t *testing.T) {
	gen := &fakeGenerator{resp: &generator.Response{Answer: "hello"}}
	sys, sessions, _ := newTestSystem(t, newFakeCatalog(), gen)

	ans, err := sys.Answer(context.Background(), "hi", "")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.SessionID == "" {
		t.Fatal("expected a generated session id")
	}
	if ans.Text != "hello" {
		t.Errorf("Text = %q", ans.Text)
	}

	history := sessions.History(ans.SessionID)
	want := []session.Turn{
		{Role: session.RoleUser, Content: "hi"},
		{Role: session.RoleAssistant, Content: "hello"},
	}
	if !reflect.DeepEqual(history, want) {
		t.Errorf("history = %v, want %v", history, want)
	}
}

func TestAnswerThreadsHistory(t *testing.T) {
	gen := &fakeGenerator{resp: &generator.Response{Answer: "second answer"}}
	sys, sessions, _ := newTestSystem(t, newFakeCatalog(), gen)

	id := sessions.Create()
	sessions.AddExchange(id, "first question", "first answer")

	ans, err := sys.Answer(context.Background(), "follow-up", id)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.SessionID != id {
		t.Errorf("SessionID = %q, want %q", ans.SessionID, id)
	}
	if len(gen.gotHistory) != 2 {
		t.Fatalf("generator saw %d history turns, want 2", len(gen.gotHistory))
	}
	if gen.gotHistory[0].Content != "first question" {
		t.Errorf("history[0] = %q", gen.gotHistory[0].Content)
	}
	if gen.gotQuery != "follow-up" {
		t.Errorf("query = %q", gen.gotQuery)
	}
}

func TestAnswerReturnsSources(t *testing.T) {
	lesson := 1
	sources := []tools.Source{{Course: "Test Course", Lesson: &lesson, Link: "https://example.com/1"}}
	gen := &fakeGenerator{resp: &generator.Response{Answer: "found it", Sources: sources, UsedTool: true}}
	sys, _, _ := newTestSystem(t, newFakeCatalog(), gen)

	ans, err := sys.Answer(context.Background(), "where?", "")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !reflect.DeepEqual(ans.Sources, sources) {
		t.Errorf("Sources = %v, want %v", ans.Sources, sources)
	}
}

func TestAnswerResetsManagerSlot(t *testing.T) {
	gen := &fakeGenerator{resp: &generator.Response{Answer: "ok"}}
	sys, _, manager := newTestSystem(t, newFakeCatalog(), gen)

	// Simulate a stale slot from a previous dispatch.
	tool := &slotTool{}
	if err := manager.Register(tool); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := manager.Dispatch(context.Background(), tool.Name(), nil); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(manager.LastSources()) == 0 {
		t.Fatal("expected a populated slot before the query")
	}

	if _, err := sys.Answer(context.Background(), "q", ""); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got := manager.LastSources(); len(got) != 0 {
		t.Errorf("slot not reset: %v", got)
	}
}

type slotTool struct{}

func (slotTool) Name() string                { return "slot_tool" }
func (slotTool) Definition() tools.Definition { return tools.Definition{Name: "slot_tool"} }
func (slotTool) Execute(context.Context, map[string]any) (*tools.Invocation, error) {
	return &tools.Invocation{Output: "x", Sources: []tools.Source{{Course: "C"}}}, nil
}

func TestAnswerGenerationErrorLeavesHistory(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model down")}
	sys, sessions, _ := newTestSystem(t, newFakeCatalog(), gen)

	id := sessions.Create()
	if _, err := sys.Answer(context.Background(), "q", id); err == nil {
		t.Fatal("expected error")
	}
	if got := sessions.History(id); len(got) != 0 {
		t.Errorf("history = %v, want empty after a failed turn", got)
	}
}

func TestAnswerEmptyQuery(t *testing.T) {
	sys, _, _ := newTestSystem(t, newFakeCatalog(), &fakeGenerator{})
	if _, err := sys.Answer(context.Background(), "   ", ""); err == nil {
		t.Error("expected error for blank query")
	}
}

func TestAddCourseDocument(t *testing.T) {
	catalog := newFakeCatalog()
	sys, _, _ := newTestSystem(t, catalog, &fakeGenerator{})

	path := writeDoc(t, t.TempDir(), "course.txt", courseDoc)
	crs, chunks, err := sys.AddCourseDocument(context.Background(), path)
	if err != nil {
		t.Fatalf("AddCourseDocument: %v", err)
	}
	if crs.Title != "Test Course" {
		t.Errorf("Title = %q", crs.Title)
	}
	if chunks == 0 {
		t.Error("expected chunks to be stored")
	}
	if _, ok := catalog.courses["Test Course"]; !ok {
		t.Error("course missing from catalog")
	}
	if len(catalog.chunks) != chunks {
		t.Errorf("catalog has %d chunks, reported %d", len(catalog.chunks), chunks)
	}
}

func TestAddCourseDocumentMissingFile(t *testing.T) {
	sys, _, _ := newTestSystem(t, newFakeCatalog(), &fakeGenerator{})
	if _, _, err := sys.AddCourseDocument(context.Background(), "/does/not/exist.txt"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestAddCourseFolder(t *testing.T) {
	catalog := newFakeCatalog()
	sys, _, _ := newTestSystem(t, catalog, &fakeGenerator{})

	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", courseDoc)
	second := "Course Title: Second Course\n\nLesson 1: Only\nShort lesson body here.\n"
	writeDoc(t, dir, "b.txt", second)
	writeDoc(t, dir, "notes.md", "ignored")

	courses, chunks, err := sys.AddCourseFolder(context.Background(), dir, false)
	if err != nil {
		t.Fatalf("AddCourseFolder: %v", err)
	}
	if courses != 2 {
		t.Errorf("courses = %d, want 2", courses)
	}
	if chunks != len(catalog.chunks) {
		t.Errorf("chunks = %d, catalog has %d", chunks, len(catalog.chunks))
	}

	// Second run skips everything already indexed.
	courses, chunks, err = sys.AddCourseFolder(context.Background(), dir, false)
	if err != nil {
		t.Fatalf("AddCourseFolder second run: %v", err)
	}
	if courses != 0 || chunks != 0 {
		t.Errorf("second run added %d courses, %d chunks; want 0, 0", courses, chunks)
	}
}

func TestAddCourseFolderClearFirst(t *testing.T) {
	catalog := newFakeCatalog()
	sys, _, _ := newTestSystem(t, catalog, &fakeGenerator{})

	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", courseDoc)

	if _, _, err := sys.AddCourseFolder(context.Background(), dir, false); err != nil {
		t.Fatalf("first index: %v", err)
	}
	courses, _, err := sys.AddCourseFolder(context.Background(), dir, true)
	if err != nil {
		t.Fatalf("clearFirst run: %v", err)
	}
	if !catalog.cleared {
		t.Error("ClearCourses not called")
	}
	if courses != 1 {
		t.Errorf("courses = %d, want 1 after clearing", courses)
	}
}

func TestAddCourseFolderSkipsFailingFile(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.failTitle = "Broken Course"
	sys, _, _ := newTestSystem(t, catalog, &fakeGenerator{})

	dir := t.TempDir()
	writeDoc(t, dir, "good.txt", courseDoc)
	writeDoc(t, dir, "broken.txt", "Course Title: Broken Course\n\nLesson 1: Oops\nbody\n")

	courses, _, err := sys.AddCourseFolder(context.Background(), dir, false)
	if err != nil {
		t.Fatalf("AddCourseFolder: %v", err)
	}
	if courses != 1 {
		t.Errorf("courses = %d, want 1 (failing file skipped)", courses)
	}
	if _, ok := catalog.courses["Test Course"]; !ok {
		t.Error("good course missing from catalog")
	}
}

func TestAddCourseFolderMissingDir(t *testing.T) {
	sys, _, _ := newTestSystem(t, newFakeCatalog(), &fakeGenerator{})
	if _, _, err := sys.AddCourseFolder(context.Background(), "/no/such/dir", false); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestAnalytics(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.courses["Zeta"] = &course.Course{Title: "Zeta"}
	catalog.courses["Alpha"] = &course.Course{Title: "Alpha"}
	sys, _, _ := newTestSystem(t, catalog, &fakeGenerator{})

	got, err := sys.Analytics(context.Background())
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	if got.TotalCourses != 2 {
		t.Errorf("TotalCourses = %d, want 2", got.TotalCourses)
	}
	if !reflect.DeepEqual(got.CourseTitles, []string{"Alpha", "Zeta"}) {
		t.Errorf("CourseTitles = %v", got.CourseTitles)
	}
}

func TestClearSession(t *testing.T) {
	gen := &fakeGenerator{resp: &generator.Response{Answer: "ok"}}
	sys, sessions, _ := newTestSystem(t, newFakeCatalog(), gen)

	ans, err := sys.Answer(context.Background(), "q", "")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	sys.ClearSession(ans.SessionID)
	if got := sessions.History(ans.SessionID); len(got) != 0 {
		t.Errorf("history = %v, want empty", got)
	}
}
