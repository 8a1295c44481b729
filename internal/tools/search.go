package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/coursechat/coursechat/internal/log"
	"github.com/coursechat/coursechat/internal/store"
)

// SearchToolName is the invocation name the model uses for content search.
const SearchToolName = "search_course_content"

const searchToolDescription = "Search course materials with smart course name matching and lesson filtering"

// SearchInput is the model-facing parameter schema for content search.
type SearchInput struct {
	Query        string `json:"query" jsonschema:"What to search for in the course content"`
	CourseName   string `json:"course_name,omitempty" jsonschema:"Course title (partial matches work)"`
	LessonNumber *int   `json:"lesson_number,omitempty" jsonschema:"Specific lesson number to search within"`
}

// SearchStore is what SearchTool needs from the vector store.
type SearchStore interface {
	Search(ctx context.Context, query string, opts ...store.SearchOption) (store.SearchResults, error)
	CourseLink(ctx context.Context, title string) (string, error)
	LessonLink(ctx context.Context, title string, lesson int) (string, error)
}

// SearchTool retrieves course chunks for a query, with optional course
// and lesson refinement. Each hit is formatted under its citation header
// so the model can ground its answer and the raw citations travel back as
// sources.
type SearchTool struct {
	store      SearchStore
	maxResults int
	logger     log.Logger
}

// NewSearchTool creates the content-search tool. maxResults <= 0 falls
// back to the store default.
func NewSearchTool(s SearchStore, maxResults int, logger log.Logger) *SearchTool {
	if logger == nil {
		logger = log.NewNop()
	}
	return &SearchTool{store: s, maxResults: maxResults, logger: logger}
}

// Name implements Tool.
func (t *SearchTool) Name() string { return SearchToolName }

// Definition implements Tool.
func (t *SearchTool) Definition() Definition {
	schema, err := jsonschema.For[SearchInput](nil)
	if err != nil {
		// SearchInput is a fixed struct; a schema failure is a bug.
		panic(fmt.Sprintf("BUG: schema for %s: %v", SearchToolName, err))
	}
	return Definition{
		Name:        SearchToolName,
		Description: searchToolDescription,
		InputSchema: schema,
	}
}

// DefineGenkit registers the typed Genkit tool so model requests can
// reference it by name. Generation runs with tool requests returned to
// the caller, so this handler only serves direct Genkit execution paths.
func (t *SearchTool) DefineGenkit(g *genkit.Genkit) {
	genkit.DefineTool(g, SearchToolName, searchToolDescription,
		func(tctx *ai.ToolContext, in SearchInput) (string, error) {
			inv, err := t.search(tctx.Context, in)
			if err != nil {
				return "", err
			}
			return inv.Output, nil
		})
}

// Execute implements Tool against a model-issued argument map.
func (t *SearchTool) Execute(ctx context.Context, args map[string]any) (*Invocation, error) {
	lesson, err := intArg(args, "lesson_number")
	if err != nil {
		return nil, err
	}
	return t.search(ctx, SearchInput{
		Query:        stringArg(args, "query"),
		CourseName:   stringArg(args, "course_name"),
		LessonNumber: lesson,
	})
}

func (t *SearchTool) search(ctx context.Context, in SearchInput) (*Invocation, error) {
	opts := []store.SearchOption{}
	if t.maxResults > 0 {
		opts = append(opts, store.WithLimit(t.maxResults))
	}
	if in.CourseName != "" {
		opts = append(opts, store.WithCourse(in.CourseName))
	}
	if in.LessonNumber != nil {
		opts = append(opts, store.WithLesson(*in.LessonNumber))
	}

	res, err := t.store.Search(ctx, in.Query, opts...)
	if err != nil {
		return nil, fmt.Errorf("executing %s: %w", SearchToolName, err)
	}

	if res.UnmatchedCourse != "" {
		return &Invocation{
			Output: fmt.Sprintf("No course found matching '%s'", res.UnmatchedCourse),
		}, nil
	}
	if len(res.Hits) == 0 {
		return &Invocation{Output: noContentMessage(in)}, nil
	}

	t.logger.Debug("search tool hit", "query", in.Query, "results", len(res.Hits))
	return t.formatHits(ctx, res.Hits), nil
}

// noContentMessage names any filters that were applied, so a qualified
// miss reads "No relevant content found in course 'X' in lesson 2.".
func noContentMessage(in SearchInput) string {
	var b strings.Builder
	b.WriteString("No relevant content found")
	if in.CourseName != "" {
		fmt.Fprintf(&b, " in course '%s'", in.CourseName)
	}
	if in.LessonNumber != nil {
		fmt.Fprintf(&b, " in lesson %d", *in.LessonNumber)
	}
	b.WriteString(".")
	return b.String()
}

// formatHits renders each hit under a [Course - Lesson N] header and
// collects the citation tuple behind it. Link lookups are best-effort;
// a citation without a link is still a citation.
func (t *SearchTool) formatHits(ctx context.Context, hits []store.Hit) *Invocation {
	var (
		blocks  []string
		sources []Source
	)
	for _, h := range hits {
		src := Source{Course: h.CourseTitle, Lesson: h.LessonNumber}

		if h.LessonNumber != nil {
			link, err := t.store.LessonLink(ctx, h.CourseTitle, *h.LessonNumber)
			if err != nil {
				t.logger.Debug("lesson link lookup failed", "course", h.CourseTitle, "error", err)
			}
			src.Link = link
		}
		if src.Link == "" {
			link, err := t.store.CourseLink(ctx, h.CourseTitle)
			if err != nil {
				t.logger.Debug("course link lookup failed", "course", h.CourseTitle, "error", err)
			}
			src.Link = link
		}

		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", src.Display(), h.Content))
		sources = append(sources, src)
	}

	return &Invocation{
		Output:  strings.Join(blocks, "\n\n"),
		Sources: sources,
	}
}
