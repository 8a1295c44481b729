package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/coursechat/coursechat/internal/course"
)

// OutlineToolName is the invocation name for course outline lookups.
const OutlineToolName = "get_course_outline"

const outlineToolDescription = "Get the complete outline of a course: title, link, instructor, and the full lesson list"

// OutlineInput is the model-facing parameter schema for outline lookups.
type OutlineInput struct {
	CourseName string `json:"course_name" jsonschema:"Course title (partial matches work)"`
}

// OutlineStore is what OutlineTool needs from the catalog.
type OutlineStore interface {
	ResolveCourseName(ctx context.Context, name string) (string, error)
	CourseOutline(ctx context.Context, title string) (*course.Course, error)
}

// OutlineTool answers structural questions ("what does course X cover")
// from the catalog instead of content search.
type OutlineTool struct {
	store OutlineStore
}

// NewOutlineTool creates the course-outline tool.
func NewOutlineTool(s OutlineStore) *OutlineTool {
	return &OutlineTool{store: s}
}

// Name implements Tool.
func (t *OutlineTool) Name() string { return OutlineToolName }

// Definition implements Tool.
func (t *OutlineTool) Definition() Definition {
	schema, err := jsonschema.For[OutlineInput](nil)
	if err != nil {
		panic(fmt.Sprintf("BUG: schema for %s: %v", OutlineToolName, err))
	}
	return Definition{
		Name:        OutlineToolName,
		Description: outlineToolDescription,
		InputSchema: schema,
	}
}

// DefineGenkit registers the typed Genkit tool under OutlineToolName.
func (t *OutlineTool) DefineGenkit(g *genkit.Genkit) {
	genkit.DefineTool(g, OutlineToolName, outlineToolDescription,
		func(tctx *ai.ToolContext, in OutlineInput) (string, error) {
			inv, err := t.outline(tctx.Context, in)
			if err != nil {
				return "", err
			}
			return inv.Output, nil
		})
}

// Execute implements Tool against a model-issued argument map.
func (t *OutlineTool) Execute(ctx context.Context, args map[string]any) (*Invocation, error) {
	return t.outline(ctx, OutlineInput{CourseName: stringArg(args, "course_name")})
}

func (t *OutlineTool) outline(ctx context.Context, in OutlineInput) (*Invocation, error) {
	title, err := t.store.ResolveCourseName(ctx, in.CourseName)
	if err != nil {
		return nil, fmt.Errorf("executing %s: %w", OutlineToolName, err)
	}
	if title == "" {
		return &Invocation{
			Output: fmt.Sprintf("No course found matching '%s'", in.CourseName),
		}, nil
	}

	c, err := t.store.CourseOutline(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("executing %s: %w", OutlineToolName, err)
	}
	if c == nil {
		return &Invocation{
			Output: fmt.Sprintf("No course found matching '%s'", in.CourseName),
		}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s", c.Title)
	if c.Link != "" {
		fmt.Fprintf(&b, "\nCourse Link: %s", c.Link)
	}
	if c.Instructor != "" {
		fmt.Fprintf(&b, "\nInstructor: %s", c.Instructor)
	}
	fmt.Fprintf(&b, "\nLessons (%d):", len(c.Lessons))
	for _, l := range c.Lessons {
		fmt.Fprintf(&b, "\n  Lesson %d: %s", l.Number, l.Title)
	}

	return &Invocation{
		Output:  b.String(),
		Sources: []Source{{Course: c.Title, Link: c.Link}},
	}, nil
}
