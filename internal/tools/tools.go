// Package tools defines the capability set offered to the language model:
// the Tool contract, the concrete search and outline tools, and the
// Manager that registers tools and dispatches model-issued calls.
package tools

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/jsonschema-go/jsonschema"
)

var (
	// ErrDuplicateTool indicates a second registration under the same name.
	// Registration errors are programming errors, fatal at startup.
	ErrDuplicateTool = errors.New("duplicate tool name")

	// ErrUnknownTool indicates dispatch to an unregistered name.
	ErrUnknownTool = errors.New("unknown tool")
)

// Source is the citation tuple surfaced to the caller alongside an answer.
type Source struct {
	Course string `json:"course"`
	Lesson *int   `json:"lesson,omitempty"`
	Link   string `json:"link,omitempty"`
}

// Display returns the human-readable citation, "Course X - Lesson N".
func (s Source) Display() string {
	if s.Lesson != nil {
		return fmt.Sprintf("%s - Lesson %d", s.Course, *s.Lesson)
	}
	return s.Course
}

// Invocation is the transient result of one tool execution: the text
// handed back to the model plus the raw citations behind it.
type Invocation struct {
	Output  string
	Sources []Source
}

// Definition describes a tool to the language model.
type Definition struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Tool is a single capability the model can invoke. Execute receives the
// model-issued argument map and returns the formatted result.
type Tool interface {
	Name() string
	Definition() Definition
	Execute(ctx context.Context, args map[string]any) (*Invocation, error)
}

// stringArg reads an optional string argument.
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// intArg reads an optional integer argument. JSON numbers arrive as
// float64; reject fractional values rather than silently truncating.
func intArg(args map[string]any, key string) (*int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return nil, fmt.Errorf("argument %q must be an integer, got %v", key, n)
		}
		i := int(n)
		return &i, nil
	case int:
		i := n
		return &i, nil
	default:
		return nil, fmt.Errorf("argument %q must be a number, got %T", key, v)
	}
}
