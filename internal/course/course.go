// Package course defines the course-materials domain model and the
// structured document parser and chunker used by ingestion.
//
// A course document is a plain-text file with a metadata header followed
// by lesson sections:
//
//	Course Title: Introduction to Go
//	Course Link: https://example.com/go
//	Course Instructor: Jane Doe
//
//	Lesson 1: Getting Started
//	Lesson Link: https://example.com/go/lesson-1
//	<lesson text...>
//
// Malformed documents degrade to a single untitled section rather than
// failing ingestion.
package course

// Course is a named unit of content. The title is the unique identifier
// across the corpus. Immutable once ingested.
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons,omitempty"`
}

// Lesson is ordering metadata attached to chunks. Numbers are unique
// within a course.
type Lesson struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// Chunk is a bounded span of course text plus the traceability metadata
// needed to reconstruct a citation without a further lookup.
type Chunk struct {
	Content      string
	CourseTitle  string
	LessonNumber *int // nil for text outside any lesson section
	Index        int  // position within the course
}

// Section is a contiguous span of document text belonging to at most one
// lesson. Produced by ParseDocument, consumed by Chunker.
type Section struct {
	Lesson *int // nil for header/preamble text
	Text   string
}
