package course

import (
	"strings"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "basic sentences",
			text: "First one. Second one! Third one?",
			want: []string{"First one.", "Second one!", "Third one?"},
		},
		{
			name: "collapses whitespace",
			text: "Spread   over\n\nlines. Next.",
			want: []string{"Spread over lines.", "Next."},
		},
		{
			name: "no terminator",
			text: "a fragment without punctuation",
			want: []string{"a fragment without punctuation"},
		},
		{
			name: "empty",
			text: "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d sentences %v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sentence[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunkerSplit(t *testing.T) {
	ck := Chunker{Size: 60, Overlap: 20}
	text := "Alpha is first. Bravo follows alpha. Charlie comes third. Delta ends the sequence."

	chunks := ck.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d: %v", len(chunks), chunks)
	}

	// No chunk exceeds the size bound unless it is a single sentence.
	for _, ch := range chunks {
		if len(ch) > ck.Size && strings.Count(ch, ".") > 1 {
			t.Errorf("multi-sentence chunk exceeds size: %q (%d chars)", ch, len(ch))
		}
	}

	// All sentences survive somewhere.
	joined := strings.Join(chunks, " ")
	for _, s := range []string{"Alpha is first.", "Delta ends the sequence."} {
		if !strings.Contains(joined, s) {
			t.Errorf("chunks lost sentence %q", s)
		}
	}
}

func TestChunkerSplitOverlap(t *testing.T) {
	ck := Chunker{Size: 40, Overlap: 15}
	text := "One short bit. Two short bit. Three short bit. Four short bit."

	chunks := ck.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %v", chunks)
	}

	// The 15-char overlap allowance fits one of these sentences, so the
	// first chunk's closing sentence reopens the second chunk.
	first, second := chunks[0], chunks[1]
	lastSentence := strings.TrimSpace(first[strings.LastIndex(strings.TrimSuffix(first, "."), ".")+1:])
	if !strings.Contains(second, lastSentence) {
		t.Errorf("no overlap: first ends %q, second = %q", lastSentence, second)
	}
}

func TestChunkerSplitOversizedSentence(t *testing.T) {
	ck := Chunker{Size: 10, Overlap: 0}
	text := "This single sentence is far longer than the chunk size allows."

	chunks := ck.Split(text)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 oversized chunk", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("chunk = %q, want full sentence", chunks[0])
	}
}

func TestChunkCourse(t *testing.T) {
	one, two := 1, 2
	crs := &Course{Title: "Intro to Go"}
	sections := []Section{
		{Lesson: nil, Text: "Welcome to the course. It covers Go."},
		{Lesson: &one, Text: "Variables store values. Types constrain them."},
		{Lesson: &two, Text: "Functions take parameters. They return results."},
	}

	chunks := Chunker{Size: 200, Overlap: 0}.ChunkCourse(crs, sections)
	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}

	if !strings.HasPrefix(chunks[0].Content, "Course Intro to Go content:") {
		t.Errorf("preamble chunk prefix missing: %q", chunks[0].Content)
	}
	if chunks[0].LessonNumber != nil {
		t.Errorf("preamble chunk lesson = %v, want nil", *chunks[0].LessonNumber)
	}

	if !strings.HasPrefix(chunks[1].Content, "Lesson 1 content:") {
		t.Errorf("lesson chunk prefix missing: %q", chunks[1].Content)
	}
	if chunks[1].LessonNumber == nil || *chunks[1].LessonNumber != 1 {
		t.Errorf("chunks[1].LessonNumber = %v, want 1", chunks[1].LessonNumber)
	}

	// Indices are course-wide and sequential.
	for i, ch := range chunks {
		if ch.Index != i {
			t.Errorf("chunks[%d].Index = %d", i, ch.Index)
		}
		if ch.CourseTitle != "Intro to Go" {
			t.Errorf("chunks[%d].CourseTitle = %q", i, ch.CourseTitle)
		}
	}
}
