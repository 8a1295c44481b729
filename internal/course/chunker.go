package course

import (
	"fmt"
	"regexp"
	"strings"
)

// sentenceBoundary splits on sentence-ending punctuation followed by
// whitespace. Abbreviations with trailing periods will over-split; that
// only shortens chunks, it never loses text.
var sentenceBoundary = regexp.MustCompile(`([.!?])\s+`)

// Chunker splits course text into overlapping, sentence-aligned chunks.
// Size bounds the chunk length in characters; Overlap is the approximate
// number of trailing characters repeated at the start of the next chunk
// so retrieval does not lose context at chunk boundaries.
type Chunker struct {
	Size    int
	Overlap int
}

// splitSentences normalizes whitespace and cuts text into sentences.
func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	// Keep the punctuation with its sentence by splitting after it.
	marked := sentenceBoundary.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")

	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

// Split chunks a single text. Every chunk holds at least one sentence,
// so a single sentence longer than Size becomes its own oversized chunk
// rather than being dropped.
func (c Chunker) Split(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(sentences) {
		end := start
		length := 0
		for end < len(sentences) {
			add := len(sentences[end])
			if end > start {
				add++ // joining space
			}
			if length+add > c.Size && end > start {
				break
			}
			length += add
			end++
		}

		chunks = append(chunks, strings.Join(sentences[start:end], " "))
		if end >= len(sentences) {
			break
		}

		// Walk back from the cut point until roughly Overlap characters
		// of trailing sentences are carried into the next chunk.
		next := end
		carried := 0
		for next > start+1 && carried+len(sentences[next-1]) <= c.Overlap {
			next--
			carried += len(sentences[next]) + 1
		}
		start = next
	}
	return chunks
}

// ChunkCourse converts parsed sections into store-ready chunks with
// course-wide position indices. The first chunk of each lesson carries a
// contextual prefix so its embedding stays anchored to the lesson even
// when the raw text is generic.
func (c Chunker) ChunkCourse(crs *Course, sections []Section) []Chunk {
	var chunks []Chunk
	index := 0
	for _, sec := range sections {
		for i, text := range c.Split(sec.Text) {
			if i == 0 {
				if sec.Lesson != nil {
					text = fmt.Sprintf("Lesson %d content: %s", *sec.Lesson, text)
				} else {
					text = fmt.Sprintf("Course %s content: %s", crs.Title, text)
				}
			}
			chunks = append(chunks, Chunk{
				Content:      text,
				CourseTitle:  crs.Title,
				LessonNumber: sec.Lesson,
				Index:        index,
			})
			index++
		}
	}
	return chunks
}
