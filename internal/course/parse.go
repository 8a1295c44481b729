package course

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Metadata header prefixes. Matching is case-insensitive.
const (
	titlePrefix      = "course title:"
	linkPrefix       = "course link:"
	instructorPrefix = "course instructor:"
	lessonLinkPrefix = "lesson link:"
)

// lessonHeading matches section markers like "Lesson 3: Pointers".
var lessonHeading = regexp.MustCompile(`(?i)^lesson\s+(\d+):\s*(.+)$`)

// ParseDocument reads a structured course document and splits it into
// course metadata plus per-lesson text sections. name is used as the
// course title when the document has no metadata header, so ingestion
// degrades instead of failing.
func ParseDocument(r io.Reader, name string) (*Course, []Section, error) {
	scanner := bufio.NewScanner(r)
	// Course text lines can exceed bufio's default 64KB token limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading document %q: %w", name, err)
	}

	c := &Course{Title: name}
	i := 0

	// Header: consume leading metadata lines in any order. Stop at the
	// first line that is neither metadata nor blank.
header:
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		lower := strings.ToLower(line)
		switch {
		case line == "":
		case strings.HasPrefix(lower, titlePrefix):
			if t := strings.TrimSpace(line[len(titlePrefix):]); t != "" {
				c.Title = t
			}
		case strings.HasPrefix(lower, linkPrefix):
			c.Link = strings.TrimSpace(line[len(linkPrefix):])
		case strings.HasPrefix(lower, instructorPrefix):
			c.Instructor = strings.TrimSpace(line[len(instructorPrefix):])
		default:
			break header
		}
	}

	var (
		sections []Section
		current  *Section
		buf      strings.Builder
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.TrimSpace(buf.String())
		if current.Text != "" {
			sections = append(sections, *current)
		}
		buf.Reset()
		current = nil
	}

	for ; i < len(lines); i++ {
		line := lines[i]

		if m := lessonHeading.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			flush()

			num, err := strconv.Atoi(m[1])
			if err != nil {
				// Unreachable with the \d+ pattern, keep the text instead.
				buf.WriteString(line + "\n")
				continue
			}
			lesson := Lesson{Number: num, Title: strings.TrimSpace(m[2])}

			// An immediately following "Lesson Link:" line belongs to
			// this lesson, not to its text.
			if i+1 < len(lines) {
				next := strings.TrimSpace(lines[i+1])
				if strings.HasPrefix(strings.ToLower(next), lessonLinkPrefix) {
					lesson.Link = strings.TrimSpace(next[len(lessonLinkPrefix):])
					i++
				}
			}

			c.Lessons = append(c.Lessons, lesson)
			n := num
			current = &Section{Lesson: &n}
			continue
		}

		if current == nil {
			current = &Section{}
		}
		buf.WriteString(line + "\n")
	}
	flush()

	return c, sections, nil
}
