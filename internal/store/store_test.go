package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

func TestBuildSearchConfig(t *testing.T) {
	tests := []struct {
		name       string
		opts       []SearchOption
		wantCourse string
		wantLesson *int
		wantLimit  int
	}{
		{
			name:      "defaults",
			opts:      nil,
			wantLimit: DefaultLimit,
		},
		{
			name:       "course and lesson filters",
			opts:       []SearchOption{WithCourse("Intro"), WithLesson(2)},
			wantCourse: "Intro",
			wantLesson: intPtr(2),
			wantLimit:  DefaultLimit,
		},
		{
			name:      "explicit limit",
			opts:      []SearchOption{WithLimit(3)},
			wantLimit: 3,
		},
		{
			name:      "zero limit falls back",
			opts:      []SearchOption{WithLimit(0)},
			wantLimit: DefaultLimit,
		},
		{
			name:      "limit capped",
			opts:      []SearchOption{WithLimit(500)},
			wantLimit: MaxLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := buildSearchConfig(tt.opts)
			if cfg.course != tt.wantCourse {
				t.Errorf("course = %q, want %q", cfg.course, tt.wantCourse)
			}
			if (cfg.lesson == nil) != (tt.wantLesson == nil) {
				t.Fatalf("lesson = %v, want %v", cfg.lesson, tt.wantLesson)
			}
			if cfg.lesson != nil && *cfg.lesson != *tt.wantLesson {
				t.Errorf("lesson = %d, want %d", *cfg.lesson, *tt.wantLesson)
			}
			if cfg.limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", cfg.limit, tt.wantLimit)
			}
		})
	}
}

func TestTruncateQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello", "hello"},
		{"strips nul bytes", "he\x00llo", "hello"},
		{"truncates oversized", strings.Repeat("a", MaxQueryLen+10), strings.Repeat("a", MaxQueryLen)},
		// MaxQueryLen is not a multiple of three, so a naive byte slice
		// would split the last three-byte rune.
		{"truncates on rune boundary", strings.Repeat("世", MaxQueryLen/3+1), strings.Repeat("世", MaxQueryLen/3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateQuery(tt.input)
			if got != tt.want {
				t.Errorf("truncateQuery length %d, want length %d", len(got), len(tt.want))
			}
			if !utf8.ValidString(got) {
				t.Error("truncateQuery produced invalid UTF-8")
			}
		})
	}
}

func TestBackendErr(t *testing.T) {
	cause := errors.New("connection refused")
	err := backendErr("searching chunks", cause)

	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("backendErr does not wrap ErrUnavailable: %v", err)
	}
	if !strings.Contains(err.Error(), "searching chunks") {
		t.Errorf("backendErr lost operation context: %v", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("backendErr lost cause: %v", err)
	}
}

func TestSearchEmbedderFailureIsUnavailable(t *testing.T) {
	g := genkit.Init(context.Background())
	emb := genkit.DefineEmbedder(g, "mock/failing-embedder", &ai.EmbedderOptions{
		Label:      "Failing Embedder",
		Dimensions: int(VectorDimension),
	}, func(context.Context, *ai.EmbedRequest) (*ai.EmbedResponse, error) {
		return nil, errors.New("deadline exceeded")
	})

	// Search embeds before touching the pool, so none is needed here.
	s := &Store{embedder: emb, logger: slog.Default()}
	_, err := s.Search(context.Background(), "concurrency")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Search error = %v, want ErrUnavailable", err)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, nil, nil); err == nil {
		t.Error("New(nil, nil, nil) should fail")
	}
}

func intPtr(n int) *int { return &n }
