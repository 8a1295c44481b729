// Package store implements the course-materials vector store backed by
// PostgreSQL + pgvector.
//
// Two tables: courses (the catalog: title, link, instructor, lesson
// metadata, a title embedding for fuzzy name resolution) and course_chunks
// (content spans with their embeddings). The query pipeline only reads;
// ingestion writes through AddCourse/AddChunks.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// ErrUnavailable indicates a backing service, PostgreSQL or the
// embedding model, could not be reached or failed mid-query. "No
// results" is never this error.
var ErrUnavailable = errors.New("vector store unavailable")

const (
	// VectorDimension is the embedding width stored in pgvector columns.
	// gemini-embedding-001 is truncated to this via OutputDimensionality.
	VectorDimension int32 = 768

	// EmbedTimeout bounds a single embedding call.
	EmbedTimeout = 15 * time.Second

	// DefaultLimit is the search result cap when no limit option is given.
	DefaultLimit = 5

	// MaxLimit is the absolute search result cap.
	MaxLimit = 20

	// MaxQueryLen truncates oversized query strings before embedding.
	MaxQueryLen = 8 * 1024
)

// Store provides semantic search over course chunks and catalog lookups.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store.
func New(pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, embedder: embedder, logger: logger}, nil
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, backendErr("embedding text", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w: empty response", ErrUnavailable)
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// backendErr translates a backing-service failure, pgx or embedding,
// into the store taxonomy.
func backendErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

// truncateQuery bounds query length and rejects NUL bytes, which
// PostgreSQL text columns cannot carry. Truncation backs up to a rune
// boundary so the result stays valid UTF-8.
func truncateQuery(q string) string {
	q = strings.ToValidUTF8(q, "")
	q = strings.ReplaceAll(q, "\x00", "")
	if len(q) > MaxQueryLen {
		cut := MaxQueryLen
		for cut > 0 && !utf8.RuneStart(q[cut]) {
			cut--
		}
		q = q[:cut]
	}
	return q
}
