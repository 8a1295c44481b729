package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/coursechat/coursechat/internal/generator"
	"github.com/coursechat/coursechat/internal/log"
	"github.com/coursechat/coursechat/internal/rag"
	"github.com/coursechat/coursechat/internal/store"
	"github.com/coursechat/coursechat/internal/tools"
)

// MaxRequestBody bounds the query request body.
const MaxRequestBody = 1 << 20 // 1MB

// Service is the orchestrator surface the HTTP handlers call.
type Service interface {
	Answer(ctx context.Context, query, sessionID string) (*rag.Answer, error)
	Analytics(ctx context.Context) (*rag.Analytics, error)
	ClearSession(id string)
}

// QueryHandler serves POST /api/query and session deletion.
type QueryHandler struct {
	svc    Service
	logger log.Logger
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(svc Service, logger log.Logger) *QueryHandler {
	return &QueryHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers query routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.query)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.clearSession)
}

// QueryRequest is the POST /api/query body.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// SourcePayload is one cited source in a query response.
type SourcePayload struct {
	Course string `json:"course"`
	Lesson *int   `json:"lesson,omitempty"`
	Link   string `json:"link,omitempty"`
}

// QueryResponse is the POST /api/query reply.
type QueryResponse struct {
	Answer    string          `json:"answer"`
	Sources   []SourcePayload `json:"sources"`
	SessionID string          `json:"session_id"`
}

func (h *QueryHandler) query(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBody)

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "query must not be empty")
		return
	}

	ans, err := h.svc.Answer(r.Context(), req.Query, req.SessionID)
	if err != nil {
		h.logger.Error("query failed", "error", err)
		switch {
		case errors.Is(err, store.ErrUnavailable):
			writeError(w, h.logger, http.StatusServiceUnavailable, "store_unavailable", "document store is unavailable")
		case errors.Is(err, generator.ErrGenerationFailed):
			writeError(w, h.logger, http.StatusBadGateway, "generation_failed", "the model could not produce an answer")
		default:
			writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "failed to answer query")
		}
		return
	}

	writeJSON(w, h.logger, http.StatusOK, QueryResponse{
		Answer:    ans.Text,
		Sources:   sourcePayloads(ans.Sources),
		SessionID: ans.SessionID,
	})
}

func (h *QueryHandler) clearSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "session id is required")
		return
	}
	h.svc.ClearSession(id)
	w.WriteHeader(http.StatusNoContent)
}

// sourcePayloads never returns nil so the JSON field encodes as [].
func sourcePayloads(sources []tools.Source) []SourcePayload {
	out := make([]SourcePayload, 0, len(sources))
	for _, s := range sources {
		out = append(out, SourcePayload{Course: s.Course, Lesson: s.Lesson, Link: s.Link})
	}
	return out
}
