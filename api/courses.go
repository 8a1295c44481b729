package api

import (
	"net/http"

	"github.com/coursechat/coursechat/internal/log"
)

// CoursesHandler serves corpus analytics.
type CoursesHandler struct {
	svc    Service
	logger log.Logger
}

// NewCoursesHandler creates a courses handler.
func NewCoursesHandler(svc Service, logger log.Logger) *CoursesHandler {
	return &CoursesHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers course routes on the given mux.
func (h *CoursesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/courses", h.list)
}

func (h *CoursesHandler) list(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Analytics(r.Context())
	if err != nil {
		h.logger.Error("course analytics failed", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "failed to load course analytics")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, stats)
}
