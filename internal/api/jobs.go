package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/levlstudio/levl-core/internal/job"
)

// defaultJobListLimit bounds GET /jobs responses when no limit is given.
const defaultJobListLimit = 50

// handleListJobs returns recent jobs, newest first.
//
// Query parameters:
//   - limit: maximum number of jobs (default 50)
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultJobListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	jobs := s.tracker.List(r.Context(), limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// handleGetJob returns a single job by ID.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	j, err := s.tracker.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			writeNotFound(w, "job not found: "+id)
			return
		}
		s.logger.Error("failed to load job", "id", id, "error", err)
		writeInternalError(w, "failed to load job")
		return
	}

	writeJSON(w, http.StatusOK, j)
}
