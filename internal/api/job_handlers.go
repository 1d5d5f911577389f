package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brandpulse/scout/internal/scrape"
	"github.com/brandpulse/scout/internal/worker"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type submitJobRequest struct {
	Type         string            `json:"type"`
	TargetURL    string            `json:"target_url"`
	OwnerID      string            `json:"owner_id"`
	CompetitorID string            `json:"competitor_id"`
	Priority     *int              `json:"priority"`
	MaxAttempts  int               `json:"max_attempts"`
	Options      map[string]string `json:"options"`
	DelayMs      int               `json:"delay_ms"`
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	job, err := s.submitter.Submit(r.Context(), worker.SubmitRequest{
		Type:         scrape.JobType(req.Type),
		TargetURL:    req.TargetURL,
		OwnerID:      req.OwnerID,
		CompetitorID: req.CompetitorID,
		Priority:     req.Priority,
		MaxAttempts:  req.MaxAttempts,
		Options:      req.Options,
		Delay:        time.Duration(req.DelayMs) * time.Millisecond,
	})
	if err != nil {
		var cfgErr *scrape.ConfigError
		if errors.As(err, &cfgErr) {
			s.writeError(w, http.StatusBadRequest, cfgErr.Reason)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"job": job})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.store.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, scrape.ErrJobNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	filter, order, limit, err := parseListQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobs, err := s.store.Query(r.Context(), filter, order, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.submitter.Cancel(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, scrape.ErrJobNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		var cfgErr *scrape.ConfigError
		if errors.As(err, &cfgErr) {
			s.writeError(w, http.StatusConflict, cfgErr.Reason)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func parseListQuery(r *http.Request) (scrape.JobFilter, scrape.JobOrder, int, error) {
	q := r.URL.Query()
	filter := scrape.JobFilter{
		OwnerID:      q.Get("owner_id"),
		CompetitorID: q.Get("competitor_id"),
	}

	if raw := q.Get("type"); raw != "" {
		jt := scrape.JobType(raw)
		if !jt.Known() {
			return scrape.JobFilter{}, "", 0, errors.New("unknown job type " + strconv.Quote(raw))
		}
		filter.Type = jt
	}

	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := scrape.JobStatus(strings.TrimSpace(part))
			switch status {
			case scrape.JobStatusPending, scrape.JobStatusRunning,
				scrape.JobStatusCompleted, scrape.JobStatusFailed, scrape.JobStatusCancelled:
				filter.Statuses = append(filter.Statuses, status)
			default:
				return scrape.JobFilter{}, "", 0, errors.New("unknown status " + strconv.Quote(string(status)))
			}
		}
	}

	order := scrape.OrderCreatedDesc
	switch raw := q.Get("order"); raw {
	case "", string(scrape.OrderCreatedDesc):
	case string(scrape.OrderCreatedAsc):
		order = scrape.OrderCreatedAsc
	case string(scrape.OrderPriority):
		order = scrape.OrderPriority
	default:
		return scrape.JobFilter{}, "", 0, errors.New("unknown order " + strconv.Quote(raw))
	}

	limit := defaultListLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return scrape.JobFilter{}, "", 0, errors.New("limit must be a positive integer")
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		limit = n
	}

	return filter, order, limit, nil
}
