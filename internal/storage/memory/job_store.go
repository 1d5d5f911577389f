// Package memory provides in-memory persistence for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/brandpulse/scout/internal/scrape"
)

// JobStore implements scrape.JobStore with a mutex-guarded map.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]scrape.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]scrape.Job),
	}
}

// Create stores a new job.
func (s *JobStore) Create(_ context.Context, job scrape.Job) (scrape.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return scrape.Job{}, fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job
	return job, nil
}

// Update applies the non-nil fields of update to a stored job.
func (s *JobStore) Update(_ context.Context, jobID string, update scrape.JobUpdate) (scrape.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scrape.Job{}, scrape.ErrJobNotFound
	}
	if update.Status != nil {
		job.Status = *update.Status
	}
	if update.Progress != nil {
		job.Progress = *update.Progress
	}
	if update.Attempts != nil {
		job.Attempts = *update.Attempts
	}
	if update.Result != nil {
		job.Result = append([]byte(nil), update.Result...)
	}
	if update.ErrorMessage != nil {
		job.ErrorMessage = *update.ErrorMessage
	}
	if update.StartedAt != nil {
		job.StartedAt = update.StartedAt
	}
	if update.CompletedAt != nil {
		job.CompletedAt = update.CompletedAt
	}
	s.jobs[jobID] = job
	return job, nil
}

// Get fetches a job by ID.
func (s *JobStore) Get(_ context.Context, jobID string) (scrape.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scrape.Job{}, scrape.ErrJobNotFound
	}
	return job, nil
}

// Query returns jobs matching the filter in the requested order.
func (s *JobStore) Query(_ context.Context, filter scrape.JobFilter, order scrape.JobOrder, limit int) ([]scrape.Job, error) {
	s.mu.RLock()
	var matched []scrape.Job
	for _, job := range s.jobs {
		if matchesFilter(job, filter) {
			matched = append(matched, job)
		}
	}
	s.mu.RUnlock()

	switch order {
	case scrape.OrderCreatedDesc:
		sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	case scrape.OrderPriority:
		sort.Slice(matched, func(i, j int) bool {
			if matched[i].Priority != matched[j].Priority {
				return matched[i].Priority < matched[j].Priority
			}
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		})
	default:
		sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	}

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// DeleteOlderThan removes jobs in the given status completed before cutoff.
func (s *JobStore) DeleteOlderThan(_ context.Context, status scrape.JobStatus, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, job := range s.jobs {
		if job.Status == status && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed, nil
}

// Stats summarizes current store contents.
func (s *JobStore) Stats(_ context.Context, now time.Time) (scrape.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var stats scrape.StoreStats
	for _, job := range s.jobs {
		switch job.Status {
		case scrape.JobStatusRunning:
			stats.ActiveCount++
		case scrape.JobStatusPending:
			stats.PendingCount++
		case scrape.JobStatusCompleted:
			if job.CompletedAt != nil && !job.CompletedAt.Before(dayStart) {
				stats.CompletedTodayCount++
			}
		}
	}
	return stats, nil
}

func matchesFilter(job scrape.Job, filter scrape.JobFilter) bool {
	if filter.Type != "" && job.Type != filter.Type {
		return false
	}
	if filter.OwnerID != "" && job.OwnerID != filter.OwnerID {
		return false
	}
	if filter.CompetitorID != "" && job.CompetitorID != filter.CompetitorID {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if job.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !filter.CompletedAfter.IsZero() {
		if job.CompletedAt == nil || job.CompletedAt.Before(filter.CompletedAfter) {
			return false
		}
	}
	return true
}
