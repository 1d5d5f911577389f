package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandpulse/scout/internal/scrape"
)

func seedJob(t *testing.T, s *JobStore, job scrape.Job) scrape.Job {
	t.Helper()
	created, err := s.Create(context.Background(), job)
	require.NoError(t, err)
	return created
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	s := NewJobStore()
	seedJob(t, s, scrape.Job{ID: "a"})

	_, err := s.Create(context.Background(), scrape.Job{ID: "a"})
	require.Error(t, err)
}

func TestUpdateAppliesOnlyProvidedFields(t *testing.T) {
	s := NewJobStore()
	seedJob(t, s, scrape.Job{ID: "a", Status: scrape.JobStatusPending, Priority: 3})

	status := scrape.JobStatusRunning
	progress := 20
	updated, err := s.Update(context.Background(), "a", scrape.JobUpdate{
		Status:   &status,
		Progress: &progress,
	})
	require.NoError(t, err)
	assert.Equal(t, scrape.JobStatusRunning, updated.Status)
	assert.Equal(t, 20, updated.Progress)
	assert.Equal(t, 3, updated.Priority, "untouched fields persist")
}

func TestUpdateUnknownJob(t *testing.T) {
	s := NewJobStore()
	_, err := s.Update(context.Background(), "missing", scrape.JobUpdate{})
	assert.ErrorIs(t, err, scrape.ErrJobNotFound)
}

func TestQueryFiltersAndOrders(t *testing.T) {
	s := NewJobStore()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seedJob(t, s, scrape.Job{ID: "a", Type: scrape.JobTypeWebsite, Status: scrape.JobStatusPending, Priority: 5, CreatedAt: base})
	seedJob(t, s, scrape.Job{ID: "b", Type: scrape.JobTypeWebsite, Status: scrape.JobStatusRunning, Priority: 1, CreatedAt: base.Add(time.Minute)})
	seedJob(t, s, scrape.Job{ID: "c", Type: scrape.JobTypeAssetDiscovery, Status: scrape.JobStatusPending, Priority: 2, CreatedAt: base.Add(2 * time.Minute)})

	jobs, err := s.Query(context.Background(), scrape.JobFilter{Type: scrape.JobTypeWebsite}, scrape.OrderCreatedAsc, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].ID)

	jobs, err = s.Query(context.Background(), scrape.JobFilter{}, scrape.OrderPriority, 0)
	require.NoError(t, err)
	assert.Equal(t, "b", jobs[0].ID, "lowest priority value is most urgent")

	jobs, err = s.Query(context.Background(), scrape.JobFilter{
		Statuses: []scrape.JobStatus{scrape.JobStatusPending},
	}, scrape.OrderCreatedDesc, 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "c", jobs[0].ID)
}

func TestDeleteOlderThanSweepsByStatusAndAge(t *testing.T) {
	s := NewJobStore()
	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()
	seedJob(t, s, scrape.Job{ID: "old-done", Status: scrape.JobStatusCompleted, CompletedAt: &old})
	seedJob(t, s, scrape.Job{ID: "new-done", Status: scrape.JobStatusCompleted, CompletedAt: &recent})
	seedJob(t, s, scrape.Job{ID: "old-failed", Status: scrape.JobStatusFailed, CompletedAt: &old})

	removed, err := s.DeleteOlderThan(context.Background(), scrape.JobStatusCompleted, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, err = s.Get(context.Background(), "old-done")
	assert.ErrorIs(t, err, scrape.ErrJobNotFound)
	_, err = s.Get(context.Background(), "old-failed")
	assert.NoError(t, err, "other statuses are untouched")
}

func TestStatsCountsBuckets(t *testing.T) {
	s := NewJobStore()
	now := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	earlier := now.Add(-2 * time.Hour)
	yesterday := now.Add(-24 * time.Hour)

	seedJob(t, s, scrape.Job{ID: "p1", Status: scrape.JobStatusPending})
	seedJob(t, s, scrape.Job{ID: "r1", Status: scrape.JobStatusRunning})
	seedJob(t, s, scrape.Job{ID: "r2", Status: scrape.JobStatusRunning})
	seedJob(t, s, scrape.Job{ID: "d1", Status: scrape.JobStatusCompleted, CompletedAt: &earlier})
	seedJob(t, s, scrape.Job{ID: "d2", Status: scrape.JobStatusCompleted, CompletedAt: &yesterday})

	stats, err := s.Stats(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ActiveCount)
	assert.Equal(t, 1, stats.PendingCount)
	assert.Equal(t, 1, stats.CompletedTodayCount, "yesterday's completion is outside the window")
}
