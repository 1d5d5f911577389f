package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandpulse/scout/internal/scrape"
)

func newMockedStore(t *testing.T) (*JobStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewJobStoreWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func jobRowColumns() []string {
	return []string{
		"id", "type", "target_url", "owner_id", "competitor_id", "priority", "attempts",
		"max_attempts", "status", "progress", "result", "error_message", "options",
		"created_at", "started_at", "completed_at",
	}
}

func TestCreateInsertsRow(t *testing.T) {
	t.Parallel()
	store, mock := newMockedStore(t)

	now := time.Unix(1700000000, 0).UTC()
	job := scrape.Job{
		ID:           "job-1",
		Type:         scrape.JobTypeWebsite,
		TargetURL:    "https://a.example",
		OwnerID:      "u1",
		CompetitorID: "c1",
		Priority:     5,
		MaxAttempts:  3,
		Status:       scrape.JobStatusPending,
		Options:      map[string]string{"wait_selector": "#app"},
		CreatedAt:    now,
	}

	mock.ExpectExec("INSERT INTO scrape_jobs").
		WithArgs(
			job.ID,
			"website",
			job.TargetURL,
			job.OwnerID,
			job.CompetitorID,
			job.Priority,
			0,
			3,
			"pending",
			0,
			[]byte(nil),
			"",
			[]byte(`{"wait_selector":"#app"}`),
			now,
			(*time.Time)(nil),
			(*time.Time)(nil),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	created, err := store.Create(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, job.ID, created.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRequiresID(t *testing.T) {
	t.Parallel()
	store, _ := newMockedStore(t)
	_, err := store.Create(context.Background(), scrape.Job{})
	require.Error(t, err)
}

func TestGetScansRow(t *testing.T) {
	t.Parallel()
	store, mock := newMockedStore(t)

	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("SELECT (.+) FROM scrape_jobs WHERE id").
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows(jobRowColumns()).AddRow(
			"job-1", "website", "https://a.example", "u1", "c1", 5, 1,
			3, "completed", 100, []byte(`{"url":"https://a.example"}`), "", []byte(`{}`),
			now, &now, &now,
		))

	job, err := store.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, scrape.JobTypeWebsite, job.Type)
	assert.Equal(t, scrape.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.JSONEq(t, `{"url":"https://a.example"}`, string(job.Result))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUnknownJob(t *testing.T) {
	t.Parallel()
	store, mock := newMockedStore(t)

	mock.ExpectQuery("SELECT (.+) FROM scrape_jobs WHERE id").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(jobRowColumns()))

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, scrape.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBuildsDynamicSet(t *testing.T) {
	t.Parallel()
	store, mock := newMockedStore(t)

	now := time.Unix(1700000000, 0).UTC()
	status := scrape.JobStatusRunning
	progress := 20

	mock.ExpectQuery("UPDATE scrape_jobs SET status = \\$1, progress = \\$2 WHERE id = \\$3 RETURNING").
		WithArgs("running", 20, "job-1").
		WillReturnRows(pgxmock.NewRows(jobRowColumns()).AddRow(
			"job-1", "website", "https://a.example", "u1", "c1", 5, 1,
			3, "running", 20, []byte(nil), "", []byte(`{}`),
			now, &now, (*time.Time)(nil),
		))

	job, err := store.Update(context.Background(), "job-1", scrape.JobUpdate{
		Status:   &status,
		Progress: &progress,
	})
	require.NoError(t, err)
	assert.Equal(t, scrape.JobStatusRunning, job.Status)
	assert.Equal(t, 20, job.Progress)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryAppliesFilters(t *testing.T) {
	t.Parallel()
	store, mock := newMockedStore(t)

	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("SELECT (.+) FROM scrape_jobs WHERE status = ANY\\(\\$1\\) AND competitor_id = \\$2 ORDER BY created_at ASC LIMIT \\$3").
		WithArgs([]string{"pending", "running"}, "c1", 1).
		WillReturnRows(pgxmock.NewRows(jobRowColumns()).AddRow(
			"job-1", "website", "https://a.example", "u1", "c1", 5, 0,
			3, "pending", 0, []byte(nil), "", []byte(`{}`),
			now, (*time.Time)(nil), (*time.Time)(nil),
		))

	jobs, err := store.Query(context.Background(), scrape.JobFilter{
		Statuses:     []scrape.JobStatus{scrape.JobStatusPending, scrape.JobStatusRunning},
		CompetitorID: "c1",
	}, scrape.OrderCreatedAsc, 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-1", jobs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteOlderThanReportsCount(t *testing.T) {
	t.Parallel()
	store, mock := newMockedStore(t)

	cutoff := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec("DELETE FROM scrape_jobs WHERE status = \\$1 AND completed_at < \\$2").
		WithArgs("completed", cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := store.DeleteOlderThan(context.Background(), scrape.JobStatusCompleted, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsAggregates(t *testing.T) {
	t.Parallel()
	store, mock := newMockedStore(t)

	now := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	dayStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT(.|\n)+FROM scrape_jobs").
		WithArgs(dayStart).
		WillReturnRows(pgxmock.NewRows([]string{"active", "pending", "completed_today"}).
			AddRow(2, 5, 7))

	stats, err := store.Stats(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, scrape.StoreStats{ActiveCount: 2, PendingCount: 5, CompletedTodayCount: 7}, stats)
	require.NoError(t, mock.ExpectationsWereMet())
}
