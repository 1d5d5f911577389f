package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brandpulse/scout/internal/config"
	"github.com/brandpulse/scout/internal/scrape"
	"github.com/brandpulse/scout/internal/storage/memory"
)

func newMemoryApp(t *testing.T) *App {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestNewWiresMemoryProviders(t *testing.T) {
	a := newMemoryApp(t)

	assert.IsType(t, &memory.JobStore{}, a.store)
	assert.IsType(t, &memory.SnapshotStore{}, a.snapshots)
	assert.IsType(t, &memory.TargetSource{}, a.targets)
	assert.NotNil(t, a.queue)
	assert.NotNil(t, a.submitter)
	assert.NotNil(t, a.server)

	tasks := a.registry.ListTasks()
	require.Len(t, tasks, 4)
	names := make([]string, 0, len(tasks))
	for _, task := range tasks {
		names = append(names, task.Name)
	}
	assert.Equal(t, []string{"cleanup", "daily_competitors", "hourly_trends", "weekly_deep"}, names)
}

func TestReconcileRequeuesRunningJobs(t *testing.T) {
	a := newMemoryApp(t)
	ctx := context.Background()

	_, err := a.store.Create(ctx, scrape.Job{
		ID:       "orphan",
		Type:     scrape.JobTypeWebsite,
		Status:   scrape.JobStatusRunning,
		Priority: 5,
	})
	require.NoError(t, err)
	_, err = a.store.Create(ctx, scrape.Job{
		ID:     "done",
		Type:   scrape.JobTypeWebsite,
		Status: scrape.JobStatusCompleted,
	})
	require.NoError(t, err)

	require.NoError(t, a.reconcile(ctx))

	job, err := a.store.Get(ctx, "orphan")
	require.NoError(t, err)
	assert.Equal(t, scrape.JobStatusPending, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Equal(t, 1, a.queue.Stats().PendingCount)

	untouched, err := a.store.Get(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, scrape.JobStatusCompleted, untouched.Status)
}

func TestNewRejectsBadPostgresDSN(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Store.Provider = "postgres"
	cfg.Store.DSN = "://not-a-dsn"

	_, err = New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}
