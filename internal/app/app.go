// Package app initializes and holds the long-lived services of the scraping
// service, acting as the composition root.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/brandpulse/scout/internal/api"
	"github.com/brandpulse/scout/internal/browser"
	"github.com/brandpulse/scout/internal/clock/system"
	"github.com/brandpulse/scout/internal/config"
	"github.com/brandpulse/scout/internal/extract"
	"github.com/brandpulse/scout/internal/id/uuid"
	"github.com/brandpulse/scout/internal/notify"
	"github.com/brandpulse/scout/internal/queue"
	"github.com/brandpulse/scout/internal/scheduler"
	"github.com/brandpulse/scout/internal/scrape"
	"github.com/brandpulse/scout/internal/storage/gcs"
	"github.com/brandpulse/scout/internal/storage/local"
	"github.com/brandpulse/scout/internal/storage/memory"
	"github.com/brandpulse/scout/internal/storage/postgres"
	"github.com/brandpulse/scout/internal/worker"
)

// App owns every long-lived service and their shutdown order.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	store     scrape.JobStore
	snapshots scrape.SnapshotStore
	notifier  scrape.Notifier
	targets   scrape.TargetSource
	queue     *queue.Queue
	pool      *worker.Pool
	submitter *worker.Submitter
	registry  *scheduler.Registry
	browser   *browser.Manager
	server    *http.Server

	closers []func()
}

// New builds the service graph from configuration. It fails fast when any
// backing service cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}
	clock := system.New()
	ids := uuid.New()

	if err := a.initStore(ctx); err != nil {
		return nil, err
	}
	if err := a.initSnapshots(ctx); err != nil {
		return nil, err
	}
	if err := a.initNotifier(ctx); err != nil {
		return nil, err
	}

	mgr, err := browser.NewManager(browser.Config{
		MaxParallel: cfg.Browser.MaxParallel,
		UserAgent:   cfg.Browser.UserAgent,
		NavTimeout:  cfg.NavTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("init browser manager: %w", err)
	}
	a.browser = mgr
	a.closers = append(a.closers, mgr.Close)

	fetcher := browser.NewLightweight(browser.LightweightConfig{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})

	strategies := map[scrape.JobType]scrape.Strategy{
		scrape.JobTypeWebsite:         extract.NewWebsiteStrategy(a.snapshots, clock, logger),
		scrape.JobTypeContentAnalysis: extract.NewArticleStrategy(a.snapshots, clock, logger),
		scrape.JobTypeAssetDiscovery:  extract.NewAssetsStrategy(fetcher, clock),
		scrape.JobTypeTrendMonitoring: extract.NewTrendsStrategy(extract.TrendsConfig{
			SourceURL: cfg.Scheduler.TrendSourceURL,
		}, fetcher, clock),
	}

	a.queue = queue.New(cfg.Queue.Ceiling)
	a.pool = worker.New(a.queue, a.store, a.notifier, mgr, strategies, clock, worker.Config{
		Workers:     cfg.Worker.Workers,
		BaseBackoff: cfg.BaseBackoff(),
	}, logger)
	a.submitter = worker.NewSubmitter(a.store, a.queue, a.notifier, ids, clock, worker.SubmitterConfig{
		MaxAttempts: cfg.Worker.MaxAttempts,
	}, logger)

	a.registry = scheduler.NewRegistry(logger)
	standing := scheduler.NewStandingTasks(a.submitter, a.targets, a.store, a.queue, clock, scheduler.StandingConfig{
		RetentionDays:   cfg.Scheduler.RetentionDays,
		QueueCleanAge:   cfg.QueueCleanAge(),
		TrendLookback:   time.Duration(cfg.Scheduler.TrendLookbackDays) * 24 * time.Hour,
		TrendKeywordMax: cfg.Scheduler.TrendKeywordMax,
		DailySchedule:   cfg.Scheduler.DailySchedule,
		WeeklySchedule:  cfg.Scheduler.WeeklySchedule,
		TrendsSchedule:  cfg.Scheduler.TrendsSchedule,
		CleanupSchedule: cfg.Scheduler.CleanupSchedule,
	}, logger)
	if err := standing.Register(a.registry); err != nil {
		return nil, fmt.Errorf("register standing tasks: %w", err)
	}

	srv := api.NewServer(api.Deps{
		Store:        a.store,
		Submitter:    a.submitter,
		Registry:     a.registry,
		Queue:        a.queue,
		Clock:        clock,
		SchedulerCtx: ctx,
	}, cfg, logger)
	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	switch a.cfg.Store.Provider {
	case "postgres":
		a.logger.Info("using postgres job store")
		store, err := postgres.NewJobStore(ctx, postgres.JobStoreConfig{
			DSN:      a.cfg.Store.DSN,
			MaxConns: int32(a.cfg.Store.MaxConns),
			MinConns: int32(a.cfg.Store.MinConns),
		})
		if err != nil {
			return fmt.Errorf("init job store: %w", err)
		}
		targets, err := postgres.NewTargetSourceFromStore(store)
		if err != nil {
			return fmt.Errorf("init target source: %w", err)
		}
		a.store = store
		a.targets = targets
		a.closers = append(a.closers, store.Close)
	default:
		a.logger.Info("using in-memory job store")
		a.store = memory.NewJobStore()
		a.targets = memory.NewTargetSource()
	}
	return nil
}

func (a *App) initSnapshots(ctx context.Context) error {
	switch a.cfg.Snapshot.Provider {
	case "local":
		a.logger.Info("using local snapshot store", zap.String("dir", a.cfg.Snapshot.BaseDir))
		snapshots, err := local.New(local.Config{BaseDir: a.cfg.Snapshot.BaseDir})
		if err != nil {
			return fmt.Errorf("init snapshot store: %w", err)
		}
		a.snapshots = snapshots
	case "gcs":
		a.logger.Info("using GCS snapshot store", zap.String("bucket", a.cfg.Snapshot.Bucket))
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		snapshots, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Snapshot.Bucket})
		if err != nil {
			return fmt.Errorf("init snapshot store: %w", err)
		}
		a.snapshots = snapshots
		a.closers = append(a.closers, func() {
			if cerr := client.Close(); cerr != nil {
				a.logger.Warn("closing gcs client", zap.Error(cerr))
			}
		})
	default:
		a.logger.Info("using in-memory snapshot store")
		a.snapshots = memory.NewSnapshotStore()
	}
	return nil
}

func (a *App) initNotifier(ctx context.Context) error {
	clock := system.New()
	switch a.cfg.Notify.Provider {
	case "pubsub":
		a.logger.Info("using pubsub notifier",
			zap.String("project", a.cfg.Notify.ProjectID),
			zap.String("topic", a.cfg.Notify.Topic),
		)
		client, err := pubsub.NewClient(ctx, a.cfg.Notify.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub client: %w", err)
		}
		notifier, err := notify.NewPubSubNotifier(client.Topic(a.cfg.Notify.Topic), clock)
		if err != nil {
			return fmt.Errorf("init notifier: %w", err)
		}
		a.notifier = notifier
		a.closers = append(a.closers, func() {
			notifier.Stop()
			if cerr := client.Close(); cerr != nil {
				a.logger.Warn("closing pubsub client", zap.Error(cerr))
			}
		})
	default:
		a.notifier = notify.NewLogNotifier(a.logger, clock)
	}
	return nil
}

// Submitter exposes the admission path for embedding callers.
func (a *App) Submitter() *worker.Submitter {
	return a.submitter
}

// Targets returns the configured target source.
func (a *App) Targets() scrape.TargetSource {
	return a.targets
}

// Run starts the queue, workers, scheduler and HTTP server, then blocks
// until ctx is cancelled. Jobs left running by a previous process are
// re-queued before the workers start.
func (a *App) Run(ctx context.Context) error {
	a.queue.Start(ctx)
	if err := a.reconcile(ctx); err != nil {
		a.logger.Warn("startup reconciliation failed", zap.Error(err))
	}
	a.registry.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	poolDone := make(chan struct{})
	go func() {
		a.pool.Run(ctx)
		close(poolDone)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown failed", zap.Error(err))
	}
	a.registry.Stop()
	<-poolDone
	return runErr
}

// reconcile re-queues jobs a previous process left in the running state.
func (a *App) reconcile(ctx context.Context) error {
	orphans, err := a.store.Query(ctx, scrape.JobFilter{
		Statuses: []scrape.JobStatus{scrape.JobStatusRunning},
	}, scrape.OrderCreatedAsc, 0)
	if err != nil {
		return fmt.Errorf("query orphaned jobs: %w", err)
	}
	for _, job := range orphans {
		status := scrape.JobStatusPending
		progress := 0
		if _, err := a.store.Update(ctx, job.ID, scrape.JobUpdate{
			Status:   &status,
			Progress: &progress,
		}); err != nil {
			a.logger.Warn("requeue orphaned job failed", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		a.queue.Enqueue(job.ID, queue.Options{Priority: job.Priority})
		a.logger.Info("requeued orphaned job", zap.String("job_id", job.ID))
	}
	if len(orphans) > 0 {
		a.logger.Info("startup reconciliation complete", zap.Int("requeued", len(orphans)))
	}
	return nil
}

// Close releases backing services in reverse initialization order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if err := a.logger.Sync(); err != nil {
		// Best effort; stderr may be a closed pipe at this point.
		_ = err
	}
}
