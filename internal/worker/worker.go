// Package worker executes queued scrape jobs through their extraction
// strategies and drives the job state machine in the store.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brandpulse/scout/internal/metrics"
	"github.com/brandpulse/scout/internal/queue"
	"github.com/brandpulse/scout/internal/scrape"
)

// Progress milestones written to the store as a job advances.
const (
	progressQueued     = 0
	progressAcquired   = 10
	progressExtracting = 20
	progressExtracted  = 80
	progressPersisting = 90
	progressDone       = 100
)

// cancelPollInterval bounds how long a running job keeps executing after a
// cooperative cancellation request.
const cancelPollInterval = 100 * time.Millisecond

// Config controls Pool behavior.
type Config struct {
	Workers     int
	BaseBackoff time.Duration
}

// Pool consumes queue entries and executes the matching extraction strategy
// for each job.
type Pool struct {
	queue      *queue.Queue
	store      scrape.JobStore
	notifier   scrape.Notifier
	sessions   scrape.SessionManager
	strategies map[scrape.JobType]scrape.Strategy
	clock      scrape.Clock
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Pool. notifier may be nil.
func New(
	q *queue.Queue,
	store scrape.JobStore,
	notifier scrape.Notifier,
	sessions scrape.SessionManager,
	strategies map[scrape.JobType]scrape.Strategy,
	clock scrape.Clock,
	cfg Config,
	logger *zap.Logger,
) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	metrics.Init()
	return &Pool{
		queue:      q,
		store:      store,
		notifier:   notifier,
		sessions:   sessions,
		strategies: strategies,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run blocks, consuming queue entries until the context finishes.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.consume(ctx)
		}()
	}
	wg.Wait()
}

func (p *Pool) consume(ctx context.Context) {
	for {
		entry, err := p.queue.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("queue dispatch failed", zap.Error(err))
			continue
		}
		p.logger.Debug("dispatched job", zap.String("job_id", entry.JobID))
		p.processEntry(ctx, entry)
	}
}

func (p *Pool) processEntry(ctx context.Context, entry *queue.Entry) {
	metrics.IncRunningJobs()
	defer metrics.DecRunningJobs()
	defer metrics.SetQueuePending(p.queue.Stats().PendingCount)

	job, err := p.store.Get(ctx, entry.JobID)
	if err != nil {
		p.logger.Error("job lookup failed", zap.String("job_id", entry.JobID), zap.Error(err))
		p.queue.Done(entry, queue.OutcomeFailed)
		return
	}
	if job.Status.IsTerminal() {
		p.logger.Warn("skipping terminal job", zap.String("job_id", job.ID), zap.String("status", string(job.Status)))
		p.queue.Done(entry, queue.OutcomeCancelled)
		return
	}

	attempt := job.Attempts + 1
	start := p.clock.Now()
	job, err = p.beginAttempt(ctx, job, attempt, start)
	if err != nil {
		p.logger.Error("begin attempt failed", zap.String("job_id", job.ID), zap.Error(err))
		p.queue.Done(entry, queue.OutcomeFailed)
		return
	}
	p.notify(ctx, job, scrape.JobStatusRunning, progressQueued, "attempt started")

	result, execErr := p.execute(ctx, job, entry)

	if execErr != nil && ctx.Err() != nil && !entry.Cancelled() {
		// Shutdown interrupted the attempt. The job stays running in the
		// store so the next startup reconciliation re-queues it.
		p.queue.Done(entry, queue.OutcomeRetried)
		p.logger.Info("attempt interrupted by shutdown", zap.String("job_id", job.ID))
		return
	}
	if entry.Cancelled() || (execErr != nil && isCancellation(execErr)) {
		p.finalizeCancelled(ctx, job, entry, start)
		return
	}
	if execErr != nil {
		p.handleFailure(ctx, job, entry, attempt, execErr, start)
		return
	}
	p.finalizeCompleted(ctx, job, entry, result, start)
}

// beginAttempt moves the job to running and bumps the attempt counter.
// StartedAt is written once, on the first attempt only.
func (p *Pool) beginAttempt(ctx context.Context, job scrape.Job, attempt int, now time.Time) (scrape.Job, error) {
	status := scrape.JobStatusRunning
	progress := progressQueued
	update := scrape.JobUpdate{
		Status:   &status,
		Attempts: &attempt,
		Progress: &progress,
	}
	if job.StartedAt == nil {
		update.StartedAt = &now
	}
	return p.store.Update(ctx, job.ID, update)
}

// execute resolves the strategy, acquires a browser session when required and
// runs the extraction. The returned error carries retryability.
func (p *Pool) execute(ctx context.Context, job scrape.Job, entry *queue.Entry) (any, error) {
	strategy, ok := p.strategies[job.Type]
	if !ok {
		return nil, scrape.NewConfigError("no strategy registered for job type %q", job.Type)
	}

	// A cooperative cancellation aborts in-flight fetches through context
	// cancellation.
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopWatch := watchCancellation(jobCtx, entry, cancel)
	defer stopWatch()

	var sess scrape.Session
	if strategy.Rendered() {
		if p.sessions == nil {
			return nil, scrape.NewConfigError("job type %q needs a browser session but none is configured", job.Type)
		}
		acquired, err := p.sessions.Acquire(jobCtx)
		if err != nil {
			return nil, fmt.Errorf("acquire session: %w", err)
		}
		defer func() {
			if cerr := acquired.Close(); cerr != nil {
				p.logger.Warn("session close failed", zap.String("job_id", job.ID), zap.Error(cerr))
			}
		}()
		sess = acquired
		p.advance(ctx, &job, progressAcquired, "session acquired")
	}

	if entry.Cancelled() {
		return nil, context.Canceled
	}

	p.advance(ctx, &job, progressExtracting, "extraction started")
	result, err := strategy.Execute(jobCtx, job, sess)
	if err != nil {
		return nil, err
	}
	p.advance(ctx, &job, progressExtracted, "extraction finished")
	return result, nil
}

func (p *Pool) finalizeCompleted(ctx context.Context, job scrape.Job, entry *queue.Entry, result any, start time.Time) {
	p.advance(ctx, &job, progressPersisting, "persisting result")

	payload, err := json.Marshal(result)
	if err != nil {
		p.handleFailure(ctx, job, entry, job.Attempts, scrape.NewConfigError("encode result: %v", err), start)
		return
	}

	status := scrape.JobStatusCompleted
	progress := progressDone
	now := p.clock.Now()
	updated, err := p.store.Update(ctx, job.ID, scrape.JobUpdate{
		Status:      &status,
		Progress:    &progress,
		Result:      payload,
		CompletedAt: &now,
	})
	if err != nil {
		p.logger.Error("completion update failed", zap.String("job_id", job.ID), zap.Error(err))
		p.queue.Done(entry, queue.OutcomeFailed)
		return
	}

	p.notify(ctx, updated, scrape.JobStatusCompleted, progressDone, "job completed")
	p.queue.Done(entry, queue.OutcomeCompleted)
	metrics.ObserveJob(string(job.Type), "completed", p.clock.Now().Sub(start))
	p.logger.Info("job completed",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.Int("attempts", job.Attempts),
	)
}

// handleFailure either schedules a retry with exponential backoff or marks
// the job failed when attempts are exhausted or the error is permanent.
func (p *Pool) handleFailure(ctx context.Context, job scrape.Job, entry *queue.Entry, attempt int, execErr error, start time.Time) {
	errText := execErr.Error()

	if scrape.IsRetryable(execErr) && attempt < job.MaxAttempts {
		backoff := p.cfg.BaseBackoff << (attempt - 1)
		status := scrape.JobStatusPending
		progress := progressQueued
		if _, err := p.store.Update(ctx, job.ID, scrape.JobUpdate{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &errText,
		}); err != nil {
			p.logger.Error("retry update failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		p.queue.Done(entry, queue.OutcomeRetried)
		p.queue.Enqueue(job.ID, queue.Options{Priority: job.Priority, Delay: backoff})
		metrics.ObserveRetry(string(job.Type))
		p.logger.Warn("job retry scheduled",
			zap.String("job_id", job.ID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.String("error", errText),
		)
		return
	}

	status := scrape.JobStatusFailed
	now := p.clock.Now()
	if _, err := p.store.Update(ctx, job.ID, scrape.JobUpdate{
		Status:       &status,
		ErrorMessage: &errText,
		CompletedAt:  &now,
	}); err != nil {
		p.logger.Error("failure update failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	p.notify(ctx, job, scrape.JobStatusFailed, job.Progress, errText)
	p.queue.Done(entry, queue.OutcomeFailed)
	metrics.ObserveJob(string(job.Type), "failed", p.clock.Now().Sub(start))
	p.logger.Error("job failed",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.Int("attempt", attempt),
		zap.String("error", errText),
	)
}

func (p *Pool) finalizeCancelled(ctx context.Context, job scrape.Job, entry *queue.Entry, start time.Time) {
	status := scrape.JobStatusCancelled
	now := p.clock.Now()
	errText := "cancelled by request"
	if _, err := p.store.Update(ctx, job.ID, scrape.JobUpdate{
		Status:       &status,
		ErrorMessage: &errText,
		CompletedAt:  &now,
	}); err != nil {
		p.logger.Error("cancel update failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	p.notify(ctx, job, scrape.JobStatusCancelled, job.Progress, errText)
	p.queue.Done(entry, queue.OutcomeCancelled)
	metrics.ObserveJob(string(job.Type), "cancelled", p.clock.Now().Sub(start))
	p.logger.Info("job cancelled", zap.String("job_id", job.ID))
}

// advance writes a progress milestone and broadcasts it. Milestone write
// failures are logged and ignored; they never abort the attempt.
func (p *Pool) advance(ctx context.Context, job *scrape.Job, progress int, message string) {
	updated, err := p.store.Update(ctx, job.ID, scrape.JobUpdate{Progress: &progress})
	if err != nil {
		p.logger.Warn("progress update failed", zap.String("job_id", job.ID), zap.Error(err))
	} else {
		*job = updated
	}
	p.notify(ctx, *job, scrape.JobStatusRunning, progress, message)
}

func (p *Pool) notify(ctx context.Context, job scrape.Job, status scrape.JobStatus, progress int, message string) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Broadcast(ctx, job.ID, job.OwnerID, status, progress, message); err != nil {
		metrics.ObserveNotifyFailure()
		p.logger.Warn("broadcast failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// watchCancellation cancels the job context shortly after the entry's
// cooperative flag is raised.
func watchCancellation(ctx context.Context, entry *queue.Entry, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cancelPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if entry.Cancelled() {
					cancel()
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
