package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/brandpulse/scout/internal/queue"
	"github.com/brandpulse/scout/internal/scrape"
)

// SubmitRequest describes a job to admit. A nil Priority takes the default;
// zero is a valid, most-urgent priority.
type SubmitRequest struct {
	Type         scrape.JobType
	TargetURL    string
	OwnerID      string
	CompetitorID string
	Priority     *int
	MaxAttempts  int
	Options      map[string]string
	Delay        time.Duration
}

// SubmitterConfig controls admission defaults.
type SubmitterConfig struct {
	// MaxAttempts applies to requests that do not carry their own limit.
	MaxAttempts int
}

// Submitter is the admission path: it persists new jobs and hands them to
// the queue, and owns cancellation of jobs that have not finished.
type Submitter struct {
	store    scrape.JobStore
	queue    *queue.Queue
	notifier scrape.Notifier
	ids      scrape.IDGenerator
	clock    scrape.Clock
	cfg      SubmitterConfig
	logger   *zap.Logger
}

// NewSubmitter constructs a Submitter. notifier may be nil.
func NewSubmitter(
	store scrape.JobStore,
	q *queue.Queue,
	notifier scrape.Notifier,
	ids scrape.IDGenerator,
	clock scrape.Clock,
	cfg SubmitterConfig,
	logger *zap.Logger,
) *Submitter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = scrape.DefaultMaxAttempts
	}
	return &Submitter{
		store:    store,
		queue:    q,
		notifier: notifier,
		ids:      ids,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Submit validates, persists and enqueues a new job.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) (scrape.Job, error) {
	if !req.Type.Known() {
		return scrape.Job{}, scrape.NewConfigError("unknown job type %q", req.Type)
	}
	if req.TargetURL == "" && req.Type != scrape.JobTypeTrendMonitoring {
		return scrape.Job{}, scrape.NewConfigError("job type %q requires a target url", req.Type)
	}

	id, err := s.ids.NewID()
	if err != nil {
		return scrape.Job{}, fmt.Errorf("generate job id: %w", err)
	}

	priority := scrape.DefaultPriority
	if req.Priority != nil {
		priority = *req.Priority
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.cfg.MaxAttempts
	}

	job, err := s.store.Create(ctx, scrape.Job{
		ID:           id,
		Type:         req.Type,
		TargetURL:    req.TargetURL,
		OwnerID:      req.OwnerID,
		CompetitorID: req.CompetitorID,
		Priority:     priority,
		MaxAttempts:  maxAttempts,
		Status:       scrape.JobStatusPending,
		Options:      req.Options,
		CreatedAt:    s.clock.Now(),
	})
	if err != nil {
		return scrape.Job{}, fmt.Errorf("create job: %w", err)
	}

	s.queue.Enqueue(job.ID, queue.Options{Priority: priority, Delay: req.Delay})
	s.logger.Info("job submitted",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.Int("priority", priority),
	)
	return job, nil
}

// SubmitDerived admits a scheduler-derived job unless the competitor already
// has one of the same type pending or running. The bool reports whether a
// job was actually created.
func (s *Submitter) SubmitDerived(ctx context.Context, req SubmitRequest) (scrape.Job, bool, error) {
	if req.CompetitorID != "" {
		existing, err := s.store.Query(ctx, scrape.JobFilter{
			Type:         req.Type,
			CompetitorID: req.CompetitorID,
			Statuses:     []scrape.JobStatus{scrape.JobStatusPending, scrape.JobStatusRunning},
		}, scrape.OrderCreatedAsc, 1)
		if err != nil {
			return scrape.Job{}, false, fmt.Errorf("duplicate check: %w", err)
		}
		if len(existing) > 0 {
			s.logger.Debug("skipping duplicate job",
				zap.String("competitor_id", req.CompetitorID),
				zap.String("existing_job_id", existing[0].ID),
			)
			return existing[0], false, nil
		}
	}

	job, err := s.Submit(ctx, req)
	if err != nil {
		return scrape.Job{}, false, err
	}
	return job, true, nil
}

// Cancel requests cancellation of a job. Pending jobs go terminal at once;
// running jobs are flagged and finalized by the worker that holds them.
func (s *Submitter) Cancel(ctx context.Context, jobID string) (scrape.Job, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return scrape.Job{}, err
	}
	if job.Status.IsTerminal() {
		return job, scrape.NewConfigError("job %s already %s", jobID, job.Status)
	}

	removed := s.queue.CancelJob(jobID)
	if job.Status == scrape.JobStatusRunning && !removed {
		// The executing worker observes the flag and writes the terminal state.
		s.logger.Info("cancellation requested for running job", zap.String("job_id", jobID))
		return job, nil
	}

	status := scrape.JobStatusCancelled
	now := s.clock.Now()
	errText := "cancelled by request"
	updated, err := s.store.Update(ctx, jobID, scrape.JobUpdate{
		Status:       &status,
		ErrorMessage: &errText,
		CompletedAt:  &now,
	})
	if err != nil {
		return scrape.Job{}, fmt.Errorf("cancel update: %w", err)
	}
	if s.notifier != nil {
		if nerr := s.notifier.Broadcast(ctx, updated.ID, updated.OwnerID, status, updated.Progress, errText); nerr != nil {
			s.logger.Warn("broadcast failed", zap.String("job_id", jobID), zap.Error(nerr))
		}
	}
	s.logger.Info("job cancelled before dispatch", zap.String("job_id", jobID))
	return updated, nil
}
