package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/brandpulse/scout/internal/queue"
	"github.com/brandpulse/scout/internal/scrape"
	"github.com/brandpulse/scout/internal/worker"
)

// Standing task names.
const (
	TaskDailyCompetitors = "daily_competitors"
	TaskWeeklyDeep       = "weekly_deep"
	TaskHourlyTrends     = "hourly_trends"
	TaskCleanup          = "cleanup"
)

// StandingConfig controls the built-in task set.
type StandingConfig struct {
	RetentionDays   int
	QueueCleanAge   time.Duration
	TrendLookback   time.Duration
	TrendKeywordMax int
	DailySchedule   string
	WeeklySchedule  string
	TrendsSchedule  string
	CleanupSchedule string
}

func (c *StandingConfig) applyDefaults() {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.QueueCleanAge <= 0 {
		c.QueueCleanAge = 24 * time.Hour
	}
	if c.TrendLookback <= 0 {
		c.TrendLookback = 7 * 24 * time.Hour
	}
	if c.TrendKeywordMax <= 0 {
		c.TrendKeywordMax = 20
	}
	if c.DailySchedule == "" {
		c.DailySchedule = "0 2 * * *"
	}
	if c.WeeklySchedule == "" {
		c.WeeklySchedule = "0 3 * * 0"
	}
	if c.TrendsSchedule == "" {
		c.TrendsSchedule = "0 * * * *"
	}
	if c.CleanupSchedule == "" {
		c.CleanupSchedule = "0 1 * * *"
	}
}

// StandingTasks derives scrape jobs from caller-owned records and sweeps
// aged-out state.
type StandingTasks struct {
	submitter *worker.Submitter
	targets   scrape.TargetSource
	store     scrape.JobStore
	queue     *queue.Queue
	clock     scrape.Clock
	cfg       StandingConfig
	logger    *zap.Logger
}

// NewStandingTasks constructs the built-in task set. targets may be nil, in
// which case only the cleanup task does real work.
func NewStandingTasks(
	submitter *worker.Submitter,
	targets scrape.TargetSource,
	store scrape.JobStore,
	q *queue.Queue,
	clock scrape.Clock,
	cfg StandingConfig,
	logger *zap.Logger,
) *StandingTasks {
	cfg.applyDefaults()
	return &StandingTasks{
		submitter: submitter,
		targets:   targets,
		store:     store,
		queue:     q,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Register installs the standing tasks into the registry.
func (s *StandingTasks) Register(reg *Registry) error {
	specs := []struct {
		name   string
		expr   string
		action Action
	}{
		{TaskDailyCompetitors, s.cfg.DailySchedule, s.runDailyCompetitors},
		{TaskWeeklyDeep, s.cfg.WeeklySchedule, s.runWeeklyDeep},
		{TaskHourlyTrends, s.cfg.TrendsSchedule, s.runHourlyTrends},
		{TaskCleanup, s.cfg.CleanupSchedule, s.runCleanup},
	}
	for _, spec := range specs {
		if err := reg.RegisterTask(spec.name, spec.expr, spec.action); err != nil {
			return err
		}
	}
	return nil
}

// runDailyCompetitors submits a website job for every competitor on the
// daily cadence. Competitors with work already in flight are skipped.
func (s *StandingTasks) runDailyCompetitors(ctx context.Context) error {
	return s.enumerateCompetitors(ctx, "daily", []scrape.JobType{scrape.JobTypeWebsite})
}

// runWeeklyDeep submits the full scrape set for weekly-cadence competitors.
func (s *StandingTasks) runWeeklyDeep(ctx context.Context) error {
	return s.enumerateCompetitors(ctx, "weekly", []scrape.JobType{
		scrape.JobTypeWebsite,
		scrape.JobTypeContentAnalysis,
		scrape.JobTypeAssetDiscovery,
	})
}

func (s *StandingTasks) enumerateCompetitors(ctx context.Context, frequency string, types []scrape.JobType) error {
	if s.targets == nil {
		s.logger.Debug("no target source configured", zap.String("frequency", frequency))
		return nil
	}
	competitors, err := s.targets.ActiveCompetitors(ctx, frequency)
	if err != nil {
		return fmt.Errorf("list %s competitors: %w", frequency, err)
	}

	created := 0
	for _, competitor := range competitors {
		for _, jobType := range types {
			_, ok, err := s.submitter.SubmitDerived(ctx, worker.SubmitRequest{
				Type:         jobType,
				TargetURL:    competitor.WebsiteURL,
				OwnerID:      competitor.OwnerID,
				CompetitorID: competitor.ID,
			})
			if err != nil {
				s.logger.Error("derived submission failed",
					zap.String("competitor_id", competitor.ID),
					zap.String("type", string(jobType)),
					zap.Error(err),
				)
				continue
			}
			if ok {
				created++
			}
		}
	}
	s.logger.Info("competitor enumeration finished",
		zap.String("frequency", frequency),
		zap.Int("competitors", len(competitors)),
		zap.Int("jobs_created", created),
	)
	return nil
}

// runHourlyTrends submits a trend job per hot keyword from the lookback
// window.
func (s *StandingTasks) runHourlyTrends(ctx context.Context) error {
	if s.targets == nil {
		return nil
	}
	since := s.clock.Now().Add(-s.cfg.TrendLookback)
	keywords, err := s.targets.HotKeywords(ctx, since, s.cfg.TrendKeywordMax)
	if err != nil {
		return fmt.Errorf("list hot keywords: %w", err)
	}

	for _, keyword := range keywords {
		if _, err := s.submitter.Submit(ctx, worker.SubmitRequest{
			Type:    scrape.JobTypeTrendMonitoring,
			Options: map[string]string{"keyword": keyword},
		}); err != nil {
			s.logger.Error("trend submission failed", zap.String("keyword", keyword), zap.Error(err))
		}
	}
	s.logger.Info("trend enumeration finished", zap.Int("keywords", len(keywords)))
	return nil
}

// runCleanup drops terminal jobs past retention and sweeps stale queue
// entries.
func (s *StandingTasks) runCleanup(ctx context.Context) error {
	cutoff := s.clock.Now().AddDate(0, 0, -s.cfg.RetentionDays)

	var total int64
	for _, status := range []scrape.JobStatus{scrape.JobStatusCompleted, scrape.JobStatusFailed, scrape.JobStatusCancelled} {
		n, err := s.store.DeleteOlderThan(ctx, status, cutoff)
		if err != nil {
			return fmt.Errorf("sweep %s jobs: %w", status, err)
		}
		total += n
	}

	swept := 0
	if s.queue != nil {
		swept = s.queue.Clean(s.cfg.QueueCleanAge)
	}
	s.logger.Info("cleanup finished",
		zap.Int64("jobs_deleted", total),
		zap.Int("queue_entries_swept", swept),
	)
	return nil
}
