// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brandpulse/scout/internal/scrape"
)

// JobStoreConfig controls the Postgres connection pool used for job rows.
type JobStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

const jobColumns = `id, type, target_url, owner_id, competitor_id, priority, attempts,
	max_attempts, status, progress, result, error_message, options,
	created_at, started_at, completed_at`

// JobStore implements scrape.JobStore on the scrape_jobs table.
type JobStore struct {
	pool querier
}

// NewJobStore creates a Postgres-backed JobStore using the provided config.
func NewJobStore(ctx context.Context, cfg JobStoreConfig) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &JobStore{pool: pool}, nil
}

// NewJobStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewJobStoreWithPool(pool querier) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Create inserts a new job row.
func (s *JobStore) Create(ctx context.Context, job scrape.Job) (scrape.Job, error) {
	if job.ID == "" {
		return scrape.Job{}, fmt.Errorf("job id is required")
	}
	optionsJSON, err := json.Marshal(job.Options)
	if err != nil {
		return scrape.Job{}, fmt.Errorf("marshal options: %w", err)
	}

	query := `
INSERT INTO scrape_jobs (
	id, type, target_url, owner_id, competitor_id, priority, attempts,
	max_attempts, status, progress, result, error_message, options,
	created_at, started_at, completed_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)`
	_, err = s.pool.Exec(ctx, query,
		job.ID,
		string(job.Type),
		job.TargetURL,
		job.OwnerID,
		job.CompetitorID,
		job.Priority,
		job.Attempts,
		job.MaxAttempts,
		string(job.Status),
		job.Progress,
		[]byte(job.Result),
		job.ErrorMessage,
		optionsJSON,
		job.CreatedAt,
		job.StartedAt,
		job.CompletedAt,
	)
	if err != nil {
		return scrape.Job{}, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// Update applies the non-nil fields of update and returns the stored row.
func (s *JobStore) Update(ctx context.Context, jobID string, update scrape.JobUpdate) (scrape.Job, error) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		add("status", string(*update.Status))
	}
	if update.Progress != nil {
		add("progress", *update.Progress)
	}
	if update.Attempts != nil {
		add("attempts", *update.Attempts)
	}
	if update.Result != nil {
		add("result", []byte(update.Result))
	}
	if update.ErrorMessage != nil {
		add("error_message", *update.ErrorMessage)
	}
	if update.StartedAt != nil {
		add("started_at", *update.StartedAt)
	}
	if update.CompletedAt != nil {
		add("completed_at", *update.CompletedAt)
	}
	if len(sets) == 0 {
		return s.Get(ctx, jobID)
	}

	args = append(args, jobID)
	query := fmt.Sprintf(`UPDATE scrape_jobs SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), jobColumns)

	job, err := scanJob(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scrape.Job{}, scrape.ErrJobNotFound
		}
		return scrape.Job{}, fmt.Errorf("update job: %w", err)
	}
	return job, nil
}

// Get fetches a single job row.
func (s *JobStore) Get(ctx context.Context, jobID string) (scrape.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM scrape_jobs WHERE id = $1`, jobColumns)
	job, err := scanJob(s.pool.QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scrape.Job{}, scrape.ErrJobNotFound
		}
		return scrape.Job{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Query returns jobs matching the filter in the requested order.
func (s *JobStore) Query(ctx context.Context, filter scrape.JobFilter, order scrape.JobOrder, limit int) ([]scrape.Job, error) {
	var (
		where []string
		args  []any
	)
	cond := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			statuses[i] = string(status)
		}
		cond("status = ANY($%d)", statuses)
	}
	if filter.Type != "" {
		cond("type = $%d", string(filter.Type))
	}
	if filter.OwnerID != "" {
		cond("owner_id = $%d", filter.OwnerID)
	}
	if filter.CompetitorID != "" {
		cond("competitor_id = $%d", filter.CompetitorID)
	}
	if !filter.CompletedAfter.IsZero() {
		cond("completed_at >= $%d", filter.CompletedAfter)
	}

	query := fmt.Sprintf(`SELECT %s FROM scrape_jobs`, jobColumns)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + orderClause(order)
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []scrape.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// DeleteOlderThan removes jobs in the given status completed before cutoff.
func (s *JobStore) DeleteOlderThan(ctx context.Context, status scrape.JobStatus, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM scrape_jobs WHERE status = $1 AND completed_at < $2`,
		string(status), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stats summarizes current table contents.
func (s *JobStore) Stats(ctx context.Context, now time.Time) (scrape.StoreStats, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	query := `
SELECT
	COUNT(*) FILTER (WHERE status = 'running') AS active,
	COUNT(*) FILTER (WHERE status = 'pending') AS pending,
	COUNT(*) FILTER (WHERE status = 'completed' AND completed_at >= $1) AS completed_today
FROM scrape_jobs`

	var stats scrape.StoreStats
	if err := s.pool.QueryRow(ctx, query, dayStart).Scan(
		&stats.ActiveCount,
		&stats.PendingCount,
		&stats.CompletedTodayCount,
	); err != nil {
		return scrape.StoreStats{}, fmt.Errorf("job stats: %w", err)
	}
	return stats, nil
}

func orderClause(order scrape.JobOrder) string {
	switch order {
	case scrape.OrderCreatedDesc:
		return "created_at DESC"
	case scrape.OrderPriority:
		return "priority ASC, created_at ASC"
	default:
		return "created_at ASC"
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (scrape.Job, error) {
	var (
		job         scrape.Job
		jobType     string
		status      string
		result      []byte
		optionsJSON []byte
	)
	if err := row.Scan(
		&job.ID,
		&jobType,
		&job.TargetURL,
		&job.OwnerID,
		&job.CompetitorID,
		&job.Priority,
		&job.Attempts,
		&job.MaxAttempts,
		&status,
		&job.Progress,
		&result,
		&job.ErrorMessage,
		&optionsJSON,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	); err != nil {
		return scrape.Job{}, err
	}
	job.Type = scrape.JobType(jobType)
	job.Status = scrape.JobStatus(status)
	job.Result = result
	if len(optionsJSON) > 0 {
		if err := json.Unmarshal(optionsJSON, &job.Options); err != nil {
			return scrape.Job{}, fmt.Errorf("unmarshal options: %w", err)
		}
	}
	return job, nil
}
