package scrape

import (
	"context"
	"time"
)

// JobStore persists job records. Implementations must serialize concurrent
// writes to the same job id.
type JobStore interface {
	Create(ctx context.Context, job Job) (Job, error)
	Update(ctx context.Context, jobID string, update JobUpdate) (Job, error)
	Get(ctx context.Context, jobID string) (Job, error)
	Query(ctx context.Context, filter JobFilter, order JobOrder, limit int) ([]Job, error)
	DeleteOlderThan(ctx context.Context, status JobStatus, cutoff time.Time) (int64, error)
	Stats(ctx context.Context, now time.Time) (StoreStats, error)
}

// Notifier pushes live job updates to connected clients. Broadcasts are
// fire-and-forget; a missing or failing notifier never affects execution.
type Notifier interface {
	Broadcast(ctx context.Context, jobID, ownerID string, status JobStatus, progress int, message string) error
}

// Fetcher retrieves a page without script execution (lightweight fetch).
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Session is a browser-backed page-fetch resource scoped to one job
// execution. Close must always be called, including on failure.
type Session interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
	Close() error
}

// SessionManager hands out browser sessions under a parallelism limit.
type SessionManager interface {
	Acquire(ctx context.Context) (Session, error)
}

// Strategy turns a fetched page into structured output for one job type.
type Strategy interface {
	// Rendered reports whether Execute needs a browser session.
	Rendered() bool
	// Execute runs the extraction. sess is nil when Rendered is false.
	Execute(ctx context.Context, job Job, sess Session) (any, error)
}

// SnapshotStore writes raw fetched artifacts and returns a URI.
type SnapshotStore interface {
	Put(ctx context.Context, path, contentType string, data []byte) (string, error)
}

// TargetSource enumerates the caller-owned records standing tasks derive
// work from. Supplied by the API layer; the core never writes to it.
type TargetSource interface {
	ActiveCompetitors(ctx context.Context, frequency string) ([]Competitor, error)
	HotKeywords(ctx context.Context, since time.Time, limit int) ([]string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
