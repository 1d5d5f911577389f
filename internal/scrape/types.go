// Package scrape defines core types shared across subsystems.
package scrape

import (
	"encoding/json"
	"net/http"
	"time"
)

// JobType selects the extraction strategy applied to a job.
type JobType string

// Job types persisted in the job store.
const (
	JobTypeWebsite         JobType = "website"
	JobTypeContentAnalysis JobType = "content_analysis"
	JobTypeAssetDiscovery  JobType = "asset_discovery"
	JobTypeTrendMonitoring JobType = "trend_monitoring"
)

// Known reports whether the job type is one of the registered types.
func (t JobType) Known() bool {
	switch t {
	case JobTypeWebsite, JobTypeContentAnalysis, JobTypeAssetDiscovery, JobTypeTrendMonitoring:
		return true
	default:
		return false
	}
}

// JobStatus represents the lifecycle state of a scrape job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status is a terminal state.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// DefaultPriority is assigned to jobs submitted without one (lower is more urgent).
const DefaultPriority = 5

// DefaultMaxAttempts bounds retries for a single job.
const DefaultMaxAttempts = 3

// Job represents one unit of scrape-and-extract work.
type Job struct {
	ID           string            `json:"id"`
	Type         JobType           `json:"type"`
	TargetURL    string            `json:"target_url,omitempty"`
	OwnerID      string            `json:"owner_id,omitempty"`
	CompetitorID string            `json:"competitor_id,omitempty"`
	Priority     int               `json:"priority"`
	Attempts     int               `json:"attempts"`
	MaxAttempts  int               `json:"max_attempts"`
	Status       JobStatus         `json:"status"`
	Progress     int               `json:"progress"`
	Result       json.RawMessage   `json:"result,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Options      map[string]string `json:"options,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// JobUpdate carries the fields written on a status change. Nil pointers leave
// the stored value untouched.
type JobUpdate struct {
	Status       *JobStatus
	Progress     *int
	Attempts     *int
	Result       json.RawMessage
	ErrorMessage *string
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// JobFilter narrows a job store query.
type JobFilter struct {
	Statuses       []JobStatus
	Type           JobType
	OwnerID        string
	CompetitorID   string
	CompletedAfter time.Time
}

// JobOrder selects the sort applied to query results.
type JobOrder string

// Supported query orderings.
const (
	OrderCreatedAsc  JobOrder = "created_asc"
	OrderCreatedDesc JobOrder = "created_desc"
	OrderPriority    JobOrder = "priority"
)

// StoreStats summarizes job store state for the admin surface.
type StoreStats struct {
	ActiveCount         int `json:"activeCount"`
	PendingCount        int `json:"pendingCount"`
	CompletedTodayCount int `json:"completedTodayCount"`
}

// FetchRequest captures everything needed to fetch a target page.
type FetchRequest struct {
	URL string
	// WaitSelector, when set, delays capture until the selector matches.
	WaitSelector string
	// Script, when set, runs inside the page before the DOM is captured.
	Script  string
	Headers http.Header
}

// FetchResponse is the result returned by a fetch, rendered or lightweight.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Rendered   bool
}

// Competitor is the caller-owned target record the scheduler enumerates.
// The core treats all fields as opaque references.
type Competitor struct {
	ID          string
	OwnerID     string
	WebsiteURL  string
	Frequency   string
	LastScraped time.Time
}
