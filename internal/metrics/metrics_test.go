package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Reset collectors for testing purposes.
	scoutJobsTotal = nil
	scoutJobDurationSeconds = nil
	httpRequestsTotal = nil
	httpRequestDurationSeconds = nil

	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if scoutJobsTotal == nil || scoutJobDurationSeconds == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveJob("website", "completed", 2*time.Second)
	if val := testutil.ToFloat64(scoutJobsTotal.WithLabelValues("website", "completed")); val != 1 {
		t.Errorf("Expected scoutJobsTotal to be 1, got %f", val)
	}
}

func TestObserveRetryAndGauges(t *testing.T) {
	Init()

	ObserveRetry("website")
	if val := testutil.ToFloat64(scoutJobRetriesTotal.WithLabelValues("website")); val != 1 {
		t.Errorf("Expected scoutJobRetriesTotal to be 1, got %f", val)
	}

	IncRunningJobs()
	IncRunningJobs()
	DecRunningJobs()
	if val := testutil.ToFloat64(scoutJobsRunning); val != 1 {
		t.Errorf("Expected scoutJobsRunning to be 1, got %f", val)
	}

	SetQueuePending(7)
	if val := testutil.ToFloat64(scoutQueuePending); val != 7 {
		t.Errorf("Expected scoutQueuePending to be 7, got %f", val)
	}

	ObserveTaskRun("daily_competitors", "ok")
	if val := testutil.ToFloat64(scoutTaskRunsTotal.WithLabelValues("daily_competitors", "ok")); val != 1 {
		t.Errorf("Expected scoutTaskRunsTotal to be 1, got %f", val)
	}
}
