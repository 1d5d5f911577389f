// Package metrics exposes Prometheus collectors for the scout service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scoutJobsTotal             *prometheus.CounterVec
	scoutJobDurationSeconds    *prometheus.HistogramVec
	scoutJobRetriesTotal       *prometheus.CounterVec
	scoutJobsRunning           prometheus.Gauge
	scoutQueuePending          prometheus.Gauge
	scoutTaskRunsTotal         *prometheus.CounterVec
	scoutNotifyFailuresTotal   prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scoutJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_jobs_total",
				Help: "Total number of jobs finished, labeled by type and outcome.",
			},
			[]string{"type", "outcome"},
		)

		scoutJobDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scout_job_duration_seconds",
				Help:    "Histogram of job execution durations, labeled by type.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"type"},
		)

		scoutJobRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_job_retries_total",
				Help: "Total number of retry re-enqueues, labeled by type.",
			},
			[]string{"type"},
		)

		scoutJobsRunning = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scout_jobs_running",
				Help: "Number of jobs currently executing.",
			},
		)

		scoutQueuePending = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scout_queue_pending",
				Help: "Number of queue entries waiting for dispatch.",
			},
		)

		scoutTaskRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_task_runs_total",
				Help: "Total number of scheduled task firings, labeled by task and result.",
			},
			[]string{"task", "result"},
		)

		scoutNotifyFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scout_notify_failures_total",
				Help: "Total number of job update broadcasts that failed.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob records one finished job with its outcome and duration.
func ObserveJob(jobType, outcome string, duration time.Duration) {
	scoutJobsTotal.WithLabelValues(jobType, outcome).Inc()
	scoutJobDurationSeconds.WithLabelValues(jobType).Observe(duration.Seconds())
}

// ObserveRetry increments the retry counter for the given job type.
func ObserveRetry(jobType string) {
	scoutJobRetriesTotal.WithLabelValues(jobType).Inc()
}

// IncRunningJobs increments the running jobs gauge.
func IncRunningJobs() {
	scoutJobsRunning.Inc()
}

// DecRunningJobs decrements the running jobs gauge.
func DecRunningJobs() {
	scoutJobsRunning.Dec()
}

// SetQueuePending records the current queue depth.
func SetQueuePending(n int) {
	scoutQueuePending.Set(float64(n))
}

// ObserveTaskRun increments the task firing counter.
func ObserveTaskRun(task, result string) {
	scoutTaskRunsTotal.WithLabelValues(task, result).Inc()
}

// ObserveNotifyFailure increments the broadcast failure counter.
func ObserveNotifyFailure() {
	scoutNotifyFailuresTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware records request count and latency for every routed request.
// The route label uses the chi route pattern, not the raw path, to keep
// label cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		ObserveHTTPRequest(r.Method, route, ww.Status(), time.Since(start))
	})
}
