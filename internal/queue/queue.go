// Package queue holds pending job entries and dispatches them to workers
// under a fixed concurrency ceiling.
package queue

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Outcome records how a dispatched entry finished.
type Outcome int

// Dispatch outcomes reported through Done.
const (
	OutcomeCompleted Outcome = iota
	OutcomeFailed
	OutcomeCancelled
	// OutcomeRetried frees the slot without counting a terminal result;
	// the caller re-enqueues the job itself.
	OutcomeRetried
)

// Options control admission of a job into the queue.
type Options struct {
	Priority int
	Delay    time.Duration
}

// Stats is a point-in-time snapshot of queue state.
type Stats struct {
	PendingCount   int `json:"pendingCount"`
	RunningCount   int `json:"runningCount"`
	CompletedCount int `json:"completedCount"`
	FailedCount    int `json:"failedCount"`
}

// Entry wraps a job reference with queue-local dispatch state.
type Entry struct {
	ID       string
	JobID    string
	Priority int

	readyAt    time.Time
	enqueuedAt time.Time
	seq        uint64
	cancelled  atomic.Bool
	running    bool
}

// Cancelled reports whether a cooperative cancellation was requested.
// Workers check this at suspension points.
func (e *Entry) Cancelled() bool {
	return e.cancelled.Load()
}

// Queue orders ready entries by priority then FIFO and hands them out while
// fewer than the ceiling are running. Delayed entries become eligible once
// their ready time passes.
type Queue struct {
	mu      sync.Mutex
	ready   entryHeap
	delayed delayHeap
	index   map[string]*Entry
	seq     uint64

	ceiling   int
	running   int
	paused    bool
	completed int
	failed    int

	out  chan *Entry
	wake chan struct{}
}

// New constructs a Queue with the given concurrency ceiling.
func New(ceiling int) *Queue {
	if ceiling <= 0 {
		ceiling = 5
	}
	return &Queue{
		index:   make(map[string]*Entry),
		ceiling: ceiling,
		out:     make(chan *Entry),
		wake:    make(chan struct{}, 1),
	}
}

// Start launches the dispatch loop. It returns once the context finishes.
func (q *Queue) Start(ctx context.Context) {
	go q.run(ctx)
}

// Enqueue admits a job and returns the queue entry id.
func (q *Queue) Enqueue(jobID string, opts Options) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	now := time.Now()
	e := &Entry{
		ID:         uuid.NewString(),
		JobID:      jobID,
		Priority:   opts.Priority,
		enqueuedAt: now,
		seq:        q.seq,
	}
	if opts.Delay > 0 {
		e.readyAt = now.Add(opts.Delay)
		heap.Push(&q.delayed, e)
	} else {
		heap.Push(&q.ready, e)
	}
	q.index[e.ID] = e
	q.signal()
	return e.ID
}

// Cancel removes a pending entry from consideration, returning true. For a
// running entry it only flags cooperative cancellation and returns false.
func (q *Queue) Cancel(entryID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.index[entryID]
	if !ok {
		return false
	}
	e.cancelled.Store(true)
	if e.running {
		return false
	}
	delete(q.index, entryID)
	q.signal()
	return true
}

// CancelJob cancels the first non-running entry found for a job id.
func (q *Queue) CancelJob(jobID string) bool {
	q.mu.Lock()
	var target *Entry
	for _, e := range q.index {
		if e.JobID == jobID && !e.running {
			target = e
			break
		}
	}
	q.mu.Unlock()
	if target == nil {
		return false
	}
	return q.Cancel(target.ID)
}

// Pause stops new dispatch; running jobs continue to completion.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

// Resume re-enables dispatch.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
	q.signal()
}

// Next blocks until an entry is dispatched to the caller or the context ends.
func (q *Queue) Next(ctx context.Context) (*Entry, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("queue next: %w", ctx.Err())
	case e := <-q.out:
		return e, nil
	}
}

// Done releases the execution slot held by the entry and records the outcome.
func (q *Queue) Done(e *Entry, outcome Outcome) {
	q.mu.Lock()
	if e.running {
		e.running = false
		q.running--
		delete(q.index, e.ID)
	}
	switch outcome {
	case OutcomeCompleted:
		q.completed++
	case OutcomeFailed:
		q.failed++
	case OutcomeCancelled, OutcomeRetried:
	}
	q.mu.Unlock()
	q.signal()
}

// Stats reports queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := 0
	for _, e := range q.index {
		if !e.running && !e.cancelled.Load() {
			pending++
		}
	}
	return Stats{
		PendingCount:   pending,
		RunningCount:   q.running,
		CompletedCount: q.completed,
		FailedCount:    q.failed,
	}
}

// Clean drops cancelled tombstones and stale delayed entries older than age,
// returning how many were removed.
func (q *Queue) Clean(age time.Duration) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	cutoff := time.Now().Add(-age)
	removed := 0
	keep := q.delayed[:0]
	for _, e := range q.delayed {
		if e.cancelled.Load() || e.enqueuedAt.Before(cutoff) {
			delete(q.index, e.ID)
			removed++
			continue
		}
		keep = append(keep, e)
	}
	q.delayed = keep
	heap.Init(&q.delayed)
	kept := q.ready[:0]
	for _, e := range q.ready {
		if e.cancelled.Load() {
			delete(q.index, e.ID)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	q.ready = kept
	heap.Init(&q.ready)
	return removed
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// run is the dispatch loop: it promotes due delayed entries, then hands the
// best ready entry to a worker whenever a slot is free.
func (q *Queue) run(ctx context.Context) {
	for {
		e, wait := q.nextDispatchable()
		if e != nil {
			select {
			case <-ctx.Done():
				q.requeue(e)
				return
			case q.out <- e:
			}
			continue
		}
		var timerC <-chan time.Time
		var timer *time.Timer
		if wait > 0 {
			timer = time.NewTimer(wait)
			timerC = timer.C
		}
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-q.wake:
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// nextDispatchable pops the highest-urgency ready entry if a slot is free,
// claiming the slot before the entry leaves the lock so a Done racing the
// delivery cannot skew the running count. When nothing is dispatchable it
// returns the wait until the earliest delayed entry matures, or zero to
// block indefinitely.
func (q *Queue) nextDispatchable() (*Entry, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	for q.delayed.Len() > 0 && !q.delayed[0].readyAt.After(now) {
		e := heap.Pop(&q.delayed).(*Entry)
		heap.Push(&q.ready, e)
	}
	if q.paused || q.running >= q.ceiling {
		return nil, 0
	}
	for q.ready.Len() > 0 {
		e := heap.Pop(&q.ready).(*Entry)
		if e.cancelled.Load() {
			delete(q.index, e.ID)
			continue
		}
		e.running = true
		q.running++
		return e, 0
	}
	if q.delayed.Len() > 0 {
		return nil, q.delayed[0].readyAt.Sub(now)
	}
	return nil, 0
}

// requeue releases the claimed slot of an undelivered entry on shutdown and
// returns it to the ready heap.
func (q *Queue) requeue(e *Entry) {
	q.mu.Lock()
	e.running = false
	q.running--
	heap.Push(&q.ready, e)
	q.mu.Unlock()
}

// entryHeap orders ready entries by priority, ties broken by admission order.
type entryHeap []*Entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].Priority == h[j].Priority {
		return h[i].seq < h[j].seq
	}
	return h[i].Priority < h[j].Priority
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(*Entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// delayHeap orders delayed entries by ready time.
type delayHeap []*Entry

func (h delayHeap) Len() int { return len(h) }

func (h delayHeap) Less(i, j int) bool { return h[i].readyAt.Before(h[j].readyAt) }

func (h delayHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *delayHeap) Push(x any) { *h = append(*h, x.(*Entry)) }

func (h *delayHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
