// Package scheduler manages the recurring tasks that derive scrape jobs:
// a named cron registry plus the standing task set registered at startup.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/brandpulse/scout/internal/metrics"
)

// ErrUnknownTask is returned when a task name is not registered.
var ErrUnknownTask = errors.New("unknown task")

// Action is the work a scheduled task performs on each firing.
type Action func(ctx context.Context) error

// TaskInfo describes one registered task for the admin surface.
type TaskInfo struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Running    bool   `json:"running"`
}

type task struct {
	name    string
	expr    string
	entryID cron.EntryID
	action  Action
	// active counts in-flight firings; overlapping firings run concurrently.
	active atomic.Int32
}

// Registry schedules named tasks on cron expressions. Re-registering a name
// replaces the previous schedule. Firings are never queued or suppressed:
// when one overlaps a still-running firing of the same task, both proceed,
// so actions must carry their own idempotency guards.
type Registry struct {
	mu      sync.Mutex
	cron    *cron.Cron
	tasks   map[string]*task
	baseCtx context.Context
	started bool
	logger  *zap.Logger
}

// NewRegistry constructs an empty task registry.
func NewRegistry(logger *zap.Logger) *Registry {
	metrics.Init()
	return &Registry{
		cron:    cron.New(),
		tasks:   map[string]*task{},
		baseCtx: context.Background(),
		logger:  logger,
	}
}

// RegisterTask schedules action under name. The expression may be a preset
// name or a five-field cron expression. An existing task with the same name
// is replaced.
func (r *Registry) RegisterTask(name, expression string, action Action) error {
	if name == "" {
		return fmt.Errorf("task name must not be empty")
	}
	expr, err := ResolveExpression(expression)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tasks[name]; ok {
		r.cron.Remove(existing.entryID)
		delete(r.tasks, name)
		r.logger.Info("replacing scheduled task", zap.String("task", name))
	}

	tk := &task{name: name, expr: expr, action: action}
	entryID, err := r.cron.AddFunc(expr, func() {
		r.fire(tk)
	})
	if err != nil {
		return fmt.Errorf("schedule task %q: %w", name, err)
	}
	tk.entryID = entryID
	r.tasks[name] = tk

	r.logger.Info("task registered", zap.String("task", name), zap.String("expression", expr))
	return nil
}

// StopTask removes a task from the schedule, reporting whether it existed.
// A firing already in flight runs to completion.
func (r *Registry) StopTask(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	tk, ok := r.tasks[name]
	if !ok {
		return false
	}
	r.cron.Remove(tk.entryID)
	delete(r.tasks, name)
	r.logger.Info("task stopped", zap.String("task", name))
	return true
}

// Start begins firing schedules. ctx is the parent of every task execution.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.baseCtx = ctx
	r.cron.Start()
	r.started = true
	r.logger.Info("scheduler started", zap.Int("tasks", len(r.tasks)))
}

// Stop halts future firings and blocks until in-flight firings finish.
func (r *Registry) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	r.mu.Unlock()

	<-r.cron.Stop().Done()
	r.logger.Info("scheduler stopped")
}

// Started reports whether schedules are currently firing.
func (r *Registry) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// ListTasks returns every registered task sorted by name.
func (r *Registry) ListTasks() []TaskInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	infos := make([]TaskInfo, 0, len(r.tasks))
	for _, tk := range r.tasks {
		infos = append(infos, TaskInfo{
			Name:       tk.name,
			Expression: tk.expr,
			Running:    tk.active.Load() > 0,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// RunTask fires a task immediately and synchronously, outside its schedule.
func (r *Registry) RunTask(ctx context.Context, name string) error {
	r.mu.Lock()
	tk, ok := r.tasks[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
	tk.active.Add(1)
	defer tk.active.Add(-1)
	return r.execute(ctx, tk)
}

// fire is the scheduled entry point. A panicking action never takes the
// scheduler down.
func (r *Registry) fire(tk *task) {
	tk.active.Add(1)
	defer tk.active.Add(-1)

	r.mu.Lock()
	ctx := r.baseCtx
	r.mu.Unlock()

	if err := r.execute(ctx, tk); err != nil {
		r.logger.Error("task firing failed", zap.String("task", tk.name), zap.Error(err))
	}
}

func (r *Registry) execute(ctx context.Context, tk *task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task %q panicked: %v", tk.name, rec)
			metrics.ObserveTaskRun(tk.name, "panic")
		}
	}()

	if err = tk.action(ctx); err != nil {
		metrics.ObserveTaskRun(tk.name, "error")
		return fmt.Errorf("task %q: %w", tk.name, err)
	}
	metrics.ObserveTaskRun(tk.name, "ok")
	return nil
}
