package orchestration

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentbench/agenteval/internal/models"
)

// DefaultMaxConcurrency bounds parallel execution when the run config does
// not set a limit.
const DefaultMaxConcurrency = 5

// ProgressEvent notifies a listener that one task finished.
type ProgressEvent struct {
	TaskID     string
	Index      int
	Total      int
	Status     models.Status
	DurationMs int64
}

// ProgressListener receives per-task completion events. In parallel runs it
// is called from multiple goroutines and must be safe for that.
type ProgressListener func(ProgressEvent)

// Scheduler executes a benchmark's tasks through a TaskRunner, sequentially
// or with bounded parallelism. Results always come back in task declaration
// order with exactly one entry per task, regardless of completion order.
type Scheduler struct {
	runner   *TaskRunner
	config   models.RunConfig
	listener ProgressListener
	logger   *slog.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithProgressListener installs a per-task completion callback.
func WithProgressListener(l ProgressListener) SchedulerOption {
	return func(s *Scheduler) { s.listener = l }
}

// WithSchedulerLogger sets the scheduler's logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler creates a scheduler for one run configuration.
func NewScheduler(runner *TaskRunner, config models.RunConfig, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		runner: runner,
		config: config,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run executes all tasks and returns one result per task in declaration
// order. When ctx carries the run-level deadline and it expires, tasks that
// have not started become timeout results while in-flight tasks are
// interrupted and report timeout themselves.
func (s *Scheduler) Run(ctx context.Context, tasks []models.Task) []models.TaskResult {
	if s.config.Parallel {
		return s.runParallel(ctx, tasks)
	}
	return s.runSequential(ctx, tasks)
}

func (s *Scheduler) runSequential(ctx context.Context, tasks []models.Task) []models.TaskResult {
	results := make([]models.TaskResult, len(tasks))
	stopped := false

	for i, task := range tasks {
		switch {
		case ctx.Err() != nil:
			results[i] = unstartedResult(task.ID, models.StatusTimeout, "run timeout exceeded before task started")
		case stopped:
			results[i] = unstartedResult(task.ID, models.StatusError, "not run: stop on failure")
		default:
			results[i] = s.runner.Run(ctx, task, s.taskTimeout(task))
			if s.config.StopOnFailure && !results[i].Succeeded() {
				stopped = true
			}
		}
		s.notify(i, len(tasks), results[i])
	}
	return results
}

func (s *Scheduler) runParallel(ctx context.Context, tasks []models.Task) []models.TaskResult {
	results := make([]models.TaskResult, len(tasks))

	limit := s.config.MaxConcurrency
	if limit <= 0 {
		limit = DefaultMaxConcurrency
	}

	var stopped atomic.Bool
	g := &errgroup.Group{}
	g.SetLimit(limit)

	for i, task := range tasks {
		g.Go(func() error {
			switch {
			case ctx.Err() != nil:
				results[i] = unstartedResult(task.ID, models.StatusTimeout, "run timeout exceeded before task started")
			case stopped.Load():
				results[i] = unstartedResult(task.ID, models.StatusError, "not run: stop on failure")
			default:
				results[i] = s.runner.Run(ctx, task, s.taskTimeout(task))
				if s.config.StopOnFailure && !results[i].Succeeded() {
					stopped.Store(true)
				}
			}
			s.notify(i, len(tasks), results[i])
			return nil
		})
	}

	// Workers never return errors; failures live in the results.
	_ = g.Wait()
	return results
}

func (s *Scheduler) taskTimeout(task models.Task) time.Duration {
	sec := s.config.TimeoutSec
	if task.TimeoutSec > 0 {
		sec = task.TimeoutSec
	}
	return time.Duration(sec) * time.Second
}

func (s *Scheduler) notify(index, total int, result models.TaskResult) {
	s.logger.Debug("task finished",
		"task", result.TaskID,
		"status", result.Status,
		"duration_ms", result.DurationMs)
	if s.listener != nil {
		s.listener(ProgressEvent{
			TaskID:     result.TaskID,
			Index:      index,
			Total:      total,
			Status:     result.Status,
			DurationMs: result.DurationMs,
		})
	}
}

// unstartedResult builds the placeholder result for a task the scheduler
// never handed to the runner.
func unstartedResult(taskID string, status models.Status, msg string) models.TaskResult {
	now := time.Now().UTC()
	return models.TaskResult{
		TaskID:     taskID,
		Status:     status,
		StartedAt:  now,
		FinishedAt: now,
		ErrorMsg:   msg,
	}
}
