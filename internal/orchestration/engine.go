package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentbench/agenteval/internal/adapters"
	"github.com/agentbench/agenteval/internal/metrics"
	"github.com/agentbench/agenteval/internal/models"
	"github.com/agentbench/agenteval/internal/trace"
)

// Engine runs a benchmark end to end: it validates the metric selection,
// schedules the tasks, scores the results and optionally persists the run's
// traces. One Engine serves one adapter; runs are independent.
type Engine struct {
	adapter     adapters.Adapter
	pipeline    *metrics.Pipeline
	toolHandler ToolHandler
	listener    ProgressListener
	traceDir    string
	logger      *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithTraceDir sets where trace files are written when the run config asks
// for them.
func WithTraceDir(dir string) EngineOption {
	return func(e *Engine) { e.traceDir = dir }
}

// WithEngineToolHandler installs the tool handler passed to task runners.
func WithEngineToolHandler(h ToolHandler) EngineOption {
	return func(e *Engine) { e.toolHandler = h }
}

// WithEngineProgressListener installs a per-task completion callback.
func WithEngineProgressListener(l ProgressListener) EngineOption {
	return func(e *Engine) { e.listener = l }
}

// WithEngineLogger sets the engine's logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine bound to an adapter and a metric pipeline.
func NewEngine(adapter adapters.Adapter, pipeline *metrics.Pipeline, opts ...EngineOption) *Engine {
	e := &Engine{
		adapter:  adapter,
		pipeline: pipeline,
		traceDir: ".agenteval_traces",
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run executes the benchmark and returns its EvaluationResult. The only
// error returns are configuration problems detected before any task runs;
// task failures and metric failures are captured inside the result.
func (e *Engine) Run(ctx context.Context, bench *models.Benchmark) (*models.EvaluationResult, error) {
	resolved, err := e.pipeline.Resolve(bench.Metrics)
	if err != nil {
		return nil, fmt.Errorf("benchmark %q: %w", bench.Name, err)
	}

	runID := uuid.NewString()
	started := time.Now().UTC()
	e.logger.Info("starting benchmark run",
		"benchmark", bench.Name,
		"run_id", runID,
		"adapter", e.adapter.Name(),
		"tasks", len(bench.Tasks),
		"parallel", bench.Config.Parallel)

	runCtx := ctx
	if bench.Config.RunTimeoutSec > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(bench.Config.RunTimeoutSec)*time.Second)
		defer cancel()
	}

	runnerOpts := []RunnerOption{WithRunnerLogger(e.logger)}
	if bench.Config.MaxTurns > 0 {
		runnerOpts = append(runnerOpts, WithMaxTurns(bench.Config.MaxTurns))
	}
	if e.toolHandler != nil {
		runnerOpts = append(runnerOpts, WithToolHandler(e.toolHandler))
	}
	runner := NewTaskRunner(e.adapter, runnerOpts...)

	schedOpts := []SchedulerOption{WithSchedulerLogger(e.logger)}
	if e.listener != nil {
		schedOpts = append(schedOpts, WithProgressListener(e.listener))
	}
	scheduler := NewScheduler(runner, bench.Config, schedOpts...)

	results := scheduler.Run(runCtx, bench.Tasks)

	taskMetrics, aggregates, runErrors := e.pipeline.Score(resolved, results)
	for _, r := range results {
		if r.Status == models.StatusError && r.ErrorMsg != "" {
			runErrors = append(runErrors, models.RunError{TaskID: r.TaskID, Message: r.ErrorMsg})
		}
	}

	finished := time.Now().UTC()
	eval := &models.EvaluationResult{
		RunID:         runID,
		BenchmarkName: bench.Name,
		AdapterName:   e.adapter.Name(),
		StartedAt:     started,
		FinishedAt:    finished,
		DurationMs:    finished.Sub(started).Milliseconds(),
		TaskResults:   results,
		TaskMetrics:   taskMetrics,
		Aggregates:    aggregates,
		Summary:       models.Summarize(results),
		Errors:        runErrors,
		TotalUsage:    e.adapter.TokenUsage(),
		TotalCost:     e.adapter.Cost(),
	}

	if bench.Config.SaveTraces {
		path, err := trace.Write(e.traceDir, buildTraceFile(eval))
		if err != nil {
			e.logger.Warn("saving traces failed", "error", err)
		} else {
			e.logger.Info("traces saved", "path", path)
		}
	}

	e.logger.Info("benchmark run finished",
		"run_id", runID,
		"succeeded", eval.Summary.Succeeded,
		"failed", eval.Summary.Failed,
		"timed_out", eval.Summary.TimedOut,
		"errors", eval.Summary.Errors,
		"duration_ms", eval.DurationMs)

	return eval, nil
}

// buildTraceFile flattens an evaluation result into the persisted trace
// artifact, keeping declaration order in TaskOrder.
func buildTraceFile(eval *models.EvaluationResult) *trace.File {
	f := &trace.File{
		RunID:     eval.RunID,
		Benchmark: eval.BenchmarkName,
		Adapter:   eval.AdapterName,
		CreatedAt: time.Now().UTC(),
		TaskOrder: make([]string, 0, len(eval.TaskResults)),
		Tasks:     make(map[string]trace.TaskEntry, len(eval.TaskResults)),
	}
	for _, r := range eval.TaskResults {
		entry := trace.TaskEntry{
			Status:     string(r.Status),
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
			DurationMs: r.DurationMs,
			ErrorMsg:   r.ErrorMsg,
		}
		if r.Trace != nil {
			entry.Events = r.Trace.Events
		}
		if mrs := eval.TaskMetrics[r.TaskID]; len(mrs) > 0 {
			entry.Metrics = make(map[string]float64, len(mrs))
			for _, mr := range mrs {
				entry.Metrics[mr.Name] = mr.Value
			}
		}
		f.TaskOrder = append(f.TaskOrder, r.TaskID)
		f.Tasks[r.TaskID] = entry
	}
	return f
}
