package models

import (
	"time"

	"github.com/agentbench/agenteval/internal/trace"
)

// Status is the outcome status of one task attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
)

// MetricType categorizes a metric and selects its default aggregation.
type MetricType string

const (
	MetricSuccess    MetricType = "success"
	MetricEfficiency MetricType = "efficiency"
	MetricQuality    MetricType = "quality"
	MetricSafety     MetricType = "safety"
)

// TokenUsage tracks input/output token counts.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Total returns the combined token count.
func (u TokenUsage) Total() int { return u.Input + u.Output }

// Add accumulates another usage into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.Input += other.Input
	u.Output += other.Output
}

// CriterionOutcome records whether one success criterion held.
type CriterionOutcome struct {
	Kind        CriterionKind `json:"type"`
	Description string        `json:"description,omitempty"`
	Required    bool          `json:"required"`
	Satisfied   bool          `json:"satisfied"`
	ErrorMsg    string        `json:"error_msg,omitempty"`
}

// TaskResult is the outcome of exactly one task attempt. It is created once
// by the task runner and immutable afterwards; its Trace belongs to it
// exclusively.
type TaskResult struct {
	TaskID     string             `json:"task_id"`
	Status     Status             `json:"status"`
	Output     string             `json:"output,omitempty"`
	Trace      *trace.Trace       `json:"trace,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	DurationMs int64              `json:"duration_ms"`
	Turns      int                `json:"turns"`
	Usage      TokenUsage         `json:"token_usage"`
	Cost       float64            `json:"cost"`
	Criteria   []CriterionOutcome `json:"criteria,omitempty"`
	ErrorMsg   string             `json:"error_msg,omitempty"`
}

// Succeeded reports whether the attempt completed and passed its criteria.
func (r *TaskResult) Succeeded() bool { return r.Status == StatusSuccess }

// ToolsCalled returns the names of tools invoked during the attempt, in
// call order, extracted from the trace.
func (r *TaskResult) ToolsCalled() []string {
	if r.Trace == nil {
		return nil
	}
	var names []string
	for _, ev := range r.Trace.Events {
		if ev.Kind != trace.EventToolCall {
			continue
		}
		if name, ok := ev.Payload["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names
}

// MetricResult is one computed metric value, either for a single task
// (TaskID set) or aggregated across the run (TaskID empty).
type MetricResult struct {
	Name   string         `json:"name"`
	Value  float64        `json:"value"`
	Type   MetricType     `json:"metric_type"`
	Unit   string         `json:"unit,omitempty"`
	TaskID string         `json:"task_id,omitempty"`
	Detail map[string]any `json:"detail,omitempty"`
}

// RunError records a non-fatal failure captured during a run: a task-level
// execution error or a per-(task, metric) computation error.
type RunError struct {
	TaskID  string `json:"task_id"`
	Metric  string `json:"metric,omitempty"`
	Message string `json:"message"`
}

// Summary holds run-level counts derived from the task results.
type Summary struct {
	TotalTasks  int     `json:"total_tasks"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	TimedOut    int     `json:"timed_out"`
	Errors      int     `json:"errors"`
	SuccessRate float64 `json:"success_rate"`
}

// EvaluationResult is the terminal artifact of a benchmark run. TaskResults
// always appear in benchmark declaration order, independent of completion
// order, and contain exactly one entry per benchmark task.
type EvaluationResult struct {
	RunID         string                    `json:"run_id"`
	BenchmarkName string                    `json:"benchmark"`
	AdapterName   string                    `json:"adapter"`
	StartedAt     time.Time                 `json:"started_at"`
	FinishedAt    time.Time                 `json:"finished_at"`
	DurationMs    int64                     `json:"duration_ms"`
	TaskResults   []TaskResult              `json:"task_results"`
	TaskMetrics   map[string][]MetricResult `json:"task_metrics,omitempty"`
	Aggregates    map[string]MetricResult   `json:"aggregates"`
	Summary       Summary                   `json:"summary"`
	Errors        []RunError                `json:"errors,omitempty"`
	TotalUsage    TokenUsage                `json:"total_token_usage"`
	TotalCost     float64                   `json:"total_cost"`
}

// Summarize computes run-level counts from a slice of task results.
func Summarize(results []TaskResult) Summary {
	s := Summary{TotalTasks: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			s.Succeeded++
		case StatusFailure:
			s.Failed++
		case StatusTimeout:
			s.TimedOut++
		case StatusError:
			s.Errors++
		}
	}
	if s.TotalTasks > 0 {
		s.SuccessRate = float64(s.Succeeded) / float64(s.TotalTasks)
	}
	return s
}
