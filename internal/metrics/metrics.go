// Package metrics computes per-task scores from task results and reduces
// them into run-level aggregates. Metrics are pure: they read a finished
// TaskResult and never touch the adapter or the scheduler.
package metrics

import (
	"github.com/agentbench/agenteval/internal/models"
	"github.com/agentbench/agenteval/internal/registry"
	"github.com/agentbench/agenteval/internal/statistics"
)

// Metric scores one task attempt and reduces per-task scores into a single
// run-level value. Compute errors are isolated per (task, metric) pair by the
// pipeline; Aggregate only ever sees results that computed successfully.
type Metric interface {
	Name() string
	Type() models.MetricType
	Compute(result *models.TaskResult) (models.MetricResult, error)
	Aggregate(results []models.MetricResult) models.MetricResult
}

// NewRegistry creates an empty metric registry.
func NewRegistry() *registry.Registry[Metric] {
	return registry.New[Metric]("metric")
}

// RegisterBuiltins populates reg with the builtin metrics.
func RegisterBuiltins(reg *registry.Registry[Metric], opts ...registry.Option) error {
	builtins := []struct {
		name    string
		tags    []string
		factory registry.Factory[Metric]
	}{
		{"completion_rate", []string{"success"}, func(map[string]any) (Metric, error) {
			return &CompletionRate{}, nil
		}},
		{"execution_time", []string{"efficiency"}, func(map[string]any) (Metric, error) {
			return &ExecutionTime{}, nil
		}},
		{"token_usage", []string{"efficiency"}, func(map[string]any) (Metric, error) {
			return &TokenUsage{}, nil
		}},
		{"output_accuracy", []string{"quality"}, func(map[string]any) (Metric, error) {
			return &OutputAccuracy{}, nil
		}},
		{"instruction_following", []string{"safety"}, func(map[string]any) (Metric, error) {
			return &InstructionFollowing{}, nil
		}},
	}

	for _, b := range builtins {
		regOpts := append([]registry.Option{registry.WithTags(b.tags...)}, opts...)
		if err := reg.Register(b.name, b.factory, regOpts...); err != nil {
			return err
		}
	}
	return nil
}

// values extracts the raw scores from a slice of per-task results.
func values(results []models.MetricResult) []float64 {
	out := make([]float64, len(results))
	for i, r := range results {
		out[i] = r.Value
	}
	return out
}

// aggregateMean is the default reducer for quality and safety metrics.
func aggregateMean(name string, typ models.MetricType, unit string, results []models.MetricResult) models.MetricResult {
	return models.MetricResult{
		Name:  name,
		Value: statistics.Mean(values(results)),
		Type:  typ,
		Unit:  unit,
	}
}

// CompletionRate is the fraction of tasks that finished with status success.
// Per task it scores 1 for success and 0 otherwise; the aggregate is the
// mean over all tasks, so timeouts and errors count against it.
type CompletionRate struct{}

func (CompletionRate) Name() string            { return "completion_rate" }
func (CompletionRate) Type() models.MetricType { return models.MetricSuccess }

func (m CompletionRate) Compute(result *models.TaskResult) (models.MetricResult, error) {
	score := 0.0
	if result.Succeeded() {
		score = 1.0
	}
	return models.MetricResult{
		Name:   m.Name(),
		Value:  score,
		Type:   m.Type(),
		TaskID: result.TaskID,
	}, nil
}

func (m CompletionRate) Aggregate(results []models.MetricResult) models.MetricResult {
	agg := aggregateMean(m.Name(), m.Type(), "", results)
	agg.Detail = map[string]any{"tasks": len(results)}
	// With enough tasks the rate gets a bootstrap confidence interval.
	if len(results) >= 5 {
		ci := statistics.BootstrapCI(values(results), 0.95)
		agg.Detail["ci_lower"] = ci.Lower
		agg.Detail["ci_upper"] = ci.Upper
		agg.Detail["confidence_level"] = ci.ConfidenceLevel
	}
	return agg
}

// ExecutionTime reports wall-clock seconds per task and the mean across the run.
type ExecutionTime struct{}

func (ExecutionTime) Name() string            { return "execution_time" }
func (ExecutionTime) Type() models.MetricType { return models.MetricEfficiency }

func (m ExecutionTime) Compute(result *models.TaskResult) (models.MetricResult, error) {
	return models.MetricResult{
		Name:   m.Name(),
		Value:  float64(result.DurationMs) / 1000.0,
		Type:   m.Type(),
		Unit:   "seconds",
		TaskID: result.TaskID,
	}, nil
}

func (m ExecutionTime) Aggregate(results []models.MetricResult) models.MetricResult {
	vals := values(results)
	agg := aggregateMean(m.Name(), m.Type(), "seconds", results)
	agg.Detail = map[string]any{
		"total":   statistics.Sum(vals),
		"std_dev": statistics.StdDev(vals),
	}
	return agg
}

// TokenUsage reports total tokens per task and the sum across the run.
type TokenUsage struct{}

func (TokenUsage) Name() string            { return "token_usage" }
func (TokenUsage) Type() models.MetricType { return models.MetricEfficiency }

func (m TokenUsage) Compute(result *models.TaskResult) (models.MetricResult, error) {
	return models.MetricResult{
		Name:   m.Name(),
		Value:  float64(result.Usage.Total()),
		Type:   m.Type(),
		Unit:   "tokens",
		TaskID: result.TaskID,
		Detail: map[string]any{
			"input":  result.Usage.Input,
			"output": result.Usage.Output,
		},
	}, nil
}

func (m TokenUsage) Aggregate(results []models.MetricResult) models.MetricResult {
	return models.MetricResult{
		Name:  m.Name(),
		Value: statistics.Sum(values(results)),
		Type:  m.Type(),
		Unit:  "tokens",
	}
}

// OutputAccuracy scores each task by the fraction of its success criteria
// that held. Tasks without criteria score by status instead, so they still
// contribute to the mean.
type OutputAccuracy struct{}

func (OutputAccuracy) Name() string            { return "output_accuracy" }
func (OutputAccuracy) Type() models.MetricType { return models.MetricQuality }

func (m OutputAccuracy) Compute(result *models.TaskResult) (models.MetricResult, error) {
	var score float64
	if len(result.Criteria) == 0 {
		if result.Succeeded() {
			score = 1.0
		}
	} else {
		satisfied := 0
		for _, c := range result.Criteria {
			if c.Satisfied {
				satisfied++
			}
		}
		score = float64(satisfied) / float64(len(result.Criteria))
	}
	return models.MetricResult{
		Name:   m.Name(),
		Value:  score,
		Type:   m.Type(),
		TaskID: result.TaskID,
	}, nil
}

func (m OutputAccuracy) Aggregate(results []models.MetricResult) models.MetricResult {
	return aggregateMean(m.Name(), m.Type(), "", results)
}

// InstructionFollowing scores whether the attempt stayed inside its
// instructions: required criteria held and the run ended cleanly rather than
// by error or timeout.
type InstructionFollowing struct{}

func (InstructionFollowing) Name() string            { return "instruction_following" }
func (InstructionFollowing) Type() models.MetricType { return models.MetricSafety }

func (m InstructionFollowing) Compute(result *models.TaskResult) (models.MetricResult, error) {
	score := 1.0
	if result.Status == models.StatusError || result.Status == models.StatusTimeout {
		score = 0.0
	} else {
		for _, c := range result.Criteria {
			if c.Required && !c.Satisfied {
				score = 0.0
				break
			}
		}
	}
	return models.MetricResult{
		Name:   m.Name(),
		Value:  score,
		Type:   m.Type(),
		TaskID: result.TaskID,
	}, nil
}

func (m InstructionFollowing) Aggregate(results []models.MetricResult) models.MetricResult {
	return aggregateMean(m.Name(), m.Type(), "", results)
}
