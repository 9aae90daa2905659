package metrics

import (
	"fmt"
	"log/slog"

	"github.com/agentbench/agenteval/internal/models"
	"github.com/agentbench/agenteval/internal/registry"
)

// Pipeline resolves a benchmark's metric names against a registry and scores
// finished task results. Resolution happens before any task runs so that an
// unknown metric name fails the run up front instead of after the work.
type Pipeline struct {
	registry *registry.Registry[Metric]
	logger   *slog.Logger
}

// NewPipeline creates a pipeline over the given metric registry.
func NewPipeline(reg *registry.Registry[Metric], logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{registry: reg, logger: logger}
}

// Resolve instantiates the named metrics. Any unknown name is a
// configuration error; nothing is partially resolved.
func (p *Pipeline) Resolve(names []string) ([]Metric, error) {
	resolved := make([]Metric, 0, len(names))
	for _, name := range names {
		m, err := p.registry.Resolve(name, nil)
		if err != nil {
			return nil, fmt.Errorf("resolving metric %q: %w", name, err)
		}
		resolved = append(resolved, m)
	}
	return resolved, nil
}

// Score computes every resolved metric for every task result and reduces the
// per-task values into run aggregates. A metric that fails on one task is
// recorded as a RunError for that (task, metric) pair and excluded from that
// metric's aggregate; all other pairs still compute.
func (p *Pipeline) Score(metrics []Metric, results []models.TaskResult) (map[string][]models.MetricResult, map[string]models.MetricResult, []models.RunError) {
	taskMetrics := make(map[string][]models.MetricResult, len(results))
	aggregates := make(map[string]models.MetricResult, len(metrics))
	var runErrors []models.RunError

	for _, metric := range metrics {
		perTask := make([]models.MetricResult, 0, len(results))
		for i := range results {
			result := &results[i]
			mr, err := metric.Compute(result)
			if err != nil {
				p.logger.Warn("metric computation failed",
					"metric", metric.Name(),
					"task", result.TaskID,
					"error", err)
				runErrors = append(runErrors, models.RunError{
					TaskID:  result.TaskID,
					Metric:  metric.Name(),
					Message: err.Error(),
				})
				continue
			}
			perTask = append(perTask, mr)
			taskMetrics[result.TaskID] = append(taskMetrics[result.TaskID], mr)
		}
		aggregates[metric.Name()] = metric.Aggregate(perTask)
	}

	return taskMetrics, aggregates, runErrors
}
