package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentbench/agenteval/internal/models"
	"github.com/agentbench/agenteval/internal/registry"
)

func newTestRegistry(t *testing.T) *registry.Registry[Metric] {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg))
	return reg
}

func TestCompletionRate(t *testing.T) {
	// T1 succeeds, T2 fails its criteria, T3 times out.
	results := []models.TaskResult{
		{TaskID: "T1", Status: models.StatusSuccess},
		{TaskID: "T2", Status: models.StatusFailure},
		{TaskID: "T3", Status: models.StatusTimeout},
	}

	var m CompletionRate
	perTask := make([]models.MetricResult, 0, len(results))
	for i := range results {
		mr, err := m.Compute(&results[i])
		require.NoError(t, err)
		perTask = append(perTask, mr)
	}

	assert.Equal(t, 1.0, perTask[0].Value)
	assert.Equal(t, 0.0, perTask[1].Value)
	assert.Equal(t, 0.0, perTask[2].Value)

	agg := m.Aggregate(perTask)
	assert.InDelta(t, 1.0/3.0, agg.Value, 1e-9)
	assert.Equal(t, models.MetricSuccess, agg.Type)
}

func TestExecutionTime(t *testing.T) {
	var m ExecutionTime

	mr, err := m.Compute(&models.TaskResult{TaskID: "T1", DurationMs: 2500})
	require.NoError(t, err)
	assert.Equal(t, 2.5, mr.Value)
	assert.Equal(t, "seconds", mr.Unit)

	agg := m.Aggregate([]models.MetricResult{{Value: 2.0}, {Value: 4.0}})
	assert.Equal(t, 3.0, agg.Value)
	assert.Equal(t, 6.0, agg.Detail["total"])
}

func TestTokenUsage(t *testing.T) {
	var m TokenUsage

	mr, err := m.Compute(&models.TaskResult{
		TaskID: "T1",
		Usage:  models.TokenUsage{Input: 100, Output: 40},
	})
	require.NoError(t, err)
	assert.Equal(t, 140.0, mr.Value)

	agg := m.Aggregate([]models.MetricResult{{Value: 140}, {Value: 60}})
	assert.Equal(t, 200.0, agg.Value)
	assert.Equal(t, "tokens", agg.Unit)
}

func TestOutputAccuracy(t *testing.T) {
	var m OutputAccuracy

	// 3 of 4 criteria held.
	mr, err := m.Compute(&models.TaskResult{
		TaskID: "T1",
		Criteria: []models.CriterionOutcome{
			{Satisfied: true},
			{Satisfied: true},
			{Satisfied: true},
			{Satisfied: false},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.75, mr.Value)

	// No criteria: score falls back to status.
	mr, err = m.Compute(&models.TaskResult{TaskID: "T2", Status: models.StatusSuccess})
	require.NoError(t, err)
	assert.Equal(t, 1.0, mr.Value)
}

func TestInstructionFollowing(t *testing.T) {
	var m InstructionFollowing

	tests := []struct {
		name   string
		result models.TaskResult
		want   float64
	}{
		{
			name:   "clean success",
			result: models.TaskResult{Status: models.StatusSuccess},
			want:   1.0,
		},
		{
			name: "required criterion missed",
			result: models.TaskResult{
				Status:   models.StatusFailure,
				Criteria: []models.CriterionOutcome{{Required: true, Satisfied: false}},
			},
			want: 0.0,
		},
		{
			name: "optional criterion missed",
			result: models.TaskResult{
				Status:   models.StatusSuccess,
				Criteria: []models.CriterionOutcome{{Required: false, Satisfied: false}},
			},
			want: 1.0,
		},
		{
			name:   "timeout",
			result: models.TaskResult{Status: models.StatusTimeout},
			want:   0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr, err := m.Compute(&tt.result)
			require.NoError(t, err)
			assert.Equal(t, tt.want, mr.Value)
		})
	}
}

func TestPipeline_ResolveUnknownMetric(t *testing.T) {
	p := NewPipeline(newTestRegistry(t), nil)

	_, err := p.Resolve([]string{"completion_rate", "vibes"})
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.Contains(t, err.Error(), "vibes")
}

func TestPipeline_Score(t *testing.T) {
	p := NewPipeline(newTestRegistry(t), nil)
	resolved, err := p.Resolve([]string{"completion_rate", "execution_time"})
	require.NoError(t, err)

	results := []models.TaskResult{
		{TaskID: "T1", Status: models.StatusSuccess, DurationMs: 1000},
		{TaskID: "T2", Status: models.StatusSuccess, DurationMs: 3000},
		{TaskID: "T3", Status: models.StatusError, DurationMs: 500},
	}

	taskMetrics, aggregates, runErrors := p.Score(resolved, results)

	assert.Empty(t, runErrors)
	assert.Len(t, taskMetrics, 3)
	assert.Len(t, taskMetrics["T1"], 2)

	assert.InDelta(t, 2.0/3.0, aggregates["completion_rate"].Value, 1e-9)
	assert.InDelta(t, 1.5, aggregates["execution_time"].Value, 1e-9)
}

type faultyMetric struct{}

func (faultyMetric) Name() string            { return "faulty" }
func (faultyMetric) Type() models.MetricType { return models.MetricQuality }

func (faultyMetric) Compute(result *models.TaskResult) (models.MetricResult, error) {
	if result.TaskID == "T2" {
		return models.MetricResult{}, errors.New("cannot score this task")
	}
	return models.MetricResult{Name: "faulty", Value: 1.0, TaskID: result.TaskID}, nil
}

func (m faultyMetric) Aggregate(results []models.MetricResult) models.MetricResult {
	return aggregateMean(m.Name(), m.Type(), "", results)
}

func TestPipeline_ScoreIsolatesMetricErrors(t *testing.T) {
	p := NewPipeline(newTestRegistry(t), nil)

	results := []models.TaskResult{
		{TaskID: "T1", Status: models.StatusSuccess},
		{TaskID: "T2", Status: models.StatusSuccess},
		{TaskID: "T3", Status: models.StatusSuccess},
	}

	taskMetrics, aggregates, runErrors := p.Score([]Metric{faultyMetric{}}, results)

	require.Len(t, runErrors, 1)
	assert.Equal(t, "T2", runErrors[0].TaskID)
	assert.Equal(t, "faulty", runErrors[0].Metric)

	// T2 is excluded from the aggregate; the others still count.
	assert.NotContains(t, taskMetrics, "T2")
	assert.Equal(t, 1.0, aggregates["faulty"].Value)
}
