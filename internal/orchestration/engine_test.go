package orchestration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentbench/agenteval/internal/adapters"
	"github.com/agentbench/agenteval/internal/metrics"
	"github.com/agentbench/agenteval/internal/models"
	"github.com/agentbench/agenteval/internal/trace"
)

func newTestPipeline(t *testing.T) *metrics.Pipeline {
	t.Helper()
	reg := metrics.NewRegistry()
	require.NoError(t, metrics.RegisterBuiltins(reg))
	return metrics.NewPipeline(reg, nil)
}

func TestEngine_Run(t *testing.T) {
	mock := adapters.NewMockAdapter(WithResponseText("all done"), adapters.WithMockCost(0.02))
	engine := NewEngine(mock, newTestPipeline(t))

	bench := &models.Benchmark{
		Name:    "smoke",
		Metrics: []string{"completion_rate", "token_usage"},
		Tasks: []models.Task{
			{ID: "T1", Instructions: "first", Criteria: []models.SuccessCriterion{
				{Kind: models.CriterionOutputContains, Required: true, Params: map[string]any{"value": "done"}},
			}},
			{ID: "T2", Instructions: "second", Criteria: []models.SuccessCriterion{
				{Kind: models.CriterionOutputContains, Required: true, Params: map[string]any{"value": "impossible"}},
			}},
		},
	}

	eval, err := engine.Run(context.Background(), bench)
	require.NoError(t, err)

	assert.NotEmpty(t, eval.RunID)
	assert.Equal(t, "smoke", eval.BenchmarkName)
	assert.Equal(t, "mock", eval.AdapterName)
	assert.Equal(t, []string{"T1", "T2"}, resultIDs(eval.TaskResults))

	assert.Equal(t, 2, eval.Summary.TotalTasks)
	assert.Equal(t, 1, eval.Summary.Succeeded)
	assert.Equal(t, 1, eval.Summary.Failed)
	assert.InDelta(t, 0.5, eval.Summary.SuccessRate, 1e-9)

	assert.InDelta(t, 0.5, eval.Aggregates["completion_rate"].Value, 1e-9)
	assert.Equal(t, 30.0, eval.Aggregates["token_usage"].Value)
	assert.Len(t, eval.TaskMetrics["T1"], 2)

	assert.Equal(t, models.TokenUsage{Input: 20, Output: 10}, eval.TotalUsage)
	assert.InDelta(t, 0.04, eval.TotalCost, 1e-9)

	// Cost is attributed per task, not only at the run level.
	assert.InDelta(t, 0.02, eval.TaskResults[0].Cost, 1e-9)
	assert.InDelta(t, 0.02, eval.TaskResults[1].Cost, 1e-9)
}

func TestEngine_UnknownMetricFailsBeforeExecution(t *testing.T) {
	mock := adapters.NewMockAdapter()
	engine := NewEngine(mock, newTestPipeline(t))

	bench := &models.Benchmark{
		Name:    "broken",
		Metrics: []string{"completion_rate", "does_not_exist"},
		Tasks:   simpleTasks("T1", "T2"),
	}

	_, err := engine.Run(context.Background(), bench)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does_not_exist")

	// No task ran.
	assert.Equal(t, 0, mock.Calls())
}

func TestEngine_SaveTraces(t *testing.T) {
	dir := t.TempDir()
	mock := adapters.NewMockAdapter(WithResponseText("ok"))
	engine := NewEngine(mock, newTestPipeline(t), WithTraceDir(dir))

	bench := &models.Benchmark{
		Name:    "trace me",
		Metrics: []string{"completion_rate"},
		Tasks:   simpleTasks("T1", "T2"),
		Config:  models.RunConfig{SaveTraces: true},
	}

	eval, err := engine.Run(context.Background(), bench)
	require.NoError(t, err)

	path := filepath.Join(dir, trace.Filename(bench.Name, eval.RunID))
	f, err := trace.Replay(path)
	require.NoError(t, err)

	assert.Equal(t, eval.RunID, f.RunID)
	assert.Equal(t, []string{"T1", "T2"}, f.TaskOrder)
	require.Contains(t, f.Tasks, "T1")
	assert.NotEmpty(t, f.Tasks["T1"].Events)
	assert.Contains(t, f.Tasks["T1"].Metrics, "completion_rate")
}

func TestEngine_TaskErrorsLandInRunErrors(t *testing.T) {
	mock := adapters.NewMockAdapter(adapters.WithMockResponder(
		func(_ int, messages []adapters.Message) (*adapters.Response, error) {
			if lastUser(messages) == "task T2" {
				panic("scripted failure")
			}
			return &adapters.Response{Content: "ok", Done: true}, nil
		}))
	engine := NewEngine(mock, newTestPipeline(t))

	bench := &models.Benchmark{
		Name:    "errs",
		Metrics: []string{"completion_rate"},
		Tasks:   simpleTasks("T1", "T2", "T3"),
	}

	eval, err := engine.Run(context.Background(), bench)
	require.NoError(t, err)

	assert.Equal(t, models.StatusError, eval.TaskResults[1].Status)
	require.NotEmpty(t, eval.Errors)
	assert.Equal(t, "T2", eval.Errors[0].TaskID)
	assert.Contains(t, eval.Errors[0].Message, "scripted failure")

	// The failure never reached the other tasks.
	assert.Equal(t, models.StatusSuccess, eval.TaskResults[0].Status)
	assert.Equal(t, models.StatusSuccess, eval.TaskResults[2].Status)
}
