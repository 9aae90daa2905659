package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentbench/agenteval/internal/trace"
)

func TestTokenUsage(t *testing.T) {
	u := TokenUsage{Input: 10, Output: 5}
	assert.Equal(t, 15, u.Total())

	u.Add(TokenUsage{Input: 3, Output: 2})
	assert.Equal(t, TokenUsage{Input: 13, Output: 7}, u)
}

func TestSummarize(t *testing.T) {
	results := []TaskResult{
		{Status: StatusSuccess},
		{Status: StatusSuccess},
		{Status: StatusFailure},
		{Status: StatusTimeout},
		{Status: StatusError},
	}

	s := Summarize(results)
	assert.Equal(t, 5, s.TotalTasks)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.TimedOut)
	assert.Equal(t, 1, s.Errors)
	assert.InDelta(t, 0.4, s.SuccessRate, 1e-9)

	assert.Zero(t, Summarize(nil).SuccessRate)
}

func TestTaskResult_ToolsCalled(t *testing.T) {
	var r TaskResult
	assert.Nil(t, r.ToolsCalled())

	rec := trace.NewRecorder("T1", "mock")
	rec.Record(trace.EventToolCall, map[string]any{"name": "search"})
	rec.Record(trace.EventCompletion, map[string]any{"content": "x"})
	rec.Record(trace.EventToolCall, map[string]any{"name": "calculator"})
	tr, err := rec.Finalize()
	assert.NoError(t, err)

	r.Trace = tr
	assert.Equal(t, []string{"search", "calculator"}, r.ToolsCalled())
}

func TestBenchmark_TaskByID(t *testing.T) {
	b := Benchmark{Tasks: []Task{{ID: "T1"}, {ID: "T2"}}}

	task, ok := b.TaskByID("T2")
	assert.True(t, ok)
	assert.Equal(t, "T2", task.ID)

	_, ok = b.TaskByID("T9")
	assert.False(t, ok)
}
