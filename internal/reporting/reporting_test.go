package reporting

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentbench/agenteval/internal/models"
)

func sampleResult() *models.EvaluationResult {
	results := []models.TaskResult{
		{TaskID: "T1", Status: models.StatusSuccess, DurationMs: 1200, Turns: 2, Usage: models.TokenUsage{Input: 1000, Output: 500}},
		{TaskID: "T2", Status: models.StatusFailure, DurationMs: 800, Turns: 1, Criteria: []models.CriterionOutcome{
			{Kind: models.CriterionOutputContains, Required: true, Satisfied: false, Description: "mentions the total"},
		}},
		{TaskID: "T3", Status: models.StatusTimeout, DurationMs: 30000},
		{TaskID: "T4", Status: models.StatusError, ErrorMsg: "provider exploded"},
	}
	return &models.EvaluationResult{
		RunID:         "run-xyz",
		BenchmarkName: "web-tasks",
		AdapterName:   "mock",
		StartedAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		DurationMs:    32000,
		TaskResults:   results,
		Aggregates: map[string]models.MetricResult{
			"completion_rate": {Name: "completion_rate", Value: 0.25, Type: models.MetricSuccess},
		},
		Summary:    models.Summarize(results),
		TotalUsage: models.TokenUsage{Input: 1000, Output: 500},
		TotalCost:  0.0321,
	}
}

func TestWriteConsole(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteConsole(&buf, sampleResult()))
	out := buf.String()

	assert.Contains(t, out, "web-tasks")
	assert.Contains(t, out, "T1")
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "TIME")
	assert.Contains(t, out, "completion_rate")
	assert.Contains(t, out, "4 tasks: 1 passed, 1 failed, 1 timed out, 1 errors")
	// Grouped number formatting.
	assert.Contains(t, out, "1,000 in / 500 out")
	assert.Contains(t, out, "$0.0321")
	assert.Contains(t, out, "provider exploded")
}

func TestWriteJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleResult()))

	var decoded models.EvaluationResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "run-xyz", decoded.RunID)
	require.Len(t, decoded.TaskResults, 4)
	assert.Equal(t, models.StatusTimeout, decoded.TaskResults[2].Status)
	assert.InDelta(t, 0.25, decoded.Aggregates["completion_rate"].Value, 1e-9)
}

func TestConvertToJUnit(t *testing.T) {
	suites := ConvertToJUnit(sampleResult())

	assert.Equal(t, 4, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	// Timeout and error both count as errors.
	assert.Equal(t, 2, suites.Errors)

	require.Len(t, suites.TestSuites, 1)
	suite := suites.TestSuites[0]
	require.Len(t, suite.TestCases, 4)

	assert.Nil(t, suite.TestCases[0].Failure)
	assert.Nil(t, suite.TestCases[0].Error)

	require.NotNil(t, suite.TestCases[1].Failure)
	assert.Equal(t, "CriteriaFailure", suite.TestCases[1].Failure.Type)
	assert.Contains(t, suite.TestCases[1].Failure.Body, "output_contains")

	require.NotNil(t, suite.TestCases[2].Error)
	assert.Equal(t, "Timeout", suite.TestCases[2].Error.Type)

	require.NotNil(t, suite.TestCases[3].Error)
	assert.Equal(t, "ExecutionError", suite.TestCases[3].Error.Type)
	assert.Equal(t, "provider exploded", suite.TestCases[3].Error.Message)
}

func TestWriteJUnitXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junit.xml")
	require.NoError(t, WriteJUnitXML(sampleResult(), path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(raw, &suites))
	assert.Equal(t, 4, suites.Tests)
}
