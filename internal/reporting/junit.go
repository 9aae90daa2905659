package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"github.com/agentbench/agenteval/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one benchmark run.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one benchmark task.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
}

// JUnitFailure represents a task that ran but missed its success criteria.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitError represents a task that could not complete.
type JUnitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConvertToJUnit converts an EvaluationResult to JUnit XML format. Timeouts
// count as errors with their own type so CI distinguishes them from failures.
func ConvertToJUnit(eval *models.EvaluationResult) *JUnitTestSuites {
	durationSec := float64(eval.DurationMs) / 1000.0
	errorCount := eval.Summary.Errors + eval.Summary.TimedOut

	suite := JUnitTestSuite{
		Name:      eval.BenchmarkName,
		Tests:     eval.Summary.TotalTasks,
		Failures:  eval.Summary.Failed,
		Errors:    errorCount,
		Time:      durationSec,
		Timestamp: eval.StartedAt.Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "run_id", Value: eval.RunID},
			{Name: "adapter", Value: eval.AdapterName},
			{Name: "success_rate", Value: fmt.Sprintf("%.4f", eval.Summary.SuccessRate)},
		},
	}

	for i := range eval.TaskResults {
		suite.TestCases = append(suite.TestCases, convertTaskResult(eval.BenchmarkName, &eval.TaskResults[i]))
	}

	return &JUnitTestSuites{
		Tests:      eval.Summary.TotalTasks,
		Failures:   eval.Summary.Failed,
		Errors:     errorCount,
		Time:       durationSec,
		TestSuites: []JUnitTestSuite{suite},
	}
}

func convertTaskResult(benchmark string, r *models.TaskResult) JUnitTestCase {
	tc := JUnitTestCase{
		Name:      r.TaskID,
		Classname: benchmark,
		Time:      float64(r.DurationMs) / 1000.0,
	}

	switch r.Status {
	case models.StatusFailure:
		tc.Failure = &JUnitFailure{
			Message: fmt.Sprintf("%s: success criteria not met", r.TaskID),
			Type:    "CriteriaFailure",
			Body:    formatMissedCriteria(r.Criteria),
		}
	case models.StatusTimeout:
		tc.Error = &JUnitError{
			Message: fmt.Sprintf("%s timed out after %dms", r.TaskID, r.DurationMs),
			Type:    "Timeout",
		}
	case models.StatusError:
		msg := r.ErrorMsg
		if msg == "" {
			msg = "execution error"
		}
		tc.Error = &JUnitError{
			Message: msg,
			Type:    "ExecutionError",
		}
	}

	return tc
}

func formatMissedCriteria(outcomes []models.CriterionOutcome) string {
	var result string
	for _, o := range outcomes {
		if o.Satisfied {
			continue
		}
		label := "optional"
		if o.Required {
			label = "required"
		}
		result += fmt.Sprintf("[MISS] %s (%s) %s\n", o.Kind, label, o.Description)
	}
	return result
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(eval *models.EvaluationResult, path string) error {
	suites := ConvertToJUnit(eval)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return os.WriteFile(path, output, 0644)
}
