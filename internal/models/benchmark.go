package models

// Benchmark is an ordered, named collection of tasks plus the metric
// selection for a run. It is immutable once loaded; the engine only reads it.
type Benchmark struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Version     string    `json:"version,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Tasks       []Task    `json:"tasks"`
	Metrics     []string  `json:"metrics"`
	Config      RunConfig `json:"config"`
}

// RunConfig controls execution behavior for a benchmark run.
type RunConfig struct {
	Parallel       bool `json:"parallel"`
	MaxConcurrency int  `json:"max_concurrency,omitempty"`
	TimeoutSec     int  `json:"timeout_seconds,omitempty"`
	RunTimeoutSec  int  `json:"run_timeout_seconds,omitempty"`
	MaxTurns       int  `json:"max_turns,omitempty"`
	SaveTraces     bool `json:"save_traces,omitempty"`
	StopOnFailure  bool `json:"stop_on_failure,omitempty"`
}

// Task is one unit of work an agent must attempt. The ID is unique within a
// Benchmark and task order in Benchmark.Tasks is the canonical output order.
type Task struct {
	ID            string             `json:"id"`
	Instructions  string             `json:"instructions"`
	SystemMessage string             `json:"system_message,omitempty"`
	Tags          []string           `json:"tags,omitempty"`
	Tools         []string           `json:"tools,omitempty"`
	ToolDefs      []ToolDefinition   `json:"tool_definitions,omitempty"`
	Criteria      []SuccessCriterion `json:"success_criteria,omitempty"`
	TimeoutSec    int                `json:"timeout_seconds,omitempty"`
	MaxTurns      int                `json:"max_turns,omitempty"`
	Weight        float64            `json:"weight,omitempty"`
}

// ToolDefinition describes a tool made available to the agent for a task.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// CriterionKind identifies how a success criterion is evaluated.
type CriterionKind string

const (
	CriterionOutputContains CriterionKind = "output_contains"
	CriterionOutputMatches  CriterionKind = "output_matches"
	CriterionExactMatch     CriterionKind = "exact_match"
	CriterionToolCalled     CriterionKind = "tool_called"
	CriterionCustomCheck    CriterionKind = "custom_check"
)

// SuccessCriterion is a typed predicate evaluated against a task's final
// output. Kind selects the evaluation strategy; Params carries kind-specific
// arguments (expected value, regex pattern, tool name, validator name).
type SuccessCriterion struct {
	Kind        CriterionKind  `json:"type"`
	Description string         `json:"description,omitempty"`
	Required    bool           `json:"required"`
	Params      map[string]any `json:"params,omitempty"`
}

// TaskByID returns the task with the given id, or false when absent.
func (b *Benchmark) TaskByID(id string) (Task, bool) {
	for _, t := range b.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}
