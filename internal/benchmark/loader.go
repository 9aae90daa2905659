// Package benchmark loads and validates benchmark suites from YAML. A suite
// file declares tasks inline, references task files by glob, or both; every
// document is checked against an embedded JSON schema before it becomes a
// models.Benchmark.
package benchmark

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/agentbench/agenteval/internal/criteria"
	"github.com/agentbench/agenteval/internal/models"
)

//go:embed benchmark.schema.json
var benchmarkSchemaJSON []byte

//go:embed task.schema.json
var taskSchemaJSON []byte

// DefaultMetrics is applied when a suite declares no metric selection.
var DefaultMetrics = []string{"completion_rate"}

type suiteDoc struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Version     string       `yaml:"version"`
	Tags        []string     `yaml:"tags"`
	Metrics     []string     `yaml:"metrics"`
	Config      runConfigDoc `yaml:"config"`
	Tasks       []taskDoc    `yaml:"tasks"`
	TaskFiles   []string     `yaml:"task_files"`
}

type runConfigDoc struct {
	Parallel       bool `yaml:"parallel"`
	MaxConcurrency int  `yaml:"max_concurrency"`
	TimeoutSec     int  `yaml:"timeout_seconds"`
	RunTimeoutSec  int  `yaml:"run_timeout_seconds"`
	MaxTurns       int  `yaml:"max_turns"`
	SaveTraces     bool `yaml:"save_traces"`
	StopOnFailure  bool `yaml:"stop_on_failure"`
}

type taskDoc struct {
	ID            string         `yaml:"id"`
	Instructions  string         `yaml:"instructions"`
	SystemMessage string         `yaml:"system_message"`
	Tags          []string       `yaml:"tags"`
	Tools         []string       `yaml:"tools"`
	ToolDefs      []toolDefDoc   `yaml:"tool_definitions"`
	Criteria      []criterionDoc `yaml:"success_criteria"`
	TimeoutSec    int            `yaml:"timeout_seconds"`
	MaxTurns      int            `yaml:"max_turns"`
	Weight        float64        `yaml:"weight"`
}

type toolDefDoc struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Parameters  map[string]any `yaml:"parameters"`
}

type criterionDoc struct {
	Type        string         `yaml:"type"`
	Description string         `yaml:"description"`
	Required    bool           `yaml:"required"`
	Params      map[string]any `yaml:"params"`
}

var schemas = mustCompileSchemas()

type schemaSet struct {
	suite *jsonschema.Schema
	task  *jsonschema.Schema
}

func mustCompileSchemas() schemaSet {
	compiler := jsonschema.NewCompiler()
	for name, raw := range map[string][]byte{
		"benchmark.schema.json": benchmarkSchemaJSON,
		"task.schema.json":      taskSchemaJSON,
	} {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			panic(fmt.Sprintf("parsing embedded schema %s: %v", name, err))
		}
		if err := compiler.AddResource(name, doc); err != nil {
			panic(fmt.Sprintf("adding embedded schema %s: %v", name, err))
		}
	}
	suite, err := compiler.Compile("benchmark.schema.json")
	if err != nil {
		panic(fmt.Sprintf("compiling benchmark schema: %v", err))
	}
	task, err := compiler.Compile("task.schema.json")
	if err != nil {
		panic(fmt.Sprintf("compiling task schema: %v", err))
	}
	return schemaSet{suite: suite, task: task}
}

// validateAgainst checks raw YAML bytes against a compiled schema. The YAML
// is round-tripped through JSON so the validator sees JSON-typed values.
func validateAgainst(schema *jsonschema.Schema, raw []byte, source string) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", source, err)
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalizing %s: %w", source, err)
	}
	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("normalizing %s: %w", source, err)
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("validating %s: %w", source, err)
	}
	return nil
}

// Load reads a suite file, resolves its task file globs relative to the
// suite's directory, validates everything and returns the benchmark.
func Load(path string) (*models.Benchmark, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite: %w", err)
	}
	if err := validateAgainst(schemas.suite, raw, path); err != nil {
		return nil, err
	}

	var doc suiteDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	bench := &models.Benchmark{
		Name:        doc.Name,
		Description: doc.Description,
		Version:     doc.Version,
		Tags:        doc.Tags,
		Metrics:     doc.Metrics,
		Config: models.RunConfig{
			Parallel:       doc.Config.Parallel,
			MaxConcurrency: doc.Config.MaxConcurrency,
			TimeoutSec:     doc.Config.TimeoutSec,
			RunTimeoutSec:  doc.Config.RunTimeoutSec,
			MaxTurns:       doc.Config.MaxTurns,
			SaveTraces:     doc.Config.SaveTraces,
			StopOnFailure:  doc.Config.StopOnFailure,
		},
	}
	if len(bench.Metrics) == 0 {
		bench.Metrics = append([]string(nil), DefaultMetrics...)
	}

	for _, td := range doc.Tasks {
		bench.Tasks = append(bench.Tasks, td.toModel())
	}

	taskPaths, err := resolveTaskFiles(filepath.Dir(path), doc.TaskFiles)
	if err != nil {
		return nil, err
	}
	for _, tp := range taskPaths {
		task, err := LoadTask(tp)
		if err != nil {
			return nil, err
		}
		bench.Tasks = append(bench.Tasks, task)
	}

	if err := Validate(bench); err != nil {
		return nil, fmt.Errorf("suite %s: %w", path, err)
	}
	return bench, nil
}

// LoadTask reads and validates a single task file.
func LoadTask(path string) (models.Task, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.Task{}, fmt.Errorf("reading task: %w", err)
	}
	if err := validateAgainst(schemas.task, raw, path); err != nil {
		return models.Task{}, err
	}

	var doc taskDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return models.Task{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc.toModel(), nil
}

func (td taskDoc) toModel() models.Task {
	task := models.Task{
		ID:            td.ID,
		Instructions:  td.Instructions,
		SystemMessage: td.SystemMessage,
		Tags:          td.Tags,
		Tools:         td.Tools,
		TimeoutSec:    td.TimeoutSec,
		MaxTurns:      td.MaxTurns,
		Weight:        td.Weight,
	}
	for _, d := range td.ToolDefs {
		task.ToolDefs = append(task.ToolDefs, models.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	}
	for _, c := range td.Criteria {
		task.Criteria = append(task.Criteria, models.SuccessCriterion{
			Kind:        models.CriterionKind(c.Type),
			Description: c.Description,
			Required:    c.Required,
			Params:      c.Params,
		})
	}
	return task
}

// resolveTaskFiles expands globs relative to the suite directory. Matches
// are sorted so task order stays stable across filesystems.
func resolveTaskFiles(dir string, globs []string) ([]string, error) {
	var paths []string
	for _, g := range globs {
		pattern := g
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(dir, pattern)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad task glob %q: %w", g, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("task glob %q matched no files", g)
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	return paths, nil
}

// Validate checks the structural rules a schema cannot express: at least one
// task, unique non-empty task ids, and known criterion kinds.
func Validate(bench *models.Benchmark) error {
	if len(bench.Tasks) == 0 {
		return fmt.Errorf("benchmark %q has no tasks", bench.Name)
	}

	seen := make(map[string]struct{}, len(bench.Tasks))
	for _, task := range bench.Tasks {
		if task.ID == "" {
			return fmt.Errorf("benchmark %q contains a task without an id", bench.Name)
		}
		if _, dup := seen[task.ID]; dup {
			return fmt.Errorf("duplicate task id %q", task.ID)
		}
		seen[task.ID] = struct{}{}

		for _, c := range task.Criteria {
			if !criteria.KnownKind(c.Kind) {
				return fmt.Errorf("task %q: unknown criterion kind %q", task.ID, c.Kind)
			}
		}
	}
	return nil
}
