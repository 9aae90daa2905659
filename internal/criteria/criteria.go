// Package criteria evaluates a task's success criteria against its final
// output. Each criterion kind has its own evaluation strategy; custom_check
// criteria dispatch through a validator registry populated at startup.
package criteria

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/agentbench/agenteval/internal/models"
	"github.com/agentbench/agenteval/internal/registry"
)

// Subject is the slice of a task attempt a criterion is checked against.
type Subject struct {
	Output      string
	ToolsCalled []string
}

// ValidatorFunc is a custom_check implementation.
type ValidatorFunc func(s Subject, params map[string]any) (bool, error)

// Validators is the registry custom_check criteria resolve through.
// Registration happens at process startup, before any run.
var Validators = registry.New[ValidatorFunc]("validator")

// RegisterValidator adds a named custom validator.
func RegisterValidator(name string, fn ValidatorFunc, opts ...registry.Option) error {
	return Validators.Register(name, func(map[string]any) (ValidatorFunc, error) {
		return fn, nil
	}, opts...)
}

// KnownKind reports whether kind has an evaluation strategy. The benchmark
// loader uses this to reject malformed criteria before a run starts.
func KnownKind(kind models.CriterionKind) bool {
	switch kind {
	case models.CriterionOutputContains, models.CriterionOutputMatches,
		models.CriterionExactMatch, models.CriterionToolCalled,
		models.CriterionCustomCheck:
		return true
	}
	return false
}

// Evaluate checks one criterion against the subject. An error means the
// criterion itself could not be evaluated (bad pattern, unknown validator),
// not that it failed.
func Evaluate(c models.SuccessCriterion, s Subject) (bool, error) {
	switch c.Kind {
	case models.CriterionOutputContains:
		return evalOutputContains(c.Params, s)
	case models.CriterionOutputMatches:
		return evalOutputMatches(c.Params, s)
	case models.CriterionExactMatch:
		return evalExactMatch(c.Params, s)
	case models.CriterionToolCalled:
		return evalToolCalled(c.Params, s)
	case models.CriterionCustomCheck:
		return evalCustomCheck(c.Params, s)
	default:
		return false, fmt.Errorf("unknown criterion kind %q", c.Kind)
	}
}

// EvaluateAll evaluates every criterion and reports whether all required
// ones held. Evaluation errors are returned immediately; the caller decides
// how to surface them.
func EvaluateAll(criteria []models.SuccessCriterion, s Subject) ([]models.CriterionOutcome, bool, error) {
	outcomes := make([]models.CriterionOutcome, 0, len(criteria))
	allRequired := true
	for _, c := range criteria {
		ok, err := Evaluate(c, s)
		if err != nil {
			return nil, false, fmt.Errorf("criterion %q: %w", c.Kind, err)
		}
		outcomes = append(outcomes, models.CriterionOutcome{
			Kind:        c.Kind,
			Description: c.Description,
			Required:    c.Required,
			Satisfied:   ok,
		})
		if c.Required && !ok {
			allRequired = false
		}
	}
	return outcomes, allRequired, nil
}

func evalOutputContains(params map[string]any, s Subject) (bool, error) {
	var p struct {
		Value         string `mapstructure:"value"`
		CaseSensitive bool   `mapstructure:"case_sensitive"`
	}
	if err := mapstructure.Decode(params, &p); err != nil {
		return false, err
	}
	if p.Value == "" {
		return false, fmt.Errorf("output_contains requires a value")
	}
	if p.CaseSensitive {
		return strings.Contains(s.Output, p.Value), nil
	}
	return strings.Contains(strings.ToLower(s.Output), strings.ToLower(p.Value)), nil
}

func evalOutputMatches(params map[string]any, s Subject) (bool, error) {
	var p struct {
		Pattern string `mapstructure:"pattern"`
	}
	if err := mapstructure.Decode(params, &p); err != nil {
		return false, err
	}
	if p.Pattern == "" {
		return false, fmt.Errorf("output_matches requires a pattern")
	}
	re, err := regexp.Compile(p.Pattern)
	if err != nil {
		return false, fmt.Errorf("compiling pattern %q: %w", p.Pattern, err)
	}
	return re.MatchString(s.Output), nil
}

func evalExactMatch(params map[string]any, s Subject) (bool, error) {
	var p struct {
		Value         string `mapstructure:"value"`
		CaseSensitive bool   `mapstructure:"case_sensitive"`
		TrimSpace     bool   `mapstructure:"trim_space"`
	}
	if err := mapstructure.Decode(params, &p); err != nil {
		return false, err
	}
	got := s.Output
	want := p.Value
	if p.TrimSpace {
		got = strings.TrimSpace(got)
		want = strings.TrimSpace(want)
	}
	if p.CaseSensitive {
		return got == want, nil
	}
	return strings.EqualFold(got, want), nil
}

func evalToolCalled(params map[string]any, s Subject) (bool, error) {
	var p struct {
		Tool string `mapstructure:"tool"`
	}
	if err := mapstructure.Decode(params, &p); err != nil {
		return false, err
	}
	if p.Tool == "" {
		return false, fmt.Errorf("tool_called requires a tool name")
	}
	return slices.Contains(s.ToolsCalled, p.Tool), nil
}

func evalCustomCheck(params map[string]any, s Subject) (bool, error) {
	var p struct {
		Validator string `mapstructure:"validator"`
	}
	if err := mapstructure.Decode(params, &p); err != nil {
		return false, err
	}
	fn, err := Validators.Resolve(p.Validator, nil)
	if err != nil {
		return false, err
	}
	return fn(s, params)
}
