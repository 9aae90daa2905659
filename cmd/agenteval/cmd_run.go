package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentbench/agenteval/internal/adapters"
	"github.com/agentbench/agenteval/internal/benchmark"
	"github.com/agentbench/agenteval/internal/config"
	"github.com/agentbench/agenteval/internal/metrics"
	"github.com/agentbench/agenteval/internal/models"
	"github.com/agentbench/agenteval/internal/orchestration"
	"github.com/agentbench/agenteval/internal/reporting"
	"github.com/agentbench/agenteval/internal/store"
)

var (
	adapterName string
	modelName   string
	parallel    bool
	workers     int
	timeoutSec  int
	traceDir    string
	saveTraces  bool
	outputPath  string
	format      string
	taskFilters []string
	tagFilters  []string
	saveHistory bool
	verbose     bool
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <suite.yaml>",
		Short: "Run a benchmark suite",
		Long: `Run a benchmark suite against an agent adapter.

The suite file defines tasks, success criteria and the metric selection.
Adapter and execution settings come from AGENTEVAL_* environment variables
and can be overridden per run with flags.`,
		Args: cobra.ExactArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringVarP(&adapterName, "adapter", "a", "", "Adapter to run against (anthropic, openai, mock)")
	cmd.Flags().StringVarP(&modelName, "model", "m", "", "Model identifier passed to the adapter")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Run tasks concurrently")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of concurrent workers (requires --parallel)")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 0, "Per-task timeout in seconds")
	cmd.Flags().StringVar(&traceDir, "trace-dir", "", "Directory for trace files")
	cmd.Flags().BoolVar(&saveTraces, "save-traces", false, "Write a trace file for this run")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file for results")
	cmd.Flags().StringVar(&format, "format", "console", "Output format: console, json, junit")
	cmd.Flags().StringArrayVar(&taskFilters, "task", nil, "Run only the named task ids (can be repeated)")
	cmd.Flags().StringArrayVar(&tagFilters, "tag", nil, "Run only tasks carrying one of these tags (can be repeated)")
	cmd.Flags().BoolVar(&saveHistory, "history", false, "Record the run in the history database")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print per-task progress")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}

	bench, err := benchmark.Load(args[0])
	if err != nil {
		return err
	}

	bench = benchmark.FilterTasks(bench, taskFilters, tagFilters)
	if len(bench.Tasks) == 0 {
		return fmt.Errorf("no tasks match the given filters")
	}

	applyOverrides(&bench.Config, settings)

	adapter, err := buildAdapter(settings)
	if err != nil {
		return err
	}

	metricReg := metrics.NewRegistry()
	if err := metrics.RegisterBuiltins(metricReg); err != nil {
		return err
	}
	pipeline := metrics.NewPipeline(metricReg, nil)

	dir := settings.TraceDir
	if traceDir != "" {
		dir = traceDir
	}
	engineOpts := []orchestration.EngineOption{orchestration.WithTraceDir(dir)}
	if verbose {
		engineOpts = append(engineOpts, orchestration.WithEngineProgressListener(func(ev orchestration.ProgressEvent) {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s: %s (%.2fs)\n",
				ev.Index+1, ev.Total, ev.TaskID, ev.Status, float64(ev.DurationMs)/1000.0)
		}))
	}

	engine := orchestration.NewEngine(adapter, pipeline, engineOpts...)
	eval, err := engine.Run(cmd.Context(), bench)
	if err != nil {
		return err
	}

	if saveHistory {
		if err := recordHistory(settings.HistoryDB, eval); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
	}

	if err := writeResult(eval); err != nil {
		return err
	}

	if failed := eval.Summary.TotalTasks - eval.Summary.Succeeded; failed > 0 {
		return &TaskFailureError{
			Message: fmt.Sprintf("%d of %d tasks did not succeed", failed, eval.Summary.TotalTasks),
		}
	}
	return nil
}

// applyOverrides layers CLI flags over the suite's run config. Flags win
// only when set; the suite keeps its own defaults otherwise.
func applyOverrides(cfg *models.RunConfig, settings config.Settings) {
	if parallel || settings.Parallel {
		cfg.Parallel = true
	}
	if workers > 0 {
		cfg.MaxConcurrency = workers
	} else if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = settings.MaxConcurrency
	}
	if timeoutSec > 0 {
		cfg.TimeoutSec = timeoutSec
	} else if cfg.TimeoutSec == 0 {
		cfg.TimeoutSec = settings.TimeoutSec
	}
	if saveTraces {
		cfg.SaveTraces = true
	}
}

func buildAdapter(settings config.Settings) (adapters.Adapter, error) {
	name := settings.Adapter
	if adapterName != "" {
		name = adapterName
	}
	model := settings.Model
	if modelName != "" {
		model = modelName
	}

	reg := adapters.NewRegistry()
	if err := adapters.RegisterBuiltins(reg); err != nil {
		return nil, err
	}
	return reg.Resolve(name, map[string]any{
		"api_key": settings.APIKeyFor(name),
		"model":   model,
	})
}

func recordHistory(dbPath string, eval *models.EvaluationResult) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.SaveRun(eval)
}

func writeResult(eval *models.EvaluationResult) error {
	switch format {
	case "console":
		out := os.Stdout
		if outputPath != "" {
			f, err := os.Create(outputPath)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return reporting.WriteConsole(out, eval)
	case "json":
		if outputPath != "" {
			return reporting.WriteJSONFile(eval, outputPath)
		}
		return reporting.WriteJSON(os.Stdout, eval)
	case "junit":
		if outputPath == "" {
			return fmt.Errorf("--format junit requires --output")
		}
		return reporting.WriteJUnitXML(eval, outputPath)
	default:
		return fmt.Errorf("unknown format %q (expected console, json or junit)", format)
	}
}
