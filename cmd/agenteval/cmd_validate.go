package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentbench/agenteval/internal/benchmark"
	"github.com/agentbench/agenteval/internal/metrics"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <suite.yaml>",
		Short: "Validate a benchmark suite without running it",
		Long: `Validate a benchmark suite: schema conformance, unique task ids,
known criterion kinds and a resolvable metric selection.`,
		Args: cobra.ExactArgs(1),
		RunE: validateCommandE,
	}
}

func validateCommandE(cmd *cobra.Command, args []string) error {
	bench, err := benchmark.Load(args[0])
	if err != nil {
		return err
	}

	metricReg := metrics.NewRegistry()
	if err := metrics.RegisterBuiltins(metricReg); err != nil {
		return err
	}
	if _, err := metrics.NewPipeline(metricReg, nil).Resolve(bench.Metrics); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d tasks, %d metrics, ok\n",
		bench.Name, len(bench.Tasks), len(bench.Metrics))
	return nil
}
