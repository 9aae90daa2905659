package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentbench/agenteval/internal/config"
	"github.com/agentbench/agenteval/internal/store"
)

var (
	historyBenchmark string
	historyLimit     int
)

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded benchmark runs",
		RunE:  historyCommandE,
	}

	cmd.Flags().StringVar(&historyBenchmark, "benchmark", "", "Only show runs of this benchmark")
	cmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to show")

	return cmd
}

func historyCommandE(cmd *cobra.Command, args []string) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}

	s, err := store.Open(settings.HistoryDB)
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.ListRuns(historyBenchmark, historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no recorded runs")
		return nil
	}

	fmt.Fprintf(out, "%-36s  %-20s  %-10s  %-19s  %7s  %9s\n",
		"RUN", "BENCHMARK", "ADAPTER", "STARTED", "PASS", "COST")
	for _, r := range runs {
		fmt.Fprintf(out, "%-36s  %-20s  %-10s  %-19s  %3d/%-3d  $%8.4f\n",
			r.RunID, r.Benchmark, r.Adapter,
			r.StartedAt.Local().Format(time.DateTime),
			r.Succeeded, r.TotalTasks, r.TotalCost)
	}
	return nil
}
