package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentbench/agenteval/internal/trace"
)

var replayTask string

func newReplayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <trace-file>",
		Short: "Inspect a saved trace file",
		Long: `Replay a trace file written by a previous run, printing each task's
event sequence without re-executing anything.`,
		Args: cobra.ExactArgs(1),
		RunE: replayCommandE,
	}

	cmd.Flags().StringVar(&replayTask, "task", "", "Only show the named task")

	return cmd
}

func replayCommandE(cmd *cobra.Command, args []string) error {
	f, err := trace.Replay(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: benchmark %q, adapter %s, %d tasks\n\n",
		f.RunID, f.Benchmark, f.Adapter, len(f.TaskOrder))

	for _, taskID := range f.TaskOrder {
		if replayTask != "" && taskID != replayTask {
			continue
		}
		entry, ok := f.Tasks[taskID]
		if !ok {
			continue
		}
		fmt.Fprintf(out, "%s  [%s]  %.2fs\n", taskID, entry.Status, float64(entry.DurationMs)/1000.0)
		for _, ev := range entry.Events {
			fmt.Fprintf(out, "  %3d  %-12s %s\n", ev.Seq, ev.Kind, summarizePayload(ev.Payload))
		}
		if entry.ErrorMsg != "" {
			fmt.Fprintf(out, "  error: %s\n", entry.ErrorMsg)
		}
		fmt.Fprintln(out)
	}

	if replayTask != "" {
		if _, ok := f.Tasks[replayTask]; !ok {
			return fmt.Errorf("task %q not present in trace file", replayTask)
		}
	}
	return nil
}

// summarizePayload produces a one-line glimpse of an event payload.
func summarizePayload(payload map[string]any) string {
	for _, key := range []string{"name", "content", "instructions", "message"} {
		if v, ok := payload[key].(string); ok && v != "" {
			const max = 80
			if len(v) > max {
				v = v[:max] + "..."
			}
			return v
		}
	}
	return ""
}
