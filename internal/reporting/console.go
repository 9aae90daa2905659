// Package reporting renders evaluation results for people and machines:
// console tables, result JSON and JUnit XML for CI.
package reporting

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/agentbench/agenteval/internal/models"
)

var statusMarks = map[models.Status]string{
	models.StatusSuccess: "PASS",
	models.StatusFailure: "FAIL",
	models.StatusTimeout: "TIME",
	models.StatusError:   "ERR ",
}

// WriteConsole renders a human-readable run report to w.
func WriteConsole(w io.Writer, eval *models.EvaluationResult) error {
	p := message.NewPrinter(language.English)

	fmt.Fprintf(w, "Benchmark: %s  (run %s, adapter %s)\n\n", eval.BenchmarkName, eval.RunID, eval.AdapterName)

	headers := []string{"TASK", "STATUS", "TIME", "TURNS", "TOKENS"}
	rows := make([][]string, 0, len(eval.TaskResults))
	for _, r := range eval.TaskResults {
		rows = append(rows, []string{
			r.TaskID,
			statusMark(r.Status),
			fmt.Sprintf("%.2fs", float64(r.DurationMs)/1000.0),
			fmt.Sprintf("%d", r.Turns),
			p.Sprintf("%d", r.Usage.Total()),
		})
	}
	writeTable(w, headers, rows)

	if len(eval.Aggregates) > 0 {
		fmt.Fprintln(w)
		names := make([]string, 0, len(eval.Aggregates))
		for name := range eval.Aggregates {
			names = append(names, name)
		}
		sort.Strings(names)

		aggRows := make([][]string, 0, len(names))
		for _, name := range names {
			agg := eval.Aggregates[name]
			value := fmt.Sprintf("%.4f", agg.Value)
			if agg.Unit != "" {
				value += " " + agg.Unit
			}
			aggRows = append(aggRows, []string{name, string(agg.Type), value})
		}
		writeTable(w, []string{"METRIC", "TYPE", "VALUE"}, aggRows)
	}

	fmt.Fprintln(w)
	s := eval.Summary
	fmt.Fprintf(w, "%d tasks: %d passed, %d failed, %d timed out, %d errors (%.1f%% success)\n",
		s.TotalTasks, s.Succeeded, s.Failed, s.TimedOut, s.Errors, s.SuccessRate*100)
	p.Fprintf(w, "tokens: %d in / %d out", eval.TotalUsage.Input, eval.TotalUsage.Output)
	if eval.TotalCost > 0 {
		fmt.Fprintf(w, "  cost: $%.4f", eval.TotalCost)
	}
	fmt.Fprintln(w)

	for _, re := range eval.Errors {
		if re.Metric != "" {
			fmt.Fprintf(w, "  error: task %s, metric %s: %s\n", re.TaskID, re.Metric, re.Message)
		} else {
			fmt.Fprintf(w, "  error: task %s: %s\n", re.TaskID, re.Message)
		}
	}
	return nil
}

func statusMark(s models.Status) string {
	if mark, ok := statusMarks[s]; ok {
		return strings.TrimSpace(mark)
	}
	return string(s)
}

// writeTable prints a padded text table. Column widths account for wide
// runes so task ids in any script line up.
func writeTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if cw := runewidth.StringWidth(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	writeRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = runewidth.FillRight(cell, widths[i])
		}
		fmt.Fprintln(w, "  "+strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	writeRow(headers)
	for _, row := range rows {
		writeRow(row)
	}
}
