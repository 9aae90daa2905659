package benchmark

import (
	"slices"

	"github.com/agentbench/agenteval/internal/models"
)

// FilterTasks returns a shallow copy of bench keeping only tasks that match
// the selection. An empty selection keeps everything; ids select exact task
// ids, tags keep tasks carrying at least one of the given tags. Task order
// is preserved.
func FilterTasks(bench *models.Benchmark, ids, tags []string) *models.Benchmark {
	if len(ids) == 0 && len(tags) == 0 {
		return bench
	}

	filtered := *bench
	filtered.Tasks = nil
	for _, task := range bench.Tasks {
		if len(ids) > 0 && !slices.Contains(ids, task.ID) {
			continue
		}
		if len(tags) > 0 && !hasAnyTag(task.Tags, tags) {
			continue
		}
		filtered.Tasks = append(filtered.Tasks, task)
	}
	return &filtered
}

func hasAnyTag(taskTags, want []string) bool {
	for _, tag := range want {
		if slices.Contains(taskTags, tag) {
			return true
		}
	}
	return false
}
