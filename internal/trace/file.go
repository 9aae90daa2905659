package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// File is the persisted trace artifact for one run: the ordered task entries
// with embedded traces, sufficient to replay the run for inspection without
// re-executing the adapter.
type File struct {
	RunID     string    `json:"run_id"`
	Benchmark string    `json:"benchmark"`
	Adapter   string    `json:"adapter"`
	CreatedAt time.Time `json:"created_at"`
	// TaskOrder preserves benchmark declaration order; Tasks is keyed by
	// task id for direct lookup during replay.
	TaskOrder []string             `json:"task_order"`
	Tasks     map[string]TaskEntry `json:"tasks"`
}

// TaskEntry is the per-task slice of a trace file.
type TaskEntry struct {
	Status     string             `json:"status"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	DurationMs int64              `json:"duration_ms"`
	Events     []Event            `json:"events"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	ErrorMsg   string             `json:"error_msg,omitempty"`
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func sanitizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = unsafeChars.ReplaceAllString(s, "")
	if s == "" {
		s = "unnamed"
	}
	return s
}

// Filename returns the trace filename for a run.
func Filename(benchmark, runID string) string {
	return fmt.Sprintf("%s-%s.json.gz", sanitizeName(benchmark), sanitizeName(runID))
}

// Write serializes a trace file into dir as gzip-compressed JSON and returns
// the full path.
func Write(dir string, f *File) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create trace dir: %w", err)
	}

	path := filepath.Join(dir, Filename(f.Benchmark, f.RunID))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create trace file: %w", err)
	}
	defer out.Close()

	zw := gzip.NewWriter(out)
	enc := json.NewEncoder(zw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		zw.Close()
		return "", fmt.Errorf("encode trace file: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("flush trace file: %w", err)
	}
	return path, nil
}

// Replay loads a previously written trace file for inspection.
func Replay(path string) (*File, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return nil, fmt.Errorf("read trace file %s: %w", path, err)
	}
	defer zr.Close()

	var f File
	if err := json.NewDecoder(zr).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode trace file %s: %w", path, err)
	}
	return &f, nil
}
