package trace

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_OrderedEvents(t *testing.T) {
	rec := NewRecorder("task-1", "mock")
	rec.Record(EventPrompt, map[string]any{"message": "do the thing"})
	rec.Record(EventToolCall, map[string]any{"name": "search"})
	rec.Record(EventToolResult, map[string]any{"name": "search", "result": "ok"})
	rec.Record(EventCompletion, map[string]any{"content": "done"})

	require.Equal(t, 4, rec.Len())

	tr, err := rec.Finalize()
	require.NoError(t, err)

	require.Len(t, tr.Events, 4)
	kinds := make([]EventKind, 0, len(tr.Events))
	for i, ev := range tr.Events {
		assert.Equal(t, i, ev.Seq)
		assert.False(t, ev.Timestamp.IsZero())
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{EventPrompt, EventToolCall, EventToolResult, EventCompletion}, kinds)
	assert.Equal(t, "task-1", tr.TaskID)
	assert.False(t, tr.FinalizedAt.IsZero())
}

func TestRecorder_DoubleFinalize(t *testing.T) {
	rec := NewRecorder("task-1", "mock")
	rec.Record(EventPrompt, nil)

	_, err := rec.Finalize()
	require.NoError(t, err)

	_, err = rec.Finalize()
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestRecorder_FrozenAfterFinalize(t *testing.T) {
	rec := NewRecorder("task-1", "mock")
	rec.Record(EventPrompt, nil)

	tr, err := rec.Finalize()
	require.NoError(t, err)

	rec.Record(EventCompletion, nil)
	rec.RecordError(errors.New("late"))

	assert.Len(t, tr.Events, 1)
}

func TestRecordError_NilIgnored(t *testing.T) {
	rec := NewRecorder("task-1", "mock")
	rec.RecordError(nil)
	assert.Equal(t, 0, rec.Len())
}

func TestFile_WriteReplayRoundTrip(t *testing.T) {
	dir := t.TempDir()

	now := time.Now().UTC().Truncate(time.Second)
	f := &File{
		RunID:     "run-abc",
		Benchmark: "Web Tasks v1",
		Adapter:   "mock",
		CreatedAt: now,
		TaskOrder: []string{"t1", "t2"},
		Tasks: map[string]TaskEntry{
			"t1": {
				Status:     "success",
				StartedAt:  now,
				FinishedAt: now.Add(2 * time.Second),
				DurationMs: 2000,
				Events: []Event{
					{Seq: 0, Kind: EventPrompt, Timestamp: now, Payload: map[string]any{"message": "go"}},
					{Seq: 1, Kind: EventCompletion, Timestamp: now, Payload: map[string]any{"content": "done"}},
				},
				Metrics: map[string]float64{"completion_rate": 1},
			},
			"t2": {
				Status:   "error",
				ErrorMsg: "adapter exploded",
			},
		},
	}

	path, err := Write(dir, f)
	require.NoError(t, err)
	assert.Equal(t, "web-tasks-v1-run-abc.json.gz", filepath.Base(path))

	got, err := Replay(path)
	require.NoError(t, err)

	assert.Equal(t, f.RunID, got.RunID)
	assert.Equal(t, f.TaskOrder, got.TaskOrder)
	require.Contains(t, got.Tasks, "t1")
	require.Len(t, got.Tasks["t1"].Events, 2)
	assert.Equal(t, EventPrompt, got.Tasks["t1"].Events[0].Kind)
	assert.Equal(t, "adapter exploded", got.Tasks["t2"].ErrorMsg)
}

func TestReplay_MissingFile(t *testing.T) {
	_, err := Replay("/does/not/exist.json.gz")
	assert.Error(t, err)
}
