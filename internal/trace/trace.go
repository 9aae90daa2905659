// Package trace captures the ordered interaction record of one task attempt.
// A Recorder accumulates events while the attempt runs; Finalize freezes the
// sequence into a Trace. Recorders are never shared across tasks, which is
// what keeps one task's failure from leaking into another's record.
package trace

import (
	"errors"
	"sync"
	"time"
)

// ErrAlreadyFinalized is returned by Finalize when the recorder has already
// produced its Trace.
var ErrAlreadyFinalized = errors.New("trace recorder already finalized")

// EventKind classifies a trace event.
type EventKind string

const (
	EventPrompt     EventKind = "prompt"
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventCompletion EventKind = "completion"
	EventError      EventKind = "error"
)

// Event is one timestamped record in a trace.
type Event struct {
	Seq       int            `json:"seq"`
	Kind      EventKind      `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Trace is the ordered event sequence for exactly one task attempt. Events
// is frozen once Finalize returns; a Trace belongs to exactly one TaskResult.
type Trace struct {
	TaskID      string    `json:"task_id"`
	AdapterName string    `json:"adapter"`
	StartedAt   time.Time `json:"started_at"`
	FinalizedAt time.Time `json:"finalized_at"`
	Events      []Event   `json:"events"`
}

// Recorder accumulates events for one in-progress task attempt.
type Recorder struct {
	mu        sync.Mutex
	trace     *Trace
	finalized bool
}

// NewRecorder creates a recorder for a single task attempt.
func NewRecorder(taskID, adapterName string) *Recorder {
	return &Recorder{
		trace: &Trace{
			TaskID:      taskID,
			AdapterName: adapterName,
			StartedAt:   time.Now().UTC(),
		},
	}
}

// Record appends an event to the in-progress sequence. Events recorded after
// Finalize are silently dropped; the frozen trace never changes.
func (r *Recorder) Record(kind EventKind, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.trace.Events = append(r.trace.Events, Event{
		Seq:       len(r.trace.Events),
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

// RecordError appends an error event carrying the error's message.
func (r *Recorder) RecordError(err error) {
	if err == nil {
		return
	}
	r.Record(EventError, map[string]any{"message": err.Error()})
}

// Len returns the number of events recorded so far.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trace.Events)
}

// Finalize freezes the sequence and returns the immutable Trace. A second
// call fails with ErrAlreadyFinalized.
func (r *Recorder) Finalize() (*Trace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return nil, ErrAlreadyFinalized
	}
	r.finalized = true
	r.trace.FinalizedAt = time.Now().UTC()
	return r.trace, nil
}
