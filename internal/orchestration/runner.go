// Package orchestration drives benchmark runs: the task runner owns the
// agent turn loop for one task, the scheduler fans tasks out under a
// concurrency limit, and the engine ties loading, execution, scoring and
// persistence together into one EvaluationResult.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentbench/agenteval/internal/adapters"
	"github.com/agentbench/agenteval/internal/criteria"
	"github.com/agentbench/agenteval/internal/models"
	"github.com/agentbench/agenteval/internal/trace"
)

// DefaultMaxTurns caps the agent turn loop when neither the task nor the
// runner configures one.
const DefaultMaxTurns = 10

// ToolHandler produces the result content for one tool call. The default
// handler returns a canned acknowledgement so benchmarks can exercise
// tool-use flows without real tool backends.
type ToolHandler func(ctx context.Context, call adapters.ToolCall) (string, error)

func defaultToolHandler(_ context.Context, call adapters.ToolCall) (string, error) {
	return fmt.Sprintf("tool %s executed", call.Name), nil
}

// TaskRunner executes single tasks against an adapter. A runner is safe for
// concurrent Run calls as long as its adapter is.
type TaskRunner struct {
	adapter     adapters.Adapter
	maxTurns    int
	toolHandler ToolHandler
	logger      *slog.Logger
}

// RunnerOption configures a TaskRunner.
type RunnerOption func(*TaskRunner)

// WithMaxTurns sets the default turn cap for tasks that do not declare one.
func WithMaxTurns(n int) RunnerOption {
	return func(r *TaskRunner) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

// WithToolHandler installs the function that services tool calls.
func WithToolHandler(h ToolHandler) RunnerOption {
	return func(r *TaskRunner) {
		if h != nil {
			r.toolHandler = h
		}
	}
}

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *TaskRunner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewTaskRunner creates a runner bound to one adapter.
func NewTaskRunner(adapter adapters.Adapter, opts ...RunnerOption) *TaskRunner {
	r := &TaskRunner{
		adapter:     adapter,
		maxTurns:    DefaultMaxTurns,
		toolHandler: defaultToolHandler,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes one task attempt to completion and always returns a
// TaskResult, never an error: adapter failures, criterion evaluation
// failures, timeouts and panics all become a result with the matching
// status. The returned result carries the trace recorded up to the point
// the attempt ended.
func (r *TaskRunner) Run(ctx context.Context, task models.Task, timeout time.Duration) (result models.TaskResult) {
	started := time.Now().UTC()
	recorder := trace.NewRecorder(task.ID, r.adapter.Name())

	finish := func(status models.Status) models.TaskResult {
		finished := time.Now().UTC()
		tr, err := recorder.Finalize()
		if err != nil {
			// Already finalized; the attempt keeps its frozen trace.
			tr = nil
		}
		result.TaskID = task.ID
		result.Status = status
		result.Trace = tr
		result.StartedAt = started
		result.FinishedAt = finished
		result.DurationMs = finished.Sub(started).Milliseconds()
		return result
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("task panicked", "task", task.ID, "panic", p)
			recorder.RecordError(fmt.Errorf("panic: %v", p))
			result = finish(models.StatusError)
			result.ErrorMsg = fmt.Sprintf("panic: %v", p)
		}
	}()

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	maxTurns := task.MaxTurns
	if maxTurns <= 0 {
		maxTurns = r.maxTurns
	}

	messages := make([]adapters.Message, 0, 2)
	if task.SystemMessage != "" {
		messages = append(messages, adapters.Message{Role: adapters.RoleSystem, Content: task.SystemMessage})
	}
	messages = append(messages, adapters.Message{Role: adapters.RoleUser, Content: task.Instructions})
	recorder.Record(trace.EventPrompt, map[string]any{"instructions": task.Instructions})

	// Tasks may declare tools by bare name only; the adapter still needs a
	// definition per tool.
	toolDefs := task.ToolDefs
	if len(toolDefs) == 0 && len(task.Tools) > 0 {
		toolDefs = make([]models.ToolDefinition, len(task.Tools))
		for i, name := range task.Tools {
			toolDefs[i] = models.ToolDefinition{Name: name}
		}
	}

	var (
		output      string
		toolsCalled []string
		completed   bool
	)

	for result.Turns < maxTurns {
		resp, err := r.adapter.Execute(runCtx, messages, toolDefs)
		if err != nil {
			recorder.RecordError(err)
			if ctxErr := runCtx.Err(); ctxErr != nil &&
				(errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
				r.logger.Warn("task timed out", "task", task.ID, "turns", result.Turns)
				out := finish(models.StatusTimeout)
				out.Output = output
				out.ErrorMsg = ctxErr.Error()
				return out
			}
			r.logger.Warn("adapter call failed", "task", task.ID, "error", err)
			out := finish(models.StatusError)
			out.Output = output
			out.ErrorMsg = err.Error()
			return out
		}

		result.Turns++
		result.Usage.Add(resp.Usage)
		result.Cost += resp.Cost
		if resp.Content != "" {
			output = resp.Content
		}

		recorder.Record(trace.EventCompletion, map[string]any{
			"content":     resp.Content,
			"stop_reason": resp.StopReason,
			"model":       resp.Model,
			"turn":        result.Turns,
		})

		if resp.Done {
			completed = true
			break
		}
		if len(resp.ToolCalls) == 0 {
			// Not done and nothing to do next turn; stop rather than loop
			// on an identical context.
			break
		}

		messages = append(messages, adapters.Message{
			Role:      adapters.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			recorder.Record(trace.EventToolCall, map[string]any{
				"id":        call.ID,
				"name":      call.Name,
				"arguments": call.Arguments,
			})
			toolsCalled = append(toolsCalled, call.Name)

			content, err := r.toolHandler(runCtx, call)
			if err != nil {
				content = fmt.Sprintf("tool error: %v", err)
			}
			recorder.Record(trace.EventToolResult, map[string]any{
				"id":      call.ID,
				"name":    call.Name,
				"content": content,
			})
			messages = append(messages, adapters.Message{
				Role:       adapters.RoleTool,
				ToolCallID: call.ID,
				Content:    content,
			})
		}
	}

	outcomes, ok, err := criteria.EvaluateAll(task.Criteria, criteria.Subject{
		Output:      output,
		ToolsCalled: toolsCalled,
	})
	if err != nil {
		recorder.RecordError(err)
		out := finish(models.StatusError)
		out.Output = output
		out.ErrorMsg = err.Error()
		return out
	}

	// Criteria decide the outcome when present. Without criteria only an
	// explicit completion signal counts as success; running out of turns
	// does not.
	status := models.StatusFailure
	if ok && (len(task.Criteria) > 0 || completed) {
		status = models.StatusSuccess
	}
	out := finish(status)
	out.Output = output
	out.Criteria = outcomes
	return out
}
