package adapters

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentbench/agenteval/internal/models"
)

// MockAdapter is a scripted, offline adapter used in tests and dry runs.
// It is safe for concurrent Execute calls.
type MockAdapter struct {
	model       string
	latency     time.Duration
	costPerCall float64
	err         error
	respond     func(call int, messages []Message) (*Response, error)

	mu        sync.Mutex
	calls     int
	usage     models.TokenUsage
	cost      float64
	lastTools []models.ToolDefinition
}

// MockOption configures a MockAdapter.
type MockOption func(*MockAdapter)

// WithMockModel sets the model id reported in responses.
func WithMockModel(model string) MockOption {
	return func(m *MockAdapter) {
		if model != "" {
			m.model = model
		}
	}
}

// WithMockLatency makes each Execute call take d, honoring context
// cancellation while it waits.
func WithMockLatency(d time.Duration) MockOption {
	return func(m *MockAdapter) { m.latency = d }
}

// WithMockError makes every Execute call fail with err.
func WithMockError(err error) MockOption {
	return func(m *MockAdapter) { m.err = err }
}

// WithMockCost sets a fixed cost accrued per successful call.
func WithMockCost(costPerCall float64) MockOption {
	return func(m *MockAdapter) { m.costPerCall = costPerCall }
}

// WithMockResponder installs a scripted response function. call counts
// Execute invocations on this adapter, starting at 1.
func WithMockResponder(fn func(call int, messages []Message) (*Response, error)) MockOption {
	return func(m *MockAdapter) { m.respond = fn }
}

// NewMockAdapter creates a mock adapter. Without a responder it answers
// every call with a single completed turn echoing the last user message.
func NewMockAdapter(opts ...MockOption) *MockAdapter {
	m := &MockAdapter{model: "mock-1"}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *MockAdapter) Name() string { return "mock" }

func (m *MockAdapter) Execute(ctx context.Context, messages []Message, tools []models.ToolDefinition) (*Response, error) {
	if m.latency > 0 {
		timer := time.NewTimer(m.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m.err != nil {
		return nil, m.err
	}

	m.mu.Lock()
	m.calls++
	call := m.calls
	m.lastTools = tools
	m.mu.Unlock()

	var resp *Response
	if m.respond != nil {
		r, err := m.respond(call, messages)
		if err != nil {
			return nil, err
		}
		resp = r
	} else {
		resp = &Response{
			Content:    fmt.Sprintf("Mock response for: %s", lastUserMessage(messages)),
			StopReason: "end_turn",
			Done:       true,
			Usage:      models.TokenUsage{Input: 10, Output: 5},
		}
	}
	if resp.Model == "" {
		resp.Model = m.model
	}
	if resp.Cost == 0 {
		resp.Cost = m.costPerCall
	}

	m.mu.Lock()
	m.usage.Add(resp.Usage)
	m.cost += resp.Cost
	m.mu.Unlock()

	return resp, nil
}

func (m *MockAdapter) TokenUsage() models.TokenUsage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

func (m *MockAdapter) Cost() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cost
}

// Calls returns how many Execute invocations completed.
func (m *MockAdapter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastTools returns the tool definitions passed to the most recent
// Execute call.
func (m *MockAdapter) LastTools() []models.ToolDefinition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTools
}
