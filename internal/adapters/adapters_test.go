package adapters

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentbench/agenteval/internal/models"
)

func TestMockAdapter_DefaultResponse(t *testing.T) {
	mock := NewMockAdapter()

	resp, err := mock.Execute(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "summarize the doc"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Mock response for: summarize the doc", resp.Content)
	assert.True(t, resp.Done)
	assert.Equal(t, "mock-1", resp.Model)
	assert.Equal(t, models.TokenUsage{Input: 10, Output: 5}, resp.Usage)
	assert.Equal(t, 1, mock.Calls())
}

func TestMockAdapter_Responder(t *testing.T) {
	mock := NewMockAdapter(WithMockResponder(func(call int, messages []Message) (*Response, error) {
		if call == 1 {
			return &Response{
				ToolCalls: []ToolCall{{ID: "tc-1", Name: "search", Arguments: map[string]any{"q": "weather"}}},
				Done:      false,
				Usage:     models.TokenUsage{Input: 20, Output: 8},
			}, nil
		}
		return &Response{Content: "sunny", Done: true, Usage: models.TokenUsage{Input: 30, Output: 4}}, nil
	}))

	first, err := mock.Execute(context.Background(), []Message{{Role: RoleUser, Content: "weather?"}}, nil)
	require.NoError(t, err)
	require.Len(t, first.ToolCalls, 1)
	assert.False(t, first.Done)
	assert.Equal(t, "search", first.ToolCalls[0].Name)

	second, err := mock.Execute(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, second.Done)
	assert.Equal(t, "sunny", second.Content)

	// Cumulative accounting across both calls.
	assert.Equal(t, models.TokenUsage{Input: 50, Output: 12}, mock.TokenUsage())
}

func TestMockAdapter_Error(t *testing.T) {
	boom := errors.New("provider unavailable")
	mock := NewMockAdapter(WithMockError(boom))

	_, err := mock.Execute(context.Background(), nil, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, mock.Calls())
}

func TestMockAdapter_LatencyHonorsContext(t *testing.T) {
	mock := NewMockAdapter(WithMockLatency(5 * time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := mock.Execute(ctx, nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestMockAdapter_ConcurrentAccounting(t *testing.T) {
	mock := NewMockAdapter(WithMockCost(0.01))

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mock.Execute(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, mock.Calls())
	assert.Equal(t, models.TokenUsage{Input: 200, Output: 100}, mock.TokenUsage())
	assert.InDelta(t, 0.20, mock.Cost(), 1e-9)
}

func TestRegisterBuiltins(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg))

	assert.ElementsMatch(t, []string{"anthropic", "mock", "openai"}, reg.Names())

	adapter, err := reg.Resolve("mock", map[string]any{"model": "mock-xl"})
	require.NoError(t, err)

	resp, err := adapter.Execute(context.Background(), []Message{{Role: RoleUser, Content: "ping"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock-xl", resp.Model)
}

func TestConvertOpenAIMessages(t *testing.T) {
	msgs := convertOpenAIMessages([]Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "do the thing"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "tc-1", Name: "lookup", Arguments: map[string]any{"key": "v"}}}},
		{Role: RoleTool, ToolCallID: "tc-1", Content: "found it"},
	})

	require.Len(t, msgs, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "lookup", msgs[2].ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"key":"v"}`, msgs[2].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "tc-1", msgs[3].ToolCallID)
}

func TestConvertOpenAITools(t *testing.T) {
	tools := convertOpenAITools([]models.ToolDefinition{
		{Name: "search", Description: "web search", Parameters: map[string]any{"type": "object"}},
		{Name: "noop"},
	})

	require.Len(t, tools, 2)
	assert.Equal(t, openai.ToolTypeFunction, tools[0].Type)
	assert.Equal(t, "search", tools[0].Function.Name)
	// Tools without declared parameters still get a valid empty schema.
	assert.NotNil(t, tools[1].Function.Parameters)
}

func TestConvertAnthropicMessages(t *testing.T) {
	system, out := convertAnthropicMessages([]Message{
		{Role: RoleSystem, Content: "sys prompt"},
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "calling a tool", ToolCalls: []ToolCall{{ID: "tc-9", Name: "calc"}}},
		{Role: RoleTool, ToolCallID: "tc-9", Content: "42"},
	})

	assert.Equal(t, "sys prompt", system)
	// The system message is hoisted out of the history.
	assert.Len(t, out, 3)
}

func TestCallCost(t *testing.T) {
	usage := models.TokenUsage{Input: 1_000_000, Output: 1_000_000}

	assert.InDelta(t, 18.0, anthropicCallCost("claude-3-5-sonnet-20241022", usage), 1e-9)
	assert.Zero(t, anthropicCallCost("unknown-model", usage))

	assert.InDelta(t, 12.5, openaiCallCost(openai.GPT4o, usage), 1e-9)
	assert.Zero(t, openaiCallCost("unknown-model", usage))
}
