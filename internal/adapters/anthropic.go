package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentbench/agenteval/internal/models"
)

const defaultAnthropicModel = "claude-3-5-sonnet-20241022"

// Pricing per million tokens, public list prices. Unknown models cost zero;
// the run still completes, it just reports no spend.
var anthropicPricing = map[string]struct{ input, output float64 }{
	"claude-3-5-sonnet-20241022": {3.00, 15.00},
	"claude-3-opus-20240229":     {15.00, 75.00},
	"claude-3-sonnet-20240229":   {3.00, 15.00},
	"claude-3-haiku-20240307":    {0.25, 1.25},
}

// AnthropicAdapter executes agent turns against the Anthropic Messages API.
type AnthropicAdapter struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float64

	mu    sync.Mutex
	usage models.TokenUsage
	cost  float64
}

// NewAnthropicAdapter creates an adapter from config. The API key falls back
// to the SDK's environment default when empty.
func NewAnthropicAdapter(cfg Config) (*AnthropicAdapter, error) {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &AnthropicAdapter{
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (a *AnthropicAdapter) Name() string { return "anthropic" }

func (a *AnthropicAdapter) Execute(ctx context.Context, messages []Message, tools []models.ToolDefinition) (*Response, error) {
	system, converted := convertAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(a.maxTokens),
		Messages:  converted,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if a.temperature > 0 {
		params.Temperature = anthropic.Float(a.temperature)
	}
	if len(tools) > 0 {
		params.Tools = convertAnthropicTools(tools)
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	resp := &Response{
		StopReason: string(msg.StopReason),
		Done:       msg.StopReason != anthropic.StopReasonToolUse,
		Model:      string(msg.Model),
		Usage: models.TokenUsage{
			Input:  int(msg.Usage.InputTokens),
			Output: int(msg.Usage.OutputTokens),
		},
	}

	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content += variant.Text
		case anthropic.ToolUseBlock:
			var args map[string]any
			if raw := variant.JSON.Input.Raw(); raw != "" {
				_ = json.Unmarshal([]byte(raw), &args)
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: args,
			})
		}
	}

	resp.Cost = anthropicCallCost(a.model, resp.Usage)

	a.mu.Lock()
	a.usage.Add(resp.Usage)
	a.cost += resp.Cost
	a.mu.Unlock()

	return resp, nil
}

func (a *AnthropicAdapter) TokenUsage() models.TokenUsage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage
}

func (a *AnthropicAdapter) Cost() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cost
}

// convertAnthropicMessages splits out the system prompt and rebuilds the
// provider message history, including assistant tool_use blocks and their
// tool_result replies.
func convertAnthropicMessages(messages []Message) (string, []anthropic.MessageParam) {
	var system string
	out := make([]anthropic.MessageParam, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = m.Content
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(m.ToolCalls))
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		case RoleTool:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		}
	}
	return system, out
}

func convertAnthropicTools(tools []models.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		props := t.Parameters
		if props == nil {
			props = map[string]any{}
		}
		tool := anthropic.ToolParam{
			Name:        t.Name,
			InputSchema: anthropic.ToolInputSchemaParam{Properties: props},
		}
		if t.Description != "" {
			tool.Description = anthropic.String(t.Description)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return out
}

func anthropicCallCost(model string, usage models.TokenUsage) float64 {
	p, ok := anthropicPricing[model]
	if !ok {
		return 0
	}
	return float64(usage.Input)/1e6*p.input + float64(usage.Output)/1e6*p.output
}
