package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentbench/agenteval/internal/models"
)

const defaultOpenAIModel = openai.GPT4o

// Pricing per million tokens, public list prices.
var openaiPricing = map[string]struct{ input, output float64 }{
	openai.GPT4o:         {2.50, 10.00},
	openai.GPT4oMini:     {0.15, 0.60},
	openai.GPT4Turbo:     {10.00, 30.00},
	openai.GPT3Dot5Turbo: {0.50, 1.50},
}

// OpenAIAdapter executes agent turns against the OpenAI chat completions API.
type OpenAIAdapter struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64

	mu    sync.Mutex
	usage models.TokenUsage
	cost  float64
}

// NewOpenAIAdapter creates an adapter from config. An empty API key is
// rejected here rather than on the first call.
func NewOpenAIAdapter(cfg Config) (*OpenAIAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai adapter requires an api_key")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	return &OpenAIAdapter{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (a *OpenAIAdapter) Name() string { return "openai" }

func (a *OpenAIAdapter) Execute(ctx context.Context, messages []Message, tools []models.ToolDefinition) (*Response, error) {
	req := openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: convertOpenAIMessages(messages),
	}
	if a.maxTokens > 0 {
		req.MaxTokens = a.maxTokens
	}
	if a.temperature > 0 {
		req.Temperature = float32(a.temperature)
	}
	if len(tools) > 0 {
		req.Tools = convertOpenAITools(tools)
	}

	completion, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai: response contained no choices")
	}

	choice := completion.Choices[0]
	resp := &Response{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Done:       choice.FinishReason != openai.FinishReasonToolCalls,
		Model:      completion.Model,
		Usage: models.TokenUsage{
			Input:  completion.Usage.PromptTokens,
			Output: completion.Usage.CompletionTokens,
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	resp.Cost = openaiCallCost(a.model, resp.Usage)

	a.mu.Lock()
	a.usage.Add(resp.Usage)
	a.cost += resp.Cost
	a.mu.Unlock()

	return resp, nil
}

func (a *OpenAIAdapter) TokenUsage() models.TokenUsage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage
}

func (a *OpenAIAdapter) Cost() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cost
}

func convertOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
		if m.Role == RoleTool {
			msg.ToolCallID = m.ToolCallID
		}
		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func convertOpenAITools(tools []models.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

func openaiCallCost(model string, usage models.TokenUsage) float64 {
	p, ok := openaiPricing[model]
	if !ok {
		return 0
	}
	return float64(usage.Input)/1e6*p.input + float64(usage.Output)/1e6*p.output
}
