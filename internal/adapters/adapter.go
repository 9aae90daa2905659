// Package adapters defines the provider-facing execution capability and its
// builtin implementations. An adapter turns an ordered message context into
// one agent response per call; the turn loop itself lives in the task runner.
package adapters

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/agentbench/agenteval/internal/models"
	"github.com/agentbench/agenteval/internal/registry"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one tool invocation requested by the agent.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Message is one entry in the conversation context handed to an adapter.
// Assistant messages carry the tool calls they requested; tool messages
// carry the result for a prior call via ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// Response is one agent turn. Done is the explicit turn-complete signal: a
// true value means the agent considers the task finished and the runner must
// stop the loop. Usage and Cost cover this call only; callers accumulate
// them per task while the adapter keeps its own run-wide counters.
type Response struct {
	Content    string            `json:"content"`
	ToolCalls  []ToolCall        `json:"tool_calls,omitempty"`
	StopReason string            `json:"stop_reason,omitempty"`
	Done       bool              `json:"done"`
	Model      string            `json:"model,omitempty"`
	Usage      models.TokenUsage `json:"usage"`
	Cost       float64           `json:"cost,omitempty"`
}

// Adapter is a provider-specific execution capability. Implementations must
// surface provider errors as errors, never as silent empty responses, and
// must be safe for concurrent Execute calls or run with concurrency 1.
// TokenUsage and Cost report cumulative accounting across all calls.
type Adapter interface {
	Name() string
	Execute(ctx context.Context, messages []Message, tools []models.ToolDefinition) (*Response, error)
	TokenUsage() models.TokenUsage
	Cost() float64
}

// Config is the common configuration decoded from a registry factory's
// map argument.
type Config struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

func decodeConfig(raw map[string]any) (Config, error) {
	var cfg Config
	if err := mapstructure.Decode(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding adapter config: %w", err)
	}
	return cfg, nil
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *registry.Registry[Adapter] {
	return registry.New[Adapter]("adapter")
}

// RegisterBuiltins populates reg with the builtin adapters. Hosts call this
// once at startup; re-registration in tests goes through WithOverwrite.
func RegisterBuiltins(reg *registry.Registry[Adapter], opts ...registry.Option) error {
	builtins := []struct {
		name    string
		tags    []string
		factory registry.Factory[Adapter]
	}{
		{"anthropic", []string{"remote", "tools"}, func(raw map[string]any) (Adapter, error) {
			cfg, err := decodeConfig(raw)
			if err != nil {
				return nil, err
			}
			return NewAnthropicAdapter(cfg)
		}},
		{"openai", []string{"remote", "tools"}, func(raw map[string]any) (Adapter, error) {
			cfg, err := decodeConfig(raw)
			if err != nil {
				return nil, err
			}
			return NewOpenAIAdapter(cfg)
		}},
		{"mock", []string{"local"}, func(raw map[string]any) (Adapter, error) {
			cfg, err := decodeConfig(raw)
			if err != nil {
				return nil, err
			}
			return NewMockAdapter(WithMockModel(cfg.Model)), nil
		}},
	}

	for _, b := range builtins {
		regOpts := append([]registry.Option{registry.WithTags(b.tags...)}, opts...)
		if err := reg.Register(b.name, b.factory, regOpts...); err != nil {
			return err
		}
	}
	return nil
}

// lastUserMessage returns the content of the most recent user message, used
// by the mock adapter to build deterministic responses.
func lastUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
