package translator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

// ============================================================================
// ANTHROPIC CLIENT — Client implementation over the Anthropic API
// ============================================================================
// Temperature is pinned to 0 for both call shapes: synthesized expressions
// are executed verbatim, so reproducibility matters for debugging and tests.
// ============================================================================

const defaultMaxTokens = 1024

// AnthropicClient implements Client using the Anthropic API.
type AnthropicClient struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	log       *slog.Logger
}

// NewAnthropicClient creates a Client backed by the Anthropic API. The API
// key is read from the environment by the SDK.
func NewAnthropicClient(model anthropic.Model, log *slog.Logger) *AnthropicClient {
	return &AnthropicClient{
		client:    anthropic.NewClient(),
		model:     model,
		maxTokens: defaultMaxTokens,
		log:       log,
	}
}

// Complete sends a prompt and returns the first text block of the reply.
func (c *AnthropicClient) Complete(ctx context.Context, system, user string) (string, error) {
	start := time.Now()

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(0),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		c.log.Error("anthropic call failed", "duration", time.Since(start), "error", err)
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	c.log.Debug("anthropic call completed", "duration", time.Since(start), "stopReason", msg.StopReason)

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}

// CompleteStructured forces the model to answer through the given tool and
// returns the tool input JSON.
func (c *AnthropicClient) CompleteStructured(ctx context.Context, system, user string, tool Tool) ([]byte, error) {
	start := time.Now()

	props, _ := tool.InputSchema["properties"].(map[string]any)
	required, _ := tool.InputSchema["required"].([]string)

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(0),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
		Tools: []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        tool.Name,
					Description: anthropic.Opt(tool.Description),
					InputSchema: anthropic.ToolInputSchemaParam{
						Type:       "object",
						Properties: props,
						Required:   required,
					},
				},
			},
		},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: tool.Name},
		},
	})
	if err != nil {
		c.log.Error("anthropic structured call failed", "duration", time.Since(start), "error", err)
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}
	c.log.Debug("anthropic structured call completed", "duration", time.Since(start), "stopReason", msg.StopReason)

	for _, block := range msg.Content {
		if block.Type == "tool_use" {
			tu := block.AsToolUse()
			return []byte(tu.Input), nil
		}
	}
	return nil, fmt.Errorf("%w: no tool use block in response", ErrMalformedResponse)
}
