package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-sonnet-20241022"

// AnthropicClient is the Anthropic LLM client.
type AnthropicClient struct {
	client *anthropic.Client
	apiKey string
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &AnthropicClient{
		client: client,
		apiKey: apiKey,
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Models returns available models.
func (c *AnthropicClient) Models() []string {
	return []string{
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
		"claude-3-opus-20240229",
		"claude-3-haiku-20240307",
	}
}

func (c *AnthropicClient) buildParams(req *CompletionRequest) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	// Function results have no role of their own; they are replayed as user
	// turns naming the operation.
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		// The API rejects empty text blocks.
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		role := anthropic.MessageParamRoleUser
		text := msg.Content
		switch msg.Role {
		case "assistant":
			role = anthropic.MessageParamRoleAssistant
		case "function":
			text = fmt.Sprintf("[%s result] %s", msg.Name, msg.Content)
		}
		messages = append(messages, anthropic.MessageParam{
			Role: anthropic.F(role),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(text),
				},
			}),
		})
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.F(int64(maxTokens)),
		Messages:  anthropic.F(messages),
	}

	if req.System != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{{
			Type: anthropic.F(anthropic.TextBlockParamTypeText),
			Text: anthropic.F(req.System),
		}})
	}

	if len(req.Functions) > 0 {
		tools := make([]anthropic.ToolParam, 0, len(req.Functions))
		for _, fn := range req.Functions {
			tools = append(tools, anthropic.ToolParam{
				Name:        anthropic.F(fn.Name),
				Description: anthropic.F(fn.Description),
				InputSchema: anthropic.F[interface{}](fn.Parameters),
			})
		}
		params.Tools = anthropic.F(tools)
	}

	return params
}

// Complete sends a completion request.
func (c *AnthropicClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	params := c.buildParams(req)
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	var content strings.Builder
	var call *FunctionCall
	for _, block := range resp.Content {
		switch block.Type {
		case anthropic.ContentBlockTypeText:
			content.WriteString(block.Text)
		case anthropic.ContentBlockTypeToolUse:
			if call != nil {
				continue
			}
			args, err := json.Marshal(block.Input)
			if err != nil {
				return nil, fmt.Errorf("failed to encode tool input: %w", err)
			}
			call = &FunctionCall{Name: block.Name, Arguments: args}
		}
	}

	return &CompletionResponse{
		Content:      content.String(),
		FunctionCall: call,
		Model:        resp.Model,
		TokensIn:     int(resp.Usage.InputTokens),
		TokensOut:    int(resp.Usage.OutputTokens),
		StopReason:   string(resp.StopReason),
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// CompleteStream completes the request and delivers the text in one token.
// Tool selection needs the full input block, so the response is not
// streamed incrementally.
func (c *AnthropicClient) CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error) {
	resp, err := c.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.FunctionCall == nil && resp.Content != "" {
		if err := callback(resp.Content, 0); err != nil {
			return nil, err
		}
	}
	return resp, nil
}
