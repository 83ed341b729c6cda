package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-3.5-turbo"

// OpenAIClient is the OpenAI LLM client.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	return &OpenAIClient{
		client: openai.NewClient(apiKey),
	}, nil
}

// NewOpenAIClientWithConfig creates a client against a custom endpoint.
func NewOpenAIClientWithConfig(cfg openai.ClientConfig) *OpenAIClient {
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg)}
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Models returns available models.
func (c *OpenAIClient) Models() []string {
	return []string{
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4-turbo",
		"gpt-4",
		"gpt-3.5-turbo",
	}
}

func (c *OpenAIClient) buildRequest(req *CompletionRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
			Name:    msg.Name,
		})
	}

	var functions []openai.FunctionDefinition
	for _, fn := range req.Functions {
		functions = append(functions, openai.FunctionDefinition{
			Name:        fn.Name,
			Description: fn.Description,
			Parameters:  fn.Parameters,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
		Functions:   functions,
	}
}

// Complete sends a completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req))
	if err != nil {
		return nil, err
	}

	out := &CompletionResponse{
		Model:     resp.Model,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		out.Content = choice.Message.Content
		out.StopReason = string(choice.FinishReason)
		if fc := choice.Message.FunctionCall; fc != nil && fc.Name != "" {
			out.FunctionCall = &FunctionCall{Name: fc.Name, Arguments: rawArguments(fc.Arguments)}
		}
	}

	return out, nil
}

// CompleteStream sends a streaming completion request.
func (c *OpenAIClient) CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error) {
	start := time.Now()

	chatReq := c.buildRequest(req)
	chatReq.Stream = true

	stream, err := c.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var content, fnName, fnArgs strings.Builder
	var stopReason string
	index := 0

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if len(response.Choices) == 0 {
			continue
		}
		choice := response.Choices[0]

		if fc := choice.Delta.FunctionCall; fc != nil {
			fnName.WriteString(fc.Name)
			fnArgs.WriteString(fc.Arguments)
		}

		if delta := choice.Delta.Content; delta != "" {
			content.WriteString(delta)
			if err := callback(delta, index); err != nil {
				return nil, err
			}
			index++
		}

		if choice.FinishReason != "" {
			stopReason = string(choice.FinishReason)
		}
	}

	// Streaming responses carry no usage block; estimate from content length.
	tokensOut := (content.Len() + fnArgs.Len()) / 4

	out := &CompletionResponse{
		Content:    content.String(),
		Model:      chatReq.Model,
		TokensIn:   estimatePromptTokens(chatReq.Messages),
		TokensOut:  tokensOut,
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}
	if fnName.Len() > 0 {
		out.FunctionCall = &FunctionCall{Name: fnName.String(), Arguments: rawArguments(fnArgs.String())}
	}

	return out, nil
}

// DefaultEmbeddingDimensions matches the vector(384) column of the hosted
// movie index.
const DefaultEmbeddingDimensions = 384

// OpenAIEmbedder embeds text with an OpenAI embedding model.
type OpenAIEmbedder struct {
	client     *OpenAIClient
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAIEmbedder creates an embedder using model, or text-embedding-3-small,
// truncated to dimensions, or DefaultEmbeddingDimensions when zero.
func NewOpenAIEmbedder(client *OpenAIClient, model string, dimensions int) *OpenAIEmbedder {
	m := openai.SmallEmbedding3
	if model != "" {
		m = openai.EmbeddingModel(model)
	}
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &OpenAIEmbedder{client: client, model: m, dimensions: dimensions}
}

// Embed returns the embedding of text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      e.model,
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding response has no data")
	}
	if got := len(resp.Data[0].Embedding); got != e.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", got, e.dimensions)
	}
	return resp.Data[0].Embedding, nil
}

func estimatePromptTokens(messages []openai.ChatCompletionMessage) int {
	n := 0
	for _, m := range messages {
		n += len(m.Content)
	}
	return n / 4
}

func rawArguments(args string) json.RawMessage {
	if strings.TrimSpace(args) == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(args)
}
