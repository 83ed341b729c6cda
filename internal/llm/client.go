// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"encoding/json"
)

// StreamCallback is called for each text token during streaming.
type StreamCallback func(token string, index int) error

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	Functions   []FunctionSpec
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for LLM. Name is set for function
// results and identifies the operation that produced them.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// FunctionSpec declares an operation the model may select.
type FunctionSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// FunctionCall is the model's selection of one declared operation.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// CompletionResponse represents a completion response. FunctionCall is
// non-nil when the model selected an operation instead of answering in text.
type CompletionResponse struct {
	Content      string
	FunctionCall *FunctionCall
	Model        string
	TokensIn     int
	TokensOut    int
	StopReason   string
	LatencyMs    int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// CompleteStream sends a streaming completion request. Text tokens are
	// passed to callback as they arrive; a selected function is returned in
	// the response once the stream ends.
	CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []string
}

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	default:
		return NewOpenAIClient(apiKey)
	}
}
