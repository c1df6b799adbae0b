package service

import (
	"context"

	"oliv/internal/model"
)

// ChatClient is one OpenAI-compatible chat-completion endpoint
type ChatClient interface {
	// Complete returns the assistant message text of a single, non-streaming completion
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// IsEnabled returns whether the client is configured and ready
	IsEnabled() bool
}

// Embedder turns text into a vector
type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
	IsEnabled() bool
}

// DefaultTemperature selects the client's configured temperature
const DefaultTemperature float32 = -1

// CompletionRequest is the provider-neutral shape of a chat completion.
// A zero MaxTokens uses the client's configured budget.
type CompletionRequest struct {
	System      string
	Messages    []model.Message
	Temperature float32
	MaxTokens   int
	JSONMode    bool
}

// Ensure OpenAIClient implements ChatClient and Embedder
var (
	_ ChatClient = (*OpenAIClient)(nil)
	_ Embedder   = (*OpenAIClient)(nil)
)
