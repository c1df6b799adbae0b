package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"oliv/internal/config"
	"oliv/internal/logger"
	"oliv/internal/model"
	"oliv/internal/resilience"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrClientDisabled is returned by every call on a client without credentials
var ErrClientDisabled = errors.New("model client is not enabled (missing API key)")

// ClientConfig describes one OpenAI-compatible endpoint
type ClientConfig struct {
	Name           string
	APIKey         string
	APIBase        string
	Model          string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
	Timeout        time.Duration
}

// OpenAIClientConfig builds the chat-completion client configuration
func OpenAIClientConfig(cfg *config.OpenAIConfig) ClientConfig {
	return ClientConfig{
		Name:           "openai",
		APIKey:         cfg.APIKey,
		APIBase:        cfg.APIBase,
		Model:          cfg.ChatModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Temperature:    float32(cfg.ChatTemperature),
		MaxTokens:      cfg.ChatMaxTokens,
		Timeout:        time.Duration(cfg.Timeout) * time.Second,
	}
}

// PerplexityClientConfig builds the answer/search service configuration
func PerplexityClientConfig(cfg *config.PerplexityConfig) ClientConfig {
	return ClientConfig{
		Name:        "perplexity",
		APIKey:      cfg.APIKey,
		APIBase:     cfg.APIBase,
		Model:       cfg.Model,
		Temperature: float32(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
	}
}

// OpenAIClient handles OpenAI-compatible API interactions through go-openai
type OpenAIClient struct {
	cfg    ClientConfig
	client *openai.Client
	guard  *resilience.Guard
	logger *zap.Logger
}

// NewOpenAIClient creates a client for cfg. guard may be nil.
func NewOpenAIClient(cfg ClientConfig, guard *resilience.Guard, log *zap.Logger) *OpenAIClient {
	log = logger.OrNop(log).With(zap.String("client", cfg.Name))

	c := &OpenAIClient{cfg: cfg, guard: guard, logger: log}
	if cfg.APIKey == "" {
		log.Warn("API key not set, model calls are disabled")
		return c
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBase != "" {
		oc.BaseURL = strings.TrimRight(cfg.APIBase, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}
	c.client = openai.NewClientWithConfig(oc)
	return c
}

// IsEnabled returns whether the client is configured and ready
func (c *OpenAIClient) IsEnabled() bool {
	return c != nil && c.client != nil
}

// Complete performs a chat completion and returns the first choice's content
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if !c.IsEnabled() {
		return "", ErrClientDisabled
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := m.Role
		if role != model.RoleAssistant {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	temperature := req.Temperature
	if temperature < 0 {
		temperature = c.cfg.Temperature
	}
	// temperature is omitempty on the wire, so an explicit zero would fall back to the server default
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	start := time.Now()
	resp, err := c.do(ctx, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		return c.client.CreateChatCompletion(ctx, chatReq)
	})
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", c.cfg.Name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s chat completion: no choices", c.cfg.Name)
	}

	c.logger.Debug("chat completion finished",
		zap.String("model", resp.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("took", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}

// CreateEmbedding generates one embedding with the configured embedding model
func (c *OpenAIClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if !c.IsEnabled() {
		return nil, ErrClientDisabled
	}
	if c.cfg.EmbeddingModel == "" {
		return nil, fmt.Errorf("%s: no embedding model configured", c.cfg.Name)
	}

	resp, err := c.doEmbedding(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("%s embedding: %w", c.cfg.Name, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%s embedding: empty response", c.cfg.Name)
	}
	return resp.Data[0].Embedding, nil
}

func (c *OpenAIClient) do(ctx context.Context, op func(ctx context.Context) (openai.ChatCompletionResponse, error)) (openai.ChatCompletionResponse, error) {
	if c.guard == nil {
		return op(ctx)
	}
	return resilience.Call(ctx, c.guard, op)
}

func (c *OpenAIClient) doEmbedding(ctx context.Context, req openai.EmbeddingRequest) (openai.EmbeddingResponse, error) {
	op := func(ctx context.Context) (openai.EmbeddingResponse, error) {
		return c.client.CreateEmbeddings(ctx, req)
	}
	if c.guard == nil {
		return op(ctx)
	}
	return resilience.Call(ctx, c.guard, op)
}
