// Package openai wraps an OpenAI-compatible backend. The same API shape is
// served by local engines (llama.cpp server, Ollama, LM Studio), so this is
// the single adapter for both text embedding and answer generation.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the model used for generating embeddings
	// when none is configured.
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultEmbeddingDimensions is the expected embedding dimension for
	// the default model.
	DefaultEmbeddingDimensions = 1536
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has unexpected dimensions")
	// ErrNoAPIKey is returned when no API key or base URL override is configured
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// API defines the backend surface the client depends on.
type API interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
	CreateCompletion(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest carries one generation call's prompt and sampling knobs.
// TopK is accepted for parity with local engines but OpenAI-compatible HTTP
// backends do not expose it; it is ignored here.
type CompletionRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float32
	TopP        float32
	TopK        int
}

// Client wraps the OpenAI-compatible API for embeddings and generation.
type Client struct {
	api        API
	dimensions int
}

type apiAdapter struct {
	client         *openai.Client
	embeddingModel openai.EmbeddingModel
	chatModel      string
}

func newAPIAdapter(cfg Config) *apiAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	return &apiAdapter{
		client:         openai.NewClientWithConfig(clientCfg),
		embeddingModel: embeddingModel,
		chatModel:      cfg.ChatModel,
	}
}

// CreateEmbeddings calls the backend to embed a single text.
func (a *apiAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.embeddingModel,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// CreateCompletion runs one chat completion and returns the raw text.
func (a *apiAdapter) CreateCompletion(ctx context.Context, req CompletionRequest) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// Config holds client configuration. BaseURL points the client at a local
// OpenAI-compatible engine; empty means the hosted API.
type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	ChatModel           string
}

// NewClient creates a new client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &Client{
		api:        newAPIAdapter(cfg),
		dimensions: dimensions,
	}
}

// NewClientFromEnv creates a new client using the OPENAI_API_KEY environment variable.
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// GenerateEmbedding generates an embedding for the given text.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	embedding, err := c.api.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(embedding) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrWrongDimensions, len(embedding), c.dimensions)
	}

	return embedding, nil
}

// Generate runs one completion for the given prompt.
func (c *Client) Generate(ctx context.Context, req CompletionRequest) (string, error) {
	if req.Prompt == "" {
		return "", ErrEmptyText
	}
	return c.api.CreateCompletion(ctx, req)
}
