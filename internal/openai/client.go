// Package openai adapts OpenAI-compatible embedding and chat endpoints to
// the assistant's Embedder and LanguageModel interfaces.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/companion/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the model used for generating embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions is the expected dimension of embeddings
	DefaultEmbeddingDimensions = 1536
	// DefaultChatModel is the model used for answers
	DefaultChatModel = openai.GPT4oMini

	systemPrompt = "You are a personal assistant answering questions about the user's professional profile. Answer only from the provided context."
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoChoices is returned when a completion has no choices
	ErrNoChoices = errors.New("completion returned no choices")
)

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
}

// ChatAPI defines the interface for chat completions
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds settings shared by both clients.
type Config struct {
	APIKey string
	// BaseURL points at an OpenAI-compatible server. Empty uses OpenAI.
	BaseURL             string
	EmbeddingModel      string
	EmbeddingDimensions int
	ChatModel           string
}

func newAPIClient(cfg Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return openai.NewClientWithConfig(clientCfg)
}

type OpenAIAdapter struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

func NewOpenAIAdapter(client *openai.Client, model openai.EmbeddingModel, dimensions int) *OpenAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &OpenAIAdapter{
		client:     client,
		model:      model,
		dimensions: dimensions,
	}
}

// CreateEmbeddings calls the API to create embeddings
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.model,
	}
	// Only third-generation models accept a dimensions parameter.
	if strings.HasPrefix(string(a.model), "text-embedding-3") {
		req.Dimensions = a.dimensions
	}
	resp, err := a.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// EmbeddingClient implements the index Embedder on top of an EmbeddingAPI
type EmbeddingClient struct {
	api        EmbeddingAPI
	model      string
	dimensions int
}

// NewEmbeddingClient creates an EmbeddingClient with explicit configuration.
func NewEmbeddingClient(cfg Config) *EmbeddingClient {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = string(DefaultEmbeddingModel)
	}
	return &EmbeddingClient{
		api:        NewOpenAIAdapter(newAPIClient(cfg), openai.EmbeddingModel(model), dimensions),
		model:      model,
		dimensions: dimensions,
	}
}

// Model returns the embedding model name.
func (c *EmbeddingClient) Model() string {
	return c.model
}

// Embed generates an embedding for the given text. API failures wrap
// domain.ErrEmbeddingUnavailable.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	embedding, err := c.api.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, domain.Wrap(domain.ErrEmbeddingUnavailable, fmt.Errorf("failed to create embedding: %w", err))
	}

	if len(embedding) != c.dimensions {
		return nil, domain.Wrap(domain.ErrEmbeddingUnavailable,
			fmt.Errorf("%w: got %d, expected %d", ErrWrongDimensions, len(embedding), c.dimensions))
	}

	return embedding, nil
}

// ChatClient implements the assistant LanguageModel on top of a ChatAPI
type ChatClient struct {
	api   ChatAPI
	model string
}

// NewChatClient creates a ChatClient with explicit configuration.
func NewChatClient(cfg Config) *ChatClient {
	model := cfg.ChatModel
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatClient{
		api:   newAPIClient(cfg),
		model: model,
	}
}

// Complete sends prompt as a single user turn. Deadline errors wrap
// domain.ErrModelTimeout; every other failure wraps
// domain.ErrModelUnavailable.
func (c *ChatClient) Complete(ctx context.Context, prompt string, params domain.ModelParams) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(params.Temperature),
		MaxTokens:   params.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", domain.Wrap(domain.ErrModelTimeout, err)
		}
		return "", domain.Wrap(domain.ErrModelUnavailable, fmt.Errorf("failed to create completion: %w", err))
	}

	if len(resp.Choices) == 0 {
		return "", domain.Wrap(domain.ErrModelUnavailable, ErrNoChoices)
	}

	return resp.Choices[0].Message.Content, nil
}
