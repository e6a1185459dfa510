// Package genai wraps the OpenAI API for completion and embedding calls.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultTimeout bounds every provider call. Expiry is treated as a
// provider failure by callers.
const DefaultTimeout = 30 * time.Second

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// embeddingService defines the minimal interface for embedding generation.
type embeddingService interface {
	New(ctx context.Context, params openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// ClientInterface is what consumers of this package depend on, so tests
// can substitute a mock provider.
type ClientInterface interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey  string
	Timeout time.Duration
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithTimeout sets the per-call timeout for provider requests.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client wraps the OpenAI chat-completion and embedding services.
type Client struct {
	chat       chatService
	embeddings embeddingService
	timeout    time.Duration
}

// NewClient initializes a GenAI client, falling back to the
// OPENAI_API_KEY environment variable when no key option is given.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("GenAI client created", "timeout", cfg.Timeout)
	return &Client{chat: &cli.Chat.Completions, embeddings: &cli.Embeddings, timeout: cfg.Timeout}, nil
}

// Complete generates a response based on the provided system and user prompts.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModelGPT4oMini,
		Messages: messages,
	})
	if err != nil {
		slog.Error("GenAI Complete failed", "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI Complete returned no choices")
		return "", fmt.Errorf("no choices returned")
	}
	slog.Debug("GenAI Complete succeeded", "length", len(resp.Choices[0].Message.Content))
	return resp.Choices[0].Message.Content, nil
}

// Embed converts text to a fixed-length vector using the embedding model.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModelTextEmbedding3Small,
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		slog.Error("GenAI Embed failed", "error", err)
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(resp.Data) == 0 {
		slog.Error("GenAI Embed returned no data")
		return nil, fmt.Errorf("no embedding returned")
	}
	slog.Debug("GenAI Embed succeeded", "dimensions", len(resp.Data[0].Embedding))
	return resp.Data[0].Embedding, nil
}
