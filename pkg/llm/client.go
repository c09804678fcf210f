package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Providers supported by NewCompleter.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds the options fixed at client construction.
type Config struct {
	Provider      string        // "openai" (default) or "anthropic"
	Endpoint      string        // Base URL, e.g. "https://api.openai.com/v1"
	Model         string        // Model name, e.g. "gpt-4o"
	APIKey        string        // Optional for local endpoints
	SystemMessage string        // Sent with every prompt
	Temperature   float64       // Sampling temperature
	MaxTokens     int           // Upper bound on generated tokens, 0 for provider default
	Timeout       time.Duration // Per-request timeout, 0 for none
}

// Client provides access to OpenAI-compatible chat completion endpoints.
type Client struct {
	client        *openai.Client
	endpoint      string
	model         string
	systemMessage string
	temperature   float32
	maxTokens     int
	timeout       time.Duration
	logger        *zap.Logger
}

// NewClient creates a new OpenAI-compatible client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	return &Client{
		client:        openai.NewClientWithConfig(clientConfig),
		endpoint:      cfg.Endpoint,
		model:         cfg.Model,
		systemMessage: cfg.SystemMessage,
		temperature:   float32(cfg.Temperature),
		maxTokens:     cfg.MaxTokens,
		timeout:       cfg.Timeout,
		logger:        logger.Named("llm"),
	}, nil
}

// Complete sends prompt as a single chat completion request and returns the
// first choice's content.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var messages []openai.ChatCompletionMessage
	if c.systemMessage != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: c.systemMessage})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.Float32("temperature", c.temperature))

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", c.classify(err)
	}

	if len(resp.Choices) == 0 {
		c.logger.Warn("LLM response had no choices", zap.Duration("elapsed", time.Since(start)))
		return "", nil
	}

	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}

// GetModel returns the configured model name.
func (c *Client) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint.
func (c *Client) GetEndpoint() string {
	return c.endpoint
}

func (c *Client) classify(err error) error {
	llmErr := ClassifyError(err)
	if llmErr.Model == "" {
		llmErr.Model = c.model
	}
	if llmErr.Endpoint == "" {
		llmErr.Endpoint = c.endpoint
	}
	return llmErr
}
