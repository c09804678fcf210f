package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// DefaultAnthropicMaxTokens is used when Config.MaxTokens is unset; the
// Messages API requires a value.
const DefaultAnthropicMaxTokens = 1024

// AnthropicClient completes prompts with the Anthropic Messages API.
type AnthropicClient struct {
	client        *anthropic.Client
	endpoint      string
	model         string
	systemMessage string
	temperature   float32
	maxTokens     int
	timeout       time.Duration
	logger        *zap.Logger
}

// NewAnthropicClient creates a client for the Anthropic Messages API.
// Endpoint is optional and overrides the default base URL.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	var opts []anthropic.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultAnthropicMaxTokens
	}

	return &AnthropicClient{
		client:        anthropic.NewClient(cfg.APIKey, opts...),
		endpoint:      cfg.Endpoint,
		model:         cfg.Model,
		systemMessage: cfg.SystemMessage,
		temperature:   float32(cfg.Temperature),
		maxTokens:     maxTokens,
		timeout:       cfg.Timeout,
		logger:        logger.Named("llm"),
	}, nil
}

// Complete sends prompt as a single user message and returns the first text
// block of the response.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.logger.Debug("LLM request",
		zap.String("provider", ProviderAnthropic),
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()
	temperature := c.temperature

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		System:      c.systemMessage,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		llmErr := ClassifyError(err)
		llmErr.Model = c.model
		llmErr.Endpoint = c.endpoint
		return "", llmErr
	}

	c.logger.Info("LLM request completed",
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text, nil
		}
	}
	return "", nil
}
