package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/spectralhq/spectral/internal/backoff"
	"github.com/spectralhq/spectral/internal/config"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

type anthropicClient struct {
	client     anthropic.Client
	model      string
	maxTokens  int
	maxRetries int
	timeout    time.Duration
	policy     backoff.Policy
	logger     *slog.Logger
}

func newAnthropicClient(cfg config.LLMConfig, logger *slog.Logger) (*anthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &anthropicClient{
		client:     anthropic.NewClient(opts...),
		model:      model,
		maxTokens:  maxTokens,
		maxRetries: maxRetries,
		timeout:    cfg.Timeout,
		policy:     backoff.ProviderPolicy(),
		logger:     logger.With("provider", "anthropic"),
	}, nil
}

func (c *anthropicClient) Name() string { return "anthropic" }

func (c *anthropicClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	messages := []Message{}
	if system != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: system})
	}
	messages = append(messages, Message{Role: RoleUser, Content: prompt})
	return c.Chat(ctx, messages)
}

func (c *anthropicClient) Chat(ctx context.Context, messages []Message) (string, error) {
	return c.Stream(ctx, messages, nil)
}

func (c *anthropicClient) Stream(ctx context.Context, messages []Message, onDelta func(string)) (string, error) {
	if err := validateMessages(messages); err != nil {
		return "", err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	params := c.buildParams(messages)
	text, err := backoff.Retry(ctx, c.policy, c.maxRetries, isRetryable, func(attempt int) (string, error) {
		if attempt > 1 {
			c.logger.Debug("retrying message stream", "attempt", attempt)
		}
		return c.consumeStream(ctx, params, onDelta)
	})
	if err != nil {
		return "", wrapProvider("anthropic", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", emptyReplyError("anthropic")
	}
	return text, nil
}

func (c *anthropicClient) consumeStream(ctx context.Context, params anthropic.MessageNewParams, onDelta func(string)) (string, error) {
	stream := c.client.Messages.NewStreaming(ctx, params)

	var out strings.Builder
	for stream.Next() {
		event := stream.Current()
		if event.Type != "content_block_delta" {
			continue
		}
		delta := event.AsContentBlockDelta().Delta
		if delta.Type != "text_delta" || delta.Text == "" {
			continue
		}
		out.WriteString(delta.Text)
		if onDelta != nil {
			onDelta(delta.Text)
		}
	}
	if err := stream.Err(); err != nil {
		return "", err
	}
	return out.String(), nil
}

func (c *anthropicClient) buildParams(messages []Message) anthropic.MessageNewParams {
	system, rest := systemAndRest(messages)

	converted := make([]anthropic.MessageParam, 0, len(rest))
	for _, m := range rest {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			converted = append(converted, anthropic.NewAssistantMessage(block))
		} else {
			converted = append(converted, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		Messages:  converted,
		MaxTokens: int64(c.maxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}
	return params
}

func (c *anthropicClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}
