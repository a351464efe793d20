package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/spectralhq/spectral/internal/backoff"
	"github.com/spectralhq/spectral/internal/config"
)

const defaultOpenAIModel = "gpt-4o"

type openAIClient struct {
	client     *openai.Client
	model      string
	maxTokens  int
	maxRetries int
	timeout    time.Duration
	policy     backoff.Policy
	logger     *slog.Logger
}

func newOpenAIClient(cfg config.LLMConfig, logger *slog.Logger) (*openAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &openAIClient{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		maxTokens:  cfg.MaxTokens,
		maxRetries: maxRetries,
		timeout:    cfg.Timeout,
		policy:     backoff.ProviderPolicy(),
		logger:     logger.With("provider", "openai"),
	}, nil
}

func (c *openAIClient) Name() string { return "openai" }

func (c *openAIClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	messages := []Message{}
	if system != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: system})
	}
	messages = append(messages, Message{Role: RoleUser, Content: prompt})
	return c.Chat(ctx, messages)
}

func (c *openAIClient) Chat(ctx context.Context, messages []Message) (string, error) {
	if err := validateMessages(messages); err != nil {
		return "", err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req := c.buildRequest(messages, false)
	text, err := backoff.Retry(ctx, c.policy, c.maxRetries, isRetryable, func(attempt int) (string, error) {
		if attempt > 1 {
			c.logger.Debug("retrying chat completion", "attempt", attempt)
		}
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("empty reply")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", wrapProvider("openai", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", emptyReplyError("openai")
	}
	return text, nil
}

func (c *openAIClient) Stream(ctx context.Context, messages []Message, onDelta func(string)) (string, error) {
	if err := validateMessages(messages); err != nil {
		return "", err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req := c.buildRequest(messages, true)
	stream, err := backoff.Retry(ctx, c.policy, c.maxRetries, isRetryable, func(int) (*openai.ChatCompletionStream, error) {
		return c.client.CreateChatCompletionStream(ctx, req)
	})
	if err != nil {
		return "", wrapProvider("openai", err)
	}
	defer stream.Close()

	var out strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", wrapProvider("openai", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		out.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", emptyReplyError("openai")
	}
	return out.String(), nil
}

func (c *openAIClient) buildRequest(messages []Message, stream bool) openai.ChatCompletionRequest {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: converted,
		Stream:   stream,
	}
	if c.maxTokens > 0 {
		req.MaxTokens = c.maxTokens
	}
	return req
}

func (c *openAIClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}
