// Package llm wraps the language model providers behind one small client
// interface: unary generation, chat with history, and token streaming.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spectralhq/spectral/internal/config"
	"github.com/spectralhq/spectral/internal/errs"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string
	Content string
}

// Client is the provider-agnostic LLM surface. Stream invokes onDelta for
// each text fragment as it arrives and returns the full accumulated text.
type Client interface {
	Name() string
	Generate(ctx context.Context, system, prompt string) (string, error)
	Chat(ctx context.Context, messages []Message) (string, error)
	Stream(ctx context.Context, messages []Message, onDelta func(text string)) (string, error)
}

// New builds a client for the configured provider.
func New(cfg config.LLMConfig, logger *slog.Logger) (Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Provider {
	case "openai":
		return newOpenAIClient(cfg, logger)
	case "anthropic":
		return newAnthropicClient(cfg, logger)
	case "local":
		return newLocalClient(cfg, logger)
	default:
		return nil, errs.Validationf("unknown llm provider %q", cfg.Provider)
	}
}

// isRetryable classifies transport errors worth another attempt: rate
// limits, 5xx responses, timeouts and connection drops. Auth and validation
// failures are not.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"rate limit", "rate_limit", "429", "too many requests",
		"500", "502", "503", "504",
		"internal server error", "bad gateway", "service unavailable", "gateway timeout",
		"timeout", "deadline exceeded",
		"connection reset", "connection refused", "no such host", "eof",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func wrapProvider(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &errs.ProviderError{Provider: provider, Err: err}
}

func systemAndRest(messages []Message) (string, []Message) {
	var system strings.Builder
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system.Len() > 0 {
				system.WriteString("\n")
			}
			system.WriteString(m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return system.String(), rest
}

func validateMessages(messages []Message) error {
	if len(messages) == 0 {
		return errs.Validationf("no messages to send")
	}
	for i, m := range messages {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return errs.Validationf("message %d has unknown role %q", i, m.Role)
		}
	}
	return nil
}

func emptyReplyError(provider string) error {
	return wrapProvider(provider, fmt.Errorf("empty reply"))
}
