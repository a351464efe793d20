package llm

import (
	"log/slog"

	"github.com/spectralhq/spectral/internal/config"
)

const (
	// Ollama, vLLM and llama.cpp all expose an OpenAI-compatible endpoint,
	// so the local client is the OpenAI client pointed at it.
	defaultLocalBaseURL = "http://localhost:11434/v1"
	defaultLocalModel   = "llama3.1"
)

type localClient struct {
	*openAIClient
}

func newLocalClient(cfg config.LLMConfig, logger *slog.Logger) (*localClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultLocalBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultLocalModel
	}
	if cfg.APIKey == "" {
		// Local servers ignore the key but the SDK requires one.
		cfg.APIKey = "local"
	}
	inner, err := newOpenAIClient(cfg, logger.With("provider", "local"))
	if err != nil {
		return nil, err
	}
	return &localClient{openAIClient: inner}, nil
}

func (c *localClient) Name() string { return "local" }
