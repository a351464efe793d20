// Package config loads and validates the Spectral configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath selects the config file when no flag is given.
const EnvConfigPath = "SPECTRAL_CONFIG"

// Config is the root configuration.
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	Logging  LoggingConfig  `yaml:"logging"`
	Storage  StorageConfig  `yaml:"storage"`
	RAG      RAGConfig      `yaml:"rag"`
	Tools    ToolsConfig    `yaml:"tools"`
	LLM      LLMConfig      `yaml:"llm"`
	Planner  PlannerConfig  `yaml:"planner"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// LoggingConfig controls the slog handler installed by the CLI.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// StorageConfig selects and parameterizes the storage backend.
type StorageConfig struct {
	// Backend is "sqlite" or "jsonfile".
	Backend string `yaml:"backend"`
	// Path overrides the default <data_dir>/persistent_memory location.
	Path string `yaml:"path"`
}

// RAGConfig parameterizes chunking and retrieval.
type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
	SnippetLen   int `yaml:"snippet_len"`
}

// ToolsConfig controls the adapter catalog.
type ToolsConfig struct {
	DryRun bool `yaml:"dry_run"`
	// AllowedPaths is the filesystem allow-list; deny wins over allow.
	AllowedPaths []string      `yaml:"allowed_paths"`
	DeniedPaths  []string      `yaml:"denied_paths"`
	Timeout      time.Duration `yaml:"timeout"`
}

// LLMConfig selects the provider and model.
type LLMConfig struct {
	// Provider is "openai", "anthropic" or "local".
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	MaxTokens  int           `yaml:"max_tokens"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// PlannerConfig controls plan generation and validation.
type PlannerConfig struct {
	SafetyValidation bool `yaml:"safety_validation"`
	RAGEnrichment    bool `yaml:"rag_enrichment"`
	ContextTurns     int  `yaml:"context_turns"`
}

// DispatchConfig controls step retry behavior.
type DispatchConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	BackoffBase  time.Duration `yaml:"backoff_base"`
	Verification bool          `yaml:"verification"`
	// Alternatives maps an action type to the substitute tried on retry.
	Alternatives map[string]string `yaml:"alternatives"`
}

// SandboxConfig controls code verification runs.
type SandboxConfig struct {
	// Root overrides <home>/.spectral/sandbox_runs.
	Root           string        `yaml:"root"`
	PythonBin      string        `yaml:"python_bin"`
	SyntaxTimeout  time.Duration `yaml:"syntax_timeout"`
	TestTimeout    time.Duration `yaml:"test_timeout"`
	SmokeTimeout   time.Duration `yaml:"smoke_timeout"`
	MaxAttempts    int           `yaml:"max_attempts"`
	KeepFailedRuns bool          `yaml:"keep_failed_runs"`
}

// ArchiveConfig controls where successful generations are exported.
type ArchiveConfig struct {
	// Root overrides <home>/Desktop/spectral.
	Root string `yaml:"root"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir: filepath.Join(home, ".spectral"),
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Storage: StorageConfig{Backend: "sqlite"},
		RAG: RAGConfig{
			ChunkSize:    500,
			ChunkOverlap: 50,
			TopK:         3,
			SnippetLen:   200,
		},
		Tools: ToolsConfig{
			Timeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			Provider:   "openai",
			MaxTokens:  4096,
			Timeout:    120 * time.Second,
			MaxRetries: 3,
		},
		Planner: PlannerConfig{
			SafetyValidation: true,
			RAGEnrichment:    true,
			ContextTurns:     3,
		},
		Dispatch: DispatchConfig{
			MaxRetries:   3,
			BackoffBase:  time.Second,
			Verification: true,
			Alternatives: map[string]string{},
		},
		Sandbox: SandboxConfig{
			PythonBin:     "python3",
			SyntaxTimeout: 5 * time.Second,
			TestTimeout:   30 * time.Second,
			SmokeTimeout:  5 * time.Second,
			MaxAttempts:   10,
		},
		Metrics: MetricsConfig{Addr: ":9464"},
	}
}

// Load reads the config file at path, layered over defaults. An empty path
// falls back to $SPECTRAL_CONFIG, then to pure defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return cfg, nil
	}

	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk_size must be positive")
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Dispatch.MaxRetries < 0 {
		return fmt.Errorf("dispatch.max_retries must be >= 0")
	}
	switch c.Storage.Backend {
	case "", "sqlite", "jsonfile":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

// MemoryDir is where the storage backend keeps its files.
func (c *Config) MemoryDir() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return filepath.Join(c.DataDir, "persistent_memory")
}

// KnowledgeDir is where bootstrap tool knowledge documents live.
func (c *Config) KnowledgeDir() string {
	return filepath.Join(c.DataDir, "tool_knowledge")
}

// SandboxRoot is where sandbox run directories are created.
func (c *Config) SandboxRoot() string {
	if c.Sandbox.Root != "" {
		return c.Sandbox.Root
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".spectral", "sandbox_runs")
}

// ArchiveRoot is where successful generations are exported.
func (c *Config) ArchiveRoot() string {
	if c.Archive.Root != "" {
		return c.Archive.Root
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Desktop", "spectral")
}
