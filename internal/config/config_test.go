package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.RAG.ChunkSize != 500 || cfg.RAG.ChunkOverlap != 50 || cfg.RAG.TopK != 3 {
		t.Errorf("RAG defaults = %+v", cfg.RAG)
	}
	if cfg.Dispatch.MaxRetries != 3 || !cfg.Dispatch.Verification {
		t.Errorf("Dispatch defaults = %+v", cfg.Dispatch)
	}
	if cfg.Sandbox.MaxAttempts != 10 || cfg.Sandbox.PythonBin != "python3" {
		t.Errorf("Sandbox defaults = %+v", cfg.Sandbox)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Timeout != 120*time.Second {
		t.Errorf("LLM defaults = %+v", cfg.LLM)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() does not validate: %v", err)
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RAG.ChunkSize != 500 {
		t.Errorf("ChunkSize = %d, want default 500", cfg.RAG.ChunkSize)
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
storage:
  backend: jsonfile
rag:
  chunk_size: 800
dispatch:
  max_retries: 5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Backend != "jsonfile" {
		t.Errorf("Backend = %q, want jsonfile", cfg.Storage.Backend)
	}
	if cfg.RAG.ChunkSize != 800 {
		t.Errorf("ChunkSize = %d, want 800", cfg.RAG.ChunkSize)
	}
	if cfg.Dispatch.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.Dispatch.MaxRetries)
	}
	if cfg.RAG.TopK != 3 {
		t.Errorf("TopK = %d, want untouched default 3", cfg.RAG.TopK)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("SPECTRAL_TEST_KEY", "sk-test-123")
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
llm:
  api_key: ${SPECTRAL_TEST_KEY}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "sk-test-123" {
		t.Errorf("APIKey = %q, want sk-test-123", cfg.LLM.APIKey)
	}
}

func TestLoadResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
rag:
  chunk_size: 600
  top_k: 4
`)
	path := writeFile(t, dir, "config.yaml", `
$include: base.yaml
rag:
  top_k: 7
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RAG.ChunkSize != 600 {
		t.Errorf("ChunkSize = %d, want included 600", cfg.RAG.ChunkSize)
	}
	if cfg.RAG.TopK != 7 {
		t.Errorf("TopK = %d, want outer override 7", cfg.RAG.TopK)
	}
}

func TestLoadRejectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "$include: b.yaml\n")
	path := writeFile(t, dir, "b.yaml", "$include: a.yaml\n")
	if _, err := Load(path); err == nil {
		t.Error("Load accepted an include cycle")
	}
}

func TestLoadJSON5(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json5", `{
  // comments are allowed here
  rag: {chunk_size: 700},
}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RAG.ChunkSize != 700 {
		t.Errorf("ChunkSize = %d, want 700", cfg.RAG.ChunkSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load accepted a missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero chunk size", func(c *Config) { c.RAG.ChunkSize = 0 }, true},
		{"overlap >= chunk size", func(c *Config) { c.RAG.ChunkOverlap = 500 }, true},
		{"negative retries", func(c *Config) { c.Dispatch.MaxRetries = -1 }, true},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }, true},
		{"jsonfile backend", func(c *Config) { c.Storage.Backend = "jsonfile" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDirHelpers(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data/spectral"

	if got := cfg.MemoryDir(); got != filepath.Join("/data/spectral", "persistent_memory") {
		t.Errorf("MemoryDir() = %q", got)
	}
	cfg.Storage.Path = "/elsewhere/mem"
	if got := cfg.MemoryDir(); got != "/elsewhere/mem" {
		t.Errorf("MemoryDir() with override = %q", got)
	}

	if got := cfg.KnowledgeDir(); got != filepath.Join("/data/spectral", "tool_knowledge") {
		t.Errorf("KnowledgeDir() = %q", got)
	}

	cfg.Sandbox.Root = "/runs"
	if got := cfg.SandboxRoot(); got != "/runs" {
		t.Errorf("SandboxRoot() with override = %q", got)
	}
	cfg.Archive.Root = "/exports"
	if got := cfg.ArchiveRoot(); got != "/exports" {
		t.Errorf("ArchiveRoot() with override = %q", got)
	}
}
