package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spectralhq/spectral/internal/archive"
	"github.com/spectralhq/spectral/internal/assistant"
	"github.com/spectralhq/spectral/internal/config"
	"github.com/spectralhq/spectral/internal/dispatch"
	"github.com/spectralhq/spectral/internal/executor"
	"github.com/spectralhq/spectral/internal/llm"
	"github.com/spectralhq/spectral/internal/memory"
	"github.com/spectralhq/spectral/internal/observability"
	"github.com/spectralhq/spectral/internal/planner"
	"github.com/spectralhq/spectral/internal/rag"
	"github.com/spectralhq/spectral/internal/sandbox"
	"github.com/spectralhq/spectral/internal/storage"
	"github.com/spectralhq/spectral/internal/tools"
	"github.com/spectralhq/spectral/internal/verify"
	"github.com/spectralhq/spectral/pkg/models"
)

// app holds the wired pipeline for one CLI invocation.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	memory    *memory.Manager
	rag       *rag.Service
	registry  *tools.Registry
	assistant *assistant.Assistant
	metrics   *observability.Metrics
	metricsLn *http.Server
}

// newApp assembles storage, memory, retrieval, tools and the pipeline from
// the configuration.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	if err := os.MkdirAll(cfg.MemoryDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	mem := memory.NewManager(store)

	ragService := rag.NewService(mem, rag.ServiceConfig{
		Chunker: rag.ChunkerConfig{
			ChunkSize:    cfg.RAG.ChunkSize,
			ChunkOverlap: cfg.RAG.ChunkOverlap,
		},
		TopK:       cfg.RAG.TopK,
		SnippetLen: cfg.RAG.SnippetLen,
	})

	keys := tools.NewFileKeyStore(filepath.Join(cfg.DataDir, "registry_keys.json"))
	automator := &tools.SoftwareAutomator{}
	registry := tools.NewRegistry()
	tools.RegisterDefaultCatalog(registry, &tools.Env{
		DryRun: cfg.Tools.DryRun,
		Paths: tools.PathPolicy{
			Allow: cfg.Tools.AllowedPaths,
			Deny:  cfg.Tools.DeniedPaths,
		},
		Timeout: cfg.Tools.Timeout,
	}, tools.CatalogDeps{Automator: automator, KeyStore: keys})

	client, err := llm.New(cfg.LLM, logger)
	if err != nil {
		mem.Close()
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, memory: mem, rag: ragService, registry: registry}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		a.metrics = observability.New(reg)
		a.metricsLn = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           observability.Handler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := a.metricsLn.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	a.bootstrapKnowledge()

	verifier := verify.New(keys, automator)
	execServer := executor.NewServer(registry, verifier, cfg.Dispatch.Verification, logger)
	dispatcher := dispatch.New(execServer, cfg.Dispatch, logger, dispatch.WithMetrics(a.metrics))
	pl := planner.New(client, registry, ragService, cfg.Planner, logger)

	runner := sandbox.NewManager(cfg.SandboxRoot(), cfg.Sandbox, logger, a.metrics)
	sink := archive.NewSink(cfg.ArchiveRoot(), logger)
	direct := executor.NewDirect(client, runner, sink, mem, cfg.Sandbox, logger, a.metrics)

	a.assistant = assistant.New(client, pl, dispatcher, direct, mem, cfg, logger, a.metrics)
	return a, nil
}

// bootstrapKnowledge ingests the tool-knowledge directory on first run. Once
// chunks exist the directory is only re-read through the ingest command, so
// startup never duplicates entries.
func (a *app) bootstrapKnowledge() {
	dir := a.cfg.KnowledgeDir()
	if _, err := os.Stat(dir); err != nil {
		return
	}
	ctx := context.Background()
	existing, err := a.memory.GetMemoriesByCategory(ctx, models.CategoryKnowledgeChunks, 1)
	if err != nil || len(existing) > 0 {
		return
	}
	count, err := a.rag.IngestDirectory(ctx, dir, models.MemoryToolKnowledge)
	if err != nil {
		a.logger.Warn("knowledge bootstrap failed", "dir", dir, "error", err)
		return
	}
	if count > 0 {
		a.logger.Info("bootstrapped tool knowledge", "dir", dir, "chunks", count)
	}
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "", "sqlite":
		return storage.OpenSQLite(filepath.Join(cfg.MemoryDir(), "memory.db"))
	case "jsonfile":
		return storage.OpenJSONFile(filepath.Join(cfg.MemoryDir(), "memory.json"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func (a *app) close() {
	if a.metricsLn != nil {
		_ = a.metricsLn.Close()
	}
	a.registry.Close()
	if err := a.memory.Close(); err != nil {
		a.logger.Warn("could not close memory store", "error", err)
	}
}
