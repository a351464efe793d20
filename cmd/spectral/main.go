// Package main provides the CLI entry point for the Spectral action
// assistant.
//
// Spectral turns natural-language requests into verified tool invocations:
// it plans, executes with verification and adaptive retry, and remembers
// outcomes across turns. Code-generation requests run through a sandboxed
// verification pipeline before anything is exported.
//
// # Basic Usage
//
// Run one command:
//
//	spectral run "create a folder called projects on the desktop"
//
// Start an interactive session:
//
//	spectral chat
//
// Ingest tool knowledge documents:
//
//	spectral ingest ./docs/tools
//
// # Environment Variables
//
//   - SPECTRAL_CONFIG: Path to configuration file
//   - OPENAI_API_KEY: OpenAI API key
//   - ANTHROPIC_API_KEY: Anthropic API key
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/spectralhq/spectral/internal/config"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spectral",
		Short: "Spectral - AI-driven action assistant",
		Long: `Spectral breaks natural-language requests into verifiable plans of
concrete tool invocations, executes them with verification and adaptive
retry, and learns from outcomes.

Supported LLM providers: OpenAI, Anthropic, local (OpenAI-compatible)
Tool families: file, shell, subprocess, gui, typing, winreg, ocr`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildRunCmd(),
		buildChatCmd(),
		buildIngestCmd(),
		buildMemoryCmd(),
	)
	return rootCmd
}

// setupLogging installs the slog handler described by the configuration.
func setupLogging(cfg config.LoggingConfig, debug bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
