// handlers.go implements the command handlers wired in commands.go.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spectralhq/spectral/internal/config"
	"github.com/spectralhq/spectral/pkg/models"
)

func runRun(ctx context.Context, configPath string, debug, dryRun bool, request string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dryRun {
		cfg.Tools.DryRun = true
	}
	logger := setupLogging(cfg.Logging, debug)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	_, err = a.assistant.ProcessCommandStream(ctx, request, func(chunk string) {
		fmt.Print(chunk)
	})
	return err
}

func runChat(ctx context.Context, configPath string, debug, dryRun bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dryRun {
		cfg.Tools.DryRun = true
	}
	logger := setupLogging(cfg.Logging, debug)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Println("Spectral interactive session. Type \"exit\" to leave.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		if _, err := a.assistant.ProcessCommandStream(ctx, line, func(chunk string) {
			fmt.Print(chunk)
		}); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Printf("error: %v\n", err)
		}
		fmt.Println()
	}
	return scanner.Err()
}

func runIngest(ctx context.Context, configPath, dir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.Logging, false)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	count, err := a.rag.IngestDirectory(ctx, dir, models.MemoryToolKnowledge)
	if err != nil {
		return err
	}
	fmt.Printf("Ingested %d chunks from %s\n", count, dir)
	return nil
}

func runMemoryList(ctx context.Context, configPath, category string, limit int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.Logging, false)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	entries, err := a.memory.GetMemoriesByCategory(ctx, category, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("No entries in %s\n", category)
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %s  %s\n", e.Timestamp.Format("2006-01-02 15:04"), e.ID[:8], e.Key)
	}
	return nil
}

func runMemorySearch(ctx context.Context, configPath, query string, limit int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.Logging, false)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	matches, err := a.memory.SearchByDescription(ctx, query, limit)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Println("No matching executions")
		return nil
	}
	for _, m := range matches {
		status := "ok"
		if !m.Success {
			status = "failed"
		}
		fmt.Printf("%s  [%s]  %s\n", m.Timestamp.Format("2006-01-02 15:04"), status, m.Description)
		for _, loc := range m.FileLocations {
			fmt.Printf("    %s\n", loc)
		}
	}
	return nil
}

func runMemoryPurge(ctx context.Context, configPath, category string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.Logging, false)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	count, err := a.memory.PurgeCategory(ctx, category)
	if err != nil {
		return err
	}
	fmt.Printf("Purged %d entries from %s\n", count, category)
	return nil
}
