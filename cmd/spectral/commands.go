// commands.go contains the cobra command definitions and their flag
// configurations. Each builder creates a command and wires it to its
// handler.
package main

import (
	"github.com/spf13/cobra"
)

func buildRunCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
		dryRun     bool
	)
	cmd := &cobra.Command{
		Use:   "run \"<request>\"",
		Short: "Process one natural-language request",
		Long: `Process a single request through the full pipeline: intent
classification, planning, execution with verification and retry, and
turn persistence. Output streams as it is produced.`,
		Example: `  spectral run "create a folder called projects"
  spectral run "write a program that renames my photos"
  spectral run "delete that file you created" `,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), configPath, debug, dryRun, args[0])
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Describe actions without performing them")
	return cmd
}

func buildChatCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
		dryRun     bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		Long: `Read requests from stdin in a loop, streaming each response.
Type "exit" or press Ctrl-D to leave.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), configPath, debug, dryRun)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Describe actions without performing them")
	return cmd
}

func buildIngestCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "ingest <directory>",
		Short: "Ingest knowledge documents for retrieval",
		Long: `Chunk every readable text file under the directory into the
knowledge store. Retrieved chunks enrich planning prompts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), configPath, args[0])
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}

func buildMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and manage persistent memory",
	}
	cmd.AddCommand(buildMemoryListCmd(), buildMemorySearchCmd(), buildMemoryPurgeCmd())
	return cmd
}

func buildMemoryListCmd() *cobra.Command {
	var (
		configPath string
		category   string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored memory entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemoryList(cmd.Context(), configPath, category, limit)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&category, "category", "conversations", "Category to list (conversations, executions, knowledge_chunks)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to print")
	return cmd
}

func buildMemorySearchCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search past executions by description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemorySearch(cmd.Context(), configPath, args[0], limit)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().IntVar(&limit, "limit", 5, "Maximum matches to print")
	return cmd
}

func buildMemoryPurgeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "purge <category>",
		Short: "Delete every entry in a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemoryPurge(cmd.Context(), configPath, args[0])
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}
