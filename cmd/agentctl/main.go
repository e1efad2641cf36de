// Package main provides the agentctl CLI: a smoke-test harness that runs a
// single task through the agent orchestration engine against an in-memory
// tool registry and a deterministic stub LLM provider.
//
// # Basic usage
//
//	agentctl run --config run.yaml
//	agentctl run --goal "list files in /tmp" --path /tmp
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached. It is
// separated from main() to make the command tree testable without a process
// exit.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "agentctl",
		Short:        "agentctl - run an autonomous agent task end-to-end",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(buildRunCmd())
	return rootCmd
}
