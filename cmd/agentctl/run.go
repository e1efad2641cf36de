package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fenwick-ai/agentcore/internal/agent"
	"github.com/fenwick-ai/agentcore/internal/critic"
	"github.com/fenwick-ai/agentcore/internal/normalizer"
	"github.com/fenwick-ai/agentcore/internal/orchestrator"
	"github.com/fenwick-ai/agentcore/internal/planner"
	"github.com/fenwick-ai/agentcore/internal/runconfig"
	"github.com/fenwick-ai/agentcore/internal/statemanager"
	"github.com/fenwick-ai/agentcore/pkg/models"
)

func buildRunCmd() *cobra.Command {
	var (
		configPath string
		goalFlag   string
		pathFlag   string
		maxTurns   int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single task to completion against the demo tool registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			goal := models.AgentGoal{Description: goalFlag}
			budget := models.Budget{MaxTurns: maxTurns, StartedAt: time.Now()}
			policy := models.ErrorHandlingPolicy{MaxRetries: 2, AskUserOnMissingFields: true}

			if configPath != "" {
				cfg, err := runconfig.Load(configPath)
				if err != nil {
					return err
				}
				goal = cfg.ToGoal()
				if goalFlag != "" {
					goal.Description = goalFlag
				}
				if b, err := cfg.ToBudget(); err == nil && (b.MaxTurns > 0 || b.MaxWallClock > 0) {
					b.StartedAt = time.Now()
					budget = b
				}
				if p, err := cfg.ToPolicy(); err == nil {
					policy = p
				}
			}
			if goal.Description == "" {
				goal.Description = fmt.Sprintf("list files in %s", pathFlag)
			}

			toolArgs, _ := json.Marshal(map[string]any{"path": pathFlag})

			registry := agent.NewRegistry()
			registry.Register(listDirectoryTool{})
			registry.Register(echoTool{})

			adapter := agent.NewAdapter(registry, agent.DefaultAdapterConfig())
			provider := newStubProvider("list_directory", toolArgs)
			p := planner.New(provider, planner.DefaultConfig())
			c := critic.New(provider, critic.DefaultConfig())
			sm := statemanager.New(statemanager.NewMemoryStore(), statemanager.DefaultWorkingMemoryConfig())

			orch := orchestrator.New(registry, adapter, p, c, sm, normalizer.DefaultConfig(), nil)

			traceID := uuid.NewString()
			result := orch.Run(cmd.Context(), traceID, goal, budget, policy, orchestrator.NopSink{})

			out, err := json.MarshalIndent(map[string]any{
				"trace_id":    traceID,
				"success":     result.Success,
				"stop_reason": result.StopReason,
				"total_turns": result.TotalTurns,
				"duration":    result.Duration.String(),
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if !result.Success {
				return fmt.Errorf("run did not succeed: %s", result.StopReason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a run configuration file (YAML)")
	cmd.Flags().StringVar(&goalFlag, "goal", "", "Goal description, overrides the config file's goal")
	cmd.Flags().StringVar(&pathFlag, "path", ".", "Directory for the demo list_directory tool call")
	cmd.Flags().IntVar(&maxTurns, "max-turns", 5, "Maximum turns before the run is considered exhausted")

	return cmd
}
