package runconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad_ParsesGoalBudgetPolicy(t *testing.T) {
	path := writeTempConfig(t, `
goal:
  description: list files in /tmp
  constraints:
    - read-only
budget:
  max_turns: 5
  max_wall_clock: 30s
policy:
  max_retries: 2
  base_backoff: 200ms
  use_fallbacks: true
  ask_user_on_missing_fields: true
  fallbacks:
    search_web: search_local
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	goal := cfg.ToGoal()
	if goal.Description != "list files in /tmp" || len(goal.Constraints) != 1 {
		t.Errorf("unexpected goal: %+v", goal)
	}

	budget, err := cfg.ToBudget()
	if err != nil {
		t.Fatalf("ToBudget: %v", err)
	}
	if budget.MaxTurns != 5 || budget.MaxWallClock.String() != "30s" {
		t.Errorf("unexpected budget: %+v", budget)
	}

	policy, err := cfg.ToPolicy()
	if err != nil {
		t.Fatalf("ToPolicy: %v", err)
	}
	if policy.MaxRetries != 2 || !policy.UseFallbacks || !policy.AskUserOnMissingFields {
		t.Errorf("unexpected policy: %+v", policy)
	}
	if policy.Fallbacks["search_web"] != "search_local" {
		t.Errorf("expected fallback mapping, got %v", policy.Fallbacks)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("AGENTCTL_GOAL", "expanded goal text")
	path := writeTempConfig(t, "goal:\n  description: ${AGENTCTL_GOAL}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Goal.Description != "expanded goal text" {
		t.Errorf("expected env expansion, got %q", cfg.Goal.Description)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/run.yaml")
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestToBudget_InvalidDuration(t *testing.T) {
	cfg := RunConfig{Budget: BudgetConfig{MaxWallClock: "not-a-duration"}}
	if _, err := cfg.ToBudget(); err == nil {
		t.Fatal("expected an error for an invalid duration")
	}
}
