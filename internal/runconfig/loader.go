// Package runconfig loads the run-time settings cmd/agentctl needs to start
// a task: budget, error-handling policy, and per-tool overrides. It is
// deliberately thin — full configuration composition (secrets, multi-file
// includes, env layering) is an external collaborator's job, not the
// engine's.
package runconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fenwick-ai/agentcore/pkg/models"
)

// RunConfig is the on-disk shape of an agentctl run file.
type RunConfig struct {
	Goal   GoalConfig   `yaml:"goal"`
	Budget BudgetConfig `yaml:"budget"`
	Policy PolicyConfig `yaml:"policy"`
}

// GoalConfig describes the task handed to the orchestrator.
type GoalConfig struct {
	Description string   `yaml:"description"`
	Constraints []string `yaml:"constraints"`
}

// BudgetConfig mirrors models.Budget in YAML-friendly, human-readable units.
type BudgetConfig struct {
	MaxTurns     int    `yaml:"max_turns"`
	MaxWallClock string `yaml:"max_wall_clock"`
}

// PolicyConfig mirrors models.ErrorHandlingPolicy in YAML-friendly form.
type PolicyConfig struct {
	MaxRetries             int               `yaml:"max_retries"`
	BaseBackoff            string            `yaml:"base_backoff"`
	UseFallbacks           bool              `yaml:"use_fallbacks"`
	AskUserOnMissingFields bool              `yaml:"ask_user_on_missing_fields"`
	Fallbacks              map[string]string `yaml:"fallbacks"`
}

// Load reads and parses a run configuration file at path. Environment
// variables of the form ${NAME} in the file are expanded before parsing, the
// way internal/config/loader.go expands them for the teacher's config files.
func Load(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("runconfig: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg RunConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return RunConfig{}, fmt.Errorf("runconfig: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ToGoal converts the loaded goal section into a models.AgentGoal.
func (c RunConfig) ToGoal() models.AgentGoal {
	return models.AgentGoal{Description: c.Goal.Description, Constraints: c.Goal.Constraints}
}

// ToBudget converts the loaded budget section into a models.Budget, parsing
// MaxWallClock as a Go duration string (e.g. "5m", "30s"). An empty value
// leaves the budget unbounded on wall-clock time; an unparsable value is an
// error.
func (c RunConfig) ToBudget() (models.Budget, error) {
	b := models.Budget{MaxTurns: c.Budget.MaxTurns}
	if c.Budget.MaxWallClock != "" {
		d, err := time.ParseDuration(c.Budget.MaxWallClock)
		if err != nil {
			return models.Budget{}, fmt.Errorf("runconfig: invalid max_wall_clock %q: %w", c.Budget.MaxWallClock, err)
		}
		b.MaxWallClock = d
	}
	return b, nil
}

// ToPolicy converts the loaded policy section into a models.ErrorHandlingPolicy.
func (c RunConfig) ToPolicy() (models.ErrorHandlingPolicy, error) {
	p := models.ErrorHandlingPolicy{
		MaxRetries:             c.Policy.MaxRetries,
		UseFallbacks:           c.Policy.UseFallbacks,
		AskUserOnMissingFields: c.Policy.AskUserOnMissingFields,
		Fallbacks:              c.Policy.Fallbacks,
	}
	if c.Policy.BaseBackoff != "" {
		d, err := time.ParseDuration(c.Policy.BaseBackoff)
		if err != nil {
			return models.ErrorHandlingPolicy{}, fmt.Errorf("runconfig: invalid base_backoff %q: %w", c.Policy.BaseBackoff, err)
		}
		p.BaseBackoff = d
	}
	return p, nil
}
