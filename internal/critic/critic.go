// Package critic implements the Critic: the component that judges whether
// the latest observation advances the goal, per spec.md §4.6. It builds a
// low-temperature, short-max-tokens prompt from the goal and observation,
// sends it to an injected llmprovider.Provider, and parses the strict-JSON
// reply into a models.Critique.
package critic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fenwick-ai/agentcore/internal/llmprovider"
	"github.com/fenwick-ai/agentcore/pkg/models"
)

// Config bounds the critic's request to the model.
type Config struct {
	// Model overrides the provider's default model, if non-empty.
	Model string
	// MaxTokens bounds the critic's reply length. Default: 512.
	MaxTokens int
	// Temperature controls sampling. The critic always runs "low
	// temperature" per spec.md §4.6; default: 0.
	Temperature float64
}

// DefaultConfig returns the critic's default request bounds.
func DefaultConfig() Config {
	return Config{MaxTokens: 512, Temperature: 0}
}

// Critic assesses goal satisfaction from an Observation.
type Critic struct {
	provider llmprovider.Provider
	config   Config
}

// New creates a Critic backed by provider. A zero-value config falls back
// to DefaultConfig.
func New(provider llmprovider.Provider, config Config) *Critic {
	if config == (Config{}) {
		config = DefaultConfig()
	}
	return &Critic{provider: provider, config: config}
}

// ParseError wraps a critic response that failed to parse as the required
// strict-JSON object. Per spec.md §7, this is a fatal turn error: the
// orchestrator must abort the current turn and terminate the task rather
// than silently guessing at a recommendation.
type ParseError struct {
	Raw   string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("critic: failed to parse response as JSON: %v (raw: %q)", e.Cause, e.Raw)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// criticResponse is the strict-JSON shape the model is instructed to reply
// with.
type criticResponse struct {
	GoalSatisfied  bool     `json:"goal_satisfied"`
	Assessment     string   `json:"assessment"`
	KnownGaps      []string `json:"known_gaps"`
	Recommendation string   `json:"recommendation"`
}

// Assess sends goal and observation to the model and returns its parsed
// Critique. A response wrapped in a fenced code block has the fence
// stripped before parsing; this is the only parsing tolerance spec.md §9
// grants, so any other malformed reply surfaces as a *ParseError.
func (c *Critic) Assess(ctx context.Context, goal models.AgentGoal, obs models.Observation) (models.Critique, error) {
	req := llmprovider.CompletionRequest{
		Model:       c.config.Model,
		System:      criticSystemPrompt,
		Messages:    []llmprovider.Message{{Role: "user", Content: c.buildPrompt(goal, obs)}},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	resp, err := c.provider.Complete(ctx, req)
	if err != nil {
		return models.Critique{}, fmt.Errorf("critic: completion request failed: %w", err)
	}

	stripped := stripFence(resp.AssistantMessage.Content)

	var parsed criticResponse
	if err := json.Unmarshal([]byte(stripped), &parsed); err != nil {
		return models.Critique{}, &ParseError{Raw: resp.AssistantMessage.Content, Cause: err}
	}

	return models.Critique{
		GoalSatisfied:  parsed.GoalSatisfied,
		Assessment:     parsed.Assessment,
		KnownGaps:      parsed.KnownGaps,
		Recommendation: normalizeRecommendation(parsed.Recommendation),
	}, nil
}

const criticSystemPrompt = `You are the critic in an autonomous agent's control loop. Given a goal and ` +
	`the latest tool observation, judge whether the observation advances the goal. Reply with ONLY a ` +
	`JSON object, no prose, shaped exactly as:
{"goal_satisfied": bool, "assessment": string, "known_gaps": [string], "recommendation": "continue"|"replan"|"clarify"|"stop"|"retry"}`

// buildPrompt assembles the goal, its constraints, the observation summary,
// the key facts as JSON, and the affordances into the user message.
func (c *Critic) buildPrompt(goal models.AgentGoal, obs models.Observation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", goal.Description)
	if len(goal.Constraints) > 0 {
		fmt.Fprintf(&b, "Constraints:\n")
		for _, c := range goal.Constraints {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	fmt.Fprintf(&b, "Observation summary: %s\n", obs.Summary)

	factsJSON, err := json.Marshal(obs.KeyFacts)
	if err != nil {
		factsJSON = []byte("{}")
	}
	fmt.Fprintf(&b, "Key facts: %s\n", factsJSON)

	if len(obs.Affordances) > 0 {
		fmt.Fprintf(&b, "Affordances: %s\n", strings.Join(obs.Affordances, ", "))
	}
	return b.String()
}

// stripFence removes a single leading/trailing fenced code block (```
// optionally followed by a language tag, and a closing ```), the only
// tolerance the critic grants a non-strict-JSON reply.
func stripFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(trimmed[:nl])
		if firstLine == "" || isLanguageTag(firstLine) {
			trimmed = trimmed[nl+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return len(s) > 0
}

// normalizeRecommendation maps a free-form recommendation string onto the
// fixed enum, defaulting to Continue for anything unrecognized so a minor
// model wording drift doesn't itself become a fatal turn error.
func normalizeRecommendation(s string) models.Recommendation {
	switch models.Recommendation(strings.ToLower(strings.TrimSpace(s))) {
	case models.RecommendReplan:
		return models.RecommendReplan
	case models.RecommendClarify:
		return models.RecommendClarify
	case models.RecommendStop:
		return models.RecommendStop
	case models.RecommendRetry:
		return models.RecommendRetry
	default:
		return models.RecommendContinue
	}
}
