// Package planner implements the Planner: the component that asks the LLM
// what to do next given the current agent state, and turns its reply into a
// models.PlannerDecision. It is independent of the Critic (both consume the
// LLM but neither depends on the other's output).
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fenwick-ai/agentcore/internal/llmprovider"
	"github.com/fenwick-ai/agentcore/pkg/models"
)

// Config bounds the planner's request to the model.
type Config struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns the planner's default request bounds.
func DefaultConfig() Config {
	return Config{MaxTokens: 1024, Temperature: 0.2}
}

// Planner asks the LLM for the next step and resolves its reply into a
// PlannerDecision.
type Planner struct {
	provider llmprovider.Provider
	config   Config
}

// New creates a Planner backed by provider. A zero-value config falls back
// to DefaultConfig.
func New(provider llmprovider.Provider, config Config) *Planner {
	if config == (Config{}) {
		config = DefaultConfig()
	}
	return &Planner{provider: provider, config: config}
}

// ControlToolName is the name the planner reserves for its own control-flow
// signals (ask-user, stop, replan) when the model chooses not to call a
// registered tool. The model requests it the same way it requests any other
// tool: by name, with a JSON arguments document carrying the decision.
const ControlToolName = "agent_control"

// Plan builds a completion request from the current state and the available
// tool specs, and resolves the model's reply into a PlannerDecision:
//   - a requested call against any other name becomes CallTool; the name
//     is not checked against the registry, and only the first requested
//     call is used.
//   - a requested call against ControlToolName is decoded into
//     AskUser/Stop/Replan according to its "action" field.
//   - a reply with no tool calls at all is treated as Stop, carrying the
//     reply's free text as the reason — the model judged the goal complete
//     or unreachable without naming a tool.
func (p *Planner) Plan(ctx context.Context, state models.AgentState, tools []models.ToolSpec) (models.PlannerDecision, error) {
	req := llmprovider.CompletionRequest{
		Model:       p.config.Model,
		System:      plannerSystemPrompt,
		Messages:    []llmprovider.Message{{Role: "user", Content: p.buildPrompt(state)}},
		Tools:       toolDescriptors(tools),
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
	}

	resp, err := p.provider.Complete(ctx, req)
	if err != nil {
		return models.PlannerDecision{}, fmt.Errorf("planner: completion request failed: %w", err)
	}

	return resolveDecision(resp.AssistantMessage)
}

func resolveDecision(msg llmprovider.AssistantMessage) (models.PlannerDecision, error) {
	if len(msg.ToolCalls) == 0 {
		reason := strings.TrimSpace(msg.Content)
		if reason == "" {
			reason = "model returned no tool call and no content"
		}
		return models.PlannerDecision{Kind: models.PlannerStop, Reason: reason}, nil
	}

	call := msg.ToolCalls[0]
	if call.Name == ControlToolName {
		return decodeControlCall(call)
	}

	return models.PlannerDecision{
		Kind: models.PlannerCallTool,
		ToolCall: &models.ToolCall{
			ID:    call.ID,
			Name:  call.Name,
			Input: call.ArgumentsJSON,
		},
	}, nil
}

// controlArgs is the shape the model fills in when it calls ControlToolName.
type controlArgs struct {
	Action        string   `json:"action"`
	Question      string   `json:"question"`
	MissingFields []string `json:"missing_fields"`
	Reason        string   `json:"reason"`
	Subgoals      []string `json:"subgoals"`
}

func decodeControlCall(call llmprovider.ToolCall) (models.PlannerDecision, error) {
	var args controlArgs
	if len(call.ArgumentsJSON) > 0 {
		if err := json.Unmarshal(call.ArgumentsJSON, &args); err != nil {
			return models.PlannerDecision{}, fmt.Errorf("planner: malformed control arguments: %w", err)
		}
	}

	switch strings.ToLower(args.Action) {
	case "ask_user":
		return models.PlannerDecision{Kind: models.PlannerAskUser, Question: args.Question, MissingFields: args.MissingFields}, nil
	case "replan":
		return models.PlannerDecision{Kind: models.PlannerReplan, Reason: args.Reason, Subgoals: args.Subgoals}, nil
	case "stop", "":
		return models.PlannerDecision{Kind: models.PlannerStop, Reason: args.Reason}, nil
	default:
		return models.PlannerDecision{}, fmt.Errorf("planner: unrecognized control action %q", args.Action)
	}
}

const plannerSystemPrompt = `You are the planner in an autonomous agent's control loop. Given the goal, ` +
	`subgoals, and working memory of the run so far, decide the single next step: call exactly one of the ` +
	`available tools, or call ` + ControlToolName + ` with {"action": "ask_user"|"stop"|"replan", ...} ` +
	`when no tool call is the right next step. Never call more than one tool in a single reply.`

// buildPrompt renders the goal, subgoals, last action/observation, and
// working memory into the planner's user turn.
func (p *Planner) buildPrompt(state models.AgentState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", state.Goal.Description)
	for _, c := range state.Goal.Constraints {
		fmt.Fprintf(&b, "Constraint: %s\n", c)
	}
	if len(state.Subgoals) > 0 {
		fmt.Fprintf(&b, "Subgoals: %s\n", strings.Join(state.Subgoals, "; "))
	}
	fmt.Fprintf(&b, "Turn index: %d\n", state.TurnIndex)

	if state.LastObservation != nil {
		fmt.Fprintf(&b, "Last observation: %s\n", state.LastObservation.Summary)
		if len(state.LastObservation.Affordances) > 0 {
			fmt.Fprintf(&b, "Affordances: %s\n", strings.Join(state.LastObservation.Affordances, ", "))
		}
	}

	if len(state.WorkingMemory) > 0 {
		wmJSON, err := json.Marshal(state.WorkingMemory)
		if err != nil {
			wmJSON = []byte("{}")
		}
		fmt.Fprintf(&b, "Working memory: %s\n", wmJSON)
	}

	return b.String()
}

// toolDescriptors converts the registry's synthesized ToolSpecs into the
// descriptors the completion request exposes to the model.
func toolDescriptors(tools []models.ToolSpec) []llmprovider.ToolDescriptor {
	out := make([]llmprovider.ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, llmprovider.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return out
}
