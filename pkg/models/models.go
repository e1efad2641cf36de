// Package models defines the shared data types that flow through the turn
// loop: goals, budgets, tool calls and results, observations, critiques, and
// the tagged-variant decisions the policy engine and planner produce.
package models

import (
	"encoding/json"
	"time"
)

// AgentGoal describes what the agent is trying to accomplish for a run.
type AgentGoal struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Constraints []string       `json:"constraints,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

// Budget bounds how long and how many turns a run may take.
type Budget struct {
	MaxTurns     int           `json:"max_turns"`
	MaxWallClock time.Duration `json:"max_wall_clock"`
	StartedAt    time.Time     `json:"started_at"`
}

// Exhausted reports whether turnIndex or elapsed wall-clock time has used up
// the budget.
func (b Budget) Exhausted(turnIndex int) bool {
	if b.MaxTurns > 0 && turnIndex >= b.MaxTurns {
		return true
	}
	if b.MaxWallClock > 0 && !b.StartedAt.IsZero() && time.Since(b.StartedAt) >= b.MaxWallClock {
		return true
	}
	return false
}

// ErrorHandlingPolicy configures how the policy engine reacts to failed tool
// calls.
type ErrorHandlingPolicy struct {
	MaxRetries          int           `json:"max_retries"`
	BaseBackoff         time.Duration `json:"base_backoff"`
	UseFallbacks        bool          `json:"use_fallbacks"`
	AskUserOnMissingFields bool       `json:"ask_user_on_missing_fields"`
	// Fallbacks maps a tool name to a substitute tool name to try, when
	// UseFallbacks is set, once a failed call will not be retried (MaxRetries
	// is exhausted or the error is not retryable).
	Fallbacks map[string]string `json:"fallbacks,omitempty"`
}

// ToolSpec is the synthesized, cached description of a callable tool: its
// name, description, input/output JSON schemas.
type ToolSpec struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"input_schema"`
	OutputSchema json.RawMessage `json:"output_schema"`
}

// ToolCall is a single invocation request emitted by the planner.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ErrorCode enumerates the taxonomy of tool-call failures. Eleven values;
// Unknown is the catch-all.
type ErrorCode string

const (
	ErrCodeNone             ErrorCode = ""
	ErrCodeInvalidInput     ErrorCode = "invalid_input"
	ErrCodeSchemaViolation  ErrorCode = "schema_violation"
	ErrCodeNotFound         ErrorCode = "not_found"
	ErrCodeNoResults        ErrorCode = "no_results"
	ErrCodeTimeout          ErrorCode = "timeout"
	ErrCodeRateLimited      ErrorCode = "rate_limited"
	ErrCodePermissionDenied ErrorCode = "permission_denied"
	ErrCodeUnavailable      ErrorCode = "unavailable"
	ErrCodeConflict         ErrorCode = "conflict"
	ErrCodeInternal         ErrorCode = "internal"
	ErrCodeUnknown          ErrorCode = "unknown"
)

// Retryable reports whether a failure of this class is worth retrying.
func (c ErrorCode) Retryable() bool {
	switch c {
	case ErrCodeTimeout, ErrCodeRateLimited, ErrCodeUnavailable:
		return true
	default:
		return false
	}
}

// ToolResult is what a tool call produced, after adapter-side validation.
type ToolResult struct {
	OK              bool            `json:"ok"`
	Data            json.RawMessage `json:"data,omitempty"`
	ErrorCode       ErrorCode       `json:"error_code,omitempty"`
	ErrorDetails    string          `json:"error_details,omitempty"`
	SchemaValidated bool            `json:"schema_validated"`
	Attempt         int             `json:"attempt"`
	LatencyMS       float64         `json:"latency_ms"`
}

// Observation is the bounded, planner-facing summary of a ToolResult.
type Observation struct {
	Summary     string         `json:"summary"`
	KeyFacts    map[string]any `json:"key_facts,omitempty"`
	Affordances []string       `json:"affordances,omitempty"`
	Raw         ToolResult     `json:"raw"`
}

// Recommendation is the critic's verdict on what should happen next.
type Recommendation string

const (
	RecommendContinue Recommendation = "continue"
	RecommendReplan   Recommendation = "replan"
	RecommendClarify  Recommendation = "clarify"
	RecommendStop     Recommendation = "stop"
	RecommendRetry    Recommendation = "retry"
)

// Critique is the critic's structured assessment of goal satisfaction.
type Critique struct {
	GoalSatisfied  bool           `json:"goal_satisfied"`
	Assessment     string         `json:"assessment"`
	KnownGaps      []string       `json:"known_gaps,omitempty"`
	Recommendation Recommendation `json:"recommendation"`
}

// AgentState is the full working state carried between turns.
type AgentState struct {
	Goal            AgentGoal      `json:"goal"`
	Subgoals        []string       `json:"subgoals,omitempty"`
	LastAction      *AgentAction   `json:"last_action,omitempty"`
	LastObservation *Observation   `json:"last_observation,omitempty"`
	Budget          Budget         `json:"budget"`
	TurnIndex       int            `json:"turn_index"`
	WorkingMemory   map[string]any `json:"working_memory"`
}

// PlannerDecisionKind tags the variant of a PlannerDecision.
type PlannerDecisionKind string

const (
	PlannerCallTool PlannerDecisionKind = "call_tool"
	PlannerAskUser  PlannerDecisionKind = "ask_user"
	PlannerStop     PlannerDecisionKind = "stop"
	PlannerReplan   PlannerDecisionKind = "replan"
)

// PlannerDecision is the tagged variant the planner returns each turn.
type PlannerDecision struct {
	Kind     PlannerDecisionKind `json:"kind"`
	ToolCall *ToolCall           `json:"tool_call,omitempty"`
	Question string              `json:"question,omitempty"`
	// MissingFields names the fields the planner believes are needed to
	// answer Question, for the AskUser variant.
	MissingFields []string `json:"missing_fields,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	// Subgoals is the new ordered subgoal sequence, for the Replan variant.
	Subgoals []string `json:"subgoals,omitempty"`
}

// AgentActionKind tags the variant of an AgentAction, the policy engine's
// resolved output.
type AgentActionKind string

const (
	ActionCallTool AgentActionKind = "call_tool"
	ActionAskUser  AgentActionKind = "ask_user"
	ActionStop     AgentActionKind = "stop"
	ActionReplan   AgentActionKind = "replan"
)

// AgentAction is what the policy engine decides to actually do this turn,
// after folding in error history and retry/fallback policy.
type AgentAction struct {
	Kind         AgentActionKind `json:"kind"`
	ToolCall     *ToolCall       `json:"tool_call,omitempty"`
	RetryAttempt int             `json:"retry_attempt,omitempty"`
	Question     string          `json:"question,omitempty"`
	// MissingFields names the fields the caller should supply before the
	// run can resume, for the AskUser variant.
	MissingFields []string `json:"missing_fields,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	// Subgoals is the new ordered subgoal sequence, for the Replan variant.
	Subgoals []string `json:"subgoals,omitempty"`
}
