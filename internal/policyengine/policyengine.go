// Package policyengine implements the Policy Engine: a pure function that
// resolves the planner's PlannerDecision plus the run's recent error
// history into the AgentAction the turn loop should actually take —
// retrying a failed tool call, falling back to a substitute tool, asking
// the user for missing fields, or giving up.
package policyengine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fenwick-ai/agentcore/pkg/models"
)

// Engine resolves planner decisions against an ErrorHandlingPolicy.
type Engine struct {
	policy models.ErrorHandlingPolicy
}

// New creates a policy engine bound to the given error-handling policy.
func New(policy models.ErrorHandlingPolicy) *Engine {
	return &Engine{policy: policy}
}

// Decide resolves decision into the action the loop should take this turn.
// lastAction and lastObservation describe the previous turn's tool call and
// its outcome (both nil on the first turn). internalRetryCount is the
// number of retries the policy engine itself has already issued for the
// current tool call in this turn sequence (reset to zero whenever the
// planner targets a different tool).
//
// Retry accounting follows one rule to avoid double-counting: the adapter
// also retries internally (AdapterConfig.MaxRetries), so the effective
// attempt number the policy engine reasons about is
// max(internalRetryCount, lastObservation.Raw.Attempt-1) — whichever
// subsystem has retried more is taken as the attempt count, since an
// adapter-level retry and a policy-engine-level retry both represent one
// consumed attempt against the same budget.
func (e *Engine) Decide(decision models.PlannerDecision, lastAction *models.AgentAction, lastObservation *models.Observation, internalRetryCount int) models.AgentAction {
	switch decision.Kind {
	case models.PlannerStop:
		return models.AgentAction{Kind: models.ActionStop, Reason: decision.Reason}
	case models.PlannerAskUser:
		return models.AgentAction{Kind: models.ActionAskUser, Question: decision.Question, MissingFields: decision.MissingFields, Reason: decision.Reason}
	case models.PlannerReplan:
		return models.AgentAction{Kind: models.ActionReplan, Reason: decision.Reason, Subgoals: decision.Subgoals}
	case models.PlannerCallTool:
		return e.decideCallTool(decision, lastAction, lastObservation, internalRetryCount)
	default:
		return models.AgentAction{Kind: models.ActionStop, Reason: fmt.Sprintf("unrecognized planner decision kind %q", decision.Kind)}
	}
}

func (e *Engine) decideCallTool(decision models.PlannerDecision, lastAction *models.AgentAction, lastObservation *models.Observation, internalRetryCount int) models.AgentAction {
	call := decision.ToolCall
	if call == nil {
		return models.AgentAction{Kind: models.ActionStop, Reason: "planner returned call_tool with no tool call"}
	}

	// No prior failure of this same tool to react to: just call it.
	if lastObservation == nil || lastObservation.Raw.OK || !sameTool(lastAction, call.Name) {
		return models.AgentAction{Kind: models.ActionCallTool, ToolCall: call, RetryAttempt: 0}
	}

	effectiveAttempt := internalRetryCount
	if adapterAttempt := lastObservation.Raw.Attempt - 1; adapterAttempt > effectiveAttempt {
		effectiveAttempt = adapterAttempt
	}

	if e.policy.AskUserOnMissingFields && isMissingFieldsError(lastObservation.Raw.ErrorCode) {
		if fields := extractMissingFields(lastObservation.Raw.ErrorDetails); len(fields) > 0 {
			return models.AgentAction{
				Kind:          models.ActionAskUser,
				Question:      fmt.Sprintf("I need more information to call %s: %s", call.Name, strings.Join(fields, ", ")),
				MissingFields: fields,
				Reason:        "missing required fields",
			}
		}
	}

	// Only retry error classes worth trying again (Timeout, RateLimited,
	// Unavailable); anything else (PermissionDenied, NotFound, Conflict,
	// Internal, ...) goes straight to fallback/stop below no matter how much
	// retry budget remains.
	if lastObservation.Raw.ErrorCode.Retryable() && effectiveAttempt < e.policy.MaxRetries {
		return models.AgentAction{Kind: models.ActionCallTool, ToolCall: call, RetryAttempt: effectiveAttempt + 1}
	}

	if e.policy.UseFallbacks {
		if fallback, ok := e.policy.Fallbacks[call.Name]; ok && fallback != "" {
			fallbackCall := *call
			fallbackCall.Name = fallback
			return models.AgentAction{Kind: models.ActionCallTool, ToolCall: &fallbackCall, RetryAttempt: 0}
		}
	}

	return models.AgentAction{
		Kind:   models.ActionStop,
		Reason: fmt.Sprintf("%s failed after %d attempt(s) with no fallback available", call.Name, effectiveAttempt+1),
	}
}

func sameTool(lastAction *models.AgentAction, toolName string) bool {
	if lastAction == nil || lastAction.ToolCall == nil {
		return false
	}
	return lastAction.ToolCall.Name == toolName
}

var wordPattern = regexp.MustCompile(`[A-Za-z]+`)

// isMissingFieldsError reports whether code indicates the kind of failure
// that a missing required field would produce.
func isMissingFieldsError(code models.ErrorCode) bool {
	return code == models.ErrCodeInvalidInput || code == models.ErrCodeSchemaViolation
}

// stopWords are short connective words that never name a field, so they are
// skipped even when they fall within the scan window around "required".
var stopWords = map[string]bool{
	"is": true, "in": true, "the": true, "for": true, "to": true,
	"and": true, "are": true, "was": true, "were": true, "not": true,
	"but": true, "with": true, "this": true, "that": true,
}

// missingFieldWindow is how many tokens on either side of "required" are
// scanned for a candidate field name.
const missingFieldWindow = 3

// extractMissingFields scans a validator error string for alphabetic tokens
// (longer than two characters, excluding common stopwords) appearing near
// the word "required", which is how schema-violation messages name the
// field that was missing.
func extractMissingFields(details string) []string {
	tokens := wordPattern.FindAllStringIndex(details, -1)
	if len(tokens) == 0 {
		return nil
	}

	words := make([]string, len(tokens))
	for i, loc := range tokens {
		words[i] = details[loc[0]:loc[1]]
	}

	var fields []string
	seen := make(map[string]bool)
	for i, w := range words {
		if !strings.EqualFold(w, "required") {
			continue
		}
		for d := 1; d <= missingFieldWindow; d++ {
			for _, j := range []int{i - d, i + d} {
				if j < 0 || j >= len(words) {
					continue
				}
				candidate := words[j]
				lower := strings.ToLower(candidate)
				if len(candidate) <= 2 || lower == "required" || stopWords[lower] {
					continue
				}
				if !seen[lower] {
					seen[lower] = true
					fields = append(fields, candidate)
				}
			}
		}
	}
	return fields
}
