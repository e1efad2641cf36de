// Package orchestrator implements the Turn Loop: the component that owns a
// task's AgentState across its Plan -> Execute -> Observe -> Critique ->
// Update State -> Decide cycle, enforcing the run's budget and composing
// every other component (Planner, Policy Engine, Tool Adapter, Normalizer,
// Critic, State Manager) into one bounded, resumable execution.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fenwick-ai/agentcore/internal/agent"
	"github.com/fenwick-ai/agentcore/internal/critic"
	"github.com/fenwick-ai/agentcore/internal/normalizer"
	"github.com/fenwick-ai/agentcore/internal/planner"
	"github.com/fenwick-ai/agentcore/internal/policyengine"
	"github.com/fenwick-ai/agentcore/internal/statemanager"
	"github.com/fenwick-ai/agentcore/pkg/models"
)

// EventKind tags a lifecycle event the orchestrator emits as a run
// progresses.
type EventKind string

const (
	EventTurnStarted   EventKind = "turn_started"
	EventTurnCompleted EventKind = "turn_completed"
	EventToolCalled    EventKind = "tool_called"
)

// AgentEvent is one lifecycle notification emitted during a run.
type AgentEvent struct {
	Kind       EventKind
	TurnNumber int
	ActionType models.AgentActionKind
	ToolName   string
}

// EventSink receives lifecycle events during a run. Implementations must be
// safe to call from the goroutine driving Run and should not block it.
type EventSink interface {
	Emit(ctx context.Context, e AgentEvent)
}

// ChanSink delivers events to a channel, dropping events rather than
// blocking the run when the channel is full or the context is done.
type ChanSink struct {
	ch chan<- AgentEvent
}

// NewChanSink creates a sink over ch. ch should be buffered; an unbuffered
// channel with no reader waiting at the moment of Emit will cause that event
// to be dropped.
func NewChanSink(ch chan<- AgentEvent) *ChanSink {
	return &ChanSink{ch: ch}
}

// Emit implements EventSink.
func (s *ChanSink) Emit(ctx context.Context, e AgentEvent) {
	select {
	case s.ch <- e:
	case <-ctx.Done():
	default:
	}
}

// NopSink discards every event.
type NopSink struct{}

// Emit implements EventSink.
func (NopSink) Emit(context.Context, AgentEvent) {}

// AgentResult is what a completed (or terminated) run reports to its
// caller.
type AgentResult struct {
	Success    bool
	StopReason string
	TotalTurns int
	Duration   time.Duration
	FinalState models.AgentState
}

// Orchestrator owns one task's turn loop, composing the Planner, Policy
// Engine, Tool Adapter, Observation Normalizer, Critic, and State Manager.
type Orchestrator struct {
	registry      *agent.Registry
	adapter       *agent.Adapter
	planner       *planner.Planner
	critic        *critic.Critic
	stateManager  *statemanager.Manager
	normalizerCfg normalizer.Config
	logger        *slog.Logger
}

// New creates an Orchestrator. A nil logger falls back to slog.Default(); a
// zero-value normalizerCfg falls back to normalizer.DefaultConfig().
func New(registry *agent.Registry, adapter *agent.Adapter, p *planner.Planner, c *critic.Critic, stateManager *statemanager.Manager, normalizerCfg normalizer.Config, logger *slog.Logger) *Orchestrator {
	if normalizerCfg == (normalizer.Config{}) {
		normalizerCfg = normalizer.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		registry:      registry,
		adapter:       adapter,
		planner:       p,
		critic:        c,
		stateManager:  stateManager,
		normalizerCfg: normalizerCfg,
		logger:        logger,
	}
}

// Run executes (or resumes) the task identified by traceID to completion,
// cancellation, or budget exhaustion. If a checkpoint already exists for
// traceID — e.g. this call answers a prior AskUser pause — it is resumed in
// place of starting fresh from goal/budget/policy. sink may be nil, in
// which case events are discarded.
func (o *Orchestrator) Run(ctx context.Context, traceID string, goal models.AgentGoal, budget models.Budget, policy models.ErrorHandlingPolicy, sink EventSink) AgentResult {
	if sink == nil {
		sink = NopSink{}
	}
	start := time.Now()

	state, ok, err := o.stateManager.Load(ctx, traceID)
	if err != nil {
		return errorResult(models.AgentState{Goal: goal, Budget: budget}, start, fmt.Sprintf("failed to load checkpoint: %v", err))
	}
	if !ok {
		if budget.StartedAt.IsZero() {
			budget.StartedAt = time.Now()
		}
		state = models.AgentState{
			Goal:          goal,
			Budget:        budget,
			TurnIndex:     0,
			WorkingMemory: map[string]any{},
		}
	}

	if budget.MaxWallClock > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget.MaxWallClock)
		defer cancel()
	}

	policyEngine := policyengine.New(policy)
	retryToolName := ""
	retryCount := 0
	if state.LastAction != nil && state.LastAction.Kind == models.ActionCallTool && state.LastAction.ToolCall != nil {
		retryToolName = state.LastAction.ToolCall.Name
		retryCount = state.LastAction.RetryAttempt
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return abort(state, fmt.Sprintf("cancelled: %v", ctxErr), start)
		}

		if state.Budget.Exhausted(state.TurnIndex) {
			return abort(state, "Budget exhausted", start)
		}

		turnNumber := state.TurnIndex + 1
		sink.Emit(ctx, AgentEvent{Kind: EventTurnStarted, TurnNumber: turnNumber})

		specs := o.toolSpecs()
		decision, perr := o.planner.Plan(ctx, state, specs)
		if perr != nil {
			return errorResult(state, start, fmt.Sprintf("planner failed: %v", perr))
		}

		action := policyEngine.Decide(decision, state.LastAction, state.LastObservation, retryCount)

		if action.Kind == models.ActionCallTool && action.ToolCall != nil {
			if action.ToolCall.Name == retryToolName {
				retryCount = action.RetryAttempt
			} else {
				retryToolName = action.ToolCall.Name
				retryCount = action.RetryAttempt
			}
		} else {
			retryToolName = ""
			retryCount = 0
		}

		switch action.Kind {
		case models.ActionCallTool:
			sink.Emit(ctx, AgentEvent{Kind: EventToolCalled, TurnNumber: turnNumber, ToolName: action.ToolCall.Name})

			toolResult, cerr := o.adapter.Call(ctx, *action.ToolCall)
			if cerr != nil {
				return errorResult(state, start, fmt.Sprintf("tool adapter failed: %v", cerr))
			}

			observation := normalizer.Normalize(*action.ToolCall, *toolResult, o.normalizerCfg)

			crit, crerr := o.critic.Assess(ctx, state.Goal, observation)
			if crerr != nil {
				return errorResult(state, start, fmt.Sprintf("critic failed: %v", crerr))
			}

			next, aerr := o.stateManager.Advance(ctx, traceID, state, action, &observation, &crit)
			if aerr != nil {
				return errorResult(state, start, fmt.Sprintf("checkpoint failed: %v", aerr))
			}
			state = next
			sink.Emit(ctx, AgentEvent{Kind: EventTurnCompleted, TurnNumber: turnNumber, ActionType: action.Kind, ToolName: action.ToolCall.Name})

			if crit.Recommendation == models.RecommendStop {
				return AgentResult{
					Success:    crit.GoalSatisfied,
					StopReason: crit.Assessment,
					TotalTurns: state.TurnIndex,
					Duration:   time.Since(start),
					FinalState: state,
				}
			}

		case models.ActionAskUser:
			next, aerr := o.stateManager.Advance(ctx, traceID, state, action, nil, nil)
			if aerr != nil {
				return errorResult(state, start, fmt.Sprintf("checkpoint failed: %v", aerr))
			}
			state = next
			sink.Emit(ctx, AgentEvent{Kind: EventTurnCompleted, TurnNumber: turnNumber, ActionType: action.Kind})
			return AgentResult{
				Success:    false,
				StopReason: fmt.Sprintf("awaiting user input: %s", action.Question),
				TotalTurns: state.TurnIndex,
				Duration:   time.Since(start),
				FinalState: state,
			}

		case models.ActionReplan:
			next, aerr := o.stateManager.Advance(ctx, traceID, state, action, nil, nil)
			if aerr != nil {
				return errorResult(state, start, fmt.Sprintf("checkpoint failed: %v", aerr))
			}
			state = next
			sink.Emit(ctx, AgentEvent{Kind: EventTurnCompleted, TurnNumber: turnNumber, ActionType: action.Kind})

		case models.ActionStop:
			return o.terminate(ctx, traceID, state, action, start, sink)

		default:
			return errorResult(state, start, fmt.Sprintf("policy engine returned unrecognized action kind %q", action.Kind))
		}
	}
}

// terminate persists a terminal Stop action and reports it as a failed
// result. Critic-driven termination and an AskUser pause are built inline
// in Run with their own success value; budget exhaustion and cancellation
// go through abort, and component failures through errorResult.
func (o *Orchestrator) terminate(ctx context.Context, traceID string, state models.AgentState, action models.AgentAction, start time.Time, sink EventSink) AgentResult {
	next, err := o.stateManager.Advance(ctx, traceID, state, action, nil, nil)
	if err != nil {
		return errorResult(state, start, fmt.Sprintf("checkpoint failed: %v", err))
	}
	sink.Emit(ctx, AgentEvent{Kind: EventTurnCompleted, TurnNumber: next.TurnIndex, ActionType: action.Kind})
	return AgentResult{
		Success:    false,
		StopReason: action.Reason,
		TotalTurns: next.TurnIndex,
		Duration:   time.Since(start),
		FinalState: next,
	}
}

// abort reports a run ending before its current iteration ever reached the
// planner — budget exhaustion or context cancellation, checked at the top
// of the loop. Neither is a completed turn under I1, so unlike terminate it
// does not call StateManager.Advance and does not increment TurnIndex.
func abort(state models.AgentState, reason string, start time.Time) AgentResult {
	return AgentResult{
		Success:    false,
		StopReason: reason,
		TotalTurns: state.TurnIndex,
		Duration:   time.Since(start),
		FinalState: state,
	}
}

func errorResult(state models.AgentState, start time.Time, reason string) AgentResult {
	return AgentResult{
		Success:    false,
		StopReason: reason,
		TotalTurns: state.TurnIndex,
		Duration:   time.Since(start),
		FinalState: state,
	}
}

// toolSpecs synthesizes the current ToolSpec for every registered tool; the
// planner does not depend on their ordering.
func (o *Orchestrator) toolSpecs() []models.ToolSpec {
	names := o.registry.Names()
	specs := make([]models.ToolSpec, 0, len(names))
	for _, name := range names {
		spec, err := o.registry.Spec(name)
		if err != nil {
			o.logger.Warn("failed to synthesize tool spec", "tool", name, "error", err)
			continue
		}
		specs = append(specs, *spec)
	}
	return specs
}
