package main

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"

	"github.com/fenwick-ai/agentcore/internal/llmprovider"
	"github.com/fenwick-ai/agentcore/internal/planner"
)

// stubProvider is a deterministic llmprovider.Provider for smoke-testing the
// engine without a real model backend. It recognizes the planner's and
// critic's system prompts (they differ, so dispatch on System rather than
// tracking per-role state) and answers each exactly once per turn: the
// planner gets told to call toolName with toolArgs on its first invocation
// and to stop afterward; the critic always reports the goal satisfied.
type stubProvider struct {
	toolName string
	toolArgs json.RawMessage
	calls    atomic.Int32
}

func newStubProvider(toolName string, toolArgs json.RawMessage) *stubProvider {
	return &stubProvider{toolName: toolName, toolArgs: toolArgs}
}

func (p *stubProvider) Complete(ctx context.Context, req llmprovider.CompletionRequest) (llmprovider.CompletionResponse, error) {
	if strings.Contains(req.System, "critic") {
		return p.critiqueResponse(), nil
	}
	return p.plannerResponse(), nil
}

func (p *stubProvider) plannerResponse() llmprovider.CompletionResponse {
	n := p.calls.Add(1)
	if n == 1 {
		return llmprovider.CompletionResponse{
			AssistantMessage: llmprovider.AssistantMessage{
				ToolCalls: []llmprovider.ToolCall{{ID: "1", Name: p.toolName, ArgumentsJSON: p.toolArgs}},
			},
		}
	}

	args, _ := json.Marshal(map[string]any{"action": "stop", "reason": "goal satisfied after one tool call"})
	return llmprovider.CompletionResponse{
		AssistantMessage: llmprovider.AssistantMessage{
			ToolCalls: []llmprovider.ToolCall{{ID: "2", Name: planner.ControlToolName, ArgumentsJSON: args}},
		},
	}
}

func (p *stubProvider) critiqueResponse() llmprovider.CompletionResponse {
	body, _ := json.Marshal(map[string]any{
		"goal_satisfied": true,
		"assessment":     "the requested tool ran and returned data",
		"known_gaps":     []string{},
		"recommendation": "stop",
	})
	return llmprovider.CompletionResponse{AssistantMessage: llmprovider.AssistantMessage{Content: string(body)}}
}
