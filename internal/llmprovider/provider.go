// Package llmprovider defines the narrow contract the Planner and Critic
// consume from an injected LLM backend. The transport itself (HTTP clients,
// streaming, provider-specific auth) is explicitly out of the core's scope
// (spec.md §1); this package only describes the shape of a request and
// response, mirroring internal/agent's CompletionRequest/CompletionChunk in
// the teacher but collapsed to the core's synchronous, non-streaming
// contract per spec.md §6.
package llmprovider

import (
	"context"
	"encoding/json"
)

// Provider completes a single request against a large-language model.
// Implementations must be safe for concurrent use.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Message is one turn of conversation handed to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolDescriptor is a callable capability offered to the model for this
// request, synthesized by the Planner from the tool registry.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// CompletionRequest is a single request to the model.
type CompletionRequest struct {
	Model       string           `json:"model,omitempty"`
	System      string           `json:"system,omitempty"`
	Messages    []Message        `json:"messages"`
	Tools       []ToolDescriptor `json:"tools,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
}

// ToolCall is one tool invocation the model requested.
type ToolCall struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	ArgumentsJSON json.RawMessage `json:"arguments_json"`
}

// AssistantMessage is the model's reply: free text and/or requested tool
// calls.
type AssistantMessage struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Usage reports token accounting for a single completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is what a Provider returns for one CompletionRequest.
type CompletionResponse struct {
	AssistantMessage AssistantMessage `json:"assistant_message"`
	Usage            Usage            `json:"usage"`
	FinishReason     string           `json:"finish_reason"`
	Model            string           `json:"model"`
}
