package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fenwick-ai/agentcore/internal/agent"
)

// listDirectoryTool lists the entries of a real directory on disk, so the
// demo run exercises an actual filesystem call rather than a canned
// response.
type listDirectoryTool struct{}

func (listDirectoryTool) Name() string        { return "list_directory" }
func (listDirectoryTool) Description() string { return "Lists the entries of a directory." }
func (listDirectoryTool) Parameters() []agent.Param {
	return []agent.Param{
		{Name: "path", Type: "string", Description: "Directory to list.", Required: true},
	}
}
func (listDirectoryTool) OutputSchema() json.RawMessage { return nil }

func (listDirectoryTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}

	entries, err := os.ReadDir(args.Path)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	return json.Marshal(map[string]any{"items": names})
}

// echoTool answers with whatever text it was given, standing in for a tool
// that needs no external dependency at all.
type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "Echoes the given text back." }
func (echoTool) Parameters() []agent.Param {
	return []agent.Param{
		{Name: "text", Type: "string", Required: true},
	}
}
func (echoTool) OutputSchema() json.RawMessage { return nil }

func (echoTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return json.Marshal(map[string]any{"text": args.Text})
}
