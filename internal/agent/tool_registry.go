package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fenwick-ai/agentcore/pkg/models"
)

// Tool parameter limits, exported for callers. Registry and Adapter do not
// check tool names or inputs against them.
const (
	MaxToolNameLength = 256
	MaxToolParamsSize = 10 << 20
)

// ParamType is the declared type of a tool parameter, using the same loose
// keyword vocabulary tool authors tend to write in free-form metadata
// rather than strict JSON Schema type names.
type ParamType string

// Param describes one parameter a tool accepts, as declared by the tool's
// own metadata. Type is normalized into a JSON Schema type by
// synthesizeSpec (via jsonSchemaType) using the fixed keyword mapping:
// boolean -> boolean; integer/int/long -> integer;
// number/float/double/decimal -> number; array/list -> array;
// object -> object; anything else -> string.
type Param struct {
	Name        string
	Type        string
	Description string
	Enum        []string
	Default     any
	Required    bool
}

// Tool is a single callable capability the planner can invoke. Parameters
// and OutputSchema describe the tool's contract in the tool's own loosely
// typed metadata form; the registry synthesizes a normalized ToolSpec (and
// caches it) on first request.
type Tool interface {
	Name() string
	Description() string
	Parameters() []Param
	// OutputSchema returns a raw JSON Schema document for the tool's
	// output, or nil to accept the registry's default ({"type":"object"}).
	OutputSchema() json.RawMessage
	Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

// Registry holds the set of tools available to a run and synthesizes and
// caches their ToolSpecs on demand.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool

	specMu sync.RWMutex
	specs  map[string]*models.ToolSpec
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
		specs: make(map[string]*models.ToolSpec),
	}
}

// Register adds or replaces a tool by name, invalidating any cached spec
// for that name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	r.tools[tool.Name()] = tool
	r.mu.Unlock()

	r.specMu.Lock()
	delete(r.specs, tool.Name())
	r.specMu.Unlock()
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.tools, name)
	r.mu.Unlock()

	r.specMu.Lock()
	delete(r.specs, name)
	r.specMu.Unlock()
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns all registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Spec returns the synthesized ToolSpec for name, computing and caching it
// on first request.
func (r *Registry) Spec(name string) (*models.ToolSpec, error) {
	r.specMu.RLock()
	if spec, ok := r.specs[name]; ok {
		r.specMu.RUnlock()
		return spec, nil
	}
	r.specMu.RUnlock()

	tool, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	spec := synthesizeSpec(tool)

	r.specMu.Lock()
	r.specs[name] = spec
	r.specMu.Unlock()

	return spec, nil
}

// synthesizeSpec builds a models.ToolSpec from a tool's declared Params and
// OutputSchema.
func synthesizeSpec(tool Tool) *models.ToolSpec {
	properties := make(map[string]any)
	var required []string

	for _, p := range tool.Parameters() {
		prop := map[string]any{"type": jsonSchemaType(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			enum := make([]any, len(p.Enum))
			for i, e := range p.Enum {
				enum[i] = e
			}
			prop["enum"] = enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	inputSchema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		inputSchema["required"] = required
	}

	inputBytes, _ := json.Marshal(inputSchema)

	outputSchema := tool.OutputSchema()
	if len(outputSchema) == 0 {
		outputSchema = json.RawMessage(`{"type":"object"}`)
	}

	return &models.ToolSpec{
		Name:         tool.Name(),
		Description:  tool.Description(),
		InputSchema:  inputBytes,
		OutputSchema: outputSchema,
	}
}

// jsonSchemaType maps a tool author's loosely-typed parameter keyword onto
// a JSON Schema primitive type. Anything unrecognized falls back to string.
func jsonSchemaType(declared string) string {
	switch declared {
	case "boolean":
		return "boolean"
	case "integer", "int", "long":
		return "integer"
	case "number", "float", "double", "decimal":
		return "number"
	case "array", "list":
		return "array"
	case "object":
		return "object"
	default:
		return "string"
	}
}
