// Package validation compiles and applies JSON schemas to tool inputs and
// outputs: coercing loosely-typed values, validating against the schema, and
// filling in declared defaults.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	// ErrNullInstance is returned when the value to validate is nil.
	ErrNullInstance = errors.New("validation: instance is null")
	// ErrNullSchema is returned when the schema document is empty or the
	// JSON literal null.
	ErrNullSchema = errors.New("validation: schema is null")
)

var schemaCache sync.Map

// isNullSchema reports whether schema is absent or the JSON literal null.
func isNullSchema(schema json.RawMessage) bool {
	trimmed := bytes.TrimSpace(schema)
	return len(trimmed) == 0 || string(trimmed) == "null"
}

// compileSchema compiles a raw JSON schema document, caching the compiled
// schema keyed by its exact bytes so repeated calls for the same tool spec
// avoid recompilation.
func compileSchema(schema json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schema)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// schemaDoc is the subset of JSON Schema vocabulary this package interprets
// directly for type coercion and default application; full structural
// validation is delegated to the compiled jsonschema.Schema.
type schemaDoc struct {
	Type       string               `json:"type"`
	Properties map[string]schemaDoc `json:"properties"`
	Default    json.RawMessage      `json:"default,omitempty"`
	Required   []string             `json:"required,omitempty"`
}

// Validate checks instance against schema without mutating it. A nil
// instance or a null/empty schema is rejected explicitly rather than left to
// surface as an opaque schema-compile or type-assertion failure.
func Validate(instance any, schema json.RawMessage) error {
	if instance == nil {
		return ErrNullInstance
	}
	if isNullSchema(schema) {
		return ErrNullSchema
	}

	compiled, err := compileSchema(schema)
	if err != nil {
		return err
	}
	return compiled.Validate(instance)
}

// ValidateAndNormalize coerces loosely-typed scalar values (e.g. numeric
// strings arriving where the schema declares a number) to their declared
// type, validates the result against schema, and fills in any declared
// defaults for properties absent from the instance. It returns the
// normalized instance as a deep clone; the input is never mutated.
func ValidateAndNormalize(instance any, schema json.RawMessage) (any, error) {
	if instance == nil {
		return nil, ErrNullInstance
	}
	if isNullSchema(schema) {
		return nil, ErrNullSchema
	}

	var doc schemaDoc
	if err := json.Unmarshal(schema, &doc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}

	normalized := deepClone(instance)
	normalized = coerce(normalized, doc)

	if err := Validate(normalized, schema); err != nil {
		return nil, err
	}

	normalized = applyDefaults(normalized, doc)
	return normalized, nil
}

// coerce walks instance against the schema's declared property types,
// converting strings to int/number/bool where the schema expects a
// scalar and the string parses cleanly. Values that don't match a
// recognized coercion are left untouched so Validate reports the real
// schema violation.
func coerce(instance any, doc schemaDoc) any {
	obj, ok := instance.(map[string]any)
	if !ok || doc.Properties == nil {
		return instance
	}

	for key, propSchema := range doc.Properties {
		val, present := obj[key]
		if !present {
			continue
		}
		str, isString := val.(string)
		if !isString {
			continue
		}
		switch propSchema.Type {
		case "integer":
			if n, err := strconv.ParseInt(str, 10, 64); err == nil {
				obj[key] = float64(n)
			}
		case "number":
			if n, err := strconv.ParseFloat(str, 64); err == nil {
				obj[key] = n
			}
		case "boolean":
			if b, err := strconv.ParseBool(str); err == nil {
				obj[key] = b
			}
		}
	}
	return obj
}

// applyDefaults fills in schema-declared defaults for properties absent
// from instance. Nested object defaults are not recursed into beyond one
// level, matching the flat tool-parameter schemas this adapter deals with.
func applyDefaults(instance any, doc schemaDoc) any {
	obj, ok := instance.(map[string]any)
	if !ok || doc.Properties == nil {
		return instance
	}

	for key, propSchema := range doc.Properties {
		if _, present := obj[key]; present {
			continue
		}
		if len(propSchema.Default) == 0 {
			continue
		}
		var def any
		if err := json.Unmarshal(propSchema.Default, &def); err == nil {
			obj[key] = def
		}
	}
	return obj
}

// deepClone returns a deep copy of v for the JSON-value shapes
// (map[string]any, []any, and scalars) that decoded tool input takes.
func deepClone(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[k] = deepClone(sub)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, sub := range val {
			out[i] = deepClone(sub)
		}
		return out
	default:
		return val
	}
}
