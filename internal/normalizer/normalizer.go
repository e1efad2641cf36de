// Package normalizer implements the Observation Normalizer: a pure function
// that bounds an arbitrary tool result into a fixed-shape Observation the
// planner can reason about without being handed raw, unbounded tool output.
package normalizer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/fenwick-ai/agentcore/pkg/models"
)

// Config bounds how much of a tool result's data the normalizer surfaces.
type Config struct {
	// MaxDepth bounds how many levels of a nested object the key-fact walk
	// descends before stopping.
	MaxDepth int
	// MaxKeyFacts caps the number of key facts surfaced, regardless of how
	// many candidates the walk produces.
	MaxKeyFacts int
	// MaxValueLen truncates any string-valued fact (including
	// error_details) to this length, with an ellipsis suffix. The summary
	// as a whole is truncated to four times this length.
	MaxValueLen int
}

// DefaultConfig returns the normalizer's default bounds.
func DefaultConfig() Config {
	return Config{MaxDepth: 3, MaxKeyFacts: 20, MaxValueLen: 200}
}

// Normalize turns a models.ToolResult into a bounded Observation. It is a
// pure function: the same (call, result) always normalizes to the same
// Observation, and neither input is mutated.
func Normalize(call models.ToolCall, result models.ToolResult, cfg Config) models.Observation {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}

	keyFacts := map[string]any{
		"execution_time_ms": formatLatency(result.LatencyMS),
		"attempt":           strconv.Itoa(result.Attempt),
	}

	var summary string
	var data any
	if !result.OK {
		summary = summarizeFailure(call, result)
		keyFacts["error_code"] = string(result.ErrorCode)
		keyFacts["error_details"] = truncate(result.ErrorDetails, cfg.MaxValueLen)
	} else if len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, &data); err == nil {
			addDataFacts(keyFacts, data, cfg)
			summary = summarizeSuccess(call, true)
		} else {
			summary = summarizeSuccess(call, true)
		}
	} else {
		summary = summarizeSuccess(call, false)
	}

	if len(keyFacts) > cfg.MaxKeyFacts {
		keyFacts = capFacts(keyFacts, cfg.MaxKeyFacts)
	}

	return models.Observation{
		Summary:     truncate(summary, 4*cfg.MaxValueLen),
		KeyFacts:    keyFacts,
		Affordances: affordances(result, data),
		Raw:         result,
	}
}

// formatLatency renders execution_time_ms with exactly two decimal places,
// the formatting downstream consumers may rely on.
func formatLatency(ms float64) string {
	return strconv.FormatFloat(ms, 'f', 2, 64)
}

func summarizeFailure(call models.ToolCall, result models.ToolResult) string {
	return fmt.Sprintf("Tool '%s' failed: %s - %s", call.Name, result.ErrorCode, result.ErrorDetails)
}

func summarizeSuccess(call models.ToolCall, hasData bool) string {
	if hasData {
		return fmt.Sprintf("Tool '%s' executed successfully", call.Name)
	}
	return fmt.Sprintf("Tool '%s' completed with no data", call.Name)
}

// addDataFacts walks a successful result's decoded data and folds key facts
// into facts, per §4.5: objects are walked with dotted keys up to maxDepth;
// arrays yield result_count, and a non-empty array's first element is
// walked under a first_ prefix (or stored as first_result when it is not an
// object); bare scalars are stored as "result".
func addDataFacts(facts map[string]any, data any, cfg Config) {
	switch v := data.(type) {
	case map[string]any:
		walkObject(facts, "", v, 1, cfg)
	case []any:
		facts["result_count"] = strconv.Itoa(len(v))
		if len(v) > 0 {
			switch first := v[0].(type) {
			case map[string]any:
				walkObject(facts, "first_", first, 1, cfg)
			default:
				facts["first_result"] = truncateAny(first, cfg.MaxValueLen)
			}
		}
	default:
		facts["result"] = truncateAny(v, cfg.MaxValueLen)
	}
}

// walkObject folds obj's properties into facts under dotted keys prefixed
// by prefix, descending into nested objects up to cfg.MaxDepth. Arrays
// contribute only a <key>_count entry; scalars are truncated and stored
// directly.
func walkObject(facts map[string]any, prefix string, obj map[string]any, depth int, cfg Config) {
	for _, k := range sortedKeys(obj) {
		dotted := k
		if prefix != "" {
			dotted = prefix + k
		}
		switch v := obj[k].(type) {
		case map[string]any:
			if depth < cfg.MaxDepth {
				walkObject(facts, dotted+".", v, depth+1, cfg)
			} else {
				facts[dotted] = truncateAny(v, cfg.MaxValueLen)
			}
		case []any:
			facts[dotted+"_count"] = strconv.Itoa(len(v))
		default:
			facts[dotted] = truncateAny(v, cfg.MaxValueLen)
		}
	}
}

// affordances derives next-action hints per §4.5. Failure affordances are
// keyed off the error code; success affordances are keyed off well-known
// pagination/results shapes in data. use_different_tool and
// ask_user_for_guidance are always appended as the fallback escape hatches.
func affordances(result models.ToolResult, data any) []string {
	var out []string

	if !result.OK {
		switch result.ErrorCode {
		case models.ErrCodeTimeout, models.ErrCodeUnavailable, models.ErrCodeRateLimited:
			out = append(out, "retry_with_backoff")
		case models.ErrCodeInvalidInput:
			out = append(out, "fix_parameters", "ask_user_for_clarification")
		case models.ErrCodePermissionDenied:
			out = append(out, "check_permissions", "use_fallback_tool")
		case models.ErrCodeNoResults:
			out = append(out, "broaden_search", "try_different_query")
		}
	} else if arr, ok := data.([]any); ok && len(arr) == 0 {
		out = append(out, "broaden_search", "try_different_query")
	} else if obj, ok := data.(map[string]any); ok {
		if _, ok := obj["next_page"]; ok {
			out = append(out, "fetch_next_page")
		} else if _, ok := obj["nextToken"]; ok {
			out = append(out, "fetch_next_page")
		}
		if hasMore, ok := obj["has_more"].(bool); ok && hasMore {
			out = append(out, "fetch_more_results")
		}
		if results, ok := obj["results"].([]any); ok {
			if len(results) > 0 {
				out = append(out, "process_results", "filter_results")
			} else {
				out = append(out, "broaden_search", "try_different_query")
			}
		}
	}

	out = append(out, "use_different_tool", "ask_user_for_guidance")
	return out
}

// capFacts deterministically drops facts (by ascending key) past cfg's
// MaxKeyFacts bound.
func capFacts(facts map[string]any, max int) map[string]any {
	keys := sortedKeys(facts)
	if len(keys) > max {
		keys = keys[:max]
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = facts[k]
	}
	return out
}

func truncateAny(v any, max int) string {
	switch val := v.(type) {
	case string:
		return truncate(val, max)
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return truncate(fmt.Sprintf("%v", val), max)
		}
		return truncate(string(b), max)
	}
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
