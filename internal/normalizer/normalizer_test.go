package normalizer

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/fenwick-ai/agentcore/pkg/models"
)

func TestNormalize_SuccessWithObjectData(t *testing.T) {
	call := models.ToolCall{Name: "list_directory"}
	result := models.ToolResult{
		OK:        true,
		Data:      json.RawMessage(`{"items":["a","b"]}`),
		Attempt:   1,
		LatencyMS: 12.345,
	}

	obs := Normalize(call, result, DefaultConfig())

	if obs.Summary != "Tool 'list_directory' executed successfully" {
		t.Errorf("unexpected summary: %q", obs.Summary)
	}
	if obs.KeyFacts["execution_time_ms"] != "12.35" {
		t.Errorf("expected 2-decimal latency, got %v", obs.KeyFacts["execution_time_ms"])
	}
	if obs.KeyFacts["attempt"] != "1" {
		t.Errorf("expected attempt=1, got %v", obs.KeyFacts["attempt"])
	}
	if obs.KeyFacts["items_count"] != "2" {
		t.Errorf("expected items_count=2, got %v", obs.KeyFacts["items_count"])
	}
}

func TestNormalize_SuccessWithNoData(t *testing.T) {
	call := models.ToolCall{Name: "ping"}
	result := models.ToolResult{OK: true, Attempt: 1}

	obs := Normalize(call, result, DefaultConfig())
	if obs.Summary != "Tool 'ping' completed with no data" {
		t.Errorf("unexpected summary: %q", obs.Summary)
	}
}

func TestNormalize_Failure(t *testing.T) {
	call := models.ToolCall{Name: "search_web"}
	result := models.ToolResult{
		OK:           false,
		ErrorCode:    models.ErrCodeUnavailable,
		ErrorDetails: "server returned 503",
		Attempt:      3,
	}

	obs := Normalize(call, result, DefaultConfig())
	if obs.Summary != "Tool 'search_web' failed: unavailable - server returned 503" {
		t.Errorf("unexpected summary: %q", obs.Summary)
	}
	if obs.KeyFacts["error_code"] != "unavailable" {
		t.Errorf("expected error_code fact, got %v", obs.KeyFacts["error_code"])
	}
	if !contains(obs.Affordances, "retry_with_backoff") {
		t.Errorf("expected retry_with_backoff affordance, got %v", obs.Affordances)
	}
}

func TestNormalize_InvalidInputAffordances(t *testing.T) {
	result := models.ToolResult{OK: false, ErrorCode: models.ErrCodeInvalidInput, ErrorDetails: "query is required"}
	obs := Normalize(models.ToolCall{Name: "search"}, result, DefaultConfig())
	if !contains(obs.Affordances, "fix_parameters") || !contains(obs.Affordances, "ask_user_for_clarification") {
		t.Errorf("unexpected affordances: %v", obs.Affordances)
	}
}

func TestNormalize_PermissionDeniedAffordances(t *testing.T) {
	result := models.ToolResult{OK: false, ErrorCode: models.ErrCodePermissionDenied}
	obs := Normalize(models.ToolCall{Name: "admin_tool"}, result, DefaultConfig())
	if !contains(obs.Affordances, "check_permissions") || !contains(obs.Affordances, "use_fallback_tool") {
		t.Errorf("unexpected affordances: %v", obs.Affordances)
	}
}

func TestNormalize_AlwaysAppendsEscapeHatches(t *testing.T) {
	result := models.ToolResult{OK: true, Data: json.RawMessage(`{}`)}
	obs := Normalize(models.ToolCall{Name: "x"}, result, DefaultConfig())
	if !contains(obs.Affordances, "use_different_tool") || !contains(obs.Affordances, "ask_user_for_guidance") {
		t.Errorf("expected escape-hatch affordances always present, got %v", obs.Affordances)
	}
}

func TestNormalize_PaginationAffordances(t *testing.T) {
	result := models.ToolResult{OK: true, Data: json.RawMessage(`{"next_page":"tok","has_more":true,"results":[{"id":1}]}`)}
	obs := Normalize(models.ToolCall{Name: "search"}, result, DefaultConfig())
	for _, want := range []string{"fetch_next_page", "fetch_more_results", "process_results", "filter_results"} {
		if !contains(obs.Affordances, want) {
			t.Errorf("expected affordance %q, got %v", want, obs.Affordances)
		}
	}
}

func TestNormalize_NoResultsErrorCodeAffordances(t *testing.T) {
	result := models.ToolResult{OK: false, ErrorCode: models.ErrCodeNoResults}
	obs := Normalize(models.ToolCall{Name: "search"}, result, DefaultConfig())
	if !contains(obs.Affordances, "broaden_search") || !contains(obs.Affordances, "try_different_query") {
		t.Errorf("expected no-results affordances, got %v", obs.Affordances)
	}
}

func TestNormalize_EmptyResultsArrayAffordances(t *testing.T) {
	result := models.ToolResult{OK: true, Data: json.RawMessage(`{"results":[]}`)}
	obs := Normalize(models.ToolCall{Name: "search"}, result, DefaultConfig())
	if !contains(obs.Affordances, "broaden_search") || !contains(obs.Affordances, "try_different_query") {
		t.Errorf("expected empty-results affordances, got %v", obs.Affordances)
	}
	if contains(obs.Affordances, "process_results") {
		t.Errorf("did not expect process_results affordance for an empty result set, got %v", obs.Affordances)
	}
}

func TestNormalize_EmptyTopLevelArrayAffordances(t *testing.T) {
	result := models.ToolResult{OK: true, Data: json.RawMessage(`[]`)}
	obs := Normalize(models.ToolCall{Name: "search"}, result, DefaultConfig())
	if !contains(obs.Affordances, "broaden_search") || !contains(obs.Affordances, "try_different_query") {
		t.Errorf("expected empty-array affordances, got %v", obs.Affordances)
	}
}

func TestNormalize_ArrayResultAddsResultCountAndFirstPrefix(t *testing.T) {
	result := models.ToolResult{OK: true, Data: json.RawMessage(`[{"name":"a"},{"name":"b"}]`)}
	obs := Normalize(models.ToolCall{Name: "list"}, result, DefaultConfig())
	if obs.KeyFacts["result_count"] != "2" {
		t.Errorf("expected result_count=2, got %v", obs.KeyFacts["result_count"])
	}
	if obs.KeyFacts["first_name"] != "a" {
		t.Errorf("expected first_name=a, got %v", obs.KeyFacts["first_name"])
	}
}

func TestNormalize_ScalarResultStoredAsResult(t *testing.T) {
	result := models.ToolResult{OK: true, Data: json.RawMessage(`42`)}
	obs := Normalize(models.ToolCall{Name: "count"}, result, DefaultConfig())
	if obs.KeyFacts["result"] != "42" {
		t.Errorf("expected result=42, got %v", obs.KeyFacts["result"])
	}
}

func TestNormalize_NestedObjectWalkRespectsMaxDepth(t *testing.T) {
	result := models.ToolResult{OK: true, Data: json.RawMessage(`{"a":{"b":{"c":{"d":"deep"}}}}`)}
	cfg := Config{MaxDepth: 2, MaxKeyFacts: 20, MaxValueLen: 200}
	obs := Normalize(models.ToolCall{Name: "x"}, result, cfg)
	if _, ok := obs.KeyFacts["a.b"]; !ok {
		t.Errorf("expected walk to stop at maxDepth and store a.b, got %v", obs.KeyFacts)
	}
}

func TestNormalize_CapsKeyFactsAtMax(t *testing.T) {
	data := map[string]any{}
	for i := 0; i < 30; i++ {
		data[keyForIndex(i)] = "v"
	}
	raw, _ := json.Marshal(data)
	result := models.ToolResult{OK: true, Data: raw}
	cfg := Config{MaxDepth: 3, MaxKeyFacts: 5, MaxValueLen: 200}
	obs := Normalize(models.ToolCall{Name: "x"}, result, cfg)
	if len(obs.KeyFacts) > 5 {
		t.Errorf("expected at most 5 key facts, got %d", len(obs.KeyFacts))
	}
}

func TestNormalize_TruncatesLongValues(t *testing.T) {
	long := strings.Repeat("z", 1000)
	result := models.ToolResult{OK: false, ErrorCode: models.ErrCodeInternal, ErrorDetails: long}
	cfg := Config{MaxDepth: 3, MaxKeyFacts: 20, MaxValueLen: 50}
	obs := Normalize(models.ToolCall{Name: "x"}, result, cfg)
	got := obs.KeyFacts["error_details"].(string)
	if len(got) > 53 {
		t.Errorf("expected truncated error_details, got length %d", len(got))
	}
}

func TestNormalize_IsPure(t *testing.T) {
	call := models.ToolCall{Name: "x"}
	result := models.ToolResult{OK: true, Data: json.RawMessage(`{"a":1}`), Attempt: 2, LatencyMS: 5}
	a := Normalize(call, result, DefaultConfig())
	b := Normalize(call, result, DefaultConfig())
	if a.Summary != b.Summary || len(a.KeyFacts) != len(b.KeyFacts) {
		t.Error("expected equal inputs to normalize to equal observations")
	}
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func keyForIndex(i int) string {
	return "k" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}
