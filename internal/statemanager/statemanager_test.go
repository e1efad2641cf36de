package statemanager

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/fenwick-ai/agentcore/pkg/models"
)

func TestCompressWorkingMemory_KeepsImportantKeys(t *testing.T) {
	wm := map[string]any{
		"stop_reason": "budget exhausted",
		"turn_1":      "did a thing",
		"unrelated":   "dropped",
	}
	cfg := DefaultWorkingMemoryConfig()
	cfg.MaxMemoryEntries = 2
	out := CompressWorkingMemory(wm, cfg)
	if out["stop_reason"] != "budget exhausted" {
		t.Errorf("expected important key retained, got %v", out["stop_reason"])
	}
	if _, ok := out["unrelated"]; ok {
		t.Error("expected unrelated key to be dropped")
	}
}

func TestCompressWorkingMemory_KeepsOnlyMostRecentTurns(t *testing.T) {
	wm := map[string]any{}
	for i := 1; i <= 15; i++ {
		wm[keyFor("turn_", i)] = i
	}
	cfg := WorkingMemoryConfig{MaxMemoryEntries: 3, MaxTurnSummaries: 3, MaxFactsInMemory: 0, MaxValueLen: 100}
	out := CompressWorkingMemory(wm, cfg)

	count := 0
	for k := range out {
		if strings.HasPrefix(k, "turn_") {
			count++
		}
	}
	if count != 3 {
		t.Errorf("expected 3 retained turn keys, got %d", count)
	}
	if _, ok := out["turn_15"]; !ok {
		t.Error("expected most recent turn_15 to be retained")
	}
	if _, ok := out["turn_1"]; ok {
		t.Error("expected turn_1 to be dropped")
	}
}

func TestCompressWorkingMemory_UnderThresholdIsUnchanged(t *testing.T) {
	wm := map[string]any{"turn_1": "a", "unrelated": "b"}
	cfg := WorkingMemoryConfig{MaxMemoryEntries: 10, MaxTurnSummaries: 1, MaxValueLen: 100}
	out := CompressWorkingMemory(wm, cfg)
	if len(out) != 2 {
		t.Errorf("expected compression to be a no-op below the threshold, got %v", out)
	}
}

func TestCompressWorkingMemory_TruncatesLongValuesRegardlessOfThreshold(t *testing.T) {
	long := strings.Repeat("y", 5000)
	wm := map[string]any{"stop_reason": long}
	cfg := WorkingMemoryConfig{MaxValueLen: 100}
	out := CompressWorkingMemory(wm, cfg)
	got := out["stop_reason"].(string)
	if len(got) > 103 {
		t.Errorf("expected truncated value, got length %d", len(got))
	}
}

func TestCompressWorkingMemory_DoesNotMutateInput(t *testing.T) {
	wm := map[string]any{"stop_reason": "x", "turn_1": "y"}
	cfg := DefaultWorkingMemoryConfig()
	cfg.MaxMemoryEntries = 1
	_ = CompressWorkingMemory(wm, cfg)
	if len(wm) != 2 {
		t.Error("input map was mutated")
	}
}

func TestManager_Advance_IncrementsTurnIndexMonotonically(t *testing.T) {
	store := NewMemoryStore()
	mgr := New(store, DefaultWorkingMemoryConfig())

	state := models.AgentState{Goal: models.AgentGoal{ID: "g1"}, TurnIndex: 0}
	obs := &models.Observation{Summary: "did something"}
	action := models.AgentAction{Kind: models.ActionCallTool}

	next, err := mgr.Advance(context.Background(), "trace-1", state, action, obs, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.TurnIndex != 1 {
		t.Errorf("expected turn index 1, got %d", next.TurnIndex)
	}

	next2, err := mgr.Advance(context.Background(), "trace-1", next, action, obs, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next2.TurnIndex != 2 {
		t.Errorf("expected turn index 2, got %d", next2.TurnIndex)
	}
}

func TestManager_Advance_CheckpointsBeforeReturning(t *testing.T) {
	store := NewMemoryStore()
	mgr := New(store, DefaultWorkingMemoryConfig())

	state := models.AgentState{Goal: models.AgentGoal{ID: "g1"}}
	next, err := mgr.Advance(context.Background(), "trace-1", state, models.AgentAction{}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, ok, err := mgr.Load(context.Background(), "trace-1")
	if err != nil || !ok {
		t.Fatalf("expected checkpointed state to load, ok=%v err=%v", ok, err)
	}
	if loaded.TurnIndex != next.TurnIndex {
		t.Errorf("checkpointed turn index %d does not match returned state %d", loaded.TurnIndex, next.TurnIndex)
	}
}

func TestManager_Advance_ReplanReplacesSubgoalsAndRecordsEntry(t *testing.T) {
	store := NewMemoryStore()
	mgr := New(store, DefaultWorkingMemoryConfig())

	state := models.AgentState{Goal: models.AgentGoal{ID: "g1"}, Subgoals: []string{"old"}}
	action := models.AgentAction{Kind: models.ActionReplan, Subgoals: []string{"new-a", "new-b"}}

	next, err := mgr.Advance(context.Background(), "trace-1", state, action, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(next.Subgoals) != 2 || next.Subgoals[0] != "new-a" {
		t.Errorf("expected subgoals replaced, got %v", next.Subgoals)
	}
	if next.WorkingMemory["replan"] == "" {
		t.Error("expected a replan entry in working memory")
	}
}

func TestManager_Advance_AskUserRecordsUserQuery(t *testing.T) {
	store := NewMemoryStore()
	mgr := New(store, DefaultWorkingMemoryConfig())

	state := models.AgentState{Goal: models.AgentGoal{ID: "g1"}}
	action := models.AgentAction{Kind: models.ActionAskUser, Question: "what's the destination?"}

	next, err := mgr.Advance(context.Background(), "trace-1", state, action, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.WorkingMemory["user_query"] != "what's the destination?" {
		t.Errorf("expected user_query recorded, got %v", next.WorkingMemory["user_query"])
	}
}

func TestManager_Advance_StopRecordsStopReason(t *testing.T) {
	store := NewMemoryStore()
	mgr := New(store, DefaultWorkingMemoryConfig())

	state := models.AgentState{Goal: models.AgentGoal{ID: "g1"}}
	action := models.AgentAction{Kind: models.ActionStop, Reason: "Budget exhausted"}

	next, err := mgr.Advance(context.Background(), "trace-1", state, action, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.WorkingMemory["stop_reason"] != "Budget exhausted" {
		t.Errorf("expected stop_reason recorded, got %v", next.WorkingMemory["stop_reason"])
	}
}

func TestManager_Advance_KeyFactsOverwriteByKeyNotByTurn(t *testing.T) {
	store := NewMemoryStore()
	mgr := New(store, DefaultWorkingMemoryConfig())

	state := models.AgentState{Goal: models.AgentGoal{ID: "g1"}}
	obs1 := &models.Observation{Summary: "first", KeyFacts: map[string]any{"items_count": "2"}}
	action := models.AgentAction{Kind: models.ActionCallTool}

	next, err := mgr.Advance(context.Background(), "trace-1", state, action, obs1, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.WorkingMemory["fact_items_count"] != "2" {
		t.Fatalf("expected fact_items_count=2, got %v", next.WorkingMemory["fact_items_count"])
	}

	obs2 := &models.Observation{Summary: "second", KeyFacts: map[string]any{"items_count": "5"}}
	next2, err := mgr.Advance(context.Background(), "trace-1", next, action, obs2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next2.WorkingMemory["fact_items_count"] != "5" {
		t.Errorf("expected fact_items_count overwritten to 5, got %v", next2.WorkingMemory["fact_items_count"])
	}
	factCount := 0
	for k := range next2.WorkingMemory {
		if strings.HasPrefix(k, "fact_") {
			factCount++
		}
	}
	if factCount != 1 {
		t.Errorf("expected exactly one fact_ entry across both turns, got %d", factCount)
	}
}

func TestManager_Advance_CritiqueRecordsAssessmentAndGaps(t *testing.T) {
	store := NewMemoryStore()
	mgr := New(store, DefaultWorkingMemoryConfig())

	state := models.AgentState{Goal: models.AgentGoal{ID: "g1"}}
	critique := &models.Critique{Assessment: "partially done", KnownGaps: []string{"missing x", "missing y"}}

	next, err := mgr.Advance(context.Background(), "trace-1", state, models.AgentAction{Kind: models.ActionCallTool}, nil, critique)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.WorkingMemory["critique_assessment"] != "partially done" {
		t.Errorf("expected critique_assessment recorded, got %v", next.WorkingMemory["critique_assessment"])
	}
	if next.WorkingMemory["known_gaps"] != "missing x, missing y" {
		t.Errorf("expected comma-joined known_gaps, got %v", next.WorkingMemory["known_gaps"])
	}
}

// TestManager_Advance_S6Compression exercises the spec's §8 S6 scenario:
// maxMemoryEntries=5, maxTurnSummaries=2, maxFactsInMemory=2 across 10 turns
// should leave at most 5 entries, always including critique_assessment and
// the two most recent turn_* entries.
func TestManager_Advance_S6Compression(t *testing.T) {
	store := NewMemoryStore()
	cfg := WorkingMemoryConfig{MaxMemoryEntries: 5, MaxTurnSummaries: 2, MaxFactsInMemory: 2, MaxValueLen: 2000}
	mgr := New(store, cfg)

	state := models.AgentState{Goal: models.AgentGoal{ID: "g1"}}
	for i := 1; i <= 10; i++ {
		obs := &models.Observation{
			Summary:  "turn " + strconv.Itoa(i),
			KeyFacts: map[string]any{"k" + strconv.Itoa(i): "v"},
		}
		critique := &models.Critique{Assessment: "still working", KnownGaps: []string{"gap"}}
		next, err := mgr.Advance(context.Background(), "trace-1", state, models.AgentAction{Kind: models.ActionCallTool}, obs, critique)
		if err != nil {
			t.Fatalf("turn %d: unexpected error: %v", i, err)
		}
		state = next
	}

	if len(state.WorkingMemory) > 5 {
		t.Errorf("expected at most 5 working-memory entries, got %d: %v", len(state.WorkingMemory), state.WorkingMemory)
	}
	if state.WorkingMemory["critique_assessment"] != "still working" {
		t.Error("expected critique_assessment to survive compression")
	}
	if _, ok := state.WorkingMemory["turn_10_summary"]; !ok {
		t.Error("expected the most recent turn_10_summary to survive compression")
	}
	if _, ok := state.WorkingMemory["turn_9_summary"]; !ok {
		t.Error("expected the second most recent turn_9_summary to survive compression")
	}
}

func keyFor(prefix string, n int) string {
	return prefix + strconv.Itoa(n)
}
