// Package statemanager implements the State Manager: working-memory
// compression bounded to a fixed set of keys, and checkpointing of
// AgentState through a pluggable Store.
package statemanager

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fenwick-ai/agentcore/pkg/models"
)

// importantKeys are always retained by compression regardless of recency.
var importantKeys = map[string]bool{
	"stop_reason":         true,
	"critique_assessment": true,
	"known_gaps":          true,
	"user_query":          true,
}

// WorkingMemoryConfig bounds how many turn_* and fact_* entries working
// memory retains, the overall size that triggers compression, and how long
// any single value may be before truncation.
type WorkingMemoryConfig struct {
	// MaxMemoryEntries is the total entry count above which compression
	// drops non-important, non-recent entries. Zero disables the gate
	// (compression never triggers from size alone).
	MaxMemoryEntries int
	MaxTurnSummaries int
	MaxFactsInMemory int
	MaxValueLen      int
}

// DefaultWorkingMemoryConfig returns the state manager's default bounds.
func DefaultWorkingMemoryConfig() WorkingMemoryConfig {
	return WorkingMemoryConfig{
		MaxMemoryEntries: 60,
		MaxTurnSummaries: 10,
		MaxFactsInMemory: 50,
		MaxValueLen:      2000,
	}
}

// CompressWorkingMemory returns a bounded copy of wm. Every retained value is
// truncated to MaxValueLen regardless of the entry count. If the number of
// entries in wm does not exceed MaxMemoryEntries, the (truncated) entries
// are returned unchanged; otherwise the fixed important keys are always
// kept, and the room left under MaxMemoryEntries is filled first with up to
// MaxTurnSummaries turn_* keys (by turn index, descending) and then with up
// to MaxFactsInMemory fact_* keys (by key, descending); everything else is
// dropped. wm is never mutated.
func CompressWorkingMemory(wm map[string]any, cfg WorkingMemoryConfig) map[string]any {
	return compressWorkingMemory(wm, cfg, nil)
}

// compressWorkingMemory is CompressWorkingMemory with an optional freshOrder
// list of fact_* keys touched on the current turn, most-recent first, used
// to break recency ties among fact_* keys that carry no turn number of
// their own (they're stored as fact_<key>, overwritten turn over turn).
func compressWorkingMemory(wm map[string]any, cfg WorkingMemoryConfig, freshOrder []string) map[string]any {
	if wm == nil {
		return map[string]any{}
	}

	truncated := make(map[string]any, len(wm))
	for k, v := range wm {
		truncated[k] = truncateValue(v, cfg.MaxValueLen)
	}

	if cfg.MaxMemoryEntries <= 0 || len(truncated) <= cfg.MaxMemoryEntries {
		return truncated
	}

	out := make(map[string]any, cfg.MaxMemoryEntries)
	var turnKeys, factKeys []string
	for k, v := range truncated {
		switch {
		case importantKeys[k]:
			out[k] = v
		case strings.HasPrefix(k, "turn_"):
			turnKeys = append(turnKeys, k)
		case strings.HasPrefix(k, "fact_"):
			factKeys = append(factKeys, k)
		}
	}

	// Invariant I3 bounds the *final* retained size at MaxMemoryEntries, not
	// just the per-category counts: once the always-kept important keys are
	// accounted for, turn_* entries (more recent turns first) and then
	// fact_* entries fill whatever budget remains.
	remaining := cfg.MaxMemoryEntries - len(out)
	if remaining < 0 {
		remaining = 0
	}

	combined := mostRecentTurnKeys(turnKeys, cfg.MaxTurnSummaries)
	combined = append(combined, mostRecentFactKeys(factKeys, freshOrder, cfg.MaxFactsInMemory)...)
	if len(combined) > remaining {
		combined = combined[:remaining]
	}
	for _, k := range combined {
		out[k] = truncated[k]
	}

	return out
}

// mostRecentTurnKeys sorts descending by the turn index embedded in each
// turn_<turnIndex>_summary key and returns the top n. A byte-wise string
// sort would put "turn_10_summary" before "turn_9_summary" (since '0' <
// '9'), discarding the actual most recent turn once the index reaches two
// digits; sorting on the parsed index avoids that.
func mostRecentTurnKeys(keys []string, n int) []string {
	sorted := append([]string(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool {
		return turnIndexOf(sorted[i]) > turnIndexOf(sorted[j])
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// turnIndexOf extracts the numeric turnIndex from a "turn_<turnIndex>_summary"
// key. Keys that don't match the expected shape sort last (-1).
func turnIndexOf(key string) int {
	rest := strings.TrimPrefix(key, "turn_")
	if rest == key {
		return -1
	}
	rest = strings.TrimSuffix(rest, "_summary")
	n, err := strconv.Atoi(rest)
	if err != nil {
		return -1
	}
	return n
}

// mostRecentFactKeys prioritizes keys touched on the current turn (in the
// order given by freshOrder), then fills any remaining slots with the rest
// sorted descending by key for determinism.
func mostRecentFactKeys(keys []string, freshOrder []string, n int) []string {
	if n < 0 {
		n = len(keys)
	}
	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		present[k] = true
	}

	var ordered []string
	seen := make(map[string]bool, len(keys))
	for _, k := range freshOrder {
		if present[k] && !seen[k] {
			ordered = append(ordered, k)
			seen[k] = true
		}
	}

	var rest []string
	for _, k := range keys {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(rest)))
	ordered = append(ordered, rest...)

	if len(ordered) > n {
		ordered = ordered[:n]
	}
	return ordered
}

func truncateValue(v any, max int) any {
	if max <= 0 {
		return v
	}
	s, ok := v.(string)
	if !ok || len(s) <= max {
		return v
	}
	return s[:max] + "..."
}

// Store persists and retrieves AgentState checkpoints keyed by an arbitrary
// trace identifier.
type Store interface {
	Save(ctx context.Context, traceID string, state models.AgentState) error
	Load(ctx context.Context, traceID string) (models.AgentState, bool, error)
	Delete(ctx context.Context, traceID string) error
}

// Manager owns working-memory compression and checkpointing for a run.
type Manager struct {
	store  Store
	config WorkingMemoryConfig
}

// New creates a state manager backed by store, using cfg to bound working
// memory. A zero-value cfg falls back to DefaultWorkingMemoryConfig.
func New(store Store, cfg WorkingMemoryConfig) *Manager {
	if cfg == (WorkingMemoryConfig{}) {
		cfg = DefaultWorkingMemoryConfig()
	}
	return &Manager{store: store, config: cfg}
}

// Advance applies the outcome of a turn to state: increments TurnIndex
// (invariant: turnIndex only ever increases), folds the action and
// observation into working memory per the action's kind, compresses working
// memory, and checkpoints the result before returning — the next turn can
// only begin once Advance has returned successfully, satisfying the
// "checkpoint precedes next turn" invariant.
func (m *Manager) Advance(ctx context.Context, traceID string, state models.AgentState, action models.AgentAction, obs *models.Observation, critique *models.Critique) (models.AgentState, error) {
	next := state
	next.TurnIndex = state.TurnIndex + 1
	next.LastObservation = obs
	next.LastAction = &action

	if action.Kind == models.ActionReplan {
		next.Subgoals = append([]string(nil), action.Subgoals...)
	}

	wm, freshFacts := mergeWorkingMemory(state.WorkingMemory, next.TurnIndex, action, obs, critique)
	next.WorkingMemory = compressWorkingMemory(wm, m.config, freshFacts)

	if err := m.store.Save(ctx, traceID, next); err != nil {
		return state, fmt.Errorf("checkpoint state: %w", err)
	}
	return next, nil
}

// mergeWorkingMemory returns a copy of wm with this turn's bookkeeping
// folded in, per §4.4:
//   - Replan records a "replan" entry.
//   - AskUser records "user_query".
//   - Stop records "stop_reason".
//   - Every key fact in obs is recorded under fact_<key> (overwriting any
//     prior turn's value for that key — working memory holds the latest
//     known value per key, not a full history).
//   - The turn's summary is recorded under turn_<turnIndex>_summary.
//   - A critique, if present, is recorded as critique_assessment and
//     known_gaps (comma-joined).
//
// It also returns the fact_* keys touched this turn, most-recent first, so
// compression can prefer them over stale entries with no turn number of
// their own.
func mergeWorkingMemory(wm map[string]any, turnIndex int, action models.AgentAction, obs *models.Observation, critique *models.Critique) (map[string]any, []string) {
	out := make(map[string]any, len(wm)+4)
	for k, v := range wm {
		out[k] = v
	}

	switch action.Kind {
	case models.ActionReplan:
		out["replan"] = strings.Join(action.Subgoals, "; ")
	case models.ActionAskUser:
		out["user_query"] = action.Question
	case models.ActionStop:
		out["stop_reason"] = action.Reason
	}

	var freshFacts []string
	if obs != nil {
		out[fmt.Sprintf("turn_%d_summary", turnIndex)] = obs.Summary

		keys := sortedFactKeys(obs.KeyFacts)
		for _, k := range keys {
			factKey := "fact_" + k
			out[factKey] = stringifyFact(obs.KeyFacts[k])
			freshFacts = append(freshFacts, factKey)
		}
	}

	if critique != nil {
		out["critique_assessment"] = critique.Assessment
		out["known_gaps"] = strings.Join(critique.KnownGaps, ", ")
	}

	return out, freshFacts
}

func sortedFactKeys(facts map[string]any) []string {
	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringifyFact(v any) string {
	switch val := v.(type) {
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Load retrieves the last checkpointed state for traceID.
func (m *Manager) Load(ctx context.Context, traceID string) (models.AgentState, bool, error) {
	return m.store.Load(ctx, traceID)
}

// Delete removes any checkpoint for traceID.
func (m *Manager) Delete(ctx context.Context, traceID string) error {
	return m.store.Delete(ctx, traceID)
}
