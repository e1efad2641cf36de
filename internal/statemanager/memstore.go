package statemanager

import (
	"context"
	"sync"

	"github.com/fenwick-ai/agentcore/pkg/models"
)

// MemoryStore is an in-process Store, deep-cloning state on every Save and
// Load so callers can freely mutate what they hand in or get back without
// corrupting the stored checkpoint.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]models.AgentState
}

// NewMemoryStore creates an empty in-memory state store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]models.AgentState)}
}

// Save checkpoints state under sessionID, replacing any prior checkpoint.
func (s *MemoryStore) Save(_ context.Context, sessionID string, state models.AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[sessionID] = cloneState(state)
	return nil
}

// Load retrieves the last checkpoint for sessionID.
func (s *MemoryStore) Load(_ context.Context, sessionID string) (models.AgentState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[sessionID]
	if !ok {
		return models.AgentState{}, false, nil
	}
	return cloneState(state), true, nil
}

// Delete removes any checkpoint for sessionID.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID)
	return nil
}

func cloneState(s models.AgentState) models.AgentState {
	out := s
	out.Goal.Constraints = append([]string(nil), s.Goal.Constraints...)
	out.Goal.Context = deepCloneMap(s.Goal.Context)
	out.Subgoals = append([]string(nil), s.Subgoals...)
	out.WorkingMemory = deepCloneMap(s.WorkingMemory)
	if s.LastAction != nil {
		action := *s.LastAction
		if action.ToolCall != nil {
			call := *action.ToolCall
			call.Input = append(call.Input[:0:0], call.Input...)
			action.ToolCall = &call
		}
		action.MissingFields = append([]string(nil), action.MissingFields...)
		action.Subgoals = append([]string(nil), action.Subgoals...)
		out.LastAction = &action
	}
	if s.LastObservation != nil {
		obs := *s.LastObservation
		obs.KeyFacts = deepCloneMap(s.LastObservation.KeyFacts)
		obs.Affordances = append([]string(nil), s.LastObservation.Affordances...)
		obs.Raw.Data = append(obs.Raw.Data[:0:0], obs.Raw.Data...)
		out.LastObservation = &obs
	}
	return out
}

func deepCloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCloneValue(v)
	}
	return out
}

func deepCloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = deepCloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return val
	}
}
