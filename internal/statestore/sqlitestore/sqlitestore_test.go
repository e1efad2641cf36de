package sqlitestore

import (
	"context"
	"testing"

	"github.com/fenwick-ai/agentcore/pkg/models"
)

func TestStore_SaveLoadDelete(t *testing.T) {
	store, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	state := models.AgentState{Goal: models.AgentGoal{Description: "find x"}, TurnIndex: 2}

	if err := store.Save(ctx, "trace-1", state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, ok, err := store.Load(ctx, "trace-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("expected checkpoint found")
	}
	if loaded.TurnIndex != 2 || loaded.Goal.Description != "find x" {
		t.Errorf("unexpected loaded state: %+v", loaded)
	}

	// Overwrite with a second Save for the same trace ID.
	state.TurnIndex = 5
	if err := store.Save(ctx, "trace-1", state); err != nil {
		t.Fatalf("Save (overwrite): %v", err)
	}
	loaded, _, err = store.Load(ctx, "trace-1")
	if err != nil {
		t.Fatalf("Load after overwrite: %v", err)
	}
	if loaded.TurnIndex != 5 {
		t.Errorf("expected overwritten TurnIndex=5, got %d", loaded.TurnIndex)
	}

	if err := store.Delete(ctx, "trace-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, ok, err = store.Load(ctx, "trace-1")
	if err != nil {
		t.Fatalf("Load after delete: %v", err)
	}
	if ok {
		t.Error("expected no checkpoint after delete")
	}
}

func TestStore_LoadMissing(t *testing.T) {
	store, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer store.Close()

	_, ok, err := store.Load(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected ok=false")
	}
}

func TestStore_DeleteNonexistentIsNotError(t *testing.T) {
	store, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer store.Close()

	if err := store.Delete(context.Background(), "nonexistent"); err != nil {
		t.Errorf("expected no error deleting nonexistent checkpoint, got %v", err)
	}
}
