// Package sqlitestore implements statemanager.Store on a local SQLite file
// (or in-memory database), for single-node or development deployments that
// don't need Postgres.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/fenwick-ai/agentcore/pkg/models"
)

// Store implements statemanager.Store on SQLite.
type Store struct {
	db *sql.DB
}

// Config configures a Store.
type Config struct {
	// Path is the SQLite database file path. Empty or ":memory:" opens an
	// in-memory database.
	Path string
}

// New opens (creating if necessary) the checkpoint database at cfg.Path and
// ensures its schema exists.
func New(cfg Config) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS agent_checkpoints (
			id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create agent_checkpoints table: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts traceID's checkpoint as a JSON document.
func (s *Store) Save(ctx context.Context, traceID string, state models.AgentState) error {
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_checkpoints (id, state, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET state = excluded.state, updated_at = CURRENT_TIMESTAMP
	`, traceID, body)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load retrieves traceID's last checkpointed state. The bool return is false
// (with a nil error) when no checkpoint exists.
func (s *Store) Load(ctx context.Context, traceID string) (models.AgentState, bool, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT state FROM agent_checkpoints WHERE id = ?`, traceID).Scan(&body)
	if err == sql.ErrNoRows {
		return models.AgentState{}, false, nil
	}
	if err != nil {
		return models.AgentState{}, false, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var state models.AgentState
	if err := json.Unmarshal(body, &state); err != nil {
		return models.AgentState{}, false, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, true, nil
}

// Delete removes any checkpoint for traceID. Deleting a nonexistent
// checkpoint is not an error.
func (s *Store) Delete(ctx context.Context, traceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM agent_checkpoints WHERE id = ?`, traceID)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
