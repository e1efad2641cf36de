// Package postgres implements statemanager.Store on CockroachDB/Postgres,
// checkpointing each run's AgentState as a JSON document keyed by trace ID.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/fenwick-ai/agentcore/pkg/models"
)

// Store implements statemanager.Store on CockroachDB/Postgres.
type Store struct {
	db *sql.DB

	stmtUpsert *sql.Stmt
	stmtGet    *sql.Stmt
	stmtDelete *sql.Stmt
}

// Config holds connection parameters for Store.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultConfig returns sane local-development defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            26257,
		User:            "root",
		Database:        "agentcore",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// New opens a connection pool and prepares the checkpoint statements. The
// caller is expected to have already run the schema migration creating the
// agent_checkpoints table (id text primary key, state jsonb, updated_at
// timestamptz).
func New(config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		config.Host, config.Port, config.User, config.Password,
		config.Database, config.SSLMode, int(config.ConnectTimeout.Seconds()),
	)
	return NewFromDSN(dsn, config)
}

// NewFromDSN opens a connection pool using a raw DSN/URL.
func NewFromDSN(dsn string, config *Config) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if config == nil {
		config = DefaultConfig()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return store, nil
}

func (s *Store) prepareStatements() error {
	var err error

	s.stmtUpsert, err = s.db.Prepare(`
		INSERT INTO agent_checkpoints (id, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET state = $2, updated_at = $3
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}

	s.stmtGet, err = s.db.Prepare(`
		SELECT state FROM agent_checkpoints WHERE id = $1
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get: %w", err)
	}

	s.stmtDelete, err = s.db.Prepare(`
		DELETE FROM agent_checkpoints WHERE id = $1
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete: %w", err)
	}

	return nil
}

// Close releases the prepared statements and the connection pool.
func (s *Store) Close() error {
	var errs []error
	for _, stmt := range []*sql.Stmt{s.stmtUpsert, s.stmtGet, s.stmtDelete} {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing store: %v", errs)
	}
	return nil
}

// Save upserts traceID's checkpoint as a JSON document.
func (s *Store) Save(ctx context.Context, traceID string, state models.AgentState) error {
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	_, err = s.stmtUpsert.ExecContext(ctx, traceID, body, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load retrieves traceID's last checkpointed state. The bool return is false
// (with a nil error) when no checkpoint exists.
func (s *Store) Load(ctx context.Context, traceID string) (models.AgentState, bool, error) {
	var body []byte
	err := s.stmtGet.QueryRowContext(ctx, traceID).Scan(&body)
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
	_, err := s.stmtDelete.ExecContext(ctx, traceID)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
