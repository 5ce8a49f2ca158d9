// Package sqlite stores execution records in a local SQLite file. It is the
// default repository when no DATABASE_URL is configured.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Ntarekp/teamSynth/internal/domain/execution"
)

// ExecutionRepository implements execution.Repository.
type ExecutionRepository struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*ExecutionRepository, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure sqlite dir: %w", err)
	}
	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	repo := &ExecutionRepository{db: db}
	if err := repo.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *ExecutionRepository) Close() error {
	return r.db.Close()
}

func (r *ExecutionRepository) ensureSchema() error {
	_, err := r.db.Exec(`
CREATE TABLE IF NOT EXISTS executions (
	execution_id TEXT PRIMARY KEY,
	agent_type TEXT NOT NULL DEFAULT '',
	success INTEGER NOT NULL,
	record_json TEXT NOT NULL,
	created_at TEXT NOT NULL,
	completed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_executions_agent_created ON executions(agent_type, created_at);
`)
	if err != nil {
		return fmt.Errorf("create executions schema: %w", err)
	}
	return nil
}

// Save upserts rec by execution id.
func (r *ExecutionRepository) Save(ctx context.Context, rec *execution.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode execution %s: %w", rec.ExecutionID, err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO executions (execution_id, agent_type, success, record_json, created_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(execution_id) DO UPDATE SET
	agent_type=excluded.agent_type, success=excluded.success,
	record_json=excluded.record_json, completed_at=excluded.completed_at`,
		rec.ExecutionID, rec.AgentType, rec.Success, string(body),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano), rec.CompletedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save execution %s: %w", rec.ExecutionID, err)
	}
	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, executionID string) (*execution.Record, error) {
	var body string
	err := r.db.QueryRowContext(ctx, `SELECT record_json FROM executions WHERE execution_id = ?`, executionID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, execution.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load execution %s: %w", executionID, err)
	}
	return decode(body)
}

// ListRecent returns the newest records first. An empty agentType lists all.
func (r *ExecutionRepository) ListRecent(ctx context.Context, agentType string, limit int) ([]*execution.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT record_json FROM executions
WHERE (? = '' OR agent_type = ?)
ORDER BY created_at DESC LIMIT ?`, agentType, agentType, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []*execution.Record
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		rec, err := decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func decode(body string) (*execution.Record, error) {
	var rec execution.Record
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return nil, fmt.Errorf("decode execution record: %w", err)
	}
	return &rec, nil
}
