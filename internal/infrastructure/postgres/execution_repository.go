package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ntarekp/teamSynth/internal/domain/execution"
)

// ExecutionRepository implements execution.Repository.
type ExecutionRepository struct {
	pool *pgxpool.Pool
}

func NewExecutionRepository(pool *pgxpool.Pool) *ExecutionRepository {
	return &ExecutionRepository{pool: pool}
}

// Save upserts rec by execution id.
func (r *ExecutionRepository) Save(ctx context.Context, rec *execution.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode execution %s: %w", rec.ExecutionID, err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO executions (execution_id, agent_type, success, record, created_at, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (execution_id) DO UPDATE SET
			agent_type=EXCLUDED.agent_type, success=EXCLUDED.success, record=EXCLUDED.record,
			completed_at=EXCLUDED.completed_at
	`, rec.ExecutionID, rec.AgentType, rec.Success, body, rec.CreatedAt, rec.CompletedAt)
	return err
}

func (r *ExecutionRepository) GetByID(ctx context.Context, executionID string) (*execution.Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT record FROM executions WHERE execution_id=$1`, executionID)
	return scanRecord(row)
}

// ListRecent returns the newest records first. An empty agentType lists all.
func (r *ExecutionRepository) ListRecent(ctx context.Context, agentType string, limit int) ([]*execution.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT record FROM executions
		WHERE ($1 = '' OR agent_type = $1)
		ORDER BY created_at DESC LIMIT $2
	`, agentType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*execution.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*execution.Record, error) {
	var body []byte
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, execution.ErrNotFound
		}
		return nil, err
	}
	var rec execution.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode execution record: %w", err)
	}
	return &rec, nil
}
