package execution

import "context"

// Repository defines execution record persistence.
type Repository interface {
	Save(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, executionID string) (*Record, error)
	ListRecent(ctx context.Context, agentType string, limit int) ([]*Record, error)
}
