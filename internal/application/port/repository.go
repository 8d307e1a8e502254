package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/billing-console/internal/domain/entity"
)

// ErrNotFound is returned when a stored record does not exist
var ErrNotFound = errors.New("record not found")

// MutationLogFilter narrows a mutation log listing. Zero values match all.
type MutationLogFilter struct {
	Kind     string
	ClientID int64
	State    string
	Since    time.Time
	Limit    int
	Offset   int
}

// MutationLogRepository defines persistence operations for MutationRecord
type MutationLogRepository interface {
	// Create stores a record and sets its ID
	Create(ctx context.Context, record *entity.MutationRecord) error

	// GetByMutationID retrieves the record of one mutation instance
	GetByMutationID(ctx context.Context, mutationID string) (*entity.MutationRecord, error)

	// List returns records newest first
	List(ctx context.Context, filter MutationLogFilter) ([]*entity.MutationRecord, error)

	// CountByState returns the number of records per final state
	CountByState(ctx context.Context) (map[string]int, error)

	// DeleteBefore prunes records older than t and returns how many were removed
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
