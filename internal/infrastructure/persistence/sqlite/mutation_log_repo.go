package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/billing-console/internal/application/port"
	"github.com/garyjia/billing-console/internal/domain/entity"
	"go.uber.org/zap"
)

// MutationLogRepository implements port.MutationLogRepository
type MutationLogRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewMutationLogRepository creates a new mutation log repository
func NewMutationLogRepository(db *DB, logger *zap.Logger) port.MutationLogRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MutationLogRepository{
		db:     db,
		logger: logger,
	}
}

const mutationLogColumns = `id, mutation_id, kind, client_id, state, failure_kind,
			error, payload, elapsed_ms, created_at`

// Create stores a mutation record
func (r *MutationLogRepository) Create(ctx context.Context, record *entity.MutationRecord) error {
	query := `
		INSERT INTO mutation_log (
			mutation_id, kind, client_id, state, failure_kind,
			error, payload, elapsed_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.conn(ctx).ExecContext(ctx, query,
		record.MutationID,
		record.Kind,
		record.ClientID,
		record.State,
		record.FailureKind,
		record.Error,
		record.Payload,
		record.ElapsedMS,
		record.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create mutation record",
			zap.String("mutation_id", record.MutationID),
			zap.Error(err))
		return fmt.Errorf("failed to create mutation record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// GetByMutationID retrieves the record of one mutation
func (r *MutationLogRepository) GetByMutationID(ctx context.Context, mutationID string) (*entity.MutationRecord, error) {
	query := `SELECT ` + mutationLogColumns + ` FROM mutation_log WHERE mutation_id = ?`

	record, err := scanMutationRecord(r.db.conn(ctx).QueryRowContext(ctx, query, mutationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mutation %s: %w", mutationID, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get mutation record", zap.String("mutation_id", mutationID), zap.Error(err))
		return nil, fmt.Errorf("failed to get mutation record: %w", err)
	}
	return record, nil
}

// List returns records newest first
func (r *MutationLogRepository) List(ctx context.Context, filter port.MutationLogFilter) ([]*entity.MutationRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.ClientID != 0 {
		where = append(where, "client_id = ?")
		args = append(args, filter.ClientID)
	}
	if filter.State != "" {
		where = append(where, "state = ?")
		args = append(args, filter.State)
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := `SELECT ` + mutationLogColumns + ` FROM mutation_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list mutation records", zap.Error(err))
		return nil, fmt.Errorf("failed to list mutation records: %w", err)
	}
	defer rows.Close()

	records := []*entity.MutationRecord{}
	for rows.Next() {
		record, err := scanMutationRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mutation record: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// CountByState returns the number of records per final state
func (r *MutationLogRepository) CountByState(ctx context.Context) (map[string]int, error) {
	query := `SELECT state, COUNT(*) FROM mutation_log GROUP BY state`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to count mutation records", zap.Error(err))
		return nil, fmt.Errorf("failed to count mutation records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			state string
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan state count: %w", err)
		}
		counts[state] = count
	}
	return counts, rows.Err()
}

// DeleteBefore removes records created before t
func (r *MutationLogRepository) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	var removed, remaining int64

	err := r.db.WithTransaction(ctx, func(ctx context.Context) error {
		exec := r.db.conn(ctx)
		result, err := exec.ExecContext(ctx, `DELETE FROM mutation_log WHERE created_at < ?`, t.UTC())
		if err != nil {
			return fmt.Errorf("failed to delete mutation records: %w", err)
		}
		if removed, err = result.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		return exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM mutation_log`).Scan(&remaining)
	})
	if err != nil {
		r.logger.Error("Failed to prune mutation log", zap.Time("before", t), zap.Error(err))
		return 0, err
	}

	r.logger.Debug("Mutation log pruned",
		zap.Int64("removed", removed),
		zap.Int64("remaining", remaining))
	return removed, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMutationRecord(row rowScanner) (*entity.MutationRecord, error) {
	var record entity.MutationRecord
	err := row.Scan(
		&record.ID,
		&record.MutationID,
		&record.Kind,
		&record.ClientID,
		&record.State,
		&record.FailureKind,
		&record.Error,
		&record.Payload,
		&record.ElapsedMS,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Verify interface compliance
var _ port.MutationLogRepository = (*MutationLogRepository)(nil)
