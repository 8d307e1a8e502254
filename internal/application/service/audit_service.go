package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyjia/billing-console/internal/application/dispatcher"
	"github.com/garyjia/billing-console/internal/application/port"
	"github.com/garyjia/billing-console/internal/domain/entity"
	"github.com/garyjia/billing-console/internal/domain/event"
	"github.com/garyjia/billing-console/internal/executor"
)

// AuditHandlerName is the dispatcher subscription name of the mutation log
const AuditHandlerName = "mutation-audit"

// AuditService keeps the log of executed mutations
type AuditService interface {
	// Subscribe records every settled mutation published on d
	Subscribe(d dispatcher.Dispatcher)
	Record(ctx context.Context, evt *event.Event) error
	Get(ctx context.Context, mutationID string) (*entity.MutationRecord, error)
	List(ctx context.Context, filter port.MutationLogFilter) ([]*entity.MutationRecord, error)
	Summary(ctx context.Context) (map[string]int, error)
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

type auditServiceImpl struct {
	repo   port.MutationLogRepository
	now    func() time.Time
	logger Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(repo port.MutationLogRepository, logger Logger) AuditService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &auditServiceImpl{
		repo:   repo,
		now:    time.Now,
		logger: logger,
	}
}

// Subscribe registers the service for every settled mutation type
func (s *auditServiceImpl) Subscribe(d dispatcher.Dispatcher) {
	d.Subscribe(AuditHandlerName, s.Record, event.MutationSettledTypes...)
}

// Record stores one settled mutation event
func (s *auditServiceImpl) Record(ctx context.Context, evt *event.Event) error {
	record := &entity.MutationRecord{
		MutationID:  evt.MutationID,
		Kind:        evt.Payload.String(executor.PayloadKind),
		ClientID:    evt.Payload.Int(executor.PayloadClientID),
		State:       evt.Payload.String(executor.PayloadState),
		FailureKind: evt.Payload.String(executor.PayloadFailureKind),
		Error:       evt.Payload.String(executor.PayloadError),
		ElapsedMS:   evt.Payload.Int(executor.PayloadElapsedMS),
		CreatedAt:   evt.Timestamp,
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}

	if input, ok := evt.Payload[executor.PayloadInput]; ok && input != nil {
		raw, err := json.Marshal(input)
		if err != nil {
			s.logger.Error("Failed to encode mutation input", "error", err, "mutation_id", evt.MutationID)
		} else {
			record.Payload = string(raw)
		}
	}

	if err := s.repo.Create(ctx, record); err != nil {
		s.logger.Error("Failed to record mutation", "error", err, "mutation_id", evt.MutationID, "kind", record.Kind)
		return fmt.Errorf("record mutation %s: %w", evt.MutationID, err)
	}
	return nil
}

// Get returns the record of one mutation
func (s *auditServiceImpl) Get(ctx context.Context, mutationID string) (*entity.MutationRecord, error) {
	record, err := s.repo.GetByMutationID(ctx, mutationID)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// List returns records newest first
func (s *auditServiceImpl) List(ctx context.Context, filter port.MutationLogFilter) ([]*entity.MutationRecord, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list mutations", "error", err)
		return nil, err
	}
	return records, nil
}

// Summary counts records per final state
func (s *auditServiceImpl) Summary(ctx context.Context) (map[string]int, error) {
	return s.repo.CountByState(ctx)
}

// Prune removes records older than the retention
func (s *auditServiceImpl) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	n, err := s.repo.DeleteBefore(ctx, s.now().Add(-retention))
	if err != nil {
		s.logger.Error("Failed to prune mutation log", "error", err)
		return 0, err
	}
	if n > 0 {
		s.logger.Info("Mutation log pruned", "removed", n)
	}
	return n, nil
}
