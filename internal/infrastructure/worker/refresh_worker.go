package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/billing-console/internal/domain/query"
)

// RefreshWorkerName identifies the refresh worker
const RefreshWorkerName = "RefreshWorker"

// Refresher is the part of the entity cache the refresh worker drives
type Refresher interface {
	Outdated() []query.ID
	Refetch(ctx context.Context, ids []query.ID) error
}

// RefreshWorker periodically reloads observed queries left stale or errored,
// such as a refetch that failed right after a mutation committed.
type RefreshWorker struct {
	*periodic
	cache   Refresher
	timeout time.Duration
	logger  *zap.Logger
}

// NewRefreshWorker creates a refresh worker
func NewRefreshWorker(c Refresher, interval, timeout time.Duration, logger *zap.Logger) *RefreshWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &RefreshWorker{
		cache:   c,
		timeout: timeout,
		logger:  logger,
	}
	w.periodic = newPeriodic(RefreshWorkerName, interval, w.refresh, logger)
	return w
}

// refresh reloads every outdated query once
func (w *RefreshWorker) refresh(ctx context.Context) (int64, error) {
	ids := w.cache.Outdated()
	if len(ids) == 0 {
		return 0, nil
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	w.logger.Debug("Refreshing outdated queries", zap.Int("count", len(ids)))
	if err := w.cache.Refetch(ctx, ids); err != nil {
		return int64(len(ids)), err
	}
	return int64(len(ids)), nil
}
