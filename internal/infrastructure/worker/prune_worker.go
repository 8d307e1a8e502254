package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PruneWorkerName identifies the mutation log prune worker
const PruneWorkerName = "MutationLogPruner"

// Pruner removes mutation log records older than a retention
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// PruneWorker keeps the mutation log within its retention window
type PruneWorker struct {
	*periodic
	pruner    Pruner
	retention time.Duration
}

// NewPruneWorker creates a prune worker
func NewPruneWorker(p Pruner, interval, retention time.Duration, logger *zap.Logger) *PruneWorker {
	w := &PruneWorker{
		pruner:    p,
		retention: retention,
	}
	w.periodic = newPeriodic(PruneWorkerName, interval, w.prune, logger)
	return w
}

func (w *PruneWorker) prune(ctx context.Context) (int64, error) {
	return w.pruner.Prune(ctx, w.retention)
}
