package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Stats summarizes the runs of a periodic worker
type Stats struct {
	Runs      int       `json:"runs"`
	Processed int64     `json:"processed"`
	Failures  int       `json:"failures"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
}

// periodic runs a task on a fixed interval until stopped
type periodic struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context) (int64, error)
	logger   *zap.Logger

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	stats     Stats
}

func newPeriodic(name string, interval time.Duration, task func(ctx context.Context) (int64, error), logger *zap.Logger) *periodic {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &periodic{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logger.With(zap.String("worker_name", name)),
	}
}

// Start begins the polling loop
func (p *periodic) Start(ctx context.Context) error {
	if p.interval <= 0 {
		return fmt.Errorf("%s: interval must be positive", p.name)
	}

	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return fmt.Errorf("%s already running", p.name)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.isRunning = true
	p.mu.Unlock()

	p.logger.Info("Worker loop started", zap.Duration("interval", p.interval))
	go p.loop(loopCtx, p.done)
	return nil
}

// Stop cancels the loop and waits for the current run to end
func (p *periodic) Stop() error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done

	stats := p.Stats()
	p.logger.Info("Worker loop stopped",
		zap.Int("runs", stats.Runs),
		zap.Int64("processed", stats.Processed),
		zap.Int("failures", stats.Failures))
	return nil
}

// Name returns the worker name for identification
func (p *periodic) Name() string {
	return p.name
}

// Stats returns a copy of the run statistics
func (p *periodic) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

func (p *periodic) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.run(ctx)
		}
	}
}

// run executes the task once and records the outcome
func (p *periodic) run(ctx context.Context) {
	n, err := p.task(ctx)

	p.mu.Lock()
	p.stats.Runs++
	p.stats.Processed += n
	p.stats.LastRun = time.Now()
	if err != nil {
		p.stats.Failures++
		p.stats.LastError = err.Error()
	} else {
		p.stats.LastError = ""
	}
	p.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		p.logger.Warn("Worker run failed", zap.Error(err))
	}
}
