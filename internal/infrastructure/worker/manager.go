package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Worker defines the interface for background workers
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// Reporter is implemented by workers that expose run statistics
type Reporter interface {
	Stats() Stats
}

// Manager starts and stops the console's background workers as one unit
type Manager struct {
	logger *zap.Logger

	mu      sync.RWMutex
	workers []Worker
	running bool
}

// NewManager creates an empty manager
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger}
}

// Register adds a worker. Names are unique and workers cannot join a
// running manager.
func (m *Manager) Register(w Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("cannot register %s: workers already running", w.Name())
	}
	for _, existing := range m.workers {
		if existing.Name() == w.Name() {
			return fmt.Errorf("worker %s already registered", w.Name())
		}
	}
	m.workers = append(m.workers, w)
	m.logger.Debug("Worker registered", zap.String("worker_name", w.Name()))
	return nil
}

// Start starts every worker. When one fails, those already started are
// stopped again and the failure is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("workers already running")
	}

	for i, w := range m.workers {
		if err := w.Start(ctx); err != nil {
			m.logger.Error("Failed to start worker", zap.String("worker_name", w.Name()), zap.Error(err))
			return errors.Join(fmt.Errorf("start %s: %w", w.Name(), err), stopAll(m.workers[:i]))
		}
	}
	m.running = true
	m.logger.Info("Workers started", zap.Int("count", len(m.workers)))
	return nil
}

// Stop stops every worker, even after one fails to stop. Stopping a manager
// that is not running is a no-op.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false

	if err := stopAll(m.workers); err != nil {
		m.logger.Error("Failed to stop workers", zap.Error(err))
		return err
	}
	m.logger.Info("Workers stopped", zap.Int("count", len(m.workers)))
	return nil
}

// stopAll stops workers in reverse start order
func stopAll(workers []Worker) error {
	var errs []error
	for i := len(workers) - 1; i >= 0; i-- {
		if err := workers[i].Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", workers[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Stats returns the statistics of every reporting worker keyed by name
func (m *Manager) Stats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Stats, len(m.workers))
	for _, w := range m.workers {
		if r, ok := w.(Reporter); ok {
			out[w.Name()] = r.Stats()
		}
	}
	return out
}

// Failing lists, sorted, the workers whose latest run failed
func (m *Manager) Failing() []string {
	var names []string
	for name, s := range m.Stats() {
		if s.LastError != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered workers
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workers)
}

// Running reports whether the workers are started
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}
