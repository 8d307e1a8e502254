// Package executor runs mutations against the remote service with an
// optimistic local patch that is either committed or rolled back.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/billing-console/internal/application/dispatcher"
	"github.com/garyjia/billing-console/internal/cache"
	"github.com/garyjia/billing-console/internal/domain/event"
	"github.com/garyjia/billing-console/internal/domain/failure"
	"github.com/garyjia/billing-console/internal/domain/mutation"
	"github.com/garyjia/billing-console/internal/domain/query"
	"github.com/garyjia/billing-console/internal/invalidation"
)

// Event payload keys
const (
	PayloadKind        = "kind"
	PayloadClientID    = "client_id"
	PayloadState       = "state"
	PayloadFailureKind = "failure_kind"
	PayloadError       = "error"
	PayloadFields      = "fields"
	PayloadPatched     = "patched"
	PayloadRefetched   = "refetched"
	PayloadElapsedMS   = "elapsed_ms"
	PayloadInput       = "input"
)

// Mutation describes one write. Validate and Optimistic are optional; a
// mutation without optimistic patches settles straight to committed or
// failed.
type Mutation struct {
	Kind       invalidation.MutationKind
	ClientID   int64
	Validate   func() *failure.Failure
	Optimistic []cache.Patch
	Call       func(ctx context.Context) (any, error)
	Input      any

	// Committed runs after the remote call succeeded and before the
	// affected queries are refetched
	Committed func(result any)
}

// Outcome reports how a mutation settled
type Outcome struct {
	ID        string
	Kind      invalidation.MutationKind
	State     mutation.State
	Result    any
	Failure   *failure.Failure
	Patched   []query.ID
	Refetched []query.ID
	History   []mutation.Transition
	Elapsed   time.Duration
}

// Executor is safe for concurrent use; all shared state lives in the cache
type Executor struct {
	cache      *cache.Cache
	graph      *invalidation.Graph
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures an Executor
type Option func(*Executor)

// WithDispatcher publishes lifecycle events
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(e *Executor) {
		e.dispatcher = d
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// New creates an executor over a cache and an invalidation graph
func New(c *cache.Cache, g *invalidation.Graph, opts ...Option) *Executor {
	e := &Executor{
		cache:  c,
		graph:  g,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the mutation protocol:
//
//  1. validate locally; a failure leaves the cache and the network untouched
//  2. apply the optimistic patches, chained on whatever is cached
//  3. call the remote service
//  4. on success commit, invalidate and refetch observed queries
//  5. on failure restore every patched query and classify the error
//
// The returned error is always a *failure.Failure. The outcome is never nil.
func (e *Executor) Execute(ctx context.Context, m Mutation) (*Outcome, error) {
	if m.Call == nil {
		return nil, fmt.Errorf("mutation %s has no remote call", m.Kind)
	}

	start := e.now()
	lifecycle := mutation.NewLifecycle()
	out := &Outcome{ID: uuid.NewString(), Kind: m.Kind}
	logger := e.logger.With(
		zap.String("mutation_id", out.ID),
		zap.String("kind", m.Kind.String()),
		zap.Int64("client_id", m.ClientID),
	)

	finish := func(typ event.Type, f *failure.Failure) (*Outcome, error) {
		out.State = lifecycle.State()
		out.History = lifecycle.History()
		out.Elapsed = e.now().Sub(start)
		e.publish(ctx, typ, m, out)
		if f != nil {
			return out, f
		}
		return out, nil
	}

	if m.Validate != nil {
		if f := m.Validate(); f != nil {
			out.Failure = f
			logger.Debug("mutation rejected by local validation", zap.Strings("messages", f.Messages()))
			return finish(event.TypeMutationValidationFailed, f)
		}
	}

	optimistic := len(m.Optimistic) > 0
	if optimistic {
		out.Patched = e.cache.Apply(out.ID, m.Optimistic...)
		if err := lifecycle.Fire(mutation.TriggerApplyOptimistic); err != nil {
			return nil, err
		}
		e.publish(ctx, event.TypeMutationOptimistic, m, out)
	}

	result, err := m.Call(ctx)
	if err != nil {
		f := failure.Classify(err)
		out.Failure = f

		if optimistic {
			e.cache.Rollback(out.ID)
			if fireErr := lifecycle.Fire(mutation.TriggerRollback); fireErr != nil {
				return nil, fireErr
			}
			logger.Info("mutation rolled back",
				zap.String("failure_kind", string(f.Kind)),
				zap.Int("patched", len(out.Patched)),
				zap.Error(err))
			return finish(event.TypeMutationRolledBack, f)
		}

		if fireErr := lifecycle.Fire(mutation.TriggerFail); fireErr != nil {
			return nil, fireErr
		}
		logger.Info("mutation failed",
			zap.String("failure_kind", string(f.Kind)),
			zap.Error(err))
		return finish(event.TypeMutationFailed, f)
	}

	out.Result = result
	if optimistic {
		e.cache.Commit(out.ID)
	}
	if err := lifecycle.Fire(mutation.TriggerCommit); err != nil {
		return nil, err
	}
	if m.Committed != nil {
		m.Committed(result)
	}

	out.Refetched = e.invalidate(ctx, logger, m)
	logger.Info("mutation committed",
		zap.Int("patched", len(out.Patched)),
		zap.Int("refetched", len(out.Refetched)))
	return finish(event.TypeMutationCommitted, nil)
}

// invalidate marks every query the mutation could affect as stale and
// refetches the observed ones. Read failures stay on the affected queries;
// the mutation itself has already committed.
func (e *Executor) invalidate(ctx context.Context, logger *zap.Logger, m Mutation) []query.ID {
	patterns := e.graph.Patterns(m.Kind, m.ClientID)
	if len(patterns) == 0 {
		return nil
	}

	observed := e.cache.MarkStale(patterns...)
	if len(observed) == 0 {
		return nil
	}

	if err := e.cache.Refetch(ctx, observed); err != nil {
		logger.Warn("refetch after commit failed", zap.Error(err))
		if e.dispatcher != nil && !errors.Is(err, context.Canceled) {
			evt := event.NewEvent(event.TypeQueryFetchFailed, "", event.Payload{
				PayloadKind:  m.Kind.String(),
				PayloadError: err.Error(),
			})
			e.dispatcher.DispatchAsync(context.WithoutCancel(ctx), evt)
		}
	}

	if e.dispatcher != nil {
		evt := event.NewEvent(event.TypeQueriesInvalidated, "", event.Payload{
			PayloadKind:      m.Kind.String(),
			PayloadRefetched: idStrings(observed),
		})
		e.dispatcher.DispatchAsync(context.WithoutCancel(ctx), evt)
	}
	return observed
}

func (e *Executor) publish(ctx context.Context, typ event.Type, m Mutation, out *Outcome) {
	if e.dispatcher == nil {
		return
	}

	payload := event.Payload{
		PayloadKind:      m.Kind.String(),
		PayloadClientID:  m.ClientID,
		PayloadState:     string(out.State),
		PayloadPatched:   idStrings(out.Patched),
		PayloadRefetched: idStrings(out.Refetched),
		PayloadElapsedMS: out.Elapsed.Milliseconds(),
	}
	if typ == event.TypeMutationOptimistic {
		payload[PayloadState] = string(mutation.StateOptimisticApplied)
	}
	if m.Input != nil {
		payload[PayloadInput] = m.Input
	}
	if f := out.Failure; f != nil {
		payload[PayloadFailureKind] = string(f.Kind)
		payload[PayloadError] = f.Error()
		if !f.Fields.Empty() {
			payload[PayloadFields] = f.Fields
		}
	}

	evt := event.NewEvent(typ, out.ID, payload)
	if err := e.dispatcher.Dispatch(context.WithoutCancel(ctx), evt); err != nil {
		e.logger.Warn("lifecycle event handler failed",
			zap.String("mutation_id", out.ID),
			zap.String("event_type", typ.String()),
			zap.Error(err))
	}
}

func idStrings(ids []query.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
