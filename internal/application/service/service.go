package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/garyjia/billing-console/internal/cache"
	"github.com/garyjia/billing-console/internal/domain/failure"
	"github.com/garyjia/billing-console/internal/domain/mutation"
	"github.com/garyjia/billing-console/internal/domain/query"
	"github.com/garyjia/billing-console/internal/executor"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// View is a cached read together with its freshness. Error is set when the
// last fetch failed and Data is the previous, stale result.
type View[T any] struct {
	Data      T            `json:"data"`
	Status    cache.Status `json:"status"`
	UpdatedAt time.Time    `json:"updated_at"`
	Error     string       `json:"error,omitempty"`
}

// Change is a settled mutation and the value the remote service returned
type Change[T any] struct {
	MutationID string         `json:"mutation_id"`
	State      mutation.State `json:"state"`
	Value      T              `json:"value"`
	Refetched  []string       `json:"refetched,omitempty"`
}

// reader serves queries through the cache and keeps every unsearched query it
// served observed, so that invalidation refetches what consoles display.
type reader struct {
	cache *cache.Cache

	mu       sync.Mutex
	observed map[query.ID]func()
}

func newReader(c *cache.Cache) *reader {
	return &reader{cache: c, observed: make(map[query.ID]func())}
}

func (r *reader) observe(id query.ID, fetch cache.Fetcher) {
	if id.Scope.Search != "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.observed[id]; ok {
		return
	}
	r.observed[id] = r.cache.Observe(id, fetch)
}

// release stops observing the queries matching match and reports how many
// it dropped
func (r *reader) release(match func(query.ID) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, unobserve := range r.observed {
		if !match(id) {
			continue
		}
		unobserve()
		delete(r.observed, id)
		n++
	}
	return n
}

// load reads id through the cache. A failed fetch with earlier data returns
// that data flagged with the error instead of failing.
func load[T any](ctx context.Context, r *reader, id query.ID, fetch func(context.Context) (T, error)) (View[T], error) {
	fetcher := func(ctx context.Context) (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	r.observe(id, fetcher)

	res, err := r.cache.Query(ctx, id, fetcher)
	data, ok := cache.As[T](res)
	view := View[T]{Data: data, Status: res.Status, UpdatedAt: res.UpdatedAt}
	if err != nil {
		if !ok {
			return view, err
		}
		view.Error = failure.Classify(err).Message
	}
	return view, nil
}

// cached returns the data of id when it is cached with the expected type
func cached[T any](c *cache.Cache, id query.ID) (T, bool) {
	return cache.As[T](c.Read(id))
}

// settle converts an executor outcome into a typed change
func settle[T any](out *executor.Outcome, err error) (Change[T], error) {
	var change Change[T]
	if out != nil {
		change.MutationID = out.ID
		change.State = out.State
		for _, id := range out.Refetched {
			change.Refetched = append(change.Refetched, id.String())
		}
		if v, ok := out.Result.(T); ok {
			change.Value = v
		}
	}
	return change, err
}

// patchAll applies fn to every cached query matched by the patterns
func patchAll(c *cache.Cache, fn cache.PatchFunc, patterns ...query.Pattern) []cache.Patch {
	ids := c.Matching(patterns...)
	patches := make([]cache.Patch, 0, len(ids))
	for _, id := range ids {
		patches = append(patches, cache.Patch{ID: id, Fn: fn})
	}
	return patches
}

// ErrInvalidDocument is returned when a downloaded invoice PDF has no pages
var ErrInvalidDocument = errors.New("invoice document is empty or unreadable")
