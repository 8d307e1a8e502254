// Package cache holds the console's copies of server-owned data keyed by
// query identity, with freshness state and layered optimistic patches.
//
// Every optimistic patch is recorded as a layer on top of the data it was
// applied to. The data a layer saw is its snapshot, so patches from
// concurrent mutations chain instead of overwriting each other. Rolling a
// layer back restores its snapshot and replays the layers above it.
package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/garyjia/billing-console/internal/domain/failure"
	"github.com/garyjia/billing-console/internal/domain/query"
)

// Status is the freshness of a cached query
type Status string

const (
	StatusPending Status = "pending"
	StatusFresh   Status = "fresh"
	StatusStale   Status = "stale"
	StatusError   Status = "error"
)

// DefaultRefetchLimit bounds concurrent refetches after an invalidation
const DefaultRefetchLimit = 4

// Fetcher loads the authoritative result of a query
type Fetcher func(ctx context.Context) (any, error)

// Result is what a reader sees for one query
type Result struct {
	Status    Status
	Data      any
	Err       error
	UpdatedAt time.Time
}

// As returns the cached data as T
func As[T any](r Result) (T, bool) {
	v, ok := r.Data.(T)
	return v, ok
}

// Metrics receives fetch outcomes
type Metrics interface {
	ObserveFetch(kind query.Kind, elapsed time.Duration, outcome string)
}

// Fetch outcomes reported to Metrics
const (
	OutcomeOK         = "ok"
	OutcomeError      = "error"
	OutcomeSuperseded = "superseded"
)

type layer struct {
	mutationID string
	snapshot   any
	patch      PatchFunc
	committed  bool
}

type entry struct {
	status    Status
	data      any
	err       error
	updatedAt time.Time
	gen       uint64
	layers    []*layer
	observers int
	fetcher   Fetcher
	// inflight is closed when the latest generation's fetch settles
	inflight chan struct{}
}

func (e *entry) result() Result {
	return Result{Status: e.status, Data: e.data, Err: e.err, UpdatedAt: e.updatedAt}
}

// Cache is safe for concurrent use. Snapshot capture and patch application
// happen under one lock, so no reader observes a half-applied mutation.
type Cache struct {
	mu        sync.Mutex
	entries   map[query.ID]*entry
	mutations map[string][]query.ID

	flight       singleflight.Group
	logger       *zap.Logger
	metrics      Metrics
	now          func() time.Time
	refetchLimit int
}

// Option configures a Cache
type Option func(*Cache)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithRefetchLimit bounds concurrent refetches
func WithRefetchLimit(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.refetchLimit = n
		}
	}
}

// WithMetrics reports fetch outcomes
func WithMetrics(m Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// New creates an empty cache
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:      make(map[query.ID]*entry),
		mutations:    make(map[string][]query.ID),
		logger:       zap.NewNop(),
		now:          time.Now,
		refetchLimit: DefaultRefetchLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Read returns the current state of a query. Unknown queries are pending.
func (c *Cache) Read(id query.ID) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return Result{Status: StatusPending}
	}
	return e.result()
}

// Write stores authoritative data for a query. Uncommitted optimistic layers
// are replayed on top of it.
func (c *Cache) Write(id query.ID, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.settle(c.entry(id), data)
}

// Patch applies a transformation that is not tied to a mutation
func (c *Cache) Patch(id query.ID, fn PatchFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return
	}
	e.data = fn(e.data)
}

// Apply records the optimistic patches of a mutation. For every patched query
// the data visible right before the patch becomes the layer's snapshot.
// Queries that are not cached are skipped. It returns the patched ids.
func (c *Cache) Apply(mutationID string, patches ...Patch) []query.ID {
	c.mu.Lock()
	defer c.mu.Unlock()

	var applied []query.ID
	for _, p := range patches {
		e, ok := c.entries[p.ID]
		if !ok {
			continue
		}
		l := &layer{mutationID: mutationID, snapshot: e.data, patch: p.Fn}
		e.layers = append(e.layers, l)
		e.data = p.Fn(e.data)
		applied = appendUnique(applied, p.ID)
	}
	if len(applied) > 0 {
		c.mutations[mutationID] = applied
	}
	return applied
}

// Rollback undoes the patches of a mutation. When the mutation's layers are
// the topmost ones, the data is restored to the exact snapshot; otherwise the
// layers above are replayed on the restored snapshot so their effect survives.
func (c *Cache) Rollback(mutationID string) []query.ID {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.mutations[mutationID]
	delete(c.mutations, mutationID)

	for _, id := range ids {
		e, ok := c.entries[id]
		if !ok {
			continue
		}
		first := -1
		for i, l := range e.layers {
			if l.mutationID == mutationID {
				first = i
				break
			}
		}
		if first < 0 {
			continue
		}

		data := e.layers[first].snapshot
		kept := e.layers[:first:first]
		for _, l := range e.layers[first:] {
			if l.mutationID == mutationID {
				continue
			}
			l.snapshot = data
			data = l.patch(data)
			kept = append(kept, l)
		}
		e.layers = kept
		e.data = data
		c.trim(e)
	}

	c.logger.Debug("mutation rolled back in cache",
		zap.String("mutation_id", mutationID),
		zap.Int("queries", len(ids)))
	return ids
}

// Commit marks the patches of a mutation as confirmed by the server.
// Confirmed layers at the bottom of a query's stack are released since nothing
// beneath them can roll back any more.
func (c *Cache) Commit(mutationID string) []query.ID {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.mutations[mutationID]
	delete(c.mutations, mutationID)

	for _, id := range ids {
		e, ok := c.entries[id]
		if !ok {
			continue
		}
		for _, l := range e.layers {
			if l.mutationID == mutationID {
				l.committed = true
			}
		}
		c.trim(e)
	}
	return ids
}

// Fetch loads a query and stores the result unless a newer fetch for the same
// query was issued meanwhile, in which case ErrSuperseded is returned and the
// result discarded. A failed fetch marks the query as errored and keeps the
// previous data visible.
func (c *Cache) Fetch(ctx context.Context, id query.ID, fetch Fetcher) (Result, error) {
	c.mu.Lock()
	e := c.entry(id)
	if fetch == nil {
		fetch = e.fetcher
	}
	if fetch == nil {
		c.mu.Unlock()
		return Result{Status: StatusPending}, ErrNoFetcher
	}
	e.gen++
	gen := e.gen
	if e.inflight == nil {
		e.inflight = make(chan struct{})
	}
	c.mu.Unlock()

	start := c.now()
	data, err := fetch(ctx)
	elapsed := c.now().Sub(start)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e.gen != gen {
		c.observe(id, elapsed, OutcomeSuperseded)
		c.logger.Debug("discarding superseded fetch",
			zap.String("query", id.String()),
			zap.Uint64("generation", gen),
			zap.Uint64("latest", e.gen))
		return e.result(), ErrSuperseded
	}
	if e.inflight != nil {
		close(e.inflight)
		e.inflight = nil
	}

	if err != nil {
		c.observe(id, elapsed, OutcomeError)
		e.status = StatusError
		e.err = err
		c.logger.Warn("query fetch failed",
			zap.String("query", id.String()),
			zap.Error(err))
		return e.result(), failure.Read(err)
	}

	c.observe(id, elapsed, OutcomeOK)
	c.settle(e, data)
	return e.result(), nil
}

// Query is a read-through: fresh data is returned as is, anything else is
// fetched. Concurrent callers for the same query share one fetch.
func (c *Cache) Query(ctx context.Context, id query.ID, fetch Fetcher) (Result, error) {
	if r := c.Read(id); r.Status == StatusFresh {
		return r, nil
	}

	v, err, _ := c.flight.Do(id.String(), func() (any, error) {
		return c.Fetch(ctx, id, fetch)
	})
	if errors.Is(err, ErrSuperseded) {
		return c.await(ctx, id)
	}
	return v.(Result), err
}

// await waits for the latest fetch of id to settle and returns its result
func (c *Cache) await(ctx context.Context, id query.ID) (Result, error) {
	c.mu.Lock()
	wait := c.entry(id).inflight
	c.mu.Unlock()

	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return c.Read(id), ctx.Err()
		}
	}

	r := c.Read(id)
	if r.Status == StatusError {
		return r, failure.Read(r.Err)
	}
	return r, nil
}

// Observe registers a mounted query. Only observed queries are refetched after
// an invalidation. The returned func unregisters it.
func (c *Cache) Observe(id query.ID, fetch Fetcher) (unobserve func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(id)
	e.observers++
	if fetch != nil {
		e.fetcher = fetch
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if e.observers > 0 {
				e.observers--
			}
		})
	}
}

// Release drops every observer of the queries matched by the patterns, so
// invalidation stops refetching them. It returns how many were observed.
func (c *Cache) Release(patterns ...query.Pattern) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for id, e := range c.entries {
		if e.observers == 0 || !matchesAny(patterns, id) {
			continue
		}
		e.observers = 0
		n++
	}
	return n
}

// MarkStale flags every cached query matched by one of the patterns.
// Marking a stale query again changes nothing. It returns the matched queries
// that are observed, sorted for deterministic refetch order.
func (c *Cache) MarkStale(patterns ...query.Pattern) []query.ID {
	c.mu.Lock()
	defer c.mu.Unlock()

	var observed []query.ID
	for id, e := range c.entries {
		if !matchesAny(patterns, id) {
			continue
		}
		if e.status == StatusFresh {
			e.status = StatusStale
		}
		if e.observers > 0 {
			observed = append(observed, id)
		}
	}
	sortIDs(observed)
	return observed
}

// Refetch reloads the given queries with their registered fetchers, at most
// the configured number at a time. Every query is attempted; the first read
// failure is returned.
func (c *Cache) Refetch(ctx context.Context, ids []query.ID) error {
	var g errgroup.Group
	g.SetLimit(c.refetchLimit)

	for _, id := range ids {
		g.Go(func() error {
			_, err := c.Fetch(ctx, id, nil)
			if errors.Is(err, ErrSuperseded) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// Matching returns every cached query selected by one of the patterns
func (c *Cache) Matching(patterns ...query.Pattern) []query.ID {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []query.ID
	for id := range c.entries {
		if matchesAny(patterns, id) {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids
}

// Outdated returns the observed queries that are stale or errored
func (c *Cache) Outdated() []query.ID {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []query.ID
	for id, e := range c.entries {
		if e.observers > 0 && e.fetcher != nil && (e.status == StatusStale || e.status == StatusError) {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids
}

// Stats counts cached queries per status
func (c *Cache) Stats() map[Status]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := make(map[Status]int, 4)
	for _, e := range c.entries {
		stats[e.status]++
	}
	return stats
}

// Pending reports how many mutations still hold uncommitted patches
func (c *Cache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.mutations)
}

// Reset drops every entry
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if e.inflight != nil {
			close(e.inflight)
			e.inflight = nil
		}
	}
	c.entries = make(map[query.ID]*entry)
	c.mutations = make(map[string][]query.ID)
}

func (c *Cache) entry(id query.ID) *entry {
	e, ok := c.entries[id]
	if !ok {
		e = &entry{status: StatusPending}
		c.entries[id] = e
	}
	return e
}

// settle stores authoritative data and replays the uncommitted layers on it.
// Committed layers are dropped since the server data already contains them.
func (c *Cache) settle(e *entry, data any) {
	kept := e.layers[:0]
	for _, l := range e.layers {
		if l.committed {
			continue
		}
		l.snapshot = data
		data = l.patch(data)
		kept = append(kept, l)
	}
	e.layers = kept
	e.data = data
	e.status = StatusFresh
	e.err = nil
	e.updatedAt = c.now()
}

func (c *Cache) trim(e *entry) {
	n := 0
	for n < len(e.layers) && e.layers[n].committed {
		n++
	}
	if n > 0 {
		e.layers = append([]*layer(nil), e.layers[n:]...)
	}
}

func (c *Cache) observe(id query.ID, elapsed time.Duration, outcome string) {
	if c.metrics != nil {
		c.metrics.ObserveFetch(id.Kind, elapsed, outcome)
	}
}

func matchesAny(patterns []query.Pattern, id query.ID) bool {
	for _, p := range patterns {
		if p.Matches(id) {
			return true
		}
	}
	return false
}

func appendUnique(ids []query.ID, id query.ID) []query.ID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func sortIDs(ids []query.ID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}
