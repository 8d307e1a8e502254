package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/garyjia/billing-console/internal/application/port"
	"github.com/garyjia/billing-console/internal/cache"
	"github.com/garyjia/billing-console/internal/domain/entity"
	"github.com/garyjia/billing-console/internal/domain/failure"
	"github.com/garyjia/billing-console/internal/domain/query"
)

// Feed limits
const (
	DefaultFeedLimit = 50
	MaxFeedLimit     = 500
)

// HistoryService reads the append-only client audit trail
type HistoryService interface {
	Client(ctx context.Context, clientID int64) (View[[]entity.HistoryEntry], error)
	Feed(ctx context.Context, types []entity.HistoryType, limit int) (View[[]entity.HistoryEntry], error)
}

type historyServiceImpl struct {
	remote port.ClientAPI
	reader *reader
}

// NewHistoryService creates a new HistoryService
func NewHistoryService(remote port.ClientAPI, c *cache.Cache) HistoryService {
	return &historyServiceImpl{remote: remote, reader: newReader(c)}
}

// Client returns the history of one client, newest first
func (s *historyServiceImpl) Client(ctx context.Context, clientID int64) (View[[]entity.HistoryEntry], error) {
	return load(ctx, s.reader, query.ClientHistory(clientID), func(ctx context.Context) ([]entity.HistoryEntry, error) {
		return s.remote.ClientHistory(ctx, clientID)
	})
}

// Feed returns the history of every client filtered by type. The same set of
// types in any order reads the same cached feed.
func (s *historyServiceImpl) Feed(ctx context.Context, types []entity.HistoryType, limit int) (View[[]entity.HistoryEntry], error) {
	filter, f := feedTypes(types)
	if f != nil {
		return View[[]entity.HistoryEntry]{}, f
	}
	switch {
	case limit <= 0:
		limit = DefaultFeedLimit
	case limit > MaxFeedLimit:
		limit = MaxFeedLimit
	}

	return load(ctx, s.reader, query.HistoryFeed(filter, limit), func(ctx context.Context) ([]entity.HistoryEntry, error) {
		return s.remote.HistoryFeed(ctx, filter, limit)
	})
}

func feedTypes(types []entity.HistoryType) (string, *failure.Failure) {
	seen := make(map[entity.HistoryType]bool, len(types))
	names := make([]string, 0, len(types))
	for _, t := range types {
		t = entity.HistoryType(strings.ToUpper(strings.TrimSpace(string(t))))
		if t == "" || seen[t] {
			continue
		}
		if !t.IsValid() {
			fields := failure.NewFieldErrors()
			fields.Add("types", fmt.Sprintf("unknown history type %q", t))
			return "", failure.Validation(fields)
		}
		seen[t] = true
		names = append(names, string(t))
	}
	sort.Strings(names)
	return strings.Join(names, ","), nil
}
