package service

import (
	"context"
	"sort"

	"github.com/garyjia/billing-console/internal/application/port"
	"github.com/garyjia/billing-console/internal/cache"
	"github.com/garyjia/billing-console/internal/domain/entity"
	"github.com/garyjia/billing-console/internal/domain/form"
	"github.com/garyjia/billing-console/internal/domain/query"
	"github.com/garyjia/billing-console/internal/executor"
	"github.com/garyjia/billing-console/internal/invalidation"
)

// ClientService manages clients and the reads scoped to one client
type ClientService interface {
	List(ctx context.Context, search string) (View[[]entity.Client], error)
	Get(ctx context.Context, id int64) (View[entity.Client], error)
	Projects(ctx context.Context, clientID int64) (View[[]entity.Project], error)
	Invoices(ctx context.Context, clientID int64) (View[[]entity.Invoice], error)
	PayableInvoices(ctx context.Context, clientID int64) ([]entity.Invoice, error)
	History(ctx context.Context, clientID int64) (View[[]entity.HistoryEntry], error)

	Create(ctx context.Context, f form.ClientForm) (Change[entity.Client], error)
	Update(ctx context.Context, id int64, f form.ClientForm) (Change[entity.Client], error)
	Delete(ctx context.Context, id int64) (Change[struct{}], error)
	Activate(ctx context.Context, id int64) (Change[entity.Client], error)
	Deactivate(ctx context.Context, id int64) (Change[entity.Client], error)
}

type clientServiceImpl struct {
	remote   port.ClientAPI
	cache    *cache.Cache
	reader   *reader
	executor *executor.Executor
	logger   Logger
}

// NewClientService creates a new ClientService
func NewClientService(
	remote port.ClientAPI,
	c *cache.Cache,
	ex *executor.Executor,
	logger Logger,
) ClientService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &clientServiceImpl{
		remote:   remote,
		cache:    c,
		reader:   newReader(c),
		executor: ex,
		logger:   logger,
	}
}

// List returns the clients matching search
func (s *clientServiceImpl) List(ctx context.Context, search string) (View[[]entity.Client], error) {
	return load(ctx, s.reader, query.Clients(search), func(ctx context.Context) ([]entity.Client, error) {
		return s.remote.ListClients(ctx, search)
	})
}

// Get returns one client
func (s *clientServiceImpl) Get(ctx context.Context, id int64) (View[entity.Client], error) {
	return load(ctx, s.reader, query.Client(id), func(ctx context.Context) (entity.Client, error) {
		return s.remote.GetClient(ctx, id)
	})
}

// Projects returns the projects of a client
func (s *clientServiceImpl) Projects(ctx context.Context, clientID int64) (View[[]entity.Project], error) {
	return load(ctx, s.reader, query.ClientProjects(clientID), func(ctx context.Context) ([]entity.Project, error) {
		return s.remote.ClientProjects(ctx, clientID)
	})
}

// Invoices returns the invoices of a client
func (s *clientServiceImpl) Invoices(ctx context.Context, clientID int64) (View[[]entity.Invoice], error) {
	return load(ctx, s.reader, query.ClientInvoices(clientID), func(ctx context.Context) ([]entity.Invoice, error) {
		return s.remote.ClientInvoices(ctx, clientID)
	})
}

// PayableInvoices returns the open and partially paid invoices of a client,
// oldest due date first. They are the ones a payment can be registered on.
func (s *clientServiceImpl) PayableInvoices(ctx context.Context, clientID int64) ([]entity.Invoice, error) {
	view, err := s.Invoices(ctx, clientID)
	if err != nil {
		return nil, err
	}

	payable := []entity.Invoice{}
	for _, inv := range view.Data {
		if inv.Status.IsOpen() {
			payable = append(payable, inv)
		}
	}
	sort.SliceStable(payable, func(i, j int) bool {
		return payable[i].DueDate.Before(payable[j].DueDate)
	})
	return payable, nil
}

// History returns the audit trail of a client
func (s *clientServiceImpl) History(ctx context.Context, clientID int64) (View[[]entity.HistoryEntry], error) {
	return load(ctx, s.reader, query.ClientHistory(clientID), func(ctx context.Context) ([]entity.HistoryEntry, error) {
		return s.remote.ClientHistory(ctx, clientID)
	})
}

// Create creates a client. The new client shows up once the client lists
// are refetched.
func (s *clientServiceImpl) Create(ctx context.Context, f form.ClientForm) (Change[entity.Client], error) {
	change, err := settle[entity.Client](s.executor.Execute(ctx, executor.Mutation{
		Kind:     invalidation.CreateClient,
		Validate: f.Validate,
		Call: func(ctx context.Context) (any, error) {
			return s.remote.CreateClient(ctx, f)
		},
		Input: f,
	}))
	if err != nil {
		s.logger.Error("Failed to create client", "error", err, "legal_name", f.LegalName)
		return change, err
	}
	s.logger.Info("Client created", "id", change.Value.ID, "mutation_id", change.MutationID)
	return change, nil
}

// Update replaces the editable fields of a client. Cached copies of the
// client show the new values until the remote service answers.
func (s *clientServiceImpl) Update(ctx context.Context, id int64, f form.ClientForm) (Change[entity.Client], error) {
	f.Normalize()
	edit := func(c entity.Client) entity.Client {
		c.LegalName = f.LegalName
		c.TaxID = f.TaxID
		c.Email = f.Email
		c.Phone = f.Phone
		return c
	}

	patches := patchAll(s.cache, cache.ReplaceWhere(byClientID(id), edit), query.Pattern{Kind: query.KindClients})
	patches = append(patches, cache.Patch{ID: query.Client(id), Fn: cache.Update(edit)})

	change, err := settle[entity.Client](s.executor.Execute(ctx, executor.Mutation{
		Kind:       invalidation.UpdateClient,
		ClientID:   id,
		Validate:   f.Validate,
		Optimistic: patches,
		Call: func(ctx context.Context) (any, error) {
			return s.remote.UpdateClient(ctx, id, f)
		},
		Input: f,
	}))
	if err != nil {
		s.logger.Error("Failed to update client", "error", err, "id", id)
		return change, err
	}
	return change, nil
}

// Delete removes a client from every cached list right away. The remote
// service refuses while the client has open invoices, and the client
// reappears unchanged.
func (s *clientServiceImpl) Delete(ctx context.Context, id int64) (Change[struct{}], error) {
	patches := patchAll(s.cache, cache.RemoveWhere(byClientID(id)), query.Pattern{Kind: query.KindClients})

	var released int
	change, err := settle[struct{}](s.executor.Execute(ctx, executor.Mutation{
		Kind:       invalidation.DeleteClient,
		ClientID:   id,
		Optimistic: patches,
		Call: func(ctx context.Context) (any, error) {
			return struct{}{}, s.remote.DeleteClient(ctx, id)
		},
		// a deleted client's views can only fail from now on
		Committed: func(any) {
			s.reader.release(func(q query.ID) bool { return q.Kind.ClientOwned() && q.Scope.ClientID == id })
			released = s.cache.Release(clientOwned(id)...)
		},
	}))
	if err != nil {
		s.logger.Error("Failed to delete client", "error", err, "id", id)
		return change, err
	}
	s.logger.Info("Client deleted", "id", id, "mutation_id", change.MutationID, "released_queries", released)
	return change, nil
}

// clientOwned selects every query that belongs to one client
func clientOwned(id int64) []query.Pattern {
	var patterns []query.Pattern
	for _, k := range query.AllKinds {
		if k.ClientOwned() {
			patterns = append(patterns, query.Pattern{Kind: k, ClientID: id})
		}
	}
	return patterns
}

// Activate sets a client ACTIVE
func (s *clientServiceImpl) Activate(ctx context.Context, id int64) (Change[entity.Client], error) {
	return s.setStatus(ctx, id, invalidation.ActivateClient, entity.ClientStatusActive, s.remote.ActivateClient)
}

// Deactivate sets a client INACTIVE
func (s *clientServiceImpl) Deactivate(ctx context.Context, id int64) (Change[entity.Client], error) {
	return s.setStatus(ctx, id, invalidation.DeactivateClient, entity.ClientStatusInactive, s.remote.DeactivateClient)
}

func (s *clientServiceImpl) setStatus(
	ctx context.Context,
	id int64,
	kind invalidation.MutationKind,
	status entity.ClientStatus,
	call func(context.Context, int64) (entity.Client, error),
) (Change[entity.Client], error) {
	flip := func(c entity.Client) entity.Client { return c.WithStatus(status) }

	patches := patchAll(s.cache, cache.ReplaceWhere(byClientID(id), flip), query.Pattern{Kind: query.KindClients})
	patches = append(patches, cache.Patch{ID: query.Client(id), Fn: cache.Update(flip)})

	change, err := settle[entity.Client](s.executor.Execute(ctx, executor.Mutation{
		Kind:       kind,
		ClientID:   id,
		Optimistic: patches,
		Call: func(ctx context.Context) (any, error) {
			return call(ctx, id)
		},
	}))
	if err != nil {
		s.logger.Error("Failed to change client status", "error", err, "id", id, "status", status)
		return change, err
	}
	return change, nil
}

func byClientID(id int64) func(entity.Client) bool {
	return func(c entity.Client) bool { return c.ID == id }
}
