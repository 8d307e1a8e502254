package executor

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/billing-console/internal/application/dispatcher"
	"github.com/garyjia/billing-console/internal/cache"
	"github.com/garyjia/billing-console/internal/domain/entity"
	"github.com/garyjia/billing-console/internal/domain/event"
	"github.com/garyjia/billing-console/internal/domain/failure"
	"github.com/garyjia/billing-console/internal/domain/form"
	"github.com/garyjia/billing-console/internal/domain/mutation"
	"github.com/garyjia/billing-console/internal/domain/query"
	"github.com/garyjia/billing-console/internal/invalidation"
	"github.com/garyjia/billing-console/internal/report"
)

// fakeRemote is an in-memory stand-in for the remote service
type fakeRemote struct {
	mu       sync.Mutex
	clients  []entity.Client
	projects []entity.Project
	invoices []entity.Invoice
	nextID   int64
}

func (r *fakeRemote) listClients(context.Context) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Client(nil), r.clients...), nil
}

func (r *fakeRemote) clientProjects(clientID int64) cache.Fetcher {
	return func(context.Context) (any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		out := []entity.Project{}
		for _, p := range r.projects {
			if p.ClientID == clientID {
				out = append(out, p)
			}
		}
		return out, nil
	}
}

func (r *fakeRemote) listInvoices(context.Context) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Invoice(nil), r.invoices...), nil
}

type recorder struct {
	mu     sync.Mutex
	events []*event.Event
}

func (r *recorder) handle(_ context.Context, evt *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func newHarness(t *testing.T) (*Executor, *cache.Cache, *recorder) {
	t.Helper()
	c := cache.New()
	d := dispatcher.NewDispatcher()
	rec := &recorder{}
	d.Subscribe("recorder", rec.handle, append(event.MutationSettledTypes, event.TypeMutationOptimistic)...)
	t.Cleanup(func() { _ = d.Close() })
	return New(c, invalidation.Default(), WithDispatcher(d)), c, rec
}

func TestExecute_DeleteClientRejectedRollsBack(t *testing.T) {
	ex, c, rec := newHarness(t)
	ctx := context.Background()
	remote := &fakeRemote{clients: []entity.Client{
		{ID: 1, LegalName: "Acme S.A.", Status: entity.ClientStatusActive},
		{ID: 2, LegalName: "Globex", Status: entity.ClientStatusActive},
	}}
	_, err := c.Query(ctx, query.Clients(""), remote.listClients)
	require.NoError(t, err)
	before := c.Read(query.Clients(""))

	var seenDuringCall []entity.Client
	fields := failure.NewFieldErrors()
	fields.Add(failure.DetailField, "client has open invoices")

	out, err := ex.Execute(ctx, Mutation{
		Kind:     invalidation.DeleteClient,
		ClientID: 1,
		Optimistic: []cache.Patch{{
			ID: query.Clients(""),
			Fn: cache.RemoveWhere(func(cl entity.Client) bool { return cl.ID == 1 }),
		}},
		Call: func(context.Context) (any, error) {
			seenDuringCall, _ = cache.As[[]entity.Client](c.Read(query.Clients("")))
			return nil, failure.Rejection(http.StatusConflict, fields)
		},
	})

	require.Error(t, err)
	require.Len(t, seenDuringCall, 1, "optimistic removal visible before settlement")
	assert.Equal(t, int64(2), seenDuringCall[0].ID)

	assert.Equal(t, before, c.Read(query.Clients("")), "client reappears with identical state")

	var f *failure.Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, failure.KindRejection, f.Kind)
	assert.Equal(t, []string{"client has open invoices"}, f.Messages())
	assert.Equal(t, http.StatusConflict, f.StatusCode)

	assert.Equal(t, mutation.StateRolledBack, out.State)
	assert.Equal(t, []query.ID{query.Clients("")}, out.Patched)
	assert.Equal(t, []event.Type{event.TypeMutationOptimistic, event.TypeMutationRolledBack}, rec.types())
	assert.Equal(t, 0, c.Pending())
}

func TestExecute_NetworkFailureSurfacesGenericMessage(t *testing.T) {
	ex, c, _ := newHarness(t)
	c.Write(query.Clients(""), []entity.Client{{ID: 1, Status: entity.ClientStatusActive}})
	before := c.Read(query.Clients(""))

	_, err := ex.Execute(context.Background(), Mutation{
		Kind:     invalidation.DeactivateClient,
		ClientID: 1,
		Optimistic: []cache.Patch{{
			ID: query.Clients(""),
			Fn: cache.ReplaceWhere(
				func(cl entity.Client) bool { return cl.ID == 1 },
				func(cl entity.Client) entity.Client { return cl.WithStatus(entity.ClientStatusInactive) },
			),
		}},
		Call: func(context.Context) (any, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	})

	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.KindNetwork))
	assert.Equal(t, []string{failure.GenericNetworkMessage}, err.(*failure.Failure).Messages())
	assert.Equal(t, before, c.Read(query.Clients("")))
}

func TestExecute_ValidationFailureIsNoOp(t *testing.T) {
	ex, c, rec := newHarness(t)
	c.Write(query.Clients(""), []entity.Client{{ID: 1}})
	before := c.Read(query.Clients(""))
	called := false

	f := form.ClientForm{LegalName: "  ", Email: "not-an-email"}
	out, err := ex.Execute(context.Background(), Mutation{
		Kind:     invalidation.CreateClient,
		Validate: f.Validate,
		Optimistic: []cache.Patch{{
			ID: query.Clients(""),
			Fn: cache.RemoveWhere(func(entity.Client) bool { return true }),
		}},
		Call: func(context.Context) (any, error) {
			called = true
			return nil, nil
		},
	})

	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.KindValidation))
	assert.False(t, called, "no network call")
	assert.Equal(t, mutation.StateIdle, out.State)
	assert.Empty(t, out.History)
	assert.Equal(t, before, c.Read(query.Clients("")))
	assert.Equal(t, []event.Type{event.TypeMutationValidationFailed}, rec.types())
}

func TestExecute_CreateAcme(t *testing.T) {
	ex, c, rec := newHarness(t)
	ctx := context.Background()
	remote := &fakeRemote{nextID: 41}

	c.Observe(query.Clients(""), remote.listClients)
	_, err := c.Query(ctx, query.Clients(""), nil)
	require.NoError(t, err)

	f := form.ClientForm{LegalName: "Acme S.A."}
	out, err := ex.Execute(ctx, Mutation{
		Kind:     invalidation.CreateClient,
		Validate: f.Validate,
		Call: func(context.Context) (any, error) {
			remote.mu.Lock()
			defer remote.mu.Unlock()
			remote.nextID++
			cl := entity.Client{ID: remote.nextID, LegalName: f.LegalName, Status: entity.ClientStatusActive}
			remote.clients = append(remote.clients, cl)
			return cl, nil
		},
	})
	require.NoError(t, err)

	created := out.Result.(entity.Client)
	assert.Equal(t, int64(42), created.ID)
	assert.Equal(t, mutation.StateCommitted, out.State)
	assert.Equal(t, []query.ID{query.Clients("")}, out.Refetched)

	clients, ok := cache.As[[]entity.Client](c.Read(query.Clients("")))
	require.True(t, ok)
	require.Len(t, clients, 1, "observed client list was refetched")
	assert.Equal(t, "Acme S.A.", clients[0].LegalName)

	r, err := c.Query(ctx, query.ClientProjects(created.ID), remote.clientProjects(created.ID))
	require.NoError(t, err)
	projects, ok := cache.As[[]entity.Project](r)
	require.True(t, ok)
	assert.NotNil(t, projects)
	assert.Empty(t, projects)

	assert.Equal(t, []event.Type{event.TypeMutationCommitted}, rec.types())
}

func TestExecute_PaymentInvalidatesReports(t *testing.T) {
	ex, c, _ := newHarness(t)
	ctx := context.Background()

	today := entity.MustDate("2024-06-30")
	yesterday := entity.MustDate("2024-06-29")
	remote := &fakeRemote{
		clients: []entity.Client{{ID: 1, LegalName: "Acme S.A."}},
		invoices: []entity.Invoice{{
			ID: 10, ClientID: 1, Number: "A-0001", Status: entity.InvoiceStatusOpen,
			Total: 100, IssueDate: entity.MustDate("2024-06-01"), DueDate: yesterday,
		}},
	}

	agingID := query.Report(query.KindReportAging)
	onTimeID := query.Report(query.KindReportOnTimeSummary)
	c.Observe(agingID, func(ctx context.Context) (any, error) {
		invoices, _ := remote.listInvoices(ctx)
		return report.Aging(invoices.([]entity.Invoice), today), nil
	})
	c.Observe(onTimeID, func(ctx context.Context) (any, error) {
		invoices, _ := remote.listInvoices(ctx)
		return report.OnTime(invoices.([]entity.Invoice), remote.clients), nil
	})
	c.Observe(query.Invoices(""), remote.listInvoices)
	require.NoError(t, c.Refetch(ctx, []query.ID{agingID, onTimeID, query.Invoices("")}))

	aging, _ := cache.As[report.AgingReport](c.Read(agingID))
	bucket, _ := aging.Bucket(report.Bucket0To30)
	require.Equal(t, []int64{10}, bucket.InvoiceIDs)
	onTime, _ := cache.As[report.OnTimeSummary](c.Read(onTimeID))
	_, hasRow := onTime.Row(1)
	require.False(t, hasRow)

	p := form.PaymentForm{InvoiceID: 10, Amount: 100, Date: yesterday, Method: "transfer"}
	_, err := ex.Execute(ctx, Mutation{
		Kind:     invalidation.RegisterPayment,
		ClientID: 1,
		Validate: p.Validate,
		Call: func(context.Context) (any, error) {
			remote.mu.Lock()
			defer remote.mu.Unlock()
			inv := &remote.invoices[0]
			payment := p.Payment()
			payment.ID = 500
			inv.Payments = append(inv.Payments, payment)
			inv.Status = entity.InvoiceStatusPaid
			zero := 0.0
			inv.Outstanding = &zero
			return payment, nil
		},
	})
	require.NoError(t, err)

	aging, _ = cache.As[report.AgingReport](c.Read(agingID))
	bucket, _ = aging.Bucket(report.Bucket0To30)
	assert.Empty(t, bucket.InvoiceIDs, "paid invoice left the aging buckets")
	assert.Equal(t, cache.StatusFresh, c.Read(agingID).Status)

	onTime, _ = cache.As[report.OnTimeSummary](c.Read(onTimeID))
	row, ok := onTime.Row(1)
	require.True(t, ok)
	assert.Equal(t, 1, row.Paid)
	assert.Equal(t, 1, row.OnTime, "paid before the due date passed")

	invoices, _ := cache.As[[]entity.Invoice](c.Read(query.Invoices("")))
	assert.Equal(t, entity.InvoiceStatusPaid, invoices[0].Status)
}

func TestExecute_ChainedMutationsSettleIndependently(t *testing.T) {
	ex, c, _ := newHarness(t)
	ctx := context.Background()
	c.Write(query.Clients(""), []entity.Client{
		{ID: 1, Status: entity.ClientStatusActive},
		{ID: 2, Status: entity.ClientStatusActive},
	})

	release := make(chan struct{})
	inFlight := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, err := ex.Execute(ctx, Mutation{
			Kind:     invalidation.DeactivateClient,
			ClientID: 1,
			Optimistic: []cache.Patch{{
				ID: query.Clients(""),
				Fn: cache.ReplaceWhere(
					func(cl entity.Client) bool { return cl.ID == 1 },
					func(cl entity.Client) entity.Client { return cl.WithStatus(entity.ClientStatusInactive) },
				),
			}},
			Call: func(context.Context) (any, error) {
				close(inFlight)
				<-release
				return nil, nil
			},
		})
		done <- err
	}()
	<-inFlight

	_, err := ex.Execute(ctx, Mutation{
		Kind:     invalidation.DeleteClient,
		ClientID: 2,
		Optimistic: []cache.Patch{{
			ID: query.Clients(""),
			Fn: cache.RemoveWhere(func(cl entity.Client) bool { return cl.ID == 2 }),
		}},
		Call: func(context.Context) (any, error) {
			return nil, failure.Rejection(http.StatusConflict, nil)
		},
	})
	require.Error(t, err)

	clients, _ := cache.As[[]entity.Client](c.Read(query.Clients("")))
	require.Len(t, clients, 2, "rollback of the second mutation restored client 2")
	assert.Equal(t, entity.ClientStatusInactive, clients[0].Status, "first mutation's patch survived")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 0, c.Pending())
}

func TestExecute_CommittedHookRunsBeforeRefetch(t *testing.T) {
	ex, c, _ := newHarness(t)
	remote := &fakeRemote{projects: []entity.Project{{ID: 10, ClientID: 2}}}
	ctx := context.Background()

	projectsID := query.ClientProjects(2)
	c.Observe(projectsID, remote.clientProjects(2))
	_, err := c.Query(ctx, projectsID, remote.clientProjects(2))
	require.NoError(t, err)

	var hooked any
	out, err := ex.Execute(ctx, Mutation{
		Kind:     invalidation.DeleteClient,
		ClientID: 2,
		Call:     func(context.Context) (any, error) { return "gone", nil },
		Committed: func(result any) {
			hooked = result
			c.Release(query.Pattern{Kind: query.KindClientProjects, ClientID: 2})
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "gone", hooked)
	assert.NotContains(t, out.Refetched, projectsID)
}

func TestExecute_CommittedHookSkippedOnFailure(t *testing.T) {
	ex, _, _ := newHarness(t)
	called := false
	_, err := ex.Execute(context.Background(), Mutation{
		Kind:      invalidation.DeleteClient,
		ClientID:  2,
		Call:      func(context.Context) (any, error) { return nil, errors.New("connection refused") },
		Committed: func(any) { called = true },
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestExecute_RequiresCall(t *testing.T) {
	ex, _, _ := newHarness(t)
	_, err := ex.Execute(context.Background(), Mutation{Kind: invalidation.CreateClient})
	assert.Error(t, err)
}
