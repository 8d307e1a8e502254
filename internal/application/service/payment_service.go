package service

import (
	"context"
	"sort"

	"github.com/garyjia/billing-console/internal/application/port"
	"github.com/garyjia/billing-console/internal/cache"
	"github.com/garyjia/billing-console/internal/domain/entity"
	"github.com/garyjia/billing-console/internal/domain/form"
	"github.com/garyjia/billing-console/internal/executor"
	"github.com/garyjia/billing-console/internal/invalidation"
)

// PaymentService registers and lists payments. Payments have no list
// endpoint of their own; they are read from the invoices they settle.
type PaymentService interface {
	Register(ctx context.Context, f form.PaymentForm) (Change[entity.Payment], error)
	List(ctx context.Context, clientID int64) ([]entity.Payment, error)
}

type paymentServiceImpl struct {
	remote   port.PaymentAPI
	clients  ClientService
	cache    *cache.Cache
	executor *executor.Executor
	logger   Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	remote port.PaymentAPI,
	clients ClientService,
	c *cache.Cache,
	ex *executor.Executor,
	logger Logger,
) PaymentService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &paymentServiceImpl{
		remote:   remote,
		clients:  clients,
		cache:    c,
		executor: ex,
		logger:   logger,
	}
}

// Register records a payment. The invoice status, the client's history and
// the aging and on-time reports are refetched once the server confirms.
func (s *paymentServiceImpl) Register(ctx context.Context, f form.PaymentForm) (Change[entity.Payment], error) {
	var clientID int64
	if inv, ok := findInvoice(s.cache, f.InvoiceID); ok {
		clientID = inv.ClientID
	}

	change, err := settle[entity.Payment](s.executor.Execute(ctx, executor.Mutation{
		Kind:     invalidation.RegisterPayment,
		ClientID: clientID,
		Validate: f.Validate,
		Call: func(ctx context.Context) (any, error) {
			return s.remote.CreatePayment(ctx, f)
		},
		Input: f,
	}))
	if err != nil {
		s.logger.Error("Failed to register payment", "error", err, "invoice_id", f.InvoiceID)
		return change, err
	}
	s.logger.Info("Payment registered",
		"id", change.Value.ID,
		"invoice_id", f.InvoiceID,
		"amount", change.Value.Amount)
	return change, nil
}

// List returns the payments of a client, newest first
func (s *paymentServiceImpl) List(ctx context.Context, clientID int64) ([]entity.Payment, error) {
	view, err := s.clients.Invoices(ctx, clientID)
	if err != nil {
		return nil, err
	}

	payments := []entity.Payment{}
	for _, inv := range view.Data {
		for _, p := range inv.Payments {
			if p.InvoiceID == 0 {
				p.InvoiceID = inv.ID
			}
			payments = append(payments, p)
		}
	}
	sort.SliceStable(payments, func(i, j int) bool {
		if payments[i].Date.Equal(payments[j].Date.Time) {
			return payments[i].ID > payments[j].ID
		}
		return payments[i].Date.After(payments[j].Date)
	})
	return payments, nil
}
