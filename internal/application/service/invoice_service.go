package service

import (
	"context"
	"fmt"

	"github.com/garyjia/billing-console/internal/application/port"
	"github.com/garyjia/billing-console/internal/cache"
	"github.com/garyjia/billing-console/internal/calc"
	"github.com/garyjia/billing-console/internal/domain/entity"
	"github.com/garyjia/billing-console/internal/domain/failure"
	"github.com/garyjia/billing-console/internal/domain/form"
	"github.com/garyjia/billing-console/internal/domain/query"
	"github.com/garyjia/billing-console/internal/executor"
	"github.com/garyjia/billing-console/internal/invalidation"
)

// LinePreview is one typed invoice line with its computed subtotal
type LinePreview struct {
	entity.LineItem
	Subtotal float64 `json:"subtotal"`
}

// InvoicePreview is the live total of an invoice being typed
type InvoicePreview struct {
	Lines []LinePreview `json:"lines"`
	Total float64       `json:"total"`
}

// Document is a downloaded invoice PDF
type Document struct {
	Content []byte
	Pages   int
}

// InvoiceService manages invoices
type InvoiceService interface {
	List(ctx context.Context, search string) (View[[]entity.Invoice], error)
	Create(ctx context.Context, f form.InvoiceForm) (Change[entity.Invoice], error)
	Preview(f form.InvoiceForm) InvoicePreview
	PDF(ctx context.Context, id int64) (*Document, error)
	Send(ctx context.Context, id int64) (Change[struct{}], error)
}

type invoiceServiceImpl struct {
	remote    port.InvoiceAPI
	cache     *cache.Cache
	reader    *reader
	executor  *executor.Executor
	inspector port.PDFInspector
	logger    Logger
}

// NewInvoiceService creates a new InvoiceService. The inspector is optional;
// without it documents are relayed unchecked.
func NewInvoiceService(
	remote port.InvoiceAPI,
	c *cache.Cache,
	ex *executor.Executor,
	inspector port.PDFInspector,
	logger Logger,
) InvoiceService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &invoiceServiceImpl{
		remote:    remote,
		cache:     c,
		reader:    newReader(c),
		executor:  ex,
		inspector: inspector,
		logger:    logger,
	}
}

// List returns the invoices matching search
func (s *invoiceServiceImpl) List(ctx context.Context, search string) (View[[]entity.Invoice], error) {
	return load(ctx, s.reader, query.Invoices(search), func(ctx context.Context) ([]entity.Invoice, error) {
		return s.remote.ListInvoices(ctx, search)
	})
}

// Create creates an invoice, optionally emailing it to the client
func (s *invoiceServiceImpl) Create(ctx context.Context, f form.InvoiceForm) (Change[entity.Invoice], error) {
	validate := func() *failure.Failure {
		if v := f.Validate(); v != nil {
			return v
		}
		return s.checkProject(f)
	}

	change, err := settle[entity.Invoice](s.executor.Execute(ctx, executor.Mutation{
		Kind:     invalidation.CreateInvoice,
		ClientID: f.ClientID,
		Validate: validate,
		Call: func(ctx context.Context) (any, error) {
			return s.remote.CreateInvoice(ctx, f)
		},
		Input: f,
	}))
	if err != nil {
		s.logger.Error("Failed to create invoice", "error", err, "client_id", f.ClientID, "number", f.Number)
		return change, err
	}
	s.logger.Info("Invoice created",
		"id", change.Value.ID,
		"client_id", f.ClientID,
		"total", change.Value.Total,
		"send_email", f.SendEmail)
	return change, nil
}

// checkProject rejects a project that does not belong to the invoiced client,
// as far as a fresh cached project list can tell. The remote service stays
// the final arbiter.
func (s *invoiceServiceImpl) checkProject(f form.InvoiceForm) *failure.Failure {
	if f.ProjectID == nil {
		return nil
	}
	res := s.cache.Read(query.ClientProjects(f.ClientID))
	if res.Status != cache.StatusFresh {
		return nil
	}
	projects, ok := cache.As[[]entity.Project](res)
	if !ok {
		return nil
	}
	for _, p := range projects {
		if p.ID == *f.ProjectID {
			return nil
		}
	}
	fields := failure.NewFieldErrors()
	fields.Add("project_id", "the project does not belong to the selected client")
	return failure.Validation(fields)
}

// Preview computes line subtotals and the total as the operator types
func (s *invoiceServiceImpl) Preview(f form.InvoiceForm) InvoicePreview {
	items := f.LineItems()
	preview := InvoicePreview{Lines: make([]LinePreview, 0, len(items))}
	for _, it := range items {
		preview.Lines = append(preview.Lines, LinePreview{LineItem: it, Subtotal: calc.LineSubtotal(it)})
	}
	preview.Total = calc.InvoiceTotal(items)
	return preview
}

// PDF downloads the rendered invoice and checks it has pages
func (s *invoiceServiceImpl) PDF(ctx context.Context, id int64) (*Document, error) {
	content, err := s.remote.InvoicePDF(ctx, id)
	if err != nil {
		s.logger.Error("Failed to download invoice PDF", "error", err, "id", id)
		return nil, failure.Classify(err)
	}

	doc := &Document{Content: content}
	if s.inspector == nil {
		return doc, nil
	}

	pages, err := s.inspector.PageCount(content)
	if err != nil {
		s.logger.Error("Invoice PDF is unreadable", "error", err, "id", id, "size", len(content))
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if pages == 0 {
		return nil, ErrInvalidDocument
	}
	doc.Pages = pages
	return doc, nil
}

// Send asks the remote service to email an invoice. Nothing cached changes.
func (s *invoiceServiceImpl) Send(ctx context.Context, id int64) (Change[struct{}], error) {
	change, err := settle[struct{}](s.executor.Execute(ctx, executor.Mutation{
		Kind:     invalidation.SendInvoiceEmail,
		ClientID: s.ownerOf(id),
		Call: func(ctx context.Context) (any, error) {
			return struct{}{}, s.remote.SendInvoice(ctx, id)
		},
	}))
	if err != nil {
		s.logger.Error("Failed to send invoice", "error", err, "id", id)
		return change, err
	}
	s.logger.Info("Invoice sent", "id", id)
	return change, nil
}

func (s *invoiceServiceImpl) ownerOf(invoiceID int64) int64 {
	inv, _ := findInvoice(s.cache, invoiceID)
	return inv.ClientID
}

var invoiceLists = []query.Pattern{
	{Kind: query.KindInvoices},
	{Kind: query.KindClientInvoices},
}

// findInvoice looks an invoice up in the cached invoice lists
func findInvoice(c *cache.Cache, id int64) (entity.Invoice, bool) {
	for _, qid := range c.Matching(invoiceLists...) {
		invoices, ok := cached[[]entity.Invoice](c, qid)
		if !ok {
			continue
		}
		for _, inv := range invoices {
			if inv.ID == id {
				return inv, true
			}
		}
	}
	return entity.Invoice{}, false
}
