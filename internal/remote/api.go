package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/garyjia/billing-console/internal/application/port"
	"github.com/garyjia/billing-console/internal/domain/entity"
	"github.com/garyjia/billing-console/internal/domain/form"
	"github.com/garyjia/billing-console/internal/report"
)

func searchQuery(search string) url.Values {
	q := url.Values{}
	if s := strings.TrimSpace(search); s != "" {
		q.Set("search", s)
	}
	return q
}

// ListClients lists clients matching search
func (c *Client) ListClients(ctx context.Context, search string) ([]entity.Client, error) {
	return list[entity.Client](ctx, c, request{method: http.MethodGet, path: "clients/", query: searchQuery(search)})
}

// GetClient returns one client
func (c *Client) GetClient(ctx context.Context, id int64) (entity.Client, error) {
	var out entity.Client
	err := c.do(ctx, request{method: http.MethodGet, path: fmt.Sprintf("clients/%d/", id)}, &out)
	return out, err
}

// CreateClient creates a client
func (c *Client) CreateClient(ctx context.Context, f form.ClientForm) (entity.Client, error) {
	var out entity.Client
	err := c.do(ctx, request{method: http.MethodPost, path: "clients/", body: f}, &out)
	return out, err
}

// UpdateClient replaces the editable fields of a client
func (c *Client) UpdateClient(ctx context.Context, id int64, f form.ClientForm) (entity.Client, error) {
	var out entity.Client
	err := c.do(ctx, request{method: http.MethodPut, path: fmt.Sprintf("clients/%d/", id), body: f}, &out)
	return out, err
}

// DeleteClient deletes a client. The service refuses when the client still
// has open invoices.
func (c *Client) DeleteClient(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: fmt.Sprintf("clients/%d/", id)}, nil)
}

// ActivateClient sets a client ACTIVE
func (c *Client) ActivateClient(ctx context.Context, id int64) (entity.Client, error) {
	var out entity.Client
	err := c.do(ctx, request{method: http.MethodPost, path: fmt.Sprintf("clients/%d/activate/", id)}, &out)
	return out, err
}

// DeactivateClient sets a client INACTIVE
func (c *Client) DeactivateClient(ctx context.Context, id int64) (entity.Client, error) {
	var out entity.Client
	err := c.do(ctx, request{method: http.MethodPost, path: fmt.Sprintf("clients/%d/deactivate/", id)}, &out)
	return out, err
}

// ClientProjects lists the projects of a client
func (c *Client) ClientProjects(ctx context.Context, clientID int64) ([]entity.Project, error) {
	return list[entity.Project](ctx, c, request{method: http.MethodGet, path: fmt.Sprintf("clients/%d/projects/", clientID)})
}

// ClientInvoices lists the invoices of a client
func (c *Client) ClientInvoices(ctx context.Context, clientID int64) ([]entity.Invoice, error) {
	q := url.Values{}
	q.Set("client", strconv.FormatInt(clientID, 10))
	return list[entity.Invoice](ctx, c, request{method: http.MethodGet, path: "invoices/", query: q})
}

// ClientHistory lists the audit trail of a client, newest first
func (c *Client) ClientHistory(ctx context.Context, clientID int64) ([]entity.HistoryEntry, error) {
	return list[entity.HistoryEntry](ctx, c, request{method: http.MethodGet, path: fmt.Sprintf("clients/%d/history/", clientID)})
}

// HistoryFeed lists history entries of every client, filtered by a comma
// separated list of types and limited by count
func (c *Client) HistoryFeed(ctx context.Context, types string, limit int) ([]entity.HistoryEntry, error) {
	q := url.Values{}
	if types != "" {
		q.Set("types", types)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return list[entity.HistoryEntry](ctx, c, request{method: http.MethodGet, path: "clients/history/", query: q})
}

// ListProjects lists projects matching search, optionally for one client
func (c *Client) ListProjects(ctx context.Context, search string, clientID int64) ([]entity.Project, error) {
	q := searchQuery(search)
	if clientID != 0 {
		q.Set("client", strconv.FormatInt(clientID, 10))
	}
	return list[entity.Project](ctx, c, request{method: http.MethodGet, path: "projects/", query: q})
}

// CreateProject creates a project
func (c *Client) CreateProject(ctx context.Context, f form.ProjectForm) (entity.Project, error) {
	var out entity.Project
	err := c.do(ctx, request{method: http.MethodPost, path: "projects/", body: f}, &out)
	return out, err
}

// UpdateProject fully updates a project
func (c *Client) UpdateProject(ctx context.Context, id int64, f form.ProjectForm) (entity.Project, error) {
	var out entity.Project
	err := c.do(ctx, request{method: http.MethodPut, path: fmt.Sprintf("projects/%d/", id), body: f}, &out)
	return out, err
}

// SetProjectStatus partially updates the status of a project
func (c *Client) SetProjectStatus(ctx context.Context, id int64, status entity.ProjectStatus) (entity.Project, error) {
	var out entity.Project
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   fmt.Sprintf("projects/%d/", id),
		body:   form.StatusForm{Status: status},
	}, &out)
	return out, err
}

// DeleteProject deletes a project
func (c *Client) DeleteProject(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: fmt.Sprintf("projects/%d/", id)}, nil)
}

// ListInvoices lists invoices matching search
func (c *Client) ListInvoices(ctx context.Context, search string) ([]entity.Invoice, error) {
	return list[entity.Invoice](ctx, c, request{method: http.MethodGet, path: "invoices/", query: searchQuery(search)})
}

// CreateInvoice creates an invoice. The service computes the total and, when
// requested, emails the invoice to the client.
func (c *Client) CreateInvoice(ctx context.Context, f form.InvoiceForm) (entity.Invoice, error) {
	q := url.Values{}
	if f.SendEmail {
		q.Set("send_email", "1")
	}
	var out entity.Invoice
	err := c.do(ctx, request{method: http.MethodPost, path: "invoices/", query: q, body: f}, &out)
	return out, err
}

// InvoicePDF downloads the rendered invoice
func (c *Client) InvoicePDF(ctx context.Context, id int64) ([]byte, error) {
	return c.send(ctx, request{method: http.MethodGet, path: fmt.Sprintf("invoices/%d/pdf/", id)}, "application/pdf")
}

// SendInvoice asks the service to email an invoice
func (c *Client) SendInvoice(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodPost, path: fmt.Sprintf("invoices/%d/send/", id)}, nil)
}

// CreatePayment registers a payment
func (c *Client) CreatePayment(ctx context.Context, f form.PaymentForm) (entity.Payment, error) {
	var out entity.Payment
	err := c.do(ctx, request{method: http.MethodPost, path: "payments/", body: f}, &out)
	return out, err
}

// MonthlyRevenue returns the server computed revenue series
func (c *Client) MonthlyRevenue(ctx context.Context) ([]report.MonthlyRevenue, error) {
	return list[report.MonthlyRevenue](ctx, c, request{method: http.MethodGet, path: "reports/monthly-revenue/"})
}

// TopClients returns the clients with the largest payment sums
func (c *Client) TopClients(ctx context.Context) ([]report.ClientRevenue, error) {
	return list[report.ClientRevenue](ctx, c, request{method: http.MethodGet, path: "reports/top-clients/"})
}

// Portfolio returns the per-status breakdown
func (c *Client) Portfolio(ctx context.Context) ([]report.PortfolioSlice, error) {
	return list[report.PortfolioSlice](ctx, c, request{method: http.MethodGet, path: "reports/portfolio/"})
}

// Aging returns the server computed aging buckets
func (c *Client) Aging(ctx context.Context) (report.AgingReport, error) {
	var out report.AgingReport
	err := c.do(ctx, request{method: http.MethodGet, path: "reports/aging/"}, &out)
	return out, err
}

// OnTimeSummary returns per-client punctuality
func (c *Client) OnTimeSummary(ctx context.Context) (report.OnTimeSummary, error) {
	var out report.OnTimeSummary
	err := c.do(ctx, request{method: http.MethodGet, path: "reports/on-time/summary/"}, &out)
	return out, err
}

// OnTimeTop returns the n most punctual clients
func (c *Client) OnTimeTop(ctx context.Context, n int) ([]report.OnTimeRow, error) {
	q := url.Values{}
	if n > 0 {
		q.Set("n", strconv.Itoa(n))
	}
	return list[report.OnTimeRow](ctx, c, request{method: http.MethodGet, path: "reports/on-time/top/", query: q})
}

// Verify interface compliance
var _ port.RemoteService = (*Client)(nil)
