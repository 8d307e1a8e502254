package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/billing-console/internal/application/port"
	"github.com/garyjia/billing-console/internal/cache"
	"github.com/garyjia/billing-console/internal/domain/entity"
	"github.com/garyjia/billing-console/internal/domain/failure"
	"github.com/garyjia/billing-console/internal/domain/form"
	"github.com/garyjia/billing-console/internal/executor"
	"github.com/garyjia/billing-console/internal/invalidation"
	"github.com/garyjia/billing-console/internal/report"
)

var errUnreachable = errors.New("dial tcp: connection refused")

// fakeRemote is an in-memory remote service
type fakeRemote struct {
	mu       sync.Mutex
	clients  []entity.Client
	projects []entity.Project
	invoices []entity.Invoice
	history  []entity.HistoryEntry
	pdf      []byte
	nextID   int64

	calls map[string]int
	fail  map[string]error
	// during runs inside a call before it answers
	during func(method string)
}

var _ port.RemoteService = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		nextID: 100,
		calls:  make(map[string]int),
		fail:   make(map[string]error),
	}
}

func (r *fakeRemote) enter(method string) error {
	r.mu.Lock()
	r.calls[method]++
	err := r.fail[method]
	during := r.during
	r.mu.Unlock()

	if during != nil {
		during(method)
	}
	return err
}

func (r *fakeRemote) count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

func (r *fakeRemote) failWith(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[method] = err
}

func (r *fakeRemote) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *fakeRemote) ListClients(ctx context.Context, search string) ([]entity.Client, error) {
	if err := r.enter("ListClients"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entity.Client{}
	for _, c := range r.clients {
		if search == "" || strings.Contains(strings.ToLower(c.LegalName), strings.ToLower(search)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeRemote) GetClient(ctx context.Context, id int64) (entity.Client, error) {
	if err := r.enter("GetClient"); err != nil {
		return entity.Client{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.ID == id {
			return c, nil
		}
	}
	return entity.Client{}, failure.Rejection(http.StatusNotFound, detail("not found"))
}

func (r *fakeRemote) CreateClient(ctx context.Context, f form.ClientForm) (entity.Client, error) {
	if err := r.enter("CreateClient"); err != nil {
		return entity.Client{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := entity.Client{
		ID:        r.id(),
		LegalName: f.LegalName,
		TaxID:     f.TaxID,
		Email:     f.Email,
		Phone:     f.Phone,
		Status:    entity.ClientStatusActive,
	}
	r.clients = append(r.clients, c)
	return c, nil
}

func (r *fakeRemote) UpdateClient(ctx context.Context, id int64, f form.ClientForm) (entity.Client, error) {
	if err := r.enter("UpdateClient"); err != nil {
		return entity.Client{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.clients {
		if c.ID == id {
			c.LegalName, c.TaxID, c.Email, c.Phone = f.LegalName, f.TaxID, f.Email, f.Phone
			r.clients[i] = c
			return c, nil
		}
	}
	return entity.Client{}, failure.Rejection(http.StatusNotFound, detail("not found"))
}

func (r *fakeRemote) DeleteClient(ctx context.Context, id int64) error {
	if err := r.enter("DeleteClient"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.ClientID == id && inv.Status.IsOpen() {
			return failure.Rejection(http.StatusConflict, detail("client has open invoices"))
		}
	}
	kept := r.clients[:0]
	for _, c := range r.clients {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	r.clients = kept
	return nil
}

func (r *fakeRemote) setClientStatus(method string, id int64, status entity.ClientStatus) (entity.Client, error) {
	if err := r.enter(method); err != nil {
		return entity.Client{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.clients {
		if c.ID == id {
			r.clients[i] = c.WithStatus(status)
			return r.clients[i], nil
		}
	}
	return entity.Client{}, failure.Rejection(http.StatusNotFound, detail("not found"))
}

func (r *fakeRemote) ActivateClient(ctx context.Context, id int64) (entity.Client, error) {
	return r.setClientStatus("ActivateClient", id, entity.ClientStatusActive)
}

func (r *fakeRemote) DeactivateClient(ctx context.Context, id int64) (entity.Client, error) {
	return r.setClientStatus("DeactivateClient", id, entity.ClientStatusInactive)
}

func (r *fakeRemote) ClientProjects(ctx context.Context, clientID int64) ([]entity.Project, error) {
	return r.ListProjects(ctx, "", clientID)
}

func (r *fakeRemote) ClientInvoices(ctx context.Context, clientID int64) ([]entity.Invoice, error) {
	if err := r.enter("ClientInvoices"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entity.Invoice{}
	for _, inv := range r.invoices {
		if inv.ClientID == clientID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *fakeRemote) ClientHistory(ctx context.Context, clientID int64) ([]entity.HistoryEntry, error) {
	if err := r.enter("ClientHistory"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entity.HistoryEntry{}
	for _, h := range r.history {
		if h.ClientID == clientID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *fakeRemote) HistoryFeed(ctx context.Context, types string, limit int) ([]entity.HistoryEntry, error) {
	if err := r.enter("HistoryFeed"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entity.HistoryEntry{}
	for _, h := range r.history {
		if types == "" || strings.Contains(","+types+",", ","+string(h.Type)+",") {
			out = append(out, h)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeRemote) ListProjects(ctx context.Context, search string, clientID int64) ([]entity.Project, error) {
	if err := r.enter("ListProjects"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entity.Project{}
	for _, p := range r.projects {
		if clientID != 0 && p.ClientID != clientID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(search)) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *fakeRemote) CreateProject(ctx context.Context, f form.ProjectForm) (entity.Project, error) {
	if err := r.enter("CreateProject"); err != nil {
		return entity.Project{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p := f.Project(r.id())
	r.projects = append(r.projects, p)
	return p, nil
}

func (r *fakeRemote) UpdateProject(ctx context.Context, id int64, f form.ProjectForm) (entity.Project, error) {
	if err := r.enter("UpdateProject"); err != nil {
		return entity.Project{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.projects {
		if p.ID == id {
			r.projects[i] = f.Project(id)
			return r.projects[i], nil
		}
	}
	return entity.Project{}, failure.Rejection(http.StatusNotFound, detail("not found"))
}

func (r *fakeRemote) SetProjectStatus(ctx context.Context, id int64, status entity.ProjectStatus) (entity.Project, error) {
	if err := r.enter("SetProjectStatus"); err != nil {
		return entity.Project{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.projects {
		if p.ID == id {
			r.projects[i] = p.WithStatus(status)
			return r.projects[i], nil
		}
	}
	return entity.Project{}, failure.Rejection(http.StatusNotFound, detail("not found"))
}

func (r *fakeRemote) DeleteProject(ctx context.Context, id int64) error {
	if err := r.enter("DeleteProject"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.projects[:0]
	for _, p := range r.projects {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	r.projects = kept
	for i := range r.invoices {
		if pid := r.invoices[i].ProjectID; pid != nil && *pid == id {
			r.invoices[i].ProjectID = nil
		}
	}
	return nil
}

func (r *fakeRemote) ListInvoices(ctx context.Context, search string) ([]entity.Invoice, error) {
	if err := r.enter("ListInvoices"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entity.Invoice{}
	for _, inv := range r.invoices {
		if search == "" || strings.Contains(inv.Number, search) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *fakeRemote) CreateInvoice(ctx context.Context, f form.InvoiceForm) (entity.Invoice, error) {
	if err := r.enter("CreateInvoice"); err != nil {
		return entity.Invoice{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	inv := entity.Invoice{
		ID:        r.id(),
		ClientID:  f.ClientID,
		ProjectID: f.ProjectID,
		Number:    f.Number,
		IssueDate: f.IssueDate,
		DueDate:   f.DueDate,
		Currency:  f.Currency,
		Status:    entity.InvoiceStatusOpen,
		Items:     f.LineItems(),
		Total:     f.Total(),
	}
	r.invoices = append(r.invoices, inv)
	return inv, nil
}

func (r *fakeRemote) InvoicePDF(ctx context.Context, id int64) ([]byte, error) {
	if err := r.enter("InvoicePDF"); err != nil {
		return nil, err
	}
	return r.pdf, nil
}

func (r *fakeRemote) SendInvoice(ctx context.Context, id int64) error {
	return r.enter("SendInvoice")
}

// CreatePayment appends the payment and derives the invoice status the way
// the remote service does
func (r *fakeRemote) CreatePayment(ctx context.Context, f form.PaymentForm) (entity.Payment, error) {
	if err := r.enter("CreatePayment"); err != nil {
		return entity.Payment{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p := f.Payment()
	p.ID = r.id()
	for i, inv := range r.invoices {
		if inv.ID != f.InvoiceID {
			continue
		}
		inv.Payments = append(append([]entity.Payment(nil), inv.Payments...), p)
		outstanding := inv.Total - inv.PaidAmount()
		inv.Outstanding = &outstanding
		switch {
		case outstanding <= 0:
			inv.Status = entity.InvoiceStatusPaid
		default:
			inv.Status = entity.InvoiceStatusPartial
		}
		r.invoices[i] = inv
		return p, nil
	}
	return entity.Payment{}, failure.Rejection(http.StatusBadRequest, field("invoice_id", "invoice does not exist"))
}

func (r *fakeRemote) MonthlyRevenue(ctx context.Context) ([]report.MonthlyRevenue, error) {
	return []report.MonthlyRevenue{{Month: entity.MustDate("2024-06-01"), Amount: 10}}, r.enter("MonthlyRevenue")
}

func (r *fakeRemote) TopClients(ctx context.Context) ([]report.ClientRevenue, error) {
	return []report.ClientRevenue{{ClientID: 1, Amount: 10}}, r.enter("TopClients")
}

func (r *fakeRemote) Portfolio(ctx context.Context) ([]report.PortfolioSlice, error) {
	return []report.PortfolioSlice{{Status: entity.InvoiceStatusOpen, Count: 1}}, r.enter("Portfolio")
}

func (r *fakeRemote) Aging(ctx context.Context) (report.AgingReport, error) {
	return report.AgingReport{Total: 123}, r.enter("Aging")
}

func (r *fakeRemote) OnTimeSummary(ctx context.Context) (report.OnTimeSummary, error) {
	return report.OnTimeSummary{Paid: 3}, r.enter("OnTimeSummary")
}

func (r *fakeRemote) OnTimeTop(ctx context.Context, n int) ([]report.OnTimeRow, error) {
	return []report.OnTimeRow{{ClientID: 9}}, r.enter("OnTimeTop")
}

func detail(msg string) *failure.FieldErrors {
	return field(failure.DetailField, msg)
}

func field(name, msg string) *failure.FieldErrors {
	fe := failure.NewFieldErrors()
	fe.Add(name, msg)
	return fe
}

// mockLogger records log calls
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

type harness struct {
	remote   *fakeRemote
	cache    *cache.Cache
	executor *executor.Executor
	logger   *mockLogger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c := cache.New()
	return &harness{
		remote:   newFakeRemote(),
		cache:    c,
		executor: executor.New(c, invalidation.Default()),
		logger:   &mockLogger{},
	}
}

func (h *harness) clients() ClientService {
	return NewClientService(h.remote, h.cache, h.executor, h.logger)
}

func (h *harness) projects() ProjectService {
	return NewProjectService(h.remote, h.cache, h.executor, h.logger)
}

func (h *harness) invoices(inspector port.PDFInspector) InvoiceService {
	return NewInvoiceService(h.remote, h.cache, h.executor, inspector, h.logger)
}

func (h *harness) reports(opts ...ReportOption) ReportService {
	opts = append([]ReportOption{WithReportClock(func() time.Time {
		return time.Date(2024, time.June, 30, 9, 0, 0, 0, time.UTC)
	})}, opts...)
	return NewReportService(h.remote, h.cache, h.logger, opts...)
}

// fakeExporter writes the section names it received
type fakeExporter struct {
	bundle port.ReportBundle
}

func (e *fakeExporter) ContentType() string   { return "text/plain" }
func (e *fakeExporter) FileExtension() string { return "txt" }

func (e *fakeExporter) Export(w io.Writer, bundle port.ReportBundle) error {
	e.bundle = bundle
	_, err := io.WriteString(w, "aging,on_time,revenue,top_clients,portfolio")
	return err
}

type fakeInspector struct {
	pages int
	err   error
}

func (f fakeInspector) PageCount([]byte) (int, error) {
	return f.pages, f.err
}
