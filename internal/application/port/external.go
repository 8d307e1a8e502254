package port

import (
	"context"

	"github.com/garyjia/billing-console/internal/domain/entity"
	"github.com/garyjia/billing-console/internal/domain/form"
	"github.com/garyjia/billing-console/internal/report"
)

// ClientAPI defines the client endpoints of the remote service
type ClientAPI interface {
	ListClients(ctx context.Context, search string) ([]entity.Client, error)
	GetClient(ctx context.Context, id int64) (entity.Client, error)
	CreateClient(ctx context.Context, f form.ClientForm) (entity.Client, error)
	UpdateClient(ctx context.Context, id int64, f form.ClientForm) (entity.Client, error)
	DeleteClient(ctx context.Context, id int64) error
	ActivateClient(ctx context.Context, id int64) (entity.Client, error)
	DeactivateClient(ctx context.Context, id int64) (entity.Client, error)
	ClientProjects(ctx context.Context, clientID int64) ([]entity.Project, error)
	ClientInvoices(ctx context.Context, clientID int64) ([]entity.Invoice, error)
	ClientHistory(ctx context.Context, clientID int64) ([]entity.HistoryEntry, error)
	HistoryFeed(ctx context.Context, types string, limit int) ([]entity.HistoryEntry, error)
}

// ProjectAPI defines the project endpoints of the remote service
type ProjectAPI interface {
	ListProjects(ctx context.Context, search string, clientID int64) ([]entity.Project, error)
	CreateProject(ctx context.Context, f form.ProjectForm) (entity.Project, error)
	UpdateProject(ctx context.Context, id int64, f form.ProjectForm) (entity.Project, error)
	SetProjectStatus(ctx context.Context, id int64, status entity.ProjectStatus) (entity.Project, error)
	DeleteProject(ctx context.Context, id int64) error
}

// InvoiceAPI defines the invoice endpoints of the remote service
type InvoiceAPI interface {
	ListInvoices(ctx context.Context, search string) ([]entity.Invoice, error)
	CreateInvoice(ctx context.Context, f form.InvoiceForm) (entity.Invoice, error)
	InvoicePDF(ctx context.Context, id int64) ([]byte, error)
	SendInvoice(ctx context.Context, id int64) error
}

// PaymentAPI defines the payment endpoints of the remote service
type PaymentAPI interface {
	CreatePayment(ctx context.Context, f form.PaymentForm) (entity.Payment, error)
}

// ReportAPI defines the server side reports
type ReportAPI interface {
	MonthlyRevenue(ctx context.Context) ([]report.MonthlyRevenue, error)
	TopClients(ctx context.Context) ([]report.ClientRevenue, error)
	Portfolio(ctx context.Context) ([]report.PortfolioSlice, error)
	Aging(ctx context.Context) (report.AgingReport, error)
	OnTimeSummary(ctx context.Context) (report.OnTimeSummary, error)
	OnTimeTop(ctx context.Context, n int) ([]report.OnTimeRow, error)
}

// RemoteService is everything the console consumes from the billing backend
type RemoteService interface {
	ClientAPI
	ProjectAPI
	InvoiceAPI
	PaymentAPI
	ReportAPI
}

// PDFInspector checks a rendered document before it is relayed
type PDFInspector interface {
	PageCount(data []byte) (int, error)
}
