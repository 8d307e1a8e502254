package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garyjia/billing-console/internal/application/port"
	"github.com/garyjia/billing-console/internal/cache"
	"github.com/garyjia/billing-console/internal/domain/entity"
	"github.com/garyjia/billing-console/internal/domain/query"
	"github.com/garyjia/billing-console/internal/report"
)

// ReportSource selects where aggregates are computed
type ReportSource string

const (
	// SourceLocal computes reports from the invoice and client lists
	SourceLocal ReportSource = "local"
	// SourceRemote reads the reports the remote service computes
	SourceRemote ReportSource = "remote"
)

// IsValid checks if the source is one of the defined constants
func (s ReportSource) IsValid() bool {
	return s == SourceLocal || s == SourceRemote
}

// ReportRemote is what the report service needs from the remote service
type ReportRemote interface {
	port.ReportAPI
	ListInvoices(ctx context.Context, search string) ([]entity.Invoice, error)
	ListClients(ctx context.Context, search string) ([]entity.Client, error)
}

// ReportService serves the financial reports
type ReportService interface {
	Aging(ctx context.Context) (View[report.AgingReport], error)
	OnTimeSummary(ctx context.Context) (View[report.OnTimeSummary], error)
	OnTimeTop(ctx context.Context, n int) (View[[]report.OnTimeRow], error)
	MonthlyRevenue(ctx context.Context) (View[[]report.MonthlyRevenue], error)
	TopClients(ctx context.Context) (View[[]report.ClientRevenue], error)
	Portfolio(ctx context.Context) (View[[]report.PortfolioSlice], error)

	// Export renders every report with the configured exporter
	Export(ctx context.Context, w io.Writer) error
	ExportFormat() (contentType, extension string)
}

// ReportOption configures the report service
type ReportOption func(*reportServiceImpl)

// WithReportSource selects local or remote computation
func WithReportSource(source ReportSource) ReportOption {
	return func(s *reportServiceImpl) {
		if source.IsValid() {
			s.source = source
		}
	}
}

// WithReportClock overrides time.Now for the as-of date of local reports
func WithReportClock(now func() time.Time) ReportOption {
	return func(s *reportServiceImpl) {
		s.now = now
	}
}

// WithExporter sets the document format of Export
func WithExporter(exporter port.ReportExporter) ReportOption {
	return func(s *reportServiceImpl) {
		s.exporter = exporter
	}
}

// WithTopClients sets the size of the top clients ranking
func WithTopClients(n int) ReportOption {
	return func(s *reportServiceImpl) {
		if n > 0 {
			s.topClients = n
		}
	}
}

type reportServiceImpl struct {
	remote     ReportRemote
	cache      *cache.Cache
	reader     *reader
	exporter   port.ReportExporter
	source     ReportSource
	topClients int
	now        func() time.Time
	logger     Logger
}

// NewReportService creates a new ReportService
func NewReportService(remote ReportRemote, c *cache.Cache, logger Logger, opts ...ReportOption) ReportService {
	if logger == nil {
		logger = nopLogger{}
	}
	s := &reportServiceImpl{
		remote:     remote,
		cache:      c,
		reader:     newReader(c),
		source:     SourceLocal,
		topClients: report.DefaultTopClients,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Aging returns open overdue balances by days overdue
func (s *reportServiceImpl) Aging(ctx context.Context) (View[report.AgingReport], error) {
	id, today := s.dated(query.KindReportAging)
	return load(ctx, s.reader, id, func(ctx context.Context) (report.AgingReport, error) {
		if s.source == SourceRemote {
			return s.remote.Aging(ctx)
		}
		invoices, err := s.invoices(ctx)
		if err != nil {
			return report.AgingReport{}, err
		}
		return report.Aging(invoices, today), nil
	})
}

// OnTimeSummary returns per-client punctuality and the global rate
func (s *reportServiceImpl) OnTimeSummary(ctx context.Context) (View[report.OnTimeSummary], error) {
	return load(ctx, s.reader, query.Report(query.KindReportOnTimeSummary), s.onTime)
}

// OnTimeTop returns the n most punctual clients
func (s *reportServiceImpl) OnTimeTop(ctx context.Context, n int) (View[[]report.OnTimeRow], error) {
	if n <= 0 {
		n = report.DefaultOnTimeTop
	}
	return load(ctx, s.reader, query.OnTimeTop(n), func(ctx context.Context) ([]report.OnTimeRow, error) {
		if s.source == SourceRemote {
			return s.remote.OnTimeTop(ctx, n)
		}
		summary, err := s.onTime(ctx)
		if err != nil {
			return nil, err
		}
		return report.TopOnTime(summary, n), nil
	})
}

// MonthlyRevenue returns the cash collected per month over the last year
func (s *reportServiceImpl) MonthlyRevenue(ctx context.Context) (View[[]report.MonthlyRevenue], error) {
	id, today := s.dated(query.KindReportMonthlyRevenue)
	return load(ctx, s.reader, id, func(ctx context.Context) ([]report.MonthlyRevenue, error) {
		if s.source == SourceRemote {
			return s.remote.MonthlyRevenue(ctx)
		}
		invoices, err := s.invoices(ctx)
		if err != nil {
			return nil, err
		}
		return report.MonthlyRevenueSeries(invoices, today), nil
	})
}

// TopClients returns the clients that paid the most
func (s *reportServiceImpl) TopClients(ctx context.Context) (View[[]report.ClientRevenue], error) {
	return load(ctx, s.reader, query.Report(query.KindReportTopClients), func(ctx context.Context) ([]report.ClientRevenue, error) {
		if s.source == SourceRemote {
			return s.remote.TopClients(ctx)
		}
		invoices, err := s.invoices(ctx)
		if err != nil {
			return nil, err
		}
		return report.TopClientsByPayments(invoices, s.topClients), nil
	})
}

// Portfolio returns invoice counts and amounts per status
func (s *reportServiceImpl) Portfolio(ctx context.Context) (View[[]report.PortfolioSlice], error) {
	return load(ctx, s.reader, query.Report(query.KindReportPortfolio), func(ctx context.Context) ([]report.PortfolioSlice, error) {
		if s.source == SourceRemote {
			return s.remote.Portfolio(ctx)
		}
		invoices, err := s.invoices(ctx)
		if err != nil {
			return nil, err
		}
		return report.Portfolio(invoices), nil
	})
}

// Export loads every report concurrently and renders them as one document
func (s *reportServiceImpl) Export(ctx context.Context, w io.Writer) error {
	if s.exporter == nil {
		return fmt.Errorf("no report exporter configured")
	}

	var bundle port.ReportBundle
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.Aging(gctx)
		bundle.Aging = v.Data
		return err
	})
	g.Go(func() error {
		v, err := s.OnTimeSummary(gctx)
		bundle.OnTime = v.Data
		return err
	})
	g.Go(func() error {
		v, err := s.MonthlyRevenue(gctx)
		bundle.MonthlyRevenue = v.Data
		return err
	})
	g.Go(func() error {
		v, err := s.TopClients(gctx)
		bundle.TopClients = v.Data
		return err
	})
	g.Go(func() error {
		v, err := s.Portfolio(gctx)
		bundle.Portfolio = v.Data
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to load reports for export", "error", err)
		return err
	}

	if err := s.exporter.Export(w, bundle); err != nil {
		s.logger.Error("Failed to render report export", "error", err)
		return fmt.Errorf("export reports: %w", err)
	}
	s.logger.Info("Reports exported", "format", s.exporter.FileExtension())
	return nil
}

// ExportFormat describes the document Export writes
func (s *reportServiceImpl) ExportFormat() (string, string) {
	if s.exporter == nil {
		return "", ""
	}
	return s.exporter.ContentType(), s.exporter.FileExtension()
}

func (s *reportServiceImpl) onTime(ctx context.Context) (report.OnTimeSummary, error) {
	if s.source == SourceRemote {
		return s.remote.OnTimeSummary(ctx)
	}

	var (
		invoices []entity.Invoice
		clients  []entity.Client
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		invoices, err = s.invoices(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		clients, err = s.clients(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return report.OnTimeSummary{}, err
	}
	return report.OnTime(invoices, clients), nil
}

// invoices loads the full invoice list for a local computation and shares
// the result with the cached invoice list.
func (s *reportServiceImpl) invoices(ctx context.Context) ([]entity.Invoice, error) {
	invoices, err := s.remote.ListInvoices(ctx, "")
	if err != nil {
		return nil, err
	}
	s.seed(ctx, query.Invoices(""), invoices)
	return invoices, nil
}

func (s *reportServiceImpl) clients(ctx context.Context) ([]entity.Client, error) {
	clients, err := s.remote.ListClients(ctx, "")
	if err != nil {
		return nil, err
	}
	s.seed(ctx, query.Clients(""), clients)
	return clients, nil
}

// seed stores data loaded for a report as a regular fetch result, so a newer
// fetch of the same list still wins
func (s *reportServiceImpl) seed(ctx context.Context, id query.ID, data any) {
	_, _ = s.cache.Fetch(ctx, id, func(context.Context) (any, error) {
		return data, nil
	})
}

func (s *reportServiceImpl) today() entity.Date {
	return entity.DateOf(s.now())
}

// dated returns the id of a report that depends on the current date. Earlier
// days of the same report are no longer observed, so invalidation does not
// keep refetching them.
func (s *reportServiceImpl) dated(kind query.Kind) (query.ID, entity.Date) {
	today := s.today()
	id := query.DatedReport(kind, today.String())
	if n := s.reader.release(func(other query.ID) bool {
		return other.Kind == kind && other != id
	}); n > 0 {
		s.logger.Info("Report rolled over to a new day", "report", kind.String(), "as_of", id.Scope.AsOf)
	}
	return id, today
}
