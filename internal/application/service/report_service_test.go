package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/billing-console/internal/cache"
	"github.com/garyjia/billing-console/internal/domain/entity"
	"github.com/garyjia/billing-console/internal/domain/query"
	"github.com/garyjia/billing-console/internal/report"
)

func seedLedger(r *fakeRemote) {
	r.clients = []entity.Client{
		{ID: 1, LegalName: "Acme S.A."},
		{ID: 2, LegalName: "Globex"},
	}
	r.invoices = []entity.Invoice{
		{ID: 1, ClientID: 1, Status: entity.InvoiceStatusPaid, Total: 100, DueDate: entity.MustDate("2024-05-31"),
			Payments: []entity.Payment{{Amount: 100, Date: entity.MustDate("2024-05-20")}}},
		{ID: 2, ClientID: 1, Status: entity.InvoiceStatusPaid, Total: 50, DueDate: entity.MustDate("2024-04-30"),
			Payments: []entity.Payment{{Amount: 50, Date: entity.MustDate("2024-05-05")}}},
		{ID: 3, ClientID: 2, Status: entity.InvoiceStatusOpen, Total: 80, DueDate: entity.MustDate("2024-03-01")},
	}
}

func TestReportService_Local(t *testing.T) {
	h := newHarness(t)
	seedLedger(h.remote)
	svc := h.reports()
	ctx := context.Background()

	aging, err := svc.Aging(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-30", aging.Data.AsOf.String())
	over, _ := aging.Data.Bucket(report.BucketOver90)
	assert.Equal(t, []int64{3}, over.InvoiceIDs, "121 days overdue")
	assert.InDelta(t, 80.0, aging.Data.Total, 1e-9)

	summary, err := svc.OnTimeSummary(ctx)
	require.NoError(t, err)
	row, ok := summary.Data.Row(1)
	require.True(t, ok)
	assert.Equal(t, 2, row.Paid)
	assert.Equal(t, 1, row.OnTime)

	top, err := svc.OnTimeTop(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top.Data, 1)
	_, ok = cached[[]report.OnTimeRow](h.cache, query.OnTimeTop(report.DefaultOnTimeTop))
	assert.True(t, ok)

	revenue, err := svc.MonthlyRevenue(ctx)
	require.NoError(t, err)
	require.Len(t, revenue.Data, report.RevenueMonths)
	assert.InDelta(t, 150.0, revenue.Data[len(revenue.Data)-2].Amount, 1e-9)

	clients, err := svc.TopClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients.Data, 1)
	assert.InDelta(t, 150.0, clients.Data[0].Amount, 1e-9)

	portfolio, err := svc.Portfolio(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, portfolio.Data)

	// loaded lists are shared with the list queries
	invoices, ok := cached[[]entity.Invoice](h.cache, query.Invoices(""))
	require.True(t, ok)
	assert.Len(t, invoices, 3)
	assert.Equal(t, cache.StatusFresh, h.cache.Read(query.Clients("")).Status)
}

func TestReportService_AgingFollowsTheClock(t *testing.T) {
	h := newHarness(t)
	h.remote.invoices = []entity.Invoice{
		{ID: 7, ClientID: 1, Status: entity.InvoiceStatusOpen, Total: 40, DueDate: entity.MustDate("2024-06-29")},
	}
	now := time.Date(2024, time.June, 30, 9, 0, 0, 0, time.UTC)
	svc := h.reports(WithReportClock(func() time.Time { return now }))
	ctx := context.Background()

	aging, err := svc.Aging(ctx)
	require.NoError(t, err)
	recent, _ := aging.Data.Bucket(report.Bucket0To30)
	assert.Equal(t, []int64{7}, recent.InvoiceIDs)
	_, err = svc.MonthlyRevenue(ctx)
	require.NoError(t, err)

	now = now.Add(45 * 24 * time.Hour)
	aging, err = svc.Aging(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-08-14", aging.Data.AsOf.String())
	assert.Equal(t, cache.StatusFresh, aging.Status)
	older, _ := aging.Data.Bucket(report.Bucket31To60)
	assert.Equal(t, []int64{7}, older.InvoiceIDs, "46 days overdue")

	revenue, err := svc.MonthlyRevenue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-08-01", revenue.Data[len(revenue.Data)-1].Month.String())

	// only the current day stays observed
	stale := h.cache.MarkStale(query.Pattern{Kind: query.KindReportAging})
	assert.Equal(t, []query.ID{query.DatedReport(query.KindReportAging, "2024-08-14")}, stale)
}

func TestReportService_Remote(t *testing.T) {
	h := newHarness(t)
	svc := h.reports(WithReportSource(SourceRemote))
	ctx := context.Background()

	aging, err := svc.Aging(ctx)
	require.NoError(t, err)
	assert.Equal(t, 123.0, aging.Data.Total)

	top, err := svc.OnTimeTop(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(9), top.Data[0].ClientID)

	_, err = svc.OnTimeSummary(ctx)
	require.NoError(t, err)
	_, err = svc.MonthlyRevenue(ctx)
	require.NoError(t, err)
	_, err = svc.TopClients(ctx)
	require.NoError(t, err)
	_, err = svc.Portfolio(ctx)
	require.NoError(t, err)

	assert.Zero(t, h.remote.count("ListInvoices"))
	for _, method := range []string{"Aging", "OnTimeTop", "OnTimeSummary", "MonthlyRevenue", "TopClients", "Portfolio"} {
		assert.Equal(t, 1, h.remote.count(method), method)
	}
}

func TestReportService_InvalidSourceKeepsDefault(t *testing.T) {
	h := newHarness(t)
	svc := h.reports(WithReportSource("spreadsheet"))

	_, err := svc.Aging(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, h.remote.count("ListInvoices"))
	assert.Zero(t, h.remote.count("Aging"))
}

func TestReportService_Export(t *testing.T) {
	h := newHarness(t)
	seedLedger(h.remote)

	t.Run("without exporter", func(t *testing.T) {
		svc := h.reports()
		var buf bytes.Buffer
		assert.Error(t, svc.Export(context.Background(), &buf))
		contentType, ext := svc.ExportFormat()
		assert.Empty(t, contentType)
		assert.Empty(t, ext)
	})

	t.Run("renders every report", func(t *testing.T) {
		exporter := &fakeExporter{}
		svc := h.reports(WithExporter(exporter))

		var buf bytes.Buffer
		require.NoError(t, svc.Export(context.Background(), &buf))
		assert.Equal(t, "aging,on_time,revenue,top_clients,portfolio", buf.String())
		assert.Len(t, exporter.bundle.MonthlyRevenue, report.RevenueMonths)
		assert.Equal(t, 2, exporter.bundle.OnTime.Paid)
		assert.InDelta(t, 80.0, exporter.bundle.Aging.Total, 1e-9)

		contentType, ext := svc.ExportFormat()
		assert.Equal(t, "text/plain", contentType)
		assert.Equal(t, "txt", ext)
	})

	t.Run("load failure aborts", func(t *testing.T) {
		h := newHarness(t)
		h.remote.failWith("ListInvoices", errUnreachable)
		svc := h.reports(WithExporter(&fakeExporter{}))

		var buf bytes.Buffer
		assert.Error(t, svc.Export(context.Background(), &buf))
		assert.Zero(t, buf.Len())
	})
}
