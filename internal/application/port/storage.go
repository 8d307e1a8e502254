package port

import (
	"io"

	"github.com/garyjia/billing-console/internal/report"
)

// ReportBundle is every report rendered into one export
type ReportBundle struct {
	Aging          report.AgingReport
	OnTime         report.OnTimeSummary
	MonthlyRevenue []report.MonthlyRevenue
	TopClients     []report.ClientRevenue
	Portfolio      []report.PortfolioSlice
}

// ReportExporter writes a report bundle as a document
type ReportExporter interface {
	ContentType() string
	FileExtension() string
	Export(w io.Writer, bundle ReportBundle) error
}
