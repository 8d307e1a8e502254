package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/billing-console/internal/application/port"
)

// Sheet names of the workbook
const (
	SheetAging      = "Aging"
	SheetOnTime     = "On-time"
	SheetRevenue    = "Revenue"
	SheetTopClients = "Top clients"
	SheetPortfolio  = "Portfolio"
)

const (
	numFmtAmount  = 4  // #,##0.00
	numFmtPercent = 10 // 0.00%
)

// XLSXExporter renders the report bundle as an Excel workbook with one
// sheet per report
type XLSXExporter struct {
	logger *zap.Logger
}

// NewXLSXExporter creates a new workbook exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &XLSXExporter{logger: logger}
}

// ContentType implements port.ReportExporter
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileExtension implements port.ReportExporter
func (e *XLSXExporter) FileExtension() string {
	return "xlsx"
}

// Export writes the workbook to w
func (e *XLSXExporter) Export(w io.Writer, bundle port.ReportBundle) error {
	file := excelize.NewFile()
	defer file.Close()

	wb, err := newWorkbook(file)
	if err != nil {
		return err
	}

	steps := []struct {
		sheet string
		fill  func(*workbook, port.ReportBundle) error
	}{
		{SheetAging, fillAging},
		{SheetOnTime, fillOnTime},
		{SheetRevenue, fillRevenue},
		{SheetTopClients, fillTopClients},
		{SheetPortfolio, fillPortfolio},
	}
	for i, step := range steps {
		if i == 0 {
			if err := file.SetSheetName("Sheet1", step.sheet); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := file.NewSheet(step.sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", step.sheet, err)
		}
		if err := step.fill(wb, bundle); err != nil {
			return fmt.Errorf("failed to fill sheet %s: %w", step.sheet, err)
		}
	}
	file.SetActiveSheet(0)

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Report workbook exported",
		zap.Int("aging_buckets", len(bundle.Aging.Buckets)),
		zap.Int("on_time_rows", len(bundle.OnTime.Rows)))
	return nil
}

// workbook writes typed rows with shared styles
type workbook struct {
	file    *excelize.File
	header  int
	amount  int
	percent int
}

func newWorkbook(file *excelize.File) (*workbook, error) {
	header, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	amount, err := file.NewStyle(&excelize.Style{NumFmt: numFmtAmount})
	if err != nil {
		return nil, fmt.Errorf("failed to create amount style: %w", err)
	}
	percent, err := file.NewStyle(&excelize.Style{NumFmt: numFmtPercent})
	if err != nil {
		return nil, fmt.Errorf("failed to create percent style: %w", err)
	}
	return &workbook{file: file, header: header, amount: amount, percent: percent}, nil
}

// headerRow writes the column titles on row 1
func (wb *workbook) headerRow(sheet string, titles ...string) error {
	values := make([]interface{}, len(titles))
	for i, t := range titles {
		values[i] = t
	}
	if err := wb.file.SetSheetRow(sheet, "A1", &values); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(titles), 1)
	if err != nil {
		return err
	}
	if err := wb.file.SetCellStyle(sheet, "A1", last, wb.header); err != nil {
		return err
	}
	endCol, err := excelize.ColumnNumberToName(len(titles))
	if err != nil {
		return err
	}
	return wb.file.SetColWidth(sheet, "A", endCol, 18)
}

// row writes values starting at column A of the given row
func (wb *workbook) row(sheet string, row int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return wb.file.SetSheetRow(sheet, cell, &values)
}

// money writes an amount rounded to cents
func (wb *workbook) money(sheet string, col, row int, v float64) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	rounded := decimal.NewFromFloat(v).Round(2).InexactFloat64()
	if err := wb.file.SetCellFloat(sheet, cell, rounded, 2, 64); err != nil {
		return err
	}
	return wb.file.SetCellStyle(sheet, cell, cell, wb.amount)
}

// ratio writes a 0..1 ratio as a percentage, or leaves the cell blank when
// the ratio is undefined
func (wb *workbook) ratio(sheet string, col, row int, v *float64) error {
	if v == nil {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := wb.file.SetCellFloat(sheet, cell, *v, 3, 64); err != nil {
		return err
	}
	return wb.file.SetCellStyle(sheet, cell, cell, wb.percent)
}

func fillAging(wb *workbook, b port.ReportBundle) error {
	if err := wb.headerRow(SheetAging, "Days overdue", "Invoices", "Amount"); err != nil {
		return err
	}
	row := 2
	for _, bucket := range b.Aging.Buckets {
		if err := wb.row(SheetAging, row, bucket.Label, bucket.Count); err != nil {
			return err
		}
		if err := wb.money(SheetAging, 3, row, bucket.Amount); err != nil {
			return err
		}
		row++
	}
	if err := wb.row(SheetAging, row, "Total"); err != nil {
		return err
	}
	if err := wb.money(SheetAging, 3, row, b.Aging.Total); err != nil {
		return err
	}
	if b.Aging.AsOf.IsSet() {
		return wb.row(SheetAging, row+2, "As of", b.Aging.AsOf.String())
	}
	return nil
}

func fillOnTime(wb *workbook, b port.ReportBundle) error {
	if err := wb.headerRow(SheetOnTime, "Client", "Paid", "On time", "Ratio"); err != nil {
		return err
	}
	row := 2
	for _, r := range b.OnTime.Rows {
		if err := wb.row(SheetOnTime, row, r.ClientName, r.Paid, r.OnTime); err != nil {
			return err
		}
		if err := wb.ratio(SheetOnTime, 4, row, r.Ratio); err != nil {
			return err
		}
		row++
	}
	if err := wb.row(SheetOnTime, row, "All clients", b.OnTime.Paid, b.OnTime.OnTime); err != nil {
		return err
	}
	return wb.ratio(SheetOnTime, 4, row, b.OnTime.GlobalRate)
}

func fillRevenue(wb *workbook, b port.ReportBundle) error {
	if err := wb.headerRow(SheetRevenue, "Month", "Collected"); err != nil {
		return err
	}
	for i, m := range b.MonthlyRevenue {
		row := i + 2
		if err := wb.row(SheetRevenue, row, m.Month.Format("2006-01")); err != nil {
			return err
		}
		if err := wb.money(SheetRevenue, 2, row, m.Amount); err != nil {
			return err
		}
	}
	return nil
}

func fillTopClients(wb *workbook, b port.ReportBundle) error {
	if err := wb.headerRow(SheetTopClients, "Client ID", "Client", "Paid"); err != nil {
		return err
	}
	for i, c := range b.TopClients {
		row := i + 2
		if err := wb.row(SheetTopClients, row, c.ClientID, c.ClientName); err != nil {
			return err
		}
		if err := wb.money(SheetTopClients, 3, row, c.Amount); err != nil {
			return err
		}
	}
	return nil
}

func fillPortfolio(wb *workbook, b port.ReportBundle) error {
	if err := wb.headerRow(SheetPortfolio, "Status", "Invoices", "Total", "Outstanding"); err != nil {
		return err
	}
	for i, s := range b.Portfolio {
		row := i + 2
		if err := wb.row(SheetPortfolio, row, string(s.Status), s.Count); err != nil {
			return err
		}
		if err := wb.money(SheetPortfolio, 3, row, s.Total); err != nil {
			return err
		}
		if err := wb.money(SheetPortfolio, 4, row, s.Outstanding); err != nil {
			return err
		}
	}
	return nil
}

// Verify interface compliance
var _ port.ReportExporter = (*XLSXExporter)(nil)
