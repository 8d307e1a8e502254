package report

import (
	"sort"
	"time"

	"github.com/garyjia/billing-console/internal/domain/entity"
)

// RevenueMonths is the length of the monthly revenue series
const RevenueMonths = 12

// DefaultTopClients is the size of the top clients ranking
const DefaultTopClients = 15

// MonthlyRevenue is the cash collected in one calendar month
type MonthlyRevenue struct {
	Month  entity.Date `json:"month"` // first day of the month
	Amount float64     `json:"amount"`
}

// ClientRevenue is the cash collected from one client
type ClientRevenue struct {
	ClientID   int64   `json:"client_id"`
	ClientName string  `json:"client_name,omitempty"`
	Amount     float64 `json:"amount"`
}

// PortfolioSlice groups invoices by status
type PortfolioSlice struct {
	Status      entity.InvoiceStatus `json:"status"`
	Count       int                  `json:"count"`
	Total       float64              `json:"total"`
	Outstanding float64              `json:"outstanding"`
}

// MonthlyRevenueSeries sums payments per calendar month for the last twelve
// months up to and including the month of today. Months without payments are
// reported with zero.
func MonthlyRevenueSeries(invoices []entity.Invoice, today entity.Date) []MonthlyRevenue {
	current := entity.NewDate(today.Year(), today.Month(), 1)
	start := entity.Date{Time: current.AddDate(0, -(RevenueMonths - 1), 0)}

	series := make([]MonthlyRevenue, RevenueMonths)
	index := make(map[string]int, RevenueMonths)
	for i := 0; i < RevenueMonths; i++ {
		month := entity.Date{Time: start.AddDate(0, i, 0)}
		series[i] = MonthlyRevenue{Month: month}
		index[monthKey(month.Time)] = i
	}

	for _, inv := range invoices {
		for _, p := range inv.Payments {
			if i, ok := index[monthKey(p.Date.Time)]; ok {
				series[i].Amount += p.Amount
			}
		}
	}
	return series
}

func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

// TopClientsByPayments sums the payments of PAID invoices per client and
// returns the largest limit clients (limit <= 0 means the default).
func TopClientsByPayments(invoices []entity.Invoice, limit int) []ClientRevenue {
	if limit <= 0 {
		limit = DefaultTopClients
	}

	totals := make(map[int64]*ClientRevenue)
	for _, inv := range invoices {
		if inv.Status != entity.InvoiceStatusPaid {
			continue
		}
		row, ok := totals[inv.ClientID]
		if !ok {
			row = &ClientRevenue{ClientID: inv.ClientID, ClientName: inv.ClientName}
			totals[inv.ClientID] = row
		}
		row.Amount += inv.PaidAmount()
	}

	out := make([]ClientRevenue, 0, len(totals))
	for _, row := range totals {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].ClientID < out[j].ClientID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Portfolio counts invoices and sums totals and balances per status
func Portfolio(invoices []entity.Invoice) []PortfolioSlice {
	slices := make([]PortfolioSlice, len(entity.AllInvoiceStatuses))
	index := make(map[entity.InvoiceStatus]int, len(slices))
	for i, status := range entity.AllInvoiceStatuses {
		slices[i] = PortfolioSlice{Status: status}
		index[status] = i
	}

	for _, inv := range invoices {
		i, ok := index[inv.Status]
		if !ok {
			continue
		}
		slices[i].Count++
		slices[i].Total += inv.Total
		if inv.Status.IsOpen() {
			slices[i].Outstanding += inv.Balance()
		}
	}
	return slices
}
