package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/garyjia/billing-console/internal/domain/entity"
)

// DefaultOnTimeTop is the ranking size when none is requested
const DefaultOnTimeTop = 5

// OnTimeRow is the punctuality of one client
type OnTimeRow struct {
	ClientID   int64    `json:"client_id"`
	ClientName string   `json:"client_name"`
	Paid       int      `json:"paid"`
	OnTime     int      `json:"on_time"`
	Ratio      *float64 `json:"ratio"`
}

// OnTimeSummary holds per-client rows and the weighted global rate
type OnTimeSummary struct {
	Rows       []OnTimeRow `json:"rows"`
	Paid       int         `json:"paid"`
	OnTime     int         `json:"on_time"`
	GlobalRate *float64    `json:"global_rate"`
}

// Row returns the row of a client
func (s OnTimeSummary) Row(clientID int64) (OnTimeRow, bool) {
	for _, r := range s.Rows {
		if r.ClientID == clientID {
			return r, true
		}
	}
	return OnTimeRow{}, false
}

// Ratio returns onTime/paid rounded to three decimals, or nil when paid is zero
func Ratio(onTime, paid int) *float64 {
	if paid <= 0 {
		return nil
	}
	r := decimal.NewFromInt(int64(onTime)).
		DivRound(decimal.NewFromInt(int64(paid)), 3).
		InexactFloat64()
	return &r
}

// IsPaid reports whether an invoice counts as paid: a positive total fully
// covered by payments, or the PAID status when payments are not embedded.
func IsPaid(inv entity.Invoice) bool {
	if inv.Total <= 0 {
		return false
	}
	if len(inv.Payments) == 0 {
		return inv.Status == entity.InvoiceStatusPaid
	}
	return inv.PaidAmount() >= inv.Total
}

// SettlingDate is the date on which cumulative payments first reach the
// invoice total. It falls back to the latest payment date when payments never
// reach the total, and is absent when there are no payments.
func SettlingDate(inv entity.Invoice) entity.Date {
	if len(inv.Payments) == 0 {
		return entity.Date{}
	}
	payments := append([]entity.Payment(nil), inv.Payments...)
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].Date.Before(payments[j].Date)
	})

	cumulative := 0.0
	for _, p := range payments {
		cumulative += p.Amount
		if cumulative >= inv.Total {
			return p.Date
		}
	}
	return payments[len(payments)-1].Date
}

// IsOnTime reports whether a paid invoice was settled on or before its due
// date. Invoices without a due date are always on time.
func IsOnTime(inv entity.Invoice) bool {
	if !inv.DueDate.IsSet() {
		return true
	}
	settled := SettlingDate(inv)
	if !settled.IsSet() {
		return false
	}
	return !settled.After(inv.DueDate)
}

// OnTime computes per-client punctuality over paid invoices. Clients without
// paid invoices get no row. Rows are sorted by ratio then on-time count,
// both descending. The global rate weights every paid invoice equally.
func OnTime(invoices []entity.Invoice, clients []entity.Client) OnTimeSummary {
	names := make(map[int64]string, len(clients))
	for _, c := range clients {
		names[c.ID] = c.LegalName
	}

	byClient := make(map[int64]*OnTimeRow)
	var order []int64
	for _, inv := range invoices {
		if !IsPaid(inv) {
			continue
		}
		row, ok := byClient[inv.ClientID]
		if !ok {
			name := names[inv.ClientID]
			if name == "" {
				name = inv.ClientName
			}
			row = &OnTimeRow{ClientID: inv.ClientID, ClientName: name}
			byClient[inv.ClientID] = row
			order = append(order, inv.ClientID)
		}
		row.Paid++
		if IsOnTime(inv) {
			row.OnTime++
		}
	}

	summary := OnTimeSummary{Rows: make([]OnTimeRow, 0, len(order))}
	for _, id := range order {
		row := byClient[id]
		row.Ratio = Ratio(row.OnTime, row.Paid)
		summary.Paid += row.Paid
		summary.OnTime += row.OnTime
		summary.Rows = append(summary.Rows, *row)
	}
	sortOnTime(summary.Rows)

	if summary.Paid > 0 {
		rate := float64(summary.OnTime) / float64(summary.Paid)
		summary.GlobalRate = &rate
	}
	return summary
}

// TopOnTime returns the first n rows of the ranking; n <= 0 means the default
func TopOnTime(summary OnTimeSummary, n int) []OnTimeRow {
	if n <= 0 {
		n = DefaultOnTimeTop
	}
	rows := append([]OnTimeRow(nil), summary.Rows...)
	sortOnTime(rows)
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

func sortOnTime(rows []OnTimeRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := ratioValue(rows[i]), ratioValue(rows[j])
		if ri != rj {
			return ri > rj
		}
		if rows[i].OnTime != rows[j].OnTime {
			return rows[i].OnTime > rows[j].OnTime
		}
		return rows[i].ClientID < rows[j].ClientID
	})
}

func ratioValue(r OnTimeRow) float64 {
	if r.Ratio == nil {
		return 0
	}
	return *r.Ratio
}
