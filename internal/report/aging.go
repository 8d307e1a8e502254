// Package report derives aging, punctuality and revenue aggregates from
// invoice data. Every function is pure.
package report

import (
	"github.com/garyjia/billing-console/internal/domain/entity"
)

// AgingBucket accumulates open overdue invoices within a days-overdue range.
// MaxDays is -1 for the open-ended last bucket.
type AgingBucket struct {
	Label      string  `json:"label"`
	MinDays    int     `json:"min_days"`
	MaxDays    int     `json:"max_days"`
	Amount     float64 `json:"amount"`
	Count      int     `json:"count"`
	InvoiceIDs []int64 `json:"invoice_ids"`
}

// Contains reports whether days falls in the bucket
func (b AgingBucket) Contains(days int) bool {
	return days >= b.MinDays && (b.MaxDays < 0 || days <= b.MaxDays)
}

// AgingReport is the aging breakdown as of a given day
type AgingReport struct {
	AsOf    entity.Date   `json:"as_of"`
	Buckets []AgingBucket `json:"buckets"`
	Total   float64       `json:"total"`
}

// Bucket returns the bucket with the given label
func (r AgingReport) Bucket(label string) (AgingBucket, bool) {
	for _, b := range r.Buckets {
		if b.Label == label {
			return b, true
		}
	}
	return AgingBucket{}, false
}

// Aging bucket labels
const (
	Bucket0To30  = "0-30"
	Bucket31To60 = "31-60"
	Bucket61To90 = "61-90"
	BucketOver90 = "90+"
)

func emptyBuckets() []AgingBucket {
	return []AgingBucket{
		{Label: Bucket0To30, MinDays: 0, MaxDays: 30, InvoiceIDs: []int64{}},
		{Label: Bucket31To60, MinDays: 31, MaxDays: 60, InvoiceIDs: []int64{}},
		{Label: Bucket61To90, MinDays: 61, MaxDays: 90, InvoiceIDs: []int64{}},
		{Label: BucketOver90, MinDays: 91, MaxDays: -1, InvoiceIDs: []int64{}},
	}
}

// Aging partitions open (OPEN or PARTIAL) invoices that are due or overdue
// into days-overdue buckets. Invoices not yet due and invoices without a due
// date are left out. The bucket amount is the outstanding balance when the
// remote service provided one, otherwise the invoice total.
func Aging(invoices []entity.Invoice, today entity.Date) AgingReport {
	buckets := emptyBuckets()
	report := AgingReport{AsOf: today}

	for _, inv := range invoices {
		if !inv.Status.IsOpen() || !inv.DueDate.IsSet() {
			continue
		}
		days := today.DaysSince(inv.DueDate)
		if days < 0 {
			continue
		}
		for i := range buckets {
			if buckets[i].Contains(days) {
				amount := inv.Balance()
				buckets[i].Amount += amount
				buckets[i].Count++
				buckets[i].InvoiceIDs = append(buckets[i].InvoiceIDs, inv.ID)
				report.Total += amount
				break
			}
		}
	}

	report.Buckets = buckets
	return report
}
