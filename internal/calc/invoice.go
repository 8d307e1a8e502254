package calc

import "github.com/garyjia/billing-console/internal/domain/entity"

// LineSubtotal returns quantity * unit price * (1 + tax rate / 100).
func LineSubtotal(item entity.LineItem) float64 {
	qty := Finite(item.Quantity)
	price := Finite(item.UnitPrice)
	tax := Finite(item.TaxRate)
	return qty * price * (1 + tax/100)
}

// InvoiceTotal sums the line subtotals. An empty invoice totals 0.
func InvoiceTotal(items []entity.LineItem) float64 {
	total := 0.0
	for _, item := range items {
		total += LineSubtotal(item)
	}
	return total
}
