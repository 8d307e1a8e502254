package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/billing-console/internal/domain/entity"
)

func TestMonthlyRevenueSeries(t *testing.T) {
	asOf := entity.NewDate(2024, time.March, 15)
	invoices := []entity.Invoice{
		{ID: 1, Payments: []entity.Payment{
			{Amount: 100, Date: entity.MustDate("2024-03-01")},
			{Amount: 50, Date: entity.MustDate("2024-03-31")},
			{Amount: 70, Date: entity.MustDate("2023-04-02")},
		}},
		{ID: 2, Payments: []entity.Payment{
			{Amount: 999, Date: entity.MustDate("2023-03-31")}, // outside window
			{Amount: 25, Date: entity.MustDate("2023-12-24")},
		}},
	}

	series := MonthlyRevenueSeries(invoices, asOf)

	require.Len(t, series, RevenueMonths)
	assert.Equal(t, "2023-04-01", series[0].Month.String())
	assert.Equal(t, "2024-03-01", series[11].Month.String())
	assert.Equal(t, 70.0, series[0].Amount)
	assert.Equal(t, 25.0, series[8].Amount)
	assert.Equal(t, 150.0, series[11].Amount)
	assert.Equal(t, 0.0, series[5].Amount, "zero filled")
}

func TestTopClientsByPayments(t *testing.T) {
	invoices := []entity.Invoice{
		{ID: 1, ClientID: 1, Status: entity.InvoiceStatusPaid, Payments: []entity.Payment{{Amount: 100}}},
		{ID: 2, ClientID: 1, Status: entity.InvoiceStatusPaid, Payments: []entity.Payment{{Amount: 50}}},
		{ID: 3, ClientID: 2, Status: entity.InvoiceStatusPaid, Payments: []entity.Payment{{Amount: 300}}},
		{ID: 4, ClientID: 3, Status: entity.InvoiceStatusPartial, Payments: []entity.Payment{{Amount: 900}}},
	}

	top := TopClientsByPayments(invoices, 0)
	require.Len(t, top, 2)
	assert.Equal(t, ClientRevenue{ClientID: 2, Amount: 300}, top[0])
	assert.Equal(t, ClientRevenue{ClientID: 1, Amount: 150}, top[1])

	assert.Len(t, TopClientsByPayments(invoices, 1), 1)
}

func TestPortfolio(t *testing.T) {
	outstanding := 20.0
	invoices := []entity.Invoice{
		{Status: entity.InvoiceStatusOpen, Total: 100},
		{Status: entity.InvoiceStatusPartial, Total: 50, Outstanding: &outstanding},
		{Status: entity.InvoiceStatusPaid, Total: 10},
		{Status: entity.InvoiceStatusPaid, Total: 15},
	}

	slices := Portfolio(invoices)
	require.Len(t, slices, 4)
	assert.Equal(t, PortfolioSlice{Status: entity.InvoiceStatusOpen, Count: 1, Total: 100, Outstanding: 100}, slices[0])
	assert.Equal(t, PortfolioSlice{Status: entity.InvoiceStatusPartial, Count: 1, Total: 50, Outstanding: 20}, slices[1])
	assert.Equal(t, PortfolioSlice{Status: entity.InvoiceStatusPaid, Count: 2, Total: 25}, slices[2])
	assert.Equal(t, 0, slices[3].Count)
}
