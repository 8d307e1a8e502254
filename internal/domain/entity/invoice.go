package entity

// LineItem is one billed line of an invoice
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TaxRate     float64 `json:"tax_rate"` // percent, 0-100
}

// Invoice is issued to a client, optionally for one of its projects.
// Total, Outstanding and Payments are provided by the remote service.
type Invoice struct {
	ID          int64         `json:"id"`
	ClientID    int64         `json:"client_id"`
	ClientName  string        `json:"client_name,omitempty"`
	ProjectID   *int64        `json:"project_id,omitempty"`
	Number      string        `json:"number"`
	IssueDate   Date          `json:"issue_date"`
	DueDate     Date          `json:"due_date"`
	Currency    string        `json:"currency"`
	Status      InvoiceStatus `json:"status"`
	Items       []LineItem    `json:"items,omitempty"`
	Total       float64       `json:"total"`
	Outstanding *float64      `json:"outstanding,omitempty"`
	Payments    []Payment     `json:"payments,omitempty"`
}

// Balance returns the amount still owed: the server supplied outstanding
// balance when present, otherwise the full total.
func (i Invoice) Balance() float64 {
	if i.Outstanding != nil {
		return *i.Outstanding
	}
	return i.Total
}

// PaidAmount sums the payments embedded in the invoice
func (i Invoice) PaidAmount() float64 {
	sum := 0.0
	for _, p := range i.Payments {
		sum += p.Amount
	}
	return sum
}
