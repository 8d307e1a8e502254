package entity

// Payment settles all or part of an invoice
type Payment struct {
	ID        int64   `json:"id"`
	InvoiceID int64   `json:"invoice_id"`
	Amount    float64 `json:"amount"`
	Date      Date    `json:"date"`
	Method    string  `json:"method,omitempty"`
	Reference string  `json:"reference,omitempty"`
}
