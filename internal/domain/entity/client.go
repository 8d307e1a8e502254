package entity

// Client is a billed customer
type Client struct {
	ID        int64        `json:"id"`
	LegalName string       `json:"legal_name"`
	TaxID     string       `json:"tax_id,omitempty"`
	Email     string       `json:"email,omitempty"`
	Phone     string       `json:"phone,omitempty"`
	Status    ClientStatus `json:"status"`
	CreatedAt Date         `json:"created_at"`
}

// IsActive reports whether the client is active
func (c Client) IsActive() bool {
	return c.Status == ClientStatusActive
}

// WithStatus returns a copy of the client with the given status
func (c Client) WithStatus(status ClientStatus) Client {
	c.Status = status
	return c
}
