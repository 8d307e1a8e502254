package form

import (
	"github.com/garyjia/billing-console/internal/calc"
	"github.com/garyjia/billing-console/internal/domain/entity"
	"github.com/garyjia/billing-console/internal/domain/failure"
	"github.com/garyjia/billing-console/pkg/utils"
)

// ClientForm creates or updates a client. Only the legal name is required.
type ClientForm struct {
	LegalName string `json:"legal_name" validate:"required"`
	TaxID     string `json:"tax_id" validate:"omitempty,taxid"`
	Email     string `json:"email" validate:"omitempty,emailshape"`
	Phone     string `json:"phone"`
}

// Normalize trims surrounding whitespace and drops control characters
func (f *ClientForm) Normalize() {
	f.LegalName = utils.SanitizeString(f.LegalName)
	f.TaxID = utils.SanitizeString(f.TaxID)
	f.Email = utils.SanitizeString(f.Email)
	f.Phone = utils.SanitizeString(f.Phone)
}

// Validate normalizes and checks the form
func (f *ClientForm) Validate() *failure.Failure {
	f.Normalize()
	return check(*f)
}

// ProjectForm creates or fully updates a project
type ProjectForm struct {
	ClientID        int64                `json:"client_id" validate:"required"`
	Name            string               `json:"name" validate:"required"`
	Status          entity.ProjectStatus `json:"status" validate:"omitempty,oneof=IN_PROGRESS PAUSED FINISHED"`
	StartDate       entity.Date          `json:"start_date"`
	ExpectedEndDate entity.Date          `json:"expected_end_date"`
}

// Validate normalizes and checks the form
func (f *ProjectForm) Validate() *failure.Failure {
	f.Name = utils.SanitizeString(f.Name)
	if f.Status == "" {
		f.Status = entity.ProjectStatusInProgress
	}
	return check(*f)
}

// Project returns the project described by the form
func (f ProjectForm) Project(id int64) entity.Project {
	return entity.Project{
		ID:              id,
		ClientID:        f.ClientID,
		Name:            f.Name,
		Status:          f.Status,
		StartDate:       f.StartDate,
		ExpectedEndDate: f.ExpectedEndDate,
	}
}

// ItemForm is one invoice line as typed by the operator
type ItemForm struct {
	Description string      `json:"description" validate:"required"`
	Quantity    calc.Number `json:"quantity" validate:"gt=0"`
	UnitPrice   calc.Number `json:"unit_price" validate:"gte=0"`
	TaxRate     calc.Number `json:"tax_rate" validate:"gte=0,lte=100"`
}

// InvoiceForm creates an invoice. Status is always OPEN on creation.
type InvoiceForm struct {
	ClientID  int64       `json:"client_id" validate:"required"`
	ProjectID *int64      `json:"project_id"`
	Number    string      `json:"number" validate:"required"`
	IssueDate entity.Date `json:"issue_date" validate:"required"`
	DueDate   entity.Date `json:"due_date" validate:"required"`
	Currency  string      `json:"currency"`
	Items     []ItemForm  `json:"items" validate:"min=1,dive"`
	SendEmail bool        `json:"send_email"`
}

// DefaultCurrency is used when the form leaves the currency empty
const DefaultCurrency = "ARS"

// Validate normalizes and checks the form
func (f *InvoiceForm) Validate() *failure.Failure {
	f.Number = utils.SanitizeString(f.Number)
	f.Currency = utils.SanitizeString(f.Currency)
	if f.Currency == "" {
		f.Currency = DefaultCurrency
	}
	for i := range f.Items {
		f.Items[i].Description = utils.SanitizeString(f.Items[i].Description)
	}
	return check(*f)
}

// LineItems converts the typed lines to entity values
func (f InvoiceForm) LineItems() []entity.LineItem {
	items := make([]entity.LineItem, 0, len(f.Items))
	for _, it := range f.Items {
		items = append(items, entity.LineItem{
			Description: it.Description,
			Quantity:    it.Quantity.Float(),
			UnitPrice:   it.UnitPrice.Float(),
			TaxRate:     it.TaxRate.Float(),
		})
	}
	return items
}

// Total previews the invoice total the server is expected to compute
func (f InvoiceForm) Total() float64 {
	return calc.InvoiceTotal(f.LineItems())
}

// PaymentForm registers a payment against an invoice
type PaymentForm struct {
	InvoiceID int64       `json:"invoice_id" validate:"required"`
	Amount    calc.Number `json:"amount" validate:"gt=0"`
	Date      entity.Date `json:"date" validate:"required"`
	Method    string      `json:"method"`
	Reference string      `json:"reference"`
}

// Validate normalizes and checks the form
func (f *PaymentForm) Validate() *failure.Failure {
	f.Method = utils.SanitizeString(f.Method)
	f.Reference = utils.SanitizeString(f.Reference)
	return check(*f)
}

// Payment returns the payment described by the form
func (f PaymentForm) Payment() entity.Payment {
	return entity.Payment{
		InvoiceID: f.InvoiceID,
		Amount:    f.Amount.Float(),
		Date:      f.Date,
		Method:    f.Method,
		Reference: f.Reference,
	}
}

// StatusForm changes the status of a project
type StatusForm struct {
	Status entity.ProjectStatus `json:"status" validate:"required,oneof=IN_PROGRESS PAUSED FINISHED"`
}

// Validate checks the form
func (f *StatusForm) Validate() *failure.Failure {
	return check(*f)
}
