package entity

// Kind identifies an entity kind owned by the remote service
type Kind string

const (
	KindClient  Kind = "client"
	KindProject Kind = "project"
	KindInvoice Kind = "invoice"
	KindPayment Kind = "payment"
	KindHistory Kind = "history"
)

// AllKinds lists every entity kind
var AllKinds = []Kind{KindClient, KindProject, KindInvoice, KindPayment, KindHistory}

// String returns the string representation of the kind
func (k Kind) String() string {
	return string(k)
}

// ClientStatus constants
type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "ACTIVE"
	ClientStatusInactive ClientStatus = "INACTIVE"
)

// ProjectStatus constants
type ProjectStatus string

const (
	ProjectStatusInProgress ProjectStatus = "IN_PROGRESS"
	ProjectStatusPaused     ProjectStatus = "PAUSED"
	ProjectStatusFinished   ProjectStatus = "FINISHED"
)

// IsValid checks if the project status is one of the defined constants
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectStatusInProgress, ProjectStatusPaused, ProjectStatusFinished:
		return true
	default:
		return false
	}
}

// InvoiceStatus constants. Status is derived by the remote service from payments.
type InvoiceStatus string

const (
	InvoiceStatusOpen    InvoiceStatus = "OPEN"
	InvoiceStatusPartial InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusVoid    InvoiceStatus = "VOID"
)

// AllInvoiceStatuses in display order
var AllInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusOpen,
	InvoiceStatusPartial,
	InvoiceStatusPaid,
	InvoiceStatusVoid,
}

// IsOpen reports whether the invoice still has a balance to collect
func (s InvoiceStatus) IsOpen() bool {
	return s == InvoiceStatusOpen || s == InvoiceStatusPartial
}

// HistoryType tags an entry in the client audit trail
type HistoryType string

const (
	HistoryClientCreated     HistoryType = "CLIENT_CREATED"
	HistoryClientUpdated     HistoryType = "CLIENT_UPDATED"
	HistoryClientDeactivated HistoryType = "CLIENT_DEACTIVATED"
	HistoryClientActivated   HistoryType = "CLIENT_ACTIVATED"
	HistoryInvoiceCreated    HistoryType = "INVOICE_CREATED"
	HistoryPaymentRegistered HistoryType = "PAYMENT_REGISTERED"
)

// IsValid checks if the history type is one of the defined constants
func (t HistoryType) IsValid() bool {
	switch t {
	case HistoryClientCreated,
		HistoryClientUpdated,
		HistoryClientDeactivated,
		HistoryClientActivated,
		HistoryInvoiceCreated,
		HistoryPaymentRegistered:
		return true
	default:
		return false
	}
}
