package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/billing-console/internal/application/port"
	"github.com/garyjia/billing-console/internal/application/service"
	"github.com/garyjia/billing-console/internal/domain/failure"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	clients  service.ClientService
	projects service.ProjectService
	invoices service.InvoiceService
	payments service.PaymentService
	history  service.HistoryService
	reports  service.ReportService
	audit    service.AuditService
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Handlers{
		clients:  services.Clients,
		projects: services.Projects,
		invoices: services.Invoices,
		payments: services.Payments,
		history:  services.History,
		reports:  services.Reports,
		audit:    services.Audit,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool                 `json:"success"`
	Data    interface{}          `json:"data,omitempty"`
	Error   string               `json:"error,omitempty"`
	Kind    failure.Kind         `json:"kind,omitempty"`
	Fields  *failure.FieldErrors `json:"fields,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ok writes a successful envelope
func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// badRequest rejects a request that never reached a service
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: message})
}

// fail logs err and writes it with the status of its failure kind. data is
// sent alongside, so a rolled back mutation still reports its id and state.
func (h *Handlers) fail(c *gin.Context, action string, err error, data interface{}) {
	status := statusFor(err)
	resp := Response{Success: false, Data: data, Error: err.Error()}

	var f *failure.Failure
	if errors.As(err, &f) {
		resp.Kind = f.Kind
		if msgs := f.Messages(); len(msgs) > 0 {
			resp.Error = msgs[0]
		}
		if !f.Fields.Empty() {
			resp.Fields = f.Fields
		}
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Failed to "+action, "path", c.Request.URL.Path, "status", status, "error", err)
	} else {
		h.logger.Info("Request rejected", "action", action, "status", status, "error", err)
	}
	c.JSON(status, resp)
}

// statusFor maps an error returned by a service to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, port.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidDocument):
		return http.StatusBadGateway
	}

	var f *failure.Failure
	if !errors.As(err, &f) {
		return http.StatusInternalServerError
	}
	switch f.Kind {
	case failure.KindValidation:
		return http.StatusBadRequest
	case failure.KindRejection:
		switch f.StatusCode {
		case http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity:
			return f.StatusCode
		}
		return http.StatusBadRequest
	case failure.KindNetwork:
		return http.StatusBadGateway
	case failure.KindRead:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// paramID parses a positive int64 path parameter
func (h *Handlers) paramID(c *gin.Context, name string) (int64, bool) {
	idStr := c.Param(name)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		h.logger.Info("Invalid path parameter", name, idStr)
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

// bindJSON decodes the request body. Validation is left to the services.
func (h *Handlers) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.Info("Invalid request body", "path", c.Request.URL.Path, "error", err)
		badRequest(c, "invalid request body")
		return false
	}
	return true
}
