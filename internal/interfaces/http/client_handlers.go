package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/billing-console/internal/domain/form"
)

// ListClients handles GET /api/clients?search=
func (h *Handlers) ListClients(c *gin.Context) {
	view, err := h.clients.List(c.Request.Context(), c.Query("search"))
	if err != nil {
		h.fail(c, "list clients", err, nil)
		return
	}
	ok(c, http.StatusOK, view)
}

// GetClient handles GET /api/clients/:id
func (h *Handlers) GetClient(c *gin.Context) {
	id, valid := h.paramID(c, "id")
	if !valid {
		return
	}
	view, err := h.clients.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get client", err, nil)
		return
	}
	ok(c, http.StatusOK, view)
}

// CreateClient handles POST /api/clients
func (h *Handlers) CreateClient(c *gin.Context) {
	var f form.ClientForm
	if !h.bindJSON(c, &f) {
		return
	}
	change, err := h.clients.Create(c.Request.Context(), f)
	if err != nil {
		h.fail(c, "create client", err, change)
		return
	}
	ok(c, http.StatusCreated, change)
}

// UpdateClient handles PUT /api/clients/:id
func (h *Handlers) UpdateClient(c *gin.Context) {
	id, valid := h.paramID(c, "id")
	if !valid {
		return
	}
	var f form.ClientForm
	if !h.bindJSON(c, &f) {
		return
	}
	change, err := h.clients.Update(c.Request.Context(), id, f)
	if err != nil {
		h.fail(c, "update client", err, change)
		return
	}
	ok(c, http.StatusOK, change)
}

// DeleteClient handles DELETE /api/clients/:id
func (h *Handlers) DeleteClient(c *gin.Context) {
	id, valid := h.paramID(c, "id")
	if !valid {
		return
	}
	change, err := h.clients.Delete(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "delete client", err, change)
		return
	}
	ok(c, http.StatusOK, change)
}

// ActivateClient handles POST /api/clients/:id/activate
func (h *Handlers) ActivateClient(c *gin.Context) {
	id, valid := h.paramID(c, "id")
	if !valid {
		return
	}
	change, err := h.clients.Activate(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "activate client", err, change)
		return
	}
	ok(c, http.StatusOK, change)
}

// DeactivateClient handles POST /api/clients/:id/deactivate
func (h *Handlers) DeactivateClient(c *gin.Context) {
	id, valid := h.paramID(c, "id")
	if !valid {
		return
	}
	change, err := h.clients.Deactivate(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "deactivate client", err, change)
		return
	}
	ok(c, http.StatusOK, change)
}

// ClientProjects handles GET /api/clients/:id/projects
func (h *Handlers) ClientProjects(c *gin.Context) {
	id, valid := h.paramID(c, "id")
	if !valid {
		return
	}
	view, err := h.clients.Projects(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "list client projects", err, nil)
		return
	}
	ok(c, http.StatusOK, view)
}

// ClientInvoices handles GET /api/clients/:id/invoices
func (h *Handlers) ClientInvoices(c *gin.Context) {
	id, valid := h.paramID(c, "id")
	if !valid {
		return
	}
	view, err := h.clients.Invoices(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "list client invoices", err, nil)
		return
	}
	ok(c, http.StatusOK, view)
}

// PayableInvoices handles GET /api/clients/:id/payable-invoices
func (h *Handlers) PayableInvoices(c *gin.Context) {
	id, valid := h.paramID(c, "id")
	if !valid {
		return
	}
	invoices, err := h.clients.PayableInvoices(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "list payable invoices", err, nil)
		return
	}
	ok(c, http.StatusOK, invoices)
}

// ClientPayments handles GET /api/clients/:id/payments
func (h *Handlers) ClientPayments(c *gin.Context) {
	id, valid := h.paramID(c, "id")
	if !valid {
		return
	}
	payments, err := h.payments.List(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "list client payments", err, nil)
		return
	}
	ok(c, http.StatusOK, payments)
}

// ClientHistory handles GET /api/clients/:id/history
func (h *Handlers) ClientHistory(c *gin.Context) {
	id, valid := h.paramID(c, "id")
	if !valid {
		return
	}
	view, err := h.history.Client(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "load client history", err, nil)
		return
	}
	ok(c, http.StatusOK, view)
}
