package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/billing-console/internal/domain/entity"
	"github.com/garyjia/billing-console/internal/domain/form"
)

// ListProjects handles GET /api/projects?search=&client_id=
func (h *Handlers) ListProjects(c *gin.Context) {
	var clientID int64
	if raw := c.Query("client_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			badRequest(c, "invalid client_id")
			return
		}
		clientID = id
	}
	view, err := h.projects.List(c.Request.Context(), c.Query("search"), clientID)
	if err != nil {
		h.fail(c, "list projects", err, nil)
		return
	}
	ok(c, http.StatusOK, view)
}

// CreateProject handles POST /api/projects
func (h *Handlers) CreateProject(c *gin.Context) {
	var f form.ProjectForm
	if !h.bindJSON(c, &f) {
		return
	}
	change, err := h.projects.Create(c.Request.Context(), f)
	if err != nil {
		h.fail(c, "create project", err, change)
		return
	}
	ok(c, http.StatusCreated, change)
}

// UpdateProject handles PUT /api/projects/:id
func (h *Handlers) UpdateProject(c *gin.Context) {
	id, valid := h.paramID(c, "id")
	if !valid {
		return
	}
	var f form.ProjectForm
	if !h.bindJSON(c, &f) {
		return
	}
	change, err := h.projects.Update(c.Request.Context(), id, f)
	if err != nil {
		h.fail(c, "update project", err, change)
		return
	}
	ok(c, http.StatusOK, change)
}

// SetProjectStatus handles PATCH /api/projects/:id/status
func (h *Handlers) SetProjectStatus(c *gin.Context) {
	id, valid := h.paramID(c, "id")
	if !valid {
		return
	}
	var f form.StatusForm
	if !h.bindJSON(c, &f) {
		return
	}
	if verr := f.Validate(); verr != nil {
		h.fail(c, "change project status", verr, nil)
		return
	}
	change, err := h.projects.SetStatus(c.Request.Context(), id, f.Status)
	if err != nil {
		h.fail(c, "change project status", err, change)
		return
	}
	ok(c, http.StatusOK, change)
}

// DeleteProject handles DELETE /api/projects/:id
func (h *Handlers) DeleteProject(c *gin.Context) {
	id, valid := h.paramID(c, "id")
	if !valid {
		return
	}
	change, err := h.projects.Delete(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "delete project", err, change)
		return
	}
	ok(c, http.StatusOK, change)
}

// ListInvoices handles GET /api/invoices?search=
func (h *Handlers) ListInvoices(c *gin.Context) {
	view, err := h.invoices.List(c.Request.Context(), c.Query("search"))
	if err != nil {
		h.fail(c, "list invoices", err, nil)
		return
	}
	ok(c, http.StatusOK, view)
}

// CreateInvoice handles POST /api/invoices
func (h *Handlers) CreateInvoice(c *gin.Context) {
	var f form.InvoiceForm
	if !h.bindJSON(c, &f) {
		return
	}
	change, err := h.invoices.Create(c.Request.Context(), f)
	if err != nil {
		h.fail(c, "create invoice", err, change)
		return
	}
	ok(c, http.StatusCreated, change)
}

// PreviewInvoice handles POST /api/invoices/preview. The draft is not
// validated; the preview follows whatever the operator has typed so far.
func (h *Handlers) PreviewInvoice(c *gin.Context) {
	var f form.InvoiceForm
	if !h.bindJSON(c, &f) {
		return
	}
	ok(c, http.StatusOK, h.invoices.Preview(f))
}

// InvoicePDF handles GET /api/invoices/:id/pdf
func (h *Handlers) InvoicePDF(c *gin.Context) {
	id, valid := h.paramID(c, "id")
	if !valid {
		return
	}
	doc, err := h.invoices.PDF(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "download invoice", err, nil)
		return
	}
	c.Header("Content-Disposition", "inline; filename=invoice-"+strconv.FormatInt(id, 10)+".pdf")
	c.Header("X-Page-Count", strconv.Itoa(doc.Pages))
	c.Data(http.StatusOK, "application/pdf", doc.Content)
}

// SendInvoice handles POST /api/invoices/:id/send
func (h *Handlers) SendInvoice(c *gin.Context) {
	id, valid := h.paramID(c, "id")
	if !valid {
		return
	}
	change, err := h.invoices.Send(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "send invoice", err, change)
		return
	}
	ok(c, http.StatusOK, change)
}

// RegisterPayment handles POST /api/payments
func (h *Handlers) RegisterPayment(c *gin.Context) {
	var f form.PaymentForm
	if !h.bindJSON(c, &f) {
		return
	}
	change, err := h.payments.Register(c.Request.Context(), f)
	if err != nil {
		h.fail(c, "register payment", err, change)
		return
	}
	ok(c, http.StatusCreated, change)
}

// HistoryFeed handles GET /api/history?types=A,B&limit=
func (h *Handlers) HistoryFeed(c *gin.Context) {
	limit, valid := queryInt(c, "limit", 0)
	if !valid {
		return
	}
	var types []entity.HistoryType
	for _, raw := range strings.Split(c.Query("types"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			types = append(types, entity.HistoryType(strings.ToUpper(raw)))
		}
	}
	view, err := h.history.Feed(c.Request.Context(), types, limit)
	if err != nil {
		h.fail(c, "load history feed", err, nil)
		return
	}
	ok(c, http.StatusOK, view)
}
