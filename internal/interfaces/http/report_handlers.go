package http

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/billing-console/internal/application/port"
)

// AgingReport handles GET /api/reports/aging
func (h *Handlers) AgingReport(c *gin.Context) {
	view, err := h.reports.Aging(c.Request.Context())
	if err != nil {
		h.fail(c, "load aging report", err, nil)
		return
	}
	ok(c, http.StatusOK, view)
}

// OnTimeSummary handles GET /api/reports/on-time/summary
func (h *Handlers) OnTimeSummary(c *gin.Context) {
	view, err := h.reports.OnTimeSummary(c.Request.Context())
	if err != nil {
		h.fail(c, "load on-time summary", err, nil)
		return
	}
	ok(c, http.StatusOK, view)
}

// OnTimeTop handles GET /api/reports/on-time/top?n=
func (h *Handlers) OnTimeTop(c *gin.Context) {
	n, valid := queryInt(c, "n", 0)
	if !valid {
		return
	}
	view, err := h.reports.OnTimeTop(c.Request.Context(), n)
	if err != nil {
		h.fail(c, "load on-time ranking", err, nil)
		return
	}
	ok(c, http.StatusOK, view)
}

// MonthlyRevenue handles GET /api/reports/monthly-revenue
func (h *Handlers) MonthlyRevenue(c *gin.Context) {
	view, err := h.reports.MonthlyRevenue(c.Request.Context())
	if err != nil {
		h.fail(c, "load monthly revenue", err, nil)
		return
	}
	ok(c, http.StatusOK, view)
}

// TopClients handles GET /api/reports/top-clients
func (h *Handlers) TopClients(c *gin.Context) {
	view, err := h.reports.TopClients(c.Request.Context())
	if err != nil {
		h.fail(c, "load top clients", err, nil)
		return
	}
	ok(c, http.StatusOK, view)
}

// Portfolio handles GET /api/reports/portfolio
func (h *Handlers) Portfolio(c *gin.Context) {
	view, err := h.reports.Portfolio(c.Request.Context())
	if err != nil {
		h.fail(c, "load portfolio", err, nil)
		return
	}
	ok(c, http.StatusOK, view)
}

// ExportReports handles GET /api/reports/export.xlsx. The document is
// rendered in memory so that a failure can still be reported as JSON.
func (h *Handlers) ExportReports(c *gin.Context) {
	contentType, ext := h.reports.ExportFormat()
	if contentType == "" {
		c.JSON(http.StatusNotImplemented, Response{Success: false, Error: "report export is not configured"})
		return
	}

	var buf bytes.Buffer
	if err := h.reports.Export(c.Request.Context(), &buf); err != nil {
		h.fail(c, "export reports", err, nil)
		return
	}
	filename := "reports-" + time.Now().Format("20060102") + "." + ext
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// ListMutations handles GET /api/audit/mutations?kind=&client_id=&state=&since=&limit=&offset=
func (h *Handlers) ListMutations(c *gin.Context) {
	filter := port.MutationLogFilter{
		Kind:  c.Query("kind"),
		State: c.Query("state"),
	}
	if raw := c.Query("client_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			badRequest(c, "invalid client_id")
			return
		}
		filter.ClientID = id
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "invalid since, expected RFC 3339")
			return
		}
		filter.Since = since
	}
	var valid bool
	if filter.Limit, valid = queryInt(c, "limit", 0); !valid {
		return
	}
	if filter.Offset, valid = queryInt(c, "offset", 0); !valid {
		return
	}

	records, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "list mutations", err, nil)
		return
	}
	ok(c, http.StatusOK, records)
}

// GetMutation handles GET /api/audit/mutations/:mutation_id
func (h *Handlers) GetMutation(c *gin.Context) {
	record, err := h.audit.Get(c.Request.Context(), c.Param("mutation_id"))
	if err != nil {
		h.fail(c, "get mutation", err, nil)
		return
	}
	ok(c, http.StatusOK, record)
}

// MutationSummary handles GET /api/audit/mutations/summary
func (h *Handlers) MutationSummary(c *gin.Context) {
	summary, err := h.audit.Summary(c.Request.Context())
	if err != nil {
		h.fail(c, "summarize mutations", err, nil)
		return
	}
	ok(c, http.StatusOK, summary)
}
