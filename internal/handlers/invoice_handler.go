package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"invoicing-service/internal/middleware"
	"invoicing-service/internal/models"
	"invoicing-service/internal/services"
)

// InvoiceHandler exposes the merchant-facing invoice lifecycle. The
// customer-facing token routes live in PublicHandler.
type InvoiceHandler struct {
	invoices services.InvoiceService
}

func NewInvoiceHandler(invoices services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// Preview extracts an invoice draft from free-form text. Nothing is
// persisted.
// POST /api/preview-invoice
func (h *InvoiceHandler) Preview(c *gin.Context) {
	var req models.PreviewInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "text is required")
		return
	}
	draft, err := h.invoices.Preview(c.Request.Context(), middleware.MerchantID(c), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"draft": draft})
}

// Confirm persists a previewed draft, or updates an existing invoice
// when the draft carries an id.
// POST /api/confirm-invoice
func (h *InvoiceHandler) Confirm(c *gin.Context) {
	var draft models.InvoiceDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		respondBadRequest(c, "customerName and items are required")
		return
	}
	invoice, err := h.invoices.Confirm(c.Request.Context(), middleware.MerchantID(c), draft)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if draft.ID != nil {
		status = http.StatusOK
	}
	respond(c, status, gin.H{"invoice": invoice})
}

// List returns the merchant's invoices, newest first.
// GET /api/invoices?status=&customerEmail=&dateFrom=&dateTo=&page=&limit=
func (h *InvoiceHandler) List(c *gin.Context) {
	filters, err := parseInvoiceFilters(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	invoices, total, err := h.invoices.List(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"invoices":   invoices,
		"pagination": models.NewPagination(filters.Page, filters.Limit, total),
	})
}

func parseInvoiceFilters(c *gin.Context) (models.InvoiceFilters, error) {
	filters := models.InvoiceFilters{MerchantID: middleware.MerchantID(c)}
	filters.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filters.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	if raw := c.Query("status"); raw != "" {
		status := models.InvoiceStatus(raw)
		if !status.Valid() {
			return filters, models.NewValidationError("unknown status " + raw)
		}
		filters.Status = &status
	}
	if email := c.Query("customerEmail"); email != "" {
		filters.CustomerEmail = &email
	}
	var err error
	if filters.DateFrom, err = parseDateQuery(c.Query("dateFrom")); err != nil {
		return filters, models.NewValidationError("dateFrom must be YYYY-MM-DD or RFC3339")
	}
	if filters.DateTo, err = parseDateQuery(c.Query("dateTo")); err != nil {
		return filters, models.NewValidationError("dateTo must be YYYY-MM-DD or RFC3339")
	}
	return filters, nil
}

func parseDateQuery(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Get returns one invoice.
// GET /api/invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	invoice, err := h.invoices.Get(c.Request.Context(), middleware.MerchantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if invoice == nil {
		respondNotFound(c, "invoice")
		return
	}
	respond(c, http.StatusOK, gin.H{"invoice": invoice})
}

// GetByNumber looks an invoice up by its display number.
// GET /api/invoices/number/:number
func (h *InvoiceHandler) GetByNumber(c *gin.Context) {
	invoice, err := h.invoices.GetByNumber(c.Request.Context(), middleware.MerchantID(c), c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}
	if invoice == nil {
		respondNotFound(c, "invoice")
		return
	}
	respond(c, http.StatusOK, gin.H{"invoice": invoice})
}

// UpdateStatus invokes a lifecycle transition by name. Marking paid
// also reports the advisory auto-order outcome.
// PUT /api/invoices/:id/status
func (h *InvoiceHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req models.StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "status is required")
		return
	}
	status := models.InvoiceStatus(req.Status)
	if !status.Valid() {
		respondBadRequest(c, "unknown status "+req.Status)
		return
	}

	result, err := h.invoices.UpdateStatus(c.Request.Context(), middleware.MerchantID(c), id, status)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"invoice":      result.Invoice,
		"orderCreated": result.OrderCreated,
		"order":        result.Order,
		"orderError":   result.OrderError,
	})
}

// Delete removes an invoice. Settled invoices refuse.
// DELETE /api/invoices/:id
func (h *InvoiceHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.invoices.Delete(c.Request.Context(), middleware.MerchantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "invoice deleted"})
}

// ApproveConfirmation accepts an uploaded payment proof and advances
// the lifecycle.
// PUT /api/invoices/:id/payment-confirmations/approve
func (h *InvoiceHandler) ApproveConfirmation(c *gin.Context) {
	h.review(c, true)
}

// RejectConfirmation declines an uploaded payment proof.
// PUT /api/invoices/:id/payment-confirmations/reject
func (h *InvoiceHandler) RejectConfirmation(c *gin.Context) {
	h.review(c, false)
}

func (h *InvoiceHandler) review(c *gin.Context, approve bool) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req models.ReviewRequest
	_ = c.ShouldBindJSON(&req) // notes are optional

	result, err := h.invoices.ReviewConfirmation(c.Request.Context(), middleware.MerchantID(c), id, approve, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"invoice":      result.Invoice,
		"orderCreated": result.OrderCreated,
		"order":        result.Order,
		"orderError":   result.OrderError,
	})
}

// ConfirmDownPayment records the first tranche as received without an
// uploaded proof.
// POST /api/invoices/:id/confirm-down-payment
func (h *InvoiceHandler) ConfirmDownPayment(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	invoice, err := h.invoices.ConfirmDownPayment(c.Request.Context(), middleware.MerchantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"invoice": invoice})
}
