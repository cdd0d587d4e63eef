package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"invoicing-service/internal/middleware"
	"invoicing-service/internal/models"
	"invoicing-service/internal/services"
)

// OrderHandler exposes the orders derived from paid invoices.
type OrderHandler struct {
	orders services.OrderService
}

func NewOrderHandler(orders services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// List returns the merchant's orders.
// GET /api/orders?status=&dateFrom=&dateTo=&page=&limit=
func (h *OrderHandler) List(c *gin.Context) {
	filters := models.OrderFilters{MerchantID: middleware.MerchantID(c)}
	filters.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filters.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	if raw := c.Query("status"); raw != "" {
		status := models.OrderStatus(raw)
		if !status.Valid() {
			respondBadRequest(c, "unknown status "+raw)
			return
		}
		filters.Status = &status
	}
	var err error
	if filters.DateFrom, err = parseDateQuery(c.Query("dateFrom")); err != nil {
		respondBadRequest(c, "dateFrom must be YYYY-MM-DD or RFC3339")
		return
	}
	if filters.DateTo, err = parseDateQuery(c.Query("dateTo")); err != nil {
		respondBadRequest(c, "dateTo must be YYYY-MM-DD or RFC3339")
		return
	}

	orders, total, err := h.orders.List(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"orders":     orders,
		"pagination": models.NewPagination(filters.Page, filters.Limit, total),
	})
}

// Get returns one order.
// GET /api/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.Get(c.Request.Context(), middleware.MerchantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if order == nil {
		respondNotFound(c, "order")
		return
	}
	respond(c, http.StatusOK, gin.H{"order": order})
}

type orderStatusRequest struct {
	Status         string `json:"status" binding:"required"`
	TrackingNumber string `json:"trackingNumber"`
}

// UpdateStatus advances fulfilment; shipped requires a tracking number
// to be useful but does not demand one.
// PUT /api/orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req orderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "status is required")
		return
	}
	status := models.OrderStatus(req.Status)
	if !status.Valid() {
		respondBadRequest(c, "unknown status "+req.Status)
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), middleware.MerchantID(c), id, status, req.TrackingNumber)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"order": order})
}

// SyncFromInvoices backfills orders for paid invoices that missed their
// auto-order, e.g. after a transient failure.
// POST /api/orders/sync-from-invoices
func (h *OrderHandler) SyncFromInvoices(c *gin.Context) {
	result, err := h.orders.SyncPaidInvoicesToOrders(c.Request.Context(), middleware.MerchantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"result": result})
}
