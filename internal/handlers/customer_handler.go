package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"invoicing-service/internal/middleware"
	"invoicing-service/internal/models"
	"invoicing-service/internal/services"
)

// CustomerHandler exposes the customer book. Most rows arrive through
// invoice extraction; these endpoints cover the manual edits.
type CustomerHandler struct {
	customers services.CustomerService
}

func NewCustomerHandler(customers services.CustomerService) *CustomerHandler {
	return &CustomerHandler{customers: customers}
}

// Create adds a customer by hand.
// POST /api/customers
func (h *CustomerHandler) Create(c *gin.Context) {
	var customer models.Customer
	if err := c.ShouldBindJSON(&customer); err != nil || customer.Name == "" {
		respondBadRequest(c, "name is required")
		return
	}
	customer.ID = uuid.Nil
	customer.MerchantID = middleware.MerchantID(c)

	if err := h.customers.Create(c.Request.Context(), &customer); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"customer": customer})
}

// Get returns one customer.
// GET /api/customers/:id
func (h *CustomerHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	customer, err := h.customers.Get(c.Request.Context(), middleware.MerchantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if customer == nil {
		respondNotFound(c, "customer")
		return
	}
	respond(c, http.StatusOK, gin.H{"customer": customer})
}

// Search lists customers with order aggregates attached.
// GET /api/customers?q=&page=&limit=
func (h *CustomerHandler) Search(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	customers, total, err := h.customers.Search(c.Request.Context(), middleware.MerchantID(c), c.Query("q"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"customers":  customers,
		"pagination": models.NewPagination(page, limit, total),
	})
}

// Update rewrites customer contact fields.
// PUT /api/customers/:id
func (h *CustomerHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var customer models.Customer
	if err := c.ShouldBindJSON(&customer); err != nil || customer.Name == "" {
		respondBadRequest(c, "name is required")
		return
	}
	customer.ID = id
	customer.MerchantID = middleware.MerchantID(c)

	if err := h.customers.Update(c.Request.Context(), &customer); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"customer": customer})
}

// Delete removes a customer. Invoices keep their snapshot fields, so
// history is unaffected.
// DELETE /api/customers/:id
func (h *CustomerHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.customers.Delete(c.Request.Context(), middleware.MerchantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "customer deleted"})
}
