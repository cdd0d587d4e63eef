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

// ProductHandler exposes the merchant catalog.
type ProductHandler struct {
	products services.ProductService
}

func NewProductHandler(products services.ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

// Create adds a catalog entry.
// POST /api/products
func (h *ProductHandler) Create(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		respondBadRequest(c, "invalid product payload")
		return
	}
	product.ID = uuid.Nil
	product.MerchantID = middleware.MerchantID(c)

	if err := h.products.Create(c.Request.Context(), &product); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"product": product})
}

// Get returns one product.
// GET /api/products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	product, err := h.products.Get(c.Request.Context(), middleware.MerchantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"product": product})
}

// List returns the catalog with optional category/active filters.
// GET /api/products?category=&activeOnly=&page=&limit=
func (h *ProductHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	activeOnly := c.Query("activeOnly") == "true"

	products, total, err := h.products.List(c.Request.Context(), middleware.MerchantID(c),
		c.Query("category"), activeOnly, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"products":   products,
		"pagination": models.NewPagination(page, limit, total),
	})
}

// Search matches name or SKU.
// GET /api/products/search?q=
func (h *ProductHandler) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	products, err := h.products.Search(c.Request.Context(), middleware.MerchantID(c), c.Query("q"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"products": products})
}

// Update rewrites a product.
// PUT /api/products/:id
func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		respondBadRequest(c, "invalid product payload")
		return
	}
	product.ID = id
	product.MerchantID = middleware.MerchantID(c)

	if err := h.products.Update(c.Request.Context(), &product); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"product": product})
}

// Delete removes a product.
// DELETE /api/products/:id
func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.products.Delete(c.Request.Context(), middleware.MerchantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "product deleted"})
}
