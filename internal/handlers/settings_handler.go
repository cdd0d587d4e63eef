package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"invoicing-service/internal/middleware"
	"invoicing-service/internal/models"
	"invoicing-service/internal/services"
)

// maxLogoSize bounds logo uploads before they reach blob storage.
const maxLogoSize = 5 << 20

// SettingsHandler exposes business settings, branding assets and
// payment-method configuration.
type SettingsHandler struct {
	settings services.SettingsService
	auth     services.AuthService
}

func NewSettingsHandler(settings services.SettingsService, auth services.AuthService) *SettingsHandler {
	return &SettingsHandler{settings: settings, auth: auth}
}

// GetSettings returns the business settings, zero-value defaults when
// nothing was saved yet.
// GET /api/business/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, err := h.settings.GetSettings(c.Request.Context(), middleware.MerchantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"settings": settings})
}

// UpdateSettings patches the business settings.
// POST /api/business/settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req models.BusinessSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid settings payload")
		return
	}

	merchantID := middleware.MerchantID(c)
	profile, err := h.auth.GetProfile(c.Request.Context(), merchantID)
	if err != nil {
		respondError(c, err)
		return
	}

	settings, err := h.settings.UpdateSettings(c.Request.Context(), merchantID, req, profile.BusinessName)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"settings": settings})
}

// UploadLogo replaces the business logo; the previous blob is deleted
// asynchronously.
// POST /api/upload-business-logo
func (h *SettingsHandler) UploadLogo(c *gin.Context) {
	file, header, err := c.Request.FormFile("logo")
	if err != nil {
		respondBadRequest(c, "logo file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxLogoSize+1))
	if err != nil {
		respondError(c, err)
		return
	}
	if len(content) > maxLogoSize {
		respondBadRequest(c, "logo must be 5 MB or smaller")
		return
	}

	merchantID := middleware.MerchantID(c)
	profile, err := h.auth.GetProfile(c.Request.Context(), merchantID)
	if err != nil {
		respondError(c, err)
		return
	}

	settings, err := h.settings.UploadLogo(c.Request.Context(), merchantID, header.Filename, content, profile.BusinessName)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"settings": settings})
}

// DeleteLogo drops the business logo.
// DELETE /api/remove-business-logo
func (h *SettingsHandler) DeleteLogo(c *gin.Context) {
	settings, err := h.settings.DeleteLogo(c.Request.Context(), middleware.MerchantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"settings": settings})
}

// GetPaymentMethods returns the payment-method configurations with
// secrets decrypted for the owning merchant.
// GET /api/payment-methods
func (h *SettingsHandler) GetPaymentMethods(c *gin.Context) {
	methods, err := h.settings.GetPaymentMethods(c.Request.Context(), middleware.MerchantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"paymentMethods": methods})
}

// UpsertPaymentMethod writes one payment-method configuration; gateway
// secrets are encrypted before they reach storage.
// POST /api/payment-methods
func (h *SettingsHandler) UpsertPaymentMethod(c *gin.Context) {
	var req models.PaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "methodType is required")
		return
	}
	method, err := h.settings.UpsertPaymentMethod(c.Request.Context(), middleware.MerchantID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"paymentMethod": method})
}

// TestGateway pings the payment gateway with the stored credentials.
// POST /api/payment-methods/test
func (h *SettingsHandler) TestGateway(c *gin.Context) {
	if err := h.settings.TestGatewayConnection(c.Request.Context(), middleware.MerchantID(c)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "gateway connection ok"})
}
