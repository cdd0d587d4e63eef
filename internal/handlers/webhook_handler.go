package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"invoicing-service/internal/services"
	"invoicing-service/internal/xendit"
)

// maxWebhookBody bounds gateway callbacks; real payloads are tiny.
const maxWebhookBody = 1 << 20

// WebhookHandler receives Xendit payment callbacks. Authentication is
// the x-callback-token header, checked against the merchant's stored
// webhook token in constant time.
type WebhookHandler struct {
	invoices services.InvoiceService
}

func NewWebhookHandler(invoices services.InvoiceService) *WebhookHandler {
	return &WebhookHandler{invoices: invoices}
}

// HandleXendit verifies and applies one payment event.
// POST /api/xendit/webhook
func (h *WebhookHandler) HandleXendit(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondBadRequest(c, "unreadable webhook body")
		return
	}

	event, err := xendit.ParseWebhookEvent(body)
	if err != nil {
		respondBadRequest(c, "malformed webhook payload")
		return
	}

	if err := h.invoices.VerifyWebhook(c.Request.Context(), event, c.GetHeader("x-callback-token")); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.invoices.HandleGatewayWebhook(c.Request.Context(), event)
	if err != nil {
		respondError(c, err)
		return
	}
	if result == nil {
		// Non-terminal status; acknowledge so the gateway stops retrying.
		respond(c, http.StatusOK, gin.H{"message": "ignored"})
		return
	}

	logrus.WithFields(logrus.Fields{
		"external_id": event.ExternalID,
		"status":      event.Status,
	}).Info("xendit webhook applied")
	respond(c, http.StatusOK, gin.H{
		"invoice":      result.Invoice,
		"orderCreated": result.OrderCreated,
	})
}
