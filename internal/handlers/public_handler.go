package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"invoicing-service/internal/services"
)

// maxProofUpload caps the multipart read; the service enforces the real
// 10 MiB limit with a proper error.
const maxProofUpload = 11 << 20

// PublicHandler serves the customer-facing routes. There is no session;
// possession of an invoice token is the only credential.
type PublicHandler struct {
	invoices services.InvoiceService
	settings services.SettingsService
}

func NewPublicHandler(invoices services.InvoiceService, settings services.SettingsService) *PublicHandler {
	return &PublicHandler{invoices: invoices, settings: settings}
}

// CustomerInvoice renders the customer portal view, enriched with the
// merchant's business profile. Every hit is access-logged.
// GET /api/customer/invoice/:token
func (h *PublicHandler) CustomerInvoice(c *gin.Context) {
	invoice, err := h.invoices.GetByCustomerToken(c.Request.Context(), c.Param("token"), c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondError(c, err)
		return
	}
	if invoice == nil {
		respondNotFound(c, "invoice")
		return
	}

	business, err := h.settings.GetSettings(c.Request.Context(), invoice.MerchantID)
	if err != nil {
		respondError(c, err)
		return
	}
	payload := gin.H{
		"invoice":   invoice,
		"business":  business,
		"amountDue": services.AmountDue(invoice),
	}
	if branding := business.Branding(); branding != nil {
		payload["branding"] = branding
	}
	respond(c, http.StatusOK, payload)
}

// FinalPayment renders the final-payment summary for a down-payment
// invoice.
// GET /api/final-payment/:token
func (h *PublicHandler) FinalPayment(c *gin.Context) {
	invoice, err := h.invoices.GetByFinalPaymentToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	if invoice == nil {
		respondNotFound(c, "invoice")
		return
	}
	respond(c, http.StatusOK, gin.H{
		"invoice":   invoice,
		"amountDue": services.AmountDue(invoice),
	})
}

// SubmitConfirmation uploads a payment proof against the customer
// token carried in the form.
// POST /api/invoices/:id/payment-confirmation
func (h *PublicHandler) SubmitConfirmation(c *gin.Context) {
	token := c.PostForm("token")
	if token == "" {
		token = c.Query("token")
	}
	h.submitConfirmation(c, token)
}

// SubmitFinalConfirmation uploads the final-payment proof; the token
// rides in the path.
// POST /api/final-payment/:token/payment-confirmation
func (h *PublicHandler) SubmitFinalConfirmation(c *gin.Context) {
	h.submitConfirmation(c, c.Param("token"))
}

func (h *PublicHandler) submitConfirmation(c *gin.Context, token string) {
	if token == "" {
		respondBadRequest(c, "token is required")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondBadRequest(c, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxProofUpload))
	if err != nil {
		respondError(c, err)
		return
	}

	invoice, err := h.invoices.SubmitPaymentConfirmation(c.Request.Context(), token, services.Upload{
		Filename: header.Filename,
		Content:  content,
	}, c.PostForm("notes"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"invoice": invoice})
}

// CreateCheckout opens a hosted gateway checkout for whatever is due on
// the invoice the token resolves to.
// POST /api/checkout/:token
func (h *PublicHandler) CreateCheckout(c *gin.Context) {
	hosted, err := h.invoices.CreateCheckout(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"checkout": hosted})
}
