package xendit

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"invoicing-service/internal/models"
)

const defaultBaseURL = "https://api.xendit.co"

// Client is a minimal Xendit invoice-API adapter. Each merchant brings
// their own secret key, so a Client is built per request from the
// merchant's decrypted gateway config rather than held as a singleton.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient builds an adapter for one merchant's credentials.
func NewClient(secretKey string) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// NewClientWithBaseURL is for tests pointing at a stub server.
func NewClientWithBaseURL(secretKey, baseURL string) *Client {
	c := NewClient(secretKey)
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// HostedInvoice is the hosted checkout page Xendit creates.
type HostedInvoice struct {
	ID         string  `json:"id"`
	ExternalID string  `json:"external_id"`
	InvoiceURL string  `json:"invoice_url"`
	Status     string  `json:"status"`
	Amount     float64 `json:"amount"`
	ExpiryDate string  `json:"expiry_date,omitempty"`
}

// CreateInvoiceParams describes the checkout page to create.
type CreateInvoiceParams struct {
	InvoiceNumber  string
	Amount         float64
	Currency       string
	PayerEmail     string
	Description    string
	SuccessURL     string
	FailureURL     string
	PaymentMethods []string
}

// ExternalID builds the Xendit external_id for an invoice:
// the invoice number plus a millisecond timestamp so retried creates
// never collide on Xendit's side.
func ExternalID(invoiceNumber string) string {
	return fmt.Sprintf("%s-%d", invoiceNumber, time.Now().UnixMilli())
}

// InvoiceNumberFromExternalID recovers the invoice number from an
// external_id. Invoice numbers are three dash-separated segments
// (PREFIX-DATE-SUFFIX); everything after is the timestamp.
func InvoiceNumberFromExternalID(externalID string) string {
	parts := strings.Split(externalID, "-")
	if len(parts) < 3 {
		return externalID
	}
	return strings.Join(parts[:3], "-")
}

// TestConnection verifies the secret key by fetching the account balance.
func (c *Client) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/balance", nil)
	if err != nil {
		return fmt.Errorf("create balance request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.NewUpstreamError("xendit")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return models.NewValidationError("xendit secret key was rejected")
	case resp.StatusCode >= 400:
		return models.NewUpstreamError("xendit")
	}
	return nil
}

// CreateHostedInvoice creates a hosted checkout page for the amount due.
func (c *Client) CreateHostedInvoice(ctx context.Context, params CreateInvoiceParams) (*HostedInvoice, error) {
	payload := map[string]interface{}{
		"external_id": ExternalID(params.InvoiceNumber),
		"amount":      params.Amount,
		"currency":    params.Currency,
		"description": params.Description,
	}
	if params.PayerEmail != "" {
		payload["payer_email"] = params.PayerEmail
	}
	if params.SuccessURL != "" {
		payload["success_redirect_url"] = params.SuccessURL
	}
	if params.FailureURL != "" {
		payload["failure_redirect_url"] = params.FailureURL
	}
	if len(params.PaymentMethods) > 0 {
		payload["payment_methods"] = params.PaymentMethods
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal invoice payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v2/invoices", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create invoice request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, models.NewUpstreamError("xendit")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read invoice response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("xendit returned status %d: %s", resp.StatusCode, raw)
	}

	var invoice HostedInvoice
	if err := json.Unmarshal(raw, &invoice); err != nil {
		return nil, fmt.Errorf("decode invoice response: %w", err)
	}
	return &invoice, nil
}

// authorize sets Xendit's basic auth: the secret key as username with an
// empty password.
func (c *Client) authorize(req *http.Request) {
	token := base64.StdEncoding.EncodeToString([]byte(c.secretKey + ":"))
	req.Header.Set("Authorization", "Basic "+token)
}

// WebhookEvent is the payload Xendit posts when an invoice changes state.
type WebhookEvent struct {
	ID         string  `json:"id"`
	ExternalID string  `json:"external_id"`
	Status     string  `json:"status"`
	Amount     float64 `json:"amount"`
	PaidAmount float64 `json:"paid_amount"`
	PaidAt     string  `json:"paid_at,omitempty"`
}

// InvoiceNumber recovers the internal invoice number from the event.
func (e *WebhookEvent) InvoiceNumber() string {
	return InvoiceNumberFromExternalID(e.ExternalID)
}

// IsPaid reports whether the event settles the checkout page.
func (e *WebhookEvent) IsPaid() bool {
	return e.Status == "PAID" || e.Status == "SETTLED"
}

// VerifyWebhookToken compares the x-callback-token header against the
// merchant's configured verification token in constant time.
func VerifyWebhookToken(header, expected string) bool {
	if expected == "" || header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(expected)) == 1
}

// ParseWebhookEvent decodes and minimally validates a webhook body.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, models.NewValidationError("malformed webhook payload")
	}
	if event.ExternalID == "" || event.Status == "" {
		return nil, models.NewValidationError("webhook payload missing external_id or status")
	}
	return &event, nil
}
