package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// NotificationClient delivers merchant and customer email through the
// notification-service API. All sends are best-effort from the caller's
// point of view; a down mail pipeline never blocks an invoice.
type NotificationClient interface {
	SendInvoice(ctx context.Context, n *InvoiceNotification) error
	SendFinalPaymentRequest(ctx context.Context, n *InvoiceNotification) error
	SendPaymentReminder(ctx context.Context, n *InvoiceNotification) error
	SendPasswordReset(ctx context.Context, email, token string) error
	SendEmailVerification(ctx context.Context, email, token string) error
}

type notificationClient struct {
	baseURL    string
	appBaseURL string
	httpClient *http.Client
	log        *logrus.Entry
}

// NewNotificationClient reads NOTIFICATION_SERVICE_URL and APP_BASE_URL.
func NewNotificationClient() NotificationClient {
	baseURL := os.Getenv("NOTIFICATION_SERVICE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8090"
	}
	appBaseURL := os.Getenv("APP_BASE_URL")
	if appBaseURL == "" {
		appBaseURL = "http://localhost:3000"
	}

	return &notificationClient{
		baseURL:    baseURL,
		appBaseURL: appBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        logrus.WithField("component", "notification-client"),
	}
}

// sendNotificationRequest is the notification-service API body.
type sendNotificationRequest struct {
	Channel        string                 `json:"channel"`
	RecipientEmail string                 `json:"recipientEmail"`
	Subject        string                 `json:"subject"`
	TemplateName   string                 `json:"templateName,omitempty"`
	Variables      map[string]interface{} `json:"variables,omitempty"`
}

// InvoiceNotification carries the fields the invoice email templates use.
type InvoiceNotification struct {
	MerchantID    string
	InvoiceNumber string
	CustomerName  string
	CustomerEmail string
	BusinessName  string
	Currency      string
	AmountDue     string
	DueDate       string
	ViewURL       string
	PaymentURL    string
}

func (c *notificationClient) SendInvoice(ctx context.Context, n *InvoiceNotification) error {
	if n == nil || n.CustomerEmail == "" {
		c.log.Debug("skipping invoice email, no recipient")
		return nil
	}

	req := c.buildInvoiceRequest(n)
	req.Subject = fmt.Sprintf("Invoice %s from %s", n.InvoiceNumber, n.BusinessName)
	req.TemplateName = "invoice_customer"

	return c.send(ctx, n.MerchantID, req)
}

func (c *notificationClient) SendFinalPaymentRequest(ctx context.Context, n *InvoiceNotification) error {
	if n == nil || n.CustomerEmail == "" {
		c.log.Debug("skipping final payment email, no recipient")
		return nil
	}

	req := c.buildInvoiceRequest(n)
	req.Subject = fmt.Sprintf("Remaining Balance Due - Invoice %s", n.InvoiceNumber)
	req.TemplateName = "invoice_final_payment"

	return c.send(ctx, n.MerchantID, req)
}

func (c *notificationClient) SendPaymentReminder(ctx context.Context, n *InvoiceNotification) error {
	if n == nil || n.CustomerEmail == "" {
		c.log.Debug("skipping reminder email, no recipient")
		return nil
	}

	req := c.buildInvoiceRequest(n)
	req.Subject = fmt.Sprintf("Payment Reminder - Invoice %s", n.InvoiceNumber)
	req.TemplateName = "invoice_reminder"

	return c.send(ctx, n.MerchantID, req)
}

func (c *notificationClient) SendPasswordReset(ctx context.Context, email, token string) error {
	req := sendNotificationRequest{
		Channel:        "EMAIL",
		RecipientEmail: email,
		Subject:        "Reset your password",
		TemplateName:   "merchant_password_reset",
		Variables: map[string]interface{}{
			"resetUrl": fmt.Sprintf("%s/reset-password?token=%s", c.appBaseURL, token),
		},
	}
	return c.send(ctx, "", req)
}

func (c *notificationClient) SendEmailVerification(ctx context.Context, email, token string) error {
	req := sendNotificationRequest{
		Channel:        "EMAIL",
		RecipientEmail: email,
		Subject:        "Verify your email",
		TemplateName:   "merchant_email_verification",
		Variables: map[string]interface{}{
			"verifyUrl": fmt.Sprintf("%s/verify-email?token=%s", c.appBaseURL, token),
		},
	}
	return c.send(ctx, "", req)
}

func (c *notificationClient) buildInvoiceRequest(n *InvoiceNotification) sendNotificationRequest {
	return sendNotificationRequest{
		Channel:        "EMAIL",
		RecipientEmail: n.CustomerEmail,
		Variables: map[string]interface{}{
			"invoiceNumber": n.InvoiceNumber,
			"customerName":  n.CustomerName,
			"businessName":  n.BusinessName,
			"currency":      n.Currency,
			"amountDue":     n.AmountDue,
			"dueDate":       n.DueDate,
			"viewUrl":       n.ViewURL,
			"paymentUrl":    n.PaymentURL,
		},
	}
}

func (c *notificationClient) send(ctx context.Context, merchantID string, req sendNotificationRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal notification request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/notifications/send", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create notification request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if merchantID != "" {
		httpReq.Header.Set("X-Merchant-ID", merchantID)
	}
	httpReq.Header.Set("X-Internal-Service", "invoicing-service")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification-service returned status %d", resp.StatusCode)
	}
	return nil
}
