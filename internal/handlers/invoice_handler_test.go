package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"invoicing-service/internal/middleware"
	"invoicing-service/internal/models"
	"invoicing-service/internal/services"
	"invoicing-service/internal/xendit"
)

// MockInvoiceService is a mock implementation of services.InvoiceService.
type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) Preview(ctx context.Context, merchantID uuid.UUID, text string) (*models.InvoiceDraft, error) {
	args := m.Called(ctx, merchantID, text)
	r, _ := args.Get(0).(*models.InvoiceDraft)
	return r, args.Error(1)
}

func (m *MockInvoiceService) Confirm(ctx context.Context, merchantID uuid.UUID, draft models.InvoiceDraft) (*models.Invoice, error) {
	args := m.Called(ctx, merchantID, draft)
	r, _ := args.Get(0).(*models.Invoice)
	return r, args.Error(1)
}

func (m *MockInvoiceService) Get(ctx context.Context, merchantID, id uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, merchantID, id)
	r, _ := args.Get(0).(*models.Invoice)
	return r, args.Error(1)
}

func (m *MockInvoiceService) GetByNumber(ctx context.Context, merchantID uuid.UUID, number string) (*models.Invoice, error) {
	args := m.Called(ctx, merchantID, number)
	r, _ := args.Get(0).(*models.Invoice)
	return r, args.Error(1)
}

func (m *MockInvoiceService) List(ctx context.Context, filters models.InvoiceFilters) ([]models.Invoice, int64, error) {
	args := m.Called(ctx, filters)
	r, _ := args.Get(0).([]models.Invoice)
	return r, args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceService) Delete(ctx context.Context, merchantID, id uuid.UUID) error {
	return m.Called(ctx, merchantID, id).Error(0)
}

func (m *MockInvoiceService) UpdateStatus(ctx context.Context, merchantID, id uuid.UUID, status models.InvoiceStatus) (*models.StatusUpdateResult, error) {
	args := m.Called(ctx, merchantID, id, status)
	r, _ := args.Get(0).(*models.StatusUpdateResult)
	return r, args.Error(1)
}

func (m *MockInvoiceService) GetByCustomerToken(ctx context.Context, token, ip, userAgent string) (*models.Invoice, error) {
	args := m.Called(ctx, token, ip, userAgent)
	r, _ := args.Get(0).(*models.Invoice)
	return r, args.Error(1)
}

func (m *MockInvoiceService) GetByFinalPaymentToken(ctx context.Context, token string) (*models.Invoice, error) {
	args := m.Called(ctx, token)
	r, _ := args.Get(0).(*models.Invoice)
	return r, args.Error(1)
}

func (m *MockInvoiceService) SubmitPaymentConfirmation(ctx context.Context, token string, upload services.Upload, notes string) (*models.Invoice, error) {
	args := m.Called(ctx, token, upload, notes)
	r, _ := args.Get(0).(*models.Invoice)
	return r, args.Error(1)
}

func (m *MockInvoiceService) ReviewConfirmation(ctx context.Context, merchantID, id uuid.UUID, approve bool, notes string) (*models.StatusUpdateResult, error) {
	args := m.Called(ctx, merchantID, id, approve, notes)
	r, _ := args.Get(0).(*models.StatusUpdateResult)
	return r, args.Error(1)
}

func (m *MockInvoiceService) ConfirmDownPayment(ctx context.Context, merchantID, id uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, merchantID, id)
	r, _ := args.Get(0).(*models.Invoice)
	return r, args.Error(1)
}

func (m *MockInvoiceService) CreateCheckout(ctx context.Context, token string) (*xendit.HostedInvoice, error) {
	args := m.Called(ctx, token)
	r, _ := args.Get(0).(*xendit.HostedInvoice)
	return r, args.Error(1)
}

func (m *MockInvoiceService) VerifyWebhook(ctx context.Context, event *xendit.WebhookEvent, callbackToken string) error {
	return m.Called(ctx, event, callbackToken).Error(0)
}

func (m *MockInvoiceService) HandleGatewayWebhook(ctx context.Context, event *xendit.WebhookEvent) (*models.StatusUpdateResult, error) {
	args := m.Called(ctx, event)
	r, _ := args.Get(0).(*models.StatusUpdateResult)
	return r, args.Error(1)
}

// asMerchant injects a principal the way the auth middleware would.
func asMerchant(merchantID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextMerchantID, merchantID)
		c.Next()
	}
}

func invoiceRouter(svc *MockInvoiceService, merchantID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewInvoiceHandler(svc)
	r := gin.New()
	api := r.Group("/api", asMerchant(merchantID))
	api.GET("/invoices", h.List)
	api.PUT("/invoices/:id/status", h.UpdateStatus)
	api.PUT("/invoices/:id/payment-confirmations/approve", h.ApproveConfirmation)
	return r
}

func TestListPassesFiltersThrough(t *testing.T) {
	svc := new(MockInvoiceService)
	merchantID := uuid.New()
	r := invoiceRouter(svc, merchantID)

	svc.On("List", mock.Anything, mock.MatchedBy(func(f models.InvoiceFilters) bool {
		return f.MerchantID == merchantID &&
			f.Status != nil && *f.Status == models.InvoiceStatusSent &&
			f.DateFrom != nil && f.Page == 2
	})).Return([]models.Invoice{}, int64(0), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/invoices?status=sent&dateFrom=2026-01-01&page=2", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	svc := new(MockInvoiceService)
	r := invoiceRouter(svc, uuid.New())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/invoices?status=bogus", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc := new(MockInvoiceService)
	r := invoiceRouter(svc, uuid.New())

	body, _ := json.Marshal(gin.H{"status": "teleported"})
	req := httptest.NewRequest(http.MethodPut, "/api/invoices/"+uuid.NewString()+"/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateStatusReportsAdvisoryOrderError(t *testing.T) {
	svc := new(MockInvoiceService)
	merchantID := uuid.New()
	r := invoiceRouter(svc, merchantID)
	id := uuid.New()

	svc.On("UpdateStatus", mock.Anything, merchantID, id, models.InvoiceStatusPaid).
		Return(&models.StatusUpdateResult{
			Invoice:    &models.Invoice{ID: id, Status: models.InvoiceStatusPaid},
			OrderError: "orders are unavailable",
		}, nil)

	body, _ := json.Marshal(gin.H{"status": "paid"})
	req := httptest.NewRequest(http.MethodPut, "/api/invoices/"+id.String()+"/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "orders are unavailable", resp["orderError"])
	assert.Equal(t, false, resp["orderCreated"])
}

func TestApproveConfirmationWithoutBody(t *testing.T) {
	svc := new(MockInvoiceService)
	merchantID := uuid.New()
	r := invoiceRouter(svc, merchantID)
	id := uuid.New()

	svc.On("ReviewConfirmation", mock.Anything, merchantID, id, true, "").
		Return(&models.StatusUpdateResult{Invoice: &models.Invoice{ID: id}}, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/invoices/"+id.String()+"/payment-confirmations/approve", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}
