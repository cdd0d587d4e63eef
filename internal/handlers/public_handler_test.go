package handlers

import (
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

	"invoicing-service/internal/models"
)

// stubSettingsService serves a fixed settings row to the portal routes.
type stubSettingsService struct {
	settings *models.BusinessSettings
}

func (s *stubSettingsService) GetSettings(ctx context.Context, merchantID uuid.UUID) (*models.BusinessSettings, error) {
	return s.settings, nil
}

func (s *stubSettingsService) UpdateSettings(ctx context.Context, merchantID uuid.UUID, req models.BusinessSettingsRequest, businessName string) (*models.BusinessSettings, error) {
	return nil, nil
}

func (s *stubSettingsService) UploadLogo(ctx context.Context, merchantID uuid.UUID, filename string, content []byte, businessName string) (*models.BusinessSettings, error) {
	return nil, nil
}

func (s *stubSettingsService) DeleteLogo(ctx context.Context, merchantID uuid.UUID) (*models.BusinessSettings, error) {
	return nil, nil
}

func (s *stubSettingsService) GetPaymentMethods(ctx context.Context, merchantID uuid.UUID) ([]models.PaymentMethodConfig, error) {
	return nil, nil
}

func (s *stubSettingsService) UpsertPaymentMethod(ctx context.Context, merchantID uuid.UUID, req models.PaymentMethodRequest) (*models.PaymentMethodConfig, error) {
	return nil, nil
}

func (s *stubSettingsService) TestGatewayConnection(ctx context.Context, merchantID uuid.UUID) error {
	return nil
}

func (s *stubSettingsService) GatewaySecret(ctx context.Context, merchantID uuid.UUID, key string) (string, error) {
	return "", nil
}

func publicRouter(svc *MockInvoiceService, settings *models.BusinessSettings) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPublicHandler(svc, &stubSettingsService{settings: settings})
	r := gin.New()
	r.GET("/api/customer/invoice/:token", h.CustomerInvoice)
	return r
}

func getPortal(r *gin.Engine, token string) map[string]interface{} {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/customer/invoice/"+token, nil))
	if w.Code != http.StatusOK {
		return map[string]interface{}{"status": w.Code}
	}
	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func TestCustomerInvoiceCarriesBrandingWhenPremium(t *testing.T) {
	svc := new(MockInvoiceService)
	merchantID := uuid.New()
	svc.On("GetByCustomerToken", mock.Anything, "inv_tok", mock.Anything, mock.Anything).
		Return(&models.Invoice{ID: uuid.New(), MerchantID: merchantID, GrandTotal: 5000}, nil)

	r := publicRouter(svc, &models.BusinessSettings{
		MerchantID:       merchantID,
		PremiumActive:    true,
		CustomHeaderText: "Terima kasih",
	})

	resp := getPortal(r, "inv_tok")
	branding, ok := resp["branding"].(map[string]interface{})
	require.True(t, ok, "premium merchants expose the branding block")
	assert.Equal(t, "Terima kasih", branding["customHeaderText"])
}

func TestCustomerInvoiceHidesBrandingWithoutPremium(t *testing.T) {
	svc := new(MockInvoiceService)
	merchantID := uuid.New()
	svc.On("GetByCustomerToken", mock.Anything, "inv_tok", mock.Anything, mock.Anything).
		Return(&models.Invoice{ID: uuid.New(), MerchantID: merchantID, GrandTotal: 5000}, nil)

	r := publicRouter(svc, &models.BusinessSettings{MerchantID: merchantID, CustomHeaderText: "Terima kasih"})

	resp := getPortal(r, "inv_tok")
	_, ok := resp["branding"]
	assert.False(t, ok)
}
