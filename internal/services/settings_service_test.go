package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"invoicing-service/internal/encryption"
	"invoicing-service/internal/models"
)

type mockSettingsRepo struct {
	mock.Mock
}

func (m *mockSettingsRepo) GetSettings(ctx context.Context, merchantID uuid.UUID) (*models.BusinessSettings, error) {
	args := m.Called(ctx, merchantID)
	r, _ := args.Get(0).(*models.BusinessSettings)
	return r, args.Error(1)
}

func (m *mockSettingsRepo) UpsertSettings(ctx context.Context, settings *models.BusinessSettings) error {
	return m.Called(ctx, settings).Error(0)
}

func (m *mockSettingsRepo) GetPaymentMethods(ctx context.Context, merchantID uuid.UUID) ([]models.PaymentMethodConfig, error) {
	args := m.Called(ctx, merchantID)
	r, _ := args.Get(0).([]models.PaymentMethodConfig)
	return r, args.Error(1)
}

func (m *mockSettingsRepo) GetPaymentMethod(ctx context.Context, merchantID uuid.UUID, methodType models.PaymentMethodType) (*models.PaymentMethodConfig, error) {
	args := m.Called(ctx, merchantID, methodType)
	r, _ := args.Get(0).(*models.PaymentMethodConfig)
	return r, args.Error(1)
}

func (m *mockSettingsRepo) UpsertPaymentMethod(ctx context.Context, config *models.PaymentMethodConfig) error {
	return m.Called(ctx, config).Error(0)
}

func testVault(t *testing.T) *encryption.Vault {
	t.Helper()
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	vault, err := encryption.NewVault(context.Background(), encryption.Config{LocalKey: key})
	require.NoError(t, err)
	return vault
}

func TestDeriveBusinessCode(t *testing.T) {
	assert.Equal(t, "TMB", deriveBusinessCode("Toko Maju Bersama"))
	assert.Equal(t, "TMX", deriveBusinessCode("Toko Maju"))
	assert.Equal(t, "WAR", deriveBusinessCode("Warung"))
	assert.Equal(t, "LOL", deriveBusinessCode("Lollypop"))
	assert.Equal(t, "ABX", deriveBusinessCode("ab"))
	assert.Equal(t, "XXX", deriveBusinessCode(""))
	assert.Equal(t, "TSK", deriveBusinessCode("toko sepatu kulit asli"))
}

func TestUpdateSettingsDerivesCodeOnce(t *testing.T) {
	repo := new(mockSettingsRepo)
	svc := NewSettingsService(repo, testVault(t), nil, nil)
	merchantID := uuid.New()

	repo.On("GetSettings", mock.Anything, merchantID).Return(nil, nil).Once()
	repo.On("UpsertSettings", mock.Anything, mock.MatchedBy(func(s *models.BusinessSettings) bool {
		return s.BusinessCode == "TMB"
	})).Return(nil).Once()

	enabled := true
	_, err := svc.UpdateSettings(context.Background(), merchantID,
		models.BusinessSettingsRequest{TaxEnabled: &enabled}, "Toko Maju Bersama")
	require.NoError(t, err)

	// An existing code survives later renames.
	repo.On("GetSettings", mock.Anything, merchantID).Return(&models.BusinessSettings{
		MerchantID: merchantID, BusinessCode: "TMB",
	}, nil).Once()
	repo.On("UpsertSettings", mock.Anything, mock.MatchedBy(func(s *models.BusinessSettings) bool {
		return s.BusinessCode == "TMB"
	})).Return(nil).Once()

	_, err = svc.UpdateSettings(context.Background(), merchantID,
		models.BusinessSettingsRequest{TaxEnabled: &enabled}, "Different Name Now")
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestUpdateSettingsRejectsBadTaxRate(t *testing.T) {
	repo := new(mockSettingsRepo)
	svc := NewSettingsService(repo, testVault(t), nil, nil)
	merchantID := uuid.New()
	repo.On("GetSettings", mock.Anything, merchantID).Return(nil, nil)

	bad := 150.0
	_, err := svc.UpdateSettings(context.Background(), merchantID,
		models.BusinessSettingsRequest{TaxRate: &bad}, "Toko")
	assert.Error(t, err)
}

func TestUpsertPaymentMethodEncryptsSecrets(t *testing.T) {
	repo := new(mockSettingsRepo)
	vault := testVault(t)
	svc := NewSettingsService(repo, vault, nil, nil)
	merchantID := uuid.New()

	var stored *models.PaymentMethodConfig
	repo.On("UpsertPaymentMethod", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*models.PaymentMethodConfig)
		}).Return(nil)

	returned, err := svc.UpsertPaymentMethod(context.Background(), merchantID, models.PaymentMethodRequest{
		MethodType: models.PaymentMethodGateway,
		Enabled:    true,
		Config: map[string]interface{}{
			"secretKey": "xnd_development_abc123",
			"publicKey": "xnd_public_xyz",
		},
		Channels: []string{"BCA", "QRIS"},
	})
	require.NoError(t, err)

	var storedConfig map[string]interface{}
	require.NoError(t, json.Unmarshal(stored.Config, &storedConfig))
	sealed := storedConfig["secretKey"].(string)
	assert.True(t, encryption.IsEncrypted(sealed))
	assert.Equal(t, "xnd_public_xyz", storedConfig["publicKey"])

	plain, err := vault.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "xnd_development_abc123", plain)

	// The merchant-facing response carries the plaintext back; only
	// the stored row is sealed.
	var returnedConfig map[string]interface{}
	require.NoError(t, json.Unmarshal(returned.Config, &returnedConfig))
	assert.Equal(t, "xnd_development_abc123", returnedConfig["secretKey"])
}

func TestUpsertPaymentMethodSkipsAlreadyEncrypted(t *testing.T) {
	repo := new(mockSettingsRepo)
	vault := testVault(t)
	svc := NewSettingsService(repo, vault, nil, nil)
	merchantID := uuid.New()

	sealed, err := vault.Encrypt("original-secret")
	require.NoError(t, err)

	var stored *models.PaymentMethodConfig
	repo.On("UpsertPaymentMethod", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*models.PaymentMethodConfig)
		}).Return(nil)

	_, err = svc.UpsertPaymentMethod(context.Background(), merchantID, models.PaymentMethodRequest{
		MethodType: models.PaymentMethodGateway,
		Config:     map[string]interface{}{"secretKey": sealed},
	})
	require.NoError(t, err)

	var storedConfig map[string]interface{}
	require.NoError(t, json.Unmarshal(stored.Config, &storedConfig))
	// Stored value is the same envelope, not an envelope of an envelope.
	assert.Equal(t, sealed, storedConfig["secretKey"])
	plain, err := vault.Decrypt(storedConfig["secretKey"].(string))
	require.NoError(t, err)
	assert.Equal(t, "original-secret", plain)
}

func TestGatewaySecretRequiresEnabledGateway(t *testing.T) {
	repo := new(mockSettingsRepo)
	svc := NewSettingsService(repo, testVault(t), nil, nil)
	merchantID := uuid.New()

	repo.On("GetPaymentMethod", mock.Anything, merchantID, models.PaymentMethodGateway).
		Return(nil, nil)

	_, err := svc.GatewaySecret(context.Background(), merchantID, "secretKey")
	assert.Error(t, err)
}
