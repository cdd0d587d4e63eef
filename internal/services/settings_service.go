package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"invoicing-service/internal/clients"
	"invoicing-service/internal/encryption"
	"invoicing-service/internal/models"
	"invoicing-service/internal/queue"
	"invoicing-service/internal/repository"
	"invoicing-service/internal/xendit"
)

// gatewaySecretFields are the payment-method config keys encrypted at
// rest. Everything else in the config blob is display data.
var gatewaySecretFields = []string{"secretKey", "webhookToken", "apiKey"}

const logoFolder = "merchant-logos"

// SettingsService owns the business profile, branding assets and
// payment-method configuration of a merchant.
type SettingsService interface {
	GetSettings(ctx context.Context, merchantID uuid.UUID) (*models.BusinessSettings, error)
	UpdateSettings(ctx context.Context, merchantID uuid.UUID, req models.BusinessSettingsRequest, businessName string) (*models.BusinessSettings, error)
	UploadLogo(ctx context.Context, merchantID uuid.UUID, filename string, content []byte, businessName string) (*models.BusinessSettings, error)
	DeleteLogo(ctx context.Context, merchantID uuid.UUID) (*models.BusinessSettings, error)
	GetPaymentMethods(ctx context.Context, merchantID uuid.UUID) ([]models.PaymentMethodConfig, error)
	UpsertPaymentMethod(ctx context.Context, merchantID uuid.UUID, req models.PaymentMethodRequest) (*models.PaymentMethodConfig, error)
	TestGatewayConnection(ctx context.Context, merchantID uuid.UUID) error
	GatewaySecret(ctx context.Context, merchantID uuid.UUID, key string) (string, error)
}

type settingsService struct {
	repo  repository.SettingsRepository
	vault *encryption.Vault
	blobs clients.BlobClient
	tasks *queue.Queue
	log   *logrus.Entry
}

func NewSettingsService(repo repository.SettingsRepository, vault *encryption.Vault, blobs clients.BlobClient, tasks *queue.Queue) SettingsService {
	return &settingsService{
		repo:  repo,
		vault: vault,
		blobs: blobs,
		tasks: tasks,
		log:   logrus.WithField("component", "settings"),
	}
}

// deriveBusinessCode builds the 3-letter display code from the business
// name: a single word contributes its first three letters, multi-word
// names the first letter of up to three words. Padded with X.
func deriveBusinessCode(businessName string) string {
	words := strings.Fields(businessName)
	var code []rune
	if len(words) == 1 {
		for _, r := range words[0] {
			if unicode.IsLetter(r) {
				code = append(code, unicode.ToUpper(r))
			}
			if len(code) == 3 {
				break
			}
		}
	} else {
		for _, word := range words {
			for _, r := range word {
				if unicode.IsLetter(r) {
					code = append(code, unicode.ToUpper(r))
				}
				break
			}
			if len(code) == 3 {
				break
			}
		}
	}
	for len(code) < 3 {
		code = append(code, 'X')
	}
	return string(code)
}

func (s *settingsService) GetSettings(ctx context.Context, merchantID uuid.UUID) (*models.BusinessSettings, error) {
	settings, err := s.repo.GetSettings(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		// A merchant without a settings row sees zero-value defaults; the
		// row materializes on first write.
		return &models.BusinessSettings{MerchantID: merchantID, TaxName: "PPN"}, nil
	}
	return settings, nil
}

func (s *settingsService) UpdateSettings(ctx context.Context, merchantID uuid.UUID, req models.BusinessSettingsRequest, businessName string) (*models.BusinessSettings, error) {
	settings, err := s.GetSettings(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	if req.TaxEnabled != nil {
		settings.TaxEnabled = *req.TaxEnabled
	}
	if req.TaxRate != nil {
		if *req.TaxRate < 0 || *req.TaxRate > 100 {
			return nil, models.NewValidationError("tax rate must be between 0 and 100")
		}
		settings.TaxRate = *req.TaxRate
	}
	if req.TaxName != nil {
		settings.TaxName = strings.TrimSpace(*req.TaxName)
	}
	if req.TaxDescription != nil {
		settings.TaxDescription = *req.TaxDescription
	}
	if req.Terms != nil {
		settings.Terms = *req.Terms
	}
	if req.PremiumActive != nil {
		settings.PremiumActive = *req.PremiumActive
	}
	if req.CustomHeaderText != nil {
		settings.CustomHeaderText = *req.CustomHeaderText
	}
	if req.CustomHeaderBgColor != nil {
		settings.CustomHeaderBgColor = *req.CustomHeaderBgColor
	}
	if req.CustomFooterBgColor != nil {
		settings.CustomFooterBgColor = *req.CustomFooterBgColor
	}
	if req.HideAspreeBranding != nil {
		settings.HideAspreeBranding = *req.HideAspreeBranding
	}

	if settings.BusinessCode == "" {
		settings.BusinessCode = deriveBusinessCode(businessName)
	}

	if err := s.repo.UpsertSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *settingsService) UploadLogo(ctx context.Context, merchantID uuid.UUID, filename string, content []byte, businessName string) (*models.BusinessSettings, error) {
	settings, err := s.GetSettings(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	ref, err := s.blobs.Upload(ctx, filename, content, logoFolder)
	if err != nil {
		return nil, err
	}

	oldPublicID := settings.LogoPublicID
	settings.LogoURL = ref.URL
	settings.LogoPublicID = ref.PublicID
	settings.LogoFilename = ref.Filename
	if settings.BusinessCode == "" {
		settings.BusinessCode = deriveBusinessCode(businessName)
	}

	if err := s.repo.UpsertSettings(ctx, settings); err != nil {
		return nil, err
	}

	// The replaced asset is removed off the request path.
	if oldPublicID != "" && s.tasks != nil {
		publicID := oldPublicID
		s.tasks.Enqueue("delete-replaced-logo", func(jobCtx context.Context) error {
			return s.blobs.Delete(jobCtx, publicID)
		})
	}
	return settings, nil
}

func (s *settingsService) DeleteLogo(ctx context.Context, merchantID uuid.UUID) (*models.BusinessSettings, error) {
	settings, err := s.repo.GetSettings(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if settings == nil || settings.LogoPublicID == "" {
		return nil, models.NewNotFoundError("logo")
	}

	publicID := settings.LogoPublicID
	settings.LogoURL = ""
	settings.LogoPublicID = ""
	settings.LogoFilename = ""
	if err := s.repo.UpsertSettings(ctx, settings); err != nil {
		return nil, err
	}

	if s.tasks != nil {
		s.tasks.Enqueue("delete-logo", func(jobCtx context.Context) error {
			return s.blobs.Delete(jobCtx, publicID)
		})
	}
	return settings, nil
}

func (s *settingsService) GetPaymentMethods(ctx context.Context, merchantID uuid.UUID) ([]models.PaymentMethodConfig, error) {
	configs, err := s.repo.GetPaymentMethods(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	for i := range configs {
		opened, err := s.openSecrets(configs[i].Config)
		if err != nil {
			return nil, err
		}
		configs[i].Config = opened
	}
	return configs, nil
}

func (s *settingsService) UpsertPaymentMethod(ctx context.Context, merchantID uuid.UUID, req models.PaymentMethodRequest) (*models.PaymentMethodConfig, error) {
	if req.MethodType != models.PaymentMethodBankTransfer && req.MethodType != models.PaymentMethodGateway {
		return nil, models.NewValidationError("unknown payment method type")
	}

	config := req.Config
	if config == nil {
		config = map[string]interface{}{}
	}

	// Secrets arriving already in envelope form are kept as-is so a
	// round-tripped config never gets double-encrypted.
	for _, field := range gatewaySecretFields {
		raw, ok := config[field].(string)
		if !ok || raw == "" || encryption.IsEncrypted(raw) {
			continue
		}
		sealed, err := s.vault.Encrypt(raw)
		if err != nil {
			return nil, fmt.Errorf("encrypt %s: %w", field, err)
		}
		config[field] = sealed
	}

	blob, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal payment config: %w", err)
	}

	row := &models.PaymentMethodConfig{
		MerchantID: merchantID,
		MethodType: req.MethodType,
		Enabled:    req.Enabled,
		Config:     datatypes.JSON(blob),
		Channels:   req.Channels,
	}
	if err := s.repo.UpsertPaymentMethod(ctx, row); err != nil {
		return nil, err
	}

	// Respond with a copy: the stored row keeps its sealed secrets.
	out := *row
	opened, err := s.openSecrets(out.Config)
	if err != nil {
		return nil, err
	}
	out.Config = opened
	return &out, nil
}

// TestGatewayConnection decrypts the stored secret key and pings Xendit.
func (s *settingsService) TestGatewayConnection(ctx context.Context, merchantID uuid.UUID) error {
	secret, err := s.GatewaySecret(ctx, merchantID, "secretKey")
	if err != nil {
		return err
	}
	return xendit.NewClient(secret).TestConnection(ctx)
}

// GatewaySecret returns one decrypted secret from the gateway config.
// Only internal callers (checkout creation, webhook verification) use it;
// nothing returned here crosses the HTTP boundary.
func (s *settingsService) GatewaySecret(ctx context.Context, merchantID uuid.UUID, key string) (string, error) {
	row, err := s.repo.GetPaymentMethod(ctx, merchantID, models.PaymentMethodGateway)
	if err != nil {
		return "", err
	}
	if row == nil || !row.Enabled {
		return "", models.NewValidationError("payment gateway is not configured")
	}

	var config map[string]interface{}
	if err := json.Unmarshal(row.Config, &config); err != nil {
		return "", fmt.Errorf("unmarshal payment config: %w", err)
	}
	raw, _ := config[key].(string)
	if raw == "" {
		return "", models.NewValidationError("payment gateway is missing " + key)
	}
	if !encryption.IsEncrypted(raw) {
		return raw, nil
	}
	return s.vault.Decrypt(raw)
}

// openSecrets decrypts sealed values for merchant-scoped reads. The
// merchant owns these credentials; only the storage row stays sealed.
func (s *settingsService) openSecrets(blob datatypes.JSON) (datatypes.JSON, error) {
	if len(blob) == 0 {
		return blob, nil
	}
	var config map[string]interface{}
	if err := json.Unmarshal(blob, &config); err != nil {
		return nil, fmt.Errorf("unmarshal payment config: %w", err)
	}
	changed := false
	for _, field := range gatewaySecretFields {
		raw, ok := config[field].(string)
		if !ok || !encryption.IsEncrypted(raw) {
			continue
		}
		plain, err := s.vault.Decrypt(raw)
		if err != nil {
			return nil, fmt.Errorf("decrypt %s: %w", field, err)
		}
		config[field] = plain
		changed = true
	}
	if !changed {
		return blob, nil
	}
	out, err := json.Marshal(config)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}
