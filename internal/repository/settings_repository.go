package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"invoicing-service/internal/cache"
	"invoicing-service/internal/models"
)

// SettingsRepository persists business settings and payment-method
// configuration. Both families are merchant-scoped.
type SettingsRepository interface {
	GetSettings(ctx context.Context, merchantID uuid.UUID) (*models.BusinessSettings, error)
	UpsertSettings(ctx context.Context, settings *models.BusinessSettings) error
	GetPaymentMethods(ctx context.Context, merchantID uuid.UUID) ([]models.PaymentMethodConfig, error)
	GetPaymentMethod(ctx context.Context, merchantID uuid.UUID, methodType models.PaymentMethodType) (*models.PaymentMethodConfig, error)
	UpsertPaymentMethod(ctx context.Context, config *models.PaymentMethodConfig) error
}

type settingsRepository struct {
	db    *gorm.DB
	cache *cache.Cache
}

func NewSettingsRepository(db *gorm.DB, c *cache.Cache) SettingsRepository {
	return &settingsRepository{db: db, cache: c}
}

func settingsCacheKey(merchantID uuid.UUID) string {
	return fmt.Sprintf("settings:%s", merchantID)
}

func (r *settingsRepository) GetSettings(ctx context.Context, merchantID uuid.UUID) (*models.BusinessSettings, error) {
	if err := requireMerchant(merchantID); err != nil {
		return nil, err
	}

	if r.cache != nil {
		var cached models.BusinessSettings
		if r.cache.Get(ctx, settingsCacheKey(merchantID), &cached) {
			return &cached, nil
		}
	}

	var settings models.BusinessSettings
	err := r.db.WithContext(ctx).First(&settings, "merchant_id = ?", merchantID).Error
	if err != nil {
		return nil, orNil(err)
	}

	if r.cache != nil {
		r.cache.Set(ctx, settingsCacheKey(merchantID), &settings)
	}
	return &settings, nil
}

func (r *settingsRepository) UpsertSettings(ctx context.Context, settings *models.BusinessSettings) error {
	if err := requireMerchant(settings.MerchantID); err != nil {
		return err
	}

	err := translate(r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "merchant_id"}},
			UpdateAll: true,
		}).
		Create(settings).Error)
	if err != nil {
		return err
	}

	if r.cache != nil {
		r.cache.Delete(ctx, settingsCacheKey(settings.MerchantID))
	}
	return nil
}

func (r *settingsRepository) GetPaymentMethods(ctx context.Context, merchantID uuid.UUID) ([]models.PaymentMethodConfig, error) {
	if err := requireMerchant(merchantID); err != nil {
		return nil, err
	}

	var configs []models.PaymentMethodConfig
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("method_type").
		Find(&configs).Error
	return configs, err
}

func (r *settingsRepository) GetPaymentMethod(ctx context.Context, merchantID uuid.UUID, methodType models.PaymentMethodType) (*models.PaymentMethodConfig, error) {
	if err := requireMerchant(merchantID); err != nil {
		return nil, err
	}

	var config models.PaymentMethodConfig
	err := r.db.WithContext(ctx).
		First(&config, "merchant_id = ? AND method_type = ?", merchantID, methodType).Error
	if err != nil {
		return nil, orNil(err)
	}
	return &config, nil
}

func (r *settingsRepository) UpsertPaymentMethod(ctx context.Context, config *models.PaymentMethodConfig) error {
	if err := requireMerchant(config.MerchantID); err != nil {
		return err
	}

	return translate(r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "merchant_id"}, {Name: "method_type"}},
			UpdateAll: true,
		}).
		Create(config).Error)
}
