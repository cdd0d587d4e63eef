package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoicing-service/internal/models"
)

// MerchantRepository is the authentication root. Its lookups are keyed
// by the merchant's own identifiers rather than a merchant_id filter;
// it is the only repository exempt from the scoping contract.
type MerchantRepository interface {
	Create(ctx context.Context, merchant *models.Merchant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error)
	GetByEmail(ctx context.Context, email string) (*models.Merchant, error)
	GetByResetToken(ctx context.Context, token string) (*models.Merchant, error)
	GetByVerificationToken(ctx context.Context, token string) (*models.Merchant, error)
	Update(ctx context.Context, merchant *models.Merchant) error
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
}

type merchantRepository struct {
	db *gorm.DB
}

func NewMerchantRepository(db *gorm.DB) MerchantRepository {
	return &merchantRepository{db: db}
}

func (r *merchantRepository) Create(ctx context.Context, merchant *models.Merchant) error {
	merchant.Email = strings.ToLower(strings.TrimSpace(merchant.Email))
	return translate(r.db.WithContext(ctx).Create(merchant).Error)
}

func (r *merchantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error) {
	var merchant models.Merchant
	err := r.db.WithContext(ctx).First(&merchant, "id = ?", id).Error
	if err != nil {
		return nil, orNil(err)
	}
	return &merchant, nil
}

func (r *merchantRepository) GetByEmail(ctx context.Context, email string) (*models.Merchant, error) {
	var merchant models.Merchant
	err := r.db.WithContext(ctx).
		First(&merchant, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		return nil, orNil(err)
	}
	return &merchant, nil
}

func (r *merchantRepository) GetByResetToken(ctx context.Context, token string) (*models.Merchant, error) {
	if token == "" {
		return nil, nil
	}
	var merchant models.Merchant
	err := r.db.WithContext(ctx).
		First(&merchant, "reset_token = ? AND reset_token_expires > ?", token, time.Now()).Error
	if err != nil {
		return nil, orNil(err)
	}
	return &merchant, nil
}

func (r *merchantRepository) GetByVerificationToken(ctx context.Context, token string) (*models.Merchant, error) {
	if token == "" {
		return nil, nil
	}
	var merchant models.Merchant
	err := r.db.WithContext(ctx).
		First(&merchant, "email_verification_token = ?", token).Error
	if err != nil {
		return nil, orNil(err)
	}
	return &merchant, nil
}

func (r *merchantRepository) Update(ctx context.Context, merchant *models.Merchant) error {
	return translate(r.db.WithContext(ctx).Save(merchant).Error)
}

func (r *merchantRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return translate(r.db.WithContext(ctx).
		Model(&models.Merchant{}).
		Where("id = ?", id).
		Updates(fields).Error)
}
