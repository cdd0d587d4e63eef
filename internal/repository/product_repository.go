package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoicing-service/internal/models"
)

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, merchantID, id uuid.UUID) (*models.Product, error)
	GetBySKU(ctx context.Context, merchantID uuid.UUID, sku string) (*models.Product, error)
	List(ctx context.Context, merchantID uuid.UUID, category string, activeOnly bool, page, limit int) ([]models.Product, int64, error)
	Search(ctx context.Context, merchantID uuid.UUID, query string, limit int) ([]models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, merchantID, id uuid.UUID) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	if err := requireMerchant(product.MerchantID); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Create(product).Error)
}

func (r *productRepository) GetByID(ctx context.Context, merchantID, id uuid.UUID) (*models.Product, error) {
	if err := requireMerchant(merchantID); err != nil {
		return nil, err
	}
	var product models.Product
	err := r.db.WithContext(ctx).
		First(&product, "merchant_id = ? AND id = ?", merchantID, id).Error
	if err != nil {
		return nil, orNil(err)
	}
	return &product, nil
}

func (r *productRepository) GetBySKU(ctx context.Context, merchantID uuid.UUID, sku string) (*models.Product, error) {
	if err := requireMerchant(merchantID); err != nil {
		return nil, err
	}
	var product models.Product
	err := r.db.WithContext(ctx).
		First(&product, "merchant_id = ? AND sku = ?", merchantID, sku).Error
	if err != nil {
		return nil, orNil(err)
	}
	return &product, nil
}

func (r *productRepository) List(ctx context.Context, merchantID uuid.UUID, category string, activeOnly bool, page, limit int) ([]models.Product, int64, error) {
	if err := requireMerchant(merchantID); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("merchant_id = ?", merchantID)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if activeOnly {
		query = query.Where("is_active = true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []models.Product
	err := query.Order("name").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&products).Error
	return products, total, err
}

func (r *productRepository) Search(ctx context.Context, merchantID uuid.UUID, query string, limit int) ([]models.Product, error) {
	if err := requireMerchant(merchantID); err != nil {
		return nil, err
	}
	if limit < 1 || limit > 50 {
		limit = 10
	}

	var products []models.Product
	pattern := "%" + query + "%"
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND (name ILIKE ? OR sku ILIKE ?)", merchantID, pattern, pattern).
		Order("name").
		Limit(limit).
		Find(&products).Error
	return products, err
}

func (r *productRepository) Update(ctx context.Context, product *models.Product) error {
	if err := requireMerchant(product.MerchantID); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).
		Where("merchant_id = ?", product.MerchantID).
		Save(product).Error)
}

func (r *productRepository) Delete(ctx context.Context, merchantID, id uuid.UUID) error {
	if err := requireMerchant(merchantID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Delete(&models.Product{}, "merchant_id = ? AND id = ?", merchantID, id).Error
}
