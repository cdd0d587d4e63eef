package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoicing-service/internal/models"
)

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, merchantID, id uuid.UUID) (*models.Order, error)
	GetBySourceInvoiceID(ctx context.Context, merchantID, invoiceID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filters models.OrderFilters) ([]models.Order, int64, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	Update(ctx context.Context, order *models.Order) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := requireMerchant(order.MerchantID); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Create(order).Error)
}

func (r *orderRepository) GetByID(ctx context.Context, merchantID, id uuid.UUID) (*models.Order, error) {
	if err := requireMerchant(merchantID); err != nil {
		return nil, err
	}
	var order models.Order
	err := r.db.WithContext(ctx).
		First(&order, "merchant_id = ? AND id = ?", merchantID, id).Error
	if err != nil {
		return nil, orNil(err)
	}
	return &order, nil
}

// GetBySourceInvoiceID is the idempotence check for auto-order creation.
func (r *orderRepository) GetBySourceInvoiceID(ctx context.Context, merchantID, invoiceID uuid.UUID) (*models.Order, error) {
	if err := requireMerchant(merchantID); err != nil {
		return nil, err
	}
	var order models.Order
	err := r.db.WithContext(ctx).
		First(&order, "merchant_id = ? AND source_invoice_id = ?", merchantID, invoiceID).Error
	if err != nil {
		return nil, orNil(err)
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, filters models.OrderFilters) ([]models.Order, int64, error) {
	if err := requireMerchant(filters.MerchantID); err != nil {
		return nil, 0, err
	}
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.Limit < 1 || filters.Limit > 100 {
		filters.Limit = 20
	}

	query := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("merchant_id = ?", filters.MerchantID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := query.Order("created_at DESC").
		Offset((filters.Page - 1) * filters.Limit).
		Limit(filters.Limit).
		Find(&orders).Error
	return orders, total, err
}

// NumberExists is the collision probe for order number minting.
func (r *orderRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("order_number = ?", number).
		Count(&count).Error
	return count > 0, err
}

func (r *orderRepository) Update(ctx context.Context, order *models.Order) error {
	if err := requireMerchant(order.MerchantID); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).
		Where("merchant_id = ?", order.MerchantID).
		Save(order).Error)
}
