package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoicing-service/internal/models"
)

type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, merchantID, id uuid.UUID) (*models.Customer, error)
	GetByEmail(ctx context.Context, merchantID uuid.UUID, email string) (*models.Customer, error)
	GetByPhone(ctx context.Context, merchantID uuid.UUID, phone string) (*models.Customer, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]models.Customer, error)
	Search(ctx context.Context, merchantID uuid.UUID, query string, page, limit int) ([]models.CustomerWithStats, int64, error)
	Update(ctx context.Context, customer *models.Customer) error
	Delete(ctx context.Context, merchantID, id uuid.UUID) error
}

type customerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Create(ctx context.Context, customer *models.Customer) error {
	if err := requireMerchant(customer.MerchantID); err != nil {
		return err
	}
	if customer.Email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*customer.Email))
		if normalized == "" {
			customer.Email = nil
		} else {
			customer.Email = &normalized
		}
	}
	return translate(r.db.WithContext(ctx).Create(customer).Error)
}

func (r *customerRepository) GetByID(ctx context.Context, merchantID, id uuid.UUID) (*models.Customer, error) {
	if err := requireMerchant(merchantID); err != nil {
		return nil, err
	}
	var customer models.Customer
	err := r.db.WithContext(ctx).
		First(&customer, "merchant_id = ? AND id = ?", merchantID, id).Error
	if err != nil {
		return nil, orNil(err)
	}
	return &customer, nil
}

func (r *customerRepository) GetByEmail(ctx context.Context, merchantID uuid.UUID, email string) (*models.Customer, error) {
	if err := requireMerchant(merchantID); err != nil {
		return nil, err
	}
	var customer models.Customer
	err := r.db.WithContext(ctx).
		First(&customer, "merchant_id = ? AND email = ?", merchantID, strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		return nil, orNil(err)
	}
	return &customer, nil
}

func (r *customerRepository) GetByPhone(ctx context.Context, merchantID uuid.UUID, phone string) (*models.Customer, error) {
	if err := requireMerchant(merchantID); err != nil {
		return nil, err
	}
	var customer models.Customer
	err := r.db.WithContext(ctx).
		First(&customer, "merchant_id = ? AND phone = ?", merchantID, phone).Error
	if err != nil {
		return nil, orNil(err)
	}
	return &customer, nil
}

// ListByMerchant loads all customers for a merchant. The fuzzy name
// matcher needs the full set; per-merchant cardinality is small enough
// that this stays a single unfiltered scan.
func (r *customerRepository) ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]models.Customer, error) {
	if err := requireMerchant(merchantID); err != nil {
		return nil, err
	}
	var customers []models.Customer
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Find(&customers).Error
	return customers, err
}

// Search lists customers with order aggregates attached in the same
// round-trip via a lateral-free correlated join.
func (r *customerRepository) Search(ctx context.Context, merchantID uuid.UUID, query string, page, limit int) ([]models.CustomerWithStats, int64, error) {
	if err := requireMerchant(merchantID); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	base := r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("customers.merchant_id = ?", merchantID)
	if query != "" {
		pattern := "%" + query + "%"
		base = base.Where("(customers.name ILIKE ? OR customers.email ILIKE ? OR customers.phone LIKE ?)",
			pattern, pattern, pattern)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.CustomerWithStats
	err := base.
		Select("customers.*, COUNT(orders.id) AS order_count, MAX(orders.created_at) AS last_order_date").
		Joins("LEFT JOIN orders ON orders.merchant_id = customers.merchant_id AND orders.customer_email = customers.email").
		Group("customers.id").
		Order("customers.name").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error
	return rows, total, err
}

func (r *customerRepository) Update(ctx context.Context, customer *models.Customer) error {
	if err := requireMerchant(customer.MerchantID); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).
		Where("merchant_id = ?", customer.MerchantID).
		Save(customer).Error)
}

func (r *customerRepository) Delete(ctx context.Context, merchantID, id uuid.UUID) error {
	if err := requireMerchant(merchantID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Delete(&models.Customer{}, "merchant_id = ? AND id = ?", merchantID, id).Error
}
