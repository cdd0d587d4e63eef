package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoicing-service/internal/cache"
	"invoicing-service/internal/models"
)

// InvoiceRepository persists invoices. The two token lookups are global
// by design: customers authenticate with the token alone, so there is
// no merchant id to scope by. Everything else requires one.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	GetByID(ctx context.Context, merchantID, id uuid.UUID) (*models.Invoice, error)
	GetByIDGlobal(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	GetByNumber(ctx context.Context, merchantID uuid.UUID, number string) (*models.Invoice, error)
	GetByNumberGlobal(ctx context.Context, number string) (*models.Invoice, error)
	GetByCustomerToken(ctx context.Context, token string) (*models.Invoice, error)
	GetByFinalPaymentToken(ctx context.Context, token string) (*models.Invoice, error)
	List(ctx context.Context, filters models.InvoiceFilters) ([]models.Invoice, int64, error)
	ListPaidWithoutOrder(ctx context.Context, merchantID uuid.UUID) ([]models.Invoice, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	Update(ctx context.Context, invoice *models.Invoice) error
	Delete(ctx context.Context, merchantID, id uuid.UUID) error
}

type invoiceRepository struct {
	db    *gorm.DB
	cache *cache.Cache
}

func NewInvoiceRepository(db *gorm.DB, c *cache.Cache) InvoiceRepository {
	return &invoiceRepository{db: db, cache: c}
}

func invoiceCacheKey(merchantID, id uuid.UUID) string {
	return fmt.Sprintf("invoice:%s:%s", merchantID, id)
}

func invoiceListPrefix(merchantID uuid.UUID) string {
	return fmt.Sprintf("invoices:%s:", merchantID)
}

func (r *invoiceRepository) invalidate(ctx context.Context, invoice *models.Invoice) {
	if r.cache == nil {
		return
	}
	r.cache.Delete(ctx, invoiceCacheKey(invoice.MerchantID, invoice.ID))
	r.cache.DeletePrefix(ctx, invoiceListPrefix(invoice.MerchantID))
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	if err := requireMerchant(invoice.MerchantID); err != nil {
		return err
	}
	if err := translate(r.db.WithContext(ctx).Create(invoice).Error); err != nil {
		return err
	}
	r.invalidate(ctx, invoice)
	return nil
}

func (r *invoiceRepository) GetByID(ctx context.Context, merchantID, id uuid.UUID) (*models.Invoice, error) {
	if err := requireMerchant(merchantID); err != nil {
		return nil, err
	}

	if r.cache != nil {
		var cached models.Invoice
		if r.cache.Get(ctx, invoiceCacheKey(merchantID, id), &cached) {
			return &cached, nil
		}
	}

	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		First(&invoice, "merchant_id = ? AND id = ?", merchantID, id).Error
	if err != nil {
		return nil, orNil(err)
	}

	if r.cache != nil {
		r.cache.Set(ctx, invoiceCacheKey(merchantID, id), &invoice)
	}
	return &invoice, nil
}

// GetByIDGlobal ignores merchant scoping. Callers use it to tell a
// foreign invoice apart from a missing one; never expose its result
// to the requesting merchant.
func (r *invoiceRepository) GetByIDGlobal(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, orNil(err)
	}
	return &invoice, nil
}

func (r *invoiceRepository) GetByNumber(ctx context.Context, merchantID uuid.UUID, number string) (*models.Invoice, error) {
	if err := requireMerchant(merchantID); err != nil {
		return nil, err
	}
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		First(&invoice, "merchant_id = ? AND invoice_number = ?", merchantID, number).Error
	if err != nil {
		return nil, orNil(err)
	}
	return &invoice, nil
}

// GetByNumberGlobal serves webhook settlement, which carries no merchant
// identity. Invoice numbers are globally unique.
func (r *invoiceRepository) GetByNumberGlobal(ctx context.Context, number string) (*models.Invoice, error) {
	if number == "" {
		return nil, nil
	}
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		First(&invoice, "invoice_number = ?", number).Error
	if err != nil {
		return nil, orNil(err)
	}
	return &invoice, nil
}

func (r *invoiceRepository) GetByCustomerToken(ctx context.Context, token string) (*models.Invoice, error) {
	if token == "" {
		return nil, nil
	}
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		First(&invoice, "customer_token = ?", token).Error
	if err != nil {
		return nil, orNil(err)
	}
	return &invoice, nil
}

func (r *invoiceRepository) GetByFinalPaymentToken(ctx context.Context, token string) (*models.Invoice, error) {
	if token == "" {
		return nil, nil
	}
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		First(&invoice, "final_payment_token = ?", token).Error
	if err != nil {
		return nil, orNil(err)
	}
	return &invoice, nil
}

func (r *invoiceRepository) List(ctx context.Context, filters models.InvoiceFilters) ([]models.Invoice, int64, error) {
	if err := requireMerchant(filters.MerchantID); err != nil {
		return nil, 0, err
	}
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.Limit < 1 || filters.Limit > 100 {
		filters.Limit = 20
	}

	query := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("merchant_id = ?", filters.MerchantID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.CustomerEmail != nil && *filters.CustomerEmail != "" {
		query = query.Where("customer_email = ?", strings.ToLower(strings.TrimSpace(*filters.CustomerEmail)))
	}
	if filters.DateFrom != nil {
		query = query.Where("invoice_date >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("invoice_date <= ?", *filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoices []models.Invoice
	err := query.Order("created_at DESC").
		Offset((filters.Page - 1) * filters.Limit).
		Limit(filters.Limit).
		Find(&invoices).Error
	return invoices, total, err
}

// ListPaidWithoutOrder feeds the order reconciliation sweep: paid
// invoices with no order claiming them as source.
func (r *invoiceRepository) ListPaidWithoutOrder(ctx context.Context, merchantID uuid.UUID) ([]models.Invoice, error) {
	if err := requireMerchant(merchantID); err != nil {
		return nil, err
	}
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND status = ?", merchantID, models.InvoiceStatusPaid).
		Where("id NOT IN (?)", r.db.Model(&models.Order{}).
			Select("source_invoice_id").
			Where("merchant_id = ? AND source_invoice_id IS NOT NULL", merchantID)).
		Order("created_at").
		Find(&invoices).Error
	return invoices, err
}

// NumberExists is the collision probe used while minting invoice
// numbers. Numbers are globally unique, so no merchant filter.
func (r *invoiceRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("invoice_number = ?", number).
		Count(&count).Error
	return count > 0, err
}

func (r *invoiceRepository) Update(ctx context.Context, invoice *models.Invoice) error {
	if err := requireMerchant(invoice.MerchantID); err != nil {
		return err
	}
	err := translate(r.db.WithContext(ctx).
		Where("merchant_id = ?", invoice.MerchantID).
		Save(invoice).Error)
	if err != nil {
		return err
	}
	r.invalidate(ctx, invoice)
	return nil
}

func (r *invoiceRepository) Delete(ctx context.Context, merchantID, id uuid.UUID) error {
	if err := requireMerchant(merchantID); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).
		Delete(&models.Invoice{}, "merchant_id = ? AND id = ?", merchantID, id).Error
	if err != nil {
		return err
	}
	if r.cache != nil {
		r.cache.Delete(ctx, invoiceCacheKey(merchantID, id))
		r.cache.DeletePrefix(ctx, invoiceListPrefix(merchantID))
	}
	return nil
}
