package models

import (
	"time"

	"github.com/google/uuid"
)

// ExtractionMethod records how a customer row came into existence.
type ExtractionMethod string

const (
	ExtractionManual ExtractionMethod = "manual"
	ExtractionAuto   ExtractionMethod = "auto"
)

// Customer belongs to a merchant. Email is unique per merchant when
// present (lowercased before write); phone and name matching is handled
// by the customer service, not by constraints.
type Customer struct {
	ID               uuid.UUID        `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MerchantID       uuid.UUID        `json:"merchantId" gorm:"type:uuid;not null;index:idx_customers_merchant;column:merchant_id"`
	Name             string           `json:"name" gorm:"type:varchar(255);not null"`
	Email            *string          `json:"email" gorm:"type:varchar(255);uniqueIndex:idx_customers_merchant_email,where:email IS NOT NULL"`
	Phone            *string          `json:"phone" gorm:"type:varchar(50);index:idx_customers_merchant_phone"`
	Address          string           `json:"address" gorm:"type:text"`
	FirstInvoiceDate *time.Time       `json:"firstInvoiceDate" gorm:"column:first_invoice_date"`
	LastInvoiceDate  *time.Time       `json:"lastInvoiceDate" gorm:"column:last_invoice_date"`
	InvoiceCount     int              `json:"invoiceCount" gorm:"default:0;column:invoice_count"`
	TotalSpent       float64          `json:"totalSpent" gorm:"type:decimal(14,2);default:0;column:total_spent"`
	ExtractionMethod ExtractionMethod `json:"extractionMethod" gorm:"type:varchar(10);default:'manual';column:extraction_method"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

func (Customer) TableName() string {
	return "customers"
}

// CustomerWithStats carries the derived aggregates attached by customer
// search, computed in the same query round-trip.
type CustomerWithStats struct {
	Customer
	OrderCount    int        `json:"orderCount" gorm:"column:order_count"`
	LastOrderDate *time.Time `json:"lastOrderDate" gorm:"column:last_order_date"`
}
