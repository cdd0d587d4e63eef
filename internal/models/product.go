package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog entry. SKU is unique per merchant, not globally.
type Product struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MerchantID    uuid.UUID `json:"merchantId" gorm:"type:uuid;not null;index:idx_products_merchant;uniqueIndex:idx_products_merchant_sku;column:merchant_id"`
	SKU           string    `json:"sku" gorm:"type:varchar(100);not null;uniqueIndex:idx_products_merchant_sku"`
	Name          string    `json:"name" gorm:"type:varchar(255);not null"`
	Category      string    `json:"category" gorm:"type:varchar(100);index:idx_products_merchant_category"`
	UnitPrice     float64   `json:"unitPrice" gorm:"type:decimal(12,2);not null;column:unit_price"`
	CostPrice     float64   `json:"costPrice" gorm:"type:decimal(12,2);default:0;column:cost_price"`
	StockQuantity int       `json:"stockQuantity" gorm:"default:0;column:stock_quantity"`
	MinStockLevel int       `json:"minStockLevel" gorm:"default:0;column:min_stock_level"`
	IsActive      bool      `json:"isActive" gorm:"default:true;column:is_active"`
	TaxRate       float64   `json:"taxRate" gorm:"type:decimal(5,2);default:0;column:tax_rate"`
	Dimensions    string    `json:"dimensions" gorm:"type:varchar(100)"`
	Weight        float64   `json:"weight" gorm:"type:decimal(10,3);default:0"`
	ImageURL      string    `json:"imageUrl" gorm:"type:text;column:image_url"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (Product) TableName() string {
	return "products"
}
