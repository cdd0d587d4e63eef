package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the fulfillment lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusInvoiced   OrderStatus = "invoiced"
)

// OrderItem is one fulfillment line, snapshotted from the source invoice.
type OrderItem struct {
	ProductName string  `json:"product_name"`
	SKU         string  `json:"sku,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

// OrderItems is a JSONB column of order lines.
type OrderItems []OrderItem

func (i OrderItems) Value() (driver.Value, error) {
	if i == nil {
		return json.Marshal([]OrderItem{})
	}
	return json.Marshal(i)
}

func (i *OrderItems) Scan(value interface{}) error {
	if value == nil {
		*i = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, i)
	case string:
		return json.Unmarshal([]byte(v), i)
	default:
		return errors.New("unsupported type for OrderItems")
	}
}

// Order is derived from a fully paid invoice (auto-order) or created
// directly. At most one order may exist per source invoice; the unique
// partial index on source_invoice_id enforces the idempotence invariant
// behind the service-level lookup.
type Order struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MerchantID  uuid.UUID `json:"merchantId" gorm:"type:uuid;not null;index:idx_orders_merchant;index:idx_orders_merchant_status;column:merchant_id"`
	OrderNumber string    `json:"orderNumber" gorm:"type:varchar(30);not null;uniqueIndex:idx_orders_number;column:order_number"`

	// Customer snapshot
	CustomerName    string `json:"customerName" gorm:"type:varchar(255);not null;column:customer_name"`
	CustomerEmail   string `json:"customerEmail" gorm:"type:varchar(255);column:customer_email"`
	CustomerPhone   string `json:"customerPhone" gorm:"type:varchar(50);column:customer_phone"`
	CustomerAddress string `json:"customerAddress" gorm:"type:text;column:customer_address"`

	Items OrderItems `json:"items" gorm:"type:jsonb;not null"`

	Status        OrderStatus   `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_orders_merchant_status"`
	PaymentStatus PaymentStatus `json:"paymentStatus" gorm:"type:varchar(30);not null;default:'pending';column:payment_status"`

	Subtotal     float64 `json:"subtotal" gorm:"type:decimal(14,2);not null"`
	TaxAmount    float64 `json:"taxAmount" gorm:"type:decimal(14,2);default:0;column:tax_amount"`
	ShippingCost float64 `json:"shippingCost" gorm:"type:decimal(14,2);default:0;column:shipping_cost"`
	Discount     float64 `json:"discount" gorm:"type:decimal(14,2);default:0"`
	TotalAmount  float64 `json:"totalAmount" gorm:"type:decimal(14,2);not null;column:total_amount"`
	Currency     string  `json:"currency" gorm:"type:varchar(3);not null;default:'IDR'"`

	Notes          string     `json:"notes" gorm:"type:text"`
	TrackingNumber string     `json:"trackingNumber,omitempty" gorm:"type:varchar(100);column:tracking_number"`
	ShippedDate    *time.Time `json:"shippedDate,omitempty" gorm:"column:shipped_date"`
	DeliveredDate  *time.Time `json:"deliveredDate,omitempty" gorm:"column:delivered_date"`

	SourceInvoiceID     *uuid.UUID `json:"sourceInvoiceId,omitempty" gorm:"type:uuid;uniqueIndex:idx_orders_source_invoice,where:source_invoice_id IS NOT NULL;column:source_invoice_id"`
	SourceInvoiceNumber *string    `json:"sourceInvoiceNumber,omitempty" gorm:"type:varchar(30);column:source_invoice_number"`

	CreatedAt time.Time `json:"createdAt" gorm:"index:idx_orders_merchant_created,sort:desc"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Order) TableName() string {
	return "orders"
}
