package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus is the primary lifecycle axis of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusDPPaid    InvoiceStatus = "dp_paid"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// PaymentStage tracks where the invoice sits in a (possibly split)
// payment schedule.
type PaymentStage string

const (
	StageFullPayment  PaymentStage = "full_payment"
	StageDownPayment  PaymentStage = "down_payment"
	StageFinalPayment PaymentStage = "final_payment"
	StageCompleted    PaymentStage = "completed"
)

// PaymentStatus is the money-flow axis.
type PaymentStatus string

const (
	PaymentPending             PaymentStatus = "pending"
	PaymentConfirmationPending PaymentStatus = "confirmation_pending"
	PaymentPartial             PaymentStatus = "partial"
	PaymentPaid                PaymentStatus = "paid"
)

// ConfirmationStatus is the merchant review verdict on an uploaded proof.
type ConfirmationStatus string

const (
	ConfirmationPending  ConfirmationStatus = "pending"
	ConfirmationApproved ConfirmationStatus = "approved"
	ConfirmationRejected ConfirmationStatus = "rejected"
)

// InvoiceItem is one line of an invoice. Items live inside the invoice
// row as JSONB, so invoice deletion cascades by construction.
type InvoiceItem struct {
	ProductName string  `json:"productName"`
	SKU         string  `json:"sku,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	LineTotal   float64 `json:"lineTotal"`
	TaxRate     float64 `json:"taxRate,omitempty"`
	TaxAmount   float64 `json:"taxAmount,omitempty"`
}

// InvoiceItems is a JSONB column of invoice lines.
type InvoiceItems []InvoiceItem

func (i InvoiceItems) Value() (driver.Value, error) {
	if i == nil {
		return json.Marshal([]InvoiceItem{})
	}
	return json.Marshal(i)
}

func (i *InvoiceItems) Scan(value interface{}) error {
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
		return errors.New("unsupported type for InvoiceItems")
	}
}

// SchedulePartStatus tracks a single tranche of a payment schedule.
type SchedulePartStatus string

const (
	SchedulePartPending SchedulePartStatus = "pending"
	SchedulePartPaid    SchedulePartStatus = "paid"
)

// DownPaymentPart is the first tranche of a down-payment schedule.
type DownPaymentPart struct {
	Amount     float64            `json:"amount"`
	Percentage float64            `json:"percentage"`
	Status     SchedulePartStatus `json:"status"`
	PaidDate   *time.Time         `json:"paidDate,omitempty"`
}

// RemainingBalancePart is the final tranche.
type RemainingBalancePart struct {
	Amount   float64            `json:"amount"`
	DueDate  time.Time          `json:"dueDate"`
	Status   SchedulePartStatus `json:"status"`
	PaidDate *time.Time         `json:"paidDate,omitempty"`
}

// ScheduleTypeDownPayment is the only schedule type currently supported.
const ScheduleTypeDownPayment = "down_payment"

// PaymentSchedule describes a split payment. Stored as JSONB on the
// invoice row; nil means full payment up front.
type PaymentSchedule struct {
	ScheduleType     string               `json:"scheduleType"`
	DownPayment      DownPaymentPart      `json:"downPayment"`
	RemainingBalance RemainingBalancePart `json:"remainingBalance"`
}

// IsComplete reports whether both tranches carry the fields required for
// a schedule to be stored at all. Partial schedules are dropped with a
// warning rather than persisted.
func (s *PaymentSchedule) IsComplete() bool {
	if s == nil || s.ScheduleType != ScheduleTypeDownPayment {
		return false
	}
	return s.DownPayment.Amount > 0 &&
		s.DownPayment.Percentage > 0 &&
		s.RemainingBalance.Amount > 0 &&
		!s.RemainingBalance.DueDate.IsZero()
}

func (s PaymentSchedule) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *PaymentSchedule) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("unsupported type for PaymentSchedule")
	}
}

// Invoice is the central billing document. Customer and merchant fields
// are snapshots taken at creation time and are never back-filled from
// live rows; display enrichment uses live business settings separately.
type Invoice struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MerchantID    uuid.UUID `json:"merchantId" gorm:"type:uuid;not null;index:idx_invoices_merchant;index:idx_invoices_merchant_status;column:merchant_id"`
	InvoiceNumber string    `json:"invoiceNumber" gorm:"type:varchar(30);not null;uniqueIndex:idx_invoices_number;column:invoice_number"`

	// Customer snapshot
	CustomerID      *uuid.UUID `json:"customerId" gorm:"type:uuid;index;column:customer_id"`
	CustomerName    string     `json:"customerName" gorm:"type:varchar(255);not null;column:customer_name"`
	CustomerEmail   string     `json:"customerEmail" gorm:"type:varchar(255);index:idx_invoices_merchant_customer_email;column:customer_email"`
	CustomerPhone   string     `json:"customerPhone" gorm:"type:varchar(50);column:customer_phone"`
	CustomerAddress string     `json:"customerAddress" gorm:"type:text;column:customer_address"`

	// Merchant snapshot
	MerchantName    string `json:"merchantName" gorm:"type:varchar(255);column:merchant_name"`
	MerchantEmail   string `json:"merchantEmail" gorm:"type:varchar(255);column:merchant_email"`
	MerchantPhone   string `json:"merchantPhone" gorm:"type:varchar(50);column:merchant_phone"`
	MerchantAddress string `json:"merchantAddress" gorm:"type:text;column:merchant_address"`

	InvoiceDate     time.Time  `json:"invoiceDate" gorm:"not null;column:invoice_date"`
	DueDate         time.Time  `json:"dueDate" gorm:"not null;column:due_date"`
	OriginalDueDate *time.Time `json:"originalDueDate" gorm:"column:original_due_date"`

	Status        InvoiceStatus `json:"status" gorm:"type:varchar(20);not null;default:'draft';index:idx_invoices_merchant_status"`
	PaymentStage  PaymentStage  `json:"paymentStage" gorm:"type:varchar(20);not null;default:'full_payment';column:payment_stage"`
	PaymentStatus PaymentStatus `json:"paymentStatus" gorm:"type:varchar(30);not null;default:'pending';column:payment_status"`

	Subtotal     float64 `json:"subtotal" gorm:"type:decimal(14,2);not null"`
	TaxAmount    float64 `json:"taxAmount" gorm:"type:decimal(14,2);default:0;column:tax_amount"`
	ShippingCost float64 `json:"shippingCost" gorm:"type:decimal(14,2);default:0;column:shipping_cost"`
	Discount     float64 `json:"discount" gorm:"type:decimal(14,2);default:0"`
	GrandTotal   float64 `json:"grandTotal" gorm:"type:decimal(14,2);not null;column:grand_total"`
	Currency     string  `json:"currency" gorm:"type:varchar(3);not null;default:'IDR'"`

	PaymentTerms string       `json:"paymentTerms" gorm:"type:text;column:payment_terms"`
	Notes        string       `json:"notes" gorm:"type:text"`
	Items        InvoiceItems `json:"items" gorm:"type:jsonb;not null"`

	PaymentSchedule *PaymentSchedule `json:"paymentSchedule,omitempty" gorm:"type:jsonb;column:payment_schedule"`

	// Opaque customer-facing access tokens
	CustomerToken     string  `json:"customerToken" gorm:"type:varchar(64);uniqueIndex:idx_invoices_customer_token;column:customer_token"`
	FinalPaymentToken *string `json:"finalPaymentToken,omitempty" gorm:"type:varchar(64);index:idx_invoices_final_token;column:final_payment_token"`

	// Payment confirmation (customer-uploaded proof) review fields
	PaymentConfirmationFile  string              `json:"paymentConfirmationFile,omitempty" gorm:"type:text;column:payment_confirmation_file"`
	PaymentConfirmationNotes string              `json:"paymentConfirmationNotes,omitempty" gorm:"type:text;column:payment_confirmation_notes"`
	PaymentConfirmationDate  *time.Time          `json:"paymentConfirmationDate,omitempty" gorm:"column:payment_confirmation_date"`
	ConfirmationStatus       *ConfirmationStatus `json:"confirmationStatus,omitempty" gorm:"type:varchar(20);column:confirmation_status"`
	MerchantNotes            string              `json:"merchantNotes,omitempty" gorm:"type:text;column:merchant_notes"`
	ReviewedDate             *time.Time          `json:"reviewedDate,omitempty" gorm:"column:reviewed_date"`

	SentAt                    *time.Time `json:"sentAt,omitempty" gorm:"column:sent_at"`
	PaidAt                    *time.Time `json:"paidAt,omitempty" gorm:"column:paid_at"`
	DPConfirmedDate           *time.Time `json:"dpConfirmedDate,omitempty" gorm:"column:dp_confirmed_date"`
	FinalPaymentConfirmedDate *time.Time `json:"finalPaymentConfirmedDate,omitempty" gorm:"column:final_payment_confirmed_date"`

	CreatedAt time.Time `json:"createdAt" gorm:"index:idx_invoices_merchant_created,sort:desc"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Invoice) TableName() string {
	return "invoices"
}

// IsEditable reports whether the edit policy allows mutation. Invoices
// at dp_paid or beyond are immutable.
func (inv *Invoice) IsEditable() bool {
	return inv.Status == InvoiceStatusDraft || inv.Status == InvoiceStatusSent
}

// HasDownPayment reports whether the invoice carries a split schedule.
func (inv *Invoice) HasDownPayment() bool {
	return inv.PaymentSchedule != nil && inv.PaymentSchedule.ScheduleType == ScheduleTypeDownPayment
}

// ComputeTotals recomputes subtotal, tax and grand total from the items
// and the shipping/discount fields already set on the invoice.
func (inv *Invoice) ComputeTotals() {
	var subtotal, tax float64
	for i := range inv.Items {
		item := &inv.Items[i]
		item.LineTotal = float64(item.Quantity) * item.UnitPrice
		if item.TaxRate > 0 {
			item.TaxAmount = item.LineTotal * item.TaxRate / 100
		}
		subtotal += item.LineTotal
		tax += item.TaxAmount
	}
	inv.Subtotal = subtotal
	inv.TaxAmount = tax
	inv.GrandTotal = subtotal + tax + inv.ShippingCost - inv.Discount
}
