package models

import (
	"time"

	"github.com/google/uuid"
)

// Request and response shapes for the HTTP surface. All responses go
// through the `{success: bool, ...}` envelope built in the handlers
// package; the types here are the payload halves.

// RegisterRequest creates a merchant account.
type RegisterRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required"`
	BusinessName string `json:"businessName" binding:"required"`
	FullName     string `json:"fullName"`
	AgreeTerms   bool   `json:"agreeTerms"`
}

// LoginRequest authenticates a merchant.
type LoginRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"rememberMe"`
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Merchant  MerchantProfile `json:"merchant"`
}

// ForgotPasswordRequest starts the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResendVerificationRequest asks for a fresh verification email.
type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest consumes a reset token.
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// ChangePasswordRequest rotates the password of a logged-in merchant.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// UpdateProfileRequest patches merchant contact fields.
type UpdateProfileRequest struct {
	BusinessName *string `json:"businessName"`
	FullName     *string `json:"fullName"`
	Phone        *string `json:"phone"`
	Address      *string `json:"address"`
}

// InvoiceDraft is what the extraction collaborator returns for a pasted
// order description. It is also the body of POST /api/confirm-invoice.
type InvoiceDraft struct {
	ID              *uuid.UUID       `json:"id,omitempty"` // set when updating an existing invoice
	CustomerName    string           `json:"customerName" binding:"required"`
	CustomerEmail   string           `json:"customerEmail"`
	CustomerPhone   string           `json:"customerPhone"`
	CustomerAddress string           `json:"customerAddress"`
	InvoiceDate     *time.Time       `json:"invoiceDate"`
	DueDate         *time.Time       `json:"dueDate"`
	Items           []InvoiceItem    `json:"items" binding:"required"`
	ShippingCost    float64          `json:"shippingCost"`
	Discount        float64          `json:"discount"`
	Currency        string           `json:"currency"`
	PaymentTerms    string           `json:"paymentTerms"`
	Notes           string           `json:"notes"`
	PaymentSchedule *PaymentSchedule `json:"paymentSchedule,omitempty"`
}

// PreviewInvoiceRequest delegates free-form text to the extractor.
type PreviewInvoiceRequest struct {
	Text string `json:"text" binding:"required"`
}

// InvoiceFilters narrows invoice listings. All filters are optional;
// MerchantID is mandatory and injected from the principal.
type InvoiceFilters struct {
	MerchantID    uuid.UUID
	Status        *InvoiceStatus
	CustomerEmail *string
	DateFrom      *time.Time
	DateTo        *time.Time
	Page          int
	Limit         int
}

// OrderFilters narrows order listings.
type OrderFilters struct {
	MerchantID uuid.UUID
	Status     *OrderStatus
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	Limit      int
}

// StatusUpdateRequest invokes a lifecycle transition by name.
type StatusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
}

// ReviewRequest carries merchant notes on confirmation approve/reject.
type ReviewRequest struct {
	Notes string `json:"notes"`
}

// StatusUpdateResult reports a transition plus the advisory auto-order
// outcome. OrderError is populated without failing the parent request.
type StatusUpdateResult struct {
	Invoice      *Invoice `json:"invoice"`
	OrderCreated bool     `json:"orderCreated"`
	Order        *Order   `json:"order,omitempty"`
	OrderError   string   `json:"orderError,omitempty"`
}

// SyncOrdersResult reports a reconciliation run.
type SyncOrdersResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// BusinessSettingsRequest writes business settings. Pointer fields are
// patch semantics: nil leaves the stored value alone.
type BusinessSettingsRequest struct {
	TaxEnabled          *bool    `json:"taxEnabled"`
	TaxRate             *float64 `json:"taxRate"`
	TaxName             *string  `json:"taxName"`
	TaxDescription      *string  `json:"taxDescription"`
	Terms               *string  `json:"terms"`
	PremiumActive       *bool    `json:"premiumActive"`
	CustomHeaderText    *string  `json:"customHeaderText"`
	CustomHeaderBgColor *string  `json:"customHeaderBgColor"`
	CustomFooterBgColor *string  `json:"customFooterBgColor"`
	HideAspreeBranding  *bool    `json:"hideAspreeBranding"`
}

// PaymentMethodRequest writes one payment-method configuration.
type PaymentMethodRequest struct {
	MethodType PaymentMethodType      `json:"methodType" binding:"required"`
	Enabled    bool                   `json:"enabled"`
	Config     map[string]interface{} `json:"config"`
	Channels   []string               `json:"channels"`
}

// Pagination is the standard list envelope section.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPagination computes the derived page count.
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}
