package models

import (
	"time"

	"github.com/google/uuid"
)

// MerchantStatus represents the lifecycle status of a merchant account
type MerchantStatus string

const (
	MerchantStatusActive   MerchantStatus = "active"
	MerchantStatusInactive MerchantStatus = "inactive"
)

// SubscriptionPlan represents the merchant's billing tier
type SubscriptionPlan string

const (
	PlanFree    SubscriptionPlan = "free"
	PlanPremium SubscriptionPlan = "premium"
)

// Merchant is the tenant root entity. It is the only entity without a
// merchant_id foreign key; every other row in the system hangs off it.
type Merchant struct {
	ID                     uuid.UUID        `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Email                  string           `json:"email" gorm:"type:varchar(255);not null;uniqueIndex:idx_merchants_email"`
	PasswordHash           string           `json:"-" gorm:"type:varchar(255);not null;column:password_hash"`
	BusinessName           string           `json:"businessName" gorm:"type:varchar(255);not null;column:business_name"`
	FullName               string           `json:"fullName" gorm:"type:varchar(255);column:full_name"`
	Phone                  string           `json:"phone" gorm:"type:varchar(50)"`
	Address                string           `json:"address" gorm:"type:text"`
	Status                 MerchantStatus   `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	EmailVerified          bool             `json:"emailVerified" gorm:"default:false;column:email_verified"`
	EmailVerificationToken *string          `json:"-" gorm:"type:varchar(255);column:email_verification_token"`
	ResetToken             *string          `json:"-" gorm:"type:varchar(255);index:idx_merchants_reset_token;column:reset_token"`
	ResetTokenExpires      *time.Time       `json:"-" gorm:"column:reset_token_expires"`
	LastLogin              *time.Time       `json:"lastLogin" gorm:"column:last_login"`
	LoginAttempts          int              `json:"-" gorm:"default:0;column:login_attempts"`
	LockedUntil            *time.Time       `json:"-" gorm:"column:locked_until"`
	SubscriptionPlan       SubscriptionPlan `json:"subscriptionPlan" gorm:"type:varchar(20);default:'free';column:subscription_plan"`
	CreatedAt              time.Time        `json:"createdAt"`
	UpdatedAt              time.Time        `json:"updatedAt"`
}

func (Merchant) TableName() string {
	return "merchants"
}

// IsActive reports whether the account may authenticate.
func (m *Merchant) IsActive() bool {
	return m.Status == MerchantStatusActive
}

// MerchantProfile is the HTTP-safe projection of a Merchant. The password
// hash and token columns never leave the repository layer.
type MerchantProfile struct {
	ID               uuid.UUID        `json:"id"`
	Email            string           `json:"email"`
	BusinessName     string           `json:"businessName"`
	FullName         string           `json:"fullName"`
	Phone            string           `json:"phone"`
	Address          string           `json:"address"`
	EmailVerified    bool             `json:"emailVerified"`
	SubscriptionPlan SubscriptionPlan `json:"subscriptionPlan"`
	LastLogin        *time.Time       `json:"lastLogin,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// Profile builds the HTTP projection.
func (m *Merchant) Profile() MerchantProfile {
	return MerchantProfile{
		ID:               m.ID,
		Email:            m.Email,
		BusinessName:     m.BusinessName,
		FullName:         m.FullName,
		Phone:            m.Phone,
		Address:          m.Address,
		EmailVerified:    m.EmailVerified,
		SubscriptionPlan: m.SubscriptionPlan,
		LastLogin:        m.LastLogin,
		CreatedAt:        m.CreatedAt,
	}
}
