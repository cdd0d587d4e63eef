package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// BusinessSettings is the 1:1 business profile for a merchant. A row
// exists exactly once per merchant after the first write; the repository
// upserts on merchant_id.
type BusinessSettings struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MerchantID uuid.UUID `json:"merchantId" gorm:"type:uuid;not null;uniqueIndex:idx_business_settings_merchant;column:merchant_id"`

	// Tax configuration
	TaxEnabled     bool    `json:"taxEnabled" gorm:"default:false;column:tax_enabled"`
	TaxRate        float64 `json:"taxRate" gorm:"type:decimal(5,2);default:0;column:tax_rate"`
	TaxName        string  `json:"taxName" gorm:"type:varchar(50);column:tax_name"`
	TaxDescription string  `json:"taxDescription" gorm:"type:text;column:tax_description"`

	// Logo
	LogoURL      string `json:"logoUrl" gorm:"type:text;column:logo_url"`
	LogoPublicID string `json:"logoPublicId" gorm:"type:varchar(255);column:logo_public_id"`
	LogoFilename string `json:"logoFilename" gorm:"type:varchar(255);column:logo_filename"`

	// Premium branding. PremiumActive gates whether the custom fields are
	// surfaced in responses at all.
	PremiumActive           bool   `json:"premiumActive" gorm:"default:false;column:premium_active"`
	CustomHeaderText        string `json:"customHeaderText" gorm:"type:text;column:custom_header_text"`
	CustomHeaderBgColor     string `json:"customHeaderBgColor" gorm:"type:varchar(20);column:custom_header_bg_color"`
	CustomFooterBgColor     string `json:"customFooterBgColor" gorm:"type:varchar(20);column:custom_footer_bg_color"`
	CustomHeaderLogoURL     string `json:"customHeaderLogoUrl" gorm:"type:text;column:custom_header_logo_url"`
	CustomHeaderLogoPublicID string `json:"customHeaderLogoPublicId" gorm:"type:varchar(255);column:custom_header_logo_public_id"`
	CustomFooterLogoURL     string `json:"customFooterLogoUrl" gorm:"type:text;column:custom_footer_logo_url"`
	CustomFooterLogoPublicID string `json:"customFooterLogoPublicId" gorm:"type:varchar(255);column:custom_footer_logo_public_id"`
	HideAspreeBranding      bool   `json:"hideAspreeBranding" gorm:"default:false;column:hide_aspree_branding"`

	Terms string `json:"terms" gorm:"type:text"`

	// 3-char code derived from the business name on first save; feeds
	// nothing security-sensitive, only display artifacts.
	BusinessCode string `json:"businessCode" gorm:"type:varchar(3);column:business_code"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (BusinessSettings) TableName() string {
	return "business_settings"
}

// Branding returns the premium branding block, or nil when the gate is off.
func (s *BusinessSettings) Branding() map[string]interface{} {
	if !s.PremiumActive {
		return nil
	}
	return map[string]interface{}{
		"customHeaderText":         s.CustomHeaderText,
		"customHeaderBgColor":      s.CustomHeaderBgColor,
		"customFooterBgColor":      s.CustomFooterBgColor,
		"customHeaderLogoUrl":      s.CustomHeaderLogoURL,
		"customHeaderLogoPublicId": s.CustomHeaderLogoPublicID,
		"customFooterLogoUrl":      s.CustomFooterLogoURL,
		"customFooterLogoPublicId": s.CustomFooterLogoPublicID,
		"hideAspreeBranding":       s.HideAspreeBranding,
	}
}

// PaymentMethodType distinguishes how a merchant collects money.
type PaymentMethodType string

const (
	PaymentMethodBankTransfer PaymentMethodType = "bank_transfer"
	PaymentMethodGateway      PaymentMethodType = "gateway"
)

// PaymentMethodConfig is a per-(merchant, method_type) configuration row
// with upsert semantics. Gateway secrets inside Config are encrypted at
// rest by the settings service before the row is written; decryption is
// confined to merchant-scoped reads and the gateway adapter.
type PaymentMethodConfig struct {
	ID         uuid.UUID         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MerchantID uuid.UUID         `json:"merchantId" gorm:"type:uuid;not null;uniqueIndex:idx_payment_methods_merchant_type;column:merchant_id"`
	MethodType PaymentMethodType `json:"methodType" gorm:"type:varchar(30);not null;uniqueIndex:idx_payment_methods_merchant_type;column:method_type"`
	Enabled    bool              `json:"enabled" gorm:"default:false"`
	Config     datatypes.JSON    `json:"config" gorm:"type:jsonb"`

	// Gateway payment channels offered on the hosted checkout page
	// (e.g. BCA, OVO, QRIS). Empty means gateway defaults.
	Channels pq.StringArray `json:"channels" gorm:"type:text[]"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (PaymentMethodConfig) TableName() string {
	return "payment_method_configs"
}
