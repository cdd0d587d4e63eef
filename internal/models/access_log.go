package models

import (
	"time"

	"github.com/google/uuid"
)

// AccessType classifies how a request authenticated (or tried to).
type AccessType string

const (
	AccessTypeToken AccessType = "token"
	AccessTypeEmail AccessType = "email"
)

// AccessLog records authentication attempts and tokenized customer-portal
// reads. Rows are append-only.
type AccessLog struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	IP            string     `json:"ip" gorm:"type:varchar(45)"`
	UserAgent     string     `json:"userAgent" gorm:"type:text;column:user_agent"`
	AccessType    AccessType `json:"accessType" gorm:"type:varchar(10);not null;column:access_type"`
	CustomerEmail *string    `json:"customerEmail,omitempty" gorm:"type:varchar(255);column:customer_email"`
	InvoiceID     *uuid.UUID `json:"invoiceId,omitempty" gorm:"type:uuid;column:invoice_id"`
	Success       bool       `json:"success"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func (AccessLog) TableName() string {
	return "access_logs"
}
