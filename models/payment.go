package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one payment attempt against an order.
type Payment struct {
	ID                uint                `gorm:"primaryKey" json:"id"`
	OrderID           uint                `gorm:"not null;index" json:"order_id"`
	CustomerID        uint                `gorm:"not null;index" json:"customer_id"`
	Amount            decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"amount"`
	Kind              PaymentKind         `gorm:"size:16;not null" json:"kind"`
	Method            PaymentMethod       `gorm:"size:16;not null" json:"method"`
	Status            PaymentRecordStatus `gorm:"size:16;not null;default:'pending';index" json:"status"`
	GatewayReference  *string             `gorm:"size:128;uniqueIndex" json:"gateway_reference"` // unique when present
	ProofS3Key        *string             `json:"proof_s3_key"`                                  // nullable, bank transfer proof
	ProofURL          *string             `gorm:"-" json:"proof_url,omitempty"`                  // computed field, presigned URL
	VerifiedByID      *uint               `gorm:"index" json:"verified_by_id"`
	VerifiedBy        *User               `gorm:"foreignKey:VerifiedByID" json:"verified_by,omitempty"`
	VerifiedAt        *time.Time          `json:"verified_at"`
	VerificationNotes *string             `gorm:"type:text" json:"verification_notes"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// TableName specifies the table name for the Payment model
func (Payment) TableName() string {
	return "payments"
}
