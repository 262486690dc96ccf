package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order represents a customer order for pickup at the bakery.
// Orders are never deleted; cancelled orders stay as history.
type Order struct {
	ID                uint               `gorm:"primaryKey" json:"id"`
	OrderNumber       string             `gorm:"size:32;uniqueIndex;not null" json:"order_number"` // ORD-YYYYMMDD-NNN, immutable
	CustomerID        uint               `gorm:"not null;index" json:"customer_id"`
	Customer          User               `gorm:"foreignKey:CustomerID" json:"customer"`
	Type              OrderType          `gorm:"size:16;not null" json:"type"`
	PickupDate        string             `gorm:"size:10;not null;index" json:"pickup_date"` // YYYY-MM-DD
	PickupTime        string             `gorm:"size:5;not null" json:"pickup_time"`        // HH:MM
	Subtotal          decimal.Decimal    `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	DepositPercentage decimal.Decimal    `gorm:"type:numeric(5,2);not null" json:"deposit_percentage"`
	DepositAmount     decimal.Decimal    `gorm:"type:numeric(12,2);not null" json:"deposit_amount"`
	RemainingBalance  decimal.Decimal    `gorm:"type:numeric(12,2);not null" json:"remaining_balance"`
	TotalAmount       decimal.Decimal    `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	Status            OrderStatus        `gorm:"size:32;not null;default:'pending_payment';index" json:"status"`
	PaymentStatus     PaymentStatus      `gorm:"size:16;not null;default:'pending'" json:"payment_status"`
	Notes             *string            `gorm:"type:text" json:"notes"`
	ProcessedByID     *uint              `gorm:"index" json:"processed_by_id"` // nullable, last staff member to move the order
	ProcessedBy       *User              `gorm:"foreignKey:ProcessedByID" json:"processed_by,omitempty"`
	CancelledAt       *time.Time         `json:"cancelled_at"`
	CompletedAt       *time.Time         `json:"completed_at"`
	Items             []OrderItem        `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	Payments          []Payment          `gorm:"foreignKey:OrderID" json:"payments,omitempty"`
	StatusEvents      []OrderStatusEvent `gorm:"foreignKey:OrderID" json:"status_events,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// ErrOrderInvariant is returned when an order's money fields do not balance.
var ErrOrderInvariant = errors.New("order financial invariant violated")

// CheckInvariants verifies the money fields of an order.
func (o *Order) CheckInvariants() error {
	if o.Subtotal.IsNegative() {
		return fmt.Errorf("%w: subtotal must not be negative", ErrOrderInvariant)
	}
	if o.DepositPercentage.IsNegative() || o.DepositPercentage.GreaterThan(hundred) {
		return fmt.Errorf("%w: deposit percentage must be between 0 and 100", ErrOrderInvariant)
	}
	if !o.DepositAmount.Add(o.RemainingBalance).Equal(o.TotalAmount) {
		return fmt.Errorf("%w: deposit %s + remaining %s != total %s",
			ErrOrderInvariant, o.DepositAmount, o.RemainingBalance, o.TotalAmount)
	}
	return nil
}

// BeforeSave rejects any write that would leave the order unbalanced.
func (o *Order) BeforeSave(tx *gorm.DB) error {
	return o.CheckInvariants()
}

// BeforeDelete refuses physical deletion.
func (o *Order) BeforeDelete(tx *gorm.DB) error {
	return errors.New("orders cannot be deleted")
}
