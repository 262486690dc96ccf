package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderItem is one line of an order. Product details are snapshotted so later
// catalog edits do not rewrite history.
type OrderItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrderID     uint            `gorm:"not null;index" json:"order_id"`
	ProductID   *uint           `gorm:"index" json:"product_id"` // nullable for custom work
	ProductName string          `gorm:"size:255;not null" json:"product_name"`
	Weight      *string         `gorm:"size:32" json:"weight"`
	Quantity    int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	LineTotal   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"line_total"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TableName specifies the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}

// BeforeCreate checks that the line total matches price times quantity.
func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.Quantity <= 0 {
		return errors.New("order item quantity must be positive")
	}
	if !i.UnitPrice.IsPositive() {
		return errors.New("order item unit price must be positive")
	}
	if !i.LineTotal.Equal(LineTotal(i.UnitPrice, i.Quantity)) {
		return errors.New("order item line total does not equal unit price times quantity")
	}
	return nil
}

// BeforeUpdate keeps order items immutable.
func (i *OrderItem) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("order items are immutable")
}
