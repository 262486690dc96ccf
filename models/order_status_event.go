package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrAppendOnly is returned by hooks on append-only tables.
var ErrAppendOnly = errors.New("record is append-only")

// OrderStatusEvent is one entry of an order's audit trail.
type OrderStatusEvent struct {
	ID               uint          `gorm:"primaryKey" json:"id"`
	OrderID          uint          `gorm:"not null;index" json:"order_id"`
	OldStatus        OrderStatus   `gorm:"size:32;not null" json:"old_status"`
	NewStatus        OrderStatus   `gorm:"size:32;not null" json:"new_status"`
	OldPaymentStatus PaymentStatus `gorm:"size:16;not null" json:"old_payment_status"`
	NewPaymentStatus PaymentStatus `gorm:"size:16;not null" json:"new_payment_status"`
	ActorID          *uint         `gorm:"index" json:"actor_id"`
	ActorKind        ActorKind     `gorm:"size:16;not null" json:"actor_kind"`
	Note             *string       `gorm:"type:text" json:"note"`
	CreatedAt        time.Time     `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for the OrderStatusEvent model
func (OrderStatusEvent) TableName() string {
	return "order_status_events"
}

func (e *OrderStatusEvent) BeforeUpdate(tx *gorm.DB) error { return ErrAppendOnly }

func (e *OrderStatusEvent) BeforeDelete(tx *gorm.DB) error { return ErrAppendOnly }
