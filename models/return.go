package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Return records stock pulled from the shelf and the credit it is valued at.
// A return and its lines are immutable once written.
type Return struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Reference     string          `gorm:"size:36;uniqueIndex;not null" json:"reference"`
	ReturnDate    string          `gorm:"size:10;not null;index" json:"return_date"`
	ProcessedByID *uint           `gorm:"index" json:"processed_by_id"`
	TotalValue    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_value"`
	TotalQuantity int             `gorm:"not null" json:"total_quantity"`
	TotalBatches  int             `gorm:"not null" json:"total_batches"`
	Notes         *string         `gorm:"type:text" json:"notes"`
	Lines         []ReturnLine    `gorm:"foreignKey:ReturnID" json:"lines"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TableName specifies the table name for the Return model
func (Return) TableName() string {
	return "returns"
}

// ReturnLine values the units pulled from a single batch.
type ReturnLine struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	ReturnID         uint            `gorm:"not null;index" json:"return_id"`
	BatchID          *uint           `gorm:"index" json:"batch_id"`   // nullable, the batch may have been reclaimed
	ProductID        *uint           `gorm:"index" json:"product_id"` // nullable, the product may have been removed
	ProductName      string          `gorm:"size:255;not null" json:"product_name"`
	BatchDate        string          `gorm:"size:10;not null" json:"batch_date"`
	Quantity         int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	AgeDays          int             `gorm:"not null" json:"age_days"`
	OriginalPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"original_price"`
	SalePrice        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"sale_price"`
	ReturnTier       ReturnTier      `gorm:"size:16;not null" json:"return_tier"`
	ReturnPercentage decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"return_percentage"`
	UnitReturnValue  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_return_value"`
	TotalReturnValue decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_return_value"`
	CreatedAt        time.Time       `json:"created_at"`
}

// TableName specifies the table name for the ReturnLine model
func (ReturnLine) TableName() string {
	return "return_lines"
}

// CheckTotals verifies the return's aggregate columns against its lines.
func (r *Return) CheckTotals() error {
	value := decimal.Zero
	quantity := 0
	for _, line := range r.Lines {
		value = value.Add(line.TotalReturnValue)
		quantity += line.Quantity
	}
	if !r.TotalValue.Equal(value) {
		return fmt.Errorf("return total value %s does not match lines %s", r.TotalValue, value)
	}
	if r.TotalQuantity != quantity {
		return fmt.Errorf("return total quantity %d does not match lines %d", r.TotalQuantity, quantity)
	}
	if r.TotalBatches != len(r.Lines) {
		return fmt.Errorf("return total batches %d does not match %d lines", r.TotalBatches, len(r.Lines))
	}
	return nil
}

// BeforeCreate enforces the aggregate totals at write time.
func (r *Return) BeforeCreate(tx *gorm.DB) error {
	if len(r.Lines) == 0 {
		return fmt.Errorf("return must have at least one line")
	}
	return r.CheckTotals()
}

func (r *Return) BeforeUpdate(tx *gorm.DB) error { return ErrAppendOnly }

func (r *Return) BeforeDelete(tx *gorm.DB) error { return ErrAppendOnly }

// BeforeCreate checks that a line is valued consistently with its tier.
func (l *ReturnLine) BeforeCreate(tx *gorm.DB) error {
	if l.Quantity <= 0 {
		return fmt.Errorf("return line quantity must be positive")
	}
	if !l.UnitReturnValue.Equal(PercentOf(l.OriginalPrice, l.ReturnPercentage)) {
		return fmt.Errorf("return line unit value does not match its tier")
	}
	if !l.TotalReturnValue.Equal(l.UnitReturnValue.Mul(decimal.NewFromInt(int64(l.Quantity)))) {
		return fmt.Errorf("return line total does not equal unit value times quantity")
	}
	return nil
}

func (l *ReturnLine) BeforeUpdate(tx *gorm.DB) error { return ErrAppendOnly }

func (l *ReturnLine) BeforeDelete(tx *gorm.DB) error { return ErrAppendOnly }
