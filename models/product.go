package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a sellable bakery item whose stock is tracked in dated batches.
type Product struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Name            string          `gorm:"size:255;not null" json:"name"`
	Weight          *string         `gorm:"size:32" json:"weight"`
	Price           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	OriginalPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"original_price"` // cost basis for return credit
	ReturnTier      ReturnTier      `gorm:"size:16;not null;default:'partial'" json:"return_tier"`
	LegacyStock     int             `gorm:"not null;default:0" json:"legacy_stock"` // flat stock count from before batch tracking
	StockMigratedAt *time.Time      `json:"stock_migrated_at"`                      // set once legacy stock has moved into batches
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// CostBasis is the price used to value returned units.
func (p Product) CostBasis() decimal.Decimal {
	if p.OriginalPrice.IsPositive() {
		return p.OriginalPrice
	}
	return p.Price
}
