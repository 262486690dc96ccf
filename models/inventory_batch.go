package models

import "time"

// InventoryBatch is one day's cohort of a product's stock.
// There is at most one batch per product per calendar day.
type InventoryBatch struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_batches_product_date,priority:1" json:"product_id"`
	Product   Product   `gorm:"foreignKey:ProductID" json:"-"`
	BatchDate string    `gorm:"size:10;not null;uniqueIndex:idx_batches_product_date,priority:2" json:"batch_date"` // birth date, YYYY-MM-DD
	Quantity  int       `gorm:"not null;check:quantity >= 0" json:"quantity"`
	AgeDays   int       `gorm:"-" json:"age_days"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the InventoryBatch model
func (InventoryBatch) TableName() string {
	return "inventory_batches"
}
