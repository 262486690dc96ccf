package models

import "time"

// BlockedDate is a calendar day on which the bakery takes no pickups.
type BlockedDate struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Date      string    `gorm:"size:10;uniqueIndex;not null" json:"date"`
	Reason    string    `gorm:"size:255" json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the BlockedDate model
func (BlockedDate) TableName() string {
	return "blocked_dates"
}
