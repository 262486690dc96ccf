package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hearthbakery/bakery-orders-api/models"
	"gorm.io/gorm"
)

const orderNumberPrefix = "ORD-"

// orderSequenceLockKey is the day-lock key guarding order numbers for one order date.
func orderSequenceLockKey(dayKey string) string {
	return "order-seq:" + dayKey
}

// FormatOrderNumber renders ORD-<YYYYMMDD>-<NNN>.
func FormatOrderNumber(dayKey string, seq int) string {
	return fmt.Sprintf("%s%s-%03d", orderNumberPrefix, dayKey, seq)
}

// ParseOrderSequence extracts the numeric suffix of an order number for dayKey.
func ParseOrderSequence(orderNumber, dayKey string) (int, bool) {
	prefix := orderNumberPrefix + dayKey + "-"
	if !strings.HasPrefix(orderNumber, prefix) {
		return 0, false
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(orderNumber, prefix))
	if err != nil || seq <= 0 {
		return 0, false
	}
	return seq, true
}

// NextOrderNumber returns the next order number for dayKey. It must run inside
// a transaction holding the day lock for dayKey, otherwise two callers can
// read the same maximum.
func NextOrderNumber(tx *gorm.DB, dayKey string) (string, error) {
	var numbers []string
	if err := tx.Model(&models.Order{}).
		Where("order_number LIKE ?", orderNumberPrefix+dayKey+"-%").
		Pluck("order_number", &numbers).Error; err != nil {
		return "", fmt.Errorf("failed to scan order numbers for %s: %w", dayKey, err)
	}

	highest := 0
	for _, number := range numbers {
		if seq, ok := ParseOrderSequence(number, dayKey); ok && seq > highest {
			highest = seq
		}
	}

	return FormatOrderNumber(dayKey, highest+1), nil
}
