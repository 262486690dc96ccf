package services

import (
	"context"
	"errors"
	"time"

	"github.com/hearthbakery/bakery-orders-api/models"
	"gorm.io/gorm"
)

// PickupPolicy decides whether a pickup date can be booked.
type PickupPolicy interface {
	Validate(ctx context.Context, pickupDate string) error
}

// CalendarPickupPolicy enforces an advance-notice window and the blocked-dates calendar.
type CalendarPickupPolicy struct {
	db             *gorm.DB
	minAdvanceDays int
	maxAdvanceDays int
	now            func() time.Time
}

// NewCalendarPickupPolicy creates a pickup policy backed by the blocked_dates table.
func NewCalendarPickupPolicy(db *gorm.DB, minAdvanceDays, maxAdvanceDays int) *CalendarPickupPolicy {
	return &CalendarPickupPolicy{
		db:             db,
		minAdvanceDays: minAdvanceDays,
		maxAdvanceDays: maxAdvanceDays,
		now:            time.Now,
	}
}

// WithClock overrides the clock (primarily for testing).
func (p *CalendarPickupPolicy) WithClock(now func() time.Time) *CalendarPickupPolicy {
	p.now = now
	return p
}

// Validate returns a validation error explaining why the date cannot be booked.
func (p *CalendarPickupPolicy) Validate(ctx context.Context, pickupDate string) error {
	date, err := models.ParseDate(pickupDate)
	if err != nil {
		return validationError("%s", err.Error())
	}

	today, _ := models.ParseDate(models.FormatDate(p.now()))
	earliest := today.AddDate(0, 0, p.minAdvanceDays)
	latest := today.AddDate(0, 0, p.maxAdvanceDays)

	if date.Before(earliest) {
		return validationError("pickup date must be at least %d days in advance (earliest available: %s)",
			p.minAdvanceDays, models.FormatDate(earliest))
	}
	if date.After(latest) {
		return validationError("pickup date cannot be more than %d days in advance (latest available: %s)",
			p.maxAdvanceDays, models.FormatDate(latest))
	}

	var blocked models.BlockedDate
	err = p.db.WithContext(ctx).Where("date = ?", pickupDate).First(&blocked).Error
	switch {
	case err == nil:
		reason := blocked.Reason
		if reason == "" {
			reason = "the bakery is closed"
		}
		return validationError("pickups are not available on %s: %s", pickupDate, reason)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return err
	}
}

// AllowAllPickupPolicy accepts every well-formed date.
type AllowAllPickupPolicy struct{}

// Validate only checks the date format.
func (AllowAllPickupPolicy) Validate(ctx context.Context, pickupDate string) error {
	if _, err := models.ParseDate(pickupDate); err != nil {
		return validationError("%s", err.Error())
	}
	return nil
}
