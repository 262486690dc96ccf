package models

import (
	"fmt"
	"time"
)

// DateLayout is the storage format for calendar dates (pickup dates, batch dates).
const DateLayout = "2006-01-02"

// TimeLayout is the storage format for pickup times.
const TimeLayout = "15:04"

const secondsPerDay = 24 * 60 * 60

// FormatDate renders t as a calendar date in its own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// ParsePickupTime validates an HH:MM pickup time.
func ParsePickupTime(s string) error {
	if _, err := time.Parse(TimeLayout, s); err != nil {
		return fmt.Errorf("invalid pickup time %q, expected HH:MM", s)
	}
	return nil
}

// DayKey is the compact YYYYMMDD form of t's calendar date used inside order numbers.
func DayKey(t time.Time) string {
	return t.Format("20060102")
}

// DaysBetween counts whole calendar days from one date to another. Both dates
// parse to midnight UTC, so the difference in Unix seconds is an exact number of days.
func DaysBetween(from, to string) (int, error) {
	start, err := ParseDate(from)
	if err != nil {
		return 0, err
	}
	end, err := ParseDate(to)
	if err != nil {
		return 0, err
	}
	return int((end.Unix() - start.Unix()) / secondsPerDay), nil
}
