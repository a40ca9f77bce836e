package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TimeEntry struct {
	ID          int64
	ClientID    int64
	ProjectID   *int64
	UserID      string
	Description string
	StartTime   time.Time
	EndTime     *time.Time          // nil while the timer is running
	HoursSpent  decimal.NullDecimal // null while the timer is running
	HourlyRate  decimal.NullDecimal // filled lazily, overwritten at invoice time
	BillingStamps
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTimeEntry creates a running time entry starting at start
func NewTimeEntry(clientID int64, projectID *int64, description string, start time.Time) *TimeEntry {
	now := time.Now().UTC()
	return &TimeEntry{
		ClientID:    clientID,
		ProjectID:   projectID,
		Description: description,
		StartTime:   start.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Duration returns the duration of the entry
func (e *TimeEntry) Duration(now time.Time) time.Duration {
	if e.EndTime == nil {
		return now.Sub(e.StartTime)
	}
	return e.EndTime.Sub(e.StartTime)
}

// IsRunning returns true if the entry has no end time
func (e *TimeEntry) IsRunning() bool {
	return e.EndTime == nil
}

// Stop sets the end time and the hours spent, rounded to two places.
func (e *TimeEntry) Stop(endTime time.Time) {
	end := endTime.UTC()
	e.EndTime = &end
	e.HoursSpent = decimal.NewNullDecimal(HoursBetween(e.StartTime, end))
}

// Hours returns the hours spent, or zero while running.
func (e *TimeEntry) Hours() decimal.Decimal {
	if !e.HoursSpent.Valid {
		return decimal.Zero
	}
	return e.HoursSpent.Decimal
}

// StoredRate returns the stored hourly rate if it is set and positive.
func (e *TimeEntry) StoredRate() (decimal.Decimal, bool) {
	if !e.HourlyRate.Valid || !e.HourlyRate.Decimal.IsPositive() {
		return decimal.Zero, false
	}
	return e.HourlyRate.Decimal, true
}

// Amount returns rate * hours, zero when hours are unknown.
func (e *TimeEntry) Amount(rate decimal.Decimal) decimal.Decimal {
	if !e.HoursSpent.Valid {
		return decimal.Zero
	}
	return rate.Mul(e.HoursSpent.Decimal)
}

// Validate returns an error if the entry is invalid
func (e *TimeEntry) Validate() error {
	if e.ClientID <= 0 {
		return Invalid("client ID is required")
	}
	if e.StartTime.IsZero() {
		return Invalid("start time is required")
	}
	if e.EndTime != nil && e.EndTime.Before(e.StartTime) {
		return Invalid("end time must be after start time")
	}
	if e.EndTime == nil && e.HoursSpent.Valid {
		return Invalid("running entry cannot have hours spent")
	}
	if e.EndTime != nil && !e.HoursSpent.Valid {
		return Invalid("stopped entry must have hours spent")
	}
	if e.HourlyRate.Valid && e.HourlyRate.Decimal.IsNegative() {
		return Invalid("hourly rate cannot be negative")
	}
	return nil
}

// HoursBetween returns the elapsed hours between two instants rounded to two places.
func HoursBetween(start, end time.Time) decimal.Decimal {
	secs := decimal.NewFromInt(int64(end.Sub(start) / time.Second))
	return secs.Div(decimal.NewFromInt(3600)).Round(2)
}
