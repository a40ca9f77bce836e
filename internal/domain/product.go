package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Recurrence is the billing cadence of a catalog product.
type Recurrence string

const (
	RecurrenceNone    Recurrence = ""
	RecurrenceMonthly Recurrence = "monthly"
	RecurrenceYearly  Recurrence = "yearly"
)

var recurrenceSteps = map[Recurrence]func(time.Time) time.Time{
	RecurrenceMonthly: func(t time.Time) time.Time { return addMonthsClamped(t, 1) },
	RecurrenceYearly:  func(t time.Time) time.Time { return addMonthsClamped(t, 12) },
}

// ParseRecurrence accepts "", "none", "monthly" and "yearly" in any case.
func ParseRecurrence(s string) (Recurrence, error) {
	switch r := Recurrence(strings.ToLower(strings.TrimSpace(s))); r {
	case RecurrenceNone, RecurrenceMonthly, RecurrenceYearly:
		return r, nil
	case "none":
		return RecurrenceNone, nil
	default:
		return RecurrenceNone, Invalid("unknown recurrence %q", s)
	}
}

// NextDate returns the next billing date after from, or false for one-off products.
func (r Recurrence) NextDate(from time.Time) (time.Time, bool) {
	step, ok := recurrenceSteps[r]
	if !ok {
		return time.Time{}, false
	}
	return step(from), true
}

func (r Recurrence) String() string {
	if r == RecurrenceNone {
		return "none"
	}
	return string(r)
}

// addMonthsClamped keeps the day of month where possible and clamps to the
// last day otherwise, so Jan 31 + 1 month is Feb 28/29 rather than Mar 3.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Product is an expense catalog entry.
type Product struct {
	ID          int64
	SKU         string
	Description string
	UnitPrice   decimal.Decimal
	Recurrence  Recurrence
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewProduct(sku, description string, unitPrice decimal.Decimal) *Product {
	now := time.Now().UTC()
	return &Product{
		SKU:         strings.TrimSpace(sku),
		Description: strings.TrimSpace(description),
		UnitPrice:   unitPrice,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (p *Product) Validate() error {
	if p.SKU == "" {
		return Invalid("product SKU is required")
	}
	if p.UnitPrice.IsNegative() {
		return Invalid("unit price cannot be negative")
	}
	if _, err := ParseRecurrence(string(p.Recurrence)); err != nil {
		return err
	}
	return nil
}

func (p *Product) String() string {
	return fmt.Sprintf("%s (%s)", p.SKU, p.Description)
}
