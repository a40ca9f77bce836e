package testutil

import (
	"time"

	"github.com/andy/billable/internal/domain"
	"github.com/shopspring/decimal"
)

// Day is the pinned "today" used by service tests.
var Day = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// Dec parses a decimal literal, panicking on malformed test input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func NewTestClient(name, rate string) *domain.Client {
	c := domain.NewClient(name, Dec(rate))
	c.Email = "billing@example.com"
	return c
}

// Project options
type ProjectOption func(*domain.Project)

func WithProjectRate(rate string) ProjectOption {
	return func(p *domain.Project) {
		p.HourlyRate = decimal.NewNullDecimal(Dec(rate))
	}
}

func NewTestProject(clientID int64, name string, opts ...ProjectOption) *domain.Project {
	p := domain.NewProject(clientID, name)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Entry options
type EntryOption func(*domain.TimeEntry)

func WithProject(id int64) EntryOption {
	return func(e *domain.TimeEntry) {
		e.ProjectID = &id
	}
}

func WithStoredRate(rate string) EntryOption {
	return func(e *domain.TimeEntry) {
		e.HourlyRate = decimal.NewNullDecimal(Dec(rate))
	}
}

// Running leaves the entry's timer open.
func Running() EntryOption {
	return func(e *domain.TimeEntry) {
		e.EndTime = nil
		e.HoursSpent = decimal.NullDecimal{}
	}
}

// NewTestEntry creates a stopped entry of the given length in hours, ending a day before Day.
func NewTestEntry(clientID int64, hours string, opts ...EntryOption) *domain.TimeEntry {
	h := Dec(hours)
	start := Day.AddDate(0, 0, -1)
	e := domain.NewTimeEntry(clientID, nil, "test work", start)
	end := start.Add(time.Duration(h.Mul(decimal.NewFromInt(int64(time.Hour))).IntPart()))
	e.EndTime = &end
	e.HoursSpent = decimal.NewNullDecimal(h)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func NewTestProduct(sku, price string) *domain.Product {
	return domain.NewProduct(sku, sku+" description", Dec(price))
}

func NewTestExpense(clientID, productID int64, unit string, qty int64) *domain.Expense {
	return domain.NewExpense(clientID, productID, "test expense", Dec(unit), qty)
}
