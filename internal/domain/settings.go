package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settings is the singleton company configuration row.
type Settings struct {
	DefaultHourlyRate decimal.Decimal
	CompanyName       string
	CompanyEmail      string
	CompanyAddress    string
	UpdatedAt         time.Time
}

func (s *Settings) Validate() error {
	if s.DefaultHourlyRate.IsNegative() {
		return Invalid("default hourly rate cannot be negative")
	}
	return nil
}
