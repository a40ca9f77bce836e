package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Project belongs to a client and may override the client's rate.
type Project struct {
	ID         int64
	ClientID   int64
	Name       string
	HourlyRate decimal.NullDecimal // null or zero means no override
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewProject(clientID int64, name string) *Project {
	now := time.Now().UTC()
	return &Project{
		ClientID:  clientID,
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RateOverride returns the project rate and whether it counts as set.
// A stored rate of exactly zero is treated as unset.
func (p *Project) RateOverride() (decimal.Decimal, bool) {
	if !p.HourlyRate.Valid || p.HourlyRate.Decimal.IsZero() {
		return decimal.Zero, false
	}
	return p.HourlyRate.Decimal, true
}

func (p *Project) Validate() error {
	if p.ClientID <= 0 {
		return Invalid("project client ID is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return Invalid("project name is required")
	}
	if p.HourlyRate.Valid && p.HourlyRate.Decimal.IsNegative() {
		return Invalid("project rate cannot be negative")
	}
	return nil
}
