package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Client struct {
	ID                int64
	Name              string
	Email             string
	DefaultHourlyRate decimal.Decimal
	CCEmails          []string
	BCCEmails         []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewClient creates a new client with required fields
func NewClient(name string, rate decimal.Decimal) *Client {
	now := time.Now().UTC()
	return &Client{
		Name:              strings.TrimSpace(name),
		DefaultHourlyRate: rate,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Validate returns an error if the client is invalid
func (c *Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return Invalid("client name is required")
	}
	if c.DefaultHourlyRate.IsNegative() {
		return Invalid("hourly rate cannot be negative")
	}
	return nil
}

// ParseEmailList splits a comma or semicolon separated address list.
func ParseEmailList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// JoinEmailList is the inverse of ParseEmailList.
func JoinEmailList(list []string) string {
	return strings.Join(list, ",")
}
