// Package document turns a resolved invoice into a deliverable file.
package document

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Renderer produces the bytes of an invoice document.
type Renderer interface {
	Render(ctx context.Context, inv *Invoice) ([]byte, error)
}

// Party is the sender or recipient block.
type Party struct {
	Name    string
	Email   string
	Address string
}

// Line is one billed row; time entries bill hours, expenses bill units.
type Line struct {
	Date        time.Time
	Description string
	Quantity    decimal.Decimal
	Unit        string
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

// Invoice is the fully resolved view of an invoice handed to a Renderer.
type Invoice struct {
	Number string
	Date   time.Time
	Status string
	From   Party
	To     Party
	Lines  []Line
	Total  decimal.Decimal
	Notes  string
}

// FileName is the suggested attachment name.
func (inv *Invoice) FileName() string {
	return inv.Number + ".pdf"
}
