package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Expense struct {
	ID          int64
	ClientID    int64
	ProductID   int64
	Description string
	UnitAmount  decimal.Decimal
	Quantity    int64
	TotalAmount decimal.Decimal
	BillingStamps
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewExpense(clientID, productID int64, description string, unitAmount decimal.Decimal, quantity int64) *Expense {
	now := time.Now().UTC()
	e := &Expense{
		ClientID:    clientID,
		ProductID:   productID,
		Description: strings.TrimSpace(description),
		UnitAmount:  unitAmount,
		Quantity:    quantity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	e.TotalAmount = e.ExpectedTotal()
	return e
}

// ExpectedTotal is UnitAmount * Quantity.
func (e *Expense) ExpectedTotal() decimal.Decimal {
	return e.UnitAmount.Mul(decimal.NewFromInt(e.Quantity))
}

// Heal recomputes TotalAmount if it drifted. It returns the previous stored
// value and whether a correction was made.
func (e *Expense) Heal() (decimal.Decimal, bool) {
	stored := e.TotalAmount
	want := e.ExpectedTotal()
	if stored.Equal(want) {
		return stored, false
	}
	e.TotalAmount = want
	return stored, true
}

func (e *Expense) Validate() error {
	if e.ClientID <= 0 {
		return Invalid("client ID is required")
	}
	if e.ProductID <= 0 {
		return Invalid("product ID is required")
	}
	if e.Quantity < 1 {
		return Invalid("quantity must be at least 1")
	}
	if e.UnitAmount.IsNegative() {
		return Invalid("unit amount cannot be negative")
	}
	return nil
}
