package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "draft"
	InvoiceStatusSent  InvoiceStatus = "sent"
	InvoiceStatusPaid  InvoiceStatus = "paid"
	InvoiceStatusVoid  InvoiceStatus = "void"
)

// ParseInvoiceStatus accepts any casing; "canceled" is an alias of void.
func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "draft":
		return InvoiceStatusDraft, nil
	case "sent":
		return InvoiceStatusSent, nil
	case "paid":
		return InvoiceStatusPaid, nil
	case "void", "canceled", "cancelled":
		return InvoiceStatusVoid, nil
	default:
		return "", Invalid("unknown invoice status %q", s)
	}
}

type Invoice struct {
	ID              int64
	Number          string
	ClientID        int64
	InvoiceDate     time.Time
	InvoiceSentDate *time.Time
	PaidDate        *time.Time
	TotalAmount     decimal.Decimal
	Status          InvoiceStatus
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Related data (populated by repository)
	TimeEntries []*InvoiceTimeEntry
	Expenses    []*InvoiceExpense
}

// InvoiceTimeEntry links an invoice to one billed time entry.
type InvoiceTimeEntry struct {
	InvoiceID   int64
	TimeEntryID int64
	Notes       string
}

// InvoiceExpense links an invoice to one billed expense. It has its own
// surrogate ID so several expenses for the same product can share an
// invoice, and snapshots the billed figures so later catalog edits do not
// alter the invoice.
type InvoiceExpense struct {
	ID                 int64
	InvoiceID          int64
	ExpenseID          int64
	ProductID          int64
	Description        string
	UnitAmount         decimal.Decimal
	Quantity           int64
	ProductInvoiceDate time.Time
}

// Total is UnitAmount * Quantity of the snapshot.
func (x *InvoiceExpense) Total() decimal.Decimal {
	return x.UnitAmount.Mul(decimal.NewFromInt(x.Quantity))
}

// NewInvoice creates an invoice dated on day
func NewInvoice(clientID int64, status InvoiceStatus, day time.Time) *Invoice {
	now := time.Now().UTC()
	if status == "" {
		status = InvoiceStatusDraft
	}
	return &Invoice{
		ClientID:    clientID,
		InvoiceDate: DateOf(day),
		Status:      status,
		TotalAmount: decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CanSend returns ErrInvalidState unless the invoice is still a draft.
// Sent is terminal for sending, so an invoice cannot be re-sent.
func (i *Invoice) CanSend() error {
	switch i.Status {
	case InvoiceStatusSent, InvoiceStatusPaid:
		return InvalidState("invoice %d is already %s", i.ID, i.Status)
	case InvoiceStatusVoid:
		return InvalidState("invoice %d is void", i.ID)
	}
	return nil
}

// MarkSent stamps the sent date and moves Draft to Sent. Other statuses are left as-is.
func (i *Invoice) MarkSent(day time.Time) {
	d := DateOf(day)
	i.InvoiceSentDate = &d
	if i.Status == InvoiceStatusDraft {
		i.Status = InvoiceStatusSent
	}
}

// MarkPaid stamps the paid date and sets Paid from any status.
func (i *Invoice) MarkPaid(day time.Time) {
	d := DateOf(day)
	i.PaidDate = &d
	i.Status = InvoiceStatusPaid
}

// Void cancels a draft or sent invoice.
func (i *Invoice) Void() error {
	switch i.Status {
	case InvoiceStatusDraft, InvoiceStatusSent:
		i.Status = InvoiceStatusVoid
		return nil
	}
	return InvalidState("invoice %d cannot be voided from %s", i.ID, i.Status)
}

// Validate returns an error if the invoice is invalid
func (i *Invoice) Validate() error {
	if i.ClientID <= 0 {
		return Invalid("client ID is required")
	}
	if i.InvoiceDate.IsZero() {
		return Invalid("invoice date is required")
	}
	if _, err := ParseInvoiceStatus(string(i.Status)); err != nil {
		return err
	}
	if i.TotalAmount.IsNegative() {
		return Invalid("total cannot be negative")
	}
	return nil
}
