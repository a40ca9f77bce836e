// Package events publishes invoice lifecycle notifications.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types.
const (
	InvoiceCreated = "invoice.created"
	InvoiceSent    = "invoice.sent"
	InvoicePaid    = "invoice.paid"
	InvoiceVoided  = "invoice.voided"
	InvoiceDeleted = "invoice.deleted"
)

// InvoiceEvent is the payload published after an invoice transition commits.
type InvoiceEvent struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	InvoiceID  int64           `json:"invoice_id"`
	Number     string          `json:"number"`
	ClientID   int64           `json:"client_id"`
	Status     string          `json:"status"`
	Total      decimal.Decimal `json:"total"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewInvoiceEvent stamps a fresh event ID.
func NewInvoiceEvent(typ string, invoiceID int64, number string, clientID int64, status string, total decimal.Decimal, at time.Time) InvoiceEvent {
	return InvoiceEvent{
		ID:         uuid.New(),
		Type:       typ,
		InvoiceID:  invoiceID,
		Number:     number,
		ClientID:   clientID,
		Status:     status,
		Total:      total,
		OccurredAt: at.UTC(),
	}
}

// Publisher emits invoice events. Publishing is best effort; callers log failures.
type Publisher interface {
	Publish(ctx context.Context, ev InvoiceEvent) error
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, InvoiceEvent) error { return nil }
