package domain

import "time"

// DateLayout is the storage and display format of calendar dates.
const DateLayout = "2006-01-02"

// DateOf truncates t to its calendar day in t's location, expressed at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BillingStamps records which invoice lifecycle stages a time entry or
// expense has gone through. A nil date means the stage has not occurred.
type BillingStamps struct {
	InvoicedDate    *time.Time
	InvoiceSentDate *time.Time
	PaidDate        *time.Time
}

// IsInvoiced reports whether the item has been consumed by an invoice.
func (s *BillingStamps) IsInvoiced() bool {
	return s.InvoicedDate != nil
}

func (s *BillingStamps) MarkInvoiced(day time.Time) {
	d := DateOf(day)
	s.InvoicedDate = &d
}

func (s *BillingStamps) MarkSent(day time.Time) {
	d := DateOf(day)
	s.InvoiceSentDate = &d
}

func (s *BillingStamps) MarkPaid(day time.Time) {
	d := DateOf(day)
	s.PaidDate = &d
}

// Clear removes every stamp. Anything MarkInvoiced, MarkSent or MarkPaid
// sets must be reset here.
func (s *BillingStamps) Clear() {
	s.InvoicedDate = nil
	s.InvoiceSentDate = nil
	s.PaidDate = nil
}
