package tui

import (
	"github.com/andy/billable/internal/domain"
	"github.com/andy/billable/internal/service"
)

// ErrorMsg carries error information
type ErrorMsg struct {
	Err error
}

type clientsLoadedMsg struct {
	clients []*domain.Client
	err     error
}

// unbilledLoadedMsg carries a client's unbilled items
type unbilledLoadedMsg struct {
	client *domain.Client
	items  *service.UnbilledItems
	err    error
}

type invoiceCreatedMsg struct {
	invoice *domain.Invoice
	err     error
}
