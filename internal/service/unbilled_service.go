package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/andy/billable/internal/db"
	"github.com/andy/billable/internal/domain"
	"github.com/andy/billable/internal/repository"
	"github.com/shopspring/decimal"
)

// UnbilledTimeEntry is a time entry not yet on any invoice, priced at its current rate.
type UnbilledTimeEntry struct {
	Entry      *domain.TimeEntry
	Rate       decimal.Decimal
	RateSource domain.RateSource
	Total      decimal.Decimal // zero while the timer runs
}

// UnbilledExpense is an expense not yet on any invoice.
type UnbilledExpense struct {
	Expense *domain.Expense
	Total   decimal.Decimal
}

// UnbilledItems is everything a client could be invoiced for right now.
type UnbilledItems struct {
	ClientID    int64
	TimeEntries []UnbilledTimeEntry
	Expenses    []UnbilledExpense
}

// Total sums every listed item
func (u *UnbilledItems) Total() decimal.Decimal {
	total := decimal.Zero
	for _, te := range u.TimeEntries {
		total = total.Add(te.Total)
	}
	for _, ex := range u.Expenses {
		total = total.Add(ex.Total)
	}
	return total
}

// IsEmpty reports whether there is nothing to invoice
func (u *UnbilledItems) IsEmpty() bool {
	return len(u.TimeEntries) == 0 && len(u.Expenses) == 0
}

// UnbilledService lists the items that can go on a client's next invoice
type UnbilledService interface {
	// GetUnbilledItems returns every uninvoiced time entry and expense of a
	// client. Drifted expense totals are corrected and written back. An
	// unknown client yields an empty result.
	GetUnbilledItems(ctx context.Context, clientID int64) (*UnbilledItems, error)
}

type unbilledService struct {
	stores   *repository.Stores
	rates    RateResolver
	logger   *slog.Logger
	observer UseCaseObserver
}

// NewUnbilledService creates an aggregator reading through database
func NewUnbilledService(database db.DBTX, logger *slog.Logger, observers ...UseCaseObserver) UnbilledService {
	stores := repository.NewStores(database)
	return &unbilledService{
		stores:   stores,
		rates:    ratesFor(stores),
		logger:   loggerOrDiscard(logger),
		observer: useCaseObserverOrNoop(observers),
	}
}

func (s *unbilledService) GetUnbilledItems(ctx context.Context, clientID int64) (items *UnbilledItems, err error) {
	startedAt := time.Now()
	fields := map[string]any{"client_id": clientID}
	defer func() {
		s.observer.ObserveUseCase(ctx, UseCaseEvent{
			Name:      "invoice.unbilled",
			StartedAt: startedAt,
			Duration:  time.Since(startedAt),
			Success:   err == nil,
			Err:       err,
			Fields:    fields,
		})
	}()

	items = &UnbilledItems{ClientID: clientID}
	if clientID <= 0 {
		return items, nil
	}
	if _, err := s.stores.Clients.GetByID(ctx, clientID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return items, nil
		}
		return nil, classify("get unbilled items", err)
	}

	entries, err := s.stores.Entries.ListUnbilledByClient(ctx, clientID)
	if err != nil {
		return nil, classify("get unbilled items", err)
	}
	for _, e := range entries {
		rate, source, err := s.rates.EntryRate(ctx, e)
		if err != nil {
			return nil, classify("resolve entry rate", err)
		}
		items.TimeEntries = append(items.TimeEntries, UnbilledTimeEntry{
			Entry:      e,
			Rate:       rate,
			RateSource: source,
			Total:      e.Amount(rate),
		})
	}

	expenses, err := s.stores.Expenses.ListUnbilledByClient(ctx, clientID)
	if err != nil {
		return nil, classify("get unbilled items", err)
	}
	for _, x := range expenses {
		if healExpense(ctx, s.logger, x) {
			if err := s.stores.Expenses.SaveBilling(ctx, x); err != nil {
				if !errors.Is(err, domain.ErrConcurrency) {
					return nil, classify("heal expense total", err)
				}
				// Another writer got there first; report the computed total anyway.
				s.logger.WarnContext(ctx, "expense total correction lost a write race",
					"expense_id", x.ID, "error", err)
			}
		}
		items.Expenses = append(items.Expenses, UnbilledExpense{Expense: x, Total: x.TotalAmount})
	}

	fields["time_entries"] = len(items.TimeEntries)
	fields["expenses"] = len(items.Expenses)
	return items, nil
}
