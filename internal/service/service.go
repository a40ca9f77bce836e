package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/andy/billable/internal/domain"
)

// Clock reports the current instant. Every lifecycle stamp is the calendar
// day of one Clock reading taken at the start of the operation.
type Clock func() time.Time

func systemClock() time.Time { return time.Now() }

// classify tags an error leaving a service. Errors already carrying a
// domain class keep it; anything else is an infrastructure failure.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsClassified(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &domain.InfrastructureError{Op: op, Err: err}
}

func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}

// healExpense recomputes a drifted expense total in memory and logs the
// correction. The caller decides whether to persist it.
func healExpense(ctx context.Context, logger *slog.Logger, x *domain.Expense) bool {
	stored, healed := x.Heal()
	if healed {
		logger.WarnContext(ctx, "expense total inconsistent, recomputed",
			"expense_id", x.ID,
			"stored_total", stored.String(),
			"computed_total", x.TotalAmount.String(),
		)
	}
	return healed
}

// uniqueIDs drops duplicates and non-positive IDs, keeping first-seen order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
