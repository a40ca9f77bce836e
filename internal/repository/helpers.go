package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andy/billable/internal/db"
	"github.com/andy/billable/internal/domain"
)

// timeLayout is the RFC3339 format for storing instants in SQLite
const timeLayout = time.RFC3339

// parseTime parses a time string in RFC3339 format
func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// formatTime returns the current time formatted as RFC3339
func formatTime() string {
	return time.Now().UTC().Format(timeLayout)
}

// nullableTime formats an optional instant for a nullable TEXT column.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

// nullableDate formats an optional calendar date for a nullable TEXT column.
func nullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(domain.DateLayout)
}

func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseNullableDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(domain.DateLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// scanStamps parses the three lifecycle date columns shared by time entries and expenses.
func scanStamps(s *domain.BillingStamps, invoiced, sent, paid sql.NullString) error {
	var err error
	if s.InvoicedDate, err = parseNullableDate(invoiced); err != nil {
		return fmt.Errorf("failed to parse invoiced_date: %w", err)
	}
	if s.InvoiceSentDate, err = parseNullableDate(sent); err != nil {
		return fmt.Errorf("failed to parse invoice_sent_date: %w", err)
	}
	if s.PaidDate, err = parseNullableDate(paid); err != nil {
		return fmt.Errorf("failed to parse paid_date: %w", err)
	}
	return nil
}

// notFound maps sql.ErrNoRows onto domain.ErrNotFound.
func notFound(err error, entity string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", entity, id, domain.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", entity, err)
}

// checkVersioned interprets the result of an "UPDATE ... WHERE id = ? AND version = ?".
// No affected row means the row is gone (ErrNotFound) or another writer bumped
// its version first (ErrConcurrency).
func checkVersioned(ctx context.Context, q db.DBTX, result sql.Result, table, entity string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var count int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&count); err != nil {
		return fmt.Errorf("failed to check %s: %w", entity, err)
	}
	if count == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, domain.ErrNotFound)
	}
	return fmt.Errorf("%s %d was modified by another writer: %w", entity, id, domain.ErrConcurrency)
}

// inClause returns "?, ?, ?" and the matching args for an IN (...) filter.
func inClause(ids []int64) (string, []any) {
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return strings.Join(marks, ", "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(domain.DateLayout, s)
}
