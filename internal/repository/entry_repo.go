package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/andy/billable/internal/db"
	"github.com/andy/billable/internal/domain"
)

const entryColumns = `id, client_id, project_id, user_id, description, start_time, end_time,
	hours_spent, hourly_rate, invoiced_date, invoice_sent_date, paid_date, version, created_at, updated_at`

// EntryRepo is a SQLite implementation of TimeEntryRepository
type EntryRepo struct {
	db db.DBTX
}

// NewEntryRepo creates a new EntryRepo
func NewEntryRepo(q db.DBTX) *EntryRepo {
	return &EntryRepo{db: q}
}

// Create inserts a new time entry into the database
func (r *EntryRepo) Create(ctx context.Context, entry *domain.TimeEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid time entry: %w", err)
	}

	query := `
		INSERT INTO time_entries (
			client_id, project_id, user_id, description, start_time, end_time,
			hours_spent, hourly_rate, invoiced_date, invoice_sent_date, paid_date,
			version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.ClientID,
		nullableID(entry.ProjectID),
		entry.UserID,
		entry.Description,
		entry.StartTime.UTC().Format(timeLayout),
		nullableTime(entry.EndTime),
		entry.HoursSpent,
		entry.HourlyRate,
		nullableDate(entry.InvoicedDate),
		nullableDate(entry.InvoiceSentDate),
		nullableDate(entry.PaidDate),
		entry.CreatedAt.Format(timeLayout),
		entry.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create time entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get time entry ID: %w", err)
	}

	entry.ID = id
	entry.Version = 1
	return nil
}

// GetByID retrieves a time entry by ID
func (r *EntryRepo) GetByID(ctx context.Context, id int64) (*domain.TimeEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE id = ?`, id)
	entry, err := scanTimeEntry(row)
	if err != nil {
		return nil, notFound(err, "time entry", id)
	}
	return entry, nil
}

// GetByIDs retrieves the entries among ids that exist, in id order
func (r *EntryRepo) GetByIDs(ctx context.Context, ids []int64) ([]*domain.TimeEntry, error) {
	if len(ids) == 0 {
		return []*domain.TimeEntry{}, nil
	}
	marks, args := inClause(ids)
	return r.query(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE id IN (`+marks+`) ORDER BY id`, args...)
}

// List retrieves entries, optionally for one client, newest first
func (r *EntryRepo) List(ctx context.Context, clientID *int64) ([]*domain.TimeEntry, error) {
	if clientID != nil {
		return r.query(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE client_id = ? ORDER BY start_time DESC`, *clientID)
	}
	return r.query(ctx, `SELECT `+entryColumns+` FROM time_entries ORDER BY start_time DESC`)
}

// ListUnbilledByClient retrieves a client's entries with no invoiced date
func (r *EntryRepo) ListUnbilledByClient(ctx context.Context, clientID int64) ([]*domain.TimeEntry, error) {
	return r.query(ctx, `
		SELECT `+entryColumns+`
		FROM time_entries
		WHERE client_id = ? AND invoiced_date IS NULL
		ORDER BY start_time, id
	`, clientID)
}

// ListByInvoice retrieves the entries linked to an invoice
func (r *EntryRepo) ListByInvoice(ctx context.Context, invoiceID int64) ([]*domain.TimeEntry, error) {
	return r.query(ctx, `
		SELECT `+entryColumns+`
		FROM time_entries
		WHERE id IN (SELECT time_entry_id FROM invoice_time_entries WHERE invoice_id = ?)
		ORDER BY start_time, id
	`, invoiceID)
}

// GetRunning returns the entry whose timer is running, or nil
func (r *EntryRepo) GetRunning(ctx context.Context) (*domain.TimeEntry, error) {
	entries, err := r.query(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE end_time IS NULL ORDER BY start_time DESC LIMIT 1`)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

// Update rewrites every editable column if the stored version still matches
func (r *EntryRepo) Update(ctx context.Context, entry *domain.TimeEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid time entry: %w", err)
	}

	query := `
		UPDATE time_entries
		SET client_id = ?, project_id = ?, user_id = ?, description = ?, start_time = ?, end_time = ?,
		    hours_spent = ?, hourly_rate = ?, invoiced_date = ?, invoice_sent_date = ?, paid_date = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.ClientID,
		nullableID(entry.ProjectID),
		entry.UserID,
		entry.Description,
		entry.StartTime.UTC().Format(timeLayout),
		nullableTime(entry.EndTime),
		entry.HoursSpent,
		entry.HourlyRate,
		nullableDate(entry.InvoicedDate),
		nullableDate(entry.InvoiceSentDate),
		nullableDate(entry.PaidDate),
		formatTime(),
		entry.ID,
		entry.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update time entry: %w", db.Conflict(err))
	}
	if err := checkVersioned(ctx, r.db, result, "time_entries", "time entry", entry.ID); err != nil {
		return err
	}
	entry.Version++
	return nil
}

// SaveBilling writes the hourly rate and the three lifecycle stamps
func (r *EntryRepo) SaveBilling(ctx context.Context, entry *domain.TimeEntry) error {
	query := `
		UPDATE time_entries
		SET hourly_rate = ?, invoiced_date = ?, invoice_sent_date = ?, paid_date = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.HourlyRate,
		nullableDate(entry.InvoicedDate),
		nullableDate(entry.InvoiceSentDate),
		nullableDate(entry.PaidDate),
		formatTime(),
		entry.ID,
		entry.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to save billing for time entry %d: %w", entry.ID, db.Conflict(err))
	}
	if err := checkVersioned(ctx, r.db, result, "time_entries", "time entry", entry.ID); err != nil {
		return err
	}
	entry.Version++
	return nil
}

func (r *EntryRepo) query(ctx context.Context, query string, args ...any) ([]*domain.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query time entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*domain.TimeEntry, 0)
	for rows.Next() {
		entry, err := scanTimeEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating time entries: %w", err)
	}

	return entries, nil
}

// scanTimeEntry is a helper to parse time entry rows
func scanTimeEntry(row rowScanner) (*domain.TimeEntry, error) {
	entry := &domain.TimeEntry{}
	var projectID sql.NullInt64
	var startTime, createdAt, updatedAt string
	var endTime, invoiced, sent, paid sql.NullString

	if err := row.Scan(
		&entry.ID,
		&entry.ClientID,
		&projectID,
		&entry.UserID,
		&entry.Description,
		&startTime,
		&endTime,
		&entry.HoursSpent,
		&entry.HourlyRate,
		&invoiced,
		&sent,
		&paid,
		&entry.Version,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if projectID.Valid {
		id := projectID.Int64
		entry.ProjectID = &id
	}

	var err error
	if entry.StartTime, err = parseTime(startTime); err != nil {
		return nil, fmt.Errorf("failed to parse start_time: %w", err)
	}
	if entry.EndTime, err = parseNullableTime(endTime); err != nil {
		return nil, fmt.Errorf("failed to parse end_time: %w", err)
	}
	if err := scanStamps(&entry.BillingStamps, invoiced, sent, paid); err != nil {
		return nil, err
	}
	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return entry, nil
}
