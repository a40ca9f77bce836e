package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/andy/billable/internal/db"
	"github.com/andy/billable/internal/domain"
)

const invoiceColumns = `id, number, client_id, invoice_date, invoice_sent_date, paid_date,
	total_amount, status, version, created_at, updated_at`

// InvoiceRepo is a SQLite implementation of InvoiceRepository
type InvoiceRepo struct {
	db db.DBTX
}

// NewInvoiceRepo creates a new InvoiceRepo
func NewInvoiceRepo(q db.DBTX) *InvoiceRepo {
	return &InvoiceRepo{db: q}
}

// Create inserts a new invoice into the database
func (r *InvoiceRepo) Create(ctx context.Context, invoice *domain.Invoice) error {
	if err := invoice.Validate(); err != nil {
		return fmt.Errorf("invalid invoice: %w", err)
	}

	query := `
		INSERT INTO invoices (
			number, client_id, invoice_date, invoice_sent_date, paid_date,
			total_amount, status, version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		invoice.Number,
		invoice.ClientID,
		invoice.InvoiceDate.Format(domain.DateLayout),
		nullableDate(invoice.InvoiceSentDate),
		nullableDate(invoice.PaidDate),
		invoice.TotalAmount,
		string(invoice.Status),
		invoice.CreatedAt.Format(timeLayout),
		invoice.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get invoice ID: %w", err)
	}

	invoice.ID = id
	invoice.Version = 1
	return nil
}

// GetByID retrieves an invoice with its join rows
func (r *InvoiceRepo) GetByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	invoice, err := scanInvoice(row)
	if err != nil {
		return nil, notFound(err, "invoice", id)
	}

	if invoice.TimeEntries, err = r.timeEntryLinks(ctx, id); err != nil {
		return nil, err
	}
	if invoice.Expenses, err = r.expenseLinks(ctx, id); err != nil {
		return nil, err
	}
	return invoice, nil
}

// List retrieves invoices with optional filters, newest first
func (r *InvoiceRepo) List(ctx context.Context, clientID *int64, status *domain.InvoiceStatus) ([]*domain.Invoice, error) {
	var where []string
	var args []any
	if clientID != nil {
		where = append(where, "client_id = ?")
		args = append(args, *clientID)
	}
	if status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*status))
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY invoice_date DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]*domain.Invoice, 0)
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoices: %w", err)
	}
	return invoices, nil
}

// Update writes dates, total and status if the stored version still matches
func (r *InvoiceRepo) Update(ctx context.Context, invoice *domain.Invoice) error {
	if err := invoice.Validate(); err != nil {
		return fmt.Errorf("invalid invoice: %w", err)
	}

	query := `
		UPDATE invoices
		SET invoice_date = ?, invoice_sent_date = ?, paid_date = ?, total_amount = ?, status = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		invoice.InvoiceDate.Format(domain.DateLayout),
		nullableDate(invoice.InvoiceSentDate),
		nullableDate(invoice.PaidDate),
		invoice.TotalAmount,
		string(invoice.Status),
		formatTime(),
		invoice.ID,
		invoice.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", db.Conflict(err))
	}
	if err := checkVersioned(ctx, r.db, result, "invoices", "invoice", invoice.ID); err != nil {
		return err
	}
	invoice.Version++
	return nil
}

// Delete removes the invoice row if the stored version still matches.
// Join rows must be removed first.
func (r *InvoiceRepo) Delete(ctx context.Context, invoice *domain.Invoice) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ? AND version = ?`, invoice.ID, invoice.Version)
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", db.Conflict(err))
	}
	return checkVersioned(ctx, r.db, result, "invoices", "invoice", invoice.ID)
}

// AddTimeEntry links a time entry to an invoice
func (r *InvoiceRepo) AddTimeEntry(ctx context.Context, link *domain.InvoiceTimeEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invoice_time_entries (invoice_id, time_entry_id, notes) VALUES (?, ?, ?)
	`, link.InvoiceID, link.TimeEntryID, link.Notes)
	if err != nil {
		return fmt.Errorf("failed to link time entry %d: %w", link.TimeEntryID, err)
	}
	return nil
}

// AddExpense inserts an expense line snapshot
func (r *InvoiceRepo) AddExpense(ctx context.Context, link *domain.InvoiceExpense) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO invoice_expenses (
			invoice_id, expense_id, product_id, description, unit_amount, quantity, product_invoice_date
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		link.InvoiceID,
		link.ExpenseID,
		link.ProductID,
		link.Description,
		link.UnitAmount,
		link.Quantity,
		link.ProductInvoiceDate.Format(domain.DateLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to link expense %d: %w", link.ExpenseID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get invoice expense ID: %w", err)
	}
	link.ID = id
	return nil
}

// DeleteLinks removes every join row of an invoice
func (r *InvoiceRepo) DeleteLinks(ctx context.Context, invoiceID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM invoice_time_entries WHERE invoice_id = ?`, invoiceID); err != nil {
		return fmt.Errorf("failed to unlink time entries: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM invoice_expenses WHERE invoice_id = ?`, invoiceID); err != nil {
		return fmt.Errorf("failed to unlink expenses: %w", err)
	}
	return nil
}

// NextNumber generates the next invoice number in format "PREFIX-YEAR-SEQUENCE".
// The stem is compared literally, so prefixes holding LIKE wildcards
// ("_", "%") only match their own numbers.
func (r *InvoiceRepo) NextNumber(ctx context.Context, prefix string, year int) (string, error) {
	stem := fmt.Sprintf("%s-%d-", prefix, year)
	stemLen := utf8.RuneCountInString(stem)

	query := `
		SELECT number
		FROM invoices
		WHERE substr(number, 1, ?) = ?
		  AND substr(number, ? + 1) GLOB '[0-9]*'
		ORDER BY length(number) DESC, number DESC
		LIMIT 1
	`

	var last string
	err := r.db.QueryRowContext(ctx, query, stemLen, stem, stemLen).Scan(&last)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return stem + "001", nil
		}
		return "", fmt.Errorf("failed to get last invoice number: %w", err)
	}

	var seq int
	if _, err := fmt.Sscanf(strings.TrimPrefix(last, stem), "%d", &seq); err != nil {
		return "", fmt.Errorf("failed to parse invoice number %q: %w", last, err)
	}

	return fmt.Sprintf("%s%03d", stem, seq+1), nil
}

func (r *InvoiceRepo) timeEntryLinks(ctx context.Context, invoiceID int64) ([]*domain.InvoiceTimeEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT invoice_id, time_entry_id, notes
		FROM invoice_time_entries
		WHERE invoice_id = ?
		ORDER BY time_entry_id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice time entries: %w", err)
	}
	defer rows.Close()

	links := make([]*domain.InvoiceTimeEntry, 0)
	for rows.Next() {
		link := &domain.InvoiceTimeEntry{}
		if err := rows.Scan(&link.InvoiceID, &link.TimeEntryID, &link.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan invoice time entry: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoice time entries: %w", err)
	}
	return links, nil
}

func (r *InvoiceRepo) expenseLinks(ctx context.Context, invoiceID int64) ([]*domain.InvoiceExpense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, invoice_id, expense_id, product_id, description, unit_amount, quantity, product_invoice_date
		FROM invoice_expenses
		WHERE invoice_id = ?
		ORDER BY id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice expenses: %w", err)
	}
	defer rows.Close()

	links := make([]*domain.InvoiceExpense, 0)
	for rows.Next() {
		link := &domain.InvoiceExpense{}
		var day string
		if err := rows.Scan(
			&link.ID,
			&link.InvoiceID,
			&link.ExpenseID,
			&link.ProductID,
			&link.Description,
			&link.UnitAmount,
			&link.Quantity,
			&day,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invoice expense: %w", err)
		}
		if link.ProductInvoiceDate, err = parseDate(day); err != nil {
			return nil, fmt.Errorf("failed to parse product_invoice_date: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoice expenses: %w", err)
	}
	return links, nil
}

// scanInvoice is a helper to parse invoice rows
func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	invoice := &domain.Invoice{}
	var invoiceDate, status, createdAt, updatedAt string
	var sent, paid sql.NullString

	if err := row.Scan(
		&invoice.ID,
		&invoice.Number,
		&invoice.ClientID,
		&invoiceDate,
		&sent,
		&paid,
		&invoice.TotalAmount,
		&status,
		&invoice.Version,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	invoice.Status = domain.InvoiceStatus(status)

	var err error
	if invoice.InvoiceDate, err = parseDate(invoiceDate); err != nil {
		return nil, fmt.Errorf("failed to parse invoice_date: %w", err)
	}
	if invoice.InvoiceSentDate, err = parseNullableDate(sent); err != nil {
		return nil, fmt.Errorf("failed to parse invoice_sent_date: %w", err)
	}
	if invoice.PaidDate, err = parseNullableDate(paid); err != nil {
		return nil, fmt.Errorf("failed to parse paid_date: %w", err)
	}
	if invoice.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if invoice.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return invoice, nil
}
