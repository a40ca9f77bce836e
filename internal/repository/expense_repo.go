package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/andy/billable/internal/db"
	"github.com/andy/billable/internal/domain"
)

const expenseColumns = `id, client_id, product_id, description, unit_amount, quantity, total_amount,
	invoiced_date, invoice_sent_date, paid_date, version, created_at, updated_at`

// ExpenseRepo is a SQLite implementation of ExpenseRepository
type ExpenseRepo struct {
	db db.DBTX
}

func NewExpenseRepo(q db.DBTX) *ExpenseRepo {
	return &ExpenseRepo{db: q}
}

func (r *ExpenseRepo) Create(ctx context.Context, expense *domain.Expense) error {
	if err := expense.Validate(); err != nil {
		return fmt.Errorf("invalid expense: %w", err)
	}

	query := `
		INSERT INTO expenses (
			client_id, product_id, description, unit_amount, quantity, total_amount,
			invoiced_date, invoice_sent_date, paid_date, version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		expense.ClientID,
		expense.ProductID,
		expense.Description,
		expense.UnitAmount,
		expense.Quantity,
		expense.TotalAmount,
		nullableDate(expense.InvoicedDate),
		nullableDate(expense.InvoiceSentDate),
		nullableDate(expense.PaidDate),
		expense.CreatedAt.Format(timeLayout),
		expense.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get expense ID: %w", err)
	}
	expense.ID = id
	expense.Version = 1
	return nil
}

func (r *ExpenseRepo) GetByID(ctx context.Context, id int64) (*domain.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	expense, err := scanExpense(row)
	if err != nil {
		return nil, notFound(err, "expense", id)
	}
	return expense, nil
}

func (r *ExpenseRepo) GetByIDs(ctx context.Context, ids []int64) ([]*domain.Expense, error) {
	if len(ids) == 0 {
		return []*domain.Expense{}, nil
	}
	marks, args := inClause(ids)
	return r.query(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id IN (`+marks+`) ORDER BY id`, args...)
}

func (r *ExpenseRepo) List(ctx context.Context, clientID *int64) ([]*domain.Expense, error) {
	if clientID != nil {
		return r.query(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE client_id = ? ORDER BY created_at DESC, id DESC`, *clientID)
	}
	return r.query(ctx, `SELECT `+expenseColumns+` FROM expenses ORDER BY created_at DESC, id DESC`)
}

func (r *ExpenseRepo) ListUnbilledByClient(ctx context.Context, clientID int64) ([]*domain.Expense, error) {
	return r.query(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE client_id = ? AND invoiced_date IS NULL
		ORDER BY id
	`, clientID)
}

func (r *ExpenseRepo) ListByInvoice(ctx context.Context, invoiceID int64) ([]*domain.Expense, error) {
	return r.query(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE id IN (SELECT expense_id FROM invoice_expenses WHERE invoice_id = ?)
		ORDER BY id
	`, invoiceID)
}

// SaveBilling writes the total amount and the three lifecycle stamps
func (r *ExpenseRepo) SaveBilling(ctx context.Context, expense *domain.Expense) error {
	query := `
		UPDATE expenses
		SET total_amount = ?, invoiced_date = ?, invoice_sent_date = ?, paid_date = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		expense.TotalAmount,
		nullableDate(expense.InvoicedDate),
		nullableDate(expense.InvoiceSentDate),
		nullableDate(expense.PaidDate),
		formatTime(),
		expense.ID,
		expense.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to save billing for expense %d: %w", expense.ID, db.Conflict(err))
	}
	if err := checkVersioned(ctx, r.db, result, "expenses", "expense", expense.ID); err != nil {
		return err
	}
	expense.Version++
	return nil
}

func (r *ExpenseRepo) query(ctx context.Context, query string, args ...any) ([]*domain.Expense, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]*domain.Expense, 0)
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expenses: %w", err)
	}
	return expenses, nil
}

func scanExpense(row rowScanner) (*domain.Expense, error) {
	expense := &domain.Expense{}
	var createdAt, updatedAt string
	var invoiced, sent, paid sql.NullString

	if err := row.Scan(
		&expense.ID,
		&expense.ClientID,
		&expense.ProductID,
		&expense.Description,
		&expense.UnitAmount,
		&expense.Quantity,
		&expense.TotalAmount,
		&invoiced,
		&sent,
		&paid,
		&expense.Version,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if err := scanStamps(&expense.BillingStamps, invoiced, sent, paid); err != nil {
		return nil, err
	}

	var err error
	if expense.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if expense.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return expense, nil
}
