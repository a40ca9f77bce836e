package repository

import (
	"context"
	"fmt"

	"github.com/andy/billable/internal/db"
	"github.com/andy/billable/internal/domain"
)

const clientColumns = `id, name, email, default_hourly_rate, cc_emails, bcc_emails, created_at, updated_at`

// ClientRepo is a SQLite implementation of ClientRepository
type ClientRepo struct {
	db db.DBTX
}

// NewClientRepo creates a new ClientRepo
func NewClientRepo(q db.DBTX) *ClientRepo {
	return &ClientRepo{db: q}
}

// Create inserts a new client into the database
func (r *ClientRepo) Create(ctx context.Context, client *domain.Client) error {
	if err := client.Validate(); err != nil {
		return fmt.Errorf("invalid client: %w", err)
	}

	query := `
		INSERT INTO clients (name, email, default_hourly_rate, cc_emails, bcc_emails, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		client.Name,
		client.Email,
		client.DefaultHourlyRate,
		domain.JoinEmailList(client.CCEmails),
		domain.JoinEmailList(client.BCCEmails),
		client.CreatedAt.Format(timeLayout),
		client.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get client ID: %w", err)
	}

	client.ID = id
	return nil
}

// GetByID retrieves a client by ID
func (r *ClientRepo) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	client, err := scanClient(row)
	if err != nil {
		return nil, notFound(err, "client", id)
	}
	return client, nil
}

// GetByName retrieves a client by exact name
func (r *ClientRepo) GetByName(ctx context.Context, name string) (*domain.Client, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE name = ?`, name)
	client, err := scanClient(row)
	if err != nil {
		return nil, notFound(err, "client", name)
	}
	return client, nil
}

// List retrieves all clients ordered by name
func (r *ClientRepo) List(ctx context.Context) ([]*domain.Client, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	clients := make([]*domain.Client, 0)
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clients: %w", err)
	}

	return clients, nil
}

// Update updates an existing client
func (r *ClientRepo) Update(ctx context.Context, client *domain.Client) error {
	if err := client.Validate(); err != nil {
		return fmt.Errorf("invalid client: %w", err)
	}

	query := `
		UPDATE clients
		SET name = ?, email = ?, default_hourly_rate = ?, cc_emails = ?, bcc_emails = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		client.Name,
		client.Email,
		client.DefaultHourlyRate,
		domain.JoinEmailList(client.CCEmails),
		domain.JoinEmailList(client.BCCEmails),
		formatTime(),
		client.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.NotFound("client", client.ID)
	}

	return nil
}

func scanClient(row rowScanner) (*domain.Client, error) {
	client := &domain.Client{}
	var cc, bcc, createdAt, updatedAt string

	if err := row.Scan(
		&client.ID,
		&client.Name,
		&client.Email,
		&client.DefaultHourlyRate,
		&cc,
		&bcc,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	client.CCEmails = domain.ParseEmailList(cc)
	client.BCCEmails = domain.ParseEmailList(bcc)

	var err error
	if client.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if client.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return client, nil
}
