package repository

import (
	"context"
	"fmt"

	"github.com/andy/billable/internal/db"
	"github.com/andy/billable/internal/domain"
)

// SettingsRepo stores the single settings row (id = 1)
type SettingsRepo struct {
	db db.DBTX
}

func NewSettingsRepo(q db.DBTX) *SettingsRepo {
	return &SettingsRepo{db: q}
}

// Get returns the settings row or ErrNotFound if it was never saved
func (r *SettingsRepo) Get(ctx context.Context) (*domain.Settings, error) {
	s := &domain.Settings{}
	var updatedAt string

	err := r.db.QueryRowContext(ctx, `
		SELECT default_hourly_rate, company_name, company_email, company_address, updated_at
		FROM settings WHERE id = 1
	`).Scan(&s.DefaultHourlyRate, &s.CompanyName, &s.CompanyEmail, &s.CompanyAddress, &updatedAt)
	if err != nil {
		return nil, notFound(err, "settings", 1)
	}

	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return s, nil
}

// Save inserts or replaces the settings row
func (r *SettingsRepo) Save(ctx context.Context, s *domain.Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (id, default_hourly_rate, company_name, company_email, company_address, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			default_hourly_rate = excluded.default_hourly_rate,
			company_name = excluded.company_name,
			company_email = excluded.company_email,
			company_address = excluded.company_address,
			updated_at = excluded.updated_at
	`, s.DefaultHourlyRate, s.CompanyName, s.CompanyEmail, s.CompanyAddress, formatTime())
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
