package repository

import (
	"context"
	"fmt"

	"github.com/andy/billable/internal/db"
	"github.com/andy/billable/internal/domain"
)

const projectColumns = `id, client_id, name, hourly_rate, created_at, updated_at`

// ProjectRepo is a SQLite implementation of ProjectRepository
type ProjectRepo struct {
	db db.DBTX
}

func NewProjectRepo(q db.DBTX) *ProjectRepo {
	return &ProjectRepo{db: q}
}

func (r *ProjectRepo) Create(ctx context.Context, project *domain.Project) error {
	if err := project.Validate(); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (client_id, name, hourly_rate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		project.ClientID,
		project.Name,
		project.HourlyRate,
		project.CreatedAt.Format(timeLayout),
		project.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get project ID: %w", err)
	}
	project.ID = id
	return nil
}

func (r *ProjectRepo) GetByID(ctx context.Context, id int64) (*domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	project, err := scanProject(row)
	if err != nil {
		return nil, notFound(err, "project", id)
	}
	return project, nil
}

func (r *ProjectRepo) GetByName(ctx context.Context, clientID int64, name string) (*domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE client_id = ? AND name = ?`, clientID, name)
	project, err := scanProject(row)
	if err != nil {
		return nil, notFound(err, "project", name)
	}
	return project, nil
}

func (r *ProjectRepo) ListByClient(ctx context.Context, clientID int64) ([]*domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE client_id = ? ORDER BY name`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*domain.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

func (r *ProjectRepo) Update(ctx context.Context, project *domain.Project) error {
	if err := project.Validate(); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE projects SET client_id = ?, name = ?, hourly_rate = ?, updated_at = ?
		WHERE id = ?
	`, project.ClientID, project.Name, project.HourlyRate, formatTime(), project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.NotFound("project", project.ID)
	}
	return nil
}

func scanProject(row rowScanner) (*domain.Project, error) {
	project := &domain.Project{}
	var createdAt, updatedAt string
	if err := row.Scan(
		&project.ID,
		&project.ClientID,
		&project.Name,
		&project.HourlyRate,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if project.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if project.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return project, nil
}
