package service

import (
	"context"
	"errors"

	"github.com/andy/billable/internal/domain"
	"github.com/andy/billable/internal/repository"
	"github.com/shopspring/decimal"
)

// RateResolver derives hourly rates from the current project, client and
// settings rows. It never caches; every call reads fresh data.
type RateResolver interface {
	// ResolveHourlyRate applies the precedence project override, then
	// client default, then settings default. A project rate of zero is
	// unset and skipped, but a client that exists stops the chain even
	// when its rate is zero. Missing rows fall through.
	ResolveHourlyRate(ctx context.Context, projectID, clientID *int64) (decimal.Decimal, error)

	// EntryRate returns the rate a time entry bills at and which tier it came from.
	EntryRate(ctx context.Context, entry *domain.TimeEntry) (decimal.Decimal, domain.RateSource, error)
}

type rateResolver struct {
	projects repository.ProjectRepository
	clients  repository.ClientRepository
	settings repository.SettingsRepository
}

// NewRateResolver creates a resolver over the given repositories
func NewRateResolver(
	projects repository.ProjectRepository,
	clients repository.ClientRepository,
	settings repository.SettingsRepository,
) RateResolver {
	return &rateResolver{
		projects: projects,
		clients:  clients,
		settings: settings,
	}
}

func ratesFor(st *repository.Stores) RateResolver {
	return NewRateResolver(st.Projects, st.Clients, st.Settings)
}

func (r *rateResolver) ResolveHourlyRate(ctx context.Context, projectID, clientID *int64) (decimal.Decimal, error) {
	if projectID != nil {
		project, err := r.project(ctx, *projectID)
		if err != nil {
			return decimal.Zero, err
		}
		if project != nil {
			if rate, ok := project.RateOverride(); ok {
				return rate, nil
			}
		}
	}

	if clientID != nil {
		client, err := r.client(ctx, *clientID)
		if err != nil {
			return decimal.Zero, err
		}
		if client != nil {
			return client.DefaultHourlyRate, nil
		}
	}

	settings, err := r.settings.Get(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return settings.DefaultHourlyRate, nil
}

func (r *rateResolver) EntryRate(ctx context.Context, entry *domain.TimeEntry) (decimal.Decimal, domain.RateSource, error) {
	if rate, ok := entry.StoredRate(); ok {
		return rate, domain.RateSourceTimeEntry, nil
	}

	rate, err := r.ResolveHourlyRate(ctx, entry.ProjectID, &entry.ClientID)
	if err != nil {
		return decimal.Zero, "", err
	}

	// Attribute the rate to the first non-zero tier it matches. A client
	// rate of zero never claims credit, so it lands in Settings.
	if entry.ProjectID != nil {
		project, err := r.project(ctx, *entry.ProjectID)
		if err != nil {
			return decimal.Zero, "", err
		}
		if project != nil {
			if override, ok := project.RateOverride(); ok && override.Equal(rate) {
				return rate, domain.RateSourceProject, nil
			}
		}
	}
	client, err := r.client(ctx, entry.ClientID)
	if err != nil {
		return decimal.Zero, "", err
	}
	if client != nil && !client.DefaultHourlyRate.IsZero() && client.DefaultHourlyRate.Equal(rate) {
		return rate, domain.RateSourceClient, nil
	}
	return rate, domain.RateSourceSettings, nil
}

// project returns nil without error when the row does not exist
func (r *rateResolver) project(ctx context.Context, id int64) (*domain.Project, error) {
	p, err := r.projects.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

func (r *rateResolver) client(ctx context.Context, id int64) (*domain.Client, error) {
	c, err := r.clients.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return c, err
}
