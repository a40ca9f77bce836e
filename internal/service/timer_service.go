package service

import (
	"context"
	"fmt"
	"time"

	"github.com/andy/billable/internal/db"
	"github.com/andy/billable/internal/domain"
	"github.com/andy/billable/internal/repository"
)

var (
	ErrTimerAlreadyRunning = fmt.Errorf("%w: timer is already running", domain.ErrInvalidState)
	ErrNoActiveTimer       = fmt.Errorf("%w: no timer is running", domain.ErrInvalidState)
)

// TimerService runs a stopwatch over time entries. A running timer is a
// time entry without an end time; at most one exists at a time.
type TimerService interface {
	// Start opens a running entry for the client, optionally on one of its projects
	Start(ctx context.Context, clientID int64, projectID *int64, description string) (*domain.TimeEntry, error)

	// Stop closes the running entry and records the hours spent
	Stop(ctx context.Context) (*domain.TimeEntry, error)

	// Active returns the running entry, or nil when idle
	Active(ctx context.Context) (*domain.TimeEntry, error)
}

type timerService struct {
	uow    db.UnitOfWork
	stores *repository.Stores
	clock  Clock
	userID string
}

// NewTimerService creates a new timer service. Entries it starts are owned by userID.
func NewTimerService(database db.DBTX, uow db.UnitOfWork, clock Clock, userID string) TimerService {
	if clock == nil {
		clock = systemClock
	}
	return &timerService{
		uow:    uow,
		stores: repository.NewStores(database),
		clock:  clock,
		userID: userID,
	}
}

func (s *timerService) Start(ctx context.Context, clientID int64, projectID *int64, description string) (*domain.TimeEntry, error) {
	var entry *domain.TimeEntry
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		st := repository.NewStores(tx)

		if _, err := st.Clients.GetByID(ctx, clientID); err != nil {
			return err
		}
		if projectID != nil {
			project, err := st.Projects.GetByID(ctx, *projectID)
			if err != nil {
				return err
			}
			if project.ClientID != clientID {
				return domain.Invalid("project %d does not belong to client %d", project.ID, clientID)
			}
		}

		running, err := st.Entries.GetRunning(ctx)
		if err != nil {
			return err
		}
		if running != nil {
			return ErrTimerAlreadyRunning
		}

		entry = domain.NewTimeEntry(clientID, projectID, description, s.clock().Truncate(time.Second))
		entry.UserID = s.userID
		return st.Entries.Create(ctx, entry)
	})
	if err != nil {
		return nil, classify("start timer", err)
	}
	return entry, nil
}

func (s *timerService) Stop(ctx context.Context) (*domain.TimeEntry, error) {
	var entry *domain.TimeEntry
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		st := repository.NewStores(tx)

		var err error
		if entry, err = st.Entries.GetRunning(ctx); err != nil {
			return err
		}
		if entry == nil {
			return ErrNoActiveTimer
		}

		end := s.clock().Truncate(time.Second)
		if end.Before(entry.StartTime) {
			end = entry.StartTime
		}
		entry.Stop(end)
		return st.Entries.Update(ctx, entry)
	})
	if err != nil {
		return nil, classify("stop timer", err)
	}
	return entry, nil
}

func (s *timerService) Active(ctx context.Context) (*domain.TimeEntry, error) {
	entry, err := s.stores.Entries.GetRunning(ctx)
	if err != nil {
		return nil, classify("get active timer", err)
	}
	return entry, nil
}
