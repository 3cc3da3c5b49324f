package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"staffbook-backend/internal/apperr"
	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/ports"
)

// Clock returns the current time. A nil Clock reads the wall clock.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c()
}

// notFound maps a store miss to the entity's NotFound error.
func notFound(err error, entity string) error {
	if errors.Is(err, ports.ErrNotFound) {
		return apperr.NotFound(entity)
	}
	return err
}

// stale maps a lost conditional write to an invalid transition.
func stale(err error, from, to string) error {
	if errors.Is(err, ports.ErrStale) {
		return apperr.Transition(from, to)
	}
	return err
}

// loadActor returns the persisted caller. Role and status are read from
// storage, never from token claims.
func loadActor(ctx context.Context, users ports.UserStore, actorID int64) (*domain.User, error) {
	u, err := users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, apperr.ErrInvalidToken
		}
		return nil, err
	}
	if u.Status == domain.StatusRejected || u.Status == domain.StatusInactive {
		return nil, apperr.ErrAccountDisabled
	}
	return u, nil
}

func requireManager(ctx context.Context, users ports.UserStore, actorID int64) (*domain.User, error) {
	u, err := loadActor(ctx, users, actorID)
	if err != nil {
		return nil, err
	}
	if !u.Role.IsManagement() || u.Status == domain.StatusPending {
		return nil, apperr.ErrForbidden
	}
	return u, nil
}

// sameCompanyUser loads a user the actor may see. Users of other tenants
// are reported as missing.
func sameCompanyUser(ctx context.Context, users ports.UserStore, companyID, userID int64) (*domain.User, error) {
	u, err := users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	if u.CompanyID != companyID {
		return nil, apperr.NotFound("user")
	}
	return u, nil
}

// audit writes an activity entry. Failures are logged only.
func audit(ctx context.Context, store ports.ActivityStore, logger *slog.Logger, entry domain.ActivityLog) {
	if store == nil {
		return
	}
	if err := store.Record(context.WithoutCancel(ctx), entry); err != nil && logger != nil {
		logger.Warn("record activity failed", "action", entry.Action, "entity", entry.Entity, "err", err)
	}
}

func ptr[T any](v T) *T { return &v }
