package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"staffbook-backend/internal/apperr"
	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/metrics"
	"staffbook-backend/internal/ports"
	"staffbook-backend/internal/workflow"
)

// UserService covers the approval lifecycle and onboarding.
type UserService struct {
	Users    ports.UserStore
	Notifier Notifier
	Activity ports.ActivityStore
	Logger   *slog.Logger
	Clock    Clock
}

func (s UserService) Approve(ctx context.Context, approverID, userID int64) (*domain.User, error) {
	return s.changeStatus(ctx, approverID, userID, domain.StatusApproved, "", true)
}

func (s UserService) Reject(ctx context.Context, approverID, userID int64, reason string) (*domain.User, error) {
	return s.changeStatus(ctx, approverID, userID, domain.StatusRejected, strings.TrimSpace(reason), true)
}

// SetStatus deactivates or reactivates an approved account.
func (s UserService) SetStatus(ctx context.Context, actorID, userID int64, to domain.UserStatus) (*domain.User, error) {
	if to != domain.StatusInactive && to != domain.StatusApproved {
		return nil, apperr.Validation("status must be approved or inactive")
	}
	return s.changeStatus(ctx, actorID, userID, to, "", false)
}

// changeStatus applies a status move. Review decisions only act on pending
// registrations; administrative moves never act on them.
func (s UserService) changeStatus(ctx context.Context, actorID, userID int64, to domain.UserStatus, reason string, review bool) (*domain.User, error) {
	actor, err := requireManager(ctx, s.Users, actorID)
	if err != nil {
		return nil, err
	}
	target, err := sameCompanyUser(ctx, s.Users, actor.CompanyID, userID)
	if err != nil {
		return nil, err
	}
	if review != (target.Status == domain.StatusPending) {
		return nil, apperr.Transition(string(target.Status), string(to))
	}
	if err := workflow.UserTransition(target.Status, to); err != nil {
		return nil, err
	}
	if target.ID == actor.ID || target.Role == domain.RoleOwner && actor.Role != domain.RoleOwner {
		return nil, apperr.ErrForbidden
	}

	ch := ports.StatusChange{
		UserID:    target.ID,
		CompanyID: actor.CompanyID,
		From:      target.Status,
		To:        to,
		Reason:    reason,
	}
	if target.Status == domain.StatusPending {
		now := s.Clock.now()
		ch.ApprovedBy = &actor.ID
		ch.ApprovedAt = &now
	}
	updated, err := s.Users.UpdateStatus(ctx, ch)
	if err != nil {
		return nil, stale(err, string(target.Status), string(to))
	}
	metrics.Transition("user", string(to))
	audit(ctx, s.Activity, s.Logger, domain.ActivityLog{
		CompanyID: actor.CompanyID,
		ActorID:   &actor.ID,
		Action:    "user." + string(to),
		Entity:    "user",
		EntityID:  &updated.ID,
		Message:   fmt.Sprintf("%s moved %s from %s to %s", actor.Name, updated.Name, target.Status, to),
		LoggedAt:  s.Clock.now(),
	})
	if s.Notifier != nil {
		s.Notifier.Notify(ctx, updated.CompanyID, []int64{updated.ID}, statusMessage(target.Status, to, reason))
	}
	return updated, nil
}

func statusMessage(from, to domain.UserStatus, reason string) Message {
	switch {
	case from == domain.StatusInactive && to == domain.StatusApproved:
		return Message{
			Title:   "Account reactivated",
			Message: "Your account is active again.",
			Type:    domain.NotificationSuccess,
			Action:  domain.OpenHandbookAction{Status: to},
		}
	case to == domain.StatusApproved:
		return Message{
			Title:   "Account approved",
			Message: "Your account is approved. Complete onboarding to open the handbook.",
			Type:    domain.NotificationSuccess,
			Action:  domain.OpenHandbookAction{Status: to},
		}
	case to == domain.StatusRejected:
		msg := "Your registration was rejected."
		if reason != "" {
			msg += " Reason: " + reason
		}
		return Message{Title: "Registration rejected", Message: msg, Type: domain.NotificationError}
	default:
		return Message{
			Title:   "Account deactivated",
			Message: "Your account has been deactivated.",
			Type:    domain.NotificationWarning,
		}
	}
}

// CompleteOnboarding stores the onboarding form. It is allowed in any
// non-disabled state so pending users can fill it in while they wait.
func (s UserService) CompleteOnboarding(ctx context.Context, userID int64, p domain.OnboardingProfile) (*domain.User, error) {
	if _, err := loadActor(ctx, s.Users, userID); err != nil {
		return nil, err
	}
	p.Phone = strings.TrimSpace(p.Phone)
	p.EmergencyContactName = strings.TrimSpace(p.EmergencyContactName)
	p.EmergencyContactPhone = strings.TrimSpace(p.EmergencyContactPhone)
	if p.Phone == "" {
		return nil, apperr.Validation("phone is required")
	}
	if p.EmergencyContactName == "" || p.EmergencyContactPhone == "" {
		return nil, apperr.Validation("emergency contact is required")
	}
	u, err := s.Users.SaveOnboarding(ctx, userID, p)
	if err != nil {
		return nil, notFound(err, "user")
	}
	audit(ctx, s.Activity, s.Logger, domain.ActivityLog{
		CompanyID: u.CompanyID,
		ActorID:   &u.ID,
		Action:    "user.onboarded",
		Entity:    "user",
		EntityID:  &u.ID,
		LoggedAt:  s.Clock.now(),
	})
	return u, nil
}

func (s UserService) List(ctx context.Context, actorID int64, status domain.UserStatus) ([]domain.User, error) {
	actor, err := requireManager(ctx, s.Users, actorID)
	if err != nil {
		return nil, err
	}
	return s.Users.ListByCompany(ctx, actor.CompanyID, status)
}

func (s UserService) Get(ctx context.Context, actorID, userID int64) (*domain.User, error) {
	if actorID == userID {
		return loadActor(ctx, s.Users, actorID)
	}
	actor, err := requireManager(ctx, s.Users, actorID)
	if err != nil {
		return nil, err
	}
	return sameCompanyUser(ctx, s.Users, actor.CompanyID, userID)
}

// ParseStartDate accepts YYYY-MM-DD or RFC3339.
func ParseStartDate(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Validation("startDate must be YYYY-MM-DD")
}
