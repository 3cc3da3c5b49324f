package service

import (
	"context"
	"log/slog"
	"strings"

	"staffbook-backend/internal/apperr"
	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/metrics"
	"staffbook-backend/internal/ports"
)

// Message is the content fanned out to each recipient.
type Message struct {
	Title   string
	Message string
	Type    domain.NotificationType
	Action  domain.Action
}

// NotificationService persists in-app notifications and pushes them to
// devices. Delivery is best effort: the triggering operation has already
// committed when Notify runs.
type NotificationService struct {
	Store   ports.NotificationStore
	Devices ports.DeviceTokenStore
	Pusher  ports.Pusher
	Logger  *slog.Logger
	Clock   Clock
}

// Notify writes one notification per recipient and reports how many were
// stored. Errors are logged and counted, never returned.
func (s NotificationService) Notify(ctx context.Context, companyID int64, recipients []int64, m Message) int {
	ctx = context.WithoutCancel(ctx)
	if m.Type == "" {
		m.Type = domain.NotificationInfo
	}
	seen := make(map[int64]bool, len(recipients))
	delivered := 0
	for _, userID := range recipients {
		if seen[userID] {
			continue
		}
		seen[userID] = true

		_, err := s.Store.Create(ctx, domain.Notification{
			CompanyID: companyID,
			UserID:    userID,
			Title:     m.Title,
			Message:   m.Message,
			Type:      m.Type,
			Action:    m.Action,
			CreatedAt: s.Clock.now(),
		})
		metrics.Notification("in_app", err)
		if err != nil {
			s.log().Error("store notification failed", "user_id", userID, "title", m.Title, "err", err)
			continue
		}
		delivered++

		if s.Pusher == nil {
			continue
		}
		data := map[string]string{"type": string(m.Type)}
		if m.Action != nil {
			data["actionType"] = string(m.Action.ActionType())
		}
		err = s.Pusher.Push(ctx, userID, m.Title, m.Message, data)
		metrics.Notification("push", err)
		if err != nil {
			s.log().Warn("push notification failed", "user_id", userID, "err", err)
		}
	}
	return delivered
}

func (s NotificationService) List(ctx context.Context, userID int64, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	return s.Store.List(ctx, userID, limit)
}

func (s NotificationService) MarkRead(ctx context.Context, userID, id int64) error {
	return notFound(s.Store.MarkRead(ctx, userID, id), "notification")
}

func (s NotificationService) RegisterDevice(ctx context.Context, userID int64, token, platform string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.Validation("token is required")
	}
	return s.Devices.Register(ctx, userID, token, strings.ToLower(strings.TrimSpace(platform)))
}

func (s NotificationService) log() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
