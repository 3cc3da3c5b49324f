package service

import (
	"context"

	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/ports"
)

// StatsService serves the management dashboard.
type StatsService struct {
	Users ports.UserStore
	Stats ports.StatsStore
	Logs  ports.ActivityStore
	Clock Clock
}

func (s StatsService) Summary(ctx context.Context, actorID int64) (*domain.Stats, error) {
	actor, err := requireManager(ctx, s.Users, actorID)
	if err != nil {
		return nil, err
	}
	return s.Stats.Summary(ctx, actor.CompanyID, s.Clock.now())
}

func (s StatsService) Activity(ctx context.Context, actorID int64, limit int) ([]domain.ActivityLog, error) {
	actor, err := requireManager(ctx, s.Users, actorID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.Logs.List(ctx, actor.CompanyID, limit)
}
