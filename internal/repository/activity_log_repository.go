package repository

import (
	"context"

	"staffbook-backend/internal/db"
	"staffbook-backend/internal/domain"
)

type ActivityLogRepository struct {
	DB *db.Postgres
}

func (r ActivityLogRepository) Record(ctx context.Context, l domain.ActivityLog) error {
	_, err := r.DB.Pool.Exec(ctx, `
		INSERT INTO activity_logs (company_id, actor_id, action, entity, entity_id, message, logged_at)
		VALUES ($1,$2,$3,$4,$5,$6, COALESCE($7, now()))
	`, l.CompanyID, l.ActorID, l.Action, l.Entity, l.EntityID, l.Message, nullTime(l.LoggedAt))
	return err
}

func (r ActivityLogRepository) List(ctx context.Context, companyID int64, limit int) ([]domain.ActivityLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, company_id, actor_id, action, entity, entity_id, message, logged_at
		FROM activity_logs
		WHERE company_id=$1
		ORDER BY logged_at DESC, id DESC
		LIMIT $2
	`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ActivityLog
	for rows.Next() {
		var l domain.ActivityLog
		if err := rows.Scan(&l.ID, &l.CompanyID, &l.ActorID, &l.Action, &l.Entity, &l.EntityID, &l.Message, &l.LoggedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
